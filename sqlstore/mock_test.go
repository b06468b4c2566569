package sqlstore

import (
	"context"
	"errors"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lunara/reportmesh/core"
	"github.com/lunara/reportmesh/internal/testutil"
	"github.com/lunara/reportmesh/report"
)

// setupMockStore creates a store over a mock database.
func setupMockStore(t *testing.T) (*Store, sqlmock.Sqlmock) {
	t.Helper()

	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	return New(db), mock
}

func TestMigrate_Error(t *testing.T) {
	s, mock := setupMockStore(t)
	mock.ExpectExec("CREATE TABLE IF NOT EXISTS artifacts").WillReturnError(errors.New("disk full"))

	err := s.Migrate(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "disk full")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDatasetStore_ListQueryError(t *testing.T) {
	s, mock := setupMockStore(t)
	mock.ExpectQuery("SELECT id, name, created_at FROM artifacts").WillReturnError(errors.New("database is locked"))

	_, err := s.Datasets().List(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to list datasets")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDatasetStore_ListBadTimestamp(t *testing.T) {
	s, mock := setupMockStore(t)
	mock.ExpectQuery("SELECT id, name, created_at FROM artifacts").
		WillReturnRows(sqlmock.NewRows([]string{"id", "name", "created_at"}).AddRow(1, "x", "yesterday"))

	_, err := s.Datasets().List(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid timestamp")
}

func TestDatasetStore_GetError(t *testing.T) {
	s, mock := setupMockStore(t)
	mock.ExpectQuery("SELECT id, name, sql_query, data, created_at FROM artifacts").
		WithArgs(int64(7)).
		WillReturnError(errors.New("io error"))

	_, err := s.Datasets().Get(context.Background(), 7)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to get dataset 7")
}

func TestReportRepository_AppendBlocksUpdateFails(t *testing.T) {
	s, mock := setupMockStore(t)

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT id, name, blocks, created_at, updated_at FROM reports").
		WithArgs(int64(1)).
		WillReturnRows(sqlmock.NewRows([]string{"id", "name", "blocks", "created_at", "updated_at"}).
			AddRow(1, "Q1", "[]", "2025-01-01T00:00:00.000000000Z", "2025-01-01T00:00:00.000000000Z"))
	mock.ExpectExec("UPDATE reports SET name").
		WithArgs("Q1", sqlmock.AnyArg(), sqlmock.AnyArg(), int64(1)).
		WillReturnError(errors.New("constraint failed"))
	mock.ExpectRollback()

	_, err := s.Reports().AppendBlocks(context.Background(), 1, []core.Block{{ID: 1, Type: core.BlockText}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to update report 1")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestReportRepository_ModifyMissingReport(t *testing.T) {
	s, mock := setupMockStore(t)

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT id, name, blocks, created_at, updated_at FROM reports").
		WithArgs(int64(9)).
		WillReturnRows(sqlmock.NewRows([]string{"id", "name", "blocks", "created_at", "updated_at"}))
	mock.ExpectRollback()

	name := "x"
	_, err := s.Reports().Update(context.Background(), 9, report.Update{Name: &name})
	assert.ErrorIs(t, err, report.ErrReportNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestReportRepository_CorruptBlocks(t *testing.T) {
	s, mock := setupMockStore(t)
	mock.ExpectQuery("SELECT id, name, blocks, created_at, updated_at FROM reports").
		WillReturnRows(sqlmock.NewRows([]string{"id", "name", "blocks", "created_at", "updated_at"}).
			AddRow(1, "Q1", "{not json", "2025-01-01T00:00:00Z", "2025-01-01T00:00:00Z"))

	_, err := s.Reports().List(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "report 1 blocks")
}

func TestReportRepository_DeleteError(t *testing.T) {
	s, mock := setupMockStore(t)
	mock.ExpectExec("DELETE FROM reports").WithArgs(int64(3)).WillReturnError(errors.New("busy"))

	err := s.Reports().Delete(context.Background(), 3)
	require.Error(t, err)
	assert.NotErrorIs(t, err, report.ErrReportNotFound)
}

func TestSessionStore_AppendEventInsertFails(t *testing.T) {
	s, mock := setupMockStore(t)
	key := core.SessionKey{AppName: "app", UserID: "u", SessionID: "s"}

	mock.ExpectBegin()
	mock.ExpectExec("UPDATE sessions SET updated_at").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("INSERT INTO events").WillReturnError(errors.New("disk I/O error"))
	mock.ExpectRollback()

	err := s.Sessions().AppendEvent(context.Background(), key, testutil.NewEventBuilder().Author("report_agent").Text("hi").Build())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to append event")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSessionStore_BeginFails(t *testing.T) {
	s, mock := setupMockStore(t)
	mock.ExpectBegin().WillReturnError(errors.New("no connection"))

	err := s.Sessions().ApplyDelta(context.Background(), core.SessionKey{SessionID: "s"}, map[string]any{"a": 1})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to begin transaction")
}
