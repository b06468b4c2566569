package sqlstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/lunara/reportmesh/core"
	"github.com/lunara/reportmesh/report"
)

// ReportRepository implements report.Repository on the reports table.
type ReportRepository struct {
	store *Store
}

var _ report.Repository = (*ReportRepository)(nil)

type rowScanner interface {
	Scan(dest ...any) error
}

const reportColumns = `id, name, blocks, created_at, updated_at`

func (r *ReportRepository) Create(ctx context.Context, name string) (report.Report, error) {
	now := r.store.stamp()

	res, err := r.store.db.ExecContext(ctx,
		`INSERT INTO reports (name, blocks, created_at, updated_at) VALUES (?, '[]', ?, ?)`, name, now, now)
	if err != nil {
		return report.Report{}, fmt.Errorf("failed to create report: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return report.Report{}, fmt.Errorf("failed to read report id: %w", err)
	}

	return r.Get(ctx, id)
}

func (r *ReportRepository) Get(ctx context.Context, id int64) (report.Report, error) {
	return r.get(ctx, r.store.db, id)
}

func (r *ReportRepository) get(ctx context.Context, q querier, id int64) (report.Report, error) {
	rep, err := scanReport(q.QueryRowContext(ctx, `SELECT `+reportColumns+` FROM reports WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return report.Report{}, report.ErrReportNotFound
	}

	if err != nil {
		return report.Report{}, fmt.Errorf("failed to get report %d: %w", id, err)
	}

	return rep, nil
}

func (r *ReportRepository) List(ctx context.Context) ([]report.Report, error) {
	rows, err := r.store.db.QueryContext(ctx, `SELECT `+reportColumns+` FROM reports`)
	if err != nil {
		return nil, fmt.Errorf("failed to list reports: %w", err)
	}
	defer rows.Close()

	out := []report.Report{}

	for rows.Next() {
		rep, err := scanReport(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan report: %w", err)
		}

		out = append(out, rep)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to list reports: %w", err)
	}

	report.SortReports(out)

	return out, nil
}

func (r *ReportRepository) Update(ctx context.Context, id int64, u report.Update) (report.Report, error) {
	return r.modify(ctx, id, func(rep *report.Report) {
		if u.Name != nil {
			rep.Name = *u.Name
		}

		if u.Blocks != nil {
			rep.Blocks = u.Blocks
		}
	})
}

func (r *ReportRepository) AppendBlocks(ctx context.Context, id int64, blocks []core.Block) (report.Report, error) {
	return r.modify(ctx, id, func(rep *report.Report) {
		rep.Blocks = append(rep.Blocks, blocks...)
	})
}

func (r *ReportRepository) Delete(ctx context.Context, id int64) error {
	res, err := r.store.db.ExecContext(ctx, `DELETE FROM reports WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete report %d: %w", id, err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to delete report %d: %w", id, err)
	}

	if n == 0 {
		return report.ErrReportNotFound
	}

	return nil
}

// modify reads, changes and writes a report in one transaction.
func (r *ReportRepository) modify(ctx context.Context, id int64, fn func(rep *report.Report)) (report.Report, error) {
	tx, err := r.store.db.BeginTx(ctx, nil)
	if err != nil {
		return report.Report{}, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer rollback(tx)

	rep, err := r.get(ctx, tx, id)
	if err != nil {
		return report.Report{}, err
	}

	fn(&rep)

	if rep.Blocks == nil {
		rep.Blocks = []core.Block{}
	}

	blocks, err := json.Marshal(rep.Blocks)
	if err != nil {
		return report.Report{}, fmt.Errorf("failed to encode blocks: %w", err)
	}

	now := r.store.stamp()
	if _, err := tx.ExecContext(ctx,
		`UPDATE reports SET name = ?, blocks = ?, updated_at = ? WHERE id = ?`, rep.Name, string(blocks), now, id,
	); err != nil {
		return report.Report{}, fmt.Errorf("failed to update report %d: %w", id, err)
	}

	if err := tx.Commit(); err != nil {
		return report.Report{}, fmt.Errorf("failed to commit report %d: %w", id, err)
	}

	rep.UpdatedAt, _ = parseTime(now)

	return rep, nil
}

type querier interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func scanReport(row rowScanner) (report.Report, error) {
	var (
		rep              report.Report
		blocks           string
		created, updated string
	)

	if err := row.Scan(&rep.ID, &rep.Name, &blocks, &created, &updated); err != nil {
		return report.Report{}, err
	}

	rep.Blocks = []core.Block{}
	if blocks != "" {
		if err := json.Unmarshal([]byte(blocks), &rep.Blocks); err != nil {
			return report.Report{}, fmt.Errorf("report %d blocks: %w", rep.ID, err)
		}
	}

	var err error
	if rep.CreatedAt, err = parseTime(created); err != nil {
		return report.Report{}, err
	}

	if rep.UpdatedAt, err = parseTime(updated); err != nil {
		return report.Report{}, err
	}

	return rep, nil
}
