package sqlstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"sort"

	"github.com/lunara/reportmesh/dataset"
)

// DatasetStore implements dataset.Store on the artifacts table.
type DatasetStore struct {
	store *Store
}

var _ dataset.Store = (*DatasetStore)(nil)

// List returns every saved query result, newest first.
func (d *DatasetStore) List(ctx context.Context) ([]dataset.Summary, error) {
	rows, err := d.store.db.QueryContext(ctx, `SELECT id, name, created_at FROM artifacts`)
	if err != nil {
		return nil, fmt.Errorf("failed to list datasets: %w", err)
	}
	defer rows.Close()

	var out []dataset.Summary

	for rows.Next() {
		var (
			sum     dataset.Summary
			created string
		)

		if err := rows.Scan(&sum.ID, &sum.Name, &created); err != nil {
			return nil, fmt.Errorf("failed to scan dataset: %w", err)
		}

		if sum.CreatedAt, err = parseTime(created); err != nil {
			return nil, fmt.Errorf("dataset %d: %w", sum.ID, err)
		}

		out = append(out, sum)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to list datasets: %w", err)
	}

	sort.SliceStable(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}

		return out[i].ID > out[j].ID
	})

	return out, nil
}

// Get returns one saved query result.
func (d *DatasetStore) Get(ctx context.Context, id int64) (dataset.Dataset, error) {
	var (
		ds      dataset.Dataset
		data    string
		created string
	)

	err := d.store.db.QueryRowContext(ctx,
		`SELECT id, name, sql_query, data, created_at FROM artifacts WHERE id = ?`, id,
	).Scan(&ds.ID, &ds.Name, &ds.SQL, &data, &created)
	if errors.Is(err, sql.ErrNoRows) {
		return dataset.Dataset{}, dataset.ErrNotFound
	}

	if err != nil {
		return dataset.Dataset{}, fmt.Errorf("failed to get dataset %d: %w", id, err)
	}

	if ds.CreatedAt, err = parseTime(created); err != nil {
		return dataset.Dataset{}, fmt.Errorf("dataset %d: %w", id, err)
	}

	if data != "" {
		ds.Data = json.RawMessage(data)
	}

	return ds, nil
}

// Save inserts a saved query result and returns it with its id.
func (d *DatasetStore) Save(ctx context.Context, ds dataset.Dataset) (dataset.Dataset, error) {
	if ds.CreatedAt.IsZero() {
		ds.CreatedAt = d.store.now().UTC()
	}

	data := string(ds.Data)
	if data == "" {
		data = "[]"
	}

	if !json.Valid([]byte(data)) {
		return dataset.Dataset{}, fmt.Errorf("dataset %q: data is not valid JSON", ds.Name)
	}

	res, err := d.store.db.ExecContext(ctx,
		`INSERT INTO artifacts (name, sql_query, data, created_at) VALUES (?, ?, ?, ?)`,
		ds.Name, ds.SQL, data, formatTime(ds.CreatedAt),
	)
	if err != nil {
		return dataset.Dataset{}, fmt.Errorf("failed to save dataset: %w", err)
	}

	if ds.ID, err = res.LastInsertId(); err != nil {
		return dataset.Dataset{}, fmt.Errorf("failed to read dataset id: %w", err)
	}

	ds.Data = json.RawMessage(data)
	ds.CreatedAt = ds.CreatedAt.UTC()

	return ds, nil
}
