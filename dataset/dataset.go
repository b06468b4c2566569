// Package dataset holds saved query results that report agents read through
// list_artifacts and get_artifact_data.
package dataset

import (
	"context"
	"encoding/json"
	"errors"
	"sort"
	"sync"
	"time"
)

// ErrNotFound is returned when no dataset exists for an id.
var ErrNotFound = errors.New("dataset not found")

// Dataset is one saved query and its JSON encoded result rows.
type Dataset struct {
	ID        int64           `json:"id"`
	Name      string          `json:"name"`
	SQL       string          `json:"sql"`
	Data      json.RawMessage `json:"data"`
	CreatedAt time.Time       `json:"created_at"`
}

// Summary is the listing view of a dataset.
type Summary struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
}

// Rows decodes Data. Empty data decodes to an empty list.
func (d Dataset) Rows() (any, error) {
	if len(d.Data) == 0 {
		return []any{}, nil
	}

	var rows any
	if err := json.Unmarshal(d.Data, &rows); err != nil {
		return nil, err
	}

	return rows, nil
}

// Store persists datasets. List orders newest first.
type Store interface {
	List(ctx context.Context) ([]Summary, error)
	Get(ctx context.Context, id int64) (Dataset, error)
	Save(ctx context.Context, d Dataset) (Dataset, error)
}

// InMemoryStore is a process local Store.
type InMemoryStore struct {
	mu     sync.RWMutex
	nextID int64
	items  map[int64]Dataset
	now    func() time.Time
}

var _ Store = (*InMemoryStore)(nil)

// NewInMemoryStore creates an empty store.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{items: map[int64]Dataset{}, now: time.Now}
}

// Save assigns an id when d.ID is zero and stamps CreatedAt when unset.
func (s *InMemoryStore) Save(_ context.Context, d Dataset) (Dataset, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if d.ID == 0 {
		s.nextID++
		d.ID = s.nextID
	} else if d.ID > s.nextID {
		s.nextID = d.ID
	}

	if d.CreatedAt.IsZero() {
		d.CreatedAt = s.now().UTC()
	}

	d.Data = append(json.RawMessage(nil), d.Data...)
	s.items[d.ID] = d

	return d, nil
}

// Get returns the dataset with id.
func (s *InMemoryStore) Get(_ context.Context, id int64) (Dataset, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	d, ok := s.items[id]
	if !ok {
		return Dataset{}, ErrNotFound
	}

	d.Data = append(json.RawMessage(nil), d.Data...)

	return d, nil
}

// List returns summaries ordered by creation time, newest first.
func (s *InMemoryStore) List(_ context.Context) ([]Summary, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]Summary, 0, len(s.items))
	for _, d := range s.items {
		out = append(out, Summary{ID: d.ID, Name: d.Name, CreatedAt: d.CreatedAt})
	}

	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}

		return out[i].ID > out[j].ID
	})

	return out, nil
}
