package report

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/lunara/reportmesh/core"
)

// Report is a persisted document made of blocks.
type Report struct {
	ID        int64        `json:"id"`
	Name      string       `json:"name"`
	Blocks    []core.Block `json:"blocks"`
	CreatedAt time.Time    `json:"created_at"`
	UpdatedAt time.Time    `json:"updated_at"`
}

// Update changes a report. Nil fields are left as they are.
type Update struct {
	Name   *string
	Blocks []core.Block
}

// Repository persists reports. List orders by UpdatedAt, newest first.
type Repository interface {
	Create(ctx context.Context, name string) (Report, error)
	Get(ctx context.Context, id int64) (Report, error)
	List(ctx context.Context) ([]Report, error)
	Update(ctx context.Context, id int64, u Update) (Report, error)
	Delete(ctx context.Context, id int64) error
	// AppendBlocks adds the blocks produced by one turn after the existing
	// ones.
	AppendBlocks(ctx context.Context, id int64, blocks []core.Block) (Report, error)
}

// SortReports orders reports by UpdatedAt then ID, newest first.
func SortReports(reports []Report) {
	sort.SliceStable(reports, func(i, j int) bool {
		if !reports[i].UpdatedAt.Equal(reports[j].UpdatedAt) {
			return reports[i].UpdatedAt.After(reports[j].UpdatedAt)
		}

		return reports[i].ID > reports[j].ID
	})
}

// InMemoryRepository is a process local Repository.
type InMemoryRepository struct {
	mu      sync.RWMutex
	nextID  int64
	reports map[int64]Report
	now     func() time.Time
}

var _ Repository = (*InMemoryRepository)(nil)

// NewInMemoryRepository creates an empty repository.
func NewInMemoryRepository() *InMemoryRepository {
	return &InMemoryRepository{reports: map[int64]Report{}, now: time.Now}
}

func (r *InMemoryRepository) Create(_ context.Context, name string) (Report, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.nextID++
	now := r.now().UTC()
	rep := Report{ID: r.nextID, Name: name, Blocks: []core.Block{}, CreatedAt: now, UpdatedAt: now}
	r.reports[rep.ID] = rep

	return cloneReport(rep), nil
}

func (r *InMemoryRepository) Get(_ context.Context, id int64) (Report, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	rep, ok := r.reports[id]
	if !ok {
		return Report{}, ErrReportNotFound
	}

	return cloneReport(rep), nil
}

func (r *InMemoryRepository) List(_ context.Context) ([]Report, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]Report, 0, len(r.reports))
	for _, rep := range r.reports {
		out = append(out, cloneReport(rep))
	}

	SortReports(out)

	return out, nil
}

func (r *InMemoryRepository) Update(_ context.Context, id int64, u Update) (Report, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	rep, ok := r.reports[id]
	if !ok {
		return Report{}, ErrReportNotFound
	}

	if u.Name != nil {
		rep.Name = *u.Name
	}

	if u.Blocks != nil {
		rep.Blocks = append([]core.Block(nil), u.Blocks...)
	}

	rep.UpdatedAt = r.now().UTC()
	r.reports[id] = rep

	return cloneReport(rep), nil
}

func (r *InMemoryRepository) Delete(_ context.Context, id int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.reports[id]; !ok {
		return ErrReportNotFound
	}

	delete(r.reports, id)

	return nil
}

func (r *InMemoryRepository) AppendBlocks(_ context.Context, id int64, blocks []core.Block) (Report, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	rep, ok := r.reports[id]
	if !ok {
		return Report{}, ErrReportNotFound
	}

	rep.Blocks = append(append([]core.Block(nil), rep.Blocks...), blocks...)
	rep.UpdatedAt = r.now().UTC()
	r.reports[id] = rep

	return cloneReport(rep), nil
}

func cloneReport(rep Report) Report {
	rep.Blocks = append([]core.Block{}, rep.Blocks...)
	return rep
}
