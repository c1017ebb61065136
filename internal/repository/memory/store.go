// Package memory keeps order lines and processing logs in process memory.
// It backs tests and the "memory" storage driver.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/rpattn/ecomdata/internal/domain"
	"github.com/rpattn/ecomdata/internal/repository"
)

// Store implements both repositories over slices guarded by a RWMutex.
type Store struct {
	mu    sync.RWMutex
	lines []domain.OrderLine
	logs  []domain.ProcessingLog

	// failInsert, when set, is returned by InsertMany.
	failInsert error
}

// NewStore returns an empty store.
func NewStore() *Store {
	return &Store{}
}

// Repositories exposes the store as a repository.Store.
func (s *Store) Repositories() repository.Store {
	return repository.Store{
		Orders: s,
		Logs:   LogRepository{store: s},
		Close:  func(context.Context) error { return nil },
	}
}

// FailInserts makes subsequent InsertMany calls return err. Pass nil to reset.
func (s *Store) FailInserts(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failInsert = err
}

func (s *Store) InsertMany(ctx context.Context, lines []domain.OrderLine) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failInsert != nil {
		return 0, fmt.Errorf("failed to insert order lines: %w", s.failInsert)
	}
	for _, line := range lines {
		line.Attributes = cloneAttributes(line.Attributes)
		s.lines = append(s.lines, line)
	}
	return len(lines), nil
}

func (s *Store) DeleteAll(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lines = nil
	return nil
}

func (s *Store) Count(ctx context.Context) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return int64(len(s.lines)), nil
}

func (s *Store) Aggregate(ctx context.Context, spec domain.AggregateSpec) ([]domain.AggregateRow, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	snapshot := append([]domain.OrderLine(nil), s.lines...)
	s.mu.RUnlock()
	return Evaluate(snapshot, spec)
}

func (s *Store) FindSorted(ctx context.Context, sortKey string, descending bool, limit int) ([]domain.OrderLine, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if !domain.IsCanonicalField(sortKey) {
		return nil, fmt.Errorf("unknown sort key %q", sortKey)
	}
	s.mu.RLock()
	out := append([]domain.OrderLine(nil), s.lines...)
	s.mu.RUnlock()

	sort.SliceStable(out, func(i, j int) bool {
		c := compareField(out[i], out[j], sortKey)
		if descending {
			return c > 0
		}
		return c < 0
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// LogRepository is the processing log view of a Store.
type LogRepository struct {
	store *Store
}

func (r LogRepository) Record(ctx context.Context, entry domain.ProcessingLog) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	entry.Errors = append([]string{}, entry.Errors...)
	r.store.logs = append(r.store.logs, entry)
	return nil
}

func (r LogRepository) ListRecent(ctx context.Context, limit int) ([]domain.ProcessingLog, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.store.mu.RLock()
	out := make([]domain.ProcessingLog, 0, len(r.store.logs))
	for i := len(r.store.logs) - 1; i >= 0; i-- {
		out = append(out, r.store.logs[i])
	}
	r.store.mu.RUnlock()

	// newest first; among equal timestamps the later insert comes first
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Timestamp.After(out[j].Timestamp)
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r LogRepository) DeleteAll(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	r.store.logs = nil
	return nil
}

func cloneAttributes(in map[string]string) map[string]string {
	if in == nil {
		return nil
	}
	out := make(map[string]string, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}

// compareField orders nulls before values and numbers numerically.
func compareField(a, b domain.OrderLine, field string) int {
	if domain.IsNumericField(field) {
		x, _ := a.Number(field)
		y, _ := b.Number(field)
		return compareFloat(x, y)
	}
	x, okX := a.Text(field)
	y, okY := b.Text(field)
	return compareOptional(x, okX, y, okY)
}
