package memory

import (
	"context"
	"sync"

	"sightline/internal/report"
	"sightline/pkg/platform/sentinel"
)

// InMemoryStore implements report.Store and report.ModerationLog with mutex
// maps. It is the test and local-dev backend; production uses Postgres.
type InMemoryStore struct {
	mu         sync.RWMutex
	pending    map[string]report.Report
	verified   map[string]report.Report
	stats      report.StatsSnapshot
	moderation []report.ModerationEntry
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		pending:  make(map[string]report.Report),
		verified: make(map[string]report.Report),
	}
}

func (s *InMemoryStore) GetPending(_ context.Context, key string) (report.Report, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.pending[key]
	if !ok {
		return report.Report{}, sentinel.ErrNotFound
	}
	return r, nil
}

func (s *InMemoryStore) PutPending(_ context.Context, r report.Report) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pending[r.Key] = r
	return nil
}

func (s *InMemoryStore) DeletePending(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.pending[key]; !ok {
		return sentinel.ErrNotFound
	}
	delete(s.pending, key)
	return nil
}

func (s *InMemoryStore) ListPending(_ context.Context) ([]report.Report, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]report.Report, 0, len(s.pending))
	for _, r := range s.pending {
		out = append(out, r)
	}
	return out, nil
}

func (s *InMemoryStore) GetVerified(_ context.Context, key string) (report.Report, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.verified[key]
	if !ok {
		return report.Report{}, sentinel.ErrNotFound
	}
	return r, nil
}

func (s *InMemoryStore) PutVerified(_ context.Context, r report.Report) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.verified[r.Key] = r
	return nil
}

func (s *InMemoryStore) DeleteVerified(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.verified[key]; !ok {
		return sentinel.ErrNotFound
	}
	delete(s.verified, key)
	return nil
}

func (s *InMemoryStore) ListVerified(_ context.Context) ([]report.Report, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]report.Report, 0, len(s.verified))
	for _, r := range s.verified {
		out = append(out, r)
	}
	return out, nil
}

func (s *InMemoryStore) IncrementVerifiedCount(_ context.Context, key string, delta int) (report.Report, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.verified[key]
	if !ok {
		return report.Report{}, sentinel.ErrNotFound
	}
	r.ReportedCount += delta
	s.verified[key] = r
	return r, nil
}

func (s *InMemoryStore) GetStats(_ context.Context) (report.StatsSnapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.stats, nil
}

func (s *InMemoryStore) PutStats(_ context.Context, snapshot report.StatsSnapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stats = snapshot
	return nil
}

func (s *InMemoryStore) AppendModeration(_ context.Context, e report.ModerationEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.moderation = append(s.moderation, e)
	return nil
}

// ModerationEntries returns a copy of the archived flagged submissions.
func (s *InMemoryStore) ModerationEntries() []report.ModerationEntry {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]report.ModerationEntry{}, s.moderation...)
}

// InMemoryColdStore implements report.ColdStore for tests and local dev.
type InMemoryColdStore struct {
	mu      sync.RWMutex
	reports map[string]report.Report
}

func NewInMemoryColdStore() *InMemoryColdStore {
	return &InMemoryColdStore{reports: make(map[string]report.Report)}
}

func (s *InMemoryColdStore) Exists(_ context.Context, key string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.reports[key]
	return ok, nil
}

func (s *InMemoryColdStore) Put(_ context.Context, r report.Report) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reports[r.Key] = r
	return nil
}

func (s *InMemoryColdStore) List(_ context.Context) ([]report.Report, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]report.Report, 0, len(s.reports))
	for _, r := range s.reports {
		out = append(out, r)
	}
	return out, nil
}
