package memory

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"

	"sightline/internal/images"
	"sightline/pkg/platform/sentinel"
)

var _ images.Store = (*InMemoryStore)(nil)

// InMemoryStore implements images.Store with a mutex map of object keys.
type InMemoryStore struct {
	mu      sync.Mutex
	objects map[string]struct{}

	// FailMove makes the next Move fail, for exercising the relocate-first
	// ordering of the verification workflow.
	FailMove bool
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{objects: make(map[string]struct{})}
}

// PutObject seeds an object, standing in for the upload path that is outside
// this service.
func (s *InMemoryStore) PutObject(key string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.objects[key] = struct{}{}
}

func (s *InMemoryStore) Move(_ context.Context, src, dst string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.FailMove {
		return fmt.Errorf("move %s: %w", src, sentinel.ErrUnavailable)
	}
	if _, ok := s.objects[src]; !ok {
		return fmt.Errorf("move %s: %w", src, sentinel.ErrNotFound)
	}
	s.objects[dst] = struct{}{}
	delete(s.objects, src)
	return nil
}

func (s *InMemoryStore) Delete(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.objects, key)
	return nil
}

func (s *InMemoryStore) Exists(_ context.Context, key string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.objects[key]
	return ok, nil
}

func (s *InMemoryStore) PublicURL(_ context.Context, key string) (string, error) {
	return fmt.Sprintf("https://images.test/%s?token=%s", key, uuid.NewString()), nil
}
