package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/aescanero/scriptbook/pkg/domain"
)

// InMemoryResultStore implements ResultStore using an in-memory map.
// A nil entry is the placeholder written by Begin.
type InMemoryResultStore struct {
	results map[string]*domain.ExecutionResult
	mu      sync.RWMutex
}

// NewInMemoryResultStore creates a new in-memory result store
func NewInMemoryResultStore() *InMemoryResultStore {
	return &InMemoryResultStore{
		results: make(map[string]*domain.ExecutionResult),
	}
}

// Begin creates the placeholder for an output target
func (s *InMemoryResultStore) Begin(ctx context.Context, target string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.results[target] = nil
	return nil
}

// Put stores a result. Targets that were never begun or were already deleted
// are rejected.
func (s *InMemoryResultStore) Put(ctx context.Context, target string, result *domain.ExecutionResult) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.results[target]; !ok {
		return fmt.Errorf("%s: %w", target, domain.ErrResultNotFound)
	}

	// Copy to avoid mutations
	cp := *result
	cp.Images = append([]string(nil), result.Images...)
	s.results[target] = &cp
	return nil
}

// Get returns the result stored under target. pending is true while only the
// placeholder exists.
func (s *InMemoryResultStore) Get(ctx context.Context, target string) (*domain.ExecutionResult, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result, ok := s.results[target]
	if !ok {
		return nil, false, fmt.Errorf("%s: %w", target, domain.ErrResultNotFound)
	}
	if result == nil {
		return nil, true, nil
	}

	cp := *result
	return &cp, false, nil
}

// Delete removes an output target
func (s *InMemoryResultStore) Delete(ctx context.Context, target string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.results, target)
	return nil
}

// Len returns the number of live output targets
func (s *InMemoryResultStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.results)
}

// InMemoryNotebookStore implements NotebookStore using an in-memory map
type InMemoryNotebookStore struct {
	notebooks map[string]*domain.Document
	mu        sync.RWMutex
}

// NewInMemoryNotebookStore creates a new in-memory notebook store
func NewInMemoryNotebookStore() *InMemoryNotebookStore {
	return &InMemoryNotebookStore{
		notebooks: make(map[string]*domain.Document),
	}
}

// SaveNotebook stores a copy of doc under name
func (s *InMemoryNotebookStore) SaveNotebook(ctx context.Context, name string, doc *domain.Document) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.notebooks[name] = copyDocument(doc)
	return nil
}

// LoadNotebook returns the document stored under name
func (s *InMemoryNotebookStore) LoadNotebook(ctx context.Context, name string) (*domain.Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	doc, ok := s.notebooks[name]
	if !ok {
		return nil, fmt.Errorf("%s: %w", name, domain.ErrNotebookNotFound)
	}
	return copyDocument(doc), nil
}

// ListNotebooks returns stored notebook names in lexical order
func (s *InMemoryNotebookStore) ListNotebooks(ctx context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	names := make([]string, 0, len(s.notebooks))
	for name := range s.notebooks {
		names = append(names, name)
	}
	sort.Strings(names)
	return names, nil
}

func copyDocument(doc *domain.Document) *domain.Document {
	cp := &domain.Document{Version: doc.Version}
	cp.Cells = append([]domain.DocumentCell(nil), doc.Cells...)
	return cp
}
