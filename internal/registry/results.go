package registry

import (
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/trueform/formsight/pkg/models"
)

// ErrAlreadyExists is returned on a second write for the same analysis id.
var ErrAlreadyExists = errors.New("result already exists")

// ResultStore is the Result Store: write-once, keyed by analysis id. Results
// are immutable after the first Put; there is no update operation.
type ResultStore struct {
	mu      sync.Mutex
	results map[uuid.UUID]*models.Result
}

// NewResultStore creates an empty ResultStore.
func NewResultStore() *ResultStore {
	return &ResultStore{results: make(map[uuid.UUID]*models.Result)}
}

// Put stores a result under its analysis id. The stored copy is detached from
// the caller's value so later mutations cannot leak in.
func (s *ResultStore) Put(result *models.Result) error {
	if result == nil || result.AnalysisID == uuid.Nil {
		return fmt.Errorf("put result: analysis id is required")
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.results[result.AnalysisID]; exists {
		return fmt.Errorf("%w: %s", ErrAlreadyExists, result.AnalysisID)
	}
	s.results[result.AnalysisID] = result.Clone()
	return nil
}

// Get returns a copy of the result for the given analysis id.
func (s *ResultStore) Get(analysisID uuid.UUID) (*models.Result, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.results[analysisID]
	if !ok {
		return nil, fmt.Errorf("%w: result %s", ErrNotFound, analysisID)
	}
	return r.Clone(), nil
}
