package intros

import (
	"context"
	"sync"

	"trailerreel/models"
)

type reconciler interface {
	Reconcile(ctx context.Context) (*models.ReconcileResult, error)
}

var _ reconciler = (*Reconciler)(nil)

// Service runs reconciliation passes on demand and serves intros from the most
// recent successful one.
type Service struct {
	reconciler   reconciler
	defaultCount int
	enabled      bool

	mu   sync.RWMutex
	last *models.ReconcileResult
}

func NewService(r reconciler, enabled bool, defaultCount int) *Service {
	return &Service{reconciler: r, enabled: enabled, defaultCount: defaultCount}
}

// Reconcile runs a pass and publishes its result.
func (s *Service) Reconcile(ctx context.Context) (*models.ReconcileResult, error) {
	result, err := s.reconciler.Reconcile(ctx)
	if err != nil {
		return nil, err
	}
	s.Publish(result)
	return result, nil
}

// Publish replaces the result intros are selected from.
func (s *Service) Publish(result *models.ReconcileResult) {
	s.mu.Lock()
	s.last = result
	s.mu.Unlock()
}

// Intros selects count intros from the last published pass.
func (s *Service) Intros(count int) []models.IntroInfo {
	if !s.enabled {
		return []models.IntroInfo{}
	}
	s.mu.RLock()
	last := s.last
	s.mu.RUnlock()
	if last == nil {
		return []models.IntroInfo{}
	}
	return SelectIntros(last.CacheIDs, count, nil)
}

// Status returns the last published result, or nil before the first pass.
func (s *Service) Status() *models.ReconcileResult {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.last
}

func (s *Service) Enabled() bool { return s.enabled }

// DefaultCount is the number of intros served when a caller does not ask.
func (s *Service) DefaultCount() int { return s.defaultCount }
