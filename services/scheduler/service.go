package scheduler

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"trailerreel/models"
	"trailerreel/services/intros"
)

type reconciler interface {
	Reconcile(ctx context.Context) (*models.ReconcileResult, error)
}

var _ reconciler = (*intros.Service)(nil)

// Options configures the reconciliation schedule.
type Options struct {
	// Spec is a standard 5-field cron expression or a descriptor like "@every 12h".
	Spec       string
	RunOnStart bool
	Timeout    time.Duration
}

// Service runs reconciliation passes on a cron schedule.
type Service struct {
	reconciler reconciler
	schedule   cron.Schedule
	opts       Options

	// Runtime state
	mu      sync.RWMutex
	running bool
	ctx     context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	cron    *cron.Cron
	entry   cron.EntryID

	// Pass state tracking (in-memory, not persisted)
	taskMu      sync.Mutex
	taskRunning bool
	lastRun     time.Time
	lastErr     error
}

// NewService creates a new scheduler service
func NewService(r reconciler, opts Options) (*Service, error) {
	if opts.Spec == "" {
		opts.Spec = "@every 12h"
	}
	if opts.Timeout <= 0 {
		opts.Timeout = time.Hour
	}
	schedule, err := cron.ParseStandard(opts.Spec)
	if err != nil {
		return nil, fmt.Errorf("parse reconcile schedule %q: %w", opts.Spec, err)
	}
	return &Service{reconciler: r, schedule: schedule, opts: opts}, nil
}

// Start begins the scheduler background loop
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return nil
	}

	s.ctx, s.cancel = context.WithCancel(ctx)
	runCtx := s.ctx
	logger := cron.PrintfLogger(log.Default())
	s.cron = cron.New(
		cron.WithLogger(logger),
		cron.WithChain(cron.Recover(logger)),
	)
	s.entry = s.cron.Schedule(s.schedule, cron.FuncJob(func() { s.runPass(runCtx, "schedule") }))
	s.cron.Start()
	s.running = true

	if s.opts.RunOnStart {
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			s.runPass(runCtx, "startup")
		}()
	}

	log.Printf("[scheduler] Scheduler service started (reconcile %s, next at %s)",
		s.opts.Spec, s.schedule.Next(time.Now()).Format(time.RFC3339))
	return nil
}

// Stop gracefully stops the scheduler
func (s *Service) Stop(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.running {
		return nil
	}

	s.cancel()
	cronDone := s.cron.Stop()

	// Wait for in-flight passes to complete with timeout
	done := make(chan struct{})
	go func() {
		<-cronDone.Done()
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		log.Println("[scheduler] Scheduler service stopped gracefully")
	case <-ctx.Done():
		log.Println("[scheduler] Scheduler service stopped (timeout)")
	}

	s.running = false
	return nil
}

// TriggerNow runs a pass immediately, outside the schedule. The pass is bound
// to ctx and the configured timeout.
func (s *Service) TriggerNow(ctx context.Context) (*models.ReconcileResult, error) {
	log.Println("[scheduler] Manually running reconciliation")
	ctx, cancel := context.WithTimeout(ctx, s.opts.Timeout)
	defer cancel()
	return s.execute(ctx)
}

// NextRun reports when the schedule fires next; zero when stopped.
func (s *Service) NextRun() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.running {
		return time.Time{}
	}
	return s.cron.Entry(s.entry).Next
}

// LastRun reports when the last pass finished and its error, if any.
func (s *Service) LastRun() (time.Time, error) {
	s.taskMu.Lock()
	defer s.taskMu.Unlock()
	return s.lastRun, s.lastErr
}

// IsRunning reports whether a pass started by this scheduler is in flight.
func (s *Service) IsRunning() bool {
	s.taskMu.Lock()
	defer s.taskMu.Unlock()
	return s.taskRunning
}

func (s *Service) runPass(parent context.Context, trigger string) {
	if parent.Err() != nil {
		return
	}

	s.taskMu.Lock()
	if s.taskRunning {
		s.taskMu.Unlock()
		log.Printf("[scheduler] Skipping %s reconciliation: previous pass still running", trigger)
		return
	}
	s.taskRunning = true
	s.taskMu.Unlock()

	defer func() {
		s.taskMu.Lock()
		s.taskRunning = false
		s.taskMu.Unlock()
	}()

	log.Printf("[scheduler] Starting %s reconciliation", trigger)
	ctx, cancel := context.WithTimeout(parent, s.opts.Timeout)
	defer cancel()

	if _, err := s.execute(ctx); err != nil {
		log.Printf("[scheduler] %s reconciliation failed: %v", trigger, err)
	}
}

func (s *Service) execute(ctx context.Context) (*models.ReconcileResult, error) {
	started := time.Now()
	result, err := s.reconciler.Reconcile(ctx)

	s.taskMu.Lock()
	s.lastRun = time.Now()
	s.lastErr = err
	s.taskMu.Unlock()

	if err != nil {
		return nil, err
	}
	log.Printf("[scheduler] Reconciliation %s finished in %s (%d cached)",
		result.RunID, time.Since(started).Round(time.Millisecond), len(result.CacheIDs))
	return result, nil
}
