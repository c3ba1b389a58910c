package service

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

// DefaultTickInterval is how often the scheduler runs its steps.
const DefaultTickInterval = 30 * time.Second

// SchedulerStep is one unit of periodic background work.
type SchedulerStep struct {
	Name string
	Run  func(ctx context.Context) error
}

// Scheduler runs registered steps sequentially on a fixed interval. All
// background mutation funnels through this single loop, so steps never
// race each other. A step failure is logged and counted; the remaining
// steps still run.
type Scheduler struct {
	logger *zap.Logger
	steps  []SchedulerStep

	Interval time.Duration
	// MaxTicks stops the loop after that many ticks when > 0. Zero means
	// run until Stop.
	MaxTicks int

	mu       sync.Mutex
	failures map[string]int

	stopCh chan struct{}
	wg     sync.WaitGroup
	once   sync.Once
}

func NewScheduler(logger *zap.Logger) *Scheduler {
	return &Scheduler{
		logger:   logger,
		Interval: DefaultTickInterval,
		failures: make(map[string]int),
		stopCh:   make(chan struct{}),
	}
}

// AddStep appends a step. Steps run in registration order every tick. Not
// safe to call after Start.
func (s *Scheduler) AddStep(name string, run func(ctx context.Context) error) {
	s.steps = append(s.steps, SchedulerStep{Name: name, Run: run})
}

// Tick runs every step once. The mutex keeps manually triggered ticks from
// overlapping the background loop.
func (s *Scheduler) Tick(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, step := range s.steps {
		if err := ctx.Err(); err != nil {
			return
		}
		if err := step.Run(ctx); err != nil {
			s.failures[step.Name]++
			s.logger.Error("scheduler step failed",
				zap.String("step", step.Name), zap.Error(err))
		}
	}
}

// FailureCounts returns a copy of the per-step failure counters.
func (s *Scheduler) FailureCounts() map[string]int {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make(map[string]int, len(s.failures))
	for name, n := range s.failures {
		out[name] = n
	}
	return out
}

// Start launches the background loop. The first tick runs after one full
// interval.
func (s *Scheduler) Start(ctx context.Context) {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		ticker := time.NewTicker(s.Interval)
		defer ticker.Stop()

		s.logger.Info("scheduler started",
			zap.Duration("interval", s.Interval), zap.Int("steps", len(s.steps)))
		ticks := 0
		for {
			select {
			case <-ticker.C:
				s.Tick(ctx)
				ticks++
				if s.MaxTicks > 0 && ticks >= s.MaxTicks {
					s.logger.Info("scheduler reached tick bound", zap.Int("ticks", ticks))
					return
				}
			case <-s.stopCh:
				return
			case <-ctx.Done():
				return
			}
		}
	}()
}

// Stop shuts the loop down and waits for an in-flight tick to finish.
func (s *Scheduler) Stop() {
	s.once.Do(func() { close(s.stopCh) })
	s.wg.Wait()
	s.logger.Info("scheduler stopped")
}
