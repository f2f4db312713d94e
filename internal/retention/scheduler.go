package retention

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// ErrSweepInProgress is returned by RunNow while another sweep is running.
var ErrSweepInProgress = errors.New("retention sweep already in progress")

// Observer receives every finished sweep report. scheduled is false for
// sweeps started through RunNow.
type Observer func(r *Report, scheduled bool)

// SchedulerConfig holds the scheduling knobs.
type SchedulerConfig struct {
	Window   time.Duration
	Interval time.Duration
	Timeout  time.Duration
}

// DefaultSchedulerConfig returns a daily sweep of a one-day window.
func DefaultSchedulerConfig() SchedulerConfig {
	return SchedulerConfig{
		Window:   DefaultWindow,
		Interval: DefaultInterval,
		Timeout:  DefaultTimeout,
	}
}

// Scheduler runs a Sweeper once at start and then every Interval. Sweeps
// never overlap: a tick that finds one in flight is skipped.
type Scheduler struct {
	sweeper  *Sweeper
	logger   logrus.FieldLogger
	cfg      SchedulerConfig
	observer Observer
	onSkip   func()

	busy chan struct{} // one slot, held for the duration of a sweep

	mu      sync.Mutex
	running bool
	stopCh  chan struct{}
	doneCh  chan struct{}
	skipped int
}

// NewScheduler creates a stopped Scheduler. An Interval below MinInterval is
// raised to it; zero values fall back to the defaults.
func NewScheduler(sweeper *Sweeper, logger logrus.FieldLogger, cfg SchedulerConfig) *Scheduler {
	def := DefaultSchedulerConfig()
	if cfg.Window <= 0 {
		cfg.Window = def.Window
	}
	if cfg.Interval <= 0 {
		cfg.Interval = def.Interval
	}
	if cfg.Interval < MinInterval {
		cfg.Interval = MinInterval
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = def.Timeout
	}
	return &Scheduler{
		sweeper: sweeper,
		logger:  logger.WithField("action", "retention_schedule"),
		cfg:     cfg,
		busy:    make(chan struct{}, 1),
	}
}

// Observe installs fn as the report observer. Call before Start.
func (s *Scheduler) Observe(fn Observer) { s.observer = fn }

// OnSkip installs fn to be called for every skipped tick. Call before Start.
func (s *Scheduler) OnSkip(fn func()) { s.onSkip = fn }

// Config returns the effective configuration.
func (s *Scheduler) Config() SchedulerConfig { return s.cfg }

// Skipped returns how many ticks were skipped because a sweep was running.
func (s *Scheduler) Skipped() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.skipped
}

// Start launches the scheduling goroutine. The first sweep runs immediately.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return fmt.Errorf("retention scheduler already running")
	}
	s.running = true
	s.stopCh = make(chan struct{})
	s.doneCh = make(chan struct{})

	s.logger.WithFields(logrus.Fields{
		"window":   s.cfg.Window.String(),
		"interval": s.cfg.Interval.String(),
		"timeout":  s.cfg.Timeout.String(),
	}).Info("retention scheduler starting")

	go s.loop(ctx, s.stopCh, s.doneCh)
	return nil
}

// Stop signals the loop to exit and waits for it, including a sweep in
// flight. Safe to call more than once.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	s.running = false
	close(s.stopCh)
	done := s.doneCh
	s.mu.Unlock()

	<-done
	s.logger.Info("retention scheduler stopped")
}

// RunNow performs a sweep immediately, outside the schedule.
func (s *Scheduler) RunNow(ctx context.Context) (*Report, error) {
	r, ok := s.tryRun(ctx, false)
	if !ok {
		return nil, ErrSweepInProgress
	}
	return r, nil
}

func (s *Scheduler) loop(ctx context.Context, stop, done chan struct{}) {
	defer close(done)

	ticker := time.NewTicker(s.cfg.Interval)
	defer ticker.Stop()

	s.tick(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-stop:
			return
		case <-ticker.C:
			s.tick(ctx)
		}
	}
}

func (s *Scheduler) tick(ctx context.Context) {
	if _, ok := s.tryRun(ctx, true); !ok {
		s.mu.Lock()
		s.skipped++
		s.mu.Unlock()
		s.logger.Warn("previous sweep still running, skipping this tick")
		if s.onSkip != nil {
			s.onSkip()
		}
	}
}

func (s *Scheduler) tryRun(ctx context.Context, scheduled bool) (*Report, bool) {
	select {
	case s.busy <- struct{}{}:
	default:
		return nil, false
	}
	defer func() { <-s.busy }()

	ctx, cancel := context.WithTimeout(ctx, s.cfg.Timeout)
	defer cancel()

	r := s.sweeper.Run(ctx, Cutoff(s.sweeper.now(), s.cfg.Window))
	if s.observer != nil {
		s.observer(r, scheduled)
	}
	return r, true
}
