package reminders

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/jmhodges/clock"
	"github.com/smith3v/taskmood-bot/pkg/config"
	"github.com/smith3v/taskmood-bot/pkg/db"
	"github.com/smith3v/taskmood-bot/pkg/logger"
	"github.com/smith3v/taskmood-bot/pkg/notify"
)

const (
	DefaultTickInterval    = time.Minute
	DefaultBatchLimit      = 100
	DefaultPacingDelay     = 300 * time.Millisecond
	DefaultSendTimeout     = 10 * time.Second
	DefaultRetentionWindow = 7 * 24 * time.Hour
)

var ErrAlreadyRunning = errors.New("reminder scheduler already running")

type Config struct {
	TickInterval    time.Duration
	BatchLimit      int
	PacingDelay     time.Duration
	SendTimeout     time.Duration
	RetentionWindow time.Duration
	Retry           db.RetryPolicy
	// Location is used to render dates and to match digest times.
	Location *time.Location
}

func ConfigFrom(rc config.RemindersConfig) Config {
	return Config{
		TickInterval:    rc.TickInterval,
		BatchLimit:      rc.BatchLimit,
		PacingDelay:     rc.PacingDelay,
		SendTimeout:     rc.SendTimeout,
		RetentionWindow: rc.RetentionWindow,
		Retry: db.RetryPolicy{
			MaxAttempts: rc.MaxAttempts,
			BaseDelay:   rc.RetryBaseDelay,
			MaxDelay:    rc.RetryMaxDelay,
		},
		Location: rc.Location(),
	}
}

func (c Config) withDefaults() Config {
	if c.TickInterval <= 0 {
		c.TickInterval = DefaultTickInterval
	}
	if c.BatchLimit <= 0 {
		c.BatchLimit = DefaultBatchLimit
	}
	if c.PacingDelay < 0 {
		c.PacingDelay = 0
	}
	if c.SendTimeout <= 0 {
		c.SendTimeout = DefaultSendTimeout
	}
	if c.RetentionWindow <= 0 {
		c.RetentionWindow = DefaultRetentionWindow
	}
	if c.Retry.MaxAttempts <= 0 {
		c.Retry.MaxAttempts = 10
	}
	if c.Retry.BaseDelay <= 0 {
		c.Retry.BaseDelay = time.Minute
	}
	if c.Retry.MaxDelay <= 0 {
		c.Retry.MaxDelay = time.Hour
	}
	if c.Location == nil {
		c.Location = time.UTC
	}
	return c
}

type Deps struct {
	Tasks     TaskStore
	Settings  SettingsStore
	Reminders ReminderRepository
	Notifier  notify.Notifier
	// Clock defaults to the wall clock.
	Clock clock.Clock
}

// TickReport counts what one tick did.
type TickReport struct {
	DeadlineCreated int
	OverdueCreated  int
	DigestsSent     int
	Sent            int
	Undeliverable   int
	Retired         int
	Failed          int
	DeadLettered    int
	Deferred        int
	Purged          int64
	PhaseErrors     int
}

// Scheduler runs the reminder phases on a fixed interval. It is safe to
// call Start and Stop from different goroutines; ticks never overlap.
type Scheduler struct {
	tasks     TaskStore
	settings  SettingsStore
	reminders ReminderRepository
	notifier  notify.Notifier
	clock     clock.Clock
	cfg       Config

	tickMu sync.Mutex

	mu      sync.Mutex
	running bool
	cancel  context.CancelFunc
	done    chan struct{}
}

func New(deps Deps, cfg Config) *Scheduler {
	clk := deps.Clock
	if clk == nil {
		clk = clock.New()
	}
	return &Scheduler{
		tasks:     deps.Tasks,
		settings:  deps.Settings,
		reminders: deps.Reminders,
		notifier:  deps.Notifier,
		clock:     clk,
		cfg:       cfg.withDefaults(),
	}
}

// Start runs the loop in a background goroutine until ctx is cancelled or
// Stop is called.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return ErrAlreadyRunning
	}
	runCtx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	s.running = true
	s.cancel = cancel
	s.done = done

	go func() {
		defer close(done)
		if err := s.Run(runCtx); err != nil {
			logger.Error("reminder scheduler stopped", "error", err)
		}
		s.mu.Lock()
		if s.done == done {
			s.running = false
		}
		s.mu.Unlock()
	}()
	return nil
}

// Stop cancels the loop and waits for the in-flight tick to finish.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	cancel, done := s.cancel, s.done
	s.running = false
	s.mu.Unlock()
	if cancel == nil {
		return
	}
	cancel()
	<-done
}

// Run ticks immediately and then every TickInterval until ctx is done.
// Cancellation is only observed between ticks.
func (s *Scheduler) Run(ctx context.Context) error {
	logger.Info("reminder scheduler started", "tick_interval", s.cfg.TickInterval, "batch_limit", s.cfg.BatchLimit)
	defer logger.Info("reminder scheduler stopped")

	timer := s.clock.NewTimer(s.cfg.TickInterval)
	defer timer.Stop()

	for {
		report := s.Tick(ctx)
		logger.Debug("reminder tick finished",
			"deadline_created", report.DeadlineCreated,
			"overdue_created", report.OverdueCreated,
			"digests_sent", report.DigestsSent,
			"sent", report.Sent,
			"failed", report.Failed,
			"purged", report.Purged,
		)
		select {
		case <-ctx.Done():
			return nil
		case <-timer.C:
			timer.Reset(s.cfg.TickInterval)
		}
	}
}

// Tick runs every phase once. The phases run on a context that outlives
// cancellation of ctx, so a tick in progress is always completed.
func (s *Scheduler) Tick(ctx context.Context) TickReport {
	s.tickMu.Lock()
	defer s.tickMu.Unlock()

	ctx = context.WithoutCancel(ctx)
	var report TickReport
	s.runPhase(ctx, "deadline", &report, s.createDeadlineReminders)
	s.runPhase(ctx, "overdue", &report, s.createOverdueReminders)
	s.runPhase(ctx, "digest", &report, s.sendDigests)
	s.runPhase(ctx, "dispatch", &report, s.dispatchDue)
	s.runPhase(ctx, "retention", &report, s.purgeHistory)
	return report
}

func (s *Scheduler) runPhase(ctx context.Context, name string, report *TickReport, phase func(context.Context, *TickReport) error) {
	defer func() {
		if r := recover(); r != nil {
			report.PhaseErrors++
			logger.Error("reminder phase panicked", "phase", name, "panic", fmt.Sprint(r))
		}
	}()
	if err := phase(ctx, report); err != nil {
		report.PhaseErrors++
		logger.Error("reminder phase failed", "phase", name, "error", err)
	}
}

func (s *Scheduler) now() time.Time {
	return s.clock.Now().UTC()
}
