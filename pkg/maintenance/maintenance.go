// Package maintenance runs the daily cleanup of old tasks, moods and
// reminder history on a cron schedule.
package maintenance

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-co-op/gocron/v2"
	"github.com/jmhodges/clock"
	"github.com/smith3v/taskmood-bot/pkg/config"
	"github.com/smith3v/taskmood-bot/pkg/db"
	"github.com/smith3v/taskmood-bot/pkg/logger"
	"gorm.io/gorm"
)

const jobName = "daily-cleanup"

type Options struct {
	Cron     string
	Location *time.Location
	Policy   db.CleanupPolicy
	Clock    clock.Clock
}

// OptionsFrom builds Options from config. Reminder history uses the same
// retention window as the scheduler.
func OptionsFrom(mc config.MaintenanceConfig, rc config.RemindersConfig) Options {
	day := 24 * time.Hour
	return Options{
		Cron:     mc.Cron,
		Location: rc.Location(),
		Policy: db.CleanupPolicy{
			CompletedTaskMaxAge: time.Duration(mc.CompletedTaskMaxDays) * day,
			DeletedTaskMaxAge:   time.Duration(mc.DeletedTaskMaxDays) * day,
			MoodMaxAge:          time.Duration(mc.MoodMaxDays) * day,
			ReminderMaxAge:      rc.RetentionWindow,
		},
	}
}

type Job struct {
	db        *gorm.DB
	opts      Options
	scheduler gocron.Scheduler
}

func New(gdb *gorm.DB, opts Options) (*Job, error) {
	if gdb == nil {
		return nil, errors.New("maintenance: nil database")
	}
	if opts.Cron == "" {
		return nil, errors.New("maintenance: empty cron expression")
	}
	if opts.Location == nil {
		opts.Location = time.UTC
	}
	if opts.Clock == nil {
		opts.Clock = clock.New()
	}

	s, err := gocron.NewScheduler(
		gocron.WithLocation(opts.Location),
		gocron.WithLogger(&gocronLogAdapter{}),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create scheduler: %w", err)
	}

	j := &Job{db: gdb, opts: opts, scheduler: s}
	scheduled, err := s.NewJob(
		gocron.CronJob(opts.Cron, false),
		gocron.NewTask(func() {
			if _, err := j.RunOnce(context.Background()); err != nil {
				logger.Error("maintenance run finished with errors", "error", err)
			}
		}),
		gocron.WithName(jobName),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
	)
	if err != nil {
		_ = s.Shutdown()
		return nil, fmt.Errorf("failed to schedule job %s: %w", jobName, err)
	}

	logAttrs := []any{"job_name", jobName, "cron", opts.Cron}
	if nextRun, err := scheduled.NextRun(); err == nil {
		logAttrs = append(logAttrs, "next_run", nextRun.Format(time.RFC3339))
	}
	logger.Info("maintenance job scheduled", logAttrs...)
	return j, nil
}

func (j *Job) Start() {
	j.scheduler.Start()
}

// Stop shuts the scheduler down and waits for a running cleanup.
func (j *Job) Stop() error {
	if err := j.scheduler.Shutdown(); err != nil {
		return fmt.Errorf("failed to shutdown scheduler: %w", err)
	}
	return nil
}

// RunOnce performs one cleanup pass immediately.
func (j *Job) RunOnce(ctx context.Context) (db.CleanupResult, error) {
	start := time.Now()
	result, err := db.CleanupOldRecords(ctx, j.db, j.opts.Clock.Now(), j.opts.Policy)
	logger.Info("maintenance run finished",
		"completed_tasks", result.CompletedTasks,
		"deleted_tasks", result.DeletedTasks,
		"moods", result.Moods,
		"reminders", result.Reminders,
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return result, err
}

type gocronLogAdapter struct{}

func (l *gocronLogAdapter) Debug(msg string, args ...any) {
	logger.Debug(msg, toSlogArgs(args)...)
}

func (l *gocronLogAdapter) Info(msg string, args ...any) {
	logger.Info(msg, toSlogArgs(args)...)
}

func (l *gocronLogAdapter) Warn(msg string, args ...any) {
	logger.Warn(msg, toSlogArgs(args)...)
}

func (l *gocronLogAdapter) Error(msg string, args ...any) {
	logger.Error(msg, toSlogArgs(args)...)
}

func toSlogArgs(args []any) []any {
	slogArgs := make([]any, 0, len(args))
	for i := 0; i < len(args); i += 2 {
		if i+1 < len(args) {
			key, ok := args[i].(string)
			if !ok {
				key = fmt.Sprintf("%v", args[i])
			}
			slogArgs = append(slogArgs, key, args[i+1])
		} else {
			slogArgs = append(slogArgs, "value", args[i])
		}
	}
	return slogArgs
}
