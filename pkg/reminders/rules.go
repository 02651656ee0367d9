package reminders

import (
	"context"
	"fmt"
	"time"

	"github.com/smith3v/taskmood-bot/pkg/db"
	"github.com/smith3v/taskmood-bot/pkg/logger"
)

func leadTime(hours int) time.Duration {
	if hours < 1 || hours > 24 {
		hours = db.DefaultReminderBeforeHours
	}
	return time.Duration(hours) * time.Hour
}

// createDeadlineReminders schedules one reminder per upcoming task at
// due_at minus the owner's lead time. Tasks whose reminder time has already
// passed are skipped.
func (s *Scheduler) createDeadlineReminders(ctx context.Context, report *TickReport) error {
	now := s.now()
	candidates, err := s.tasks.ListDeadlineCandidates(ctx, now)
	if err != nil {
		return err
	}
	for _, c := range candidates {
		if c.DueAt.IsZero() {
			logger.Warn("skipping deadline candidate without due date", "task_id", c.TaskID)
			continue
		}
		scheduled := c.DueAt.Add(-leadTime(c.LeadHours))
		if !scheduled.After(now) {
			continue
		}
		_, created, err := s.reminders.Create(ctx, c.UserID, c.TaskID, db.ReminderTypeDeadline, scheduled, now)
		if err != nil {
			logger.Error("failed to create deadline reminder", "task_id", c.TaskID, "user_id", c.UserID, "error", err)
			continue
		}
		if created {
			report.DeadlineCreated++
			logger.Debug("deadline reminder created", "task_id", c.TaskID, "scheduled_time", scheduled)
		}
	}
	return nil
}

// createOverdueReminders records the one-time overdue notice for tasks that
// have just crossed their due date.
func (s *Scheduler) createOverdueReminders(ctx context.Context, report *TickReport) error {
	now := s.now()
	tasks, err := s.tasks.ListNewOverdueTasks(ctx, now)
	if err != nil {
		return err
	}
	for _, task := range tasks {
		_, created, err := s.reminders.Create(ctx, task.UserID, task.TaskID, db.ReminderTypeOverdueImmediate, now, now)
		if err != nil {
			logger.Error("failed to create overdue reminder", "task_id", task.TaskID, "user_id", task.UserID, "error", err)
			continue
		}
		if created {
			report.OverdueCreated++
			logger.Info("task became overdue", "task_id", task.TaskID, "user_id", task.UserID)
		}
	}
	return nil
}

// ScheduleForNewTask creates the deadline reminder of a freshly created task
// right away instead of waiting for the next tick. It reports whether a
// reminder was created. The task CRUD layer calls it and RescheduleTask;
// the tick does not depend on either.
func (s *Scheduler) ScheduleForNewTask(ctx context.Context, userID int64, taskID uint, dueAt *time.Time) (bool, error) {
	if dueAt == nil {
		return false, nil
	}
	settings, err := s.settings.Get(ctx, userID)
	if err != nil {
		return false, err
	}
	if !settings.EnableDeadlineReminders {
		return false, nil
	}
	now := s.now()
	scheduled := dueAt.Add(-leadTime(settings.ReminderBeforeHours))
	if !scheduled.After(now) {
		return false, nil
	}
	_, created, err := s.reminders.Create(ctx, userID, taskID, db.ReminderTypeDeadline, scheduled, now)
	if err != nil {
		return false, err
	}
	return created, nil
}

// RescheduleTask drops every reminder of an edited task, including its
// overdue marker, and schedules it again for the new due date.
func (s *Scheduler) RescheduleTask(ctx context.Context, userID int64, taskID uint, dueAt *time.Time) (bool, error) {
	if _, err := s.reminders.DeleteForTask(ctx, taskID); err != nil {
		return false, fmt.Errorf("reschedule task %d: %w", taskID, err)
	}
	return s.ScheduleForNewTask(ctx, userID, taskID, dueAt)
}
