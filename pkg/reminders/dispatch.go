package reminders

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/smith3v/taskmood-bot/pkg/db"
	"github.com/smith3v/taskmood-bot/pkg/logger"
	"github.com/smith3v/taskmood-bot/pkg/notify"
)

// dispatchDue sends the oldest due reminders, pausing PacingDelay between
// sends. It stops early, leaving the rest for the next tick, when the
// notifier reports it is unavailable.
func (s *Scheduler) dispatchDue(ctx context.Context, report *TickReport) error {
	// Retries are scheduled from the batch start so a failed reminder is due
	// again on the next tick however long this batch takes.
	batchStart := s.now()
	due, err := s.reminders.ListDue(ctx, batchStart, s.cfg.BatchLimit)
	if err != nil {
		return err
	}

	sentBefore := false
	for i, rem := range due {
		if !isLive(rem) {
			s.retire(ctx, rem, report)
			continue
		}
		if sentBefore && s.cfg.PacingDelay > 0 {
			s.clock.Sleep(s.cfg.PacingDelay)
		}
		sentBefore = true
		if !s.deliverSafely(ctx, rem, batchStart, report) {
			report.Deferred += len(due) - i
			logger.Warn("notifier unavailable, deferring remaining reminders", "remaining", len(due)-i)
			break
		}
	}
	return nil
}

func isLive(rem db.DueReminder) bool {
	return rem.TaskStatus == db.TaskStatusPending && !rem.TaskIsDeleted && rem.TaskDueAt != nil
}

// retire closes a reminder whose task was completed, deleted or lost its
// due date since the reminder was created.
func (s *Scheduler) retire(ctx context.Context, rem db.DueReminder, report *TickReport) {
	if _, err := s.reminders.MarkSent(ctx, rem.ID, s.now()); err != nil {
		logger.Error("failed to retire reminder", "reminder_id", rem.ID, "task_id", rem.TaskID, "error", err)
		return
	}
	report.Retired++
	logger.Debug("retired reminder of inactive task", "reminder_id", rem.ID, "task_id", rem.TaskID)
}

// deliverSafely keeps a panic in rendering or sending from dropping the rest
// of the batch. The panicking reminder is charged one failed attempt.
func (s *Scheduler) deliverSafely(ctx context.Context, rem db.DueReminder, batchStart time.Time, report *TickReport) (ok bool) {
	defer func() {
		r := recover()
		if r == nil {
			return
		}
		ok = true
		cause := fmt.Errorf("panic: %v", r)
		logger.Error("reminder delivery panicked", "reminder_id", rem.ID, "task_id", rem.TaskID, "panic", fmt.Sprint(r))
		s.recordFailure(ctx, rem, batchStart, cause, report)
	}()
	return s.deliver(ctx, rem, batchStart, report)
}

// deliver sends one reminder and records the outcome. It returns false only
// when the notifier refused to try.
func (s *Scheduler) deliver(ctx context.Context, rem db.DueReminder, batchStart time.Time, report *TickReport) bool {
	now := s.now()
	text, err := FormatReminder(rem, now, s.cfg.Location)
	if err != nil {
		logger.Error("failed to render reminder", "reminder_id", rem.ID, "task_id", rem.TaskID, "error", err)
		return true
	}

	sendCtx, cancel := context.WithTimeout(ctx, s.cfg.SendTimeout)
	defer cancel()
	outcome, sendErr := s.notifier.Send(sendCtx, rem.UserID, text)

	switch outcome {
	case notify.Delivered:
		if _, err := s.reminders.MarkSent(ctx, rem.ID, s.now()); err != nil {
			logger.Error("failed to mark reminder sent", "reminder_id", rem.ID, "error", err)
			return true
		}
		report.Sent++
		logger.Info("reminder sent", "reminder_id", rem.ID, "type", rem.Type, "task_id", rem.TaskID, "user_id", rem.UserID)
	case notify.Undeliverable:
		if _, err := s.reminders.MarkSent(ctx, rem.ID, s.now()); err != nil {
			logger.Error("failed to close undeliverable reminder", "reminder_id", rem.ID, "error", err)
			return true
		}
		report.Undeliverable++
		logger.Info("reminder undeliverable", "reminder_id", rem.ID, "user_id", rem.UserID, "error", sendErr)
	default:
		if errors.Is(sendErr, notify.ErrUnavailable) {
			return false
		}
		s.recordFailure(ctx, rem, batchStart, sendErr, report)
	}
	return true
}

func (s *Scheduler) recordFailure(ctx context.Context, rem db.DueReminder, batchStart time.Time, cause error, report *TickReport) {
	dead, err := s.reminders.RecordFailure(ctx, rem.ID, batchStart, cause, s.cfg.Retry)
	if err != nil {
		logger.Error("failed to record delivery failure", "reminder_id", rem.ID, "error", err)
		return
	}
	report.Failed++
	if dead {
		report.DeadLettered++
		logger.Warn("reminder dead-lettered", "reminder_id", rem.ID, "user_id", rem.UserID, "error", cause)
	} else {
		logger.Warn("reminder delivery failed, will retry", "reminder_id", rem.ID, "user_id", rem.UserID, "error", cause)
	}
}
