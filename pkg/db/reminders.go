package db

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// OverdueImmediateLead backdates overdue_immediate reminders so they are due
// on the tick that created them.
const OverdueImmediateLead = time.Minute

// RetryPolicy bounds how a reminder is retried after transient failures.
type RetryPolicy struct {
	MaxAttempts int
	BaseDelay   time.Duration
	MaxDelay    time.Duration
}

// Backoff returns the wait after the given number of failed attempts:
// BaseDelay doubled per extra attempt, capped at MaxDelay.
func (p RetryPolicy) Backoff(attempts int) time.Duration {
	if attempts < 1 {
		attempts = 1
	}
	delay := p.BaseDelay
	for i := 1; i < attempts; i++ {
		delay *= 2
		if p.MaxDelay > 0 && delay >= p.MaxDelay {
			return p.MaxDelay
		}
	}
	if p.MaxDelay > 0 && delay > p.MaxDelay {
		return p.MaxDelay
	}
	return delay
}

type ReminderRepository struct {
	db *gorm.DB
}

func NewReminderRepository(gdb *gorm.DB) *ReminderRepository {
	return &ReminderRepository{db: gdb}
}

// Create inserts a reminder unless the uniqueness indexes already hold an
// equivalent row, in which case created is false and no error is returned.
// overdue_immediate reminders are always scheduled just before now.
func (r *ReminderRepository) Create(ctx context.Context, userID int64, taskID uint, reminderType string, scheduled time.Time, now time.Time) (uint, bool, error) {
	if reminderType == ReminderTypeOverdueImmediate {
		scheduled = now.Add(-OverdueImmediateLead)
	}
	rem := Reminder{
		UserID:        userID,
		TaskID:        taskID,
		Type:          reminderType,
		ScheduledTime: scheduled.UTC(),
		CreatedAt:     now.UTC(),
	}
	res := r.db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(&rem)
	if res.Error != nil {
		return 0, false, fmt.Errorf("create %s reminder for task %d: %w", reminderType, taskID, res.Error)
	}
	if res.RowsAffected == 0 {
		return 0, false, nil
	}
	return rem.ID, true, nil
}

// ExistsUnsent and Exists are lookups for the task CRUD layer. The scheduler
// itself deduplicates through NOT EXISTS queries and the unique indexes.
func (r *ReminderRepository) ExistsUnsent(ctx context.Context, taskID uint, reminderType string) (bool, error) {
	return r.exists(ctx, r.db.Where("task_id = ? AND type = ? AND sent = ?", taskID, reminderType, false))
}

// Exists reports whether any row, sent or not, exists for the task and type.
func (r *ReminderRepository) Exists(ctx context.Context, taskID uint, reminderType string) (bool, error) {
	return r.exists(ctx, r.db.Where("task_id = ? AND type = ?", taskID, reminderType))
}

func (r *ReminderRepository) exists(ctx context.Context, scope *gorm.DB) (bool, error) {
	var count int64
	if err := scope.WithContext(ctx).Model(&Reminder{}).Count(&count).Error; err != nil {
		return false, fmt.Errorf("check reminder existence: %w", err)
	}
	return count > 0, nil
}

// ListDue returns unsent, live reminders whose time has come, oldest first.
func (r *ReminderRepository) ListDue(ctx context.Context, now time.Time, limit int) ([]DueReminder, error) {
	now = now.UTC()
	var rows []DueReminder
	err := r.db.WithContext(ctx).
		Table("reminders").
		Select("reminders.*, tasks.content AS task_content, tasks.due_at AS task_due_at, " +
			"tasks.priority AS task_priority, tasks.status AS task_status, tasks.is_deleted AS task_is_deleted").
		Joins("JOIN tasks ON tasks.id = reminders.task_id").
		Where("reminders.sent = ?", false).
		Where("reminders.dead_lettered_at IS NULL").
		Where("reminders.scheduled_time <= ?", now).
		Where("(reminders.next_attempt_at IS NULL OR reminders.next_attempt_at <= ?)", now).
		Order("reminders.scheduled_time ASC").
		Order("reminders.id ASC").
		Limit(limit).
		Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("list due reminders: %w", err)
	}
	return rows, nil
}

// MarkSent flips an unsent reminder to sent. It reports false when the row
// was already sent or no longer exists.
func (r *ReminderRepository) MarkSent(ctx context.Context, id uint, now time.Time) (bool, error) {
	res := r.db.WithContext(ctx).
		Model(&Reminder{}).
		Where("id = ? AND sent = ?", id, false).
		Updates(map[string]interface{}{
			"sent":    true,
			"sent_at": now.UTC(),
		})
	if res.Error != nil {
		return false, fmt.Errorf("mark reminder %d sent: %w", id, res.Error)
	}
	return res.RowsAffected > 0, nil
}

// RecordFailure charges one delivery attempt. The reminder is pushed back by
// the policy's backoff, or dead-lettered once MaxAttempts is reached.
func (r *ReminderRepository) RecordFailure(ctx context.Context, id uint, now time.Time, cause error, policy RetryPolicy) (bool, error) {
	var rem Reminder
	if err := r.db.WithContext(ctx).First(&rem, id).Error; err != nil {
		return false, fmt.Errorf("load reminder %d: %w", id, err)
	}
	if rem.Sent {
		return false, nil
	}

	attempts := rem.Attempts + 1
	updates := map[string]interface{}{
		"attempts": attempts,
	}
	if cause != nil {
		updates["last_error"] = cause.Error()
	}
	deadLettered := policy.MaxAttempts > 0 && attempts >= policy.MaxAttempts
	if deadLettered {
		updates["dead_lettered_at"] = now.UTC()
	} else {
		updates["next_attempt_at"] = now.Add(policy.Backoff(attempts)).UTC()
	}

	res := r.db.WithContext(ctx).Model(&Reminder{}).Where("id = ? AND sent = ?", id, false).Updates(updates)
	if res.Error != nil {
		return false, fmt.Errorf("record failure for reminder %d: %w", id, res.Error)
	}
	return deadLettered && res.RowsAffected > 0, nil
}

// PurgeSentOlderThan deletes sent reminders whose sent_at is before cutoff
// and dead-lettered reminders abandoned before cutoff. overdue_immediate rows
// of tasks that are still pending are kept: they are what stops the overdue
// notice from firing a second time.
func (r *ReminderRepository) PurgeSentOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	cutoff = cutoff.UTC()
	liveOverdueTask := r.db.Model(&Task{}).
		Select("id").
		Where("status = ? AND is_deleted = ?", TaskStatusPending, false)

	res := r.db.WithContext(ctx).
		Where("(sent = ? AND sent_at < ?) OR (dead_lettered_at IS NOT NULL AND dead_lettered_at < ?)", true, cutoff, cutoff).
		Where("NOT (type = ? AND task_id IN (?))", ReminderTypeOverdueImmediate, liveOverdueTask).
		Delete(&Reminder{})
	if res.Error != nil {
		return 0, fmt.Errorf("purge reminders before %s: %w", cutoff.Format(time.RFC3339), res.Error)
	}
	return res.RowsAffected, nil
}

// DeleteForTask removes every reminder of a task, sent or not.
func (r *ReminderRepository) DeleteForTask(ctx context.Context, taskID uint) (int64, error) {
	res := r.db.WithContext(ctx).Where("task_id = ?", taskID).Delete(&Reminder{})
	if res.Error != nil {
		return 0, fmt.Errorf("delete reminders for task %d: %w", taskID, res.Error)
	}
	return res.RowsAffected, nil
}
