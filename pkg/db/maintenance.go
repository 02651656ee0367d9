package db

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
)

// CleanupPolicy holds the ages after which historical rows are removed.
type CleanupPolicy struct {
	CompletedTaskMaxAge time.Duration
	DeletedTaskMaxAge   time.Duration
	MoodMaxAge          time.Duration
	ReminderMaxAge      time.Duration
}

type CleanupResult struct {
	CompletedTasks int64
	DeletedTasks   int64
	Moods          int64
	Reminders      int64
}

func (r CleanupResult) Total() int64 {
	return r.CompletedTasks + r.DeletedTasks + r.Moods + r.Reminders
}

// CleanupOldRecords runs every cleanup step even when one fails and returns
// the joined errors. A zero max age skips its step. Reminders of removed
// tasks go with them.
func CleanupOldRecords(ctx context.Context, gdb *gorm.DB, now time.Time, policy CleanupPolicy) (CleanupResult, error) {
	var result CleanupResult
	if gdb == nil {
		return result, nil
	}
	now = now.UTC()
	var errs []error

	if policy.CompletedTaskMaxAge > 0 {
		n, err := deleteTasks(ctx, gdb, "status = ? AND completed_at < ?", TaskStatusCompleted, now.Add(-policy.CompletedTaskMaxAge))
		if err != nil {
			errs = append(errs, fmt.Errorf("completed tasks: %w", err))
		}
		result.CompletedTasks = n
	}

	if policy.DeletedTaskMaxAge > 0 {
		n, err := deleteTasks(ctx, gdb, "is_deleted = ? AND deleted_at < ?", true, now.Add(-policy.DeletedTaskMaxAge))
		if err != nil {
			errs = append(errs, fmt.Errorf("deleted tasks: %w", err))
		}
		result.DeletedTasks = n
	}

	if policy.MoodMaxAge > 0 {
		res := gdb.WithContext(ctx).Where("created_at < ?", now.Add(-policy.MoodMaxAge)).Delete(&Mood{})
		if res.Error != nil {
			errs = append(errs, fmt.Errorf("moods: %w", res.Error))
		}
		result.Moods = res.RowsAffected
	}

	if policy.ReminderMaxAge > 0 {
		n, err := NewReminderRepository(gdb).PurgeSentOlderThan(ctx, now.Add(-policy.ReminderMaxAge))
		if err != nil {
			errs = append(errs, fmt.Errorf("reminders: %w", err))
		}
		result.Reminders = n
	}

	return result, errors.Join(errs...)
}

func deleteTasks(ctx context.Context, gdb *gorm.DB, query string, args ...interface{}) (int64, error) {
	var deleted int64
	err := gdb.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		ids := tx.Model(&Task{}).Select("id").Where(query, args...)
		if err := tx.Where("task_id IN (?)", ids).Delete(&Reminder{}).Error; err != nil {
			return err
		}
		res := tx.Where(query, args...).Delete(&Task{})
		if res.Error != nil {
			return res.Error
		}
		deleted = res.RowsAffected
		return nil
	})
	return deleted, err
}
