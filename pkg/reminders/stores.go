// Package reminders turns task deadlines and overdue tasks into chat
// notifications. A Scheduler periodically creates reminder rows, sends the
// due ones through a notify.Notifier and purges old history.
package reminders

import (
	"context"
	"time"

	"github.com/smith3v/taskmood-bot/pkg/db"
)

type TaskStore interface {
	ListDeadlineCandidates(ctx context.Context, now time.Time) ([]db.DeadlineCandidate, error)
	ListNewOverdueTasks(ctx context.Context, now time.Time) ([]db.OverdueTask, error)
	ListDigestTasks(ctx context.Context, userID int64, now, dayStart time.Time) ([]db.DigestTask, error)
	MarkOverdueNotified(ctx context.Context, taskIDs []uint, now time.Time) error
}

type SettingsStore interface {
	Get(ctx context.Context, userID int64) (db.ReminderSettings, error)
	ListDigestSubscribers(ctx context.Context) ([]db.DigestSubscriber, error)
}

// ReminderRepository is implemented by *db.ReminderRepository.
type ReminderRepository interface {
	Create(ctx context.Context, userID int64, taskID uint, reminderType string, scheduled, now time.Time) (uint, bool, error)
	ListDue(ctx context.Context, now time.Time, limit int) ([]db.DueReminder, error)
	MarkSent(ctx context.Context, id uint, now time.Time) (bool, error)
	RecordFailure(ctx context.Context, id uint, now time.Time, cause error, policy db.RetryPolicy) (bool, error)
	PurgeSentOlderThan(ctx context.Context, cutoff time.Time) (int64, error)
	DeleteForTask(ctx context.Context, taskID uint) (int64, error)
}
