package reminders

import (
	"context"
	"time"

	"github.com/smith3v/taskmood-bot/pkg/logger"
	"github.com/smith3v/taskmood-bot/pkg/notify"
)

// sendDigests sends the daily overdue overview to every subscriber whose
// digest time equals the current wall-clock minute. A task is included at
// most once per local day.
func (s *Scheduler) sendDigests(ctx context.Context, report *TickReport) error {
	now := s.now()
	local := now.In(s.cfg.Location)
	current := local.Format("15:04")
	dayStart := time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, s.cfg.Location)

	subscribers, err := s.settings.ListDigestSubscribers(ctx)
	if err != nil {
		return err
	}
	for _, sub := range subscribers {
		if sub.DailyOverdueTime != current {
			continue
		}
		if s.sendDigest(ctx, sub.UserID, now, dayStart) {
			report.DigestsSent++
		}
	}
	return nil
}

func (s *Scheduler) sendDigest(ctx context.Context, userID int64, now, dayStart time.Time) bool {
	tasks, err := s.tasks.ListDigestTasks(ctx, userID, now, dayStart)
	if err != nil {
		logger.Error("failed to load digest tasks", "user_id", userID, "error", err)
		return false
	}
	if len(tasks) == 0 {
		return false
	}

	sendCtx, cancel := context.WithTimeout(ctx, s.cfg.SendTimeout)
	outcome, err := s.notifier.Send(sendCtx, userID, FormatDigest(tasks, now))
	cancel()
	if outcome != notify.Delivered {
		logger.Warn("daily digest not delivered", "user_id", userID, "outcome", outcome.String(), "error", err)
		return false
	}

	ids := make([]uint, 0, len(tasks))
	for _, task := range tasks {
		ids = append(ids, task.TaskID)
	}
	if err := s.tasks.MarkOverdueNotified(ctx, ids, now); err != nil {
		logger.Error("failed to record digest delivery", "user_id", userID, "error", err)
	}
	logger.Info("daily digest sent", "user_id", userID, "tasks", len(tasks))
	return true
}
