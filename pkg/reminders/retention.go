package reminders

import (
	"context"

	"github.com/smith3v/taskmood-bot/pkg/logger"
)

func (s *Scheduler) purgeHistory(ctx context.Context, report *TickReport) error {
	purged, err := s.reminders.PurgeSentOlderThan(ctx, s.now().Add(-s.cfg.RetentionWindow))
	if err != nil {
		return err
	}
	report.Purged = purged
	if purged > 0 {
		logger.Info("purged old reminders", "count", purged)
	}
	return nil
}
