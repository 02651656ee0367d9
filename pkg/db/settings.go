package db

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// DigestSubscriber is a user with a settings row and overdue reminders on.
type DigestSubscriber struct {
	UserID           int64
	DailyOverdueTime string
}

type SettingsStore struct {
	db         *gorm.DB
	leadHours  int
	digestTime string
}

func NewSettingsStore(gdb *gorm.DB) *SettingsStore {
	return &SettingsStore{db: gdb, leadHours: DefaultReminderBeforeHours, digestTime: DefaultDailyOverdueTime}
}

// WithDefaults overrides the lead time and digest time given to users whose
// settings row is created or repaired by this store.
func (s *SettingsStore) WithDefaults(leadHours int, digestTime string) *SettingsStore {
	if leadHours >= 1 && leadHours <= 24 {
		s.leadHours = leadHours
	}
	if ValidClockTime(digestTime) {
		s.digestTime = digestTime
	}
	return s
}

// Get returns the user's reminder settings, creating the default row on first
// access. Out-of-range values read from storage are coerced to defaults.
func (s *SettingsStore) Get(ctx context.Context, userID int64) (ReminderSettings, error) {
	defaults := DefaultReminderSettings(userID)
	defaults.ReminderBeforeHours = s.leadHours
	defaults.DailyOverdueTime = s.digestTime
	if err := s.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(&defaults).Error; err != nil {
		return ReminderSettings{}, fmt.Errorf("create default settings for user %d: %w", userID, err)
	}

	var settings ReminderSettings
	if err := s.db.WithContext(ctx).Where("user_id = ?", userID).First(&settings).Error; err != nil {
		return ReminderSettings{}, fmt.Errorf("load settings for user %d: %w", userID, err)
	}
	return s.normalize(settings), nil
}

// Save writes every column, so disabling a flag persists.
func (s *SettingsStore) Save(ctx context.Context, settings ReminderSettings) error {
	settings = s.normalize(settings)
	settings.UpdatedAt = time.Now().UTC()
	err := s.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "user_id"}},
			DoUpdates: clause.AssignmentColumns([]string{
				"enable_deadline_reminders",
				"reminder_before_hours",
				"enable_overdue_reminders",
				"daily_overdue_time",
				"overdue_reminder_interval_hours",
				"updated_at",
			}),
		}).
		Select("*").
		Create(&settings).Error
	if err != nil {
		return fmt.Errorf("save settings for user %d: %w", settings.UserID, err)
	}
	return nil
}

func (s *SettingsStore) ListDigestSubscribers(ctx context.Context) ([]DigestSubscriber, error) {
	var rows []DigestSubscriber
	err := s.db.WithContext(ctx).
		Model(&ReminderSettings{}).
		Select("user_id, daily_overdue_time").
		Where("enable_overdue_reminders = ?", true).
		Order("user_id ASC").
		Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("list digest subscribers: %w", err)
	}
	for i := range rows {
		if !ValidClockTime(rows[i].DailyOverdueTime) {
			rows[i].DailyOverdueTime = s.digestTime
		}
	}
	return rows, nil
}

func (s *SettingsStore) normalize(settings ReminderSettings) ReminderSettings {
	if settings.ReminderBeforeHours < 1 || settings.ReminderBeforeHours > 24 {
		settings.ReminderBeforeHours = s.leadHours
	}
	if !ValidClockTime(settings.DailyOverdueTime) {
		settings.DailyOverdueTime = s.digestTime
	}
	if settings.OverdueReminderIntervalHours <= 0 {
		settings.OverdueReminderIntervalHours = DefaultOverdueIntervalHours
	}
	return settings
}

// ValidClockTime reports whether value is a zero-padded 24h "HH:MM".
func ValidClockTime(value string) bool {
	if len(value) != 5 {
		return false
	}
	_, err := time.Parse("15:04", value)
	return err == nil
}
