// pkg/db/models.go
package db

import (
	"time"
)

const (
	TaskStatusPending   = "pending"
	TaskStatusCompleted = "completed"

	PriorityHigh   = "high"
	PriorityMedium = "medium"
	PriorityLow    = "low"

	ReminderTypeDeadline         = "deadline"
	ReminderTypeOverdueImmediate = "overdue_immediate"

	DefaultReminderBeforeHours  = 1
	DefaultDailyOverdueTime     = "09:00"
	DefaultOverdueIntervalHours = 24
)

type User struct {
	ID        int64 `gorm:"primaryKey;autoIncrement:false"` // Telegram user id
	Username  string
	FirstName string
	CreatedAt time.Time
}

type Task struct {
	ID                      uint       `gorm:"primaryKey"`
	UserID                  int64      `gorm:"index;not null"`
	Content                 string     `gorm:"not null"`
	DueAt                   *time.Time `gorm:"index"`
	Priority                string     `gorm:"not null;default:medium"`
	Status                  string     `gorm:"not null;default:pending;index"`
	CreatedAt               time.Time
	CompletedAt             *time.Time
	IsDeleted               bool `gorm:"not null;default:false"`
	DeletedAt               *time.Time
	LastOverdueNotification *time.Time
}

type Mood struct {
	ID        uint      `gorm:"primaryKey"`
	UserID    int64     `gorm:"index;not null"`
	Mood      string    `gorm:"not null"`
	Notes     string
	Date      time.Time `gorm:"type:date;not null"`
	CreatedAt time.Time
}

type ReminderSettings struct {
	UserID                       int64  `gorm:"primaryKey;autoIncrement:false"`
	EnableDeadlineReminders      bool   `gorm:"not null;default:true"`
	ReminderBeforeHours          int    `gorm:"not null;default:1"`
	EnableOverdueReminders       bool   `gorm:"not null;default:true"`
	DailyOverdueTime             string `gorm:"not null;default:'09:00'"`
	OverdueReminderIntervalHours int    `gorm:"not null;default:24"`
	CreatedAt                    time.Time
	UpdatedAt                    time.Time
}

// Reminder is one notification the engine owns. SentAt is non-nil exactly
// when Sent is true. Attempts, NextAttemptAt, LastError and DeadLetteredAt
// track transient delivery failures.
type Reminder struct {
	ID             uint      `gorm:"primaryKey"`
	UserID         int64     `gorm:"index;not null"`
	TaskID         uint      `gorm:"index;not null"`
	Type           string    `gorm:"not null;default:deadline"`
	ScheduledTime  time.Time `gorm:"not null;index"`
	Sent           bool      `gorm:"not null;default:false;index"`
	CreatedAt      time.Time
	SentAt         *time.Time
	Attempts       int `gorm:"not null;default:0"`
	NextAttemptAt  *time.Time
	LastError      string
	DeadLetteredAt *time.Time
}

// DueReminder is a Reminder joined with the task fields needed to render it.
type DueReminder struct {
	Reminder
	TaskContent   string
	TaskDueAt     *time.Time
	TaskPriority  string
	TaskStatus    string
	TaskIsDeleted bool
}

func DefaultReminderSettings(userID int64) ReminderSettings {
	return ReminderSettings{
		UserID:                       userID,
		EnableDeadlineReminders:      true,
		ReminderBeforeHours:          DefaultReminderBeforeHours,
		EnableOverdueReminders:       true,
		DailyOverdueTime:             DefaultDailyOverdueTime,
		OverdueReminderIntervalHours: DefaultOverdueIntervalHours,
	}
}
