package db

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"
)

// DeadlineCandidate is a pending task with a future due date whose owner
// wants deadline reminders and that has no unsent deadline reminder yet.
type DeadlineCandidate struct {
	TaskID    uint
	UserID    int64
	DueAt     time.Time
	LeadHours int
}

// OverdueTask is a pending task past its due date with no overdue_immediate
// reminder on record.
type OverdueTask struct {
	TaskID  uint
	UserID  int64
	Content string
	DueAt   time.Time
}

type DigestTask struct {
	TaskID                  uint
	Content                 string
	DueAt                   time.Time
	Priority                string
	LastOverdueNotification *time.Time
}

// TaskStore is the engine's view of the tasks table. Apart from
// MarkOverdueNotified it only reads.
type TaskStore struct {
	db        *gorm.DB
	leadHours int
}

func NewTaskStore(gdb *gorm.DB) *TaskStore {
	return &TaskStore{db: gdb, leadHours: DefaultReminderBeforeHours}
}

// WithDefaultLeadHours sets the lead time assumed for users without a
// settings row.
func (s *TaskStore) WithDefaultLeadHours(hours int) *TaskStore {
	if hours >= 1 && hours <= 24 {
		s.leadHours = hours
	}
	return s
}

func (s *TaskStore) ListDeadlineCandidates(ctx context.Context, now time.Time) ([]DeadlineCandidate, error) {
	var rows []DeadlineCandidate
	err := s.db.WithContext(ctx).
		Table("tasks").
		Select("tasks.id AS task_id, tasks.user_id, tasks.due_at, "+
			"COALESCE(reminder_settings.reminder_before_hours, ?) AS lead_hours", s.leadHours).
		Joins("LEFT JOIN reminder_settings ON reminder_settings.user_id = tasks.user_id").
		Where("tasks.status = ? AND tasks.is_deleted = ?", TaskStatusPending, false).
		Where("tasks.due_at IS NOT NULL AND tasks.due_at > ?", now.UTC()).
		Where("(reminder_settings.enable_deadline_reminders IS NULL OR reminder_settings.enable_deadline_reminders = ?)", true).
		Where("NOT EXISTS (?)", s.db.Table("reminders").Select("1").
			Where("reminders.task_id = tasks.id AND reminders.type = ? AND reminders.sent = ?", ReminderTypeDeadline, false)).
		Order("tasks.due_at ASC").
		Order("tasks.id ASC").
		Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("list deadline candidates: %w", err)
	}
	return rows, nil
}

func (s *TaskStore) ListNewOverdueTasks(ctx context.Context, now time.Time) ([]OverdueTask, error) {
	var rows []OverdueTask
	err := s.db.WithContext(ctx).
		Table("tasks").
		Select("tasks.id AS task_id, tasks.user_id, tasks.content, tasks.due_at").
		Joins("LEFT JOIN reminder_settings ON reminder_settings.user_id = tasks.user_id").
		Where("tasks.status = ? AND tasks.is_deleted = ?", TaskStatusPending, false).
		Where("tasks.due_at IS NOT NULL AND tasks.due_at < ?", now.UTC()).
		Where("(reminder_settings.enable_overdue_reminders IS NULL OR reminder_settings.enable_overdue_reminders = ?)", true).
		Where("NOT EXISTS (?)", s.db.Table("reminders").Select("1").
			Where("reminders.task_id = tasks.id AND reminders.type = ?", ReminderTypeOverdueImmediate)).
		Order("tasks.due_at ASC").
		Order("tasks.id ASC").
		Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("list new overdue tasks: %w", err)
	}
	return rows, nil
}

// ListDigestTasks returns a user's overdue pending tasks not yet included in
// a digest since dayStart.
func (s *TaskStore) ListDigestTasks(ctx context.Context, userID int64, now, dayStart time.Time) ([]DigestTask, error) {
	var rows []DigestTask
	err := s.db.WithContext(ctx).
		Table("tasks").
		Select("id AS task_id, content, due_at, priority, last_overdue_notification").
		Where("user_id = ? AND status = ? AND is_deleted = ?", userID, TaskStatusPending, false).
		Where("due_at IS NOT NULL AND due_at < ?", now.UTC()).
		Where("(last_overdue_notification IS NULL OR last_overdue_notification < ?)", dayStart.UTC()).
		Order("due_at ASC").
		Order("id ASC").
		Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("list digest tasks for user %d: %w", userID, err)
	}
	return rows, nil
}

func (s *TaskStore) MarkOverdueNotified(ctx context.Context, taskIDs []uint, now time.Time) error {
	if len(taskIDs) == 0 {
		return nil
	}
	err := s.db.WithContext(ctx).
		Model(&Task{}).
		Where("id IN ?", taskIDs).
		Update("last_overdue_notification", now.UTC()).Error
	if err != nil {
		return fmt.Errorf("update last overdue notification: %w", err)
	}
	return nil
}

// CreateTask stores a pending task. A zero priority falls back to medium.
func CreateTask(ctx context.Context, gdb *gorm.DB, userID int64, content string, dueAt *time.Time, priority string) (Task, error) {
	if priority == "" {
		priority = PriorityMedium
	}
	task := Task{
		UserID:   userID,
		Content:  content,
		Priority: priority,
		Status:   TaskStatusPending,
	}
	if dueAt != nil {
		due := dueAt.UTC()
		task.DueAt = &due
	}
	if err := gdb.WithContext(ctx).Create(&task).Error; err != nil {
		return Task{}, fmt.Errorf("create task for user %d: %w", userID, err)
	}
	return task, nil
}

func CompleteTask(ctx context.Context, gdb *gorm.DB, taskID uint, now time.Time) error {
	err := gdb.WithContext(ctx).Model(&Task{}).Where("id = ?", taskID).Updates(map[string]interface{}{
		"status":       TaskStatusCompleted,
		"completed_at": now.UTC(),
	}).Error
	if err != nil {
		return fmt.Errorf("complete task %d: %w", taskID, err)
	}
	return nil
}

func SoftDeleteTask(ctx context.Context, gdb *gorm.DB, taskID uint, now time.Time) error {
	err := gdb.WithContext(ctx).Model(&Task{}).Where("id = ?", taskID).Updates(map[string]interface{}{
		"is_deleted": true,
		"deleted_at": now.UTC(),
	}).Error
	if err != nil {
		return fmt.Errorf("delete task %d: %w", taskID, err)
	}
	return nil
}

func UpdateTaskDueDate(ctx context.Context, gdb *gorm.DB, taskID uint, dueAt *time.Time) error {
	var value interface{}
	if dueAt != nil {
		value = dueAt.UTC()
	}
	err := gdb.WithContext(ctx).Model(&Task{}).Where("id = ?", taskID).Updates(map[string]interface{}{
		"due_at":                    value,
		"last_overdue_notification": nil,
	}).Error
	if err != nil {
		return fmt.Errorf("update due date of task %d: %w", taskID, err)
	}
	return nil
}
