// pkg/db/repository.go
package db

import (
	"strconv"
	"time"

	"github.com/smith3v/taskmood-bot/pkg/config"
	"github.com/smith3v/taskmood-bot/pkg/logger"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

// Export DB variable
var DB *gorm.DB

func InitDB(cfg config.DatabaseConfig) error {
	gormLogger, gormErr := newGormLogger(config.AppConfig.Logging.GormLevel)
	if gormErr != nil {
		logger.Error("invalid gorm log level", "value", config.AppConfig.Logging.GormLevel, "error", gormErr)
	}
	gdb, err := gorm.Open(dialector(cfg), &gorm.Config{Logger: gormLogger, NowFunc: utcNow})
	if err != nil {
		logger.Error("failed to connect to database", "driver", cfg.Driver, "error", err)
		return err
	}
	if err := Migrate(gdb); err != nil {
		logger.Error("failed to migrate database", "error", err)
		return err
	}
	DB = gdb
	return nil
}

func dialector(cfg config.DatabaseConfig) gorm.Dialector {
	if cfg.Driver == "sqlite" {
		return sqlite.Open(cfg.Path)
	}
	dsn := "host=" + cfg.Host +
		" user=" + cfg.User +
		" password=" + cfg.Password +
		" dbname=" + cfg.DBName +
		" port=" + strconv.Itoa(cfg.Port) +
		" sslmode=" + cfg.SSLMode
	return postgres.Open(dsn)
}

func utcNow() time.Time {
	return time.Now().UTC()
}

// Migrate creates or updates every table and the reminder uniqueness indexes.
func Migrate(gdb *gorm.DB) error {
	if err := gdb.AutoMigrate(&User{}, &Task{}, &Mood{}, &ReminderSettings{}, &Reminder{}); err != nil {
		return err
	}
	return migrateReminderIndexes(gdb)
}

// migrateReminderIndexes makes reminder creation safe without a prior
// existence check: one unsent row per (task, type), and one overdue_immediate
// row per task for its whole lifetime.
func migrateReminderIndexes(gdb *gorm.DB) error {
	if gdb == nil {
		return nil
	}
	if err := gdb.Exec(`
CREATE UNIQUE INDEX IF NOT EXISTS idx_reminders_unsent_task_type
ON reminders (task_id, type)
WHERE sent = false
`).Error; err != nil {
		return err
	}
	return gdb.Exec(`
CREATE UNIQUE INDEX IF NOT EXISTS idx_reminders_overdue_once
ON reminders (task_id)
WHERE type = 'overdue_immediate'
`).Error
}
