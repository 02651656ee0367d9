package db

import (
	"context"
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// EnsureUser records a Telegram user, refreshing the display fields when the
// user already exists.
func EnsureUser(ctx context.Context, gdb *gorm.DB, user User) error {
	err := gdb.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "id"}},
			DoUpdates: clause.AssignmentColumns([]string{"username", "first_name"}),
		}).
		Create(&user).Error
	if err != nil {
		return fmt.Errorf("ensure user %d: %w", user.ID, err)
	}
	return nil
}
