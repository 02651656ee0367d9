package handlers

import (
	"context"
	"fmt"
	"html"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
	"github.com/smith3v/taskmood-bot/pkg/config"
	"github.com/smith3v/taskmood-bot/pkg/db"
	"github.com/smith3v/taskmood-bot/pkg/logger"
)

// HandleStart registers the sender and materializes their reminder settings.
func HandleStart(ctx context.Context, b *bot.Bot, update *models.Update) {
	if update == nil || update.Message == nil || update.Message.From == nil || update.Message.Chat.ID == 0 {
		logger.Error("invalid update in HandleStart")
		return
	}
	from := update.Message.From

	if err := db.EnsureUser(ctx, db.DB, db.User{
		ID:        from.ID,
		Username:  from.Username,
		FirstName: from.FirstName,
	}); err != nil {
		logger.Error("failed to register user", "user_id", from.ID, "error", err)
		sendStartFailure(ctx, b, update.Message.Chat.ID)
		return
	}

	rc := config.AppConfig.Reminders
	settings, err := db.NewSettingsStore(db.DB).
		WithDefaults(rc.DefaultLeadHours, rc.DefaultDigestTime).
		Get(ctx, from.ID)
	if err != nil {
		logger.Error("failed to load reminder settings", "user_id", from.ID, "error", err)
		sendStartFailure(ctx, b, update.Message.Chat.ID)
		return
	}

	name := from.FirstName
	if name == "" {
		name = "there"
	}
	_, err = b.SendMessage(ctx, &bot.SendMessageParams{
		ChatID:    update.Message.Chat.ID,
		Text:      welcomeText(name, settings),
		ParseMode: models.ParseModeHTML,
	})
	if err != nil {
		logger.Error("failed to send welcome message", "user_id", from.ID, "error", err)
	}
}

func welcomeText(name string, settings db.ReminderSettings) string {
	text := fmt.Sprintf("👋 Welcome, <b>%s</b>!\n\n", html.EscapeString(name))
	if settings.EnableDeadlineReminders {
		text += fmt.Sprintf("⏰ I will remind you about tasks %d h before they are due.\n", settings.ReminderBeforeHours)
	} else {
		text += "⏰ Deadline reminders are off.\n"
	}
	if settings.EnableOverdueReminders {
		text += fmt.Sprintf("🌅 Overdue tasks are summarized daily at %s.", settings.DailyOverdueTime)
	} else {
		text += "🌅 Overdue reminders are off."
	}
	return text
}

func sendStartFailure(ctx context.Context, b *bot.Bot, chatID int64) {
	b.SendMessage(ctx, &bot.SendMessageParams{
		ChatID: chatID,
		Text:   "Failed to set up your account. Please try again later.",
	})
}
