package handlers

import (
	"context"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
	"github.com/smith3v/taskmood-bot/pkg/logger"
)

func DefaultHandler(ctx context.Context, b *bot.Bot, update *models.Update) {
	if update == nil || update.Message == nil {
		logger.Debug("ignoring update without message in defaultHandler")
		return
	}
	if update.Message.Chat.ID == 0 {
		logger.Error("chat ID is zero in defaultHandler")
		return
	}

	_, err := b.SendMessage(ctx, &bot.SendMessageParams{
		ChatID: update.Message.Chat.ID,
		Text: "Commands:\n" +
			"• /start: register and enable reminders.\n\n" +
			"You will get a reminder before each task deadline, a notice when a task becomes overdue " +
			"and a daily digest of overdue tasks.",
	})
	if err != nil {
		logger.Error("failed to send message in defaultHandler", "error", err)
	}
}
