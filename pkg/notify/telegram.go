package notify

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
	"github.com/smith3v/taskmood-bot/pkg/logger"
	"github.com/sony/gobreaker"
)

const (
	defaultBreakerMaxFailures = 5
	defaultBreakerCooldown    = time.Minute
)

// MessageSender is the subset of *bot.Bot the notifier needs.
type MessageSender interface {
	SendMessage(ctx context.Context, params *bot.SendMessageParams) (*models.Message, error)
}

type BreakerSettings struct {
	MaxFailures int
	Cooldown    time.Duration
}

// TelegramNotifier sends messages through the Bot API. Consecutive transient
// failures open a circuit breaker; while it is open Send fails fast with
// ErrUnavailable.
type TelegramNotifier struct {
	sender  MessageSender
	breaker *gobreaker.CircuitBreaker
}

func NewTelegramNotifier(sender MessageSender, settings BreakerSettings) *TelegramNotifier {
	if settings.MaxFailures <= 0 {
		settings.MaxFailures = defaultBreakerMaxFailures
	}
	if settings.Cooldown <= 0 {
		settings.Cooldown = defaultBreakerCooldown
	}
	maxFailures := uint32(settings.MaxFailures)

	breaker := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "telegram",
		MaxRequests: 1,
		Timeout:     settings.Cooldown,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= maxFailures
		},
		// A user who blocked the bot says nothing about the platform's health.
		IsSuccessful: func(err error) bool {
			return err == nil || Classify(err) == Undeliverable
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("circuit breaker state changed", "name", name, "from", from.String(), "to", to.String())
		},
	})
	return &TelegramNotifier{sender: sender, breaker: breaker}
}

func (n *TelegramNotifier) Send(ctx context.Context, userID int64, text string) (Outcome, error) {
	_, err := n.breaker.Execute(func() (interface{}, error) {
		return n.sender.SendMessage(ctx, &bot.SendMessageParams{
			ChatID:    userID,
			Text:      text,
			ParseMode: models.ParseModeHTML,
		})
	})
	if err == nil {
		return Delivered, nil
	}
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return Transient, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return Classify(err), err
}

// Classify maps a Bot API error to an Outcome. Forbidden (blocked bot,
// deactivated user) and bad request (chat not found) are permanent for the
// recipient; everything else is worth retrying.
func Classify(err error) Outcome {
	switch {
	case err == nil:
		return Delivered
	case errors.Is(err, bot.ErrorForbidden), errors.Is(err, bot.ErrorBadRequest):
		return Undeliverable
	default:
		return Transient
	}
}

// State reports the breaker state, mostly for logs and tests.
func (n *TelegramNotifier) State() string {
	return n.breaker.State().String()
}
