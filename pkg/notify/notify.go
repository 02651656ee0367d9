// Package notify delivers rendered reminder text to a user.
package notify

import (
	"context"
	"errors"
)

// Outcome classifies a delivery attempt.
type Outcome int

const (
	// Delivered means the chat platform accepted the message.
	Delivered Outcome = iota
	// Undeliverable means the recipient can never be reached, for example
	// because the user blocked the bot. Retrying is pointless.
	Undeliverable
	// Transient covers network errors, rate limiting and timeouts.
	Transient
)

func (o Outcome) String() string {
	switch o {
	case Delivered:
		return "delivered"
	case Undeliverable:
		return "undeliverable"
	case Transient:
		return "transient"
	default:
		return "unknown"
	}
}

// ErrUnavailable is returned with a Transient outcome when the notifier
// refuses to call the platform at all because its circuit breaker is open.
var ErrUnavailable = errors.New("notifier unavailable")

// Notifier sends one HTML-formatted message to a user's private chat.
type Notifier interface {
	Send(ctx context.Context, userID int64, text string) (Outcome, error)
}
