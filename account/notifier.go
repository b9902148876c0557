package account

import "github.com/rs/zerolog"

// Event names a completed account mutation.
type Event string

const (
	EventRegistered      Event = "registered"
	EventPasswordChanged Event = "password_changed"
	EventEmailChanged    Event = "email_changed"
)

// Notifier receives post-mutation messages. Delivery is fire-and-forget:
// the service dispatches on a separate goroutine and never blocks on or
// inspects the outcome.
type Notifier interface {
	Notify(identityID string, event Event, message string)
}

// NopNotifier discards all notifications.
type NopNotifier struct{}

func (NopNotifier) Notify(string, Event, string) {}

// LogNotifier writes notifications to a logger. Useful as a default until
// a real flash-message or mail collaborator is wired in.
type LogNotifier struct {
	Logger zerolog.Logger
}

func (n LogNotifier) Notify(identityID string, event Event, message string) {
	n.Logger.Info().
		Str("identity_id", identityID).
		Str("event", string(event)).
		Msg(message)
}
