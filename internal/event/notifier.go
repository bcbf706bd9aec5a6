package event

import "log/slog"

// Notifier consumes engine events. Implementations must not block: they run
// inside the engine's critical section.
type Notifier interface {
	Notify(ev Event)
}

// NopNotifier discards all events.
type NopNotifier struct{}

func (NopNotifier) Notify(Event) {}

// LogNotifier writes every event to the default slog logger.
type LogNotifier struct{}

func (LogNotifier) Notify(ev Event) {
	slog.Info("engine event",
		slog.String("type", ev.GetType().String()),
		slog.String("account", ev.GetAccountID()),
		slog.Any("event", ev))
}

// FanOut forwards each event to every registered notifier.
type FanOut []Notifier

func (f FanOut) Notify(ev Event) {
	for _, n := range f {
		n.Notify(ev)
	}
}
