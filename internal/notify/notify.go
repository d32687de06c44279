// Package notify delivers domain events to subscribers. Delivery is best
// effort: callers log a failed Notify and carry on.
package notify

import (
	"context"
	"errors"

	"algo-arena/internal/domain"

	"github.com/rs/zerolog/log"
)

type Notifier interface {
	Notify(ctx context.Context, ev domain.Event) error
}

// Multi fans an event out to every notifier and joins their errors.
type Multi []Notifier

func (m Multi) Notify(ctx context.Context, ev domain.Event) error {
	var errs []error
	for _, n := range m {
		if n == nil {
			continue
		}
		if err := n.Notify(ctx, ev); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Discard drops every event.
type Discard struct{}

func (Discard) Notify(context.Context, domain.Event) error { return nil }

// Send notifies and logs a failure at warn level.
func Send(ctx context.Context, n Notifier, ev domain.Event) {
	if n == nil {
		return
	}
	if err := n.Notify(ctx, ev); err != nil {
		log.Warn().Err(err).Str("event", string(ev.Type)).Str("topic", ev.Topic).Msg("notify failed")
	}
}
