package eventbus

import (
	"context"

	"github.com/alanyang/nlq-bench/internal/domain/event"
)

type Handler func(ctx context.Context, e event.Event)

type Subscription interface {
	Unsubscribe()
}

// EventBus fans run and instruction events out to subscribers of a channel.
// [LSP] The Postgres LISTEN/NOTIFY bus and the in-process bus are both valid.
type EventBus interface {
	Publish(ctx context.Context, e event.Event) error
	Subscribe(ctx context.Context, ch event.Channel, handler Handler) (Subscription, error)
}
