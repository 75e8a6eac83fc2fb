package memory

import (
	"context"
	"sync"

	"github.com/alanyang/nlq-bench/internal/domain/event"
	porteventbus "github.com/alanyang/nlq-bench/internal/port/eventbus"
)

// EventBus is the in-process port/eventbus implementation used when no
// database is configured and by the CLI. Handlers run synchronously on the
// publisher's goroutine.
type EventBus struct {
	mu   sync.RWMutex
	subs map[event.Channel]map[*subscription]struct{}
}

func NewEventBus() *EventBus {
	return &EventBus{subs: make(map[event.Channel]map[*subscription]struct{})}
}

func (eb *EventBus) Publish(ctx context.Context, e event.Event) error {
	ch := event.ChannelFor(e.Type)

	eb.mu.RLock()
	handlers := make([]porteventbus.Handler, 0, len(eb.subs[ch]))
	for sub := range eb.subs[ch] {
		handlers = append(handlers, sub.handler)
	}
	eb.mu.RUnlock()

	for _, h := range handlers {
		h(ctx, e)
	}
	return nil
}

func (eb *EventBus) Subscribe(_ context.Context, ch event.Channel, handler porteventbus.Handler) (porteventbus.Subscription, error) {
	sub := &subscription{handler: handler}
	sub.cancel = func() {
		eb.mu.Lock()
		delete(eb.subs[ch], sub)
		eb.mu.Unlock()
	}

	eb.mu.Lock()
	if eb.subs[ch] == nil {
		eb.subs[ch] = make(map[*subscription]struct{})
	}
	eb.subs[ch][sub] = struct{}{}
	eb.mu.Unlock()

	return sub, nil
}

type subscription struct {
	handler porteventbus.Handler
	cancel  func()
	once    sync.Once
}

func (s *subscription) Unsubscribe() {
	s.once.Do(s.cancel)
}
