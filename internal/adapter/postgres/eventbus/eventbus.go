package eventbus

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/alanyang/nlq-bench/internal/domain/event"
	porteventbus "github.com/alanyang/nlq-bench/internal/port/eventbus"
)

// channelPrefix keeps our NOTIFY channels apart from other tenants of the database.
const channelPrefix = "nlq_bench_"

// EventBus implements port/eventbus.EventBus over Postgres LISTEN/NOTIFY, so
// progress from a run executing in one process reaches websocket clients
// connected to another.
type EventBus struct {
	pool *pgxpool.Pool

	mu   sync.Mutex
	subs map[*subscription]struct{}
}

func New(pool *pgxpool.Pool) *EventBus {
	return &EventBus{
		pool: pool,
		subs: make(map[*subscription]struct{}),
	}
}

// Publish sends an event via Postgres NOTIFY on the domain channel for the event type.
func (eb *EventBus) Publish(ctx context.Context, e event.Event) error {
	payload, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("marshaling event: %w", err)
	}

	channel := channelName(event.ChannelFor(e.Type))
	if _, err := eb.pool.Exec(ctx, "SELECT pg_notify($1, $2)", channel, string(payload)); err != nil {
		return fmt.Errorf("publishing event on channel %s: %w", channel, err)
	}
	return nil
}

// Subscribe holds one pooled connection in LISTEN for the life of the
// subscription and invokes handler for every event on ch.
func (eb *EventBus) Subscribe(ctx context.Context, ch event.Channel, handler porteventbus.Handler) (porteventbus.Subscription, error) {
	conn, err := eb.pool.Acquire(ctx)
	if err != nil {
		return nil, fmt.Errorf("acquiring connection for LISTEN: %w", err)
	}

	channel := channelName(ch)
	if _, err := conn.Exec(ctx, "LISTEN "+channel); err != nil {
		conn.Release()
		return nil, fmt.Errorf("executing LISTEN on channel %s: %w", channel, err)
	}

	subCtx, cancel := context.WithCancel(ctx)
	sub := &subscription{bus: eb, cancel: cancel, done: make(chan struct{})}

	eb.mu.Lock()
	eb.subs[sub] = struct{}{}
	eb.mu.Unlock()

	go func() {
		defer func() {
			unlistenCtx, cancelUnlisten := context.WithTimeout(context.Background(), 5*time.Second)
			if _, err := conn.Exec(unlistenCtx, "UNLISTEN "+channel); err != nil {
				slog.Warn("eventbus: UNLISTEN failed", "channel", channel, "error", err)
			}
			cancelUnlisten()
			conn.Release()
			close(sub.done)
		}()

		for {
			notification, err := conn.Conn().WaitForNotification(subCtx)
			if err != nil {
				if subCtx.Err() != nil {
					return
				}
				slog.Warn("eventbus: wait for notification failed", "channel", channel, "error", err)
				select {
				case <-subCtx.Done():
					return
				case <-time.After(time.Second):
				}
				continue
			}

			var e event.Event
			if err := json.Unmarshal([]byte(notification.Payload), &e); err != nil {
				slog.Warn("eventbus: dropping malformed payload", "channel", channel, "error", err)
				continue
			}

			handler(subCtx, e)
		}
	}()

	return sub, nil
}

// Close ends every live subscription and waits for their listeners to exit.
func (eb *EventBus) Close() {
	eb.mu.Lock()
	subs := make([]*subscription, 0, len(eb.subs))
	for s := range eb.subs {
		subs = append(subs, s)
	}
	eb.mu.Unlock()

	for _, s := range subs {
		s.Unsubscribe()
	}
}

// channelName converts a domain Channel to a safe Postgres channel identifier.
func channelName(ch event.Channel) string {
	return channelPrefix + string(ch)
}

type subscription struct {
	bus    *EventBus
	cancel context.CancelFunc
	done   chan struct{}
	once   sync.Once
}

func (s *subscription) Unsubscribe() {
	s.once.Do(func() {
		s.cancel()
		<-s.done
		s.bus.mu.Lock()
		delete(s.bus.subs, s)
		s.bus.mu.Unlock()
	})
}
