// Package realtime bridges Postgres LISTEN/NOTIFY to in-process wallet
// subscribers. The wallet service publishes committed changes on a NOTIFY
// channel; the hub holds one dedicated connection, decodes payloads, and
// fans them out to per-user subscriber channels consumed by the SSE handler.
package realtime

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/dmitrijs2005/soundcircle/internal/logging"
	"github.com/dmitrijs2005/soundcircle/internal/server/services"
	"github.com/jackc/pgx/v5"
)

// Metrics is the subset of the metrics collector the hub reports into.
// A nil Metrics disables reporting.
type Metrics interface {
	RecordWalletEvent()
	SubscriberAdded()
	SubscriberRemoved()
	RecordDroppedDelivery()
}

const (
	reconnectDelay = 3 * time.Second

	// subscriberBuffer bounds per-subscriber queueing; a subscriber that
	// falls further behind loses events rather than stalling the hub.
	subscriberBuffer = 16
)

type Hub struct {
	dsn     string
	logger  logging.Logger
	metrics Metrics

	mu     sync.RWMutex
	subs   map[string]map[int]chan services.WalletEvent
	nextID int
}

func NewHub(dsn string, logger logging.Logger, m Metrics) *Hub {
	return &Hub{
		dsn:     dsn,
		logger:  logger.With("module", "realtime_hub"),
		metrics: m,
		subs:    make(map[string]map[int]chan services.WalletEvent),
	}
}

// Run listens for wallet notifications until ctx is canceled, reconnecting
// with a fixed delay after connection failures.
func (h *Hub) Run(ctx context.Context) error {
	for {
		err := h.listen(ctx)
		if ctx.Err() != nil {
			return nil
		}
		h.logger.Warn(ctx, "listen connection lost, reconnecting", "error", err)

		select {
		case <-time.After(reconnectDelay):
		case <-ctx.Done():
			return nil
		}
	}
}

func (h *Hub) listen(ctx context.Context) error {
	conn, err := pgx.Connect(ctx, h.dsn)
	if err != nil {
		return err
	}
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		_ = conn.Close(closeCtx)
	}()

	if _, err := conn.Exec(ctx, "listen "+services.WalletEventsChannel); err != nil {
		return err
	}

	h.logger.Info(ctx, "listening for wallet events")

	for {
		n, err := conn.WaitForNotification(ctx)
		if err != nil {
			return err
		}
		h.Dispatch(ctx, n.Payload)
	}
}

// Dispatch decodes a NOTIFY payload and fans it out to the owning user's
// subscribers. Sends are non-blocking; a full subscriber buffer drops the
// event for that subscriber only.
func (h *Hub) Dispatch(ctx context.Context, payload string) {
	var ev services.WalletEvent
	if err := json.Unmarshal([]byte(payload), &ev); err != nil {
		h.logger.Warn(ctx, "discarding malformed wallet event", "error", err)
		return
	}
	if h.metrics != nil {
		h.metrics.RecordWalletEvent()
	}

	h.mu.RLock()
	defer h.mu.RUnlock()

	for _, ch := range h.subs[ev.UserID] {
		select {
		case ch <- ev:
		default:
			if h.metrics != nil {
				h.metrics.RecordDroppedDelivery()
			}
			h.logger.Warn(ctx, "dropping wallet event for slow subscriber", "user_id", ev.UserID)
		}
	}
}

// Subscribe registers a subscriber for userID's wallet events. The returned
// cancel func must be called exactly once; afterwards the channel is closed
// and no further events arrive.
func (h *Hub) Subscribe(userID string) (<-chan services.WalletEvent, func()) {
	h.mu.Lock()
	defer h.mu.Unlock()

	id := h.nextID
	h.nextID++

	ch := make(chan services.WalletEvent, subscriberBuffer)
	if h.subs[userID] == nil {
		h.subs[userID] = make(map[int]chan services.WalletEvent)
	}
	h.subs[userID][id] = ch
	if h.metrics != nil {
		h.metrics.SubscriberAdded()
	}

	cancel := func() {
		h.mu.Lock()
		defer h.mu.Unlock()
		if _, ok := h.subs[userID][id]; !ok {
			return
		}
		delete(h.subs[userID], id)
		if len(h.subs[userID]) == 0 {
			delete(h.subs, userID)
		}
		close(ch)
		if h.metrics != nil {
			h.metrics.SubscriberRemoved()
		}
	}

	return ch, cancel
}
