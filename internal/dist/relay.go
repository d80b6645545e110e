package dist

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"log/slog"
	"strings"
	"time"

	"tickerhub/internal/logger"
	"tickerhub/internal/model"
	"tickerhub/internal/newhigh"
	"tickerhub/internal/notification"

	goredis "github.com/go-redis/redis/v8"
)

// NewHighEvent is the payload synthesized on newhigh:update.
type NewHighEvent struct {
	Symbol string `json:"symbol"`
	newhigh.State
}

// Relay subscribes to the store's pub/sub channels and forwards every
// message to the WebSocket broadcaster. Coarse bar closes additionally
// advance the new-high tracker and synthesize newhigh:update events.
type Relay struct {
	rdb         *goredis.Client
	store       Store
	broadcaster *Broadcaster
	tracker     *Tracker

	notifier       notification.Notifier
	alertThreshold int
	lastAlertDay   map[string]string

	// Metrics hooks (optional)
	OnRelayed func()
	OnNewHigh func()
}

// NewRelay creates a Relay. notifier may be nil; alertThreshold <= 0
// disables new-high alerts.
func NewRelay(rdb *goredis.Client, store Store, broadcaster *Broadcaster, tracker *Tracker, notifier notification.Notifier, alertThreshold int) *Relay {
	return &Relay{
		rdb:            rdb,
		store:          store,
		broadcaster:    broadcaster,
		tracker:        tracker,
		notifier:       notifier,
		alertThreshold: alertThreshold,
		lastAlertDay:   make(map[string]string),
	}
}

// Run starts both subscription loops and blocks until ctx is cancelled.
func (r *Relay) Run(ctx context.Context) {
	go r.runPattern(ctx)
	r.runExplicit(ctx)
}

// runPattern routes the symbol-keyed channels.
func (r *Relay) runPattern(ctx context.Context) {
	pubsub := r.rdb.PSubscribe(ctx, "bar:*", "position:*")
	defer pubsub.Close()

	log.Printf("[dist] psubscribed to bar:*, position:*")

	ch := pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}
			r.handleMessage(ctx, msg.Channel, []byte(msg.Payload))
		}
	}
}

// runExplicit routes the global channels.
func (r *Relay) runExplicit(ctx context.Context) {
	pubsub := r.rdb.Subscribe(ctx, model.OrderUpdateChannel)
	defer pubsub.Close()

	log.Printf("[dist] subscribed to %s", model.OrderUpdateChannel)

	ch := pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}
			r.handleMessage(ctx, msg.Channel, []byte(msg.Payload))
		}
	}
}

func (r *Relay) handleMessage(ctx context.Context, channel string, payload []byte) {
	if r.OnRelayed != nil {
		r.OnRelayed()
	}
	r.broadcaster.Broadcast(channel, payload)

	if isCoarseClose(channel) {
		r.onCoarseClose(ctx, payload)
	}
	if channel == model.OrderUpdateChannel {
		r.onOrderUpdate(ctx, payload)
	}
}

// onOrderUpdate surfaces order-subsystem failures as alerts. The event
// itself has already been relayed verbatim.
func (r *Relay) onOrderUpdate(ctx context.Context, payload []byte) {
	var ev model.OrderEvent
	if err := json.Unmarshal(payload, &ev); err != nil {
		log.Printf("[dist] order event parse error: %v", err)
		return
	}
	log.Printf("[dist] order %s: %s", ev.Symbol, ev.State)

	if r.notifier == nil {
		return
	}
	switch ev.State {
	case "rejected", "denied":
		alert := notification.Alert{
			Level:   notification.AlertWarning,
			Title:   fmt.Sprintf("%s order %s", ev.Symbol, ev.State),
			Message: fmt.Sprintf("qty %.2f at %.2f: %s", ev.Quantity, ev.Price, ev.Reason),
		}
		if err := r.notifier.Send(ctx, alert); err != nil {
			slog.Error("alert send failed", "symbol", ev.Symbol, "err", err)
		}
	}
}

// isCoarseClose matches finalized coarse bar channels, not the intrabar
// tick variant.
func isCoarseClose(channel string) bool {
	return strings.HasPrefix(channel, "bar:"+model.TFCoarse+":") &&
		!strings.HasPrefix(channel, "bar:"+model.TFCoarse+":tick:")
}

// onCoarseClose advances the new-high tracker and synthesizes the
// newhigh:update event for store subscribers and WS clients.
func (r *Relay) onCoarseClose(ctx context.Context, payload []byte) {
	var bar model.Bar
	if err := json.Unmarshal(payload, &bar); err != nil {
		log.Printf("[dist] coarse close parse error: %v", err)
		return
	}

	state, err := r.tracker.Update(ctx, bar)
	if err != nil {
		log.Printf("[dist] tracker update error for %s: %v", bar.Symbol, err)
		return
	}

	event, _ := json.Marshal(NewHighEvent{Symbol: bar.Symbol, State: state})
	if err := r.store.Publish(ctx, model.NewHighChannel, event); err != nil {
		log.Printf("[dist] newhigh publish error: %v", err)
	}
	r.broadcaster.Broadcast(model.NewHighChannel, event)
	if r.OnNewHigh != nil {
		r.OnNewHigh()
	}

	r.maybeAlert(ctx, bar.Symbol, state)
}

// maybeAlert fires the webhook once per symbol per day when the streak
// reaches the configured threshold.
func (r *Relay) maybeAlert(ctx context.Context, symbol string, state newhigh.State) {
	if r.notifier == nil || r.alertThreshold <= 0 || state.Count < r.alertThreshold {
		return
	}
	if r.lastAlertDay[symbol] == state.DayKey {
		return
	}
	r.lastAlertDay[symbol] = state.DayKey

	ctx = logger.WithTraceID(ctx, logger.GenerateTraceID(symbol, time.Now()))
	alert := notification.Alert{
		Level: notification.AlertInfo,
		Title: fmt.Sprintf("%s new-high streak %d", symbol, state.Count),
		Message: fmt.Sprintf("%s has closed %d consecutive new highs (running high %.4f) on %s",
			symbol, state.Count, state.RunningHigh, state.DayKey),
	}
	if err := r.notifier.Send(ctx, alert); err != nil {
		slog.Error("alert send failed", append([]any{"symbol", symbol, "err", err}, logger.LogWithTrace(ctx)...)...)
	}
}
