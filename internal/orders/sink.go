package orders

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"math"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/antoniostano/sara/internal/observability"
	"github.com/antoniostano/sara/internal/store"
)

const (
	orderKeyPrefix = "order:"
	orderIndexKey  = "orders:index"

	// Keyed order copies serve the admin list; the logbook is forever.
	orderTTL = 7 * 24 * time.Hour
)

// Sink records finalised orders.
type Sink struct {
	kv      store.KV
	log     *Logbook
	feed    *Feed
	metrics *observability.Metrics
}

// NewSink wires the sink. log may be nil in tests; feed and metrics are
// optional.
func NewSink(kv store.KV, logbook *Logbook, feed *Feed, metrics *observability.Metrics) *Sink {
	return &Sink{kv: kv, log: logbook, feed: feed, metrics: metrics}
}

// Record assigns identity to the order, appends it to the durable log and
// best-effort copies it into the keyed store and onto the live feed. Only a
// logbook failure fails the call; an unreachable keyed store must not lose
// the order.
func (s *Sink) Record(ctx context.Context, o Order) (Order, error) {
	if o.OrderID == "" {
		o.OrderID = uuid.NewString()
	}
	if o.CreatedAt.IsZero() {
		o.CreatedAt = time.Now().UTC()
	}
	o.Total = math.Round(o.Total*100) / 100

	if s.log != nil {
		if err := s.log.Append(o); err != nil {
			return o, fmt.Errorf("record order %s: %w", o.OrderID, err)
		}
	}

	raw, err := json.Marshal(o)
	if err != nil {
		return o, fmt.Errorf("encode order %s: %w", o.OrderID, err)
	}
	if err := s.kv.Set(ctx, orderKeyPrefix+o.OrderID, string(raw), orderTTL); err != nil {
		log.Printf("orders: keyed copy of %s failed: %v", o.OrderID, err)
		if s.metrics != nil {
			s.metrics.StoreErrors.WithLabelValues("order_set").Inc()
		}
	} else if err := s.kv.HSet(ctx, orderIndexKey, o.OrderID, o.CreatedAt.UTC().Format(time.RFC3339)); err != nil {
		log.Printf("orders: index entry for %s failed: %v", o.OrderID, err)
		if s.metrics != nil {
			s.metrics.StoreErrors.WithLabelValues("order_index").Inc()
		}
	}

	if s.metrics != nil {
		s.metrics.Orders.WithLabelValues(o.Fulfilment).Inc()
	}
	if s.feed != nil {
		s.feed.Publish(Event{Type: EventOrder, At: o.CreatedAt, Order: &o})
	}
	return o, nil
}

// Recent returns up to limit orders, newest first, from the keyed store.
// Orders whose keyed copy already expired are skipped.
func (s *Sink) Recent(ctx context.Context, limit int) ([]Order, error) {
	idx, err := s.kv.HGetAll(ctx, orderIndexKey)
	if err != nil {
		return nil, fmt.Errorf("read order index: %w", err)
	}
	type entry struct{ id, created string }
	entries := make([]entry, 0, len(idx))
	for id, created := range idx {
		entries = append(entries, entry{id, created})
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].created > entries[j].created })

	if limit <= 0 {
		limit = 20
	}
	out := make([]Order, 0, limit)
	for _, e := range entries {
		if len(out) == limit {
			break
		}
		raw, err := s.kv.Get(ctx, orderKeyPrefix+e.id)
		if err != nil {
			continue
		}
		var o Order
		if err := json.Unmarshal([]byte(raw), &o); err != nil {
			continue
		}
		out = append(out, o)
	}
	return out, nil
}
