package httpapi

import (
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	"github.com/antoniostano/sara/internal/dutch"
	"github.com/antoniostano/sara/internal/orders"
	"github.com/antoniostano/sara/internal/runtime"
)

func (s *Server) handleRuntimeStatus(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, s.eval.Status(r.Context()))
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	loc := s.eval.Location()
	ok := s.kv.Ping(r.Context()) == nil
	status := http.StatusOK
	if !ok {
		status = http.StatusServiceUnavailable
	}
	respondJSON(w, status, map[string]any{
		"ok":   ok,
		"time": time.Now().In(loc).Format(time.RFC3339),
		"tz":   loc.String(),
	})
}

// handleToggles replaces the override record. The body is decoded over the
// defaults, so omitted fields reset rather than stick.
func (s *Server) handleToggles(w http.ResponseWriter, r *http.Request) {
	o := s.overrides.Defaults()
	if err := decodeJSON(r, &o); err != nil && !errors.Is(err, errEmptyBody) {
		respondError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}

	ctx := r.Context()
	if err := s.overrides.Put(ctx, o); err != nil {
		if errors.Is(err, runtime.ErrInvalid) {
			respondError(w, http.StatusBadRequest, "invalid_overrides", err.Error())
		} else {
			respondError(w, http.StatusServiceUnavailable, "store_unavailable", err.Error())
		}
		return
	}

	if s.feed != nil {
		s.feed.Publish(orders.Event{Type: orders.EventOverrides, Payload: o})
	}
	respondJSON(w, http.StatusOK, s.eval.Status(ctx))
}

func (s *Server) handleOrders(w http.ResponseWriter, r *http.Request) {
	limit := 20
	if q := strings.TrimSpace(r.URL.Query().Get("limit")); q != "" {
		n, err := strconv.Atoi(q)
		if err != nil || n < 1 {
			respondError(w, http.StatusBadRequest, "invalid_limit", "limit must be a positive integer")
			return
		}
		limit = n
	}

	list, err := s.sink.Recent(r.Context(), limit)
	if err != nil {
		respondError(w, http.StatusServiceUnavailable, "store_unavailable", err.Error())
		return
	}
	if list == nil {
		list = []orders.Order{}
	}
	respondJSON(w, http.StatusOK, map[string]any{"orders": list, "count": len(list)})
}

func (s *Server) handleCRMLookup(w http.ResponseWriter, r *http.Request) {
	tel := strings.TrimSpace(r.URL.Query().Get("tel"))
	if tel == "" {
		respondError(w, http.StatusBadRequest, "missing_tel", "query parameter tel is required")
		return
	}

	resp := map[string]any{"found": false, "tel": dutch.PhoneDigits(tel)}
	if s.customers != nil {
		if rec, ok := s.customers.Lookup(tel); ok {
			resp["found"] = true
			resp["postcode"] = rec.Postcode
			resp["street"] = rec.Street
			resp["house_number"] = rec.HouseNumber
			resp["name"] = rec.Name
		}
	}
	respondJSON(w, http.StatusOK, resp)
}

func (s *Server) handleOrderSubmit(w http.ResponseWriter, r *http.Request) {
	var o orders.Order
	if err := decodeJSON(r, &o); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}
	if len(o.Items) == 0 {
		respondError(w, http.StatusBadRequest, "empty_order", "an order needs at least one item")
		return
	}

	rec, err := s.sink.Record(r.Context(), o)
	if err != nil {
		respondError(w, http.StatusServiceUnavailable, "store_unavailable", err.Error())
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"ok": true, "order_id": rec.OrderID})
}

// handleFeedWS streams order and override events to the admin dashboard.
// The socket is write-mostly; reads only consume control frames.
func (s *Server) handleFeedWS(w http.ResponseWriter, r *http.Request) {
	if s.feed == nil {
		respondError(w, http.StatusNotImplemented, "unavailable", "event feed not configured")
		return
	}
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer conn.Close()

	events, cancel := s.feed.Subscribe()
	defer func() {
		cancel()
		if s.metrics != nil {
			s.metrics.FeedClients.Set(float64(s.feed.Clients()))
		}
	}()
	if s.metrics != nil {
		s.metrics.FeedClients.Set(float64(s.feed.Clients()))
	}

	const pongWait = 120 * time.Second
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		_ = conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ping := time.NewTicker(45 * time.Second)
	defer ping.Stop()

	for {
		select {
		case <-done:
			return
		case <-r.Context().Done():
			return
		case <-ping.C:
			_ = conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case msg, ok := <-events:
			if !ok {
				return
			}
			_ = conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if err := conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
		}
	}
}
