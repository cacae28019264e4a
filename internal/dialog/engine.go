// Package dialog drives the ordering conversation. Each provider callback
// becomes one turn: load the call session, apply the utterance to the
// current state, answer with prompt texts and the next state.
package dialog

import (
	"context"
	"log"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/antoniostano/sara/internal/customers"
	"github.com/antoniostano/sara/internal/delivery"
	"github.com/antoniostano/sara/internal/dutch"
	"github.com/antoniostano/sara/internal/menu"
	"github.com/antoniostano/sara/internal/observability"
	"github.com/antoniostano/sara/internal/orders"
	"github.com/antoniostano/sara/internal/prompts"
	"github.com/antoniostano/sara/internal/runtime"
	"github.com/antoniostano/sara/internal/session"
)

// Turn is the outcome of one utterance: the texts to speak, in order, and
// the state the call moves to.
type Turn struct {
	Messages []string
	Next     string
}

// Ended reports whether the call flow is finished.
func (t Turn) Ended() bool { return t.Next == session.StateEnd }

// Config wires the engine's collaborators.
type Config struct {
	Sessions  *session.Store
	Menu      *menu.Index
	Delivery  delivery.Config
	Customers *customers.Directory
	Prompts   *prompts.Catalog
	Sink      *orders.Sink
	Metrics   *observability.Metrics
}

// Engine is the dialogue state machine. It is deterministic in the session,
// the utterance and the runtime status; even ETAs derive from the status
// timestamp rather than the wall clock.
type Engine struct {
	sessions  *session.Store
	menu      *menu.Index
	delivery  delivery.Config
	customers *customers.Directory
	prompts   *prompts.Catalog
	sink      *orders.Sink
	metrics   *observability.Metrics
}

func NewEngine(cfg Config) *Engine {
	m := cfg.Menu
	if m == nil {
		m = menu.Empty()
	}
	p := cfg.Prompts
	if p == nil {
		p = prompts.Empty()
	}
	return &Engine{
		sessions:  cfg.Sessions,
		menu:      m,
		delivery:  cfg.Delivery,
		customers: cfg.Customers,
		prompts:   p,
		sink:      cfg.Sink,
		metrics:   cfg.Metrics,
	}
}

var startOrderPhrases = []string{"ik wil bestellen", "bestelling plaatsen", "mag ik wat bestellen"}

// Handle advances the call by one turn. The caller has already verified the
// restaurant is open and the bot enabled; st only feeds delays into ETAs.
func (e *Engine) Handle(ctx context.Context, callID, utterance string, st runtime.Status) Turn {
	started := time.Now()
	s := e.sessions.Get(ctx, callID)
	norm := dutch.Normalize(utterance)
	capturePayment(s, norm)

	turn := e.advance(ctx, callID, s, norm, st)

	if e.metrics != nil {
		e.metrics.CallTurns.WithLabelValues(turn.Next).Inc()
		e.metrics.ObserveTurn(time.Since(started))
	}
	return turn
}

func (e *Engine) advance(ctx context.Context, callID string, s *session.Session, norm string, st runtime.Status) Turn {
	out := func(next string, msgs ...string) Turn {
		s.State = next
		e.save(ctx, callID, s)
		return Turn{Messages: compact(msgs), Next: next}
	}

	if s.State == session.StateGreet {
		return out(session.StateAskItems, e.prompts.Get("ask_items"))
	}

	for _, phrase := range startOrderPhrases {
		if strings.Contains(norm, phrase) {
			return out(session.StateAskItems, e.prompts.Get("reply_start_order"))
		}
	}

	switch s.State {
	case session.StateAskItems:
		if turn, ok := e.collect(ctx, callID, s, norm); ok {
			return turn
		}
		if menu.MentionsPizza(norm) {
			return out(session.StateAskItems, e.prompts.Get("ask_pizza_which"))
		}
		return out(session.StateAskItems, e.prompts.Get("ask_items"))

	case session.StateConfirmMore:
		if dutch.YesNo(norm) == dutch.AnswerYes {
			return out(session.StateAskItems, e.prompts.Get("ask_items"))
		}
		if turn, ok := e.collect(ctx, callID, s, norm); ok {
			return turn
		}
		if dutch.YesNo(norm) == dutch.AnswerNo {
			s.Total = s.ItemsTotal()
			return out(session.StateConfirmSummary,
				e.prompts.Render("confirm_items", map[string]string{"items": s.ItemsText()}),
				e.prompts.Get("ask_items_confirm_ok"))
		}
		return out(session.StateConfirmMore, e.prompts.Get("ask_items_more"))

	case session.StateConfirmSummary:
		switch dutch.YesNo(norm) {
		case dutch.AnswerYes:
			return out(session.StateFulfilment,
				e.prompts.Render("total_after_confirm", map[string]string{"amount": euros(s.ItemsTotal())}),
				e.prompts.Get("ask_fulfilment"))
		case dutch.AnswerNo:
			s.Reset()
			return out(session.StateAskItems, e.prompts.Get("ask_items"))
		}
		return out(session.StateConfirmSummary, e.prompts.Get("ask_items_confirm_ok"))

	case session.StateFulfilment:
		if containsAny(norm, "afhaal", "afhalen", "ophalen") {
			return e.finalisePickup(ctx, callID, s, st)
		}
		if containsAny(norm, "bezorg", "thuis") {
			s.Fulfilment = session.FulfilmentDelivery
			return out(session.StatePhone, e.prompts.Get("ask_phone_for_delivery"))
		}
		return out(session.StateFulfilment, e.prompts.Get("ask_fulfilment"))

	case session.StatePhone:
		s.Customer.Tel = dutch.PhoneDigits(norm)
		if s.Customer.Tel != "" && e.customers != nil {
			if rec, ok := e.customers.Lookup(s.Customer.Tel); ok && (rec.Street != "" || rec.Postcode != "") {
				s.Customer.Street = rec.Street
				s.Customer.HouseNumber = rec.HouseNumber
				s.Customer.Postcode = rec.Postcode
				return out(session.StateCRMConfirm, e.lookupFound(s))
			}
		}
		return out(session.StateAddress, e.prompts.Get("confirm_lookup_missing"))

	case session.StateCRMConfirm:
		switch dutch.YesNo(norm) {
		case dutch.AnswerYes:
			return e.finaliseDelivery(ctx, callID, s, st)
		case dutch.AnswerNo:
			return out(session.StateAddress, e.prompts.Get("confirm_lookup_missing"))
		}
		return out(session.StateCRMConfirm, e.lookupFound(s))

	case session.StateAddress:
		pc, rest, found := dutch.CutPostcode(norm)
		if found {
			s.Customer.Postcode = pc
		} else {
			rest = norm
		}
		if hn, ok := dutch.HouseNumber(rest); ok {
			s.Customer.HouseNumber = hn
		}
		if s.Customer.Postcode != "" && s.Customer.HouseNumber != "" {
			return e.finaliseDelivery(ctx, callID, s, st)
		}
		return out(session.StateAddress, e.prompts.Get("ask_postcode_house"))
	}

	return out(session.StateAskItems, e.prompts.Get("fallback1"))
}

// collect tries to parse basket items from the utterance; ok reports whether
// anything was added.
func (e *Engine) collect(ctx context.Context, callID string, s *session.Session, norm string) (Turn, bool) {
	lines := e.menu.ParseOrder(norm)
	if len(lines) == 0 {
		return Turn{}, false
	}
	items := make([]session.Item, len(lines))
	for i, l := range lines {
		items[i] = session.Item{Code: l.Code, Name: l.Name, Price: l.Price, Qty: l.Qty, Category: l.Category}
	}
	s.Add(items...)
	last := items[len(items)-1]

	s.State = session.StateConfirmMore
	e.save(ctx, callID, s)
	return Turn{
		Messages: compact([]string{
			e.prompts.Render("item_added", map[string]string{"qty": strconv.Itoa(last.Qty), "name": last.Name}),
			e.prompts.Get("ask_items_more"),
		}),
		Next: session.StateConfirmMore,
	}, true
}

func (e *Engine) finalisePickup(ctx context.Context, callID string, s *session.Session, st runtime.Status) Turn {
	s.Fulfilment = session.FulfilmentPickup
	mins := e.delivery.SLA.PickupMinutes
	if s.Combo() {
		mins = e.delivery.SLA.PickupComboMinutes
	}
	ready := st.Now.Add(time.Duration(mins+st.MaxDelay()) * time.Minute)

	e.writeOrder(ctx, callID, s, s.ItemsTotal(), ready)
	return e.finish(ctx, callID,
		e.prompts.Render("pickup_eta", map[string]string{"time": ready.Format("15:04")}),
		e.prompts.Get("closing_pickup"))
}

func (e *Engine) finaliseDelivery(ctx context.Context, callID string, s *session.Session, st runtime.Status) Turn {
	s.Fulfilment = session.FulfilmentDelivery
	mins := e.delivery.SLA.DeliveryMinutes + st.MaxDelay()
	ready := st.Now.Add(time.Duration(mins) * time.Minute)
	total := s.ItemsTotal() + e.delivery.FeeFor(s.Customer.Postcode)

	e.writeOrder(ctx, callID, s, total, ready)
	return e.finish(ctx, callID,
		e.prompts.Render("delivery_eta", map[string]string{"time": ready.Format("15:04")}),
		e.prompts.Render("total_after_confirm", map[string]string{"amount": euros(total)}),
		e.prompts.Get("closing_delivery"))
}

// finish stores a cleared session so a follow-up call under the same id
// starts a fresh order instead of replaying the old basket.
func (e *Engine) finish(ctx context.Context, callID string, msgs ...string) Turn {
	done := session.New()
	done.State = session.StateEnd
	e.save(ctx, callID, done)
	return Turn{Messages: compact(msgs), Next: session.StateEnd}
}

func (e *Engine) writeOrder(ctx context.Context, callID string, s *session.Session, total float64, ready time.Time) {
	if e.sink == nil || len(s.Items) == 0 {
		return
	}
	o := orders.Order{
		CallID:     callID,
		Items:      s.Items,
		Total:      total,
		Fulfilment: s.Fulfilment,
		Customer:   s.Customer,
		Payment:    s.Payment,
		EtaReadyAt: ready,
	}
	if _, err := e.sink.Record(ctx, o); err != nil {
		log.Printf("dialog: order for call %s not recorded: %v", callID, err)
	}
}

func (e *Engine) lookupFound(s *session.Session) string {
	return e.prompts.Render("confirm_lookup_found", map[string]string{
		"straat":   s.Customer.Street,
		"huisnr":   s.Customer.HouseNumber,
		"postcode": s.Customer.Postcode,
	})
}

func (e *Engine) save(ctx context.Context, callID string, s *session.Session) {
	if err := e.sessions.Save(ctx, callID, s); err != nil {
		log.Printf("dialog: session %s not saved: %v", callID, err)
		if e.metrics != nil {
			e.metrics.StoreErrors.WithLabelValues("session_save").Inc()
		}
	}
}

// capturePayment remembers a payment method whenever the caller mentions
// one, in whatever state; it is spoken of naturally rather than asked for.
func capturePayment(s *session.Session, norm string) {
	padded := " " + norm + " "
	switch {
	case strings.Contains(padded, " contant "):
		s.Payment = session.PaymentCash
	case strings.Contains(padded, " pin ") || strings.Contains(norm, "pinnen"):
		s.Payment = session.PaymentPin
	case strings.Contains(padded, " ideal "):
		s.Payment = session.PaymentIdeal
	}
}

func containsAny(s string, subs ...string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}

func euros(total float64) string {
	return strconv.Itoa(int(math.Round(total)))
}

func compact(msgs []string) []string {
	out := msgs[:0]
	for _, m := range msgs {
		if m != "" {
			out = append(out, m)
		}
	}
	return out
}
