// Package session persists the per-call conversation state between webhook
// turns. Each telephony callback loads the session, advances it one turn and
// saves it back under a two-hour lifetime.
package session

import (
	"math"
	"strconv"
	"strings"
	"time"
)

// Dialogue states stored in Session.State.
const (
	StateGreet          = "greet"
	StateAskItems       = "ask_items"
	StateConfirmMore    = "confirm_more"
	StateConfirmSummary = "confirm_summary"
	StateFulfilment     = "fulfilment"
	StatePhone          = "phone"
	StateCRMConfirm     = "crm_confirm"
	StateAddress        = "address"
	StateEnd            = "end"
)

// Fulfilment values.
const (
	FulfilmentPickup   = "pickup"
	FulfilmentDelivery = "delivery"
)

// Payment values.
const (
	PaymentCash  = "cash"
	PaymentPin   = "pin"
	PaymentIdeal = "ideal"
)

// Item is one basket position. Category rides along for the combo
// preparation-time rule.
type Item struct {
	Code     string  `json:"code"`
	Name     string  `json:"name"`
	Price    float64 `json:"price"`
	Qty      int     `json:"qty"`
	Category string  `json:"category,omitempty"`
}

// Customer is what the flow knows about the caller.
type Customer struct {
	Tel         string `json:"tel,omitempty"`
	Postcode    string `json:"postcode,omitempty"`
	Street      string `json:"street,omitempty"`
	HouseNumber string `json:"house_number,omitempty"`
}

// Session is the full per-call record.
type Session struct {
	State       string    `json:"state"`
	Items       []Item    `json:"items"`
	Total       float64   `json:"total"`
	Fulfilment  string    `json:"fulfilment,omitempty"`
	Customer    Customer  `json:"customer"`
	Payment     string    `json:"payment,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	LastTouched time.Time `json:"last_touched"`
}

// New returns a fresh session at the start of the dialogue.
func New() *Session {
	return &Session{State: StateGreet, Items: []Item{}, CreatedAt: time.Now().UTC()}
}

// Add appends basket items and keeps the running total in sync.
func (s *Session) Add(items ...Item) {
	for _, it := range items {
		if it.Qty < 1 {
			it.Qty = 1
		}
		s.Items = append(s.Items, it)
	}
	s.Total = s.ItemsTotal()
}

// Reset empties the basket after the caller rejects the summary.
func (s *Session) Reset() {
	s.Items = []Item{}
	s.Total = 0
}

// ItemsTotal is the basket sum, rounded to cents.
func (s *Session) ItemsTotal() float64 {
	var sum float64
	for _, it := range s.Items {
		sum += float64(it.Qty) * it.Price
	}
	return math.Round(sum*100) / 100
}

// ItemsText renders the basket for the spoken summary: "2× Pizza, 1× Cola".
func (s *Session) ItemsText() string {
	if len(s.Items) == 0 {
		return "geen items"
	}
	parts := make([]string, len(s.Items))
	for i, it := range s.Items {
		parts[i] = strconv.Itoa(it.Qty) + "× " + it.Name
	}
	return strings.Join(parts, ", ")
}

// Combo reports whether the basket spans at least two known categories,
// which selects the longer combined preparation time for pickup orders.
// Items without a category do not count.
func (s *Session) Combo() bool {
	seen := make(map[string]bool)
	for _, it := range s.Items {
		if it.Category != "" {
			seen[it.Category] = true
		}
	}
	return len(seen) >= 2
}
