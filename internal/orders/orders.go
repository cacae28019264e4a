// Package orders records finalised orders: once in the durable order log,
// once as a short-lived keyed record for the admin surface, and once as an
// event on the live feed.
package orders

import (
	"time"

	"github.com/antoniostano/sara/internal/session"
)

// Order is the immutable result of a finalised call.
type Order struct {
	OrderID    string           `json:"order_id"`
	CallID     string           `json:"call_id"`
	Items      []session.Item   `json:"items"`
	Total      float64          `json:"total"`
	Fulfilment string           `json:"fulfilment"`
	Customer   session.Customer `json:"customer"`
	Payment    string           `json:"payment,omitempty"`
	EtaReadyAt time.Time        `json:"eta_ready_at"`
	CreatedAt  time.Time        `json:"created_at"`
}

// Event is what feed subscribers receive.
type Event struct {
	Type    string    `json:"type"`
	At      time.Time `json:"at"`
	Order   *Order    `json:"order,omitempty"`
	Payload any       `json:"payload,omitempty"`
}

// Event types.
const (
	EventOrder     = "order"
	EventOverrides = "overrides"
)
