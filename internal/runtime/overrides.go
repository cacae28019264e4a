// Package runtime computes the restaurant's live operating state: the fixed
// opening schedule combined with the operator's transient overrides.
package runtime

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/antoniostano/sara/internal/store"
)

// ErrInvalid marks override validation failures so the admin API can answer
// 400 instead of 503.
var ErrInvalid = errors.New("invalid overrides")

const overridesKey = "overrides"

// Open-override values.
const (
	OverrideAuto   = "auto"
	OverrideOpen   = "open"
	OverrideClosed = "closed"
)

// Overrides is the single operator-set record. DeliveryEnabled and
// PickupEnabled are tri-state: nil follows the schedule, a value forces the
// channel.
type Overrides struct {
	BotEnabled           bool   `json:"bot_enabled"`
	KitchenClosed        bool   `json:"kitchen_closed"`
	PastaAvailable       bool   `json:"pasta_available"`
	DelayPastaMinutes    int    `json:"delay_pasta_minutes"`
	DelaySchotelsMinutes int    `json:"delay_schotels_minutes"`
	IsOpenOverride       string `json:"is_open_override"`
	DeliveryEnabled      *bool  `json:"delivery_enabled"`
	PickupEnabled        *bool  `json:"pickup_enabled"`
	TTLMinutes           int    `json:"ttl_minutes"`
}

// DefaultOverrides is the state without an operator record: bot on, kitchen
// open, schedule in charge.
func DefaultOverrides() Overrides {
	return Overrides{
		BotEnabled:     true,
		PastaAvailable: true,
		IsOpenOverride: OverrideAuto,
		TTLMinutes:     180,
	}
}

var validDelays = []int{0, 10, 20, 30, 45, 60}

func validDelay(n int) bool {
	for _, d := range validDelays {
		if n == d {
			return true
		}
	}
	return false
}

// Validate rejects values outside the admin contract. Nothing is snapped to
// the nearest valid value; the caller gets an error naming the offending
// field.
func (o Overrides) Validate() error {
	if !validDelay(o.DelayPastaMinutes) {
		return fmt.Errorf("%w: delay_pasta_minutes must be one of %v", ErrInvalid, validDelays)
	}
	if !validDelay(o.DelaySchotelsMinutes) {
		return fmt.Errorf("%w: delay_schotels_minutes must be one of %v", ErrInvalid, validDelays)
	}
	switch o.IsOpenOverride {
	case OverrideAuto, OverrideOpen, OverrideClosed:
	default:
		return fmt.Errorf("%w: is_open_override must be auto, open or closed", ErrInvalid)
	}
	if o.TTLMinutes < 1 || o.TTLMinutes > 720 {
		return fmt.Errorf("%w: ttl_minutes must be between 1 and 720", ErrInvalid)
	}
	return nil
}

// Store persists the overrides record under a TTL so a forgotten toggle
// expires on its own.
type Store struct {
	kv       store.KV
	defaults Overrides
}

// NewStore wires the keyed store. defaultTTL overrides the built-in default
// record lifetime when it is within the valid range.
func NewStore(kv store.KV, defaultTTL int) *Store {
	defaults := DefaultOverrides()
	if defaultTTL >= 1 && defaultTTL <= 720 {
		defaults.TTLMinutes = defaultTTL
	}
	return &Store{kv: kv, defaults: defaults}
}

// Defaults returns the record used when no override is stored.
func (s *Store) Defaults() Overrides { return s.defaults }

// Get returns the current overrides. Absent records, expired records, store
// errors and JSON damage all fall back to the defaults; the bool reports
// whether a stored record was used.
func (s *Store) Get(ctx context.Context) (Overrides, bool) {
	raw, err := s.kv.Get(ctx, overridesKey)
	if err != nil {
		return s.defaults, false
	}
	o := s.defaults
	if err := json.Unmarshal([]byte(raw), &o); err != nil {
		return s.defaults, false
	}
	return o, true
}

// Put validates and writes the record with expiry ttl_minutes from now.
func (s *Store) Put(ctx context.Context, o Overrides) error {
	if err := o.Validate(); err != nil {
		return err
	}
	raw, err := json.Marshal(o)
	if err != nil {
		return fmt.Errorf("encode overrides: %w", err)
	}
	ttl := time.Duration(o.TTLMinutes) * time.Minute
	if err := s.kv.Set(ctx, overridesKey, string(raw), ttl); err != nil {
		return fmt.Errorf("save overrides: %w", err)
	}
	return nil
}
