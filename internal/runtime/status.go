package runtime

import (
	"context"
	"time"
)

// Operating modes.
const (
	ModeOpen   = "open"
	ModeClosed = "closed"
)

// Fixed schedule, minutes since midnight local time.
const (
	openStart     = 16 * 60
	openEnd       = 22 * 60
	deliveryStart = 17 * 60
	deliveryEnd   = 21*60 + 30
)

const closedReason = "We zijn op dit moment gesloten."

// Window carries the display strings shown on dashboards; the authoritative
// schedule lives in the minute constants above.
type Window struct {
	Open     string `json:"open"`
	Delivery string `json:"delivery"`
	Close    string `json:"close"`
}

func displayWindow() Window {
	return Window{Open: "16:00", Delivery: "17:00-21:30", Close: "22:00"}
}

// Status is the computed operating state. It is derived per request and
// never stored.
type Status struct {
	Now                  time.Time `json:"now"`
	Mode                 string    `json:"mode"`
	DeliveryEnabled      bool      `json:"delivery_enabled"`
	PickupEnabled        bool      `json:"pickup_enabled"`
	KitchenClosed        bool      `json:"kitchen_closed"`
	BotEnabled           bool      `json:"bot_enabled"`
	PastaAvailable       bool      `json:"pasta_available"`
	DelayPastaMinutes    int       `json:"delay_pasta_minutes"`
	DelaySchotelsMinutes int       `json:"delay_schotels_minutes"`
	CloseReason          string    `json:"close_reason,omitempty"`
	Window               Window    `json:"window"`
}

// Open reports whether calls should be handled as orders.
func (s Status) Open() bool { return s.Mode == ModeOpen }

// MaxDelay is the kitchen delay applied to every spoken ETA.
func (s Status) MaxDelay() int {
	if s.DelayPastaMinutes > s.DelaySchotelsMinutes {
		return s.DelayPastaMinutes
	}
	return s.DelaySchotelsMinutes
}

// Evaluate computes the status for the given local-time instant. A kitchen
// emergency wins over everything; a forced open/closed wins over the clock;
// the per-channel tri-states replace the schedule only when set.
func Evaluate(now time.Time, o Overrides) Status {
	t := now.Hour()*60 + now.Minute()
	openAuto := t >= openStart && t < openEnd
	deliveryAuto := t >= deliveryStart && t < deliveryEnd
	pickupAuto := openAuto

	openNow := openAuto
	switch o.IsOpenOverride {
	case OverrideOpen:
		openNow = true
	case OverrideClosed:
		openNow = false
	}

	st := Status{
		Now:                  now,
		KitchenClosed:        o.KitchenClosed,
		BotEnabled:           o.BotEnabled,
		PastaAvailable:       o.PastaAvailable,
		DelayPastaMinutes:    o.DelayPastaMinutes,
		DelaySchotelsMinutes: o.DelaySchotelsMinutes,
		Window:               displayWindow(),
	}
	switch {
	case o.KitchenClosed:
		st.Mode = ModeClosed
	case !openNow:
		st.Mode = ModeClosed
		st.CloseReason = closedReason
	default:
		st.Mode = ModeOpen
		st.DeliveryEnabled = resolve(o.DeliveryEnabled, deliveryAuto)
		st.PickupEnabled = resolve(o.PickupEnabled, pickupAuto)
	}
	return st
}

func resolve(override *bool, auto bool) bool {
	if override != nil {
		return *override
	}
	return auto
}

// Evaluator couples the override store to the restaurant clock.
type Evaluator struct {
	overrides *Store
	loc       *time.Location
}

func NewEvaluator(overrides *Store, loc *time.Location) *Evaluator {
	return &Evaluator{overrides: overrides, loc: loc}
}

// Status evaluates against the wall clock.
func (e *Evaluator) Status(ctx context.Context) Status {
	return e.StatusAt(ctx, time.Now())
}

// StatusAt evaluates against an explicit instant, converted to the
// restaurant's zone.
func (e *Evaluator) StatusAt(ctx context.Context, now time.Time) Status {
	o, _ := e.overrides.Get(ctx)
	return Evaluate(now.In(e.loc), o)
}

// Overrides exposes the current record for the admin surface.
func (e *Evaluator) Overrides(ctx context.Context) Overrides {
	o, _ := e.overrides.Get(ctx)
	return o
}

// Location is the restaurant's time zone.
func (e *Evaluator) Location() *time.Location { return e.loc }
