package domain

import (
	"context"
	"time"
)

// EventType defines the category of the event.
type EventType string

const (
	EventTransition EventType = "transition"
	EventNotice     EventType = "notice"
	EventDispense   EventType = "dispense"
	EventReject     EventType = "reject"
	EventRefill     EventType = "refill"
)

// EventBase contains common fields for all events.
type EventBase struct {
	Timestamp time.Time `json:"timestamp"`
	Type      EventType `json:"type"`
	MachineID string    `json:"machine_id"`
}

// TransitionEvent is emitted once per state change, including the
// intermediate Dispensing hop of a compound transition.
type TransitionEvent struct {
	EventBase
	Trigger Trigger `json:"trigger,omitempty"` // Empty for Refill
	From    State   `json:"from"`
	To      State   `json:"to"`
}

// NoticeEvent carries an advisory message.
type NoticeEvent struct {
	EventBase
	State  State  `json:"state"`
	Notice Notice `json:"notice"`
}

// DispenseEvent is emitted for every activation, dispensed or rejected.
type DispenseEvent struct {
	EventBase
	Result    DispenseResult `json:"result"`
	Inventory int            `json:"inventory"`
}

// RefillEvent is emitted after a successful refill.
type RefillEvent struct {
	EventBase
	Previous  int `json:"previous"`
	Inventory int `json:"inventory"`
}

// LifecycleHooks defines callbacks for controller observability.
// Hooks run after the operation has settled.
type LifecycleHooks struct {
	OnTransition func(context.Context, *TransitionEvent)
	OnNotice     func(context.Context, *NoticeEvent)
	OnDispense   func(context.Context, *DispenseEvent)
	OnReject     func(context.Context, *DispenseEvent)
	OnRefill     func(context.Context, *RefillEvent)
}

// Merge returns hooks that call h first, then other.
func (h LifecycleHooks) Merge(other LifecycleHooks) LifecycleHooks {
	return LifecycleHooks{
		OnTransition: chain(h.OnTransition, other.OnTransition),
		OnNotice:     chain(h.OnNotice, other.OnNotice),
		OnDispense:   chain(h.OnDispense, other.OnDispense),
		OnReject:     chain(h.OnReject, other.OnReject),
		OnRefill:     chain(h.OnRefill, other.OnRefill),
	}
}

func chain[E any](a, b func(context.Context, E)) func(context.Context, E) {
	if a == nil {
		return b
	}
	if b == nil {
		return a
	}
	return func(ctx context.Context, e E) {
		a(ctx, e)
		b(ctx, e)
	}
}
