package domain

import (
	"fmt"
	"strings"
)

// Trigger is an external event offered to a machine.
type Trigger string

const (
	TriggerInsertPayment Trigger = "insert_payment"
	TriggerCancelPayment Trigger = "cancel_payment"
	TriggerActivate      Trigger = "activate" // crank or button
)

// Triggers lists every trigger in presentation order.
var Triggers = []Trigger{TriggerInsertPayment, TriggerCancelPayment, TriggerActivate}

// Valid reports whether t is one of the known triggers.
func (t Trigger) Valid() bool {
	switch t {
	case TriggerInsertPayment, TriggerCancelPayment, TriggerActivate:
		return true
	}
	return false
}

// Label returns a human readable name for the trigger.
func (t Trigger) Label() string {
	switch t {
	case TriggerInsertPayment:
		return "InsertPayment"
	case TriggerCancelPayment:
		return "CancelPayment"
	case TriggerActivate:
		return "Activate"
	}
	return string(t)
}

// ParseTrigger accepts the wire value, the label, or the short CLI aliases
// ("insert", "cancel", "crank").
func ParseTrigger(v string) (Trigger, error) {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "insert_payment", "insertpayment", "insert", "pay":
		return TriggerInsertPayment, nil
	case "cancel_payment", "cancelpayment", "cancel", "eject", "refund":
		return TriggerCancelPayment, nil
	case "activate", "crank", "turn":
		return TriggerActivate, nil
	}
	return "", fmt.Errorf("%w: unknown trigger %q", ErrInvalidArgument, v)
}
