package domain

import "fmt"

// State identifies the active mode of a machine.
type State string

const (
	StateNoPayment  State = "no_payment"  // Idle, waiting for payment
	StateHasPayment State = "has_payment" // Payment held, waiting for activation
	StateDispensing State = "dispensing"  // Releasing a unit (never a settle point)
	StateSoldOut    State = "sold_out"    // No inventory left
)

// States lists every state in presentation order.
var States = []State{StateNoPayment, StateHasPayment, StateDispensing, StateSoldOut}

// Valid reports whether s is one of the known states.
func (s State) Valid() bool {
	switch s {
	case StateNoPayment, StateHasPayment, StateDispensing, StateSoldOut:
		return true
	}
	return false
}

// Label returns a human readable name for the state.
func (s State) Label() string {
	switch s {
	case StateNoPayment:
		return "NoPayment"
	case StateHasPayment:
		return "HasPayment"
	case StateDispensing:
		return "Dispensing"
	case StateSoldOut:
		return "SoldOut"
	}
	return string(s)
}

// ParseState converts a wire value ("no_payment") or label ("NoPayment") into a State.
func ParseState(v string) (State, error) {
	for _, s := range States {
		if v == string(s) || v == s.Label() {
			return s, nil
		}
	}
	return "", fmt.Errorf("%w: unknown state %q", ErrInvalidArgument, v)
}
