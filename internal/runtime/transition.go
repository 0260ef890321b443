package runtime

import (
	"fmt"

	"github.com/aretw0/dispenser/pkg/domain"
)

// Rule is the behavior of a single (state, trigger) cell of the table.
type Rule struct {
	From    domain.State
	Trigger domain.Trigger
	To      domain.State // Target when the rule transitions; equals From for no-ops
	Notice  domain.Notice

	// Reject is set when the trigger is an activation that cannot dispense.
	Reject domain.RejectReason

	// Dispense marks the compound HasPayment -> Dispensing -> (NoPayment|SoldOut) path.
	// The final state depends on the inventory left after the unit is released.
	Dispense bool
}

func notice(code, msg string) domain.Notice {
	return domain.Notice{Code: code, Message: msg}
}

var rules = []Rule{
	// NoPayment
	{From: domain.StateNoPayment, Trigger: domain.TriggerInsertPayment, To: domain.StateHasPayment,
		Notice: notice(domain.NoticePaymentAccepted, "Payment accepted.")},
	{From: domain.StateNoPayment, Trigger: domain.TriggerCancelPayment, To: domain.StateNoPayment,
		Notice: notice(domain.NoticeNothingToCancel, "No payment to refund.")},
	{From: domain.StateNoPayment, Trigger: domain.TriggerActivate, To: domain.StateNoPayment,
		Notice: notice(domain.NoticeInsertFirst, "Insert payment first."), Reject: domain.RejectNoPayment},

	// HasPayment
	{From: domain.StateHasPayment, Trigger: domain.TriggerInsertPayment, To: domain.StateHasPayment,
		Notice: notice(domain.NoticeAlreadyPaid, "Payment already received.")},
	{From: domain.StateHasPayment, Trigger: domain.TriggerCancelPayment, To: domain.StateNoPayment,
		Notice: notice(domain.NoticePaymentRefunded, "Payment refunded.")},
	{From: domain.StateHasPayment, Trigger: domain.TriggerActivate, To: domain.StateDispensing,
		Notice: notice(domain.NoticeDispensing, "Dispensing..."), Dispense: true},

	// Dispensing
	{From: domain.StateDispensing, Trigger: domain.TriggerInsertPayment, To: domain.StateDispensing,
		Notice: notice(domain.NoticePleaseWait, "Please wait, dispensing in progress.")},
	{From: domain.StateDispensing, Trigger: domain.TriggerCancelPayment, To: domain.StateDispensing,
		Notice: notice(domain.NoticeNothingToCancel, "No payment to refund.")},
	{From: domain.StateDispensing, Trigger: domain.TriggerActivate, To: domain.StateDispensing,
		Notice: notice(domain.NoticeAlreadyActivated, "Already dispensing, hold on."), Reject: domain.RejectAlreadyDispensing},

	// SoldOut
	{From: domain.StateSoldOut, Trigger: domain.TriggerInsertPayment, To: domain.StateSoldOut,
		Notice: notice(domain.NoticeNoStock, "Out of stock, cannot accept payment.")},
	{From: domain.StateSoldOut, Trigger: domain.TriggerCancelPayment, To: domain.StateSoldOut,
		Notice: notice(domain.NoticeNothingToCancel, "No payment to refund.")},
	{From: domain.StateSoldOut, Trigger: domain.TriggerActivate, To: domain.StateSoldOut,
		Notice: notice(domain.NoticeNoStock, "Out of stock."), Reject: domain.RejectOutOfStock},
}

type cell struct {
	state   domain.State
	trigger domain.Trigger
}

var table = func() map[cell]Rule {
	m := make(map[cell]Rule, len(rules))
	for _, r := range rules {
		m[cell{r.From, r.Trigger}] = r
	}
	return m
}()

// Table returns every rule, ordered by state then trigger.
func Table() []Rule {
	out := make([]Rule, len(rules))
	copy(out, rules)
	return out
}

// Lookup returns the rule for a (state, trigger) pair.
func Lookup(state domain.State, trigger domain.Trigger) (Rule, bool) {
	r, ok := table[cell{state, trigger}]
	return r, ok
}

// Dispense releases one unit from inventory and selects the state the machine settles in.
// Reaching it with an empty inventory means the sold-out invariant was broken upstream.
func Dispense(inventory int) (int, domain.State, error) {
	if inventory <= 0 {
		return inventory, "", fmt.Errorf("%w: dispense with inventory %d", domain.ErrInternalInconsistency, inventory)
	}
	remaining := inventory - 1
	if remaining > 0 {
		return remaining, domain.StateNoPayment, nil
	}
	return remaining, domain.StateSoldOut, nil
}

// RefillNotice is the notice reported after a restock with n units.
func RefillNotice(n int) domain.Notice {
	return notice(domain.NoticeRestocked, fmt.Sprintf("Restocked with %d units.", n))
}

// RefillTarget returns the state a machine is forced into after being restocked with n units.
func RefillTarget(n int) domain.State {
	if n > 0 {
		return domain.StateNoPayment
	}
	return domain.StateSoldOut
}

// Apply evaluates a trigger against a machine snapshot.
// It is pure: the caller owns the machine and decides whether to commit the outcome.
func Apply(state domain.State, inventory int, trigger domain.Trigger) (domain.Outcome, error) {
	if !trigger.Valid() {
		return domain.Outcome{}, fmt.Errorf("%w: unknown trigger %q", domain.ErrInvalidArgument, trigger)
	}
	rule, ok := Lookup(state, trigger)
	if !ok {
		return domain.Outcome{}, fmt.Errorf("%w: unknown state %q", domain.ErrInvalidArgument, state)
	}

	out := domain.Outcome{
		Trigger:           trigger,
		From:              state,
		To:                state,
		Notices:           []domain.Notice{rule.Notice},
		PreviousInventory: inventory,
		Inventory:         inventory,
	}

	switch {
	case rule.Reject != "":
		res := domain.Rejected(rule.Reject)
		out.Result = &res

	case rule.Dispense:
		remaining, next, err := Dispense(inventory)
		if err != nil {
			return domain.Outcome{}, err
		}
		out.Transitions = []domain.Transition{
			{From: state, To: domain.StateDispensing},
			{From: domain.StateDispensing, To: next},
		}
		out.Notices = append(out.Notices, notice(domain.NoticeUnitReleased, "Unit released."))
		out.To = next
		out.Inventory = remaining
		res := domain.Dispensed()
		out.Result = &res

	case rule.To != state:
		out.Transitions = []domain.Transition{{From: state, To: rule.To}}
		out.To = rule.To
	}

	return out, nil
}
