package domain

// RejectReason explains why an activation did not dispense.
type RejectReason string

const (
	RejectNoPayment         RejectReason = "no_payment"
	RejectAlreadyDispensing RejectReason = "already_dispensing"
	RejectOutOfStock        RejectReason = "out_of_stock"
)

// DispenseResult is the outcome of an Activate trigger.
// Rejections are ordinary values, not errors.
type DispenseResult struct {
	Dispensed bool         `json:"dispensed"`
	Reason    RejectReason `json:"reason,omitempty"`
}

// Dispensed is the successful activation result.
func Dispensed() DispenseResult {
	return DispenseResult{Dispensed: true}
}

// Rejected builds a rejection with the given reason.
func Rejected(reason RejectReason) DispenseResult {
	return DispenseResult{Reason: reason}
}

// String returns "Dispensed" or "Rejected(reason)".
func (r DispenseResult) String() string {
	if r.Dispensed {
		return "Dispensed"
	}
	return "Rejected(" + string(r.Reason) + ")"
}

// Notice is an advisory, human readable message produced while handling a trigger.
// Notices are not part of the contract and may be routed to any sink.
type Notice struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Notice codes.
const (
	NoticePaymentAccepted  = "payment_accepted"
	NoticeAlreadyPaid      = "already_paid"
	NoticePleaseWait       = "please_wait"
	NoticeNoStock          = "no_stock"
	NoticePaymentRefunded  = "payment_refunded"
	NoticeNothingToCancel  = "nothing_to_cancel"
	NoticeInsertFirst      = "insert_payment_first"
	NoticeDispensing       = "dispensing"
	NoticeAlreadyActivated = "already_dispensing"
	NoticeUnitReleased     = "unit_released"
	NoticeRestocked        = "restocked"
)

// Transition records a single move between two states.
type Transition struct {
	From State `json:"from"`
	To   State `json:"to"`
}

// Outcome captures everything a single trigger produced once the machine settled.
type Outcome struct {
	Trigger           Trigger         `json:"trigger"`
	From              State           `json:"from"`
	To                State           `json:"to"`
	Transitions       []Transition    `json:"transitions,omitempty"`
	Notices           []Notice        `json:"notices,omitempty"`
	Result            *DispenseResult `json:"result,omitempty"` // Set for TriggerActivate only
	PreviousInventory int             `json:"previous_inventory"`
	Inventory         int             `json:"inventory"`
}

// Changed reports whether the trigger moved the machine to a different settled state.
func (o Outcome) Changed() bool {
	return o.From != o.To
}
