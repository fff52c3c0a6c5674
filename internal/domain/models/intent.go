package models

import "time"

// ActionKind enumerates the stock mutation operations the remote inventory
// service exposes. Each kind maps to its own endpoint so the service can
// apply kind-specific business rules (Sell also records revenue, etc.).
type ActionKind string

const (
	ActionAdd    ActionKind = "add"
	ActionRemove ActionKind = "remove"
	ActionSell   ActionKind = "sell"
	ActionReturn ActionKind = "return"
	ActionAdjust ActionKind = "adjust"
)

// Valid reports whether the kind is one of the five supported actions.
func (k ActionKind) Valid() bool {
	switch k {
	case ActionAdd, ActionRemove, ActionSell, ActionReturn, ActionAdjust:
		return true
	}
	return false
}

// AllowsZeroQuantity reports whether a zero quantity is acceptable for the
// kind. Adjust sets an absolute quantity and may legally be zero; every
// other kind moves stock by a strictly positive amount.
func (k ActionKind) AllowsZeroQuantity() bool {
	return k == ActionAdjust
}

// RequiresReason reports whether the kind demands a free-text reason.
// Remove and Return feed shrinkage and returns reporting downstream, so the
// service rejects them without one.
func (k ActionKind) RequiresReason() bool {
	return k == ActionRemove || k == ActionReturn
}

// IntentStatus tracks a MutationIntent through its lifecycle.
type IntentStatus string

const (
	IntentDraft           IntentStatus = "draft"
	IntentValidating      IntentStatus = "validating"
	IntentSubmitting      IntentStatus = "submitting"
	IntentSucceeded       IntentStatus = "succeeded"
	IntentFailedLocal     IntentStatus = "failed_local"
	IntentFailedRemote    IntentStatus = "failed_remote"
	IntentAmbiguousRemote IntentStatus = "ambiguous_remote"
)

// Terminal reports whether the status admits no further transitions.
// FailedLocal is terminal too: a corrected form always produces a new intent.
func (s IntentStatus) Terminal() bool {
	switch s {
	case IntentSucceeded, IntentFailedLocal, IntentFailedRemote, IntentAmbiguousRemote:
		return true
	}
	return false
}

// MutationIntent is one user-initiated request to change a StockLine's
// quantity. Exactly one submission attempt is ever made per intent; a retry
// builds a fresh intent with a fresh ID.
type MutationIntent struct {
	IntentID          string       `json:"intentId" bson:"intent_id"`
	TargetStockLineID string       `json:"targetStockLineId" bson:"target_stock_line_id"`
	Action            ActionKind   `json:"action" bson:"action"`
	Quantity          int          `json:"quantity" bson:"quantity"`
	Reason            string       `json:"reason,omitempty" bson:"reason,omitempty"`
	Status            IntentStatus `json:"status" bson:"status"`
	QuantityBefore    int          `json:"quantityBefore" bson:"quantity_before"`
	QuantityExpected  int          `json:"quantityExpected" bson:"quantity_expected"`
	CreatedAt         time.Time    `json:"createdAt" bson:"created_at"`
}
