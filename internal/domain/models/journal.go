package models

import "time"

// MutationRecord is one row of the append-only mutation journal. Every
// intent that reaches a terminal state is journaled, including local
// validation failures, so the back-office export shows what operators
// attempted and not only what landed.
type MutationRecord struct {
	IntentID       string       `json:"intentId" bson:"intent_id"`
	DeviceID       string       `json:"deviceId" bson:"device_id"`
	StockLineID    string       `json:"stockLineId" bson:"stock_line_id"`
	ProductName    string       `json:"productName" bson:"product_name"`
	Action         ActionKind   `json:"action" bson:"action"`
	Quantity       int          `json:"quantity" bson:"quantity"`
	Reason         string       `json:"reason,omitempty" bson:"reason,omitempty"`
	Status         IntentStatus `json:"status" bson:"status"`
	QuantityBefore int          `json:"quantityBefore" bson:"quantity_before"`
	QuantityAfter  int          `json:"quantityAfter" bson:"quantity_after"`
	Message        string       `json:"message,omitempty" bson:"message,omitempty"`
	RecordedAt     time.Time    `json:"recordedAt" bson:"recorded_at"`
}
