package models

import "time"

// StockLine is one product/variant quantity record, the unit a mutation
// targets. The remote inventory service owns it; the agent holds a read-only
// cached copy refreshed after each confirmed mutation.
type StockLine struct {
	StockLineID     string    `json:"stockLineId" bson:"stock_line_id"`
	ProductID       string    `json:"productId" bson:"product_id"`
	ProductName     string    `json:"productName" bson:"product_name"`
	SKU             string    `json:"sku,omitempty" bson:"sku,omitempty"`
	Color           string    `json:"color,omitempty" bson:"color,omitempty"`
	Size            string    `json:"size,omitempty" bson:"size,omitempty"`
	UnitPrice       float64   `json:"unitPrice" bson:"unit_price"`
	CurrentQuantity int       `json:"currentQuantity" bson:"current_quantity"`
	RefreshedAt     time.Time `json:"refreshedAt" bson:"refreshed_at"`
}
