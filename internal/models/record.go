package models

import (
	"time"
)

// Record is one inventory movement in the inventory_records table.
// Positive quantities are pieces made, negative quantities are pieces sold.
type Record struct {
	ID        string    `json:"id" db:"id"`
	KV        string    `json:"kv" db:"kv"`
	Material  string    `json:"material" db:"material"`
	Type      string    `json:"type" db:"item_type"`
	Quantity  int       `json:"quantity" db:"quantity"`
	Timestamp time.Time `json:"timestamp" db:"recorded_at"`
}

// Configuration is the composite key movements are grouped by.
type Configuration struct {
	KV       string `json:"kv"`
	Material string `json:"material"`
	Type     string `json:"type"`
}

// Configuration returns the grouping key of the record.
func (r *Record) Configuration() Configuration {
	return Configuration{KV: r.KV, Material: r.Material, Type: r.Type}
}

// IsSale reports whether the record decreases stock.
func (r *Record) IsSale() bool {
	return r.Quantity < 0
}

// StockSummary is the derived total for one configuration.
type StockSummary struct {
	KV            string `json:"kv"`
	Material      string `json:"material"`
	Type          string `json:"type"`
	TotalQuantity int    `json:"totalQuantity"`
}

// SalesSummary adds the unsigned sold count to a sale-only summary row.
type SalesSummary struct {
	StockSummary
	TotalSold int `json:"totalSold"`
}

// DaySales is the result of the sales-by-date report.
type DaySales struct {
	Date    string          `json:"date"`
	Offset  string          `json:"offset"`
	Start   time.Time       `json:"start"`
	End     time.Time       `json:"end"`
	Records []*Record       `json:"records"`
	Summary []*SalesSummary `json:"summary"`
}
