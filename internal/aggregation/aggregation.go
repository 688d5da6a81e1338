// Package aggregation derives stock totals from inventory movements.
//
// All functions are pure: they never touch storage and never mutate their input,
// so the same records always yield the same summaries.
package aggregation

import (
	"sort"

	"item-record-service/internal/models"
)

// Aggregate groups records by exact (kv, material, type) and sums their quantities.
// Rows are ordered by kv, then material, then type, all ascending.
func Aggregate(records []*models.Record) []*models.StockSummary {
	groups := make(map[models.Configuration]*models.StockSummary)

	for _, r := range records {
		if r == nil {
			continue
		}
		key := r.Configuration()
		summary, ok := groups[key]
		if !ok {
			summary = &models.StockSummary{
				KV:       key.KV,
				Material: key.Material,
				Type:     key.Type,
			}
			groups[key] = summary
		}
		summary.TotalQuantity += r.Quantity
	}

	out := make([]*models.StockSummary, 0, len(groups))
	for _, summary := range groups {
		out = append(out, summary)
	}
	sortSummaries(out)

	return out
}

// SalesOnly keeps the records that decrease stock, preserving order.
func SalesOnly(records []*models.Record) []*models.Record {
	sales := make([]*models.Record, 0, len(records))
	for _, r := range records {
		if r != nil && r.IsSale() {
			sales = append(sales, r)
		}
	}
	return sales
}

// SalesSummary aggregates sale records and reports the sold count as a positive number.
func SalesSummary(records []*models.Record) []*models.SalesSummary {
	totals := Aggregate(SalesOnly(records))

	out := make([]*models.SalesSummary, 0, len(totals))
	for _, total := range totals {
		sold := total.TotalQuantity
		if sold < 0 {
			sold = -sold
		}
		out = append(out, &models.SalesSummary{
			StockSummary: *total,
			TotalSold:    sold,
		})
	}
	return out
}

func sortSummaries(rows []*models.StockSummary) {
	sort.Slice(rows, func(i, j int) bool {
		if rows[i].KV != rows[j].KV {
			return rows[i].KV < rows[j].KV
		}
		if rows[i].Material != rows[j].Material {
			return rows[i].Material < rows[j].Material
		}
		return rows[i].Type < rows[j].Type
	})
}
