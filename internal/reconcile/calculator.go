// Package reconcile derives and cross-checks monetary totals for a
// normalized invoice record. It enriches, never rejects: reconciliation
// differences are facts for the rule set, not failures.
package reconcile

import (
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"apinvoice/internal/logger"
	"apinvoice/pkg/models"
)

// Subtotal sources, in priority order.
const (
	SourceLineItems = "line_items"
	SourceExtracted = "extracted"
	SourceDerived   = "derived"
)

// Calculator computes derived totals for normalized records.
type Calculator struct {
	log zerolog.Logger
}

// NewCalculator creates a reconciliation calculator.
func NewCalculator() *Calculator {
	return &Calculator{log: logger.WithComponent("reconcile")}
}

// Reconcile computes the derived subtotal and total for a record. The first
// applicable subtotal rule wins: line-item sum, then the extracted subtotal,
// then back-computation from the extracted total. Extracted values are
// carried alongside the computed ones, never overwritten.
func (c *Calculator) Reconcile(rec *models.InvoiceFieldRecord) models.ReconciledTotals {
	tax := orZero(rec.TaxAmount)
	shipping := orZero(rec.ShippingAmount)
	discount := orZero(rec.DiscountAmount)

	var subtotal decimal.Decimal
	source := SourceDerived
	switch {
	case len(rec.LineItems) > 0:
		// A nil line total counts as zero here; the line-item arithmetic
		// rule flags the gap separately.
		for _, item := range rec.LineItems {
			subtotal = subtotal.Add(orZero(item.LineTotal))
		}
		source = SourceLineItems
	case rec.Subtotal != nil:
		subtotal = *rec.Subtotal
		source = SourceExtracted
	default:
		subtotal = orZero(rec.TotalAmount).Sub(tax).Sub(shipping).Add(discount)
	}

	total := subtotal.Add(tax).Add(shipping).Sub(discount)

	c.log.Debug().
		Str("invoice_id", rec.InvoiceID).
		Str("subtotal_source", source).
		Str("computed_subtotal", subtotal.String()).
		Str("computed_total", total.String()).
		Msg("Totals reconciled")

	return models.ReconciledTotals{
		ComputedSubtotal: subtotal,
		ComputedTotal:    total,
		SubtotalSource:   source,
		Subtotal:         rec.Subtotal,
		TaxAmount:        rec.TaxAmount,
		ShippingAmount:   rec.ShippingAmount,
		DiscountAmount:   rec.DiscountAmount,
		TotalAmount:      rec.TotalAmount,
		Currency:         rec.Currency,
	}
}

func orZero(d *decimal.Decimal) decimal.Decimal {
	if d == nil {
		return decimal.Zero
	}
	return *d
}
