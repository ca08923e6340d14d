// Package rules evaluates business rules against a reconciled invoice
// record. Every rule is independent and order-stable; rules never
// short-circuit each other, and findings are returned as data.
package rules

import (
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"apinvoice/internal/logger"
	"apinvoice/internal/reconcile"
	"apinvoice/pkg/models"
)

// Date anomaly kinds carried on DATE_ANOMALY violations.
const (
	AnomalyFuture   = "future"
	AnomalyStale    = "stale"
	AnomalyOrdering = "ordering"
)

// Effective tax rates (percent) considered ordinary.
var commonTaxRates = []decimal.Decimal{
	decimal.Zero,
	decimal.NewFromInt(5),
	decimal.NewFromInt(6),
	decimal.NewFromInt(7),
	decimal.NewFromInt(8),
	decimal.NewFromFloat(8.25),
	decimal.NewFromInt(10),
}

// Params are the rule thresholds, fixed at construction.
type Params struct {
	// ToleranceAbsolute absorbs rounding in all monetary equality checks.
	ToleranceAbsolute decimal.Decimal

	// DateSkewDays is how far into the future an invoice date may sit.
	DateSkewDays int

	// GraceWindowDays bounds how far due/ship dates may precede the
	// invoice date.
	GraceWindowDays int

	// MaxInvoiceAgeDays is the staleness threshold for invoice dates.
	MaxInvoiceAgeDays int

	// LargeAmountThreshold flags totals above it for review.
	LargeAmountThreshold decimal.Decimal

	// TaxRateTolerance is the allowed distance, in percentage points, from
	// a common tax rate.
	TaxRateTolerance decimal.Decimal
}

// RuleSet evaluates the full rule list against reconciled records.
type RuleSet struct {
	params Params
	log    zerolog.Logger
	now    func() time.Time
}

// NewRuleSet creates a rule set with the given thresholds.
func NewRuleSet(params Params) *RuleSet {
	return &RuleSet{
		params: params,
		log:    logger.WithComponent("rules"),
		now:    time.Now,
	}
}

// Evaluate runs every rule in its fixed order and returns the violations in
// detection order. An empty slice means the record is valid.
func (rs *RuleSet) Evaluate(rec *models.InvoiceFieldRecord, totals models.ReconciledTotals) []models.Violation {
	var violations []models.Violation

	violations = append(violations, rs.checkMandatoryFields(rec)...)
	violations = append(violations, rs.checkIdentity(rec)...)
	violations = append(violations, rs.checkTotal(rec, totals)...)
	violations = append(violations, rs.checkSubtotal(rec, totals)...)
	violations = append(violations, rs.checkLineItems(rec)...)
	violations = append(violations, rs.checkNegativeAmounts(rec)...)
	violations = append(violations, rs.checkLargeAmount(rec)...)
	violations = append(violations, rs.checkTaxRate(rec)...)
	violations = append(violations, rs.checkDates(rec)...)
	violations = append(violations, rs.checkCurrency(rec)...)

	if len(violations) > 0 {
		rs.log.Debug().
			Str("invoice_id", rec.InvoiceID).
			Int("violations", len(violations)).
			Msg("Rule evaluation produced violations")
	}
	return violations
}

func (rs *RuleSet) checkMandatoryFields(rec *models.InvoiceFieldRecord) []models.Violation {
	var out []models.Violation
	if rec.InvoiceNumber == "" {
		out = append(out, models.Violation{
			Rule:   models.ExceptionMissingMandatoryField,
			Field:  "invoice_number",
			Detail: "invoice number is missing",
		})
	}
	if rec.InvoiceDate == nil {
		out = append(out, models.Violation{
			Rule:   models.ExceptionMissingMandatoryField,
			Field:  "invoice_date",
			Detail: "invoice date is missing or unparseable",
		})
	}
	if rec.SupplierName == "" {
		out = append(out, models.Violation{
			Rule:   models.ExceptionMissingMandatoryField,
			Field:  "supplier_name",
			Detail: "supplier name is missing",
		})
	}
	switch {
	case rec.TotalAmount == nil:
		out = append(out, models.Violation{
			Rule:   models.ExceptionMissingMandatoryField,
			Field:  "total_amount",
			Detail: "total amount is missing",
		})
	case !rec.TotalAmount.IsPositive():
		out = append(out, models.Violation{
			Rule:   models.ExceptionMissingMandatoryField,
			Field:  "total_amount",
			Detail: fmt.Sprintf("total amount must be positive, got %s", rec.TotalAmount),
		})
	}
	return out
}

func (rs *RuleSet) checkIdentity(rec *models.InvoiceFieldRecord) []models.Violation {
	// Both are populated from the same source value; divergence means the
	// record was hand-constructed and is a data-integrity problem.
	if rec.InvoiceID == "" || rec.InvoiceNumber == "" || rec.InvoiceID == rec.InvoiceNumber {
		return nil
	}
	return []models.Violation{{
		Rule:   models.ExceptionIdentityMismatch,
		Field:  "invoice_id",
		Detail: fmt.Sprintf("invoice_id %q does not match invoice_number %q", rec.InvoiceID, rec.InvoiceNumber),
	}}
}

func (rs *RuleSet) checkTotal(rec *models.InvoiceFieldRecord, totals models.ReconciledTotals) []models.Violation {
	if rec.TotalAmount == nil {
		return nil
	}
	diff := rec.TotalAmount.Sub(totals.ComputedTotal).Abs()
	if diff.LessThanOrEqual(rs.params.ToleranceAbsolute) {
		return nil
	}
	base := *rec.TotalAmount
	return []models.Violation{{
		Rule:        models.ExceptionTotalMismatch,
		Field:       "total_amount",
		Detail:      fmt.Sprintf("extracted total %s differs from computed total %s by %s", rec.TotalAmount, totals.ComputedTotal, diff),
		Discrepancy: &diff,
		BaseAmount:  &base,
	}}
}

func (rs *RuleSet) checkSubtotal(rec *models.InvoiceFieldRecord, totals models.ReconciledTotals) []models.Violation {
	if rec.Subtotal == nil || totals.SubtotalSource == reconcile.SourceExtracted {
		return nil
	}
	diff := rec.Subtotal.Sub(totals.ComputedSubtotal).Abs()
	if diff.LessThanOrEqual(rs.params.ToleranceAbsolute) {
		return nil
	}
	base := *rec.Subtotal
	return []models.Violation{{
		Rule:        models.ExceptionSubtotalMismatch,
		Field:       "subtotal",
		Detail:      fmt.Sprintf("extracted subtotal %s differs from computed subtotal %s by %s", rec.Subtotal, totals.ComputedSubtotal, diff),
		Discrepancy: &diff,
		BaseAmount:  &base,
	}}
}

func (rs *RuleSet) checkLineItems(rec *models.InvoiceFieldRecord) []models.Violation {
	var out []models.Violation
	for i, item := range rec.LineItems {
		// Reconciliation sums a missing line total as zero; the gap itself
		// still has to surface as a finding.
		if item.LineTotal == nil {
			out = append(out, models.Violation{
				Rule:       models.ExceptionLineItemMismatch,
				Field:      fmt.Sprintf("line_items[%d].line_total", i),
				Detail:     fmt.Sprintf("line %d: line total is missing", item.LineNumber),
				LineNumber: item.LineNumber,
			})
			continue
		}
		if item.Quantity == nil || item.UnitPrice == nil {
			continue
		}
		expected := item.Quantity.Mul(*item.UnitPrice)
		diff := item.LineTotal.Sub(expected).Abs()
		if diff.LessThanOrEqual(rs.params.ToleranceAbsolute) {
			continue
		}
		base := *item.LineTotal
		d := diff
		out = append(out, models.Violation{
			Rule:        models.ExceptionLineItemMismatch,
			Field:       fmt.Sprintf("line_items[%d].line_total", i),
			Detail:      fmt.Sprintf("line %d: total %s differs from %s x %s = %s", item.LineNumber, item.LineTotal, item.Quantity, item.UnitPrice, expected),
			Discrepancy: &d,
			BaseAmount:  &base,
			LineNumber:  item.LineNumber,
		})
	}
	return out
}

func (rs *RuleSet) checkNegativeAmounts(rec *models.InvoiceFieldRecord) []models.Violation {
	// Discounts and credits are legitimately negative; everything else is not.
	checks := []struct {
		field string
		value *decimal.Decimal
	}{
		{"subtotal", rec.Subtotal},
		{"tax_amount", rec.TaxAmount},
		{"shipping_amount", rec.ShippingAmount},
		{"total_amount", rec.TotalAmount},
	}
	var out []models.Violation
	for _, c := range checks {
		if c.value != nil && c.value.IsNegative() {
			out = append(out, models.Violation{
				Rule:   models.ExceptionNegativeAmount,
				Field:  c.field,
				Detail: fmt.Sprintf("%s is negative: %s", c.field, c.value),
			})
		}
	}
	return out
}

func (rs *RuleSet) checkLargeAmount(rec *models.InvoiceFieldRecord) []models.Violation {
	if rec.TotalAmount == nil || rec.TotalAmount.LessThanOrEqual(rs.params.LargeAmountThreshold) {
		return nil
	}
	base := *rec.TotalAmount
	return []models.Violation{{
		Rule:       models.ExceptionLargeAmount,
		Field:      "total_amount",
		Detail:     fmt.Sprintf("total %s %s exceeds review threshold %s", rec.TotalAmount, rec.Currency, rs.params.LargeAmountThreshold),
		BaseAmount: &base,
	}}
}

func (rs *RuleSet) checkTaxRate(rec *models.InvoiceFieldRecord) []models.Violation {
	if rec.Subtotal == nil || rec.TaxAmount == nil ||
		!rec.Subtotal.IsPositive() || !rec.TaxAmount.IsPositive() {
		return nil
	}
	rate := rec.TaxAmount.Div(*rec.Subtotal).Mul(decimal.NewFromInt(100))
	for _, common := range commonTaxRates {
		if rate.Sub(common).Abs().LessThanOrEqual(rs.params.TaxRateTolerance) {
			return nil
		}
	}
	return []models.Violation{{
		Rule:   models.ExceptionUnusualTaxRate,
		Field:  "tax_amount",
		Detail: fmt.Sprintf("effective tax rate %s%% does not match a common rate", rate.Round(2)),
	}}
}

func (rs *RuleSet) checkDates(rec *models.InvoiceFieldRecord) []models.Violation {
	if rec.InvoiceDate == nil {
		return nil
	}
	var out []models.Violation
	today := rs.now()
	invoiceDate := rec.InvoiceDate.Time

	skew := time.Duration(rs.params.DateSkewDays) * 24 * time.Hour
	if invoiceDate.After(today.Add(skew)) {
		out = append(out, models.Violation{
			Rule:    models.ExceptionDateAnomaly,
			Field:   "invoice_date",
			Detail:  fmt.Sprintf("invoice date %s is in the future", rec.InvoiceDate),
			Anomaly: AnomalyFuture,
		})
	}

	if rs.params.MaxInvoiceAgeDays > 0 {
		ageDays := int(today.Sub(invoiceDate).Hours() / 24)
		if ageDays > rs.params.MaxInvoiceAgeDays {
			out = append(out, models.Violation{
				Rule:    models.ExceptionDateAnomaly,
				Field:   "invoice_date",
				Detail:  fmt.Sprintf("invoice is %d days old (threshold: %d days)", ageDays, rs.params.MaxInvoiceAgeDays),
				Anomaly: AnomalyStale,
			})
		}
	}

	grace := time.Duration(rs.params.GraceWindowDays) * 24 * time.Hour
	ordering := []struct {
		field string
		date  *models.Date
	}{
		{"due_date", rec.DueDate},
		{"ship_date", rec.ShipDate},
	}
	for _, o := range ordering {
		if o.date != nil && o.date.Time.Before(invoiceDate.Add(-grace)) {
			out = append(out, models.Violation{
				Rule:    models.ExceptionDateAnomaly,
				Field:   o.field,
				Detail:  fmt.Sprintf("%s %s precedes invoice date %s beyond the %d-day grace window", o.field, o.date, rec.InvoiceDate, rs.params.GraceWindowDays),
				Anomaly: AnomalyOrdering,
			})
		}
	}
	return out
}

// checkCurrency is a documented invariant: normalization defaults the
// currency unconditionally, so this rule can never fire on a normalized
// record. It exists so the invariant has explicit test coverage.
func (rs *RuleSet) checkCurrency(rec *models.InvoiceFieldRecord) []models.Violation {
	if rec.Currency != "" {
		return nil
	}
	return []models.Violation{{
		Rule:   models.ExceptionMissingMandatoryField,
		Field:  "currency",
		Detail: "currency is empty",
	}}
}
