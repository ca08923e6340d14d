// Package classify maps rule violations onto the exception taxonomy and
// produces the final validation verdict for an invoice.
package classify

import (
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"apinvoice/internal/logger"
	"apinvoice/internal/rules"
	"apinvoice/pkg/models"
)

// StatusPending is the initial review status of every new exception.
const StatusPending = "PENDING"

// Params are the severity thresholds, fixed at construction.
type Params struct {
	// HighSeverityAbsolute escalates a reconciliation mismatch to high when
	// the discrepancy exceeds this amount.
	HighSeverityAbsolute decimal.Decimal

	// HighSeverityRelative escalates when the discrepancy exceeds this
	// fraction of the reference amount. Either threshold alone triggers.
	HighSeverityRelative decimal.Decimal
}

// Classifier turns violations into classified exceptions.
type Classifier struct {
	params Params
	log    zerolog.Logger
	newID  func() string
}

// NewClassifier creates a classifier with the given thresholds.
func NewClassifier(params Params) *Classifier {
	return &Classifier{
		params: params,
		log:    logger.WithComponent("classifier"),
		newID:  uuid.NewString,
	}
}

// Classify builds the verdict for one invoice. The exception sequence
// preserves rule-evaluation order; it is never re-sorted by severity, so the
// first element is always the first rule that fired.
func (c *Classifier) Classify(rec *models.InvoiceFieldRecord, totals models.ReconciledTotals, violations []models.Violation) *models.ValidationVerdict {
	lineItemViolations := 0
	for _, v := range violations {
		if v.Rule == models.ExceptionLineItemMismatch {
			lineItemViolations++
		}
	}

	exceptions := make([]models.InvoiceException, 0, len(violations))
	highCount := 0
	for _, v := range violations {
		severity := c.severityFor(v, lineItemViolations, len(rec.LineItems))
		if severity == models.SeverityHigh {
			highCount++
		}
		exceptions = append(exceptions, models.InvoiceException{
			ExceptionID: c.newID(),
			Type:        v.Rule,
			Severity:    severity,
			Message:     v.Detail,
			Field:       v.Field,
			Status:      StatusPending,
		})
	}

	verdict := &models.ValidationVerdict{
		InvoiceID:         rec.InvoiceID,
		IsException:       len(exceptions) > 0,
		RequiresReview:    highCount > 0,
		Exceptions:        exceptions,
		ExceptionCount:    len(exceptions),
		HighSeverityCount: highCount,
		ReconciledTotals:  totals,
	}

	c.log.Info().
		Str("invoice_id", rec.InvoiceID).
		Bool("is_exception", verdict.IsException).
		Int("exception_count", verdict.ExceptionCount).
		Int("high_severity", highCount).
		Msg("Invoice classified")

	return verdict
}

func (c *Classifier) severityFor(v models.Violation, lineItemViolations, lineItemCount int) models.Severity {
	switch v.Rule {
	case models.ExceptionMissingMandatoryField, models.ExceptionIdentityMismatch, models.ExceptionNegativeAmount:
		return models.SeverityHigh

	case models.ExceptionTotalMismatch, models.ExceptionSubtotalMismatch:
		if c.isHighDiscrepancy(v) {
			return models.SeverityHigh
		}
		return models.SeverityMedium

	case models.ExceptionLineItemMismatch:
		// One bad line among many is a lower-priority finding than a
		// systematic mismatch.
		if lineItemViolations == 1 && lineItemCount > 3 {
			return models.SeverityLow
		}
		return models.SeverityMedium

	case models.ExceptionDateAnomaly:
		if v.Anomaly == rules.AnomalyStale {
			return models.SeverityLow
		}
		return models.SeverityMedium

	case models.ExceptionLargeAmount, models.ExceptionUnusualTaxRate:
		return models.SeverityMedium

	default:
		return models.SeverityLow
	}
}

// isHighDiscrepancy applies the escalation policy: either threshold alone
// (absolute or relative to the reference amount) triggers high severity.
func (c *Classifier) isHighDiscrepancy(v models.Violation) bool {
	if v.Discrepancy == nil {
		return false
	}
	if v.Discrepancy.GreaterThan(c.params.HighSeverityAbsolute) {
		return true
	}
	if v.BaseAmount != nil && !v.BaseAmount.IsZero() {
		relative := v.Discrepancy.Div(v.BaseAmount.Abs())
		if relative.GreaterThan(c.params.HighSeverityRelative) {
			return true
		}
	}
	return false
}
