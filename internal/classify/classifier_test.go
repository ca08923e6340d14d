package classify

import (
	"fmt"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"apinvoice/internal/rules"
	"apinvoice/pkg/models"
)

func testClassifier() *Classifier {
	c := NewClassifier(Params{
		HighSeverityAbsolute: decimal.NewFromInt(50),
		HighSeverityRelative: decimal.NewFromFloat(0.05),
	})
	seq := 0
	c.newID = func() string {
		seq++
		return fmt.Sprintf("exc-%04d", seq)
	}
	return c
}

func dec(s string) *decimal.Decimal {
	d := decimal.RequireFromString(s)
	return &d
}

func TestClassifyCleanRecord(t *testing.T) {
	rec := &models.InvoiceFieldRecord{InvoiceID: "INV-1"}

	verdict := testClassifier().Classify(rec, models.ReconciledTotals{}, nil)

	assert.Equal(t, "INV-1", verdict.InvoiceID)
	assert.False(t, verdict.IsException)
	assert.False(t, verdict.RequiresReview)
	assert.Empty(t, verdict.Exceptions)
	assert.Zero(t, verdict.ExceptionCount)
	assert.Zero(t, verdict.HighSeverityCount)
}

func TestClassifySeverityMapping(t *testing.T) {
	tests := []struct {
		name      string
		violation models.Violation
		want      models.Severity
	}{
		{
			name:      "missing mandatory field is high",
			violation: models.Violation{Rule: models.ExceptionMissingMandatoryField, Field: "invoice_number"},
			want:      models.SeverityHigh,
		},
		{
			name:      "identity mismatch is high",
			violation: models.Violation{Rule: models.ExceptionIdentityMismatch},
			want:      models.SeverityHigh,
		},
		{
			name:      "negative amount is high",
			violation: models.Violation{Rule: models.ExceptionNegativeAmount, Field: "total_amount"},
			want:      models.SeverityHigh,
		},
		{
			name: "small total mismatch is medium",
			violation: models.Violation{
				Rule:        models.ExceptionTotalMismatch,
				Discrepancy: dec("2.00"),
				BaseAmount:  dec("1000.00"),
			},
			want: models.SeverityMedium,
		},
		{
			name: "total mismatch above absolute threshold is high",
			violation: models.Violation{
				Rule:        models.ExceptionTotalMismatch,
				Discrepancy: dec("60.00"),
				BaseAmount:  dec("10000.00"),
			},
			want: models.SeverityHigh,
		},
		{
			name: "total mismatch above relative threshold is high",
			violation: models.Violation{
				Rule:        models.ExceptionTotalMismatch,
				Discrepancy: dec("15.00"),
				BaseAmount:  dec("100.00"),
			},
			want: models.SeverityHigh,
		},
		{
			name: "subtotal mismatch uses the same escalation",
			violation: models.Violation{
				Rule:        models.ExceptionSubtotalMismatch,
				Discrepancy: dec("10.00"),
				BaseAmount:  dec("1000.00"),
			},
			want: models.SeverityMedium,
		},
		{
			name:      "future date is medium",
			violation: models.Violation{Rule: models.ExceptionDateAnomaly, Anomaly: rules.AnomalyFuture},
			want:      models.SeverityMedium,
		},
		{
			name:      "ordering anomaly is medium",
			violation: models.Violation{Rule: models.ExceptionDateAnomaly, Anomaly: rules.AnomalyOrdering},
			want:      models.SeverityMedium,
		},
		{
			name:      "stale invoice is low",
			violation: models.Violation{Rule: models.ExceptionDateAnomaly, Anomaly: rules.AnomalyStale},
			want:      models.SeverityLow,
		},
		{
			name:      "large amount is medium",
			violation: models.Violation{Rule: models.ExceptionLargeAmount},
			want:      models.SeverityMedium,
		},
		{
			name:      "unusual tax rate is medium",
			violation: models.Violation{Rule: models.ExceptionUnusualTaxRate},
			want:      models.SeverityMedium,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := &models.InvoiceFieldRecord{InvoiceID: "INV-1"}
			verdict := testClassifier().Classify(rec, models.ReconciledTotals{}, []models.Violation{tt.violation})

			require.Len(t, verdict.Exceptions, 1)
			assert.Equal(t, tt.want, verdict.Exceptions[0].Severity)
		})
	}
}

func TestClassifyLineItemSeverity(t *testing.T) {
	lineViolation := func(n int) models.Violation {
		return models.Violation{
			Rule:       models.ExceptionLineItemMismatch,
			LineNumber: n,
			Field:      fmt.Sprintf("line_items[%d].line_total", n-1),
		}
	}
	items := func(n int) []models.LineItem {
		out := make([]models.LineItem, n)
		for i := range out {
			out[i].LineNumber = i + 1
		}
		return out
	}

	tests := []struct {
		name       string
		lineItems  []models.LineItem
		violations []models.Violation
		want       models.Severity
	}{
		{
			name:       "single bad line among many is low",
			lineItems:  items(5),
			violations: []models.Violation{lineViolation(3)},
			want:       models.SeverityLow,
		},
		{
			name:       "single bad line on a short invoice is medium",
			lineItems:  items(2),
			violations: []models.Violation{lineViolation(1)},
			want:       models.SeverityMedium,
		},
		{
			name:       "multiple bad lines are medium",
			lineItems:  items(5),
			violations: []models.Violation{lineViolation(1), lineViolation(2)},
			want:       models.SeverityMedium,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := &models.InvoiceFieldRecord{InvoiceID: "INV-1", LineItems: tt.lineItems}
			verdict := testClassifier().Classify(rec, models.ReconciledTotals{}, tt.violations)

			require.NotEmpty(t, verdict.Exceptions)
			for _, exc := range verdict.Exceptions {
				assert.Equal(t, tt.want, exc.Severity)
			}
		})
	}
}

func TestClassifyPreservesViolationOrder(t *testing.T) {
	violations := []models.Violation{
		{Rule: models.ExceptionDateAnomaly, Anomaly: rules.AnomalyStale, Detail: "old"},
		{Rule: models.ExceptionMissingMandatoryField, Field: "supplier_name", Detail: "no supplier"},
		{Rule: models.ExceptionLargeAmount, Detail: "big"},
	}

	rec := &models.InvoiceFieldRecord{InvoiceID: "INV-1"}
	verdict := testClassifier().Classify(rec, models.ReconciledTotals{}, violations)

	require.Len(t, verdict.Exceptions, 3)
	// Low severity first: evaluation order is kept, never re-sorted.
	assert.Equal(t, models.ExceptionDateAnomaly, verdict.Exceptions[0].Type)
	assert.Equal(t, models.ExceptionMissingMandatoryField, verdict.Exceptions[1].Type)
	assert.Equal(t, models.ExceptionLargeAmount, verdict.Exceptions[2].Type)

	assert.True(t, verdict.IsException)
	assert.Equal(t, 3, verdict.ExceptionCount)
	assert.Equal(t, 1, verdict.HighSeverityCount)
	assert.True(t, verdict.RequiresReview)
}

func TestClassifyExceptionEnvelope(t *testing.T) {
	rec := &models.InvoiceFieldRecord{InvoiceID: "INV-1"}
	verdict := testClassifier().Classify(rec, models.ReconciledTotals{}, []models.Violation{
		{Rule: models.ExceptionLargeAmount, Field: "total_amount", Detail: "total is large"},
		{Rule: models.ExceptionUnusualTaxRate, Field: "tax_amount", Detail: "odd rate"},
	})

	require.Len(t, verdict.Exceptions, 2)
	assert.Equal(t, "exc-0001", verdict.Exceptions[0].ExceptionID)
	assert.Equal(t, "exc-0002", verdict.Exceptions[1].ExceptionID)
	for _, exc := range verdict.Exceptions {
		assert.Equal(t, StatusPending, exc.Status)
		assert.NotEmpty(t, exc.Message)
		assert.NotEmpty(t, exc.Field)
	}
	assert.False(t, verdict.RequiresReview, "medium findings alone do not require review")
}

func TestClassifyGeneratesUniqueIDs(t *testing.T) {
	c := NewClassifier(Params{
		HighSeverityAbsolute: decimal.NewFromInt(50),
		HighSeverityRelative: decimal.NewFromFloat(0.05),
	})

	rec := &models.InvoiceFieldRecord{InvoiceID: "INV-1"}
	verdict := c.Classify(rec, models.ReconciledTotals{}, []models.Violation{
		{Rule: models.ExceptionLargeAmount},
		{Rule: models.ExceptionLargeAmount},
	})

	require.Len(t, verdict.Exceptions, 2)
	assert.NotEqual(t, verdict.Exceptions[0].ExceptionID, verdict.Exceptions[1].ExceptionID)
	assert.NotEmpty(t, verdict.Exceptions[0].ExceptionID)
}
