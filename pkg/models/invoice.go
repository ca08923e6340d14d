package models

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// DateLayout is the canonical calendar date form used across the pipeline.
const DateLayout = "01/02/2006" // MM/DD/YYYY

// Date is a calendar date in canonical MM/DD/YYYY form. A nil *Date means the
// field was absent or could not be parsed with confidence.
type Date struct {
	time.Time
}

// NewDate builds a Date from a time value, dropping the time-of-day component.
func NewDate(t time.Time) Date {
	return Date{time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)}
}

// String returns the canonical MM/DD/YYYY representation.
func (d Date) String() string {
	return d.Format(DateLayout)
}

// MarshalJSON renders the date in canonical MM/DD/YYYY form.
func (d Date) MarshalJSON() ([]byte, error) {
	return []byte(fmt.Sprintf("%q", d.Format(DateLayout))), nil
}

// UnmarshalJSON accepts the canonical MM/DD/YYYY form.
func (d *Date) UnmarshalJSON(data []byte) error {
	s := string(data)
	if s == "null" {
		return nil
	}
	if len(s) >= 2 && s[0] == '"' && s[len(s)-1] == '"' {
		s = s[1 : len(s)-1]
	}
	t, err := time.Parse(DateLayout, s)
	if err != nil {
		return fmt.Errorf("invalid date %q: %w", s, err)
	}
	*d = Date{t}
	return nil
}

// LineItem is one row of an invoice in document order.
type LineItem struct {
	LineNumber  int              `json:"line_number"` // 1-based, assigned by the normalizer if absent
	ItemCode    string           `json:"item_code,omitempty"`
	Description string           `json:"description,omitempty"` // newlines and runs of whitespace collapsed
	Quantity    *decimal.Decimal `json:"quantity,omitempty"`
	UnitPrice   *decimal.Decimal `json:"unit_price,omitempty"`
	LineTotal   *decimal.Decimal `json:"line_total,omitempty"`
}

// InvoiceFieldRecord is the normalized extraction result for one invoice
// document. Monetary and date fields are nil when the extractor produced
// nothing usable; Currency is never empty (defaults to USD).
type InvoiceFieldRecord struct {
	// Identity
	InvoiceID     string `json:"invoice_id"`
	InvoiceNumber string `json:"invoice_number"`

	// Dates
	InvoiceDate *Date `json:"invoice_date,omitempty"`
	DueDate     *Date `json:"due_date,omitempty"`
	ShipDate    *Date `json:"ship_date,omitempty"`

	// Parties
	SupplierName          string `json:"supplier_name,omitempty"`
	SupplierAddress       string `json:"supplier_address,omitempty"`
	SupplierEmail         string `json:"supplier_email,omitempty"`
	SupplierPhone         string `json:"supplier_phone,omitempty"`
	CustomerName          string `json:"customer_name,omitempty"`
	CustomerAddress       string `json:"customer_address,omitempty"`
	CustomerPONumber      string `json:"customer_po_number,omitempty"`
	CustomerAccountNumber string `json:"customer_account_number,omitempty"`

	// Monetary
	Subtotal       *decimal.Decimal `json:"subtotal,omitempty"`
	TaxAmount      *decimal.Decimal `json:"tax_amount,omitempty"`
	ShippingAmount *decimal.Decimal `json:"shipping_amount,omitempty"`
	DiscountAmount *decimal.Decimal `json:"discount_amount,omitempty"`
	TotalAmount    *decimal.Decimal `json:"total_amount,omitempty"`
	Currency       string           `json:"currency"`

	LineItems []LineItem `json:"line_items,omitempty"`

	// Ancillary
	PaymentTerms      string `json:"payment_terms,omitempty"`
	TrackingNumber    string `json:"tracking_number,omitempty"`
	ShippingMethod    string `json:"shipping_method,omitempty"`
	Notes             string `json:"notes,omitempty"`
	Department        string `json:"department,omitempty"`
	Salesperson       string `json:"salesperson,omitempty"`
	RemittanceName    string `json:"remittance_name,omitempty"`
	RemittanceAddress string `json:"remittance_address,omitempty"`
}

// ReconciledTotals carries the derived monetary figures computed by the
// reconciliation stage. Extracted values on the record are never overwritten;
// both are kept for audit.
type ReconciledTotals struct {
	ComputedSubtotal decimal.Decimal  `json:"computed_subtotal"`
	ComputedTotal    decimal.Decimal  `json:"computed_total"`
	// SubtotalSource records which rule produced ComputedSubtotal:
	// "line_items", "extracted" or "derived".
	SubtotalSource string `json:"subtotal_source"`
	// Extracted values echoed for audit alongside the computed ones.
	Subtotal       *decimal.Decimal `json:"subtotal,omitempty"`
	TaxAmount      *decimal.Decimal `json:"tax_amount,omitempty"`
	ShippingAmount *decimal.Decimal `json:"shipping_amount,omitempty"`
	DiscountAmount *decimal.Decimal `json:"discount_amount,omitempty"`
	TotalAmount    *decimal.Decimal `json:"total_amount,omitempty"`
	Currency       string           `json:"currency"`
}

// ExceptionType identifies which rule produced an exception.
type ExceptionType string

const (
	ExceptionMissingMandatoryField ExceptionType = "MISSING_MANDATORY_FIELD"
	ExceptionIdentityMismatch      ExceptionType = "IDENTITY_MISMATCH"
	ExceptionTotalMismatch         ExceptionType = "TOTAL_MISMATCH"
	ExceptionSubtotalMismatch      ExceptionType = "SUBTOTAL_MISMATCH"
	ExceptionLineItemMismatch      ExceptionType = "LINE_ITEM_MISMATCH"
	ExceptionDateAnomaly           ExceptionType = "DATE_ANOMALY"
	ExceptionNegativeAmount        ExceptionType = "NEGATIVE_AMOUNT"
	ExceptionLargeAmount           ExceptionType = "LARGE_AMOUNT"
	ExceptionUnusualTaxRate        ExceptionType = "UNUSUAL_TAX_RATE"
)

// Severity is the review priority of an exception.
type Severity string

const (
	SeverityHigh   Severity = "high"
	SeverityMedium Severity = "medium"
	SeverityLow    Severity = "low"
)

// Violation is a single business-rule finding. Violations are data, not
// errors; the rule set returns them in evaluation order and the classifier
// maps them to exceptions.
type Violation struct {
	Rule   ExceptionType `json:"rule"`
	Field  string        `json:"field"`
	Detail string        `json:"detail"`

	// Discrepancy is the absolute difference for reconciliation rules,
	// nil for presence and date rules.
	Discrepancy *decimal.Decimal `json:"discrepancy,omitempty"`
	// BaseAmount is the reference amount a Discrepancy is measured against.
	BaseAmount *decimal.Decimal `json:"base_amount,omitempty"`
	// LineNumber is set for per-line-item rules, 0 otherwise.
	LineNumber int `json:"line_number,omitempty"`
	// Anomaly distinguishes date findings ("future", "stale", "ordering").
	Anomaly string `json:"anomaly,omitempty"`
}

// InvoiceException is one classified finding ready for the review store.
type InvoiceException struct {
	ExceptionID string        `json:"exception_id"`
	Type        ExceptionType `json:"type"`
	Severity    Severity      `json:"severity"`
	Message     string        `json:"message"`
	Field       string        `json:"field,omitempty"`
	Status      string        `json:"status"` // always PENDING at creation
}

// ValidationVerdict is the engine's complete output for one invoice. It is
// never mutated after creation; the caller owns it.
type ValidationVerdict struct {
	InvoiceID         string             `json:"invoice_id"`
	IsException       bool               `json:"is_exception"`
	RequiresReview    bool               `json:"requires_review"` // any high-severity exception
	Exceptions        []InvoiceException `json:"exceptions"`
	ExceptionCount    int                `json:"exception_count"`
	HighSeverityCount int                `json:"high_severity_count"`
	ReconciledTotals  ReconciledTotals   `json:"reconciled_totals"`
}
