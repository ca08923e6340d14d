// Package normalize turns the loosely-typed field mapping produced by an
// upstream document extractor into a canonical InvoiceFieldRecord.
//
// The extractor's output is untrusted structured text: numbers arrive as
// strings with currency symbols, dates in half a dozen formats, text with
// embedded newlines. Normalization isolates that noise from rule evaluation.
// Only true data-shape problems fail here (as NormalizationError); anything
// that is merely suspicious is preserved for the rule set to flag.
package normalize

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"apinvoice/internal/logger"
	"apinvoice/pkg/models"
)

// DefaultCurrency is assigned when the extractor produced no usable currency.
const DefaultCurrency = "USD"

// Normalizer coerces raw extraction records into InvoiceFieldRecords.
type Normalizer struct {
	log zerolog.Logger
	now func() time.Time
}

// NewNormalizer creates a normalizer using the wall clock for year inference.
func NewNormalizer() *Normalizer {
	return &Normalizer{
		log: logger.WithComponent("normalizer"),
		now: time.Now,
	}
}

// Synonyms the upstream extractors use for canonical field names.
var fieldSynonyms = map[string][]string{
	"subtotal":        {"subtotal", "net_amount"},
	"tax_amount":      {"tax_amount", "total_tax_amount", "tax"},
	"shipping_amount": {"shipping_amount", "freight_amount", "shipping"},
	"discount_amount": {"discount_amount", "discount"},
	"total_amount":    {"total_amount", "total"},
}

// Normalize converts a raw extraction mapping into a canonical record.
// Missing keys are treated as null. It fails only when a present value
// cannot be coerced to its declared type.
func (n *Normalizer) Normalize(raw map[string]interface{}) (*models.InvoiceFieldRecord, error) {
	if raw == nil {
		return nil, &NormalizationError{Reason: "nil extraction record", Err: ErrNotAnObject}
	}
	if err := recordSchema.Validate(map[string]interface{}(raw)); err != nil {
		return nil, &NormalizationError{Reason: fmt.Sprintf("schema check failed: %v", err), Err: ErrMalformedRecord}
	}

	rec := &models.InvoiceFieldRecord{
		InvoiceID:     stringValue(raw["invoice_id"]),
		InvoiceNumber: stringValue(raw["invoice_number"]),

		SupplierName:          cleanText(stringValue(raw["supplier_name"])),
		SupplierAddress:       cleanAddress(stringValue(raw["supplier_address"])),
		SupplierEmail:         cleanText(stringValue(raw["supplier_email"])),
		SupplierPhone:         cleanText(stringValue(raw["supplier_phone"])),
		CustomerName:          cleanText(stringValue(raw["customer_name"])),
		CustomerAddress:       cleanAddress(stringValue(raw["customer_address"])),
		CustomerPONumber:      cleanText(stringValue(raw["customer_po_number"])),
		CustomerAccountNumber: cleanText(stringValue(raw["customer_account_number"])),

		PaymentTerms:      cleanText(stringValue(raw["payment_terms"])),
		TrackingNumber:    cleanText(stringValue(raw["tracking_number"])),
		ShippingMethod:    cleanText(stringValue(raw["shipping_method"])),
		Notes:             cleanText(stringValue(raw["notes"])),
		Department:        cleanText(stringValue(raw["department"])),
		Salesperson:       cleanText(stringValue(raw["salesperson"])),
		RemittanceName:    cleanText(stringValue(raw["remittance_name"])),
		RemittanceAddress: cleanAddress(stringValue(raw["remittance_address"])),
	}

	// invoice_id and invoice_number come from the same source value; when the
	// extractor emitted only one key, the other mirrors it.
	if rec.InvoiceID == "" {
		rec.InvoiceID = rec.InvoiceNumber
	}
	if rec.InvoiceNumber == "" {
		rec.InvoiceNumber = rec.InvoiceID
	}

	now := n.now()
	rec.InvoiceDate = parseDate(stringValue(raw["invoice_date"]), now)
	rec.DueDate = parseDate(stringValue(raw["due_date"]), now)
	rec.ShipDate = parseDate(stringValue(raw["ship_date"]), now)

	var err error
	if rec.Subtotal, err = amountField(raw, "subtotal"); err != nil {
		return nil, err
	}
	if rec.TaxAmount, err = amountField(raw, "tax_amount"); err != nil {
		return nil, err
	}
	if rec.ShippingAmount, err = amountField(raw, "shipping_amount"); err != nil {
		return nil, err
	}
	if rec.DiscountAmount, err = amountField(raw, "discount_amount"); err != nil {
		return nil, err
	}
	if rec.TotalAmount, err = amountField(raw, "total_amount"); err != nil {
		return nil, err
	}

	rec.Currency = normalizeCurrency(raw["currency"])

	if rec.LineItems, err = n.normalizeLineItems(raw["line_items"]); err != nil {
		return nil, err
	}

	n.log.Debug().
		Str("invoice_id", rec.InvoiceID).
		Int("line_items", len(rec.LineItems)).
		Str("currency", rec.Currency).
		Msg("Extraction record normalized")

	return rec, nil
}

func (n *Normalizer) normalizeLineItems(v interface{}) ([]models.LineItem, error) {
	if v == nil {
		return nil, nil
	}
	rawItems, ok := v.([]interface{})
	if !ok {
		return nil, NewNormalizationError("line_items", v, "not an array")
	}

	items := make([]models.LineItem, 0, len(rawItems))
	for i, ri := range rawItems {
		entry, ok := ri.(map[string]interface{})
		if !ok {
			return nil, NewNormalizationError(fmt.Sprintf("line_items[%d]", i), ri, "not an object")
		}

		item := models.LineItem{
			ItemCode:    cleanText(stringValue(firstPresent(entry, "item_code", "product_code"))),
			Description: cleanText(stringValue(entry["description"])),
		}

		var err error
		prefix := fmt.Sprintf("line_items[%d].", i)
		if item.Quantity, err = parseAmount(prefix+"quantity", entry["quantity"]); err != nil {
			return nil, err
		}
		if item.UnitPrice, err = parseAmount(prefix+"unit_price", entry["unit_price"]); err != nil {
			return nil, err
		}
		if item.LineTotal, err = parseAmount(prefix+"line_total", firstPresent(entry, "line_total", "amount")); err != nil {
			return nil, err
		}

		// Document-order position when the source carries no usable number.
		item.LineNumber = i + 1
		if ln, ok := intValue(entry["line_number"]); ok && ln > 0 {
			item.LineNumber = ln
		}

		items = append(items, item)
	}
	return items, nil
}

// amountField resolves a canonical monetary field through its synonyms,
// first present key wins.
func amountField(raw map[string]interface{}, canonical string) (*decimal.Decimal, error) {
	for _, key := range fieldSynonyms[canonical] {
		if v, ok := raw[key]; ok && v != nil {
			return parseAmount(key, v)
		}
	}
	return nil, nil
}

func normalizeCurrency(v interface{}) string {
	s, ok := v.(string)
	if !ok {
		return DefaultCurrency
	}
	s = strings.ToUpper(strings.TrimSpace(s))
	if len(s) != 3 {
		return DefaultCurrency
	}
	for _, r := range s {
		if r < 'A' || r > 'Z' {
			return DefaultCurrency
		}
	}
	return s
}

// stringValue renders a scalar extraction value as text. Numeric identifiers
// arrive as JSON numbers often enough that coercing them is the lenient thing
// to do; nil and unsupported types become the empty string.
func stringValue(v interface{}) string {
	switch t := v.(type) {
	case string:
		return t
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case int:
		return strconv.Itoa(t)
	case json.Number:
		return t.String()
	default:
		return ""
	}
}

func intValue(v interface{}) (int, bool) {
	switch t := v.(type) {
	case float64:
		// JSON integers arrive as float64; a fractional value is not an
		// integer field and is treated as absent rather than truncated.
		if t != math.Trunc(t) {
			return 0, false
		}
		return int(t), true
	case int:
		return t, true
	case json.Number:
		if i, err := t.Int64(); err == nil {
			return int(i), true
		}
	case string:
		if i, err := strconv.Atoi(strings.TrimSpace(t)); err == nil {
			return i, true
		}
	}
	return 0, false
}

func firstPresent(m map[string]interface{}, keys ...string) interface{} {
	for _, k := range keys {
		if v, ok := m[k]; ok && v != nil {
			return v
		}
	}
	return nil
}
