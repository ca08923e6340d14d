package normalize

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testNormalizer() *Normalizer {
	n := NewNormalizer()
	n.now = func() time.Time {
		return time.Date(2026, 6, 15, 10, 0, 0, 0, time.UTC)
	}
	return n
}

func TestNormalizeNilRecord(t *testing.T) {
	n := testNormalizer()
	_, err := n.Normalize(nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrNotAnObject)
}

func TestNormalizeEmptyRecord(t *testing.T) {
	// An empty object is a valid (if useless) extraction; missing fields are
	// a business-rule problem, not a shape problem.
	n := testNormalizer()
	rec, err := n.Normalize(map[string]interface{}{})
	require.NoError(t, err)
	assert.Empty(t, rec.InvoiceID)
	assert.Nil(t, rec.InvoiceDate)
	assert.Nil(t, rec.TotalAmount)
	assert.Equal(t, DefaultCurrency, rec.Currency)
}

func TestNormalizeCompleteRecord(t *testing.T) {
	n := testNormalizer()
	raw := map[string]interface{}{
		"invoice_number":   "INV-1001",
		"invoice_date":     "2026-05-01",
		"due_date":         "06/01/2026",
		"supplier_name":    "  Acme   Corp  ",
		"supplier_address": "100 Main St\nSpringfield, IL 62701,",
		"customer_name":    "Widgets Inc",
		"subtotal":         "$1,000.00",
		"tax_amount":       "80.00",
		"shipping_amount":  "20.00",
		"total_amount":     "$1,100.00",
		"currency":         "usd",
		"line_items": []interface{}{
			map[string]interface{}{
				"description": "Elastic\nShirring  Assorted",
				"quantity":    10.0,
				"unit_price":  "100.00",
				"line_total":  "1,000.00",
			},
		},
	}

	rec, err := n.Normalize(raw)
	require.NoError(t, err)

	assert.Equal(t, "INV-1001", rec.InvoiceNumber)
	assert.Equal(t, "INV-1001", rec.InvoiceID, "invoice_id mirrors invoice_number")
	assert.Equal(t, "05/01/2026", rec.InvoiceDate.String())
	assert.Equal(t, "06/01/2026", rec.DueDate.String())
	assert.Equal(t, "Acme Corp", rec.SupplierName)
	assert.Equal(t, "100 Main St, Springfield, IL 62701", rec.SupplierAddress)
	assert.Equal(t, "USD", rec.Currency)

	require.NotNil(t, rec.Subtotal)
	assert.Equal(t, "1000", rec.Subtotal.String())
	require.NotNil(t, rec.TotalAmount)
	assert.Equal(t, "1100", rec.TotalAmount.String())

	require.Len(t, rec.LineItems, 1)
	item := rec.LineItems[0]
	assert.Equal(t, 1, item.LineNumber)
	assert.Equal(t, "Elastic Shirring Assorted", item.Description)
	require.NotNil(t, item.LineTotal)
	assert.Equal(t, "1000", item.LineTotal.String())
}

func TestNormalizeFieldSynonyms(t *testing.T) {
	n := testNormalizer()

	rec, err := n.Normalize(map[string]interface{}{
		"net_amount":       "500.00",
		"total_tax_amount": "40.00",
		"freight_amount":   "15.00",
		"discount":         "5.00",
		"total":            "550.00",
	})
	require.NoError(t, err)

	require.NotNil(t, rec.Subtotal)
	assert.Equal(t, "500", rec.Subtotal.String())
	require.NotNil(t, rec.TaxAmount)
	assert.Equal(t, "40", rec.TaxAmount.String())
	require.NotNil(t, rec.ShippingAmount)
	assert.Equal(t, "15", rec.ShippingAmount.String())
	require.NotNil(t, rec.DiscountAmount)
	assert.Equal(t, "5", rec.DiscountAmount.String())
	require.NotNil(t, rec.TotalAmount)
	assert.Equal(t, "550", rec.TotalAmount.String())
}

func TestNormalizeCanonicalKeyWinsOverSynonym(t *testing.T) {
	n := testNormalizer()
	rec, err := n.Normalize(map[string]interface{}{
		"subtotal":   "100.00",
		"net_amount": "999.00",
	})
	require.NoError(t, err)
	require.NotNil(t, rec.Subtotal)
	assert.Equal(t, "100", rec.Subtotal.String())
}

func TestNormalizeIdentityMirroring(t *testing.T) {
	n := testNormalizer()

	t.Run("number only", func(t *testing.T) {
		rec, err := n.Normalize(map[string]interface{}{"invoice_number": "INV-7"})
		require.NoError(t, err)
		assert.Equal(t, "INV-7", rec.InvoiceID)
		assert.Equal(t, "INV-7", rec.InvoiceNumber)
	})

	t.Run("id only", func(t *testing.T) {
		rec, err := n.Normalize(map[string]interface{}{"invoice_id": "INV-8"})
		require.NoError(t, err)
		assert.Equal(t, "INV-8", rec.InvoiceID)
		assert.Equal(t, "INV-8", rec.InvoiceNumber)
	})

	t.Run("numeric identifier coerced", func(t *testing.T) {
		rec, err := n.Normalize(map[string]interface{}{"invoice_number": 10042.0})
		require.NoError(t, err)
		assert.Equal(t, "10042", rec.InvoiceNumber)
	})
}

func TestNormalizeCurrency(t *testing.T) {
	tests := []struct {
		name  string
		value interface{}
		want  string
	}{
		{"valid upper", "EUR", "EUR"},
		{"lowercase", "gbp", "GBP"},
		{"padded", " JPY ", "JPY"},
		{"missing", nil, "USD"},
		{"too short", "E", "USD"},
		{"too long", "EURO", "USD"},
		{"symbol", "$", "USD"},
		{"digits", "123", "USD"},
	}

	n := testNormalizer()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			raw := map[string]interface{}{}
			if tt.value != nil {
				raw["currency"] = tt.value
			}
			rec, err := n.Normalize(raw)
			require.NoError(t, err)
			assert.Equal(t, tt.want, rec.Currency)
		})
	}
}

func TestNormalizeLineItemNumbering(t *testing.T) {
	n := testNormalizer()
	rec, err := n.Normalize(map[string]interface{}{
		"line_items": []interface{}{
			map[string]interface{}{"description": "first"},
			map[string]interface{}{"description": "explicit", "line_number": 7.0},
			map[string]interface{}{"description": "zero ignored", "line_number": 0.0},
			map[string]interface{}{"description": "fractional ignored", "line_number": 2.7},
		},
	})
	require.NoError(t, err)
	require.Len(t, rec.LineItems, 4)
	assert.Equal(t, 1, rec.LineItems[0].LineNumber)
	assert.Equal(t, 7, rec.LineItems[1].LineNumber)
	assert.Equal(t, 3, rec.LineItems[2].LineNumber)
	assert.Equal(t, 4, rec.LineItems[3].LineNumber)
}

func TestNormalizeLineItemSynonyms(t *testing.T) {
	n := testNormalizer()
	rec, err := n.Normalize(map[string]interface{}{
		"line_items": []interface{}{
			map[string]interface{}{
				"product_code": "SKU-9",
				"amount":       "150.00",
			},
		},
	})
	require.NoError(t, err)
	require.Len(t, rec.LineItems, 1)
	assert.Equal(t, "SKU-9", rec.LineItems[0].ItemCode)
	require.NotNil(t, rec.LineItems[0].LineTotal)
	assert.Equal(t, "150", rec.LineItems[0].LineTotal.String())
}

func TestNormalizeBadShapes(t *testing.T) {
	n := testNormalizer()

	tests := []struct {
		name string
		raw  map[string]interface{}
	}{
		{
			name: "line items not an array",
			raw:  map[string]interface{}{"line_items": "no items"},
		},
		{
			name: "line item not an object",
			raw:  map[string]interface{}{"line_items": []interface{}{"just a string"}},
		},
		{
			name: "uncoercible amount",
			raw:  map[string]interface{}{"total_amount": "call for pricing"},
		},
		{
			name: "uncoercible line item amount",
			raw: map[string]interface{}{
				"line_items": []interface{}{
					map[string]interface{}{"quantity": "a few"},
				},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := n.Normalize(tt.raw)
			require.Error(t, err)
			var nerr *NormalizationError
			assert.ErrorAs(t, err, &nerr)
		})
	}
}

func TestNormalizeUnparseableDateIsNil(t *testing.T) {
	// A bad date never fails normalization; the missing-field rule reports it.
	n := testNormalizer()
	rec, err := n.Normalize(map[string]interface{}{"invoice_date": "when it ships"})
	require.NoError(t, err)
	assert.Nil(t, rec.InvoiceDate)
}
