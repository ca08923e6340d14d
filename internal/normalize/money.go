package normalize

import (
	"encoding/json"
	"strings"

	"github.com/shopspring/decimal"
)

// parseAmount coerces a raw extracted value into a decimal amount. It accepts
// JSON numbers directly and cleans formatted strings of currency symbols,
// currency codes and thousands separators before parsing. A nil, empty or
// "null" value yields (nil, nil); a value with no usable digits is an error.
//
// Negative amounts are preserved as-is. Whether a negative value is
// acceptable for a given field is a business rule, decided downstream.
func parseAmount(field string, v interface{}) (*decimal.Decimal, error) {
	switch t := v.(type) {
	case nil:
		return nil, nil
	case float64:
		d := decimal.NewFromFloat(t)
		return &d, nil
	case int:
		d := decimal.NewFromInt(int64(t))
		return &d, nil
	case int64:
		d := decimal.NewFromInt(t)
		return &d, nil
	case json.Number:
		d, err := decimal.NewFromString(t.String())
		if err != nil {
			return nil, NewNormalizationError(field, v, "not a number")
		}
		return &d, nil
	case string:
		return parseAmountString(field, t)
	default:
		return nil, NewNormalizationError(field, v, "unsupported value type for amount")
	}
}

func parseAmountString(field, s string) (*decimal.Decimal, error) {
	s = strings.TrimSpace(s)
	if s == "" || strings.EqualFold(s, "null") {
		return nil, nil
	}

	// Accountant-style negatives: (1,234.56)
	neg := false
	if strings.HasPrefix(s, "(") && strings.HasSuffix(s, ")") {
		neg = true
		s = strings.TrimSpace(s[1 : len(s)-1])
	}
	if strings.HasPrefix(s, "-") {
		neg = true
		s = strings.TrimSpace(strings.TrimPrefix(s, "-"))
	}

	// Keep digits and '.' only; this drops currency symbols, ISO codes and
	// thousands separators in one pass.
	var b strings.Builder
	b.Grow(len(s))
	letters := 0
	for _, r := range s {
		switch {
		case r >= '0' && r <= '9', r == '.':
			b.WriteRune(r)
		case (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z'):
			letters++
		}
	}
	clean := b.String()
	if clean == "" {
		return nil, NewNormalizationError(field, s, "no numeric content")
	}
	// A short code like "USD" next to digits is fine; mostly-text values are
	// not amounts even if a stray digit survives.
	if letters > 4 {
		return nil, NewNormalizationError(field, s, "not a monetary value")
	}
	if neg {
		clean = "-" + clean
	}

	d, err := decimal.NewFromString(clean)
	if err != nil {
		return nil, &NormalizationError{Field: field, Value: s, Reason: "not a number", Err: err}
	}
	return &d, nil
}
