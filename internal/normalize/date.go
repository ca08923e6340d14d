package normalize

import (
	"strconv"
	"strings"
	"time"

	"apinvoice/pkg/models"
)

// Layouts the upstream extractors are known to emit, canonical-month-first
// where the text doesn't disambiguate.
var dateLayouts = []string{
	"2006-01-02",
	"2006/01/02",
	"01/02/2006",
	"1/2/2006",
	"01-02-2006",
	"1-2-2006",
	"Jan 2, 2006",
	"Jan 2 2006",
	"January 2, 2006",
	"January 2 2006",
	"2 Jan 2006",
	"2 January 2006",
}

// Layouts without a year; the current calendar year is inferred for these.
var yearlessLayouts = []string{
	"Jan 2",
	"January 2",
	"2 Jan",
	"2 January",
	"01/02",
	"1/2",
}

// parseDate coerces free date text to a canonical calendar date. It returns
// nil when the text is empty, ambiguous or unparseable; a date field is never
// guessed. The year is inferred (from now) only when the text carries no year
// at all and the rest is unambiguous.
func parseDate(s string, now time.Time) *models.Date {
	s = strings.TrimSpace(s)
	if s == "" || strings.EqualFold(s, "null") {
		return nil
	}

	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			d := models.NewDate(t)
			return &d
		}
	}

	// Slash dates that failed month-first: accept day-first only when the
	// first component cannot be a month, so the ordering is not a guess.
	if d := parseDayFirst(s); d != nil {
		return d
	}

	for _, layout := range yearlessLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			d := models.NewDate(time.Date(now.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC))
			return &d
		}
	}

	return nil
}

func parseDayFirst(s string) *models.Date {
	sep := "/"
	if !strings.Contains(s, "/") {
		if !strings.Contains(s, "-") {
			return nil
		}
		sep = "-"
	}
	parts := strings.Split(s, sep)
	if len(parts) != 3 {
		return nil
	}
	day, err1 := strconv.Atoi(strings.TrimSpace(parts[0]))
	month, err2 := strconv.Atoi(strings.TrimSpace(parts[1]))
	year, err3 := strconv.Atoi(strings.TrimSpace(parts[2]))
	if err1 != nil || err2 != nil || err3 != nil {
		return nil
	}
	if day <= 12 || month < 1 || month > 12 || year < 1000 {
		return nil
	}
	t := time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)
	// Reject day overflow (e.g. 31/02) that Date silently rolls over.
	if t.Day() != day || t.Month() != time.Month(month) {
		return nil
	}
	d := models.NewDate(t)
	return &d
}
