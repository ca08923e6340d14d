package normalize

import "strings"

// cleanText collapses newlines and runs of whitespace to single spaces and
// trims the result. Applied to every free-text field.
func cleanText(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// cleanAddress flattens a multi-line address into the single-line
// "Street, City, State ZIP" form: one comma-separated segment per source
// line, with each line's internal whitespace collapsed.
func cleanAddress(s string) string {
	lines := strings.FieldsFunc(s, func(r rune) bool {
		return r == '\n' || r == '\r'
	})
	segments := make([]string, 0, len(lines))
	for _, line := range lines {
		seg := cleanText(line)
		seg = strings.TrimRight(seg, ",")
		if seg != "" {
			segments = append(segments, seg)
		}
	}
	return strings.Join(segments, ", ")
}
