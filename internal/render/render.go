// Package render holds the shared formatting helpers for registry rows and
// user-entered dates. Every function is pure; callers inject "today" so the
// output is deterministic under test.
package render

import (
	"fmt"
	"strings"
	"time"

	dErrors "sigreg/pkg/domain-errors"

	"sigreg/internal/registry"
)

// dateLayouts are tried in order. Both are day-first or unambiguous; formats
// like 31/13/2025 fail on all of them.
var dateLayouts = []string{
	"02.01.2006",
	"2006-01-02",
	"02.01.06",
	"02/01/2006",
}

// ParseDate parses a user-entered expiry date. The result is normalized to
// UTC midnight to match registry.DateOnly.
func ParseDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range dateLayouts {
		t, err := time.Parse(layout, s)
		if err == nil {
			return registry.DateOnly(t), nil
		}
	}
	return time.Time{}, dErrors.Newf(dErrors.CodeValidation,
		"unrecognized date %q, expected DD.MM.YYYY or YYYY-MM-DD", s)
}

// FormatDate renders a date the way users type it, DD.MM.YYYY.
func FormatDate(t time.Time) string {
	return t.Format("02.01.2006")
}

// KindTag returns the bracketed kind marker used in listings.
func KindTag(k registry.Kind) string {
	if k == registry.KindOrg {
		return "[org]"
	}
	return "[person]"
}

// StatusLine renders one registry row: kind tag, name, expiry with an
// expired / due-today marker relative to today, and the note on a second
// line when present.
func StatusLine(row registry.EntityRow, today time.Time) string {
	var b strings.Builder
	b.WriteString(KindTag(row.Kind))
	b.WriteByte(' ')
	b.WriteString(row.Name)

	if !row.HasSignature() {
		b.WriteString(" — no signature yet")
		return b.String()
	}

	expiry := registry.DateOnly(*row.Expiry)
	today = registry.DateOnly(today)

	fmt.Fprintf(&b, " — until %s", FormatDate(expiry))
	switch {
	case expiry.Before(today):
		b.WriteString(" — expired")
	case expiry.Equal(today):
		b.WriteString(" — due today!")
	}
	if row.Note != nil && *row.Note != "" {
		b.WriteByte('\n')
		b.WriteString(*row.Note)
	}
	return b.String()
}

// StatusList renders rows as one block, blank-line separated so multi-line
// entries (those with notes) stay visually grouped.
func StatusList(rows []registry.EntityRow, today time.Time) string {
	lines := make([]string, 0, len(rows))
	for _, row := range rows {
		lines = append(lines, StatusLine(row, today))
	}
	return strings.Join(lines, "\n\n")
}

// DaysUntil returns the whole-day difference from today to expiry. Negative
// when the expiry is already past.
func DaysUntil(expiry, today time.Time) int {
	d := registry.DateOnly(expiry).Sub(registry.DateOnly(today))
	return int(d.Hours() / 24)
}
