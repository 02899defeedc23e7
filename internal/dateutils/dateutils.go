// Package dateutils provides date parsing for the wire formats the
// statement parsers deal with.
package dateutils

import (
	"fmt"
	"strings"
	"time"
)

// Layouts seen across bank statement exports.
const (
	LayoutISO      = "2006-01-02"
	LayoutEuropean = "02.01.2006"
	LayoutSlash    = "02/01/2006"
	LayoutCompact  = "20060102"   // OFX DTPOSTED prefix
	LayoutSwiftDay = "060102"     // MT940 :61: value date
	LayoutFull     = "2006-01-02 15:04:05"
)

// CommonLayouts is tried in order by ParseDate. Order matters: the compact
// layouts would happily swallow prefixes of longer ones.
var CommonLayouts = []string{
	LayoutFull,
	LayoutISO,
	LayoutEuropean,
	LayoutSlash,
	LayoutCompact,
	"02-01-2006",
	"2006/01/02",
	"2-Jan-2006",
}

// ParseDate attempts to parse a date string using the common layouts.
func ParseDate(s string) (time.Time, error) {
	s = Clean(s)
	for _, layout := range CommonLayouts {
		if len(s) != len(layout) && !strings.Contains(layout, "Jan") {
			continue
		}
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unable to parse date: %s", s)
}

// ParseSwiftDate parses the six-digit YYMMDD dates used in MT940 fields.
func ParseSwiftDate(s string) (time.Time, error) {
	t, err := time.Parse(LayoutSwiftDay, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("unable to parse SWIFT date: %s", s)
	}
	return t, nil
}

// ParseOFXDate parses OFX timestamps, which are YYYYMMDD optionally followed
// by a time part and a timezone suffix like [+1:CET]. Only the date part is
// significant for matching.
func ParseOFXDate(s string) (time.Time, error) {
	s = Clean(s)
	if idx := strings.IndexByte(s, '['); idx > 0 {
		s = s[:idx]
	}
	if len(s) < len(LayoutCompact) {
		return time.Time{}, fmt.Errorf("unable to parse OFX date: %s", s)
	}
	t, err := time.Parse(LayoutCompact, s[:len(LayoutCompact)])
	if err != nil {
		return time.Time{}, fmt.Errorf("unable to parse OFX date: %s", s)
	}
	return t, nil
}

// Clean trims whitespace and stray quotes around a date value.
func Clean(s string) string {
	return strings.Trim(strings.TrimSpace(s), `"'`)
}
