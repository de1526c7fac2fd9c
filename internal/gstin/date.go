package gstin

import (
	"fmt"
	"strings"
	"time"
)

// ISODate is the canonical calendar-date layout used in identity keys.
const ISODate = "2006-01-02"

var dateLayouts = []string{
	"2006-01-02",
	"02-01-2006",
	"02/01/2006",
	"2006/01/02",
	"02.01.2006",
	"02 Jan 2006",
	"2 Jan 2006",
	"02-Jan-2006",
	"Jan 02, 2006",
	"January 02, 2006",
	"02-01-2006 15:04:05",
	"2006-01-02T15:04:05Z07:00",
}

// ParseDate accepts the layouts seen across GST portal downloads and purchase registers
// (day-first, as filed in India) and returns the UTC calendar date.
func ParseDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC), nil
		}
	}
	return time.Time{}, fmt.Errorf("unparseable date: %q", s)
}

// DaysBetween returns the absolute number of calendar days between two dates.
func DaysBetween(a, b time.Time) int {
	d := a.Sub(b).Hours() / 24
	if d < 0 {
		d = -d
	}
	return int(d + 0.5)
}

// TaxPeriod returns the GSTR return period (MMYYYY) a date falls in.
func TaxPeriod(t time.Time) string {
	return t.Format("012006")
}
