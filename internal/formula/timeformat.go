package formula

import (
	"errors"
	"strings"
	"time"
)

// nowFunc is swapped in tests so now() and today() are deterministic.
var nowFunc = time.Now

func dateOnly(year, month, day int) time.Time {
	return time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)
}

// toCharReplacer maps the to_char style tokens the formula language accepts
// to Go reference-time fragments. HH24 sorts before HH so the longer token
// wins.
var toCharReplacer = strings.NewReplacer(
	"HH24", "15",
	"YYYY", "2006",
	"MM", "01",
	"DD", "02",
	"MI", "04",
	"SS", "05",
)

func toCharToGoLayout(format string) string {
	return toCharReplacer.Replace(format)
}

// parseTimeLenient tries the requested layout first and falls back to the
// two canonical layouts, so ISO input parses regardless of the format arg.
func parseTimeLenient(value, layout string) (time.Time, error) {
	for _, l := range []string{layout, DateTimeLayout, DateLayout} {
		if t, err := time.Parse(l, value); err == nil {
			return t, nil
		}
	}
	return time.Time{}, errors.New("unrecognized date value")
}
