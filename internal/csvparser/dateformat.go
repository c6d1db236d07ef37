package csvparser

import (
	"fmt"
	"regexp"
	"strings"
	"time"
)

// fallbackFormats is the documented fallback list, tried in order after the
// mapping's primary format.
var fallbackFormats = []string{
	"yyyy-MM-dd HH:mm:ss",
	"yyyy-MM-dd",
	"dd/MM/yyyy",
	"MM/dd/yyyy",
	"dd-MM-yyyy",
	"dd/MM/yyyy HH:mm:ss",
	"yyyy/MM/dd",
	"d/M/yyyy",
}

var tokenReplacer = strings.NewReplacer(
	"yyyy", "2006",
	"MM", "01",
	"dd", "02",
	"HH", "15",
	"mm", "04",
	"ss", "05",
	"M", "1",
	"d", "2",
)

func toGoLayout(format string) string {
	return tokenReplacer.Replace(format)
}

var timeIndicatorRe = regexp.MustCompile(`\d:`)

// hasTimeIndicator reports whether raw contains a time component: a T/t
// separator or a digit immediately followed by a colon.
func hasTimeIndicator(raw string) bool {
	if strings.ContainsAny(raw, "Tt") {
		return true
	}
	return timeIndicatorRe.MatchString(raw)
}

// parseDate tries primaryFormat (if non-empty) then the fallback list,
// returning the parsed time and whether raw carried no time component (in
// which case the result is pinned to 12:00 local time).
func parseDate(raw, primaryFormat string) (time.Time, bool, error) {
	formats := make([]string, 0, len(fallbackFormats)+1)
	if primaryFormat != "" {
		formats = append(formats, primaryFormat)
	}
	formats = append(formats, fallbackFormats...)

	dateOnly := !hasTimeIndicator(raw)

	for _, f := range formats {
		layout := toGoLayout(f)
		t, err := time.ParseInLocation(layout, raw, time.Local)
		if err != nil {
			continue
		}
		if dateOnly {
			t = time.Date(t.Year(), t.Month(), t.Day(), 12, 0, 0, 0, time.Local)
		}
		return t, dateOnly, nil
	}

	return time.Time{}, false, fmt.Errorf("no known date format matched %q", raw)
}
