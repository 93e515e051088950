package timeutil

import (
	"fmt"
	"regexp"
	"strconv"
)

var isoDurationRegexp = regexp.MustCompile(`^PT(?:(\d+)H)?(?:(\d+)M)?(?:(\d+)S)?$`)

// ParseISODuration converts an ISO-8601 duration as returned by the YouTube
// Data API (PT4M13S, PT1H30M5S, PT45S, ...) into whole seconds. Durations it
// can't understand come back as zero seconds along with an error.
func ParseISODuration(s string) (int, error) {
	m := isoDurationRegexp.FindStringSubmatch(s)
	if m == nil {
		return 0, fmt.Errorf("timeutil.ParseISODuration: could not parse %q as an ISO-8601 duration", s)
	}

	var total int

	if m[1] != "" {
		hours, err := strconv.Atoi(m[1])
		if err != nil {
			return 0, fmt.Errorf("timeutil.ParseISODuration: could not parse hours in %q: %w", s, err)
		}
		total += hours * 3600
	}

	if m[2] != "" {
		minutes, err := strconv.Atoi(m[2])
		if err != nil {
			return 0, fmt.Errorf("timeutil.ParseISODuration: could not parse minutes in %q: %w", s, err)
		}
		total += minutes * 60
	}

	if m[3] != "" {
		seconds, err := strconv.Atoi(m[3])
		if err != nil {
			return 0, fmt.Errorf("timeutil.ParseISODuration: could not parse seconds in %q: %w", s, err)
		}
		total += seconds
	}

	return total, nil
}

// FormatSeconds renders a duration in seconds the way the dashboard shows it,
// e.g. 1h2m5s, 4m13s, 45s.
func FormatSeconds(seconds int) string {
	if seconds == 0 {
		return "0s"
	}

	var out string

	if h := seconds / 3600; h > 0 {
		out += strconv.Itoa(h) + "h"
	}
	if m := (seconds % 3600) / 60; m > 0 {
		out += strconv.Itoa(m) + "m"
	}
	if s := seconds % 60; s > 0 {
		out += strconv.Itoa(s) + "s"
	}

	return out
}
