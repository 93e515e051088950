// Package captions turns machine-generated subtitle streams into plain
// transcripts and owns the deduplicated caption file store.
package captions

import (
	"regexp"
	"strings"
)

var inlineTagRegexp = regexp.MustCompile(`<[^>]+>`)

// Normalize reduces raw VTT-style subtitle text to a plain transcript. It is
// total: malformed lines are dropped rather than reported, so any input
// produces a (possibly empty) result. Running it over already-normalized text
// returns the text unchanged.
func Normalize(raw string) string {
	var out []string
	var previous string
	havePrevious := false

	for _, line := range strings.Split(raw, "\n") {
		line = strings.TrimSpace(line)

		if line == "" || strings.HasPrefix(line, "WEBVTT") || strings.Contains(line, "-->") || isDigits(line) || strings.HasPrefix(line, "NOTE") {
			continue
		}

		// inline cue timestamps like <00:00:06.359> mark word-timed duplicate
		// lines; the plain copy of the same text appears on its own line
		if strings.Contains(line, "<00:") {
			continue
		}

		line = strings.TrimSpace(inlineTagRegexp.ReplaceAllString(line, ""))
		if line == "" {
			continue
		}

		// auto-caption engines repeat a line across adjacent cues; collapse
		// only consecutive duplicates
		if havePrevious && line == previous {
			continue
		}

		out = append(out, line)
		previous = line
		havePrevious = true
	}

	return strings.Join(out, "\n")
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}

	for _, c := range s {
		if c < '0' || c > '9' {
			return false
		}
	}

	return true
}
