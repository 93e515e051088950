// Package shorts decides whether a video is a short-form upload. The decision
// is a heuristic: duration is authoritative up to 60 seconds, and a small set
// of secondary signals can stretch that to 65 seconds to tolerate platform
// post-processing drift. It is deliberately not "improved" beyond that;
// downstream stats depend on the exact boundaries.
package shorts

import (
	"strings"
)

const (
	durationLimit = 60
	driftBuffer   = 5
)

var hashtagKeywords = []string{"#shorts", "#short", "#youtubeshorts", "#ytshorts"}

// Indicators is the bundle of secondary signals. None of them is
// authoritative on its own.
type Indicators struct {
	DescriptionHashtag bool
	TitleHashtag       bool
	ShortTag           bool
	RecordingHint      bool
}

func (ind Indicators) count() int {
	n := 0
	if ind.DescriptionHashtag {
		n++
	}
	if ind.TitleHashtag {
		n++
	}
	if ind.ShortTag {
		n++
	}
	if ind.RecordingHint {
		n++
	}
	return n
}

// Detect derives the indicator bundle from video metadata.
func Detect(title, description string, tags []string, hasRecordingDate bool) Indicators {
	var ind Indicators

	lowerDescription := strings.ToLower(description)
	for _, keyword := range hashtagKeywords {
		if strings.Contains(lowerDescription, keyword) {
			ind.DescriptionHashtag = true
			break
		}
	}

	lowerTitle := strings.ToLower(title)
	if strings.Contains(lowerTitle, "#shorts") || strings.Contains(lowerTitle, "#short") {
		ind.TitleHashtag = true
	}

	for _, tag := range tags {
		if strings.Contains(strings.ToLower(tag), "short") {
			ind.ShortTag = true
			break
		}
	}

	ind.RecordingHint = hasRecordingDate

	return ind
}

// Classify reports whether the video counts as a short. Durations in (0, 60]
// are shorts outright. Longer videos need at least two indicators and must
// still be within the 5-second drift buffer; past 65 seconds nothing is a
// short no matter how strong the signals.
func Classify(durationSeconds int, ind Indicators) bool {
	if durationSeconds > 0 && durationSeconds <= durationLimit {
		return true
	}

	if ind.count() >= 2 {
		return durationSeconds <= durationLimit+driftBuffer
	}

	return false
}
