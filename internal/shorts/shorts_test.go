package shorts

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

var classifyTests = []struct {
	durationSeconds int
	indicators      int
	isShort         bool
}{
	{1, 0, true},
	{59, 0, true},
	{60, 0, true},
	{61, 0, false},
	{61, 1, false},
	{61, 2, true},
	{65, 2, true},
	{65, 4, true},
	{66, 2, false},
	{66, 4, false},
	{120, 3, false},
	{0, 0, false},
}

func indicatorsWithCount(n int) Indicators {
	var ind Indicators
	if n > 0 {
		ind.DescriptionHashtag = true
	}
	if n > 1 {
		ind.TitleHashtag = true
	}
	if n > 2 {
		ind.ShortTag = true
	}
	if n > 3 {
		ind.RecordingHint = true
	}
	return ind
}

func TestClassify(t *testing.T) {
	for _, tc := range classifyTests {
		t.Run(fmt.Sprintf("%ds_%dind", tc.durationSeconds, tc.indicators), func(t *testing.T) {
			a := assert.New(t)
			a.Equal(tc.isShort, Classify(tc.durationSeconds, indicatorsWithCount(tc.indicators)))
		})
	}
}

func TestDetect(t *testing.T) {
	a := assert.New(t)

	ind := Detect(
		"Fast recipe #shorts",
		"More recipes on the channel! #YouTubeShorts",
		[]string{"cooking", "Shorts"},
		true,
	)

	a.True(ind.TitleHashtag)
	a.True(ind.DescriptionHashtag)
	a.True(ind.ShortTag)
	a.True(ind.RecordingHint)
	a.Equal(4, ind.count())
}

func TestDetectNothing(t *testing.T) {
	a := assert.New(t)

	ind := Detect("A long documentary", "An hour of footage.", []string{"nature"}, false)
	a.Equal(Indicators{}, ind)
}
