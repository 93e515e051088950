package timeutil

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

var isoDurationTests = []struct {
	input   string
	seconds int
	ok      bool
}{
	{"PT45S", 45, true},
	{"PT4M13S", 253, true},
	{"PT1H30M5S", 5405, true},
	{"PT1H", 3600, true},
	{"PT2M", 120, true},
	{"PT", 0, true},
	{"P1DT2H", 0, false},
	{"4m13s", 0, false},
	{"", 0, false},
}

func TestParseISODuration(t *testing.T) {
	for _, tc := range isoDurationTests {
		t.Run(tc.input, func(t *testing.T) {
			a := assert.New(t)

			seconds, err := ParseISODuration(tc.input)
			if tc.ok {
				a.NoError(err)
				a.Equal(tc.seconds, seconds)
			} else {
				a.Error(err)
				a.Equal(0, seconds)
			}
		})
	}
}

var formatSecondsTests = []struct {
	seconds int
	output  string
}{
	{0, "0s"},
	{45, "45s"},
	{60, "1m"},
	{253, "4m13s"},
	{5405, "1h30m5s"},
	{3600, "1h"},
}

func TestFormatSeconds(t *testing.T) {
	for _, tc := range formatSecondsTests {
		t.Run(tc.output, func(t *testing.T) {
			a := assert.New(t)
			a.Equal(tc.output, FormatSeconds(tc.seconds))
		})
	}
}
