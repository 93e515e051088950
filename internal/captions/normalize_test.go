package captions

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

const vttFixture = `WEBVTT
Kind: captions
Language: uk

NOTE an engine annotation

1
00:00:00.000 --> 00:00:02.500
Hello everyone

2
00:00:02.500 --> 00:00:05.000
Hello<00:00:03.200><c> everyone</c>
Hello everyone

3
00:00:05.000 --> 00:00:08.000
<i>welcome back</i>

4
00:00:08.000 --> 00:00:10.000
<c.colorE5E5E5></c>
`

func TestNormalize(t *testing.T) {
	a := assert.New(t)

	a.Equal("Hello everyone\nwelcome back", Normalize(vttFixture))
}

func TestNormalizeIdempotent(t *testing.T) {
	a := assert.New(t)

	inputs := []string{
		vttFixture,
		"plain text\nalready normalized",
		"",
		"line\n\nline",
	}

	for _, input := range inputs {
		once := Normalize(input)
		a.Equal(once, Normalize(once))
	}
}

func TestNormalizeCollapsesOnlyAdjacentDuplicates(t *testing.T) {
	a := assert.New(t)

	input := strings.Join([]string{"Hello", "Hello", "World", "Hello"}, "\n")
	a.Equal("Hello\nWorld\nHello", Normalize(input))
}

var normalizeLineTests = []struct {
	name   string
	input  string
	output string
}{
	{"empty", "", ""},
	{"header_only", "WEBVTT\nKind: captions", ""},
	{"cue_index_dropped", "12\ntext", "text"},
	{"timing_line_dropped", "00:00:01.000 --> 00:00:02.000\ntext", "text"},
	{"note_dropped", "NOTE something\ntext", "text"},
	{"inline_timestamp_dropped", "word<00:01:02.000> by word\nplain", "plain"},
	{"tags_stripped", "<b>bold</b> words", "bold words"},
	{"tag_only_line_dropped", "<c></c>", ""},
	{"whitespace_trimmed", "   spaced out   ", "spaced out"},
	{"garbage_survives", "\x00odd \xffbytes", "\x00odd \xffbytes"},
}

func TestNormalizeLines(t *testing.T) {
	for _, tc := range normalizeLineTests {
		t.Run(tc.name, func(t *testing.T) {
			a := assert.New(t)
			a.Equal(tc.output, Normalize(tc.input))
		})
	}
}
