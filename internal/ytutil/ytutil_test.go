package ytutil

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestExtractVideoID(t *testing.T) {
	a := assert.New(t)

	for name, tc := range map[string]struct {
		input string
		want  string
		ok    bool
	}{
		"bare id":    {"dQw4w9WgXcQ", "dQw4w9WgXcQ", true},
		"watch url":  {"https://www.youtube.com/watch?v=dQw4w9WgXcQ", "dQw4w9WgXcQ", true},
		"short url":  {"https://youtu.be/dQw4w9WgXcQ", "dQw4w9WgXcQ", true},
		"bad length": {"https://www.youtube.com/watch?v=short", "", false},
		"no v param": {"https://www.youtube.com/watch", "", false},
	} {
		t.Run(name, func(t *testing.T) {
			id, err := ExtractVideoID(tc.input)
			if tc.ok {
				a.NoError(err)
				a.Equal(tc.want, id)
			} else {
				a.Error(err)
			}
		})
	}
}

func TestExtractChannelID(t *testing.T) {
	a := assert.New(t)

	id, err := ExtractChannelID("UCBR8-60-B28hp2BmDPdntcQ")
	a.NoError(err)
	a.Equal("UCBR8-60-B28hp2BmDPdntcQ", id)

	id, err = ExtractChannelID("https://www.youtube.com/channel/UCBR8-60-B28hp2BmDPdntcQ")
	a.NoError(err)
	a.Equal("UCBR8-60-B28hp2BmDPdntcQ", id)

	_, err = ExtractChannelID("https://www.youtube.com/channel/tooshort")
	a.Error(err)
}

func TestExtractAndIdentifyIDs(t *testing.T) {
	a := assert.New(t)

	ids, err := ExtractAndIdentifyIDs("dQw4w9WgXcQ UCBR8-60-B28hp2BmDPdntcQ", false)
	a.NoError(err)
	if a.Len(ids, 2) {
		a.Equal(VideoID, ids[0].Type)
		a.Equal("dQw4w9WgXcQ", ids[0].Value)
		a.Equal(ChannelID, ids[1].Type)
	}

	_, err = ExtractAndIdentifyIDs("dQw4w9WgXcQ nonsense!", false)
	a.Error(err)

	ids, err = ExtractAndIdentifyIDs("dQw4w9WgXcQ nonsense!", true)
	a.NoError(err)
	a.Len(ids, 1)
}
