package stringutil

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

var caseConversionTests = []struct {
	pascalCase string
	snakeCase  string
}{
	{"ID", "id"},
	{"VideoID", "video_id"},
	{"ChannelID", "channel_id"},
	{"Title", "title"},
	{"UploadTime", "upload_time"},
	{"ViewCount", "view_count"},
	{"LikeCount", "like_count"},
	{"CommentCount", "comment_count"},
	{"IsShort", "is_short"},
	{"EpisodeNum", "episode_num"},
	{"ExcludeFromStats", "exclude_from_stats"},
	{"SubscriberCount", "subscriber_count"},
	{"CollectedAt", "collected_at"},
	{"LastUpdated", "last_updated"},
	{"TrafficSource", "traffic_source"},
}

func TestPascalToSnake(t *testing.T) {
	for _, tc := range caseConversionTests {
		t.Run(tc.pascalCase, func(t *testing.T) {
			a := assert.New(t)
			a.Equal(tc.snakeCase, PascalToSnake(tc.pascalCase))
		})
	}
}

func BenchmarkPascalToSnake(b *testing.B) {
	for _, tc := range caseConversionTests {
		b.Run(tc.pascalCase, func(b *testing.B) {
			for i := 0; i < b.N; i++ {
				PascalToSnake(tc.pascalCase)
			}
		})
	}
}

var sanitizeFilenameTests = []struct {
	name   string
	input  string
	output string
}{
	{"plain", "My Cool Video", "My Cool Video"},
	{"slashes", "a/b\\c", "a_b_c"},
	{"windows_reserved", "what<>:\"|?*ever", "what________ever"},
	{"trailing_dots", "Ending...", "Ending"},
	{"leading_and_trailing_spaces", "  padded  ", "padded"},
	{"unicode_kept", "Пригоди в місті - серія 1", "Пригоди в місті - серія 1"},
}

func TestSanitizeFilename(t *testing.T) {
	for _, tc := range sanitizeFilenameTests {
		t.Run(tc.name, func(t *testing.T) {
			a := assert.New(t)
			a.Equal(tc.output, SanitizeFilename(tc.input))
		})
	}
}

func TestSanitizeFilenameLength(t *testing.T) {
	a := assert.New(t)

	long := SanitizeFilename(strings.Repeat("x", 500))
	a.Equal(200, len(long))

	// truncation must never split a multi-byte rune
	multibyte := SanitizeFilename(strings.Repeat("ї", 300))
	a.LessOrEqual(len(multibyte), 200)
	a.True(len(multibyte) > 0)
}
