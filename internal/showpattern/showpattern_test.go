package showpattern

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"

	"fknsrs.biz/p/ytstats/internal/apierr"
)

func strPtr(s string) *string { return &s }
func intPtr(n int) *int       { return &n }

func TestResolveStaticName(t *testing.T) {
	a := assert.New(t)

	rules := MustCompile([]Rule{
		{Name: "Morning Show", Enabled: true, TitleRegex: `(?i)morning show`},
	})

	show, episode := Resolve("Morning Show - weather special", rules)
	a.Equal(strPtr("Morning Show"), show)
	a.Nil(episode)
}

func TestResolveCaptureGroup(t *testing.T) {
	a := assert.New(t)

	rules := MustCompile([]Rule{
		{Enabled: true, TitleRegex: `^(.+?) \| Episode \d+`, ShowGroup: 1, EpisodeRegex: `Episode (\d+)`, EpisodeGroup: 1},
	})

	show, episode := Resolve("Deep Dives | Episode 12", rules)
	a.Equal(strPtr("Deep Dives"), show)
	a.Equal(intPtr(12), episode)
}

func TestResolveFirstMatchWins(t *testing.T) {
	a := assert.New(t)

	rules := MustCompile([]Rule{
		{Name: "First", Enabled: true, TitleRegex: `Show`},
		{Name: "Second", Enabled: true, TitleRegex: `Show`},
	})

	show, _ := Resolve("Show time", rules)
	a.Equal(strPtr("First"), show)
}

func TestResolveGateRuleFallsThrough(t *testing.T) {
	a := assert.New(t)

	// rule A matches the title but its capture group never participates in
	// the match, so it resolves no show name; rule B must supply the result
	rules := MustCompile([]Rule{
		{Enabled: true, TitleRegex: `Episode(?: (\w+))? \d+`, ShowGroup: 2},
		{Name: "Fallback Show", Enabled: true, TitleRegex: `Episode`},
	})

	show, episode := Resolve("Episode 9", rules)
	a.Equal(strPtr("Fallback Show"), show)
	a.Nil(episode)
}

func TestResolveDisabledRuleSkipped(t *testing.T) {
	a := assert.New(t)

	rules := MustCompile([]Rule{
		{Name: "Disabled", Enabled: false, TitleRegex: `Show`},
		{Name: "Enabled", Enabled: true, TitleRegex: `Show`},
	})

	show, _ := Resolve("Show time", rules)
	a.Equal(strPtr("Enabled"), show)
}

func TestResolveEpisodeParseFailureKeepsShow(t *testing.T) {
	a := assert.New(t)

	rules := MustCompile([]Rule{
		{Name: "Quiz Night", Enabled: true, TitleRegex: `Quiz Night`, EpisodeRegex: `part (\w+)`, EpisodeGroup: 1},
	})

	show, episode := Resolve("Quiz Night part three", rules)
	a.Equal(strPtr("Quiz Night"), show)
	a.Nil(episode)
}

func TestResolveEpisodeSearchedAgainstFullTitle(t *testing.T) {
	a := assert.New(t)

	// the episode expression runs over the whole title, not just within the
	// show-extraction region
	rules := MustCompile([]Rule{
		{Enabled: true, TitleRegex: `^#(\d+) - (.+)$`, ShowGroup: 2, EpisodeRegex: `^#(\d+)`, EpisodeGroup: 1},
	})

	show, episode := Resolve("#42 - Night Walks", rules)
	a.Equal(strPtr("Night Walks"), show)
	a.Equal(intPtr(42), episode)
}

func TestResolveNoMatch(t *testing.T) {
	a := assert.New(t)

	rules := MustCompile([]Rule{
		{Name: "Something", Enabled: true, TitleRegex: `Something`},
	})

	show, episode := Resolve("Completely unrelated title", rules)
	a.Nil(show)
	a.Nil(episode)
}

func TestResolveDeterministic(t *testing.T) {
	a := assert.New(t)

	rules := MustCompile([]Rule{
		{Enabled: true, TitleRegex: `^(.+?) ep\. (\d+)`, ShowGroup: 1, EpisodeRegex: `ep\. (\d+)`},
		{Name: "Other", Enabled: true, TitleRegex: `other`},
	})

	title := "Tiny Kitchen ep. 7 - soup"

	firstShow, firstEpisode := Resolve(title, rules)
	for i := 0; i < 10; i++ {
		show, episode := Resolve(title, rules)
		a.Equal(firstShow, show)
		a.Equal(firstEpisode, episode)
	}
}

const patternsFixture = `
show_patterns:
  - name: "Morning Show"
    title_regex: "(?i)morning show"
    episode_regex: "#(\\d+)"
  - title_regex: "^(.+?) \\| S\\d+"
    show_group: 1
    enabled: false
options:
  max_videos: 25
`

func TestLoad(t *testing.T) {
	a := assert.New(t)

	path := filepath.Join(t.TempDir(), "show_patterns.yaml")
	a.NoError(os.WriteFile(path, []byte(patternsFixture), 0644))

	c, err := Load(path)
	a.NoError(err)
	a.Len(c.ShowPatterns, 2)
	a.True(c.ShowPatterns[0].Enabled)
	a.False(c.ShowPatterns[1].Enabled)
	a.True(c.Options.UpdateOnlyEmpty)
	a.Equal(25, c.Options.MaxVideos)

	show, episode := Resolve("Morning Show #3", c.ShowPatterns)
	a.Equal(strPtr("Morning Show"), show)
	a.Equal(intPtr(3), episode)
}

func TestLoadMissingFile(t *testing.T) {
	a := assert.New(t)

	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	a.Error(err)
	a.True(apierr.IsConfig(err))
}

func TestLoadBadRegex(t *testing.T) {
	a := assert.New(t)

	path := filepath.Join(t.TempDir(), "show_patterns.yaml")
	a.NoError(os.WriteFile(path, []byte("show_patterns:\n  - name: broken\n    title_regex: \"([\"\n"), 0644))

	_, err := Load(path)
	a.Error(err)
	a.True(apierr.IsConfig(err))
}
