package store

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"fknsrs.biz/p/sorm"
	_ "github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/assert"

	"fknsrs.biz/p/ytstats/internal/apierr"
	"fknsrs.biz/p/ytstats/internal/ctxclock"
	"fknsrs.biz/p/ytstats/internal/ctxdb"
	"fknsrs.biz/p/ytstats/internal/ptr"
	"fknsrs.biz/p/ytstats/models"
)

func init() {
	sorm.SetParameterPrefix("?")
}

func testContext(t *testing.T, now time.Time) context.Context {
	t.Helper()

	db, err := sql.Open("sqlite3", ":memory:")
	if err != nil {
		t.Fatalf("could not open database: %v", err)
	}
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { db.Close() })

	ctx := ctxdb.WithDB(context.Background(), db)
	ctx = ctxclock.WithClock(ctx, ctxclock.NewStaticClock(now))

	if err := Migrate(ctx); err != nil {
		t.Fatalf("could not migrate database: %v", err)
	}

	return ctx
}

func at(ctx context.Context, t time.Time) context.Context {
	return ctxclock.WithClock(ctx, ctxclock.NewStaticClock(t))
}

func makeVideo(videoID, title string, uploadTime time.Time, views int) *models.VideoStats {
	return &models.VideoStats{
		VideoID:    videoID,
		ChannelID:  "UC_test_channel",
		Title:      title,
		UploadTime: &uploadTime,
		Duration:   300,
		WatchURL:   "https://www.youtube.com/watch?v=" + videoID,
		ViewCount:  views,
	}
}

func TestUpsertVideoInsertThenUpdate(t *testing.T) {
	a := assert.New(t)

	t1 := time.Date(2024, 1, 1, 10, 0, 0, 0, time.UTC)
	t2 := time.Date(2024, 1, 2, 10, 0, 0, 0, time.UTC)

	ctx := testContext(t, t1)

	rec := makeVideo("abc123xyz00", "First Upload", t1.Add(-time.Hour), 100)
	effect, err := UpsertVideo(ctx, rec, nil)
	if a.NoError(err) {
		a.Equal(EffectInserted, effect)
		a.NotZero(rec.ID)
		a.Equal(t1, rec.CollectedAt.UTC())
	}

	a.NoError(UpdateShowEpisode(ctx, "abc123xyz00", ptr.String("My Show"), ptr.Int(4)))

	rec2 := makeVideo("abc123xyz00", "First Upload (edited)", t1.Add(-time.Hour), 250)
	effect, err = UpsertVideo(at(ctx, t2), rec2, nil)
	if a.NoError(err) {
		a.Equal(EffectUpdated, effect)
		a.Equal(rec.ID, rec2.ID)
	}

	got, err := GetVideo(ctx, "abc123xyz00")
	if a.NoError(err) {
		a.Equal("First Upload (edited)", got.Title)
		a.Equal(250, got.ViewCount)
		a.Equal(t1, got.CollectedAt.UTC())
		a.Equal(t2, got.LastUpdated.UTC())
		if a.NotNil(got.Show) {
			a.Equal("My Show", *got.Show)
		}
		if a.NotNil(got.EpisodeNum) {
			a.Equal(4, *got.EpisodeNum)
		}
	}
}

func TestUpsertVideoPreservesExclusion(t *testing.T) {
	a := assert.New(t)

	now := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	ctx := testContext(t, now)

	rec := makeVideo("excluded0001", "Members Only", now, 10)
	_, err := UpsertVideo(ctx, rec, nil)
	a.NoError(err)

	a.NoError(SetExcludeFromStats(ctx, "excluded0001", true))

	_, err = UpsertVideo(ctx, makeVideo("excluded0001", "Members Only", now, 12), nil)
	a.NoError(err)

	got, err := GetVideo(ctx, "excluded0001")
	if a.NoError(err) {
		a.True(got.ExcludeFromStats)
	}
}

func TestUpsertVideoReplacesTrafficSources(t *testing.T) {
	a := assert.New(t)

	now := time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC)
	ctx := testContext(t, now)

	rec := makeVideo("traffic00001", "Traffic Test", now, 50)
	_, err := UpsertVideo(ctx, rec, map[string]int{
		"YT_SEARCH":  30,
		"SUBSCRIBER": 15,
		"EXT_URL":    5,
	})
	a.NoError(err)

	sources, err := GetTrafficSources(ctx, "traffic00001")
	if a.NoError(err) && a.Len(sources, 3) {
		a.Equal("YT_SEARCH", sources[0].TrafficSource)
		a.Equal(30, sources[0].Views)
	}

	// a later collection shrinks the set, old rows must not linger
	_, err = UpsertVideo(ctx, makeVideo("traffic00001", "Traffic Test", now, 60), map[string]int{
		"YT_SEARCH": 40,
	})
	a.NoError(err)

	sources, err = GetTrafficSources(ctx, "traffic00001")
	if a.NoError(err) && a.Len(sources, 1) {
		a.Equal("YT_SEARCH", sources[0].TrafficSource)
		a.Equal(40, sources[0].Views)
	}

	// nil traffic leaves the previous rows alone
	_, err = UpsertVideo(ctx, makeVideo("traffic00001", "Traffic Test", now, 70), nil)
	a.NoError(err)

	sources, err = GetTrafficSources(ctx, "traffic00001")
	if a.NoError(err) {
		a.Len(sources, 1)
	}
}

func TestInsertChannelStatsAppendsHistory(t *testing.T) {
	a := assert.New(t)

	t1 := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	t2 := time.Date(2024, 1, 8, 0, 0, 0, 0, time.UTC)

	ctx := testContext(t, t1)

	a.NoError(InsertChannelStats(ctx, &models.ChannelStats{
		ChannelID:       "UC_test_channel",
		Title:           "Test Channel",
		SubscriberCount: 1000,
		ViewCount:       50000,
		VideoCount:      42,
	}))

	a.NoError(InsertChannelStats(at(ctx, t2), &models.ChannelStats{
		ChannelID:       "UC_test_channel",
		Title:           "Test Channel",
		SubscriberCount: 1100,
		ViewCount:       52000,
		VideoCount:      43,
	}))

	history, err := ChannelStatsHistory(ctx, "UC_test_channel")
	if a.NoError(err) && a.Len(history, 2) {
		a.Equal(1100, history[0].SubscriberCount)
		a.Equal(1000, history[1].SubscriberCount)
	}

	history, err = ChannelStatsHistory(ctx, "UC_other_channel")
	if a.NoError(err) {
		a.Len(history, 0)
	}
}

func TestVideosNeedingShowMapping(t *testing.T) {
	a := assert.New(t)

	now := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)
	ctx := testContext(t, now)

	for i, videoID := range []string{"mapping00001", "mapping00002", "mapping00003", "mapping00004"} {
		rec := makeVideo(videoID, "Video "+videoID, now.Add(time.Duration(i)*time.Hour), 10)
		_, err := UpsertVideo(ctx, rec, nil)
		a.NoError(err)
	}

	a.NoError(UpdateShowEpisode(ctx, "mapping00002", ptr.String("Mapped Show"), nil))
	a.NoError(SetExcludeFromStats(ctx, "mapping00003", true))

	videos, err := VideosNeedingShowMapping(ctx, true, 0)
	if a.NoError(err) && a.Len(videos, 2) {
		// newest upload first
		a.Equal("mapping00004", videos[0].VideoID)
		a.Equal("mapping00001", videos[1].VideoID)
	}

	videos, err = VideosNeedingShowMapping(ctx, false, 0)
	if a.NoError(err) {
		a.Len(videos, 3)
	}

	videos, err = VideosNeedingShowMapping(ctx, true, 1)
	if a.NoError(err) && a.Len(videos, 1) {
		a.Equal("mapping00004", videos[0].VideoID)
	}
}

func TestGetVideoNotFound(t *testing.T) {
	a := assert.New(t)

	ctx := testContext(t, time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC))

	_, err := GetVideo(ctx, "missing00001")
	if a.Error(err) {
		a.True(apierr.IsNotFound(err))
	}
}

func TestAllVideosFiltersExcluded(t *testing.T) {
	a := assert.New(t)

	now := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
	ctx := testContext(t, now)

	for _, videoID := range []string{"allvids00001", "allvids00002"} {
		_, err := UpsertVideo(ctx, makeVideo(videoID, "Video "+videoID, now, 10), nil)
		a.NoError(err)
	}

	a.NoError(SetExcludeFromStats(ctx, "allvids00002", true))

	videos, err := AllVideos(ctx, false)
	if a.NoError(err) && a.Len(videos, 1) {
		a.Equal("allvids00001", videos[0].VideoID)
	}

	videos, err = AllVideos(ctx, true)
	if a.NoError(err) {
		a.Len(videos, 2)
	}
}

func TestShowSummaries(t *testing.T) {
	a := assert.New(t)

	now := time.Date(2024, 7, 1, 0, 0, 0, 0, time.UTC)
	ctx := testContext(t, now)

	type seed struct {
		videoID string
		show    *string
		views   int
	}

	for _, s := range []seed{
		{"summary00001", ptr.String("Show A"), 100},
		{"summary00002", ptr.String("Show A"), 50},
		{"summary00003", ptr.String("Show B"), 400},
		{"summary00004", nil, 9000},
	} {
		_, err := UpsertVideo(ctx, makeVideo(s.videoID, "Video "+s.videoID, now, s.views), nil)
		a.NoError(err)

		if s.show != nil {
			a.NoError(UpdateShowEpisode(ctx, s.videoID, s.show, nil))
		}
	}

	summaries, err := ShowSummaries(ctx)
	if a.NoError(err) && a.Len(summaries, 2) {
		a.Equal("Show B", summaries[0].Show)
		a.Equal(400, summaries[0].TotalViews)
		a.Equal(1, summaries[0].VideoCount)
		a.Equal("Show A", summaries[1].Show)
		a.Equal(150, summaries[1].TotalViews)
		a.Equal(2, summaries[1].VideoCount)
	}
}
