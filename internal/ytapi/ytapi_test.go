package ytapi

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"

	"fknsrs.biz/p/ytstats/internal/apierr"
)

const videoResponse = `{
	"items": [
		{
			"id": "dQw4w9WgXcQ",
			"snippet": {
				"channelId": "UC_channel_1",
				"title": "Test Video #shorts",
				"description": "a description",
				"publishedAt": "2024-01-15T12:00:00Z",
				"tags": ["short", "test"],
				"thumbnails": {
					"default": {"url": "https://i.ytimg.com/vi/dQw4w9WgXcQ/default.jpg"},
					"high": {"url": "https://i.ytimg.com/vi/dQw4w9WgXcQ/hqdefault.jpg"}
				}
			},
			"statistics": {
				"viewCount": "12345",
				"likeCount": "678",
				"commentCount": "90"
			},
			"contentDetails": {"duration": "PT1M30S"},
			"status": {"privacyStatus": "public"},
			"recordingDetails": {"recordingDate": "2024-01-14T00:00:00Z"}
		}
	]
}`

func TestGetVideo(t *testing.T) {
	a := assert.New(t)

	s := httptest.NewServer(http.HandlerFunc(func(rw http.ResponseWriter, r *http.Request) {
		a.Equal("/videos", r.URL.Path)
		a.Equal("dQw4w9WgXcQ", r.URL.Query().Get("id"))
		a.Equal("test-key", r.URL.Query().Get("key"))
		fmt.Fprint(rw, videoResponse)
	}))
	defer s.Close()

	c := &Client{APIKey: "test-key", BaseURL: s.URL}

	v, err := c.GetVideo(context.Background(), "dQw4w9WgXcQ")
	if a.NoError(err) && a.NotNil(v) {
		a.Equal("dQw4w9WgXcQ", v.ID)
		a.Equal("UC_channel_1", v.ChannelID)
		a.Equal("Test Video #shorts", v.Title)
		a.Equal(90, v.DurationSeconds)
		a.Equal(12345, v.ViewCount)
		a.Equal(678, v.LikeCount)
		a.Equal(0, v.DislikeCount)
		a.Equal("public", v.Visibility)
		a.Equal("https://i.ytimg.com/vi/dQw4w9WgXcQ/hqdefault.jpg", v.ThumbnailURL)
		a.Equal([]string{"short", "test"}, v.Tags)
		a.True(v.HasRecordingDate)
		a.Equal("https://www.youtube.com/watch?v=dQw4w9WgXcQ", v.WatchURL())
	}
}

func TestGetVideoNotFound(t *testing.T) {
	a := assert.New(t)

	s := httptest.NewServer(http.HandlerFunc(func(rw http.ResponseWriter, r *http.Request) {
		fmt.Fprint(rw, `{"items": []}`)
	}))
	defer s.Close()

	c := &Client{BaseURL: s.URL}

	v, err := c.GetVideo(context.Background(), "missing00001")
	a.Nil(v)
	if a.Error(err) {
		a.True(apierr.IsNotFound(err))
	}
}

func TestStatusErrorMapping(t *testing.T) {
	for _, tc := range []struct {
		name       string
		statusCode int
		check      func(error) bool
	}{
		{"forbidden", http.StatusForbidden, apierr.IsPermissionDenied},
		{"not_found", http.StatusNotFound, apierr.IsNotFound},
		{"server_error", http.StatusInternalServerError, func(err error) bool { return apierr.KindOf(err) == apierr.KindProvider }},
	} {
		t.Run(tc.name, func(t *testing.T) {
			a := assert.New(t)

			s := httptest.NewServer(http.HandlerFunc(func(rw http.ResponseWriter, r *http.Request) {
				rw.WriteHeader(tc.statusCode)
				fmt.Fprint(rw, `{"error": {"message": "nope"}}`)
			}))
			defer s.Close()

			c := &Client{BaseURL: s.URL}

			_, err := c.GetVideo(context.Background(), "whatever0001")
			if a.Error(err) {
				a.True(tc.check(err))
				a.Contains(err.Error(), "nope")
			}
		})
	}
}

func TestListChannelVideosPagination(t *testing.T) {
	a := assert.New(t)

	s := httptest.NewServer(http.HandlerFunc(func(rw http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/channels":
			fmt.Fprint(rw, `{"items": [{"id": "UC_channel_1", "snippet": {"title": "c"}, "contentDetails": {"relatedPlaylists": {"uploads": "UU_uploads_1"}}}]}`)
		case "/playlistItems":
			a.Equal("UU_uploads_1", r.URL.Query().Get("playlistId"))

			if r.URL.Query().Get("pageToken") == "" {
				fmt.Fprint(rw, `{
					"nextPageToken": "page2",
					"items": [
						{"snippet": {"resourceId": {"videoId": "video0000001"}, "title": "One", "publishedAt": "2024-01-01T00:00:00Z"}},
						{"snippet": {"resourceId": {"videoId": "video0000002"}, "title": "Two", "publishedAt": "2024-01-02T00:00:00Z"}}
					]
				}`)
			} else {
				a.Equal("page2", r.URL.Query().Get("pageToken"))
				fmt.Fprint(rw, `{
					"items": [
						{"snippet": {"resourceId": {"videoId": "video0000003"}, "title": "Three", "publishedAt": "2024-01-03T00:00:00Z"}}
					]
				}`)
			}
		default:
			t.Errorf("unexpected path %s", r.URL.Path)
		}
	}))
	defer s.Close()

	c := &Client{BaseURL: s.URL}

	entries, err := c.ListChannelVideos(context.Background(), "UC_channel_1", 100)
	if a.NoError(err) && a.Len(entries, 3) {
		a.Equal("video0000001", entries[0].VideoID)
		a.Equal("video0000003", entries[2].VideoID)
	}

	entries, err = c.ListChannelVideos(context.Background(), "UC_channel_1", 2)
	if a.NoError(err) {
		a.Len(entries, 2)
	}
}

func TestGetChannel(t *testing.T) {
	a := assert.New(t)

	s := httptest.NewServer(http.HandlerFunc(func(rw http.ResponseWriter, r *http.Request) {
		fmt.Fprint(rw, `{
			"items": [
				{
					"id": "UC_channel_1",
					"snippet": {"title": "Test Channel", "description": "d", "publishedAt": "2020-01-01T00:00:00Z"},
					"statistics": {"subscriberCount": "1000", "viewCount": "50000", "videoCount": "42"},
					"contentDetails": {"relatedPlaylists": {"uploads": "UU_uploads_1"}}
				}
			]
		}`)
	}))
	defer s.Close()

	c := &Client{BaseURL: s.URL}

	ch, err := c.GetChannel(context.Background(), "UC_channel_1")
	if a.NoError(err) && a.NotNil(ch) {
		a.Equal("Test Channel", ch.Title)
		a.Equal(1000, ch.SubscriberCount)
		a.Equal(50000, ch.ViewCount)
		a.Equal(42, ch.VideoCount)
		a.Equal("UU_uploads_1", ch.UploadsPlaylist)
	}
}

func TestGetVideoAnalytics(t *testing.T) {
	a := assert.New(t)

	s := httptest.NewServer(http.HandlerFunc(func(rw http.ResponseWriter, r *http.Request) {
		a.Equal("/reports", r.URL.Path)
		a.Equal("channel==UC_channel_1", r.URL.Query().Get("ids"))
		a.Equal("video==video0000001", r.URL.Query().Get("filters"))
		a.Equal("Bearer test-token", r.Header.Get("Authorization"))

		if r.URL.Query().Get("dimensions") == "insightTrafficSourceType" {
			fmt.Fprint(rw, `{"rows": [["YT_SEARCH", 120], ["SUBSCRIBER", 45]]}`)
		} else {
			fmt.Fprint(rw, `{"rows": [[7], [3]]}`)
		}
	}))
	defer s.Close()

	c := &Client{AccessToken: "test-token", AnalyticsBaseURL: s.URL}

	got, err := c.GetVideoAnalytics(context.Background(), "UC_channel_1", "video0000001")
	if a.NoError(err) && a.NotNil(got) {
		a.Equal(map[string]int{"YT_SEARCH": 120, "SUBSCRIBER": 45}, got.TrafficSources)
		if a.NotNil(got.SubscribersGained) {
			a.Equal(10, *got.SubscribersGained)
		}
	}
}

func TestFindCaptionTrack(t *testing.T) {
	a := assert.New(t)

	s := httptest.NewServer(http.HandlerFunc(func(rw http.ResponseWriter, r *http.Request) {
		fmt.Fprint(rw, `{
			"items": [
				{"id": "track-en", "snippet": {"language": "en", "trackKind": "standard"}},
				{"id": "track-uk-manual", "snippet": {"language": "uk", "trackKind": "standard"}},
				{"id": "track-uk-asr", "snippet": {"language": "uk", "trackKind": "asr"}}
			]
		}`)
	}))
	defer s.Close()

	c := &Client{AccessToken: "test-token", BaseURL: s.URL}

	id, err := c.FindCaptionTrack(context.Background(), "video0000001", "uk")
	if a.NoError(err) {
		a.Equal("track-uk-asr", id)
	}

	id, err = c.FindCaptionTrack(context.Background(), "video0000001", "de")
	if a.NoError(err) {
		a.Equal("", id)
	}
}

func TestWatchPageCaptionTracks(t *testing.T) {
	a := assert.New(t)

	page := `<!DOCTYPE html><html><head>
		<script>var something = 1;</script>
		<script>var ytInitialPlayerResponse = {"captions": {"playerCaptionsTracklistRenderer": {"captionTracks": [
			{"baseUrl": "https://www.youtube.com/api/timedtext?v=video0000001&lang=uk&kind=asr", "languageCode": "uk", "kind": "asr"},
			{"baseUrl": "https://www.youtube.com/api/timedtext?v=video0000001&lang=en", "languageCode": "en"}
		]}}};</script>
	</head><body></body></html>`

	s := httptest.NewServer(http.HandlerFunc(func(rw http.ResponseWriter, r *http.Request) {
		a.Equal("video0000001", r.URL.Query().Get("v"))
		fmt.Fprint(rw, page)
	}))
	defer s.Close()

	tracks, err := WatchPageCaptionTracks(context.Background(), s.URL+"/watch?v=", "video0000001")
	if a.NoError(err) && a.Len(tracks, 2) {
		a.Equal("uk", tracks[0].Language)
		a.Equal("asr", tracks[0].Kind)
	}

	a.Contains(FindWatchPageCaptionTrack(tracks, "uk"), "lang=uk")
	a.Contains(FindWatchPageCaptionTrack(tracks, "en"), "lang=en")
	a.Equal("", FindWatchPageCaptionTrack(tracks, "de"))
}

func TestParseDurationFallback(t *testing.T) {
	a := assert.New(t)

	s := httptest.NewServer(http.HandlerFunc(func(rw http.ResponseWriter, r *http.Request) {
		fmt.Fprint(rw, `{
			"items": [
				{
					"id": "video0000001",
					"snippet": {"channelId": "UC_channel_1", "title": "Live Stream"},
					"statistics": {"viewCount": "1"},
					"contentDetails": {"duration": "P0D"}
				}
			]
		}`)
	}))
	defer s.Close()

	c := &Client{BaseURL: s.URL}

	v, err := c.GetVideo(context.Background(), "video0000001")
	if a.NoError(err) && a.NotNil(v) {
		a.Equal(0, v.DurationSeconds)
	}
}
