// Package ytapi talks to the YouTube Data API v3 and the YouTube Analytics
// API. API key auth covers public metadata, caption and analytics calls need
// an OAuth bearer token for the channel owner.
package ytapi

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/Jeffail/gabs/v2"

	"fknsrs.biz/p/ytstats/internal/apierr"
	"fknsrs.biz/p/ytstats/internal/ctxhttpclient"
	"fknsrs.biz/p/ytstats/internal/timeutil"
)

const (
	defaultBaseURL          = "https://www.googleapis.com/youtube/v3"
	defaultAnalyticsBaseURL = "https://youtubeanalytics.googleapis.com/v2"

	maxPageSize = 50
)

type Client struct {
	APIKey      string
	AccessToken string

	// overridable for tests
	BaseURL          string
	AnalyticsBaseURL string
}

func (c *Client) baseURL() string {
	if c.BaseURL != "" {
		return c.BaseURL
	}

	return defaultBaseURL
}

func (c *Client) analyticsBaseURL() string {
	if c.AnalyticsBaseURL != "" {
		return c.AnalyticsBaseURL
	}

	return defaultAnalyticsBaseURL
}

func (c *Client) get(ctx context.Context, rawURL string, values url.Values) ([]byte, error) {
	if c.AccessToken == "" && c.APIKey != "" {
		values = cloneValues(values)
		values.Set("key", c.APIKey)
	}

	if len(values) > 0 {
		sep := "?"
		if strings.Contains(rawURL, "?") {
			sep = "&"
		}
		rawURL = rawURL + sep + values.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("ytapi.get: %w", err)
	}

	if c.AccessToken != "" {
		req.Header.Set("Authorization", "Bearer "+c.AccessToken)
	}

	res, err := ctxhttpclient.GetHTTPClient(ctx).Do(req)
	if err != nil {
		return nil, apierr.Wrap(apierr.KindProvider, "request failed", err)
	}
	defer res.Body.Close()

	body, err := io.ReadAll(res.Body)
	if err != nil {
		return nil, apierr.Wrap(apierr.KindProvider, "could not read response", err)
	}

	if res.StatusCode != http.StatusOK {
		return nil, statusError(res.StatusCode, body)
	}

	return body, nil
}

func (c *Client) getJSON(ctx context.Context, rawURL string, values url.Values) (*gabs.Container, error) {
	body, err := c.get(ctx, rawURL, values)
	if err != nil {
		return nil, err
	}

	j, err := gabs.ParseJSON(body)
	if err != nil {
		return nil, apierr.Wrap(apierr.KindProvider, "could not parse response", err)
	}

	return j, nil
}

func cloneValues(values url.Values) url.Values {
	out := make(url.Values, len(values)+1)
	for k, v := range values {
		out[k] = v
	}

	return out
}

func statusError(statusCode int, body []byte) error {
	message := fmt.Sprintf("status code %d", statusCode)

	if j, err := gabs.ParseJSON(body); err == nil && j.ExistsP("error.message") {
		if s, ok := j.Path("error.message").Data().(string); ok && s != "" {
			message = fmt.Sprintf("%s (status code %d)", s, statusCode)
		}
	}

	switch statusCode {
	case http.StatusForbidden:
		return apierr.New(apierr.KindPermissionDenied, message)
	case http.StatusNotFound:
		return apierr.New(apierr.KindNotFound, message)
	default:
		return apierr.New(apierr.KindProvider, message)
	}
}

type Channel struct {
	ID              string
	Title           string
	Description     string
	PublishedAt     string
	SubscriberCount int
	ViewCount       int
	VideoCount      int
	UploadsPlaylist string
}

func (c *Client) GetChannel(ctx context.Context, channelID string) (*Channel, error) {
	j, err := c.getJSON(ctx, c.baseURL()+"/channels", url.Values{
		"part": {"snippet,statistics,contentDetails"},
		"id":   {channelID},
	})
	if err != nil {
		return nil, fmt.Errorf("ytapi.GetChannel: %w", err)
	}

	item, err := firstItem(j)
	if err != nil {
		return nil, fmt.Errorf("ytapi.GetChannel: %w", apierr.Wrap(apierr.KindNotFound, fmt.Sprintf("channel %s not found", channelID), err))
	}

	ch := &Channel{
		ID:              stringAt(item, "id"),
		Title:           stringAt(item, "snippet.title"),
		Description:     stringAt(item, "snippet.description"),
		PublishedAt:     stringAt(item, "snippet.publishedAt"),
		SubscriberCount: intAt(item, "statistics.subscriberCount"),
		ViewCount:       intAt(item, "statistics.viewCount"),
		VideoCount:      intAt(item, "statistics.videoCount"),
		UploadsPlaylist: stringAt(item, "contentDetails.relatedPlaylists.uploads"),
	}

	return ch, nil
}

// MyChannelID resolves the channel belonging to the access token.
func (c *Client) MyChannelID(ctx context.Context) (string, error) {
	j, err := c.getJSON(ctx, c.baseURL()+"/channels", url.Values{
		"part": {"id"},
		"mine": {"true"},
	})
	if err != nil {
		return "", fmt.Errorf("ytapi.MyChannelID: %w", err)
	}

	item, err := firstItem(j)
	if err != nil {
		return "", fmt.Errorf("ytapi.MyChannelID: %w", apierr.Wrap(apierr.KindNotFound, "no channel found for authenticated user", err))
	}

	return stringAt(item, "id"), nil
}

type VideoListEntry struct {
	VideoID     string
	Title       string
	PublishedAt string
}

// ListChannelVideos walks the channel's uploads playlist, newest first, up
// to max entries. A max of zero or below returns a single page.
func (c *Client) ListChannelVideos(ctx context.Context, channelID string, max int) ([]VideoListEntry, error) {
	ch, err := c.GetChannel(ctx, channelID)
	if err != nil {
		return nil, fmt.Errorf("ytapi.ListChannelVideos: %w", err)
	}
	if ch.UploadsPlaylist == "" {
		return nil, fmt.Errorf("ytapi.ListChannelVideos: %w", apierr.Newf(apierr.KindNotFound, "channel %s has no uploads playlist", channelID))
	}

	if max <= 0 {
		max = maxPageSize
	}

	var entries []VideoListEntry
	var pageToken string

	for len(entries) < max {
		perPage := max - len(entries)
		if perPage > maxPageSize {
			perPage = maxPageSize
		}

		values := url.Values{
			"part":       {"snippet"},
			"playlistId": {ch.UploadsPlaylist},
			"maxResults": {strconv.Itoa(perPage)},
		}
		if pageToken != "" {
			values.Set("pageToken", pageToken)
		}

		j, err := c.getJSON(ctx, c.baseURL()+"/playlistItems", values)
		if err != nil {
			return nil, fmt.Errorf("ytapi.ListChannelVideos: %w", err)
		}

		pageCount := 0
		for _, item := range j.Path("items").Children() {
			entries = append(entries, VideoListEntry{
				VideoID:     stringAt(item, "snippet.resourceId.videoId"),
				Title:       stringAt(item, "snippet.title"),
				PublishedAt: stringAt(item, "snippet.publishedAt"),
			})
			pageCount++
		}

		pageToken = stringAt(j, "nextPageToken")
		if pageToken == "" || pageCount < perPage {
			break
		}
	}

	return entries, nil
}

type Video struct {
	ID               string
	ChannelID        string
	Title            string
	Description      string
	PublishedAt      string
	DurationSeconds  int
	ViewCount        int
	LikeCount        int
	DislikeCount     int
	CommentCount     int
	Visibility       string
	ThumbnailURL     string
	Tags             []string
	HasRecordingDate bool
}

func (v *Video) WatchURL() string {
	return "https://www.youtube.com/watch?v=" + v.ID
}

func (c *Client) GetVideo(ctx context.Context, videoID string) (*Video, error) {
	j, err := c.getJSON(ctx, c.baseURL()+"/videos", url.Values{
		"part": {"snippet,statistics,contentDetails,status,recordingDetails"},
		"id":   {videoID},
	})
	if err != nil {
		return nil, fmt.Errorf("ytapi.GetVideo: %w", err)
	}

	item, err := firstItem(j)
	if err != nil {
		return nil, fmt.Errorf("ytapi.GetVideo: %w", apierr.Wrap(apierr.KindNotFound, fmt.Sprintf("video %s not found", videoID), err))
	}

	durationSeconds, err := timeutil.ParseISODuration(stringAt(item, "contentDetails.duration"))
	if err != nil {
		durationSeconds = 0
	}

	v := &Video{
		ID:               videoID,
		ChannelID:        stringAt(item, "snippet.channelId"),
		Title:            stringAt(item, "snippet.title"),
		Description:      stringAt(item, "snippet.description"),
		PublishedAt:      stringAt(item, "snippet.publishedAt"),
		DurationSeconds:  durationSeconds,
		ViewCount:        intAt(item, "statistics.viewCount"),
		LikeCount:        intAt(item, "statistics.likeCount"),
		DislikeCount:     intAt(item, "statistics.dislikeCount"),
		CommentCount:     intAt(item, "statistics.commentCount"),
		Visibility:       stringAt(item, "status.privacyStatus"),
		ThumbnailURL:     bestThumbnail(item.Path("snippet.thumbnails")),
		HasRecordingDate: stringAt(item, "recordingDetails.recordingDate") != "",
	}

	for _, tag := range item.Path("snippet.tags").Children() {
		if s, ok := tag.Data().(string); ok {
			v.Tags = append(v.Tags, s)
		}
	}

	return v, nil
}

// bestThumbnail prefers the largest rendition YouTube actually generated.
func bestThumbnail(thumbnails *gabs.Container) string {
	if thumbnails == nil {
		return ""
	}

	for _, size := range []string{"maxres", "high", "medium", "default"} {
		if s := stringAt(thumbnails, size+".url"); s != "" {
			return s
		}
	}

	for _, thumbnail := range thumbnails.ChildrenMap() {
		if s := stringAt(thumbnail, "url"); s != "" {
			return s
		}
	}

	return ""
}

type Analytics struct {
	TrafficSources    map[string]int
	SubscribersGained *int
}

// GetVideoAnalytics queries per-video traffic sources and subscribers
// gained. The date window is deliberately wide, the analytics API has no way
// to say "all time".
func (c *Client) GetVideoAnalytics(ctx context.Context, channelID, videoID string) (*Analytics, error) {
	j, err := c.getJSON(ctx, c.analyticsBaseURL()+"/reports", url.Values{
		"ids":        {"channel==" + channelID},
		"startDate":  {"2023-01-01"},
		"endDate":    {"2025-12-31"},
		"metrics":    {"views"},
		"dimensions": {"insightTrafficSourceType"},
		"filters":    {"video==" + videoID},
		"sort":       {"-views"},
	})
	if err != nil {
		return nil, fmt.Errorf("ytapi.GetVideoAnalytics: %w", err)
	}

	out := &Analytics{TrafficSources: map[string]int{}}

	for _, row := range j.Path("rows").Children() {
		cells := row.Children()
		if len(cells) < 2 {
			continue
		}

		source, ok := cells[0].Data().(string)
		if !ok {
			continue
		}

		out.TrafficSources[source] = asInt(cells[1].Data())
	}

	// subscriber data is missing for some videos, treat that as no data
	// rather than a failed collection
	j, err = c.getJSON(ctx, c.analyticsBaseURL()+"/reports", url.Values{
		"ids":       {"channel==" + channelID},
		"startDate": {"2023-01-01"},
		"endDate":   {"2025-12-31"},
		"metrics":   {"subscribersGained"},
		"filters":   {"video==" + videoID},
	})
	if err != nil {
		return out, nil
	}

	gained := 0
	for _, row := range j.Path("rows").Children() {
		cells := row.Children()
		if len(cells) < 1 {
			continue
		}

		gained += asInt(cells[0].Data())
	}
	out.SubscribersGained = &gained

	return out, nil
}

type CaptionTrack struct {
	ID        string
	Language  string
	TrackKind string
}

func (c *Client) ListCaptionTracks(ctx context.Context, videoID string) ([]CaptionTrack, error) {
	j, err := c.getJSON(ctx, c.baseURL()+"/captions", url.Values{
		"part":    {"snippet"},
		"videoId": {videoID},
	})
	if err != nil {
		return nil, fmt.Errorf("ytapi.ListCaptionTracks: %w", err)
	}

	var tracks []CaptionTrack
	for _, item := range j.Path("items").Children() {
		tracks = append(tracks, CaptionTrack{
			ID:        stringAt(item, "id"),
			Language:  stringAt(item, "snippet.language"),
			TrackKind: stringAt(item, "snippet.trackKind"),
		})
	}

	return tracks, nil
}

// FindCaptionTrack returns the auto-generated track for the language, or an
// empty string when the video has none.
func (c *Client) FindCaptionTrack(ctx context.Context, videoID, languageCode string) (string, error) {
	tracks, err := c.ListCaptionTracks(ctx, videoID)
	if err != nil {
		return "", fmt.Errorf("ytapi.FindCaptionTrack: %w", err)
	}

	for _, track := range tracks {
		if track.Language == languageCode && track.TrackKind == "asr" {
			return track.ID, nil
		}
	}

	return "", nil
}

func (c *Client) DownloadCaption(ctx context.Context, captionID, format string) (string, error) {
	body, err := c.get(ctx, c.baseURL()+"/captions/"+url.PathEscape(captionID), url.Values{
		"tfmt": {format},
	})
	if err != nil {
		return "", fmt.Errorf("ytapi.DownloadCaption: %w", err)
	}

	return string(body), nil
}

func firstItem(j *gabs.Container) (*gabs.Container, error) {
	items := j.Path("items").Children()
	if len(items) == 0 {
		return nil, fmt.Errorf("ytapi.firstItem: no items in response")
	}

	return items[0], nil
}

func stringAt(j *gabs.Container, path string) string {
	if j == nil || !j.ExistsP(path) {
		return ""
	}

	if s, ok := j.Path(path).Data().(string); ok {
		return s
	}

	return ""
}

func intAt(j *gabs.Container, path string) int {
	if j == nil || !j.ExistsP(path) {
		return 0
	}

	return asInt(j.Path(path).Data())
}

// asInt copes with the API's habit of returning counters as JSON strings.
func asInt(v interface{}) int {
	switch v := v.(type) {
	case string:
		n, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil {
			return 0
		}
		return n
	case float64:
		return int(v)
	case int:
		return v
	default:
		return 0
	}
}
