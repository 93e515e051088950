package ytapi

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/Jeffail/gabs/v2"
	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"

	"fknsrs.biz/p/ytstats/internal/apierr"
	"fknsrs.biz/p/ytstats/internal/ctxhttpclient"
)

// The caption API only works for videos the token owner controls. For public
// videos the watch page embeds a player response listing timedtext URLs,
// which work without auth. WatchPageCaptionTracks digs those out.

type WatchPageCaptionTrack struct {
	BaseURL  string
	Language string
	Kind     string
}

func getDocument(ctx context.Context, url string) (*goquery.Document, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("ytapi.getDocument: %w", err)
	}

	res, err := ctxhttpclient.GetHTTPClient(ctx).Do(req)
	if err != nil {
		return nil, fmt.Errorf("ytapi.getDocument: %w", err)
	}

	doc, err := goquery.NewDocumentFromResponse(res)
	if err != nil {
		return nil, fmt.Errorf("ytapi.getDocument: %w", err)
	}

	return doc, nil
}

func WatchPageCaptionTracks(ctx context.Context, watchPageURL, videoID string) ([]WatchPageCaptionTrack, error) {
	if watchPageURL == "" {
		watchPageURL = "https://www.youtube.com/watch?v="
	}

	doc, err := getDocument(ctx, watchPageURL+videoID)
	if err != nil {
		return nil, fmt.Errorf("ytapi.WatchPageCaptionTracks: %w", err)
	}

	var tracks []WatchPageCaptionTrack
	found := false

	for _, node := range doc.Find("script").Nodes {
		if node.FirstChild == nil || node.FirstChild.Type != html.TextNode {
			continue
		}

		jsContent := node.FirstChild.Data

		if !strings.HasPrefix(jsContent, "var ytInitialPlayerResponse =") {
			continue
		}

		jsContent = strings.TrimPrefix(jsContent, "var ytInitialPlayerResponse =")
		jsContent = strings.TrimSuffix(jsContent, ";")

		const (
			trackListPath     = "captions.playerCaptionsTracklistRenderer.captionTracks"
			trackBaseURLPath  = "baseUrl"
			trackLanguagePath = "languageCode"
			trackKindPath     = "kind"
		)

		j, err := gabs.ParseJSON([]byte(jsContent))
		if err != nil {
			return nil, fmt.Errorf("ytapi.WatchPageCaptionTracks: %w", err)
		}

		found = true

		for _, track := range j.Path(trackListPath).Children() {
			if !track.ExistsP(trackBaseURLPath) || !track.ExistsP(trackLanguagePath) {
				continue
			}

			tracks = append(tracks, WatchPageCaptionTrack{
				BaseURL:  stringAt(track, trackBaseURLPath),
				Language: stringAt(track, trackLanguagePath),
				Kind:     stringAt(track, trackKindPath),
			})
		}
	}

	if !found {
		return nil, fmt.Errorf("ytapi.WatchPageCaptionTracks: %w", apierr.Newf(apierr.KindNotFound, "no player data found for video %s", videoID))
	}

	return tracks, nil
}

// FindWatchPageCaptionTrack mirrors FindCaptionTrack for the unauthenticated
// path, preferring the auto-generated track for the language.
func FindWatchPageCaptionTrack(tracks []WatchPageCaptionTrack, languageCode string) string {
	for _, track := range tracks {
		if track.Language == languageCode && track.Kind == "asr" {
			return track.BaseURL
		}
	}

	for _, track := range tracks {
		if track.Language == languageCode {
			return track.BaseURL
		}
	}

	return ""
}

// DownloadTimedText fetches a caption track from a watch page baseUrl in
// WebVTT form.
func (c *Client) DownloadTimedText(ctx context.Context, baseURL string) (string, error) {
	body, err := c.get(ctx, baseURL, url.Values{"fmt": {"vtt"}})
	if err != nil {
		return "", fmt.Errorf("ytapi.DownloadTimedText: %w", err)
	}

	return string(body), nil
}

// WatchPageCaptions is a caption source that works without OAuth by reading
// the public watch page. The track's timedtext URL stands in for the caption
// ID the authenticated API would return.
type WatchPageCaptions struct {
	Client *Client
}

func (w *WatchPageCaptions) FindCaptionTrack(ctx context.Context, videoID, languageCode string) (string, error) {
	tracks, err := WatchPageCaptionTracks(ctx, "", videoID)
	if err != nil {
		if apierr.IsNotFound(err) {
			return "", nil
		}

		return "", err
	}

	return FindWatchPageCaptionTrack(tracks, languageCode), nil
}

// DownloadCaption ignores format; timedtext is always fetched as WebVTT,
// which is what the plain-text conversion expects anyway.
func (w *WatchPageCaptions) DownloadCaption(ctx context.Context, baseURL, format string) (string, error) {
	return w.Client.DownloadTimedText(ctx, baseURL)
}
