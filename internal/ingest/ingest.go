// Package ingest drives collection runs: channel snapshots, per-video
// statistics with analytics, caption downloads, and show mapping. A failure
// on one video never aborts the run, it just shows up in the summary.
package ingest

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"fknsrs.biz/p/ytstats/internal/apierr"
	"fknsrs.biz/p/ytstats/internal/captions"
	"fknsrs.biz/p/ytstats/internal/catchpanic"
	"fknsrs.biz/p/ytstats/internal/ctxlogger"
	"fknsrs.biz/p/ytstats/internal/ptr"
	"fknsrs.biz/p/ytstats/internal/shorts"
	"fknsrs.biz/p/ytstats/internal/showpattern"
	"fknsrs.biz/p/ytstats/internal/store"
	"fknsrs.biz/p/ytstats/internal/ytapi"
	"fknsrs.biz/p/ytstats/models"
)

type MetadataProvider interface {
	GetChannel(ctx context.Context, channelID string) (*ytapi.Channel, error)
	MyChannelID(ctx context.Context) (string, error)
	ListChannelVideos(ctx context.Context, channelID string, max int) ([]ytapi.VideoListEntry, error)
	GetVideo(ctx context.Context, videoID string) (*ytapi.Video, error)
}

type AnalyticsProvider interface {
	GetVideoAnalytics(ctx context.Context, channelID, videoID string) (*ytapi.Analytics, error)
}

type CaptionProvider interface {
	FindCaptionTrack(ctx context.Context, videoID, languageCode string) (string, error)
	DownloadCaption(ctx context.Context, captionID, format string) (string, error)
}

type Runner struct {
	Metadata     MetadataProvider
	Analytics    AnalyticsProvider
	Captions     CaptionProvider
	CaptionStore *captions.Store
}

func (r *Runner) resolveChannelID(ctx context.Context, channelID string) (string, error) {
	if channelID != "" {
		return channelID, nil
	}

	return r.Metadata.MyChannelID(ctx)
}

// CollectChannelStats fetches a channel snapshot and appends it to the
// history table.
func (r *Runner) CollectChannelStats(ctx context.Context, channelID string) (*models.ChannelStats, error) {
	channelID, err := r.resolveChannelID(ctx, channelID)
	if err != nil {
		return nil, fmt.Errorf("ingest.CollectChannelStats: %w", err)
	}

	ch, err := r.Metadata.GetChannel(ctx, channelID)
	if err != nil {
		return nil, fmt.Errorf("ingest.CollectChannelStats: %w", err)
	}

	rec := models.ChannelStats{
		ChannelID:       channelID,
		Title:           ch.Title,
		Description:     ch.Description,
		SubscriberCount: ch.SubscriberCount,
		ViewCount:       ch.ViewCount,
		VideoCount:      ch.VideoCount,
	}
	if t, err := time.Parse(time.RFC3339, ch.PublishedAt); err == nil {
		rec.PublishedAt = ptr.Time(t)
	}

	if err := store.InsertChannelStats(ctx, &rec); err != nil {
		return nil, fmt.Errorf("ingest.CollectChannelStats: %w", err)
	}

	return &rec, nil
}

type CollectSummary struct {
	Total            int
	Inserted         int
	Updated          int
	Failed           int
	NotFound         int
	PermissionDenied int
}

type CollectOptions struct {
	ChannelID        string
	MaxVideos        int
	IncludeAnalytics bool
}

// CollectVideos walks the channel's uploads, newest first, and saves each
// video as it goes. Videos are processed in list order so interrupting a run
// still leaves the most recent uploads saved.
func (r *Runner) CollectVideos(ctx context.Context, opts CollectOptions) (*CollectSummary, error) {
	channelID, err := r.resolveChannelID(ctx, opts.ChannelID)
	if err != nil {
		return nil, fmt.Errorf("ingest.CollectVideos: %w", err)
	}

	entries, err := r.Metadata.ListChannelVideos(ctx, channelID, opts.MaxVideos)
	if err != nil {
		return nil, fmt.Errorf("ingest.CollectVideos: %w", err)
	}

	summary := CollectSummary{Total: len(entries)}

	for i, entry := range entries {
		l := ctxlogger.GetLogger(ctx).WithFields(logrus.Fields{
			"video.id":    entry.VideoID,
			"video.index": i + 1,
			"video.total": len(entries),
		})

		effect, err := catchpanic.CatchErr1(func() (store.Effect, error) {
			return r.collectVideo(ctx, channelID, entry.VideoID, opts.IncludeAnalytics)
		})
		if err != nil {
			switch apierr.KindOf(err) {
			case apierr.KindNotFound:
				summary.NotFound++
			case apierr.KindPermissionDenied:
				summary.PermissionDenied++
			default:
				summary.Failed++
			}

			l.WithError(err).Warning("could not collect video")

			continue
		}

		switch effect {
		case store.EffectInserted:
			summary.Inserted++
		case store.EffectUpdated:
			summary.Updated++
		}

		l.WithField("video.effect", effect).Info("collected video")
	}

	return &summary, nil
}

func (r *Runner) collectVideo(ctx context.Context, channelID, videoID string, includeAnalytics bool) (store.Effect, error) {
	v, err := r.Metadata.GetVideo(ctx, videoID)
	if err != nil {
		return "", err
	}

	rec := models.VideoStats{
		VideoID:      videoID,
		ChannelID:    v.ChannelID,
		Title:        v.Title,
		Description:  v.Description,
		Duration:     v.DurationSeconds,
		WatchURL:     v.WatchURL(),
		ViewCount:    v.ViewCount,
		LikeCount:    v.LikeCount,
		DislikeCount: v.DislikeCount,
		CommentCount: v.CommentCount,
		IsShort:      shorts.Classify(v.DurationSeconds, shorts.Detect(v.Title, v.Description, v.Tags, v.HasRecordingDate)),
	}

	if v.Visibility != "" {
		rec.Visibility = ptr.String(v.Visibility)
	}
	if v.ThumbnailURL != "" {
		rec.ThumbnailURL = ptr.String(v.ThumbnailURL)
	}
	if len(v.Tags) > 0 {
		rec.Tags = ptr.String(strings.Join(v.Tags, ", "))
	}
	if t, err := time.Parse(time.RFC3339, v.PublishedAt); err == nil {
		rec.UploadTime = ptr.Time(t)
	}

	var traffic map[string]int

	if includeAnalytics && r.Analytics != nil {
		analytics, err := r.Analytics.GetVideoAnalytics(ctx, channelID, videoID)
		if err != nil {
			// analytics are an enrichment, a video with no report is
			// still worth saving
			ctxlogger.GetLogger(ctx).WithError(err).WithField("video.id", videoID).Warning("could not get analytics data")
		} else {
			traffic = analytics.TrafficSources
			rec.SubscriberCount = analytics.SubscribersGained
		}
	}

	return store.UpsertVideo(ctx, &rec, traffic)
}

type CaptionSummary struct {
	Total            int
	Saved            int
	Skipped          int
	NoCaptions       int
	PermissionDenied int
	Failed           int
}

type CaptionOptions struct {
	VideoIDs     []string
	LanguageCode string
	Format       string
}

// DownloadCaptions fetches auto-generated caption tracks for the given
// videos. The on-disk check runs before any network call, so re-runs don't
// burn API quota on videos that are already done.
func (r *Runner) DownloadCaptions(ctx context.Context, opts CaptionOptions) (*CaptionSummary, error) {
	summary := CaptionSummary{Total: len(opts.VideoIDs)}

	for i, videoID := range opts.VideoIDs {
		l := ctxlogger.GetLogger(ctx).WithFields(logrus.Fields{
			"video.id":    videoID,
			"video.index": i + 1,
			"video.total": len(opts.VideoIDs),
		})

		exists, err := r.CaptionStore.Exists(videoID, opts.Format)
		if err != nil {
			summary.Failed++
			l.WithError(err).Warning("could not check for existing caption file")
			continue
		}
		if exists {
			summary.Skipped++
			l.Debug("caption file already exists")
			continue
		}

		if err := catchpanic.CatchErr0(func() error {
			return r.downloadCaption(ctx, videoID, opts.LanguageCode, opts.Format)
		}); err != nil {
			switch {
			case errors.Is(err, errNoCaptions):
				summary.NoCaptions++
				l.Info("no captions available")
			case errors.Is(err, captions.ErrAlreadyExists):
				summary.Skipped++
			case apierr.IsPermissionDenied(err):
				summary.PermissionDenied++
				l.WithError(err).Warning("permission denied, captions need the video owner's token")
			default:
				summary.Failed++
				l.WithError(err).Warning("could not download captions")
			}

			continue
		}

		summary.Saved++
		l.Info("saved caption file")
	}

	return &summary, nil
}

var errNoCaptions = fmt.Errorf("ingest: no caption track for language")

func (r *Runner) downloadCaption(ctx context.Context, videoID, languageCode, format string) error {
	v, err := r.Metadata.GetVideo(ctx, videoID)
	if err != nil {
		return err
	}

	captionID, err := r.Captions.FindCaptionTrack(ctx, videoID, languageCode)
	if err != nil {
		return err
	}
	if captionID == "" {
		return errNoCaptions
	}

	// plain text is derived from the VTT track
	downloadFormat := format
	if format == "txt" {
		downloadFormat = "vtt"
	}

	content, err := r.Captions.DownloadCaption(ctx, captionID, downloadFormat)
	if err != nil {
		return err
	}

	if format == "txt" {
		content = captions.Normalize(content)
	}

	if _, err := r.CaptionStore.Save(content, videoID, v.Title, format); err != nil {
		return err
	}

	return nil
}

type MapSummary struct {
	Total          int
	ShowsMapped    int
	EpisodesMapped int
	NoMatch        int
}

type MapOptions struct {
	Rules     []showpattern.Rule
	OnlyEmpty bool
	MaxVideos int
	DryRun    bool
}

// MapShows applies the title patterns to stored videos and writes show and
// episode assignments back.
func (r *Runner) MapShows(ctx context.Context, opts MapOptions) (*MapSummary, error) {
	videos, err := store.VideosNeedingShowMapping(ctx, opts.OnlyEmpty, opts.MaxVideos)
	if err != nil {
		return nil, fmt.Errorf("ingest.MapShows: %w", err)
	}

	summary := MapSummary{Total: len(videos)}

	for _, video := range videos {
		show, episodeNum := showpattern.Resolve(video.Title, opts.Rules)
		if show == nil {
			summary.NoMatch++
			continue
		}

		summary.ShowsMapped++
		if episodeNum != nil {
			summary.EpisodesMapped++
		}

		l := ctxlogger.GetLogger(ctx).WithFields(logrus.Fields{
			"video.id":    video.VideoID,
			"video.show":  *show,
			"video.title": video.Title,
		})

		if opts.DryRun {
			l.Info("would map video")
			continue
		}

		if err := store.UpdateShowEpisode(ctx, video.VideoID, show, episodeNum); err != nil {
			return nil, fmt.Errorf("ingest.MapShows: %w", err)
		}

		l.Info("mapped video")
	}

	return &summary, nil
}
