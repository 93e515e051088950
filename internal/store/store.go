// Package store persists collected channel and video statistics in SQLite.
// Writes go through transactions from ctxdb so a failed video never leaves a
// half-written record behind.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"
	"time"

	"fknsrs.biz/p/sorm"

	"fknsrs.biz/p/ytstats/internal/apierr"
	"fknsrs.biz/p/ytstats/internal/ctxclock"
	"fknsrs.biz/p/ytstats/internal/ctxdb"
	"fknsrs.biz/p/ytstats/internal/dbsavepoint"
	"fknsrs.biz/p/ytstats/internal/sqltypes"
	"fknsrs.biz/p/ytstats/models"
)

type Effect string

const (
	EffectInserted Effect = "inserted"
	EffectUpdated  Effect = "updated"
)

// UpsertVideo inserts rec, or updates the existing row with the same
// video_id. On update the original collected_at survives, as do show,
// episode_num, and exclude_from_stats, since those are set by the operator
// rather than the collector. A non-nil traffic map replaces all traffic
// source rows for the video inside the same transaction.
func UpsertVideo(ctx context.Context, rec *models.VideoStats, traffic map[string]int) (Effect, error) {
	now, err := ctxclock.Now(ctx)
	if err != nil {
		return "", fmt.Errorf("store.UpsertVideo: %w", err)
	}

	var effect Effect

	if err := ctxdb.UsingTx(ctx, nil, func(ctx context.Context, tx *sql.Tx) error {
		var existing models.VideoStats
		if err := sorm.FindFirstWhere(ctx, tx, &existing, "where video_id = ?", rec.VideoID); err != nil {
			if err != sql.ErrNoRows {
				return err
			}

			rec.ID = 0
			rec.CollectedAt = now
			rec.LastUpdated = now

			if err := sorm.CreateRecord(ctx, tx, rec); err != nil {
				return err
			}

			effect = EffectInserted
		} else {
			existing.ChannelID = rec.ChannelID
			existing.Title = rec.Title
			existing.Description = rec.Description
			existing.UploadTime = rec.UploadTime
			existing.Duration = rec.Duration
			existing.WatchURL = rec.WatchURL
			existing.ViewCount = rec.ViewCount
			existing.LikeCount = rec.LikeCount
			existing.DislikeCount = rec.DislikeCount
			existing.CommentCount = rec.CommentCount
			existing.Visibility = rec.Visibility
			existing.IsShort = rec.IsShort
			existing.ThumbnailURL = rec.ThumbnailURL
			existing.Tags = rec.Tags
			existing.SubscriberCount = rec.SubscriberCount
			existing.LastUpdated = now

			if err := sorm.SaveRecord(ctx, tx, &existing); err != nil {
				return err
			}

			*rec = existing

			effect = EffectUpdated
		}

		if traffic != nil {
			if err := replaceTrafficSources(ctx, tx, rec.VideoID, traffic, now); err != nil {
				return err
			}
		}

		return nil
	}); err != nil {
		return "", fmt.Errorf("store.UpsertVideo: %w", err)
	}

	return effect, nil
}

// replaceTrafficSources runs under a savepoint so the delete and the inserts
// land together or not at all, even if a later part of the enclosing
// transaction retries.
func replaceTrafficSources(ctx context.Context, tx *sql.Tx, videoID string, traffic map[string]int, now time.Time) error {
	sp, err := dbsavepoint.CreateFromTx(ctx, tx, "traffic_sources")
	if err != nil {
		return err
	}

	if err := func() error {
		if _, err := sp.ExecContext(ctx, "delete from traffic_sources where video_id = ?", videoID); err != nil {
			return err
		}

		names := make([]string, 0, len(traffic))
		for name := range traffic {
			names = append(names, name)
		}
		sort.Strings(names)

		for _, name := range names {
			rec := models.TrafficSource{
				VideoID:       videoID,
				TrafficSource: name,
				Views:         traffic[name],
				CollectedAt:   now,
			}

			if err := sorm.CreateRecord(ctx, tx, &rec); err != nil {
				return err
			}
		}

		return nil
	}(); err != nil {
		if err2 := sp.Rollback(ctx); err2 != nil {
			return errors.Join(err, err2)
		}

		return err
	}

	return sp.Release(ctx)
}

// InsertChannelStats appends a snapshot row. Channel stats are never
// updated in place, so repeated runs build up a history.
func InsertChannelStats(ctx context.Context, rec *models.ChannelStats) error {
	now, err := ctxclock.Now(ctx)
	if err != nil {
		return fmt.Errorf("store.InsertChannelStats: %w", err)
	}

	rec.CollectedAt = now

	if err := ctxdb.UsingTx(ctx, nil, func(ctx context.Context, tx *sql.Tx) error {
		return sorm.CreateRecord(ctx, tx, rec)
	}); err != nil {
		return fmt.Errorf("store.InsertChannelStats: %w", err)
	}

	return nil
}

func GetVideo(ctx context.Context, videoID string) (*models.VideoStats, error) {
	var video models.VideoStats
	if err := sorm.FindFirstWhere(ctx, ctxdb.GetDB(ctx), &video, "where video_id = ?", videoID); err != nil {
		if err == sql.ErrNoRows {
			return nil, apierr.Wrap(apierr.KindNotFound, fmt.Sprintf("video %s not found", videoID), err)
		}

		return nil, fmt.Errorf("store.GetVideo: %w", err)
	}

	return &video, nil
}

func GetTrafficSources(ctx context.Context, videoID string) ([]models.TrafficSource, error) {
	var sources []models.TrafficSource
	if err := sorm.FindWhere(ctx, ctxdb.GetDB(ctx), &sources, "where video_id = ? order by views desc", videoID); err != nil {
		return nil, fmt.Errorf("store.GetTrafficSources: %w", err)
	}

	return sources, nil
}

// VideosNeedingShowMapping returns candidates for show pattern matching,
// newest upload first. With onlyEmpty set, videos that already carry a show
// are left alone. Excluded videos never come back. A max of zero means no
// limit.
func VideosNeedingShowMapping(ctx context.Context, onlyEmpty bool, max int) ([]models.VideoStats, error) {
	cond := "where exclude_from_stats = 0"
	if onlyEmpty {
		cond += " and (show is null or show = '')"
	}
	cond += " order by upload_time desc"
	if max > 0 {
		cond += fmt.Sprintf(" limit %d", max)
	}

	var videos []models.VideoStats
	if err := sorm.FindWhere(ctx, ctxdb.GetDB(ctx), &videos, cond); err != nil {
		return nil, fmt.Errorf("store.VideosNeedingShowMapping: %w", err)
	}

	return videos, nil
}

func UpdateShowEpisode(ctx context.Context, videoID string, show *string, episodeNum *int) error {
	now, err := ctxclock.Now(ctx)
	if err != nil {
		return fmt.Errorf("store.UpdateShowEpisode: %w", err)
	}

	if err := ctxdb.UsingTx(ctx, nil, func(ctx context.Context, tx *sql.Tx) error {
		var video models.VideoStats
		if err := sorm.FindFirstWhere(ctx, tx, &video, "where video_id = ?", videoID); err != nil {
			return err
		}

		video.Show = show
		video.EpisodeNum = episodeNum
		video.LastUpdated = now

		return sorm.SaveRecord(ctx, tx, &video)
	}); err != nil {
		return fmt.Errorf("store.UpdateShowEpisode: %w", err)
	}

	return nil
}

func SetExcludeFromStats(ctx context.Context, videoID string, exclude bool) error {
	now, err := ctxclock.Now(ctx)
	if err != nil {
		return fmt.Errorf("store.SetExcludeFromStats: %w", err)
	}

	if err := ctxdb.UsingTx(ctx, nil, func(ctx context.Context, tx *sql.Tx) error {
		var video models.VideoStats
		if err := sorm.FindFirstWhere(ctx, tx, &video, "where video_id = ?", videoID); err != nil {
			return err
		}

		video.ExcludeFromStats = exclude
		video.LastUpdated = now

		return sorm.SaveRecord(ctx, tx, &video)
	}); err != nil {
		return fmt.Errorf("store.SetExcludeFromStats: %w", err)
	}

	return nil
}

// AllVideos lists every video, newest update first. With includeExcluded
// unset, videos flagged exclude_from_stats are filtered out, which is what
// exports and stats views want.
func AllVideos(ctx context.Context, includeExcluded bool) ([]models.VideoStats, error) {
	cond := "order by last_updated desc"
	if !includeExcluded {
		cond = "where exclude_from_stats = 0 " + cond
	}

	var videos []models.VideoStats
	if err := sorm.FindWhere(ctx, ctxdb.GetDB(ctx), &videos, cond); err != nil {
		return nil, fmt.Errorf("store.AllVideos: %w", err)
	}

	return videos, nil
}

func AllTrafficSources(ctx context.Context) ([]models.TrafficSource, error) {
	var sources []models.TrafficSource
	if err := sorm.FindWhere(ctx, ctxdb.GetDB(ctx), &sources, "order by video_id asc, views desc"); err != nil {
		return nil, fmt.Errorf("store.AllTrafficSources: %w", err)
	}

	return sources, nil
}

// ChannelStatsHistory returns snapshots newest first, optionally limited to
// one channel.
func ChannelStatsHistory(ctx context.Context, channelID string) ([]models.ChannelStats, error) {
	var stats []models.ChannelStats

	if channelID == "" {
		if err := sorm.FindWhere(ctx, ctxdb.GetDB(ctx), &stats, "order by collected_at desc"); err != nil {
			return nil, fmt.Errorf("store.ChannelStatsHistory: %w", err)
		}
	} else {
		if err := sorm.FindWhere(ctx, ctxdb.GetDB(ctx), &stats, "where channel_id = ? order by collected_at desc", channelID); err != nil {
			return nil, fmt.Errorf("store.ChannelStatsHistory: %w", err)
		}
	}

	return stats, nil
}

type ShowSummary struct {
	Show       string
	VideoCount int
	TotalViews int
	LastUpload *time.Time
}

// ShowSummaries aggregates mapped videos by show for the dashboard.
func ShowSummaries(ctx context.Context) ([]ShowSummary, error) {
	rows, err := ctxdb.GetDB(ctx).QueryContext(ctx, `
		select show, count(*), sum(view_count), max(upload_time)
		from video_stats
		where show is not null and show != '' and exclude_from_stats = 0
		group by show
		order by sum(view_count) desc
	`)
	if err != nil {
		return nil, fmt.Errorf("store.ShowSummaries: %w", err)
	}
	defer rows.Close()

	var summaries []ShowSummary
	for rows.Next() {
		var s ShowSummary
		if err := rows.Scan(&s.Show, &s.VideoCount, &s.TotalViews, &sqltypes.TimePointerScanner{Value: &s.LastUpload}); err != nil {
			return nil, fmt.Errorf("store.ShowSummaries: %w", err)
		}

		summaries = append(summaries, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("store.ShowSummaries: %w", err)
	}

	return summaries, nil
}
