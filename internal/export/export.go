// Package export writes collected data out as CSV, either to timestamped
// files on disk or streamed to a writer.
package export

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"fknsrs.biz/p/ytstats/internal/ctxclock"
	"fknsrs.biz/p/ytstats/internal/store"
)

const timeLayout = "2006-01-02 15:04:05"

func writeRows(w io.Writer, header []string, rows [][]string) error {
	cw := csv.NewWriter(w)

	if err := cw.Write(header); err != nil {
		return err
	}
	for _, row := range rows {
		if err := cw.Write(row); err != nil {
			return err
		}
	}

	cw.Flush()

	return cw.Error()
}

func writeFile(dir, name string, now time.Time, header []string, rows [][]string) (string, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", err
	}

	path := filepath.Join(dir, fmt.Sprintf("%s_%s.csv", name, now.Format("20060102_150405")))

	fd, err := os.Create(path)
	if err != nil {
		return "", err
	}
	defer fd.Close()

	if err := writeRows(fd, header, rows); err != nil {
		return "", err
	}

	return path, nil
}

func formatTime(t time.Time) string {
	return t.Format(timeLayout)
}

func formatTimePointer(t *time.Time) string {
	if t == nil {
		return ""
	}

	return formatTime(*t)
}

func derefString(s *string) string {
	if s == nil {
		return ""
	}

	return *s
}

func derefInt(n *int) string {
	if n == nil {
		return ""
	}

	return strconv.Itoa(*n)
}

// videoTable excludes videos marked exclude_from_stats.
func videoTable(ctx context.Context) ([]string, [][]string, error) {
	videos, err := store.AllVideos(ctx, false)
	if err != nil {
		return nil, nil, err
	}

	header := []string{
		"video_id", "channel_id", "title", "description", "upload_time",
		"duration", "watch_url", "view_count", "like_count", "dislike_count",
		"comment_count", "visibility", "is_short", "show", "episode_num",
		"thumbnail_url", "tags", "subscriber_count", "collected_at",
		"last_updated",
	}

	rows := make([][]string, 0, len(videos))
	for _, v := range videos {
		rows = append(rows, []string{
			v.VideoID,
			v.ChannelID,
			v.Title,
			v.Description,
			formatTimePointer(v.UploadTime),
			strconv.Itoa(v.Duration),
			v.WatchURL,
			strconv.Itoa(v.ViewCount),
			strconv.Itoa(v.LikeCount),
			strconv.Itoa(v.DislikeCount),
			strconv.Itoa(v.CommentCount),
			derefString(v.Visibility),
			strconv.FormatBool(v.IsShort),
			derefString(v.Show),
			derefInt(v.EpisodeNum),
			derefString(v.ThumbnailURL),
			derefString(v.Tags),
			derefInt(v.SubscriberCount),
			formatTime(v.CollectedAt),
			formatTime(v.LastUpdated),
		})
	}

	return header, rows, nil
}

func trafficTable(ctx context.Context) ([]string, [][]string, error) {
	sources, err := store.AllTrafficSources(ctx)
	if err != nil {
		return nil, nil, err
	}

	header := []string{"video_id", "traffic_source", "views", "collected_at"}

	rows := make([][]string, 0, len(sources))
	for _, s := range sources {
		rows = append(rows, []string{
			s.VideoID,
			s.TrafficSource,
			strconv.Itoa(s.Views),
			formatTime(s.CollectedAt),
		})
	}

	return header, rows, nil
}

func channelTable(ctx context.Context) ([]string, [][]string, error) {
	stats, err := store.ChannelStatsHistory(ctx, "")
	if err != nil {
		return nil, nil, err
	}

	header := []string{
		"channel_id", "title", "description", "subscriber_count",
		"view_count", "video_count", "published_at", "collected_at",
	}

	rows := make([][]string, 0, len(stats))
	for _, s := range stats {
		rows = append(rows, []string{
			s.ChannelID,
			s.Title,
			s.Description,
			strconv.Itoa(s.SubscriberCount),
			strconv.Itoa(s.ViewCount),
			strconv.Itoa(s.VideoCount),
			formatTimePointer(s.PublishedAt),
			formatTime(s.CollectedAt),
		})
	}

	return header, rows, nil
}

var tables = map[string]func(context.Context) ([]string, [][]string, error){
	"video_stats":     videoTable,
	"traffic_sources": trafficTable,
	"channel_stats":   channelTable,
}

// TableNames lists the exportable tables in the order they appear in files.
func TableNames() []string {
	return []string{"video_stats", "traffic_sources", "channel_stats"}
}

// WriteTable streams one table as CSV to w.
func WriteTable(ctx context.Context, w io.Writer, name string) error {
	fn, ok := tables[name]
	if !ok {
		return fmt.Errorf("export.WriteTable: unknown table %q", name)
	}

	header, rows, err := fn(ctx)
	if err != nil {
		return fmt.Errorf("export.WriteTable: %w", err)
	}

	if err := writeRows(w, header, rows); err != nil {
		return fmt.Errorf("export.WriteTable: %w", err)
	}

	return nil
}

func exportTable(ctx context.Context, dir, name string) (string, error) {
	now, err := ctxclock.Now(ctx)
	if err != nil {
		return "", err
	}

	header, rows, err := tables[name](ctx)
	if err != nil {
		return "", err
	}

	return writeFile(dir, name, now, header, rows)
}

// Videos writes every video not excluded from stats.
func Videos(ctx context.Context, dir string) (string, error) {
	path, err := exportTable(ctx, dir, "video_stats")
	if err != nil {
		return "", fmt.Errorf("export.Videos: %w", err)
	}

	return path, nil
}

func TrafficSources(ctx context.Context, dir string) (string, error) {
	path, err := exportTable(ctx, dir, "traffic_sources")
	if err != nil {
		return "", fmt.Errorf("export.TrafficSources: %w", err)
	}

	return path, nil
}

func ChannelStats(ctx context.Context, dir string) (string, error) {
	path, err := exportTable(ctx, dir, "channel_stats")
	if err != nil {
		return "", fmt.Errorf("export.ChannelStats: %w", err)
	}

	return path, nil
}

// All exports every table.
func All(ctx context.Context, dir string) ([]string, error) {
	var paths []string

	for _, name := range TableNames() {
		path, err := exportTable(ctx, dir, name)
		if err != nil {
			return nil, fmt.Errorf("export.All: %w", err)
		}

		paths = append(paths, path)
	}

	return paths, nil
}
