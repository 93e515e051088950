package models

import (
	"database/sql"
	"time"

	"fknsrs.biz/p/ytstats/internal/sqlbuilderutil"
	"fknsrs.biz/p/ytstats/internal/sqltypes"
)

var (
	VideoStatsTable *sqlbuilderutil.Table
)

func init() {
	VideoStatsTable = sqlbuilderutil.MustMakeTable(VideoStats{})
}

type VideoStats struct {
	ID          int `sql:",table:video_stats"`
	VideoID     string
	ChannelID   string
	Title       string
	Description string
	UploadTime  *time.Time
	Duration    int
	WatchURL    string

	ViewCount    int
	LikeCount    int
	DislikeCount int
	CommentCount int

	Visibility       *string
	IsShort          bool
	Show             *string
	EpisodeNum       *int
	ThumbnailURL     *string
	ExcludeFromStats bool
	Tags             *string
	SubscriberCount  *int

	CollectedAt time.Time
	LastUpdated time.Time
}

func (s *VideoStats) OverrideScan(names []string, scanners []sql.Scanner) error {
	for i, name := range names {
		switch name {
		case "UploadTime":
			scanners[i] = &sqltypes.TimePointerScanner{Value: &s.UploadTime}
		case "CollectedAt":
			scanners[i] = &sqltypes.TimeScanner{Value: &s.CollectedAt}
		case "LastUpdated":
			scanners[i] = &sqltypes.TimeScanner{Value: &s.LastUpdated}
		}
	}

	return nil
}
