package models

import (
	"database/sql"
	"time"

	"fknsrs.biz/p/ytstats/internal/sqlbuilderutil"
	"fknsrs.biz/p/ytstats/internal/sqltypes"
)

var (
	ChannelStatsTable *sqlbuilderutil.Table
)

func init() {
	ChannelStatsTable = sqlbuilderutil.MustMakeTable(ChannelStats{})
}

type ChannelStats struct {
	ID              int `sql:",table:channel_stats"`
	ChannelID       string
	Title           string
	Description     string
	SubscriberCount int
	ViewCount       int
	VideoCount      int
	PublishedAt     *time.Time
	CollectedAt     time.Time
}

func (s *ChannelStats) OverrideScan(names []string, scanners []sql.Scanner) error {
	for i, name := range names {
		switch name {
		case "PublishedAt":
			scanners[i] = &sqltypes.TimePointerScanner{Value: &s.PublishedAt}
		case "CollectedAt":
			scanners[i] = &sqltypes.TimeScanner{Value: &s.CollectedAt}
		}
	}

	return nil
}
