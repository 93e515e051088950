package models

import (
	"database/sql"
	"time"

	"fknsrs.biz/p/ytstats/internal/sqlbuilderutil"
	"fknsrs.biz/p/ytstats/internal/sqltypes"
)

var (
	TrafficSourceTable *sqlbuilderutil.Table
)

func init() {
	TrafficSourceTable = sqlbuilderutil.MustMakeTable(TrafficSource{})
}

type TrafficSource struct {
	ID            int `sql:",table:traffic_sources"`
	VideoID       string
	TrafficSource string
	Views         int
	CollectedAt   time.Time
}

func (s *TrafficSource) OverrideScan(names []string, scanners []sql.Scanner) error {
	for i, name := range names {
		switch name {
		case "CollectedAt":
			scanners[i] = &sqltypes.TimeScanner{Value: &s.CollectedAt}
		}
	}

	return nil
}
