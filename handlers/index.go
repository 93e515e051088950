package handlers

import (
	"database/sql"
	"net/http"

	"fknsrs.biz/p/sorm"
	"fknsrs.biz/p/sorm/qsorm"
	sb "fknsrs.biz/p/sqlbuilder"

	"fknsrs.biz/p/ytstats/internal/ctxdb"
	"fknsrs.biz/p/ytstats/internal/ctxtemplate"
	"fknsrs.biz/p/ytstats/internal/store"
	"fknsrs.biz/p/ytstats/models"
)

func Index(rw http.ResponseWriter, r *http.Request) {
	db := ctxdb.GetDB(r.Context())

	var totals struct {
		Videos   int
		Shorts   int
		Mapped   int
		Excluded int
	}

	if err := db.QueryRowContext(r.Context(), `
		select
			count(*),
			coalesce(sum(is_short), 0),
			coalesce(sum(show is not null and show != ''), 0),
			coalesce(sum(exclude_from_stats), 0)
		from video_stats
	`).Scan(&totals.Videos, &totals.Shorts, &totals.Mapped, &totals.Excluded); err != nil {
		panic(err)
	}

	var latest models.ChannelStats
	hasChannelStats := true
	if err := sorm.FindFirstWhere(r.Context(), db, &latest, "order by collected_at desc limit 1"); err != nil {
		if err != sql.ErrNoRows {
			panic(err)
		}
		hasChannelStats = false
	}

	var recent []models.VideoStats
	if err := qsorm.FindWhere(
		r.Context(),
		db,
		&recent,
		nil,
		[]sb.AsOrderingTerm{sb.OrderDesc(models.VideoStatsTable.C("UploadTime"))},
		sb.OffsetLimit(nil, sb.Literal("10")),
	); err != nil {
		panic(err)
	}

	shows, err := store.ShowSummaries(r.Context())
	if err != nil {
		panic(err)
	}

	if err := ctxtemplate.ExecuteTemplateIntoResponse(r, rw, "page_index", map[string]interface{}{
		"Totals":          totals,
		"ChannelStats":    latest,
		"HasChannelStats": hasChannelStats,
		"RecentVideos":    recent,
		"Shows":           shows,
	}); err != nil {
		panic(err)
	}
}
