package handlers

import (
	"database/sql"
	"net/http"

	"fknsrs.biz/p/sorm"
	"fknsrs.biz/p/sorm/qsorm"
	sb "fknsrs.biz/p/sqlbuilder"
	"github.com/gorilla/mux"
	"github.com/gost/godata"
	"github.com/monoculum/formam"

	"fknsrs.biz/p/ytstats/internal/ctxdb"
	"fknsrs.biz/p/ytstats/internal/ctxtemplate"
	"fknsrs.biz/p/ytstats/internal/godatautil"
	"fknsrs.biz/p/ytstats/internal/httputil"
	"fknsrs.biz/p/ytstats/internal/store"
	"fknsrs.biz/p/ytstats/models"
)

// Videos lists collected videos. Filtering and sorting use OData query
// options, e.g. /videos?$filter=IsShort eq true&$orderby=ViewCount desc.
func Videos(rw http.ResponseWriter, r *http.Request) {
	q, err := godata.ParseUrlQuery(r.URL.Query())
	if err != nil {
		httputil.RedirectWithError(rw, r, "/videos", "Could not parse query: "+err.Error())
		return
	}

	condition, err := godatautil.MakeCondition(q, models.VideoStatsTable)
	if err != nil {
		httputil.RedirectWithError(rw, r, "/videos", "Could not understand filter: "+err.Error())
		return
	}

	orders, err := godatautil.MakeOrders(q, models.VideoStatsTable, sb.OrderDesc(models.VideoStatsTable.C("UploadTime")))
	if err != nil {
		httputil.RedirectWithError(rw, r, "/videos", "Could not understand ordering: "+err.Error())
		return
	}

	var videos []models.VideoStats
	if err := qsorm.FindWhere(
		r.Context(),
		ctxdb.GetDB(r.Context()),
		&videos,
		condition,
		orders,
		godatautil.MakeOffsetLimit(q, 0, 500),
	); err != nil {
		panic(err)
	}

	if err := ctxtemplate.ExecuteTemplateIntoResponse(r, rw, "page_videos", map[string]interface{}{
		"Videos": videos,
	}); err != nil {
		panic(err)
	}
}

func Video(rw http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)

	var video models.VideoStats
	if err := sorm.FindFirstWhere(r.Context(), ctxdb.GetDB(r.Context()), &video, "where video_id = ?", vars["id"]); err != nil {
		if err == sql.ErrNoRows {
			httputil.NotFound(rw, r)
			return
		}

		panic(err)
	}

	sources, err := store.GetTrafficSources(r.Context(), video.VideoID)
	if err != nil {
		panic(err)
	}

	if err := ctxtemplate.ExecuteTemplateIntoResponse(r, rw, "page_video", map[string]interface{}{
		"Video":          video,
		"TrafficSources": sources,
	}); err != nil {
		panic(err)
	}
}

func VideoExcludeAction(rw http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)

	if err := r.ParseForm(); err != nil {
		panic(err)
	}

	var input struct {
		Exclude bool `formam:"exclude"`
	}

	if err := formam.Decode(r.PostForm, &input); err != nil {
		panic(err)
	}

	if err := store.SetExcludeFromStats(r.Context(), vars["id"], input.Exclude); err != nil {
		httputil.RedirectWithError(rw, r, "/videos/"+vars["id"], "Could not update video: "+err.Error())
		return
	}

	message := "Video now included in stats."
	if input.Exclude {
		message = "Video now excluded from stats."
	}

	httputil.RedirectWithSuccess(rw, r, "/videos/"+vars["id"], message)
}
