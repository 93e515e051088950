package handlers

import (
	"net/http"

	"github.com/gorilla/mux"

	"fknsrs.biz/p/ytstats/internal/export"
	"fknsrs.biz/p/ytstats/internal/httputil"
)

// ExportCSV streams a table as a CSV download. The table name comes from
// the route, e.g. /export/video_stats.csv.
func ExportCSV(rw http.ResponseWriter, r *http.Request) {
	name := mux.Vars(r)["table"]

	found := false
	for _, n := range export.TableNames() {
		if n == name {
			found = true
			break
		}
	}
	if !found {
		httputil.NotFound(rw, r)
		return
	}

	rw.Header().Set("content-type", "text/csv; charset=utf-8")
	rw.Header().Set("content-disposition", "attachment; filename="+name+".csv")

	if err := export.WriteTable(r.Context(), rw, name); err != nil {
		panic(err)
	}
}
