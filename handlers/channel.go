package handlers

import (
	"net/http"

	"fknsrs.biz/p/ytstats/internal/ctxtemplate"
	"fknsrs.biz/p/ytstats/internal/store"
)

// ChannelHistory shows every channel snapshot, newest first. Each
// collection run appends one row, so this is a growth timeline.
func ChannelHistory(rw http.ResponseWriter, r *http.Request) {
	history, err := store.ChannelStatsHistory(r.Context(), r.URL.Query().Get("channel_id"))
	if err != nil {
		panic(err)
	}

	if err := ctxtemplate.ExecuteTemplateIntoResponse(r, rw, "page_channel_history", map[string]interface{}{
		"History": history,
	}); err != nil {
		panic(err)
	}
}
