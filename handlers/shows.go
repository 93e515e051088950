package handlers

import (
	"net/http"

	"fknsrs.biz/p/ytstats/internal/ctxtemplate"
	"fknsrs.biz/p/ytstats/internal/store"
)

func Shows(rw http.ResponseWriter, r *http.Request) {
	shows, err := store.ShowSummaries(r.Context())
	if err != nil {
		panic(err)
	}

	if err := ctxtemplate.ExecuteTemplateIntoResponse(r, rw, "page_shows", map[string]interface{}{
		"Shows": shows,
	}); err != nil {
		panic(err)
	}
}
