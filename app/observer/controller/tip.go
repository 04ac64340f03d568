package controller

import (
	"net/http"

	"github.com/gorilla/mux"
)

// HandleTip returns the chain tip view of a lineage. The lineage comes from
// the path or the "lineage" query parameter, defaulting to the default one.
func (c *Controller) HandleTip(w http.ResponseWriter, r *http.Request) {
	lineage := mux.Vars(r)["lineage"]
	if lineage == "" {
		lineage = r.URL.Query().Get("lineage")
	}

	tip := c.App.Ingestor.Tip(lineage)
	if tip == nil {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "unknown lineage"})
		return
	}
	writeJSON(w, http.StatusOK, tip.View())
}

func (c *Controller) HandleLineages(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string][]string{"lineages": c.App.Ingestor.Lineages()})
}
