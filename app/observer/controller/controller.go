package controller

import (
	"encoding/json"
	"net/http"

	"github.com/canopy-network/stacksx/app/observer/types"
	"github.com/canopy-network/stacksx/pkg/stacks/node"
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type Controller struct {
	App *types.App
}

// NewController returns a new controller.
func NewController(app *types.App) *Controller {
	return &Controller{
		App: app,
	}
}

// observerPaths are the paths a Stacks node posts to.
var observerPaths = []string{
	node.PathNewBlock,
	node.PathNewBurnBlock,
	node.PathDropMempoolTx,
	node.PathNewMempoolTx,
	node.PathNewMicroblocks,
	node.PathAttachments,
}

// NewRouter returns a new router with all the routes defined in this file.
func (c *Controller) NewRouter() (*mux.Router, error) {
	r := mux.NewRouter()

	r.Handle("/health", http.HandlerFunc(c.HandleHealth)).Methods("GET")
	r.Handle("/metrics", promhttp.HandlerFor(c.App.Gatherer, promhttp.HandlerOpts{})).Methods("GET")
	r.HandleFunc("/ws", c.HandleWebSocket).Methods("GET")

	r.HandleFunc("/lineages", c.HandleLineages).Methods("GET")
	r.HandleFunc("/tip", c.HandleTip).Methods("GET")
	r.HandleFunc("/lineages/{lineage}/tip", c.HandleTip).Methods("GET")

	// Unprefixed paths feed the default lineage.
	for _, path := range observerPaths {
		handler := c.RequireAuth(c.HandleIngest(path))
		r.Handle(path, handler).Methods("POST")
		r.Handle("/lineages/{lineage}"+path, handler).Methods("POST")
	}

	return r, nil
}

// WithCORS is a middleware that adds CORS headers to the response.
func WithCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")

		if origin != "" {
			w.Header().Set("Access-Control-Allow-Origin", origin)
			w.Header().Set("Access-Control-Allow-Credentials", "true")
		} else {
			w.Header().Set("Access-Control-Allow-Origin", "*")
		}
		w.Header().Set("Vary", "Origin")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		w.Header().Set("Access-Control-Allow-Methods", http.MethodGet+", "+http.MethodPost+", "+http.MethodOptions)

		// Fast-path the preflight
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}

		next.ServeHTTP(w, r)
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
