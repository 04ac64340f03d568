package consumer

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/canopy-network/stacksx/pkg/utils"
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// SetupServer sets up the HTTP server.
func (a *App) SetupServer() {
	// use <ip>:<port> to bind to a specific interface or :<port> to bind to all interfaces
	addr := utils.Env("ADDR", ":3701")

	r := mux.NewRouter()
	r.HandleFunc("/health", a.handleHealth).Methods("GET")
	r.Handle("/metrics", promhttp.HandlerFor(a.Pipeline.Registry, promhttp.HandlerOpts{})).Methods("GET")

	a.Server = &http.Server{Addr: addr, Handler: r, ReadHeaderTimeout: 10 * time.Second}
	a.Logger.Info("Starting server", zap.String("addr", addr))
}

func (a *App) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	for name, check := range a.Pipeline.HealthChecks() {
		if err := check(r.Context()); err != nil {
			w.WriteHeader(http.StatusInternalServerError)
			_ = json.NewEncoder(w).Encode(map[string]string{"status": "errored", "error": name + " connection error"})
			return
		}
	}
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}
