package observer

import (
	"net/http"
	"time"

	"github.com/canopy-network/stacksx/app/observer/controller"
	"github.com/canopy-network/stacksx/app/observer/types"
	"github.com/canopy-network/stacksx/pkg/utils"
	"go.uber.org/zap"
)

// NewServer creates the HTTP server the node posts its events to.
func NewServer(app *types.App) error {
	ctler := controller.NewController(app)
	router, err := ctler.NewRouter()
	if err != nil {
		return err
	}

	// use <ip>:<port> to bind to a specific interface or :<port> to bind to all interfaces
	addr := utils.Env("ADDR", ":3700")

	app.Server = &http.Server{
		Addr:              addr,
		Handler:           controller.WithCORS(router),
		ReadHeaderTimeout: 10 * time.Second,
	}
	app.Logger.Info("Starting server", zap.String("addr", addr))

	return nil
}
