package controller

import (
	"errors"
	"io"
	"net/http"

	"github.com/canopy-network/stacksx/pkg/ingest"
	"github.com/canopy-network/stacksx/pkg/utils"
	"github.com/gorilla/mux"
	"go.uber.org/zap"
)

// DefaultMaxBodyBytes bounds a node post. Blocks with many large contract
// deployments run to tens of megabytes.
const DefaultMaxBodyBytes = 64 << 20

// HandleIngest serves one node observer path. Paths the pipeline does not
// consume are acknowledged so the node does not retry them.
func (c *Controller) HandleIngest(path string) http.HandlerFunc {
	kind, ignored, _ := ingest.Route(path)
	return func(w http.ResponseWriter, r *http.Request) {
		if ignored {
			_ = utils.DrainAndClose(r.Body)
			writeJSON(w, http.StatusOK, map[string]string{"status": "ignored"})
			return
		}

		body, err := c.readBody(w, r)
		if err != nil {
			status := http.StatusBadRequest
			var tooLarge *http.MaxBytesError
			if errors.As(err, &tooLarge) {
				status = http.StatusRequestEntityTooLarge
			}
			writeJSON(w, status, map[string]string{"error": err.Error()})
			return
		}

		res, err := c.App.Ingestor.Dispatch(r.Context(), mux.Vars(r)["lineage"], kind, body)
		if err != nil {
			c.writeIngestError(w, res, err)
			return
		}
		writeJSON(w, http.StatusOK, res)
	}
}

func (c *Controller) readBody(w http.ResponseWriter, r *http.Request) ([]byte, error) {
	limit := c.App.MaxBodyBytes
	if limit <= 0 {
		limit = DefaultMaxBodyBytes
	}
	body := http.MaxBytesReader(w, r.Body, limit)
	defer func() { _ = body.Close() }()
	return io.ReadAll(body)
}

// StatusFor maps an ingestion error to the response status. Validation
// failures are the sender's fault and never succeed on retry; sequencing
// failures succeed once the missing blocks have arrived.
func StatusFor(err error) int {
	switch {
	case errors.Is(err, ingest.ErrUnknownLineage):
		return http.StatusNotFound
	case errors.Is(err, ingest.ErrClosed):
		return http.StatusServiceUnavailable
	}
	switch ingest.Classify(err) {
	case ingest.ClassValidation:
		return http.StatusBadRequest
	case ingest.ClassSequencing:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

func (c *Controller) writeIngestError(w http.ResponseWriter, res ingest.Result, err error) {
	status := StatusFor(err)
	if status == http.StatusNotFound {
		c.App.Logger.Warn("Post for unknown lineage", zap.Error(err))
	}
	writeJSON(w, status, map[string]string{
		"error":      err.Error(),
		"class":      string(ingest.Classify(err)),
		"kind":       res.Kind,
		"request_id": res.RequestID,
	})
}
