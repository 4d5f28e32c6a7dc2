// Package panel serves the HTTP surface of the progress tracker: a JSON API,
// case event streams over SSE and the Prometheus endpoint.
package panel

import (
	"log/slog"
	"net/http"
	"os"

	"github.com/wisarudtecha/CMS-sub002/internal/metrics"
	"github.com/wisarudtecha/CMS-sub002/internal/payload"
	"github.com/wisarudtecha/CMS-sub002/internal/store"
	"github.com/wisarudtecha/CMS-sub002/internal/streaming"
	"github.com/wisarudtecha/CMS-sub002/internal/tracker"
)

// maxBodyBytes caps request bodies.
const maxBodyBytes = 4 << 20

// PanelDeps holds the dependencies for the panel server.
type PanelDeps struct {
	Store     store.Store
	Tracker   *tracker.Tracker
	Decoder   *payload.Decoder
	Hub       streaming.EventHub
	Metrics   *metrics.Metrics
	Logger    *slog.Logger
}

// PanelServer serves the panel routes.
type PanelServer struct {
	deps PanelDeps
}

// NewPanelServer creates a new PanelServer.
func NewPanelServer(deps PanelDeps) *PanelServer {
	if deps.Logger == nil {
		deps.Logger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelInfo}))
	}
	return &PanelServer{deps: deps}
}

// Handler returns the HTTP handler for the panel routes.
func (s *PanelServer) Handler() http.Handler {
	mux := http.NewServeMux()

	// Reads.
	mux.HandleFunc("GET /api/workflows", s.handleWorkflows)
	mux.HandleFunc("GET /api/workflows/{id}", s.handleWorkflowDetail)
	mux.HandleFunc("GET /api/cases/{id}/progress", s.handleCaseProgress)
	mux.HandleFunc("GET /api/cases/{id}/diagram", s.handleCaseDiagram)
	mux.HandleFunc("GET /api/cases/{id}/events", s.handleCaseEvents)

	// Inline payloads.
	mux.HandleFunc("POST /api/progress", s.handleInlineProgress)
	mux.HandleFunc("POST /api/diagram", s.handleInlineDiagram)
	mux.HandleFunc("POST /api/validate", s.handleValidate)

	// Mutations.
	mux.HandleFunc("POST /api/workflows", s.handleCreateWorkflow)
	mux.HandleFunc("POST /api/cases", s.handleOpenCase)
	mux.HandleFunc("POST /api/cases/{id}/advance", s.handleAdvanceCase)
	mux.HandleFunc("PUT /api/labels/{status}/{lang}", s.handleSetLabel)
	mux.HandleFunc("PUT /api/delay-statuses/{status}", s.handleSetDelayStatus)

	// SSE streams.
	mux.HandleFunc("GET /sse/events", s.handleSSEGlobal)
	mux.HandleFunc("GET /sse/cases/{id}", s.handleSSECase)

	if s.deps.Metrics != nil {
		mux.Handle("GET /metrics", s.deps.Metrics.Handler())
	}
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	return mux
}
