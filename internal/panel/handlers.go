package panel

import (
	"net/http"

	"github.com/wisarudtecha/CMS-sub002/internal/diagram"
	"github.com/wisarudtecha/CMS-sub002/internal/logging"
	"github.com/wisarudtecha/CMS-sub002/internal/store"
	"github.com/wisarudtecha/CMS-sub002/internal/tracker"
	"github.com/wisarudtecha/CMS-sub002/pkg/schema"
)

// emptyProgressBody is returned with 422 when the workflow has no nodes. The
// (empty) progress is still included so clients can render it.
type emptyProgressBody struct {
	errorBody
	Progress *tracker.CaseProgress `json:"progress"`
}

func (s *PanelServer) handleWorkflows(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	workflows, err := s.deps.Store.ListWorkflows(r.Context(), store.WorkflowFilter{
		Name:       q.Get("name"),
		LatestOnly: q.Get("latest") == "true",
		Limit:      queryInt(r, "limit", 100),
	})
	if err != nil {
		s.fail(w, r, err)
		return
	}
	if workflows == nil {
		workflows = []*store.Workflow{}
	}
	writeJSON(w, http.StatusOK, workflows)
}

func (s *PanelServer) handleWorkflowDetail(w http.ResponseWriter, r *http.Request) {
	wf, err := s.deps.Store.GetWorkflow(r.Context(), r.PathValue("id"), queryInt(r, "version", 0))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, wf)
}

func (s *PanelServer) handleCaseProgress(w http.ResponseWriter, r *http.Request) {
	ctx := logging.WithCaseID(r.Context(), r.PathValue("id"))
	p, err := s.deps.Tracker.CaseProgress(ctx, r.PathValue("id"), r.URL.Query().Get("lang"))
	s.writeProgress(w, r, p, err)
}

// writeProgress writes a resolution result, turning EMPTY_WORKFLOW into a 422
// that still carries the progress.
func (s *PanelServer) writeProgress(w http.ResponseWriter, r *http.Request, p *tracker.CaseProgress, err error) {
	if err == nil {
		writeJSON(w, http.StatusOK, p)
		return
	}
	if schema.IsCode(err, schema.ErrCodeEmptyWorkflow) && p != nil {
		writeJSON(w, http.StatusUnprocessableEntity, emptyProgressBody{
			errorBody: errorBody{Error: "workflow definition has no nodes", Code: schema.ErrCodeEmptyWorkflow},
			Progress:  p,
		})
		return
	}
	s.fail(w, r, err)
}

func (s *PanelServer) handleCaseDiagram(w http.ResponseWriter, r *http.Request) {
	ctx := logging.WithCaseID(r.Context(), r.PathValue("id"))
	model, err := s.deps.Tracker.CaseDiagram(ctx, r.PathValue("id"), r.URL.Query().Get("lang"))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	s.writeDiagram(w, r, model)
}

// writeDiagram renders model in the format named by the "format" query
// parameter: mermaid (default), ascii, png or svg.
func (s *PanelServer) writeDiagram(w http.ResponseWriter, r *http.Request, model *diagram.Model) {
	format := r.URL.Query().Get("format")
	switch format {
	case "", "mermaid":
		writeText(w, diagram.RenderMermaid(model))
	case "ascii":
		writeText(w, diagram.RenderASCII(model))
	case diagram.FormatPNG, diagram.FormatSVG:
		img, err := diagram.RenderImage(r.Context(), model, format)
		if err != nil {
			s.fail(w, r, err)
			return
		}
		contentType := "image/png"
		if format == diagram.FormatSVG {
			contentType = "image/svg+xml"
		}
		w.Header().Set("Content-Type", contentType)
		w.WriteHeader(http.StatusOK)
		w.Write(img)
	default:
		writeError(w, http.StatusBadRequest, "format must be one of mermaid, ascii, png, svg")
	}
}

func writeText(w http.ResponseWriter, body string) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(body))
}

func (s *PanelServer) handleCaseEvents(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	caseID := r.PathValue("id")

	if _, err := s.deps.Store.GetCase(ctx, caseID); err != nil {
		s.fail(w, r, err)
		return
	}
	events, err := s.deps.Store.ListEvents(ctx, store.EventFilter{
		CaseID:    caseID,
		EventType: r.URL.Query().Get("type"),
		Limit:     queryInt(r, "limit", 0),
	})
	if err != nil {
		s.fail(w, r, err)
		return
	}
	if events == nil {
		events = []*store.Event{}
	}
	writeJSON(w, http.StatusOK, events)
}
