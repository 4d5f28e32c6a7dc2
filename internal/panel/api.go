package panel

import (
	"encoding/json"
	"net/http"

	"github.com/wisarudtecha/CMS-sub002/internal/logging"
	"github.com/wisarudtecha/CMS-sub002/internal/tracker"
	"github.com/wisarudtecha/CMS-sub002/internal/validation"
	"github.com/wisarudtecha/CMS-sub002/pkg/schema"
)

// validateResponse reports the issues found in a payload.
type validateResponse struct {
	Valid bool `json:"valid"`
	*schema.ValidationResult
}

func newValidateResponse(result *schema.ValidationResult) validateResponse {
	return validateResponse{Valid: result.Valid(), ValidationResult: result}
}

// handleInlineProgress resolves a payload posted in the upstream case format.
func (s *PanelServer) handleInlineProgress(w http.ResponseWriter, r *http.Request) {
	p, ok := s.decodePayload(w, r)
	if !ok {
		return
	}
	res, err := s.deps.Tracker.Inline(r.Context(), p, r.URL.Query().Get("lang"))
	s.writeProgress(w, r, res, err)
}

func (s *PanelServer) handleInlineDiagram(w http.ResponseWriter, r *http.Request) {
	p, ok := s.decodePayload(w, r)
	if !ok {
		return
	}
	model, err := s.deps.Tracker.InlineDiagram(r.Context(), p, r.URL.Query().Get("lang"))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	s.writeDiagram(w, r, model)
}

// handleValidate always answers 200 with the issues found; decode problems
// are reported as errors in the result.
func (s *PanelServer) handleValidate(w http.ResponseWriter, r *http.Request) {
	raw, err := readBody(w, r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	p, err := s.deps.Decoder.Decode(r.Context(), raw)
	if err != nil {
		writeJSON(w, http.StatusOK, newValidateResponse(validation.StructuralResult(err)))
		return
	}
	def := p.Definition()
	result, err := s.deps.Tracker.Validate(r.Context(), &def)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, newValidateResponse(result))
}

// handleCreateWorkflow stores a new workflow version. The body is a payload
// whose "sop" holds the graph, plus optional "id" and "name".
func (s *PanelServer) handleCreateWorkflow(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	raw, err := readBody(w, r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	var meta struct {
		ID   string `json:"id"`
		Name string `json:"name"`
	}
	if err := json.Unmarshal(raw, &meta); err != nil {
		s.fail(w, r, schema.NewError(schema.ErrCodeDecode, "invalid JSON: "+err.Error()))
		return
	}
	p, err := s.deps.Decoder.Decode(ctx, raw)
	if err != nil {
		s.fail(w, r, err)
		return
	}

	wf, result, err := s.deps.Tracker.RegisterWorkflow(ctx, meta.ID, meta.Name, p.Definition())
	if err != nil {
		if result != nil && !result.Valid() {
			writeJSON(w, http.StatusUnprocessableEntity, newValidateResponse(result))
			return
		}
		s.fail(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, map[string]any{
		"id":       wf.ID,
		"version":  wf.Version,
		"warnings": result.Warnings,
	})
}

func (s *PanelServer) handleOpenCase(w http.ResponseWriter, r *http.Request) {
	var body struct {
		WorkflowID string `json:"workflowId"`
		Version    int    `json:"version"`
	}
	if err := decodeBody(w, r, &body); err != nil {
		s.fail(w, r, err)
		return
	}
	if body.WorkflowID == "" {
		writeError(w, http.StatusBadRequest, "workflowId is required")
		return
	}

	c, err := s.deps.Tracker.OpenCase(logging.WithWorkflowID(r.Context(), body.WorkflowID), body.WorkflowID, body.Version)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, c)
}

func (s *PanelServer) handleAdvanceCase(w http.ResponseWriter, r *http.Request) {
	var req tracker.AdvanceRequest
	if err := decodeBody(w, r, &req); err != nil {
		s.fail(w, r, err)
		return
	}
	req.CaseID = r.PathValue("id")
	if req.NodeID == "" {
		writeError(w, http.StatusBadRequest, "nodeId is required")
		return
	}

	p, err := s.deps.Tracker.AdvanceCase(r.Context(), req)
	s.writeProgress(w, r, p, err)
}

func (s *PanelServer) handleSetLabel(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Title string `json:"title"`
	}
	if err := decodeBody(w, r, &body); err != nil {
		s.fail(w, r, err)
		return
	}
	if body.Title == "" {
		writeError(w, http.StatusBadRequest, "title is required")
		return
	}

	statusID, lang := r.PathValue("status"), r.PathValue("lang")
	if err := s.deps.Tracker.SetLabel(r.Context(), statusID, lang, body.Title); err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"statusId": statusID,
		"language": lang,
		"title":    body.Title,
	})
}

func (s *PanelServer) handleSetDelayStatus(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Delay *bool `json:"delay"`
	}
	if err := decodeBody(w, r, &body); err != nil {
		s.fail(w, r, err)
		return
	}
	if body.Delay == nil {
		writeError(w, http.StatusBadRequest, "delay is required")
		return
	}

	statusID := r.PathValue("status")
	if err := s.deps.Tracker.SetDelayStatus(r.Context(), statusID, *body.Delay); err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"statusId": statusID, "delay": *body.Delay})
}

// decodePayload reads and decodes an upstream payload, writing the error
// response itself when that fails.
func (s *PanelServer) decodePayload(w http.ResponseWriter, r *http.Request) (*schema.SOPPayload, bool) {
	raw, err := readBody(w, r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return nil, false
	}
	p, err := s.deps.Decoder.Decode(r.Context(), raw)
	if err != nil {
		s.fail(w, r, err)
		return nil, false
	}
	return p, true
}
