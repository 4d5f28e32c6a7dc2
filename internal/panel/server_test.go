package panel

import (
	"bufio"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wisarudtecha/CMS-sub002/internal/metrics"
	"github.com/wisarudtecha/CMS-sub002/internal/payload"
	"github.com/wisarudtecha/CMS-sub002/internal/store"
	"github.com/wisarudtecha/CMS-sub002/internal/streaming"
	"github.com/wisarudtecha/CMS-sub002/internal/tracker"
	"github.com/wisarudtecha/CMS-sub002/internal/validation"
	"github.com/wisarudtecha/CMS-sub002/pkg/schema"
)

const intakeSOP = `{
  "id": "intake",
  "name": "Intake",
  "sop": [
    {"nodes": [
      {"nodeId": "S", "type": "start", "position": {"x": 0, "y": 0}, "data": {"label": "Start"}},
      {"nodeId": "A", "type": "process", "position": {"x": 0, "y": 100}, "data": {"label": "Receive", "config": {"action": "S1", "sla": "10"}}},
      {"nodeId": "B", "type": "dispatch", "position": {"x": 0, "y": 200}, "data": {"label": "Dispatch", "config": {"action": "S2"}}},
      {"nodeId": "E", "type": "end", "position": {"x": 0, "y": 300}, "data": {"label": "End"}}
    ]},
    {"connections": [
      {"source": "S", "target": "A"},
      {"source": "A", "target": "B"},
      {"source": "B", "target": "E"}
    ]}
  ],
  "currentStage": {"nodeId": "B"},
  "slaTimelines": [{"statusId": "S1", "createdAt": "2024-03-01T10:00:00Z"}]
}`

type testPanel struct {
	handler http.Handler
	store   store.Store
	hub     *streaming.MemoryHub
}

func newTestPanel(t *testing.T) *testPanel {
	t.Helper()
	s, err := store.NewLibSQLStore("file:" + filepath.Join(t.TempDir(), "panel.db"))
	require.NoError(t, err)
	require.NoError(t, s.Migrate(context.Background()))
	t.Cleanup(func() { _ = s.Close() })

	dec, err := payload.NewDecoder()
	require.NoError(t, err)

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	hub := streaming.NewMemoryHub()
	m := metrics.New()
	tr := tracker.NewTracker(s, hub, tracker.Config{Metrics: m}, logger)

	srv := NewPanelServer(PanelDeps{
		Store:     s,
		Tracker:   tr,
		Decoder:   dec,
		Hub:       hub,
		Metrics:   m,
		Logger:    logger,
	})
	return &testPanel{handler: srv.Handler(), store: s, hub: hub}
}

func (p *testPanel) do(t *testing.T, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	rec := httptest.NewRecorder()
	p.handler.ServeHTTP(rec, httptest.NewRequest(method, path, r))
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

// openCase registers the intake workflow and opens a case on it.
func (p *testPanel) openCase(t *testing.T) string {
	t.Helper()
	rec := p.do(t, http.MethodPost, "/api/workflows", intakeSOP)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	rec = p.do(t, http.MethodPost, "/api/cases", `{"workflowId": "intake"}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	return decode[store.Case](t, rec).ID
}

func stepIDs(p tracker.CaseProgress) []string {
	out := make([]string, 0, len(p.Steps))
	for _, s := range p.Steps {
		out = append(out, s.ID)
	}
	return out
}

func TestCaseProgress(t *testing.T) {
	p := newTestPanel(t)
	caseID := p.openCase(t)

	rec := p.do(t, http.MethodGet, "/api/cases/"+caseID+"/progress?lang=en", "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	got := decode[tracker.CaseProgress](t, rec)
	assert.Equal(t, caseID, got.CaseID)
	assert.Equal(t, "en", got.Language)
	assert.Equal(t, []string{"A", "B"}, stepIDs(got))
	assert.True(t, got.Steps[0].Current)
	assert.Equal(t, schema.CaseStatusOpen, got.Status)
}

func TestCaseProgress_NotFound(t *testing.T) {
	p := newTestPanel(t)

	rec := p.do(t, http.MethodGet, "/api/cases/nope/progress", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, schema.ErrCodeNotFound, decode[errorBody](t, rec).Code)
}

func TestCaseProgress_EmptyWorkflow(t *testing.T) {
	p := newTestPanel(t)
	rec := p.do(t, http.MethodPost, "/api/workflows", `{"id": "blank", "sop": []}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	rec = p.do(t, http.MethodPost, "/api/cases", `{"workflowId": "blank"}`)
	require.Equal(t, http.StatusCreated, rec.Code)
	caseID := decode[store.Case](t, rec).ID

	rec = p.do(t, http.MethodGet, "/api/cases/"+caseID+"/progress", "")
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)

	body := decode[emptyProgressBody](t, rec)
	assert.Equal(t, schema.ErrCodeEmptyWorkflow, body.Code)
	require.NotNil(t, body.Progress)
	assert.True(t, body.Progress.Empty)
	assert.Empty(t, body.Progress.Steps)
}

func TestInlineProgress(t *testing.T) {
	p := newTestPanel(t)

	rec := p.do(t, http.MethodPost, "/api/progress", intakeSOP)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	got := decode[tracker.CaseProgress](t, rec)
	assert.Equal(t, "B", got.EffectiveCurrent)
	assert.True(t, got.Steps[0].Completed)
	require.NotNil(t, got.Steps[0].Timeline)
	assert.Equal(t, 50.0, got.Summary.Percent)
}

func TestInlineProgress_Errors(t *testing.T) {
	p := newTestPanel(t)

	tests := []struct {
		name string
		body string
		code string
	}{
		{"not json", `{nope`, schema.ErrCodeDecode},
		{"no sop", `{"language": "en"}`, schema.ErrCodeValidation},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := p.do(t, http.MethodPost, "/api/progress", tt.body)
			assert.Equal(t, http.StatusBadRequest, rec.Code)
			assert.Equal(t, tt.code, decode[errorBody](t, rec).Code)
		})
	}

	rec := p.do(t, http.MethodPost, "/api/progress", `{"sop": []}`)
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
}

func TestValidate(t *testing.T) {
	p := newTestPanel(t)

	tests := []struct {
		name  string
		body  string
		valid bool
		code  string
	}{
		{"valid", intakeSOP, true, ""},
		{"dangling", `{"sop": [{"nodes": [{"nodeId": "A", "type": "process"}]}, {"connections": [{"source": "A", "target": "ghost"}]}]}`, false, validation.CodeDanglingEdge},
		{"undecodable", `[]`, false, schema.ErrCodeValidation},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := p.do(t, http.MethodPost, "/api/validate", tt.body)
			require.Equal(t, http.StatusOK, rec.Code)

			var got struct {
				Valid  bool                     `json:"valid"`
				Errors []schema.ValidationIssue `json:"errors"`
			}
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
			assert.Equal(t, tt.valid, got.Valid)
			if tt.code != "" {
				require.NotEmpty(t, got.Errors)
				assert.Equal(t, tt.code, got.Errors[0].Code)
			}
		})
	}
}

func TestValidate_StoredDelayStatus(t *testing.T) {
	p := newTestPanel(t)
	require.Equal(t, http.StatusOK, p.do(t, http.MethodPut, "/api/delay-statuses/S2", `{"delay": true}`).Code)

	rec := p.do(t, http.MethodPost, "/api/validate", intakeSOP)
	require.Equal(t, http.StatusOK, rec.Code)
	var got struct {
		Valid    bool                     `json:"valid"`
		Warnings []schema.ValidationIssue `json:"warnings"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.True(t, got.Valid)
	require.Len(t, got.Warnings, 1)
	assert.Equal(t, validation.CodeDelayStep, got.Warnings[0].Code)
	assert.Equal(t, "B", got.Warnings[0].NodeID)
}

func TestCreateWorkflow(t *testing.T) {
	p := newTestPanel(t)

	rec := p.do(t, http.MethodPost, "/api/workflows", intakeSOP)
	require.Equal(t, http.StatusCreated, rec.Code)
	assert.EqualValues(t, 1, decode[map[string]any](t, rec)["version"])

	rec = p.do(t, http.MethodPost, "/api/workflows", intakeSOP)
	assert.EqualValues(t, 2, decode[map[string]any](t, rec)["version"])

	rec = p.do(t, http.MethodPost, "/api/workflows",
		`{"id": "bad", "sop": [{"nodes": [{"nodeId": "", "type": "process"}]}]}`)
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.False(t, decode[map[string]any](t, rec)["valid"].(bool))

	rec = p.do(t, http.MethodGet, "/api/workflows?latest=true", "")
	require.Equal(t, http.StatusOK, rec.Code)
	workflows := decode[[]store.Workflow](t, rec)
	require.Len(t, workflows, 1)
	assert.Equal(t, 2, workflows[0].Version)

	rec = p.do(t, http.MethodGet, "/api/workflows/intake?version=1", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Intake", decode[store.Workflow](t, rec).Name)

	rec = p.do(t, http.MethodGet, "/api/workflows/missing", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestOpenCase_Errors(t *testing.T) {
	p := newTestPanel(t)

	assert.Equal(t, http.StatusBadRequest, p.do(t, http.MethodPost, "/api/cases", `{}`).Code)
	assert.Equal(t, http.StatusBadRequest, p.do(t, http.MethodPost, "/api/cases", `nope`).Code)
	assert.Equal(t, http.StatusNotFound, p.do(t, http.MethodPost, "/api/cases", `{"workflowId": "missing"}`).Code)
}

func TestAdvanceCase(t *testing.T) {
	p := newTestPanel(t)
	caseID := p.openCase(t)
	path := "/api/cases/" + caseID + "/advance"

	rec := p.do(t, http.MethodPost, path, `{"nodeId": "B", "ownerId": "officer-1"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	got := decode[tracker.CaseProgress](t, rec)
	assert.Equal(t, "B", got.EffectiveCurrent)
	assert.True(t, got.Steps[0].Completed)

	assert.Equal(t, http.StatusBadRequest, p.do(t, http.MethodPost, path, `{}`).Code)
	assert.Equal(t, http.StatusBadRequest, p.do(t, http.MethodPost, path, `{"nodeId": "ghost"}`).Code)

	rec = p.do(t, http.MethodPost, path, `{"nodeId": "E"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, schema.CaseStatusClosed, decode[tracker.CaseProgress](t, rec).Status)

	rec = p.do(t, http.MethodPost, path, `{"nodeId": "A"}`)
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = p.do(t, http.MethodGet, "/api/cases/"+caseID+"/events", "")
	require.Equal(t, http.StatusOK, rec.Code)
	events := decode[[]store.Event](t, rec)
	types := make([]string, 0, len(events))
	for _, e := range events {
		types = append(types, e.Type)
	}
	assert.Equal(t, []string{
		schema.EventCaseCreated, schema.EventCaseStageChanged,
		schema.EventCaseStageChanged, schema.EventCaseClosed,
	}, types)

	rec = p.do(t, http.MethodGet, "/api/cases/"+caseID+"/events?type="+schema.EventCaseClosed, "")
	assert.Len(t, decode[[]store.Event](t, rec), 1)

	assert.Equal(t, http.StatusNotFound, p.do(t, http.MethodGet, "/api/cases/nope/events", "").Code)
}

func TestLabelsAndDelayStatuses(t *testing.T) {
	p := newTestPanel(t)
	caseID := p.openCase(t)

	rec := p.do(t, http.MethodPut, "/api/labels/S1/en", `{"title": "Receive call"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, http.StatusBadRequest, p.do(t, http.MethodPut, "/api/labels/S1/en", `{}`).Code)

	rec = p.do(t, http.MethodGet, "/api/cases/"+caseID+"/progress?lang=en", "")
	assert.Equal(t, "Receive call", decode[tracker.CaseProgress](t, rec).Steps[0].Title)

	rec = p.do(t, http.MethodPut, "/api/delay-statuses/S2", `{"delay": true}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, http.StatusBadRequest, p.do(t, http.MethodPut, "/api/delay-statuses/S2", `{}`).Code)

	rec = p.do(t, http.MethodGet, "/api/cases/"+caseID+"/progress", "")
	assert.Equal(t, []string{"A"}, stepIDs(decode[tracker.CaseProgress](t, rec)))
}

func TestDiagram(t *testing.T) {
	p := newTestPanel(t)
	caseID := p.openCase(t)

	rec := p.do(t, http.MethodGet, "/api/cases/"+caseID+"/diagram", "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Contains(t, rec.Header().Get("Content-Type"), "text/plain")
	assert.Contains(t, rec.Body.String(), "graph TD")
	assert.Contains(t, rec.Body.String(), "class A current")

	rec = p.do(t, http.MethodGet, "/api/cases/"+caseID+"/diagram?format=ascii", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "[NOW]")

	rec = p.do(t, http.MethodGet, "/api/cases/"+caseID+"/diagram?format=bmp", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = p.do(t, http.MethodGet, "/api/cases/nope/diagram", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = p.do(t, http.MethodPost, "/api/diagram", intakeSOP)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "class A completed")
	assert.Contains(t, rec.Body.String(), "class B current")
}

func TestSSECase(t *testing.T) {
	p := newTestPanel(t)
	caseID := p.openCase(t)

	srv := httptest.NewServer(p.handler)
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, srv.URL+"/sse/cases/"+caseID, nil)
	require.NoError(t, err)
	resp, err := srv.Client().Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))

	rec := p.do(t, http.MethodPost, "/api/cases/"+caseID+"/advance", `{"nodeId": "B"}`)
	require.Equal(t, http.StatusOK, rec.Code)

	reader := bufio.NewReader(resp.Body)
	line, err := reader.ReadString('\n')
	require.NoError(t, err)
	assert.Equal(t, "event: "+schema.EventCaseStageChanged+"\n", line)

	line, err = reader.ReadString('\n')
	require.NoError(t, err)
	require.True(t, strings.HasPrefix(line, "data: "))
	var ev streaming.StreamEvent
	require.NoError(t, json.Unmarshal([]byte(strings.TrimPrefix(line, "data: ")), &ev))
	assert.Equal(t, caseID, ev.CaseID)
	assert.Equal(t, "B", ev.NodeID)
}

func TestMetricsAndHealth(t *testing.T) {
	p := newTestPanel(t)
	require.Equal(t, http.StatusOK, p.do(t, http.MethodPost, "/api/progress", intakeSOP).Code)

	rec := p.do(t, http.MethodGet, "/metrics", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `sopprogress_resolutions_total{source="inline"} 1`)

	rec = p.do(t, http.MethodGet, "/healthz", "")
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestStatusFor(t *testing.T) {
	tests := []struct {
		code string
		want int
	}{
		{schema.ErrCodeDecode, http.StatusBadRequest},
		{schema.ErrCodeValidation, http.StatusBadRequest},
		{schema.ErrCodeNotFound, http.StatusNotFound},
		{schema.ErrCodeConflict, http.StatusConflict},
		{schema.ErrCodeEmptyWorkflow, http.StatusUnprocessableEntity},
		{schema.ErrCodeStore, http.StatusInternalServerError},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, statusFor(tt.code), tt.code)
	}
}
