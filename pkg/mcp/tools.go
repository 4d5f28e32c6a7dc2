package mcp

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/wisarudtecha/CMS-sub002/internal/diagram"
	"github.com/wisarudtecha/CMS-sub002/internal/logging"
	"github.com/wisarudtecha/CMS-sub002/internal/tracker"
	"github.com/wisarudtecha/CMS-sub002/internal/validation"
	"github.com/wisarudtecha/CMS-sub002/pkg/schema"
)

// handleSOPProgress resolves an inline payload.
func (s *ProgressServer) handleSOPProgress(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	p, errResult := s.payloadArg(ctx, req)
	if errResult != nil {
		return errResult, nil
	}
	res, err := s.tracker.Inline(ctx, p, req.GetString("language", ""))
	return progressResult(res, err)
}

// handleCaseProgress resolves a stored case.
func (s *ProgressServer) handleCaseProgress(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	caseID, err := req.RequireString("case_id")
	if err != nil {
		return mcp.NewToolResultError("case_id is required"), nil
	}
	res, err := s.tracker.CaseProgress(logging.WithCaseID(ctx, caseID), caseID, req.GetString("language", ""))
	return progressResult(res, err)
}

// handleSOPValidate reports payload and definition issues. Decode problems
// are part of the report, not a tool error.
func (s *ProgressServer) handleSOPValidate(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	raw, errResult := rawPayloadArg(req)
	if errResult != nil {
		return errResult, nil
	}

	var result *schema.ValidationResult
	if p, err := s.decoder.Decode(ctx, raw); err != nil {
		result = validation.StructuralResult(err)
	} else {
		def := p.Definition()
		if result, err = s.tracker.Validate(ctx, &def); err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
	}

	return marshalResult(map[string]any{
		"valid":    result.Valid(),
		"errors":   result.Errors,
		"warnings": result.Warnings,
	})
}

// handleCaseAdvance moves a case and returns its new progress.
func (s *ProgressServer) handleCaseAdvance(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	caseID, err := req.RequireString("case_id")
	if err != nil {
		return mcp.NewToolResultError("case_id is required"), nil
	}
	nodeID, err := req.RequireString("node_id")
	if err != nil {
		return mcp.NewToolResultError("node_id is required"), nil
	}

	advance := tracker.AdvanceRequest{
		CaseID:  caseID,
		NodeID:  nodeID,
		OwnerID: req.GetString("owner_id", ""),
	}
	if _, ok := req.GetArguments()["duration_seconds"]; ok {
		d := int64(req.GetFloat("duration_seconds", 0))
		advance.DurationSeconds = &d
	}

	res, err := s.tracker.AdvanceCase(ctx, advance)
	return progressResult(res, err)
}

// handleCaseOpen opens a case on the latest or a pinned workflow version.
func (s *ProgressServer) handleCaseOpen(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	workflowID, err := req.RequireString("workflow_id")
	if err != nil {
		return mcp.NewToolResultError("workflow_id is required"), nil
	}

	c, err := s.tracker.OpenCase(logging.WithWorkflowID(ctx, workflowID), workflowID, req.GetInt("version", 0))
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return marshalResult(c)
}

// handleCaseHistory lists the events of a case.
func (s *ProgressServer) handleCaseHistory(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	caseID, err := req.RequireString("case_id")
	if err != nil {
		return mcp.NewToolResultError("case_id is required"), nil
	}

	events, err := s.tracker.History(ctx, caseID)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return marshalResult(map[string]any{"events": events})
}

// handleWorkflowDefine validates and stores a workflow version.
func (s *ProgressServer) handleWorkflowDefine(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	p, errResult := s.payloadArg(ctx, req)
	if errResult != nil {
		return errResult, nil
	}

	wf, result, err := s.tracker.RegisterWorkflow(ctx,
		req.GetString("workflow_id", ""), req.GetString("name", ""), p.Definition())
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("workflow rejected: %v", err)), nil
	}

	return marshalResult(map[string]any{
		"workflow_id": wf.ID,
		"version":     wf.Version,
		"warnings":    result.Warnings,
	})
}

// handleSOPDiagram draws a case or an inline payload.
func (s *ProgressServer) handleSOPDiagram(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	format, err := req.RequireString("format")
	if err != nil {
		return mcp.NewToolResultError("format is required"), nil
	}
	if format != "ascii" && format != "mermaid" && format != "image" {
		return mcp.NewToolResultError("format must be ascii, mermaid, or image"), nil
	}
	language := req.GetString("language", "")

	var model *diagram.Model
	if caseID := req.GetString("case_id", ""); caseID != "" {
		model, err = s.tracker.CaseDiagram(logging.WithCaseID(ctx, caseID), caseID, language)
	} else {
		p, errResult := s.payloadArg(ctx, req)
		if errResult != nil {
			return mcp.NewToolResultError("one of case_id or payload is required"), nil
		}
		model, err = s.tracker.InlineDiagram(ctx, p, language)
	}
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("diagram build failed: %v", err)), nil
	}

	switch format {
	case "ascii":
		return mcp.NewToolResultText(diagram.RenderASCII(model)), nil
	case "mermaid":
		return mcp.NewToolResultText(diagram.RenderMermaid(model)), nil
	default:
		png, imgErr := diagram.RenderImage(ctx, model, diagram.FormatPNG)
		if imgErr != nil {
			return mcp.NewToolResultError(fmt.Sprintf("image render failed: %v", imgErr)), nil
		}
		return mcp.NewToolResultImage("workflow diagram", base64.StdEncoding.EncodeToString(png), "image/png"), nil
	}
}

func (s *ProgressServer) handleLabelSet(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	statusID, err := req.RequireString("status_id")
	if err != nil {
		return mcp.NewToolResultError("status_id is required"), nil
	}
	language, err := req.RequireString("language")
	if err != nil {
		return mcp.NewToolResultError("language is required"), nil
	}
	title, err := req.RequireString("title")
	if err != nil || title == "" {
		return mcp.NewToolResultError("title is required"), nil
	}

	if err := s.tracker.SetLabel(ctx, statusID, language, title); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return marshalResult(map[string]any{"ok": true, "status_id": statusID, "language": language})
}

func (s *ProgressServer) handleDelaySet(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	statusID, err := req.RequireString("status_id")
	if err != nil {
		return mcp.NewToolResultError("status_id is required"), nil
	}
	delay, err := req.RequireBool("delay")
	if err != nil {
		return mcp.NewToolResultError("delay is required"), nil
	}

	if err := s.tracker.SetDelayStatus(ctx, statusID, delay); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return marshalResult(map[string]any{"ok": true, "status_id": statusID, "delay": delay})
}

// handleCaseWatch subscribes the calling session to a case's events.
func (s *ProgressServer) handleCaseWatch(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	caseID, err := req.RequireString("case_id")
	if err != nil {
		return mcp.NewToolResultError("case_id is required"), nil
	}
	session := server.ClientSessionFromContext(ctx)
	if session == nil {
		return mcp.NewToolResultError("case.watch needs a client session"), nil
	}

	if req.GetBool("stop", false) {
		s.watches.Unwatch(caseID, session.SessionID())
		return marshalResult(map[string]any{"ok": true, "case_id": caseID, "watching": false})
	}
	s.watches.Watch(caseID, session.SessionID())
	return marshalResult(map[string]any{"ok": true, "case_id": caseID, "watching": true})
}

// --- Helpers ---

// rawPayloadArg returns the "payload" argument as JSON.
func rawPayloadArg(req mcp.CallToolRequest) ([]byte, *mcp.CallToolResult) {
	obj := mcp.ParseStringMap(req, "payload", nil)
	if obj == nil {
		return nil, mcp.NewToolResultError("payload is required")
	}
	raw, err := json.Marshal(obj)
	if err != nil {
		return nil, mcp.NewToolResultError(fmt.Sprintf("invalid payload: %v", err))
	}
	return raw, nil
}

// payloadArg decodes the "payload" argument.
func (s *ProgressServer) payloadArg(ctx context.Context, req mcp.CallToolRequest) (*schema.SOPPayload, *mcp.CallToolResult) {
	raw, errResult := rawPayloadArg(req)
	if errResult != nil {
		return nil, errResult
	}
	p, err := s.decoder.Decode(ctx, raw)
	if err != nil {
		return nil, mcp.NewToolResultError(err.Error())
	}
	return p, nil
}

// progressResult turns a resolution into a tool result. An empty workflow is
// an error result that still carries the (empty) progress.
func progressResult(p *tracker.CaseProgress, err error) (*mcp.CallToolResult, error) {
	if err == nil {
		return marshalResult(p)
	}
	if !schema.IsCode(err, schema.ErrCodeEmptyWorkflow) || p == nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	res, mErr := marshalResult(map[string]any{
		"error":    err.Error(),
		"code":     schema.ErrCodeEmptyWorkflow,
		"progress": p,
	})
	if mErr != nil || res == nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	res.IsError = true
	return res, nil
}

// marshalResult converts a value to a JSON text tool result.
func marshalResult(v any) (*mcp.CallToolResult, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to marshal result: %v", err)), nil
	}
	return mcp.NewToolResultJSON(json.RawMessage(data))
}
