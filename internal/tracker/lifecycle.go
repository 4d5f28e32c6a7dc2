package tracker

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/wisarudtecha/CMS-sub002/internal/logging"
	"github.com/wisarudtecha/CMS-sub002/internal/store"
	"github.com/wisarudtecha/CMS-sub002/internal/streaming"
	"github.com/wisarudtecha/CMS-sub002/internal/validation"
	"github.com/wisarudtecha/CMS-sub002/pkg/schema"
)

// AdvanceRequest moves a case to another node.
type AdvanceRequest struct {
	CaseID  string `json:"caseId"`
	NodeID  string `json:"nodeId"`
	OwnerID string `json:"ownerId,omitempty"`
	// DurationSeconds is how long the case spent on the step it is leaving,
	// when the caller knows it. It is stored on that step's timing record.
	DurationSeconds *int64 `json:"durationSeconds,omitempty"`
}

// Validate checks def with the same classification resolution uses: the
// configured delay rule plus the stored delay statuses when a store is set.
func (t *Tracker) Validate(ctx context.Context, def *schema.SOPDefinition) (*schema.ValidationResult, error) {
	var ref refData
	if t.store != nil {
		var err error
		if ref, err = t.reference(ctx); err != nil {
			return nil, err
		}
	}
	return validation.NewSOPValidator(t.classifier(ref.delays)).Validate(def), nil
}

// RegisterWorkflow validates def and stores it as the next version of id, or
// under a new ID when id is empty. Warnings come back with the stored workflow;
// errors reject it.
func (t *Tracker) RegisterWorkflow(ctx context.Context, id, name string, def schema.SOPDefinition) (*store.Workflow, *schema.ValidationResult, error) {
	result, err := t.Validate(ctx, &def)
	if err != nil {
		return nil, nil, err
	}
	if err := result.ToError(); err != nil {
		return nil, result, err
	}

	wf := &store.Workflow{ID: id, Name: name, Definition: def}
	if err := t.store.SaveWorkflow(ctx, wf); err != nil {
		return nil, result, err
	}
	logging.LogWith(logging.WithWorkflowID(ctx, wf.ID), t.logger).Info("workflow registered",
		"version", wf.Version, "warnings", len(result.Warnings))
	return wf, result, nil
}

// OpenCase creates a case on the latest (version 0) or a pinned version of a
// workflow, with its pointer on the start node when there is one.
func (t *Tracker) OpenCase(ctx context.Context, workflowID string, version int) (*store.Case, error) {
	wf, err := t.store.GetWorkflow(ctx, workflowID, version)
	if err != nil {
		return nil, err
	}
	cw, err := t.workflow(ctx, wf.ID, wf.Version)
	if err != nil {
		return nil, err
	}

	c := &store.Case{WorkflowID: wf.ID, WorkflowVersion: wf.Version}
	if start, ok := cw.graph.Start(); ok {
		c.CurrentNodeID = start.ID
	}
	if err := t.store.CreateCase(ctx, c); err != nil {
		return nil, err
	}

	ctx = logging.WithWorkflowID(logging.WithCaseID(ctx, c.ID), c.WorkflowID)
	t.record(ctx, c, schema.EventCaseCreated, c.CurrentNodeID, nil)
	logging.LogWith(ctx, t.logger).Info("case opened", "workflow_version", c.WorkflowVersion)
	return c, nil
}

// AdvanceCase moves the stage pointer, completes the timing record of the step
// being left, records a timing entry when the target node carries a status
// and closes the case on an end node. It returns the progress after the move.
func (t *Tracker) AdvanceCase(ctx context.Context, req AdvanceRequest) (*CaseProgress, error) {
	ctx = logging.WithNodeID(logging.WithCaseID(ctx, req.CaseID), req.NodeID)

	c, err := t.store.GetCase(ctx, req.CaseID)
	if err != nil {
		return nil, err
	}
	if c.Status != schema.CaseStatusOpen {
		return nil, schema.NewErrorf(schema.ErrCodeConflict, "case %q is %s", c.ID, c.Status)
	}
	ctx = logging.WithWorkflowID(ctx, c.WorkflowID)

	wf, err := t.workflow(ctx, c.WorkflowID, c.WorkflowVersion)
	if err != nil {
		return nil, err
	}
	node, ok := wf.graph.Node(req.NodeID)
	if !ok {
		return nil, schema.NewErrorf(schema.ErrCodeValidation,
			"node %q is not part of workflow %s", req.NodeID, wf.Ref()).WithNode(req.NodeID)
	}

	if err := t.store.UpdateCaseStage(ctx, c.ID, node.ID); err != nil {
		return nil, err
	}
	if prev, ok := wf.graph.Node(c.CurrentNodeID); ok && prev.StatusID != "" && req.DurationSeconds != nil {
		if err := t.store.CompleteTimingRecord(ctx, c.ID, prev.StatusID, *req.DurationSeconds); err != nil {
			return nil, fmt.Errorf("complete timing record: %w", err)
		}
	}
	if node.StatusID != "" {
		rec := schema.TimingRecord{
			StatusID:  node.StatusID,
			CreatedAt: t.now(),
			OwnerID:   req.OwnerID,
		}
		if err := t.store.AppendTimingRecord(ctx, c.ID, rec); err != nil {
			return nil, fmt.Errorf("append timing record: %w", err)
		}
	}
	t.record(ctx, c, schema.EventCaseStageChanged, node.ID, map[string]any{
		"from": c.CurrentNodeID,
		"to":   node.ID,
	})

	if node.Kind == schema.NodeTypeEnd {
		if err := t.store.CloseCase(ctx, c.ID); err != nil {
			return nil, err
		}
		t.record(ctx, c, schema.EventCaseClosed, node.ID, nil)
	}

	logging.LogWith(ctx, t.logger).Info("case advanced", "from", c.CurrentNodeID)
	return t.CaseProgress(ctx, c.ID, "")
}

// History returns the stored events of a case in sequence order.
func (t *Tracker) History(ctx context.Context, caseID string) ([]*store.Event, error) {
	if _, err := t.store.GetCase(ctx, caseID); err != nil {
		return nil, err
	}
	return t.store.ListEvents(ctx, store.EventFilter{CaseID: caseID})
}

// record appends an event to the case history and publishes it. Failures are
// logged; the stage change itself already happened.
func (t *Tracker) record(ctx context.Context, c *store.Case, eventType, nodeID string, payload map[string]any) {
	ev := &store.Event{CaseID: c.ID, Type: eventType, NodeID: nodeID, Timestamp: t.now()}
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err == nil {
			ev.Payload = raw
		}
	}
	if err := t.store.AppendEvent(ctx, ev); err != nil {
		logging.LogWith(ctx, t.logger).Error("append case event", "event_type", eventType, "error", err)
	}

	if t.hub == nil {
		return
	}
	se := streaming.StreamEvent{
		CaseID:     c.ID,
		WorkflowID: c.WorkflowID,
		NodeID:     nodeID,
		EventType:  eventType,
		Timestamp:  ev.Timestamp,
	}
	if payload != nil {
		se.Payload = payload
	}
	if err := t.hub.Publish(ctx, se); err != nil {
		logging.LogWith(ctx, t.logger).Warn("publish case event", "event_type", eventType, "error", err)
	}
}
