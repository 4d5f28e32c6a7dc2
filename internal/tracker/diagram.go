package tracker

import (
	"context"

	"github.com/wisarudtecha/CMS-sub002/internal/diagram"
	"github.com/wisarudtecha/CMS-sub002/internal/progress"
	"github.com/wisarudtecha/CMS-sub002/pkg/schema"
)

// CaseDiagram builds the diagram of a case's workflow version with the
// case's progress drawn on it.
func (t *Tracker) CaseDiagram(ctx context.Context, caseID, language string) (*diagram.Model, error) {
	p, err := t.CaseProgress(ctx, caseID, language)
	if err != nil && !schema.IsCode(err, schema.ErrCodeEmptyWorkflow) {
		return nil, err
	}
	wf, err := t.workflow(ctx, p.WorkflowID, p.WorkflowVersion)
	if err != nil {
		return nil, err
	}
	ref, err := t.reference(ctx)
	if err != nil {
		return nil, err
	}
	return diagram.Build(wf.graph, t.classifier(ref.delays), p.Steps, wf.Name), nil
}

// InlineDiagram builds the diagram of an inline payload.
func (t *Tracker) InlineDiagram(ctx context.Context, p *schema.SOPPayload, language string) (*diagram.Model, error) {
	res, err := t.Inline(ctx, p, language)
	if err != nil && !schema.IsCode(err, schema.ErrCodeEmptyWorkflow) {
		return nil, err
	}

	var ref refData
	if t.store != nil {
		if ref, err = t.reference(ctx); err != nil {
			return nil, err
		}
	}
	var g *progress.Graph
	if p != nil {
		g = progress.FromDefinition(p.Definition())
	}
	return diagram.Build(g, t.classifier(ref.delays), res.Steps, ""), nil
}
