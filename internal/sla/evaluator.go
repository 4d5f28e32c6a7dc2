// Package sla classifies progress steps against their SLA.
package sla

import (
	"context"
	"time"

	"github.com/wisarudtecha/CMS-sub002/internal/expressions"
	"github.com/wisarudtecha/CMS-sub002/pkg/schema"
)

// DefaultRiskRule flags a step once 80% of its SLA is used.
const DefaultRiskRule = "elapsed_minutes >= sla_minutes * 0.8"

// Evaluator annotates steps with on_time, at_risk or breached. Breach is a
// fixed comparison; the at-risk threshold is a CEL rule.
type Evaluator struct {
	cel  *expressions.CELEngine
	rule string
}

// NewEvaluator compiles rule, or DefaultRiskRule when rule is empty.
func NewEvaluator(cel *expressions.CELEngine, rule string) (*Evaluator, error) {
	if rule == "" {
		rule = DefaultRiskRule
	}
	if _, err := cel.Compile(rule); err != nil {
		return nil, err
	}
	return &Evaluator{cel: cel, rule: rule}, nil
}

// Rule returns the active risk rule.
func (e *Evaluator) Rule() string {
	return e.rule
}

// Annotate returns a copy of steps with SLA set on the current step and on
// completed steps. The current step is measured from its timeline entry to
// now, a completed step by its recorded duration. Steps without SLA minutes or
// without the timing data to measure them are left untouched.
func (e *Evaluator) Annotate(ctx context.Context, steps []schema.ProgressStep, now time.Time) ([]schema.ProgressStep, error) {
	out := make([]schema.ProgressStep, len(steps))
	copy(out, steps)

	for i := range out {
		ann, err := e.Check(ctx, out[i], now)
		if err != nil {
			return nil, err
		}
		if ann != nil {
			out[i].SLA = ann
		}
	}
	return out, nil
}

// Check evaluates a single step. It returns nil when the step cannot be
// measured.
func (e *Evaluator) Check(ctx context.Context, step schema.ProgressStep, now time.Time) (*schema.SLAAnnotation, error) {
	if step.SLAMinutes == nil || step.Timeline == nil {
		return nil, nil
	}

	var elapsed float64
	switch {
	case step.Current:
		elapsed = now.Sub(step.Timeline.CompletedAt).Minutes()
		if elapsed < 0 {
			elapsed = 0
		}
	case step.Completed && step.Timeline.DurationSeconds != nil:
		elapsed = float64(*step.Timeline.DurationSeconds) / 60
	default:
		return nil, nil
	}

	limit := float64(*step.SLAMinutes)
	ann := &schema.SLAAnnotation{
		ElapsedMinutes:   elapsed,
		RemainingMinutes: max(limit-elapsed, 0),
		DueAt:            step.Timeline.CompletedAt.Add(time.Duration(*step.SLAMinutes) * time.Minute),
	}

	if elapsed > limit {
		ann.Status = schema.SLAStatusBreached
		return ann, nil
	}

	risky, err := expressions.EvaluateBool(ctx, e.cel, e.rule, map[string]any{
		expressions.VarElapsedMinutes: elapsed,
		expressions.VarSLAMinutes:     limit,
		expressions.VarStatusID:       step.StatusID,
		expressions.VarKind:           step.Kind,
	})
	if err != nil {
		return nil, err
	}
	if risky {
		ann.Status = schema.SLAStatusAtRisk
	} else {
		ann.Status = schema.SLAStatusOnTime
	}
	return ann, nil
}
