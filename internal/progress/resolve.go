// Package progress resolves the ordered, annotated list of user-facing steps
// of a case from its SOP graph, its current stage pointer and its timing
// history. Everything in this package is a pure function of its arguments:
// nothing is cached, logged or mutated, so calls are safe from any goroutine.
package progress

import "github.com/wisarudtecha/CMS-sub002/pkg/schema"

// Input is everything a resolution reads.
type Input struct {
	Graph    *Graph
	Current  *schema.CurrentStage
	Timings  []schema.TimingRecord
	Labels   LabelTable
	Language string
}

// Options tunes classification and current-stage bypass.
type Options struct {
	Classifier Classifier
	// BypassDepth is the number of consecutive control nodes the current
	// pointer may be moved across. Zero means one.
	BypassDepth int
}

// Result is the resolved progress of a case.
type Result struct {
	Steps            []schema.ProgressStep `json:"steps"`
	Order            []string              `json:"order"`
	EffectiveCurrent string                `json:"effectiveCurrent,omitempty"`
	CurrentIndex     int                   `json:"currentIndex"`
	Fallback         bool                  `json:"fallback,omitempty"`
	// Empty is set when the workflow has no nodes at all.
	Empty bool `json:"empty,omitempty"`
}

// Resolve runs classification, ordering, current-stage resolution, timing
// join and projection. A missing graph or stage pointer yields no steps.
func Resolve(in Input, opts Options) Result {
	res := Result{
		Steps:        []schema.ProgressStep{},
		Order:        []string{},
		CurrentIndex: -1,
		Empty:        in.Graph.Len() == 0,
	}
	if in.Graph == nil || in.Current == nil {
		return res
	}

	order := ExecutionOrder(in.Graph, opts.Classifier)
	res.Order = order.IDs
	res.Fallback = order.Fallback

	current, ok := EffectiveCurrent(in.Graph, opts.Classifier, in.Current, opts.BypassDepth)
	if ok {
		res.EffectiveCurrent = current
	}

	res.Steps = Project(order.IDs, res.EffectiveCurrent, in.Graph, in.Timings, in.Labels, in.Language)
	res.CurrentIndex = order.IndexOf(res.EffectiveCurrent)
	return res
}

// Summary condenses a step list for progress badges.
type Summary struct {
	Total        int     `json:"total"`
	Completed    int     `json:"completed"`
	CurrentIndex int     `json:"currentIndex"`
	Percent      float64 `json:"percent"`
}

// Summarize counts completed steps. Percent is completed over total, 0 for an
// empty list.
func Summarize(steps []schema.ProgressStep) Summary {
	s := Summary{Total: len(steps), CurrentIndex: -1}
	for i, st := range steps {
		if st.Completed {
			s.Completed++
		}
		if st.Current {
			s.CurrentIndex = i
		}
	}
	if s.Total > 0 {
		s.Percent = float64(s.Completed) * 100 / float64(s.Total)
	}
	return s
}
