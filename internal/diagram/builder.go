package diagram

import (
	"github.com/wisarudtecha/CMS-sub002/internal/progress"
	"github.com/wisarudtecha/CMS-sub002/pkg/schema"
)

// Build constructs a Model from an SOP graph and its resolved steps. Ignored
// nodes (comments, notes) and the connections touching them are left out.
// Step nodes take their title and status from steps.
func Build(g *progress.Graph, cls progress.Classifier, steps []schema.ProgressStep, title string) *Model {
	byID := make(map[string]schema.ProgressStep, len(steps))
	for _, s := range steps {
		byID[s.ID] = s
	}

	model := &Model{Title: title}
	if g == nil {
		return model
	}

	kept := make(map[string]bool, g.Len())
	for _, n := range g.Nodes() {
		if cls.IsIgnored(n) || kept[n.ID] {
			continue
		}
		kept[n.ID] = true
		node := &Node{ID: n.ID, Label: n.Label, Kind: nodeKind(n, cls)}
		if step, ok := byID[n.ID]; ok {
			node.Label = step.Title
			node.Status = stepStatus(step)
		}
		if node.Label == "" {
			node.Label = n.ID
		}
		model.Nodes = append(model.Nodes, node)
	}

	for _, c := range g.Connections() {
		if !kept[c.Source] || !kept[c.Target] {
			continue
		}
		model.Edges = append(model.Edges, Edge{From: c.Source, To: c.Target, Label: c.Label})
	}

	model.Levels = buildLevels(g, model)
	return model
}

func nodeKind(n progress.Node, cls progress.Classifier) NodeKind {
	switch {
	case n.Kind == schema.NodeTypeStart:
		return NodeKindStart
	case n.Kind == schema.NodeTypeEnd:
		return NodeKindEnd
	case n.Kind == schema.NodeTypeDecision:
		return NodeKindDecision
	case cls.IsStep(n):
		return NodeKindStep
	default:
		return NodeKindDelay
	}
}

func stepStatus(s schema.ProgressStep) Status {
	switch {
	case s.Completed:
		return StatusCompleted
	case s.Current:
		return StatusCurrent
	default:
		return StatusPending
	}
}

// buildLevels groups nodes by their shortest distance from the start node.
// Nodes the start cannot reach share a final level. Without a start node
// every node sits on one level.
func buildLevels(g *progress.Graph, model *Model) [][]string {
	if len(model.Nodes) == 0 {
		return nil
	}

	depth := make(map[string]int, len(model.Nodes))
	if start, ok := g.Start(); ok && model.Node(start.ID) != nil {
		depth[start.ID] = 0
		queue := []string{start.ID}
		for len(queue) > 0 {
			id := queue[0]
			queue = queue[1:]
			for _, e := range model.Edges {
				if e.From != id {
					continue
				}
				if _, seen := depth[e.To]; seen {
					continue
				}
				depth[e.To] = depth[id] + 1
				queue = append(queue, e.To)
			}
		}
	}

	maxDepth := -1
	for _, d := range depth {
		maxDepth = max(maxDepth, d)
	}
	levels := make([][]string, maxDepth+1)
	var orphans []string
	for _, n := range model.Nodes {
		d, ok := depth[n.ID]
		if !ok {
			orphans = append(orphans, n.ID)
			continue
		}
		levels[d] = append(levels[d], n.ID)
	}
	if len(orphans) > 0 {
		levels = append(levels, orphans)
	}
	return levels
}
