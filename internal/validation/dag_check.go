package validation

import (
	"fmt"

	"github.com/wisarudtecha/CMS-sub002/internal/progress"
	"github.com/wisarudtecha/CMS-sub002/pkg/schema"
)

// validateGraph checks the routing structure: a single start node, and every
// step node reachable from it. Cycles are legal in an SOP (rework loops) and
// are not reported.
func validateGraph(def *schema.SOPDefinition, cls progress.Classifier) *schema.ValidationResult {
	result := &schema.ValidationResult{}
	g := progress.FromDefinition(*def)

	var starts []string
	for _, n := range g.Nodes() {
		if n.Kind == schema.NodeTypeStart {
			starts = append(starts, n.ID)
		}
	}
	switch {
	case len(starts) == 0:
		result.AddWarning("nodes", CodeMissingStart,
			"no start node; steps will be ordered by vertical position")
		return result // reachability is meaningless without a root
	case len(starts) > 1:
		result.AddNodeWarning("nodes", starts[1], CodeMultipleStart,
			fmt.Sprintf("%d start nodes; only %q is used", len(starts), starts[0]))
	}

	// BFS from the first start node over every edge, ignored nodes included,
	// so the check matches what the ordering walk can see.
	reachable := map[string]bool{starts[0]: true}
	queue := []string{starts[0]}
	for len(queue) > 0 {
		id := queue[0]
		queue = queue[1:]
		for _, c := range g.Outgoing(id) {
			if reachable[c.Target] {
				continue
			}
			if _, ok := g.Node(c.Target); !ok {
				continue // dangling refs already caught by semantic
			}
			reachable[c.Target] = true
			queue = append(queue, c.Target)
		}
	}

	for i, n := range def.Nodes {
		node, ok := g.Node(n.ID)
		if !ok || reachable[n.ID] || !cls.IsStep(node) {
			continue
		}
		result.AddNodeWarning(fmt.Sprintf("nodes[%d]", i), n.ID, CodeUnreachableStep,
			fmt.Sprintf("step %q is unreachable from start and will not be shown", n.ID))
	}

	return result
}
