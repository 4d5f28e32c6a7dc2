package progress

import (
	"sort"
	"strings"
)

// Order is the canonical step sequence of a graph.
type Order struct {
	IDs []string
	// Fallback is set when the graph has no start node and IDs are sorted by
	// canvas position instead of traversal.
	Fallback bool
}

// IndexOf returns the position of id in the order, or -1.
func (o Order) IndexOf(id string) int {
	if id == "" {
		return -1
	}
	for i, v := range o.IDs {
		if v == id {
			return i
		}
	}
	return -1
}

// ExecutionOrder walks the graph depth-first from its start node and returns
// the step nodes in first-visit order. At every node the "yes" branch is
// followed before the others; each node is expanded at most once, so cycles
// terminate. Graphs without a start node fall back to positionOrder.
func ExecutionOrder(g *Graph, cls Classifier) Order {
	if g.Len() == 0 {
		return Order{IDs: []string{}}
	}

	start, ok := g.Start()
	if !ok {
		return Order{IDs: positionOrder(g, cls), Fallback: true}
	}

	visited := make(map[string]bool, g.Len())
	ids := make([]string, 0, g.Len())
	stack := []string{start.ID}

	for len(stack) > 0 {
		id := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if visited[id] {
			continue
		}
		visited[id] = true

		node, _ := g.Node(id)
		if cls.IsStep(node) {
			ids = append(ids, id)
		}

		// Push in reverse so the first branch is popped first.
		next := branchOrder(g.Outgoing(id))
		for i := len(next) - 1; i >= 0; i-- {
			target := next[i].Target
			if visited[target] {
				continue
			}
			if _, known := g.Node(target); !known {
				continue
			}
			stack = append(stack, target)
		}
	}

	return Order{IDs: ids}
}

// branchOrder moves connections labelled "yes" to the front and keeps the
// relative order of everything else.
func branchOrder(conns []Connection) []Connection {
	if len(conns) < 2 {
		return conns
	}
	out := make([]Connection, 0, len(conns))
	for _, c := range conns {
		if isYes(c.Label) {
			out = append(out, c)
		}
	}
	for _, c := range conns {
		if !isYes(c.Label) {
			out = append(out, c)
		}
	}
	return out
}

func isYes(label string) bool {
	return strings.EqualFold(label, "yes")
}

// positionOrder lists step nodes top to bottom on the canvas, ties broken by
// declaration order.
func positionOrder(g *Graph, cls Classifier) []string {
	steps := make([]Node, 0, g.Len())
	for _, n := range g.nodes {
		if cls.IsStep(n) {
			steps = append(steps, n)
		}
	}
	sort.SliceStable(steps, func(i, j int) bool {
		return steps[i].Position.Y < steps[j].Position.Y
	})

	ids := make([]string, 0, len(steps))
	seen := make(map[string]bool, len(steps))
	for _, n := range steps {
		if seen[n.ID] {
			continue
		}
		seen[n.ID] = true
		ids = append(ids, n.ID)
	}
	return ids
}
