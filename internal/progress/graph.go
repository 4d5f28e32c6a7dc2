package progress

import "github.com/wisarudtecha/CMS-sub002/pkg/schema"

// Node is a workflow vertex. Kind is the discriminant; StatusID and SLA are
// only meaningful for process and dispatch nodes, Label and Description for
// anything that is displayed.
type Node struct {
	ID          string
	Kind        schema.NodeType
	Label       string
	Description string
	StatusID    string
	SLA         schema.SLAValue
	Position    schema.Position
}

// Connection is a directed edge. Label carries the branch name on decision nodes.
type Connection struct {
	Source string
	Target string
	Label  string
}

// Graph is a read-only snapshot of an SOP with lookup indexes. Outgoing
// connections keep their declaration order.
type Graph struct {
	nodes       []Node
	connections []Connection
	index       map[string]int
	outgoing    map[string][]Connection
}

// NewGraph builds a Graph from nodes and connections. The slices are copied so
// later changes by the caller do not leak into a resolution. When a node ID is
// declared twice the first declaration wins.
func NewGraph(nodes []Node, connections []Connection) *Graph {
	g := &Graph{
		nodes:       append([]Node(nil), nodes...),
		connections: append([]Connection(nil), connections...),
		index:       make(map[string]int, len(nodes)),
		outgoing:    make(map[string][]Connection, len(nodes)),
	}
	for i, n := range g.nodes {
		if _, dup := g.index[n.ID]; dup {
			continue
		}
		g.index[n.ID] = i
	}
	for _, c := range g.connections {
		g.outgoing[c.Source] = append(g.outgoing[c.Source], c)
	}
	return g
}

// FromDefinition converts the wire definition into a Graph.
func FromDefinition(def schema.SOPDefinition) *Graph {
	nodes := make([]Node, 0, len(def.Nodes))
	for _, n := range def.Nodes {
		nodes = append(nodes, Node{
			ID:          n.ID,
			Kind:        n.Type,
			Label:       n.Data.Label,
			Description: n.Data.Description,
			StatusID:    n.Data.Config.Action,
			SLA:         n.Data.Config.SLA,
			Position:    n.Position,
		})
	}
	conns := make([]Connection, 0, len(def.Connections))
	for _, c := range def.Connections {
		conns = append(conns, Connection{Source: c.Source, Target: c.Target, Label: c.Label})
	}
	return NewGraph(nodes, conns)
}

// Len returns the number of declared nodes.
func (g *Graph) Len() int {
	if g == nil {
		return 0
	}
	return len(g.nodes)
}

// Nodes returns a copy of the nodes in declaration order.
func (g *Graph) Nodes() []Node {
	if g == nil {
		return nil
	}
	return append([]Node(nil), g.nodes...)
}

// Connections returns a copy of the connections in declaration order.
func (g *Graph) Connections() []Connection {
	if g == nil {
		return nil
	}
	return append([]Connection(nil), g.connections...)
}

// Node looks a node up by ID.
func (g *Graph) Node(id string) (Node, bool) {
	if g == nil {
		return Node{}, false
	}
	i, ok := g.index[id]
	if !ok {
		return Node{}, false
	}
	return g.nodes[i], true
}

// Outgoing returns the connections leaving id in declaration order. The
// returned slice must not be modified.
func (g *Graph) Outgoing(id string) []Connection {
	if g == nil {
		return nil
	}
	return g.outgoing[id]
}

// Start returns the first declared start node.
func (g *Graph) Start() (Node, bool) {
	if g == nil {
		return Node{}, false
	}
	for _, n := range g.nodes {
		if n.Kind == schema.NodeTypeStart {
			return n, true
		}
	}
	return Node{}, false
}
