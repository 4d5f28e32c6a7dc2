// Package diagram renders an SOP graph with its progress overlay as Mermaid,
// ASCII or a Graphviz image.
package diagram

// NodeKind classifies a diagram node by how it takes part in the workflow.
type NodeKind string

const (
	NodeKindStart    NodeKind = "start"
	NodeKindEnd      NodeKind = "end"
	NodeKindStep     NodeKind = "step"
	NodeKindDecision NodeKind = "decision"
	NodeKindDelay    NodeKind = "delay"
)

// Status is the progress state drawn on a step node.
type Status string

const (
	StatusCompleted Status = "completed"
	StatusCurrent   Status = "current"
	StatusPending   Status = "pending"
)

// Model is the intermediate representation used by all renderers.
type Model struct {
	Title  string
	Nodes  []*Node
	Edges  []Edge
	Levels [][]string
}

// Node is one vertex of the diagram. Status is empty for control nodes and
// for steps that are not part of the resolved progress.
type Node struct {
	ID     string
	Label  string
	Kind   NodeKind
	Status Status
}

// Edge is a connection between two nodes. Label carries decision branch names.
type Edge struct {
	From  string
	To    string
	Label string
}

// Node looks up a node by ID.
func (m *Model) Node(id string) *Node {
	for _, n := range m.Nodes {
		if n.ID == id {
			return n
		}
	}
	return nil
}
