package progress

import "github.com/wisarudtecha/CMS-sub002/pkg/schema"

// --- helpers ---

func start(id string) Node {
	return Node{ID: id, Kind: schema.NodeTypeStart, Label: "Start"}
}

func process(id, status string) Node {
	return Node{ID: id, Kind: schema.NodeTypeProcess, Label: id, StatusID: status}
}

func dispatch(id, status string) Node {
	return Node{ID: id, Kind: schema.NodeTypeDispatch, Label: id, StatusID: status}
}

func decision(id string) Node {
	return Node{ID: id, Kind: schema.NodeTypeDecision, Label: id}
}

func delay(id string) Node {
	return Node{ID: id, Kind: schema.NodeTypeDelay, Label: id}
}

func at(n Node, y float64) Node {
	n.Position = schema.Position{Y: y}
	return n
}

func edge(from, to string) Connection {
	return Connection{Source: from, Target: to}
}

func branch(from, to, label string) Connection {
	return Connection{Source: from, Target: to, Label: label}
}

// scenarioGraph is start -> A -> B(decision: yes->C, no->D), C -> E.
func scenarioGraph() *Graph {
	return NewGraph(
		[]Node{
			start("S"),
			process("A", "S001"),
			decision("B"),
			process("C", "S003"),
			process("D", "S004"),
			process("E", "S005"),
		},
		[]Connection{
			edge("S", "A"),
			edge("A", "B"),
			branch("B", "C", "yes"),
			branch("B", "D", "no"),
			edge("C", "E"),
		},
	)
}

func ptr[T any](v T) *T { return &v }
