package progress

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExecutionOrder_LinearChain(t *testing.T) {
	const n = 8
	nodes := []Node{start("start")}
	conns := []Connection{}
	prev := "start"
	want := make([]string, 0, n)
	for i := 1; i <= n; i++ {
		id := fmt.Sprintf("s%d", i)
		nodes = append(nodes, process(id, "ST"+id))
		conns = append(conns, edge(prev, id))
		want = append(want, id)
		prev = id
	}

	order := ExecutionOrder(NewGraph(nodes, conns), Classifier{})
	assert.Equal(t, want, order.IDs)
	assert.False(t, order.Fallback)
}

func TestExecutionOrder_YesBranchFirst(t *testing.T) {
	g := NewGraph(
		[]Node{start("S"), decision("D"), process("N1", "a"), process("N2", "b"), process("Y1", "c"), process("Y2", "d")},
		[]Connection{
			edge("S", "D"),
			branch("D", "N1", "no"),
			branch("D", "Y1", "yes"),
			edge("N1", "N2"),
			edge("Y1", "Y2"),
		},
	)

	order := ExecutionOrder(g, Classifier{})
	assert.Equal(t, []string{"Y1", "Y2", "N1", "N2"}, order.IDs)
}

func TestExecutionOrder_YesIsCaseInsensitive(t *testing.T) {
	g := NewGraph(
		[]Node{start("S"), decision("D"), process("N", "a"), process("Y", "b")},
		[]Connection{edge("S", "D"), branch("D", "N", "No"), branch("D", "Y", "YES")},
	)
	assert.Equal(t, []string{"Y", "N"}, ExecutionOrder(g, Classifier{}).IDs)
}

func TestExecutionOrder_OtherBranchesKeepDeclarationOrder(t *testing.T) {
	g := NewGraph(
		[]Node{start("S"), decision("D"), process("P1", "a"), process("P2", "b"), process("P3", "c"), process("P4", "d")},
		[]Connection{
			edge("S", "D"),
			branch("D", "P1", "maybe"),
			branch("D", "P2", "yes"),
			branch("D", "P3", ""),
			branch("D", "P4", "yes"),
		},
	)
	assert.Equal(t, []string{"P2", "P4", "P1", "P3"}, ExecutionOrder(g, Classifier{}).IDs)
}

func TestExecutionOrder_CycleVisitsOnce(t *testing.T) {
	g := NewGraph(
		[]Node{start("S"), process("A", "a"), process("B", "b"), decision("Q"), process("C", "c")},
		[]Connection{
			edge("S", "A"),
			edge("A", "B"),
			edge("B", "Q"),
			branch("Q", "A", "yes"), // back-edge
			branch("Q", "C", "no"),
			edge("C", "S"), // back to start
		},
	)

	order := ExecutionOrder(g, Classifier{})
	assert.Equal(t, []string{"A", "B", "C"}, order.IDs)
}

func TestExecutionOrder_SelfLoop(t *testing.T) {
	g := NewGraph(
		[]Node{start("S"), process("A", "a")},
		[]Connection{edge("S", "A"), edge("A", "A")},
	)
	assert.Equal(t, []string{"A"}, ExecutionOrder(g, Classifier{}).IDs)
}

func TestExecutionOrder_ScenarioVisitsNoBranchAfterYesSubtree(t *testing.T) {
	order := ExecutionOrder(scenarioGraph(), Classifier{})
	assert.Equal(t, []string{"A", "C", "E", "D"}, order.IDs)
}

func TestExecutionOrder_ControlAndIgnoredNodesPassThrough(t *testing.T) {
	g := NewGraph(
		[]Node{
			start("S"),
			process("A", "a"),
			delay("W"),
			process("H", "HOLD"),
			{ID: "note", Kind: "comment"},
			process("B", "b"),
		},
		[]Connection{edge("S", "A"), edge("A", "W"), edge("W", "H"), edge("H", "note"), edge("note", "B")},
	)

	order := ExecutionOrder(g, Classifier{Delay: NewDelayStatuses("HOLD")})
	assert.Equal(t, []string{"A", "B"}, order.IDs)
}

func TestExecutionOrder_UnreachableStepsExcluded(t *testing.T) {
	g := NewGraph(
		[]Node{start("S"), process("A", "a"), process("orphan", "o")},
		[]Connection{edge("S", "A")},
	)
	assert.Equal(t, []string{"A"}, ExecutionOrder(g, Classifier{}).IDs)
}

func TestExecutionOrder_DanglingConnectionSkipped(t *testing.T) {
	g := NewGraph(
		[]Node{start("S"), process("A", "a")},
		[]Connection{edge("S", "ghost"), edge("S", "A"), edge("ghost", "A")},
	)
	assert.Equal(t, []string{"A"}, ExecutionOrder(g, Classifier{}).IDs)
}

func TestExecutionOrder_NoStartFallsBackToPosition(t *testing.T) {
	g := NewGraph(
		[]Node{
			at(process("low", "a"), 300),
			at(decision("D"), 0),
			at(process("top", "b"), 10),
			at(process("tieFirst", "c"), 200),
			at(process("tieSecond", "d"), 200),
		},
		[]Connection{edge("top", "low")},
	)

	order := ExecutionOrder(g, Classifier{})
	require.True(t, order.Fallback)
	assert.Equal(t, []string{"top", "tieFirst", "tieSecond", "low"}, order.IDs)
}

func TestExecutionOrder_EmptyGraph(t *testing.T) {
	order := ExecutionOrder(NewGraph(nil, nil), Classifier{})
	assert.Empty(t, order.IDs)
	assert.NotNil(t, order.IDs)
	assert.False(t, order.Fallback)

	assert.Empty(t, ExecutionOrder(nil, Classifier{}).IDs)
}

func TestExecutionOrder_NoStepNodes(t *testing.T) {
	g := NewGraph([]Node{start("S"), decision("D")}, []Connection{edge("S", "D")})
	assert.Empty(t, ExecutionOrder(g, Classifier{}).IDs)
}

func TestExecutionOrder_DeepChainDoesNotRecurse(t *testing.T) {
	const n = 100000
	nodes := make([]Node, 0, n+1)
	conns := make([]Connection, 0, n)
	nodes = append(nodes, start("S"))
	prev := "S"
	for i := 0; i < n; i++ {
		id := fmt.Sprintf("p%d", i)
		nodes = append(nodes, process(id, id))
		conns = append(conns, edge(prev, id))
		prev = id
	}

	order := ExecutionOrder(NewGraph(nodes, conns), Classifier{})
	require.Len(t, order.IDs, n)
	assert.Equal(t, "p0", order.IDs[0])
	assert.Equal(t, fmt.Sprintf("p%d", n-1), order.IDs[n-1])
}

func TestOrder_IndexOf(t *testing.T) {
	o := Order{IDs: []string{"a", "b"}}
	assert.Equal(t, 1, o.IndexOf("b"))
	assert.Equal(t, -1, o.IndexOf("z"))
	assert.Equal(t, -1, o.IndexOf(""))
}
