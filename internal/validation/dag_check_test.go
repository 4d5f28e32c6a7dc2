package validation

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wisarudtecha/CMS-sub002/internal/progress"
	"github.com/wisarudtecha/CMS-sub002/pkg/schema"
)

func TestGraph_Linear(t *testing.T) {
	result := validateGraph(linearDef(), progress.Classifier{})
	assert.True(t, result.Valid())
	assert.Empty(t, result.Warnings)
}

func TestGraph_MissingStart(t *testing.T) {
	def := linearDef()
	def.Nodes = def.Nodes[1:]

	result := validateGraph(def, progress.Classifier{})
	assert.Equal(t, []string{CodeMissingStart}, codes(result.Warnings))
}

func TestGraph_MultipleStart(t *testing.T) {
	def := linearDef()
	def.Nodes = append(def.Nodes, node("S2", schema.NodeTypeStart, ""))

	result := validateGraph(def, progress.Classifier{})
	require.Equal(t, []string{CodeMultipleStart}, codes(result.Warnings))
	assert.Equal(t, "S2", result.Warnings[0].NodeID)
}

func TestGraph_UnreachableStep(t *testing.T) {
	def := linearDef()
	def.Nodes = append(def.Nodes,
		node("orphan", schema.NodeTypeProcess, "S9"),
		node("lonely-delay", schema.NodeTypeDelay, ""),
	)

	result := validateGraph(def, progress.Classifier{})
	require.Equal(t, []string{CodeUnreachableStep}, codes(result.Warnings))
	assert.Equal(t, "orphan", result.Warnings[0].NodeID)
	assert.Equal(t, "nodes[4]", result.Warnings[0].Path)
}

func TestGraph_ReachableThroughCycle(t *testing.T) {
	def := linearDef()
	def.Nodes = append(def.Nodes, node("R", schema.NodeTypeProcess, "S3"))
	def.Connections = append(def.Connections, conn("B", "R"), conn("R", "A"))

	result := validateGraph(def, progress.Classifier{})
	assert.Empty(t, result.Warnings)
}

func TestGraph_UnreachableDelayStepNotReported(t *testing.T) {
	def := linearDef()
	def.Nodes = append(def.Nodes, node("hold", schema.NodeTypeProcess, "WAIT"))

	cls := progress.Classifier{Delay: progress.NewDelayStatuses("WAIT")}
	result := validateGraph(def, cls)
	assert.Empty(t, result.Warnings)
}
