package payload

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wisarudtecha/CMS-sub002/internal/progress"
	"github.com/wisarudtecha/CMS-sub002/pkg/schema"
)

// Connections come before nodes and the nodes are split over two sections.
const casePayload = `{
  "sop": [
    {"connections": [
      {"source": "start", "target": "d1"},
      {"source": "d1", "target": "A", "label": "no"},
      {"source": "d1", "target": "B", "label": "yes"},
      {"source": "B", "target": "end"}
    ], "meta": {"rev": 3}},
    {"nodes": [
      {"nodeId": "start", "type": "start", "position": {"x": 0, "y": 0}},
      {"nodeId": "d1", "type": "decision", "position": {"x": 0, "y": 100}}
    ]},
    {"nodes": [
      {"nodeId": "A", "type": "process", "data": {"label": "Inspect", "config": {"action": "S-A", "sla": "30"}}},
      {"nodeId": "B", "type": "dispatch", "data": {"label": "Dispatch", "description": "send unit", "config": {"action": "S-B", "sla": 45}}},
      {"nodeId": "end", "type": "end"}
    ]}
  ],
  "currentStage": {"nodeId": "d1"},
  "slaTimelines": [
    {"statusId": "S-B", "createdAt": "2024-03-01T10:00:00Z", "durationSeconds": 600, "ownerId": "officer-7"}
  ],
  "language": "en"
}`

func newDecoder(t *testing.T) *Decoder {
	t.Helper()
	d, err := NewDecoder()
	require.NoError(t, err)
	return d
}

func TestDecode_ConcatenatesSections(t *testing.T) {
	p, err := newDecoder(t).Decode(context.Background(), []byte(casePayload))
	require.NoError(t, err)

	def := p.Definition()
	ids := make([]string, 0, len(def.Nodes))
	for _, n := range def.Nodes {
		ids = append(ids, n.ID)
	}
	assert.Equal(t, []string{"start", "d1", "A", "B", "end"}, ids)
	require.Len(t, def.Connections, 4)
	assert.Equal(t, "yes", def.Connections[2].Label)

	assert.Equal(t, schema.SLAValue("30"), def.Nodes[2].Data.Config.SLA)
	assert.Equal(t, schema.SLAValue("45"), def.Nodes[3].Data.Config.SLA)
	assert.Equal(t, "send unit", def.Nodes[3].Data.Description)
	assert.Equal(t, 100.0, def.Nodes[1].Position.Y)

	require.NotNil(t, p.CurrentStage)
	assert.Equal(t, "d1", p.CurrentStage.NodeID)
	require.Len(t, p.SLATimelines, 1)
	assert.Equal(t, "officer-7", p.SLATimelines[0].OwnerID)
	assert.Equal(t, "en", p.Language)
}

func TestDecode_ResolvesEndToEnd(t *testing.T) {
	p, err := newDecoder(t).Decode(context.Background(), []byte(casePayload))
	require.NoError(t, err)

	res := progress.Resolve(Input(p, nil, ""), progress.Options{})
	require.Len(t, res.Steps, 2)
	// "yes" branch first; the decision pointer bypasses to its first declared exit.
	assert.Equal(t, "B", res.Steps[0].ID)
	assert.Equal(t, "A", res.Steps[1].ID)
	assert.Equal(t, "A", res.EffectiveCurrent)
	assert.True(t, res.Steps[0].Completed)
	assert.True(t, res.Steps[1].Current)
	require.NotNil(t, res.Steps[0].Timeline)
	assert.Equal(t, "officer-7", res.Steps[0].Timeline.OwnerID)
}

func TestDecode_MissingOptionalParts(t *testing.T) {
	p, err := newDecoder(t).Decode(context.Background(), []byte(`{"sop": []}`))
	require.NoError(t, err)
	assert.Nil(t, p.CurrentStage)
	assert.Empty(t, p.SLATimelines)
	assert.Empty(t, p.Definition().Nodes)

	res := progress.Resolve(Input(p, nil, "th"), progress.Options{})
	assert.True(t, res.Empty)
	assert.Empty(t, res.Steps)
}

func TestDecode_Errors(t *testing.T) {
	d := newDecoder(t)
	tests := []struct {
		name string
		raw  string
		code string
	}{
		{"garbage", "not json", schema.ErrCodeDecode},
		{"no sop", `{"language": "en"}`, schema.ErrCodeValidation},
		{"bad node", `{"sop": [{"nodes": [{"nodeId": "A"}]}]}`, schema.ErrCodeValidation},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := d.Decode(context.Background(), []byte(tt.raw))
			require.Error(t, err)
			assert.True(t, schema.IsCode(err, tt.code), "got %v", err)
		})
	}
}

func TestDecodeYAML(t *testing.T) {
	raw := `
sop:
  - nodes:
      - nodeId: S
        type: start
      - nodeId: A
        type: process
        data:
          label: Receive
          config:
            action: S1
            sla: 10
  - connections:
      - source: S
        target: A
currentStage:
  nodeId: A
slaTimelines:
  - statusId: S1
    createdAt: "2024-03-01T10:00:00Z"
`
	p, err := newDecoder(t).DecodeYAML(context.Background(), []byte(raw))
	require.NoError(t, err)

	def := p.Definition()
	require.Len(t, def.Nodes, 2)
	assert.Equal(t, schema.SLAValue("10"), def.Nodes[1].Data.Config.SLA)
	require.Len(t, p.SLATimelines, 1)
	assert.True(t, p.SLATimelines[0].CreatedAt.Equal(time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)))
}

func TestDecodeYAML_Invalid(t *testing.T) {
	_, err := newDecoder(t).DecodeYAML(context.Background(), []byte("sop: [\n"))
	require.Error(t, err)
	assert.True(t, schema.IsCode(err, schema.ErrCodeDecode))
}

func TestDecodeFile(t *testing.T) {
	dir := t.TempDir()
	jsonPath := filepath.Join(dir, "case.json")
	yamlPath := filepath.Join(dir, "case.YML")
	require.NoError(t, os.WriteFile(jsonPath, []byte(casePayload), 0o600))
	require.NoError(t, os.WriteFile(yamlPath, []byte("sop: []\nlanguage: th\n"), 0o600))

	d := newDecoder(t)
	p, err := d.DecodeFile(context.Background(), jsonPath)
	require.NoError(t, err)
	assert.Len(t, p.Definition().Nodes, 5)

	p, err = d.DecodeFile(context.Background(), yamlPath)
	require.NoError(t, err)
	assert.Equal(t, "th", p.Language)

	_, err = d.DecodeFile(context.Background(), filepath.Join(dir, "missing.json"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestInput(t *testing.T) {
	p := &schema.SOPPayload{
		SOP:          []schema.SOPSection{{Nodes: []schema.NodeDefinition{{ID: "A", Type: schema.NodeTypeProcess}}}},
		CurrentStage: &schema.CurrentStage{NodeID: "A"},
		Language:     "en",
	}
	labels := progress.LabelTable{"S1": {"en": "One"}}

	in := Input(p, labels, "")
	assert.Equal(t, "en", in.Language)
	assert.Equal(t, 1, in.Graph.Len())
	assert.Equal(t, "A", in.Current.NodeID)
	assert.Equal(t, labels, in.Labels)

	assert.Equal(t, "th", Input(p, labels, "th").Language)

	empty := Input(nil, labels, "th")
	assert.Nil(t, empty.Graph)
	assert.Equal(t, "th", empty.Language)
}
