// Package payload turns upstream SOP case documents into engine input.
package payload

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/wisarudtecha/CMS-sub002/internal/expressions"
	"github.com/wisarudtecha/CMS-sub002/internal/progress"
	"github.com/wisarudtecha/CMS-sub002/internal/validation"
	"github.com/wisarudtecha/CMS-sub002/pkg/schema"
)

// Sections may come in any order, be split over several entries or carry
// unrelated keys. Every nodes/connections array is concatenated in document order.
const (
	nodesQuery       = `[.sop[]? | objects | .nodes? // empty | arrays | .[]]`
	connectionsQuery = `[.sop[]? | objects | .connections? // empty | arrays | .[]]`
)

// Decoder validates and decodes SOP payloads. It is safe for concurrent use.
type Decoder struct {
	schema *validation.JSONSchemaValidator
	jq     *expressions.GoJQEngine
}

// NewDecoder compiles the payload schema.
func NewDecoder() (*Decoder, error) {
	jsv, err := validation.NewJSONSchemaValidator()
	if err != nil {
		return nil, err
	}
	return &Decoder{schema: jsv, jq: expressions.NewGoJQEngine()}, nil
}

// envelope holds the non-graph parts of a payload.
type envelope struct {
	CurrentStage *schema.CurrentStage  `json:"currentStage"`
	SLATimelines []schema.TimingRecord `json:"slaTimelines"`
	Language     string                `json:"language"`
}

// Decode validates raw JSON against the payload schema and decodes it. The
// returned payload holds exactly two sections: all nodes, then all connections.
func (d *Decoder) Decode(ctx context.Context, raw []byte) (*schema.SOPPayload, error) {
	if err := d.schema.ValidatePayload(raw); err != nil {
		return nil, err
	}

	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, schema.NewError(schema.ErrCodeDecode, "decode payload").WithCause(err)
	}
	var tree map[string]any
	if err := json.Unmarshal(raw, &tree); err != nil {
		return nil, schema.NewError(schema.ErrCodeDecode, "decode payload").WithCause(err)
	}

	var nodes []schema.NodeDefinition
	if err := d.extract(ctx, nodesQuery, tree, &nodes); err != nil {
		return nil, err
	}
	var conns []schema.ConnectionDefinition
	if err := d.extract(ctx, connectionsQuery, tree, &conns); err != nil {
		return nil, err
	}

	return &schema.SOPPayload{
		SOP:          []schema.SOPSection{{Nodes: nodes}, {Connections: conns}},
		CurrentStage: env.CurrentStage,
		SLATimelines: env.SLATimelines,
		Language:     env.Language,
	}, nil
}

// DecodeYAML accepts the same document written as YAML.
func (d *Decoder) DecodeYAML(ctx context.Context, raw []byte) (*schema.SOPPayload, error) {
	var doc any
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return nil, schema.NewError(schema.ErrCodeDecode, "payload is not valid YAML").WithCause(err)
	}
	js, err := json.Marshal(doc)
	if err != nil {
		return nil, schema.NewError(schema.ErrCodeDecode, "YAML payload has no JSON form").WithCause(err)
	}
	return d.Decode(ctx, js)
}

// DecodeFile reads a payload from disk, choosing YAML for .yaml and .yml files.
func (d *Decoder) DecodeFile(ctx context.Context, path string) (*schema.SOPPayload, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read payload %s: %w", path, err)
	}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return d.DecodeYAML(ctx, raw)
	default:
		return d.Decode(ctx, raw)
	}
}

func (d *Decoder) extract(ctx context.Context, query string, tree map[string]any, dst any) error {
	v, err := d.jq.Evaluate(ctx, query, tree)
	if err != nil {
		return err
	}
	if v == nil {
		return nil
	}
	js, err := json.Marshal(v)
	if err != nil {
		return schema.NewError(schema.ErrCodeDecode, "re-encode sop section").WithCause(err)
	}
	if err := json.Unmarshal(js, dst); err != nil {
		return schema.NewError(schema.ErrCodeDecode, "decode sop section").WithCause(err)
	}
	return nil
}

// Input converts a decoded payload into engine input. language overrides the
// payload's own language when non-empty.
func Input(p *schema.SOPPayload, labels progress.LabelTable, language string) progress.Input {
	if p == nil {
		return progress.Input{Labels: labels, Language: language}
	}
	if language == "" {
		language = p.Language
	}
	return progress.Input{
		Graph:    progress.FromDefinition(p.Definition()),
		Current:  p.CurrentStage,
		Timings:  p.SLATimelines,
		Labels:   labels,
		Language: language,
	}
}
