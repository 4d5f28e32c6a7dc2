package schema

import (
	"bytes"
	"encoding/json"
	"time"
)

// SOPPayload is the upstream case/workflow document the progress engine is fed from.
type SOPPayload struct {
	SOP          []SOPSection   `json:"sop"`
	CurrentStage *CurrentStage  `json:"currentStage,omitempty"`
	SLATimelines []TimingRecord `json:"slaTimelines,omitempty"`
	Language     string         `json:"language,omitempty"`
}

// SOPSection is one entry of the "sop" array. Upstream splits the graph into a
// section holding nodes and another holding connections.
type SOPSection struct {
	Nodes       []NodeDefinition       `json:"nodes,omitempty"`
	Connections []ConnectionDefinition `json:"connections,omitempty"`
}

// SOPDefinition is the flattened graph of an SOP.
type SOPDefinition struct {
	Nodes       []NodeDefinition       `json:"nodes"`
	Connections []ConnectionDefinition `json:"connections"`
}

// Definition concatenates every section's nodes and connections in document order.
func (p *SOPPayload) Definition() SOPDefinition {
	var def SOPDefinition
	for _, s := range p.SOP {
		def.Nodes = append(def.Nodes, s.Nodes...)
		def.Connections = append(def.Connections, s.Connections...)
	}
	return def
}

// NodeType is the wire kind of a workflow node.
type NodeType string

const (
	NodeTypeStart      NodeType = "start"
	NodeTypeProcess    NodeType = "process"
	NodeTypeDispatch   NodeType = "dispatch"
	NodeTypeDecision   NodeType = "decision"
	NodeTypeDelay      NodeType = "delay"
	NodeTypeEnd        NodeType = "end"
	NodeTypeComment    NodeType = "comment"
	NodeTypeAnnotation NodeType = "annotation"
	NodeTypeNote       NodeType = "note"
)

// NodeDefinition is a node as authored in the workflow builder.
type NodeDefinition struct {
	ID       string   `json:"nodeId"`
	Type     NodeType `json:"type"`
	Position Position `json:"position"`
	Data     NodeData `json:"data"`
}

// Position is the canvas position of a node.
type Position struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// NodeData carries the display and configuration payload of a node.
type NodeData struct {
	Label       string     `json:"label,omitempty"`
	Description string     `json:"description,omitempty"`
	Config      NodeConfig `json:"config,omitempty"`
}

// NodeConfig is the kind-specific configuration block. Action holds the case
// status ID reached when a process/dispatch node executes.
type NodeConfig struct {
	Action string   `json:"action,omitempty"`
	SLA    SLAValue `json:"sla,omitempty"`
}

// SLAValue is the authored SLA in minutes. The builder emits it either as a
// JSON number or as a string, so both are accepted and kept verbatim.
type SLAValue string

// UnmarshalJSON accepts a string, a number, or null.
func (v *SLAValue) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*v = ""
		return nil
	}
	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*v = SLAValue(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		// Booleans, objects and arrays are not SLA values; keep them
		// non-numeric instead of failing the whole document.
		*v = SLAValue(data)
		return nil
	}
	*v = SLAValue(n.String())
	return nil
}

// MarshalJSON emits numeric values as numbers and everything else as strings.
func (v SLAValue) MarshalJSON() ([]byte, error) {
	if v == "" {
		return []byte("null"), nil
	}
	if c := v[0]; (c == '-' || (c >= '0' && c <= '9')) && json.Valid([]byte(v)) {
		return []byte(v), nil
	}
	return json.Marshal(string(v))
}

// ConnectionDefinition is a directed edge between two nodes.
type ConnectionDefinition struct {
	Source string `json:"source"`
	Target string `json:"target"`
	Label  string `json:"label,omitempty"`
}

// CurrentStage points at the node a case currently sits on.
type CurrentStage struct {
	NodeID string `json:"nodeId"`
}

// TimingRecord is a historical entry recording when a case reached a status.
type TimingRecord struct {
	StatusID        string    `json:"statusId"`
	CreatedAt       time.Time `json:"createdAt"`
	DurationSeconds *int64    `json:"durationSeconds,omitempty"`
	OwnerID         string    `json:"ownerId,omitempty"`
}

// ProgressStep is one user-facing milestone in the resolved progress list.
type ProgressStep struct {
	ID          string         `json:"id"`
	Title       string         `json:"title"`
	Completed   bool           `json:"completed"`
	Current     bool           `json:"current"`
	Upcoming    bool           `json:"upcoming"`
	Kind        string         `json:"kind"`
	StatusID    string         `json:"statusId,omitempty"`
	Description string         `json:"description,omitempty"`
	SLAMinutes  *int           `json:"slaMinutes,omitempty"`
	Timeline    *Timeline      `json:"timeline,omitempty"`
	SLA         *SLAAnnotation `json:"sla,omitempty"`
}

// Timeline is the most recent timing record joined onto a step.
type Timeline struct {
	CompletedAt     time.Time `json:"completedAt"`
	DurationSeconds *int64    `json:"durationSeconds,omitempty"`
	OwnerID         string    `json:"ownerId,omitempty"`
}

// SLAStatus classifies a step against its SLA.
type SLAStatus string

const (
	SLAStatusOnTime   SLAStatus = "on_time"
	SLAStatusAtRisk   SLAStatus = "at_risk"
	SLAStatusBreached SLAStatus = "breached"
)

// SLAAnnotation is the SLA evaluation attached to a step by the SLA evaluator.
type SLAAnnotation struct {
	Status           SLAStatus `json:"status"`
	ElapsedMinutes   float64   `json:"elapsedMinutes"`
	RemainingMinutes float64   `json:"remainingMinutes"`
	DueAt            time.Time `json:"dueAt"`
}
