package store

import (
	"encoding/json"
	"strconv"
	"time"

	"github.com/wisarudtecha/CMS-sub002/pkg/schema"
)

// Workflow is one immutable version of an SOP definition.
type Workflow struct {
	ID         string               `json:"id"`
	Version    int                  `json:"version"`
	Name       string               `json:"name"`
	Definition schema.SOPDefinition `json:"definition"`
	CreatedAt  time.Time            `json:"created_at"`
}

// Ref returns the cache key of this workflow version.
func (w *Workflow) Ref() string {
	return WorkflowRef(w.ID, w.Version)
}

// WorkflowRef formats id@version.
func WorkflowRef(id string, version int) string {
	return id + "@" + strconv.Itoa(version)
}

// Case is a ticket moving through a pinned workflow version.
type Case struct {
	ID              string            `json:"id"`
	WorkflowID      string            `json:"workflow_id"`
	WorkflowVersion int               `json:"workflow_version"`
	CurrentNodeID   string            `json:"current_node_id,omitempty"`
	Status          schema.CaseStatus `json:"status"`
	CreatedAt       time.Time         `json:"created_at"`
	UpdatedAt       time.Time         `json:"updated_at"`
}

// Event is an immutable entry in a case's history.
type Event struct {
	ID        int64           `json:"id"`
	CaseID    string          `json:"case_id"`
	Sequence  int64           `json:"sequence"`
	Type      string          `json:"event_type"`
	NodeID    string          `json:"node_id,omitempty"`
	Payload   json.RawMessage `json:"payload,omitempty"`
	Timestamp time.Time       `json:"timestamp"`
}

// WorkflowFilter specifies criteria for listing workflows.
type WorkflowFilter struct {
	Name       string `json:"name,omitempty"`
	LatestOnly bool   `json:"latest_only,omitempty"`
	Limit      int    `json:"limit,omitempty"`
}

// EventFilter specifies criteria for listing case events.
type EventFilter struct {
	CaseID    string     `json:"case_id,omitempty"`
	EventType string     `json:"event_type,omitempty"`
	Since     *time.Time `json:"since,omitempty"`
	Limit     int        `json:"limit,omitempty"`
}
