package store

import (
	"context"

	"github.com/wisarudtecha/CMS-sub002/pkg/schema"
)

// Store defines the persistence layer contract.
// All implementations must be safe for concurrent use.
type Store interface {
	// Workflows
	SaveWorkflow(ctx context.Context, wf *Workflow) error
	GetWorkflow(ctx context.Context, id string, version int) (*Workflow, error)
	ListWorkflows(ctx context.Context, filter WorkflowFilter) ([]*Workflow, error)

	// Cases
	CreateCase(ctx context.Context, c *Case) error
	GetCase(ctx context.Context, id string) (*Case, error)
	UpdateCaseStage(ctx context.Context, id, nodeID string) error
	CloseCase(ctx context.Context, id string) error
	ListOpenCases(ctx context.Context) ([]*Case, error)

	// Timing records
	AppendTimingRecord(ctx context.Context, caseID string, rec schema.TimingRecord) error
	ListTimingRecords(ctx context.Context, caseID string) ([]schema.TimingRecord, error)
	CompleteTimingRecord(ctx context.Context, caseID, statusID string, durationSeconds int64) error

	// Labels and delay statuses
	UpsertLabel(ctx context.Context, statusID, language, title string) error
	LabelTable(ctx context.Context) (map[string]map[string]string, error)
	SetDelayStatus(ctx context.Context, statusID string, delay bool) error
	DelayStatuses(ctx context.Context) ([]string, error)

	// Case history (append-only)
	AppendEvent(ctx context.Context, event *Event) error
	ListEvents(ctx context.Context, filter EventFilter) ([]*Event, error)

	// Maintenance
	Migrate(ctx context.Context) error
	Vacuum(ctx context.Context) error

	// Lifecycle
	Close() error
}
