package schema

// Event types published on the case event hub.
const (
	EventCaseCreated      = "case.created"
	EventCaseStageChanged = "case.stage_changed"
	EventCaseClosed       = "case.closed"
	EventSLAAtRisk        = "sla.at_risk"
	EventSLABreached      = "sla.breached"
)

// CaseStatus is the lifecycle state of a tracked case.
type CaseStatus string

const (
	CaseStatusOpen   CaseStatus = "open"
	CaseStatusClosed CaseStatus = "closed"
)
