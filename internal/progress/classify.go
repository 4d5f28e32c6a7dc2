package progress

import "github.com/wisarudtecha/CMS-sub002/pkg/schema"

// DelayStatuses is the caller-owned set of status IDs that carry delay
// semantics. A process or dispatch node bound to one of them is routed like a
// delay node and never shown as a step.
type DelayStatuses map[string]struct{}

// NewDelayStatuses builds a set from status IDs.
func NewDelayStatuses(ids ...string) DelayStatuses {
	d := make(DelayStatuses, len(ids))
	for _, id := range ids {
		d[id] = struct{}{}
	}
	return d
}

// Has reports whether statusID is a delay status.
func (d DelayStatuses) Has(statusID string) bool {
	if statusID == "" {
		return false
	}
	_, ok := d[statusID]
	return ok
}

// Classifier splits nodes into step nodes, control nodes and ignored nodes.
type Classifier struct {
	Delay DelayStatuses
	// DelayRule is an optional extra delay test, e.g. a compiled expression.
	DelayRule func(Node) bool
}

// IsStep reports whether n is a user-visible milestone.
func (c Classifier) IsStep(n Node) bool {
	if n.Kind != schema.NodeTypeProcess && n.Kind != schema.NodeTypeDispatch {
		return false
	}
	return !c.isDelay(n)
}

// IsIgnored reports whether n is an annotation that takes no part in routing.
func (c Classifier) IsIgnored(n Node) bool {
	switch n.Kind {
	case schema.NodeTypeComment, schema.NodeTypeAnnotation, schema.NodeTypeNote:
		return true
	}
	return false
}

// IsControl reports whether n only routes execution.
func (c Classifier) IsControl(n Node) bool {
	return !c.IsIgnored(n) && !c.IsStep(n)
}

func (c Classifier) isDelay(n Node) bool {
	if c.Delay.Has(n.StatusID) {
		return true
	}
	return c.DelayRule != nil && c.DelayRule(n)
}
