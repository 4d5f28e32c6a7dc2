package validation

import (
	"fmt"
	"strings"

	"github.com/wisarudtecha/CMS-sub002/internal/progress"
	"github.com/wisarudtecha/CMS-sub002/pkg/schema"
)

// Issue codes beyond the generic schema error codes.
const (
	CodeEmptyNodeID       = "EMPTY_NODE_ID"
	CodeDuplicateNode     = "DUPLICATE_NODE"
	CodeDanglingEdge      = "DANGLING_CONNECTION"
	CodeUnknownKind       = "UNKNOWN_NODE_TYPE"
	CodeMissingStatus     = "MISSING_STATUS"
	CodeInvalidSLA        = "INVALID_SLA"
	CodeMissingStart      = "MISSING_START"
	CodeMultipleStart     = "MULTIPLE_START"
	CodeUnreachableStep   = "UNREACHABLE_STEP"
	CodeUnlabeledDecision = "UNLABELED_BRANCH"
	CodeDelayStep         = "DELAY_STEP"
)

var knownKinds = map[schema.NodeType]bool{
	schema.NodeTypeStart:      true,
	schema.NodeTypeProcess:    true,
	schema.NodeTypeDispatch:   true,
	schema.NodeTypeDecision:   true,
	schema.NodeTypeDelay:      true,
	schema.NodeTypeEnd:        true,
	schema.NodeTypeComment:    true,
	schema.NodeTypeAnnotation: true,
	schema.NodeTypeNote:       true,
}

// validateSemantic checks node identity, connection references and per-node
// configuration. Only identity and reference problems are errors; everything
// the engine tolerates is a warning.
func validateSemantic(def *schema.SOPDefinition, cls progress.Classifier) *schema.ValidationResult {
	result := &schema.ValidationResult{}

	ids := make(map[string]int, len(def.Nodes))
	for i, n := range def.Nodes {
		path := fmt.Sprintf("nodes[%d]", i)
		if strings.TrimSpace(n.ID) == "" {
			result.AddError(path+".nodeId", CodeEmptyNodeID, "node id is empty")
			continue
		}
		if first, dup := ids[n.ID]; dup {
			result.AddNodeError(path+".nodeId", n.ID, CodeDuplicateNode,
				fmt.Sprintf("node %q already declared at nodes[%d]", n.ID, first))
			continue
		}
		ids[n.ID] = i

		validateNode(n, path, cls, result)
	}

	for i, c := range def.Connections {
		path := fmt.Sprintf("connections[%d]", i)
		if _, ok := ids[c.Source]; !ok {
			result.AddError(path+".source", CodeDanglingEdge,
				fmt.Sprintf("references non-existent node %q", c.Source))
		}
		if _, ok := ids[c.Target]; !ok {
			result.AddError(path+".target", CodeDanglingEdge,
				fmt.Sprintf("references non-existent node %q", c.Target))
		}
	}

	validateBranches(def, ids, result)
	return result
}

func validateNode(n schema.NodeDefinition, path string, cls progress.Classifier, result *schema.ValidationResult) {
	if !knownKinds[n.Type] {
		result.AddNodeWarning(path+".type", n.ID, CodeUnknownKind,
			fmt.Sprintf("node type %q is routed as a control node", n.Type))
		return
	}
	if n.Type != schema.NodeTypeProcess && n.Type != schema.NodeTypeDispatch {
		return
	}

	if n.Data.Config.Action == "" {
		result.AddNodeWarning(path+".data.config.action", n.ID, CodeMissingStatus,
			"step has no status id; it will never match a timing record")
	}
	if n.Data.Config.SLA != "" && progress.ParseSLAMinutes(n.Data.Config.SLA) == nil {
		result.AddNodeWarning(path+".data.config.sla", n.ID, CodeInvalidSLA,
			fmt.Sprintf("sla %q is not a non-negative number of minutes", string(n.Data.Config.SLA)))
	}
	node := progress.Node{
		ID:          n.ID,
		Kind:        n.Type,
		Label:       n.Data.Label,
		Description: n.Data.Description,
		StatusID:    n.Data.Config.Action,
		SLA:         n.Data.Config.SLA,
	}
	if !cls.IsStep(node) {
		result.AddNodeWarning(path, n.ID, CodeDelayStep,
			"node is bound to a delay status and is hidden from progress")
	}
}

// validateBranches warns when a decision node with several exits labels none
// of them, because branch ordering then falls back to declaration order.
func validateBranches(def *schema.SOPDefinition, ids map[string]int, result *schema.ValidationResult) {
	exits := make(map[string][]schema.ConnectionDefinition)
	for _, c := range def.Connections {
		exits[c.Source] = append(exits[c.Source], c)
	}
	for _, n := range def.Nodes {
		if n.Type != schema.NodeTypeDecision || len(exits[n.ID]) < 2 {
			continue
		}
		labeled := false
		for _, c := range exits[n.ID] {
			if c.Label != "" {
				labeled = true
				break
			}
		}
		if !labeled {
			result.AddNodeWarning(fmt.Sprintf("nodes[%d]", ids[n.ID]), n.ID, CodeUnlabeledDecision,
				"decision has unlabeled exits; branches follow declaration order")
		}
	}
}
