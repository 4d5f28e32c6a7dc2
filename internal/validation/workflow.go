package validation

import (
	"errors"

	"github.com/wisarudtecha/CMS-sub002/internal/progress"
	"github.com/wisarudtecha/CMS-sub002/pkg/schema"
)

// Validator checks SOP definitions before they are stored or resolved.
type Validator interface {
	Validate(def *schema.SOPDefinition) *schema.ValidationResult
}

// SOPValidator runs the definition pipeline:
// 1. Semantic (node identity, connection refs, per-node config)
// 2. Graph (start node, step reachability)
type SOPValidator struct {
	classifier progress.Classifier
}

// NewSOPValidator creates a SOPValidator. cls decides which nodes count as
// steps for the step-level checks.
func NewSOPValidator(cls progress.Classifier) *SOPValidator {
	return &SOPValidator{classifier: cls}
}

// Validate runs the pipeline and returns an aggregated result. Graph checks
// are skipped when the semantic stage found errors, since the graph may then
// be malformed.
func (v *SOPValidator) Validate(def *schema.SOPDefinition) *schema.ValidationResult {
	result := &schema.ValidationResult{}
	if def == nil {
		result.AddError("/", schema.ErrCodeValidation, "sop definition is nil")
		return result
	}
	if len(def.Nodes) == 0 {
		result.AddWarning("nodes", schema.ErrCodeEmptyWorkflow, "sop definition has no nodes")
		return result
	}

	result.Merge(validateSemantic(def, v.classifier))
	if result.Valid() {
		result.Merge(validateGraph(def, v.classifier))
	}
	return result
}

// StructuralResult converts a payload schema error into a ValidationResult so
// callers can report decode and definition problems the same way.
func StructuralResult(err error) *schema.ValidationResult {
	result := &schema.ValidationResult{}
	if err == nil {
		return result
	}

	var sopErr *schema.SOPError
	if !errors.As(err, &sopErr) {
		result.AddError("/", schema.ErrCodeValidation, err.Error())
		return result
	}

	if violations, ok := sopErr.Details["violations"].([]string); ok {
		for _, v := range violations {
			result.AddError("/", sopErr.Code, v)
		}
		return result
	}
	result.AddError("/", sopErr.Code, sopErr.Message)
	return result
}
