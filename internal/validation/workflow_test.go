package validation

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wisarudtecha/CMS-sub002/internal/progress"
	"github.com/wisarudtecha/CMS-sub002/pkg/schema"
)

func TestSOPValidator_ImplementsValidator(t *testing.T) {
	var _ Validator = (*SOPValidator)(nil)
}

func TestSOPValidator_Valid(t *testing.T) {
	v := NewSOPValidator(progress.Classifier{})
	result := v.Validate(linearDef())
	assert.True(t, result.Valid())
	assert.Empty(t, result.Warnings)
	assert.NoError(t, result.ToError())
}

func TestSOPValidator_Nil(t *testing.T) {
	result := NewSOPValidator(progress.Classifier{}).Validate(nil)
	require.Len(t, result.Errors, 1)
	assert.Contains(t, result.Errors[0].Message, "nil")
}

func TestSOPValidator_Empty(t *testing.T) {
	result := NewSOPValidator(progress.Classifier{}).Validate(&schema.SOPDefinition{})
	assert.True(t, result.Valid())
	assert.True(t, result.HasCode(schema.ErrCodeEmptyWorkflow))
}

func TestSOPValidator_SemanticErrorsSkipGraph(t *testing.T) {
	def := linearDef()
	def.Nodes = append(def.Nodes, node("A", schema.NodeTypeProcess, "S1"), node("orphan", schema.NodeTypeProcess, "S9"))

	result := NewSOPValidator(progress.Classifier{}).Validate(def)
	require.False(t, result.Valid())
	assert.True(t, result.HasCode(CodeDuplicateNode))
	assert.False(t, result.HasCode(CodeUnreachableStep))

	err := result.ToError()
	require.Error(t, err)
	assert.True(t, schema.IsCode(err, schema.ErrCodeValidation))
}

func TestSOPValidator_MergesStages(t *testing.T) {
	def := linearDef()
	def.Nodes[1].Data.Config.SLA = "n/a"
	def.Nodes = append(def.Nodes, node("orphan", schema.NodeTypeProcess, "S9"))

	result := NewSOPValidator(progress.Classifier{}).Validate(def)
	assert.True(t, result.Valid())
	assert.Equal(t, []string{CodeInvalidSLA, CodeUnreachableStep}, codes(result.Warnings))
}

func TestStructuralResult(t *testing.T) {
	assert.True(t, StructuralResult(nil).Valid())

	plain := StructuralResult(errors.New("boom"))
	require.Len(t, plain.Errors, 1)
	assert.Equal(t, schema.ErrCodeValidation, plain.Errors[0].Code)

	decode := StructuralResult(schema.NewError(schema.ErrCodeDecode, "payload is not valid JSON"))
	require.Len(t, decode.Errors, 1)
	assert.Equal(t, schema.ErrCodeDecode, decode.Errors[0].Code)

	multi := StructuralResult(schema.NewError(schema.ErrCodeValidation, "payload has 2 schema violations").
		WithDetails(map[string]any{"violations": []string{"/sop: a", "/sop/0: b"}}))
	require.Len(t, multi.Errors, 2)
	assert.Equal(t, "/sop/0: b", multi.Errors[1].Message)
}
