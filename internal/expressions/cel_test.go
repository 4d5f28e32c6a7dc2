package expressions

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wisarudtecha/CMS-sub002/pkg/schema"
)

func newCEL(t *testing.T) *CELEngine {
	t.Helper()
	e, err := NewCELEngine()
	require.NoError(t, err)
	return e
}

func TestCEL_RiskRule(t *testing.T) {
	e := newCEL(t)
	ctx := context.Background()
	rule := "elapsed_minutes >= sla_minutes * 0.8"

	tests := []struct {
		elapsed, sla float64
		want         bool
	}{
		{10, 30, false},
		{24, 30, true},
		{40, 30, true},
	}
	for _, tt := range tests {
		got, err := EvaluateBool(ctx, e, rule, map[string]any{
			VarElapsedMinutes: tt.elapsed,
			VarSLAMinutes:     tt.sla,
		})
		require.NoError(t, err)
		assert.Equal(t, tt.want, got, "elapsed=%v sla=%v", tt.elapsed, tt.sla)
	}
}

func TestCEL_IntegersAreWidened(t *testing.T) {
	e := newCEL(t)
	got, err := EvaluateBool(context.Background(), e, "sla_minutes > 10.0", map[string]any{VarSLAMinutes: 15})
	require.NoError(t, err)
	assert.True(t, got)
}

func TestCEL_MissingVariablesDefault(t *testing.T) {
	e := newCEL(t)
	out, err := e.Evaluate(context.Background(), `status_id == "" && elapsed_minutes == 0.0`, nil)
	require.NoError(t, err)
	assert.Equal(t, true, out)
}

func TestCEL_StringVariables(t *testing.T) {
	e := newCEL(t)
	got, err := EvaluateBool(context.Background(), e, `kind == "dispatch" && status_id.startsWith("D")`,
		map[string]any{VarKind: "dispatch", VarStatusID: "D-1"})
	require.NoError(t, err)
	assert.True(t, got)
}

func TestCEL_CompileErrors(t *testing.T) {
	e := newCEL(t)
	ctx := context.Background()

	_, err := e.Evaluate(ctx, "", nil)
	assert.True(t, schema.IsCode(err, schema.ErrCodeValidation))

	_, err = e.Evaluate(ctx, "unknown_var > 1", nil)
	assert.True(t, schema.IsCode(err, schema.ErrCodeExpression))

	_, err = e.Evaluate(ctx, "sla_minutes +", nil)
	assert.True(t, schema.IsCode(err, schema.ErrCodeExpression))
}

func TestCEL_ProgramCached(t *testing.T) {
	e := newCEL(t)
	_, err := e.Compile("sla_minutes > 1.0")
	require.NoError(t, err)
	assert.Len(t, e.cache, 1)
	_, err = e.Compile("sla_minutes > 1.0")
	require.NoError(t, err)
	assert.Len(t, e.cache, 1)
}
