package validation

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wisarudtecha/CMS-sub002/pkg/schema"
)

func TestNewJSONSchemaValidator(t *testing.T) {
	v, err := NewJSONSchemaValidator()
	require.NoError(t, err)
	assert.NotNil(t, v.payloadSchema)
}

func TestValidatePayload_Valid(t *testing.T) {
	v, err := NewJSONSchemaValidator()
	require.NoError(t, err)

	raw := `{
	  "sop": [
	    {"nodes": [
	      {"nodeId": "S", "type": "start", "position": {"x": 0, "y": 0}},
	      {"nodeId": "A", "type": "process", "data": {"label": "Receive", "config": {"action": "S1", "sla": "15"}}},
	      {"nodeId": "B", "type": "process", "data": {"config": {"action": "S2", "sla": 30}}},
	      {"nodeId": "C", "type": "process", "data": {"config": {"sla": true}}}
	    ]},
	    {"connections": [{"source": "S", "target": "A"}, {"source": "A", "target": "B", "label": null}]}
	  ],
	  "currentStage": {"nodeId": "A"},
	  "slaTimelines": [
	    {"statusId": "S1", "createdAt": "2024-03-01T10:00:00Z", "durationSeconds": 120, "ownerId": "u1"},
	    {"statusId": "S2", "createdAt": "2024-03-01T11:00:00+07:00", "durationSeconds": null}
	  ],
	  "language": "en"
	}`
	assert.NoError(t, v.ValidatePayload([]byte(raw)))
}

func TestValidatePayload_Errors(t *testing.T) {
	v, err := NewJSONSchemaValidator()
	require.NoError(t, err)

	tests := []struct {
		name string
		raw  string
		code string
	}{
		{"empty", "  ", schema.ErrCodeDecode},
		{"not json", "{sop:", schema.ErrCodeDecode},
		{"missing sop", `{"currentStage": {"nodeId": "A"}}`, schema.ErrCodeValidation},
		{"sop not array", `{"sop": {}}`, schema.ErrCodeValidation},
		{"node without id", `{"sop": [{"nodes": [{"type": "process"}]}]}`, schema.ErrCodeValidation},
		{"numeric node id", `{"sop": [{"nodes": [{"nodeId": 7, "type": "process"}]}]}`, schema.ErrCodeValidation},
		{"connection without target", `{"sop": [{"connections": [{"source": "A"}]}]}`, schema.ErrCodeValidation},
		{"position not numeric", `{"sop": [{"nodes": [{"nodeId": "A", "type": "start", "position": {"x": "1"}}]}]}`, schema.ErrCodeValidation},
		{"bad timestamp", `{"sop": [], "slaTimelines": [{"statusId": "S1", "createdAt": "yesterday"}]}`, schema.ErrCodeValidation},
		{"fractional duration", `{"sop": [], "slaTimelines": [{"statusId": "S1", "createdAt": "2024-03-01T10:00:00Z", "durationSeconds": 1.5}]}`, schema.ErrCodeValidation},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := v.ValidatePayload([]byte(tt.raw))
			require.Error(t, err)
			assert.True(t, schema.IsCode(err, tt.code), "got %v", err)
		})
	}
}

func TestValidatePayload_CollectsViolations(t *testing.T) {
	v, err := NewJSONSchemaValidator()
	require.NoError(t, err)

	raw := `{"sop": [{"nodes": [{"type": "process"}, {"nodeId": "B"}]}]}`
	err = v.ValidatePayload([]byte(raw))
	require.Error(t, err)

	var sopErr *schema.SOPError
	require.ErrorAs(t, err, &sopErr)
	violations, ok := sopErr.Details["violations"].([]string)
	require.True(t, ok)
	assert.Len(t, violations, 2)
	assert.Contains(t, sopErr.Message, "2 schema violations")
}

func TestValidatePayload_Concurrent(t *testing.T) {
	v, err := NewJSONSchemaValidator()
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.NoError(t, v.ValidatePayload([]byte(`{"sop": []}`)))
		}()
	}
	wg.Wait()
}
