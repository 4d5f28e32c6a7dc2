package validation

import (
	"bytes"
	"errors"
	"fmt"
	"strings"

	jsonschema "github.com/santhosh-tekuri/jsonschema/v6"

	"github.com/wisarudtecha/CMS-sub002/pkg/schema"
)

const payloadSchemaURL = "https://cms.local/schemas/sop-payload.json"

// payloadSchemaJSON describes the upstream case document. It only pins down
// what decoding depends on. Odd SLA values and unknown node kinds are data
// quality problems the progress engine absorbs, so they pass here.
const payloadSchemaJSON = `{
  "$schema": "https://json-schema.org/draft/2020-12/schema",
  "$id": "https://cms.local/schemas/sop-payload.json",
  "type": "object",
  "required": ["sop"],
  "properties": {
    "sop": {
      "type": "array",
      "items": {
        "type": "object",
        "properties": {
          "nodes": {
            "type": "array",
            "items": { "$ref": "#/$defs/node" }
          },
          "connections": {
            "type": "array",
            "items": { "$ref": "#/$defs/connection" }
          }
        }
      }
    },
    "currentStage": {
      "type": ["object", "null"],
      "properties": {
        "nodeId": { "type": ["string", "null"] }
      }
    },
    "slaTimelines": {
      "type": ["array", "null"],
      "items": { "$ref": "#/$defs/timing" }
    },
    "language": { "type": ["string", "null"] }
  },
  "$defs": {
    "node": {
      "type": "object",
      "required": ["nodeId", "type"],
      "properties": {
        "nodeId": { "type": "string" },
        "type": { "type": "string" },
        "position": {
          "type": ["object", "null"],
          "properties": {
            "x": { "type": "number" },
            "y": { "type": "number" }
          }
        },
        "data": {
          "type": ["object", "null"],
          "properties": {
            "label": { "type": ["string", "null"] },
            "description": { "type": ["string", "null"] },
            "config": {
              "type": ["object", "null"],
              "properties": {
                "action": { "type": ["string", "null"] }
              }
            }
          }
        }
      }
    },
    "connection": {
      "type": "object",
      "required": ["source", "target"],
      "properties": {
        "source": { "type": "string" },
        "target": { "type": "string" },
        "label": { "type": ["string", "null"] }
      }
    },
    "timing": {
      "type": "object",
      "required": ["statusId", "createdAt"],
      "properties": {
        "statusId": { "type": "string" },
        "createdAt": { "type": "string", "format": "date-time" },
        "durationSeconds": { "type": ["integer", "null"] },
        "ownerId": { "type": ["string", "null"] }
      }
    }
  }
}`

// JSONSchemaValidator checks raw SOP payloads against the payload schema
// (JSON Schema Draft 2020-12). It is safe for concurrent use.
type JSONSchemaValidator struct {
	payloadSchema *jsonschema.Schema
}

// NewJSONSchemaValidator creates a JSONSchemaValidator with the payload schema pre-compiled.
func NewJSONSchemaValidator() (*JSONSchemaValidator, error) {
	c := jsonschema.NewCompiler()
	c.AssertFormat()

	doc, err := jsonschema.UnmarshalJSON(strings.NewReader(payloadSchemaJSON))
	if err != nil {
		return nil, fmt.Errorf("unmarshal payload schema: %w", err)
	}
	if err := c.AddResource(payloadSchemaURL, doc); err != nil {
		return nil, fmt.Errorf("add payload schema resource: %w", err)
	}

	sch, err := c.Compile(payloadSchemaURL)
	if err != nil {
		return nil, fmt.Errorf("compile payload schema: %w", err)
	}
	return &JSONSchemaValidator{payloadSchema: sch}, nil
}

// ValidatePayload validates raw JSON bytes. Malformed JSON yields DECODE_ERROR,
// schema violations VALIDATION_ERROR with every violation in the details.
func (v *JSONSchemaValidator) ValidatePayload(raw []byte) error {
	if len(bytes.TrimSpace(raw)) == 0 {
		return schema.NewError(schema.ErrCodeDecode, "payload is empty")
	}
	doc, err := jsonschema.UnmarshalJSON(bytes.NewReader(raw))
	if err != nil {
		return schema.NewError(schema.ErrCodeDecode, "payload is not valid JSON").WithCause(err)
	}
	if err := v.payloadSchema.Validate(doc); err != nil {
		return toSOPError(err)
	}
	return nil
}

// toSOPError converts a jsonschema.ValidationError into a SOPError listing
// each violated instance location.
func toSOPError(err error) *schema.SOPError {
	var verr *jsonschema.ValidationError
	if !errors.As(err, &verr) {
		return schema.NewError(schema.ErrCodeValidation, err.Error())
	}

	violations := collectViolations(verr)
	if len(violations) == 0 {
		return schema.NewError(schema.ErrCodeValidation, verr.Error())
	}
	if len(violations) == 1 {
		return schema.NewError(schema.ErrCodeValidation, violations[0]).
			WithDetails(map[string]any{"violations": violations})
	}

	msg := fmt.Sprintf("payload has %d schema violations", len(violations))
	return schema.NewError(schema.ErrCodeValidation, msg).
		WithDetails(map[string]any{"violations": violations})
}

// collectViolations walks a ValidationError tree and collects the leaf
// messages with their instance locations.
func collectViolations(verr *jsonschema.ValidationError) []string {
	if len(verr.Causes) == 0 {
		loc := "/"
		if len(verr.InstanceLocation) > 0 {
			loc = "/" + strings.Join(verr.InstanceLocation, "/")
		}
		return []string{fmt.Sprintf("%s: %s", loc, verr.Error())}
	}

	var violations []string
	for _, cause := range verr.Causes {
		violations = append(violations, collectViolations(cause)...)
	}
	return violations
}
