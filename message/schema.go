package message

import (
	"fmt"
	"strings"

	"github.com/xeipuuv/gojsonschema"

	"github.com/kagwave/vision-middleware/errors"
)

// JSON Schemas (draft-07) for the inbound partial payloads. Validation is
// lenient about extra properties so upstream stages can add fields without
// a lockstep deploy; the required core must still hold.
const (
	poseTagSchemaJSON = `{
		"$schema": "http://json-schema.org/draft-07/schema#",
		"title": "pose.tag.v1",
		"type": "object",
		"required": ["stream_id", "frame_number", "instance_id", "tag"],
		"properties": {
			"stream_id": {"type": "string", "pattern": "^[A-Za-z0-9_-]+$"},
			"frame_number": {"type": "integer", "minimum": 0},
			"instance_id": {"type": "string", "pattern": "^[A-Za-z0-9_-]+$"},
			"tag": {"type": "string", "minLength": 1},
			"observed_at": {"type": "integer", "minimum": 0}
		}
	}`

	segmentationMaskSchemaJSON = `{
		"$schema": "http://json-schema.org/draft-07/schema#",
		"title": "segmentation.mask.v1",
		"type": "object",
		"required": ["stream_id", "frame_number", "instance_id", "mask"],
		"properties": {
			"stream_id": {"type": "string", "pattern": "^[A-Za-z0-9_-]+$"},
			"frame_number": {"type": "integer", "minimum": 0},
			"instance_id": {"type": "string", "pattern": "^[A-Za-z0-9_-]+$"},
			"mask": {"type": "string", "minLength": 1},
			"observed_at": {"type": "integer", "minimum": 0}
		}
	}`

	combinedEventSchemaJSON = `{
		"$schema": "http://json-schema.org/draft-07/schema#",
		"title": "fusion.combined.v1",
		"type": "object",
		"required": [
			"stream_id", "frame_number", "instance_id",
			"pose", "mask", "first_observed_at", "joined_at", "join_gap_ms"
		],
		"properties": {
			"stream_id": {"type": "string", "pattern": "^[A-Za-z0-9_-]+$"},
			"frame_number": {"type": "integer", "minimum": 0},
			"instance_id": {"type": "string", "pattern": "^[A-Za-z0-9_-]+$"},
			"pose": {"type": "object"},
			"mask": {"type": "object"},
			"first_observed_at": {"type": "integer", "minimum": 0},
			"joined_at": {"type": "integer", "minimum": 0},
			"join_gap_ms": {"type": "integer", "minimum": 0}
		}
	}`
)

// Validator checks inbound payload bytes against the embedded JSON Schemas
// before a payload is deserialized or handed to the coordinator. A schema
// violation is an invalid-class error, so the message bus terminates the
// message instead of redelivering it.
type Validator struct {
	schemas map[string]*gojsonschema.Schema
}

// NewValidator compiles the embedded schemas. Compilation happens once here;
// Validate only evaluates documents.
func NewValidator() (*Validator, error) {
	sources := map[string]string{
		PoseTagType.Key():          poseTagSchemaJSON,
		SegmentationMaskType.Key(): segmentationMaskSchemaJSON,
		CombinedEventType.Key():    combinedEventSchemaJSON,
	}

	schemas := make(map[string]*gojsonschema.Schema, len(sources))
	for key, src := range sources {
		schema, err := gojsonschema.NewSchema(gojsonschema.NewStringLoader(src))
		if err != nil {
			return nil, errors.WrapFatal(err, "Validator", "NewValidator",
				fmt.Sprintf("compile schema %s", key))
		}
		schemas[key] = schema
	}

	return &Validator{schemas: schemas}, nil
}

// Covers reports whether a schema exists for the given message type.
func (v *Validator) Covers(msgType Type) bool {
	_, ok := v.schemas[msgType.Key()]
	return ok
}

// Validate checks payload bytes against the schema for msgType.
// Returns an invalid-class error when the type has no schema, the payload
// is not valid JSON, or the document violates the schema.
func (v *Validator) Validate(msgType Type, payload []byte) error {
	schema, ok := v.schemas[msgType.Key()]
	if !ok {
		return errors.WrapInvalid(
			fmt.Errorf("no schema for payload type %s", msgType.String()),
			"Validator", "Validate", "schema lookup")
	}

	result, err := schema.Validate(gojsonschema.NewBytesLoader(payload))
	if err != nil {
		return errors.WrapInvalid(err, "Validator", "Validate", "payload parse")
	}

	if !result.Valid() {
		var sb strings.Builder
		sb.WriteString(fmt.Sprintf("payload violates schema %s:", msgType.String()))
		for _, desc := range result.Errors() {
			sb.WriteString(fmt.Sprintf(" %s: %s;", desc.Field(), desc.Description()))
		}
		return errors.WrapInvalid(fmt.Errorf("%s", sb.String()), "Validator", "Validate", "schema violation")
	}

	return nil
}
