package jsonschema

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

type JsonSchemaValidator struct {
	schemas map[string]*jsonschema.Schema
}

// NewJsonSchemaValidator compiles the given schema documents. Each document
// is registered under its "$id" (or legacy "id") member.
func NewJsonSchemaValidator(documents ...[]byte) (*JsonSchemaValidator, error) {
	c := jsonschema.NewCompiler()
	var schemaIds []string
	for i, jsonData := range documents {
		jsonElems := make(map[string]any)
		if err := json.Unmarshal(jsonData, &jsonElems); err != nil {
			return nil, fmt.Errorf("error reading schema %d: %w", i, err)
		}
		schemaId, _ := jsonElems["$id"].(string)
		if schemaId == "" {
			schemaId, _ = jsonElems["id"].(string)
		}
		if schemaId == "" {
			return nil, fmt.Errorf("missing id in the json schema %d", i)
		}
		if err := c.AddResource(schemaId, bytes.NewReader(jsonData)); err != nil {
			return nil, fmt.Errorf("unable to add schema: %w", err)
		}
		schemaIds = append(schemaIds, schemaId)
	}
	compiledSchemas := make(map[string]*jsonschema.Schema, len(schemaIds))
	for _, sid := range schemaIds {
		sch, err := c.Compile(sid)
		if err != nil {
			return nil, fmt.Errorf("error compiling schema :%w", err)
		}
		compiledSchemas[sid] = sch
	}
	return &JsonSchemaValidator{schemas: compiledSchemas}, nil
}

// ValidateMap validates data, which must be JSON-marshalable, against a schema.
// The returned error is a *jsonschema.ValidationError when data does not conform.
func ValidateMap[T any](schema *jsonschema.Schema, data map[string]T) error {
	jsonData, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("error marshaling data to json: %w", err)
	}

	var jsonObject interface{}
	if err := json.Unmarshal(jsonData, &jsonObject); err != nil {
		return fmt.Errorf("error unmarshaling json data: %w", err)
	}

	return schema.Validate(jsonObject)
}

func (v *JsonSchemaValidator) ValidateMap(schemaId string, data map[string]any) error {
	schema := v.schemas[schemaId]
	if schema == nil {
		return errors.New("invalid schema id " + schemaId)
	}

	return ValidateMap(schema, data)
}

// LeafCause returns the most specific cause of a validation error, the one
// with the deepest instance location, or nil when err is not a validation
// error.
func LeafCause(err error) *jsonschema.ValidationError {
	var ve *jsonschema.ValidationError
	if !errors.As(err, &ve) {
		return nil
	}
	return deepest(ve)
}

func deepest(ve *jsonschema.ValidationError) *jsonschema.ValidationError {
	if len(ve.Causes) == 0 {
		return ve
	}
	var best *jsonschema.ValidationError
	for _, c := range ve.Causes {
		leaf := deepest(c)
		if best == nil || len(leaf.InstanceLocation) > len(best.InstanceLocation) {
			best = leaf
		}
	}
	return best
}
