// Package schema builds JSON Schemas from tool parameter specs and validates
// tool inputs against them. Validation failures are reported as taxonomy
// validation errors carrying the first failing field.
package schema

import (
	"fmt"

	"github.com/xeipuuv/gojsonschema"

	"github.com/tollgate/tollgate-go/pkg/mcperr"
)

// Param describes a single tool parameter.
type Param struct {
	Name        string        `json:"name"`
	Type        string        `json:"type"`
	Description string        `json:"description"`
	Required    bool          `json:"required"`
	Default     interface{}   `json:"default,omitempty"`
	Minimum     *float64      `json:"minimum,omitempty"`
	Maximum     *float64      `json:"maximum,omitempty"`
	MinLength   *int          `json:"minLength,omitempty"`
	Enum        []interface{} `json:"enum,omitempty"`
}

var validTypes = map[string]bool{
	"string": true, "number": true, "boolean": true,
	"object": true, "array": true, "integer": true,
}

// Compiled holds a compiled JSON Schema plus the parameter specs it was
// generated from, so defaults can be applied at validation time.
type Compiled struct {
	schema *gojsonschema.Schema
	params []Param
	raw    map[string]interface{}
}

// Compile generates an object schema from the given parameters and compiles
// it. Unknown top-level keys are rejected (additionalProperties false).
func Compile(params []Param) (*Compiled, error) {
	for _, p := range params {
		if p.Name == "" {
			return nil, fmt.Errorf("parameter name cannot be empty")
		}
		if !validTypes[p.Type] {
			return nil, fmt.Errorf("invalid parameter type %s for %s", p.Type, p.Name)
		}
	}

	raw := map[string]interface{}{
		"type":                 "object",
		"additionalProperties": false,
		"properties":           make(map[string]interface{}),
	}

	properties := raw["properties"].(map[string]interface{})
	required := []string{}

	for _, p := range params {
		paramSchema := map[string]interface{}{
			"type": p.Type,
		}
		if p.Description != "" {
			paramSchema["description"] = p.Description
		}
		if p.Default != nil {
			paramSchema["default"] = p.Default
		}
		if p.Minimum != nil {
			paramSchema["minimum"] = *p.Minimum
		}
		if p.Maximum != nil {
			paramSchema["maximum"] = *p.Maximum
		}
		if p.MinLength != nil {
			paramSchema["minLength"] = *p.MinLength
		}
		if len(p.Enum) > 0 {
			paramSchema["enum"] = p.Enum
		}

		properties[p.Name] = paramSchema

		if p.Required {
			required = append(required, p.Name)
		}
	}

	if len(required) > 0 {
		raw["required"] = required
	}

	compiled, err := gojsonschema.NewSchema(gojsonschema.NewGoLoader(raw))
	if err != nil {
		return nil, fmt.Errorf("compiling schema: %w", err)
	}

	return &Compiled{schema: compiled, params: params, raw: raw}, nil
}

// Raw returns the generated schema document, for protocol advertisement.
func (c *Compiled) Raw() map[string]interface{} {
	return c.raw
}

// Validate checks input against the schema and returns a taxonomy validation
// error for the first failing field, or nil when the input is valid.
func (c *Compiled) Validate(input map[string]interface{}) *mcperr.Error {
	result, err := c.schema.Validate(gojsonschema.NewGoLoader(input))
	if err != nil {
		return mcperr.NewValidationError("(root)", err.Error(), nil)
	}
	if result.Valid() {
		return nil
	}

	first := result.Errors()[0]
	field := first.Field()
	if field == "(root)" && first.Details() != nil {
		// Required-property failures report the missing field in details.
		if prop, ok := first.Details()["property"].(string); ok {
			field = prop
		}
	}
	return mcperr.NewValidationError(field, first.Description(), first.Value())
}

// ValidateAndApplyDefaults fills schema defaults for absent optional keys,
// validates the merged input and returns it. The input map is not mutated.
func (c *Compiled) ValidateAndApplyDefaults(input map[string]interface{}) (map[string]interface{}, *mcperr.Error) {
	merged := make(map[string]interface{}, len(input)+len(c.params))
	for k, v := range input {
		merged[k] = v
	}
	for _, p := range c.params {
		if p.Default == nil {
			continue
		}
		if _, present := merged[p.Name]; !present {
			merged[p.Name] = p.Default
		}
	}

	if verr := c.Validate(merged); verr != nil {
		return nil, verr
	}
	return merged, nil
}
