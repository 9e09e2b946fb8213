package config

import (
	"fmt"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v6"
)

// stackSchema and modelSchema are minimal structural schemas for the two
// document kinds this package accepts. They exist to turn missing-field
// configuration mistakes into a single Configuration error reported before
// any network action, rather than a nil-pointer surprise deep in the
// loader.
const (
	stackSchemaJSON = `{
		"type": "object",
		"required": ["kind", "spec"],
		"properties": {
			"kind": {"const": "Stack"},
			"spec": {
				"type": "object",
				"required": ["models"],
				"properties": {
					"models": {
						"type": "array",
						"minItems": 1,
						"items": {
							"type": "object",
							"required": ["name", "model"],
							"properties": {
								"name": {"type": "string", "minLength": 1},
								"model": {
									"type": "object",
									"required": ["name"],
									"properties": {"name": {"type": "string", "minLength": 1}}
								}
							}
						}
					}
				}
			}
		}
	}`

	modelSchemaJSON = `{
		"type": "object",
		"required": ["kind", "metadata"],
		"properties": {
			"kind": {"const": "Model"},
			"metadata": {
				"type": "object",
				"required": ["name"],
				"properties": {"name": {"type": "string", "minLength": 1}}
			}
		}
	}`
)

var (
	stackSchema *jsonschema.Schema
	modelSchema *jsonschema.Schema
)

func init() {
	stackSchema = mustCompile("stack.json", stackSchemaJSON)
	modelSchema = mustCompile("model.json", modelSchemaJSON)
}

func mustCompile(name, schemaJSON string) *jsonschema.Schema {
	c := jsonschema.NewCompiler()
	doc, err := jsonschema.UnmarshalJSON(strings.NewReader(schemaJSON))
	if err != nil {
		panic(fmt.Sprintf("config: invalid embedded schema %s: %v", name, err))
	}
	if err := c.AddResource(name, doc); err != nil {
		panic(fmt.Sprintf("config: invalid embedded schema %s: %v", name, err))
	}
	s, err := c.Compile(name)
	if err != nil {
		panic(fmt.Sprintf("config: invalid embedded schema %s: %v", name, err))
	}
	return s
}

// validateStack checks a raw, generic document against the Stack schema.
func validateStack(doc any) error {
	if err := stackSchema.Validate(doc); err != nil {
		return fmt.Errorf("config: stack document invalid: %w", err)
	}
	return nil
}

// validateModel checks a raw, generic document against the Model schema.
func validateModel(doc any) error {
	if err := modelSchema.Validate(doc); err != nil {
		return fmt.Errorf("config: model document invalid: %w", err)
	}
	return nil
}
