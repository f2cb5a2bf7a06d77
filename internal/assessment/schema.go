package assessment

import (
	"fmt"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// Collaborator payload contracts, versioned alongside the adapters. A payload
// that fails its schema is a contract violation regardless of HTTP status.

const regimeSchemaJSON = `{
  "type": "object",
  "required": ["regime", "term_slope", "z_score", "confidence", "model_version"],
  "properties": {
    "regime": {"type": "string", "minLength": 1},
    "term_slope": {"type": "number"},
    "z_score": {"type": "number"},
    "confidence": {"type": "number", "minimum": 0, "maximum": 1},
    "model_version": {"type": "string", "minLength": 1}
  }
}`

const eventSchemaJSON = `{
  "type": "object",
  "required": ["confidence"],
  "properties": {
    "confidence": {"type": "number", "minimum": 0, "maximum": 1},
    "events": {
      "type": "array",
      "items": {
        "type": "object",
        "required": ["kind", "source", "at"],
        "properties": {
          "kind": {"type": "string", "minLength": 1},
          "source": {"type": "string", "minLength": 1},
          "at": {"type": "string", "format": "date-time"}
        }
      }
    }
  }
}`

func compileSchema(name, doc string) (*jsonschema.Schema, error) {
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource(name, strings.NewReader(doc)); err != nil {
		return nil, fmt.Errorf("compiling %s schema: %w", name, err)
	}
	schema, err := compiler.Compile(name)
	if err != nil {
		return nil, fmt.Errorf("compiling %s schema: %w", name, err)
	}
	return schema, nil
}
