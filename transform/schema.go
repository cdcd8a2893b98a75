package transform

import (
	"encoding/json"

	"github.com/santhosh-tekuri/jsonschema/v6"

	"github.com/htnkit/corestn/corerr"
)

// requestSchema describes the shape a wire-format (JSON) request must have
// before DecodeAndConvert attempts to unmarshal it into a Request: the
// Condition/Interval/argument payloads a CLI/RPC front-end hands in are
// untyped JSON until this gate passes; both ISO-8601 strings and numeric
// seconds are accepted for durations and normalized downstream.
const requestSchemaJSON = `{
  "type": "object",
  "properties": {
    "activities": {
      "type": "array",
      "items": {
        "type": "object",
        "required": ["name"],
        "properties": {
          "name": {"type": "string", "minLength": 1},
          "duration": {"type": ["string", "number", "null"]},
          "requires_entities": {"type": "array"},
          "args": {"type": "array"},
          "children": {"type": "array", "items": {"type": "string"}}
        }
      }
    },
    "entities": {
      "type": "array",
      "items": {
        "type": "object",
        "required": ["id", "type"],
        "properties": {
          "id": {"type": "string", "minLength": 1},
          "type": {"type": "string", "minLength": 1},
          "capabilities": {"type": "array", "items": {"type": "string"}}
        }
      }
    },
    "constraints": {
      "type": "array",
      "items": {
        "type": "object",
        "required": ["relation", "activity"],
        "properties": {
          "relation": {"type": "string"},
          "activity": {"type": "string"},
          "with": {"type": "string"},
          "lower": {"type": "number"},
          "upper": {"type": "number"}
        }
      }
    },
    "goals": {
      "type": "array",
      "items": {
        "type": "object",
        "required": ["predicate", "subject"],
        "properties": {
          "predicate": {"type": "string"},
          "subject": {"type": "string"}
        }
      }
    }
  }
}`

var compiledRequestSchema *jsonschema.Schema

func init() {
	var schemaDoc any
	if err := json.Unmarshal([]byte(requestSchemaJSON), &schemaDoc); err != nil {
		panic("transform: invalid embedded request schema: " + err.Error())
	}
	c := jsonschema.NewCompiler()
	if err := c.AddResource("request.json", schemaDoc); err != nil {
		panic("transform: add request schema resource: " + err.Error())
	}
	sch, err := c.Compile("request.json")
	if err != nil {
		panic("transform: compile request schema: " + err.Error())
	}
	compiledRequestSchema = sch
}

// ValidateRequestJSON validates raw JSON against the wire-format request
// schema before it is unmarshaled into a Request, catching malformed
// front-end input as invalid_input rather than a panic deep in Convert.
func ValidateRequestJSON(raw []byte) error {
	var doc any
	if err := json.Unmarshal(raw, &doc); err != nil {
		return corerr.Wrap(corerr.InvalidInput, "malformed request JSON", err)
	}
	if err := compiledRequestSchema.Validate(doc); err != nil {
		return corerr.Wrap(corerr.InvalidInput, "request failed schema validation", err)
	}
	return nil
}
