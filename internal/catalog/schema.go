package catalog

import "github.com/santhosh-tekuri/jsonschema/v5"

const environmentsSchemaJSON = `{
  "type": "array",
  "items": {
    "type": "object",
    "required": ["id", "name", "baseUrl"],
    "properties": {
      "id": {"type": "string", "minLength": 1},
      "name": {"type": "string"},
      "baseUrl": {"type": "string"}
    }
  }
}`

const scenariosSchemaJSON = `{
  "type": "array",
  "items": {
    "type": "object",
    "required": ["id", "name", "file"],
    "properties": {
      "id": {"type": "string", "minLength": 1},
      "name": {"type": "string"},
      "file": {"type": "string", "minLength": 1},
      "tags": {"type": "array", "items": {"type": "string"}},
      "runner": {"type": "string"}
    }
  }
}`

var (
	environmentsSchema = jsonschema.MustCompileString("environments.schema.json", environmentsSchemaJSON)
	scenariosSchema    = jsonschema.MustCompileString("scenarios.schema.json", scenariosSchemaJSON)
)
