package models

import (
	"fmt"

	"github.com/xeipuuv/gojsonschema"
)

// WorkflowDocumentSchema is the JSON Schema the editor's save format must
// satisfy before a document is accepted by the store or the CLI.
const WorkflowDocumentSchema = `{
  "$schema": "http://json-schema.org/draft-07/schema#",
  "title": "Workflow",
  "type": "object",
  "required": ["id", "name", "nodes", "edges"],
  "properties": {
    "id": {"type": "string", "minLength": 1},
    "name": {"type": "string", "minLength": 3},
    "description": {"type": "string"},
    "variables": {"type": "object"},
    "metadata": {"type": "object"},
    "nodes": {
      "type": "array",
      "items": {
        "type": "object",
        "required": ["id", "kind"],
        "properties": {
          "id": {"type": "string", "minLength": 1},
          "kind": {
            "type": "string",
            "enum": ["start", "end", "decision", "process", "note", "file", "shape"]
          },
          "label": {"type": "string"},
          "position_x": {"type": "integer"},
          "position_y": {"type": "integer"},
          "decision": {
            "type": "object",
            "properties": {"condition": {"type": "string"}}
          },
          "note": {
            "type": "object",
            "required": ["content"],
            "properties": {"content": {"type": "string"}}
          },
          "file": {
            "type": "object",
            "required": ["name"],
            "properties": {
              "name": {"type": "string"},
              "content": {"type": "string"}
            }
          },
          "shape": {
            "type": "object",
            "required": ["shape"],
            "properties": {"shape": {"type": "string"}}
          }
        }
      }
    },
    "edges": {
      "type": "array",
      "items": {
        "type": "object",
        "required": ["id", "source", "target"],
        "properties": {
          "id": {"type": "string", "minLength": 1},
          "source": {"type": "string", "minLength": 1},
          "target": {"type": "string", "minLength": 1},
          "branch": {"type": "string", "enum": ["yes", "no"]}
        }
      }
    }
  }
}`

// ValidateWorkflowDocument checks raw JSON against WorkflowDocumentSchema.
// It returns one message per schema violation; an empty slice means the
// document is valid.
func ValidateWorkflowDocument(data []byte) ([]string, error) {
	schemaLoader := gojsonschema.NewStringLoader(WorkflowDocumentSchema)
	documentLoader := gojsonschema.NewBytesLoader(data)

	result, err := gojsonschema.Validate(schemaLoader, documentLoader)
	if err != nil {
		return nil, fmt.Errorf("failed to validate workflow document: %w", err)
	}

	if result.Valid() {
		return nil, nil
	}

	violations := make([]string, 0, len(result.Errors()))
	for _, desc := range result.Errors() {
		violations = append(violations, desc.String())
	}

	return violations, nil
}
