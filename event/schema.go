// ABOUTME: JSON Schema shape check for full snapshot documents, reporting every violation at once.
// ABOUTME: Only the top-level shape is checked; individual records are filtered later by the graph store.
package event

import (
	"fmt"
	"strings"

	"github.com/xeipuuv/gojsonschema"
)

const snapshotSchemaJSON = `{
  "$schema": "http://json-schema.org/draft-07/schema#",
  "title": "graph snapshot",
  "type": "object",
  "properties": {
    "nodes": {"type": "array"},
    "edges": {"type": "array"}
  },
  "required": ["nodes", "edges"]
}`

var snapshotSchema = gojsonschema.NewStringLoader(snapshotSchemaJSON)

// SchemaError lists the shape violations of a snapshot document.
type SchemaError struct {
	Problems []string
}

func (e *SchemaError) Error() string {
	return fmt.Sprintf("snapshot document is malformed: %s", strings.Join(e.Problems, "; "))
}

// ValidateSnapshotDocument checks that data is an object carrying both a
// nodes array and an edges array. It returns *SchemaError on violations.
func ValidateSnapshotDocument(data []byte) error {
	result, err := gojsonschema.Validate(snapshotSchema, gojsonschema.NewBytesLoader(data))
	if err != nil {
		return fmt.Errorf("validate snapshot document: %w", err)
	}
	if result.Valid() {
		return nil
	}
	problems := make([]string, 0, len(result.Errors()))
	for _, desc := range result.Errors() {
		problems = append(problems, fmt.Sprintf("%s: %s", desc.Field(), desc.Description()))
	}
	return &SchemaError{Problems: problems}
}
