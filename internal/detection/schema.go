package detection

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/kaptinlin/jsonschema"
)

//go:embed snapshot.schema.json
var snapshotSchemaJSON []byte

var (
	schemaOnce sync.Once
	schema     *jsonschema.Schema
	schemaErr  error
)

func loadSchema() (*jsonschema.Schema, error) {
	schemaOnce.Do(func() {
		compiler := jsonschema.NewCompiler()
		compiler.AssertFormat = true
		schema, schemaErr = compiler.Compile(snapshotSchemaJSON)
		if schemaErr != nil {
			schemaErr = fmt.Errorf("compile snapshot schema: %w", schemaErr)
		}
	})
	return schema, schemaErr
}

// Validate checks a snapshot document against the snapshot schema.
func Validate(data []byte) error {
	s, err := loadSchema()
	if err != nil {
		return err
	}
	result := s.ValidateJSON(data)
	if result.IsValid() {
		return nil
	}
	return fmt.Errorf("snapshot schema validation failed: %v", result.Errors)
}

// Decode validates and decodes a snapshot document. The result is normalized.
func Decode(data []byte) (Snapshot, error) {
	if err := Validate(data); err != nil {
		return Snapshot{}, err
	}
	var s Snapshot
	if err := json.Unmarshal(data, &s); err != nil {
		return Snapshot{}, fmt.Errorf("decode snapshot: %w", err)
	}
	return s.Normalize(), nil
}
