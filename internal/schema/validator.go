// Package schema provides JSON Schema validation for provider payloads and
// the source catalog, with custom geo formats.
package schema

import (
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"github.com/xeipuuv/gojsonschema"
)

// ValidationError lists every schema violation found in one document.
type ValidationError struct {
	Causes []string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("schema violation: %s", strings.Join(e.Causes, "; "))
}

// Validator checks documents against one compiled JSON Schema.
type Validator struct {
	compiled *gojsonschema.Schema
}

var registerFormats sync.Once

// NewValidator compiles the schema. The epsg_code and hex_color formats are
// registered on first use.
func NewValidator(schemaJSON string) (*Validator, error) {
	registerFormats.Do(RegisterCustomFormats)
	compiled, err := gojsonschema.NewSchema(gojsonschema.NewStringLoader(schemaJSON))
	if err != nil {
		return nil, fmt.Errorf("compile schema: %w", err)
	}
	return &Validator{compiled: compiled}, nil
}

// Validate checks a decoded document, typically a map[string]any.
func (v *Validator) Validate(doc any) error {
	return v.check(gojsonschema.NewGoLoader(doc))
}

// ValidateBytes checks a raw JSON document.
func (v *Validator) ValidateBytes(data []byte) error {
	if !json.Valid(data) {
		return fmt.Errorf("not a JSON document")
	}
	return v.check(gojsonschema.NewBytesLoader(data))
}

func (v *Validator) check(doc gojsonschema.JSONLoader) error {
	result, err := v.compiled.Validate(doc)
	if err != nil {
		return fmt.Errorf("validate document: %w", err)
	}
	if result.Valid() {
		return nil
	}
	verr := &ValidationError{}
	for _, desc := range result.Errors() {
		verr.Causes = append(verr.Causes, desc.String())
	}
	return verr
}
