// SPDX-License-Identifier: Apache-2.0

package schema

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/kusari-oss/nodeprep/internal/core/models"
	"github.com/xeipuuv/gojsonschema"
)

// Schema is a compiled JSON schema for action parameters
type Schema struct {
	compiled *gojsonschema.Schema
}

// Compile parses a JSON schema document
func Compile(document string) (*Schema, error) {
	compiled, err := gojsonschema.NewSchema(gojsonschema.NewStringLoader(document))
	if err != nil {
		return nil, fmt.Errorf("schema compilation error: %w", err)
	}
	return &Schema{compiled: compiled}, nil
}

// MustCompile is like Compile but panics on an invalid document.
// Intended for schemas declared as package-level constants.
func MustCompile(document string) *Schema {
	s, err := Compile(document)
	if err != nil {
		panic(err)
	}
	return s
}

// Validate checks resolved parameters against the schema
func (s *Schema) Validate(params map[string]interface{}) error {
	if s == nil {
		return nil
	}

	// Round-trip through JSON so YAML-decoded values compare as JSON types
	paramsBytes, err := json.Marshal(params)
	if err != nil {
		return fmt.Errorf("%w: failed to serialize params: %v", models.ErrInvalidParameters, err)
	}

	result, err := s.compiled.Validate(gojsonschema.NewBytesLoader(paramsBytes))
	if err != nil {
		return fmt.Errorf("%w: %v", models.ErrInvalidParameters, err)
	}

	return describe(result)
}

func describe(result *gojsonschema.Result) error {
	if result.Valid() {
		return nil
	}

	messages := make([]string, 0, len(result.Errors()))
	for _, e := range result.Errors() {
		messages = append(messages, e.String())
	}
	sort.Strings(messages)

	return fmt.Errorf("%w: %s", models.ErrInvalidParameters, strings.Join(messages, "; "))
}
