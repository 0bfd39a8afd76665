// SPDX-License-Identifier: Apache-2.0

package variables

import (
	"encoding/json"
	"fmt"
	"os"
	"regexp"
	"sort"

	"github.com/kusari-oss/nodeprep/internal/core/models"
)

// paramRegex matches placeholders like {{.registry_address}} or {{ .name }}
var paramRegex = regexp.MustCompile(`\{\{\s*\.([A-Za-z0-9_][A-Za-z0-9_.-]*)\s*\}\}`)

// Resolver is the read side of a Scope
type Resolver interface {
	Lookup(name string) (interface{}, bool)
}

// UnresolvedError names the placeholder that had no binding
type UnresolvedError struct {
	Token string
}

func (e *UnresolvedError) Error() string {
	return fmt.Sprintf("%v: %s", models.ErrUnresolvedVariable, e.Token)
}

func (e *UnresolvedError) Unwrap() error {
	return models.ErrUnresolvedVariable
}

// Substitute replaces every placeholder in text with its bound value.
// Surrounding text is preserved verbatim. The first unbound token fails.
func Substitute(text string, vars Resolver) (string, error) {
	var firstErr error

	result := paramRegex.ReplaceAllStringFunc(text, func(match string) string {
		if firstErr != nil {
			return match
		}

		token := paramRegex.FindStringSubmatch(match)[1]
		value, found := vars.Lookup(token)
		if !found {
			firstErr = &UnresolvedError{Token: token}
			return match
		}

		return formatValue(value)
	})

	if firstErr != nil {
		return "", firstErr
	}
	return result, nil
}

// SubstituteFile reads a template file and substitutes its placeholders
func SubstituteFile(path string, vars Resolver) ([]byte, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: template %s", models.ErrSourceNotFound, path)
		}
		return nil, fmt.Errorf("error reading template file: %w", err)
	}

	out, err := Substitute(string(content), vars)
	if err != nil {
		return nil, fmt.Errorf("template %s: %w", path, err)
	}
	return []byte(out), nil
}

// formatValue renders a bound value as text
func formatValue(value interface{}) string {
	switch v := value.(type) {
	case string:
		return v
	case []interface{}, map[string]interface{}, []string:
		// For complex types, use JSON representation
		jsonBytes, err := json.Marshal(v)
		if err != nil {
			return fmt.Sprintf("%v", v)
		}
		return string(jsonBytes)
	default:
		return fmt.Sprintf("%v", value)
	}
}

// ProcessMap substitutes placeholders in every string of a parameter map,
// descending into nested maps and lists. The input is never modified.
func ProcessMap(params map[string]interface{}, vars Resolver) (map[string]interface{}, error) {
	result := make(map[string]interface{}, len(params))

	for key, value := range params {
		processed, err := processValue(value, vars)
		if err != nil {
			return nil, fmt.Errorf("error processing parameter %s: %w", key, err)
		}
		result[key] = processed
	}

	return result, nil
}

func processValue(value interface{}, vars Resolver) (interface{}, error) {
	switch v := value.(type) {
	case string:
		return Substitute(v, vars)

	case []interface{}:
		out := make([]interface{}, len(v))
		for i, item := range v {
			processed, err := processValue(item, vars)
			if err != nil {
				return nil, err
			}
			out[i] = processed
		}
		return out, nil

	case []string:
		out := make([]interface{}, len(v))
		for i, item := range v {
			processed, err := Substitute(item, vars)
			if err != nil {
				return nil, err
			}
			out[i] = processed
		}
		return out, nil

	case map[string]interface{}:
		return ProcessMap(v, vars)

	default:
		return value, nil
	}
}

// Tokens returns every placeholder name referenced in text, sorted and deduplicated
func Tokens(text string) []string {
	seen := make(map[string]bool)
	for _, match := range paramRegex.FindAllStringSubmatch(text, -1) {
		if len(match) > 1 {
			seen[match[1]] = true
		}
	}

	result := make([]string, 0, len(seen))
	for token := range seen {
		result = append(result, token)
	}
	sort.Strings(result)
	return result
}

// MapTokens collects placeholder names from every string in a parameter map
func MapTokens(params map[string]interface{}) []string {
	seen := make(map[string]bool)

	var walk func(v interface{})
	walk = func(v interface{}) {
		switch val := v.(type) {
		case string:
			for _, t := range Tokens(val) {
				seen[t] = true
			}
		case []interface{}:
			for _, item := range val {
				walk(item)
			}
		case []string:
			for _, item := range val {
				walk(item)
			}
		case map[string]interface{}:
			for _, item := range val {
				walk(item)
			}
		}
	}
	walk(params)

	result := make([]string, 0, len(seen))
	for token := range seen {
		result = append(result, token)
	}
	sort.Strings(result)
	return result
}
