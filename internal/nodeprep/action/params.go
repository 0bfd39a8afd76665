// SPDX-License-Identifier: Apache-2.0

package action

import (
	"fmt"
	"sort"

	"github.com/kusari-oss/nodeprep/internal/core/models"
)

// Parameters have already passed schema validation, so these helpers only
// normalize the shapes produced by YAML and JSON decoding.

func stringParam(params map[string]interface{}, key string) string {
	if v, ok := params[key].(string); ok {
		return v
	}
	return ""
}

func boolParam(params map[string]interface{}, key string) bool {
	v, _ := params[key].(bool)
	return v
}

func stringSlice(params map[string]interface{}, key string) ([]string, error) {
	switch v := params[key].(type) {
	case nil:
		return nil, nil
	case []string:
		return v, nil
	case []interface{}:
		out := make([]string, 0, len(v))
		for _, item := range v {
			s, ok := item.(string)
			if !ok {
				return nil, fmt.Errorf("%w: %s must contain only strings", models.ErrInvalidParameters, key)
			}
			out = append(out, s)
		}
		return out, nil
	default:
		return nil, fmt.Errorf("%w: %s must be a list", models.ErrInvalidParameters, key)
	}
}

// envList renders a map of environment variables as sorted KEY=value pairs
func envList(params map[string]interface{}, key string) []string {
	m, ok := params[key].(map[string]interface{})
	if !ok {
		return nil
	}
	out := make([]string, 0, len(m))
	for k, v := range m {
		out = append(out, fmt.Sprintf("%s=%v", k, v))
	}
	sort.Strings(out)
	return out
}
