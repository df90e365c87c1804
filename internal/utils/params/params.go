// Package params parses `key=value` launch payload parameters.
package params

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

var keyRegexp = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_.-]*$`)

// ParseSpecs parses `key=value` specs. Values are typed: booleans and integers are
// converted, anything else is kept as a string. A bare `key` is a true boolean.
func ParseSpecs(specs []string) (map[string]any, error) {
	params := make(map[string]any, len(specs))

	for _, spec := range specs {
		if spec == "" {
			return nil, fmt.Errorf("parameter spec cannot be empty")
		}

		key, value, ok := strings.Cut(spec, "=")
		if !isValidKey(key) {
			return nil, fmt.Errorf("invalid parameter key %q", key)
		}
		if !ok {
			params[key] = true
			continue
		}

		params[key] = typed(value)
	}

	return params, nil
}

func typed(v string) any {
	if v == "true" || v == "false" {
		return v == "true"
	}
	if i, err := strconv.ParseInt(v, 10, 64); err == nil {
		return int(i)
	}
	return v
}

// Merge returns a new map with the override values on top of the base ones.
func Merge(base, override map[string]any) map[string]any {
	merged := make(map[string]any, len(base)+len(override))
	for k, v := range base {
		merged[k] = v
	}
	for k, v := range override {
		merged[k] = v
	}

	return merged
}

func isValidKey(k string) bool {
	return keyRegexp.MatchString(k)
}
