package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/fnuworsu/gqldb/pkg/value"
)

// parseQueryLine reads a query typed at the prompt. A line starting with
// "{" is a JSON options object; anything else is "key=value; key=value".
func parseQueryLine(line string) (*value.Object, error) {
	line = strings.TrimSpace(line)
	if strings.HasPrefix(line, "{") {
		v, err := value.DecodeJSON([]byte(line))
		if err != nil {
			return nil, fmt.Errorf("invalid JSON query: %w", err)
		}
		obj, ok := v.(*value.Object)
		if !ok {
			return nil, fmt.Errorf("query must be a JSON object")
		}
		return obj, nil
	}

	opts := value.NewObject()
	for _, part := range strings.Split(line, ";") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		key, val, ok := strings.Cut(part, "=")
		if !ok {
			return nil, fmt.Errorf("expected key=value, got %q", part)
		}
		key = strings.TrimSpace(key)
		val = strings.TrimSpace(val)

		switch key {
		case "descending", "conflicts":
			b, err := strconv.ParseBool(val)
			if err != nil {
				return nil, fmt.Errorf("%s must be true or false", key)
			}
			opts.Set(key, b)
		default:
			opts.Set(key, val)
		}
	}
	return opts, nil
}

// splitCommand separates a meta command from its argument
func splitCommand(line string) (string, string) {
	cmd, arg, _ := strings.Cut(strings.TrimSpace(line), " ")
	return strings.ToLower(cmd), strings.TrimSpace(arg)
}
