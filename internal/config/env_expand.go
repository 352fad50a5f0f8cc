package config

import (
	"os"
	"sort"
)

// expandEnv substitutes ${VAR} and $VAR references with environment values.
// Unset variables expand to empty and are reported so callers can warn.
func expandEnv(raw string) (string, []string) {
	missing := make(map[string]struct{})
	expanded := os.Expand(raw, func(key string) string {
		if val, ok := os.LookupEnv(key); ok {
			return val
		}
		missing[key] = struct{}{}
		return ""
	})

	if len(missing) == 0 {
		return expanded, nil
	}
	names := make([]string, 0, len(missing))
	for name := range missing {
		names = append(names, name)
	}
	sort.Strings(names)
	return expanded, names
}
