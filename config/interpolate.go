package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// interpolate replaces string values of the form "$label::key" with the
// value under key in the secondary file that config_sources maps label to.
// Secondary paths are resolved relative to the primary config file.
func interpolate(data []byte, path string) ([]byte, error) {
	var doc map[string]any
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	sources := make(map[string]string)
	if raw, ok := doc["config_sources"].(map[string]any); ok {
		for label, p := range raw {
			sp, ok := p.(string)
			if !ok {
				return nil, fmt.Errorf("config_sources entry %q must be a path", label)
			}
			sources[label] = sp
		}
	}

	cache := make(map[string]map[string]any)
	loadSource := func(label string) (map[string]any, error) {
		if cached, ok := cache[label]; ok {
			return cached, nil
		}
		sp, ok := sources[label]
		if !ok {
			return nil, fmt.Errorf("label %q not found in config_sources", label)
		}
		full := filepath.Join(filepath.Dir(path), sp)
		raw, err := os.ReadFile(full)
		if err != nil {
			return nil, fmt.Errorf("secondary config %q: %w", label, err)
		}
		var values map[string]any
		if err := yaml.Unmarshal(raw, &values); err != nil {
			return nil, fmt.Errorf("secondary config %q: %w", label, err)
		}
		cache[label] = values
		return values, nil
	}

	var walk func(value any) (any, error)
	walk = func(value any) (any, error) {
		switch t := value.(type) {
		case map[string]any:
			out := make(map[string]any, len(t))
			for k, v := range t {
				resolved, err := walk(v)
				if err != nil {
					return nil, err
				}
				out[k] = resolved
			}
			return out, nil
		case []any:
			out := make([]any, len(t))
			for i, v := range t {
				resolved, err := walk(v)
				if err != nil {
					return nil, err
				}
				out[i] = resolved
			}
			return out, nil
		case string:
			if !strings.HasPrefix(t, "$") {
				return t, nil
			}
			label, key, ok := strings.Cut(t[1:], "::")
			if !ok {
				return t, nil
			}
			values, err := loadSource(label)
			if err != nil {
				return nil, err
			}
			resolved, ok := values[key]
			if !ok {
				return nil, fmt.Errorf("key %q not found in secondary config %q", key, label)
			}
			return resolved, nil
		default:
			return value, nil
		}
	}

	resolved, err := walk(doc)
	if err != nil {
		return nil, err
	}
	return yaml.Marshal(resolved)
}
