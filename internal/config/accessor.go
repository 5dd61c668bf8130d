package config

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// GetByPath returns the config value at a dotted path such as
// "reply.timeoutSeconds". Paths address the JSON field names.
func GetByPath(cfg *Config, path string) (any, error) {
	m, err := toMap(cfg)
	if err != nil {
		return nil, err
	}

	cur := any(m)
	for _, part := range strings.Split(path, ".") {
		obj, ok := cur.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("config path %q: %q is not an object", path, part)
		}
		cur, ok = obj[part]
		if !ok {
			return nil, fmt.Errorf("config path %q: unknown key %q", path, part)
		}
	}
	return cur, nil
}

// SetByPath sets the config value at a dotted path. Values are coerced from
// the string form: bools, numbers, then plain strings.
func SetByPath(cfg *Config, path, value string) error {
	m, err := toMap(cfg)
	if err != nil {
		return err
	}

	parts := strings.Split(path, ".")
	cur := m
	for _, part := range parts[:len(parts)-1] {
		next, ok := cur[part].(map[string]any)
		if !ok {
			return fmt.Errorf("config path %q: unknown section %q", path, part)
		}
		cur = next
	}

	leaf := parts[len(parts)-1]
	if _, ok := cur[leaf]; !ok {
		return fmt.Errorf("config path %q: unknown key %q", path, leaf)
	}
	cur[leaf] = coerce(value)

	data, err := json.Marshal(m)
	if err != nil {
		return err
	}
	updated := Defaults()
	if err := json.Unmarshal(data, updated); err != nil {
		return fmt.Errorf("config path %q: value %q does not fit: %w", path, value, err)
	}
	if err := Validate(updated); err != nil {
		return err
	}
	*cfg = *updated
	return nil
}

// Sanitize returns a copy with secrets masked, for `config list` output.
func Sanitize(cfg *Config) *Config {
	out := *cfg
	if out.Notify.Token != "" {
		out.Notify.Token = mask(out.Notify.Token)
	}
	return &out
}

func toMap(cfg *Config) (map[string]any, error) {
	data, err := json.Marshal(cfg)
	if err != nil {
		return nil, err
	}
	var m map[string]any
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, err
	}
	return m, nil
}

func coerce(value string) any {
	switch value {
	case "true":
		return true
	case "false":
		return false
	}
	if n, err := strconv.ParseInt(value, 10, 64); err == nil {
		return n
	}
	if f, err := strconv.ParseFloat(value, 64); err == nil {
		return f
	}
	return value
}

func mask(s string) string {
	if len(s) <= 6 {
		return "******"
	}
	return s[:3] + "..." + s[len(s)-3:]
}
