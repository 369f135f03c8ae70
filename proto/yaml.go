package proto

import (
	"fmt"
	"strconv"

	"gopkg.in/yaml.v3"
)

// Stats is a decoded stats body. Values are int64 when the scalar is fully
// numeric, string otherwise.
type Stats map[string]any

// Int returns the integer value stored under key.
func (s Stats) Int(key string) (int64, bool) {
	v, ok := s[key].(int64)
	return v, ok
}

// String returns the value stored under key formatted as text.
func (s Stats) String(key string) (string, bool) {
	v, ok := s[key]
	if !ok {
		return "", false
	}
	switch v := v.(type) {
	case string:
		return v, true
	case int64:
		return strconv.FormatInt(v, 10), true
	}
	return fmt.Sprint(v), true
}

// ParseStats decodes the YAML mapping returned by stats, stats-job and
// stats-tube.
//
// Example body:
//
//	---
//	current-jobs-ready: 3
//	name: default
func ParseStats(body []byte) (Stats, error) {
	root, err := parseYAMLDocument(body)
	if err != nil {
		return nil, err
	}

	stats := make(Stats)
	if root == nil {
		return stats, nil
	}
	if root.Kind != yaml.MappingNode {
		return nil, fmt.Errorf("stats body is not a mapping (line %d)", root.Line)
	}

	for i := 0; i+1 < len(root.Content); i += 2 {
		key, value := root.Content[i], root.Content[i+1]
		if value.Kind != yaml.ScalarNode {
			return nil, fmt.Errorf("stats value for %q is not a scalar (line %d)", key.Value, value.Line)
		}
		stats[key.Value] = parseScalar(value.Value)
	}

	return stats, nil
}

// ParseList decodes the YAML sequence returned by list-tubes and
// list-tubes-watched, preserving order.
func ParseList(body []byte) ([]string, error) {
	root, err := parseYAMLDocument(body)
	if err != nil {
		return nil, err
	}

	if root == nil {
		return []string{}, nil
	}
	if root.Kind != yaml.SequenceNode {
		return nil, fmt.Errorf("list body is not a sequence (line %d)", root.Line)
	}

	items := make([]string, 0, len(root.Content))
	for _, item := range root.Content {
		if item.Kind != yaml.ScalarNode {
			return nil, fmt.Errorf("list item is not a scalar (line %d)", item.Line)
		}
		items = append(items, item.Value)
	}

	return items, nil
}

// parseYAMLDocument returns the top-level node of body, nil for an empty
// document.
func parseYAMLDocument(body []byte) (*yaml.Node, error) {
	var doc yaml.Node
	if err := yaml.Unmarshal(body, &doc); err != nil {
		return nil, err
	}
	if doc.Kind == 0 || len(doc.Content) == 0 {
		return nil, nil
	}
	if doc.Kind != yaml.DocumentNode {
		return &doc, nil
	}
	return doc.Content[0], nil
}

func parseScalar(s string) any {
	if n, err := strconv.ParseInt(s, 10, 64); err == nil {
		return n
	}
	return s
}
