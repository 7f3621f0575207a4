// Copyright 2026 © The Kairos Authors
// SPDX-License-Identifier: Apache-2.0

package planner

import (
	"encoding/json"
	"fmt"

	"gopkg.in/yaml.v3"
)

// ParseJSON loads a graph from JSON and validates it.
func ParseJSON(data []byte) (*Graph, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("empty JSON payload")
	}
	var graph Graph
	if err := json.Unmarshal(data, &graph); err != nil {
		return nil, fmt.Errorf("parse json graph: %w", err)
	}
	if err := graph.Validate(); err != nil {
		return nil, err
	}
	return &graph, nil
}

// ParseYAML loads a graph from YAML and validates it.
func ParseYAML(data []byte) (*Graph, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("empty YAML payload")
	}
	var graph Graph
	if err := yaml.Unmarshal(data, &graph); err != nil {
		return nil, fmt.Errorf("parse yaml graph: %w", err)
	}
	if err := graph.Validate(); err != nil {
		return nil, err
	}
	return &graph, nil
}

// MarshalJSON serializes a graph to JSON. Use pretty for indented output.
func MarshalJSON(graph *Graph, pretty bool) ([]byte, error) {
	if err := graph.Validate(); err != nil {
		return nil, err
	}
	if pretty {
		return json.MarshalIndent(graph, "", "  ")
	}
	return json.Marshal(graph)
}

// MarshalYAML serializes a graph to YAML.
func MarshalYAML(graph *Graph) ([]byte, error) {
	if err := graph.Validate(); err != nil {
		return nil, err
	}
	return yaml.Marshal(graph)
}

// Render encodes graph as mermaid, dot, json or yaml.
func Render(graph *Graph, format string) (string, error) {
	if err := graph.Validate(); err != nil {
		return "", err
	}
	switch format {
	case "", "mermaid":
		return ToMermaid(graph), nil
	case "dot":
		return ToDot(graph), nil
	case "json":
		data, err := MarshalJSON(graph, true)
		return string(data), err
	case "yaml":
		data, err := MarshalYAML(graph)
		return string(data), err
	default:
		return "", fmt.Errorf("unknown graph format %q; use mermaid, dot, json or yaml", format)
	}
}
