// Copyright 2026 © The Kairos Authors
// SPDX-License-Identifier: Apache-2.0

package planner

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// LoadGraph loads a saved plan from a YAML or JSON file. Unknown extensions
// are sniffed: a leading '{' is tried as JSON first, then YAML.
func LoadGraph(path string) (*Graph, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("graph path is required")
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		return ParseJSON(data)
	case ".yaml", ".yml":
		return ParseYAML(data)
	}

	if bytes.HasPrefix(bytes.TrimSpace(data), []byte("{")) {
		if graph, err := ParseJSON(data); err == nil {
			return graph, nil
		}
	}
	graph, err := ParseYAML(data)
	if err != nil {
		return nil, fmt.Errorf("unsupported graph format in %s: %w", path, err)
	}
	return graph, nil
}
