// Copyright 2026 © The Kairos Authors
// SPDX-License-Identifier: Apache-2.0

// Package manifest loads agent declarations from YAML, JSON or HCL files.
package manifest

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/jllopis/capflow/pkg/agent"
	"github.com/jllopis/capflow/pkg/capability"
	"github.com/jllopis/capflow/pkg/registry"
)

// Entry declares one agent.
type Entry struct {
	ID          string         `json:"id" yaml:"id"`
	Description string         `json:"description,omitempty" yaml:"description,omitempty"`
	Provides    capability.Set `json:"provides" yaml:"provides"`
	Requires    capability.Set `json:"requires,omitempty" yaml:"requires,omitempty"`
}

// Manifest is a list of agent declarations in registration order.
type Manifest struct {
	Name   string  `json:"name,omitempty" yaml:"name,omitempty"`
	Agents []Entry `json:"agents" yaml:"agents"`
}

// Load reads a manifest, choosing the decoder by extension. Other
// extensions are sniffed like graph files.
func Load(path string) (*Manifest, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("manifest path is required")
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var m *Manifest
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		m, err = ParseJSON(data)
	case ".yaml", ".yml":
		m, err = ParseYAML(data)
	case ".hcl":
		m, err = ParseHCL(data, path)
	default:
		if bytes.HasPrefix(bytes.TrimSpace(data), []byte("{")) {
			m, err = ParseJSON(data)
		} else {
			m, err = ParseYAML(data)
		}
	}
	if err != nil {
		return nil, fmt.Errorf("load manifest %s: %w", path, err)
	}
	return m, nil
}

// ParseJSON decodes a JSON manifest.
func ParseJSON(data []byte) (*Manifest, error) {
	var m Manifest
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&m); err != nil {
		return nil, err
	}
	return &m, m.check()
}

// ParseYAML decodes a YAML manifest.
func ParseYAML(data []byte) (*Manifest, error) {
	var m Manifest
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&m); err != nil {
		return nil, err
	}
	return &m, m.check()
}

func (m *Manifest) check() error {
	if len(m.Agents) == 0 {
		return fmt.Errorf("manifest declares no agents")
	}
	for i, e := range m.Agents {
		if strings.TrimSpace(e.ID) == "" {
			return fmt.Errorf("agent %d: id is required", i)
		}
		if e.Provides.Empty() {
			return fmt.Errorf("agent %q: provides is required", e.ID)
		}
	}
	return nil
}

// FromAgents describes agents as a manifest.
func FromAgents(name string, agents []agent.Agent) *Manifest {
	m := &Manifest{Name: name, Agents: make([]Entry, 0, len(agents))}
	for _, a := range agents {
		e := Entry{ID: a.ID(), Provides: a.Provides(), Requires: a.Requires()}
		if d, ok := a.(interface{ Description() string }); ok {
			e.Description = d.Description()
		}
		m.Agents = append(m.Agents, e)
	}
	return m
}

// Descriptors returns the registry descriptors in declaration order.
func (m *Manifest) Descriptors() []registry.Descriptor {
	out := make([]registry.Descriptor, len(m.Agents))
	for i, e := range m.Agents {
		out[i] = registry.Descriptor{ID: e.ID, Provides: e.Provides, Requires: e.Requires}
	}
	return out
}

// Check registers every declaration in a fresh registry and returns it with
// all registration and dependency problems found.
func (m *Manifest) Check() (*registry.Registry, []error) {
	reg := registry.New()
	reg.RegisterAll(m.Descriptors()...)
	return reg, reg.Problems()
}

// Encode renders m as "yaml" or "json".
func (m *Manifest) Encode(format string) ([]byte, error) {
	switch strings.ToLower(format) {
	case "yaml", "yml", "":
		return yaml.Marshal(m)
	case "json":
		return json.MarshalIndent(m, "", "  ")
	}
	return nil, fmt.Errorf("unknown manifest format %q", format)
}
