// Copyright 2026 © The Kairos Authors
// SPDX-License-Identifier: Apache-2.0

package manifest

import (
	"fmt"

	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/hashicorp/hcl/v2/hclparse"

	"github.com/jllopis/capflow/pkg/capability"
)

// hclFile is the decoding target of an HCL manifest:
//
//	name = "content"
//
//	agent "data_parser" {
//	  provides = ["parse_data"]
//	}
type hclFile struct {
	Name   string     `hcl:"name,optional"`
	Agents []hclAgent `hcl:"agent,block"`
}

type hclAgent struct {
	ID          string   `hcl:"id,label"`
	Description string   `hcl:"description,optional"`
	Provides    []string `hcl:"provides"`
	Requires    []string `hcl:"requires,optional"`
}

// ParseHCL decodes an HCL manifest. filename only labels diagnostics.
func ParseHCL(data []byte, filename string) (*Manifest, error) {
	f, diags := hclparse.NewParser().ParseHCL(data, filename)
	if diags.HasErrors() {
		return nil, fmt.Errorf("parse hcl: %w", diags)
	}
	var parsed hclFile
	if diags := gohcl.DecodeBody(f.Body, nil, &parsed); diags.HasErrors() {
		return nil, fmt.Errorf("decode hcl: %w", diags)
	}

	m := &Manifest{Name: parsed.Name, Agents: make([]Entry, 0, len(parsed.Agents))}
	for _, a := range parsed.Agents {
		provides, err := capability.ParseSet(a.Provides...)
		if err != nil {
			return nil, fmt.Errorf("agent %q: %w", a.ID, err)
		}
		requires, err := capability.ParseSet(a.Requires...)
		if err != nil {
			return nil, fmt.Errorf("agent %q: %w", a.ID, err)
		}
		m.Agents = append(m.Agents, Entry{
			ID:          a.ID,
			Description: a.Description,
			Provides:    provides,
			Requires:    requires,
		})
	}
	return m, m.check()
}
