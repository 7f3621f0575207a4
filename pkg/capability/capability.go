// Copyright 2026 © The Kairos Authors
// SPDX-License-Identifier: Apache-2.0

// Package capability defines the closed set of capabilities agents use to
// declare what they produce and what they consume.
package capability

import (
	"fmt"
	"strings"
)

// Capability identifies a unit of produced or consumed work.
type Capability uint8

const (
	ParseData Capability = iota
	GenerateQuestions
	ProcessBenefits
	ProcessIngredients
	ProcessUsage
	ProcessSafety
	ProcessContent
	FillFAQ
	FillProductPage
	FillComparison
	FillTemplate
	ValidateOutput

	// count must stay last.
	count
)

// String returns the wire name of the capability.
func (c Capability) String() string {
	switch c {
	case ParseData:
		return "parse_data"
	case GenerateQuestions:
		return "generate_questions"
	case ProcessBenefits:
		return "process_benefits"
	case ProcessIngredients:
		return "process_ingredients"
	case ProcessUsage:
		return "process_usage"
	case ProcessSafety:
		return "process_safety"
	case ProcessContent:
		return "process_content"
	case FillFAQ:
		return "fill_faq"
	case FillProductPage:
		return "fill_product_page"
	case FillComparison:
		return "fill_comparison"
	case FillTemplate:
		return "fill_template"
	case ValidateOutput:
		return "validate_output"
	default:
		return fmt.Sprintf("capability(%d)", uint8(c))
	}
}

// Valid reports whether c is a member of the enumeration.
func (c Capability) Valid() bool {
	return c < count
}

// All returns every capability in declaration order.
func All() []Capability {
	out := make([]Capability, 0, count)
	for c := Capability(0); c < count; c++ {
		out = append(out, c)
	}
	return out
}

// Parse resolves a wire name (case-insensitive, dashes accepted) to a capability.
func Parse(name string) (Capability, error) {
	key := strings.ReplaceAll(strings.ToLower(strings.TrimSpace(name)), "-", "_")
	for c := Capability(0); c < count; c++ {
		if c.String() == key {
			return c, nil
		}
	}
	return 0, fmt.Errorf("unknown capability %q", name)
}

// MarshalText implements encoding.TextMarshaler.
func (c Capability) MarshalText() ([]byte, error) {
	if !c.Valid() {
		return nil, fmt.Errorf("invalid capability %d", uint8(c))
	}
	return []byte(c.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (c *Capability) UnmarshalText(text []byte) error {
	parsed, err := Parse(string(text))
	if err != nil {
		return err
	}
	*c = parsed
	return nil
}
