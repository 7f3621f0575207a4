// Copyright 2026 © The Kairos Authors
// SPDX-License-Identifier: Apache-2.0

package capability

import (
	"encoding/json"
	"strings"

	"gopkg.in/yaml.v3"
)

// Set is an immutable-by-value set of capabilities.
type Set uint64

// NewSet builds a set from the given capabilities.
func NewSet(caps ...Capability) Set {
	var s Set
	for _, c := range caps {
		s = s.Add(c)
	}
	return s
}

// Add returns a copy of s including c.
func (s Set) Add(c Capability) Set {
	if !c.Valid() {
		return s
	}
	return s | 1<<c
}

// Has reports whether c is in s.
func (s Set) Has(c Capability) bool {
	return c.Valid() && s&(1<<c) != 0
}

// ContainsAll reports whether every member of other is in s.
func (s Set) ContainsAll(other Set) bool {
	return s&other == other
}

// Missing returns the members of s that are not in have.
func (s Set) Missing(have Set) Set {
	return s &^ have
}

// Union returns the members of either set.
func (s Set) Union(other Set) Set {
	return s | other
}

// Intersect returns the members of both sets.
func (s Set) Intersect(other Set) Set {
	return s & other
}

// Empty reports whether the set has no members.
func (s Set) Empty() bool { return s == 0 }

// Len returns the number of members.
func (s Set) Len() int {
	n := 0
	for v := s; v != 0; v &= v - 1 {
		n++
	}
	return n
}

// Slice returns the members in declaration order.
func (s Set) Slice() []Capability {
	out := make([]Capability, 0, s.Len())
	for c := Capability(0); c < count; c++ {
		if s.Has(c) {
			out = append(out, c)
		}
	}
	return out
}

// Strings returns the wire names of the members in declaration order.
func (s Set) Strings() []string {
	caps := s.Slice()
	out := make([]string, len(caps))
	for i, c := range caps {
		out[i] = c.String()
	}
	return out
}

func (s Set) String() string {
	return "{" + strings.Join(s.Strings(), ", ") + "}"
}

// MarshalJSON encodes the set as a list of wire names.
func (s Set) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.Strings())
}

// UnmarshalJSON decodes a list of wire names.
func (s *Set) UnmarshalJSON(data []byte) error {
	var names []string
	if err := json.Unmarshal(data, &names); err != nil {
		return err
	}
	return s.fromNames(names)
}

// MarshalYAML encodes the set as a list of wire names.
func (s Set) MarshalYAML() (any, error) {
	return s.Strings(), nil
}

// UnmarshalYAML decodes a list of wire names.
func (s *Set) UnmarshalYAML(node *yaml.Node) error {
	var names []string
	if err := node.Decode(&names); err != nil {
		return err
	}
	return s.fromNames(names)
}

// ParseSet builds a set from wire names, rejecting unknown ones.
func ParseSet(names ...string) (Set, error) {
	var s Set
	err := s.fromNames(names)
	return s, err
}

func (s *Set) fromNames(names []string) error {
	var out Set
	for _, name := range names {
		c, err := Parse(name)
		if err != nil {
			return err
		}
		out = out.Add(c)
	}
	*s = out
	return nil
}
