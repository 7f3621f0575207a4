// Copyright 2026 © The Kairos Authors
// SPDX-License-Identifier: Apache-2.0

package planner

import (
	"os"
	"path/filepath"
	"reflect"
	"testing"

	"github.com/jllopis/capflow/pkg/capability"
)

func TestParseJSON(t *testing.T) {
	payload := []byte(`{
  "id": "graph-json",
  "nodes": [
    { "id": "parser", "provides": ["parse_data"] },
    { "id": "questions", "provides": ["generate_questions"], "requires": ["parse_data"] }
  ],
  "edges": [
    { "from": "parser", "to": "questions", "capability": "parse_data" }
  ]
}`)
	graph, err := ParseJSON(payload)
	if err != nil {
		t.Fatalf("parse json: %v", err)
	}
	if graph.ID != "graph-json" {
		t.Fatalf("unexpected graph id: %q", graph.ID)
	}
	n, ok := graph.Node("questions")
	if !ok || !n.Requires.Has(capability.ParseData) {
		t.Fatalf("unexpected node: %+v", n)
	}
	if graph.Edges[0].Capability != capability.ParseData {
		t.Fatalf("unexpected edge capability: %s", graph.Edges[0].Capability)
	}
}

func TestParseYAML(t *testing.T) {
	payload := []byte(`
id: graph-yaml
nodes:
  - id: parser
    provides: [parse_data]
  - id: questions
    provides: [generate_questions]
    requires: [parse_data]
edges:
  - from: parser
    to: questions
    capability: parse_data
`)
	graph, err := ParseYAML(payload)
	if err != nil {
		t.Fatalf("parse yaml: %v", err)
	}
	order, err := graph.TopologicalOrder()
	if err != nil {
		t.Fatalf("order: %v", err)
	}
	if !reflect.DeepEqual(order, []string{"parser", "questions"}) {
		t.Fatalf("unexpected order %v", order)
	}
}

func TestParseRejectsUnknownCapability(t *testing.T) {
	payload := []byte(`{"nodes": [{"id": "x", "provides": ["teleport"]}]}`)
	if _, err := ParseJSON(payload); err == nil {
		t.Fatal("expected error for unknown capability")
	}
	if _, err := ParseJSON(nil); err == nil {
		t.Fatal("expected error for empty payload")
	}
}

func TestMarshalRoundTrip(t *testing.T) {
	graph, err := Build(diamondDescs())
	if err != nil {
		t.Fatalf("build: %v", err)
	}

	jsonPayload, err := MarshalJSON(graph, true)
	if err != nil {
		t.Fatalf("marshal json: %v", err)
	}
	parsedJSON, err := ParseJSON(jsonPayload)
	if err != nil {
		t.Fatalf("parse json: %v", err)
	}
	if !reflect.DeepEqual(parsedJSON, graph) {
		t.Fatalf("json round-trip mismatch: %+v", parsedJSON)
	}

	yamlPayload, err := MarshalYAML(graph)
	if err != nil {
		t.Fatalf("marshal yaml: %v", err)
	}
	parsedYAML, err := ParseYAML(yamlPayload)
	if err != nil {
		t.Fatalf("parse yaml: %v", err)
	}
	if !reflect.DeepEqual(parsedYAML.Descriptors(), graph.Descriptors()) {
		t.Fatalf("yaml round-trip mismatch: %+v", parsedYAML)
	}
}

func TestLoadGraph(t *testing.T) {
	graph, err := Build(diamondDescs())
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	data, err := MarshalYAML(graph)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	dir := t.TempDir()
	for _, name := range []string{"plan.yaml", "plan.txt"} {
		path := filepath.Join(dir, name)
		if err := os.WriteFile(path, data, 0o600); err != nil {
			t.Fatalf("write: %v", err)
		}
		loaded, err := LoadGraph(path)
		if err != nil {
			t.Fatalf("load %s: %v", name, err)
		}
		if len(loaded.Nodes) != 4 {
			t.Fatalf("%s: expected 4 nodes, got %d", name, len(loaded.Nodes))
		}
	}
	if _, err := LoadGraph(" "); err == nil {
		t.Fatal("expected error for blank path")
	}
}
