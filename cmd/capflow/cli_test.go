// Copyright 2026 © The Kairos Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/jllopis/capflow/pkg/config"
	"github.com/jllopis/capflow/pkg/errors"
	"github.com/jllopis/capflow/pkg/llm"
	"github.com/jllopis/capflow/pkg/scheduler"
)

func runCLI(t *testing.T, a *app, args ...string) (string, error) {
	t.Helper()
	root := a.rootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(args)
	err := root.ExecuteContext(context.Background())
	return out.String(), err
}

func writeFile(t *testing.T, dir, name, body string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
	return path
}

// cannedProvider answers the content prompts with fixed text.
func cannedProvider() llm.Provider {
	return &llm.MockProvider{ChatFunc: func(_ context.Context, req llm.ChatRequest) (*llm.ChatResponse, error) {
		user := llm.LastUser(req)
		var out string
		switch {
		case strings.Contains(user, "user questions"):
			var sb strings.Builder
			for i := 0; i < 15; i++ {
				fmt.Fprintf(&sb, "[Usage] How do I use it, take %d?\n", i+1)
			}
			out = sb.String()
		case strings.Contains(user, "benefits of this product"):
			out = `{"primary_benefit": "Brightening"}`
		case strings.Contains(user, "key ingredients"):
			out = `{"ingredient_synergy": "good"}`
		case strings.Contains(user, "usage guidance"):
			out = `{"steps": ["Apply"]}`
		case strings.Contains(user, "safety guidance"):
			out = `{"patch_test": "arm"}`
		case strings.Contains(user, "fictional competing product"):
			out = `{"name": "Other Serum", "price": 500}`
		case strings.Contains(user, "Compare these two"):
			out = `{"recommendation": "either"}`
		default:
			out = "Fine."
		}
		return &llm.ChatResponse{Content: out}, nil
	}}
}

func testApp(p llm.Provider) *app {
	a := newApp()
	a.newProvider = func(config.LLMConfig, *slog.Logger) (llm.Provider, error) { return p, nil }
	return a
}

const product = `{
  "product_name": "GlowBoost Vitamin C Serum",
  "concentration": "10% Vitamin C",
  "skin_type": "Oily, Combination",
  "key_ingredients": "Vitamin C, Hyaluronic Acid",
  "benefits": "Brightening, Fades dark spots",
  "how_to_use": "Apply 2–3 drops in the morning before sunscreen",
  "side_effects": "Mild tingling for sensitive skin",
  "price": "₹699"
}`

func TestRunWritesArtifactsAndHistory(t *testing.T) {
	dir := t.TempDir()
	input := writeFile(t, dir, "product.json", product)
	outDir := filepath.Join(dir, "out")
	history := "record.path=" + filepath.Join(dir, "history.db")

	for _, mode := range []string{"dynamic", "static"} {
		out, err := runCLI(t, testApp(cannedProvider()),
			"run", "--input", input, "--output", outDir, "--mode", mode,
			"--set", history, "--set", "log.level=error")
		if err != nil {
			t.Fatalf("%s run failed: %v\n%s", mode, err, out)
		}
		if !strings.Contains(out, "completed") {
			t.Fatalf("%s summary missing status:\n%s", mode, out)
		}
	}

	for _, name := range []string{"faq.json", "product_page.json", "comparison_page.json"} {
		data, err := os.ReadFile(filepath.Join(outDir, name))
		if err != nil {
			t.Fatalf("missing artifact %s: %v", name, err)
		}
		var page map[string]any
		if err := json.Unmarshal(data, &page); err != nil {
			t.Fatalf("artifact %s is not JSON: %v", name, err)
		}
	}

	out, err := runCLI(t, newApp(), "history", "--json", "--set", history)
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	var runs []map[string]any
	if err := json.Unmarshal([]byte(out), &runs); err != nil {
		t.Fatalf("history output: %v\n%s", err, out)
	}
	if len(runs) != 2 || runs[0]["mode"] != "static" || runs[1]["mode"] != "dynamic" {
		t.Fatalf("unexpected history %v", runs)
	}

	out, err = runCLI(t, newApp(), "history", "--status", "completed", "--mode", "dynamic", "--set", history)
	if err != nil || strings.Count(out, "dynamic") != 1 {
		t.Fatalf("filtered history: %v\n%s", err, out)
	}
}

func TestRunProviderFailureExitCode(t *testing.T) {
	dir := t.TempDir()
	input := writeFile(t, dir, "product.json", product)
	a := testApp(&llm.FailingMockProvider{})

	root := a.rootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs([]string{"run", "--input", input, "--output", filepath.Join(dir, "out"), "--set", "log.level=error"})
	err := root.ExecuteContext(context.Background())
	if err == nil {
		t.Fatal("expected run to fail")
	}
	if code := a.report(root, err); code != 4 {
		t.Fatalf("expected exit code 4, got %d\n%s", code, out.String())
	}
	if _, err := os.Stat(filepath.Join(dir, "out", "faq.json")); !os.IsNotExist(err) {
		t.Fatalf("no artifacts expected after a failed run, stat err %v", err)
	}
}

func TestRunRejectsMissingInput(t *testing.T) {
	a := testApp(cannedProvider())
	root := a.rootCmd()
	root.SetOut(&bytes.Buffer{})
	root.SetErr(&bytes.Buffer{})
	root.SetArgs([]string{"run", "--input", filepath.Join(t.TempDir(), "missing.json")})
	err := root.ExecuteContext(context.Background())
	if code := a.report(root, err); code != 2 {
		t.Fatalf("expected exit code 2, got %d (%v)", code, err)
	}
}

func TestRunRejectsPartialPolicyInStaticMode(t *testing.T) {
	dir := t.TempDir()
	input := writeFile(t, dir, "product.json", product)
	a := testApp(cannedProvider())
	root := a.rootCmd()
	root.SetOut(&bytes.Buffer{})
	root.SetErr(&bytes.Buffer{})
	root.SetArgs([]string{"run", "--input", input, "--mode", "static", "--set", "scheduler.failure_policy=partial"})
	err := root.ExecuteContext(context.Background())
	if code := a.report(root, err); code != 2 {
		t.Fatalf("expected exit code 2, got %d (%v)", code, err)
	}
}

func TestStatusErrorReportsFailuresOnCompletedRun(t *testing.T) {
	if err := statusError(&scheduler.Result{Status: scheduler.Completed}); err != nil {
		t.Fatalf("clean run must not fail: %v", err)
	}
	err := statusError(&scheduler.Result{Status: scheduler.Completed, Failed: []string{"faq_filler"}})
	if err == nil || errors.AsError(err).Code != errors.CodeAgentExecution {
		t.Fatalf("expected agent execution error, got %v", err)
	}
}

func TestValidateBuiltinJSON(t *testing.T) {
	out, err := runCLI(t, newApp(), "validate", "--json")
	if err != nil {
		t.Fatalf("validate: %v", err)
	}
	var res validateResult
	if err := json.Unmarshal([]byte(out), &res); err != nil {
		t.Fatalf("decode: %v\n%s", err, out)
	}
	if res.Overall != "ok" || res.Agents != 12 || res.Order[0] != "data_parser" {
		t.Fatalf("unexpected result %+v", res)
	}
}

func TestValidateReportsDuplicateProvider(t *testing.T) {
	path := writeFile(t, t.TempDir(), "agents.yaml", `agents:
  - id: a
    provides: [parse_data]
  - id: b
    provides: [parse_data]
`)
	a := newApp()
	root := a.rootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs([]string{"validate", "--manifest", path})
	err := root.ExecuteContext(context.Background())
	if err == nil {
		t.Fatal("expected validation failure")
	}
	if code := a.report(root, err); code != 3 {
		t.Fatalf("expected exit code 3, got %d", code)
	}
	if !strings.Contains(out.String(), "DUPLICATE_CAPABILITY") {
		t.Fatalf("expected typed error output, got:\n%s", out.String())
	}
}

func TestGraphFormats(t *testing.T) {
	out, err := runCLI(t, newApp(), "graph")
	if err != nil {
		t.Fatalf("graph: %v", err)
	}
	if !strings.Contains(out, "data_parser -->|parse_data| question_generator") {
		t.Fatalf("expected mermaid edge, got:\n%s", out)
	}
	if !strings.Contains(out, "style data_parser fill:#90EE90") {
		t.Fatalf("expected root highlight, got:\n%s", out)
	}

	out, err = runCLI(t, newApp(), "graph", "--format", "dot")
	if err != nil || !strings.Contains(out, `"faq_filler" -> "page_assembler" [label="fill_faq"];`) {
		t.Fatalf("dot output: %v\n%s", err, out)
	}

	if _, err := runCLI(t, newApp(), "graph", "--format", "svg"); err == nil {
		t.Fatal("expected unknown format error")
	}
}

func TestGraphRendersSavedPlan(t *testing.T) {
	saved, err := runCLI(t, newApp(), "graph", "--format", "yaml")
	if err != nil {
		t.Fatalf("graph yaml: %v", err)
	}
	plan := writeFile(t, t.TempDir(), "plan.yaml", saved)

	out, err := runCLI(t, newApp(), "graph", "--plan", plan, "--format", "dot")
	if err != nil {
		t.Fatalf("render saved plan: %v\n%s", err, out)
	}
	if !strings.Contains(out, `"faq_filler" -> "page_assembler" [label="fill_faq"];`) {
		t.Fatalf("saved plan lost edges:\n%s", out)
	}
}
