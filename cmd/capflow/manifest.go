// Copyright 2026 © The Kairos Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"encoding/json"
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/jllopis/capflow/pkg/content"
	"github.com/jllopis/capflow/pkg/errors"
	"github.com/jllopis/capflow/pkg/manifest"
	"github.com/jllopis/capflow/pkg/planner"
)

// builtinName labels the content agent set when no manifest is given.
const builtinName = "content"

// loadManifest reads path, or describes the built-in content agents when
// path is empty.
func loadManifest(path string) (*manifest.Manifest, error) {
	if path == "" {
		agents := content.New(nil).Agents(content.RawProduct{})
		return manifest.FromAgents(builtinName, agents), nil
	}
	m, err := manifest.Load(path)
	if err != nil {
		e := errors.New(errors.CodeInvalidInput, "invalid manifest", err).WithContext("path", path)
		return nil, NewCLIError(e, "manifests list agents with id, provides and requires")
	}
	return m, nil
}

type validateResult struct {
	Manifest string   `json:"manifest"`
	Agents   int      `json:"agents"`
	Order    []string `json:"order,omitempty"`
	Problems []string `json:"problems,omitempty"`
	Overall  string   `json:"overall"`
}

func (a *app) validateCmd() *cobra.Command {
	var path string
	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Check an agent manifest for duplicate providers, missing providers and cycles",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			m, err := loadManifest(path)
			if err != nil {
				return err
			}
			result := validateResult{Manifest: path, Agents: len(m.Agents), Overall: "ok"}
			if path == "" {
				result.Manifest = builtinName
			}

			_, problems := m.Check()
			for _, p := range problems {
				result.Problems = append(result.Problems, p.Error())
			}
			if len(problems) == 0 {
				graph, err := planner.Build(m.Descriptors())
				if err != nil {
					problems = append(problems, err)
					result.Problems = append(result.Problems, err.Error())
				} else {
					result.Order, _ = graph.TopologicalOrder()
				}
			}
			if len(problems) > 0 {
				result.Overall = "error"
			}

			w := cmd.OutOrStdout()
			if a.flags.JSON {
				enc := json.NewEncoder(w)
				enc.SetIndent("", "  ")
				if err := enc.Encode(result); err != nil {
					return err
				}
			} else {
				fmt.Fprintf(w, "Manifest %s: %d agents\n", result.Manifest, result.Agents)
				for _, p := range result.Problems {
					fmt.Fprintf(w, "  %s %s\n", color.RedString("✗"), p)
				}
				if len(problems) == 0 {
					fmt.Fprintf(w, "  %s dependencies satisfiable\n", color.GreenString("✓"))
					for i, id := range result.Order {
						fmt.Fprintf(w, "  %2d. %s\n", i+1, id)
					}
				}
			}
			if len(problems) > 0 {
				return problems[0]
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&path, "manifest", "m", "", "Agent manifest (YAML, JSON or HCL); defaults to the built-in content agents")
	return cmd
}

type graphResult struct {
	Format  string `json:"format"`
	Content string `json:"content"`
	Nodes   int    `json:"nodes"`
	Edges   int    `json:"edges"`
}

func (a *app) graphCmd() *cobra.Command {
	var path, plan, format string
	cmd := &cobra.Command{
		Use:   "graph",
		Short: "Render the agent dependency graph",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			graph, err := loadGraph(path, plan)
			if err != nil {
				return err
			}
			out, err := planner.Render(graph, format)
			if err != nil {
				return NewInvalidArgumentError("format", err.Error())
			}

			w := cmd.OutOrStdout()
			if a.flags.JSON {
				enc := json.NewEncoder(w)
				enc.SetIndent("", "  ")
				return enc.Encode(graphResult{Format: format, Content: out, Nodes: len(graph.Nodes), Edges: len(graph.Edges)})
			}
			fmt.Fprintln(w, out)
			return nil
		},
	}
	cmd.Flags().StringVarP(&path, "manifest", "m", "", "Agent manifest (YAML, JSON or HCL); defaults to the built-in content agents")
	cmd.Flags().StringVar(&plan, "plan", "", "Saved plan (graph --format json|yaml output) to render instead of a manifest")
	cmd.Flags().StringVarP(&format, "format", "f", "mermaid", "Output format: mermaid, dot, json, yaml")
	return cmd
}

// loadGraph builds the graph from a manifest, or reads a previously saved
// plan when plan is set.
func loadGraph(manifestPath, plan string) (*planner.Graph, error) {
	if plan != "" {
		graph, err := planner.LoadGraph(plan)
		if err != nil {
			return nil, NewInputError(err, plan)
		}
		return graph, nil
	}
	m, err := loadManifest(manifestPath)
	if err != nil {
		return nil, err
	}
	graph, err := planner.Build(m.Descriptors())
	if err != nil {
		return nil, err
	}
	graph.ID = m.Name
	return graph, nil
}
