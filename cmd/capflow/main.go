// Copyright 2026 © The Kairos Authors
// SPDX-License-Identifier: Apache-2.0

// Command capflow runs the product content agents and inspects agent
// manifests and run history.
package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/jllopis/capflow/pkg/config"
	"github.com/jllopis/capflow/pkg/llm"
)

var version = "dev"

type globalFlags struct {
	ConfigPath string
	Profile    string
	Sets       []string
	JSON       bool
}

// app carries the global flags and the seams tests replace.
type app struct {
	flags       globalFlags
	newProvider func(cfg config.LLMConfig, logger *slog.Logger) (llm.Provider, error)
}

func newApp() *app {
	return &app{
		newProvider: func(cfg config.LLMConfig, logger *slog.Logger) (llm.Provider, error) {
			return llm.FromConfig(cfg, logger)
		},
	}
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a := newApp()
	root := a.rootCmd()
	if err := root.ExecuteContext(ctx); err != nil {
		os.Exit(a.report(root, err))
	}
}

func (a *app) rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "capflow",
		Short: "Dependency-driven agent scheduler",
		Long: `capflow schedules agents by the capabilities they provide and require.

An agent runs once everything it requires is present in the shared state.
Agents whose requirements are met in the same round run concurrently.`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	pf := root.PersistentFlags()
	pf.StringVar(&a.flags.ConfigPath, "config", "", "Path to YAML or JSON config file")
	pf.StringVar(&a.flags.Profile, "profile", "", "Config profile overlay (config.<profile>.yaml)")
	pf.StringArrayVar(&a.flags.Sets, "set", nil, "Override a config value (key=value), repeatable")
	pf.BoolVar(&a.flags.JSON, "json", false, "Print machine readable JSON")

	root.AddCommand(a.runCmd(), a.validateCmd(), a.graphCmd(), a.historyCmd())
	return root
}

func (a *app) loadConfig() (*config.Config, error) {
	cfg, err := config.LoadWithOverrides(a.flags.ConfigPath, a.flags.Profile, a.flags.Sets)
	if err != nil {
		return nil, NewConfigError(err, a.flags.ConfigPath)
	}
	return cfg, nil
}
