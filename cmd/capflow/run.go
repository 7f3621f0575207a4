// Copyright 2026 © The Kairos Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/spf13/cobra"

	"github.com/jllopis/capflow/pkg/agent"
	"github.com/jllopis/capflow/pkg/bus"
	"github.com/jllopis/capflow/pkg/capability"
	"github.com/jllopis/capflow/pkg/config"
	"github.com/jllopis/capflow/pkg/content"
	"github.com/jllopis/capflow/pkg/errors"
	"github.com/jllopis/capflow/pkg/output"
	"github.com/jllopis/capflow/pkg/planner"
	"github.com/jllopis/capflow/pkg/record"
	"github.com/jllopis/capflow/pkg/scheduler"
	"github.com/jllopis/capflow/pkg/state"
	"github.com/jllopis/capflow/pkg/telemetry"
)

type runFlags struct {
	input  string
	mode   string
	output string
}

func (a *app) runCmd() *cobra.Command {
	var f runFlags
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Generate product pages from a product record",
		Long: `Run the content agents over a JSON product record and write the
FAQ, product and comparison pages to the output directory.

The dynamic mode schedules agents in rounds as their requirements become
available; the static mode runs them one at a time in topological order.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.runPipeline(cmd, f)
		},
	}
	cmd.Flags().StringVarP(&f.input, "input", "i", "", "Product record JSON file")
	cmd.Flags().StringVar(&f.mode, "mode", "", "Scheduling mode: dynamic or static (default from config)")
	cmd.Flags().StringVarP(&f.output, "output", "o", "", "Output directory (default from config)")
	_ = cmd.MarkFlagRequired("input")
	return cmd
}

func (a *app) runPipeline(cmd *cobra.Command, f runFlags) error {
	ctx := cmd.Context()
	if f.mode != "" {
		a.flags.Sets = append(a.flags.Sets, "scheduler.mode="+f.mode)
	}
	if f.output != "" {
		a.flags.Sets = append(a.flags.Sets, "output.dir="+f.output)
	}
	cfg, err := a.loadConfig()
	if err != nil {
		return err
	}

	logger := telemetry.NewLogger(cmd.ErrOrStderr(), cfg.Log.Level, cfg.Log.Format)
	shutdown, err := telemetry.InitWithConfig("capflow", version, telemetry.Config{
		Exporter:     cfg.Telemetry.Exporter,
		OTLPEndpoint: cfg.Telemetry.OTLPEndpoint,
		OTLPInsecure: cfg.Telemetry.OTLPInsecure,
		OTLPTimeout:  cfg.Telemetry.OTLPTimeout,
	})
	if err != nil {
		return fmt.Errorf("init telemetry: %w", err)
	}
	defer func() {
		sctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
		defer cancel()
		if err := shutdown(sctx); err != nil {
			logger.Warn("telemetry.shutdown_failed", slog.String("error", err.Error()))
		}
	}()
	metrics, err := telemetry.NewSchedulerMetrics()
	if err != nil {
		logger.Warn("telemetry.metrics_unavailable", slog.String("error", err.Error()))
	}

	raw, err := content.LoadRawProduct(f.input)
	if err != nil {
		return NewInputError(err, f.input)
	}
	provider, err := a.newProvider(cfg.LLM, logger)
	if err != nil {
		return NewConfigError(err, a.flags.ConfigPath)
	}
	store, db, err := record.OpenSQLite(cfg.Record.Path)
	if err != nil {
		return fmt.Errorf("open run history: %w", err)
	}
	defer db.Close()

	events := bus.New()
	events.Subscribe(bus.LogObserver(logger))
	events.Subscribe(bus.SpanObserver())

	policy, err := scheduler.ParseFailurePolicy(cfg.Scheduler.FailurePolicy)
	if err != nil {
		return NewConfigError(err, a.flags.ConfigPath)
	}
	opts := []scheduler.Option{
		scheduler.WithMaxRounds(cfg.Scheduler.MaxRounds),
		scheduler.WithConcurrency(cfg.Scheduler.Concurrency),
		scheduler.WithFailurePolicy(policy),
		scheduler.WithAgentTimeout(cfg.Scheduler.AgentTimeout),
		scheduler.WithGracePeriod(cfg.Scheduler.GracePeriod),
		scheduler.WithBus(events),
		scheduler.WithStore(store),
		scheduler.WithLogger(logger),
		scheduler.WithMetrics(metrics),
	}

	agents := content.New(provider, content.WithLogger(logger)).Agents(raw)
	res, runErr := execute(ctx, cfg.Scheduler, agents, opts)

	summary := newRunSummary(res, runErr)
	if res != nil && runErr == nil && res.Status == scheduler.Completed && len(res.Failed) == 0 {
		paths, err := output.WriteArtifacts(cfg.Output.Dir, res.State)
		if err != nil {
			runErr = fmt.Errorf("write artifacts: %w", err)
		}
		summary.Artifacts = paths
	}
	if res != nil {
		if err := a.printRunSummary(cmd, summary); err != nil {
			return err
		}
	}
	if runErr != nil {
		return runErr
	}
	return statusError(res)
}

// execute runs agents with the configured scheduling mode.
func execute(ctx context.Context, cfg config.SchedulerConfig, agents []agent.Agent, opts []scheduler.Option) (*scheduler.Result, error) {
	if cfg.Mode == planner.ModeStatic {
		graph, err := planner.Build(agent.DescribeAll(agents))
		if err != nil {
			return nil, err
		}
		return planner.NewExecutor(opts...).Execute(ctx, graph, agents, state.New(nil))
	}
	s, err := scheduler.New(agents, opts...)
	if err != nil {
		return nil, err
	}
	return s.Run(ctx, state.New(nil))
}

// statusError turns a run that stopped short of completion into an error.
func statusError(res *scheduler.Result) error {
	switch res.Status {
	case scheduler.Completed:
		if len(res.Failed) > 0 {
			return errors.New(errors.CodeAgentExecution, "run completed with agent failures", nil).
				WithContext("failed", res.Failed)
		}
		return nil
	case scheduler.Deadlocked:
		blocked := make(map[string][]string, len(res.Blocked))
		for _, b := range res.Blocked {
			blocked[b.AgentID] = b.Missing.Strings()
		}
		e := errors.New(errors.CodeUnsatisfiableDependency, "run deadlocked", nil).
			WithContext("blocked", blocked)
		if len(res.Failed) > 0 {
			e = errors.New(errors.CodeAgentExecution, "run deadlocked after agent failures", nil).
				WithContext("failed", res.Failed).
				WithContext("blocked", blocked)
		}
		return e
	case scheduler.MaxIterationsExceeded:
		return NewCLIError(
			errors.New(errors.CodeInternal, "round limit reached", nil).WithContext("rounds", res.RoundCount()),
			"raise scheduler.max_rounds",
		)
	}
	return errors.New(errors.CodeInternal, fmt.Sprintf("run %s", res.Status), nil)
}

func validationReport(st state.State) (content.Report, bool) {
	report, err := state.Value[content.Report](st, capability.ValidateOutput)
	return report, err == nil
}
