// Copyright 2026 © The Kairos Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"encoding/json"
	"fmt"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/jllopis/capflow/pkg/record"
)

func (a *app) historyCmd() *cobra.Command {
	var filter record.Filter
	cmd := &cobra.Command{
		Use:   "history [run-id]",
		Short: "List stored runs, or show one run's agents",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := a.loadConfig()
			if err != nil {
				return err
			}
			store, db, err := record.OpenSQLite(cfg.Record.Path)
			if err != nil {
				return fmt.Errorf("open run history: %w", err)
			}
			defer db.Close()

			var runs []*record.Record
			if len(args) == 1 {
				rec, err := store.Get(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				runs = []*record.Record{rec}
			} else if runs, err = store.List(cmd.Context(), filter); err != nil {
				return err
			}

			w := cmd.OutOrStdout()
			if a.flags.JSON {
				enc := json.NewEncoder(w)
				enc.SetIndent("", "  ")
				return enc.Encode(runs)
			}
			if len(runs) == 0 {
				fmt.Fprintln(w, "No runs recorded.")
				return nil
			}

			tw := tabwriter.NewWriter(w, 0, 2, 2, ' ', 0)
			fmt.Fprintln(tw, "RUN ID\tMODE\tSTATUS\tROUNDS\tAGENTS\tSTARTED\tDURATION")
			for _, r := range runs {
				fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%d\t%s\t%s\n",
					r.RunID, r.Mode, r.Status, r.Rounds, len(r.Entries),
					r.StartedAt.Local().Format(time.DateTime), runDuration(r))
			}
			if err := tw.Flush(); err != nil {
				return err
			}

			if len(args) == 1 {
				fmt.Fprintln(w)
				tw = tabwriter.NewWriter(w, 0, 2, 2, ' ', 0)
				fmt.Fprintln(tw, "AGENT\tROUND\tSTATUS\tPROVIDED\tERROR")
				for _, e := range runs[0].Entries {
					fmt.Fprintf(tw, "%s\t%d\t%s\t%s\t%s\n",
						e.AgentID, e.Round, e.Status, strings.Join(e.Provided, ","), e.Error)
				}
				return tw.Flush()
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&filter.Status, "status", "", "Only runs with this status")
	cmd.Flags().StringVar(&filter.Mode, "mode", "", "Only runs with this mode")
	cmd.Flags().IntVarP(&filter.Limit, "limit", "n", 20, "Maximum number of runs")
	return cmd
}

func runDuration(r *record.Record) string {
	if r.FinishedAt.IsZero() {
		return "-"
	}
	return r.FinishedAt.Sub(r.StartedAt).Round(time.Millisecond).String()
}
