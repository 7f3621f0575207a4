// Copyright 2026 © The Kairos Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/jllopis/capflow/pkg/content"
	"github.com/jllopis/capflow/pkg/record"
	"github.com/jllopis/capflow/pkg/scheduler"
)

type runSummary struct {
	RunID      string          `json:"run_id"`
	Mode       string          `json:"mode"`
	Status     string          `json:"status"`
	Rounds     [][]string      `json:"rounds"`
	Agents     []record.Entry  `json:"agents"`
	Blocked    []string        `json:"blocked,omitempty"`
	Validation *content.Report `json:"validation,omitempty"`
	Artifacts  []string        `json:"artifacts,omitempty"`
	Error      string          `json:"error,omitempty"`
}

func newRunSummary(res *scheduler.Result, err error) *runSummary {
	s := &runSummary{}
	if err != nil {
		s.Error = err.Error()
	}
	if res == nil {
		return s
	}
	s.RunID = res.RunID
	s.Mode = res.Mode
	s.Status = string(res.Status)
	s.Rounds = res.Rounds
	if res.Record != nil {
		s.Agents = res.Record.Copy().Entries
	}
	for _, b := range res.Blocked {
		s.Blocked = append(s.Blocked, fmt.Sprintf("%s (missing %s)", b.AgentID, b.Missing))
	}
	if report, ok := validationReport(res.State); ok {
		s.Validation = &report
	}
	return s
}

func (a *app) printRunSummary(cmd *cobra.Command, s *runSummary) error {
	w := cmd.OutOrStdout()
	if a.flags.JSON {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(s)
	}

	bold := color.New(color.Bold)
	bold.Fprintf(w, "Run %s (%s): ", s.RunID, s.Mode)
	fmt.Fprintln(w, statusColor(s.Status).Sprint(s.Status))

	fmt.Fprintln(w)
	bold.Fprintln(w, "Execution order")
	for i, round := range s.Rounds {
		ids := append([]string(nil), round...)
		sort.Strings(ids)
		fmt.Fprintf(w, "  %2d. %s\n", i+1, strings.Join(ids, ", "))
	}

	fmt.Fprintln(w)
	bold.Fprintln(w, "Agents")
	tw := tabwriter.NewWriter(w, 0, 2, 2, ' ', 0)
	for _, e := range s.Agents {
		round := "-"
		if e.Round > 0 {
			round = fmt.Sprintf("%d", e.Round)
		}
		detail := e.Error
		if detail == "" {
			detail = strings.Join(e.Provided, ", ")
		}
		fmt.Fprintf(tw, "  %s\t%s\t%s\t%s\t%s\n",
			entrySymbol(e.Status), e.AgentID, round, e.Duration().Round(time.Millisecond), detail)
	}
	tw.Flush()

	if len(s.Blocked) > 0 {
		fmt.Fprintln(w)
		bold.Fprintln(w, "Blocked")
		for _, b := range s.Blocked {
			fmt.Fprintf(w, "  %s %s\n", color.YellowString("⚠"), b)
		}
	}

	if s.Validation != nil {
		fmt.Fprintln(w)
		bold.Fprintln(w, "Validation")
		printValidation(w, s.Validation)
	}

	if len(s.Artifacts) > 0 {
		fmt.Fprintln(w)
		bold.Fprintln(w, "Artifacts")
		for _, p := range s.Artifacts {
			fmt.Fprintf(w, "  %s %s\n", color.GreenString("✓"), p)
		}
	}
	return nil
}

func printValidation(w io.Writer, r *content.Report) {
	for _, page := range []string{content.PageFAQ, content.PageProduct, content.PageComparison} {
		if msg, bad := r.Errors[page]; bad {
			fmt.Fprintf(w, "  %s %s: %s\n", color.RedString("✗"), page, msg)
			continue
		}
		fmt.Fprintf(w, "  %s %s\n", color.GreenString("✓"), page)
	}
}

func statusColor(status string) *color.Color {
	switch scheduler.Status(status) {
	case scheduler.Completed:
		return color.New(color.FgGreen, color.Bold)
	case scheduler.Deadlocked, scheduler.MaxIterationsExceeded:
		return color.New(color.FgYellow, color.Bold)
	}
	return color.New(color.FgRed, color.Bold)
}

func entrySymbol(s record.EntryStatus) string {
	switch s {
	case record.StatusCompleted:
		return color.GreenString("✓")
	case record.StatusSkipped:
		return color.CyanString("↷")
	case record.StatusNotExecuted:
		return color.YellowString("·")
	case record.StatusTimeout:
		return color.RedString("⏱")
	}
	return color.RedString("✗")
}
