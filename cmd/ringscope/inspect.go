package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/opensource-finance/ringscope/internal/domain"
	"github.com/opensource-finance/ringscope/internal/focus"
	"github.com/opensource-finance/ringscope/internal/projector"
	"github.com/opensource-finance/ringscope/internal/render"
	"github.com/opensource-finance/ringscope/internal/style"
	"github.com/opensource-finance/ringscope/internal/ui"
)

func projectCmd() *cobra.Command {
	var (
		ring     string
		asJSON   bool
		elements bool
	)

	cmd := &cobra.Command{
		Use:   "project <result.json>",
		Short: "Print the projected graph of an analysis result",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			result, err := readResult(args[0])
			if err != nil {
				return err
			}
			g := projector.Project(result, ring)
			out := cmd.OutOrStdout()

			switch {
			case elements:
				sheet := style.Default()
				return writeIndented(out, render.Spec{
					Elements: sheet.Elements(g),
					Style:    sheet.Stylesheet(),
					Layout:   domain.DefaultViewConfig().Layout,
				})
			case asJSON:
				return writeIndented(out, g)
			}

			printGraph(out, g, ring)
			return nil
		},
	}
	cmd.Flags().StringVarP(&ring, "ring", "r", "", "Ring id to focus on")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print the projection as JSON")
	cmd.Flags().BoolVar(&elements, "elements", false, "Print styled engine elements as JSON")
	return cmd
}

func ringsCmd() *cobra.Command {
	var active string

	cmd := &cobra.Command{
		Use:   "rings <result.json>",
		Short: "List the ring focus actions of an analysis result",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			result, err := readResult(args[0])
			if err != nil {
				return err
			}
			sel := focus.NewSelector(result.FraudRings)
			if active != "" {
				sel.Select(active)
			}

			out := cmd.OutOrStdout()
			ui.Banner(out, "ring focus")
			printSummary(out, result.Summary)

			rows := make([][]string, 0, len(result.FraudRings)+1)
			for _, a := range sel.Actions() {
				rows = append(rows, []string{
					ui.Marker(a.Active),
					a.Label,
					a.PatternType,
					formatFloat(a.RiskScore),
					strconv.Itoa(a.Members),
				})
			}
			ui.Table(out, []string{"", "RING", "PATTERN", "RISK", "MEMBERS"}, rows)
			return nil
		},
	}
	cmd.Flags().StringVar(&active, "active", "", "Ring id to mark active")
	return cmd
}

func printGraph(w io.Writer, g *domain.ProjectedGraph, requested string) {
	title := "global view"
	if g.Filter != "" {
		title = "ring " + g.Filter
	}
	ui.Banner(w, title)
	if requested != "" && g.Filter == "" {
		ui.Warn.Fprintf(w, "  ring %q not found, showing global view\n\n", requested)
	}

	fmt.Fprintf(w, "  Nodes: %d   Edges: %d   Score domain: %s..%s\n\n",
		len(g.Nodes), len(g.Edges), formatFloat(g.ScoreDomain.Min), formatFloat(g.ScoreDomain.Max))

	rows := make([][]string, 0, len(g.Nodes))
	for _, n := range g.Nodes {
		rows = append(rows, []string{n.ID, formatFloat(n.Score), n.Patterns, n.RingID})
	}
	ui.Table(w, []string{"ACCOUNT", "SCORE", "PATTERNS", "RING"}, rows)
}

func printSummary(w io.Writer, s domain.Summary) {
	fmt.Fprintf(w, "  Accounts analyzed:   %d\n", s.TotalAccountsAnalyzed)
	fmt.Fprintf(w, "  Suspicious accounts: %d\n", s.SuspiciousAccountsFlagged)
	fmt.Fprintf(w, "  Fraud rings:         %d\n", s.FraudRingsDetected)
	fmt.Fprintf(w, "  Processing time:     %ss\n\n", formatFloat(s.ProcessingTimeSeconds))
}

func writeIndented(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
