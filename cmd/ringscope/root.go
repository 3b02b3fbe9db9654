package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/opensource-finance/ringscope/internal/domain"
	"github.com/opensource-finance/ringscope/internal/ingest"
	"github.com/opensource-finance/ringscope/internal/ui"
)

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "ringscope",
		Short: "ringscope - interactive fraud ring graphs",
		Long: ui.Brand.Sprint("ringscope") + " - serve and inspect fraud-analysis transaction graphs\n" +
			ui.Subtle.Sprint("Upload an analysis result, then explore its rings live or from the terminal"),
		Version:       fmt.Sprintf("%s (commit %s, built %s)", Version, Commit, BuildDate),
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.SetVersionTemplate("ringscope {{ .Version }}\n")

	root.AddCommand(
		serveCmd(),
		projectCmd(),
		ringsCmd(),
	)
	return root
}

// readResult decodes and validates an analysis result file. "-" reads
// standard input.
func readResult(path string) (*domain.AnalysisResult, error) {
	if path == "-" {
		return ingest.Decode(os.Stdin)
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return ingest.Decode(f)
}
