// Ringscope - Fraud ring graphs you can explore.
// Copyright (c) 2025 opensource.finance
// Licensed under the Apache License 2.0

package main

import (
	"os"

	"github.com/opensource-finance/ringscope/internal/ui"
)

// Version information (set via ldflags)
var (
	Version   = "dev"
	Commit    = "none"
	BuildDate = "unknown"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		ui.Bad.Fprintf(os.Stderr, "ringscope: %v\n", err)
		os.Exit(1)
	}
}
