package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/fatih/color"

	"github.com/opensource-finance/ringscope/internal/domain"
)

const sampleResult = `{
  "summary": {"total_accounts_analyzed": 4, "suspicious_accounts_flagged": 1, "fraud_rings_detected": 1, "processing_time_seconds": 1.5},
  "suspicious_accounts": [{"account_id": "A", "suspicion_score": 80, "detected_patterns": ["cycle", "fan_in"], "ring_id": "R1"}],
  "fraud_rings": [{"ring_id": "R1", "member_accounts": ["A", "B"], "pattern_type": "cycle", "risk_score": 92.5}],
  "graph": {"edges": [{"source": "A", "target": "B"}, {"source": "B", "target": "A"}, {"source": "C", "target": "D"}]}
}`

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	color.NoColor = true

	path := filepath.Join(t.TempDir(), "result.json")
	if err := os.WriteFile(path, []byte(sampleResult), 0o600); err != nil {
		t.Fatalf("failed to write result: %v", err)
	}
	for i, a := range args {
		if a == "@result" {
			args[i] = path
		}
	}

	var out bytes.Buffer
	cmd := newRootCmd()
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestProjectCommand(t *testing.T) {
	t.Run("Table", func(t *testing.T) {
		out, err := run(t, "project", "@result")
		if err != nil {
			t.Fatalf("project failed: %v", err)
		}
		if !strings.Contains(out, "Nodes: 4   Edges: 3") {
			t.Errorf("expected counts, got:\n%s", out)
		}
		if !strings.Contains(out, "cycle, fan_in") {
			t.Errorf("expected joined patterns, got:\n%s", out)
		}
	})

	t.Run("Ring", func(t *testing.T) {
		out, err := run(t, "project", "@result", "--ring", "R1", "--json")
		if err != nil {
			t.Fatalf("project failed: %v", err)
		}
		var g domain.ProjectedGraph
		if err := json.Unmarshal([]byte(out), &g); err != nil {
			t.Fatalf("expected JSON output: %v", err)
		}
		if g.Filter != "R1" || len(g.Nodes) != 2 || len(g.Edges) != 2 {
			t.Errorf("unexpected projection: %+v", g)
		}
	})

	t.Run("UnknownRing", func(t *testing.T) {
		out, err := run(t, "project", "@result", "--ring", "R9")
		if err != nil {
			t.Fatalf("project failed: %v", err)
		}
		if !strings.Contains(out, `ring "R9" not found`) {
			t.Errorf("expected fallback warning, got:\n%s", out)
		}
	})

	t.Run("Elements", func(t *testing.T) {
		out, err := run(t, "project", "@result", "--elements")
		if err != nil {
			t.Fatalf("project failed: %v", err)
		}
		if !strings.Contains(out, `"group": "nodes"`) || !strings.Contains(out, `"selector": "edge"`) {
			t.Errorf("expected engine elements, got:\n%s", out)
		}
	})

	t.Run("MissingFile", func(t *testing.T) {
		if _, err := run(t, "project", "does-not-exist.json"); err == nil {
			t.Error("expected an error")
		}
	})
}

func TestRingsCommand(t *testing.T) {
	out, err := run(t, "rings", "@result", "--active", "R1")
	if err != nil {
		t.Fatalf("rings failed: %v", err)
	}
	for _, want := range []string{"Global View", "R1", "92.5", "Processing time:     1.5s"} {
		if !strings.Contains(out, want) {
			t.Errorf("expected %q in output:\n%s", want, out)
		}
	}
}
