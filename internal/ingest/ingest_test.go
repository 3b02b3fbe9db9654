package ingest

import (
	"errors"
	"strings"
	"testing"
)

const sampleResult = `{
  "summary": {"total_accounts_analyzed": 3, "suspicious_accounts_flagged": 1, "fraud_rings_detected": 1, "processing_time_seconds": 0.42},
  "suspicious_accounts": [
    {"account_id": "A", "suspicion_score": 80, "detected_patterns": ["cycle"], "ring_id": "R1"}
  ],
  "fraud_rings": [
    {"ring_id": "R1", "member_accounts": ["A", "B"], "pattern_type": "cycle", "risk_score": 95}
  ],
  "graph": {"edges": [
    {"source": "A", "target": "B", "amount": 1200.5, "timestamp": "2025-01-01T00:00:00Z"},
    {"source": "B", "target": "C"},
    {"source": "C", "target": "A"}
  ]},
  "engine_version": "2.1"
}`

func TestDecode(t *testing.T) {
	result, err := Decode(strings.NewReader(sampleResult))
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}

	if result.Summary.TotalAccountsAnalyzed != 3 || result.Summary.ProcessingTimeSeconds != 0.42 {
		t.Errorf("unexpected summary: %+v", result.Summary)
	}
	if len(result.Graph.Edges) != 3 || result.Graph.Edges[0].Amount != 1200.5 {
		t.Errorf("unexpected edges: %+v", result.Graph.Edges)
	}
	if result.SuspiciousAccounts[0].RingID != "R1" {
		t.Errorf("unexpected account: %+v", result.SuspiciousAccounts[0])
	}
}

func TestDecodeNormalizes(t *testing.T) {
	result, err := Decode(strings.NewReader(`{"graph": {"edges": [{"source": "A", "target": "B"}]}, "fraud_rings": [{"ring_id": "R1"}]}`))
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	if result.SuspiciousAccounts == nil {
		t.Error("expected empty suspicious accounts, got nil")
	}
	if result.FraudRings[0].MemberAccounts == nil {
		t.Error("expected empty member list, got nil")
	}
}

func TestDecodeRejects(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		wantMsg string
	}{
		{"Malformed", `{"graph": `, ""},
		{"MissingEdgeSource", `{"graph": {"edges": [{"target": "B"}]}}`, "graph.edges[0].source is required"},
		{"MissingAccountID", `{"suspicious_accounts": [{"suspicion_score": 4}]}`, "suspicious_accounts[0].account_id is required"},
		{"MissingRingID", `{"fraud_rings": [{"member_accounts": ["A"]}]}`, "fraud_rings[0].ring_id is required"},
		{"WrongType", `{"graph": {"edges": "nope"}}`, ""},
		{"Null", `null`, "result is required"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Decode(strings.NewReader(tt.body))
			if !errors.Is(err, ErrInvalidResult) {
				t.Fatalf("expected ErrInvalidResult, got %v", err)
			}
			if tt.wantMsg != "" && !strings.Contains(err.Error(), tt.wantMsg) {
				t.Errorf("expected %q in %q", tt.wantMsg, err.Error())
			}
		})
	}
}

func TestDecodeAllowsDanglingReferences(t *testing.T) {
	body := `{
		"suspicious_accounts": [{"account_id": "A", "suspicion_score": 10, "ring_id": "GHOST"}],
		"graph": {"edges": [{"source": "A", "target": "Z"}]}
	}`
	if _, err := Decode(strings.NewReader(body)); err != nil {
		t.Errorf("dangling ring ids must be accepted: %v", err)
	}
}

func TestDecodeUpload(t *testing.T) {
	t.Run("Envelope", func(t *testing.T) {
		up, err := DecodeUpload(strings.NewReader(`{"name": "march batch", "result": ` + sampleResult + `}`))
		if err != nil {
			t.Fatalf("DecodeUpload failed: %v", err)
		}
		if up.Name != "march batch" {
			t.Errorf("expected name, got %q", up.Name)
		}
		if len(up.Result.FraudRings) != 1 {
			t.Errorf("expected 1 ring, got %d", len(up.Result.FraudRings))
		}
	})

	t.Run("BareResult", func(t *testing.T) {
		up, err := DecodeUpload(strings.NewReader(sampleResult))
		if err != nil {
			t.Fatalf("DecodeUpload failed: %v", err)
		}
		if up.Name != "" || len(up.Result.Graph.Edges) != 3 {
			t.Errorf("unexpected upload: %+v", up)
		}
	})

	t.Run("NameTooLong", func(t *testing.T) {
		body := `{"name": "` + strings.Repeat("x", 201) + `", "result": {}}`
		_, err := DecodeUpload(strings.NewReader(body))
		if !errors.Is(err, ErrInvalidResult) || !strings.Contains(err.Error(), "name must be at most 200") {
			t.Errorf("expected name length error, got %v", err)
		}
	})

	t.Run("NullResult", func(t *testing.T) {
		for _, body := range []string{`null`, `{"name": "empty", "result": null}`, ` null `} {
			_, err := DecodeUpload(strings.NewReader(body))
			if !errors.Is(err, ErrInvalidResult) || !strings.Contains(err.Error(), "result is required") {
				t.Errorf("body %q: expected missing result error, got %v", body, err)
			}
		}
	})

	t.Run("InvalidNestedResult", func(t *testing.T) {
		_, err := DecodeUpload(strings.NewReader(`{"result": {"graph": {"edges": [{"source": "A"}]}}}`))
		if !errors.Is(err, ErrInvalidResult) {
			t.Errorf("expected ErrInvalidResult, got %v", err)
		}
	})
}

func TestValidateNil(t *testing.T) {
	if err := Validate(nil); !errors.Is(err, ErrInvalidResult) {
		t.Errorf("expected ErrInvalidResult, got %v", err)
	}
}
