package domain

import "time"

// AnalysisResult is the payload produced by the fraud-analysis backend.
// Ringscope treats it as read-only input.
type AnalysisResult struct {
	Summary            Summary             `json:"summary"`
	SuspiciousAccounts []SuspiciousAccount `json:"suspicious_accounts" validate:"dive"`
	FraudRings         []FraudRing         `json:"fraud_rings" validate:"dive"`
	Graph              Graph               `json:"graph"`
}

// Summary holds the headline counters shown on the stat cards.
type Summary struct {
	TotalAccountsAnalyzed     int     `json:"total_accounts_analyzed"`
	SuspiciousAccountsFlagged int     `json:"suspicious_accounts_flagged"`
	FraudRingsDetected        int     `json:"fraud_rings_detected"`
	ProcessingTimeSeconds     float64 `json:"processing_time_seconds"`
}

// SuspiciousAccount is an account flagged by the analysis engine.
type SuspiciousAccount struct {
	AccountID        string   `json:"account_id" validate:"required"`
	SuspicionScore   float64  `json:"suspicion_score"`
	DetectedPatterns []string `json:"detected_patterns"`

	// RingID is empty when the account is not part of any ring.
	RingID string `json:"ring_id"`
}

// FraudRing is a group of accounts suspected of acting together.
type FraudRing struct {
	RingID         string   `json:"ring_id" validate:"required"`
	MemberAccounts []string `json:"member_accounts"`
	PatternType    string   `json:"pattern_type"`
	RiskScore      float64  `json:"risk_score"`
}

// Graph wraps the transaction-flow edges.
type Graph struct {
	Edges []GraphEdge `json:"edges" validate:"dive"`
}

// GraphEdge is a directed money flow between two accounts.
// Parallel edges are distinct transactions and are never merged.
type GraphEdge struct {
	Source string `json:"source" validate:"required"`
	Target string `json:"target" validate:"required"`

	// Optional transaction details emitted by some backends.
	Amount    float64 `json:"amount,omitempty"`
	Timestamp string  `json:"timestamp,omitempty"`
}

// Normalize replaces nil sequences with empty ones so that downstream code
// and JSON output never see null arrays.
func (r *AnalysisResult) Normalize() {
	if r.SuspiciousAccounts == nil {
		r.SuspiciousAccounts = []SuspiciousAccount{}
	}
	for i := range r.SuspiciousAccounts {
		if r.SuspiciousAccounts[i].DetectedPatterns == nil {
			r.SuspiciousAccounts[i].DetectedPatterns = []string{}
		}
	}
	if r.FraudRings == nil {
		r.FraudRings = []FraudRing{}
	}
	for i := range r.FraudRings {
		if r.FraudRings[i].MemberAccounts == nil {
			r.FraudRings[i].MemberAccounts = []string{}
		}
	}
	if r.Graph.Edges == nil {
		r.Graph.Edges = []GraphEdge{}
	}
}

// Analysis is a stored analysis result.
type Analysis struct {
	ID        string          `json:"id"`
	TenantID  string          `json:"tenantId"`
	Name      string          `json:"name,omitempty"`
	CreatedAt time.Time       `json:"createdAt"`
	Result    *AnalysisResult `json:"result"`
}

// AnalysisSummary is the listing view of a stored analysis.
type AnalysisSummary struct {
	ID        string    `json:"id"`
	Name      string    `json:"name,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
	Summary   Summary   `json:"summary"`
}
