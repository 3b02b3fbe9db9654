// Package projector derives renderable graphs from analysis results.
package projector

import (
	"fmt"
	"sort"
	"strings"

	"github.com/opensource-finance/ringscope/internal/domain"
)

// GlobalView is the ring filter that shows every edge.
const GlobalView = ""

// defaultScoreMax is the upper bound of the nominal suspicion score range.
const defaultScoreMax = 100.0

// Index holds the lookups a projection needs.
type Index struct {
	accounts map[string]domain.SuspiciousAccount
	rings    map[string]map[string]struct{}
}

// NewIndex builds lookups over a result. Duplicate account or ring ids
// resolve to the last record.
func NewIndex(result *domain.AnalysisResult) *Index {
	idx := &Index{
		accounts: make(map[string]domain.SuspiciousAccount),
		rings:    make(map[string]map[string]struct{}),
	}
	if result == nil {
		return idx
	}

	for _, a := range result.SuspiciousAccounts {
		idx.accounts[a.AccountID] = a
	}
	for _, r := range result.FraudRings {
		members := make(map[string]struct{}, len(r.MemberAccounts))
		for _, m := range r.MemberAccounts {
			members[m] = struct{}{}
		}
		idx.rings[r.RingID] = members
	}
	return idx
}

// Account returns the suspicious-account record for an id.
func (idx *Index) Account(id string) (domain.SuspiciousAccount, bool) {
	a, ok := idx.accounts[id]
	return a, ok
}

// HasRing reports whether a ring id resolves.
func (idx *Index) HasRing(ringID string) bool {
	_, ok := idx.rings[ringID]
	return ok
}

// InRing reports whether both endpoints of an edge belong to the ring.
func (idx *Index) InRing(ringID string, e domain.GraphEdge) bool {
	members, ok := idx.rings[ringID]
	if !ok {
		return false
	}
	_, src := members[e.Source]
	_, dst := members[e.Target]
	return src && dst
}

// Attributes returns the visual attributes of a node.
func (idx *Index) Attributes(id string) domain.ProjectedNode {
	node := domain.ProjectedNode{
		ID:       id,
		Score:    0,
		Patterns: domain.NoPatterns,
		RingID:   domain.NoRing,
	}

	a, ok := idx.accounts[id]
	if !ok {
		return node
	}

	node.Score = a.SuspicionScore
	if len(a.DetectedPatterns) > 0 {
		node.Patterns = strings.Join(a.DetectedPatterns, ", ")
	}
	if a.RingID != "" && idx.HasRing(a.RingID) {
		node.RingID = a.RingID
	}
	return node
}

// Project derives the node and edge set for a ring filter. An empty filter,
// or one that names no known ring, yields the unfiltered graph.
func Project(result *domain.AnalysisResult, ringFilter string) *domain.ProjectedGraph {
	return NewIndex(result).Project(result, ringFilter)
}

// Project is like the package-level Project but reuses a prebuilt index.
func (idx *Index) Project(result *domain.AnalysisResult, ringFilter string) *domain.ProjectedGraph {
	g := &domain.ProjectedGraph{
		Nodes:       []domain.ProjectedNode{},
		Edges:       []domain.ProjectedEdge{},
		ScoreDomain: domain.ScoreDomain{Min: 0, Max: defaultScoreMax},
	}
	if result == nil {
		return g
	}

	edges := result.Graph.Edges
	if ringFilter != GlobalView && idx.HasRing(ringFilter) {
		g.Filter = ringFilter
		edges = make([]domain.GraphEdge, 0, len(result.Graph.Edges))
		for _, e := range result.Graph.Edges {
			if idx.InRing(ringFilter, e) {
				edges = append(edges, e)
			}
		}
	}

	seen := make(map[string]struct{}, len(edges))
	for i, e := range edges {
		g.Edges = append(g.Edges, domain.ProjectedEdge{
			ID:     fmt.Sprintf("edge-%d", i),
			Source: e.Source,
			Target: e.Target,
		})
		for _, id := range [2]string{e.Source, e.Target} {
			if _, ok := seen[id]; ok {
				continue
			}
			seen[id] = struct{}{}
			node := idx.Attributes(id)
			if node.Score > g.ScoreDomain.Max {
				g.ScoreDomain.Max = node.Score
			}
			g.Nodes = append(g.Nodes, node)
		}
	}

	sort.Slice(g.Nodes, func(i, j int) bool { return g.Nodes[i].ID < g.Nodes[j].ID })
	return g
}

// Resolves reports whether a ring filter would be applied rather than
// falling back to the global view.
func Resolves(result *domain.AnalysisResult, ringFilter string) bool {
	if ringFilter == GlobalView || result == nil {
		return false
	}
	for _, r := range result.FraudRings {
		if r.RingID == ringFilter {
			return true
		}
	}
	return false
}
