// Package dedup collapses near-duplicate findings and caps the result
// set by priority.
//
// Plugins routinely surface the same underlying issue more than once:
// overlapping chunks re-extract it, and different wording of the same
// quote slips past identity checks. Deduplication runs per plugin before
// comments are finalized, and once more across plugins in the manager.
package dedup

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/steveyegge/docaudit/internal/types"
)

// SimilarityThreshold is the Jaccard index at or above which two
// findings are considered duplicates.
const SimilarityThreshold = 0.7

// DefaultMaxIssues bounds how many findings survive prioritization.
const DefaultMaxIssues = 50

// Stats reports what a dedupe+prioritize pass did.
type Stats struct {
	TotalCandidates    int     `json:"total_candidates"`
	UniqueCount        int     `json:"unique_count"`
	DuplicateCount     int     `json:"duplicate_count"`
	TruncatedCount     int     `json:"truncated_count"`
	KeptAvgPriority    float64 `json:"kept_avg_priority"`
	DroppedAvgPriority float64 `json:"dropped_avg_priority"`
}

// Jaccard computes the Jaccard index over the normalized word sets of two
// strings: |intersection| / |union|. Identical sets score 1.0, disjoint
// sets 0.0.
func Jaccard(a, b string) float64 {
	setA := wordSet(a)
	setB := wordSet(b)
	if len(setA) == 0 && len(setB) == 0 {
		return 1.0
	}
	if len(setA) == 0 || len(setB) == 0 {
		return 0.0
	}

	intersection := 0
	for w := range setA {
		if _, ok := setB[w]; ok {
			intersection++
		}
	}
	union := len(setA) + len(setB) - intersection
	return float64(intersection) / float64(union)
}

func wordSet(s string) map[string]struct{} {
	set := map[string]struct{}{}
	for _, w := range strings.Fields(strings.ToLower(s)) {
		set[w] = struct{}{}
	}
	return set
}

// QualityScore ranks a finding for duplicate resolution only: when two
// findings collide, the higher-quality one represents the pair. Longer
// quotes beat terse ones (more surrounding context is more useful to a
// human reviewer), then location confidence, then severity, then
// importance. All components are normalized to [0,1].
func QualityScore(f *types.LocatedFinding) float64 {
	lengthNorm := math.Log10(float64(len(f.Location.QuotedText))+1) / 4
	if lengthNorm > 1 {
		lengthNorm = 1
	}
	return 0.4*lengthNorm + 0.25*f.Location.Confidence + 0.2*f.Severity + 0.15*f.Importance
}

// PriorityScore ranks a finding for final ordering and truncation. It is
// deliberately distinct from QualityScore: which duplicate to keep and
// which findings matter most are different questions.
func PriorityScore(f *types.LocatedFinding) float64 {
	return 0.6*f.Severity + 0.4*f.Importance
}

// citedText is what similarity compares: the verified quote, or the
// search text when a quote is somehow empty.
func citedText(f *types.LocatedFinding) string {
	if f.Location.QuotedText != "" {
		return f.Location.QuotedText
	}
	return f.Hint.SearchText
}

// Dedupe removes near-duplicates, keeping the higher-quality
// representative of each colliding pair. Intentionally O(n²): n is
// findings per plugin per document, tens at most.
//
// Idempotent: dedupe(dedupe(x)) == dedupe(x).
func Dedupe(findings []types.LocatedFinding) ([]types.LocatedFinding, int) {
	var kept []types.LocatedFinding
	removed := 0

	for _, candidate := range findings {
		duplicateOf := -1
		for i := range kept {
			if Jaccard(citedText(&candidate), citedText(&kept[i])) >= SimilarityThreshold {
				duplicateOf = i
				break
			}
		}

		if duplicateOf < 0 {
			kept = append(kept, candidate)
			continue
		}

		removed++
		if QualityScore(&candidate) > QualityScore(&kept[duplicateOf]) {
			kept[duplicateOf] = candidate
		}
	}

	return kept, removed
}

// Prioritize sorts findings by priority score descending and keeps at
// most maxIssues. The counts and average priority of both kept and
// discarded sets are logged for observability.
func Prioritize(findings []types.LocatedFinding, maxIssues int) ([]types.LocatedFinding, Stats) {
	if maxIssues <= 0 {
		maxIssues = DefaultMaxIssues
	}

	sorted := make([]types.LocatedFinding, len(findings))
	copy(sorted, findings)
	sort.SliceStable(sorted, func(i, j int) bool {
		return PriorityScore(&sorted[i]) > PriorityScore(&sorted[j])
	})

	cut := len(sorted)
	if cut > maxIssues {
		cut = maxIssues
	}
	kept, dropped := sorted[:cut], sorted[cut:]

	stats := Stats{
		TotalCandidates:    len(findings),
		UniqueCount:        len(kept),
		TruncatedCount:     len(dropped),
		KeptAvgPriority:    avgPriority(kept),
		DroppedAvgPriority: avgPriority(dropped),
	}

	if len(dropped) > 0 {
		fmt.Printf("prioritization kept %d findings (avg priority %.2f), discarded %d (avg priority %.2f)\n",
			len(kept), stats.KeptAvgPriority, len(dropped), stats.DroppedAvgPriority)
	}

	return kept, stats
}

// DedupeAndPrioritize is the combined pass applied to one plugin's pooled
// findings before its comments are finalized.
func DedupeAndPrioritize(findings []types.LocatedFinding, maxIssues int) ([]types.LocatedFinding, Stats) {
	unique, removed := Dedupe(findings)
	kept, stats := Prioritize(unique, maxIssues)
	stats.TotalCandidates = len(findings)
	stats.DuplicateCount = removed
	return kept, stats
}

func avgPriority(findings []types.LocatedFinding) float64 {
	if len(findings) == 0 {
		return 0
	}
	sum := 0.0
	for i := range findings {
		sum += PriorityScore(&findings[i])
	}
	return sum / float64(len(findings))
}
