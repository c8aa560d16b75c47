package plugin

import (
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/steveyegge/docaudit/internal/llm"
	"github.com/steveyegge/docaudit/internal/types"
)

// extraction is the wire shape every detector asks the model for. The
// model never sees offsets; quote is the verbatim span the locator will
// resolve later.
type extraction struct {
	// Quote is the exact text from the excerpt containing the issue
	Quote string `json:"quote"`

	// Line is an optional 1-based line number within the excerpt
	Line int `json:"line,omitempty"`

	// Description explains the issue for a human reviewer
	Description string `json:"description"`

	// Severity and Importance are model estimates in [0,1]
	Severity   float64 `json:"severity"`
	Importance float64 `json:"importance"`

	// Kind-specific fields; unused ones stay empty
	Expression string `json:"expression,omitempty"`
	Claimed    string `json:"claimed,omitempty"`
	Word       string `json:"word,omitempty"`
	Suggestion string `json:"suggestion,omitempty"`
	Claim      string `json:"claim,omitempty"`
	Topic      string `json:"topic,omitempty"`
	Prediction string `json:"prediction,omitempty"`
	Horizon    string `json:"horizon,omitempty"`
}

// parseExtractions funnels a model response through the resilient JSON
// parser and filters out entries with no usable quote.
func parseExtractions(content, operation string) ([]extraction, error) {
	result := llm.Parse[[]extraction](content, llm.ParseOptions{Context: operation})
	if !result.Success {
		return nil, fmt.Errorf("parsing %s response: %s", operation, result.Error)
	}

	var valid []extraction
	for _, e := range result.Data {
		if strings.TrimSpace(e.Quote) == "" {
			continue
		}
		valid = append(valid, e)
	}
	return valid, nil
}

// newFinding builds a PotentialFinding from one extraction.
func newFinding(kind types.FindingKind, chunkID string, e extraction, payload types.Payload) types.PotentialFinding {
	return types.PotentialFinding{
		ID:      uuid.New().String(),
		Kind:    kind,
		ChunkID: chunkID,
		Payload: payload,
		Hint: types.HighlightHint{
			SearchText: e.Quote,
			ChunkID:    chunkID,
			LineNumber: e.Line,
		},
		Description: e.Description,
		Severity:    clamp01(e.Severity, 0.5),
		Importance:  clamp01(e.Importance, 0.5),
	}
}

// clamp01 bounds v to [0,1], substituting fallback for an unset zero.
func clamp01(v, fallback float64) float64 {
	if v == 0 {
		return fallback
	}
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

// passThrough is the implicit confirmed verdict for finding kinds that
// need no verification step.
func passThrough(f types.PotentialFinding) types.InvestigatedFinding {
	return types.InvestigatedFinding{
		PotentialFinding: f,
		Verdict:          types.VerdictConfirmed,
		Confidence:       1.0,
	}
}

// verdictResponse is the wire shape of an investigation call.
type verdictResponse struct {
	Verdict    string  `json:"verdict"`
	Detail     string  `json:"detail,omitempty"`
	Expected   string  `json:"expected,omitempty"`
	Confidence float64 `json:"confidence"`
}

func excerptHeader(chunk *types.Chunk) string {
	if len(chunk.HeadingContext) == 0 {
		return ""
	}
	return fmt.Sprintf("Section context: %s\n\n", strings.Join(chunk.HeadingContext, " > "))
}
