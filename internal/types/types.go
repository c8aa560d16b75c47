// Package types defines the core data model for a document analysis run:
// documents, chunks, the finding lifecycle (potential → investigated →
// located), and the Comment output unit.
package types

import (
	"fmt"
	"time"
)

// Document is the unit of analysis. The content is immutable for the
// duration of a run; every offset in the system is an absolute byte
// offset into Text.
type Document struct {
	// ID identifies the document externally (file path, import ID, etc.)
	ID string `json:"id"`

	// Text is the raw document content
	Text string `json:"text"`
}

// Chunk is a bounded, offset-tracked slice of a document. Chunks are
// created once per run by the chunker, owned by the manager, and lent
// read-only to every plugin. No mutation after creation.
type Chunk struct {
	// ID is a unique identifier for this chunk within the run
	ID string `json:"id"`

	// Text is the chunk content, including any configured overlap
	Text string `json:"text"`

	// StartOffset and EndOffset are absolute byte offsets into the source
	// document. Invariant: EndOffset-StartOffset == len(Text), and
	// document.Text[StartOffset:EndOffset] == Text.
	StartOffset int `json:"start_offset"`
	EndOffset   int `json:"end_offset"`

	// StartLine and EndLine are 1-based line numbers in the source document
	StartLine int `json:"start_line"`
	EndLine   int `json:"end_line"`

	// HeadingContext is the stack of markdown headings in effect at the
	// chunk's start ("## Methods" under "# Paper" yields both), outermost
	// first. Empty for non-structural strategies.
	HeadingContext []string `json:"heading_context,omitempty"`
}

// Verify checks the chunk's offset invariant against the live document text.
// The locator's correctness depends on this holding for every chunk, so it
// is asserted at chunk-creation time and re-checked before offset
// translation.
func (c *Chunk) Verify(documentText string) error {
	if c.StartOffset < 0 || c.EndOffset > len(documentText) || c.StartOffset > c.EndOffset {
		return fmt.Errorf("chunk %s: offsets [%d,%d) out of range for document of %d bytes",
			c.ID, c.StartOffset, c.EndOffset, len(documentText))
	}
	if c.EndOffset-c.StartOffset != len(c.Text) {
		return fmt.Errorf("chunk %s: offset span %d does not match text length %d",
			c.ID, c.EndOffset-c.StartOffset, len(c.Text))
	}
	if documentText[c.StartOffset:c.EndOffset] != c.Text {
		return fmt.Errorf("chunk %s: text does not match document range [%d,%d)",
			c.ID, c.StartOffset, c.EndOffset)
	}
	return nil
}

// FindingKind classifies what a detector believes it found.
type FindingKind string

const (
	KindMathError     FindingKind = "math_error"
	KindSpelling      FindingKind = "spelling"
	KindFactualClaim  FindingKind = "factual_claim"
	KindForecastClaim FindingKind = "forecast_claim"
)

// Payload is the per-kind finding payload. Each detector defines its own
// concrete payload type; keying the union by Kind keeps pooled findings
// type-safe when findings from different plugins are deduplicated together.
type Payload interface {
	Kind() FindingKind
}

// MathPayload describes a suspected mathematical error.
type MathPayload struct {
	// Expression is the stated calculation, e.g. "2 + 2 = 5"
	Expression string `json:"expression"`

	// Claimed is the value the document asserts
	Claimed string `json:"claimed"`

	// Expected is the correct value, when the investigation computed one
	Expected string `json:"expected,omitempty"`
}

func (MathPayload) Kind() FindingKind { return KindMathError }

// SpellingPayload describes a suspected spelling or grammar issue.
type SpellingPayload struct {
	Word       string `json:"word"`
	Suggestion string `json:"suggestion,omitempty"`
}

func (SpellingPayload) Kind() FindingKind { return KindSpelling }

// FactClaimPayload describes a factual claim that may be unsupported.
type FactClaimPayload struct {
	Claim string `json:"claim"`
	Topic string `json:"topic,omitempty"`
}

func (FactClaimPayload) Kind() FindingKind { return KindFactualClaim }

// ForecastPayload describes a forecastable prediction.
type ForecastPayload struct {
	Prediction string `json:"prediction"`

	// Horizon is the stated resolution timeframe, if any ("by 2030")
	Horizon string `json:"horizon,omitempty"`
}

func (ForecastPayload) Kind() FindingKind { return KindForecastClaim }

// HighlightHint is the detector's claim about where a finding lives. The
// model never sees real offsets, so SearchText is a quoted span that the
// locator resolves into verified offsets later.
type HighlightHint struct {
	// SearchText is the (possibly imperfectly reproduced) quoted span
	SearchText string `json:"search_text"`

	// ChunkID names the chunk the finding was extracted from
	ChunkID string `json:"chunk_id"`

	// LineNumber is an optional 1-based line hint within the chunk (0 = none)
	LineNumber int `json:"line_number,omitempty"`
}

// PotentialFinding is a suspected issue produced by a plugin's extract
// stage. Never mutated after creation; only consumed or discarded.
type PotentialFinding struct {
	ID      string        `json:"id"`
	Kind    FindingKind   `json:"kind"`
	ChunkID string        `json:"chunk_id"`
	Payload Payload       `json:"payload"`
	Hint    HighlightHint `json:"hint"`

	// Description is the human-readable explanation of the issue
	Description string `json:"description"`

	// Severity and Importance are normalized to [0,1]. Severity reflects
	// how wrong the document is; Importance reflects how much a reader
	// would care.
	Severity   float64 `json:"severity"`
	Importance float64 `json:"importance"`
}

// Verdict is the investigation outcome for a finding.
type Verdict string

const (
	// VerdictConfirmed means the investigation upheld the finding (or the
	// finding's kind requires no verification and passed through)
	VerdictConfirmed Verdict = "confirmed"

	// VerdictRejected means the investigation determined the finding is
	// a false positive; it is dropped before location
	VerdictRejected Verdict = "rejected"

	// VerdictUnverified means the investigation failed (timeout, model
	// error); the finding survives but is marked untrusted
	VerdictUnverified Verdict = "unverified"
)

// InvestigatedFinding is a PotentialFinding plus a verification verdict.
type InvestigatedFinding struct {
	PotentialFinding

	Verdict Verdict `json:"verdict"`

	// Detail is supporting evidence from the investigation
	Detail string `json:"detail,omitempty"`

	// Confidence is the investigation's confidence in the verdict, [0,1].
	// Pass-through findings get 1.0.
	Confidence float64 `json:"confidence"`
}

// TextLocation is a verified position in some haystack. When produced by
// the locator against the full document, offsets are document-absolute.
type TextLocation struct {
	StartOffset int    `json:"start_offset"`
	EndOffset   int    `json:"end_offset"`
	QuotedText  string `json:"quoted_text"`

	// Confidence encodes which strategy found the match:
	// 1.0 exact, 0.9 normalized, 0.8 line-window, 0.7 partial prefix.
	Confidence float64 `json:"confidence"`
}

// LocatedFinding is an InvestigatedFinding with verified document-absolute
// coordinates. Invariant: document.Text[StartOffset:EndOffset] ==
// Location.QuotedText. Findings that cannot establish this are dropped,
// never silently corrected.
type LocatedFinding struct {
	InvestigatedFinding

	Location TextLocation `json:"location"`
}

// Comment is the externally visible output unit: one issue, with a
// verified highlight into the original document.
type Comment struct {
	Description string       `json:"description"`
	Importance  float64      `json:"importance"`
	Plugin      string       `json:"plugin"`
	Kind        FindingKind  `json:"kind"`
	Highlight   TextLocation `json:"highlight"`
}

// PluginStats tracks what one plugin did during a run.
type PluginStats struct {
	ChunksProcessed    int           `json:"chunks_processed"`
	ChunksFailed       int           `json:"chunks_failed"`
	PotentialFound     int           `json:"potential_found"`
	Investigated       int           `json:"investigated"`
	Rejected           int           `json:"rejected"`
	Unverified         int           `json:"unverified"`
	Located            int           `json:"located"`
	DroppedNotFound    int           `json:"dropped_not_found"`
	DroppedOffsetDrift int           `json:"dropped_offset_drift"`
	DuplicatesRemoved  int           `json:"duplicates_removed"`
	ModelCalls         int64         `json:"model_calls"`
	InputTokens        int64         `json:"input_tokens"`
	OutputTokens       int64         `json:"output_tokens"`
	Duration           time.Duration `json:"duration"`
}

// PluginStatus is the per-plugin outcome surfaced in the aggregate result.
// A failed plugin never aborts its siblings or the run.
type PluginStatus struct {
	Name      string      `json:"name"`
	Succeeded bool        `json:"succeeded"`
	Error     string      `json:"error,omitempty"`
	Summary   string      `json:"summary,omitempty"`
	Stats     PluginStats `json:"stats"`
}

// RunStats aggregates statistics across all plugins in a run.
type RunStats struct {
	Chunks        int           `json:"chunks"`
	PluginsRun    int           `json:"plugins_run"`
	PluginsFailed int           `json:"plugins_failed"`
	TotalFindings int           `json:"total_findings"`
	TotalComments int           `json:"total_comments"`
	ModelCalls    int64         `json:"model_calls"`
	InputTokens   int64         `json:"input_tokens"`
	OutputTokens  int64         `json:"output_tokens"`
	Duration      time.Duration `json:"duration"`
}

// AnalysisResult is what one full run produces: the bounded comment list
// plus per-plugin status. A run always completes with a (possibly empty,
// possibly partial) result.
type AnalysisResult struct {
	DocumentID string         `json:"document_id"`
	RunID      string         `json:"run_id"`
	Comments   []Comment      `json:"comments"`
	Plugins    []PluginStatus `json:"plugins"`
	Stats      RunStats       `json:"stats"`
	StartedAt  time.Time      `json:"started_at"`
	FinishedAt time.Time      `json:"finished_at"`
}

// Failed returns the names of plugins that did not complete.
func (r *AnalysisResult) Failed() []string {
	var failed []string
	for _, p := range r.Plugins {
		if !p.Succeeded {
			failed = append(failed, p.Name)
		}
	}
	return failed
}
