package plugin

import (
	"context"
	"fmt"

	"github.com/steveyegge/docaudit/internal/llm"
	"github.com/steveyegge/docaudit/internal/session"
	"github.com/steveyegge/docaudit/internal/types"
)

// SpellingDetector finds spelling and grammar issues. Spelling needs no
// separate verification pass, the extraction either quoted a misspelled
// word or it did not, so investigation is a confirmed pass-through.
type SpellingDetector struct {
	invoker llm.Invoker
	model   string
}

// NewSpellingDetector creates a spelling detector on the cheap model tier.
func NewSpellingDetector(invoker llm.Invoker) *SpellingDetector {
	return &SpellingDetector{invoker: invoker, model: llm.GetSimpleTaskModel()}
}

func (d *SpellingDetector) Name() string            { return "spelling" }
func (d *SpellingDetector) Kind() types.FindingKind { return types.KindSpelling }

const spellingExtractPrompt = `Find spelling and grammar errors in this document excerpt. Ignore
stylistic choices, proper nouns, and technical jargon.

%sExcerpt:
---
%s
---

Report each error as a JSON array element:
[{"quote": "<exact text from the excerpt containing the error>",
  "word": "<the misspelled word>",
  "suggestion": "<corrected spelling>",
  "description": "<one-sentence explanation>",
  "severity": <0.0-1.0>, "importance": <0.0-1.0>, "line": <line number or omit>}]

Quote text EXACTLY as it appears. Return [] if the excerpt is clean.`

// Extract implements Detector.
func (d *SpellingDetector) Extract(ctx context.Context, chunk *types.Chunk, sess session.Context) ([]types.PotentialFinding, error) {
	resp, err := d.invoker.Invoke(ctx, llm.Request{
		Prompt:    fmt.Sprintf(spellingExtractPrompt, excerptHeader(chunk), chunk.Text),
		Model:     d.model,
		Operation: "spelling/extract",
		Session:   sess,
	})
	if err != nil {
		return nil, err
	}

	extractions, err := parseExtractions(resp.Content, "spelling/extract")
	if err != nil {
		return nil, err
	}

	findings := make([]types.PotentialFinding, 0, len(extractions))
	for _, e := range extractions {
		findings = append(findings, newFinding(types.KindSpelling, chunk.ID, e, types.SpellingPayload{
			Word:       e.Word,
			Suggestion: e.Suggestion,
		}))
	}
	return findings, nil
}

// Investigate implements Detector as a pass-through.
func (d *SpellingDetector) Investigate(ctx context.Context, f types.PotentialFinding, sess session.Context) (types.InvestigatedFinding, error) {
	return passThrough(f), nil
}

// Summarize implements Detector.
func (d *SpellingDetector) Summarize(findings []types.LocatedFinding) string {
	if len(findings) == 0 {
		return "no spelling issues found"
	}
	return fmt.Sprintf("%d spelling/grammar issues found", len(findings))
}
