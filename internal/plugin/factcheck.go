package plugin

import (
	"context"
	"fmt"

	"github.com/steveyegge/docaudit/internal/llm"
	"github.com/steveyegge/docaudit/internal/session"
	"github.com/steveyegge/docaudit/internal/types"
)

// FactCheckDetector finds factual claims that may be unsupported or
// wrong. Extraction casts a wide net; the expensive investigation pass
// decides which claims actually merit a comment.
type FactCheckDetector struct {
	invoker llm.Invoker
	model   string
}

// NewFactCheckDetector creates a fact-check detector.
func NewFactCheckDetector(invoker llm.Invoker) *FactCheckDetector {
	return &FactCheckDetector{invoker: invoker, model: llm.GetDefaultModel()}
}

func (d *FactCheckDetector) Name() string            { return "factcheck" }
func (d *FactCheckDetector) Kind() types.FindingKind { return types.KindFactualClaim }

const factExtractPrompt = `Identify concrete factual claims in this document excerpt that could be
wrong: dates, statistics, attributions, historical or scientific
assertions. Skip opinions, hedged statements, and common knowledge.

%sExcerpt:
---
%s
---

Report each claim as a JSON array element:
[{"quote": "<exact text from the excerpt stating the claim>",
  "claim": "<the claim, restated plainly>",
  "topic": "<subject area>",
  "description": "<why this claim is worth checking>",
  "severity": <0.0-1.0>, "importance": <0.0-1.0>, "line": <line number or omit>}]

Quote text EXACTLY as it appears. Return [] if nothing merits checking.`

// Extract implements Detector.
func (d *FactCheckDetector) Extract(ctx context.Context, chunk *types.Chunk, sess session.Context) ([]types.PotentialFinding, error) {
	resp, err := d.invoker.Invoke(ctx, llm.Request{
		Prompt:    fmt.Sprintf(factExtractPrompt, excerptHeader(chunk), chunk.Text),
		Model:     d.model,
		Operation: "factcheck/extract",
		Session:   sess,
	})
	if err != nil {
		return nil, err
	}

	extractions, err := parseExtractions(resp.Content, "factcheck/extract")
	if err != nil {
		return nil, err
	}

	findings := make([]types.PotentialFinding, 0, len(extractions))
	for _, e := range extractions {
		claim := e.Claim
		if claim == "" {
			claim = e.Quote
		}
		findings = append(findings, newFinding(types.KindFactualClaim, chunk.ID, e, types.FactClaimPayload{
			Claim: claim,
			Topic: e.Topic,
		}))
	}
	return findings, nil
}

const factVerifyPrompt = `Assess this factual claim from a document under review.

Claim: %s
Topic: %s

Respond with JSON:
{"verdict": "confirmed" | "rejected" | "unverified",
 "detail": "<one-sentence assessment with the correct fact if known>",
 "confidence": <0.0-1.0>}
"confirmed" means the claim is wrong or unsupported and deserves a comment;
"rejected" means the claim is accurate; "unverified" means you cannot tell.`

// Investigate implements Detector.
func (d *FactCheckDetector) Investigate(ctx context.Context, f types.PotentialFinding, sess session.Context) (types.InvestigatedFinding, error) {
	payload, _ := f.Payload.(types.FactClaimPayload)

	resp, err := d.invoker.Invoke(ctx, llm.Request{
		Prompt:    fmt.Sprintf(factVerifyPrompt, payload.Claim, payload.Topic),
		Model:     d.model,
		Operation: "factcheck/verify",
		Session:   sess,
	})
	if err != nil {
		return types.InvestigatedFinding{}, err
	}

	result := llm.Parse[verdictResponse](resp.Content, llm.ParseOptions{Context: "factcheck/verify"})
	if !result.Success {
		return types.InvestigatedFinding{}, fmt.Errorf("parsing fact verdict: %s", result.Error)
	}

	inv := types.InvestigatedFinding{
		PotentialFinding: f,
		Detail:           result.Data.Detail,
		Confidence:       clamp01(result.Data.Confidence, 0.5),
	}
	switch result.Data.Verdict {
	case "confirmed":
		inv.Verdict = types.VerdictConfirmed
	case "rejected":
		inv.Verdict = types.VerdictRejected
	default:
		inv.Verdict = types.VerdictUnverified
	}
	return inv, nil
}

// Summarize implements Detector.
func (d *FactCheckDetector) Summarize(findings []types.LocatedFinding) string {
	if len(findings) == 0 {
		return "no questionable factual claims found"
	}

	topics := map[string]int{}
	for _, f := range findings {
		if payload, ok := f.Payload.(types.FactClaimPayload); ok && payload.Topic != "" {
			topics[payload.Topic]++
		}
	}
	common, best := "", 0
	for topic, n := range topics {
		if n > best {
			common, best = topic, n
		}
	}

	summary := fmt.Sprintf("%d questionable factual claims found", len(findings))
	if common != "" {
		summary += fmt.Sprintf(", most in: %s", common)
	}
	return summary
}
