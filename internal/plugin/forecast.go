package plugin

import (
	"context"
	"fmt"

	"github.com/steveyegge/docaudit/internal/llm"
	"github.com/steveyegge/docaudit/internal/session"
	"github.com/steveyegge/docaudit/internal/types"
)

// ForecastDetector finds forecastable predictions: concrete claims about
// the future that could be resolved true or false later. Predictions are
// not verifiable at analysis time, so investigation passes through.
type ForecastDetector struct {
	invoker llm.Invoker
	model   string
}

// NewForecastDetector creates a forecast detector.
func NewForecastDetector(invoker llm.Invoker) *ForecastDetector {
	return &ForecastDetector{invoker: invoker, model: llm.GetDefaultModel()}
}

func (d *ForecastDetector) Name() string            { return "forecast" }
func (d *ForecastDetector) Kind() types.FindingKind { return types.KindForecastClaim }

const forecastExtractPrompt = `Identify forecastable predictions in this document excerpt: concrete
claims about the future that a reader could later resolve as true or
false. Skip vague aspirations and conditionals with no stated outcome.

%sExcerpt:
---
%s
---

Report each prediction as a JSON array element:
[{"quote": "<exact text from the excerpt stating the prediction>",
  "prediction": "<the prediction, restated plainly>",
  "horizon": "<stated timeframe, e.g. 'by 2030', or omit>",
  "description": "<what would resolve this prediction>",
  "severity": <0.0-1.0>, "importance": <0.0-1.0>, "line": <line number or omit>}]

Quote text EXACTLY as it appears. Return [] if there are no predictions.`

// Extract implements Detector.
func (d *ForecastDetector) Extract(ctx context.Context, chunk *types.Chunk, sess session.Context) ([]types.PotentialFinding, error) {
	resp, err := d.invoker.Invoke(ctx, llm.Request{
		Prompt:    fmt.Sprintf(forecastExtractPrompt, excerptHeader(chunk), chunk.Text),
		Model:     d.model,
		Operation: "forecast/extract",
		Session:   sess,
	})
	if err != nil {
		return nil, err
	}

	extractions, err := parseExtractions(resp.Content, "forecast/extract")
	if err != nil {
		return nil, err
	}

	findings := make([]types.PotentialFinding, 0, len(extractions))
	for _, e := range extractions {
		prediction := e.Prediction
		if prediction == "" {
			prediction = e.Quote
		}
		findings = append(findings, newFinding(types.KindForecastClaim, chunk.ID, e, types.ForecastPayload{
			Prediction: prediction,
			Horizon:    e.Horizon,
		}))
	}
	return findings, nil
}

// Investigate implements Detector as a pass-through.
func (d *ForecastDetector) Investigate(ctx context.Context, f types.PotentialFinding, sess session.Context) (types.InvestigatedFinding, error) {
	return passThrough(f), nil
}

// Summarize implements Detector.
func (d *ForecastDetector) Summarize(findings []types.LocatedFinding) string {
	if len(findings) == 0 {
		return "no forecastable predictions found"
	}

	withHorizon := 0
	for _, f := range findings {
		if payload, ok := f.Payload.(types.ForecastPayload); ok && payload.Horizon != "" {
			withHorizon++
		}
	}
	return fmt.Sprintf("%d forecastable predictions found, %d with explicit timeframes",
		len(findings), withHorizon)
}
