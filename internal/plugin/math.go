package plugin

import (
	"context"
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"

	"github.com/steveyegge/docaudit/internal/llm"
	"github.com/steveyegge/docaudit/internal/session"
	"github.com/steveyegge/docaudit/internal/types"
)

// MathDetector finds arithmetic and quantitative errors: stated
// calculations whose result is wrong, percentages that don't add up,
// inconsistent figures.
type MathDetector struct {
	invoker llm.Invoker
	model   string
}

// NewMathDetector creates a math detector backed by the given model.
func NewMathDetector(invoker llm.Invoker) *MathDetector {
	return &MathDetector{invoker: invoker, model: llm.GetDefaultModel()}
}

func (d *MathDetector) Name() string            { return "math" }
func (d *MathDetector) Kind() types.FindingKind { return types.KindMathError }

const mathExtractPrompt = `You are reviewing a document excerpt for mathematical errors: wrong
arithmetic, percentages that do not sum, figures inconsistent with each
other, misused units.

%sExcerpt:
---
%s
---

Report each suspected error as a JSON array element:
[{"quote": "<exact text from the excerpt containing the error>",
  "expression": "<the stated calculation, e.g. 2 + 2 = 5>",
  "claimed": "<the value the document asserts>",
  "description": "<one-sentence explanation>",
  "severity": <0.0-1.0>, "importance": <0.0-1.0>, "line": <line number or omit>}]

Quote text EXACTLY as it appears. Return [] if the excerpt has no errors.`

// Extract implements Detector.
func (d *MathDetector) Extract(ctx context.Context, chunk *types.Chunk, sess session.Context) ([]types.PotentialFinding, error) {
	resp, err := d.invoker.Invoke(ctx, llm.Request{
		Prompt:    fmt.Sprintf(mathExtractPrompt, excerptHeader(chunk), chunk.Text),
		Model:     d.model,
		Operation: "math/extract",
		Session:   sess,
	})
	if err != nil {
		return nil, err
	}

	extractions, err := parseExtractions(resp.Content, "math/extract")
	if err != nil {
		return nil, err
	}

	findings := make([]types.PotentialFinding, 0, len(extractions))
	for _, e := range extractions {
		expr := e.Expression
		if expr == "" {
			expr = e.Quote
		}
		findings = append(findings, newFinding(types.KindMathError, chunk.ID, e, types.MathPayload{
			Expression: expr,
			Claimed:    e.Claimed,
		}))
	}
	return findings, nil
}

const mathVerifyPrompt = `Verify this suspected mathematical error.

Statement: %s
Context: %s

Is the statement mathematically wrong? Respond with JSON:
{"verdict": "confirmed" | "rejected",
 "expected": "<the correct value, if computable>",
 "detail": "<one-sentence justification>",
 "confidence": <0.0-1.0>}
"confirmed" means the document's math is wrong; "rejected" means it is correct.`

// Investigate checks the arithmetic locally when the expression is
// simple enough, and falls back to the model otherwise. The local path
// is deterministic and costs nothing.
func (d *MathDetector) Investigate(ctx context.Context, f types.PotentialFinding, sess session.Context) (types.InvestigatedFinding, error) {
	payload, _ := f.Payload.(types.MathPayload)

	if claimed, expected, ok := evalArithmetic(payload.Expression); ok {
		inv := types.InvestigatedFinding{PotentialFinding: f, Confidence: 1.0}
		if math.Abs(claimed-expected) < 1e-9 {
			inv.Verdict = types.VerdictRejected
			inv.Detail = fmt.Sprintf("%s is correct", payload.Expression)
		} else {
			inv.Verdict = types.VerdictConfirmed
			inv.Detail = fmt.Sprintf("expected %s, document claims %s",
				formatNumber(expected), formatNumber(claimed))
			payload.Expected = formatNumber(expected)
			inv.Payload = payload
		}
		return inv, nil
	}

	resp, err := d.invoker.Invoke(ctx, llm.Request{
		Prompt:    fmt.Sprintf(mathVerifyPrompt, payload.Expression, f.Description),
		Model:     d.model,
		Operation: "math/verify",
		Session:   sess,
	})
	if err != nil {
		return types.InvestigatedFinding{}, err
	}

	result := llm.Parse[verdictResponse](resp.Content, llm.ParseOptions{Context: "math/verify"})
	if !result.Success {
		return types.InvestigatedFinding{}, fmt.Errorf("parsing math verdict: %s", result.Error)
	}

	inv := types.InvestigatedFinding{
		PotentialFinding: f,
		Detail:           result.Data.Detail,
		Confidence:       clamp01(result.Data.Confidence, 0.5),
	}
	switch result.Data.Verdict {
	case "confirmed":
		inv.Verdict = types.VerdictConfirmed
		if result.Data.Expected != "" {
			payload.Expected = result.Data.Expected
			inv.Payload = payload
		}
	case "rejected":
		inv.Verdict = types.VerdictRejected
	default:
		inv.Verdict = types.VerdictUnverified
	}
	return inv, nil
}

// Summarize implements Detector.
func (d *MathDetector) Summarize(findings []types.LocatedFinding) string {
	if len(findings) == 0 {
		return "no math errors found"
	}

	opCounts := map[string]int{}
	for _, f := range findings {
		if payload, ok := f.Payload.(types.MathPayload); ok {
			opCounts[dominantOperator(payload.Expression)]++
		}
	}
	common, best := "", 0
	for op, n := range opCounts {
		if n > best && op != "" {
			common, best = op, n
		}
	}

	summary := fmt.Sprintf("%d math errors found", len(findings))
	if common != "" {
		summary += fmt.Sprintf(", most common: %s errors", common)
	}
	return summary
}

// arithmeticRegex matches simple stated calculations: "2 + 2 = 5",
// "10*3=31", "7 - 1 = 5.5".
var arithmeticRegex = regexp.MustCompile(`(-?\d+(?:\.\d+)?)\s*([+\-*/x×])\s*(-?\d+(?:\.\d+)?)\s*=\s*(-?\d+(?:\.\d+)?)`)

// evalArithmetic parses a simple binary calculation and returns the
// claimed and correct results. ok is false when the expression is not a
// single binary operation the local evaluator can handle.
func evalArithmetic(expr string) (claimed, expected float64, ok bool) {
	m := arithmeticRegex.FindStringSubmatch(expr)
	if m == nil {
		return 0, 0, false
	}

	a, err1 := strconv.ParseFloat(m[1], 64)
	b, err2 := strconv.ParseFloat(m[3], 64)
	claimed, err3 := strconv.ParseFloat(m[4], 64)
	if err1 != nil || err2 != nil || err3 != nil {
		return 0, 0, false
	}

	switch m[2] {
	case "+":
		expected = a + b
	case "-":
		expected = a - b
	case "*", "x", "×":
		expected = a * b
	case "/":
		if b == 0 {
			return 0, 0, false
		}
		expected = a / b
	default:
		return 0, 0, false
	}
	return claimed, expected, true
}

func dominantOperator(expr string) string {
	m := arithmeticRegex.FindStringSubmatch(expr)
	if m == nil {
		return ""
	}
	switch m[2] {
	case "+":
		return "addition"
	case "-":
		return "subtraction"
	case "*", "x", "×":
		return "multiplication"
	case "/":
		return "division"
	}
	return ""
}

func formatNumber(v float64) string {
	return strings.TrimRight(strings.TrimRight(strconv.FormatFloat(v, 'f', 6, 64), "0"), ".")
}
