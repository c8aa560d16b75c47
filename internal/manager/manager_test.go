package manager

import (
	"context"
	"errors"
	"testing"

	"github.com/steveyegge/docaudit/internal/chunker"
	"github.com/steveyegge/docaudit/internal/llm"
	"github.com/steveyegge/docaudit/internal/session"
	"github.com/steveyegge/docaudit/internal/types"
)

func testConfig() Config {
	return Config{
		Chunker:           chunker.DefaultConfig(),
		PluginConcurrency: 1,
	}
}

func testDoc() types.Document {
	return types.Document{
		ID:   "doc-1",
		Text: "Here: 2 + 2 = 5 end. Also teh word is misspelled badly in this sentence.",
	}
}

func scriptedMock() *llm.MockInvoker {
	return llm.NewMockInvoker().
		Respond("math/extract",
			`[{"quote": "2 + 2 = 5", "expression": "2 + 2 = 5", "claimed": "5",
			   "description": "arithmetic error", "severity": 0.8, "importance": 0.6}]`).
		Respond("spelling/extract",
			`[{"quote": "teh word", "word": "teh", "suggestion": "the",
			   "description": "misspelling", "severity": 0.3, "importance": 0.2}]`)
}

func TestRunTwoPlugins(t *testing.T) {
	m := New(DefaultRegistry(), scriptedMock(), testConfig())
	doc := testDoc()

	result, err := m.Run(context.Background(), doc, []string{"math", "spelling"}, session.New("/jobs/analysis"))
	if err != nil {
		t.Fatalf("run: %v", err)
	}

	if len(result.Comments) != 2 {
		t.Fatalf("got %d comments, want 2", len(result.Comments))
	}
	if result.Stats.Chunks != 1 {
		t.Errorf("Chunks = %d, want 1 (short document)", result.Stats.Chunks)
	}
	if result.Stats.PluginsRun != 2 || result.Stats.PluginsFailed != 0 {
		t.Errorf("plugins run/failed = %d/%d, want 2/0",
			result.Stats.PluginsRun, result.Stats.PluginsFailed)
	}
	if len(result.Failed()) != 0 {
		t.Errorf("Failed() = %v, want empty", result.Failed())
	}

	// Comments are ordered by priority: math (0.8/0.6) before spelling.
	if result.Comments[0].Plugin != "math" || result.Comments[1].Plugin != "spelling" {
		t.Errorf("comment order = %s, %s; want math, spelling",
			result.Comments[0].Plugin, result.Comments[1].Plugin)
	}

	for _, c := range result.Comments {
		if doc.Text[c.Highlight.StartOffset:c.Highlight.EndOffset] != c.Highlight.QuotedText {
			t.Errorf("comment from %s fails round-trip", c.Plugin)
		}
	}

	if result.Stats.ModelCalls != 2 {
		t.Errorf("ModelCalls = %d, want 2 (one extraction each, math verified locally)",
			result.Stats.ModelCalls)
	}
	if result.RunID == "" || result.DocumentID != "doc-1" {
		t.Errorf("result identity: run=%q doc=%q", result.RunID, result.DocumentID)
	}
}

func TestRunUnknownPlugin(t *testing.T) {
	m := New(DefaultRegistry(), llm.NewMockInvoker(), testConfig())
	_, err := m.Run(context.Background(), testDoc(), []string{"nope"}, session.New("/test"))
	if err == nil {
		t.Fatal("unknown plugin did not error")
	}
}

func TestRunRejectsBadChunkerConfig(t *testing.T) {
	cfg := testConfig()
	cfg.Chunker.MinChunkSize = 5000 // above max
	m := New(DefaultRegistry(), llm.NewMockInvoker(), cfg)

	_, err := m.Run(context.Background(), testDoc(), []string{"math"}, session.New("/test"))
	if err == nil {
		t.Fatal("malformed chunker config did not error")
	}
}

func TestPluginFailureDoesNotAbortSiblings(t *testing.T) {
	mock := scriptedMock().Fail("math/extract", errors.New("capability unavailable"))
	m := New(DefaultRegistry(), mock, testConfig())

	result, err := m.Run(context.Background(), testDoc(), []string{"math", "spelling"}, session.New("/test"))
	if err != nil {
		t.Fatalf("run must complete despite plugin failure: %v", err)
	}

	failed := result.Failed()
	if len(failed) != 1 || failed[0] != "math" {
		t.Fatalf("Failed() = %v, want [math]", failed)
	}
	if result.Stats.PluginsFailed != 1 {
		t.Errorf("PluginsFailed = %d, want 1", result.Stats.PluginsFailed)
	}

	if len(result.Comments) != 1 || result.Comments[0].Plugin != "spelling" {
		t.Fatalf("comments = %+v, want exactly the spelling comment", result.Comments)
	}

	for _, p := range result.Plugins {
		if p.Name == "math" && p.Error == "" {
			t.Error("failed plugin carries no error message")
		}
	}
}

func TestTargetHighlightsCapsOutput(t *testing.T) {
	cfg := testConfig()
	cfg.TargetHighlights = 1
	m := New(DefaultRegistry(), scriptedMock(), cfg)

	result, err := m.Run(context.Background(), testDoc(), []string{"math", "spelling"}, session.New("/test"))
	if err != nil {
		t.Fatalf("run: %v", err)
	}

	if len(result.Comments) != 1 {
		t.Fatalf("got %d comments, want 1 (capped)", len(result.Comments))
	}
	// The surviving comment is the higher-priority math finding.
	if result.Comments[0].Plugin != "math" {
		t.Errorf("kept %s, want math", result.Comments[0].Plugin)
	}
	if result.Stats.TotalFindings != 2 {
		t.Errorf("TotalFindings = %d, want 2 (cap applies after pooling)", result.Stats.TotalFindings)
	}
}

func TestModelCallBudget(t *testing.T) {
	cfg := testConfig()
	cfg.MaxModelCalls = 1
	m := New(DefaultRegistry(), scriptedMock(), cfg)

	// Sequential plugins: math spends the single budgeted call, spelling
	// hits the exhausted budget and fails in isolation.
	result, err := m.Run(context.Background(), testDoc(), []string{"math", "spelling"}, session.New("/test"))
	if err != nil {
		t.Fatalf("run must complete when budget runs out: %v", err)
	}

	failed := result.Failed()
	if len(failed) != 1 || failed[0] != "spelling" {
		t.Fatalf("Failed() = %v, want [spelling]", failed)
	}
	if len(result.Comments) != 1 || result.Comments[0].Plugin != "math" {
		t.Errorf("comments = %+v, want exactly the math comment", result.Comments)
	}
}

func TestRunTimeBudgetFailsPluginsButCompletes(t *testing.T) {
	cfg := testConfig()
	// The budget deadline is anchored at run start, so a nanosecond budget
	// is spent before any plugin begins.
	cfg.MaxRunTime = 1

	m := New(DefaultRegistry(), scriptedMock(), cfg)
	result, err := m.Run(context.Background(), testDoc(), []string{"math", "spelling"}, session.New("/test"))
	if err != nil {
		t.Fatalf("run must complete when time runs out: %v", err)
	}

	if len(result.Failed()) != 2 {
		t.Fatalf("Failed() = %v, want both plugins", result.Failed())
	}
	if len(result.Comments) != 0 {
		t.Errorf("comments = %+v, want none", result.Comments)
	}
}

func TestCrossPluginDedup(t *testing.T) {
	// Two plugins quote the same span: the pooled pass keeps one comment.
	mock := llm.NewMockInvoker().
		Respond("math/extract",
			`[{"quote": "2 + 2 = 5", "expression": "2 + 2 = 5", "claimed": "5",
			   "description": "arithmetic error", "severity": 0.8, "importance": 0.6}]`).
		Respond("factcheck/extract",
			`[{"quote": "2 + 2 = 5", "claim": "two plus two equals five",
			   "description": "false claim", "severity": 0.7, "importance": 0.5}]`).
		Respond("factcheck/verify",
			`{"verdict": "confirmed", "detail": "arithmetic is wrong", "confidence": 0.9}`)

	m := New(DefaultRegistry(), mock, testConfig())
	result, err := m.Run(context.Background(), testDoc(), []string{"math", "factcheck"}, session.New("/test"))
	if err != nil {
		t.Fatalf("run: %v", err)
	}

	if result.Stats.TotalFindings != 2 {
		t.Fatalf("TotalFindings = %d, want 2 before cross-plugin dedup", result.Stats.TotalFindings)
	}
	if len(result.Comments) != 1 {
		t.Fatalf("got %d comments, want 1 after cross-plugin dedup", len(result.Comments))
	}
}

func TestRegistry(t *testing.T) {
	r := DefaultRegistry()
	names := r.Names()
	want := []string{"factcheck", "forecast", "math", "spelling"}
	if len(names) != len(want) {
		t.Fatalf("Names() = %v, want %v", names, want)
	}
	for i := range want {
		if names[i] != want[i] {
			t.Errorf("Names()[%d] = %q, want %q", i, names[i], want[i])
		}
	}

	if _, err := r.Lookup("math"); err != nil {
		t.Errorf("Lookup(math): %v", err)
	}
	if _, err := r.Lookup("missing"); err == nil {
		t.Error("Lookup(missing) did not error")
	}
}

func TestPriorityOrderingMatchesDedupScores(t *testing.T) {
	m := New(DefaultRegistry(), scriptedMock(), testConfig())
	result, err := m.Run(context.Background(), testDoc(), []string{"math", "spelling"}, session.New("/test"))
	if err != nil {
		t.Fatalf("run: %v", err)
	}

	prev := 2.0
	for _, c := range result.Comments {
		// Importance is the visible proxy; full priority uses severity too,
		// so just assert non-increasing importance for this fixture.
		if c.Importance > prev {
			t.Errorf("comments not in priority order")
		}
		prev = c.Importance
	}
}
