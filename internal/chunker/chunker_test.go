package chunker

import (
	"fmt"
	"strings"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/steveyegge/docaudit/internal/types"
)

func testConfig() Config {
	return Config{
		TargetWords:  20,
		MinChunkSize: 40,
		MaxChunkSize: 300,
		Overlap:      10,
		Strategy:     StrategyHybrid,
	}
}

func TestConfigValidation(t *testing.T) {
	tests := []struct {
		name        string
		mutate      func(*Config)
		expectError string
	}{
		{
			name:   "default config is valid",
			mutate: func(c *Config) {},
		},
		{
			name:        "min exceeds max",
			mutate:      func(c *Config) { c.MinChunkSize = 500; c.MaxChunkSize = 100 },
			expectError: "exceeds max_chunk_size",
		},
		{
			name:        "negative overlap",
			mutate:      func(c *Config) { c.Overlap = -1 },
			expectError: "overlap cannot be negative",
		},
		{
			name:        "overlap swallows minimum chunk",
			mutate:      func(c *Config) { c.Overlap = 50; c.MinChunkSize = 40 },
			expectError: "must be smaller than min_chunk_size",
		},
		{
			name:        "zero target words",
			mutate:      func(c *Config) { c.TargetWords = 0 },
			expectError: "target_words must be positive",
		},
		{
			name:        "unknown strategy",
			mutate:      func(c *Config) { c.Strategy = "telepathic" },
			expectError: "unknown strategy",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := testConfig()
			tt.mutate(&cfg)
			_, err := New(cfg)
			if tt.expectError == "" {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}
			if err == nil {
				t.Fatal("expected error, got nil")
			}
			if !strings.Contains(err.Error(), tt.expectError) {
				t.Errorf("error %q does not contain %q", err.Error(), tt.expectError)
			}
		})
	}
}

func TestShortDocumentYieldsSingleChunk(t *testing.T) {
	ck, err := New(testConfig())
	if err != nil {
		t.Fatal(err)
	}

	doc := types.Document{ID: "short", Text: "Just one sentence."}
	chunks, err := ck.Chunk(doc)
	if err != nil {
		t.Fatal(err)
	}
	if len(chunks) != 1 {
		t.Fatalf("got %d chunks, want 1", len(chunks))
	}
	c := chunks[0]
	if c.StartOffset != 0 || c.EndOffset != len(doc.Text) || c.Text != doc.Text {
		t.Errorf("single chunk must cover the whole document: %+v", c)
	}
	if c.StartLine != 1 {
		t.Errorf("start line = %d, want 1", c.StartLine)
	}
}

func buildLongDocument() string {
	var b strings.Builder
	b.WriteString("# Report\n\n")
	for s := 0; s < 4; s++ {
		fmt.Fprintf(&b, "## Section %d\n\n", s+1)
		for p := 0; p < 3; p++ {
			fmt.Fprintf(&b, "Paragraph %d of section %d has several sentences. ", p+1, s+1)
			b.WriteString("Each one pads the section out to a realistic length. ")
			b.WriteString("The chunker should break at structure, not mid-sentence.\n\n")
		}
	}
	return b.String()
}

// Coverage: removing overlap, the chunk union reconstructs the document.
func assertCoverage(t *testing.T, text string, chunks []types.Chunk) {
	t.Helper()
	if len(chunks) == 0 {
		t.Fatal("no chunks")
	}
	if chunks[0].StartOffset != 0 {
		t.Errorf("first chunk starts at %d", chunks[0].StartOffset)
	}
	if chunks[len(chunks)-1].EndOffset != len(text) {
		t.Errorf("last chunk ends at %d, want %d", chunks[len(chunks)-1].EndOffset, len(text))
	}
	for i, c := range chunks {
		if err := c.Verify(text); err != nil {
			t.Errorf("chunk %d fails offset invariant: %v", i, err)
		}
		if i > 0 && c.StartOffset > chunks[i-1].EndOffset {
			t.Errorf("gap before chunk %d", i)
		}
	}

	// Reconstruct by trimming each chunk's head back to the previous end
	var rebuilt strings.Builder
	prevEnd := 0
	for _, c := range chunks {
		rebuilt.WriteString(text[prevEnd:c.EndOffset])
		prevEnd = c.EndOffset
	}
	if rebuilt.String() != text {
		t.Error("chunk union does not reconstruct the document")
	}
}

func TestCoverageAcrossStrategies(t *testing.T) {
	text := buildLongDocument()

	for _, strategy := range []Strategy{StrategyStructural, StrategySemantic, StrategyHybrid} {
		t.Run(string(strategy), func(t *testing.T) {
			cfg := testConfig()
			cfg.Strategy = strategy
			ck, err := New(cfg)
			if err != nil {
				t.Fatal(err)
			}
			chunks, err := ck.Chunk(types.Document{ID: "doc", Text: text})
			if err != nil {
				t.Fatal(err)
			}
			if len(chunks) < 2 {
				t.Fatalf("expected multiple chunks, got %d", len(chunks))
			}
			assertCoverage(t, text, chunks)

			for i, c := range chunks {
				if len(c.Text) > cfg.MaxChunkSize {
					t.Errorf("chunk %d exceeds max size: %d", i, len(c.Text))
				}
			}
		})
	}
}

func TestOverlapBetweenChunks(t *testing.T) {
	cfg := testConfig()
	ck, err := New(cfg)
	if err != nil {
		t.Fatal(err)
	}
	text := buildLongDocument()
	chunks, err := ck.Chunk(types.Document{ID: "doc", Text: text})
	if err != nil {
		t.Fatal(err)
	}
	for i := 1; i < len(chunks); i++ {
		overlap := chunks[i-1].EndOffset - chunks[i].StartOffset
		if overlap < 0 {
			t.Errorf("negative overlap (gap) before chunk %d", i)
		}
		if overlap > cfg.Overlap {
			t.Errorf("overlap before chunk %d is %d, configured %d", i, overlap, cfg.Overlap)
		}
	}
}

func TestHardSplitWithoutBreaks(t *testing.T) {
	// One unbroken run of characters: no structure, no sentences
	text := strings.Repeat("a", 1000)
	cfg := testConfig()
	ck, err := New(cfg)
	if err != nil {
		t.Fatal(err)
	}
	chunks, err := ck.Chunk(types.Document{ID: "wall", Text: text})
	if err != nil {
		t.Fatal(err)
	}
	if len(chunks) < 2 {
		t.Fatalf("expected forced splits, got %d chunks", len(chunks))
	}
	assertCoverage(t, text, chunks)
}

// A hard split can land mid-rune; snapping the overlapped restart back to
// a rune start must never walk it behind the previous chunk's start, or
// the loop re-emits the same chunk forever.
func TestHardSplitAdvancesThroughMultiByteRunes(t *testing.T) {
	cfg := Config{TargetWords: 1, MinChunkSize: 4, MaxChunkSize: 5, Overlap: 3, Strategy: StrategyHybrid}
	ck, err := New(cfg)
	if err != nil {
		t.Fatal(err)
	}
	text := strings.Repeat("🙂", 4)

	type outcome struct {
		chunks []types.Chunk
		err    error
	}
	results := make(chan outcome, 1)
	go func() {
		chunks, err := ck.Chunk(types.Document{ID: "emoji", Text: text})
		results <- outcome{chunks, err}
	}()

	var got outcome
	select {
	case got = <-results:
	case <-time.After(10 * time.Second):
		t.Fatal("Chunk did not terminate: forward progress lost")
	}
	if got.err != nil {
		t.Fatal(got.err)
	}
	assertCoverage(t, text, got.chunks)
	for i, c := range got.chunks {
		if !utf8.ValidString(c.Text) {
			t.Errorf("chunk %d splits a rune: %q", i, c.Text)
		}
	}
}

func TestHeadingContext(t *testing.T) {
	text := "# Paper\n\n" + strings.Repeat("Intro sentence for padding purposes. ", 5) + "\n\n" +
		"## Methods\n\n" + strings.Repeat("Languid methodological prose continues here. ", 5) + "\n\n" +
		"## Results\n\n" + strings.Repeat("Very exciting results are described at length. ", 5) + "\n"

	cfg := testConfig()
	cfg.Strategy = StrategyStructural
	ck, err := New(cfg)
	if err != nil {
		t.Fatal(err)
	}
	chunks, err := ck.Chunk(types.Document{ID: "doc", Text: text})
	if err != nil {
		t.Fatal(err)
	}
	assertCoverage(t, text, chunks)

	sawMethods := false
	for _, c := range chunks {
		for _, h := range c.HeadingContext {
			if h == "Methods" {
				sawMethods = true
				// A chunk under Methods must also carry the outer Paper heading
				if c.HeadingContext[0] != "Paper" {
					t.Errorf("heading context %v should start with Paper", c.HeadingContext)
				}
			}
		}
	}
	if !sawMethods {
		t.Error("no chunk carried the Methods heading context")
	}
}

func TestHeadingStackReplacesSiblings(t *testing.T) {
	headings := []heading{
		{offset: 0, level: 1, text: "Paper"},
		{offset: 100, level: 2, text: "Methods"},
		{offset: 200, level: 2, text: "Results"},
	}

	got := headingStackAt(headings, 250)
	if len(got) != 2 || got[0] != "Paper" || got[1] != "Results" {
		t.Errorf("stack at 250 = %v, want [Paper Results]", got)
	}

	got = headingStackAt(headings, 150)
	if len(got) != 2 || got[1] != "Methods" {
		t.Errorf("stack at 150 = %v, want [Paper Methods]", got)
	}

	if got := headingStackAt(nil, 10); got != nil {
		t.Errorf("empty headings should yield nil context, got %v", got)
	}
}

func TestEmptyDocument(t *testing.T) {
	ck, err := New(testConfig())
	if err != nil {
		t.Fatal(err)
	}
	chunks, err := ck.Chunk(types.Document{ID: "empty", Text: ""})
	if err != nil {
		t.Fatal(err)
	}
	if len(chunks) != 1 || chunks[0].Text != "" {
		t.Errorf("empty document should yield one empty chunk, got %+v", chunks)
	}
}

func TestSentenceBoundaries(t *testing.T) {
	text := "First sentence. Second sentence! Third?\n\nNew paragraph."
	breaks := sentenceBoundaries(text)

	// Every boundary must land on a sentence start
	for _, b := range breaks {
		if b <= 0 || b >= len(text) {
			t.Errorf("boundary %d out of range", b)
			continue
		}
		if isSpace(text[b]) {
			t.Errorf("boundary %d lands on whitespace", b)
		}
	}

	wantStarts := []string{"Second", "Third", "New"}
	for _, w := range wantStarts {
		found := false
		for _, b := range breaks {
			if strings.HasPrefix(text[b:], w) {
				found = true
				break
			}
		}
		if !found {
			t.Errorf("no boundary at start of %q (breaks=%v)", w, breaks)
		}
	}
}
