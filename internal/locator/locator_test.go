package locator

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/steveyegge/docaudit/internal/types"
)

func TestExactMatch(t *testing.T) {
	haystack := "Here: 2 + 2 = 5 end"
	loc, ok := Locate("2 + 2 = 5", haystack, Options{})
	if !ok {
		t.Fatal("expected match")
	}
	if loc.StartOffset != 6 || loc.EndOffset != 15 {
		t.Errorf("offsets [%d,%d), want [6,15)", loc.StartOffset, loc.EndOffset)
	}
	if loc.Confidence != ConfidenceExact {
		t.Errorf("confidence = %v, want 1.0", loc.Confidence)
	}
	if loc.QuotedText != "2 + 2 = 5" {
		t.Errorf("quoted = %q", loc.QuotedText)
	}
}

// Offset round-trip: every location must satisfy
// haystack[start:end] == quotedText.
func assertRoundTrip(t *testing.T, haystack string, loc types.TextLocation) {
	t.Helper()
	if haystack[loc.StartOffset:loc.EndOffset] != loc.QuotedText {
		t.Errorf("round-trip failed: [%d,%d) is %q, quoted %q",
			loc.StartOffset, loc.EndOffset,
			haystack[loc.StartOffset:loc.EndOffset], loc.QuotedText)
	}
}

func TestNormalizedMatch(t *testing.T) {
	haystack := "The committee concluded that  the Results,\nas reported, were sound."

	// Model squashed whitespace and dropped punctuation
	loc, ok := Locate("the results as reported were sound", haystack, Options{})
	if !ok {
		t.Fatal("expected normalized match")
	}
	if loc.Confidence != ConfidenceNormalized {
		t.Errorf("confidence = %v, want 0.9", loc.Confidence)
	}
	assertRoundTrip(t, haystack, loc)
	if !strings.HasPrefix(loc.QuotedText, "the Results") {
		t.Errorf("quoted = %q", loc.QuotedText)
	}
}

// A match only discoverable after normalization never yields 1.0.
func TestConfidenceOrdering(t *testing.T) {
	haystack := "Value is   Forty  Two here."

	exact, ok := Locate("Forty  Two", haystack, Options{})
	if !ok || exact.Confidence != ConfidenceExact {
		t.Fatalf("exact match should yield 1.0, got %+v ok=%v", exact, ok)
	}

	norm, ok := Locate("forty two", haystack, Options{})
	if !ok {
		t.Fatal("expected normalized match")
	}
	if norm.Confidence >= ConfidenceExact {
		t.Errorf("normalized-only match yielded confidence %v", norm.Confidence)
	}
	assertRoundTrip(t, haystack, norm)
}

func TestPrefixMatch(t *testing.T) {
	haystack := "The quick brown fox jumps over the lazy dog near the river bank."

	// Needle starts out right but diverges after a few words
	needle := "The quick brown fox jumps over a sleeping cat in the barn"
	loc, ok := Locate(needle, haystack, Options{})
	if !ok {
		t.Fatal("expected prefix match")
	}
	if loc.Confidence != ConfidencePrefix {
		t.Errorf("confidence = %v, want 0.7", loc.Confidence)
	}
	if loc.QuotedText != "The quick brown fox jumps" {
		t.Errorf("quoted = %q", loc.QuotedText)
	}
	assertRoundTrip(t, haystack, loc)
}

func TestShortNeedleSkipsPrefixStrategy(t *testing.T) {
	// Under 20 chars: the prefix strategy must not fire
	if _, ok := Locate("zebra quark", "nothing matches here", Options{}); ok {
		t.Error("short unmatched needle should be not-found")
	}
}

func TestLineWindowMatch(t *testing.T) {
	lines := []string{
		"alpha beta gamma",
		"delta epsilon zeta",
		"eta theta iota",
		"kappa lambda mu",
		"the delta value rose",
		"nu xi omicron",
	}
	haystack := strings.Join(lines, "\n")

	// The model mangled the tail of a short quote: exact, normalized, and
	// prefix (needle has only five words) all fail globally; the line
	// hint lets the window strategy anchor on a shortened prefix
	needle := "the delta value fell sharply"
	if _, ok := Locate(needle, haystack, Options{}); ok {
		t.Fatal("needle should not match without a hint")
	}

	loc, ok := Locate(needle, haystack, Options{LineHint: 5, MaxLineDistance: 2})
	if !ok {
		t.Fatal("expected line-window match")
	}
	if loc.Confidence != ConfidenceLineWindow {
		t.Errorf("confidence = %v, want 0.8", loc.Confidence)
	}
	if loc.QuotedText != "the delta value" {
		t.Errorf("quoted = %q", loc.QuotedText)
	}
	assertRoundTrip(t, haystack, loc)
}

func TestLineWindowWidensFromHint(t *testing.T) {
	// Hint is off by a few lines; widening finds the span anyway
	haystack := strings.Repeat("filler line\n", 6) + "the delta value rose\n" + strings.Repeat("filler line\n", 3)
	loc, ok := Locate("the delta value fell sharply", haystack, Options{LineHint: 4, MaxLineDistance: 5})
	if !ok {
		t.Fatal("expected match after widening")
	}
	assertRoundTrip(t, haystack, loc)

	// Beyond the maximum distance the lookup gives up
	if _, ok := Locate("the delta value fell sharply", haystack, Options{LineHint: 1, MaxLineDistance: 2}); ok {
		t.Error("match beyond max distance should be not-found")
	}
}

func TestNotFoundIsNeverGuessed(t *testing.T) {
	haystack := "Completely unrelated content about gardening."
	if loc, ok := Locate("quantum flux capacitor alignment", haystack, Options{}); ok {
		t.Errorf("expected not-found, got %+v", loc)
	}
	if _, ok := Locate("", haystack, Options{}); ok {
		t.Error("empty needle must be not-found")
	}
	if _, ok := Locate("needle", "", Options{}); ok {
		t.Error("empty haystack must be not-found")
	}
}

func TestNormalizationIndexMapWithRepeatedWords(t *testing.T) {
	// The first word of the needle repeats earlier in the haystack; a
	// re-search heuristic would anchor on the wrong occurrence
	haystack := "the cat sat. Later, the   CAT, sat again happily."
	loc, ok := Locate("the cat sat again", haystack, Options{})
	if !ok {
		t.Fatal("expected normalized match")
	}
	assertRoundTrip(t, haystack, loc)
	if loc.StartOffset < 20 {
		t.Errorf("matched the wrong occurrence at %d: %q", loc.StartOffset, loc.QuotedText)
	}
}

func TestLocateInChunkTranslatesOffsets(t *testing.T) {
	doc := "Intro text.\nHere: 2 + 2 = 5 end\nTrailing."
	chunkStart := strings.Index(doc, "Here:")
	chunkEnd := strings.Index(doc, " end") + len(" end")
	chunk := &types.Chunk{
		ID:          "c-1",
		Text:        doc[chunkStart:chunkEnd],
		StartOffset: chunkStart,
		EndOffset:   chunkEnd,
	}

	loc, err := LocateInChunk("2 + 2 = 5", chunk, doc, Options{})
	if err != nil {
		t.Fatal(err)
	}
	if doc[loc.StartOffset:loc.EndOffset] != "2 + 2 = 5" {
		t.Errorf("document-absolute range [%d,%d) holds %q",
			loc.StartOffset, loc.EndOffset, doc[loc.StartOffset:loc.EndOffset])
	}
	if loc.Confidence != ConfidenceExact {
		t.Errorf("confidence = %v", loc.Confidence)
	}
}

func TestLocateInChunkDetectsOffsetCorruption(t *testing.T) {
	doc := "aaaa bbbb cccc dddd"
	// Chunk text is genuine document text, but the declared offsets are
	// shifted: translation must fail re-verification
	chunk := &types.Chunk{
		ID:          "c-bad",
		Text:        "bbbb cccc",
		StartOffset: 0,
		EndOffset:   9,
	}

	_, err := LocateInChunk("cccc", chunk, doc, Options{})
	if !errors.Is(err, ErrOffsetMismatch) {
		t.Errorf("err = %v, want ErrOffsetMismatch", err)
	}
}

func TestLocateInChunkNotFound(t *testing.T) {
	doc := "aaaa bbbb"
	chunk := &types.Chunk{ID: "c-1", Text: "aaaa", StartOffset: 0, EndOffset: 4}
	_, err := LocateInChunk("zzzz", chunk, doc, Options{})
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}

func TestLocateBatch(t *testing.T) {
	doc := "alpha beta gamma delta epsilon"
	chunk := &types.Chunk{ID: "c-1", Text: doc, StartOffset: 0, EndOffset: len(doc)}

	reqs := []BatchRequest{
		{ID: "f-1", SearchText: "beta gamma", Chunk: chunk},
		{ID: "f-2", SearchText: "missing span", Chunk: chunk},
		{ID: "f-3", SearchText: "epsilon"},
	}

	results := LocateBatch(context.Background(), doc, reqs, 2)
	if len(results) != 3 {
		t.Fatalf("got %d results", len(results))
	}
	if results[0].Err != nil || results[0].Location.QuotedText != "beta gamma" {
		t.Errorf("f-1: %+v", results[0])
	}
	if !errors.Is(results[1].Err, ErrNotFound) {
		t.Errorf("f-2 err = %v", results[1].Err)
	}
	if results[2].Err != nil || doc[results[2].Location.StartOffset:results[2].Location.EndOffset] != "epsilon" {
		t.Errorf("f-3: %+v", results[2])
	}
}

func TestNormalizeWithMap(t *testing.T) {
	n := normalizeWithMap("  Hello,   WORLD!  ")
	if n.text != "hello world" {
		t.Fatalf("normalized = %q", n.text)
	}
	// Projection of the full normalized range must span the meaningful
	// original content
	start, end := n.project(0, len(n.text))
	orig := "  Hello,   WORLD!  "
	if orig[start] != 'H' {
		t.Errorf("projected start %d lands on %q", start, orig[start])
	}
	if !strings.Contains(orig[start:end], "WORLD") {
		t.Errorf("projected range %q misses WORLD", orig[start:end])
	}
}
