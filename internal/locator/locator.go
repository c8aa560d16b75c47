// Package locator resolves short quoted spans back into exact, verifiable
// byte ranges of the text they were quoted from.
//
// The model is asked to quote the original document but cannot be trusted
// to reproduce it verbatim: it paraphrases whitespace, drops punctuation,
// truncates. The locator runs a cascade of matching strategies, cheapest
// and most trustworthy first, and stops at the first success. It never
// returns a best-effort guess: a span either verifies or is reported not
// found.
package locator

import (
	"strings"

	"github.com/steveyegge/docaudit/internal/types"
)

// Confidence scores by strategy. Exact matches are fully trusted; every
// weaker strategy is marked down so downstream scoring can prefer
// better-grounded findings.
const (
	ConfidenceExact      = 1.0
	ConfidenceNormalized = 0.9
	ConfidenceLineWindow = 0.8
	ConfidencePrefix     = 0.7
)

// Cascade tuning.
const (
	// prefixMinNeedleLen gates the partial-prefix strategy: short needles
	// are cheap to match whole and a prefix of them would be meaningless
	prefixMinNeedleLen = 20

	// prefixWordCount is how many leading words the prefix strategy keeps
	prefixWordCount = 5

	// DefaultMaxLineDistance is how far the line-window strategy widens
	// around the hinted line before giving up
	DefaultMaxLineDistance = 10
)

// Options tunes a single lookup.
type Options struct {
	// LineHint is a 1-based line number near which the span is expected
	// (0 = no hint)
	LineHint int

	// MaxLineDistance overrides DefaultMaxLineDistance (0 = default)
	MaxLineDistance int
}

// Locate finds searchText inside haystack. The returned location always
// satisfies haystack[StartOffset:EndOffset] == QuotedText. The boolean is
// false when no strategy produced a verifiable match.
func Locate(searchText, haystack string, opts Options) (types.TextLocation, bool) {
	needle := strings.TrimSpace(searchText)
	if needle == "" || haystack == "" {
		return types.TextLocation{}, false
	}

	// Strategy 1: exact substring
	if idx := strings.Index(haystack, needle); idx >= 0 {
		return makeLocation(haystack, idx, idx+len(needle), ConfidenceExact), true
	}

	// Strategy 2: normalized match projected through the index map
	normHay := normalizeWithMap(haystack)
	if loc, ok := normalizedSearch(&normHay, needle, haystack, ConfidenceNormalized); ok {
		return loc, true
	}

	// Strategy 3: partial prefix for long needles
	if len(needle) >= prefixMinNeedleLen {
		if loc, ok := prefixSearch(&normHay, needle, haystack); ok {
			return loc, true
		}
	}

	// Strategy 4: windowed search near the hinted line
	if opts.LineHint > 0 {
		if loc, ok := lineWindowSearch(needle, haystack, opts); ok {
			return loc, true
		}
	}

	return types.TextLocation{}, false
}

// normalizedSearch looks for the normalized needle in the pre-normalized
// haystack and projects the hit back onto original offsets.
func normalizedSearch(normHay *normalized, needle, haystack string, confidence float64) (types.TextLocation, bool) {
	normNeedle := normalizeWithMap(needle).text
	if normNeedle == "" {
		return types.TextLocation{}, false
	}
	idx := strings.Index(normHay.text, normNeedle)
	if idx < 0 {
		return types.TextLocation{}, false
	}
	start, end := normHay.project(idx, idx+len(normNeedle))
	return makeLocation(haystack, start, end, confidence), true
}

// prefixSearch matches just the first few words of a long needle, exact
// first, then normalized.
func prefixSearch(normHay *normalized, needle, haystack string) (types.TextLocation, bool) {
	prefix := firstWords(needle, prefixWordCount)
	if prefix == "" || prefix == needle {
		return types.TextLocation{}, false
	}

	if idx := strings.Index(haystack, prefix); idx >= 0 {
		return makeLocation(haystack, idx, idx+len(prefix), ConfidencePrefix), true
	}
	return normalizedSearch(normHay, prefix, haystack, ConfidencePrefix)
}

// lineWindowSearch tries ever-wider line windows centered on the hint.
// Inside a window the matching is looser than the global strategies:
// exact, normalized, then progressively shorter word-prefixes of the
// needle. The hint is what licenses the looseness: a 2-word prefix is
// far too weak to trust globally but is trustworthy within a few lines
// of where the model said the span lives.
func lineWindowSearch(needle, haystack string, opts Options) (types.TextLocation, bool) {
	maxDist := opts.MaxLineDistance
	if maxDist <= 0 {
		maxDist = DefaultMaxLineDistance
	}

	lineStarts := lineStartOffsets(haystack)
	hint := opts.LineHint - 1 // to 0-based index
	if hint < 0 || hint >= len(lineStarts) {
		return types.TextLocation{}, false
	}

	for dist := 0; dist <= maxDist; dist++ {
		lo := hint - dist
		if lo < 0 {
			lo = 0
		}
		hi := hint + dist
		if hi >= len(lineStarts) {
			hi = len(lineStarts) - 1
		}

		winStart := lineStarts[lo]
		winEnd := len(haystack)
		if hi+1 < len(lineStarts) {
			winEnd = lineStarts[hi+1]
		}
		window := haystack[winStart:winEnd]

		if loc, ok := searchInWindow(needle, window); ok {
			return makeLocation(haystack, winStart+loc.StartOffset, winStart+loc.EndOffset, ConfidenceLineWindow), true
		}

		// Window already spans the whole haystack; widening further
		// cannot help
		if lo == 0 && hi == len(lineStarts)-1 {
			break
		}
	}
	return types.TextLocation{}, false
}

// searchInWindow runs the loosened in-window cascade. Offsets in the
// returned location are window-relative.
func searchInWindow(needle, window string) (types.TextLocation, bool) {
	if idx := strings.Index(window, needle); idx >= 0 {
		return makeLocation(window, idx, idx+len(needle), ConfidenceLineWindow), true
	}
	normWin := normalizeWithMap(window)
	if loc, ok := normalizedSearch(&normWin, needle, window, ConfidenceLineWindow); ok {
		return loc, true
	}

	// Shrink the needle word by word; stop at two words, below which a
	// match means nothing even near the hint
	words := len(strings.Fields(needle))
	start := prefixWordCount
	if words-1 < start {
		start = words - 1
	}
	for k := start; k >= 2; k-- {
		prefix := firstWords(needle, k)
		if prefix == "" {
			continue
		}
		if idx := strings.Index(window, prefix); idx >= 0 {
			return makeLocation(window, idx, idx+len(prefix), ConfidenceLineWindow), true
		}
		if loc, ok := normalizedSearch(&normWin, prefix, window, ConfidenceLineWindow); ok {
			return loc, true
		}
	}
	return types.TextLocation{}, false
}

func makeLocation(haystack string, start, end int, confidence float64) types.TextLocation {
	return types.TextLocation{
		StartOffset: start,
		EndOffset:   end,
		QuotedText:  haystack[start:end],
		Confidence:  confidence,
	}
}

// firstWords returns the leading slice of s holding its first n words,
// original spacing preserved. Returns "" when s has n words or fewer,
// since a prefix equal to the whole needle adds nothing over earlier
// strategies.
func firstWords(s string, n int) string {
	inWord := false
	words := 0
	for i := 0; i < len(s); i++ {
		ws := s[i] == ' ' || s[i] == '\t' || s[i] == '\n' || s[i] == '\r'
		if !ws && !inWord {
			inWord = true
		} else if ws && inWord {
			inWord = false
			words++
			if words >= n {
				return strings.TrimSpace(s[:i])
			}
		}
	}
	return ""
}

func lineStartOffsets(s string) []int {
	starts := []int{0}
	for i := 0; i < len(s); i++ {
		if s[i] == '\n' && i+1 < len(s) {
			starts = append(starts, i+1)
		}
	}
	return starts
}
