// Package chunker splits a document into ordered, slightly overlapping
// chunks that carry enough metadata (absolute offsets, line numbers,
// heading context) to map model output back onto the original document.
//
// Coverage invariant: the union of chunk ranges reconstructs the full
// document with no gaps once overlap is removed. Offset invariant: every
// chunk's text equals the document slice at its declared offsets; both are
// asserted before chunks leave this package.
package chunker

import (
	"fmt"
	"os"
	"sort"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/steveyegge/docaudit/internal/types"
)

// Strategy selects how break points are chosen.
type Strategy string

const (
	// StrategyStructural prefers markdown structure: headings and
	// paragraph starts
	StrategyStructural Strategy = "structural"

	// StrategySemantic prefers sentence boundaries
	StrategySemantic Strategy = "semantic"

	// StrategyHybrid prefers structure and falls back to sentences inside
	// oversized sections
	StrategyHybrid Strategy = "hybrid"
)

// Default chunking parameters.
const (
	DefaultTargetWords  = 500
	DefaultMinChunkSize = 200
	DefaultMaxChunkSize = 4000
	DefaultOverlap      = 200
)

// Config holds chunking parameters. Malformed configurations are rejected
// at construction time, before any processing starts.
type Config struct {
	// TargetWords is the target chunk size in words
	TargetWords int `yaml:"target_words"`

	// MinChunkSize and MaxChunkSize bound chunk size in bytes
	MinChunkSize int `yaml:"min_chunk_size"`
	MaxChunkSize int `yaml:"max_chunk_size"`

	// Overlap is the number of bytes consecutive chunks share
	Overlap int `yaml:"overlap"`

	// Strategy selects the break-point heuristic
	Strategy Strategy `yaml:"strategy"`
}

// DefaultConfig returns the default chunking configuration.
func DefaultConfig() Config {
	return Config{
		TargetWords:  DefaultTargetWords,
		MinChunkSize: DefaultMinChunkSize,
		MaxChunkSize: DefaultMaxChunkSize,
		Overlap:      DefaultOverlap,
		Strategy:     StrategyHybrid,
	}
}

// Validate checks the configuration for contradictions.
func (c *Config) Validate() error {
	if c.TargetWords <= 0 {
		return fmt.Errorf("target_words must be positive (got %d)", c.TargetWords)
	}
	if c.MinChunkSize <= 0 {
		return fmt.Errorf("min_chunk_size must be positive (got %d)", c.MinChunkSize)
	}
	if c.MinChunkSize > c.MaxChunkSize {
		return fmt.Errorf("min_chunk_size (%d) exceeds max_chunk_size (%d)", c.MinChunkSize, c.MaxChunkSize)
	}
	if c.Overlap < 0 {
		return fmt.Errorf("overlap cannot be negative (got %d)", c.Overlap)
	}
	if c.Overlap >= c.MinChunkSize {
		return fmt.Errorf("overlap (%d) must be smaller than min_chunk_size (%d)", c.Overlap, c.MinChunkSize)
	}
	switch c.Strategy {
	case StrategyStructural, StrategySemantic, StrategyHybrid:
	default:
		return fmt.Errorf("unknown strategy %q (want structural, semantic, or hybrid)", c.Strategy)
	}
	return nil
}

// Chunker splits documents according to one validated configuration.
type Chunker struct {
	cfg Config
}

// New creates a Chunker, rejecting malformed configuration.
func New(cfg Config) (*Chunker, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid chunker config: %w", err)
	}
	return &Chunker{cfg: cfg}, nil
}

// Chunk splits the document into ordered chunks covering 100% of the text.
func (ck *Chunker) Chunk(doc types.Document) ([]types.Chunk, error) {
	text := doc.Text

	lineStarts := computeLineStarts(text)

	// Content at or below the minimum yields exactly one chunk
	if len(text) <= ck.cfg.MinChunkSize {
		chunk := ck.buildChunk(text, 0, len(text), lineStarts, nil)
		if err := chunk.Verify(text); err != nil {
			return nil, fmt.Errorf("chunking produced inconsistent offsets: %w", err)
		}
		return []types.Chunk{chunk}, nil
	}

	primary, secondary, headings := ck.breakCandidates(text)

	var chunks []types.Chunk
	start := 0
	for start < len(text) {
		end := ck.pickEnd(text, start, primary, secondary)

		chunk := ck.buildChunk(text, start, end, lineStarts, headings)
		if err := chunk.Verify(text); err != nil {
			return nil, fmt.Errorf("chunking produced inconsistent offsets: %w", err)
		}
		chunks = append(chunks, chunk)

		if end >= len(text) {
			break
		}

		next := end - ck.cfg.Overlap
		if next <= start {
			next = start + 1
		}
		next = snapToRuneStart(text, next)
		if next <= start {
			// Snapping walked back over the previous start; advance one
			// whole rune to guarantee forward progress
			_, width := utf8.DecodeRuneInString(text[start:])
			next = start + width
		}
		start = next
	}

	if err := verifyCoverage(text, chunks); err != nil {
		return nil, err
	}
	return chunks, nil
}

// pickEnd chooses the end offset of the chunk beginning at start. Break
// candidates are searched inside the [min,max] size window, nearest to the
// word-count target; with no candidate in the window the chunk is
// hard-split at the maximum size.
func (ck *Chunker) pickEnd(text string, start int, primary, secondary []int) int {
	remaining := len(text) - start
	if remaining <= ck.cfg.MaxChunkSize {
		// Tail fits in one chunk unless it is comfortably above target
		// and has a usable break
		if remaining <= ck.cfg.MinChunkSize {
			return len(text)
		}
	}

	target := start + offsetAfterWords(text[start:], ck.cfg.TargetWords)
	lo := start + ck.cfg.MinChunkSize
	hi := start + ck.cfg.MaxChunkSize
	if hi > len(text) {
		hi = len(text)
	}
	if target > hi {
		target = hi
	}

	if end, ok := nearestCandidate(primary, lo, hi, target); ok {
		return end
	}
	if end, ok := nearestCandidate(secondary, lo, hi, target); ok {
		return end
	}
	if hi == len(text) {
		return len(text)
	}

	// No structural or sentence break inside the window: force a hard
	// split at the size boundary rather than failing
	end := snapToRuneStart(text, hi)
	if end <= start {
		// The whole window sits inside one rune; split after it instead
		// of mid-rune
		_, width := utf8.DecodeRuneInString(text[start:])
		end = start + width
	}
	fmt.Fprintf(os.Stderr, "⚠ no break point within max chunk size, hard-splitting at offset %d\n", end)
	return end
}

// breakCandidates computes the ordered break-offset lists for the
// configured strategy. primary is preferred over secondary.
func (ck *Chunker) breakCandidates(text string) (primary, secondary []int, headings []heading) {
	switch ck.cfg.Strategy {
	case StrategyStructural:
		primary, headings = markdownBoundaries(text)
		return primary, nil, headings
	case StrategySemantic:
		return sentenceBoundaries(text), nil, nil
	default: // hybrid
		primary, headings = markdownBoundaries(text)
		return primary, sentenceBoundaries(text), headings
	}
}

func (ck *Chunker) buildChunk(text string, start, end int, lineStarts []int, headings []heading) types.Chunk {
	return types.Chunk{
		ID:             uuid.New().String(),
		Text:           text[start:end],
		StartOffset:    start,
		EndOffset:      end,
		StartLine:      lineAt(lineStarts, start),
		EndLine:        lineAt(lineStarts, maxInt(start, end-1)),
		HeadingContext: headingStackAt(headings, start),
	}
}

// nearestCandidate returns the break offset in cands∩[lo,hi] closest to
// target, using binary search.
func nearestCandidate(cands []int, lo, hi, target int) (int, bool) {
	if len(cands) == 0 || lo > hi {
		return 0, false
	}
	first := sort.SearchInts(cands, lo)
	last := sort.SearchInts(cands, hi+1) - 1
	if first > last {
		return 0, false
	}

	// The candidate straddling target, whichever side is closer
	i := sort.SearchInts(cands, target)
	best := -1
	if i <= last && i >= first {
		best = cands[i]
	}
	if i-1 >= first && i-1 <= last {
		if best < 0 || target-cands[i-1] < best-target {
			best = cands[i-1]
		}
	}
	if best < 0 {
		if cands[first] >= lo && cands[first] <= hi {
			best = cands[first]
		} else {
			return 0, false
		}
	}
	return best, true
}

// offsetAfterWords returns the byte offset just past the first n words.
func offsetAfterWords(s string, n int) int {
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
				return i
			}
		}
	}
	return len(s)
}

// computeLineStarts returns the byte offset of each line start, always
// including 0.
func computeLineStarts(text string) []int {
	starts := []int{0}
	for i := 0; i < len(text); i++ {
		if text[i] == '\n' && i+1 < len(text) {
			starts = append(starts, i+1)
		}
	}
	return starts
}

// lineAt returns the 1-based line number containing the byte offset.
func lineAt(lineStarts []int, offset int) int {
	return sort.SearchInts(lineStarts, offset+1)
}

// snapToRuneStart moves pos back to the nearest UTF-8 rune start so a
// split never lands mid-rune.
func snapToRuneStart(text string, pos int) int {
	for pos > 0 && pos < len(text) && !utf8.RuneStart(text[pos]) {
		pos--
	}
	return pos
}

// verifyCoverage asserts the chunk set reconstructs the document:
// ordered, first chunk at 0, last chunk at len, no gaps between
// consecutive chunks.
func verifyCoverage(text string, chunks []types.Chunk) error {
	if len(chunks) == 0 {
		if len(text) == 0 {
			return nil
		}
		return fmt.Errorf("no chunks produced for %d-byte document", len(text))
	}
	if chunks[0].StartOffset != 0 {
		return fmt.Errorf("first chunk starts at %d, not 0", chunks[0].StartOffset)
	}
	if last := chunks[len(chunks)-1]; last.EndOffset != len(text) {
		return fmt.Errorf("last chunk ends at %d, document has %d bytes", last.EndOffset, len(text))
	}
	for i := 1; i < len(chunks); i++ {
		if chunks[i].StartOffset > chunks[i-1].EndOffset {
			return fmt.Errorf("gap between chunk %d (ends %d) and chunk %d (starts %d)",
				i-1, chunks[i-1].EndOffset, i, chunks[i].StartOffset)
		}
		if chunks[i].StartOffset <= chunks[i-1].StartOffset {
			return fmt.Errorf("chunk %d does not advance past chunk %d", i, i-1)
		}
	}
	return nil
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}
