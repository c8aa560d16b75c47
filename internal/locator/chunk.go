package locator

import (
	"errors"
	"fmt"
	"os"

	"github.com/steveyegge/docaudit/internal/types"
)

// ErrNotFound means no strategy produced a verifiable match.
var ErrNotFound = errors.New("search text not found")

// ErrOffsetMismatch means a match was found but the chunk's declared
// offsets disagree with the live document. That is a chunking bug,
// surfaced loudly rather than silently corrected.
var ErrOffsetMismatch = errors.New("located range fails document verification")

// LocateInChunk finds searchText inside the chunk and translates the hit
// to document-absolute coordinates. The translated range is re-verified
// against the live document text; a mismatch indicates the chunk's own
// offsets were stale or miscomputed, so the finding is dropped and the
// corruption is logged with both the declared and observed positions.
func LocateInChunk(searchText string, chunk *types.Chunk, documentText string, opts Options) (types.TextLocation, error) {
	loc, ok := Locate(searchText, chunk.Text, opts)
	if !ok {
		return types.TextLocation{}, ErrNotFound
	}

	abs := types.TextLocation{
		StartOffset: loc.StartOffset + chunk.StartOffset,
		EndOffset:   loc.EndOffset + chunk.StartOffset,
		QuotedText:  loc.QuotedText,
		Confidence:  loc.Confidence,
	}

	if abs.StartOffset < 0 || abs.EndOffset > len(documentText) ||
		documentText[abs.StartOffset:abs.EndOffset] != abs.QuotedText {
		observed := "<out of range>"
		if chunk.StartOffset >= 0 && chunk.EndOffset <= len(documentText) && chunk.StartOffset <= chunk.EndOffset {
			observed = snippet(documentText[chunk.StartOffset:chunk.EndOffset], 60)
		}
		fmt.Fprintf(os.Stderr,
			"✗ offset corruption: chunk %s declares [%d,%d) %q but document holds %q at that range\n",
			chunk.ID, chunk.StartOffset, chunk.EndOffset, snippet(chunk.Text, 60), observed)
		return types.TextLocation{}, ErrOffsetMismatch
	}

	return abs, nil
}

func snippet(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}
