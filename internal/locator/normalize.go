package locator

import (
	"unicode"
	"unicode/utf8"
)

// normalized is a haystack transformed for forgiving comparison
// (lowercased, whitespace collapsed, punctuation stripped) together with
// an explicit per-byte index map back into the original string.
//
// The map is what makes normalized matches projectable: a match at
// normalized bytes [i,j) corresponds exactly to original bytes
// [starts[i], ends[j-1]). Re-searching the original for an approximate
// position would be a heuristic with no correctness guarantee for
// repeated words; the map removes the guess entirely.
type normalized struct {
	text   string
	starts []int // original offset of the rune each normalized byte came from
	ends   []int // original offset just past that rune
}

// normalizeWithMap lowercases, collapses whitespace runs to a single
// space, and strips punctuation and symbols, tracking origin offsets for
// every emitted byte.
func normalizeWithMap(s string) normalized {
	buf := make([]byte, 0, len(s))
	starts := make([]int, 0, len(s))
	ends := make([]int, 0, len(s))

	lastWasSpace := true // swallows leading whitespace
	for i := 0; i < len(s); {
		r, size := utf8.DecodeRuneInString(s[i:])

		switch {
		case unicode.IsSpace(r):
			if !lastWasSpace {
				buf = append(buf, ' ')
				starts = append(starts, i)
				ends = append(ends, i+size)
				lastWasSpace = true
			}
		case unicode.IsPunct(r) || unicode.IsSymbol(r):
			// Stripped entirely
		default:
			lr := unicode.ToLower(r)
			before := len(buf)
			buf = utf8.AppendRune(buf, lr)
			for b := before; b < len(buf); b++ {
				starts = append(starts, i)
				ends = append(ends, i+size)
			}
			lastWasSpace = false
		}
		i += size
	}

	// Trim a trailing collapsed space
	if n := len(buf); n > 0 && buf[n-1] == ' ' {
		buf = buf[:n-1]
		starts = starts[:n-1]
		ends = ends[:n-1]
	}

	return normalized{text: string(buf), starts: starts, ends: ends}
}

// project maps a match on the normalized text back onto original offsets.
// The range [i,j) must lie within the normalized text.
func (n *normalized) project(i, j int) (start, end int) {
	return n.starts[i], n.ends[j-1]
}
