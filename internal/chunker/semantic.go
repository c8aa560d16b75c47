package chunker

// sentenceBoundaries returns sorted byte offsets of likely sentence
// starts: positions following terminal punctuation plus whitespace, and
// positions following blank-line runs. Heuristic by nature; a missed
// boundary only shifts a chunk break, never corrupts offsets.
func sentenceBoundaries(text string) []int {
	var breaks []int
	lastBreak := -1

	for i := 0; i < len(text); i++ {
		switch text[i] {
		case '.', '!', '?':
			j := i + 1
			// Consume closing quotes/parens attached to the sentence
			for j < len(text) && (text[j] == '"' || text[j] == '\'' || text[j] == ')' || text[j] == ']') {
				j++
			}
			if j >= len(text) || !isSpace(text[j]) {
				continue
			}
			// Skip the whitespace run; the boundary is the next sentence's
			// first byte
			for j < len(text) && isSpace(text[j]) {
				j++
			}
			if j < len(text) && j != lastBreak {
				breaks = append(breaks, j)
				lastBreak = j
			}
		case '\n':
			// Blank line = paragraph break
			if i+1 < len(text) && text[i+1] == '\n' {
				j := i + 1
				for j < len(text) && isSpace(text[j]) {
					j++
				}
				if j < len(text) && j != lastBreak {
					breaks = append(breaks, j)
					lastBreak = j
				}
			}
		}
	}
	return breaks
}

func isSpace(b byte) bool {
	return b == ' ' || b == '\t' || b == '\n' || b == '\r'
}
