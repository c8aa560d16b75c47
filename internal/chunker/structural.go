package chunker

import (
	"sort"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	gmtext "github.com/yuin/goldmark/text"
)

// heading records a markdown heading and where its line begins.
type heading struct {
	offset int
	level  int
	text   string
}

// markdownBoundaries walks the goldmark AST and returns the sorted byte
// offsets where top-level blocks (headings, paragraphs, lists, code
// blocks) begin, plus the document's headings. Block offsets are snapped
// back to the start of their line so a break lands before the "#" marker,
// not after it.
func markdownBoundaries(source string) ([]int, []heading) {
	src := []byte(source)
	root := goldmark.New().Parser().Parse(gmtext.NewReader(src))

	seen := map[int]bool{}
	var breaks []int
	var headings []heading

	for node := root.FirstChild(); node != nil; node = node.NextSibling() {
		off, ok := blockOffset(src, node)
		if !ok {
			continue
		}
		off = lineStartBefore(source, off)

		if !seen[off] {
			seen[off] = true
			breaks = append(breaks, off)
		}

		if h, isHeading := node.(*ast.Heading); isHeading {
			headings = append(headings, heading{
				offset: off,
				level:  h.Level,
				text:   headingText(src, h),
			})
		}
	}

	sort.Ints(breaks)
	return breaks, headings
}

// blockOffset finds the source offset of a block node's first line,
// descending into containers (lists, blockquotes) that carry no lines of
// their own.
func blockOffset(src []byte, node ast.Node) (int, bool) {
	if lines := node.Lines(); lines != nil && lines.Len() > 0 {
		return lines.At(0).Start, true
	}
	for child := node.FirstChild(); child != nil; child = child.NextSibling() {
		if off, ok := blockOffset(src, child); ok {
			return off, true
		}
	}
	return 0, false
}

// headingText extracts the raw heading text from its line segments.
func headingText(src []byte, h *ast.Heading) string {
	var b strings.Builder
	lines := h.Lines()
	for i := 0; i < lines.Len(); i++ {
		seg := lines.At(i)
		b.Write(src[seg.Start:seg.Stop])
	}
	return strings.TrimSpace(b.String())
}

// lineStartBefore walks back from off to the start of its line.
func lineStartBefore(text string, off int) int {
	for off > 0 && text[off-1] != '\n' {
		off--
	}
	return off
}

// headingStackAt returns the heading context in effect at a byte offset:
// the stack of headings whose sections contain the offset, outermost
// first. A level-2 heading pops any prior level ≥ 2 before pushing.
func headingStackAt(headings []heading, offset int) []string {
	var stack []heading
	for _, h := range headings {
		if h.offset > offset {
			break
		}
		for len(stack) > 0 && stack[len(stack)-1].level >= h.level {
			stack = stack[:len(stack)-1]
		}
		stack = append(stack, h)
	}
	if len(stack) == 0 {
		return nil
	}
	context := make([]string, len(stack))
	for i, h := range stack {
		context[i] = h.text
	}
	return context
}
