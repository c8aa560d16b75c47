package llm

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"regexp"
	"strings"
)

// Pre-compiled regular expressions for performance.
var (
	// Code fence patterns. Newlines are optional to handle responses
	// where the model omits them.
	codeFenceStartRegex = regexp.MustCompile(`(?s)^` + "`" + `{3}(?:json|javascript|js)?\s*\n?([\s\S]*?)\n?` + "`" + `{3}\s*$`)
	codeFenceAnyRegex   = regexp.MustCompile(`(?s)` + "`" + `{3}(?:json|javascript|js)?\s*\n?([\s\S]*?)\n?` + "`" + `{3}`)

	// JSON cleanup patterns
	trailingCommaRegex     = regexp.MustCompile(`,(\s*[}\]])`)
	unquotedKeyRegex       = regexp.MustCompile(`([{,]\s*)([a-zA-Z_$][a-zA-Z0-9_$]*)\s*:`)
	singleLineCommentRegex = regexp.MustCompile(`(?m)//.*$`)
	multiLineCommentRegex  = regexp.MustCompile(`(?s)/\*.*?\*/`)

	// JSON extraction patterns (greedy to capture nested structures)
	objectRegex = regexp.MustCompile(`(?s)\{[\s\S]*\}`)
	arrayRegex  = regexp.MustCompile(`(?s)\[[\s\S]*\]`)
)

// ParseResult represents the result of a JSON parse operation.
type ParseResult[T any] struct {
	Success      bool
	Data         T
	Error        string
	OriginalText string
}

// ParseOptions configures JSON parsing behavior.
type ParseOptions struct {
	Context      string // Context for error messages and logs
	MaxInputSize int    // Maximum input size in bytes (0 = default 10MB)
}

const defaultMaxInputSize = 10 * 1024 * 1024

// Parse attempts to parse JSON with multiple fallback strategies. Models
// wrap JSON in code fences, leave trailing commas, and embed JSON in
// prose; every plugin funnels its responses through here so those quirks
// are handled in one place.
//
// Strategy sequence:
//  1. Direct JSON parse
//  2. Remove code fences and retry
//  3. Fix common JSON issues and retry
//  4. Extract JSON from mixed content and retry
func Parse[T any](text string, opts ...ParseOptions) ParseResult[T] {
	var options ParseOptions
	if len(opts) > 0 {
		options = opts[0]
	}
	maxSize := options.MaxInputSize
	if maxSize == 0 {
		maxSize = defaultMaxInputSize
	}

	// Size limit prevents pathological inputs from exhausting memory
	if len(text) > maxSize {
		preview := text
		if len(text) > 1000 {
			preview = text[:1000] + "..."
		}
		return createError[T](
			fmt.Sprintf("input exceeds size limit (%d > %d bytes)", len(text), maxSize),
			preview, options.Context)
	}

	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return createError[T]("empty input", text, options.Context)
	}

	// Strategy 1: Direct JSON parse
	if result, err := tryDirectParse[T](trimmed); err == nil {
		return ParseResult[T]{Success: true, Data: result, OriginalText: text}
	} else {
		slog.Debug("direct JSON parse failed, trying cleanup strategies",
			"error", err.Error(),
			"textPreview", truncate(text, 100),
			"context", options.Context)
	}

	// Strategy 2: Remove code fences and try again
	withoutFences := removeCodeFences(trimmed)
	if withoutFences != trimmed {
		if result, err := tryDirectParse[T](withoutFences); err == nil {
			return ParseResult[T]{Success: true, Data: result, OriginalText: text}
		}
	}

	// Strategy 3: Fix common JSON issues
	cleaned := cleanupJSON(withoutFences)
	if result, err := tryDirectParse[T](cleaned); err == nil {
		return ParseResult[T]{Success: true, Data: result, OriginalText: text}
	}

	// Strategy 4: Extract JSON from mixed content. Extract from the
	// cleaned version, not the original (which may still carry fences).
	if extracted := extractJSON(cleaned); extracted != "" {
		if result, err := tryDirectParse[T](extracted); err == nil {
			return ParseResult[T]{Success: true, Data: result, OriginalText: text}
		}
	}

	return createError[T]("all JSON parsing strategies failed", text, options.Context)
}

// ParseOrDefault parses JSON and returns a fallback value on error.
func ParseOrDefault[T any](text string, fallback T, opts ...ParseOptions) T {
	result := Parse[T](text, opts...)
	if result.Success {
		return result.Data
	}
	slog.Debug("JSON parse failed, using fallback", "error", result.Error)
	return fallback
}

// tryDirectParse attempts a direct JSON parse without any cleanup.
func tryDirectParse[T any](text string) (T, error) {
	var result T
	err := json.Unmarshal([]byte(text), &result)
	return result, err
}

// removeCodeFences strips markdown code fences from text.
// Handles both ```json and ``` formats, as well as single backticks.
func removeCodeFences(text string) string {
	// Fences wrapping the whole response first
	cleaned := codeFenceStartRegex.ReplaceAllString(text, "$1")

	// Then fences anywhere in the text
	if cleaned == text {
		cleaned = codeFenceAnyRegex.ReplaceAllString(text, "$1")
	}

	// Single backticks wrapping the entire content
	if strings.HasPrefix(cleaned, "`") && strings.HasSuffix(cleaned, "`") {
		cleaned = strings.TrimPrefix(cleaned, "`")
		cleaned = strings.TrimSuffix(cleaned, "`")
	}

	return strings.TrimSpace(cleaned)
}

// cleanupJSON fixes common JSON formatting issues:
// - trailing commas before closing braces/brackets
// - unquoted object keys (JavaScript identifiers only)
// - // and /* */ comments
//
// Single quotes are NOT converted to double quotes, as that would break
// valid JSON containing apostrophes.
func cleanupJSON(text string) string {
	cleaned := strings.TrimSpace(text)
	cleaned = trailingCommaRegex.ReplaceAllString(cleaned, "$1")
	cleaned = unquotedKeyRegex.ReplaceAllString(cleaned, `$1"$2":`)
	cleaned = singleLineCommentRegex.ReplaceAllString(cleaned, "")
	cleaned = multiLineCommentRegex.ReplaceAllString(cleaned, "")
	return strings.TrimSpace(cleaned)
}

// extractJSON pulls the first JSON object or array out of mixed content.
func extractJSON(text string) string {
	// Prefer whichever structure appears first to avoid matching an
	// object embedded inside a larger array (or vice versa)
	objIdx := strings.IndexByte(text, '{')
	arrIdx := strings.IndexByte(text, '[')

	if arrIdx >= 0 && (objIdx < 0 || arrIdx < objIdx) {
		if match := arrayRegex.FindString(text); match != "" {
			return match
		}
	}
	if objIdx >= 0 {
		if match := objectRegex.FindString(text); match != "" {
			return match
		}
	}
	return ""
}

func createError[T any](message, originalText, context string) ParseResult[T] {
	if context != "" {
		message = fmt.Sprintf("%s (%s)", message, context)
	}
	return ParseResult[T]{Success: false, Error: message, OriginalText: originalText}
}

// truncate shortens a string for log output.
func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}
