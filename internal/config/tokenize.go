package config

import "strings"

// logicalLines splits s into physical lines, stripping a trailing newline.
// The template substitutor has already run over the whole stream by the
// time this is called.
func logicalLines(s string) []string {
	s = strings.TrimSuffix(s, "\n")
	if s == "" {
		return nil
	}

	return strings.Split(s, "\n")
}

// isBlankOrComment reports whether a raw line should be skipped entirely:
// empty once trimmed, or starting with `#`.
func isBlankOrComment(line string) bool {
	trimmed := strings.TrimSpace(line)

	return trimmed == "" || strings.HasPrefix(trimmed, "#")
}

// fields tokenizes line into up to max whitespace-separated fields. A field
// that starts with `#` ends the record there (trailing comments are
// dropped, and no further fields - including rest - are produced). rest is
// the remainder of the line (leading whitespace trimmed) following the last
// produced field, verbatim and not comment-truncated; it is empty when
// fewer than max fields were found, or when what remains is only a trailing
// comment.
func fields(line string, max int) (tokens []string, rest string) {
	pos := 0

	for len(tokens) < max {
		// Skip leading whitespace.
		for pos < len(line) && isSpace(line[pos]) {
			pos++
		}

		if pos >= len(line) {
			return tokens, ""
		}

		start := pos
		for pos < len(line) && !isSpace(line[pos]) {
			pos++
		}

		tok := line[start:pos]
		if strings.HasPrefix(tok, "#") {
			return tokens, ""
		}

		tokens = append(tokens, tok)
	}

	// Skip whitespace before computing the verbatim remainder.
	for pos < len(line) && isSpace(line[pos]) {
		pos++
	}

	remainder := line[pos:]
	if remainder == "" || strings.HasPrefix(remainder, "#") {
		return tokens, ""
	}

	return tokens, remainder
}

func isSpace(b byte) bool {
	return b == ' ' || b == '\t'
}
