// Package command implements the command-string codec and the handler
// registry. Command strings use ":" as the argument delimiter with "\"
// escaping, e.g. `--ns:set:a\:b` carries the argument "a:b".
package command

import "strings"

const (
	// Delimiter separates command tokens.
	Delimiter = ':'
	// Escape protects a literal delimiter or escape character.
	Escape = '\\'
	// ListDelimiter separates commands inside chain attribute lists.
	ListDelimiter = ','
)

// Split parses a command string into its tokens, honoring escapes.
// Split and Join are symmetric: Split(Join(parts)) == parts.
func Split(s string) []string {
	return splitOn(s, Delimiter, false)
}

// Join serializes tokens back into a command string, escaping delimiters
// and escape characters inside each token.
func Join(parts []string) string {
	var b strings.Builder
	for i, p := range parts {
		if i > 0 {
			b.WriteByte(Delimiter)
		}
		for j := 0; j < len(p); j++ {
			c := p[j]
			if c == Delimiter || c == Escape {
				b.WriteByte(Escape)
			}
			b.WriteByte(c)
		}
	}
	return b.String()
}

// SplitList parses a comma-separated command list from a chain attribute.
// `\,` yields a literal comma inside one command's own arguments, and
// surrounding whitespace on each entry is trimmed. Empty entries are
// dropped.
func SplitList(s string) []string {
	raw := splitOn(s, ListDelimiter, true)
	out := make([]string, 0, len(raw))
	for _, item := range raw {
		item = strings.TrimSpace(item)
		if item != "" {
			out = append(out, item)
		}
	}
	return out
}

// splitOn splits s at unescaped occurrences of sep. When keepEscapes is
// true, escape sequences other than `\<sep>` are passed through verbatim
// so the entries remain parseable command strings.
func splitOn(s string, sep byte, keepEscapes bool) []string {
	var (
		parts []string
		cur   strings.Builder
	)
	for i := 0; i < len(s); i++ {
		c := s[i]
		if c == Escape && i+1 < len(s) {
			next := s[i+1]
			if keepEscapes && next != sep {
				cur.WriteByte(c)
				cur.WriteByte(next)
			} else {
				cur.WriteByte(next)
			}
			i++
			continue
		}
		if c == sep {
			parts = append(parts, cur.String())
			cur.Reset()
			continue
		}
		cur.WriteByte(c)
	}
	parts = append(parts, cur.String())
	return parts
}
