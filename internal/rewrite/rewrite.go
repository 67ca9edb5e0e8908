// Package rewrite splices resolved values into template text and archives.
package rewrite

import (
	"bytes"
	"encoding/xml"
	"regexp"
	"sort"
	"strings"

	"exchangedocs/internal/archive"
	"exchangedocs/internal/placeholder"
	"exchangedocs/internal/resolve"
)

// matcher finds every syntax variant of the keys in one resolution map. chain
// matches a hash token that reuses the previous token's closing '#'.
type matcher struct {
	pattern *regexp.Regexp
	chain   *regexp.Regexp
	values  resolve.Map
}

// newMatcher returns nil when m is empty.
func newMatcher(m resolve.Map) *matcher {
	if len(m) == 0 {
		return nil
	}
	keys := make([]string, 0, len(m))
	for key := range m {
		keys = append(keys, key)
	}
	// Longest first so a key never shadows a longer key it prefixes.
	sort.Slice(keys, func(i, j int) bool {
		if len(keys[i]) != len(keys[j]) {
			return len(keys[i]) > len(keys[j])
		}
		return keys[i] < keys[j]
	})

	delimited := make([]string, 0, len(keys))
	var bare []string
	for _, key := range keys {
		delimited = append(delimited, keyPattern(key))
		if root, rest, ok := placeholder.SplitBare(key); ok {
			bare = append(bare, regexp.QuoteMeta(root)+`(?i:`+regexp.QuoteMeta(rest)+`)`)
		}
	}
	alts := strings.Join(delimited, "|")
	expr := `#\s*(?i:` + alts + `)\s*#|\{\{?\s*(?i:` + alts + `)\s*\}?\}`
	if len(bare) > 0 {
		expr += `|\b(?:` + strings.Join(bare, "|") + `)\b`
	}
	return &matcher{
		pattern: regexp.MustCompile(expr),
		chain:   regexp.MustCompile(`^#(?i:` + alts + `)#`),
		values:  m,
	}
}

// keyPattern matches a normalized key in any of the spellings that normalize
// to it: dots may carry surrounding spaces and single spaces may widen.
func keyPattern(key string) string {
	segments := strings.Split(key, ".")
	for i, segment := range segments {
		words := strings.Split(segment, " ")
		for j, word := range words {
			words[j] = regexp.QuoteMeta(word)
		}
		segments[i] = strings.Join(words, `\s+`)
	}
	return strings.Join(segments, `\s*\.\s*`)
}

// replace rewrites text, escaping values for XML when escape is set. Hash
// tokens written back to back share the middle '#' and are all replaced.
func (mt *matcher) replace(text string, escape bool) (string, int) {
	matches := mt.pattern.FindAllStringIndex(text, -1)
	if len(matches) == 0 {
		return text, 0
	}
	var b strings.Builder
	b.Grow(len(text))
	last, count := 0, 0
	write := func(start, end int, value resolve.Value) {
		b.WriteString(text[last:start])
		if escape {
			var escaped bytes.Buffer
			_ = xml.EscapeText(&escaped, []byte(value.Text))
			b.Write(escaped.Bytes())
		} else {
			b.WriteString(value.Text)
		}
		last = end
		count++
	}
	for _, match := range matches {
		start, end := match[0], match[1]
		if start < last {
			continue
		}
		// A bare match that continues as a longer dotted path belongs to an
		// unknown token; leave it.
		bare := text[start] != '#' && text[start] != '{'
		if bare && end+1 < len(text) && text[end] == '.' && isWordByte(text[end+1]) {
			continue
		}
		value, ok := mt.values[placeholder.Normalize(text[start:end])]
		if !ok {
			continue
		}
		write(start, end, value)
		if text[start] != '#' {
			continue
		}
		for last < len(text) && isTokenStart(text[last]) {
			next := mt.chain.FindStringIndex(text[last-1:])
			if next == nil {
				break
			}
			start, end = last-1, last-1+next[1]
			value, ok := mt.values[placeholder.Normalize(text[start:end])]
			if !ok {
				break
			}
			// The shared '#' was already consumed by the previous token.
			write(last, end, value)
		}
	}
	if count == 0 {
		return text, 0
	}
	b.WriteString(text[last:])
	return b.String(), count
}

func isTokenStart(c byte) bool {
	return c == '_' || ('a' <= c && c <= 'z') || ('A' <= c && c <= 'Z')
}

func isWordByte(c byte) bool {
	return c == '_' || ('0' <= c && c <= '9') || ('a' <= c && c <= 'z') || ('A' <= c && c <= 'Z')
}

// Text rewrites plain text, returning the result and the number of replacements.
func Text(text string, m resolve.Map) (string, int) {
	mt := newMatcher(m)
	if mt == nil {
		return text, 0
	}
	return mt.replace(text, false)
}

// Archive rewrites every text part of a document archive. Entries without
// matches, and all non-text entries, keep their original compressed bytes. An
// empty map returns data unchanged.
func Archive(data []byte, m resolve.Map) ([]byte, int, error) {
	mt := newMatcher(m)
	if mt == nil {
		if _, err := archive.TextParts(data); err != nil {
			return nil, 0, err
		}
		return data, 0, nil
	}
	total := 0
	out, err := archive.Rebuild(data, func(name string, content []byte) ([]byte, bool) {
		escape := strings.HasSuffix(strings.ToLower(name), ".xml")
		updated, n := mt.replace(string(content), escape)
		if n == 0 {
			return nil, false
		}
		total += n
		return []byte(updated), true
	})
	if err != nil {
		return nil, 0, err
	}
	return out, total, nil
}
