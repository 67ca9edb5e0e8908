package placeholder

import (
	"fmt"
	"regexp"
	"strings"

	"exchangedocs/internal/archive"
)

// ErrArchiveCorrupt is returned by Scan when the payload is not a readable archive.
var ErrArchiveCorrupt = archive.ErrCorrupt

// tokenBody is the text between delimiters. A tight body may use single
// spaces between words. A padded body, {{ Exchange.Number }} or
// # Client . Name #, must contain a dot so spaced prose is never a token.
const tokenBody = `(?:` +
	`[A-Za-z_]\w*(?:[. ]\w+)*` + `|` +
	`[ \t]*[A-Za-z_]\w*(?:[ \t]+\w+)*(?:[ \t]*\.[ \t]*\w+(?:[ \t]+\w+)*)+[ \t]*` +
	`)`

var (
	hashPattern  = regexp.MustCompile(`#` + tokenBody + `#`)
	bracePattern = regexp.MustCompile(`\{\{?` + tokenBody + `\}?\}`)
	barePattern  = regexp.MustCompile(`\b(?:` + strings.Join(Roots, "|") + `)(?:\.\w+)+\b`)
	// chainPattern is a hash token reusing the previous token's closing '#'.
	chainPattern = regexp.MustCompile(`^#[A-Za-z_]\w*(?:\.\w+)*#`)
)

// Scan extracts every token from the text-bearing parts of a document archive.
// A corrupt payload yields an empty set together with ErrArchiveCorrupt, which
// callers can tell apart from a valid archive with no tokens.
func Scan(data []byte) (Set, error) {
	parts, err := archive.TextParts(data)
	if err != nil {
		return Set{byKey: map[string]Token{}}, fmt.Errorf("scan archive: %w", err)
	}
	set := Set{byKey: make(map[string]Token)}
	for _, part := range parts {
		scanInto(&set, string(part.Content))
	}
	return set, nil
}

// ScanText extracts every token from plain text.
func ScanText(text string) Set {
	set := Set{byKey: make(map[string]Token)}
	scanInto(&set, text)
	return set
}

func scanInto(set *Set, text string) {
	var spans [][]int
	for _, match := range hashSpans(text) {
		set.add(text[match[0]:match[1]], SyntaxHash)
		spans = append(spans, match)
	}
	for _, match := range bracePattern.FindAllStringIndex(text, -1) {
		set.add(text[match[0]:match[1]], SyntaxBrace)
		spans = append(spans, match)
	}
	for _, match := range barePattern.FindAllStringIndex(text, -1) {
		if overlaps(spans, match) {
			continue
		}
		set.add(text[match[0]:match[1]], SyntaxBare)
	}
}

// hashSpans finds hash tokens. Tokens written back to back share the middle
// '#': #Client.Name#Client.FirstName# holds two.
func hashSpans(text string) [][]int {
	var spans [][]int
	for pos := 0; pos < len(text); {
		loc := hashPattern.FindStringIndex(text[pos:])
		if loc == nil {
			break
		}
		end := pos + loc[1]
		spans = append(spans, []int{pos + loc[0], end})
		for end < len(text) && isTokenStart(text[end]) {
			next := chainPattern.FindStringIndex(text[end-1:])
			if next == nil {
				break
			}
			spans = append(spans, []int{end - 1, end - 1 + next[1]})
			end = end - 1 + next[1]
		}
		pos = end
	}
	return spans
}

func isTokenStart(c byte) bool {
	return c == '_' || ('a' <= c && c <= 'z') || ('A' <= c && c <= 'Z')
}

func overlaps(spans [][]int, match []int) bool {
	for _, span := range spans {
		if match[0] < span[1] && span[0] < match[1] {
			return true
		}
	}
	return false
}
