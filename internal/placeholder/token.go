// Package placeholder discovers template placeholder tokens and normalizes them
// into a single key space.
package placeholder

import (
	"regexp"
	"slices"
	"sort"
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"
)

// Syntax is the grammar a token was written in.
type Syntax string

const (
	SyntaxHash  Syntax = "hash"
	SyntaxBrace Syntax = "brace"
	SyntaxBare  Syntax = "bare"
)

var syntaxOrder = []Syntax{SyntaxHash, SyntaxBrace, SyntaxBare}

// Roots are the structural categories a bare (undelimited) token may start with.
var Roots = []string{
	"Matter", "Contact", "Exchange", "Client", "User",
	"Coordinator", "Financial", "Property", "Date", "System",
}

// Token is one logical placeholder. Key is its identity; Raw is the first
// spelling seen and Syntaxes every grammar it appeared in.
type Token struct {
	Raw      string   `json:"raw"`
	Key      string   `json:"key"`
	Syntaxes []Syntax `json:"syntaxes"`
}

// Has reports whether the token was seen in syntax s.
func (t Token) Has(s Syntax) bool {
	return slices.Contains(t.Syntaxes, s)
}

var dotSpacing = regexp.MustCompile(`\s*\.\s*`)

// Normalize folds a raw token into its matching key: compatibility-normalized,
// lowercase, delimiters trimmed, whitespace collapsed to single spaces and no
// spaces around dots. Normalize(Normalize(x)) == Normalize(x).
func Normalize(raw string) string {
	s := norm.NFKC.String(raw)
	s = norm.NFKC.String(strings.ToLower(s))
	s = strings.Join(strings.Fields(s), " ")
	s = dotSpacing.ReplaceAllString(s, ".")
	return strings.TrimFunc(s, func(r rune) bool {
		return unicode.IsSpace(r) || r == '#' || r == '{' || r == '}'
	})
}

// SplitBare reports whether key may appear undelimited in a document and, if
// so, returns the canonical capitalized root and the remaining dotted path.
func SplitBare(key string) (root, rest string, ok bool) {
	if strings.ContainsAny(key, " #{}") {
		return "", "", false
	}
	head, tail, found := strings.Cut(key, ".")
	if !found || tail == "" {
		return "", "", false
	}
	for _, segment := range strings.Split(tail, ".") {
		if segment == "" || !isWord(segment) {
			return "", "", false
		}
	}
	for _, candidate := range Roots {
		if strings.EqualFold(candidate, head) {
			return candidate, "." + tail, true
		}
	}
	return "", "", false
}

func isWord(s string) bool {
	for _, r := range s {
		if r != '_' && !unicode.IsLetter(r) && !unicode.IsDigit(r) {
			return false
		}
	}
	return true
}

// Set is a de-duplicated collection of tokens keyed by normalized key.
type Set struct {
	byKey map[string]Token
}

// NewSet builds a set from raw spellings; every raw is treated as hash syntax.
// Useful for declaring token lists outside a document.
func NewSet(raws ...string) Set {
	set := Set{byKey: make(map[string]Token, len(raws))}
	for _, raw := range raws {
		set.add(raw, SyntaxHash)
	}
	return set
}

// Len returns the number of distinct keys.
func (s Set) Len() int { return len(s.byKey) }

// Get returns the token with the given normalized key.
func (s Set) Get(key string) (Token, bool) {
	token, ok := s.byKey[key]
	return token, ok
}

// Keys returns the normalized keys in sorted order.
func (s Set) Keys() []string {
	keys := make([]string, 0, len(s.byKey))
	for key := range s.byKey {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}

// Tokens returns the tokens ordered by key.
func (s Set) Tokens() []Token {
	tokens := make([]Token, 0, len(s.byKey))
	for _, key := range s.Keys() {
		tokens = append(tokens, s.byKey[key])
	}
	return tokens
}

func (s *Set) add(raw string, syntax Syntax) {
	key := Normalize(raw)
	if key == "" {
		return
	}
	if s.byKey == nil {
		s.byKey = make(map[string]Token)
	}
	token, ok := s.byKey[key]
	if !ok {
		s.byKey[key] = Token{Raw: raw, Key: key, Syntaxes: []Syntax{syntax}}
		return
	}
	if token.Has(syntax) {
		return
	}
	merged := make([]Syntax, 0, len(token.Syntaxes)+1)
	for _, candidate := range syntaxOrder {
		if candidate == syntax || token.Has(candidate) {
			merged = append(merged, candidate)
		}
	}
	token.Syntaxes = merged
	s.byKey[key] = token
}
