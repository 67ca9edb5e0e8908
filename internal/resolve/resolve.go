// Package resolve maps placeholder tokens to display values from a case record
// graph, falling back through heuristics, per-template fallbacks and an
// unresolved marker.
package resolve

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"golang.org/x/text/language"

	"exchangedocs/internal/placeholder"
	"exchangedocs/internal/records"
)

// Origin records which tier produced a value.
type Origin string

const (
	OriginExact      Origin = "exact-match"
	OriginHeuristic  Origin = "heuristic-match"
	OriginFallback   Origin = "fallback"
	OriginUnresolved Origin = "unresolved"
)

type Value struct {
	Text   string `json:"text"`
	Origin Origin `json:"origin"`
}

// Map holds one value per normalized token key.
type Map map[string]Value

// Resolved counts entries that did not end up unresolved.
func (m Map) Resolved() int {
	n := 0
	for _, v := range m {
		if v.Origin != OriginUnresolved {
			n++
		}
	}
	return n
}

type Warning struct {
	Token  string `json:"token"`
	Origin Origin `json:"origin"`
	Detail string `json:"detail"`
}

// Policy is the per-template required-field list and fallback overrides.
// Keys may be written in any token spelling; they are normalized before use.
type Policy struct {
	Required  []string          `json:"required,omitempty"`
	Fallbacks map[string]string `json:"fallbacks,omitempty"`
}

// MissingRequiredFieldError lists every required token that could not be
// resolved and had no fallback.
type MissingRequiredFieldError struct {
	Tokens []string
}

func (e *MissingRequiredFieldError) Error() string {
	return fmt.Sprintf("missing required fields: %s", strings.Join(e.Tokens, ", "))
}

type Resolver struct {
	format formatter
	now    func() time.Time
}

type Option func(*Resolver)

// WithLocale sets the BCP 47 locale used for money and date formatting.
func WithLocale(tag language.Tag) Option {
	return func(r *Resolver) { r.format = newFormatter(tag) }
}

// WithClock replaces time.Now for date.today and friends.
func WithClock(now func() time.Time) Option {
	return func(r *Resolver) { r.now = now }
}

func New(opts ...Option) *Resolver {
	r := &Resolver{format: newFormatter(language.AmericanEnglish), now: time.Now}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// ExactTable builds the exact-structure lookup for g. Empty values are left
// out so absent data falls through to later tiers. Overrides are applied last.
func (r *Resolver) ExactTable(g *records.Graph) map[string]string {
	if g == nil {
		g = &records.Graph{}
	}
	v := view{graph: g, format: r.format, now: r.now()}
	table := make(map[string]string, len(fields)+len(g.Overrides))
	for _, f := range fields {
		if value := strings.TrimSpace(f.value(v)); value != "" {
			table[f.key] = value
		}
	}
	for key, value := range g.Overrides {
		if key = placeholder.Normalize(key); key != "" {
			table[key] = value
		}
	}
	return table
}

// Resolve assigns exactly one value to every token in tokens. A non-exact
// value produces a warning. The map is always complete; the error is a
// *MissingRequiredFieldError naming every required token with no value and no
// fallback.
func (r *Resolver) Resolve(tokens placeholder.Set, g *records.Graph, policy Policy) (Map, []Warning, error) {
	exact := r.ExactTable(g)
	required := make(map[string]bool, len(policy.Required))
	for _, key := range policy.Required {
		required[placeholder.Normalize(key)] = true
	}
	overrides := make(map[string]string, len(policy.Fallbacks))
	for key, value := range policy.Fallbacks {
		overrides[placeholder.Normalize(key)] = value
	}
	defaults := DefaultFallbacks()

	out := make(Map, tokens.Len())
	var warnings []Warning
	var missing []string

	for _, key := range tokens.Keys() {
		if value, ok := exact[key]; ok {
			out[key] = Value{Text: sanitize(value), Origin: OriginExact}
			continue
		}

		target := ""
		if matched, t, ok := classify(key); ok {
			target = t
			if value := exact[t]; value != "" {
				out[key] = Value{Text: sanitize(value), Origin: OriginHeuristic}
				warnings = append(warnings, Warning{
					Token:  key,
					Origin: OriginHeuristic,
					Detail: fmt.Sprintf("matched rule %s as %s", matched.name, t),
				})
				continue
			}
		}

		if required[key] {
			fallback, ok := lookupFallback(key, target, overrides, defaults)
			if !ok {
				missing = append(missing, key)
				out[key] = unresolved(key)
				continue
			}
			out[key] = Value{Text: sanitize(fallback), Origin: OriginFallback}
			warnings = append(warnings, Warning{
				Token:  key,
				Origin: OriginFallback,
				Detail: "required field has no value; fallback used",
			})
			continue
		}

		out[key] = unresolved(key)
		warnings = append(warnings, Warning{
			Token:  key,
			Origin: OriginUnresolved,
			Detail: "no value found",
		})
	}

	if len(missing) > 0 {
		sort.Strings(missing)
		return out, warnings, &MissingRequiredFieldError{Tokens: missing}
	}
	return out, warnings, nil
}

// lookupFallback prefers the template's own fallback for key, then for the
// heuristic target, then the default table.
func lookupFallback(key, target string, overrides, defaults map[string]string) (string, bool) {
	for _, candidate := range []string{key, target} {
		if candidate == "" {
			continue
		}
		if value, ok := overrides[candidate]; ok && value != "" {
			return value, true
		}
	}
	for _, candidate := range []string{key, target} {
		if value, ok := defaults[candidate]; ok && candidate != "" {
			return value, true
		}
	}
	return "", false
}

func unresolved(key string) Value {
	return Value{Text: sanitize("[" + key + "]"), Origin: OriginUnresolved}
}
