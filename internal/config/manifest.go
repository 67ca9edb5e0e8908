package config

import (
	"context"
	"fmt"
	"strings"

	"github.com/BurntSushi/toml"

	"exchangedocs/internal/placeholder"
	"exchangedocs/internal/resolve"
)

// TemplateEntry is one [[template]] table of a templates.toml manifest.
type TemplateEntry struct {
	ID        string            `toml:"id"`
	Name      string            `toml:"name"`
	Path      string            `toml:"path"`
	Required  []string          `toml:"required"`
	Fallbacks map[string]string `toml:"fallbacks"`
}

// Manifest declares required fields and fallback values per template.
type Manifest struct {
	Templates []TemplateEntry `toml:"template"`
}

func LoadManifest(path string) (*Manifest, error) {
	var m Manifest
	meta, err := toml.DecodeFile(path, &m)
	if err != nil {
		return nil, fmt.Errorf("%s: failed to parse TOML: %w", path, err)
	}
	if err := m.validate(meta); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return &m, nil
}

func ParseManifest(data []byte) (*Manifest, error) {
	var m Manifest
	meta, err := toml.Decode(string(data), &m)
	if err != nil {
		return nil, fmt.Errorf("failed to parse TOML: %w", err)
	}
	if err := m.validate(meta); err != nil {
		return nil, err
	}
	return &m, nil
}

func (m *Manifest) validate(meta toml.MetaData) error {
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, 0, len(undecoded))
		for _, key := range undecoded {
			keys = append(keys, key.String())
		}
		return fmt.Errorf("unknown keys: %s", strings.Join(keys, ", "))
	}
	seen := make(map[string]bool, len(m.Templates))
	for i, entry := range m.Templates {
		id := strings.TrimSpace(entry.ID)
		if id == "" {
			return fmt.Errorf("template #%d: missing id", i+1)
		}
		if seen[id] {
			return fmt.Errorf("template %q: duplicate id", id)
		}
		seen[id] = true
		m.Templates[i].ID = id
	}
	return nil
}

// Lookup returns the entry for templateID.
func (m *Manifest) Lookup(templateID string) (TemplateEntry, bool) {
	if m == nil {
		return TemplateEntry{}, false
	}
	for _, entry := range m.Templates {
		if entry.ID == templateID {
			return entry, true
		}
	}
	return TemplateEntry{}, false
}

// Policy returns the entry's required keys and fallbacks, normalized. A
// template absent from the manifest has an empty policy.
func (m *Manifest) Policy(templateID string) resolve.Policy {
	entry, ok := m.Lookup(templateID)
	if !ok {
		return resolve.Policy{}
	}
	policy := resolve.Policy{}
	for _, key := range entry.Required {
		if key = placeholder.Normalize(key); key != "" {
			policy.Required = append(policy.Required, key)
		}
	}
	if len(entry.Fallbacks) > 0 {
		policy.Fallbacks = make(map[string]string, len(entry.Fallbacks))
		for key, value := range entry.Fallbacks {
			policy.Fallbacks[placeholder.Normalize(key)] = value
		}
	}
	return policy
}

// Requirements makes a manifest usable as a requirement source.
func (m *Manifest) Requirements(_ context.Context, templateID string) (resolve.Policy, error) {
	return m.Policy(templateID), nil
}
