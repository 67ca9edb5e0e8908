package config

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	for _, key := range []string{"API_ADDR", "REDIS_URL", "MEILI_URL", "FETCH_TIMEOUT_MS", "S3_USE_SSL", "TEMPLATE_SOURCE"} {
		t.Setenv(key, "")
		os.Unsetenv(key)
	}
	cfg := Load()
	if cfg.Addr != ":8787" {
		t.Errorf("Addr = %q", cfg.Addr)
	}
	if cfg.RedisURL != "redis://localhost:6379/0" || cfg.MeiliURL != "http://localhost:7700" {
		t.Errorf("RedisURL = %q, MeiliURL = %q", cfg.RedisURL, cfg.MeiliURL)
	}
	if cfg.FetchTimeout != 5*time.Second || cfg.ManifestTTL != 7*24*time.Hour {
		t.Errorf("FetchTimeout = %v, ManifestTTL = %v", cfg.FetchTimeout, cfg.ManifestTTL)
	}
	if cfg.S3UseSSL || cfg.TemplateSource != TemplateSourceStore {
		t.Errorf("S3UseSSL = %v, TemplateSource = %q", cfg.S3UseSSL, cfg.TemplateSource)
	}
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("API_ADDR", ":9000")
	t.Setenv("REDIS_URL", "")
	t.Setenv("FETCH_TIMEOUT_MS", "250")
	t.Setenv("MANIFEST_TTL_SECONDS", "not-a-number")
	t.Setenv("S3_USE_SSL", "true")
	t.Setenv("TEMPLATE_SOURCE", "git")

	cfg := Load()
	if cfg.Addr != ":9000" {
		t.Errorf("Addr = %q", cfg.Addr)
	}
	if cfg.RedisURL != "" {
		t.Errorf("empty REDIS_URL should disable redis, got %q", cfg.RedisURL)
	}
	if cfg.FetchTimeout != 250*time.Millisecond {
		t.Errorf("FetchTimeout = %v", cfg.FetchTimeout)
	}
	if cfg.ManifestTTL != 7*24*time.Hour {
		t.Errorf("invalid int should fall back, got %v", cfg.ManifestTTL)
	}
	if !cfg.S3UseSSL || cfg.TemplateSource != TemplateSourceGit {
		t.Errorf("S3UseSSL = %v, TemplateSource = %q", cfg.S3UseSSL, cfg.TemplateSource)
	}
}

const sampleManifest = `
[[template]]
id = "assignment-agreement"
name = "Assignment Agreement"
path = "templates/assignment.docx"
required = ["Client.Name", " Exchange . Number "]
[template.fallbacks]
"Client.Phone" = "on file"

[[template]]
id = "welcome"
name = "Welcome Letter"
`

func TestParseManifest(t *testing.T) {
	m, err := ParseManifest([]byte(sampleManifest))
	if err != nil {
		t.Fatalf("ParseManifest() error = %v", err)
	}
	if len(m.Templates) != 2 {
		t.Fatalf("templates = %d", len(m.Templates))
	}
	entry, ok := m.Lookup("assignment-agreement")
	if !ok || entry.Path != "templates/assignment.docx" {
		t.Fatalf("Lookup() = %+v, %v", entry, ok)
	}

	policy, err := m.Requirements(context.Background(), "assignment-agreement")
	if err != nil {
		t.Fatalf("Requirements() error = %v", err)
	}
	if strings.Join(policy.Required, ",") != "client.name,exchange.number" {
		t.Errorf("required = %v", policy.Required)
	}
	if policy.Fallbacks["client.phone"] != "on file" {
		t.Errorf("fallbacks = %v", policy.Fallbacks)
	}

	empty := m.Policy("welcome")
	if len(empty.Required) != 0 || empty.Fallbacks != nil {
		t.Errorf("welcome policy = %+v", empty)
	}
	if unknown := m.Policy("nope"); len(unknown.Required) != 0 {
		t.Errorf("unknown policy = %+v", unknown)
	}
}

func TestParseManifestErrors(t *testing.T) {
	tests := []struct {
		name string
		data string
		want string
	}{
		{name: "syntax", data: "[[template]\n", want: "failed to parse TOML"},
		{name: "missing id", data: "[[template]]\nname = \"x\"\n", want: "missing id"},
		{name: "duplicate", data: "[[template]]\nid = \"a\"\n[[template]]\nid = \"a\"\n", want: "duplicate id"},
		{name: "unknown key", data: "[[template]]\nid = \"a\"\nrequierd = [\"x\"]\n", want: "unknown keys"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseManifest([]byte(tt.data))
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Fatalf("ParseManifest() error = %v, want %q", err, tt.want)
			}
		})
	}
}

func TestLoadManifest(t *testing.T) {
	path := filepath.Join(t.TempDir(), "templates.toml")
	if err := os.WriteFile(path, []byte(sampleManifest), 0o644); err != nil {
		t.Fatalf("write manifest: %v", err)
	}
	m, err := LoadManifest(path)
	if err != nil {
		t.Fatalf("LoadManifest() error = %v", err)
	}
	if _, ok := m.Lookup("welcome"); !ok {
		t.Fatal("welcome not found")
	}
	if _, err := LoadManifest(filepath.Join(t.TempDir(), "missing.toml")); err == nil {
		t.Fatal("expected error for missing file")
	}
}

func TestNilManifestLookup(t *testing.T) {
	var m *Manifest
	if _, ok := m.Lookup("x"); ok {
		t.Fatal("nil manifest should not find entries")
	}
}
