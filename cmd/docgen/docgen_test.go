package main

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"exchangedocs/internal/archive"
	"exchangedocs/internal/generate"
	"exchangedocs/internal/testkit"
)

const graphJSON = `{
  "case": {"id": "case-1", "exchangeNumber": "EX-42"},
  "primaryParty": {"id": "party-1", "firstName": "Jane", "lastName": "Doe"}
}`

func writeFile(t *testing.T, dir, name string, data []byte) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
	return path
}

func TestParseSet(t *testing.T) {
	tests := []struct {
		name    string
		in      []string
		want    map[string]string
		wantErr bool
	}{
		{name: "none", in: nil, want: nil},
		{name: "pairs", in: []string{"Client.Name=Jane", "custom.note=a=b"}, want: map[string]string{"Client.Name": "Jane", "custom.note": "a=b"}},
		{name: "empty value", in: []string{"custom.note="}, want: map[string]string{"custom.note": ""}},
		{name: "last wins", in: []string{"a.b=1", "a.b=2"}, want: map[string]string{"a.b": "2"}},
		{name: "missing equals", in: []string{"client.name"}, wantErr: true},
		{name: "empty key", in: []string{" =x"}, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parseSet(tt.in)
			if (err != nil) != tt.wantErr {
				t.Fatalf("parseSet() error = %v, wantErr %v", err, tt.wantErr)
			}
			if len(got) != len(tt.want) {
				t.Fatalf("parseSet() = %v, want %v", got, tt.want)
			}
			for k, v := range tt.want {
				if got[k] != v {
					t.Fatalf("parseSet()[%q] = %q, want %q", k, got[k], v)
				}
			}
		})
	}
}

func TestTemplateIDFromPath(t *testing.T) {
	if got := templateIDFromPath("/tmp/templates/assignment-agreement.docx"); got != "assignment-agreement" {
		t.Fatalf("templateIDFromPath() = %q", got)
	}
}

func TestLoadGraphRejectsUnknownFields(t *testing.T) {
	dir := t.TempDir()
	if _, err := loadGraph(writeFile(t, dir, "bad.json", []byte(`{"case":{"id":"c"},"extra":true}`))); err == nil {
		t.Fatal("expected error for unknown field")
	}
	g, err := loadGraph(writeFile(t, dir, "good.json", []byte(graphJSON)))
	if err != nil {
		t.Fatalf("loadGraph() error = %v", err)
	}
	if g.Case.ExchangeNumber != "EX-42" || g.PrimaryParty == nil || g.PrimaryParty.FirstName != "Jane" {
		t.Fatalf("graph = %+v", g)
	}
}

func TestScanContent(t *testing.T) {
	docx := testkit.BuildArchive(t, testkit.Docx("Dear #Client.Name#, re {{Exchange.Number}}")...)
	tokens, kind, err := scanContent(docx)
	if err != nil || kind != archive.KindArchive || tokens.Len() != 2 {
		t.Fatalf("scanContent(docx) = %v, %s, %v", tokens.Keys(), kind, err)
	}

	tokens, kind, err = scanContent([]byte("Client.Name"))
	if err != nil || kind != archive.KindText || tokens.Len() != 1 {
		t.Fatalf("scanContent(text) = %v, %s, %v", tokens.Keys(), kind, err)
	}

	tokens, kind, err = scanContent([]byte("%PDF-1.7 #Client.Name#"))
	if err != nil || kind != archive.KindPDF || tokens.Len() != 0 {
		t.Fatalf("scanContent(pdf) = %v, %s, %v", tokens.Keys(), kind, err)
	}

	if _, _, err := scanContent([]byte("PK\x03\x04 not really a zip")); !errors.Is(err, archive.ErrCorrupt) {
		t.Fatalf("scanContent(corrupt) error = %v, want ErrCorrupt", err)
	}
}

func TestPrintTokens(t *testing.T) {
	tokens, kind, err := scanContent([]byte("#Client.Name# and Client.Name"))
	if err != nil {
		t.Fatal(err)
	}
	var out bytes.Buffer
	printTokens(&out, kind, tokens)
	text := out.String()
	if !strings.Contains(text, "1 placeholder(s)") || !strings.Contains(text, "client.name") || !strings.Contains(text, "hash,bare") {
		t.Fatalf("output = %q", text)
	}
}

func TestRunGenerateText(t *testing.T) {
	dir := t.TempDir()
	opts := generateOptions{
		TemplatePath: writeFile(t, dir, "letter.txt", []byte("Dear #Client.Name#, re #Exchange.Number#. Judge: #Custom.Judge#.")),
		RecordPath:   writeFile(t, dir, "case.json", []byte(graphJSON)),
		Sets:         []string{"Custom.Judge=Hon. Smith"},
		OutDir:       filepath.Join(dir, "out"),
		Locale:       "en-US",
	}

	var stdout, stderr bytes.Buffer
	result, err := runGenerate(context.Background(), opts, &stdout, &stderr)
	if err != nil {
		t.Fatalf("runGenerate() error = %v (stderr %s)", err, stderr.String())
	}
	if result.TemplateID != "letter" || result.CaseID != "case-1" || !strings.HasSuffix(result.Path, ".txt") {
		t.Fatalf("result = %+v", result)
	}
	written, err := os.ReadFile(result.DocumentRef)
	if err != nil {
		t.Fatalf("read output: %v", err)
	}
	if got := string(written); got != "Dear Jane Doe, re EX-42. Judge: Hon. Smith." {
		t.Fatalf("output = %q", got)
	}
	if !strings.Contains(stdout.String(), "wrote "+result.DocumentRef) {
		t.Fatalf("stdout = %q", stdout.String())
	}
}

func TestRunGenerateDocxWithManifestName(t *testing.T) {
	dir := t.TempDir()
	docx := testkit.BuildArchive(t, testkit.Docx("Client: #Client.Name#, {{Exchange.Number}}")...)
	opts := generateOptions{
		TemplatePath: writeFile(t, dir, "assignment.docx", docx),
		RecordPath:   writeFile(t, dir, "case.json", []byte(graphJSON)),
		ManifestPath: writeFile(t, dir, "templates.toml", []byte(`
[[template]]
id = "assignment"
name = "Assignment Agreement"
`)),
		OutDir: filepath.Join(dir, "out"),
	}

	var stdout, stderr bytes.Buffer
	result, err := runGenerate(context.Background(), opts, &stdout, &stderr)
	if err != nil {
		t.Fatalf("runGenerate() error = %v", err)
	}
	if result.TemplateName != "Assignment Agreement" || !strings.HasSuffix(result.Path, ".docx") {
		t.Fatalf("result = %+v", result)
	}
	if !strings.Contains(filepath.Base(result.Path), "Assignment-Agreement-") {
		t.Fatalf("path = %s", result.Path)
	}
	written, err := os.ReadFile(result.DocumentRef)
	if err != nil {
		t.Fatalf("read output: %v", err)
	}
	if doc := testkit.ReadEntries(t, written)["word/document.xml"]; !strings.Contains(doc, "Client: Jane Doe, EX-42") {
		t.Fatalf("document.xml = %s", doc)
	}
}

func TestRunGenerateMissingRequired(t *testing.T) {
	dir := t.TempDir()
	opts := generateOptions{
		TemplatePath: writeFile(t, dir, "letter.txt", []byte("Judge: #Custom.Judge#")),
		RecordPath:   writeFile(t, dir, "case.json", []byte(graphJSON)),
		ManifestPath: writeFile(t, dir, "templates.toml", []byte(`
[[template]]
id = "letter"
required = ["Custom.Judge"]
`)),
		OutDir: filepath.Join(dir, "out"),
	}

	var stdout, stderr bytes.Buffer
	_, err := runGenerate(context.Background(), opts, &stdout, &stderr)
	if generate.KindOf(err) != generate.KindMissingRequiredField {
		t.Fatalf("runGenerate() error = %v, want missing required field", err)
	}
	if !strings.Contains(stderr.String(), "missing: custom.judge") {
		t.Fatalf("stderr = %q", stderr.String())
	}
	if _, statErr := os.Stat(filepath.Join(dir, "out")); !os.IsNotExist(statErr) {
		t.Fatalf("output dir should not exist, stat error = %v", statErr)
	}
}
