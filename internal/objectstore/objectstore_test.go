package objectstore

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
)

type store interface {
	Download(ctx context.Context, path string) ([]byte, error)
	Upload(ctx context.Context, path string, data []byte, contentType string) (string, error)
}

func TestStoresRoundTrip(t *testing.T) {
	stores := map[string]store{
		"memory": NewMemory(),
		"dir":    NewDir(t.TempDir()),
	}
	for name, s := range stores {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			ref, err := s.Upload(ctx, "generated/case-1/letter.docx", []byte("payload"), "application/zip")
			if err != nil {
				t.Fatalf("Upload() error = %v", err)
			}
			if ref == "" {
				t.Fatalf("Upload() returned empty ref")
			}
			got, err := s.Download(ctx, "/generated/case-1/letter.docx")
			if err != nil {
				t.Fatalf("Download() error = %v", err)
			}
			if string(got) != "payload" {
				t.Fatalf("Download() = %q", got)
			}
			if _, err := s.Download(ctx, "generated/missing.docx"); !errors.Is(err, ErrNotFound) {
				t.Fatalf("Download(missing) error = %v, want ErrNotFound", err)
			}
		})
	}
}

func TestDirStaysUnderRoot(t *testing.T) {
	root := t.TempDir()
	d := NewDir(filepath.Join(root, "store"))
	if _, err := d.Upload(context.Background(), "../../escape.txt", []byte("x"), ""); err != nil {
		t.Fatalf("Upload() error = %v", err)
	}
	if _, err := os.Stat(filepath.Join(root, "store", "escape.txt")); err != nil {
		t.Fatalf("object should land inside the root: %v", err)
	}
	if _, err := os.Stat(filepath.Join(root, "escape.txt")); err == nil {
		t.Fatalf("object escaped the root")
	}
}

func TestCleanKey(t *testing.T) {
	tests := map[string]string{
		"a/b.docx":      "a/b.docx",
		"/a//b.docx":    "a/b.docx",
		`a\b.docx`:      "a/b.docx",
		"../a/../b.txt": "b.txt",
	}
	for input, want := range tests {
		got, err := cleanKey(input)
		if err != nil || got != want {
			t.Errorf("cleanKey(%q) = %q, %v; want %q", input, got, err, want)
		}
	}
	for _, bad := range []string{"", "/", ".."} {
		if _, err := cleanKey(bad); err == nil {
			t.Errorf("cleanKey(%q) should fail", bad)
		}
	}
}

func TestMinIORef(t *testing.T) {
	m := NewMinIOWithClient(nil, "documents", "https://files.example.com/")
	if got := m.ref("generated/a.docx"); got != "https://files.example.com/documents/generated/a.docx" {
		t.Fatalf("ref() = %q", got)
	}
	m = NewMinIOWithClient(nil, "documents", "")
	if got := m.ref("generated/a.docx"); got != "s3://documents/generated/a.docx" {
		t.Fatalf("ref() = %q", got)
	}
}

func TestMemoryKeepsContentType(t *testing.T) {
	m := NewMemory()
	if _, err := m.Upload(context.Background(), "a.txt", []byte("x"), "text/plain"); err != nil {
		t.Fatal(err)
	}
	if got := m.ContentType("a.txt"); got != "text/plain" {
		t.Fatalf("ContentType() = %q", got)
	}
}
