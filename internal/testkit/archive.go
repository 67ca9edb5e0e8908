// Package testkit builds small in-memory document archives for tests.
package testkit

import (
	"archive/zip"
	"bytes"
	"io"
	"testing"
)

// Entry is one file in a test archive. Stored entries skip compression.
type Entry struct {
	Name   string
	Body   string
	Stored bool
}

// PNG is a tiny binary payload used to check that non-text entries survive untouched.
const PNG = "\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR\x00\x00\x00\x01\x00\x00\x00\x01#Client.Name#"

// Docx returns the entries of a minimal word-processing package whose body
// paragraph contains text.
func Docx(text string) []Entry {
	return []Entry{
		{Name: "[Content_Types].xml", Body: `<?xml version="1.0" encoding="UTF-8"?><Types xmlns="http://schemas.openxmlformats.org/package/2006/content-types"><Default Extension="xml" ContentType="application/xml"/></Types>`},
		{Name: "_rels/.rels", Body: `<?xml version="1.0" encoding="UTF-8"?><Relationships xmlns="http://schemas.openxmlformats.org/package/2006/relationships"><Relationship Id="rId1" Target="word/document.xml"/></Relationships>`},
		{Name: "docProps/core.xml", Body: `<cp:coreProperties><dc:title>#Client.Name#</dc:title></cp:coreProperties>`},
		{Name: "word/document.xml", Body: `<?xml version="1.0" encoding="UTF-8"?><w:document><w:body><w:p><w:r><w:t xml:space="preserve">` + text + `</w:t></w:r></w:p></w:body></w:document>`},
		{Name: "word/media/image1.png", Body: PNG, Stored: true},
	}
}

// BuildArchive zips entries in order.
func BuildArchive(t testing.TB, entries ...Entry) []byte {
	t.Helper()
	var buf bytes.Buffer
	writer := zip.NewWriter(&buf)
	for _, entry := range entries {
		method := zip.Deflate
		if entry.Stored {
			method = zip.Store
		}
		w, err := writer.CreateHeader(&zip.FileHeader{Name: entry.Name, Method: method})
		if err != nil {
			t.Fatalf("create entry %s: %v", entry.Name, err)
		}
		if _, err := io.WriteString(w, entry.Body); err != nil {
			t.Fatalf("write entry %s: %v", entry.Name, err)
		}
	}
	if err := writer.Close(); err != nil {
		t.Fatalf("close archive: %v", err)
	}
	return buf.Bytes()
}

// ReadEntries returns the decompressed content of every entry, keyed by name.
func ReadEntries(t testing.TB, data []byte) map[string]string {
	t.Helper()
	reader, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		t.Fatalf("open archive: %v", err)
	}
	out := make(map[string]string, len(reader.File))
	for _, file := range reader.File {
		rc, err := file.Open()
		if err != nil {
			t.Fatalf("open entry %s: %v", file.Name, err)
		}
		body, err := io.ReadAll(rc)
		rc.Close()
		if err != nil {
			t.Fatalf("read entry %s: %v", file.Name, err)
		}
		out[file.Name] = string(body)
	}
	return out
}

// RawEntries returns the still-compressed bytes of every entry, keyed by name.
func RawEntries(t testing.TB, data []byte) map[string][]byte {
	t.Helper()
	reader, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		t.Fatalf("open archive: %v", err)
	}
	out := make(map[string][]byte, len(reader.File))
	for _, file := range reader.File {
		rc, err := file.OpenRaw()
		if err != nil {
			t.Fatalf("open raw entry %s: %v", file.Name, err)
		}
		body, err := io.ReadAll(rc)
		if err != nil {
			t.Fatalf("read raw entry %s: %v", file.Name, err)
		}
		out[file.Name] = body
	}
	return out
}

// EntryNames lists entry names in archive order.
func EntryNames(t testing.TB, data []byte) []string {
	t.Helper()
	reader, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		t.Fatalf("open archive: %v", err)
	}
	names := make([]string, 0, len(reader.File))
	for _, file := range reader.File {
		names = append(names, file.Name)
	}
	return names
}
