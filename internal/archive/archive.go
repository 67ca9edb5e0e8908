// Package archive reads and rebuilds zip-packaged office documents.
package archive

import (
	"archive/zip"
	"bytes"
	"errors"
	"fmt"
	"io"
	"strings"

	"fortio.org/safecast"
)

// Kind is the sniffed content type of a template payload.
type Kind string

const (
	KindArchive Kind = "archive"
	KindPDF     Kind = "pdf"
	KindText    Kind = "text"
)

// maxPartSize bounds a single decompressed entry.
const maxPartSize = 64 << 20

var (
	// ErrCorrupt indicates the payload is not a readable zip archive.
	ErrCorrupt = errors.New("archive corrupt")

	zipMagic = []byte("PK\x03\x04")
	pdfMagic = []byte("%PDF-")
)

// Part is a decoded text-bearing entry.
type Part struct {
	Name    string
	Content []byte
}

// Sniff classifies data by its leading bytes. Empty zips (end-of-central-directory
// only) are classified as archives too.
func Sniff(data []byte) Kind {
	switch {
	case bytes.HasPrefix(data, zipMagic), bytes.HasPrefix(data, []byte("PK\x05\x06")):
		return KindArchive
	case bytes.HasPrefix(data, pdfMagic):
		return KindPDF
	default:
		return KindText
	}
}

// IsTextPart reports whether an entry carries document text. Relationship parts,
// the content-types table and package metadata are excluded.
func IsTextPart(name string) bool {
	lower := strings.ToLower(name)
	if strings.HasSuffix(lower, "/") {
		return false
	}
	if !strings.HasSuffix(lower, ".xml") && !strings.HasSuffix(lower, ".txt") {
		return false
	}
	switch {
	case strings.HasSuffix(lower, ".rels"),
		strings.Contains(lower, "_rels/"),
		lower == "[content_types].xml",
		strings.HasPrefix(lower, "docprops/"),
		strings.HasPrefix(lower, "customxml/"):
		return false
	}
	return true
}

// TextParts returns the text-bearing entries of data in archive order.
func TextParts(data []byte) ([]Part, error) {
	reader, err := open(data)
	if err != nil {
		return nil, err
	}
	parts := make([]Part, 0, len(reader.File))
	for _, file := range reader.File {
		if !IsTextPart(file.Name) {
			continue
		}
		content, err := readEntry(file)
		if err != nil {
			return nil, err
		}
		parts = append(parts, Part{Name: file.Name, Content: content})
	}
	return parts, nil
}

// Rebuild writes a new archive with every entry of data in the original order.
// For text parts edit receives the decoded content; when it reports a change the
// entry is recompressed with the returned bytes. All other entries, and text parts
// edit leaves alone, are copied with their original compressed bytes.
func Rebuild(data []byte, edit func(name string, content []byte) ([]byte, bool)) ([]byte, error) {
	reader, err := open(data)
	if err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	buf.Grow(len(data))
	writer := zip.NewWriter(&buf)

	for _, file := range reader.File {
		if !IsTextPart(file.Name) {
			if err := writer.Copy(file); err != nil {
				return nil, fmt.Errorf("copy entry %s: %w", file.Name, err)
			}
			continue
		}

		content, err := readEntry(file)
		if err != nil {
			return nil, err
		}
		updated, changed := edit(file.Name, content)
		if !changed {
			if err := writer.Copy(file); err != nil {
				return nil, fmt.Errorf("copy entry %s: %w", file.Name, err)
			}
			continue
		}

		header := file.FileHeader
		header.CRC32 = 0
		header.CompressedSize = 0
		header.UncompressedSize = 0
		header.CompressedSize64 = 0
		header.UncompressedSize64 = 0
		header.Extra = nil
		entry, err := writer.CreateHeader(&header)
		if err != nil {
			return nil, fmt.Errorf("create entry %s: %w", file.Name, err)
		}
		if _, err := entry.Write(updated); err != nil {
			return nil, fmt.Errorf("write entry %s: %w", file.Name, err)
		}
	}

	if reader.Comment != "" {
		if err := writer.SetComment(reader.Comment); err != nil {
			return nil, fmt.Errorf("set archive comment: %w", err)
		}
	}
	if err := writer.Close(); err != nil {
		return nil, fmt.Errorf("finalize archive: %w", err)
	}
	return buf.Bytes(), nil
}

func open(data []byte) (*zip.Reader, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("%w: empty payload", ErrCorrupt)
	}
	reader, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorrupt, err)
	}
	return reader, nil
}

func readEntry(file *zip.File) ([]byte, error) {
	size, err := safecast.Conv[int](file.UncompressedSize64)
	if err != nil || size > maxPartSize {
		return nil, fmt.Errorf("%w: entry %s too large", ErrCorrupt, file.Name)
	}
	rc, err := file.Open()
	if err != nil {
		return nil, fmt.Errorf("%w: open entry %s: %v", ErrCorrupt, file.Name, err)
	}
	defer rc.Close()

	buf := bytes.NewBuffer(make([]byte, 0, size))
	if _, err := io.Copy(buf, io.LimitReader(rc, maxPartSize+1)); err != nil {
		return nil, fmt.Errorf("%w: read entry %s: %v", ErrCorrupt, file.Name, err)
	}
	if buf.Len() > maxPartSize {
		return nil, fmt.Errorf("%w: entry %s too large", ErrCorrupt, file.Name)
	}
	return buf.Bytes(), nil
}
