// Package objectstore stores template payloads and generated documents.
package objectstore

import (
	"errors"
	"fmt"
	"path"
	"strings"
)

// ErrNotFound is returned by Download when no object exists at the path.
var ErrNotFound = errors.New("object not found")

// cleanKey turns a caller path into a relative object key and rejects keys
// that would escape the store root.
func cleanKey(p string) (string, error) {
	key := path.Clean("/" + strings.ReplaceAll(p, "\\", "/"))
	key = strings.TrimPrefix(key, "/")
	if key == "" || key == "." {
		return "", fmt.Errorf("invalid object path %q", p)
	}
	return key, nil
}
