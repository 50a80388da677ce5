// Package fileid derives stable document IDs for watched files.
package fileid

import (
	"crypto/sha256"
	"encoding/hex"
	"path/filepath"
	"strings"
)

const prefix = "file:"

// DocID returns a deterministic document ID for a file path. The same path
// always maps to the same ID, so re-ingesting a changed file overwrites its
// previous chunks instead of duplicating them. The original base name is kept
// in the ID to stay readable in source listings.
func DocID(path string) string {
	clean := filepath.Clean(path)
	sum := sha256.Sum256([]byte(clean))
	base := sanitize(filepath.Base(clean))
	return prefix + hex.EncodeToString(sum[:8]) + ":" + base
}

// sanitize keeps the base name within doc_id character limits.
func sanitize(name string) string {
	name = strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			return r
		case r == '.', r == '-', r == '_':
			return r
		default:
			return '-'
		}
	}, name)
	const maxBase = 100
	if len(name) > maxBase {
		name = name[len(name)-maxBase:]
	}
	return name
}
