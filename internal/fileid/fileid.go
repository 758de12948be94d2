// Package fileid derives deterministic record IDs from a file path or uploaded content.
package fileid

import (
	"crypto/sha256"
	"encoding/hex"
	"path/filepath"
)

const (
	pathPrefix   = "file:"
	uploadPrefix = "upload:"
)

// PathID returns a stable record ID for the given absolute path.
// Same path always yields the same ID, so re-ingesting a file replaces its record.
func PathID(absolutePath string) string {
	normalized := filepath.Clean(absolutePath)
	hash := sha256.Sum256([]byte(normalized))
	return pathPrefix + hex.EncodeToString(hash[:])
}

// ContentID returns a stable record ID for an upload with no path on disk. The filename and
// the content both contribute, so identical re-uploads replace the same record.
func ContentID(filename string, content []byte) string {
	h := sha256.New()
	h.Write([]byte(filepath.Base(filename)))
	h.Write([]byte{0})
	h.Write(content)
	return uploadPrefix + hex.EncodeToString(h.Sum(nil))
}
