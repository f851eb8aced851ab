// Package checksum computes the version tag used for optimistic concurrency
// on note updates.
package checksum

import (
	"crypto/sha256"
	"encoding/hex"
)

// Note returns the hex-encoded SHA-256 digest of a note's title and content.
// A NUL separator keeps ("ab", "c") and ("a", "bc") apart.
func Note(title, content string) string {
	h := sha256.New()
	h.Write([]byte(title))
	h.Write([]byte{0})
	h.Write([]byte(content))
	return hex.EncodeToString(h.Sum(nil))
}
