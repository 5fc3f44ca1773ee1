// Package checksum computes the SHA-256 digests used to detect changed
// mirror files and to address objects in the in-memory content store.
package checksum

import (
	"crypto/sha256"
	"encoding/hex"
	"strconv"
)

// Sum returns the hex-encoded SHA-256 digest of data.
func Sum(data []byte) string {
	h := sha256.Sum256(data)
	return hex.EncodeToString(h[:])
}

// Object returns the digest of the envelope "kind len\x00data", so equal
// payloads of different kinds never share an id.
func Object(kind string, data []byte) string {
	h := sha256.New()
	h.Write([]byte(kind + " " + strconv.Itoa(len(data)) + "\x00"))
	h.Write(data)
	return hex.EncodeToString(h.Sum(nil))
}
