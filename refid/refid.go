// Package refid mints and parses the reference identifiers that serve as
// the external handle for every entry in a reference store: printable
// strings of the form "<cache-name>:<hex-digest>".
package refid

import (
	"crypto/sha256"
	"encoding/hex"
	"regexp"
)

// DigestLen is the number of hex characters kept from the SHA-256 digest
// when minting an identifier. 8 or more is required for the wire form;
// 16 gives a collision margin well beyond what a single cache instance
// will ever need while staying short enough to embed in tool responses.
const DigestLen = 16

// pattern matches the full wire form: a cache name
// ([A-Za-z][A-Za-z0-9_-]*) followed by ":" and 8+ lowercase hex chars,
// ASCII-printable and at most 128 bytes total.
var pattern = regexp.MustCompile(`^[A-Za-z][A-Za-z0-9_-]*:[a-f0-9]{8,}$`)

const maxLen = 128

// Looks reports whether s has the syntactic shape of a reference
// identifier. It does not check that the identifier resolves to a live
// entry — that is the reference store's job.
func Looks(s string) bool {
	return len(s) <= maxLen && pattern.MatchString(s)
}

// Mint deterministically derives a reference identifier for cacheName
// from a (namespace, canonicalKey) pair. Equal inputs always yield the
// same identifier (idempotent cache insert), and the identifier is
// globally unique per cache name in practice (a SHA-256 digest
// truncated to DigestLen hex characters).
func Mint(cacheName, namespace, canonicalKey string) string {
	h := sha256.New()
	h.Write([]byte(namespace))
	h.Write([]byte{0})
	h.Write([]byte(canonicalKey))
	sum := h.Sum(nil)
	digest := hex.EncodeToString(sum)[:DigestLen]
	return cacheName + ":" + digest
}

// Split separates a reference identifier into its cache-name and digest
// parts. ok is false if s is not syntactically a reference identifier.
func Split(s string) (cacheName, digest string, ok bool) {
	if !Looks(s) {
		return "", "", false
	}
	for i := 0; i < len(s); i++ {
		if s[i] == ':' {
			return s[:i], s[i+1:], true
		}
	}
	return "", "", false
}
