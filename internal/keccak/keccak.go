// Package keccak provides the keccak-256 (pre-NIST-SHA3) hashing primitives
// used throughout the journal: pair hashing in the Merkle engine, and
// streamed range hashing in the checkpoint updater and verifier.
package keccak

import (
	"encoding/hex"
	"hash"
	"io"

	"golang.org/x/crypto/sha3"
)

// Size is the output length, in bytes, of a keccak-256 digest.
const Size = 32

// chunkBytes bounds how much of a log range is read into memory per
// hasher.Write call while streaming a range from disk.
const chunkBytes = 1024

// New returns a fresh, unseeded keccak-256 hash.Hash. It is the
// pre-NIST-SHA3 variant (Ethereum's Keccak256), not SHA3-256.
func New() hash.Hash {
	return sha3.NewLegacyKeccak256()
}

// Sum returns the keccak-256 digest of the concatenation of parts.
func Sum(parts ...[]byte) []byte {
	h := New()
	for _, p := range parts {
		h.Write(p) //nolint:errcheck // hash.Hash.Write never fails
	}
	return h.Sum(nil)
}

// HexSum is Sum with its result lowercase-hex encoded, matching the wire
// format in the journal (§6: "all hex is lowercase, unpadded").
func HexSum(parts ...[]byte) string {
	return hex.EncodeToString(Sum(parts...))
}

// StreamRange hashes exactly n bytes read from r through a single keccak-256
// hasher, in chunks of at most 1024 bytes, and returns the lowercase-hex
// digest.
//
// The hasher MUST be hoisted outside the read loop: an earlier revision of
// this system reset it on every chunk, which made the recorded hash cover
// only the final chunk instead of the whole range. That bug is the reason
// this helper exists as a single function rather than being inlined at each
// call site.
func StreamRange(r io.Reader, n int64) (string, error) {
	h := New()
	buf := make([]byte, chunkBytes)
	remaining := n
	for remaining > 0 {
		bufsize := int64(chunkBytes)
		if remaining < bufsize {
			bufsize = remaining
		}
		if _, err := io.ReadFull(r, buf[:bufsize]); err != nil {
			return "", err
		}
		h.Write(buf[:bufsize]) //nolint:errcheck
		remaining -= bufsize
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}
