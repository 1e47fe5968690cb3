package rootbloom

import (
	"crypto/sha256"
	"encoding/binary"
	"errors"
)

// ValueBytes is the fixed element width: a keccak-256 root hash.
const ValueBytes = 32

const bloomDomain = 0xB0

// ErrBadElemSize is returned by Insert and MaybeContains when elem is not
// exactly ValueBytes long.
var ErrBadElemSize = errors.New("rootbloom: element must be 32 bytes")

// Filter is a single in-memory Bloom filter over 32-byte root hashes.
//
// It is not safe for concurrent use; callers (the journal) are expected to
// guard it with their own mutex, the same one that protects the roots map
// it accelerates.
type Filter struct {
	bits      []byte
	mBits     uint64
	k         uint8
	nInserted uint32
}

// New sizes a filter for an expected element count, at roughly bitsPerElement
// bits per element and k hash probes per insert. Reasonable defaults (used by
// the journal) are bitsPerElement=10, k=7, giving under 1% false-positive
// rate at the expected load.
func New(expectedElements int, bitsPerElement int, k uint8) *Filter {
	if expectedElements < 1 {
		expectedElements = 1
	}
	mBits := uint64(expectedElements) * uint64(bitsPerElement)
	if mBits == 0 {
		mBits = 64
	}
	return &Filter{
		bits:  make([]byte, (mBits+7)/8),
		mBits: mBits,
		k:     k,
	}
}

// Insert adds elem to the filter.
func (f *Filter) Insert(elem []byte) error {
	if len(elem) != ValueBytes {
		return ErrBadElemSize
	}
	h1, h2 := hashPair(elem)
	for i := uint64(0); i < uint64(f.k); i++ {
		j := (h1 + i*h2) % f.mBits
		f.bits[j>>3] |= 1 << (j & 7)
	}
	f.nInserted++
	return nil
}

// MaybeContains reports whether elem may be present. false means elem is
// definitely not present; true means it may or may not be.
func (f *Filter) MaybeContains(elem []byte) (bool, error) {
	if len(elem) != ValueBytes {
		return false, ErrBadElemSize
	}
	h1, h2 := hashPair(elem)
	for i := uint64(0); i < uint64(f.k); i++ {
		j := (h1 + i*h2) % f.mBits
		if f.bits[j>>3]&(1<<(j&7)) == 0 {
			return false, nil
		}
	}
	return true, nil
}

// Len returns the number of elements inserted so far.
func (f *Filter) Len() uint32 {
	return f.nInserted
}

func hashPair(elem32 []byte) (h1, h2 uint64) {
	var buf [2 + ValueBytes]byte
	buf[0] = bloomDomain
	buf[1] = 0
	copy(buf[2:], elem32)
	sum := sha256.Sum256(buf[:])
	h1 = binary.BigEndian.Uint64(sum[0:8])
	h2 = binary.BigEndian.Uint64(sum[8:16])
	if h2 == 0 {
		h2 = 1
	}
	return h1, h2
}
