// Package journal holds the per-path checkpoint state and the set of
// Merkle roots produced so far, with atomic load/save to a dated JSON file.
//
// A Journal is an explicit handle owned by the server and shared by the log
// writer and the Merkle batch worker, rather than the module-level global
// the original implementation used: every mutation goes through the single
// mutex embedded in the handle.
package journal

import (
	"encoding/hex"
	"sync"
	"time"

	"github.com/jacqueswww/logproof/internal/rootbloom"
)

// defaultBloomBitsPerElement and defaultBloomK size the root-membership
// accelerator; see internal/rootbloom.
const (
	defaultBloomBitsPerElement = 10
	defaultBloomK              = 7
	defaultBloomCapacityHint   = 64
)

// HistoryEntry is one sealed, contiguous byte range of a LogFile.
//
// Once RootHash is set it is never changed again; the state machine is
// SEALED_UNPROVEN (RootHash == "") -> SEALED_PROVEN (RootHash set), with no
// transition back.
type HistoryEntry struct {
	Hash     string    `json:"hash"`
	FromDate time.Time `json:"from_date"`
	ToDate   time.Time `json:"to_date"`
	FromPos  int64     `json:"from_pos"`
	ToPos    int64     `json:"to_pos"`
	RootHash string    `json:"root_hash,omitempty"`
	Proofs   []string  `json:"proofs,omitempty"`
}

// Sealed reports whether this entry has been assigned a Merkle root.
func (h HistoryEntry) Sealed() bool {
	return h.RootHash != ""
}

// PathState is the checkpoint state for one currently-active LogFile path.
//
// Invariant: LastPos equals the ToPos of the last History entry when
// History is non-empty; before the first seal it is the anchor position
// recorded for the path's first message. Invariant: LastTS is monotonic
// non-decreasing across appends to History.
type PathState struct {
	LastTS  time.Time      `json:"last_ts"`
	LastPos int64          `json:"last_pos"`
	History []HistoryEntry `json:"history"`
}

// Journal is the full persisted state: per-path checkpoint state plus the
// set of every root hash ever produced.
//
// All mutation goes through mu; the Merkle batch worker and the checkpoint
// updater (invoked from the log writer) are the only callers that acquire
// it, and neither nests a second acquisition inside the first.
type Journal struct {
	Paths map[string]*PathState
	Roots map[string]struct{}

	// Unpublished holds roots that have been sealed into the journal but not
	// yet confirmed published to the registry. This is the parallel
	// "published" subset the spec's Open Questions section permits; it is
	// never serialized, and Load puts every root read from the file into it.
	Unpublished map[string]struct{}

	bloom *rootbloom.Filter

	mu sync.Mutex
}

// New returns an empty Journal, ready for use.
func New() *Journal {
	return &Journal{
		Paths:       make(map[string]*PathState),
		Roots:       make(map[string]struct{}),
		Unpublished: make(map[string]struct{}),
		bloom:       rootbloom.New(defaultBloomCapacityHint, defaultBloomBitsPerElement, defaultBloomK),
	}
}

// Lock locks the journal's mutex. Callers MUST pair every Lock with an
// Unlock and must not call Lock again while holding it: the mutex is not
// reentrant.
func (j *Journal) Lock()   { j.mu.Lock() }
func (j *Journal) Unlock() { j.mu.Unlock() }

// AddRoot records root (lowercase hex) as known, and marks it unpublished.
// Callers must hold the journal lock.
func (j *Journal) AddRoot(rootHex string) {
	if _, ok := j.Roots[rootHex]; !ok {
		j.Roots[rootHex] = struct{}{}
		j.bloom.Insert(mustDecodeHex(rootHex)) //nolint:errcheck // rootHex is always 32 bytes here
	}
	j.Unpublished[rootHex] = struct{}{}
}

// MarkPublished removes root from the unpublished subset. Callers must hold
// the journal lock.
func (j *Journal) MarkPublished(rootHex string) {
	delete(j.Unpublished, rootHex)
}

// HasRoot reports whether rootHex is a known root. It consults the bloom
// accelerator first and only falls through to the authoritative map when
// the filter cannot rule the root out. Callers must hold the journal lock.
func (j *Journal) HasRoot(rootHex string) bool {
	elem := mustDecodeHex(rootHex)
	if elem != nil {
		if maybe, err := j.bloom.MaybeContains(elem); err == nil && !maybe {
			return false
		}
	}
	_, ok := j.Roots[rootHex]
	return ok
}

// PathFor returns the state for path, creating it if absent. The created
// flag reports whether a new, anchor-less state was created. Callers must
// hold the journal lock.
func (j *Journal) PathFor(path string) (state *PathState, created bool) {
	state, ok := j.Paths[path]
	if ok {
		return state, false
	}
	state = &PathState{}
	j.Paths[path] = state
	return state, true
}

func mustDecodeHex(s string) []byte {
	b, err := hex.DecodeString(s)
	if err != nil {
		return nil
	}
	return b
}
