package batchworker_test

import (
	"context"
	"encoding/hex"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/jacqueswww/logproof/internal/batchworker"
	"github.com/jacqueswww/logproof/internal/journal"
	"github.com/jacqueswww/logproof/internal/keccak"
	"github.com/jacqueswww/logproof/internal/merkle"
)

var errFakePublish = errors.New("publish unavailable")

type fakePublisher struct {
	calls []string
	fail  bool
}

func (f *fakePublisher) Publish(_ context.Context, rootBytes []byte) (time.Time, error) {
	if f.fail {
		return time.Time{}, errFakePublish
	}
	f.calls = append(f.calls, string(rootBytes))
	return time.Now(), nil
}

func seedEntry(t *testing.T, j *journal.Journal, path string, toDate time.Time, payload string) {
	t.Helper()
	state, _ := j.PathFor(path)
	state.History = append(state.History, journal.HistoryEntry{
		Hash:    keccak.HexSum([]byte(payload)),
		ToDate:  toDate,
		FromPos: 0,
		ToPos:   int64(len(payload)),
	})
	state.LastPos = int64(len(payload))
	state.LastTS = toDate
}

func TestTickSealsSinglePathSingleLeaf(t *testing.T) {
	j := journal.New()
	now := time.Now()
	seedEntry(t, j, "10.0.0.1/log", now.Add(-10*time.Second), "only-entry")

	pub := &fakePublisher{}
	w := &batchworker.Worker{
		Journal:     j,
		Window:      3 * time.Second,
		Publisher:   pub,
		SaveJournal: func(*journal.Journal) error { return nil },
		Now:         func() time.Time { return now },
	}
	w.Tick(context.Background())

	state := j.Paths["10.0.0.1/log"]
	require.True(t, state.History[0].Sealed())
	require.Equal(t, state.History[0].Hash, state.History[0].RootHash, "single-leaf tree roots to the leaf itself")
	require.Empty(t, state.History[0].Proofs)
	require.True(t, merkle.ValidateProof(nil, mustHex(t, state.History[0].RootHash), mustHex(t, state.History[0].Hash)))
	require.True(t, j.HasRoot(state.History[0].RootHash))
	require.Len(t, pub.calls, 1)
}

func TestTickProducesOneRootForTwoSources(t *testing.T) {
	j := journal.New()
	now := time.Now()
	seedEntry(t, j, "10.0.0.1/log", now.Add(-10*time.Second), "from-one")
	seedEntry(t, j, "10.0.0.2/log", now.Add(-10*time.Second), "from-two")

	w := &batchworker.Worker{
		Journal:     j,
		Window:      3 * time.Second,
		Publisher:   &fakePublisher{},
		SaveJournal: func(*journal.Journal) error { return nil },
		Now:         func() time.Time { return now },
	}
	w.Tick(context.Background())

	e1 := j.Paths["10.0.0.1/log"].History[0]
	e2 := j.Paths["10.0.0.2/log"].History[0]
	require.Equal(t, e1.RootHash, e2.RootHash)
	require.NotEqual(t, e1.Proofs, e2.Proofs)
	require.True(t, merkle.ValidateProof(mustHexSlice(t, e1.Proofs), mustHex(t, e1.RootHash), mustHex(t, e1.Hash)))
	require.True(t, merkle.ValidateProof(mustHexSlice(t, e2.Proofs), mustHex(t, e2.RootHash), mustHex(t, e2.Hash)))
}

func TestTickSkipsEntriesWithinWindow(t *testing.T) {
	j := journal.New()
	now := time.Now()
	seedEntry(t, j, "10.0.0.1/log", now.Add(-time.Second), "too-fresh")

	w := &batchworker.Worker{
		Journal:     j,
		Window:      3 * time.Second,
		Publisher:   &fakePublisher{},
		SaveJournal: func(*journal.Journal) error { return nil },
		Now:         func() time.Time { return now },
	}
	w.Tick(context.Background())

	require.False(t, j.Paths["10.0.0.1/log"].History[0].Sealed())
}

func TestTickLeavesLocalStateOnPublishFailure(t *testing.T) {
	j := journal.New()
	now := time.Now()
	seedEntry(t, j, "10.0.0.1/log", now.Add(-10*time.Second), "x")

	w := &batchworker.Worker{
		Journal:     j,
		Window:      3 * time.Second,
		Publisher:   &fakePublisher{fail: true},
		SaveJournal: func(*journal.Journal) error { return nil },
		Now:         func() time.Time { return now },
	}
	w.Tick(context.Background())

	state := j.Paths["10.0.0.1/log"]
	require.True(t, state.History[0].Sealed(), "local sealing happens even if the registry is unavailable")
	j.Lock()
	_, stillPending := j.Unpublished[state.History[0].RootHash]
	j.Unlock()
	require.True(t, stillPending)
}

func mustHex(t *testing.T, s string) []byte {
	t.Helper()
	b, err := hex.DecodeString(s)
	require.NoError(t, err)
	return b
}

func mustHexSlice(t *testing.T, ss []string) [][]byte {
	t.Helper()
	out := make([][]byte, len(ss))
	for i, s := range ss {
		out[i] = mustHex(t, s)
	}
	return out
}
