package journal_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/jacqueswww/logproof/internal/journal"
)

func TestRoundTrip(t *testing.T) {
	dir := t.TempDir()
	now := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)

	j := journal.New()
	state, created := j.PathFor("10.0.0.1/2026-08-01.log")
	require.True(t, created)
	state.LastTS = now
	state.LastPos = 42
	state.History = append(state.History, journal.HistoryEntry{
		Hash:     "aa",
		FromDate: now.Add(-time.Second),
		ToDate:   now,
		FromPos:  0,
		ToPos:    42,
	})
	j.AddRoot("deadbeef")
	state.History[0].RootHash = "deadbeef"
	state.History[0].Proofs = []string{"bb", "cc"}

	require.NoError(t, journal.Save(dir, now, j))

	loaded, err := journal.Load(dir, now)
	require.NoError(t, err)

	got, ok := loaded.Paths["10.0.0.1/2026-08-01.log"]
	require.True(t, ok)
	require.Equal(t, int64(42), got.LastPos)
	require.WithinDuration(t, now, got.LastTS, time.Microsecond)
	require.Len(t, got.History, 1)
	require.Equal(t, "aa", got.History[0].Hash)
	require.Equal(t, "deadbeef", got.History[0].RootHash)
	require.Equal(t, []string{"bb", "cc"}, got.History[0].Proofs)
	require.True(t, loaded.HasRoot("deadbeef"))
}

func TestLoadMissingFileReturnsEmptyJournal(t *testing.T) {
	dir := t.TempDir()
	j, err := journal.Load(dir, time.Now())
	require.NoError(t, err)
	require.Empty(t, j.Paths)
	require.Empty(t, j.Roots)
}

func TestHasRootIsFalseForUnknownRoot(t *testing.T) {
	j := journal.New()
	j.AddRoot("aa" + "00000000000000000000000000000000000000000000000000000000")
	require.False(t, j.HasRoot("ff"+"00000000000000000000000000000000000000000000000000000000"))
}

func TestUnpublishedTracksNewRootsOnly(t *testing.T) {
	j := journal.New()
	j.AddRoot("aabb")
	require.Contains(t, j.Unpublished, "aabb")
	j.MarkPublished("aabb")
	require.NotContains(t, j.Unpublished, "aabb")
}
