package rootbloom

import (
	"crypto/sha256"
	"testing"

	"github.com/stretchr/testify/require"
)

func elem(b byte) []byte {
	e := make([]byte, ValueBytes)
	for i := range e {
		e[i] = b
	}
	return e
}

func TestInsertThenMaybeContains(t *testing.T) {
	f := New(16, 10, 7)
	e := elem(0x01)
	ok, err := f.MaybeContains(e)
	require.NoError(t, err)
	require.False(t, ok)

	require.NoError(t, f.Insert(e))

	ok, err = f.MaybeContains(e)
	require.NoError(t, err)
	require.True(t, ok)
	require.EqualValues(t, 1, f.Len())
}

func TestMaybeContainsNoFalseNegatives(t *testing.T) {
	f := New(64, 10, 7)
	inserted := make([][]byte, 0, 64)
	for i := 0; i < 64; i++ {
		sum := sha256.Sum256([]byte{byte(i)})
		e := sum[:]
		require.NoError(t, f.Insert(e))
		inserted = append(inserted, e)
	}
	for _, e := range inserted {
		ok, err := f.MaybeContains(e)
		require.NoError(t, err)
		require.True(t, ok, "bloom filters must never produce false negatives")
	}
}

func TestBadElementSize(t *testing.T) {
	f := New(4, 10, 7)
	_, err := f.MaybeContains([]byte{1, 2, 3})
	require.ErrorIs(t, err, ErrBadElemSize)
	require.ErrorIs(t, f.Insert([]byte{1, 2, 3}), ErrBadElemSize)
}
