// Package checkpoint implements the per-path checkpoint state machine: given
// a just-appended message's timestamp and the file position immediately
// after it, it decides whether enough time has passed to seal a new,
// contiguous byte range into a journal.HistoryEntry.
package checkpoint

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/datatrails/go-datatrails-common/logger"

	"github.com/jacqueswww/logproof/internal/journal"
	"github.com/jacqueswww/logproof/internal/keccak"
)

// ErrCorruptLogFile is a LogTampered condition surfaced when the on-disk log
// file is missing or shorter than the position the journal believes it has
// already accounted for. The ingester trusts its own last_pos and treats
// this as fatal corruption rather than attempting to repair it.
var ErrCorruptLogFile = fmt.Errorf("checkpoint: log file missing or truncated")

// Window is the checkpoint window: the minimum elapsed time between a
// path's last accounted-for message and the current one before a new range
// is sealed.
type Window = time.Duration

// Update applies one (path, ts, currentPos) observation to j under its lock.
//
// On the very first message for path, it only establishes an anchor point
// (last_ts, last_pos) and returns without sealing: there is no prior range
// to close yet. On every later call it seals a new HistoryEntry once ts is
// more than window past the path's last accounted-for timestamp, hashing
// the newly appended bytes with a single keccak-256 hasher held open across
// the whole range (see internal/keccak.StreamRange for why that matters).
//
// Update persists the journal via save after every seal, matching the
// source's save-on-every-checkpoint behavior; establishing the first anchor
// for a path does not save.
func Update(
	ctx context.Context,
	log logger.Logger,
	j *journal.Journal,
	path string,
	ts time.Time,
	currentPos int64,
	window Window,
	save func(*journal.Journal) error,
) error {
	j.Lock()
	defer j.Unlock()

	state, created := j.PathFor(path)
	if created {
		state.LastTS = ts
		state.LastPos = currentPos
		return nil
	}

	delta := ts.Sub(state.LastTS)
	if delta <= window {
		return nil
	}

	if currentPos == state.LastPos {
		// The writer only calls Update after a non-empty append, so this
		// would indicate a logic error upstream rather than a real
		// zero-length range.
		return nil
	}

	entry, err := seal(path, state.LastTS, ts, state.LastPos, currentPos)
	if err != nil {
		if log != nil {
			log.Errorf("checkpoint: sealing %s failed: %v", path, err)
		}
		return err
	}

	state.History = append(state.History, entry)
	state.LastPos = currentPos
	state.LastTS = ts

	if err := save(j); err != nil {
		if log != nil {
			log.Errorf("checkpoint: saving journal after sealing %s failed: %v", path, err)
		}
		return err
	}
	return nil
}

// seal hashes the byte range [fromPos, toPos) of the log file at path and
// returns the resulting, as yet unrooted, history entry.
func seal(path string, fromTS, toTS time.Time, fromPos, toPos int64) (journal.HistoryEntry, error) {
	f, err := os.Open(path)
	if err != nil {
		return journal.HistoryEntry{}, fmt.Errorf("%w: %s: %v", ErrCorruptLogFile, path, err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return journal.HistoryEntry{}, fmt.Errorf("%w: %s: %v", ErrCorruptLogFile, path, err)
	}
	if info.Size() < toPos {
		return journal.HistoryEntry{}, fmt.Errorf("%w: %s is %d bytes, need %d", ErrCorruptLogFile, path, info.Size(), toPos)
	}

	if _, err := f.Seek(fromPos, 0); err != nil {
		return journal.HistoryEntry{}, fmt.Errorf("%w: %s: %v", ErrCorruptLogFile, path, err)
	}

	hexHash, err := keccak.StreamRange(f, toPos-fromPos)
	if err != nil {
		return journal.HistoryEntry{}, fmt.Errorf("%w: %s: %v", ErrCorruptLogFile, path, err)
	}

	return journal.HistoryEntry{
		Hash:     hexHash,
		FromDate: fromTS,
		ToDate:   toTS,
		FromPos:  fromPos,
		ToPos:    toPos,
	}, nil
}
