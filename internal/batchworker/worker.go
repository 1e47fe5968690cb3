// Package batchworker implements the Merkle batch worker: on a fixed tick,
// it collects every sealed-but-unproven checkpoint old enough to have had a
// chance to be joined by siblings from other sources, roots them together
// in one Merkle tree, and hands the root to the registry publisher.
package batchworker

import (
	"context"
	"encoding/hex"
	"time"

	"github.com/avast/retry-go/v4"
	"github.com/datatrails/go-datatrails-common/logger"

	"github.com/jacqueswww/logproof/internal/journal"
	"github.com/jacqueswww/logproof/internal/merkle"
	"github.com/jacqueswww/logproof/internal/registry"
)

// publishAttempts bounds how many times publish retries a single root
// within one call before leaving it for the next tick's RetryUnpublished
// pass.
const publishAttempts = 3

// candidate identifies one history entry eligible for sealing into the
// current batch.
type candidate struct {
	path    string
	index   int
	leafHex string
}

// Worker ticks every Window and seals every eligible checkpoint into a
// shared Merkle root.
type Worker struct {
	Log         logger.Logger
	Journal     *journal.Journal
	Window      time.Duration
	Publisher   registry.Publisher
	SaveJournal func(*journal.Journal) error

	// Now, if set, overrides time.Now for tests.
	Now func() time.Time
}

// Run ticks until ctx is cancelled. It never panics out of a failed tick;
// every error is logged and the tick is simply abandoned, to be retried on
// the next one.
func (w *Worker) Run(ctx context.Context) {
	ticker := time.NewTicker(w.Window)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			w.Tick(ctx)
		}
	}
}

// Tick runs exactly one batch-sealing pass. It is exported so tests (and a
// manual admin trigger) can run it without waiting on the ticker.
func (w *Worker) Tick(ctx context.Context) {
	now := time.Now
	if w.Now != nil {
		now = w.Now
	}

	// Roots whose publication failed on an earlier pass are retried first.
	w.RetryUnpublished(ctx)

	w.Journal.Lock()
	candidates := w.collectCandidates(now())
	if len(candidates) == 0 {
		w.Journal.Unlock()
		return
	}

	root, _, err := sealBatch(w.Journal, candidates)
	if err != nil {
		w.Journal.Unlock()
		if w.Log != nil {
			w.Log.Errorf("batchworker: sealing batch failed: %v", err)
		}
		return
	}

	if err := w.SaveJournal(w.Journal); err != nil {
		w.Journal.Unlock()
		if w.Log != nil {
			w.Log.Errorf("batchworker: saving journal failed: %v", err)
		}
		return
	}
	w.Journal.Unlock()

	if w.Log != nil {
		w.Log.Infof("batchworker: sealed %d checkpoints under root %s", len(candidates), root)
	}

	w.publish(ctx, root)
}

// collectCandidates walks every path's history and returns every entry
// whose root is not yet set and whose to_date is older than now - window.
// Callers must hold the journal lock.
func (w *Worker) collectCandidates(now time.Time) []candidate {
	var out []candidate
	for path, state := range w.Journal.Paths {
		for i, entry := range state.History {
			if entry.Sealed() {
				continue
			}
			if now.Sub(entry.ToDate) <= w.Window {
				continue
			}
			out = append(out, candidate{path: path, index: i, leafHex: entry.Hash})
		}
	}
	return out
}

// sealBatch builds a Merkle tree over the candidates' leaf hashes (in
// collection order) and writes the resulting root and per-leaf proof back
// into each referenced history entry. Callers must hold the journal lock.
func sealBatch(j *journal.Journal, candidates []candidate) (rootHex string, proofs [][]string, err error) {
	leaves := make([][]byte, len(candidates))
	for i, c := range candidates {
		leaf, decErr := hex.DecodeString(c.leafHex)
		if decErr != nil {
			return "", nil, decErr
		}
		leaves[i] = leaf
	}

	tree, err := merkle.BuildLayers(leaves)
	if err != nil {
		return "", nil, err
	}
	root := merkle.Root(tree)
	rootHex = hex.EncodeToString(root)

	proofs = make([][]string, len(candidates))
	for i, c := range candidates {
		proof, err := merkle.ProofFor(tree, leaves[i])
		if err != nil {
			return "", nil, err
		}
		hexProof := make([]string, len(proof))
		for k, s := range proof {
			hexProof[k] = hex.EncodeToString(s)
		}
		proofs[i] = hexProof

		state := j.Paths[c.path]
		state.History[c.index].RootHash = rootHex
		state.History[c.index].Proofs = hexProof
	}

	j.AddRoot(rootHex)
	return rootHex, proofs, nil
}

// publish hands root to the registry. A failed publish is logged but does
// not roll back the local seal: the root stays in the journal's
// unpublished subset and is retried on a later tick.
func (w *Worker) publish(ctx context.Context, rootHex string) {
	rootBytes, err := hex.DecodeString(rootHex)
	if err != nil {
		if w.Log != nil {
			w.Log.Errorf("batchworker: bad root hex %q: %v", rootHex, err)
		}
		return
	}

	err = retry.Do(
		func() error {
			_, publishErr := w.Publisher.Publish(ctx, rootBytes)
			return publishErr
		},
		retry.Attempts(publishAttempts),
		retry.Delay(10*time.Millisecond),
		retry.Context(ctx),
		retry.LastErrorOnly(true),
	)
	if err != nil {
		if w.Log != nil {
			w.Log.Errorf("batchworker: publish of root %s failed after %d attempts, will retry on a later tick: %v", rootHex, publishAttempts, err)
		}
		return
	}

	w.Journal.Lock()
	w.Journal.MarkPublished(rootHex)
	saveErr := w.SaveJournal(w.Journal)
	w.Journal.Unlock()
	if saveErr != nil && w.Log != nil {
		w.Log.Errorf("batchworker: saving journal after publish failed: %v", saveErr)
	}
}

// RetryUnpublished re-attempts publication for every root currently marked
// unpublished. The server calls this once at startup, in case the process
// died after sealing a root but before confirming publication, and Tick
// calls it at the start of every pass.
func (w *Worker) RetryUnpublished(ctx context.Context) {
	w.Journal.Lock()
	pending := make([]string, 0, len(w.Journal.Unpublished))
	for r := range w.Journal.Unpublished {
		pending = append(pending, r)
	}
	w.Journal.Unlock()

	for _, r := range pending {
		w.publish(ctx, r)
	}
}
