// Package registry defines the abstract interface to the external
// append-only timestamp authority that roots are published to, plus two
// concrete adapters used outside of a real on-chain deployment.
package registry

import (
	"context"
	"time"

	"github.com/datatrails/go-datatrails-common/logger"
)

// Publisher commits a Merkle root to an external, append-only timestamp
// authority and returns the timestamp it was recorded under.
//
// Publish MUST be idempotent on the far side: publishing the same root
// bytes twice returns the same stored timestamp. The batch worker retries a
// failing Publish a bounded number of times per pass and leaves the root
// unpublished if every attempt fails; at-least-once delivery over many runs
// is the target, achieved by retrying unpublished roots at startup and on
// every tick (see internal/batchworker.Worker.RetryUnpublished).
type Publisher interface {
	Publish(ctx context.Context, rootBytes []byte) (time.Time, error)
}

// LoggingPublisher is a Publisher that only logs the root and stamps it
// with local wall-clock time. It stands in for the on-chain registry this
// system treats as an external collaborator (spec §1(a)): real deployments
// swap it for a client of whatever append-only authority is in use.
type LoggingPublisher struct {
	Log logger.Logger
}

// Publish logs rootBytes and returns the current local time as its
// timestamp.
func (p LoggingPublisher) Publish(_ context.Context, rootBytes []byte) (time.Time, error) {
	now := time.Now()
	if p.Log != nil {
		p.Log.Infof("registry: publishing root %x at %s", rootBytes, now.Format(time.RFC3339))
	}
	return now, nil
}
