package registry

import (
	"context"
	"crypto/rand"
	"fmt"
	"time"

	"github.com/datatrails/go-datatrails-common/logger"
	"github.com/veraison/go-cose"
)

// CoseSigningPublisher wraps another Publisher and produces a COSE Sign1
// envelope over the root bytes before delegating, mirroring how the
// teacher's rootsigner commits MMR roots with go-cose. The envelope is not
// stored in the journal — HistoryEntry's wire format (§6) is unchanged —
// and it is not passed on to the registry either: only its size is logged,
// and Inner receives the bare root bytes.
type CoseSigningPublisher struct {
	Inner  Publisher
	Signer cose.Signer
	KeyID  string
	Log    logger.Logger
}

// Publish wraps rootBytes in a signed COSE_Sign1 message, logs its size,
// and then calls through to Inner.Publish with the original, unwrapped
// root bytes: the Publisher interface takes raw root bytes only, so the
// signed envelope is discarded after logging and never reaches Inner.
func (p CoseSigningPublisher) Publish(ctx context.Context, rootBytes []byte) (time.Time, error) {
	headers := cose.Headers{
		Protected: cose.ProtectedHeader{
			cose.HeaderLabelAlgorithm: p.Signer.Algorithm(),
			cose.HeaderLabelKeyID:     []byte(p.KeyID),
		},
	}

	envelope, err := cose.Sign1(rand.Reader, p.Signer, headers, rootBytes, nil)
	if err != nil {
		return time.Time{}, fmt.Errorf("registry: cose sign1 over root: %w", err)
	}

	if p.Log != nil {
		p.Log.Infof("registry: signed root %x into a %d-byte COSE_Sign1 envelope", rootBytes, len(envelope))
	}

	return p.Inner.Publish(ctx, rootBytes)
}
