// Command logproofd runs the UDP log ingester: it accepts syslog-style
// datagrams, appends them to per-source daily log files, seals byte ranges
// into checkpoints on a window tick, batches pending checkpoints into a
// Merkle tree, and publishes the resulting roots to a registry.
package main

import (
	"context"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/urfave/cli/v2"
	"github.com/veraison/go-cose"

	"github.com/jacqueswww/logproof/internal/batchworker"
	"github.com/jacqueswww/logproof/internal/checkpoint"
	"github.com/jacqueswww/logproof/internal/ingest"
	"github.com/jacqueswww/logproof/internal/journal"
	"github.com/jacqueswww/logproof/internal/logging"
	"github.com/jacqueswww/logproof/internal/registry"
	"github.com/jacqueswww/logproof/internal/udpserver"
)

func main() {
	app := &cli.App{
		Name:  "logproofd",
		Usage: "tamper-evident UDP log ingester with Merkle-sealed checkpoints",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "bind", Value: "0.0.0.0:5140", Usage: "UDP address to receive syslog datagrams on"},
			&cli.StringFlag{Name: "checkpoint-path", Value: "./checkpoints", Usage: "directory holding the dated journal files"},
			&cli.DurationFlag{Name: "window", Value: 5 * time.Minute, Usage: "checkpoint and batch-sealing window"},
			&cli.IntFlag{Name: "queue-size", Value: 1024, Usage: "bounded ingest queue capacity"},
			&cli.StringFlag{Name: "service-name", Value: "logproofd", Usage: "name tag applied to every log line"},
			&cli.StringFlag{Name: "log-level", Value: "INFO", Usage: "logger level: DEBUG, INFO, NOOP, ..."},
			&cli.BoolFlag{Name: "sign-roots", Value: false, Usage: "sign each root into a COSE_Sign1 envelope before publishing; only the envelope's size is logged"},
		},
		Action: run,
	}

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(c *cli.Context) error {
	flush := logging.Init(c.String("log-level"))
	defer flush()

	log := logging.For(c.String("service-name"))
	instanceID := uuid.NewString()
	log.Infof("logproofd: starting instance %s", instanceID)

	checkpointPath := c.String("checkpoint-path")
	window := checkpoint.Window(c.Duration("window"))
	now := time.Now()

	j, err := journal.Load(checkpointPath, now)
	if err != nil {
		log.Errorf("logproofd: loading journal: %v", err)
		return err
	}

	saveJournal := func(j *journal.Journal) error {
		return journal.Save(checkpointPath, time.Now(), j)
	}

	var publisher registry.Publisher = registry.LoggingPublisher{Log: logging.For("registry")}
	if c.Bool("sign-roots") {
		signer, err := newDevSigner()
		if err != nil {
			log.Errorf("logproofd: creating root signer: %v", err)
			return err
		}
		publisher = registry.CoseSigningPublisher{
			Inner:  publisher,
			Signer: signer,
			KeyID:  c.String("service-name"),
			Log:    logging.For("registry"),
		}
	}

	q := ingest.NewQueue(c.Int("queue-size"))
	writer := &ingest.Writer{
		Log:         logging.For("writer"),
		Journal:     j,
		Window:      window,
		SaveJournal: saveJournal,
	}
	worker := &batchworker.Worker{
		Log:         logging.For("batch"),
		Journal:     j,
		Window:      time.Duration(window),
		Publisher:   publisher,
		SaveJournal: saveJournal,
	}
	receiver := &udpserver.Receiver{
		Log:   logging.For("udp"),
		Queue: q,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Republish every root in the loaded journal (publication is not
	// persisted, so none is known to be confirmed) before accepting new
	// traffic.
	worker.RetryUnpublished(ctx)

	writerDone := make(chan struct{})
	go func() {
		writer.Run(ctx, q)
		close(writerDone)
	}()

	go worker.Run(ctx)

	serveErr := make(chan error, 1)
	go func() {
		serveErr <- receiver.Serve(ctx, c.String("bind"))
	}()

	log.Infof("logproofd: listening on %s, checkpoint window %s", c.String("bind"), window)

	select {
	case <-ctx.Done():
		log.Infof("logproofd: shutting down")
		<-serveErr
	case err := <-serveErr:
		if err != nil {
			log.Errorf("logproofd: receiver stopped with error: %v", err)
		}
		stop()
	}

	// §5 shutdown order: the receiver has already stopped (ctx cancelled
	// closes its socket), so it is now safe to enqueue the sentinel and let
	// the writer drain whatever is left in the queue.
	q.Close()
	<-writerDone

	if err := saveJournal(j); err != nil {
		log.Errorf("logproofd: final journal save failed: %v", err)
		return err
	}
	return nil
}

// newDevSigner builds an ES256 signer from a freshly generated key. It
// exists so --sign-roots has something to sign with out of the box; a real
// deployment would load a persistent key instead.
func newDevSigner() (cose.Signer, error) {
	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		return nil, fmt.Errorf("logproofd: generating signing key: %w", err)
	}
	return cose.NewSigner(cose.AlgorithmES256, key)
}
