package ingest

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/datatrails/go-datatrails-common/logger"

	"github.com/jacqueswww/logproof/internal/checkpoint"
	"github.com/jacqueswww/logproof/internal/journal"
	"github.com/jacqueswww/logproof/internal/tsfmt"
)

// Writer is the single consumer of a Queue. It owns all log-file write I/O
// and is the only component that appends bytes to a LogFile; the checkpoint
// updater only ever reads the files the writer has written.
type Writer struct {
	Log         logger.Logger
	Journal     *journal.Journal
	Window      checkpoint.Window
	SaveJournal func(*journal.Journal) error
}

// Run drains q until it dequeues the sentinel (nil), appending each message
// to its daily log file and invoking the checkpoint updater. It returns
// once the sentinel has been processed.
//
// For a fixed (source, date) pair, appends are processed in the order they
// were enqueued, because Run is the queue's only consumer; across different
// sources there is no ordering guarantee.
func (w *Writer) Run(ctx context.Context, q *Queue) {
	for {
		msg := q.dequeue()
		if msg == nil {
			return
		}
		if err := w.append(ctx, msg); err != nil && w.Log != nil {
			// TransientIO: the message is dropped, logged, and the writer
			// continues onto the next item.
			w.Log.Errorf("ingest: dropping message from %s: %v", msg.Source, err)
		}
	}
}

func (w *Writer) append(ctx context.Context, msg *Message) error {
	path := dailyPath(msg.Source, msg.Arrival)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("ingest: mkdir for %s: %w", path, err)
	}

	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("ingest: open %s: %w", path, err)
	}

	line := fmt.Sprintf("%s %s\n", tsfmt.Format(msg.Arrival), msg.Payload)
	if _, err := f.WriteString(line); err != nil {
		f.Close()
		return fmt.Errorf("ingest: write %s: %w", path, err)
	}
	pos, err := f.Seek(0, io.SeekCurrent)
	if err != nil {
		f.Close()
		return fmt.Errorf("ingest: tell %s: %w", path, err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("ingest: close %s: %w", path, err)
	}

	if pos == 0 {
		return nil
	}

	return checkpoint.Update(ctx, w.Log, w.Journal, path, msg.Arrival, pos, w.Window, w.SaveJournal)
}

// dailyPath resolves the per-source, per-day log file path, per §3:
// "<source>/<YYYY-MM-DD>.log". Embedding the date in the path means a date
// rollover naturally starts fresh checkpoint history for the new path,
// resolving the ambiguity the spec's Design Notes flags.
func dailyPath(source string, ts time.Time) string {
	return filepath.Join(source, tsfmt.DatePath(ts)+".log")
}
