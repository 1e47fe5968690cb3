package ingest_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/jacqueswww/logproof/internal/ingest"
	"github.com/jacqueswww/logproof/internal/journal"
)

func TestWriterAppendsAndDrainsOnSentinel(t *testing.T) {
	dir := t.TempDir()
	j := journal.New()
	w := &ingest.Writer{
		Journal:     j,
		Window:      3 * time.Second,
		SaveJournal: func(*journal.Journal) error { return nil },
	}

	q := ingest.NewQueue(4)
	ts := time.Date(2026, 8, 1, 10, 0, 0, 0, time.UTC)
	q.Enqueue(&ingest.Message{Arrival: ts, Source: filepath.Join(dir, "127.0.0.1"), Payload: "hello"})
	q.Enqueue(&ingest.Message{Arrival: ts.Add(time.Second), Source: filepath.Join(dir, "127.0.0.1"), Payload: "world"})
	q.Close()

	done := make(chan struct{})
	go func() {
		w.Run(context.Background(), q)
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("writer did not drain within timeout")
	}

	logPath := filepath.Join(dir, "127.0.0.1", "2026-08-01.log")
	data, err := os.ReadFile(logPath)
	require.NoError(t, err)
	require.Contains(t, string(data), "hello\n")
	require.Contains(t, string(data), "world\n")

	state, ok := j.Paths[logPath]
	require.True(t, ok)
	require.Greater(t, state.LastPos, int64(0))
}

func TestWriterDropsOnTransientIOAndContinues(t *testing.T) {
	dir := t.TempDir()
	j := journal.New()
	w := &ingest.Writer{
		Journal:     j,
		Window:      3 * time.Second,
		SaveJournal: func(*journal.Journal) error { return nil },
	}

	// A source string containing a NUL byte cannot become a valid path
	// component, forcing the mkdir/open to fail for that one message while
	// leaving the writer running for the next.
	q := ingest.NewQueue(4)
	ts := time.Now()
	q.Enqueue(&ingest.Message{Arrival: ts, Source: string([]byte{0}), Payload: "bad"})
	q.Enqueue(&ingest.Message{Arrival: ts, Source: filepath.Join(dir, "ok"), Payload: "good"})
	q.Close()

	done := make(chan struct{})
	go func() {
		w.Run(context.Background(), q)
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("writer did not drain within timeout")
	}

	logPath := filepath.Join(dir, "ok", ts.Format("2006-01-02")+".log")
	_, err := os.Stat(logPath)
	require.NoError(t, err)
}
