// Package udpserver is the thin UDP adapter: one datagram in, one queue
// enqueue out. It does no blocking beyond that enqueue and shares no
// mutable state with the log writer or the batch worker.
package udpserver

import (
	"bytes"
	"context"
	"net"
	"time"
	"unicode/utf8"

	"github.com/datatrails/go-datatrails-common/logger"

	"github.com/jacqueswww/logproof/internal/ingest"
)

// minPayloadLen is the shortest payload this system accepts; shorter
// datagrams are dropped per §6.
const minPayloadLen = 5

// Receiver listens for syslog-style datagrams and enqueues one Message per
// accepted datagram.
type Receiver struct {
	Log   logger.Logger
	Queue *ingest.Queue
	// Now, if set, overrides time.Now for tests.
	Now func() time.Time
}

// Serve listens on addr until ctx is cancelled or the socket errors, then
// closes the socket and returns. It does not close the queue: that is the
// server's job, once every receiver has stopped.
func (r *Receiver) Serve(ctx context.Context, addr string) error {
	udpAddr, err := net.ResolveUDPAddr("udp", addr)
	if err != nil {
		return err
	}
	conn, err := net.ListenUDP("udp", udpAddr)
	if err != nil {
		return err
	}
	defer conn.Close()

	go func() {
		<-ctx.Done()
		conn.Close()
	}()

	buf := make([]byte, 64*1024)
	for {
		n, srcAddr, err := conn.ReadFromUDP(buf)
		if err != nil {
			select {
			case <-ctx.Done():
				return nil
			default:
				if r.Log != nil {
					r.Log.Errorf("udpserver: read failed: %v", err)
				}
				return err
			}
		}
		r.handle(srcAddr.IP.String(), buf[:n])
	}
}

// handle applies the §4.6 datagram rules and enqueues the result.
func (r *Receiver) handle(sourceIP string, raw []byte) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) <= minPayloadLen-1 {
		return
	}
	trimmed = bytes.TrimSuffix(trimmed, []byte{0})

	if !utf8.Valid(trimmed) {
		if r.Log != nil {
			r.Log.Infof("udpserver: dropping non-UTF-8 datagram from %s", sourceIP)
		}
		return
	}

	now := time.Now
	if r.Now != nil {
		now = r.Now
	}

	msg := &ingest.Message{
		Arrival: now(),
		Source:  sourceIP,
		Payload: string(trimmed),
	}
	if !r.Queue.TryEnqueue(msg) {
		if r.Log != nil {
			r.Log.Infof("udpserver: queue full, dropping datagram from %s", sourceIP)
		}
	}
}
