package gateway

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"io"

	"github.com/gorilla/websocket"
	"golang.org/x/sync/errgroup"
)

// relayCounters records the bytes moved in each direction, read by the
// caller after runRelay returns so the metrics and log layers can report
// them without the relay itself depending on either.
type relayCounters struct {
	clientToUpstream int64
	upstreamToClient int64
}

// runRelay moves bytes between the WebSocket and the TLS-wrapped upstream
// socket until either direction terminates, then cancels the other. Byte
// order is preserved within each direction; no ordering is implied or
// required between them.
//
// errgroup's derived context is only canceled when a group function
// returns a non-nil error, but both directions return nil on an ordinary
// clean termination (a WS close frame, an upstream EOF) — only a write
// failure produces an error. So cancellation is driven by an explicit
// context.WithCancel instead: each direction calls cancel unconditionally
// when it returns, for any reason, which is what actually unblocks the
// watcher and guarantees both transports get closed.
func runRelay(ctx context.Context, s *session, bufSize int) (relayCounters, error) {
	relayCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	group, gctx := errgroup.WithContext(relayCtx)
	counters := relayCounters{}

	group.Go(func() error {
		defer cancel()
		n, err := browserToUpstream(s.source, s.tlsUpstream)
		counters.clientToUpstream = n
		return err
	})

	group.Go(func() error {
		defer cancel()
		n, err := upstreamToBrowser(s.tlsUpstream, s.sink, bufSize)
		counters.upstreamToClient = n
		return err
	})

	group.Go(func() error {
		<-gctx.Done()
		// Cooperative cancellation point: unblock whichever side is still
		// waiting on I/O once the other direction has already finished,
		// regardless of whether it finished with an error.
		_ = s.tlsUpstream.Close()
		_ = s.ws.Close()
		return nil
	})

	err := group.Wait()
	if err != nil && !errors.Is(err, io.EOF) {
		return counters, newError(KindRelayError, err)
	}
	return counters, nil
}

// browserToUpstream consumes WebSocket Binary messages and writes each
// payload in full to the upstream TLS write half, preserving order. A Close
// frame or a read error terminates the loop. On termination the TLS write
// direction is shut down so upstream sees EOF rather than a hung read.
func browserToUpstream(src wsSource, dst *tls.Conn) (int64, error) {
	var total int64
	for {
		messageType, payload, err := src.next()
		if err != nil {
			break
		}
		if messageType == websocket.CloseMessage {
			break
		}
		if messageType != websocket.BinaryMessage {
			continue
		}
		if _, err := dst.Write(payload); err != nil {
			return total, fmt.Errorf("write upstream: %w", err)
		}
		total += int64(len(payload))
	}
	_ = dst.CloseWrite()
	return total, nil
}

// upstreamToBrowser reads upstream into a fixed-size buffer and forwards
// each non-empty read as one WebSocket Binary message, preserving upstream
// read boundaries on the browser-bound direction. A zero-length read (clean
// EOF) or a read error terminates the loop and closes the WebSocket.
func upstreamToBrowser(src *tls.Conn, dst wsSink, bufSize int) (int64, error) {
	var total int64
	buf := make([]byte, bufSize)
	for {
		n, err := src.Read(buf)
		if n > 0 {
			if werr := dst.writeBinary(buf[:n]); werr != nil {
				_ = dst.close()
				return total, fmt.Errorf("write websocket: %w", werr)
			}
			total += int64(n)
		}
		if err != nil {
			break
		}
	}
	_ = dst.close()
	return total, nil
}
