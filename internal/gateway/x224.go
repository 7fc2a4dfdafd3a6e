package gateway

import (
	"context"
	"fmt"
	"net"
	"time"

	"github.com/rdcleanpath/gateway/internal/tpkt"
)

// performX224 writes the client-supplied X.224 connection request verbatim
// to upstream, then reads exactly one complete TPKT response. The deadline
// bounds the read only; the write is not expected to block under normal
// operation since the gateway has just dialed the socket.
func performX224(ctx context.Context, conn net.Conn, request []byte, readTimeout time.Duration) ([]byte, error) {
	if _, err := conn.Write(request); err != nil {
		return nil, newError(KindUpstreamProtocolError, fmt.Errorf("write x224 request: %w", err))
	}

	deadline := time.Now().Add(readTimeout)
	if dl, ok := ctx.Deadline(); ok && dl.Before(deadline) {
		deadline = dl
	}
	if err := conn.SetReadDeadline(deadline); err != nil {
		return nil, newError(KindUpstreamProtocolError, fmt.Errorf("set read deadline: %w", err))
	}
	defer conn.SetReadDeadline(time.Time{})

	frame, err := tpkt.ReadFrame(conn)
	if err != nil {
		return nil, newError(KindUpstreamProtocolError, fmt.Errorf("read x224 response: %w", err))
	}
	return frame, nil
}
