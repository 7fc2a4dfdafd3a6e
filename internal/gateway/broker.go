package gateway

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rdcleanpath/gateway/internal/rdcleanpath"
)

// Options configures the timeouts and policy knobs the handshake broker and
// relay use. Populated from internal/config at process start.
type Options struct {
	DialTimeout      time.Duration
	X224ReadTimeout  time.Duration
	TLSValidate      bool
	RelayBufferBytes int
}

// errClientAbandoned is returned by awaitRequest when the client closes (or
// the stream ends) before sending a Request PDU.
var errClientAbandoned = newError(KindClientAbandoned, errors.New("websocket closed before request"))

// awaitRequest loops reading WebSocket messages until the first Binary
// message arrives, answering Pings along the way (handled transparently by
// gorilla/websocket) and ignoring Text and empty messages. A Close frame or
// a read error here means the client gave up before the handshake started.
func awaitRequest(s *session) ([]byte, error) {
	for {
		messageType, payload, err := s.source.next()
		if err != nil {
			return nil, errClientAbandoned
		}
		switch messageType {
		case websocket.BinaryMessage:
			if len(payload) == 0 {
				continue
			}
			return payload, nil
		case websocket.CloseMessage:
			return nil, errClientAbandoned
		default:
			continue
		}
	}
}

// runHandshake drives a session from AwaitingRequest through Tls. On
// success the session is left in phase Relaying with upstreamConn() ready
// for the duplex relay. A malformed Request or a failure while dialing,
// exchanging X.224 or negotiating TLS makes it attempt a GeneralError PDU
// (best effort) before returning the classified error. A client that goes
// away before sending a Request, and a failure to encode or send the
// Response PDU, return the error without attempting any PDU.
func runHandshake(ctx context.Context, s *session, opts Options) error {
	raw, err := awaitRequest(s)
	if err != nil {
		return err
	}

	req, err := rdcleanpath.DecodeRequest(raw)
	if err != nil {
		sendBestEffortError(s)
		return newError(KindMalformedRequest, err)
	}
	s.destination = req.Destination
	s.log = s.log.WithField("destination", s.destination)

	s.phase = PhaseDialing
	dialCtx, cancel := context.WithTimeout(ctx, opts.DialTimeout)
	upstream, serverAddr, err := dialUpstream(dialCtx, req.Destination)
	cancel()
	if err != nil {
		sendBestEffortError(s)
		return err
	}
	s.upstream = upstream

	s.phase = PhaseX224
	x224Resp, err := performX224(ctx, upstream, req.X224ConnectionRequest, opts.X224ReadTimeout)
	if err != nil {
		sendBestEffortError(s)
		return err
	}

	s.phase = PhaseTLS
	tlsConn, certChain, err := wrapTLS(ctx, upstream, req.Destination, opts.TLSValidate)
	if err != nil {
		sendBestEffortError(s)
		return err
	}
	s.tlsUpstream = tlsConn

	respBytes, err := rdcleanpath.EncodeResponse(rdcleanpath.Response{
		ServerAddr:             serverAddr,
		X224ConnectionResponse: x224Resp,
		ServerCertificateChain: certChain,
	})
	if err != nil {
		return newError(KindTLSFailure, fmt.Errorf("encode response pdu: %w", err))
	}
	if err := s.sink.writeBinary(respBytes); err != nil {
		return newError(KindRelayError, fmt.Errorf("send response pdu: %w", err))
	}

	s.phase = PhaseRelaying
	return nil
}

// sendBestEffortError tries to deliver a GeneralError PDU to the client.
// Send failure is swallowed: by the time this runs the WebSocket may
// already be gone, and a second error here would not change the outcome.
func sendBestEffortError(s *session) {
	data, err := rdcleanpath.EncodeGeneralError()
	if err != nil {
		return
	}
	_ = s.sink.writeBinary(data)
}
