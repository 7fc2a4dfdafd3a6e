package gateway

import (
	"crypto/tls"
	"net"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
)

// Phase is the handshake broker's state, per the state machine in the
// handshake broker design: AwaitingRequest -> Dialing -> X224 -> Tls ->
// Relaying, with any failure short-circuiting to Closed.
type Phase string

const (
	PhaseAwaitingRequest Phase = "awaiting_request"
	PhaseDialing         Phase = "dialing"
	PhaseX224            Phase = "x224"
	PhaseTLS             Phase = "tls"
	PhaseRelaying        Phase = "relaying"
	PhaseClosed          Phase = "closed"
)

// session is one accepted WebSocket connection carried through the
// handshake and, on success, the relay. It owns every resource it opens:
// closing the session releases the TCP/TLS socket and the WebSocket.
type session struct {
	id  string
	log *logrus.Entry

	ws     *websocket.Conn
	source wsSource
	sink   wsSink

	phase       Phase
	destination string

	upstream    net.Conn
	tlsUpstream *tls.Conn
}

func newSession(id string, ws *websocket.Conn, log *logrus.Entry) *session {
	source, sink := splitWS(ws)
	return &session{
		id:     id,
		log:    log.WithField("session_id", id),
		ws:     ws,
		source: source,
		sink:   sink,
		phase:  PhaseAwaitingRequest,
	}
}

// upstreamConn returns whichever transport the session currently holds for
// the upstream side: the raw TCP socket before TLS, or the TLS-wrapped
// socket after. Both implement net.Conn.
func (s *session) upstreamConn() net.Conn {
	if s.tlsUpstream != nil {
		return s.tlsUpstream
	}
	return s.upstream
}

// close releases the TCP/TLS and WebSocket resources, best-effort, and
// marks the session Closed. Safe to call more than once.
func (s *session) close() {
	if s.phase == PhaseClosed {
		return
	}
	s.phase = PhaseClosed
	if s.tlsUpstream != nil {
		if err := s.tlsUpstream.Close(); err != nil {
			s.log.WithError(err).Debug("closing tls upstream")
		}
	}
	if s.upstream != nil {
		if err := s.upstream.Close(); err != nil {
			s.log.WithError(err).Debug("closing tcp upstream")
		}
	}
	if err := s.ws.Close(); err != nil {
		s.log.WithError(err).Debug("closing websocket")
	}
}
