// Package gateway implements the RDCleanPath session broker and
// bidirectional relay: the core of the WebSocket-to-RDP gateway. It accepts
// an already-upgraded WebSocket, performs the X.224/TLS preconnect
// handshake against a back-end RDP host on the client's behalf, reports the
// result inside a framed RDCleanPath PDU, and then relays opaque bytes
// until either side closes.
package gateway

import (
	"context"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
)

// Recorder receives per-session outcomes and relay byte counts. Implemented
// by internal/metrics; a nil Recorder is a valid no-op for tests.
type Recorder interface {
	SessionStarted()
	SessionEnded(kind Kind, handshakeDuration time.Duration)
	BytesRelayed(clientToUpstream, upstreamToClient int64)
}

// Server owns the WebSocket upgrade and drives each accepted connection
// through the handshake broker and duplex relay.
type Server struct {
	opts     Options
	log      *logrus.Logger
	upgrader websocket.Upgrader
	metrics  Recorder
}

// NewServer constructs a Server. metrics may be nil.
func NewServer(opts Options, log *logrus.Logger, metrics Recorder) *Server {
	if opts.RelayBufferBytes <= 0 {
		opts.RelayBufferBytes = 16 * 1024
	}
	return &Server{
		opts: opts,
		log:  log,
		upgrader: websocket.Upgrader{
			// Subprotocol is unrestricted per the external interface design;
			// the enclosing service has already authorized the upgrade.
			CheckOrigin: func(*http.Request) bool { return true },
		},
		metrics: metrics,
	}
}

// ServeHTTP upgrades the request to a WebSocket and runs one session to
// completion. It never panics on malformed client input and never retries.
func (srv *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := srv.upgrader.Upgrade(w, r, nil)
	if err != nil {
		srv.log.WithError(err).Warn("websocket upgrade failed")
		return
	}

	s := newSession(uuid.NewString(), conn, logrus.NewEntry(srv.log))
	srv.runSession(r.Context(), s)
}

func (srv *Server) runSession(ctx context.Context, s *session) {
	if srv.metrics != nil {
		srv.metrics.SessionStarted()
	}
	defer s.close()

	start := time.Now()
	err := runHandshake(ctx, s, srv.opts)
	handshakeDuration := time.Since(start)

	if err != nil {
		kind := kindOf(err)
		logSessionError(s.log, kind, err)
		if srv.metrics != nil {
			srv.metrics.SessionEnded(kind, handshakeDuration)
		}
		return
	}

	counters, relayErr := runRelay(ctx, s, srv.opts.RelayBufferBytes)
	if srv.metrics != nil {
		srv.metrics.BytesRelayed(counters.clientToUpstream, counters.upstreamToClient)
	}

	if relayErr != nil {
		kind := kindOf(relayErr)
		s.log.WithError(relayErr).WithFields(logrus.Fields{
			"error_kind":               string(kind),
			"bytes_client_to_upstream": counters.clientToUpstream,
			"bytes_upstream_to_client": counters.upstreamToClient,
		}).Info("relay terminated")
		if srv.metrics != nil {
			srv.metrics.SessionEnded(kind, handshakeDuration)
		}
		return
	}

	s.log.WithFields(logrus.Fields{
		"bytes_client_to_upstream": counters.clientToUpstream,
		"bytes_upstream_to_client": counters.upstreamToClient,
	}).Info("relay finished")
	if srv.metrics != nil {
		srv.metrics.SessionEnded(KindOK, handshakeDuration)
	}
}

func logSessionError(log *logrus.Entry, kind Kind, err error) {
	entry := log.WithField("error_kind", string(kind))
	switch kind {
	case KindClientAbandoned:
		entry.Info("client abandoned session before request")
	case KindMalformedRequest:
		entry.WithError(err).Warn("malformed rdcleanpath request")
	case KindUpstreamUnreachable, KindUpstreamProtocolError, KindTLSFailure:
		entry.WithError(err).Error("handshake failed")
	default:
		entry.WithError(err).Info("session ended")
	}
}
