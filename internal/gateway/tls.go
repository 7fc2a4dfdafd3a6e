package gateway

import (
	"context"
	"crypto/tls"
	"fmt"
	"net"
	"strings"
)

// wrapTLS upgrades conn (the raw socket after the X.224 exchange) to an
// outbound TLS client session and returns it along with the peer
// certificate chain in DER form, leaf first.
//
// Certificate validation is disabled by default: the browser that receives
// the chain is the trust authority, which is the entire reason this gateway
// exists (see the TLS client design notes). validate, when true, restores
// normal chain and hostname verification — the configuration switch the
// design requires so tightening this later is a config change, not a code
// change.
func wrapTLS(ctx context.Context, conn net.Conn, destination string, validate bool) (*tls.Conn, [][]byte, error) {
	hostname := destination
	if idx := strings.LastIndex(destination, ":"); idx >= 0 {
		hostname = destination[:idx]
	}

	cfg := &tls.Config{
		ServerName:         hostname,
		InsecureSkipVerify: !validate,
	}

	tlsConn := tls.Client(conn, cfg)
	if err := tlsConn.HandshakeContext(ctx); err != nil {
		return nil, nil, newError(KindTLSFailure, fmt.Errorf("tls handshake with %s: %w", destination, err))
	}

	peerCerts := tlsConn.ConnectionState().PeerCertificates
	chain := make([][]byte, 0, len(peerCerts))
	for _, cert := range peerCerts {
		chain = append(chain, cert.Raw)
	}
	return tlsConn, chain, nil
}
