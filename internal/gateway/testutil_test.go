package gateway

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/tls"
	"crypto/x509"
	"crypto/x509/pkix"
	"math/big"
	"net"
	"testing"
	"time"
)

// selfSignedTLSConfig builds a minimal self-signed server certificate for
// tests that need a mock RDP upstream to complete a TLS handshake.
func selfSignedTLSConfig(t *testing.T) *tls.Config {
	t.Helper()

	priv, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}

	template := x509.Certificate{
		SerialNumber: big.NewInt(1),
		Subject:      pkix.Name{CommonName: "mock-rdp-upstream"},
		NotBefore:    time.Now().Add(-time.Hour),
		NotAfter:     time.Now().Add(time.Hour),
		KeyUsage:     x509.KeyUsageDigitalSignature,
		ExtKeyUsage:  []x509.ExtKeyUsage{x509.ExtKeyUsageServerAuth},
	}

	der, err := x509.CreateCertificate(rand.Reader, &template, &template, &priv.PublicKey, priv)
	if err != nil {
		t.Fatalf("create certificate: %v", err)
	}

	cert := tls.Certificate{
		Certificate: [][]byte{der},
		PrivateKey:  priv,
	}
	return &tls.Config{Certificates: []tls.Certificate{cert}}
}

// mockRDPServer accepts exactly one TCP connection, expects to read
// wantRequest verbatim, writes tpktResponse, then upgrades to TLS using a
// self-signed certificate. relay, if non-nil, runs after the handshake to
// exercise the duplex relay phase.
type mockRDPServer struct {
	listener net.Listener
	addr     string
}

func startMockRDPServer(t *testing.T, wantRequest, tpktResponse []byte, relay func(conn net.Conn)) *mockRDPServer {
	t.Helper()

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}

	tlsCfg := selfSignedTLSConfig(t)

	go func() {
		conn, err := ln.Accept()
		if err != nil {
			return
		}

		buf := make([]byte, len(wantRequest))
		if _, err := fullRead(conn, buf); err != nil || string(buf) != string(wantRequest) {
			conn.Close()
			return
		}

		if _, err := conn.Write(tpktResponse); err != nil {
			conn.Close()
			return
		}

		tlsConn := tls.Server(conn, tlsCfg)
		if err := tlsConn.Handshake(); err != nil {
			conn.Close()
			return
		}

		if relay != nil {
			relay(tlsConn)
		}
	}()

	return &mockRDPServer{listener: ln, addr: ln.Addr().String()}
}

func (m *mockRDPServer) Close() { m.listener.Close() }

func fullRead(conn net.Conn, buf []byte) (int, error) {
	total := 0
	for total < len(buf) {
		n, err := conn.Read(buf[total:])
		total += n
		if err != nil {
			return total, err
		}
	}
	return total, nil
}
