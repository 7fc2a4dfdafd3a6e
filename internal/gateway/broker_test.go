package gateway

import (
	"encoding/asn1"
	"net"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rdcleanpath/gateway/internal/rdcleanpath"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testServer(t *testing.T) (*httptest.Server, string) {
	t.Helper()
	log := logrus.New()
	log.SetOutput(testingWriter{t})

	opts := Options{
		DialTimeout:      2 * time.Second,
		X224ReadTimeout:  2 * time.Second,
		TLSValidate:      false,
		RelayBufferBytes: 4096,
	}
	srv := NewServer(opts, log, nil)

	ts := httptest.NewServer(srv)
	wsURL := "ws" + strings.TrimPrefix(ts.URL, "http")
	return ts, wsURL
}

type testingWriter struct{ t *testing.T }

func (w testingWriter) Write(p []byte) (int, error) {
	w.t.Log(strings.TrimRight(string(p), "\n"))
	return len(p), nil
}

func newTCPListener() (net.Listener, error) {
	return net.Listen("tcp", "127.0.0.1:0")
}

func mustFreePort(t *testing.T) net.Listener {
	t.Helper()
	ln, err := newTCPListener()
	require.NoError(t, err)
	return ln
}

func dialRequestPDU(destination string, x224Request []byte) []byte {
	type pduOnWire struct {
		Version           int64  `asn1:"tag:0,explicit"`
		Destination       string `asn1:"utf8,tag:2,explicit,optional"`
		X224ConnectionPDU []byte `asn1:"tag:6,explicit,optional"`
	}
	data, err := asn1.Marshal(pduOnWire{
		Version:           rdcleanpath.Version,
		Destination:       destination,
		X224ConnectionPDU: x224Request,
	})
	if err != nil {
		panic(err)
	}
	return data
}

func TestHappyPath(t *testing.T) {
	x224Req := []byte{0x03, 0x00, 0x00, 0x2a, 1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11, 12, 13, 14, 15, 16, 17, 18, 19, 20, 21, 22, 23, 24, 25, 26, 27, 28, 29, 30, 31, 32, 33, 34, 35, 36, 37, 38}
	x224Resp := []byte{0x03, 0x00, 0x00, 0x13, 1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11, 12, 13, 14, 15}

	upstreamSent := make(chan []byte, 1)

	mock := startMockRDPServer(t, x224Req, x224Resp, func(conn net.Conn) {
		buf := make([]byte, 2)
		n, err := conn.Read(buf)
		if err == nil {
			upstreamSent <- append([]byte{}, buf[:n]...)
		}
		conn.Write([]byte{0xCC})
	})
	defer mock.Close()

	ts, wsURL := testServer(t)
	defer ts.Close()

	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	defer conn.Close()

	require.NoError(t, conn.WriteMessage(websocket.BinaryMessage, dialRequestPDU(mock.addr, x224Req)))

	_, respData, err := conn.ReadMessage()
	require.NoError(t, err)

	resp, err := rdcleanpath.DecodeResponse(respData)
	require.NoError(t, err)
	assert.Equal(t, mock.addr, resp.ServerAddr)
	assert.Equal(t, x224Resp, resp.X224ConnectionResponse)

	require.NoError(t, conn.WriteMessage(websocket.BinaryMessage, []byte{0xAA, 0xBB}))
	select {
	case got := <-upstreamSent:
		assert.Equal(t, []byte{0xAA, 0xBB}, got)
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for upstream to receive relay bytes")
	}

	_, relayMsg, err := conn.ReadMessage()
	require.NoError(t, err)
	assert.Equal(t, []byte{0xCC}, relayMsg)
}

func TestMalformedPDU(t *testing.T) {
	ts, wsURL := testServer(t)
	defer ts.Close()

	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	defer conn.Close()

	require.NoError(t, conn.WriteMessage(websocket.BinaryMessage, []byte{0x00}))

	_, data, err := conn.ReadMessage()
	require.NoError(t, err)
	assert.True(t, rdcleanpath.IsGeneralError(data))
}

func TestUnreachableUpstream(t *testing.T) {
	ln := mustFreePort(t)
	addr := ln.Addr().String()
	ln.Close() // nothing is listening now; connect should be refused

	ts, wsURL := testServer(t)
	defer ts.Close()

	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	defer conn.Close()

	require.NoError(t, conn.WriteMessage(websocket.BinaryMessage, dialRequestPDU(addr, []byte{0x03, 0x00, 0x00, 0x07, 1, 2, 3})))

	_, data, err := conn.ReadMessage()
	require.NoError(t, err)
	assert.True(t, rdcleanpath.IsGeneralError(data))
}

func TestTruncatedX224Response(t *testing.T) {
	x224Req := []byte{0x03, 0x00, 0x00, 0x07, 1, 2, 3}

	ln, err := newTCPListener()
	require.NoError(t, err)
	defer ln.Close()

	go func() {
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		defer conn.Close()
		buf := make([]byte, len(x224Req))
		fullRead(conn, buf)
		conn.Write([]byte{0x03, 0x00, 0x00}) // truncated TPKT header
	}()

	ts, wsURL := testServer(t)
	defer ts.Close()

	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	defer conn.Close()

	require.NoError(t, conn.WriteMessage(websocket.BinaryMessage, dialRequestPDU(ln.Addr().String(), x224Req)))

	_, data, err := conn.ReadMessage()
	require.NoError(t, err)
	assert.True(t, rdcleanpath.IsGeneralError(data))
}

func TestHalfClose(t *testing.T) {
	x224Req := []byte{0x03, 0x00, 0x00, 0x07, 1, 2, 3}
	x224Resp := []byte{0x03, 0x00, 0x00, 0x04}

	mock := startMockRDPServer(t, x224Req, x224Resp, func(conn net.Conn) {
		conn.Write([]byte{0x01, 0x02})
		if closer, ok := conn.(interface{ CloseWrite() error }); ok {
			closer.CloseWrite()
		} else {
			conn.Close()
		}
	})
	defer mock.Close()

	ts, wsURL := testServer(t)
	defer ts.Close()

	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	defer conn.Close()

	require.NoError(t, conn.WriteMessage(websocket.BinaryMessage, dialRequestPDU(mock.addr, x224Req)))

	_, respData, err := conn.ReadMessage()
	require.NoError(t, err)
	_, err = rdcleanpath.DecodeResponse(respData)
	require.NoError(t, err)

	_, relayMsg, err := conn.ReadMessage()
	require.NoError(t, err)
	assert.Equal(t, []byte{0x01, 0x02}, relayMsg)

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, _, err = conn.ReadMessage()
	assert.Error(t, err)
}

// TestBrowserDisconnectClosesUpstream covers the asymmetric half-close the
// upstream-initiated TestHalfClose does not: the browser going away first
// while the upstream RDP host stays open and never itself initiates a
// close. The upstream's still-pending Read only returns once the gateway
// shuts down its side of the upstream connection in response.
func TestBrowserDisconnectClosesUpstream(t *testing.T) {
	x224Req := []byte{0x03, 0x00, 0x00, 0x07, 1, 2, 3}
	x224Resp := []byte{0x03, 0x00, 0x00, 0x04}

	upstreamClosed := make(chan struct{})
	mock := startMockRDPServer(t, x224Req, x224Resp, func(conn net.Conn) {
		buf := make([]byte, 1)
		if _, err := conn.Read(buf); err != nil {
			close(upstreamClosed)
		}
	})
	defer mock.Close()

	ts, wsURL := testServer(t)
	defer ts.Close()

	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)

	require.NoError(t, conn.WriteMessage(websocket.BinaryMessage, dialRequestPDU(mock.addr, x224Req)))

	_, respData, err := conn.ReadMessage()
	require.NoError(t, err)
	_, err = rdcleanpath.DecodeResponse(respData)
	require.NoError(t, err)

	// The browser disconnects first; the upstream never closes or half-closes
	// on its own.
	require.NoError(t, conn.Close())

	select {
	case <-upstreamClosed:
	case <-time.After(2 * time.Second):
		t.Fatal("upstream connection was never closed after the browser disconnected")
	}
}

func TestPingDuringHandshake(t *testing.T) {
	x224Req := []byte{0x03, 0x00, 0x00, 0x07, 1, 2, 3}
	x224Resp := []byte{0x03, 0x00, 0x00, 0x04}

	mock := startMockRDPServer(t, x224Req, x224Resp, nil)
	defer mock.Close()

	ts, wsURL := testServer(t)
	defer ts.Close()

	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	defer conn.Close()

	pongReceived := make(chan struct{}, 1)
	conn.SetPongHandler(func(string) error {
		select {
		case pongReceived <- struct{}{}:
		default:
		}
		return nil
	})

	require.NoError(t, conn.WriteMessage(websocket.PingMessage, nil))
	require.NoError(t, conn.WriteMessage(websocket.BinaryMessage, dialRequestPDU(mock.addr, x224Req)))

	conn.SetReadDeadline(time.Now().Add(3 * time.Second))
	_, data, err := conn.ReadMessage()
	require.NoError(t, err)

	resp, err := rdcleanpath.DecodeResponse(data)
	require.NoError(t, err)
	assert.Equal(t, mock.addr, resp.ServerAddr)
}
