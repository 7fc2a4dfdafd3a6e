package gateway

import (
	"github.com/gorilla/websocket"
)

// wsSource is the read half of an upgraded WebSocket connection. Only the
// goroutine that owns a wsSource may call ReadMessage on it — gorilla's
// *websocket.Conn permits one concurrent reader and one concurrent writer,
// and splitting into wsSource/wsSink statically keeps each goroutine to its
// half, mirroring the split-I/O-halves discipline the handshake and relay
// phases both depend on.
type wsSource struct {
	conn *websocket.Conn
}

// wsSink is the write half of an upgraded WebSocket connection.
type wsSink struct {
	conn *websocket.Conn
}

// splitWS wraps an upgraded connection into its read and write halves.
func splitWS(conn *websocket.Conn) (wsSource, wsSink) {
	return wsSource{conn: conn}, wsSink{conn: conn}
}

// next returns the next message's type and payload. gorilla/websocket
// answers incoming Pings with Pongs internally as part of this call, before
// it returns — satisfying the "Pong sent before the Response PDU" ordering
// requirement without any extra bookkeeping here.
func (s wsSource) next() (messageType int, payload []byte, err error) {
	return s.conn.ReadMessage()
}

func (s wsSink) writeBinary(payload []byte) error {
	return s.conn.WriteMessage(websocket.BinaryMessage, payload)
}

func (s wsSink) close() error {
	_ = s.conn.WriteMessage(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	return s.conn.Close()
}
