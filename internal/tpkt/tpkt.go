// Package tpkt reads the 4-byte TPKT header that frames X.224 PDUs in RDP:
// version (1 byte), reserved (1 byte), total length (2 bytes, big-endian,
// header included).
package tpkt

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
)

const (
	headerLen  = 4
	minLen     = 7
	maxLen     = 65535
	wantedVer  = 3
	headerOnly = headerLen
)

// ErrProtocol is returned for any framing violation: wrong version, a length
// outside the valid range, or a short read while collecting the body.
var ErrProtocol = errors.New("tpkt: protocol error")

// ReadFrame reads exactly one complete TPKT frame from r: the 4-byte header
// plus length-4 more bytes of body. The returned slice holds the header and
// body in order, unmodified, suitable for forwarding byte-for-byte.
func ReadFrame(r io.Reader) ([]byte, error) {
	header := make([]byte, headerLen)
	if _, err := io.ReadFull(r, header); err != nil {
		return nil, fmt.Errorf("%w: read header: %v", ErrProtocol, err)
	}

	version := header[0]
	length := binary.BigEndian.Uint16(header[2:4])

	if version != wantedVer {
		return nil, fmt.Errorf("%w: unexpected version %d", ErrProtocol, version)
	}
	if length < minLen && length != headerOnly {
		return nil, fmt.Errorf("%w: length %d below minimum", ErrProtocol, length)
	}
	if int(length) > maxLen {
		return nil, fmt.Errorf("%w: length %d exceeds maximum", ErrProtocol, length)
	}

	frame := make([]byte, length)
	copy(frame, header)
	if length > headerLen {
		if _, err := io.ReadFull(r, frame[headerLen:]); err != nil {
			return nil, fmt.Errorf("%w: read body: %v", ErrProtocol, err)
		}
	}
	return frame, nil
}
