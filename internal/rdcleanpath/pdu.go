// Package rdcleanpath implements the RDCleanPath control PDU: the DER-encoded
// handshake envelope a browser-based RDP client exchanges with the gateway
// before the connection turns into an opaque byte relay.
package rdcleanpath

import (
	"encoding/asn1"
	"errors"
	"fmt"
)

// pdu mirrors the wire schema field-for-field, using the same explicit
// context tags the reference RDCleanPath implementations use. Not every
// field is meaningful to this gateway: ProxyAuth and ServerAuth are part of
// the schema but are never read or written here.
type pdu struct {
	Version           int64    `asn1:"tag:0,explicit"`
	Error             []byte   `asn1:"tag:1,explicit,optional"`
	Destination       string   `asn1:"utf8,tag:2,explicit,optional"`
	ProxyAuth         string   `asn1:"utf8,tag:3,explicit,optional"`
	ServerAuth        string   `asn1:"utf8,tag:4,explicit,optional"`
	PreconnectionBlob string   `asn1:"utf8,tag:5,explicit,optional"`
	X224ConnectionPDU []byte   `asn1:"tag:6,explicit,optional"`
	ServerCertChain   [][]byte `asn1:"tag:7,explicit,optional"`
	ServerAddr        string   `asn1:"utf8,tag:9,explicit,optional"`
}

// Version is the RDCleanPath schema version this package encodes and expects.
const Version = 3390

// Request is the decoded form of an RDCleanPath Request PDU: everything the
// handshake broker needs to open the upstream connection and perform the
// X.224 exchange on the client's behalf.
type Request struct {
	Destination           string
	X224ConnectionRequest []byte
}

// Response is the decoded form of an RDCleanPath Response PDU: the witness
// of a completed handshake, returned to the client before the relay begins.
type Response struct {
	ServerAddr             string
	X224ConnectionResponse []byte
	ServerCertificateChain [][]byte
}

// ErrMalformed is returned for any decode failure: truncated input, a wrong
// ASN.1 tag, or a well-formed PDU that is neither a Request nor an error.
// The codec never partially accepts input, so callers only ever see this one
// sentinel for decode problems.
var ErrMalformed = errors.New("rdcleanpath: malformed request")

// DecodeRequest parses a DER-encoded RDCleanPath PDU and requires it to be a
// Request variant (a Destination and an X224ConnectionPDU present).
func DecodeRequest(data []byte) (Request, error) {
	var p pdu
	rest, err := asn1.Unmarshal(data, &p)
	if err != nil {
		return Request{}, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	if len(rest) != 0 {
		return Request{}, fmt.Errorf("%w: trailing bytes", ErrMalformed)
	}
	if p.Destination == "" || len(p.X224ConnectionPDU) == 0 {
		return Request{}, fmt.Errorf("%w: not a request PDU", ErrMalformed)
	}
	return Request{
		Destination:           p.Destination,
		X224ConnectionRequest: p.X224ConnectionPDU,
	}, nil
}

// EncodeResponse produces the DER encoding of a Response PDU.
func EncodeResponse(r Response) ([]byte, error) {
	p := pdu{
		Version:           Version,
		ServerAddr:        r.ServerAddr,
		X224ConnectionPDU: r.X224ConnectionResponse,
		ServerCertChain:   r.ServerCertificateChain,
	}
	return asn1.Marshal(p)
}

// DecodeResponse parses a DER-encoded Response PDU. It exists mainly to make
// the round-trip law testable and to support client-side tooling that
// exercises this package.
func DecodeResponse(data []byte) (Response, error) {
	var p pdu
	rest, err := asn1.Unmarshal(data, &p)
	if err != nil {
		return Response{}, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	if len(rest) != 0 {
		return Response{}, fmt.Errorf("%w: trailing bytes", ErrMalformed)
	}
	return Response{
		ServerAddr:             p.ServerAddr,
		X224ConnectionResponse: p.X224ConnectionPDU,
		ServerCertificateChain: p.ServerCertChain,
	}, nil
}

// EncodeGeneralError produces the DER encoding of a GeneralError PDU, sent
// on pre-relay failures while the WebSocket is still writable.
func EncodeGeneralError() ([]byte, error) {
	p := pdu{
		Version: Version,
		Error:   []byte{0x01},
	}
	return asn1.Marshal(p)
}

// IsGeneralError reports whether a decoded PDU carries the error variant.
func IsGeneralError(data []byte) bool {
	var p pdu
	if _, err := asn1.Unmarshal(data, &p); err != nil {
		return false
	}
	return len(p.Error) > 0
}
