package gateway

import (
	"context"
	"fmt"
	"net"
)

// dialUpstream opens a TCP connection to destination ("host:port"),
// mirroring the original source's TcpStream::connect and its fallback of
// echoing the destination string when the resolved peer address is
// unavailable.
func dialUpstream(ctx context.Context, destination string) (net.Conn, string, error) {
	var d net.Dialer
	conn, err := d.DialContext(ctx, "tcp", destination)
	if err != nil {
		return nil, "", newError(KindUpstreamUnreachable, fmt.Errorf("dial %s: %w", destination, err))
	}

	serverAddr := destination
	if addr := conn.RemoteAddr(); addr != nil {
		if s := addr.String(); s != "" {
			serverAddr = s
		}
	}
	return conn, serverAddr, nil
}
