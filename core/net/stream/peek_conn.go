package stream

import "net"

// PrependConn wraps a Stream with a fixed slice of already-read bytes that
// must be replayed before any further bytes are pulled off the underlying
// connection. The HTTP CONNECT reply scanner is the only caller that needs
// this: it reads in chunks looking for the header terminator and can end up
// holding a few bytes of response body past it. SOCKS5/SOCKS4 replies are
// read with exact-length reads and never over-read.
type PrependConn struct {
	Stream
	leftover []byte
}

// NewPrependConn wraps conn so that leftover is returned by Read calls
// before any new bytes are read from conn. An empty leftover makes this a
// transparent passthrough.
func NewPrependConn(conn Stream, leftover []byte) *PrependConn {
	return &PrependConn{Stream: conn, leftover: leftover}
}

func (c *PrependConn) Read(p []byte) (int, error) {
	if len(c.leftover) > 0 {
		n := copy(p, c.leftover)
		c.leftover = c.leftover[n:]
		return n, nil
	}
	return c.Stream.Read(p)
}

var _ net.Conn = (*PrependConn)(nil)
