// Package stream defines the opaque byte-stream abstraction the proxytun
// core drives: read_exact/read_some/write_all/close/wrap_tls, expressed as
// a net.Conn plus a TLS-wrap helper. Concrete transports (plain TCP, an
// already-tunneled connection from a prior hop) all satisfy net.Conn, so
// the core never imports a specific backend.
package stream

import (
	"context"
	"crypto/tls"
	"io"
	"net"
)

// Stream is the bidirectional byte stream the handshake engines and chain
// driver operate on. It is satisfied by *net.TCPConn, *tls.Conn, and the
// tunnel returned by a prior hop's Connector; the engines never know
// which.
type Stream interface {
	net.Conn
}

// ReadExact reads exactly len(buf) bytes from s. A short read before EOF
// is reported as io.ErrUnexpectedEOF by io.ReadFull.
func ReadExact(s Stream, buf []byte) error {
	_, err := io.ReadFull(s, buf)
	return err
}

// ReadSome reads at most len(buf) bytes from s and returns the number of
// bytes read.
func ReadSome(s Stream, buf []byte) (int, error) {
	return s.Read(buf)
}

// WriteAll writes the entirety of buf to s.
func WriteAll(s Stream, buf []byte) error {
	_, err := s.Write(buf)
	return err
}

// WrapTLS upgrades s to TLS as the client side, using sni as the Server
// Name Indication when non-empty. The handshake honors ctx's deadline and
// cancellation: HandshakeContext abandons the in-flight handshake without
// leaking the underlying connection when ctx is done first.
func WrapTLS(ctx context.Context, s Stream, cfg *tls.Config, sni string) (Stream, error) {
	cloned := cfg.Clone()
	if cloned == nil {
		cloned = &tls.Config{}
	}
	if sni != "" {
		cloned.ServerName = sni
	}
	tlsConn := tls.Client(s, cloned)
	if err := tlsConn.HandshakeContext(ctx); err != nil {
		return nil, err
	}
	return tlsConn, nil
}
