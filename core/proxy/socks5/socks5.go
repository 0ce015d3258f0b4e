// Package socks5 implements the client side of the SOCKS5 handshake: Greet
// -> MethodSelected -> (AuthUserPass -> AuthDone)? -> Request ->
// ReplyParsed -> Established.
package socks5

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/go-proxytun/proxytun/core/net/address"
	"github.com/go-proxytun/proxytun/core/net/endpoint"
	"github.com/go-proxytun/proxytun/core/net/stream"
	"github.com/go-proxytun/proxytun/internal/logger"
	"github.com/go-proxytun/proxytun/internal/proxyerr"
)

const (
	version = 0x05

	methodNoAuth       = 0x00
	methodUserPass     = 0x02
	methodNoAcceptable = 0xFF

	userPassAuthVersion = 0x01
	userPassAuthSuccess = 0x00

	cmdConnect = 0x01
)

// Drive runs the SOCKS5 handshake against conn, targeting dst. conn is
// already connected to the proxy (and already TLS-wrapped, if the
// descriptor called for proxy-side TLS) before Drive is called. On
// success conn itself is the established tunnel; Drive never returns a
// different stream. dst.Host is encoded exactly as given; the Proxy
// Chain Driver is responsible for resolving it locally first when the
// rdns policy requires that.
func Drive(ctx context.Context, conn stream.Stream, dst endpoint.Endpoint, creds *endpoint.Credentials) error {
	if err := greet(conn, creds); err != nil {
		return err
	}

	method, err := readMethodSelection(conn)
	if err != nil {
		return err
	}

	switch method {
	case methodNoAuth:
		logger.Debug("socks5: server selected no-auth method")
	case methodUserPass:
		if creds == nil {
			return proxyerr.Protocol(proxyerr.ErrNoAcceptableAuthMethod, int(method))
		}
		if err := authenticateUserPass(conn, creds); err != nil {
			return err
		}
	case methodNoAcceptable:
		return proxyerr.Protocol(proxyerr.ErrNoAcceptableAuthMethod, int(method))
	default:
		return proxyerr.Protocol(proxyerr.ErrUnsupportedAuthMethod, int(method))
	}

	if err := sendRequest(conn, dst); err != nil {
		return err
	}
	return readReply(ctx, conn)
}

// greet sends the SOCKS5 initial greeting:
// +----+----------+----------+
// |VER | NMETHODS | METHODS  |
// +----+----------+----------+
func greet(conn stream.Stream, creds *endpoint.Credentials) error {
	methods := []byte{methodNoAuth}
	if creds != nil {
		methods = append(methods, methodUserPass)
	}
	buf := append([]byte{version, byte(len(methods))}, methods...)
	if err := stream.WriteAll(conn, buf); err != nil {
		return proxyerr.Connection(fmt.Errorf("socks5: write greeting: %w", err))
	}
	return nil
}

// readMethodSelection reads the server's method-selection response:
// +----+--------+
// |VER | METHOD |
// +----+--------+
func readMethodSelection(conn stream.Stream) (byte, error) {
	buf := make([]byte, 2)
	if err := stream.ReadExact(conn, buf); err != nil {
		return 0, proxyerr.Connection(fmt.Errorf("socks5: read method selection: %w", err))
	}
	if buf[0] != version {
		return 0, proxyerr.Protocol(fmt.Errorf("%w: server sent version %d", proxyerr.ErrMalformedReply, buf[0]), int(buf[0]))
	}
	return buf[1], nil
}

// authenticateUserPass performs the RFC 1929 sub-negotiation:
// +----+------+----------+------+----------+
// |VER | ULEN |  UNAME   | PLEN |  PASSWD  |
// +----+------+----------+------+----------+
func authenticateUserPass(conn stream.Stream, creds *endpoint.Credentials) error {
	if !creds.Valid() {
		return proxyerr.Protocol(errors.New("socks5: credentials must be 1..=255 octets each"), 0)
	}
	buf := make([]byte, 0, 3+len(creds.Username)+len(creds.Password))
	buf = append(buf, userPassAuthVersion, byte(len(creds.Username)))
	buf = append(buf, creds.Username...)
	buf = append(buf, byte(len(creds.Password)))
	buf = append(buf, creds.Password...)
	if err := stream.WriteAll(conn, buf); err != nil {
		return proxyerr.Connection(fmt.Errorf("socks5: write auth sub-negotiation: %w", err))
	}

	resp := make([]byte, 2)
	if err := stream.ReadExact(conn, resp); err != nil {
		return proxyerr.Connection(fmt.Errorf("socks5: read auth response: %w", err))
	}
	// resp[0] is the sub-negotiation version; accepted permissively
	// regardless of value since servers vary in what they echo back.
	if resp[1] != userPassAuthSuccess {
		return proxyerr.Protocol(proxyerr.ErrInvalidAuthCredentials, int(resp[1]))
	}
	return nil
}

// sendRequest sends the CONNECT request:
// +----+-----+-------+------+----------+----------+
// |VER | CMD |  RSV  | ATYP | DST.ADDR | DST.PORT |
// +----+-----+-------+------+----------+----------+
func sendRequest(conn stream.Stream, dst endpoint.Endpoint) error {
	addrBytes, err := address.EncodeSOCKS5Endpoint(dst.Host, dst.Port)
	if err != nil {
		return proxyerr.Protocol(err, 0)
	}
	buf := append([]byte{version, cmdConnect, 0x00}, addrBytes...)
	if err := stream.WriteAll(conn, buf); err != nil {
		return proxyerr.Connection(fmt.Errorf("socks5: write request: %w", err))
	}
	return nil
}

// readReply consumes the full variable-length reply:
// +----+-----+-------+------+----------+----------+
// |VER | REP |  RSV  | ATYP | BND.ADDR | BND.PORT |
// +----+-----+-------+------+----------+----------+
func readReply(ctx context.Context, conn stream.Stream) error {
	head := make([]byte, 4)
	if err := stream.ReadExact(conn, head); err != nil {
		return proxyerr.Connection(fmt.Errorf("socks5: read reply header: %w", err))
	}
	if head[0] != version {
		return proxyerr.Protocol(fmt.Errorf("%w: reply version %d", proxyerr.ErrMalformedReply, head[0]), int(head[0]))
	}
	rep := head[1]
	atyp := head[3]

	// ATYPDomain's length prefix must be consumed before the address
	// payload is known; address.AddressLen reports -1 for it (and for
	// any unrecognized atyp), so the unrecognized case is rejected via
	// address.DecodeSOCKS5 below rather than misread as a domain.
	addrLen := address.AddressLen(atyp)
	var addrBytes []byte
	if addrLen < 0 && atyp == address.ATYPDomain {
		lenBuf := make([]byte, 1)
		if err := stream.ReadExact(conn, lenBuf); err != nil {
			return proxyerr.Connection(fmt.Errorf("socks5: read reply domain length: %w", err))
		}
		addrBytes = make([]byte, lenBuf[0])
		if err := stream.ReadExact(conn, addrBytes); err != nil {
			return proxyerr.Connection(fmt.Errorf("socks5: read reply domain: %w", err))
		}
	} else if addrLen >= 0 {
		addrBytes = make([]byte, addrLen)
		if err := stream.ReadExact(conn, addrBytes); err != nil {
			return proxyerr.Connection(fmt.Errorf("socks5: read reply address: %w", err))
		}
	}

	if _, err := address.DecodeSOCKS5(atyp, addrBytes); err != nil {
		return proxyerr.Protocol(err, int(atyp))
	}

	portBuf := make([]byte, 2)
	if err := stream.ReadExact(conn, portBuf); err != nil {
		return proxyerr.Connection(fmt.Errorf("socks5: read reply port: %w", err))
	}
	_ = binary.BigEndian.Uint16(portBuf)

	if rep != 0x00 {
		return proxyerr.Protocol(proxyerr.SocksReplyError(rep), int(rep))
	}
	select {
	case <-ctx.Done():
		return proxyerr.Timeout(ctx.Err())
	default:
	}
	logger.Debug("socks5: handshake established")
	return nil
}
