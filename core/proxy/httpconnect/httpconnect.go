// Package httpconnect implements the client side of the HTTP CONNECT
// tunnel handshake: Request -> HeaderRead -> StatusParsed -> Established.
//
// Any bytes read past the header terminator in the same chunk belong to
// the tunnel, not the handshake, and are replayed to the caller via
// stream.PrependConn rather than dropped.
package httpconnect

import (
	"bytes"
	"context"
	"encoding/base64"
	"fmt"
	"net"
	"strconv"
	"strings"

	"github.com/go-proxytun/proxytun/core/net/endpoint"
	"github.com/go-proxytun/proxytun/core/net/stream"
	"github.com/go-proxytun/proxytun/internal/logger"
	"github.com/go-proxytun/proxytun/internal/proxyerr"
)

// maxHeaderSize bounds the CONNECT response header read: a compliant
// proxy's response is a handful of header lines, never anything close to
// this.
const maxHeaderSize = 16 * 1024

const terminator = "\r\n\r\n"

// Drive runs the HTTP CONNECT handshake against conn, targeting dst.
// conn is already connected to the proxy (and already TLS-wrapped, if the
// descriptor called for proxy-side TLS) before Drive is called.
//
// Unlike the SOCKS engines, Drive may return a different stream.Stream
// than the one it was given: the response header read can over-read past
// the "\r\n\r\n" terminator into the first bytes of the tunneled
// connection, and those bytes must be replayed to the caller rather than
// discarded. Callers must use the returned stream, not conn, once Drive
// succeeds.
func Drive(ctx context.Context, conn stream.Stream, dst endpoint.Endpoint, creds *endpoint.Credentials) (stream.Stream, error) {
	req := buildRequest(dst, creds)
	if err := stream.WriteAll(conn, []byte(req)); err != nil {
		return nil, proxyerr.Connection(fmt.Errorf("http connect: write request: %w", err))
	}

	header, residual, err := readHeader(conn)
	if err != nil {
		return nil, err
	}

	status, reason, err := parseStatusLine(header)
	if err != nil {
		return nil, err
	}

	if status != 200 {
		if status == 407 {
			return nil, proxyerr.Protocol(proxyerr.ErrInvalidAuthCredentials, status)
		}
		return nil, proxyerr.Protocol(fmt.Errorf("%w: %d %s", proxyerr.ErrHTTPProxy, status, reason), status)
	}

	select {
	case <-ctx.Done():
		return nil, proxyerr.Timeout(ctx.Err())
	default:
	}

	logger.Debug("http connect: handshake established")
	if len(residual) == 0 {
		return conn, nil
	}
	return stream.NewPrependConn(conn, residual), nil
}

// buildRequest constructs:
//
//	CONNECT host:port HTTP/1.1
//	Host: host:port
//	Proxy-Authorization: Basic base64(user:pass)   (only when creds != nil)
//	<blank line>
func buildRequest(dst endpoint.Endpoint, creds *endpoint.Credentials) string {
	hostport := net.JoinHostPort(dst.Host.String(), strconv.Itoa(int(dst.Port)))

	var b strings.Builder
	fmt.Fprintf(&b, "CONNECT %s HTTP/1.1\r\n", hostport)
	fmt.Fprintf(&b, "Host: %s\r\n", hostport)
	if creds != nil {
		token := base64.StdEncoding.EncodeToString(
			append(append(append([]byte{}, creds.Username...), ':'), creds.Password...))
		fmt.Fprintf(&b, "Proxy-Authorization: Basic %s\r\n", token)
	}
	b.WriteString("\r\n")
	return b.String()
}

// readHeader reads from conn in small chunks until the "\r\n\r\n"
// terminator is found, returning the header bytes (without the
// terminator) and any bytes read past it. It fails closed with
// ErrHeaderTooLong rather than growing the buffer without bound.
func readHeader(conn stream.Stream) (header []byte, residual []byte, err error) {
	buf := make([]byte, 0, 512)
	chunk := make([]byte, 512)
	for {
		if idx := bytes.Index(buf, []byte(terminator)); idx >= 0 {
			return buf[:idx], buf[idx+len(terminator):], nil
		}
		if len(buf) >= maxHeaderSize {
			return nil, nil, proxyerr.Protocol(proxyerr.ErrHeaderTooLong, 0)
		}
		n, readErr := stream.ReadSome(conn, chunk)
		if n > 0 {
			buf = append(buf, chunk[:n]...)
		}
		if readErr != nil {
			return nil, nil, proxyerr.Connection(fmt.Errorf("http connect: read response header: %w", readErr))
		}
	}
}

// parseStatusLine parses the leading "HTTP/1.x CODE REASON" line from a
// header block, requiring a 3-digit status code.
func parseStatusLine(header []byte) (status int, reason string, err error) {
	nl := bytes.IndexByte(header, '\n')
	var line string
	if nl < 0 {
		line = string(header)
	} else {
		line = string(header[:nl])
	}
	line = strings.TrimRight(line, "\r")

	parts := strings.SplitN(line, " ", 3)
	if len(parts) < 2 || !strings.HasPrefix(parts[0], "HTTP/1.") {
		return 0, "", proxyerr.Protocol(fmt.Errorf("%w: malformed status line %q", proxyerr.ErrHTTPProxy, line), 0)
	}
	code, convErr := strconv.Atoi(parts[1])
	if convErr != nil || code < 100 || code > 599 {
		return 0, "", proxyerr.Protocol(fmt.Errorf("%w: malformed status code %q", proxyerr.ErrHTTPProxy, parts[1]), 0)
	}
	if len(parts) == 3 {
		reason = parts[2]
	}
	return code, reason, nil
}
