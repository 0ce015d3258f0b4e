// Package socks4 implements the client side of the SOCKS4/4a handshake:
// Request -> ReplyParsed -> Established.
//
// Requests null-terminate USERID and, for the 4a extension, HOSTNAME; a
// destination IP of 0.0.0.x with x != 0 signals the server to resolve the
// hostname itself.
package socks4

import (
	"encoding/binary"
	"fmt"

	"github.com/go-proxytun/proxytun/core/net/address"
	"github.com/go-proxytun/proxytun/core/net/endpoint"
	"github.com/go-proxytun/proxytun/core/net/stream"
	"github.com/go-proxytun/proxytun/internal/logger"
	"github.com/go-proxytun/proxytun/internal/proxyerr"
)

const (
	version    = 0x04
	cmdConnect = 0x01

	replyVersion = 0x00
	grantAccess  = 0x5A
)

// Drive runs the SOCKS4/4a handshake against conn, targeting dst. conn is
// already connected to the proxy before Drive is called; on success conn
// itself is the established tunnel.
//
// dst.Host must already reflect the rdns policy: a TypeDomain host is
// encoded as SOCKS4a only when rdns is endpoint.RDNSTrue or
// endpoint.RDNSUnset (both default to the 4a extension); rdns ==
// RDNSFalse with a domain destination is rejected here since the chain
// driver is responsible for resolving it to IPv4 first. A TypeIPv6 host
// is always rejected: SOCKS4 has no address form for it.
func Drive(conn stream.Stream, dst endpoint.Endpoint, creds *endpoint.Credentials, rdns endpoint.RDNS) error {
	req, err := buildRequest(dst, creds, rdns)
	if err != nil {
		return err
	}
	if err := stream.WriteAll(conn, req); err != nil {
		return proxyerr.Connection(fmt.Errorf("socks4: write request: %w", err))
	}
	return readReply(conn)
}

// buildRequest encodes:
// VER | CMD | DSTPORT | DSTIP | USERID\0 [| HOSTNAME\0]
func buildRequest(dst endpoint.Endpoint, creds *endpoint.Credentials, rdns endpoint.RDNS) ([]byte, error) {
	if dst.Host.Type == address.TypeIPv6 {
		return nil, proxyerr.Protocol(proxyerr.ErrSocks4RequiresIPv4, 0)
	}

	useSocks4a := false
	if dst.Host.Type == address.TypeDomain {
		if rdns == endpoint.RDNSFalse {
			return nil, proxyerr.Protocol(proxyerr.ErrSocks4DomainNotAllowed, 0)
		}
		useSocks4a = true
	}

	ip, err := address.EncodeSOCKS4(dst.Host, useSocks4a)
	if err != nil {
		return nil, proxyerr.Protocol(err, 0)
	}

	portBuf := make([]byte, 2)
	binary.BigEndian.PutUint16(portBuf, dst.Port)

	buf := make([]byte, 0, 8+32)
	buf = append(buf, version, cmdConnect)
	buf = append(buf, portBuf...)
	buf = append(buf, ip[:]...)

	if creds != nil {
		buf = append(buf, creds.Username...)
	}
	buf = append(buf, 0x00)

	if useSocks4a {
		buf = append(buf, dst.Host.Domain...)
		buf = append(buf, 0x00)
	}
	return buf, nil
}

// readReply consumes the fixed 8-octet reply:
// VN(0x00) | CD | DSTPORT (2, discarded) | DSTIP (4, discarded)
func readReply(conn stream.Stream) error {
	reply := make([]byte, 8)
	if err := stream.ReadExact(conn, reply); err != nil {
		return proxyerr.Connection(fmt.Errorf("socks4: read reply: %w", err))
	}
	if reply[0] != replyVersion {
		return proxyerr.Protocol(fmt.Errorf("%w: reply version %d", proxyerr.ErrMalformedReply, reply[0]), int(reply[0]))
	}
	cd := reply[1]
	if cd != grantAccess {
		return proxyerr.Protocol(proxyerr.Socks4ReplyError(cd), int(cd))
	}
	logger.Debug("socks4: handshake established")
	return nil
}
