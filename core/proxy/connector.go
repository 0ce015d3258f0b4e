package proxy

import (
	"context"
	"fmt"

	"github.com/go-proxytun/proxytun/core/net/address"
	"github.com/go-proxytun/proxytun/core/net/dial"
	"github.com/go-proxytun/proxytun/core/net/endpoint"
	"github.com/go-proxytun/proxytun/core/net/resolver"
	"github.com/go-proxytun/proxytun/core/net/stream"
	"github.com/go-proxytun/proxytun/core/proxy/httpconnect"
	"github.com/go-proxytun/proxytun/core/proxy/socks4"
	"github.com/go-proxytun/proxytun/core/proxy/socks5"
	"github.com/go-proxytun/proxytun/internal/logger"
	"github.com/go-proxytun/proxytun/internal/proxyerr"
)

// Connector opens (or reuses) one transport, applies proxy-side TLS when
// configured, and drives exactly one protocol-specific handshake engine
// against it.
type Connector struct {
	Dialer   dial.Dialer
	Resolver resolver.Resolver
}

// NewConnector builds a Connector with the standard-library-backed
// defaults for both dependencies.
func NewConnector() *Connector {
	return &Connector{Dialer: dial.NewNet(), Resolver: resolver.NewSystemResolver()}
}

// Connect drives one hop. If existing is nil, it dials desc.Endpoint
// first; otherwise existing is treated as an already-open transport to
// the proxy (the prior hop's established tunnel) and is used as-is. On
// success the returned stream is the tunnel to target, established
// through desc. On failure any stream this call opened is closed before
// returning. A stream this call dialed is also closed if ctx is done
// while the hop is still being set up, which unblocks a handshake read
// or write stuck on it.
func (c *Connector) Connect(ctx context.Context, desc *Descriptor, target endpoint.Endpoint, existing stream.Stream, hop int) (stream.Stream, error) {
	conn := existing
	if conn == nil {
		dialed, err := c.Dialer.DialContext(ctx, "tcp", desc.Endpoint.String())
		if err != nil {
			return nil, proxyerr.Connection(err).WithHop(hop)
		}
		conn = dialed
		stopClose := context.AfterFunc(ctx, func() { conn.Close() })
		defer stopClose()
	}

	ok := false
	defer func() {
		if !ok {
			conn.Close()
		}
	}()

	if desc.ProxyTLS != nil {
		sni := ""
		if desc.Endpoint.Host.Type == address.TypeDomain {
			sni = desc.Endpoint.Host.String()
		}
		wrapped, err := stream.WrapTLS(ctx, conn, desc.ProxyTLS, sni)
		if err != nil {
			return nil, proxyerr.Connection(fmt.Errorf("proxy-side TLS: %w", err)).WithHop(hop)
		}
		conn = wrapped
	}

	resolvedTarget, err := c.resolveIfNeeded(ctx, desc, target)
	if err != nil {
		return nil, scopeToHop(err, hop)
	}

	var established stream.Stream
	switch desc.Kind {
	case KindSOCKS5:
		err = socks5.Drive(ctx, conn, resolvedTarget, desc.Credentials)
		established = conn
	case KindSOCKS4:
		err = socks4.Drive(conn, resolvedTarget, desc.Credentials, desc.effectiveRDNS())
		established = conn
	case KindHTTP:
		established, err = httpconnect.Drive(ctx, conn, resolvedTarget, desc.Credentials)
	default:
		err = proxyerr.Newf(proxyerr.KindProtocol, "unknown proxy kind %v", desc.Kind)
	}
	if err != nil {
		return nil, scopeToHop(err, hop)
	}

	logger.Debug(logger.Hop(hop, "handshake established via", desc.Kind)...)
	ok = true
	return established, nil
}

// resolveIfNeeded resolves target.Host locally when desc's protocol and
// rdns policy require it: HTTP CONNECT never resolves locally (the
// destination string always travels to the proxy verbatim); the other
// protocols resolve locally only when the effective rdns policy is false
// and the destination is not already a literal.
func (c *Connector) resolveIfNeeded(ctx context.Context, desc *Descriptor, target endpoint.Endpoint) (endpoint.Endpoint, error) {
	if desc.Kind == KindHTTP {
		return target, nil
	}
	if target.Host.IsLiteral() {
		return target, nil
	}
	if desc.effectiveRDNS() != endpoint.RDNSFalse {
		return target, nil
	}

	pref := resolver.FamilyAny
	if desc.Kind == KindSOCKS4 {
		pref = resolver.FamilyIPv4
	}
	host, err := c.Resolver.Resolve(ctx, target.Host.String(), pref)
	if err != nil {
		return endpoint.Endpoint{}, err
	}
	if desc.Kind == KindSOCKS4 && host.Type != address.TypeIPv4 {
		return endpoint.Endpoint{}, proxyerr.Protocol(proxyerr.ErrSocks4RequiresIPv4, 0)
	}
	return endpoint.Endpoint{Host: host, Port: target.Port}, nil
}

// scopeToHop attaches hop to err if it is a *proxyerr.Error, wrapping it
// otherwise.
func scopeToHop(err error, hop int) error {
	if pe, ok := err.(*proxyerr.Error); ok {
		return pe.WithHop(hop)
	}
	return proxyerr.Connection(err).WithHop(hop)
}
