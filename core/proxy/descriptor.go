// Package proxy composes the per-protocol handshake engines into the
// Single-Proxy Connector and Proxy Chain Driver, and defines the data
// model they share: Kind, Descriptor, ChainSpec, and ConnectRequest.
package proxy

import (
	"crypto/tls"
	"time"

	"github.com/go-proxytun/proxytun/core/net/address"
	"github.com/go-proxytun/proxytun/core/net/endpoint"
	"github.com/go-proxytun/proxytun/internal/proxyerr"
)

// Kind is the tagged variant over the three proxy protocols this library
// speaks.
type Kind int

const (
	// KindSOCKS5 speaks SOCKS5 (RFC 1928 + RFC 1929).
	KindSOCKS5 Kind = iota
	// KindSOCKS4 speaks SOCKS4/4a.
	KindSOCKS4
	// KindHTTP speaks HTTP CONNECT (RFC 7231 section 4.3.6).
	KindHTTP
)

func (k Kind) String() string {
	switch k {
	case KindSOCKS5:
		return "socks5"
	case KindSOCKS4:
		return "socks4"
	case KindHTTP:
		return "http"
	default:
		return "unknown"
	}
}

// Descriptor describes one proxy in a chain: where it lives, how to
// authenticate to it, its DNS-resolution policy, and whether the
// transport to it is wrapped in TLS before any handshake bytes are sent.
type Descriptor struct {
	Kind        Kind
	Endpoint    endpoint.Endpoint
	Credentials *endpoint.Credentials
	RDNS        endpoint.RDNS
	ProxyTLS    *tls.Config // non-nil => wrap in TLS immediately after TCP connect
}

// effectiveRDNS resolves the tri-state RDNS policy to its protocol
// default when left unset: both SOCKS5 and SOCKS4 default to true (for
// SOCKS4 that means "use the 4a extension"); HTTP CONNECT never performs
// local resolution regardless of the value, since the destination string
// is always forwarded to the proxy verbatim.
func (d *Descriptor) effectiveRDNS() endpoint.RDNS {
	if d.RDNS != endpoint.RDNSUnset {
		return d.RDNS
	}
	return endpoint.RDNSTrue
}

// NewDescriptor builds a Descriptor from explicit fields, the programmatic
// counterpart of DescriptorFromURL for callers that already have the
// pieces in hand rather than a URL string.
func NewDescriptor(kind Kind, host string, port uint16, username, password string, rdns endpoint.RDNS) Descriptor {
	desc := Descriptor{
		Kind:     kind,
		Endpoint: endpoint.Endpoint{Host: address.HostFromString(host), Port: port},
		RDNS:     rdns,
	}
	if username != "" || password != "" {
		desc.Credentials = &endpoint.Credentials{Username: []byte(username), Password: []byte(password)}
	}
	return desc
}

// ChainSpec is a non-empty ordered sequence of proxies to hop through in
// order; the last entry's handshake targets the caller's destination.
type ChainSpec []Descriptor

// Validate rejects an empty chain; there must be at least one hop to dial.
func (c ChainSpec) Validate() error {
	if len(c) == 0 {
		return proxyerr.Newf(proxyerr.KindProtocol, "%s", proxyerr.ErrEmptyChain.Error())
	}
	return nil
}

// ConnectRequest is the caller's ultimate destination and the options
// governing the final hop and the overall chain deadline.
type ConnectRequest struct {
	Dest    endpoint.Endpoint
	DestTLS *tls.Config // non-nil => wrap the established tunnel in TLS after the last handshake
	Timeout time.Duration
}
