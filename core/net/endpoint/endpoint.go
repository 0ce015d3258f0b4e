// Package endpoint holds the small value types shared by every handshake
// engine and the chain driver, kept separate from package proxy so the
// per-protocol engine packages can depend on them without creating an
// import cycle back into the driver that composes the engines.
package endpoint

import "github.com/go-proxytun/proxytun/core/net/address"

// Endpoint is a host/port pair, the destination of a handshake request,
// either the caller's ultimate target or, for an intermediate chain hop,
// the next proxy's own address.
type Endpoint struct {
	Host address.HostSpec
	Port uint16
}

// String renders the endpoint as host:port.
func (e Endpoint) String() string {
	return e.Host.String() + ":" + portString(e.Port)
}

func portString(p uint16) string {
	const digits = "0123456789"
	if p == 0 {
		return "0"
	}
	var buf [5]byte
	i := len(buf)
	for p > 0 {
		i--
		buf[i] = digits[p%10]
		p /= 10
	}
	return string(buf[i:])
}

// Credentials is an optional username/password pair, each 1..=255 octets,
// used for SOCKS5 user/pass sub-negotiation and the HTTP CONNECT
// Proxy-Authorization header.
type Credentials struct {
	Username []byte
	Password []byte
}

// Valid reports whether both fields satisfy RFC 1929's 1..=255 octet
// bound for username and password.
func (c *Credentials) Valid() bool {
	if c == nil {
		return true
	}
	return len(c.Username) >= 1 && len(c.Username) <= 255 &&
		len(c.Password) >= 1 && len(c.Password) <= 255
}

// RDNS is the tri-state remote-DNS policy: whether a domain destination is
// forwarded verbatim to the proxy for remote resolution, or resolved
// locally before the request is built.
type RDNS int

const (
	// RDNSUnset lets the caller omit a choice; each protocol resolves it
	// to its own default (SOCKS5: true, SOCKS4: true/4a, HTTP:
	// irrelevant).
	RDNSUnset RDNS = iota
	// RDNSTrue forwards a domain destination verbatim; no local
	// resolution is attempted for that hop's destination field.
	RDNSTrue
	// RDNSFalse requires the destination already be (or become, via
	// local resolution) an IP literal before the request is built.
	RDNSFalse
)
