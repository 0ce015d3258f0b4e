// Package address implements the byte-level encoding and decoding of
// destination endpoints used by the SOCKS5 and SOCKS4/4a request and reply
// frames. It is pure: no I/O, no suspension points, just codec.
package address

import (
	"encoding/binary"
	"fmt"
	"net"

	"github.com/go-proxytun/proxytun/internal/proxyerr"
)

// Type tags the variant carried by a HostSpec.
type Type int

const (
	// TypeIPv4 is a literal 4-byte IPv4 address.
	TypeIPv4 Type = iota
	// TypeIPv6 is a literal 16-byte IPv6 address.
	TypeIPv6
	// TypeDomain is a 1..=255 byte UTF-8 domain name, no trailing NUL.
	TypeDomain
)

// SOCKS5 ATYP byte values.
const (
	ATYPIPv4   byte = 0x01
	ATYPDomain byte = 0x03
	ATYPIPv6   byte = 0x04
)

// HostSpec is a tagged variant over the three address forms a SOCKS
// request or reply can carry.
type HostSpec struct {
	Type   Type
	IP     net.IP // valid when Type is TypeIPv4 or TypeIPv6
	Domain []byte // valid when Type is TypeDomain
}

// IPv4Host builds a HostSpec from a 4-byte IPv4 address.
func IPv4Host(ip net.IP) HostSpec {
	return HostSpec{Type: TypeIPv4, IP: ip.To4()}
}

// IPv6Host builds a HostSpec from a 16-byte IPv6 address.
func IPv6Host(ip net.IP) HostSpec {
	return HostSpec{Type: TypeIPv6, IP: ip.To16()}
}

// DomainHost builds a HostSpec from a domain name.
func DomainHost(domain string) HostSpec {
	return HostSpec{Type: TypeDomain, Domain: []byte(domain)}
}

// HostFromString builds the most specific HostSpec for a literal or
// hostname string: an IP literal becomes TypeIPv4/TypeIPv6, anything else
// becomes TypeDomain.
func HostFromString(s string) HostSpec {
	if ip := net.ParseIP(s); ip != nil {
		if v4 := ip.To4(); v4 != nil {
			return IPv4Host(v4)
		}
		return IPv6Host(ip)
	}
	return DomainHost(s)
}

// String renders the HostSpec in its string form: dotted-quad, colon form,
// or the domain name verbatim.
func (h HostSpec) String() string {
	switch h.Type {
	case TypeIPv4, TypeIPv6:
		return h.IP.String()
	case TypeDomain:
		return string(h.Domain)
	default:
		return ""
	}
}

// IsLiteral reports whether the host is an IP literal (as opposed to a
// domain name requiring resolution or remote lookup).
func (h HostSpec) IsLiteral() bool {
	return h.Type == TypeIPv4 || h.Type == TypeIPv6
}

// EncodeSOCKS5 serializes a HostSpec in SOCKS5 ATYP form: one type byte,
// then the address payload. Domain length 0 is rejected.
func EncodeSOCKS5(h HostSpec) ([]byte, error) {
	switch h.Type {
	case TypeIPv4:
		ip := h.IP.To4()
		if ip == nil {
			return nil, fmt.Errorf("%w: IPv4 host has no 4-byte form", proxyerr.ErrUnknownAddrType)
		}
		return append([]byte{ATYPIPv4}, ip...), nil
	case TypeIPv6:
		ip := h.IP.To16()
		if ip == nil {
			return nil, fmt.Errorf("%w: IPv6 host has no 16-byte form", proxyerr.ErrUnknownAddrType)
		}
		return append([]byte{ATYPIPv6}, ip...), nil
	case TypeDomain:
		if len(h.Domain) == 0 {
			return nil, proxyerr.ErrDomainEmpty
		}
		if len(h.Domain) > 255 {
			return nil, proxyerr.ErrDomainTooLong
		}
		buf := make([]byte, 0, 2+len(h.Domain))
		buf = append(buf, ATYPDomain, byte(len(h.Domain)))
		buf = append(buf, h.Domain...)
		return buf, nil
	default:
		return nil, proxyerr.ErrUnknownAddrType
	}
}

// EncodeSOCKS5Endpoint serializes host + big-endian port as it appears on
// the wire in a SOCKS5 request or reply (ATYP | ADDR | PORT).
func EncodeSOCKS5Endpoint(h HostSpec, port uint16) ([]byte, error) {
	buf, err := EncodeSOCKS5(h)
	if err != nil {
		return nil, err
	}
	portBuf := make([]byte, 2)
	binary.BigEndian.PutUint16(portBuf, port)
	return append(buf, portBuf...), nil
}

// DecodeSOCKS5 parses the ATYP + address payload from a reader-free byte
// source: callers read the wire bytes themselves (reading is a suspension
// point and does not belong in this pure codec) and pass the bytes already
// collected for the given atyp via addrBytes. For TypeDomain, addrBytes
// must not include the leading length octet.
func DecodeSOCKS5(atyp byte, addrBytes []byte) (HostSpec, error) {
	switch atyp {
	case ATYPIPv4:
		if len(addrBytes) != net.IPv4len {
			return HostSpec{}, fmt.Errorf("%w: IPv4 payload must be 4 bytes, got %d", proxyerr.ErrMalformedReply, len(addrBytes))
		}
		return IPv4Host(net.IP(addrBytes)), nil
	case ATYPIPv6:
		if len(addrBytes) != net.IPv6len {
			return HostSpec{}, fmt.Errorf("%w: IPv6 payload must be 16 bytes, got %d", proxyerr.ErrMalformedReply, len(addrBytes))
		}
		return IPv6Host(net.IP(addrBytes)), nil
	case ATYPDomain:
		if len(addrBytes) == 0 {
			return HostSpec{}, proxyerr.ErrDomainEmpty
		}
		return DomainHost(string(addrBytes)), nil
	default:
		return HostSpec{}, fmt.Errorf("%w: atyp=0x%02x", proxyerr.ErrUnknownAddrType, atyp)
	}
}

// AddressLen returns the number of address-payload bytes that follow the
// ATYP byte for fixed-length types, or -1 for TypeDomain (whose length is
// itself prefixed on the wire and must be read first).
func AddressLen(atyp byte) int {
	switch atyp {
	case ATYPIPv4:
		return net.IPv4len
	case ATYPIPv6:
		return net.IPv6len
	case ATYPDomain:
		return -1
	default:
		return -1
	}
}

// EncodeSOCKS4 serializes the 4-byte IPv4 portion of a SOCKS4 request.
// SOCKS4a (rdns=true, domain destination) uses the reserved 0.0.0.x form
// with x != 0.
func EncodeSOCKS4(h HostSpec, socks4a bool) ([4]byte, error) {
	var out [4]byte
	if socks4a {
		out = [4]byte{0, 0, 0, 1}
		return out, nil
	}
	if h.Type != TypeIPv4 {
		return out, proxyerr.ErrSocks4RequiresIPv4
	}
	ip := h.IP.To4()
	if ip == nil {
		return out, proxyerr.ErrSocks4RequiresIPv4
	}
	copy(out[:], ip)
	return out, nil
}

// IsSocks4aPlaceholder reports whether the 4-byte SOCKS4 address is the
// reserved 0.0.0.x (x != 0) form signaling a SOCKS4a hostname follows.
func IsSocks4aPlaceholder(ip [4]byte) bool {
	return ip[0] == 0 && ip[1] == 0 && ip[2] == 0 && ip[3] != 0
}
