// Package resolver defines the pluggable endpoint resolution capability
// consumed by the chain driver when local resolution is required (rdns
// explicitly false, or SOCKS4 without the 4a extension). It treats resolve
// as a pure function per call: no caching lives inside the core.
package resolver

import (
	"context"
	"net"

	"github.com/go-proxytun/proxytun/core/net/address"
	"github.com/go-proxytun/proxytun/internal/proxyerr"
)

// Family is the address family preference passed to Resolve.
type Family int

const (
	// FamilyAny accepts either IPv4 or IPv6, preferring whichever the
	// resolver returns first.
	FamilyAny Family = iota
	// FamilyIPv4 prefers an IPv4 result, falling back to any family if
	// none is found.
	FamilyIPv4
	// FamilyIPv6 prefers an IPv6 result, falling back to any family if
	// none is found.
	FamilyIPv6
)

// Resolver resolves a hostname to a literal address. An IP-literal input
// must be returned unchanged without a system lookup.
type Resolver interface {
	Resolve(ctx context.Context, hostname string, pref Family) (address.HostSpec, error)
}

// SystemResolver resolves hostnames using net.Resolver, the default,
// standard-library-backed implementation of the Resolver interface.
type SystemResolver struct {
	Inner *net.Resolver
}

// NewSystemResolver builds a SystemResolver using net.DefaultResolver.
func NewSystemResolver() *SystemResolver {
	return &SystemResolver{Inner: net.DefaultResolver}
}

// Resolve implements Resolver. It returns the first address matching pref;
// if none match, it falls back to any family found. An IP-literal input is
// returned unchanged.
func (r *SystemResolver) Resolve(ctx context.Context, hostname string, pref Family) (address.HostSpec, error) {
	if ip := net.ParseIP(hostname); ip != nil {
		return address.HostFromString(hostname), nil
	}

	resolver := r.Inner
	if resolver == nil {
		resolver = net.DefaultResolver
	}

	ips, err := resolver.LookupIP(ctx, "ip", hostname)
	if err != nil {
		return address.HostSpec{}, proxyerr.Resolve(err)
	}
	if len(ips) == 0 {
		return address.HostSpec{}, proxyerr.Newf(proxyerr.KindResolve, "no addresses found for %q", hostname)
	}

	var fallback net.IP
	for _, ip := range ips {
		v4 := ip.To4()
		switch pref {
		case FamilyIPv4:
			if v4 != nil {
				return address.IPv4Host(v4), nil
			}
		case FamilyIPv6:
			if v4 == nil {
				return address.IPv6Host(ip), nil
			}
		default:
			if v4 != nil {
				return address.IPv4Host(v4), nil
			}
			return address.IPv6Host(ip), nil
		}
		if fallback == nil {
			fallback = ip
		}
	}

	if v4 := fallback.To4(); v4 != nil {
		return address.IPv4Host(v4), nil
	}
	return address.IPv6Host(fallback), nil
}
