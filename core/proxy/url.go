package proxy

import (
	"crypto/tls"
	"fmt"
	"net/url"
	"strconv"

	"github.com/go-proxytun/proxytun/core/net/address"
	"github.com/go-proxytun/proxytun/core/net/endpoint"
	"github.com/go-proxytun/proxytun/internal/proxyerr"
)

// defaultPort is the well-known port assumed when a proxy URL omits one.
func defaultPort(kind Kind, tlsWrapped bool) uint16 {
	switch kind {
	case KindSOCKS5, KindSOCKS4:
		return 1080
	case KindHTTP:
		if tlsWrapped {
			return 443
		}
		return 80
	default:
		return 0
	}
}

// schemeKind maps a proxy URL scheme to its Kind, whether it forces
// rdns=true, and whether the transport to the proxy itself is wrapped in
// TLS before any handshake bytes are sent.
func schemeKind(scheme string) (kind Kind, forceRDNSTrue bool, proxyTLS bool, err error) {
	switch scheme {
	case "socks5":
		return KindSOCKS5, false, false, nil
	case "socks5h":
		return KindSOCKS5, true, false, nil
	case "socks4":
		return KindSOCKS4, false, false, nil
	case "socks4a":
		return KindSOCKS4, true, false, nil
	case "http":
		return KindHTTP, false, false, nil
	case "https":
		return KindHTTP, false, true, nil
	default:
		return 0, false, false, proxyerr.Newf(proxyerr.KindProtocol, "proxy: unrecognized URL scheme %q", scheme)
	}
}

// DescriptorFromURL parses a proxy URL of the form
// scheme://[user[:pass]@]host[:port] into a Descriptor. The scheme
// selects the protocol and, for socks5h/socks4a, forces rdns to true;
// https forces a proxy-side TLS wrap using the default *tls.Config for
// the proxy's own certificate validation.
func DescriptorFromURL(raw string) (Descriptor, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return Descriptor{}, proxyerr.Newf(proxyerr.KindProtocol, "proxy: invalid URL %q: %v", raw, err)
	}

	kind, forceRDNS, needsTLS, err := schemeKind(u.Scheme)
	if err != nil {
		return Descriptor{}, err
	}
	if u.Host == "" {
		return Descriptor{}, proxyerr.Newf(proxyerr.KindProtocol, "proxy: URL %q is missing a host", raw)
	}

	host := u.Hostname()
	port := defaultPort(kind, needsTLS)
	if p := u.Port(); p != "" {
		parsed, convErr := strconv.ParseUint(p, 10, 16)
		if convErr != nil {
			return Descriptor{}, proxyerr.Newf(proxyerr.KindProtocol, "proxy: invalid port %q", p)
		}
		port = uint16(parsed)
	}

	desc := Descriptor{
		Kind:     kind,
		Endpoint: endpoint.Endpoint{Host: address.HostFromString(host), Port: port},
	}
	if forceRDNS {
		desc.RDNS = endpoint.RDNSTrue
	}
	if needsTLS {
		desc.ProxyTLS = &tls.Config{ServerName: host}
	}

	if u.User != nil {
		username := u.User.Username()
		password, _ := u.User.Password()
		desc.Credentials = &endpoint.Credentials{Username: []byte(username), Password: []byte(password)}
	}

	return desc, nil
}

// ChainFromURLs builds a ChainSpec by parsing each URL in order via
// DescriptorFromURL.
func ChainFromURLs(raws []string) (ChainSpec, error) {
	spec := make(ChainSpec, 0, len(raws))
	for i, raw := range raws {
		desc, err := DescriptorFromURL(raw)
		if err != nil {
			return nil, fmt.Errorf("proxy %d: %w", i, err)
		}
		spec = append(spec, desc)
	}
	return spec, nil
}
