package proxy

import (
	"context"
	"net"
	"net/url"
	"strconv"
	"time"

	xproxy "golang.org/x/net/proxy"

	"github.com/go-proxytun/proxytun/core/net/address"
	"github.com/go-proxytun/proxytun/core/net/endpoint"
)

// ChainDialer adapts a Chain to golang.org/x/net/proxy's Dialer and
// ContextDialer interfaces, so a proxytun chain can be handed to any
// caller already written against that ecosystem convention (for
// instance, plugged into an http.Transport.DialContext).
type ChainDialer struct {
	Chain   *Chain
	Timeout time.Duration
}

var (
	_ xproxy.Dialer        = (*ChainDialer)(nil)
	_ xproxy.ContextDialer = (*ChainDialer)(nil)
)

// Dial implements proxy.Dialer.
func (d *ChainDialer) Dial(network, addr string) (net.Conn, error) {
	return d.DialContext(context.Background(), network, addr)
}

// DialContext implements proxy.ContextDialer.
func (d *ChainDialer) DialContext(ctx context.Context, network, addr string) (net.Conn, error) {
	host, portStr, err := net.SplitHostPort(addr)
	if err != nil {
		return nil, err
	}
	port, err := strconv.ParseUint(portStr, 10, 16)
	if err != nil {
		return nil, err
	}
	req := ConnectRequest{
		Dest:    endpoint.Endpoint{Host: address.HostFromString(host), Port: uint16(port)},
		Timeout: d.Timeout,
	}
	return d.Chain.Connect(ctx, req)
}

// init registers the "proxytun" scheme with golang.org/x/net/proxy's
// dialer registry, so code that builds its dialer via proxy.FromURL picks
// up a single-hop proxytun chain the same way it would a built-in
// "socks5" URL. The forward dialer x/net/proxy threads through is
// ignored: a proxytun chain always opens its own first-hop transport.
func init() {
	xproxy.RegisterDialerType("proxytun", func(u *url.URL, _ xproxy.Dialer) (xproxy.Dialer, error) {
		inner := *u
		inner.Scheme = "socks5"
		if q := u.Query().Get("proto"); q != "" {
			inner.Scheme = q
		}
		desc, err := DescriptorFromURL(inner.String())
		if err != nil {
			return nil, err
		}
		return &ChainDialer{Chain: NewChain(ChainSpec{desc})}, nil
	})
}
