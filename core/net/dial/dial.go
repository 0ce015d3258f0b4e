// Package dial defines the narrow interface the core consumes to open the
// transport to the first proxy in a chain, so a caller can swap in their
// own socket or async-runtime backend without touching the handshake
// engines.
package dial

import (
	"context"
	"net"

	"github.com/go-proxytun/proxytun/core/net/stream"
)

// Dialer opens a TCP connection to host:port honoring ctx's deadline and
// cancellation.
type Dialer interface {
	DialContext(ctx context.Context, network, addr string) (stream.Stream, error)
}

// Net is the default Dialer, backed by net.Dialer.
type Net struct {
	Inner net.Dialer
}

// NewNet builds a Net dialer with zero-value net.Dialer defaults.
func NewNet() *Net {
	return &Net{}
}

// DialContext implements Dialer.
func (d *Net) DialContext(ctx context.Context, network, addr string) (stream.Stream, error) {
	return d.Inner.DialContext(ctx, network, addr)
}
