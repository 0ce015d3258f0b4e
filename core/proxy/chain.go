package proxy

import (
	"context"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/go-proxytun/proxytun/core/net/stream"
	"github.com/go-proxytun/proxytun/internal/logger"
	"github.com/go-proxytun/proxytun/internal/proxyerr"
)

// Chain walks a ChainSpec in order, handing each hop's established tunnel
// to the next hop's Connector as its transport, and finally wraps the
// tunnel in destination-side TLS when the caller's ConnectRequest asks
// for it.
type Chain struct {
	Spec      ChainSpec
	Connector *Connector
}

// NewChain builds a Chain over spec using a default, standard-library-
// backed Connector.
func NewChain(spec ChainSpec) *Chain {
	return &Chain{Spec: spec, Connector: NewConnector()}
}

// Connect drives the whole chain under a single deadline and returns the
// tunnel to req.Dest.
//
// The deadline is enforced by two goroutines racing in an errgroup: one
// runs the sequential hop-by-hop connect, the other watches a locally
// derived context and force-closes the most recently established hop
// stream the instant it fires. That derived context is cancelled by the work
// goroutine itself as soon as it returns, success or failure alike.
// errgroup's own derived context is only cancelled on a non-nil error or
// inside Wait() after every Go'd function has already returned, so
// relying on it here would keep the watchdog (and Wait) blocked until
// the outer ctx's own deadline elapsed even after a successful connect.
// Closing an established hop stream unblocks a later hop whose handshake
// is reading or writing through it; the first hop's own dialed stream,
// which is not yet tracked while its handshake runs, is closed by
// Connector.Connect when ctx is done.
func (c *Chain) Connect(ctx context.Context, req ConnectRequest) (stream.Stream, error) {
	if err := c.Spec.Validate(); err != nil {
		return nil, err
	}

	if req.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithDeadline(ctx, time.Now().Add(req.Timeout))
		defer cancel()
	}

	watchCtx, stopWatch := context.WithCancel(ctx)
	defer stopWatch()

	tracker := &openStream{}
	g, gctx := errgroup.WithContext(ctx)

	var result stream.Stream
	g.Go(func() error {
		defer stopWatch()
		conn, err := c.connectSequential(gctx, req, tracker)
		if err != nil {
			return err
		}
		result = conn
		tracker.clear()
		return nil
	})
	g.Go(func() error {
		<-watchCtx.Done()
		tracker.closeIfOpen()
		return nil
	})

	if err := g.Wait(); err != nil {
		if result == nil && ctx.Err() != nil {
			return nil, proxyerr.Timeout(ctx.Err())
		}
		return nil, err
	}
	return result, nil
}

// connectSequential performs the ordered hop walk: hop i+1 never begins
// until hop i reports Established.
func (c *Chain) connectSequential(ctx context.Context, req ConnectRequest, tracker *openStream) (stream.Stream, error) {
	var conn stream.Stream
	last := len(c.Spec) - 1

	for i := range c.Spec {
		var target = req.Dest
		if i != last {
			target = c.Spec[i+1].Endpoint
		}

		logger.Info(logger.Hop(i, "connecting via", c.Spec[i].Kind, "->", target)...)
		next, err := c.Connector.Connect(ctx, &c.Spec[i], target, conn, i)
		if err != nil {
			tracker.clear()
			return nil, err
		}
		conn = next
		tracker.set(conn)
	}

	if req.DestTLS != nil {
		sni := ""
		if !req.Dest.Host.IsLiteral() {
			sni = req.Dest.Host.String()
		}
		wrapped, err := stream.WrapTLS(ctx, conn, req.DestTLS, sni)
		if err != nil {
			tracker.clear()
			return nil, proxyerr.Connection(err).WithHop(last)
		}
		conn = wrapped
		tracker.set(conn)
	}

	return conn, nil
}

// openStream tracks the most recently established hop stream so the
// deadline watchdog goroutine can force it closed without racing the
// sequential connector's own ownership of it.
type openStream struct {
	mu   sync.Mutex
	conn stream.Stream
}

func (o *openStream) set(conn stream.Stream) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.conn = conn
}

func (o *openStream) clear() {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.conn = nil
}

func (o *openStream) closeIfOpen() {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.conn != nil {
		o.conn.Close()
		o.conn = nil
	}
}
