// Package relay copies bytes bidirectionally between an established
// tunnel and a local peer (typically the process's own stdin/stdout),
// until either direction reaches EOF or the context is cancelled.
//
// Both copy directions and the cancellation watcher run under a single
// errgroup; a context cancellation (a deadline firing mid-relay, or the
// caller's own shutdown) closes the tunnel.
package relay

import (
	"context"
	"io"
	"sync"

	"golang.org/x/sync/errgroup"
)

// Bidirectional copies local<->tunnel concurrently and returns once both
// directions have finished. When ctx is done first, tunnel is closed,
// which ends the tunnel-to-local copy and fails further writes to
// tunnel; a local-to-tunnel copy blocked reading from local returns only
// when that read does.
//
// The watcher goroutine waits on a locally derived context, not
// errgroup's own: errgroup only cancels its derived context on a
// non-nil error or inside Wait() once every Go'd function has already
// returned, so a clean EOF on both copy directions would leave the
// watcher (and Wait) blocked on the caller's ctx forever instead of
// returning once the relay is actually done. A background goroutine
// cancels the local context as soon as both copies finish; ctx's own
// cancellation (a deadline firing mid-relay, or the caller's shutdown)
// cancels it too. Either way the watcher then closes tunnel; on
// cancellation this unblocks a tunnel-to-local copy whose peer never
// sends EOF, which would otherwise never notice.
func Bidirectional(ctx context.Context, tunnel io.ReadWriteCloser, local io.ReadWriteCloser) error {
	watchCtx, stopWatch := context.WithCancel(ctx)
	defer stopWatch()

	var copiesDone sync.WaitGroup
	copiesDone.Add(2)
	go func() {
		copiesDone.Wait()
		stopWatch()
	}()

	g, _ := errgroup.WithContext(ctx)

	g.Go(func() error {
		defer copiesDone.Done()
		_, err := io.Copy(tunnel, local)
		return err
	})
	g.Go(func() error {
		defer copiesDone.Done()
		_, err := io.Copy(local, tunnel)
		return err
	})
	g.Go(func() error {
		<-watchCtx.Done()
		tunnel.Close()
		return nil
	})

	return g.Wait()
}
