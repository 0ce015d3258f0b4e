package proxy

import (
	"context"
	"io"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/go-proxytun/proxytun/core/net/endpoint"
	"github.com/go-proxytun/proxytun/internal/proxyerr"
)

// listenSocks5 starts a single-shot SOCKS5 fixture server on 127.0.0.1
// that accepts one connection, performs a no-auth handshake granting
// access to whatever destination is requested, then echoes bytes back;
// enough to prove a Chain.Connect result is a live, usable tunnel.
func listenSocks5(t *testing.T) string {
	t.Helper()
	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	go func() {
		conn, err := l.Accept()
		if err != nil {
			return
		}
		defer conn.Close()

		buf := make([]byte, 512)
		if _, err := conn.Read(buf); err != nil {
			return
		}
		if _, err := conn.Write([]byte{0x05, 0x00}); err != nil {
			return
		}
		if _, err := conn.Read(buf); err != nil {
			return
		}
		if _, err := conn.Write([]byte{0x05, 0x00, 0x00, 0x01, 0, 0, 0, 0, 0, 0}); err != nil {
			return
		}
		io.Copy(conn, conn)
	}()

	return l.Addr().String()
}

func TestChain_SingleHopEstablishesUsableTunnel(t *testing.T) {
	t.Parallel()

	addr := listenSocks5(t)
	host, portStr, err := net.SplitHostPort(addr)
	require.NoError(t, err)

	desc, err := DescriptorFromURL("socks5://" + host + ":" + portStr)
	require.NoError(t, err)

	chain := NewChain(ChainSpec{desc})
	req := ConnectRequest{
		Dest:    endpoint.Endpoint{Host: desc.Endpoint.Host, Port: 9999},
		Timeout: 2 * time.Second,
	}

	tunnel, err := chain.Connect(context.Background(), req)
	require.NoError(t, err)
	defer tunnel.Close()

	_, err = tunnel.Write([]byte("ping"))
	require.NoError(t, err)

	buf := make([]byte, 4)
	_, err = io.ReadFull(tunnel, buf)
	require.NoError(t, err)
	assert.Equal(t, "ping", string(buf))
}

// TestChain_ConnectReturnsPromptlyOnSuccess guards against the watchdog
// goroutine keeping Connect blocked until req.Timeout elapses even after
// a successful handshake: the deadline budget here is generous, but a
// successful connect must return in well under it.
func TestChain_ConnectReturnsPromptlyOnSuccess(t *testing.T) {
	t.Parallel()

	addr := listenSocks5(t)
	host, portStr, err := net.SplitHostPort(addr)
	require.NoError(t, err)

	desc, err := DescriptorFromURL("socks5://" + host + ":" + portStr)
	require.NoError(t, err)

	chain := NewChain(ChainSpec{desc})
	req := ConnectRequest{
		Dest:    endpoint.Endpoint{Host: desc.Endpoint.Host, Port: 9999},
		Timeout: 10 * time.Second,
	}

	start := time.Now()
	tunnel, err := chain.Connect(context.Background(), req)
	require.NoError(t, err)
	defer tunnel.Close()

	assert.Less(t, time.Since(start), 1*time.Second)
}

// TestChain_ConnectReturnsPromptlyWithNoTimeout guards against the same
// bug manifesting as an outright hang when the caller sets no deadline
// at all (req.Timeout <= 0), the path exercised by ChainDialer.DialContext
// via the registered "proxytun" x/net/proxy dialer.
func TestChain_ConnectReturnsPromptlyWithNoTimeout(t *testing.T) {
	t.Parallel()

	addr := listenSocks5(t)
	host, portStr, err := net.SplitHostPort(addr)
	require.NoError(t, err)

	desc, err := DescriptorFromURL("socks5://" + host + ":" + portStr)
	require.NoError(t, err)

	chain := NewChain(ChainSpec{desc})
	req := ConnectRequest{Dest: endpoint.Endpoint{Host: desc.Endpoint.Host, Port: 9999}}

	done := make(chan struct{})
	var tunnel io.Closer
	var connErr error
	go func() {
		defer close(done)
		tunnel, connErr = chain.Connect(context.Background(), req)
	}()

	select {
	case <-done:
		require.NoError(t, connErr)
		defer tunnel.Close()
	case <-time.After(2 * time.Second):
		t.Fatal("Connect did not return with no timeout set")
	}
}

func TestChain_ConnectionRefused(t *testing.T) {
	t.Parallel()

	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := l.Addr().String()
	l.Close() // free the port so the subsequent dial is refused

	host, portStr, _ := net.SplitHostPort(addr)
	desc, err := DescriptorFromURL("socks5://" + host + ":" + portStr)
	require.NoError(t, err)

	chain := NewChain(ChainSpec{desc})
	req := ConnectRequest{Dest: endpoint.Endpoint{Host: desc.Endpoint.Host, Port: 80}, Timeout: 2 * time.Second}

	_, err = chain.Connect(context.Background(), req)
	require.Error(t, err)
	var pe *proxyerr.Error
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, proxyerr.KindConnection, pe.Kind)
	assert.Equal(t, 0, pe.Hop)
}

func TestChain_EmptySpecRejected(t *testing.T) {
	t.Parallel()

	chain := NewChain(nil)
	_, err := chain.Connect(context.Background(), ConnectRequest{})
	assert.Error(t, err)
}
