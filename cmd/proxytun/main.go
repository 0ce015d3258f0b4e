// Package main is the entry point for the proxytun CLI: it dials a
// destination through a configured chain of proxies and relays the
// established tunnel against the process's own stdin/stdout.
package main

import (
	"context"
	"errors"
	"io"
	"net"
	"os"
	"strconv"

	"github.com/go-proxytun/proxytun/internal/config"
	"github.com/go-proxytun/proxytun/internal/flags"
	"github.com/go-proxytun/proxytun/internal/logger"
	"github.com/go-proxytun/proxytun/internal/proxyerr"
	"github.com/go-proxytun/proxytun/internal/relay"

	"github.com/go-proxytun/proxytun/core/net/address"
	"github.com/go-proxytun/proxytun/core/net/endpoint"
	"github.com/go-proxytun/proxytun/core/proxy"
)

// main is the entry point of the application. It loads the chain config,
// connects through the chain to the configured destination, and relays
// the tunnel against stdin/stdout until either side closes.
func main() {
	if flags.VerboseFlag {
		logger.SetLevel(logger.DEBUG)
	} else {
		logger.SetLevel(logger.INFO)
	}

	cfg := config.GetChainConfig(flags.CfgPathFlag)

	spec, err := cfg.ToChainSpec()
	if err != nil {
		logger.Fatal(errors.Join(proxyerr.ErrEmptyChain, err))
	}
	req := cfg.ToConnectRequest()
	if flags.ConnectFlag != "" {
		dest, err := parseConnectFlag(flags.ConnectFlag)
		if err != nil {
			logger.Fatal(err)
		}
		req.Dest = dest
		req.DestTLS = nil
	}

	chain := proxy.NewChain(spec)
	logger.Info("connecting through ", len(spec), " hop(s) to ", req.Dest)

	tunnel, err := chain.Connect(context.Background(), req)
	if err != nil {
		logger.Fatal(err)
	}
	defer tunnel.Close()
	logger.Info("tunnel established to ", req.Dest)

	if err := relay.Bidirectional(context.Background(), tunnel, stdio{}); err != nil && !errors.Is(err, io.EOF) {
		logger.Error(err)
		os.Exit(1)
	}
}

// parseConnectFlag turns a "host:port" string from -connect into an
// endpoint.Endpoint, treating the host as a literal IP when it parses as
// one and as a domain otherwise (remote-resolution policy for the last
// hop still comes from the chain config, not this flag).
func parseConnectFlag(hostport string) (endpoint.Endpoint, error) {
	host, portStr, err := net.SplitHostPort(hostport)
	if err != nil {
		return endpoint.Endpoint{}, err
	}
	port, err := strconv.ParseUint(portStr, 10, 16)
	if err != nil {
		return endpoint.Endpoint{}, err
	}
	return endpoint.Endpoint{Host: address.HostFromString(host), Port: uint16(port)}, nil
}

// stdio adapts os.Stdin/os.Stdout to the single io.ReadWriteCloser relay
// expects. Closing it is a no-op: the process owns its own stdio
// lifetime, not the relay.
type stdio struct{}

func (stdio) Read(p []byte) (int, error)  { return os.Stdin.Read(p) }
func (stdio) Write(p []byte) (int, error) { return os.Stdout.Write(p) }
func (stdio) Close() error                { return nil }
