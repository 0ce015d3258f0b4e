package socks5

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/go-proxytun/proxytun/core/net/address"
	"github.com/go-proxytun/proxytun/core/net/endpoint"
	"github.com/go-proxytun/proxytun/internal/proxyerr"
)

func dst() endpoint.Endpoint {
	return endpoint.Endpoint{Host: address.DomainHost("example.test"), Port: 443}
}

// mockServer drives the proxy side of the wire for one Drive call. It
// runs on its own goroutine, so failures are reported via assert rather
// than require (FailNow is only safe from the test's own goroutine).
func mockServer(t *testing.T, conn net.Conn, methodReply byte, authReply byte, rep byte) {
	t.Helper()
	buf := make([]byte, 512)

	n, err := conn.Read(buf)
	if !assert.NoError(t, err) || !assert.GreaterOrEqual(t, n, 2) || !assert.Equal(t, byte(0x05), buf[0]) {
		return
	}

	if _, err = conn.Write([]byte{0x05, methodReply}); !assert.NoError(t, err) {
		return
	}
	if methodReply == methodNoAcceptable {
		return
	}

	if methodReply == methodUserPass {
		n, err = conn.Read(buf)
		if !assert.NoError(t, err) || !assert.Greater(t, n, 0) {
			return
		}
		if _, err = conn.Write([]byte{userPassAuthVersion, authReply}); !assert.NoError(t, err) {
			return
		}
		if authReply != userPassAuthSuccess {
			return
		}
	}

	n, err = conn.Read(buf)
	if !assert.NoError(t, err) || !assert.Greater(t, n, 0) {
		return
	}

	reply := []byte{0x05, rep, 0x00, 0x01, 0, 0, 0, 0, 0, 0}
	_, err = conn.Write(reply)
	assert.NoError(t, err)
}

func TestDrive_NoAuthSuccess(t *testing.T) {
	t.Parallel()

	client, server := net.Pipe()
	defer client.Close()
	defer server.Close()

	go mockServer(t, server, methodNoAuth, 0, 0x00)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	err := Drive(ctx, client, dst(), nil)
	assert.NoError(t, err)
}

func TestDrive_UserPassSuccess(t *testing.T) {
	t.Parallel()

	client, server := net.Pipe()
	defer client.Close()
	defer server.Close()

	go mockServer(t, server, methodUserPass, userPassAuthSuccess, 0x00)

	creds := &endpoint.Credentials{Username: []byte("alice"), Password: []byte("secret")}
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	err := Drive(ctx, client, dst(), creds)
	assert.NoError(t, err)
}

func TestDrive_InvalidCredentials(t *testing.T) {
	t.Parallel()

	client, server := net.Pipe()
	defer client.Close()
	defer server.Close()

	go mockServer(t, server, methodUserPass, 0x01, 0x00)

	creds := &endpoint.Credentials{Username: []byte("alice"), Password: []byte("wrong")}
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	err := Drive(ctx, client, dst(), creds)
	require.Error(t, err)
	assert.ErrorIs(t, err, proxyerr.ErrInvalidAuthCredentials)
}

func TestDrive_NoAcceptableAuthMethod(t *testing.T) {
	t.Parallel()

	client, server := net.Pipe()
	defer client.Close()
	defer server.Close()

	go mockServer(t, server, methodNoAcceptable, 0, 0x00)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	err := Drive(ctx, client, dst(), nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, proxyerr.ErrNoAcceptableAuthMethod)
}

func TestDrive_ReplyErrorMapping(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name string
		rep  byte
		want error
	}{
		{"general failure", 0x01, proxyerr.ErrGeneralFailure},
		{"connection not allowed", 0x02, proxyerr.ErrConnectionNotAllowed},
		{"network unreachable", 0x03, proxyerr.ErrNetworkUnreachable},
		{"host unreachable", 0x04, proxyerr.ErrHostUnreachable},
		{"connection refused", 0x05, proxyerr.ErrConnectionRefused},
		{"ttl expired", 0x06, proxyerr.ErrTTLExpired},
		{"command not supported", 0x07, proxyerr.ErrCommandNotSupported},
		{"address type not supported", 0x08, proxyerr.ErrAddressTypeNotSupported},
	}

	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			client, server := net.Pipe()
			defer client.Close()
			defer server.Close()

			go mockServer(t, server, methodNoAuth, 0, tc.rep)

			ctx, cancel := context.WithTimeout(context.Background(), time.Second)
			defer cancel()
			err := Drive(ctx, client, dst(), nil)
			require.Error(t, err)
			assert.ErrorIs(t, err, tc.want)
		})
	}
}

// TestDrive_UnknownReplyATYPRejected guards spec §4.1's "an unknown ATYP
// yields a protocol error": a reply with a bogus ATYP must not be
// silently parsed as if it were a length-prefixed domain.
func TestDrive_UnknownReplyATYPRejected(t *testing.T) {
	t.Parallel()

	client, server := net.Pipe()
	defer client.Close()
	defer server.Close()

	go func() {
		buf := make([]byte, 512)
		if _, err := server.Read(buf); err != nil {
			return
		}
		server.Write([]byte{0x05, 0x00})
		if _, err := server.Read(buf); err != nil {
			return
		}
		// REP=0x00 (success) but ATYP=0x02, which is not one of
		// 0x01/0x03/0x04; the bound address bytes that follow (here,
		// a single 0xFF) must never be interpreted as a domain length.
		server.Write([]byte{0x05, 0x00, 0x00, 0x02, 0xFF})
	}()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	err := Drive(ctx, client, dst(), nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, proxyerr.ErrUnknownAddrType)
}
