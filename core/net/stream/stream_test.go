package stream

import (
	"io"
	"net"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReadExact_ShortReadIsUnexpectedEOF(t *testing.T) {
	t.Parallel()

	client, server := net.Pipe()
	defer client.Close()

	go func() {
		server.Write([]byte("ab"))
		server.Close()
	}()

	buf := make([]byte, 4)
	err := ReadExact(client, buf)
	assert.ErrorIs(t, err, io.ErrUnexpectedEOF)
}

func TestWriteAll_DeliversAllBytes(t *testing.T) {
	t.Parallel()

	client, server := net.Pipe()
	defer client.Close()
	defer server.Close()

	writeErr := make(chan error, 1)
	go func() { writeErr <- WriteAll(client, []byte("hello")) }()

	buf := make([]byte, 5)
	_, err := io.ReadFull(server, buf)
	require.NoError(t, err)
	assert.Equal(t, "hello", string(buf))
	assert.NoError(t, <-writeErr)
}

func TestPrependConn_ReplaysLeftoverBeforeUnderlying(t *testing.T) {
	t.Parallel()

	client, server := net.Pipe()
	defer client.Close()
	defer server.Close()

	go func() {
		server.Write([]byte("world"))
	}()

	wrapped := NewPrependConn(client, []byte("hello"))
	buf := make([]byte, 10)
	n, err := wrapped.Read(buf)
	require.NoError(t, err)
	assert.Equal(t, "hello", string(buf[:n]))

	n, err = wrapped.Read(buf)
	require.NoError(t, err)
	assert.Equal(t, "world", string(buf[:n]))
}
