package session

import (
	"net"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTCPConn_ReadsOneFullLineAtATime(t *testing.T) {
	client, server := net.Pipe()
	defer client.Close()
	defer server.Close()

	conn := NewTCPConn(server)

	go func() {
		client.Write([]byte(`{"type":"login"}` + "\n" + `{"type":"get-collection"}` + "\r\n"))
	}()

	line, err := conn.ReadLine()
	require.NoError(t, err)
	assert.Equal(t, `{"type":"login"}`, line)

	// CRLF framing is tolerated.
	line, err = conn.ReadLine()
	require.NoError(t, err)
	assert.Equal(t, `{"type":"get-collection"}`, line)
}

func TestTCPConn_WriteAppendsNewline(t *testing.T) {
	client, server := net.Pipe()
	defer client.Close()
	defer server.Close()

	conn := NewTCPConn(server)

	go func() {
		assert.NoError(t, conn.WriteLine(`{"type":"trade-status"}`))
	}()

	buf := make([]byte, 64)
	n, err := client.Read(buf)
	require.NoError(t, err)
	assert.Equal(t, `{"type":"trade-status"}`+"\n", string(buf[:n]))
}

func TestTCPConn_ReadFailsAfterClose(t *testing.T) {
	client, server := net.Pipe()
	conn := NewTCPConn(server)

	client.Close()
	_, err := conn.ReadLine()
	assert.Error(t, err)
}
