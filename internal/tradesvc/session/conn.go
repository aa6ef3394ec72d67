package session

import (
	"bufio"
	"net"
	"strings"

	"github.com/gorilla/websocket"
)

// Conn is one client connection carrying newline-delimited protocol
// records. Implementations must deliver records in order and whole.
type Conn interface {
	// ReadLine blocks for the next full record, without its line break.
	ReadLine() (string, error)
	// WriteLine sends one record. Framing is the implementation's job.
	WriteLine(line string) error
	Close() error
	RemoteAddr() string
}

// tcpConn frames records as newline-terminated lines on a raw TCP
// stream.
type tcpConn struct {
	conn   net.Conn
	reader *bufio.Reader
}

func NewTCPConn(conn net.Conn) Conn {
	return &tcpConn{conn: conn, reader: bufio.NewReader(conn)}
}

func (c *tcpConn) ReadLine() (string, error) {
	line, err := c.reader.ReadString('\n')
	if err != nil {
		return "", err
	}
	return strings.TrimRight(line, "\r\n"), nil
}

func (c *tcpConn) WriteLine(line string) error {
	_, err := c.conn.Write([]byte(line + "\n"))
	return err
}

func (c *tcpConn) Close() error {
	return c.conn.Close()
}

func (c *tcpConn) RemoteAddr() string {
	return c.conn.RemoteAddr().String()
}

// wsConn frames one record per websocket text message.
type wsConn struct {
	conn *websocket.Conn
}

func NewWSConn(conn *websocket.Conn) Conn {
	return &wsConn{conn: conn}
}

func (c *wsConn) ReadLine() (string, error) {
	_, raw, err := c.conn.ReadMessage()
	if err != nil {
		return "", err
	}
	return strings.TrimRight(string(raw), "\r\n"), nil
}

func (c *wsConn) WriteLine(line string) error {
	return c.conn.WriteMessage(websocket.TextMessage, []byte(line))
}

func (c *wsConn) Close() error {
	return c.conn.Close()
}

func (c *wsConn) RemoteAddr() string {
	return c.conn.RemoteAddr().String()
}
