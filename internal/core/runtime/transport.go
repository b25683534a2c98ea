package runtime

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"net"
	"sync"

	"github.com/gobwas/ws"
	"github.com/gobwas/ws/wsutil"
)

// Conn is a message oriented connection to the chat server.
type Conn interface {
	// ReadMessage blocks until the next data frame arrives.
	ReadMessage() ([]byte, error)
	// WriteMessage sends one data frame. Safe for concurrent use with
	// ReadMessage.
	WriteMessage([]byte) error
	// Close tears the connection down and unblocks pending reads.
	Close() error
}

// Dialer opens a Conn to serverURL.
type Dialer func(ctx context.Context, serverURL string) (Conn, error)

// DialWebSocket connects to a ws:// or wss:// endpoint.
func DialWebSocket(ctx context.Context, serverURL string) (Conn, error) {
	netConn, br, _, err := ws.Dial(ctx, serverURL)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", serverURL, err)
	}
	return newWSConn(netConn, br), nil
}

// wsConn speaks the client side of the WebSocket protocol. Writes are
// serialized because control frame replies issued while reading share the
// socket with user messages.
type wsConn struct {
	conn   net.Conn
	reader io.Reader

	writeMu sync.Mutex
}

func newWSConn(conn net.Conn, br *bufio.Reader) *wsConn {
	c := &wsConn{conn: conn, reader: conn}
	if br != nil {
		// Frames that arrived together with the handshake response are
		// buffered in br and must be consumed first.
		c.reader = io.MultiReader(br, conn)
	}
	return c
}

func (c *wsConn) ReadMessage() ([]byte, error) {
	rw := struct {
		io.Reader
		io.Writer
	}{c.reader, lockedWriter{c}}
	for {
		data, op, err := wsutil.ReadServerData(rw)
		if err != nil {
			return nil, err
		}
		if op == ws.OpText || op == ws.OpBinary {
			return data, nil
		}
	}
}

func (c *wsConn) WriteMessage(data []byte) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return wsutil.WriteClientText(c.conn, data)
}

func (c *wsConn) Close() error {
	c.writeMu.Lock()
	// Best effort close frame; the socket is closed regardless.
	_ = wsutil.WriteClientMessage(c.conn, ws.OpClose, ws.NewCloseFrameBody(ws.StatusNormalClosure, ""))
	c.writeMu.Unlock()
	return c.conn.Close()
}

type lockedWriter struct{ c *wsConn }

func (w lockedWriter) Write(p []byte) (int, error) {
	w.c.writeMu.Lock()
	defer w.c.writeMu.Unlock()
	return w.c.conn.Write(p)
}
