package mqtt

import (
	"fmt"
	"time"

	"github.com/gorilla/websocket"
)

// wsTransport adapts a message-oriented WebSocket connection to the
// byte-stream Transport contract. MQTT-over-WebSocket packs each
// control packet into one binary WebSocket message (RFC, subprotocol
// "mqtt"), but the session engine expects to read arbitrary-sized
// chunks, so reads that don't consume a whole frame are buffered here
// until the next call drains them.
type wsTransport struct {
	conn    *websocket.Conn
	path    string
	tls     bool
	pending []byte
}

// NewWebSocketTransport returns a Transport that speaks MQTT over a
// WebSocket connection at the given path (e.g. "/mqtt"). Set tls to
// true to dial wss:// instead of ws://.
func NewWebSocketTransport(path string, tls bool) Transport {
	return &wsTransport{path: path, tls: tls}
}

func (t *wsTransport) Connect(host string, port int) error {
	scheme := "ws"
	if t.tls {
		scheme = "wss"
	}
	url := fmt.Sprintf("%s://%s:%d%s", scheme, host, port, t.path)
	dialer := websocket.Dialer{
		Subprotocols:     []string{"mqtt"},
		HandshakeTimeout: 30 * time.Second,
	}
	conn, _, err := dialer.Dial(url, nil)
	if err != nil {
		return err
	}
	t.conn = conn
	return nil
}

func (t *wsTransport) Read(buf []byte, deadlineMS uint32) (int, error) {
	if t.conn == nil {
		return 0, ErrNotConnected
	}
	if len(t.pending) > 0 {
		n := copy(buf, t.pending)
		t.pending = t.pending[n:]
		return n, nil
	}
	if err := t.conn.SetReadDeadline(deadlineFromMS(deadlineMS)); err != nil {
		return 0, err
	}
	_, data, err := t.conn.ReadMessage()
	if err != nil {
		return 0, err
	}
	n := copy(buf, data)
	if n < len(data) {
		t.pending = data[n:]
	}
	return n, nil
}

func (t *wsTransport) Write(buf []byte, deadlineMS uint32) (int, error) {
	if t.conn == nil {
		return 0, ErrNotConnected
	}
	if err := t.conn.SetWriteDeadline(deadlineFromMS(deadlineMS)); err != nil {
		return 0, err
	}
	if err := t.conn.WriteMessage(websocket.BinaryMessage, buf); err != nil {
		return 0, err
	}
	return len(buf), nil
}

func (t *wsTransport) Disconnect() error {
	if t.conn == nil {
		return nil
	}
	err := t.conn.Close()
	t.conn = nil
	return err
}
