package mqtt

import (
	"fmt"
	"net"
	"time"
)

// Transport is the narrow byte-pipe the session engine drives. It is
// deliberately smaller than net.Conn: every call takes an explicit
// deadline in milliseconds instead of relying on SetDeadline, so a
// non-socket transport (a UART, a BLE characteristic) can implement it
// without owning a goroutine or a deadline timer of its own.
type Transport interface {
	// Connect opens the underlying link to host:port. Host may be a
	// hostname or literal IP; port is numeric.
	Connect(host string, port int) error

	// Read blocks for at most deadlineMS milliseconds and returns the
	// number of bytes copied into buf. A deadlineMS of 0 means return
	// immediately with whatever is already available.
	Read(buf []byte, deadlineMS uint32) (int, error)

	// Write blocks for at most deadlineMS milliseconds and returns the
	// number of bytes accepted.
	Write(buf []byte, deadlineMS uint32) (int, error)

	Disconnect() error
}

// tcpTransport is the default Transport: a plain net.Conn dialed with
// net.Dialer. It carries no internal buffering beyond what net.Conn
// already does, consistent with the no-dynamic-allocation rule for the
// protocol engine above it.
type tcpTransport struct {
	conn net.Conn
}

// NewTCPTransport returns a Transport that dials plain TCP.
func NewTCPTransport() Transport {
	return &tcpTransport{}
}

func (t *tcpTransport) Connect(host string, port int) error {
	d := net.Dialer{Timeout: 30 * time.Second}
	conn, err := d.Dial("tcp", fmt.Sprintf("%s:%d", host, port))
	if err != nil {
		return err
	}
	t.conn = conn
	return nil
}

func (t *tcpTransport) Read(buf []byte, deadlineMS uint32) (int, error) {
	if t.conn == nil {
		return 0, ErrNotConnected
	}
	if err := t.conn.SetReadDeadline(deadlineFromMS(deadlineMS)); err != nil {
		return 0, err
	}
	n, err := t.conn.Read(buf)
	if ne, ok := err.(net.Error); ok && ne.Timeout() {
		return n, nil // an elapsed deadline is not an error
	}
	return n, err
}

func (t *tcpTransport) Write(buf []byte, deadlineMS uint32) (int, error) {
	if t.conn == nil {
		return 0, ErrNotConnected
	}
	if err := t.conn.SetWriteDeadline(deadlineFromMS(deadlineMS)); err != nil {
		return 0, err
	}
	return t.conn.Write(buf)
}

func (t *tcpTransport) Disconnect() error {
	if t.conn == nil {
		return nil
	}
	err := t.conn.Close()
	t.conn = nil
	return err
}

func deadlineFromMS(ms uint32) time.Time {
	if ms == 0 {
		return time.Now().Add(time.Millisecond)
	}
	return time.Now().Add(time.Duration(ms) * time.Millisecond)
}
