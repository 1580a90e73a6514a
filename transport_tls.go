package mqtt

import (
	"crypto/tls"
	"fmt"
	"net"
	"time"
)

// tlsTransport wraps the TCP transport with a TLS handshake. Certificate
// storage and rotation are outside the engine's scope; callers hand in
// an already-populated *tls.Config (or nil for the system pool).
type tlsTransport struct {
	conn   net.Conn
	config *tls.Config
}

// NewTLSTransport returns a Transport that dials TCP then performs a
// TLS handshake using config. A nil config uses Go's default settings
// (system root pool, negotiated cipher suites).
func NewTLSTransport(config *tls.Config) Transport {
	return &tlsTransport{config: config}
}

func (t *tlsTransport) Connect(host string, port int) error {
	d := net.Dialer{Timeout: 30 * time.Second}
	cfg := t.config
	if cfg == nil {
		cfg = &tls.Config{ServerName: host}
	} else if cfg.ServerName == "" {
		clone := cfg.Clone()
		clone.ServerName = host
		cfg = clone
	}
	conn, err := tls.DialWithDialer(&d, "tcp", fmt.Sprintf("%s:%d", host, port), cfg)
	if err != nil {
		return err
	}
	t.conn = conn
	return nil
}

func (t *tlsTransport) Read(buf []byte, deadlineMS uint32) (int, error) {
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

func (t *tlsTransport) Write(buf []byte, deadlineMS uint32) (int, error) {
	if t.conn == nil {
		return 0, ErrNotConnected
	}
	if err := t.conn.SetWriteDeadline(deadlineFromMS(deadlineMS)); err != nil {
		return 0, err
	}
	return t.conn.Write(buf)
}

func (t *tlsTransport) Disconnect() error {
	if t.conn == nil {
		return nil
	}
	err := t.conn.Close()
	t.conn = nil
	return err
}
