// Package mqtt implements an embedded MQTT 3.1.1 client core sized for
// constrained devices: fixed pre-allocated send/receive buffers, an
// optional TLS or WebSocket transport, and a cooperative,
// single-threaded session engine driven by the caller's Yield calls and
// blocking commands rather than background goroutines per connection.
package mqtt

import (
	"log"
	"sync"

	"github.com/golang-io/embedded-mqtt/packet"
)

// Client is the protocol engine. Every field that participates in a
// wire exchange is pre-sized at construction: sendBuf and recvBuf never
// grow, and the handler table is a fixed array. The mutex guards the
// whole struct and is intentionally a plain sync.Mutex, not a
// recursive lock — a MessageHandler callback must not call back into
// the same Client (Publish, Subscribe, Yield, ...) or it will deadlock.
// This trades a cheaper, simpler primitive for a documented caller
// obligation, matching option (b) of the two the reference design
// considered.
type Client struct {
	mu sync.Mutex

	transport Transport
	opts      Options

	sendBuf []byte
	recvBuf []byte

	handlers handlerTable

	nextPacketID uint16
	connected    bool

	keepAliveMS      uint32
	commandTimeoutMS uint32
	pingTimer        timer
	pingrespTimer    timer
	pingOutstanding  bool

	stat *Stat
}

// New constructs a Client bound to transport. The client does not
// connect until Connect is called.
func New(transport Transport, opts ...Option) *Client {
	o := newOptions(opts...)
	c := &Client{
		transport:        transport,
		opts:             o,
		sendBuf:          make([]byte, o.SendBufSize),
		recvBuf:          make([]byte, o.RecvBufSize),
		nextPacketID:     1,
		commandTimeoutMS: o.CommandTimeoutMS,
		stat:             newStat(o.ClientID),
	}
	return c
}

// Stat returns the client's metric collectors, for callers that want
// to register them with prometheus or serve them over HTTP.
func (c *Client) Stat() *Stat {
	return c.stat
}

// IsConnected reports whether the session believes it holds an open
// connection. It does not probe the transport; a half-open TCP
// connection still reads true until the next failed I/O or a missed
// PINGRESP.
func (c *Client) IsConnected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.connected
}

// nextID returns the next packet identifier, wrapping from 65535 back
// to 1. Zero is never issued: it is reserved to mean "no packet
// identifier" for QoS 0 messages.
func (c *Client) nextID() uint16 {
	id := c.nextPacketID
	if c.nextPacketID == 65535 {
		c.nextPacketID = 1
	} else {
		c.nextPacketID++
	}
	return id
}

// SetDefaultHandler installs the handler invoked for inbound messages
// that match no registered filter.
func (c *Client) SetDefaultHandler(h MessageHandler) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.handlers.setDefault(h)
}

func (c *Client) logf(format string, args ...any) {
	log.Printf("[MQTT] client_id=%s "+format, append([]any{c.opts.ClientID}, args...)...)
}

// readPacket reads one complete control packet off the transport into
// recvBuf: the fixed header's first byte, the variable-length
// remaining-length field, then exactly that many more bytes. It
// returns the decoded kind, the raw fixed-header byte, and the payload
// slice (aliasing recvBuf — valid only until the next readPacket call).
//
// A zero kind with a nil payload and a nil error means the transport
// returned 0 bytes with no error inside the deadline. cycle treats this
// as an idle poll and returns nil; the acknowledgement loops keep
// reading until their deadline expires and then return ErrTimeout.
func (c *Client) readPacket(deadline *timer) (kind byte, headerByte byte, payload []byte, err error) {
	n, rerr := c.transport.Read(c.recvBuf[:1], deadline.leftMS())
	if rerr != nil {
		return 0, 0, nil, rerr
	}
	if n != 1 {
		return 0, 0, nil, nil
	}
	headerByte = c.recvBuf[0]
	kind, _, _, _ = packet.DecodeFlags(headerByte)

	remaining, consumed, lenErr := c.readRemainingLength(deadline)
	if lenErr != nil {
		return 0, 0, nil, lenErr
	}
	_ = consumed

	if int(remaining) > len(c.recvBuf) {
		return 0, 0, nil, ErrBufferTooSmall
	}
	if remaining > 0 {
		read := uint32(0)
		for read < remaining {
			n, rerr := c.transport.Read(c.recvBuf[read:remaining], deadline.leftMS())
			if rerr != nil {
				return 0, 0, nil, rerr
			}
			if n == 0 {
				return 0, 0, nil, nil
			}
			read += uint32(n)
		}
	}
	c.stat.PacketsReceived.Inc()
	c.stat.BytesReceived.Add(float64(1 + consumed + int(remaining)))
	return kind, headerByte, c.recvBuf[:remaining], nil
}

// readRemainingLength decodes the variable-byte-integer remaining
// length one byte at a time directly off the transport, since its
// encoded size (1-4 bytes) isn't known up front. This is the one place
// the engine reads a byte at a time instead of in bulk, matching
// decodePacket in the C reference.
func (c *Client) readRemainingLength(deadline *timer) (value uint32, consumed int, err error) {
	var b [1]byte
	mult := uint32(1)
	for {
		n, rerr := c.transport.Read(b[:], deadline.leftMS())
		if rerr != nil {
			return 0, consumed, rerr
		}
		if n != 1 {
			return 0, consumed, packet.ErrMalformedVariableByteInteger
		}
		consumed++
		value += uint32(b[0]&0x7F) * mult
		mult *= 128
		if b[0]&0x80 == 0 {
			return value, consumed, nil
		}
		if consumed >= 4 {
			return 0, consumed, packet.ErrMalformedVariableByteInteger
		}
	}
}

// writePacket writes the first n bytes of sendBuf to the transport and
// rearms the keep-alive ping timer on success, matching sendPacket's
// "record the fact that we have successfully sent the packet"
// behavior in the C reference.
func (c *Client) writePacket(n int, deadline *timer) error {
	written := 0
	for written < n {
		if deadline.expired() {
			return ErrConnectionLost
		}
		wn, err := c.transport.Write(c.sendBuf[written:n], deadline.leftMS())
		if err != nil {
			return err
		}
		if wn == 0 {
			return ErrConnectionLost
		}
		written += wn
	}
	if c.keepAliveMS > 0 {
		c.pingTimer.countdownMS(c.keepAliveMS)
	}
	c.stat.PacketsSent.Inc()
	c.stat.BytesSent.Add(float64(n))
	return nil
}
