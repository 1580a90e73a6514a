package testbroker

import (
	"net"
	"sync"
	"time"

	"github.com/golang-io/embedded-mqtt/packet"
)

// subscription is one filter a session registered via SUBSCRIBE.
type subscription struct {
	filter string
	qos    byte
}

// session is the broker-side state of one client connection, the
// counterpart of conn in the server this package is adapted from:
// same per-connection will/subscription/in-flight bookkeeping, traded
// down from the production Server's net/http-flavored conn lifecycle
// to a plain net.Conn read loop since the test broker only ever serves
// loopback integration tests.
type session struct {
	nc       net.Conn
	clientID string

	mu            sync.Mutex
	subscriptions []subscription
	inflight      *inflight
	nextID        uint16

	willTopic   string
	willMessage []byte
	willQoS     byte
	hasWill     bool

	sendBuf []byte
	recvBuf []byte
}

func newSession(nc net.Conn) *session {
	return &session{
		nc:       nc,
		inflight: newInflight(),
		nextID:   1,
		sendBuf:  make([]byte, 4096),
		recvBuf:  make([]byte, 4096),
	}
}

func (s *session) nextPacketID() uint16 {
	id := s.nextID
	if s.nextID == 65535 {
		s.nextID = 1
	} else {
		s.nextID++
	}
	return id
}

func (s *session) subscribe(filter string, qos byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.subscriptions {
		if s.subscriptions[i].filter == filter {
			s.subscriptions[i].qos = qos
			return
		}
	}
	s.subscriptions = append(s.subscriptions, subscription{filter: filter, qos: qos})
}

func (s *session) unsubscribe(filter string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.subscriptions {
		if s.subscriptions[i].filter == filter {
			s.subscriptions = append(s.subscriptions[:i], s.subscriptions[i+1:]...)
			return
		}
	}
}

// subscriptionsSnapshot returns a copy of the session's current
// subscriptions; callers apply their own filter matching against it.
func (s *session) subscriptionsSnapshot() []subscription {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]subscription, 0, len(s.subscriptions))
	for _, sub := range s.subscriptions {
		out = append(out, sub)
	}
	return out
}

// readPacket reads one control packet off nc, mirroring the Client's
// own readPacket in the root package: a single header byte, the
// variable-length remaining-length field, then the payload.
func (s *session) readPacket() (kind byte, headerByte byte, payload []byte, err error) {
	s.nc.SetReadDeadline(time.Now().Add(5 * time.Minute))

	var hb [1]byte
	if _, err := readFull(s.nc, hb[:]); err != nil {
		return 0, 0, nil, err
	}
	headerByte = hb[0]
	kind, _, _, _ = packet.DecodeFlags(headerByte)

	remaining, err := readRemainingLength(s.nc)
	if err != nil {
		return 0, 0, nil, err
	}
	if int(remaining) > len(s.recvBuf) {
		return 0, 0, nil, packet.ErrBufferTooSmall
	}
	if remaining > 0 {
		if _, err := readFull(s.nc, s.recvBuf[:remaining]); err != nil {
			return 0, 0, nil, err
		}
	}
	return kind, headerByte, s.recvBuf[:remaining], nil
}

func (s *session) write(n int) error {
	_, err := s.nc.Write(s.sendBuf[:n])
	return err
}

func readFull(nc net.Conn, buf []byte) (int, error) {
	read := 0
	for read < len(buf) {
		n, err := nc.Read(buf[read:])
		if err != nil {
			return read, err
		}
		read += n
	}
	return read, nil
}

func readRemainingLength(nc net.Conn) (uint32, error) {
	var value uint32
	mult := uint32(1)
	var b [1]byte
	for i := 0; i < 4; i++ {
		if _, err := readFull(nc, b[:]); err != nil {
			return 0, err
		}
		value += uint32(b[0]&0x7F) * mult
		mult *= 128
		if b[0]&0x80 == 0 {
			return value, nil
		}
	}
	return 0, packet.ErrMalformedVariableByteInteger
}
