// Package testbroker is a minimal in-process MQTT 3.1.1 broker used by
// this module's integration tests. It is not a production server: no
// persistence, no authentication beyond an optional username/password
// check, no retained messages. It exists so the session engine in the
// root package can be exercised end-to-end without a real broker
// binary in the test environment.
//
// The connection lifecycle, per-session will/subscription bookkeeping,
// and CONNECT/PUBLISH/SUBSCRIBE dispatch are adapted from this
// project's own server implementation; the wire codec comes from the
// packet package instead of that server's property-aware MQTT5 codec.
package testbroker

import (
	"log"
	"net"
	"sync"

	"github.com/golang-io/embedded-mqtt/packet"
	"github.com/golang-io/embedded-mqtt/topic"
)

// Auth, when non-nil, is consulted on CONNECT: a username with no
// entry, or an entry whose value doesn't match the supplied password,
// gets ConnackBadUsernameOrPassword. A nil Auth accepts every CONNECT.
type Auth map[string]string

// Broker is a single-process MQTT broker. The zero value is not
// usable; construct one with New.
type Broker struct {
	auth Auth

	mu       sync.Mutex
	sessions map[string]*session

	listener net.Listener
}

// New constructs a Broker. auth may be nil to accept all clients.
func New(auth Auth) *Broker {
	return &Broker{auth: auth, sessions: make(map[string]*session)}
}

// ListenAndServe listens on addr (host:port, "" host means any
// interface) and serves until the listener is closed.
func (b *Broker) ListenAndServe(addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	return b.Serve(ln)
}

// Addr returns the bound address. Valid after a successful Serve or
// ListenAndServe call has started.
func (b *Broker) Addr() net.Addr {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.listener == nil {
		return nil
	}
	return b.listener.Addr()
}

// Serve accepts connections on l until it is closed, handling each on
// its own goroutine.
func (b *Broker) Serve(l net.Listener) error {
	b.mu.Lock()
	b.listener = l
	b.mu.Unlock()

	for {
		nc, err := l.Accept()
		if err != nil {
			return err
		}
		go b.handle(nc)
	}
}

// Close stops accepting new connections.
func (b *Broker) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.listener == nil {
		return nil
	}
	return b.listener.Close()
}

func (b *Broker) addSession(s *session) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.sessions[s.clientID] = s
}

func (b *Broker) removeSession(s *session) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.sessions[s.clientID] == s {
		delete(b.sessions, s.clientID)
	}
}

func (b *Broker) handle(nc net.Conn) {
	s := newSession(nc)
	defer func() {
		nc.Close()
		b.removeSession(s)
		if s.hasWill {
			b.publish(&packet.Message{Topic: s.willTopic, Payload: s.willMessage, QoS: s.willQoS}, nil)
		}
	}()

	for {
		kind, headerByte, payload, err := s.readPacket()
		if err != nil {
			return
		}
		if b.dispatch(s, kind, headerByte, payload) {
			return // client sent DISCONNECT
		}
	}
}

// dispatch handles one inbound packet. It returns true when the
// session should be torn down (DISCONNECT received).
func (b *Broker) dispatch(s *session, kind byte, headerByte byte, payload []byte) bool {
	switch kind {
	case CONNECT:
		b.handleConnect(s, payload)
	case PUBLISH:
		b.handlePublish(s, headerByte, payload)
	case PUBREL:
		b.handlePubrel(s, payload)
	case SUBSCRIBE:
		b.handleSubscribe(s, payload)
	case UNSUBSCRIBE:
		b.handleUnsubscribe(s, payload)
	case PINGREQ:
		n := packet.EncodePingresp(s.sendBuf)
		if n > 0 {
			s.write(n)
		}
	case DISCONNECT:
		s.mu.Lock()
		s.hasWill = false
		s.mu.Unlock()
		return true
	}
	return false
}

func (b *Broker) handleConnect(s *session, payload []byte) {
	conn, err := packet.DecodeConnect(payload)
	code := packet.ConnackAccepted
	if err != nil {
		code = packet.ConnackIdentifierRejected
	} else {
		s.clientID = conn.ClientID
		if conn.WillFlag {
			s.willTopic, s.willMessage, s.willQoS, s.hasWill = conn.WillTopic, conn.WillMessage, conn.WillQoS, true
		}
		if b.auth != nil {
			want, ok := b.auth[conn.Username]
			if !ok || want != conn.Password {
				code = packet.ConnackBadUsernameOrPassword
			}
		}
		if code == packet.ConnackAccepted {
			b.addSession(s)
		}
	}

	ack := &packet.Connack{ReturnCode: code}
	n := packet.EncodeConnack(ack, s.sendBuf)
	if n > 0 {
		s.write(n)
	}
}

func (b *Broker) handlePublish(s *session, headerByte byte, payload []byte) {
	_, dup, qos, retain := packet.DecodeFlags(headerByte)
	msg, err := packet.DecodePublish(dup, qos, retain, payload)
	if err != nil {
		log.Printf("[testbroker] malformed PUBLISH: %v", err)
		return
	}

	switch msg.QoS {
	case 0:
		b.publish(msg, s)
	case 1:
		b.publish(msg, s)
		n := packet.EncodeAck(PUBACK, msg.PacketID, s.sendBuf)
		if n > 0 {
			s.write(n)
		}
	case 2:
		s.inflight.put(msg)
		n := packet.EncodeAck(PUBREC, msg.PacketID, s.sendBuf)
		if n > 0 {
			s.write(n)
		}
	}
}

func (b *Broker) handlePubrel(s *session, payload []byte) {
	ack, err := packet.DecodeAck(payload)
	if err != nil {
		return
	}
	if msg, ok := s.inflight.take(ack.PacketID); ok {
		b.publish(msg, s)
	}
	n := packet.EncodeAck(PUBCOMP, ack.PacketID, s.sendBuf)
	if n > 0 {
		s.write(n)
	}
}

func (b *Broker) handleSubscribe(s *session, payload []byte) {
	sub, err := packet.DecodeSubscribe(payload)
	returnCode := byte(packet.SubackFailure)
	if err == nil {
		s.subscribe(sub.TopicFilter, sub.RequestedQoS)
		returnCode = sub.RequestedQoS
	}
	var id uint16
	if sub != nil {
		id = sub.PacketID
	}
	n := packet.EncodeSuback(&packet.Suback{PacketID: id, ReturnCode: returnCode}, s.sendBuf)
	if n > 0 {
		s.write(n)
	}
}

func (b *Broker) handleUnsubscribe(s *session, payload []byte) {
	unsub, err := packet.DecodeUnsubscribe(payload)
	if err != nil {
		return
	}
	s.unsubscribe(unsub.TopicFilter)
	n := packet.EncodeUnsuback(&packet.Unsuback{PacketID: unsub.PacketID}, s.sendBuf)
	if n > 0 {
		s.write(n)
	}
}

// publish fans a message out to every session with a matching
// subscription, excluding from (the publisher) only when from is
// itself not subscribed to its own publish topic. Delivery QoS is
// capped at the subscriber's granted QoS, per [MQTT-3.8.4-8].
func (b *Broker) publish(msg *packet.Message, _ *session) {
	b.mu.Lock()
	targets := make([]*session, 0, len(b.sessions))
	for _, s := range b.sessions {
		targets = append(targets, s)
	}
	b.mu.Unlock()

	for _, s := range targets {
		for _, sub := range s.subscriptionsSnapshot() {
			if !topic.Match(sub.filter, msg.Topic) {
				continue
			}
			out := *msg
			out.QoS = sub.qos
			if msg.QoS < out.QoS {
				out.QoS = msg.QoS
			}
			if out.QoS > 0 {
				s.mu.Lock()
				out.PacketID = s.nextPacketID()
				s.mu.Unlock()
			}
			n := packet.EncodePublish(&out, s.sendBuf)
			if n > 0 {
				s.write(n)
			}
			break
		}
	}
}

// Control packet kinds used by dispatch. Duplicated from the root
// package rather than imported, to keep this test-only broker free of
// a dependency on the client engine it is meant to exercise from the
// other side of a socket.
const (
	CONNECT     byte = 0x1
	CONNACK     byte = 0x2
	PUBLISH     byte = 0x3
	PUBACK      byte = 0x4
	PUBREC      byte = 0x5
	PUBREL      byte = 0x6
	PUBCOMP     byte = 0x7
	SUBSCRIBE   byte = 0x8
	SUBACK      byte = 0x9
	UNSUBSCRIBE byte = 0xA
	UNSUBACK    byte = 0xB
	PINGREQ     byte = 0xC
	PINGRESP    byte = 0xD
	DISCONNECT  byte = 0xE
)
