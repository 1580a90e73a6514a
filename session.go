package mqtt

import (
	"github.com/golang-io/embedded-mqtt/packet"
	"github.com/golang-io/embedded-mqtt/topic"
)

// Connect opens the transport to host:port and performs the MQTT
// CONNECT/CONNACK handshake. On success the keep-alive timers are
// armed and IsConnected reports true.
func (c *Client) Connect(host string, port int) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.connected {
		return ErrAlreadyConnected
	}

	if err := c.transport.Connect(host, port); err != nil {
		return err
	}

	connect := &packet.Connect{
		Version:      c.opts.Version,
		CleanSession: c.opts.CleanSession,
		KeepAlive:    c.opts.KeepAlive,
		ClientID:     c.opts.ClientID,
		WillFlag:     c.opts.hasWill,
		WillTopic:    c.opts.WillTopic,
		WillMessage:  c.opts.WillMessage,
		WillQoS:      c.opts.WillQoS,
		WillRetain:   c.opts.WillRetain,
		HasUsername:  c.opts.hasUsername,
		Username:     c.opts.Username,
		HasPassword:  c.opts.hasPassword,
		Password:     c.opts.Password,
	}
	n := packet.EncodeConnect(connect, c.sendBuf)
	if n == 0 {
		c.transport.Disconnect()
		return ErrBufferTooSmall
	}

	deadline := &timer{}
	deadline.countdownMS(c.commandTimeoutMS)
	if err := c.writePacket(n, deadline); err != nil {
		c.transport.Disconnect()
		return err
	}

	kind, _, payload, err := c.readPacket(deadline)
	if err != nil {
		c.transport.Disconnect()
		return err
	}
	if kind != CONNACK {
		c.transport.Disconnect()
		return ErrUnexpectedPacket
	}
	ack, err := packet.DecodeConnack(payload)
	if err != nil {
		c.transport.Disconnect()
		return err
	}
	if ack.ReturnCode != packet.ConnackAccepted {
		c.transport.Disconnect()
		return &ConnectError{Code: ack.ReturnCode}
	}

	if c.connected {
		c.stat.Reconnects.Inc()
	}
	c.connected = true
	c.keepAliveMS = uint32(c.opts.KeepAlive) * 1000
	if c.keepAliveMS > 0 {
		c.pingTimer.countdownMS(c.keepAliveMS)
	}
	c.pingOutstanding = false
	return nil
}

// ConnectError reports a non-accepting CONNACK return code.
type ConnectError struct {
	Code packet.ConnackCode
}

func (e *ConnectError) Error() string {
	return "mqtt: connect refused: " + e.Code.String()
}

// Publish sends an application message. For QoS 0 it returns once the
// PUBLISH is written; for QoS 1/2 it blocks, under the session's
// command timeout, until the matching PUBACK (QoS 1) or PUBCOMP (QoS
// 2) is received.
func (c *Client) Publish(topicName string, payload []byte, qos byte, retain bool) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.connected {
		return ErrNotConnected
	}
	if qos > 2 {
		return packet.ErrProtocolViolationQosOutOfRange
	}

	msg := &packet.Message{Topic: topicName, Payload: payload, QoS: qos, Retained: retain}
	if qos > 0 {
		msg.PacketID = c.nextID()
	}
	n := packet.EncodePublish(msg, c.sendBuf)
	if n == 0 {
		return ErrBufferTooSmall
	}

	deadline := &timer{}
	deadline.countdownMS(c.commandTimeoutMS)
	if err := c.writePacket(n, deadline); err != nil {
		c.connected = false
		return err
	}
	c.stat.PublishByQoS.WithLabelValues(qosLabel(qos)).Inc()

	if qos == 0 {
		return nil
	}

	want := PUBACK
	if qos == 2 {
		want = PUBREC
	}
	return c.waitForAck(msg.PacketID, want, qos, deadline)
}

// waitForAck drives the QoS 1/2 acknowledgement handshake. For QoS 1 a
// single matching PUBACK completes it. For QoS 2 it waits for PUBREC,
// replies with PUBREL, then waits for PUBCOMP — mirroring the two
// round trips MQTTPublish performs for QoS 2 in the C reference.
func (c *Client) waitForAck(id uint16, want byte, qos byte, deadline *timer) error {
	for {
		kind, _, payload, err := c.readPacket(deadline)
		if err != nil {
			c.connected = false
			return err
		}
		if kind == 0 && payload == nil {
			if deadline.expired() {
				return ErrTimeout
			}
			continue
		}
		if kind == PINGRESP {
			c.pingOutstanding = false
			continue
		}
		if kind != want {
			continue
		}
		ack, err := packet.DecodeAck(payload)
		if err != nil {
			return err
		}
		if ack.PacketID != id {
			continue
		}
		if kind == PUBACK || kind == PUBCOMP {
			return nil
		}
		// kind == PUBREC: send PUBREL, then wait for PUBCOMP.
		n := packet.EncodeAck(PUBREL, id, c.sendBuf)
		if n == 0 {
			return ErrBufferTooSmall
		}
		if err := c.writePacket(n, deadline); err != nil {
			c.connected = false
			return err
		}
		want = PUBCOMP
	}
}

// Subscribe registers a topic filter with the broker and, on success,
// installs h as the handler for messages matching it. It blocks for
// the matching SUBACK.
func (c *Client) Subscribe(filter string, qos byte, h MessageHandler) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.connected {
		return ErrNotConnected
	}
	if err := c.handlers.register(filter, h); err != nil {
		return err
	}

	id := c.nextID()
	sub := &packet.Subscribe{PacketID: id, TopicFilter: filter, RequestedQoS: qos}
	n := packet.EncodeSubscribe(sub, c.sendBuf)
	if n == 0 {
		c.handlers.unregister(filter)
		return ErrBufferTooSmall
	}

	deadline := &timer{}
	deadline.countdownMS(c.commandTimeoutMS)
	if err := c.writePacket(n, deadline); err != nil {
		c.handlers.unregister(filter)
		c.connected = false
		return err
	}

	for {
		kind, _, payload, err := c.readPacket(deadline)
		if err != nil {
			c.handlers.unregister(filter)
			c.connected = false
			return err
		}
		if kind == 0 && payload == nil {
			if deadline.expired() {
				c.handlers.unregister(filter)
				return ErrTimeout
			}
			continue
		}
		if kind == PINGRESP {
			c.pingOutstanding = false
			continue
		}
		if kind != SUBACK {
			continue
		}
		ack, err := packet.DecodeSuback(payload)
		if err != nil {
			c.handlers.unregister(filter)
			return err
		}
		if ack.PacketID != id {
			continue
		}
		if ack.ReturnCode == packet.SubackFailure {
			c.handlers.unregister(filter)
			return ErrUnexpectedPacket
		}
		return nil
	}
}

// Unsubscribe removes a topic filter from the broker and from the
// local handler table. It blocks for the matching UNSUBACK. The local
// handler is removed whatever the outcome, including when the command
// fails.
func (c *Client) Unsubscribe(filter string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	defer c.handlers.unregister(filter)

	if !c.connected {
		return ErrNotConnected
	}

	id := c.nextID()
	unsub := &packet.Unsubscribe{PacketID: id, TopicFilter: filter}
	n := packet.EncodeUnsubscribe(unsub, c.sendBuf)
	if n == 0 {
		return ErrBufferTooSmall
	}

	deadline := &timer{}
	deadline.countdownMS(c.commandTimeoutMS)
	if err := c.writePacket(n, deadline); err != nil {
		c.connected = false
		return err
	}

	for {
		kind, _, payload, err := c.readPacket(deadline)
		if err != nil {
			c.connected = false
			return err
		}
		if kind == 0 && payload == nil {
			if deadline.expired() {
				return ErrTimeout
			}
			continue
		}
		if kind == PINGRESP {
			c.pingOutstanding = false
			continue
		}
		if kind != UNSUBACK {
			continue
		}
		ack, err := packet.DecodeUnsuback(payload)
		if err != nil {
			return err
		}
		if ack.PacketID != id {
			continue
		}
		return nil
	}
}

// Disconnect sends DISCONNECT and closes the transport. It is
// idempotent: calling it when not connected simply closes the
// transport and clears state.
func (c *Client) Disconnect() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.connected {
		if n := packet.EncodeDisconnect(c.sendBuf); n > 0 {
			deadline := &timer{}
			deadline.countdownMS(c.commandTimeoutMS)
			c.writePacket(n, deadline)
		}
	}
	c.connected = false
	c.handlers.clear()
	return c.transport.Disconnect()
}

// Yield gives the session engine a chance to read and dispatch any
// inbound packet and to service the keep-alive timer, waiting up to
// timeoutMS for something to do. Call it periodically from the
// application's main loop; each call runs one pass of cycle, so at most
// one inbound packet is read and handled per call.
func (c *Client) Yield(timeoutMS uint32) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.cycle(timeoutMS)
}

// cycle runs one iteration of the read/dispatch/keep-alive loop. It
// assumes the caller already holds mu.
func (c *Client) cycle(timeoutMS uint32) error {
	if !c.connected {
		return ErrNotConnected
	}

	if err := c.keepalive(); err != nil {
		c.connected = false
		return err
	}

	deadline := &timer{}
	deadline.countdownMS(timeoutMS)
	kind, headerByte, payload, err := c.readPacket(deadline)
	if err != nil {
		c.connected = false
		return err
	}
	if kind == 0 && payload == nil {
		return nil
	}

	switch kind {
	case PUBLISH:
		_, dup, qos, retain := packet.DecodeFlags(headerByte)
		msg, derr := packet.DecodePublish(dup, qos, retain, payload)
		if derr != nil {
			return derr
		}
		c.deliver(msg)
	case PINGRESP:
		c.pingOutstanding = false
	case PUBREC:
		ack, derr := packet.DecodeAck(payload)
		if derr == nil {
			n := packet.EncodeAck(PUBREL, ack.PacketID, c.sendBuf)
			if n > 0 {
				c.writePacket(n, deadline)
			}
		}
	}
	return nil
}

// deliver routes an inbound PUBLISH to the handler table and, for QoS
// 1/2, sends the matching acknowledgement. It runs with mu held, so a
// MessageHandler must never call back into this Client.
func (c *Client) deliver(msg *packet.Message) {
	c.handlers.dispatch(msg, topic.Match)

	deadline := &timer{}
	deadline.countdownMS(c.commandTimeoutMS)
	switch msg.QoS {
	case 1:
		n := packet.EncodeAck(PUBACK, msg.PacketID, c.sendBuf)
		if n > 0 {
			c.writePacket(n, deadline)
		}
	case 2:
		n := packet.EncodeAck(PUBREC, msg.PacketID, c.sendBuf)
		if n > 0 {
			c.writePacket(n, deadline)
		}
	}
}

// keepalive sends PINGREQ once the keep-alive interval has elapsed
// since the last successful write and no earlier PINGREQ is still
// unanswered, and declares the connection lost if
// a prior PINGREQ went unanswered for a full command-timeout period —
// the same two checks, and the same constants, as the C reference's
// keepalive function.
func (c *Client) keepalive() error {
	if c.keepAliveMS == 0 {
		return nil
	}
	if c.pingOutstanding && c.pingrespTimer.expired() {
		return ErrConnectionLost
	}
	if !c.pingTimer.expired() || c.pingOutstanding {
		return nil
	}

	n := packet.EncodePingreq(c.sendBuf)
	if n == 0 {
		return ErrBufferTooSmall
	}
	deadline := &timer{}
	deadline.countdownMS(1000)
	if err := c.writePacket(n, deadline); err != nil {
		return err
	}
	c.pingOutstanding = true
	c.pingrespTimer.countdownMS(c.commandTimeoutMS)
	return nil
}

func qosLabel(qos byte) string {
	switch qos {
	case 0:
		return "0"
	case 1:
		return "1"
	case 2:
		return "2"
	default:
		return "invalid"
	}
}
