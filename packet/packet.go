// Package packet implements MQTT 3.1.1 control-packet encode/decode.
//
// Every serializer writes a whole packet, fixed header included, into a
// caller-supplied []byte starting at index 0 and returns the number of
// bytes written, or 0 if the buffer is too small — it never grows or
// reallocates the buffer. Every deserializer reads the bytes after the
// fixed header from a caller-supplied []byte (already framed by the
// session engine's readPacket) and returns the decoded value, or an
// error on malformed input. No function in this package performs
// network I/O.
package packet

// Message is an inbound or outbound application message. For inbound
// PUBLISH, Topic and Payload point into the client's receive buffer and
// are valid only for the duration of the dispatching callback.
type Message struct {
	Topic    string
	Payload  []byte
	QoS      byte
	Retained bool
	Dup      bool
	PacketID uint16
}
