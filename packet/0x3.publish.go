package packet

// EncodePublish serializes an application message as a PUBLISH packet
// into buf, fixed header included. PacketID is only written when qos >
// 0; callers must assign one beforehand for QoS 1/2.
func EncodePublish(msg *Message, buf []byte) int {
	if msg.QoS > 2 {
		return 0
	}
	vhLen := 2 + len(msg.Topic)
	if msg.QoS > 0 {
		vhLen += 2
	}
	remaining := uint32(vhLen + len(msg.Payload))

	var lenBuf [4]byte
	n := EncodeLength(remaining, lenBuf[:])
	if n == 0 {
		return 0
	}
	total := 1 + n + int(remaining)
	if total > len(buf) {
		return 0
	}

	w := 0
	buf[w] = EncodeFlags(0x3, msg.Dup, msg.QoS, msg.Retained)
	w++
	w += copy(buf[w:], lenBuf[:n])
	w2 := putString(buf, w, msg.Topic)
	if w2 < 0 {
		return 0
	}
	w = w2
	if msg.QoS > 0 {
		if w = putUint16(buf, w, msg.PacketID); w < 0 {
			return 0
		}
	}
	w += copy(buf[w:], msg.Payload)
	return w
}

// DecodePublish parses a PUBLISH variable header + payload out of
// payload, using the flags already extracted from the fixed header by
// the session engine's readPacket. The returned Message's Topic and
// Payload slices alias payload — they are only valid until the caller's
// receive buffer is reused.
func DecodePublish(dup bool, qos byte, retain bool, payload []byte) (*Message, error) {
	topic, off, err := getString(payload, 0)
	if err != nil {
		return nil, err
	}
	msg := &Message{Topic: topic, QoS: qos, Retained: retain, Dup: dup}
	if qos > 0 {
		msg.PacketID, off, err = getUint16(payload, off)
		if err != nil {
			return nil, err
		}
	}
	if off > len(payload) {
		return nil, ErrMalformedPacket
	}
	msg.Payload = payload[off:]
	return msg, nil
}
