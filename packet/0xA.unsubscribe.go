package packet

// Unsubscribe is an UNSUBSCRIBE packet carrying exactly one topic
// filter, mirroring Subscribe's one-filter-per-call shape.
type Unsubscribe struct {
	PacketID    uint16
	TopicFilter string
}

// EncodeUnsubscribe serializes pkt into buf, fixed header included.
// Flags are fixed at DUP=0, QoS=1, RETAIN=0 [MQTT-3.10.1-1].
func EncodeUnsubscribe(pkt *Unsubscribe, buf []byte) int {
	vhLen := 2 + 2 + len(pkt.TopicFilter)
	remaining := uint32(vhLen)

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
	buf[w] = EncodeFlags(0xA, false, 1, false)
	w++
	w += copy(buf[w:], lenBuf[:n])
	w = putUint16(buf, w, pkt.PacketID)
	if w < 0 {
		return 0
	}
	w = putString(buf, w, pkt.TopicFilter)
	if w < 0 {
		return 0
	}
	return w
}

// DecodeUnsubscribe parses an UNSUBSCRIBE variable header + single
// filter payload. Used by the reference test broker.
func DecodeUnsubscribe(payload []byte) (*Unsubscribe, error) {
	id, off, err := getUint16(payload, 0)
	if err != nil {
		return nil, err
	}
	filter, _, err := getString(payload, off)
	if err != nil {
		return nil, err
	}
	return &Unsubscribe{PacketID: id, TopicFilter: filter}, nil
}
