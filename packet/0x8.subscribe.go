package packet

// Subscribe is a SUBSCRIBE packet carrying exactly one topic filter.
// The engine issues one SUBSCRIBE per Subscribe call rather than
// batching filters, trading wire efficiency for a fixed-size variable
// header that fits the pre-allocated send buffer.
type Subscribe struct {
	PacketID    uint16
	TopicFilter string
	RequestedQoS byte
}

// EncodeSubscribe serializes pkt into buf, fixed header included. The
// flags byte on the wire is fixed at DUP=0, QoS=1, RETAIN=0 per the
// protocol [MQTT-3.8.1-1].
func EncodeSubscribe(pkt *Subscribe, buf []byte) int {
	if pkt.RequestedQoS > 2 {
		return 0
	}
	vhLen := 2 + 2 + len(pkt.TopicFilter) + 1
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
	buf[w] = EncodeFlags(0x8, false, 1, false)
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
	buf[w] = pkt.RequestedQoS
	w++
	return w
}

// DecodeSubscribe parses a SUBSCRIBE variable header + single-filter
// payload. Used by the reference test broker.
func DecodeSubscribe(payload []byte) (*Subscribe, error) {
	id, off, err := getUint16(payload, 0)
	if err != nil {
		return nil, err
	}
	filter, off, err := getString(payload, off)
	if err != nil {
		return nil, err
	}
	if off >= len(payload) {
		return nil, ErrMalformedPacket
	}
	qos := payload[off]
	if qos > 2 {
		return nil, ErrProtocolViolationQosOutOfRange
	}
	return &Subscribe{PacketID: id, TopicFilter: filter, RequestedQoS: qos}, nil
}
