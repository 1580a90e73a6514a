package packet

// Connect is the CONNECT packet payload: the first packet a client sends
// after opening the transport, and the only one that bypasses the
// connected-session gate.
type Connect struct {
	Version        byte // 3 or 4 (MQTT 3.1 / 3.1.1)
	CleanSession   bool
	KeepAlive      uint16
	ClientID       string
	WillFlag       bool
	WillTopic      string
	WillMessage    []byte
	WillQoS        byte
	WillRetain     bool
	Username       string
	HasUsername    bool
	Password       string
	HasPassword    bool
}

// EncodeConnect serializes pkt into buf starting at offset 0, fixed
// header included. Returns the number of bytes written, or 0 if buf is
// too small.
func EncodeConnect(pkt *Connect, buf []byte) int {
	var vh [16]byte
	off := 0
	off = putString(vh[:], off, "MQTT")
	if off < 0 {
		return 0
	}
	if off+1 > len(vh) {
		return 0
	}
	vh[off] = pkt.Version
	off++

	flags := byte(0)
	if pkt.HasUsername {
		flags |= 0x80
	}
	if pkt.HasPassword {
		flags |= 0x40
	}
	if pkt.WillFlag {
		flags |= 0x04
		if pkt.WillRetain {
			flags |= 0x20
		}
		flags |= (pkt.WillQoS & 0x03) << 3
	}
	if pkt.CleanSession {
		flags |= 0x02
	}
	if off+1 > len(vh) {
		return 0
	}
	vh[off] = flags
	off++
	off = putUint16(vh[:], off, pkt.KeepAlive)
	if off < 0 {
		return 0
	}

	plLen := 2 + len(pkt.ClientID)
	if pkt.WillFlag {
		plLen += 2 + len(pkt.WillTopic) + 2 + len(pkt.WillMessage)
	}
	if pkt.HasUsername {
		plLen += 2 + len(pkt.Username)
	}
	if pkt.HasPassword {
		plLen += 2 + len(pkt.Password)
	}
	remaining := uint32(off + plLen)

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
	buf[w] = EncodeFlags(0x1, false, 0, false)
	w++
	w += copy(buf[w:], lenBuf[:n])
	w += copy(buf[w:], vh[:off])

	w2 := putString(buf, w, pkt.ClientID)
	if w2 < 0 {
		return 0
	}
	w = w2
	if pkt.WillFlag {
		if w = putString(buf, w, pkt.WillTopic); w < 0 {
			return 0
		}
		if w = putBytes(buf, w, pkt.WillMessage); w < 0 {
			return 0
		}
	}
	if pkt.HasUsername {
		if w = putString(buf, w, pkt.Username); w < 0 {
			return 0
		}
	}
	if pkt.HasPassword {
		if w = putString(buf, w, pkt.Password); w < 0 {
			return 0
		}
	}
	return w
}

// DecodeConnect parses a CONNECT variable header + payload out of
// payload (the bytes after the fixed header). Used by the reference
// test broker; the embedded client never decodes its own CONNECT.
func DecodeConnect(payload []byte) (*Connect, error) {
	name, off, err := getString(payload, 0)
	if err != nil || name != "MQTT" {
		return nil, ErrMalformedPacket
	}
	if off+1 > len(payload) {
		return nil, ErrMalformedPacket
	}
	version := payload[off]
	off++
	if off+1 > len(payload) {
		return nil, ErrMalformedPacket
	}
	flags := payload[off]
	off++
	keepAlive, off, err := getUint16(payload, off)
	if err != nil {
		return nil, err
	}
	pkt := &Connect{
		Version:      version,
		CleanSession: flags&0x02 != 0,
		KeepAlive:    keepAlive,
		WillFlag:     flags&0x04 != 0,
		WillQoS:      (flags & 0x18) >> 3,
		WillRetain:   flags&0x20 != 0,
		HasUsername:  flags&0x80 != 0,
		HasPassword:  flags&0x40 != 0,
	}
	pkt.ClientID, off, err = getString(payload, off)
	if err != nil {
		return nil, err
	}
	if pkt.WillFlag {
		if pkt.WillTopic, off, err = getString(payload, off); err != nil {
			return nil, err
		}
		var wm []byte
		if wm, off, err = getBytes(payload, off); err != nil {
			return nil, err
		}
		pkt.WillMessage = wm
	}
	if pkt.HasUsername {
		if pkt.Username, off, err = getString(payload, off); err != nil {
			return nil, err
		}
	}
	if pkt.HasPassword {
		if pkt.Password, off, err = getString(payload, off); err != nil {
			return nil, err
		}
	}
	return pkt, nil
}
