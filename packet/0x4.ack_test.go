package packet

import "testing"

func TestEncodeDecodeAck(t *testing.T) {
	cases := []struct {
		kind byte
		want byte
	}{
		{0x4, 0x40}, // PUBACK
		{0x5, 0x50}, // PUBREC
		{0x6, 0x62}, // PUBREL, reserved flags 0010
		{0x7, 0x70}, // PUBCOMP
	}
	for _, c := range cases {
		buf := make([]byte, 4)
		n := EncodeAck(c.kind, 42, buf)
		if n != 4 {
			t.Fatalf("kind %x: EncodeAck returned %d, want 4", c.kind, n)
		}
		if buf[0] != c.want {
			t.Errorf("kind %x: header byte = %#x, want %#x", c.kind, buf[0], c.want)
		}
		ack, err := DecodeAck(buf[2:n])
		if err != nil {
			t.Fatalf("kind %x: DecodeAck: %v", c.kind, err)
		}
		if ack.PacketID != 42 {
			t.Errorf("kind %x: PacketID = %d, want 42", c.kind, ack.PacketID)
		}
	}
}

func TestEncodeAckBufferTooSmall(t *testing.T) {
	buf := make([]byte, 3)
	if n := EncodeAck(0x4, 1, buf); n != 0 {
		t.Errorf("EncodeAck with short buffer returned %d, want 0", n)
	}
}
