package packet

import "testing"

func TestEncodeDisconnect(t *testing.T) {
	buf := make([]byte, 2)
	n := EncodeDisconnect(buf)
	if n != 2 {
		t.Fatalf("EncodeDisconnect returned %d, want 2", n)
	}
	if buf[0] != 0xE0 || buf[1] != 0x00 {
		t.Errorf("got %x, want [e0 00]", buf[:n])
	}
}
