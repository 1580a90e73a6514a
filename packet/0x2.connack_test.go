package packet

import "testing"

func TestEncodeDecodeConnack(t *testing.T) {
	pkt := &Connack{SessionPresent: true, ReturnCode: ConnackAccepted}
	buf := make([]byte, 4)
	n := EncodeConnack(pkt, buf)
	if n != 4 {
		t.Fatalf("EncodeConnack returned %d, want 4", n)
	}
	got, err := DecodeConnack(buf[2:n])
	if err != nil {
		t.Fatalf("DecodeConnack: %v", err)
	}
	if !got.SessionPresent || got.ReturnCode != ConnackAccepted {
		t.Errorf("roundtrip mismatch: %+v", got)
	}
}

func TestDecodeConnackRefused(t *testing.T) {
	buf := []byte{0x00, byte(ConnackNotAuthorized)}
	got, err := DecodeConnack(buf)
	if err != nil {
		t.Fatalf("DecodeConnack: %v", err)
	}
	if got.ReturnCode != ConnackNotAuthorized {
		t.Errorf("ReturnCode = %v, want %v", got.ReturnCode, ConnackNotAuthorized)
	}
}
