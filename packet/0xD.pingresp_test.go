package packet

import "testing"

func TestEncodePingrespAndIsPingresp(t *testing.T) {
	buf := make([]byte, 2)
	n := EncodePingresp(buf)
	if n != 2 {
		t.Fatalf("EncodePingresp returned %d, want 2", n)
	}
	if !IsPingresp(buf[0]) {
		t.Errorf("IsPingresp(%x) = false, want true", buf[0])
	}
	if IsPingresp(0xC0) {
		t.Errorf("IsPingresp(PINGREQ header) = true, want false")
	}
}
