package mqtt

import "testing"

type fakeTransport struct{}

func (fakeTransport) Connect(host string, port int) error            { return nil }
func (fakeTransport) Read(buf []byte, deadlineMS uint32) (int, error) { return 0, nil }
func (fakeTransport) Write(buf []byte, deadlineMS uint32) (int, error) {
	return len(buf), nil
}
func (fakeTransport) Disconnect() error { return nil }

func TestNewAssignsClientID(t *testing.T) {
	c := New(fakeTransport{})
	if c.opts.ClientID == "" {
		t.Error("New did not assign a client ID")
	}
}

func TestNewHonorsWithClientID(t *testing.T) {
	c := New(fakeTransport{}, WithClientID("fixed-id"))
	if c.opts.ClientID != "fixed-id" {
		t.Errorf("ClientID = %q, want %q", c.opts.ClientID, "fixed-id")
	}
}

func TestNextIDWraps(t *testing.T) {
	c := New(fakeTransport{})
	c.nextPacketID = 65535
	if id := c.nextID(); id != 65535 {
		t.Fatalf("nextID() = %d, want 65535", id)
	}
	if id := c.nextID(); id != 1 {
		t.Fatalf("nextID() after wraparound = %d, want 1", id)
	}
}

func TestNextIDNeverZero(t *testing.T) {
	c := New(fakeTransport{})
	seen := make(map[uint16]bool)
	for i := 0; i < 70000; i++ {
		id := c.nextID()
		if id == 0 {
			t.Fatal("nextID returned 0")
		}
		seen[id] = true
	}
}

func TestIsConnectedInitiallyFalse(t *testing.T) {
	c := New(fakeTransport{})
	if c.IsConnected() {
		t.Error("a freshly constructed Client must not report connected")
	}
}

func TestPublishWithoutConnectFails(t *testing.T) {
	c := New(fakeTransport{})
	if err := c.Publish("a/b", []byte("x"), 0, false); err != ErrNotConnected {
		t.Errorf("Publish before Connect: err = %v, want ErrNotConnected", err)
	}
}

func TestSubscribeWithoutConnectFails(t *testing.T) {
	c := New(fakeTransport{})
	if err := c.Subscribe("a/b", 0, nil); err != ErrNotConnected {
		t.Errorf("Subscribe before Connect: err = %v, want ErrNotConnected", err)
	}
}
