package mqtt

import (
	"testing"

	"github.com/golang-io/embedded-mqtt/packet"
	"github.com/golang-io/embedded-mqtt/topic"
)

func TestHandlerTableRegisterAndDispatch(t *testing.T) {
	var ht handlerTable
	got := ""
	if err := ht.register("a/+", func(msg *packet.Message) { got = msg.Topic }); err != nil {
		t.Fatalf("register: %v", err)
	}
	msg := &packet.Message{Topic: "a/b"}
	if !ht.dispatch(msg, topic.Match) {
		t.Fatal("dispatch reported no delivery")
	}
	if got != "a/b" {
		t.Errorf("handler saw topic %q, want a/b", got)
	}
}

func TestHandlerTableReRegisterReusesSlot(t *testing.T) {
	var ht handlerTable
	ht.register("x", func(*packet.Message) {})
	ht.register("x", func(*packet.Message) {})
	used := 0
	for _, s := range ht.slots {
		if s.used {
			used++
		}
	}
	if used != 1 {
		t.Errorf("re-registering the same filter used %d slots, want 1", used)
	}
}

func TestHandlerTableFull(t *testing.T) {
	var ht handlerTable
	for i := 0; i < MaxMessageHandlers; i++ {
		filter := string(rune('a' + i))
		if err := ht.register(filter, func(*packet.Message) {}); err != nil {
			t.Fatalf("register %d: %v", i, err)
		}
	}
	if err := ht.register("overflow", func(*packet.Message) {}); err != ErrHandlerTableFull {
		t.Errorf("register on a full table: err = %v, want ErrHandlerTableFull", err)
	}
}

func TestHandlerTableFallback(t *testing.T) {
	var ht handlerTable
	called := false
	ht.setDefault(func(*packet.Message) { called = true })
	ht.dispatch(&packet.Message{Topic: "nowhere"}, topic.Match)
	if !called {
		t.Error("fallback handler was not invoked for an unmatched topic")
	}
}

func TestHandlerTableUnregister(t *testing.T) {
	var ht handlerTable
	called := false
	ht.register("a/b", func(*packet.Message) { called = true })
	ht.unregister("a/b")
	ht.dispatch(&packet.Message{Topic: "a/b"}, topic.Match)
	if called {
		t.Error("handler fired after unregister")
	}
}
