package testbroker

import (
	"sync"

	"github.com/golang-io/embedded-mqtt/packet"
)

// inflight holds QoS 2 PUBLISH messages between PUBREC and PUBREL, the
// same role InFight plays for the production broker this package is
// modeled on.
type inflight struct {
	mu   sync.Mutex
	maps map[uint16]*packet.Message
}

func newInflight() *inflight {
	return &inflight{maps: make(map[uint16]*packet.Message)}
}

func (i *inflight) put(msg *packet.Message) {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.maps[msg.PacketID] = msg
}

func (i *inflight) take(id uint16) (*packet.Message, bool) {
	i.mu.Lock()
	defer i.mu.Unlock()
	msg, ok := i.maps[id]
	if ok {
		delete(i.maps, id)
	}
	return msg, ok
}
