package mqtt

import "github.com/golang-io/embedded-mqtt/packet"

// MaxMessageHandlers bounds the handler table at compile time so the
// Client struct carries no slice or map for subscriptions — just a
// fixed array, matching the spec's no-dynamic-allocation rule for the
// protocol engine.
const MaxMessageHandlers = 8

// MessageHandler is invoked with a message that matched the
// TopicFilter it was registered under. It runs on the same goroutine
// that called Yield — it must not call back into the Client that
// invoked it (see the non-reentrant mutex note on Client). A PUBLISH
// that arrives while Publish, Subscribe or Unsubscribe waits for its
// acknowledgement is not dispatched.
type MessageHandler func(msg *packet.Message)

type handlerSlot struct {
	topicFilter string
	handler     MessageHandler
	used        bool
}

// handlerTable is the fixed-size, slot-ordered subscription table the
// C reference keeps as messageHandlers[MAX_MESSAGE_HANDLERS]. Slots
// are scanned in order on every inbound PUBLISH; there is no hashing
// or indexing beyond linear scan, which is fine at this table's size.
type handlerTable struct {
	slots   [MaxMessageHandlers]handlerSlot
	fallback MessageHandler
}

// register claims the first free slot for filter. It overwrites an
// existing slot for the same filter so re-subscribing refreshes the
// handler rather than consuming a second slot.
func (t *handlerTable) register(filter string, h MessageHandler) error {
	free := -1
	for i := range t.slots {
		if t.slots[i].used && t.slots[i].topicFilter == filter {
			t.slots[i].handler = h
			return nil
		}
		if !t.slots[i].used && free < 0 {
			free = i
		}
	}
	if free < 0 {
		return ErrHandlerTableFull
	}
	t.slots[free] = handlerSlot{topicFilter: filter, handler: h, used: true}
	return nil
}

// unregister frees the slot for filter, if any. It never errors: asking
// to unsubscribe from an unknown filter is a no-op, matching the C
// reference's unconditional clear-on-failure-path behavior.
func (t *handlerTable) unregister(filter string) {
	for i := range t.slots {
		if t.slots[i].used && t.slots[i].topicFilter == filter {
			t.slots[i] = handlerSlot{}
		}
	}
}

func (t *handlerTable) clear() {
	for i := range t.slots {
		t.slots[i] = handlerSlot{}
	}
}

func (t *handlerTable) setDefault(h MessageHandler) {
	t.fallback = h
}

// dispatch runs every handler whose filter matches msg.Topic, in slot
// order, falling back to the default handler if nothing matched. It
// mirrors deliverMessage's semantics: an exact-filter match also goes
// through topic.Match, since an exact topic is trivially its own match.
func (t *handlerTable) dispatch(msg *packet.Message, matched func(filter, topicName string) bool) bool {
	delivered := false
	for i := range t.slots {
		if !t.slots[i].used {
			continue
		}
		if matched(t.slots[i].topicFilter, msg.Topic) {
			if t.slots[i].handler != nil {
				t.slots[i].handler(msg)
				delivered = true
			}
		}
	}
	if !delivered && t.fallback != nil {
		t.fallback(msg)
		delivered = true
	}
	return delivered
}
