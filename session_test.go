package mqtt

import (
	"io"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/golang-io/embedded-mqtt/internal/testbroker"
	"github.com/golang-io/embedded-mqtt/packet"
)

func startBroker(t *testing.T) (host string, port int, stop func()) {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	b := testbroker.New(nil)
	go b.Serve(ln)

	addr := ln.Addr().(*net.TCPAddr)
	return addr.IP.String(), addr.Port, func() { ln.Close() }
}

func dial(t *testing.T, host string, port int, opts ...Option) *Client {
	t.Helper()
	c := New(NewTCPTransport(), opts...)
	if err := c.Connect(host, port); err != nil {
		t.Fatalf("Connect: %v", err)
	}
	return c
}

func TestConnectDisconnect(t *testing.T) {
	host, port, stop := startBroker(t)
	defer stop()

	c := dial(t, host, port, WithClientID("conn-test"))
	if !c.IsConnected() {
		t.Fatal("IsConnected is false after a successful Connect")
	}
	if err := c.Disconnect(); err != nil {
		t.Fatalf("Disconnect: %v", err)
	}
	if c.IsConnected() {
		t.Fatal("IsConnected is true after Disconnect")
	}
}

func TestPublishSubscribeQoS0(t *testing.T) {
	host, port, stop := startBroker(t)
	defer stop()

	sub := dial(t, host, port, WithClientID("sub-qos0"))
	defer sub.Disconnect()

	received := make(chan *packet.Message, 1)
	if err := sub.Subscribe("sensors/+", 0, func(msg *packet.Message) {
		received <- msg
	}); err != nil {
		t.Fatalf("Subscribe: %v", err)
	}

	pub := dial(t, host, port, WithClientID("pub-qos0"))
	defer pub.Disconnect()
	if err := pub.Publish("sensors/temp", []byte("21.5"), 0, false); err != nil {
		t.Fatalf("Publish: %v", err)
	}

	waitForYield(t, sub, received)
}

func TestPublishSubscribeQoS1(t *testing.T) {
	host, port, stop := startBroker(t)
	defer stop()

	sub := dial(t, host, port, WithClientID("sub-qos1"))
	defer sub.Disconnect()

	received := make(chan *packet.Message, 1)
	if err := sub.Subscribe("a/b", 1, func(msg *packet.Message) { received <- msg }); err != nil {
		t.Fatalf("Subscribe: %v", err)
	}

	pub := dial(t, host, port, WithClientID("pub-qos1"))
	defer pub.Disconnect()
	if err := pub.Publish("a/b", []byte("payload"), 1, false); err != nil {
		t.Fatalf("Publish QoS1: %v", err)
	}

	waitForYield(t, sub, received)
}

func TestPublishSubscribeQoS2(t *testing.T) {
	host, port, stop := startBroker(t)
	defer stop()

	sub := dial(t, host, port, WithClientID("sub-qos2"))
	defer sub.Disconnect()

	received := make(chan *packet.Message, 1)
	if err := sub.Subscribe("a/c", 2, func(msg *packet.Message) { received <- msg }); err != nil {
		t.Fatalf("Subscribe: %v", err)
	}

	pub := dial(t, host, port, WithClientID("pub-qos2"))
	defer pub.Disconnect()
	if err := pub.Publish("a/c", []byte("payload"), 2, false); err != nil {
		t.Fatalf("Publish QoS2: %v", err)
	}

	waitForYield(t, sub, received)
}

func TestUnsubscribeStopsDelivery(t *testing.T) {
	host, port, stop := startBroker(t)
	defer stop()

	sub := dial(t, host, port, WithClientID("unsub-test"))
	defer sub.Disconnect()

	var mu sync.Mutex
	count := 0
	sub.Subscribe("x/y", 0, func(*packet.Message) {
		mu.Lock()
		count++
		mu.Unlock()
	})
	if err := sub.Unsubscribe("x/y"); err != nil {
		t.Fatalf("Unsubscribe: %v", err)
	}

	pub := dial(t, host, port, WithClientID("unsub-pub"))
	defer pub.Disconnect()
	pub.Publish("x/y", []byte("z"), 0, false)

	sub.Yield(100)
	mu.Lock()
	defer mu.Unlock()
	if count != 0 {
		t.Errorf("handler invoked %d times after Unsubscribe, want 0", count)
	}
}

// waitForYield drives sub.Yield until either msg arrives on received or
// a bounded number of attempts pass.
func waitForYield(t *testing.T, c *Client, received chan *packet.Message) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		c.Yield(50)
		select {
		case <-received:
			return
		default:
		}
	}
	t.Fatal("message was not delivered before the test deadline")
}

// startSilentBroker accepts exactly one connection, answers its CONNECT
// with an accepting CONNACK, then reads and discards everything after
// that without ever writing a response — including PINGREQ. It exists
// to exercise the keep-alive timeout path (scenario F), which the real
// testbroker can't: testbroker always answers PINGREQ with PINGRESP.
func startSilentBroker(t *testing.T) (host string, port int, stop func()) {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	go func() {
		nc, err := ln.Accept()
		if err != nil {
			return
		}
		defer nc.Close()

		if _, err := readOnePacketPayload(nc); err != nil {
			return
		}
		ack := make([]byte, 8)
		n := packet.EncodeConnack(&packet.Connack{ReturnCode: packet.ConnackAccepted}, ack)
		if n > 0 {
			nc.Write(ack[:n])
		}

		buf := make([]byte, 256)
		for {
			if _, err := nc.Read(buf); err != nil {
				return
			}
		}
	}()

	addr := ln.Addr().(*net.TCPAddr)
	return addr.IP.String(), addr.Port, func() { ln.Close() }
}

func readOnePacketPayload(nc net.Conn) ([]byte, error) {
	var hb [1]byte
	if _, err := io.ReadFull(nc, hb[:]); err != nil {
		return nil, err
	}

	var remaining, mult uint32 = 0, 1
	var b [1]byte
	for i := 0; i < 4; i++ {
		if _, err := io.ReadFull(nc, b[:]); err != nil {
			return nil, err
		}
		remaining += uint32(b[0]&0x7F) * mult
		mult *= 128
		if b[0]&0x80 == 0 {
			break
		}
	}

	payload := make([]byte, remaining)
	if remaining > 0 {
		if _, err := io.ReadFull(nc, payload); err != nil {
			return nil, err
		}
	}
	return payload, nil
}

func TestKeepAlivePingKeepsConnectionAlive(t *testing.T) {
	host, port, stop := startBroker(t)
	defer stop()

	c := dial(t, host, port, WithClientID("keepalive-ok"), WithKeepAlive(1))
	defer c.Disconnect()

	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		if err := c.Yield(100); err != nil {
			t.Fatalf("Yield: %v", err)
		}
	}
	if !c.IsConnected() {
		t.Fatal("client reports disconnected despite the broker answering every PINGREQ")
	}
}

func TestKeepAliveTimeoutDeclaresConnectionLost(t *testing.T) {
	host, port, stop := startSilentBroker(t)
	defer stop()

	c := dial(t, host, port, WithClientID("keepalive-lost"), WithKeepAlive(1), WithCommandTimeout(300))

	deadline := time.Now().Add(3 * time.Second)
	var yieldErr error
	for time.Now().Before(deadline) {
		if yieldErr = c.Yield(100); yieldErr != nil {
			break
		}
	}
	if yieldErr != ErrConnectionLost {
		t.Fatalf("Yield error = %v, want ErrConnectionLost", yieldErr)
	}
	if c.IsConnected() {
		t.Fatal("IsConnected is true after a keep-alive timeout")
	}
}

func TestConnectRefusedBadCredentials(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	defer ln.Close()
	b := testbroker.New(testbroker.Auth{"alice": "correct-password"})
	go b.Serve(ln)

	addr := ln.Addr().(*net.TCPAddr)
	c := New(NewTCPTransport(), WithClientID("bad-creds"), WithCredentials("alice", "wrong"))
	err = c.Connect(addr.IP.String(), addr.Port)
	if err == nil {
		t.Fatal("Connect with wrong credentials succeeded")
	}
	connErr, ok := err.(*ConnectError)
	if !ok {
		t.Fatalf("err = %v (%T), want *ConnectError", err, err)
	}
	if connErr.Code != packet.ConnackBadUsernameOrPassword {
		t.Errorf("Code = %v, want ConnackBadUsernameOrPassword", connErr.Code)
	}
}
