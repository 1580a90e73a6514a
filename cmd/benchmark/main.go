// Command benchmark drives maxConn embedded clients against a broker
// concurrently, each publishing to its own topic once a second while
// subscribed to a wildcard filter, to characterize Connect/Publish/
// Yield under load. main2.go, left out of this build by an ignore
// build tag and run on its own with go run, drives the same workload
// through eclipse/paho.mqtt.golang for a side-by-side comparison.
package main

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/golang-io/embedded-mqtt"
	"github.com/golang-io/embedded-mqtt/packet"
	"golang.org/x/sync/errgroup"
)

var maxConn = 100

func main() {
	group, ctx := errgroup.WithContext(context.Background())
	for i := 0; i < maxConn; i++ {
		i := i
		group.Go(func() error {
			return embeddedStart(ctx, i)
		})
	}
	if err := group.Wait(); err != nil {
		log.Fatal(err)
	}
}

func embeddedStart(ctx context.Context, i int) error {
	c := mqtt.New(mqtt.NewTCPTransport(), mqtt.WithClientID(fmt.Sprintf("bench-%d", i)))
	if err := c.Connect("127.0.0.1", 1883); err != nil {
		return fmt.Errorf("connect %d: %w", i, err)
	}
	defer c.Disconnect()

	err := c.Subscribe("+", 0, func(msg *packet.Message) {
		log.Printf("client=%d topic=%s payload=%s", i, msg.Topic, msg.Payload)
	})
	if err != nil {
		return fmt.Errorf("subscribe %d: %w", i, err)
	}

	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if err := c.Publish(fmt.Sprintf("topic-%d", i), []byte("hello world"), 0, false); err != nil {
				log.Printf("publish %d: %v", i, err)
			}
		default:
			if err := c.Yield(100); err != nil {
				return fmt.Errorf("yield %d: %w", i, err)
			}
		}
	}
}
