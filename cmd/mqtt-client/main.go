// Command mqtt-client is a usage example for the embedded client: it
// connects, subscribes to a wildcard filter, and publishes a
// timestamp once a second until interrupted.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/golang-io/embedded-mqtt"
	"github.com/golang-io/embedded-mqtt/packet"
	"golang.org/x/sync/errgroup"
)

func main() {
	host := flag.String("host", "127.0.0.1", "broker host")
	port := flag.Int("port", 1883, "broker port")
	flag.Parse()

	ctx, cancel := context.WithCancel(context.Background())

	c := mqtt.New(mqtt.NewTCPTransport(), mqtt.WithClientID("mqtt-client-example"))
	if err := c.Connect(*host, *port); err != nil {
		log.Fatalf("connect: %v", err)
	}
	defer c.Disconnect()

	if err := c.Subscribe("+", 0, func(msg *packet.Message) {
		log.Printf("on: topic=%s payload=%s", msg.Topic, msg.Payload)
	}); err != nil {
		log.Fatalf("subscribe: %v", err)
	}
	if err := c.Subscribe("a/b/c", 1, func(msg *packet.Message) {
		log.Printf("on a/b/c: payload=%s", msg.Payload)
	}); err != nil {
		log.Fatalf("subscribe a/b/c: %v", err)
	}

	group, ctx := errgroup.WithContext(ctx)

	group.Go(func() error {
		for {
			select {
			case <-ctx.Done():
				return ctx.Err()
			default:
			}
			payload := []byte(time.Now().Format("2006-01-02 15:04:05"))
			if err := c.Publish("12345", payload, 0, false); err != nil {
				log.Printf("publish: %v", err)
			}
			time.Sleep(time.Second)
		}
	})

	group.Go(func() error {
		for {
			select {
			case <-ctx.Done():
				return ctx.Err()
			default:
			}
			if err := c.Yield(500); err != nil {
				return err
			}
		}
	})

	group.Go(func() error {
		defer cancel()
		ignore := make(chan os.Signal, 1)
		sign := make(chan os.Signal, 1)

		signal.Notify(ignore, syscall.SIGHUP)
		signal.Notify(sign, os.Interrupt, syscall.SIGTERM, syscall.SIGINT)

		select {
		case <-ctx.Done():
			log.Printf("ctx done")
			return ctx.Err()
		case sig := <-sign:
			return fmt.Errorf("got sign: %s", sig)
		}
	})

	if err := group.Wait(); err != nil {
		log.Printf("exiting: %v", err)
	}
}
