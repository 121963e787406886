// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package app

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/relabs-tech/imu_subscriber/internal/config"
	"github.com/relabs-tech/imu_subscriber/internal/output"
	"github.com/relabs-tech/imu_subscriber/internal/stream"
	"github.com/relabs-tech/imu_subscriber/internal/transport"
)

// RunSubscriber connects to the configured source, decodes every IMU
// sample it delivers and prints it; when MQTT_BROKER is set the samples
// are also republished. Returns on SIGINT/SIGTERM.
func RunSubscriber() error {
	cfg := config.Get()
	if cfg == nil {
		return fmt.Errorf("config not initialized")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	sinks := []output.Sink{output.NewConsoleSink(os.Stdout)}

	if cfg.MQTTBroker != "" {
		opts := mqtt.NewClientOptions().
			AddBroker(cfg.MQTTBroker).
			SetClientID(cfg.MQTTClientIDSubscribe)

		client := mqtt.NewClient(opts)
		if token := client.Connect(); token.Wait() && token.Error() != nil {
			return fmt.Errorf("MQTT connect: %w", token.Error())
		}
		defer client.Disconnect(250)

		log.Printf("subscriber: connected to MQTT broker at %s, publishing under %s", cfg.MQTTBroker, cfg.TopicIMUPrefix)
		sinks = append(sinks, output.NewMQTTSink(client, cfg.TopicIMUPrefix))
	}

	src := newSource(cfg)
	events := make(chan transport.Event, 16)
	srcErr := make(chan error, 1)
	go func() {
		srcErr <- src.Run(ctx, events)
		close(events)
	}()

	pipeline := NewPipeline(stream.NewProcessor(), sinks...)
	if err := pipeline.Consume(ctx, events); err != nil {
		return err
	}

	st := pipeline.Stats()
	log.Printf("subscriber: shutting down (%d messages, %d samples, %d errors)", st.Messages, st.Samples, st.Errors)
	stop()
	return <-srcErr
}

func newSource(cfg *config.Config) transport.Source {
	switch cfg.Source {
	case config.SourceSerial:
		log.Printf("subscriber: reading serial log from %s", cfg.SerialPort)
		return &transport.SerialSource{PortName: cfg.SerialPort, BaudRate: uint(cfg.SerialBaudRate)}
	case config.SourceMock:
		log.Println("subscriber: using mock IMU source")
		return &transport.MockSource{
			Bus:              "MOCK",
			Device:           "imu0",
			Interval:         100 * time.Millisecond,
			FramesPerMessage: 10,
		}
	default:
		url := cfg.WebSocketURL()
		log.Printf("subscriber: connecting to %s (topic %s @ %g Hz)", url, cfg.SubscribeTopic, cfg.SubscribeRateHz)
		return &transport.WSClient{
			URL:               url,
			Subscription:      transport.NewSubscription(cfg.SubscribeTopic, cfg.SubscribeRateHz),
			ReconnectInterval: cfg.Reconnect(),
		}
	}
}
