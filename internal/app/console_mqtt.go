package app

import (
	"encoding/json"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/relabs-tech/imu_subscriber/internal/config"
	"github.com/relabs-tech/imu_subscriber/internal/output"
	"github.com/relabs-tech/imu_subscriber/internal/stream"
)

// RunConsoleMQTT prints every sample republished by the subscriber.
func RunConsoleMQTT() error {
	cfg := config.Get()
	if cfg == nil {
		return fmt.Errorf("config not initialized")
	}
	if cfg.MQTTBroker == "" {
		return fmt.Errorf("MQTT_BROKER is required for the console")
	}

	opts := mqtt.NewClientOptions().
		AddBroker(cfg.MQTTBroker).
		SetClientID(cfg.MQTTClientIDConsole)

	client := mqtt.NewClient(opts)
	if token := client.Connect(); token.Wait() && token.Error() != nil {
		return token.Error()
	}
	log.Printf("console: connected to MQTT broker at %s", cfg.MQTTBroker)

	sink := output.NewConsoleSink(os.Stdout)
	sink.ShowStream = true

	topic := output.Wildcard(cfg.TopicIMUPrefix)
	token := client.Subscribe(topic, 0, sampleHandler("console", func(s stream.DeviceSample) {
		if err := sink.Emit(s); err != nil {
			log.Printf("console: write error: %v", err)
		}
	}))
	token.Wait()
	if token.Error() != nil {
		return token.Error()
	}
	log.Printf("console: subscribed to %s", topic)

	// Wait for Ctrl+C
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	log.Println("console: shutting down")
	client.Disconnect(250)
	return nil
}

// sampleHandler decodes a republished DeviceSample and passes it to fn.
func sampleHandler(component string, fn func(stream.DeviceSample)) mqtt.MessageHandler {
	return func(_ mqtt.Client, msg mqtt.Message) {
		var s stream.DeviceSample
		if err := json.Unmarshal(msg.Payload(), &s); err != nil {
			log.Printf("%s: sample unmarshal error on %s: %v", component, msg.Topic(), err)
			return
		}
		fn(s)
	}
}
