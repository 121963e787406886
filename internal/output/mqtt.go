// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package output

import (
	"encoding/json"
	"fmt"
	"strings"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/relabs-tech/imu_subscriber/internal/stream"
)

// Publisher is the part of mqtt.Client the sink needs.
type Publisher interface {
	Publish(topic string, qos byte, retained bool, payload interface{}) mqtt.Token
}

// MQTTSink republishes samples as JSON on <prefix>/<bus>/<device>.
type MQTTSink struct {
	pub    Publisher
	prefix string
}

func NewMQTTSink(pub Publisher, prefix string) *MQTTSink {
	return &MQTTSink{pub: pub, prefix: strings.TrimSuffix(prefix, "/")}
}

// Topic returns the topic samples of the given stream are published on.
func (m *MQTTSink) Topic(k stream.StreamKey) string {
	return TopicFor(m.prefix, k)
}

func (m *MQTTSink) Emit(s stream.DeviceSample) error {
	payload, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("marshal sample: %w", err)
	}

	topic := m.Topic(s.Key())
	if token := m.pub.Publish(topic, 0, false, payload); token.Wait() && token.Error() != nil {
		return fmt.Errorf("publish %s: %w", topic, token.Error())
	}
	return nil
}

// TopicFor builds <prefix>/<bus>/<device>. MQTT wildcard and separator
// characters inside identifiers are replaced with '_'.
func TopicFor(prefix string, k stream.StreamKey) string {
	return prefix + "/" + topicLevel(k.Bus) + "/" + topicLevel(k.Device)
}

// Wildcard returns the filter matching every stream under prefix.
func Wildcard(prefix string) string {
	return strings.TrimSuffix(prefix, "/") + "/#"
}

var levelReplacer = strings.NewReplacer("/", "_", "+", "_", "#", "_")

func topicLevel(s string) string {
	return levelReplacer.Replace(s)
}
