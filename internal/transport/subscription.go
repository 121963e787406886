// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package transport

import (
	"bytes"
	"encoding/json"
)

// Subscription is the control message sent once after a websocket connects.
// Field order matches what the device firmware expects on the wire.
type Subscription struct {
	CmdName string   `json:"cmdName"`
	Action  string   `json:"action"`
	PubRecs []PubRec `json:"pubRecs"`
}

// PubRec selects one publication topic.
type PubRec struct {
	Name    string `json:"name"`
	MsgID   string `json:"msgID"`
	Trigger string `json:"trigger"`
	RateHz  Hz     `json:"rateHz"`
}

// Hz is a rate that always carries a fractional part on the wire (50 → 50.0),
// the way the device's reference client sends it.
type Hz float64

func (h Hz) MarshalJSON() ([]byte, error) {
	b, err := json.Marshal(float64(h))
	if err != nil {
		return nil, err
	}
	if !bytes.ContainsAny(b, ".eE") {
		b = append(b, '.', '0')
	}
	return b, nil
}

// NewSubscription subscribes to topic, published on time or change at rateHz.
func NewSubscription(topic string, rateHz float64) Subscription {
	return Subscription{
		CmdName: "subscription",
		Action:  "update",
		PubRecs: []PubRec{
			{Name: topic, MsgID: topic, Trigger: "timeorchange", RateHz: Hz(rateHz)},
		},
	}
}

func (s Subscription) Marshal() ([]byte, error) {
	return json.Marshal(s)
}
