// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package stream

import (
	"errors"
	"fmt"

	"github.com/relabs-tech/imu_subscriber/internal/imu"
)

// StreamKey identifies one device stream.
type StreamKey struct {
	Bus    string
	Device string
}

func (k StreamKey) String() string {
	return k.Bus + "/" + k.Device
}

// DeviceSample is a decoded sample tagged with the stream it came from.
// It is also the JSON payload republished over MQTT.
type DeviceSample struct {
	Bus    string `json:"bus"`
	Device string `json:"device"`
	imu.Sample
}

func (s DeviceSample) Key() StreamKey {
	return StreamKey{Bus: s.Bus, Device: s.Device}
}

// Processor turns envelopes into samples. Each bus/device pair gets its own
// imu.Decoder on first sight and keeps it for the life of the Processor.
// Not safe for concurrent use: feed it messages in arrival order from one goroutine.
type Processor struct {
	decoders map[StreamKey]*imu.Decoder
}

func NewProcessor() *Processor {
	return &Processor{decoders: make(map[StreamKey]*imu.Decoder)}
}

// Process decodes every frame of every device entry in msg.
//
// A message that is not a JSON object yields (nil, *EnvelopeError).
// Otherwise the samples of all well-formed entries are returned, and the
// failures of the other entries are joined into the error. An entry whose hex
// field is malformed contributes no samples and leaves its stream state untouched.
func (p *Processor) Process(msg []byte) ([]DeviceSample, error) {
	entries, err := ParseEnvelope(msg)
	if err != nil {
		return nil, err
	}

	var (
		out  []DeviceSample
		errs []error
	)
	for _, e := range entries {
		if e.Err != nil {
			errs = append(errs, e.Err)
			continue
		}

		frames, err := imu.Split(e.X)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s/%s: %w", e.Bus, e.Device, err))
			continue
		}

		dec := p.decoder(StreamKey{Bus: e.Bus, Device: e.Device})
		for _, f := range frames {
			out = append(out, DeviceSample{
				Bus:    e.Bus,
				Device: e.Device,
				Sample: dec.Decode(f),
			})
		}
	}
	return out, errors.Join(errs...)
}

// State returns the decoder state of a stream and whether it has been seen.
func (p *Processor) State(k StreamKey) (imu.DecoderState, bool) {
	d, ok := p.decoders[k]
	if !ok {
		return imu.DecoderState{}, false
	}
	return d.State(), true
}

// Streams returns the number of device streams seen so far.
func (p *Processor) Streams() int {
	return len(p.decoders)
}

func (p *Processor) decoder(k StreamKey) *imu.Decoder {
	d, ok := p.decoders[k]
	if !ok {
		d = imu.NewDecoder()
		p.decoders[k] = d
	}
	return d
}
