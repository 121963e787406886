// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package imu

import "fmt"

const (
	// GyroCountsPerDPS maps int16 counts to ±2000 °/s.
	GyroCountsPerDPS = 16.384
	// AccelCountsPerG maps int16 counts to ±4 g.
	AccelCountsPerG = 8192.0

	// FragmentPeriodMs is the rollover period of the 16-bit timestamp fragment.
	FragmentPeriodMs = 1 << 16
)

// DecoderState is the timestamp-unwrap state of one device stream.
// The zero value is the initial state.
type DecoderState struct {
	LastFragment uint16 `json:"last_fragment"`
	OffsetMs     uint64 `json:"offset_ms"` // multiple of FragmentPeriodMs, never decreases
}

// Sample is a decoded frame in physical units.
type Sample struct {
	TimeMs uint64 `json:"time_ms"`

	Gx float64 `json:"gx_dps"`
	Gy float64 `json:"gy_dps"`
	Gz float64 `json:"gz_dps"`

	Ax float64 `json:"ax_g"`
	Ay float64 `json:"ay_g"`
	Az float64 `json:"az_g"`
}

func (s Sample) String() string {
	return fmt.Sprintf("Time: %d, Gyro(dps): (%.2f, %.2f, %.2f), Acc(g): (%.2f, %.2f, %.2f)",
		s.TimeMs, s.Gx, s.Gy, s.Gz, s.Ax, s.Ay, s.Az)
}

// Decode converts one frame and returns the state to use for the next frame
// of the same stream.
//
// A fragment lower than the previous one is taken as exactly one rollover.
// Gaps longer than one period between consecutive frames are not detected.
func Decode(f Frame, st DecoderState) (Sample, DecoderState) {
	raw := f.Raw()

	if raw.Fragment < st.LastFragment {
		st.OffsetMs += FragmentPeriodMs
	}
	st.LastFragment = raw.Fragment

	return Sample{
		TimeMs: st.OffsetMs + uint64(raw.Fragment),
		Gx:     float64(raw.Gx) / GyroCountsPerDPS,
		Gy:     float64(raw.Gy) / GyroCountsPerDPS,
		Gz:     float64(raw.Gz) / GyroCountsPerDPS,
		Ax:     float64(raw.Ax) / AccelCountsPerG,
		Ay:     float64(raw.Ay) / AccelCountsPerG,
		Az:     float64(raw.Az) / AccelCountsPerG,
	}, st
}

// Decoder owns the state of a single device stream. Not safe for concurrent use.
type Decoder struct {
	state DecoderState
}

func NewDecoder() *Decoder {
	return &Decoder{}
}

// Decode decodes f and advances the stream state.
func (d *Decoder) Decode(f Frame) Sample {
	var s Sample
	s, d.state = Decode(f, d.state)
	return s
}

func (d *Decoder) State() DecoderState {
	return d.state
}
