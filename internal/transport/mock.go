// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package transport

import (
	"context"
	"encoding/json"
	"math"
	"strings"
	"time"

	"github.com/relabs-tech/imu_subscriber/internal/imu"
)

// MockSource generates envelopes with smoothly changing readings, for
// running the pipeline without a device. Timestamps start near the 16-bit
// rollover so the unwrap path is exercised within a few seconds.
type MockSource struct {
	Bus              string
	Device           string
	Interval         time.Duration
	FramesPerMessage int
}

const (
	// mockStartMs puts the first fragment 3 s before rollover.
	mockStartMs = imu.FragmentPeriodMs - 3000

	// defaultMockInterval matches the firmware's 100 ms report period.
	defaultMockInterval = 100 * time.Millisecond
)

func (m *MockSource) interval() time.Duration {
	if m.Interval <= 0 {
		return defaultMockInterval
	}
	return m.Interval
}

func (m *MockSource) Run(ctx context.Context, events chan<- Event) error {
	interval := m.interval()
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	if !send(ctx, events, Event{Kind: EventOpen}) {
		return nil
	}

	var elapsed time.Duration
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}

		msg, err := m.envelope(elapsed)
		if err != nil {
			return err
		}
		if !send(ctx, events, Event{Kind: EventMessage, Data: msg}) {
			return nil
		}
		elapsed += interval
	}
}

// envelope builds one message covering the interval ending at elapsed.
func (m *MockSource) envelope(elapsed time.Duration) ([]byte, error) {
	n := max(m.FramesPerMessage, 1)
	step := m.interval() / time.Duration(n)

	var sb strings.Builder
	for i := 0; i < n; i++ {
		t := elapsed + time.Duration(i)*step
		sb.WriteString(mockRaw(t).Frame().Hex())
	}

	return json.Marshal(map[string]map[string]map[string]string{
		m.Bus: {m.Device: {"x": sb.String()}},
	})
}

func mockRaw(t time.Duration) imu.IMURaw {
	sec := t.Seconds()
	ms := uint64(mockStartMs) + uint64(t.Milliseconds())

	return imu.IMURaw{
		Fragment: uint16(ms % imu.FragmentPeriodMs),
		Gx:       int16(90 * imu.GyroCountsPerDPS * math.Sin(sec)),
		Gy:       int16(45 * imu.GyroCountsPerDPS * math.Cos(sec*0.7)),
		Gz:       int16(math.Round(30 * imu.GyroCountsPerDPS)),
		Ax:       int16(0.2 * imu.AccelCountsPerG * math.Sin(sec)),
		Ay:       int16(0.2 * imu.AccelCountsPerG * math.Cos(sec)),
		Az:       int16(imu.AccelCountsPerG),
	}
}
