// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package output

import (
	"fmt"
	"io"

	"github.com/relabs-tech/imu_subscriber/internal/stream"
)

// Sink receives decoded samples in the order they were decoded.
type Sink interface {
	Emit(s stream.DeviceSample) error
}

// ConsoleSink prints one line per sample:
//
//	Time: 1, Gyro(dps): (1000.00, 0.00, 0.00), Acc(g): (1.00, 0.00, 0.00)
type ConsoleSink struct {
	w io.Writer

	// ShowStream prefixes each line with [bus/device].
	ShowStream bool
}

func NewConsoleSink(w io.Writer) *ConsoleSink {
	return &ConsoleSink{w: w}
}

func (c *ConsoleSink) Emit(s stream.DeviceSample) error {
	var err error
	if c.ShowStream {
		_, err = fmt.Fprintf(c.w, "[%s] %s\n", s.Key(), s.Sample)
	} else {
		_, err = fmt.Fprintln(c.w, s.Sample)
	}
	return err
}
