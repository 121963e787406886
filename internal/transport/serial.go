// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package transport

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log"
	"strings"

	serial "github.com/jacobsa/go-serial/serial"
)

// logMarker precedes the poll-response JSON in the firmware's debug log, e.g.
//
//	I (10234) IMUSysMod: loop {"I2CA":{"0x6a@0":{"x":"..."}}}
const logMarker = "loop "

// ansiReset ends ESP-IDF coloured log lines.
const ansiReset = "\x1b[0m"

// SerialSource reads envelopes from the device's serial console. The device
// must run the firmware build that logs raw poll responses instead of
// decoding them on-device.
type SerialSource struct {
	PortName string
	BaudRate uint
}

func (s *SerialSource) Run(ctx context.Context, events chan<- Event) error {
	port, err := serial.Open(serial.OpenOptions{
		PortName:              s.PortName,
		BaudRate:              s.BaudRate,
		DataBits:              8,
		StopBits:              1,
		MinimumReadSize:       1,
		ParityMode:            serial.PARITY_NONE,
		InterCharacterTimeout: 0,
	})
	if err != nil {
		return fmt.Errorf("open serial port %s: %w", s.PortName, err)
	}
	defer port.Close()
	log.Printf("serial: port opened on %s at %d baud", s.PortName, s.BaudRate)

	stop := context.AfterFunc(ctx, func() { port.Close() })
	defer stop()

	if !send(ctx, events, Event{Kind: EventOpen}) {
		return nil
	}
	err = ScanLog(ctx, port, events)
	if ctx.Err() != nil {
		return nil
	}
	return err
}

// ScanLog reads log lines from r and emits an EventMessage for every line
// carrying an envelope. Other lines are skipped. At end of input it emits
// EventClose; a read error is emitted as EventError and returned.
func ScanLog(ctx context.Context, r io.Reader, events chan<- Event) error {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	for scanner.Scan() {
		env, ok := ExtractEnvelope(scanner.Text())
		if !ok {
			continue
		}
		if !send(ctx, events, Event{Kind: EventMessage, Data: []byte(env)}) {
			return nil
		}
	}
	if err := scanner.Err(); err != nil {
		err = fmt.Errorf("serial read: %w", err)
		send(ctx, events, Event{Kind: EventError, Err: err})
		return err
	}
	send(ctx, events, Event{Kind: EventClose})
	return nil
}

// ExtractEnvelope returns the JSON object logged on line, if any.
// Empty objects ("loop {}") are reported as absent.
func ExtractEnvelope(line string) (string, bool) {
	i := strings.Index(line, logMarker)
	if i < 0 {
		return "", false
	}
	rest := strings.TrimSpace(line[i+len(logMarker):])
	rest = strings.TrimSpace(strings.TrimSuffix(rest, ansiReset))
	if !strings.HasPrefix(rest, "{") || rest == "{}" {
		return "", false
	}
	return rest, true
}
