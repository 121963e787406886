// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package stream

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
)

// ErrMalformedEnvelope is matched (errors.Is) by every *EnvelopeError.
var ErrMalformedEnvelope = errors.New("malformed envelope")

// EnvelopeError reports a message, or one bus/device entry of it, that does
// not have the {bus: {device: {"x": "<hex>"}}} shape.
// Bus and Device are empty when the whole message is unusable.
type EnvelopeError struct {
	Bus    string
	Device string
	Err    error
}

func (e *EnvelopeError) Error() string {
	switch {
	case e.Bus == "":
		return fmt.Sprintf("malformed envelope: %v", e.Err)
	case e.Device == "":
		return fmt.Sprintf("malformed envelope bus %q: %v", e.Bus, e.Err)
	default:
		return fmt.Sprintf("malformed envelope %s/%s: %v", e.Bus, e.Device, e.Err)
	}
}

func (e *EnvelopeError) Unwrap() error { return e.Err }

func (e *EnvelopeError) Is(target error) bool { return target == ErrMalformedEnvelope }

// Entry is one device's raw field set from an envelope.
// Err is set when this entry alone is malformed; X is then empty.
type Entry struct {
	Bus    string
	Device string
	X      string
	Err    error
}

// deviceFields is the part of a device entry we read; everything else is ignored.
type deviceFields struct {
	X *string `json:"x"`
}

// ParseEnvelope walks a message in document order and returns one Entry per
// bus/device pair. It fails as a whole only when data is not a JSON object.
func ParseEnvelope(data []byte) ([]Entry, error) {
	var entries []Entry

	err := walkObject(data, func(bus string, busRaw json.RawMessage) {
		err := walkObject(busRaw, func(device string, devRaw json.RawMessage) {
			entries = append(entries, parseEntry(bus, device, devRaw))
		})
		if err != nil {
			entries = append(entries, Entry{
				Bus: bus,
				Err: &EnvelopeError{Bus: bus, Err: err},
			})
		}
	})
	if err != nil {
		return nil, &EnvelopeError{Err: err}
	}
	return entries, nil
}

func parseEntry(bus, device string, raw json.RawMessage) Entry {
	e := Entry{Bus: bus, Device: device}

	var f deviceFields
	if err := json.Unmarshal(raw, &f); err != nil {
		e.Err = &EnvelopeError{Bus: bus, Device: device, Err: err}
		return e
	}
	if f.X == nil {
		e.Err = &EnvelopeError{Bus: bus, Device: device, Err: errors.New(`missing "x" field`)}
		return e
	}
	e.X = *f.X
	return e
}

// walkObject calls fn for each member of the JSON object in data, in order.
func walkObject(data []byte, fn func(key string, raw json.RawMessage)) error {
	dec := json.NewDecoder(bytes.NewReader(data))

	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return fmt.Errorf("expected JSON object, got %v", tok)
	}

	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return err
		}
		key, _ := tok.(string)

		var raw json.RawMessage
		if err := dec.Decode(&raw); err != nil {
			return fmt.Errorf("member %q: %w", key, err)
		}
		fn(key, raw)
	}

	// closing brace
	if _, err := dec.Token(); err != nil {
		return err
	}
	if _, err := dec.Token(); err != io.EOF {
		return errors.New("unexpected data after JSON object")
	}
	return nil
}
