// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package imu

import (
	"encoding/binary"
	"encoding/hex"
	"errors"
	"fmt"
	"iter"
)

const (
	// FrameSize is the size in bytes of one binary sample:
	// 2-byte big-endian timestamp fragment + 6 x int16 little-endian axes.
	FrameSize = 14
	// FrameHexLen is the number of hex characters encoding one frame.
	FrameHexLen = FrameSize * 2
)

// ErrMalformedFrame is matched (errors.Is) by every *FrameError.
var ErrMalformedFrame = errors.New("malformed frame")

// FrameError identifies the chunk of a hex field that could not be turned into a frame.
type FrameError struct {
	Index int    // zero-based chunk index within the field
	Chunk string // offending hex text
	Err   error
}

func (e *FrameError) Error() string {
	return fmt.Sprintf("malformed frame %d (%q): %v", e.Index, e.Chunk, e.Err)
}

func (e *FrameError) Unwrap() error { return e.Err }

func (e *FrameError) Is(target error) bool { return target == ErrMalformedFrame }

// Frame is one 14-byte binary sample.
type Frame [FrameSize]byte

// Fragment returns the big-endian 16-bit timestamp fragment.
func (f Frame) Fragment() uint16 {
	return binary.BigEndian.Uint16(f[0:2])
}

// Raw unpacks the frame into raw counts. Axis order on the wire is
// gyro X/Y/Z followed by accel X/Y/Z, each little-endian.
func (f Frame) Raw() IMURaw {
	return IMURaw{
		Fragment: f.Fragment(),
		Gx:       int16(binary.LittleEndian.Uint16(f[2:4])),
		Gy:       int16(binary.LittleEndian.Uint16(f[4:6])),
		Gz:       int16(binary.LittleEndian.Uint16(f[6:8])),
		Ax:       int16(binary.LittleEndian.Uint16(f[8:10])),
		Ay:       int16(binary.LittleEndian.Uint16(f[10:12])),
		Az:       int16(binary.LittleEndian.Uint16(f[12:14])),
	}
}

// Frame packs raw counts back into wire layout.
func (r IMURaw) Frame() Frame {
	var f Frame
	binary.BigEndian.PutUint16(f[0:2], r.Fragment)
	for i, v := range [6]int16{r.Gx, r.Gy, r.Gz, r.Ax, r.Ay, r.Az} {
		binary.LittleEndian.PutUint16(f[2+2*i:], uint16(v))
	}
	return f
}

// Hex returns the frame as lower-case hex text.
func (f Frame) Hex() string {
	return hex.EncodeToString(f[:])
}

// Frames returns a lazy sequence over the frames encoded in s, in order.
// A short trailing chunk or a chunk with non-hex characters is yielded as a
// *FrameError and ends the sequence. The sequence can be ranged over again.
func Frames(s string) iter.Seq2[Frame, error] {
	return func(yield func(Frame, error) bool) {
		for i, off := 0, 0; off < len(s); i, off = i+1, off+FrameHexLen {
			end := min(off+FrameHexLen, len(s))
			f, err := decodeChunk(i, s[off:end])
			if err != nil {
				yield(Frame{}, err)
				return
			}
			if !yield(f, nil) {
				return
			}
		}
	}
}

// Split decodes every frame in s. It is all-or-nothing: on the first
// malformed chunk it returns nil and the *FrameError.
func Split(s string) ([]Frame, error) {
	frames := make([]Frame, 0, len(s)/FrameHexLen)
	for f, err := range Frames(s) {
		if err != nil {
			return nil, err
		}
		frames = append(frames, f)
	}
	return frames, nil
}

func decodeChunk(i int, chunk string) (Frame, error) {
	var f Frame
	if len(chunk) != FrameHexLen {
		return f, &FrameError{
			Index: i,
			Chunk: chunk,
			Err:   fmt.Errorf("short chunk: %d hex chars, want %d", len(chunk), FrameHexLen),
		}
	}
	if _, err := hex.Decode(f[:], []byte(chunk)); err != nil {
		return Frame{}, &FrameError{Index: i, Chunk: chunk, Err: err}
	}
	return f, nil
}
