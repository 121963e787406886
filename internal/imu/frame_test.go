package imu

import (
	"encoding/binary"
	"encoding/hex"
	"errors"
	"strings"
	"testing"
)

// frameHex builds the hex text of one frame.
func frameHex(fragment uint16, gyro, acc [3]int16) string {
	var b [FrameSize]byte
	binary.BigEndian.PutUint16(b[0:2], fragment)
	for i, v := range append(gyro[:], acc[:]...) {
		binary.LittleEndian.PutUint16(b[2+2*i:], uint16(v))
	}
	return hex.EncodeToString(b[:])
}

func TestFrameHexLayout(t *testing.T) {
	got := frameHex(0x0001, [3]int16{16384, 0, 0}, [3]int16{8192, 0, 0})
	want := "0001004000000000002000000000"
	if got != want {
		t.Fatalf("frameHex = %s, want %s", got, want)
	}
}

func TestFrameRoundTrip(t *testing.T) {
	raw := IMURaw{Fragment: 0xFFFE, Gx: -32768, Gy: 32767, Gz: -1, Ax: 1, Ay: -2, Az: 3}
	frames, err := Split(raw.Frame().Hex())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := frames[0].Raw(); got != raw {
		t.Fatalf("got %+v, want %+v", got, raw)
	}
}

func TestSplitCounts(t *testing.T) {
	for k := 0; k <= 5; k++ {
		var sb strings.Builder
		for i := 0; i < k; i++ {
			sb.WriteString(frameHex(uint16(i), [3]int16{int16(i), 0, 0}, [3]int16{}))
		}
		frames, err := Split(sb.String())
		if err != nil {
			t.Fatalf("k=%d: unexpected error: %v", k, err)
		}
		if len(frames) != k {
			t.Fatalf("k=%d: got %d frames", k, len(frames))
		}
		for i, f := range frames {
			if f.Fragment() != uint16(i) {
				t.Errorf("k=%d frame %d: fragment %d out of order", k, i, f.Fragment())
			}
		}
	}
}

func TestSplitEmpty(t *testing.T) {
	frames, err := Split("")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(frames) != 0 {
		t.Fatalf("got %d frames from empty input", len(frames))
	}
}

func TestSplitUpperCaseHex(t *testing.T) {
	s := strings.ToUpper(frameHex(0xABCD, [3]int16{-1, 2, -3}, [3]int16{4, -5, 6}))
	frames, err := Split(s)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	raw := frames[0].Raw()
	if raw.Fragment != 0xABCD || raw.Gx != -1 || raw.Gz != -3 || raw.Ay != -5 || raw.Az != 6 {
		t.Fatalf("unexpected raw: %+v", raw)
	}
}

func TestSplitMalformed(t *testing.T) {
	good := frameHex(1, [3]int16{}, [3]int16{})
	tests := []struct {
		name  string
		in    string
		index int
	}{
		{"short only", good[:10], 0},
		{"short trailing", good + good[:26], 1},
		{"odd length", good + "0", 1},
		{"non hex", good + strings.Repeat("zz", FrameSize), 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			frames, err := Split(tt.in)
			if frames != nil {
				t.Errorf("expected no frames, got %d", len(frames))
			}
			if !errors.Is(err, ErrMalformedFrame) {
				t.Fatalf("expected ErrMalformedFrame, got %v", err)
			}
			var fe *FrameError
			if !errors.As(err, &fe) {
				t.Fatalf("expected *FrameError, got %T", err)
			}
			if fe.Index != tt.index {
				t.Errorf("index = %d, want %d", fe.Index, tt.index)
			}
		})
	}
}

func TestFramesLazyAndRestartable(t *testing.T) {
	s := frameHex(1, [3]int16{}, [3]int16{}) + frameHex(2, [3]int16{}, [3]int16{}) + "00"
	seq := Frames(s)

	for pass := 0; pass < 2; pass++ {
		var frags []uint16
		var gotErr error
		for f, err := range seq {
			if err != nil {
				gotErr = err
				break
			}
			frags = append(frags, f.Fragment())
		}
		if len(frags) != 2 || frags[0] != 1 || frags[1] != 2 {
			t.Fatalf("pass %d: fragments %v", pass, frags)
		}
		if !errors.Is(gotErr, ErrMalformedFrame) {
			t.Fatalf("pass %d: expected trailing ErrMalformedFrame, got %v", pass, gotErr)
		}
	}

	// stopping early must not panic
	for range seq {
		break
	}
}
