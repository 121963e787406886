package stream

import (
	"encoding/binary"
	"encoding/hex"
	"errors"
	"fmt"
	"testing"

	"github.com/relabs-tech/imu_subscriber/internal/imu"
)

func frameHex(fragment uint16, gyro, acc [3]int16) string {
	var b [imu.FrameSize]byte
	binary.BigEndian.PutUint16(b[0:2], fragment)
	for i, v := range append(gyro[:], acc[:]...) {
		binary.LittleEndian.PutUint16(b[2+2*i:], uint16(v))
	}
	return hex.EncodeToString(b[:])
}

func envelope(bus, device, x string) []byte {
	return []byte(fmt.Sprintf(`{%q:{%q:{"x":%q}}}`, bus, device, x))
}

func TestProcessEndToEnd(t *testing.T) {
	p := NewProcessor()
	x := frameHex(0x0001, [3]int16{16384, 0, 0}, [3]int16{8192, 0, 0})

	samples, err := p.Process(envelope("A", "IMU1", x))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(samples) != 1 {
		t.Fatalf("got %d samples", len(samples))
	}
	s := samples[0]
	if s.Key() != (StreamKey{Bus: "A", Device: "IMU1"}) {
		t.Errorf("key = %v", s.Key())
	}
	want := "Time: 1, Gyro(dps): (1000.00, 0.00, 0.00), Acc(g): (1.00, 0.00, 0.00)"
	if s.String() != want {
		t.Errorf("got %q, want %q", s.String(), want)
	}
}

func TestProcessTwoFramesCarryState(t *testing.T) {
	p := NewProcessor()
	x := frameHex(65000, [3]int16{}, [3]int16{}) + frameHex(500, [3]int16{}, [3]int16{})

	samples, err := p.Process(envelope("A", "IMU1", x))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(samples) != 2 {
		t.Fatalf("got %d samples", len(samples))
	}
	if samples[0].TimeMs != 65000 || samples[1].TimeMs != 66036 {
		t.Fatalf("times = %d, %d", samples[0].TimeMs, samples[1].TimeMs)
	}
}

func TestProcessStateAcrossMessages(t *testing.T) {
	p := NewProcessor()
	k := StreamKey{Bus: "A", Device: "IMU1"}

	if _, ok := p.State(k); ok {
		t.Fatalf("stream should be unknown before first message")
	}
	if _, err := p.Process(envelope("A", "IMU1", frameHex(65000, [3]int16{}, [3]int16{}))); err != nil {
		t.Fatal(err)
	}
	samples, err := p.Process(envelope("A", "IMU1", frameHex(10, [3]int16{}, [3]int16{})))
	if err != nil {
		t.Fatal(err)
	}
	if samples[0].TimeMs != 65546 {
		t.Fatalf("time = %d, want 65546", samples[0].TimeMs)
	}
	st, ok := p.State(k)
	if !ok || st.OffsetMs != 65536 || st.LastFragment != 10 {
		t.Fatalf("state = %+v (%v)", st, ok)
	}
}

func TestProcessIndependentStreams(t *testing.T) {
	p := NewProcessor()
	// dev1 wraps, dev2 does not; a shared counter would push dev2 forward
	msg := fmt.Sprintf(`{"A":{"dev1":{"x":%q},"dev2":{"x":%q}}}`,
		frameHex(65000, [3]int16{}, [3]int16{})+frameHex(5, [3]int16{}, [3]int16{}),
		frameHex(7, [3]int16{}, [3]int16{})+frameHex(8, [3]int16{}, [3]int16{}),
	)
	samples, err := p.Process([]byte(msg))
	if err != nil {
		t.Fatal(err)
	}
	got := []uint64{}
	for _, s := range samples {
		got = append(got, s.TimeMs)
	}
	want := []uint64{65000, 65541, 7, 8}
	if fmt.Sprint(got) != fmt.Sprint(want) {
		t.Fatalf("times = %v, want %v", got, want)
	}
	if p.Streams() != 2 {
		t.Fatalf("streams = %d", p.Streams())
	}
}

func TestProcessFailureIsLocal(t *testing.T) {
	p := NewProcessor()
	good := frameHex(42, [3]int16{}, [3]int16{})
	msg := fmt.Sprintf(`{"A":{"bad":{"x":%q},"nox":{"y":1},"good":{"x":%q}}}`, good[:20], good)

	samples, err := p.Process([]byte(msg))
	if !errors.Is(err, imu.ErrMalformedFrame) {
		t.Errorf("expected ErrMalformedFrame in %v", err)
	}
	if !errors.Is(err, ErrMalformedEnvelope) {
		t.Errorf("expected ErrMalformedEnvelope in %v", err)
	}
	if len(samples) != 1 || samples[0].Device != "good" || samples[0].TimeMs != 42 {
		t.Fatalf("samples = %+v", samples)
	}
	if _, ok := p.State(StreamKey{Bus: "A", Device: "bad"}); ok {
		t.Errorf("malformed entry must not create stream state")
	}
}

func TestProcessMalformedMessage(t *testing.T) {
	p := NewProcessor()
	samples, err := p.Process([]byte("{oops"))
	if !errors.Is(err, ErrMalformedEnvelope) {
		t.Fatalf("expected ErrMalformedEnvelope, got %v", err)
	}
	if samples != nil {
		t.Fatalf("expected no samples")
	}
}
