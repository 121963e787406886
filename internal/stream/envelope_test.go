package stream

import (
	"errors"
	"testing"
)

func TestParseEnvelopeOrder(t *testing.T) {
	msg := `{"I2CA":{"0x6a@0":{"x":"aa","_t":12},"0x6b@0":{"x":"bb"}},"I2CB":{"0x6a@0":{"x":""}}}`
	entries, err := ParseEnvelope([]byte(msg))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := []Entry{
		{Bus: "I2CA", Device: "0x6a@0", X: "aa"},
		{Bus: "I2CA", Device: "0x6b@0", X: "bb"},
		{Bus: "I2CB", Device: "0x6a@0", X: ""},
	}
	if len(entries) != len(want) {
		t.Fatalf("got %d entries, want %d", len(entries), len(want))
	}
	for i := range want {
		if entries[i] != want[i] {
			t.Errorf("entry %d: got %+v, want %+v", i, entries[i], want[i])
		}
	}
}

func TestParseEnvelopeWholeMessageErrors(t *testing.T) {
	for _, msg := range []string{"", "not json", "[]", `"x"`, "null", `{"A":{}`, `{"A":{}}{}`} {
		entries, err := ParseEnvelope([]byte(msg))
		if !errors.Is(err, ErrMalformedEnvelope) {
			t.Errorf("%q: expected ErrMalformedEnvelope, got %v", msg, err)
		}
		if entries != nil {
			t.Errorf("%q: expected no entries", msg)
		}
	}
}

func TestParseEnvelopeEntryErrors(t *testing.T) {
	msg := `{"A":{"d1":{"y":"00"},"d2":{"x":5},"d3":"str","d4":{"x":"ok"}},"B":7}`
	entries, err := ParseEnvelope([]byte(msg))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(entries) != 5 {
		t.Fatalf("got %d entries", len(entries))
	}
	for i, bad := range []bool{true, true, true, false, true} {
		if got := entries[i].Err != nil; got != bad {
			t.Errorf("entry %d (%s/%s): err=%v", i, entries[i].Bus, entries[i].Device, entries[i].Err)
		}
		if bad && !errors.Is(entries[i].Err, ErrMalformedEnvelope) {
			t.Errorf("entry %d: expected ErrMalformedEnvelope, got %v", i, entries[i].Err)
		}
	}
	if entries[3].X != "ok" {
		t.Errorf("entry 3: x = %q", entries[3].X)
	}
	var ee *EnvelopeError
	if !errors.As(entries[4].Err, &ee) || ee.Bus != "B" || ee.Device != "" {
		t.Errorf("entry 4: unexpected error %v", entries[4].Err)
	}
}
