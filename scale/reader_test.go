package scale

import (
	"io"
	"strings"
	"testing"
)

func TestReaderBasicFrame(t *testing.T) {
	r := NewReader(strings.NewReader("data: 12.345 kg\n\n"))

	frame, err := r.Next()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if frame != "12.345 kg" {
		t.Errorf("frame = %q, want %q", frame, "12.345 kg")
	}

	if _, err = r.Next(); err != io.EOF {
		t.Errorf("expected io.EOF, got %v", err)
	}
}

func TestReaderMultipleFrames(t *testing.T) {
	r := NewReader(strings.NewReader("data: 1.000 kg\n\ndata: 1.250 kg\n\n"))

	f1, err := r.Next()
	if err != nil {
		t.Fatalf("frame 1: %v", err)
	}
	f2, err := r.Next()
	if err != nil {
		t.Fatalf("frame 2: %v", err)
	}
	if f1 != "1.000 kg" || f2 != "1.250 kg" {
		t.Errorf("frames = %q, %q", f1, f2)
	}
}

func TestReaderCommentsIgnored(t *testing.T) {
	r := NewReader(strings.NewReader(": keep-alive\ndata: 0.5 kg\n: another\n\n"))

	frame, err := r.Next()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if frame != "0.5 kg" {
		t.Errorf("frame = %q, want %q", frame, "0.5 kg")
	}
}

func TestReaderNoSpaceAfterColon(t *testing.T) {
	r := NewReader(strings.NewReader("data:2.5 kg\n\n"))

	frame, err := r.Next()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if frame != "2.5 kg" {
		t.Errorf("frame = %q, want %q", frame, "2.5 kg")
	}
}

func TestReaderEOFWithPendingFrame(t *testing.T) {
	// No trailing blank line: the frame is still dispatched at EOF
	r := NewReader(strings.NewReader("data: 3.0 kg"))

	frame, err := r.Next()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if frame != "3.0 kg" {
		t.Errorf("frame = %q, want %q", frame, "3.0 kg")
	}
}

func TestReaderEmptyStream(t *testing.T) {
	r := NewReader(strings.NewReader(""))
	if _, err := r.Next(); err != io.EOF {
		t.Errorf("expected io.EOF, got %v", err)
	}
}

func TestReaderBlankLinesOnly(t *testing.T) {
	r := NewReader(strings.NewReader("\n\n\n"))
	if _, err := r.Next(); err != io.EOF {
		t.Errorf("expected io.EOF, got %v", err)
	}
}

func TestReaderIgnoresEventAndIDFields(t *testing.T) {
	r := NewReader(strings.NewReader("event: weight\nid: 7\ndata: 9.99 kg\n\n"))

	frame, err := r.Next()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if frame != "9.99 kg" {
		t.Errorf("frame = %q, want %q", frame, "9.99 kg")
	}
}

func TestParseWeight(t *testing.T) {
	cases := []struct {
		in      string
		value   float64
		unit    string
		wantErr bool
	}{
		{"12.345 kg", 12.345, "kg", false},
		{"0 kg", 0, "kg", false},
		{"-0.005 kg", -0.005, "kg", false},
		{"7.5", 7.5, "", false},
		{"  3.25 kg  ", 3.25, "kg", false},
		{"N/A", 0, "", true},
		{"", 0, "", true},
	}
	for _, c := range cases {
		value, unit, err := ParseWeight(c.in)
		if c.wantErr {
			if err == nil {
				t.Errorf("ParseWeight(%q): expected error", c.in)
			}
			continue
		}
		if err != nil {
			t.Errorf("ParseWeight(%q): %v", c.in, err)
			continue
		}
		if value != c.value || unit != c.unit {
			t.Errorf("ParseWeight(%q) = %v, %q, want %v, %q", c.in, value, unit, c.value, c.unit)
		}
	}
}
