package source

import (
	"testing"

	"mixdeck.click/internal/sample"
)

func testFormat() Format {
	return Format{Channels: 2, SampleRate: 44100, Encoding: sample.EncodingF32}
}

func TestFormatValidate(t *testing.T) {
	tests := []struct {
		name    string
		format  Format
		wantErr bool
	}{
		{name: "valid stereo", format: Format{Channels: 2, SampleRate: 44100, Encoding: sample.EncodingS16}},
		{name: "valid mono", format: Format{Channels: 1, SampleRate: 8000, Encoding: sample.EncodingU8}},
		{name: "zero channels", format: Format{Channels: 0, SampleRate: 44100, Encoding: sample.EncodingS16}, wantErr: true},
		{name: "negative channels", format: Format{Channels: -1, SampleRate: 44100, Encoding: sample.EncodingS16}, wantErr: true},
		{name: "zero rate", format: Format{Channels: 2, SampleRate: 0, Encoding: sample.EncodingS16}, wantErr: true},
		{name: "invalid encoding", format: Format{Channels: 2, SampleRate: 44100}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.format.Validate()
			if tt.wantErr && err == nil {
				t.Errorf("expected error for %+v, got none", tt.format)
			}
			if !tt.wantErr && err != nil {
				t.Errorf("unexpected error: %v", err)
			}
		})
	}
}

func TestBufferReadsWholeFrames(t *testing.T) {
	data := []float64{0.1, -0.1, 0.2, -0.2, 0.3, -0.3}
	buf, err := NewBuffer(testFormat(), data)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if rem, known := buf.Remaining(); !known || rem != 3 {
		t.Errorf("Remaining() = %d,%v, want 3,true", rem, known)
	}

	dst := make([]float64, 4) // two frames
	n, ok := buf.ReadFrames(dst)
	if !ok || n != 2 {
		t.Fatalf("first read: n=%d ok=%v, want 2,true", n, ok)
	}
	if dst[0] != 0.1 || dst[3] != -0.2 {
		t.Errorf("first read returned wrong samples: %v", dst)
	}

	n, ok = buf.ReadFrames(dst)
	if !ok || n != 1 {
		t.Fatalf("second read: n=%d ok=%v, want 1,true", n, ok)
	}
	if dst[0] != 0.3 || dst[1] != -0.3 {
		t.Errorf("second read returned wrong samples: %v", dst[:2])
	}

	// exhausted, and it stays that way
	for i := 0; i < 3; i++ {
		if n, ok := buf.ReadFrames(dst); n != 0 || ok {
			t.Fatalf("read after exhaustion %d: n=%d ok=%v, want 0,false", i, n, ok)
		}
	}
}

func TestBufferRejectsSplitFrames(t *testing.T) {
	_, err := NewBuffer(testFormat(), []float64{0.1, 0.2, 0.3})
	if err == nil {
		t.Error("expected error for sample count not divisible by channels")
	}
}

func TestSilenceFinite(t *testing.T) {
	s, err := NewSilence(testFormat(), 3)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	dst := []float64{9, 9, 9, 9} // sentinel values must be overwritten
	n, ok := s.ReadFrames(dst)
	if !ok || n != 2 {
		t.Fatalf("n=%d ok=%v, want 2,true", n, ok)
	}
	for i, v := range dst {
		if v != 0 {
			t.Errorf("dst[%d] = %v, want 0", i, v)
		}
	}

	n, ok = s.ReadFrames(dst)
	if !ok || n != 1 {
		t.Fatalf("n=%d ok=%v, want 1,true", n, ok)
	}
	if n, ok := s.ReadFrames(dst); n != 0 || ok {
		t.Errorf("after exhaustion: n=%d ok=%v, want 0,false", n, ok)
	}
}

func TestSilenceInfinite(t *testing.T) {
	s, err := NewInfiniteSilence(testFormat())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, known := s.Remaining(); known {
		t.Error("infinite silence must report unknown length")
	}

	dst := make([]float64, 64)
	for i := 0; i < 100; i++ {
		n, ok := s.ReadFrames(dst)
		if !ok || n != 32 {
			t.Fatalf("iteration %d: n=%d ok=%v, want 32,true", i, n, ok)
		}
	}
}

func TestSilenceRejectsNegativeLength(t *testing.T) {
	if _, err := NewSilence(testFormat(), -1); err == nil {
		t.Error("expected error for negative silence length")
	}
}

func TestToneIsPeriodicAndBounded(t *testing.T) {
	format := Format{Channels: 1, SampleRate: 8000, Encoding: sample.EncodingF32}
	tone, err := NewTone(format, 440, 0.5)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	dst := make([]float64, 8000)
	n, ok := tone.ReadFrames(dst)
	if !ok || n != 8000 {
		t.Fatalf("n=%d ok=%v, want 8000,true", n, ok)
	}
	for i, v := range dst {
		if v > 0.5 || v < -0.5 {
			t.Fatalf("sample %d = %v exceeds amplitude 0.5", i, v)
		}
	}
	// a sine at 440Hz must cross zero; a constant stream would mean a broken phase step
	crossings := 0
	for i := 1; i < len(dst); i++ {
		if (dst[i-1] < 0) != (dst[i] < 0) {
			crossings++
		}
	}
	if crossings < 800 {
		t.Errorf("expected roughly 880 zero crossings in one second, got %d", crossings)
	}
}

func TestToneRejectsBadParams(t *testing.T) {
	format := testFormat()
	if _, err := NewTone(format, 0, 0.5); err == nil {
		t.Error("expected error for zero frequency")
	}
	if _, err := NewTone(format, 440, 1.5); err == nil {
		t.Error("expected error for amplitude above 1.0")
	}
}
