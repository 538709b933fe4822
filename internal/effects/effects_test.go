package effects

import (
	"math"
	"testing"

	"mixdeck.click/internal/sample"
	"mixdeck.click/internal/source"
)

func monoFormat() source.Format {
	return source.Format{Channels: 1, SampleRate: 44100, Encoding: sample.EncodingF32}
}

func mustBuffer(t *testing.T, format source.Format, data []float64) *source.Buffer {
	t.Helper()
	buf, err := source.NewBuffer(format, data)
	if err != nil {
		t.Fatalf("NewBuffer: %v", err)
	}
	return buf
}

func readAll(t *testing.T, src source.Source, chunkFrames int) []float64 {
	t.Helper()
	ch := src.Format().Channels
	dst := make([]float64, chunkFrames*ch)
	var out []float64
	for i := 0; i < 1_000_000; i++ {
		n, ok := src.ReadFrames(dst)
		out = append(out, dst[:n*ch]...)
		if !ok {
			if n2, ok2 := src.ReadFrames(dst); n2 != 0 || ok2 {
				t.Fatalf("effect resurrected after exhaustion: n=%d ok=%v", n2, ok2)
			}
			return out
		}
	}
	t.Fatal("source never exhausted")
	return nil
}

func TestGainScalesAndClamps(t *testing.T) {
	buf := mustBuffer(t, monoFormat(), []float64{0.2, -0.2, 0.8})
	g, err := NewGain(buf, 2.0)
	if err != nil {
		t.Fatalf("NewGain: %v", err)
	}

	got := readAll(t, g, 4)
	want := []float64{0.4, -0.4, 1.0} // 1.6 clamps to full scale
	for i := range want {
		if math.Abs(got[i]-want[i]) > 1e-12 {
			t.Errorf("sample %d = %v, want %v", i, got[i], want[i])
		}
	}
}

func TestGainLiveChange(t *testing.T) {
	buf := mustBuffer(t, monoFormat(), []float64{0.5, 0.5})
	g, err := NewGain(buf, 1.0)
	if err != nil {
		t.Fatalf("NewGain: %v", err)
	}

	dst := make([]float64, 1)
	g.ReadFrames(dst)
	if dst[0] != 0.5 {
		t.Errorf("unity gain altered sample: %v", dst[0])
	}

	// the new factor must be observed on the very next read
	if err := g.SetFactor(0.1); err != nil {
		t.Fatalf("SetFactor: %v", err)
	}
	g.ReadFrames(dst)
	if math.Abs(dst[0]-0.05) > 1e-12 {
		t.Errorf("live gain change not observed: %v", dst[0])
	}

	if err := g.SetFactor(-1); err == nil {
		t.Error("expected error for negative gain")
	}
}

func TestFadeInRamp(t *testing.T) {
	data := []float64{1, 1, 1, 1, 1, 1}
	buf := mustBuffer(t, monoFormat(), data)
	f, err := NewFadeIn(buf, 4)
	if err != nil {
		t.Fatalf("NewFadeIn: %v", err)
	}

	got := readAll(t, f, 2)
	want := []float64{0, 0.25, 0.5, 0.75, 1, 1}
	for i := range want {
		if math.Abs(got[i]-want[i]) > 1e-12 {
			t.Errorf("frame %d = %v, want %v", i, got[i], want[i])
		}
	}

	// monotonic, and exactly 1.0 from the boundary on
	for i := 1; i < len(got); i++ {
		if got[i] < got[i-1] {
			t.Errorf("fade-in not monotonic at frame %d: %v -> %v", i, got[i-1], got[i])
		}
	}
}

func TestFadeOutRamp(t *testing.T) {
	data := []float64{1, 1, 1, 1, 1, 1}
	buf := mustBuffer(t, monoFormat(), data)
	f, err := NewFadeOut(buf, 4)
	if err != nil {
		t.Fatalf("NewFadeOut: %v", err)
	}

	got := readAll(t, f, 3)
	want := []float64{1, 0.75, 0.5, 0.25, 0, 0}
	for i := range want {
		if math.Abs(got[i]-want[i]) > 1e-12 {
			t.Errorf("frame %d = %v, want %v", i, got[i], want[i])
		}
	}
}

func TestFadeRejectsZeroDuration(t *testing.T) {
	buf := mustBuffer(t, monoFormat(), nil)
	if _, err := NewFadeIn(buf, 0); err == nil {
		t.Error("expected error for zero fade duration")
	}
}

func TestSpeedChangesDuration(t *testing.T) {
	data := make([]float64, 100)
	buf := mustBuffer(t, monoFormat(), data)
	s, err := NewSpeed(buf, 2.0)
	if err != nil {
		t.Fatalf("NewSpeed: %v", err)
	}

	if s.Format() != monoFormat() {
		t.Errorf("speed changed the declared format: %v", s.Format())
	}

	got := readAll(t, s, 16)
	if len(got) < 49 || len(got) > 51 {
		t.Errorf("2x speed over 100 frames emitted %d, want ~50", len(got))
	}
}

func TestSpeedRejectsBadFactor(t *testing.T) {
	buf := mustBuffer(t, monoFormat(), nil)
	if _, err := NewSpeed(buf, 0); err == nil {
		t.Error("expected error for zero speed")
	}
	if _, err := NewSpeed(buf, -2); err == nil {
		t.Error("expected error for negative speed")
	}
}

func TestDelayPrependsSilence(t *testing.T) {
	buf := mustBuffer(t, monoFormat(), []float64{0.5, 0.6})
	d, err := NewDelay(buf, 3)
	if err != nil {
		t.Fatalf("NewDelay: %v", err)
	}

	if rem, known := d.Remaining(); !known || rem != 5 {
		t.Errorf("Remaining() = %d,%v, want 5,true", rem, known)
	}

	got := readAll(t, d, 2)
	want := []float64{0, 0, 0, 0.5, 0.6}
	if len(got) != len(want) {
		t.Fatalf("got %d frames, want %d", len(got), len(want))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("frame %d = %v, want %v", i, got[i], want[i])
		}
	}
}

func TestDelayZeroIsTransparent(t *testing.T) {
	buf := mustBuffer(t, monoFormat(), []float64{0.1})
	d, err := NewDelay(buf, 0)
	if err != nil {
		t.Fatalf("NewDelay: %v", err)
	}
	got := readAll(t, d, 4)
	if len(got) != 1 || got[0] != 0.1 {
		t.Errorf("zero delay altered the stream: %v", got)
	}
}

func TestMonitorFiresEveryPeriod(t *testing.T) {
	data := make([]float64, 10)
	buf := mustBuffer(t, monoFormat(), data)

	var fires []int64
	m, err := NewMonitor(buf, 3, func(elapsed int64) {
		fires = append(fires, elapsed)
	})
	if err != nil {
		t.Fatalf("NewMonitor: %v", err)
	}

	got := readAll(t, m, 4)
	if len(got) != 10 {
		t.Fatalf("monitor altered frame count: %d", len(got))
	}
	want := []int64{3, 6, 9}
	if len(fires) != len(want) {
		t.Fatalf("callback fired %d times %v, want %d", len(fires), fires, len(want))
	}
	for i := range want {
		if fires[i] != want[i] {
			t.Errorf("fire %d at %d frames, want %d", i, fires[i], want[i])
		}
	}
}

func TestGatePausesWithoutConsuming(t *testing.T) {
	buf := mustBuffer(t, monoFormat(), []float64{0.1, 0.2, 0.3})
	g, err := NewGate(buf)
	if err != nil {
		t.Fatalf("NewGate: %v", err)
	}

	dst := make([]float64, 1)
	g.ReadFrames(dst)
	if dst[0] != 0.1 {
		t.Fatalf("open gate altered stream: %v", dst[0])
	}

	g.SetClosed(true)
	for i := 0; i < 5; i++ {
		n, ok := g.ReadFrames(dst)
		if n != 1 || !ok {
			t.Fatalf("closed gate must emit silence frames: n=%d ok=%v", n, ok)
		}
		if dst[0] != 0 {
			t.Fatalf("closed gate leaked samples: %v", dst[0])
		}
	}

	// resume picks up exactly where the stream paused
	g.SetClosed(false)
	g.ReadFrames(dst)
	if dst[0] != 0.2 {
		t.Errorf("resume skipped frames: got %v, want 0.2", dst[0])
	}
}

// effects stack in any order within a format
func TestEffectsCompose(t *testing.T) {
	data := []float64{0.4, 0.4, 0.4, 0.4}
	buf := mustBuffer(t, monoFormat(), data)

	g, err := NewGain(buf, 0.5)
	if err != nil {
		t.Fatalf("NewGain: %v", err)
	}
	d, err := NewDelay(g, 2)
	if err != nil {
		t.Fatalf("NewDelay: %v", err)
	}
	var position int64
	m, err := NewMonitor(d, 2, func(elapsed int64) { position = elapsed })
	if err != nil {
		t.Fatalf("NewMonitor: %v", err)
	}

	got := readAll(t, m, 3)
	want := []float64{0, 0, 0.2, 0.2, 0.2, 0.2}
	if len(got) != len(want) {
		t.Fatalf("got %d frames, want %d", len(got), len(want))
	}
	for i := range want {
		if math.Abs(got[i]-want[i]) > 1e-12 {
			t.Errorf("frame %d = %v, want %v", i, got[i], want[i])
		}
	}
	if position != 6 {
		t.Errorf("last monitor fire at %d frames, want 6", position)
	}
}
