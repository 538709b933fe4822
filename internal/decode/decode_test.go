package decode

import (
	"bytes"
	"encoding/binary"
	"math"
	"testing"

	"github.com/go-audio/aiff"
	"github.com/go-audio/audio"
	"github.com/spf13/afero"

	"mixdeck.click/internal/sample"
	"mixdeck.click/internal/source"
)

// makeWAV builds a minimal RIFF/WAVE file around interleaved s16 samples
func makeWAV(samples []int16, channels, sampleRate int) []byte {
	var data bytes.Buffer
	for _, s := range samples {
		binary.Write(&data, binary.LittleEndian, s)
	}

	var buf bytes.Buffer
	buf.WriteString("RIFF")
	binary.Write(&buf, binary.LittleEndian, uint32(36+data.Len()))
	buf.WriteString("WAVE")
	buf.WriteString("fmt ")
	binary.Write(&buf, binary.LittleEndian, uint32(16))
	binary.Write(&buf, binary.LittleEndian, uint16(1)) // PCM
	binary.Write(&buf, binary.LittleEndian, uint16(channels))
	binary.Write(&buf, binary.LittleEndian, uint32(sampleRate))
	binary.Write(&buf, binary.LittleEndian, uint32(sampleRate*channels*2))
	binary.Write(&buf, binary.LittleEndian, uint16(channels*2))
	binary.Write(&buf, binary.LittleEndian, uint16(16))
	buf.WriteString("data")
	binary.Write(&buf, binary.LittleEndian, uint32(data.Len()))
	buf.Write(data.Bytes())
	return buf.Bytes()
}

func TestWavDecodeStream(t *testing.T) {
	raw := makeWAV([]int16{0, 16384, -16384, 32767}, 1, 44100)

	src, err := NewWavDecoder().Decode(bytes.NewReader(raw))
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}

	want := source.Format{Channels: 1, SampleRate: 44100, Encoding: sample.EncodingS16}
	if src.Format() != want {
		t.Fatalf("Format() = %v, want %v", src.Format(), want)
	}

	dst := make([]float64, 8)
	n, ok := src.ReadFrames(dst)
	if !ok || n != 4 {
		t.Fatalf("ReadFrames = (%d, %v), want (4, true)", n, ok)
	}
	expected := []float64{0, 0.5, -0.5, 32767.0 / 32768.0}
	for i, want := range expected {
		if math.Abs(dst[i]-want) > 1e-9 {
			t.Errorf("frame %d = %v, want %v", i, dst[i], want)
		}
	}

	if n, ok := src.ReadFrames(dst); ok || n != 0 {
		t.Errorf("post-exhaustion ReadFrames = (%d, %v), want (0, false)", n, ok)
	}
	if errer, isErrer := src.(source.Errer); !isErrer {
		t.Error("wav source should expose Err")
	} else if errer.Err() != nil {
		t.Errorf("Err() = %v, want nil", errer.Err())
	}
}

func TestWavDecodeInvalidData(t *testing.T) {
	decoder := NewWavDecoder()

	if _, err := decoder.Decode(bytes.NewReader(nil)); err == nil {
		t.Error("expected error for empty data")
	}
	if _, err := decoder.Decode(bytes.NewReader([]byte("not a wav file"))); err == nil {
		t.Error("expected error for invalid WAV data")
	}
}

func TestDecoderCanDecode(t *testing.T) {
	tests := []struct {
		decoder  Decoder
		filename string
		expected bool
	}{
		{NewWavDecoder(), "audio.wav", true},
		{NewWavDecoder(), "sound.WAV", true},
		{NewWavDecoder(), "music.wave", true},
		{NewWavDecoder(), "audio.mp3", false},
		{NewWavDecoder(), "", false},
		{NewMp3Decoder(), "song.mp3", true},
		{NewMp3Decoder(), "song.MP3", true},
		{NewMp3Decoder(), "song.wav", false},
		{NewAiffDecoder(), "take.aiff", true},
		{NewAiffDecoder(), "take.aif", true},
		{NewAiffDecoder(), "take.flac", false},
	}

	for _, tt := range tests {
		if got := tt.decoder.CanDecode(tt.filename); got != tt.expected {
			t.Errorf("%s.CanDecode(%q) = %v, want %v",
				tt.decoder.FormatName(), tt.filename, got, tt.expected)
		}
	}
}

func TestMp3DecodeInvalidData(t *testing.T) {
	decoder := NewMp3Decoder()
	if _, err := decoder.Decode(bytes.NewReader([]byte("definitely not mpeg audio"))); err == nil {
		t.Error("expected error for invalid MP3 data")
	}
}

// makeAIFF round-trips samples through the go-audio encoder
func makeAIFF(t *testing.T, data []int, channels, sampleRate, bitDepth int) []byte {
	t.Helper()

	fs := afero.NewMemMapFs()
	f, err := fs.Create("out.aiff")
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	enc := aiff.NewEncoder(f, sampleRate, bitDepth, channels)
	buf := &audio.IntBuffer{
		Format:         &audio.Format{NumChannels: channels, SampleRate: sampleRate},
		Data:           data,
		SourceBitDepth: bitDepth,
	}
	if err := enc.Write(buf); err != nil {
		t.Fatalf("encode: %v", err)
	}
	if err := enc.Close(); err != nil {
		t.Fatalf("close encoder: %v", err)
	}
	f.Close()

	raw, err := afero.ReadFile(fs, "out.aiff")
	if err != nil {
		t.Fatalf("read back: %v", err)
	}
	return raw
}

func TestAiffDecode(t *testing.T) {
	raw := makeAIFF(t, []int{0, 8192, -8192, 16384, 0, -16384}, 2, 22050, 16)

	src, err := NewAiffDecoder().Decode(bytes.NewReader(raw))
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}

	want := source.Format{Channels: 2, SampleRate: 22050, Encoding: sample.EncodingS16}
	if src.Format() != want {
		t.Fatalf("Format() = %v, want %v", src.Format(), want)
	}
	if rem, known := src.Remaining(); !known || rem != 3 {
		t.Fatalf("Remaining() = (%d, %v), want (3, true)", rem, known)
	}

	dst := make([]float64, 6)
	n, ok := src.ReadFrames(dst)
	if !ok || n != 3 {
		t.Fatalf("ReadFrames = (%d, %v), want (3, true)", n, ok)
	}
	expected := []float64{0, 0.25, -0.25, 0.5, 0, -0.5}
	for i, want := range expected {
		if math.Abs(dst[i]-want) > 1e-9 {
			t.Errorf("sample %d = %v, want %v", i, dst[i], want)
		}
	}
}

func TestAiffDecodeInvalidData(t *testing.T) {
	decoder := NewAiffDecoder()
	if _, err := decoder.Decode(bytes.NewReader(nil)); err == nil {
		t.Error("expected error for empty data")
	}
	if _, err := decoder.Decode(bytes.NewReader([]byte("FORMnope"))); err == nil {
		t.Error("expected error for invalid AIFF data")
	}
}

func TestRegistryDetection(t *testing.T) {
	registry := NewDefaultRegistry()

	if got := registry.DetectFormat("a.wav"); got == nil || got.FormatName() != "WAV" {
		t.Error("extension detection failed for .wav")
	}
	if got := registry.DetectFormat("a.xyz"); got != nil {
		t.Errorf("expected nil decoder for unknown extension, got %s", got.FormatName())
	}

	// magic bytes beat a lying extension
	wavBytes := makeWAV([]int16{0, 0, 0, 0}, 1, 8000)
	if got := registry.DetectFormatFromHeader("mislabeled.mp3", wavBytes); got == nil || got.FormatName() != "WAV" {
		t.Error("magic-byte detection should override the extension")
	}

	// garbage content falls back to the extension
	if got := registry.DetectFormatFromHeader("real.wav", []byte("garbage header")); got == nil || got.FormatName() != "WAV" {
		t.Error("extension fallback failed")
	}

	formats := registry.SupportedFormats()
	if len(formats) != 3 {
		t.Errorf("expected 3 supported formats, got %v", formats)
	}
}

func TestRegistryDecodeUnsupported(t *testing.T) {
	registry := NewDefaultRegistry()
	if _, err := registry.Decode("file.xyz", bytes.NewReader([]byte("nothing recognizable"))); err == nil {
		t.Error("expected error for undetectable input")
	}
}

func TestRegistryOpenFile(t *testing.T) {
	fs := afero.NewMemMapFs()
	raw := makeWAV([]int16{100, 200, 300, 400}, 1, 16000)
	if err := afero.WriteFile(fs, "/music/clip.wav", raw, 0644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	registry := NewDefaultRegistry()
	stream, err := registry.OpenFile(fs, "/music/clip.wav")
	if err != nil {
		t.Fatalf("OpenFile: %v", err)
	}
	if stream.Name() != "/music/clip.wav" {
		t.Errorf("Name() = %q", stream.Name())
	}

	dst := make([]float64, 4)
	if n, ok := stream.ReadFrames(dst); !ok || n != 4 {
		t.Fatalf("ReadFrames = (%d, %v), want (4, true)", n, ok)
	}
	if err := stream.Close(); err != nil {
		t.Errorf("Close: %v", err)
	}
	if n, ok := stream.ReadFrames(dst); ok || n != 0 {
		t.Errorf("read after Close = (%d, %v), want (0, false)", n, ok)
	}

	if _, err := registry.OpenFile(fs, "/music/missing.wav"); err == nil {
		t.Error("expected error for missing file")
	}
}
