package sample

import (
	"math"
	"testing"
)

func TestParseEncoding(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected Encoding
		wantErr  bool
	}{
		{name: "s16 lowercase", input: "s16", expected: EncodingS16},
		{name: "s16 uppercase", input: "S16", expected: EncodingS16},
		{name: "f32 with spaces", input: " f32 ", expected: EncodingF32},
		{name: "u8", input: "u8", expected: EncodingU8},
		{name: "s24", input: "s24", expected: EncodingS24},
		{name: "s32", input: "s32", expected: EncodingS32},
		{name: "unknown", input: "pcm64", wantErr: true},
		{name: "empty", input: "", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			enc, err := ParseEncoding(tt.input)
			if tt.wantErr {
				if err == nil {
					t.Errorf("expected error for %q, got none", tt.input)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if enc != tt.expected {
				t.Errorf("expected %v, got %v", tt.expected, enc)
			}
		})
	}
}

func TestEncodingBytes(t *testing.T) {
	tests := []struct {
		enc   Encoding
		bytes int
	}{
		{EncodingU8, 1},
		{EncodingS16, 2},
		{EncodingS24, 3},
		{EncodingS32, 4},
		{EncodingF32, 4},
		{EncodingInvalid, 0},
	}

	for _, tt := range tests {
		t.Run(tt.enc.String(), func(t *testing.T) {
			if got := tt.enc.Bytes(); got != tt.bytes {
				t.Errorf("Bytes() = %d, want %d", got, tt.bytes)
			}
		})
	}
}

func TestClamp(t *testing.T) {
	tests := []struct {
		name     string
		input    float64
		expected float64
	}{
		{"in range", 0.5, 0.5},
		{"above range", 1.7, 1.0},
		{"below range", -2.0, -1.0},
		{"exact top", 1.0, 1.0},
		{"exact bottom", -1.0, -1.0},
		{"zero", 0.0, 0.0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Clamp(tt.input); got != tt.expected {
				t.Errorf("Clamp(%v) = %v, want %v", tt.input, got, tt.expected)
			}
		})
	}
}

func TestMixSaturates(t *testing.T) {
	if got := Mix(0.8, 0.9); got != 1.0 {
		t.Errorf("Mix(0.8, 0.9) = %v, want clamped 1.0", got)
	}
	if got := Mix(-0.8, -0.9); got != -1.0 {
		t.Errorf("Mix(-0.8, -0.9) = %v, want clamped -1.0", got)
	}
	if got := Mix(0.25, -0.25); got != 0.0 {
		t.Errorf("Mix(0.25, -0.25) = %v, want 0", got)
	}
}

// Round-tripping through any encoding must stay within that encoding's
// quantization step of the original value.
func TestPutAtRoundTrip(t *testing.T) {
	encodings := []Encoding{EncodingU8, EncodingS16, EncodingS24, EncodingS32, EncodingF32}
	values := []float64{0, 1, -1, 0.5, -0.5, 0.333333, -0.999, 0.001}

	buf := make([]byte, 4)
	for _, enc := range encodings {
		for _, v := range values {
			n := Put(buf, enc, v)
			if n != enc.Bytes() {
				t.Fatalf("%v: Put wrote %d bytes, want %d", enc, n, enc.Bytes())
			}
			got := At(buf, enc)
			if diff := math.Abs(got - v); diff > Step(enc) {
				t.Errorf("%v: round trip of %v gave %v (diff %v > step %v)",
					enc, v, got, diff, Step(enc))
			}
		}
	}
}

// Converting to a wide encoding and back through a narrow one must be
// bounded by the narrow encoding's step, not the wide one's.
func TestCrossEncodingRoundTripBounded(t *testing.T) {
	buf := make([]byte, 4)
	for _, narrow := range []Encoding{EncodingU8, EncodingS16} {
		v := 0.123456789
		Put(buf, narrow, v)
		viaNarrow := At(buf, narrow)
		Put(buf, EncodingS32, viaNarrow)
		back := At(buf, EncodingS32)
		if diff := math.Abs(back - v); diff > Step(narrow) {
			t.Errorf("via %v: diff %v exceeds narrow step %v", narrow, diff, Step(narrow))
		}
	}
}

func TestQuantize(t *testing.T) {
	// silence survives every encoding exactly
	for _, enc := range []Encoding{EncodingU8, EncodingS16, EncodingS24, EncodingS32, EncodingF32} {
		if got := Quantize(0, enc); got != 0 {
			t.Errorf("%v: Quantize(0) = %v, want 0", enc, got)
		}
	}

	// out-of-range input is clamped before quantization
	if got := Quantize(1.5, EncodingS16); got != 1.0 {
		t.Errorf("Quantize(1.5, s16) = %v, want 1.0", got)
	}

	// quantizing an already-quantized value is a fixed point
	v := Quantize(0.7071, EncodingS16)
	if again := Quantize(v, EncodingS16); again != v {
		t.Errorf("Quantize not idempotent: %v then %v", v, again)
	}
}

func TestSilenceMidpoint(t *testing.T) {
	buf := make([]byte, 4)
	Put(buf, EncodingU8, 0)
	if buf[0] != 128 {
		t.Errorf("u8 silence byte = %d, want 128", buf[0])
	}
	Put(buf, EncodingS16, 0)
	if buf[0] != 0 || buf[1] != 0 {
		t.Errorf("s16 silence bytes = %v, want zeros", buf[:2])
	}
}
