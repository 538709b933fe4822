package sample

import (
	"errors"
	"fmt"
	"math"
	"strings"
)

// Common sample model errors
var (
	ErrUnknownEncoding = errors.New("unknown sample encoding")
)

// Encoding identifies how a single sample is stored on the wire.
// The pipeline itself works in normalized float64; encodings matter at
// the boundaries (decoders, the output bridge) and for quantization.
type Encoding int

const (
	// EncodingInvalid is the zero value and never valid in a format.
	EncodingInvalid Encoding = iota
	EncodingU8               // unsigned 8-bit, silence at 128
	EncodingS16              // signed 16-bit little endian
	EncodingS24              // signed 24-bit little endian
	EncodingS32              // signed 32-bit little endian
	EncodingF32              // IEEE 754 32-bit float little endian
)

// ParseEncoding maps a config/CLI name to an Encoding.
func ParseEncoding(name string) (Encoding, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "u8":
		return EncodingU8, nil
	case "s16":
		return EncodingS16, nil
	case "s24":
		return EncodingS24, nil
	case "s32":
		return EncodingS32, nil
	case "f32":
		return EncodingF32, nil
	default:
		return EncodingInvalid, fmt.Errorf("%w: %q", ErrUnknownEncoding, name)
	}
}

// String returns the canonical name of the encoding
func (e Encoding) String() string {
	switch e {
	case EncodingU8:
		return "u8"
	case EncodingS16:
		return "s16"
	case EncodingS24:
		return "s24"
	case EncodingS32:
		return "s32"
	case EncodingF32:
		return "f32"
	default:
		return "invalid"
	}
}

// Valid reports whether the encoding is a member of the supported set
func (e Encoding) Valid() bool {
	return e >= EncodingU8 && e <= EncodingF32
}

// Bytes returns the storage size of one sample in this encoding
func (e Encoding) Bytes() int {
	switch e {
	case EncodingU8:
		return 1
	case EncodingS16:
		return 2
	case EncodingS24:
		return 3
	case EncodingS32, EncodingF32:
		return 4
	default:
		return 0
	}
}

// full-scale magnitude of the integer encodings
const (
	maxS16 = 1<<15 - 1
	maxS24 = 1<<23 - 1
	maxS32 = 1<<31 - 1
)

// Clamp limits a normalized sample to the valid [-1, 1] range.
// Mixing sums are clamped here instead of wrapping around.
func Clamp(v float64) float64 {
	if v > 1 {
		return 1
	}
	if v < -1 {
		return -1
	}
	return v
}

// Mix sums two normalized samples with saturation
func Mix(a, b float64) float64 {
	return Clamp(a + b)
}

// Quantize rounds a normalized sample to the grid the encoding can
// represent and returns it in the normalized domain again. Float
// encodings only clamp. This is the whole of the encoding adapter's
// per-sample work.
func Quantize(v float64, e Encoding) float64 {
	v = Clamp(v)
	switch e {
	case EncodingU8:
		// u8 stores 0..255 with silence at 128
		u := math.Round((v + 1) * 127.5)
		return u/127.5 - 1
	case EncodingS16:
		return math.Round(v*maxS16) / maxS16
	case EncodingS24:
		return math.Round(v*maxS24) / maxS24
	case EncodingS32:
		return math.Round(v*maxS32) / maxS32
	case EncodingF32:
		return float64(float32(v))
	default:
		return v
	}
}

// Step returns the quantization step of the encoding in the normalized
// domain, used by round-trip accuracy tests and tolerance checks.
func Step(e Encoding) float64 {
	switch e {
	case EncodingU8:
		return 1.0 / 127.5
	case EncodingS16:
		return 1.0 / maxS16
	case EncodingS24:
		return 1.0 / maxS24
	case EncodingS32:
		return 1.0 / maxS32
	case EncodingF32:
		return 1e-7
	default:
		return 0
	}
}

// Put writes one normalized sample into buf in the given encoding,
// little endian, and returns the number of bytes written. buf must
// have at least e.Bytes() bytes of space.
func Put(buf []byte, e Encoding, v float64) int {
	v = Clamp(v)
	switch e {
	case EncodingU8:
		buf[0] = byte(math.Round((v + 1) * 127.5))
		return 1
	case EncodingS16:
		s := int16(math.Round(v * maxS16))
		buf[0] = byte(s)
		buf[1] = byte(s >> 8)
		return 2
	case EncodingS24:
		s := int32(math.Round(v * maxS24))
		buf[0] = byte(s)
		buf[1] = byte(s >> 8)
		buf[2] = byte(s >> 16)
		return 3
	case EncodingS32:
		s := int32(math.Round(v * maxS32))
		buf[0] = byte(s)
		buf[1] = byte(s >> 8)
		buf[2] = byte(s >> 16)
		buf[3] = byte(s >> 24)
		return 4
	case EncodingF32:
		bits := math.Float32bits(float32(v))
		buf[0] = byte(bits)
		buf[1] = byte(bits >> 8)
		buf[2] = byte(bits >> 16)
		buf[3] = byte(bits >> 24)
		return 4
	default:
		return 0
	}
}

// At reads one sample in the given encoding from buf (little endian)
// and returns it normalized. buf must have at least e.Bytes() bytes.
func At(buf []byte, e Encoding) float64 {
	switch e {
	case EncodingU8:
		return float64(buf[0])/127.5 - 1
	case EncodingS16:
		s := int16(buf[0]) | int16(buf[1])<<8
		return float64(s) / maxS16
	case EncodingS24:
		s := int32(buf[0]) | int32(buf[1])<<8 | int32(buf[2])<<16
		// sign extend from 24 bits
		if s&0x800000 != 0 {
			s |= ^int32(0xFFFFFF)
		}
		return float64(s) / maxS24
	case EncodingS32:
		s := int32(buf[0]) | int32(buf[1])<<8 | int32(buf[2])<<16 | int32(buf[3])<<24
		return float64(s) / maxS32
	case EncodingF32:
		bits := uint32(buf[0]) | uint32(buf[1])<<8 | uint32(buf[2])<<16 | uint32(buf[3])<<24
		return float64(math.Float32frombits(bits))
	default:
		return 0
	}
}
