package decode

import (
	"fmt"
	"io"
	"log/slog"
	"strings"

	mp3 "github.com/hajimehoshi/go-mp3"

	"mixdeck.click/internal/sample"
	"mixdeck.click/internal/source"
)

// Mp3Decoder handles MP3 audio format decoding
type Mp3Decoder struct{}

// NewMp3Decoder creates a new MP3 decoder instance
func NewMp3Decoder() *Mp3Decoder {
	slog.Debug("creating new MP3 decoder instance")
	return &Mp3Decoder{}
}

// Decode parses the MP3 header and returns a streaming source.
// go-mp3 always yields 16-bit stereo PCM regardless of the file's own
// channel layout, so the source format is fixed at 2ch/s16.
func (d *Mp3Decoder) Decode(reader io.Reader) (source.Source, error) {
	slog.Debug("starting MP3 decode operation")

	decoder, err := mp3.NewDecoder(reader)
	if err != nil {
		slog.Error("failed to create MP3 decoder", "error", err)
		return nil, fmt.Errorf("%w: %v", ErrInvalidData, err)
	}

	sampleRate := decoder.SampleRate()
	if sampleRate <= 0 {
		slog.Error("invalid MP3 sample rate", "sample_rate", sampleRate)
		return nil, ErrInvalidData
	}

	slog.Debug("MP3 format detected", "sample_rate", sampleRate, "channels", 2)

	ms := &mp3Source{
		decoder: decoder,
		format: source.Format{
			Channels:   2,
			SampleRate: sampleRate,
			Encoding:   sample.EncodingS16,
		},
		totalFrames: -1,
	}
	// Length is the decoded stream size in bytes when the input
	// supports seeking, -1 otherwise
	if length := decoder.Length(); length >= 0 {
		ms.totalFrames = length / mp3FrameBytes
	}
	return ms, nil
}

// CanDecode checks if this decoder can handle the given filename
func (d *Mp3Decoder) CanDecode(filename string) bool {
	lower := strings.ToLower(filename)
	return strings.HasSuffix(lower, ".mp3") || strings.HasSuffix(lower, ".mpeg")
}

// FormatName returns the name of the format this decoder handles
func (d *Mp3Decoder) FormatName() string {
	return "MP3"
}

// go-mp3 output is always stereo s16le: 4 bytes per frame
const mp3FrameBytes = 4

// mp3Source pulls PCM bytes from go-mp3 on demand and lifts them to
// normalized samples
type mp3Source struct {
	decoder     *mp3.Decoder
	format      source.Format
	scratch     []byte
	totalFrames int64
	readFrames  int64
	exhausted   bool
	err         error
}

func (ms *mp3Source) ReadFrames(dst []float64) (int, bool) {
	if ms.exhausted {
		return 0, false
	}
	frames := len(dst) / ms.format.Channels
	if frames == 0 {
		return 0, true
	}

	want := frames * mp3FrameBytes
	if cap(ms.scratch) < want {
		ms.scratch = make([]byte, want)
	}
	buf := ms.scratch[:want]

	// go-mp3's Read can return short; keep pulling until a whole run
	// of frames is in hand or the stream ends
	filled := 0
	for filled < want {
		n, err := ms.decoder.Read(buf[filled:])
		filled += n
		if err != nil {
			ms.exhausted = true
			if err != io.EOF {
				ms.err = fmt.Errorf("%w: %v", ErrReadFailure, err)
			}
			break
		}
		if n == 0 {
			ms.exhausted = true
			break
		}
	}

	got := filled / mp3FrameBytes
	for i := 0; i < got*ms.format.Channels; i++ {
		dst[i] = sample.At(buf[i*2:], sample.EncodingS16)
	}
	ms.readFrames += int64(got)

	if got == 0 {
		ms.exhausted = true
		return 0, false
	}
	return got, true
}

func (ms *mp3Source) Format() source.Format {
	return ms.format
}

func (ms *mp3Source) Remaining() (int64, bool) {
	if ms.totalFrames < 0 {
		return 0, false
	}
	if ms.exhausted {
		return 0, true
	}
	rem := ms.totalFrames - ms.readFrames
	if rem < 0 {
		rem = 0
	}
	return rem, true
}

func (ms *mp3Source) Err() error {
	return ms.err
}
