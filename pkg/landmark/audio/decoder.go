package audio

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	goaudio "github.com/go-audio/audio"
	"github.com/go-audio/wav"
	"github.com/hajimehoshi/go-mp3"

	"github.com/himanishpuri/landmark/pkg/landmark/fingerprint"
)

// Clip is decoded mono audio normalised to [-1, 1].
type Clip struct {
	Samples    []float64
	SampleRate int
}

// Duration returns the clip length in seconds.
func (c *Clip) Duration() float64 {
	if c.SampleRate == 0 {
		return 0
	}
	return float64(len(c.Samples)) / float64(c.SampleRate)
}

// Load decodes the file at path and rejects clips whose sample rate differs
// from wantRate. A wantRate of 0 accepts any rate.
func Load(path string, wantRate int) (*Clip, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening %s: %w", path, err)
	}
	defer f.Close()

	var clip *Clip
	switch strings.ToLower(filepath.Ext(path)) {
	case ".mp3":
		clip, err = DecodeMP3(f)
	case ".wav", ".wave":
		clip, err = DecodeWAV(f)
	default:
		clip, err = Decode(f)
	}
	if err != nil {
		return nil, fmt.Errorf("decoding %s: %w", filepath.Base(path), err)
	}

	if wantRate > 0 && clip.SampleRate != wantRate {
		return nil, fmt.Errorf("%s is sampled at %d Hz, expected %d Hz: %w",
			filepath.Base(path), clip.SampleRate, wantRate, fingerprint.ErrInvalidInput)
	}
	return clip, nil
}

// Decode sniffs the container from the first bytes of r.
func Decode(r io.ReadSeeker) (*Clip, error) {
	var head [4]byte
	if _, err := io.ReadFull(r, head[:]); err != nil {
		return nil, fmt.Errorf("reading header: %w", fingerprint.ErrInvalidInput)
	}
	if _, err := r.Seek(0, io.SeekStart); err != nil {
		return nil, err
	}

	switch {
	case bytes.Equal(head[:], []byte("RIFF")):
		return DecodeWAV(r)
	case bytes.Equal(head[:3], []byte("ID3")), head[0] == 0xFF && head[1]&0xE0 == 0xE0:
		return DecodeMP3(r)
	default:
		return nil, fmt.Errorf("unrecognised audio container: %w", fingerprint.ErrInvalidInput)
	}
}

// DecodeWAV reads an integer PCM WAV stream and mixes it down to mono.
func DecodeWAV(r io.ReadSeeker) (*Clip, error) {
	d := wav.NewDecoder(r)
	if !d.IsValidFile() {
		return nil, fmt.Errorf("not a valid WAV file: %w", fingerprint.ErrInvalidInput)
	}
	if d.WavAudioFormat != 1 {
		return nil, fmt.Errorf("unsupported WAV audio format %d, only PCM is supported: %w", d.WavAudioFormat, fingerprint.ErrInvalidInput)
	}

	buf, err := d.FullPCMBuffer()
	if err != nil {
		return nil, fmt.Errorf("reading PCM data: %w", err)
	}
	if buf.Format == nil || buf.Format.NumChannels < 1 {
		return nil, fmt.Errorf("WAV file declares no channels: %w", fingerprint.ErrInvalidInput)
	}

	return &Clip{
		Samples:    mixDown(buf),
		SampleRate: buf.Format.SampleRate,
	}, nil
}

// mixDown averages interleaved channels and scales by the source bit depth.
func mixDown(buf *goaudio.IntBuffer) []float64 {
	channels := buf.Format.NumChannels
	depth := buf.SourceBitDepth
	scale := 1.0 / float64(int64(1)<<(depth-1))
	bias := 0
	if depth == 8 {
		// 8-bit PCM is unsigned
		bias = 128
	}

	frames := len(buf.Data) / channels
	out := make([]float64, frames)
	for i := 0; i < frames; i++ {
		sum := 0.0
		for c := 0; c < channels; c++ {
			sum += float64(buf.Data[i*channels+c]-bias) * scale
		}
		out[i] = sum / float64(channels)
	}
	return out
}

// DecodeMP3 decodes an MP3 stream. go-mp3 always produces 16-bit
// little-endian stereo.
func DecodeMP3(r io.Reader) (*Clip, error) {
	d, err := mp3.NewDecoder(r)
	if err != nil {
		return nil, fmt.Errorf("opening MP3 stream: %v: %w", err, fingerprint.ErrInvalidInput)
	}

	raw, err := io.ReadAll(d)
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) {
		return nil, fmt.Errorf("decoding MP3 frames: %w", err)
	}

	const scale = 1.0 / 32768.0
	frames := len(raw) / 4
	out := make([]float64, frames)
	for i := 0; i < frames; i++ {
		left := int16(binary.LittleEndian.Uint16(raw[i*4:]))
		right := int16(binary.LittleEndian.Uint16(raw[i*4+2:]))
		out[i] = (float64(left) + float64(right)) * 0.5 * scale
	}

	return &Clip{Samples: out, SampleRate: d.SampleRate()}, nil
}
