package fingerprint

import (
	"fmt"
	"math"
	"math/cmplx"

	"github.com/mjibson/go-dsp/fft"
	"github.com/mjibson/go-dsp/window"
	"gonum.org/v1/gonum/floats"
)

const (
	WindowSize = 2048
	HopSize    = 512
	TopDB      = 80.0

	// amplitude floor before taking the log, keeps silence finite
	minAmplitude = 1e-5
)

// Spectrogram holds log-magnitude values laid out as Values[freq][time].
type Spectrogram struct {
	Values     [][]float64
	SampleRate int
	HopSize    int
}

type SpectrogramConfig struct {
	WindowSize int
	HopSize    int
	TopDB      float64
}

func DefaultSpectrogramConfig() SpectrogramConfig {
	return SpectrogramConfig{
		WindowSize: WindowSize,
		HopSize:    HopSize,
		TopDB:      TopDB,
	}
}

// Bins returns the number of frequency rows.
func (s *Spectrogram) Bins() int {
	return len(s.Values)
}

// Frames returns the number of time columns.
func (s *Spectrogram) Frames() int {
	if len(s.Values) == 0 {
		return 0
	}
	return len(s.Values[0])
}

// Validate checks the spectrogram is non-empty and rectangular.
func (s *Spectrogram) Validate() error {
	if s == nil {
		return fmt.Errorf("nil spectrogram: %w", ErrInvalidInput)
	}
	if len(s.Values) == 0 {
		return fmt.Errorf("spectrogram has no frequency bins: %w", ErrInvalidInput)
	}
	frames := len(s.Values[0])
	if frames == 0 {
		return fmt.Errorf("spectrogram has no frames: %w", ErrInvalidInput)
	}
	for f, row := range s.Values {
		if len(row) != frames {
			return fmt.Errorf("spectrogram row %d has %d frames, expected %d: %w", f, len(row), frames, ErrInvalidInput)
		}
	}
	return nil
}

// Shift returns a copy with n frames of fill value prepended to every row.
func (s *Spectrogram) Shift(n int, fill float64) *Spectrogram {
	out := &Spectrogram{
		Values:     make([][]float64, len(s.Values)),
		SampleRate: s.SampleRate,
		HopSize:    s.HopSize,
	}
	for f, row := range s.Values {
		shifted := make([]float64, n+len(row))
		for i := 0; i < n; i++ {
			shifted[i] = fill
		}
		copy(shifted[n:], row)
		out.Values[f] = shifted
	}
	return out
}

// FrameDuration returns the seconds covered by one hop.
func (s *Spectrogram) FrameDuration() float64 {
	if s.SampleRate <= 0 || s.HopSize <= 0 {
		return 0
	}
	return float64(s.HopSize) / float64(s.SampleRate)
}

func MagnitudeSpectrum(spectrum []complex128) []float64 {
	half := len(spectrum)/2 + 1
	mag := make([]float64, half)
	for i := 0; i < half; i++ {
		mag[i] = cmplx.Abs(spectrum[i])
	}
	return mag
}

// STFT returns magnitude frames as [time][freq]. The signal is zero padded by
// half a window on both sides so frame t is centred on sample t*hop.
func STFT(samples []float64, windowSize, hopSize int, win []float64) ([][]float64, error) {
	if len(win) != windowSize {
		return nil, fmt.Errorf("window length %d must equal window size %d: %w", len(win), windowSize, ErrInvalidInput)
	}

	pad := windowSize / 2
	padded := make([]float64, len(samples)+2*pad)
	copy(padded[pad:], samples)

	frames := make([][]float64, 0, 1+(len(padded)-windowSize)/hopSize)
	frame := make([]float64, windowSize)
	for start := 0; start+windowSize <= len(padded); start += hopSize {
		for i := 0; i < windowSize; i++ {
			frame[i] = padded[start+i] * win[i]
		}
		frames = append(frames, MagnitudeSpectrum(fft.FFTReal(frame)))
	}
	return frames, nil
}

// ComputeSpectrogram converts mono samples into a dB spectrogram relative to
// the loudest cell, floored at -TopDB.
func ComputeSpectrogram(samples []float64, sampleRate int, cfg SpectrogramConfig) (*Spectrogram, error) {
	if len(samples) == 0 {
		return nil, fmt.Errorf("samples cannot be empty: %w", ErrInvalidInput)
	}
	if sampleRate <= 0 {
		return nil, fmt.Errorf("sample rate must be positive, got %d: %w", sampleRate, ErrInvalidInput)
	}

	ws := cfg.WindowSize
	if ws == 0 {
		ws = WindowSize
	}
	hs := cfg.HopSize
	if hs == 0 {
		hs = HopSize
	}
	if ws < 2 || hs < 1 {
		return nil, fmt.Errorf("window %d / hop %d out of range: %w", ws, hs, ErrInvalidInput)
	}
	topDB := cfg.TopDB
	if topDB <= 0 {
		topDB = TopDB
	}

	stft, err := STFT(samples, ws, hs, window.Hann(ws))
	if err != nil {
		return nil, err
	}

	bins := ws/2 + 1
	values := make([][]float64, bins)
	for f := range values {
		values[f] = make([]float64, len(stft))
	}

	ref := minAmplitude
	for t, mag := range stft {
		ref = math.Max(ref, floats.Max(mag))
		for f, m := range mag {
			values[f][t] = m
		}
	}

	refDB := 20 * math.Log10(ref)
	floor := -topDB
	for _, row := range values {
		for t, m := range row {
			db := 20*math.Log10(math.Max(m, minAmplitude)) - refDB
			if db < floor {
				db = floor
			}
			row[t] = db
		}
	}

	return &Spectrogram{Values: values, SampleRate: sampleRate, HopSize: hs}, nil
}
