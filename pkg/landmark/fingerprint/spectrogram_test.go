package fingerprint

import (
	"errors"
	"math"
	"testing"
)

func sineWave(freq float64, sampleRate, n int) []float64 {
	samples := make([]float64, n)
	for i := range samples {
		samples[i] = 0.8 * math.Sin(2*math.Pi*freq*float64(i)/float64(sampleRate))
	}
	return samples
}

func TestComputeSpectrogramShape(t *testing.T) {
	const sampleRate = 11025
	samples := sineWave(1000, sampleRate, sampleRate)

	spec, err := ComputeSpectrogram(samples, sampleRate, DefaultSpectrogramConfig())
	if err != nil {
		t.Fatalf("Failed to compute spectrogram: %v", err)
	}

	if spec.Bins() != WindowSize/2+1 {
		t.Errorf("Expected %d bins, got %d", WindowSize/2+1, spec.Bins())
	}
	expectedFrames := 1 + len(samples)/HopSize
	if spec.Frames() != expectedFrames {
		t.Errorf("Expected %d frames, got %d", expectedFrames, spec.Frames())
	}
	if err := spec.Validate(); err != nil {
		t.Errorf("Expected valid spectrogram, got %v", err)
	}
	if spec.SampleRate != sampleRate || spec.HopSize != HopSize {
		t.Errorf("Unexpected metadata: rate=%d hop=%d", spec.SampleRate, spec.HopSize)
	}
}

func TestComputeSpectrogramDecibelRange(t *testing.T) {
	const sampleRate = 11025
	spec, err := ComputeSpectrogram(sineWave(1000, sampleRate, sampleRate), sampleRate, DefaultSpectrogramConfig())
	if err != nil {
		t.Fatalf("Failed to compute spectrogram: %v", err)
	}

	maxVal := math.Inf(-1)
	maxBin := -1
	for f, row := range spec.Values {
		for _, v := range row {
			if v < -TopDB-1e-9 || v > 1e-9 {
				t.Fatalf("Value %f outside [-%v, 0]", v, TopDB)
			}
			if v > maxVal {
				maxVal = v
				maxBin = f
			}
		}
	}

	if math.Abs(maxVal) > 1e-9 {
		t.Errorf("Expected loudest cell at 0 dB, got %f", maxVal)
	}

	expectedBin := int(math.Round(1000 * WindowSize / float64(sampleRate)))
	if maxBin < expectedBin-1 || maxBin > expectedBin+1 {
		t.Errorf("Expected loudest bin near %d, got %d", expectedBin, maxBin)
	}
}

func TestComputeSpectrogramShortInput(t *testing.T) {
	spec, err := ComputeSpectrogram(sineWave(440, 8000, 100), 8000, DefaultSpectrogramConfig())
	if err != nil {
		t.Fatalf("Expected short input to be padded, got %v", err)
	}
	if spec.Frames() != 1 {
		t.Errorf("Expected 1 frame, got %d", spec.Frames())
	}
}

func TestComputeSpectrogramInvalidInput(t *testing.T) {
	tests := []struct {
		name    string
		samples []float64
		rate    int
		cfg     SpectrogramConfig
	}{
		{"empty samples", nil, 11025, DefaultSpectrogramConfig()},
		{"zero rate", []float64{1, 2, 3}, 0, DefaultSpectrogramConfig()},
		{"tiny window", []float64{1, 2, 3}, 11025, SpectrogramConfig{WindowSize: 1, HopSize: 1}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ComputeSpectrogram(tt.samples, tt.rate, tt.cfg)
			if !errors.Is(err, ErrInvalidInput) {
				t.Errorf("Expected ErrInvalidInput, got %v", err)
			}
		})
	}
}

func TestSpectrogramValidate(t *testing.T) {
	tests := []struct {
		name  string
		spec  *Spectrogram
		valid bool
	}{
		{"nil", nil, false},
		{"no bins", &Spectrogram{}, false},
		{"no frames", &Spectrogram{Values: [][]float64{{}}}, false},
		{"ragged", &Spectrogram{Values: [][]float64{{1, 2}, {1}}}, false},
		{"ok", &Spectrogram{Values: [][]float64{{1, 2}, {3, 4}}}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.spec.Validate()
			if tt.valid && err != nil {
				t.Errorf("Expected valid, got %v", err)
			}
			if !tt.valid && !errors.Is(err, ErrInvalidInput) {
				t.Errorf("Expected ErrInvalidInput, got %v", err)
			}
		})
	}
}

func TestSpectrogramShift(t *testing.T) {
	spec := &Spectrogram{Values: [][]float64{{1, 2}, {3, 4}}, SampleRate: 100, HopSize: 10}
	shifted := spec.Shift(3, -80)

	if shifted.Frames() != 5 {
		t.Fatalf("Expected 5 frames, got %d", shifted.Frames())
	}
	if shifted.Values[1][3] != 3 || shifted.Values[1][4] != 4 {
		t.Errorf("Expected original values after padding, got %v", shifted.Values[1])
	}
	if shifted.Values[0][0] != -80 {
		t.Errorf("Expected fill value -80, got %f", shifted.Values[0][0])
	}
	if spec.Frames() != 2 {
		t.Errorf("Shift modified the receiver")
	}
}

func TestMagnitudeSpectrum(t *testing.T) {
	spectrum := []complex128{
		complex(1.0, 0.0),
		complex(0.0, 1.0),
		complex(3.0, 4.0),
		complex(0.0, 0.0),
	}

	mag := MagnitudeSpectrum(spectrum)

	expected := []float64{1.0, 1.0, 5.0}
	if len(mag) != len(expected) {
		t.Fatalf("Expected %d bins, got %d", len(expected), len(mag))
	}
	for i, e := range expected {
		if math.Abs(mag[i]-e) > 1e-9 {
			t.Errorf("Bin %d: expected %f, got %f", i, e, mag[i])
		}
	}
}
