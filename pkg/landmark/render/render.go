// Package render draws spectrograms and their constellation of peaks as
// PNG images, for eyeballing peak density and filter settings.
package render

import (
	"fmt"
	"image"
	"image/color"
	"image/draw"

	"github.com/eligwz/spectrogram"
	"gonum.org/v1/gonum/floats"

	"github.com/himanishpuri/landmark/pkg/landmark/fingerprint"
)

// Options controls the rendered image.
type Options struct {
	Background string // hex colour behind the spectrogram
	PeakColor  string // hex colour of peak markers
	PeakRadius int    // marker half-width in pixels, 0 marks a single pixel
}

func DefaultOptions() Options {
	return Options{
		Background: "000000",
		PeakColor:  "ff3030",
		PeakRadius: 1,
	}
}

// SavePNG writes s to path, one pixel per frame and bin with the lowest
// bin at the bottom, and marks every peak.
func SavePNG(s *fingerprint.Spectrogram, peaks []fingerprint.Peak, path string, opts Options) error {
	if err := s.Validate(); err != nil {
		return err
	}
	bins, frames := s.Bins(), s.Frames()

	img := spectrogram.NewImage128(image.Rect(0, 0, frames, bins))
	draw.Draw(img, img.Bounds(), image.NewUniform(spectrogram.ParseColor(opts.Background)), image.Point{}, draw.Src)

	lo, hi := valueRange(s.Values)
	span := hi - lo
	for f, row := range s.Values {
		y := bins - 1 - f
		for t, v := range row {
			img.Set(t, y, shade(v, lo, span))
		}
	}

	mark := spectrogram.ParseColor(opts.PeakColor)
	for _, p := range peaks {
		if p.Freq < 0 || p.Freq >= bins || p.Time < 0 || p.Time >= frames {
			return fmt.Errorf("peak (%d, %d) outside %dx%d spectrogram: %w", p.Freq, p.Time, bins, frames, fingerprint.ErrInvalidInput)
		}
		y := bins - 1 - p.Freq
		for dy := -opts.PeakRadius; dy <= opts.PeakRadius; dy++ {
			for dx := -opts.PeakRadius; dx <= opts.PeakRadius; dx++ {
				x, yy := p.Time+dx, y+dy
				if x >= 0 && x < frames && yy >= 0 && yy < bins {
					img.Set(x, yy, mark)
				}
			}
		}
	}

	return spectrogram.SavePng(img, path)
}

func valueRange(values [][]float64) (lo, hi float64) {
	lo, hi = values[0][0], values[0][0]
	for _, row := range values {
		lo = min(lo, floats.Min(row))
		hi = max(hi, floats.Max(row))
	}
	return lo, hi
}

// shade maps v onto a grey level, brightest at the loudest value.
func shade(v, lo, span float64) color.Gray {
	if span <= 0 {
		return color.Gray{Y: 0}
	}
	return color.Gray{Y: uint8(255 * (v - lo) / span)}
}
