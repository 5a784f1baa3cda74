package fingerprint

import (
	"context"
	"fmt"
)

const (
	DefaultNeighborhood = 10
	DefaultFloor        = -40.0
)

// PlateauPolicy decides what happens when several adjacent cells tie for the
// neighbourhood maximum.
type PlateauPolicy int

const (
	// PlateauDedupe keeps one peak per 4-connected group of tied candidates,
	// the one with the earliest time and then the lowest bin.
	PlateauDedupe PlateauPolicy = iota
	// PlateauKeepAll keeps every candidate.
	PlateauKeepAll
)

type PeakConfig struct {
	Neighborhood int     // radius N of the footprint
	Floor        float64 // minimum value, same units as the spectrogram
	Shape        Footprint
	Plateau      PlateauPolicy
	MaxPeaks     int // 0 means unlimited
}

func DefaultPeakConfig() PeakConfig {
	return PeakConfig{
		Neighborhood: DefaultNeighborhood,
		Floor:        DefaultFloor,
		Shape:        ShapeDiamond,
		Plateau:      PlateauDedupe,
	}
}

// ExtractPeaks returns the local maxima of s that are at least cfg.Floor,
// ordered by time then frequency.
func ExtractPeaks(ctx context.Context, s *Spectrogram, cfg PeakConfig) ([]Peak, error) {
	if err := s.Validate(); err != nil {
		return nil, err
	}
	if cfg.Neighborhood < 0 {
		return nil, fmt.Errorf("negative neighborhood %d: %w", cfg.Neighborhood, ErrInvalidInput)
	}

	filtered, err := maxFilter(ctx, s.Values, cfg.Neighborhood, cfg.Shape)
	if err != nil {
		return nil, err
	}

	bins, frames := s.Bins(), s.Frames()
	isCandidate := func(f, t int) bool {
		v := s.Values[f][t]
		return v >= cfg.Floor && v == filtered[f][t]
	}

	var seen [][]bool
	if cfg.Plateau == PlateauDedupe {
		seen = make([][]bool, bins)
		for f := range seen {
			seen[f] = make([]bool, frames)
		}
	}

	peaks := make([]Peak, 0, frames)
	var stack []Peak
	for t := 0; t < frames; t++ {
		if t%256 == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}
		for f := 0; f < bins; f++ {
			if !isCandidate(f, t) {
				continue
			}
			if seen == nil {
				peaks = append(peaks, Peak{Freq: f, Time: t})
			} else if !seen[f][t] {
				// scan order makes this the earliest cell of its plateau
				peaks = append(peaks, Peak{Freq: f, Time: t})
				seen[f][t] = true
				stack = append(stack[:0], Peak{Freq: f, Time: t})
				for len(stack) > 0 {
					p := stack[len(stack)-1]
					stack = stack[:len(stack)-1]
					for _, d := range [4][2]int{{1, 0}, {-1, 0}, {0, 1}, {0, -1}} {
						nf, nt := p.Freq+d[0], p.Time+d[1]
						if nf < 0 || nf >= bins || nt < 0 || nt >= frames || seen[nf][nt] {
							continue
						}
						if isCandidate(nf, nt) {
							seen[nf][nt] = true
							stack = append(stack, Peak{Freq: nf, Time: nt})
						}
					}
				}
			}
			if cfg.MaxPeaks > 0 && len(peaks) >= cfg.MaxPeaks {
				return peaks, nil
			}
		}
	}
	return peaks, nil
}
