package fingerprint

import (
	"iter"
	"slices"
)

const (
	DefaultFanOut   = 15
	DefaultMinDelta = 0
	DefaultMaxDelta = 200
)

type GeneratorConfig struct {
	FanOut          int // forward pairings per anchor
	MinDelta        int // frames
	MaxDelta        int // frames
	MaxFingerprints int // 0 means unlimited
	Hasher          Hasher
}

func DefaultGeneratorConfig() GeneratorConfig {
	return GeneratorConfig{
		FanOut:   DefaultFanOut,
		MinDelta: DefaultMinDelta,
		MaxDelta: DefaultMaxDelta,
		Hasher:   PackedHasher{},
	}
}

// Generate pairs every peak with up to FanOut following peaks (in time, then
// frequency order) and yields one fingerprint per pair whose distance lies
// in [MinDelta, MaxDelta]. The input slice is not modified.
func Generate(peaks []Peak, cfg GeneratorConfig) iter.Seq[Fingerprint] {
	sorted := slices.Clone(peaks)
	slices.SortStableFunc(sorted, comparePeaks)

	hasher := cfg.Hasher
	if hasher == nil {
		hasher = PackedHasher{}
	}

	return func(yield func(Fingerprint) bool) {
		emitted := 0
		for i, anchor := range sorted {
			last := min(i+cfg.FanOut, len(sorted)-1)
			for j := i + 1; j <= last; j++ {
				target := sorted[j]
				delta := target.Time - anchor.Time
				if delta < cfg.MinDelta || delta > cfg.MaxDelta {
					continue
				}
				h, ok := hasher.Hash(anchor.Freq, target.Freq, delta)
				if !ok {
					continue
				}
				if !yield(Fingerprint{Hash: h, Anchor: anchor.Time}) {
					return
				}
				emitted++
				if cfg.MaxFingerprints > 0 && emitted >= cfg.MaxFingerprints {
					return
				}
			}
		}
	}
}

// Collect materialises Generate.
func Collect(peaks []Peak, cfg GeneratorConfig) []Fingerprint {
	return slices.Collect(Generate(peaks, cfg))
}
