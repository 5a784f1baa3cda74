package matcher

import (
	"cmp"
	"maps"
	"math"
	"slices"

	"github.com/himanishpuri/landmark/pkg/landmark/catalog"
	"github.com/himanishpuri/landmark/pkg/landmark/fingerprint"
)

const (
	DefaultMinConfidence = 5
	DefaultBinWidth      = 1
	DefaultRangeBins     = 100
)

// Binning selects how a candidate's offsets are grouped before voting.
type Binning int

const (
	// BinFixed uses bins of Width frames anchored at offset zero, so bin
	// boundaries do not depend on the query.
	BinFixed Binning = iota
	// BinRange spreads Bins equal bins over the candidate's observed
	// [min, max] offset range.
	BinRange
)

type Config struct {
	// A match needs a score strictly greater than MinConfidence.
	MinConfidence int
	Binning       Binning
	Width         int
	Bins          int
}

func DefaultConfig() Config {
	return Config{
		MinConfidence: DefaultMinConfidence,
		Binning:       BinFixed,
		Width:         DefaultBinWidth,
		Bins:          DefaultRangeBins,
	}
}

// Catalog is the read side of the fingerprint index.
type Catalog interface {
	Lookup(h fingerprint.Hash) []catalog.Entry
	Name(id int) (string, bool)
}

// Candidate is a track that shared at least one hash with the query.
type Candidate struct {
	TrackID int    `json:"track_id"`
	Name    string `json:"name"`
	Score   int    `json:"score"`   // tallest histogram bin
	Offset  int    `json:"offset"`  // most common offset inside that bin, in frames
	Matches int    `json:"matches"` // total offsets collected
}

// Result is the outcome of an identification. Found is false when no
// candidate cleared the confidence floor.
type Result struct {
	TrackID    int    `json:"track_id"`
	Name       string `json:"name"`
	Confidence int    `json:"confidence"`
	Offset     int    `json:"offset"`
	Found      bool   `json:"found"`
}

func NoMatch() Result {
	return Result{TrackID: -1}
}

// Rank scores every candidate track, best first. Ties on score go to the
// lowest track ID.
func Rank(query []fingerprint.Fingerprint, idx Catalog, cfg Config) []Candidate {
	offsets := make(map[int][]int)
	for _, fp := range query {
		for _, e := range idx.Lookup(fp.Hash) {
			offsets[e.TrackID] = append(offsets[e.TrackID], fp.Anchor-e.Anchor)
		}
	}

	candidates := make([]Candidate, 0, len(offsets))
	for _, id := range slices.Sorted(maps.Keys(offsets)) {
		score, offset := histogramPeak(offsets[id], cfg)
		name, _ := idx.Name(id)
		candidates = append(candidates, Candidate{
			TrackID: id,
			Name:    name,
			Score:   score,
			Offset:  offset,
			Matches: len(offsets[id]),
		})
	}

	slices.SortStableFunc(candidates, func(a, b Candidate) int {
		if a.Score != b.Score {
			return b.Score - a.Score
		}
		return cmp.Compare(a.TrackID, b.TrackID)
	})
	return candidates
}

// Identify returns the best candidate if its score exceeds cfg.MinConfidence.
func Identify(query []fingerprint.Fingerprint, idx Catalog, cfg Config) Result {
	return Best(Rank(query, idx, cfg), cfg)
}

// Best turns the output of Rank into a Result.
func Best(ranked []Candidate, cfg Config) Result {
	if len(ranked) == 0 {
		return NoMatch()
	}
	best := ranked[0]
	if best.Score <= cfg.MinConfidence {
		return NoMatch()
	}
	return Result{
		TrackID:    best.TrackID,
		Name:       best.Name,
		Confidence: best.Score,
		Offset:     best.Offset,
		Found:      true,
	}
}

// histogramPeak bins offsets and returns the tallest bin count together with
// the most frequent raw offset inside that bin.
func histogramPeak(offsets []int, cfg Config) (int, int) {
	if len(offsets) == 0 {
		return 0, 0
	}

	var binOf func(int) int
	switch cfg.Binning {
	case BinRange:
		binOf = rangeBinner(offsets, cfg.Bins)
	default:
		width := cfg.Width
		if width <= 0 {
			width = DefaultBinWidth
		}
		binOf = func(o int) int { return floorDiv(o, width) }
	}

	counts := make(map[int]int)
	for _, o := range offsets {
		counts[binOf(o)]++
	}

	bestBin, bestCount := 0, 0
	for _, b := range slices.Sorted(maps.Keys(counts)) {
		if counts[b] > bestCount {
			bestBin, bestCount = b, counts[b]
		}
	}

	raw := make(map[int]int)
	for _, o := range offsets {
		if binOf(o) == bestBin {
			raw[o]++
		}
	}
	offset, n := 0, 0
	for _, o := range slices.Sorted(maps.Keys(raw)) {
		if raw[o] > n {
			offset, n = o, raw[o]
		}
	}
	return bestCount, offset
}

// rangeBinner mirrors numpy.histogram with a bin count: equal-width bins over
// [min, max], the last bin closed, and a degenerate range widened by 0.5 on
// each side.
func rangeBinner(offsets []int, bins int) func(int) int {
	if bins <= 0 {
		bins = DefaultRangeBins
	}
	lo := float64(slices.Min(offsets))
	hi := float64(slices.Max(offsets))
	if lo == hi {
		lo -= 0.5
		hi += 0.5
	}
	width := (hi - lo) / float64(bins)
	return func(o int) int {
		b := int(math.Floor((float64(o) - lo) / width))
		if b >= bins {
			b = bins - 1
		}
		if b < 0 {
			b = 0
		}
		return b
	}
}

func floorDiv(a, b int) int {
	q := a / b
	if (a%b != 0) && ((a < 0) != (b < 0)) {
		q--
	}
	return q
}
