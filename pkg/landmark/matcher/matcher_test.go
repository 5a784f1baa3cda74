package matcher

import (
	"context"
	"testing"

	"github.com/himanishpuri/landmark/pkg/landmark/catalog"
	"github.com/himanishpuri/landmark/pkg/landmark/fingerprint"
)

const (
	h1 fingerprint.Hash = 101
	h2 fingerprint.Hash = 202
	h3 fingerprint.Hash = 303
)

func fp(h fingerprint.Hash, anchor int) fingerprint.Fingerprint {
	return fingerprint.Fingerprint{Hash: h, Anchor: anchor}
}

func newIndex(t *testing.T, tracks map[string][]fingerprint.Fingerprint, order ...string) *catalog.Index {
	t.Helper()
	idx := catalog.New()
	for _, name := range order {
		if _, err := idx.Ingest(context.Background(), name, tracks[name], nil); err != nil {
			t.Fatalf("Ingest(%s) failed: %v", name, err)
		}
	}
	return idx
}

func TestIdentifyScenario(t *testing.T) {
	idx := newIndex(t, map[string][]fingerprint.Fingerprint{
		"A": {fp(h1, 0), fp(h2, 5)},
		"B": {fp(h3, 0)},
	}, "A", "B")

	cfg := DefaultConfig()
	cfg.MinConfidence = 1

	got := Identify([]fingerprint.Fingerprint{fp(h1, 100), fp(h2, 105)}, idx, cfg)
	if !got.Found {
		t.Fatal("Expected a match")
	}
	if got.Name != "A" || got.TrackID != 0 || got.Confidence != 2 {
		t.Errorf("Expected (A, 2), got (%s, %d)", got.Name, got.Confidence)
	}
	if got.Offset != 100 {
		t.Errorf("Expected offset 100, got %d", got.Offset)
	}
}

func TestIdentifyScenarioRangeBinning(t *testing.T) {
	idx := newIndex(t, map[string][]fingerprint.Fingerprint{
		"A": {fp(h1, 0), fp(h2, 5)},
		"B": {fp(h3, 0)},
	}, "A", "B")

	cfg := Config{MinConfidence: 1, Binning: BinRange, Bins: 100}
	got := Identify([]fingerprint.Fingerprint{fp(h1, 100), fp(h2, 105)}, idx, cfg)
	if !got.Found || got.Name != "A" || got.Confidence != 2 || got.Offset != 100 {
		t.Errorf("Expected (A, 2) at offset 100, got %+v", got)
	}
}

func TestIdentifyFloorIsStrict(t *testing.T) {
	idx := newIndex(t, map[string][]fingerprint.Fingerprint{
		"A": {fp(h1, 0), fp(h2, 5)},
	}, "A")

	cfg := DefaultConfig()
	cfg.MinConfidence = 2

	got := Identify([]fingerprint.Fingerprint{fp(h1, 100), fp(h2, 105)}, idx, cfg)
	if got.Found {
		t.Errorf("Expected no match when the score equals the floor, got %+v", got)
	}
	if got.Confidence != 0 || got.TrackID != -1 {
		t.Errorf("Expected the no-match result, got %+v", got)
	}
}

func TestIdentifyTieBreaksOnLowestID(t *testing.T) {
	idx := newIndex(t, map[string][]fingerprint.Fingerprint{
		"first":  {fp(h1, 0), fp(h2, 10)},
		"second": {fp(h1, 0), fp(h2, 10)},
	}, "first", "second")

	cfg := DefaultConfig()
	cfg.MinConfidence = 0

	for i := 0; i < 20; i++ {
		got := Identify([]fingerprint.Fingerprint{fp(h1, 3), fp(h2, 13)}, idx, cfg)
		if got.TrackID != 0 || got.Name != "first" {
			t.Fatalf("Expected the lowest track ID to win a tie, got %+v", got)
		}
	}
}

func TestIdentifyEmptyInputs(t *testing.T) {
	empty := catalog.New()
	if got := Identify([]fingerprint.Fingerprint{fp(h1, 0)}, empty, DefaultConfig()); got.Found {
		t.Errorf("Expected no match against an empty catalog, got %+v", got)
	}

	idx := newIndex(t, map[string][]fingerprint.Fingerprint{"A": {fp(h1, 0)}}, "A")
	if got := Identify(nil, idx, DefaultConfig()); got.Found {
		t.Errorf("Expected no match for an empty query, got %+v", got)
	}
}

func TestIdentifySelfMatch(t *testing.T) {
	track := make([]fingerprint.Fingerprint, 0, 40)
	for i := 0; i < 40; i++ {
		track = append(track, fp(fingerprint.Hash(1000+i), i*3))
	}
	noise := []fingerprint.Fingerprint{fp(1000, 50), fp(1001, 90), fp(1002, 7)}

	idx := newIndex(t, map[string][]fingerprint.Fingerprint{
		"noise": noise,
		"song":  track,
	}, "noise", "song")

	got := Identify(track, idx, DefaultConfig())
	if !got.Found || got.Name != "song" {
		t.Fatalf("Expected song to match itself, got %+v", got)
	}
	if got.Confidence < len(track) {
		t.Errorf("Expected confidence >= %d, got %d", len(track), got.Confidence)
	}
	if got.Offset != 0 {
		t.Errorf("Expected offset 0, got %d", got.Offset)
	}
}

func TestIdentifyOffsetInvariance(t *testing.T) {
	track := make([]fingerprint.Fingerprint, 0, 30)
	for i := 0; i < 30; i++ {
		track = append(track, fp(fingerprint.Hash(i%7), i*2))
	}
	idx := newIndex(t, map[string][]fingerprint.Fingerprint{"song": track}, "song")

	query := track[10:25]
	base := Identify(query, idx, DefaultConfig())

	const shift = 37
	shifted := make([]fingerprint.Fingerprint, len(query))
	for i, f := range query {
		shifted[i] = fp(f.Hash, f.Anchor+shift)
	}
	moved := Identify(shifted, idx, DefaultConfig())

	if base.Confidence != moved.Confidence {
		t.Errorf("Expected equal confidence, got %d and %d", base.Confidence, moved.Confidence)
	}
	if moved.Offset-base.Offset != shift {
		t.Errorf("Expected the offset to move by %d, got %d -> %d", shift, base.Offset, moved.Offset)
	}
}

func TestRankOrdersCandidates(t *testing.T) {
	idx := newIndex(t, map[string][]fingerprint.Fingerprint{
		"weak":   {fp(h1, 0)},
		"strong": {fp(h1, 0), fp(h2, 4), fp(h3, 8)},
		"none":   {fp(999, 0)},
	}, "weak", "strong", "none")

	ranked := Rank([]fingerprint.Fingerprint{fp(h1, 10), fp(h2, 14), fp(h3, 18)}, idx, DefaultConfig())
	if len(ranked) != 2 {
		t.Fatalf("Expected 2 candidates, got %+v", ranked)
	}
	if ranked[0].Name != "strong" || ranked[0].Score != 3 || ranked[0].Matches != 3 {
		t.Errorf("Unexpected first candidate %+v", ranked[0])
	}
	if ranked[1].Name != "weak" || ranked[1].Score != 1 {
		t.Errorf("Unexpected second candidate %+v", ranked[1])
	}
}

func TestFixedBinsAnchoredAtZero(t *testing.T) {
	cfg := Config{Binning: BinFixed, Width: 3}
	// -1 and -3 share bin [-3, 0); 0, 1, 2 share bin [0, 3)
	score, offset := histogramPeak([]int{-3, -1, 0, 1, 1, 2}, cfg)
	if score != 4 {
		t.Errorf("Expected score 4, got %d", score)
	}
	if offset != 1 {
		t.Errorf("Expected dominant offset 1, got %d", offset)
	}
}

func TestIdentifyWideBinReportsRawOffset(t *testing.T) {
	var track, query []fingerprint.Fingerprint
	for i := 0; i < 8; i++ {
		h := fingerprint.Hash(1000 + i)
		track = append(track, fp(h, i))
		shift := 4
		if i >= 6 {
			shift = 5
		}
		query = append(query, fp(h, i+shift))
	}
	idx := newIndex(t, map[string][]fingerprint.Fingerprint{"song": track}, "song")

	result := Identify(query, idx, Config{Binning: BinFixed, Width: 3, MinConfidence: DefaultMinConfidence})
	if !result.Found || result.Confidence != 8 {
		t.Fatalf("Expected all 8 offsets in one bin, got %+v", result)
	}
	if result.Offset != 4 {
		t.Errorf("Expected most frequent offset 4 rather than bin edge 3, got %d", result.Offset)
	}
}

func TestRangeBinsDependOnOutliers(t *testing.T) {
	offsets := []int{10, 10, 11, 14}
	score, _ := histogramPeak(offsets, Config{Binning: BinRange, Bins: 2})
	if score != 3 {
		t.Errorf("Expected 10, 10, 11 to share the lower bin, got %d", score)
	}

	withOutlier := append([]int{-1000}, offsets...)
	score, _ = histogramPeak(withOutlier, Config{Binning: BinRange, Bins: 2})
	if score != 4 {
		t.Errorf("Expected the outlier to widen the bins, got %d", score)
	}
}

func TestFloorDiv(t *testing.T) {
	tests := []struct {
		a, b, expected int
	}{
		{7, 3, 2},
		{6, 3, 2},
		{-1, 3, -1},
		{-3, 3, -1},
		{-4, 3, -2},
		{0, 5, 0},
	}

	for _, tt := range tests {
		if got := floorDiv(tt.a, tt.b); got != tt.expected {
			t.Errorf("floorDiv(%d, %d) = %d, expected %d", tt.a, tt.b, got, tt.expected)
		}
	}
}
