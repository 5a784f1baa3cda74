package fingerprint

import (
	"encoding/json"
	"errors"
	"slices"
	"testing"
)

func TestPackedHasher(t *testing.T) {
	var h PackedHasher

	tests := []struct {
		anchor, target, delta int
		ok                    bool
	}{
		{0, 0, 0, true},
		{1, 2, 3, true},
		{1024, 17, 200, true},
		{maxFreq, maxFreq, maxDelta, true},
		{maxFreq + 1, 0, 0, false},
		{0, -1, 0, false},
		{0, 0, maxDelta + 1, false},
		{0, 0, -1, false},
	}

	for _, tt := range tests {
		got, ok := h.Hash(tt.anchor, tt.target, tt.delta)
		if ok != tt.ok {
			t.Errorf("Hash(%d, %d, %d): expected ok=%v, got %v", tt.anchor, tt.target, tt.delta, tt.ok, ok)
			continue
		}
		if !ok {
			continue
		}
		a, b, d := h.Unpack(got)
		if a != tt.anchor || b != tt.target || d != tt.delta {
			t.Errorf("Unpack(%d) = (%d, %d, %d), expected (%d, %d, %d)", got, a, b, d, tt.anchor, tt.target, tt.delta)
		}
	}

	got, _ := h.Hash(1, 2, 3)
	if want := Hash(1<<43 | 2<<22 | 3); got != want {
		t.Errorf("Expected packed layout %d, got %d", want, got)
	}
}

func TestXXHasherDeterministic(t *testing.T) {
	a := XXHasher{Seed: DefaultSeed}
	b := XXHasher{Seed: DefaultSeed}

	h1, ok1 := a.Hash(100, 200, 37)
	h2, ok2 := b.Hash(100, 200, 37)
	if !ok1 || !ok2 || h1 != h2 {
		t.Errorf("Expected equal hashes for equal input, got %d and %d", h1, h2)
	}
	// catalogs persisted with the default seed depend on this value
	if h1 != 0xbe7cb26f38cd2dd6 {
		t.Errorf("Expected 0xbe7cb26f38cd2dd6, got %#x", uint64(h1))
	}

	h3, _ := a.Hash(200, 100, 37)
	if h3 == h1 {
		t.Error("Expected swapped frequencies to hash differently")
	}

	h4, _ := XXHasher{Seed: 1}.Hash(100, 200, 37)
	if h4 == h1 {
		t.Error("Expected a different seed to change the hash")
	}
}

func TestHasherByName(t *testing.T) {
	for name, want := range map[string]string{"": "packed", "packed": "packed", "xxhash": "xxhash"} {
		h, err := HasherByName(name)
		if err != nil {
			t.Fatalf("HasherByName(%q): %v", name, err)
		}
		if h.Name() != want {
			t.Errorf("HasherByName(%q): expected %s, got %s", name, want, h.Name())
		}
	}

	if _, err := HasherByName("md5"); !errors.Is(err, ErrInvalidInput) {
		t.Errorf("Expected ErrInvalidInput, got %v", err)
	}
}

func trainPeaks(n, step int) []Peak {
	peaks := make([]Peak, n)
	for i := range peaks {
		peaks[i] = Peak{Freq: (i * 37) % 512, Time: i * step}
	}
	return peaks
}

func TestGenerateFanOutBound(t *testing.T) {
	peaks := trainPeaks(50, 3)

	for _, k := range []int{1, 5, 15, 100} {
		cfg := DefaultGeneratorConfig()
		cfg.FanOut = k
		fps := Collect(peaks, cfg)

		if len(fps) > len(peaks)*k {
			t.Errorf("FanOut=%d: expected at most %d fingerprints, got %d", k, len(peaks)*k, len(fps))
		}
	}
}

func TestGenerateDeltaWindow(t *testing.T) {
	peaks := trainPeaks(40, 7)
	cfg := GeneratorConfig{FanOut: 10, MinDelta: 10, MaxDelta: 40, Hasher: PackedHasher{}}

	fps := Collect(peaks, cfg)
	if len(fps) == 0 {
		t.Fatal("Expected fingerprints inside the window")
	}
	for _, fp := range fps {
		_, _, delta := PackedHasher{}.Unpack(fp.Hash)
		if delta < cfg.MinDelta || delta > cfg.MaxDelta {
			t.Errorf("Fingerprint delta %d outside [%d, %d]", delta, cfg.MinDelta, cfg.MaxDelta)
		}
	}

	// 7-frame steps: deltas 14..35 qualify, i.e. j = i+2 .. i+5
	expected := 0
	for i := range peaks {
		for j := i + 2; j <= min(i+5, len(peaks)-1); j++ {
			expected++
		}
	}
	if len(fps) != expected {
		t.Errorf("Expected %d fingerprints, got %d", expected, len(fps))
	}
}

func TestGenerateSortsInput(t *testing.T) {
	peaks := trainPeaks(30, 2)
	shuffled := slices.Clone(peaks)
	slices.Reverse(shuffled)
	original := slices.Clone(shuffled)

	cfg := DefaultGeneratorConfig()
	a := Collect(peaks, cfg)
	b := Collect(shuffled, cfg)

	if !slices.Equal(a, b) {
		t.Error("Expected identical fingerprints regardless of input order")
	}
	if !slices.Equal(shuffled, original) {
		t.Error("Generate modified its input")
	}
	for _, fp := range a {
		if fp.Anchor < 0 {
			t.Errorf("Unexpected anchor %d", fp.Anchor)
		}
	}
}

func TestGenerateDeterministicAcrossHashers(t *testing.T) {
	peaks := trainPeaks(60, 4)
	for _, h := range []Hasher{PackedHasher{}, XXHasher{Seed: DefaultSeed}} {
		cfg := DefaultGeneratorConfig()
		cfg.Hasher = h
		if !slices.Equal(Collect(peaks, cfg), Collect(peaks, cfg)) {
			t.Errorf("%s: generation is not deterministic", h.Name())
		}
	}
}

func TestGenerateMaxFingerprints(t *testing.T) {
	peaks := trainPeaks(60, 4)
	cfg := DefaultGeneratorConfig()
	all := Collect(peaks, cfg)

	cfg.MaxFingerprints = 10
	capped := Collect(peaks, cfg)
	if !slices.Equal(capped, all[:10]) {
		t.Errorf("Expected the first 10 fingerprints, got %d", len(capped))
	}
}

func TestGenerateEarlyStop(t *testing.T) {
	count := 0
	for range Generate(trainPeaks(60, 4), DefaultGeneratorConfig()) {
		count++
		if count == 3 {
			break
		}
	}
	if count != 3 {
		t.Errorf("Expected iteration to stop after 3, got %d", count)
	}
}

func TestGenerateEmpty(t *testing.T) {
	if fps := Collect(nil, DefaultGeneratorConfig()); len(fps) != 0 {
		t.Errorf("Expected no fingerprints, got %d", len(fps))
	}
	if fps := Collect([]Peak{{Freq: 1, Time: 1}}, DefaultGeneratorConfig()); len(fps) != 0 {
		t.Errorf("Expected no fingerprints for a single peak, got %d", len(fps))
	}
}

func TestHashUnmarshalJSON(t *testing.T) {
	tests := []struct {
		input   string
		want    Hash
		wantErr bool
	}{
		{`42`, 42, false},
		{`"18446744073709551615"`, Hash(^uint64(0)), false},
		{`"abc"`, 0, true},
		{`-1`, 0, true},
	}

	for _, tt := range tests {
		var h Hash
		err := json.Unmarshal([]byte(tt.input), &h)
		if tt.wantErr {
			if !errors.Is(err, ErrInvalidInput) {
				t.Errorf("%s: expected ErrInvalidInput, got %v", tt.input, err)
			}
			continue
		}
		if err != nil || h != tt.want {
			t.Errorf("%s: expected %d, got %d (%v)", tt.input, tt.want, h, err)
		}
	}
}
