package catalog

import (
	"fmt"
	"maps"
	"slices"

	"github.com/himanishpuri/landmark/pkg/landmark/fingerprint"
)

// Snapshot is the persisted form of an Index: the bucket multimap, the
// display names and the ID counter.
type Snapshot struct {
	Buckets map[fingerprint.Hash][]Entry
	Names   map[int]string
	NextID  int
}

func NewSnapshot() *Snapshot {
	return &Snapshot{
		Buckets: make(map[fingerprint.Hash][]Entry),
		Names:   make(map[int]string),
	}
}

// Validate rejects counters that would let IDs be reused and entries that
// reference tracks the counter has not issued yet.
func (s *Snapshot) Validate() error {
	if s == nil {
		return fmt.Errorf("nil snapshot: %w", ErrCorruptIndex)
	}
	if s.NextID < 0 {
		return fmt.Errorf("negative next id %d: %w", s.NextID, ErrCorruptIndex)
	}
	for id := range s.Names {
		if id < 0 || id >= s.NextID {
			return fmt.Errorf("track %d outside issued range [0, %d): %w", id, s.NextID, ErrCorruptIndex)
		}
	}
	for h, b := range s.Buckets {
		for _, e := range b {
			if e.TrackID < 0 || e.TrackID >= s.NextID {
				return fmt.Errorf("bucket %d references track %d outside issued range [0, %d): %w", h, e.TrackID, s.NextID, ErrCorruptIndex)
			}
		}
	}
	return nil
}

// Hashes returns the bucket keys in ascending order.
func (s *Snapshot) Hashes() []fingerprint.Hash {
	return slices.Sorted(maps.Keys(s.Buckets))
}

// Append applies a track to the snapshot the same way Index.Ingest does.
func (s *Snapshot) Append(t Track) {
	for _, fp := range t.Fingerprints {
		s.Buckets[fp.Hash] = append(s.Buckets[fp.Hash], Entry{TrackID: t.ID, Anchor: fp.Anchor})
	}
	s.Names[t.ID] = t.Name
	if t.ID >= s.NextID {
		s.NextID = t.ID + 1
	}
}

// Equal reports whether two snapshots hold the same buckets (including entry
// order), names and counter.
func (s *Snapshot) Equal(o *Snapshot) bool {
	if s.NextID != o.NextID || !maps.Equal(s.Names, o.Names) || len(s.Buckets) != len(o.Buckets) {
		return false
	}
	for h, b := range s.Buckets {
		if !slices.Equal(b, o.Buckets[h]) {
			return false
		}
	}
	return true
}
