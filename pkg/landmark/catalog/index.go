package catalog

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"slices"
	"sync"

	"github.com/himanishpuri/landmark/pkg/landmark/fingerprint"
)

// ErrCorruptIndex is returned when persisted catalog state fails validation
// or cannot be decoded.
var ErrCorruptIndex = errors.New("corrupt index")

// Entry is one occurrence of a hash inside a catalogued track.
type Entry struct {
	TrackID int
	Anchor  int
}

// Track is a whole ingested recording, as handed to durable storage.
type Track struct {
	ID           int
	Name         string
	Fingerprints []fingerprint.Fingerprint
}

// TrackInfo summarises a catalogued track.
type TrackInfo struct {
	ID   int    `json:"id"`
	Name string `json:"name"`
}

// Stats describes the size of the catalog.
type Stats struct {
	Tracks  int `json:"tracks"`
	Buckets int `json:"buckets"`
	Entries int `json:"entries"`
	NextID  int `json:"next_id"`
}

// CommitFunc makes a track durable before it becomes visible in memory. A
// non-nil error aborts the ingest.
type CommitFunc func(ctx context.Context, track Track) error

// Index maps hashes to the tracks and anchor frames they occur at. Readers
// share an RWMutex; ingests are additionally serialised by writeMu so storage
// commits run without blocking lookups.
type Index struct {
	writeMu sync.Mutex

	mu      sync.RWMutex
	buckets map[fingerprint.Hash][]Entry
	names   map[int]string
	nextID  int
	entries int
}

func New() *Index {
	return &Index{
		buckets: make(map[fingerprint.Hash][]Entry),
		names:   make(map[int]string),
	}
}

// Ingest assigns the next track ID to name, commits the track through commit
// (if non-nil) and then publishes every fingerprint in a single step.
func (x *Index) Ingest(ctx context.Context, name string, fps []fingerprint.Fingerprint, commit CommitFunc) (int, error) {
	if name == "" {
		return -1, fmt.Errorf("track name cannot be empty: %w", fingerprint.ErrInvalidInput)
	}

	x.writeMu.Lock()
	defer x.writeMu.Unlock()

	x.mu.RLock()
	id := x.nextID
	x.mu.RUnlock()

	if commit != nil {
		if err := commit(ctx, Track{ID: id, Name: name, Fingerprints: fps}); err != nil {
			return -1, err
		}
	}

	x.mu.Lock()
	defer x.mu.Unlock()
	for _, fp := range fps {
		x.buckets[fp.Hash] = append(x.buckets[fp.Hash], Entry{TrackID: id, Anchor: fp.Anchor})
	}
	x.entries += len(fps)
	x.names[id] = name
	x.nextID = id + 1
	return id, nil
}

// Lookup returns the entries stored under h in insertion order. The result
// must not be modified.
func (x *Index) Lookup(h fingerprint.Hash) []Entry {
	x.mu.RLock()
	defer x.mu.RUnlock()
	b := x.buckets[h]
	return b[:len(b):len(b)]
}

// Name returns the display name of a track.
func (x *Index) Name(id int) (string, bool) {
	x.mu.RLock()
	defer x.mu.RUnlock()
	name, ok := x.names[id]
	return name, ok
}

// Tracks lists every track ordered by ID.
func (x *Index) Tracks() []TrackInfo {
	x.mu.RLock()
	defer x.mu.RUnlock()
	out := make([]TrackInfo, 0, len(x.names))
	for _, id := range slices.Sorted(maps.Keys(x.names)) {
		out = append(out, TrackInfo{ID: id, Name: x.names[id]})
	}
	return out
}

func (x *Index) Len() int {
	x.mu.RLock()
	defer x.mu.RUnlock()
	return len(x.names)
}

func (x *Index) Stats() Stats {
	x.mu.RLock()
	defer x.mu.RUnlock()
	return Stats{
		Tracks:  len(x.names),
		Buckets: len(x.buckets),
		Entries: x.entries,
		NextID:  x.nextID,
	}
}

// Snapshot copies the full catalog state.
func (x *Index) Snapshot() *Snapshot {
	x.mu.RLock()
	defer x.mu.RUnlock()
	s := &Snapshot{
		Buckets: make(map[fingerprint.Hash][]Entry, len(x.buckets)),
		Names:   maps.Clone(x.names),
		NextID:  x.nextID,
	}
	for h, b := range x.buckets {
		s.Buckets[h] = slices.Clone(b)
	}
	return s
}

// SaveFunc writes a snapshot to durable storage.
type SaveFunc func(ctx context.Context, s *Snapshot) error

// Persist snapshots the catalog and hands it to save while holding the
// writer lock, so no ingest can commit between the snapshot and the write.
// Lookups are not blocked.
func (x *Index) Persist(ctx context.Context, save SaveFunc) (*Snapshot, error) {
	x.writeMu.Lock()
	defer x.writeMu.Unlock()

	snap := x.Snapshot()
	if err := save(ctx, snap); err != nil {
		return nil, err
	}
	return snap, nil
}

// Restore replaces the catalog with s after validating it.
func (x *Index) Restore(s *Snapshot) error {
	if err := s.Validate(); err != nil {
		return err
	}

	buckets := make(map[fingerprint.Hash][]Entry, len(s.Buckets))
	entries := 0
	for h, b := range s.Buckets {
		buckets[h] = slices.Clone(b)
		entries += len(b)
	}
	names := maps.Clone(s.Names)
	if names == nil {
		names = make(map[int]string)
	}

	x.writeMu.Lock()
	defer x.writeMu.Unlock()
	x.mu.Lock()
	defer x.mu.Unlock()
	x.buckets = buckets
	x.names = names
	x.nextID = s.NextID
	x.entries = entries
	return nil
}
