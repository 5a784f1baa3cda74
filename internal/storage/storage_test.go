package storage

import (
	"context"
	"testing"

	"github.com/himanishpuri/landmark/pkg/landmark/catalog"
	"github.com/himanishpuri/landmark/pkg/landmark/fingerprint"
)

// snapshotStore is the contract every backend in this package satisfies.
type snapshotStore interface {
	Save(ctx context.Context, s *catalog.Snapshot) error
	Load(ctx context.Context) (*catalog.Snapshot, error)
	Close() error
}

type trackAppender interface {
	AppendTrack(ctx context.Context, t catalog.Track) error
}

func sampleTracks() []catalog.Track {
	return []catalog.Track{
		{ID: 0, Name: "Song A", Fingerprints: []fingerprint.Fingerprint{
			{Hash: 0x10, Anchor: 5},
			{Hash: 0x20, Anchor: 7},
			{Hash: 0x10, Anchor: 9},
		}},
		{ID: 1, Name: "Song B", Fingerprints: []fingerprint.Fingerprint{
			{Hash: 0x10, Anchor: 100},
			{Hash: 1 << 63, Anchor: 3},
		}},
		{ID: 2, Name: "Silence", Fingerprints: nil},
	}
}

func sampleSnapshot() *catalog.Snapshot {
	s := catalog.NewSnapshot()
	for _, tr := range sampleTracks() {
		s.Append(tr)
	}
	return s
}

func assertRoundTrip(t *testing.T, st snapshotStore) {
	t.Helper()
	ctx := context.Background()
	want := sampleSnapshot()

	if err := st.Save(ctx, want); err != nil {
		t.Fatalf("Failed to save snapshot: %v", err)
	}
	got, err := st.Load(ctx)
	if err != nil {
		t.Fatalf("Failed to load snapshot: %v", err)
	}
	if !want.Equal(got) {
		t.Errorf("Expected %+v, got %+v", want, got)
	}
}

func assertAppend(t *testing.T, st snapshotStore, app trackAppender) {
	t.Helper()
	ctx := context.Background()
	want := catalog.NewSnapshot()

	for _, tr := range sampleTracks() {
		if err := app.AppendTrack(ctx, tr); err != nil {
			t.Fatalf("Failed to append track %d: %v", tr.ID, err)
		}
		want.Append(tr)
	}

	got, err := st.Load(ctx)
	if err != nil {
		t.Fatalf("Failed to load snapshot: %v", err)
	}
	if !want.Equal(got) {
		t.Errorf("Expected %+v, got %+v", want, got)
	}
	if entries := got.Buckets[0x10]; len(entries) != 3 || entries[2].TrackID != 1 {
		t.Errorf("Expected bucket 0x10 to keep insertion order, got %+v", entries)
	}
}

func assertEmpty(t *testing.T, st snapshotStore) {
	t.Helper()
	got, err := st.Load(context.Background())
	if err != nil {
		t.Fatalf("Failed to load empty store: %v", err)
	}
	if got.NextID != 0 || len(got.Names) != 0 || len(got.Buckets) != 0 {
		t.Errorf("Expected empty snapshot, got %+v", got)
	}
}

func assertSaveReplaces(t *testing.T, st snapshotStore) {
	t.Helper()
	ctx := context.Background()
	if err := st.Save(ctx, sampleSnapshot()); err != nil {
		t.Fatalf("Failed to save snapshot: %v", err)
	}

	small := catalog.NewSnapshot()
	small.Append(catalog.Track{ID: 0, Name: "Only", Fingerprints: []fingerprint.Fingerprint{{Hash: 42, Anchor: 1}}})
	small.NextID = 5
	if err := st.Save(ctx, small); err != nil {
		t.Fatalf("Failed to save second snapshot: %v", err)
	}

	got, err := st.Load(ctx)
	if err != nil {
		t.Fatalf("Failed to load snapshot: %v", err)
	}
	if !small.Equal(got) {
		t.Errorf("Expected %+v, got %+v", small, got)
	}
}
