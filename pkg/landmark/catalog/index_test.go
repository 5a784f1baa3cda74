package catalog

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"
	"testing"
	"time"

	"github.com/himanishpuri/landmark/pkg/landmark/fingerprint"
)

func fps(pairs ...int) []fingerprint.Fingerprint {
	out := make([]fingerprint.Fingerprint, 0, len(pairs)/2)
	for i := 0; i+1 < len(pairs); i += 2 {
		out = append(out, fingerprint.Fingerprint{Hash: fingerprint.Hash(pairs[i]), Anchor: pairs[i+1]})
	}
	return out
}

func TestIngestAssignsSequentialIDs(t *testing.T) {
	idx := New()
	ctx := context.Background()

	for want, name := range []string{"a", "b", "c"} {
		id, err := idx.Ingest(ctx, name, fps(1, 0), nil)
		if err != nil {
			t.Fatalf("Ingest(%s) failed: %v", name, err)
		}
		if id != want {
			t.Errorf("Expected id %d, got %d", want, id)
		}
	}

	stats := idx.Stats()
	if stats.Tracks != 3 || stats.Buckets != 1 || stats.Entries != 3 || stats.NextID != 3 {
		t.Errorf("Unexpected stats: %+v", stats)
	}
}

func TestLookupKeepsInsertionOrder(t *testing.T) {
	idx := New()
	ctx := context.Background()

	idx.Ingest(ctx, "a", fps(7, 3, 7, 1, 9, 2), nil)
	idx.Ingest(ctx, "b", fps(7, 5), nil)

	got := idx.Lookup(7)
	expected := []Entry{{0, 3}, {0, 1}, {1, 5}}
	if !slices.Equal(got, expected) {
		t.Errorf("Expected %v, got %v", expected, got)
	}

	if len(idx.Lookup(12345)) != 0 {
		t.Error("Expected empty result for an unknown hash")
	}
}

func TestLookupResultIsIsolated(t *testing.T) {
	idx := New()
	ctx := context.Background()
	idx.Ingest(ctx, "a", fps(7, 3), nil)

	got := idx.Lookup(7)
	_ = append(got, Entry{TrackID: 99, Anchor: 99})

	idx.Ingest(ctx, "b", fps(7, 4), nil)
	expected := []Entry{{0, 3}, {1, 4}}
	if b := idx.Lookup(7); !slices.Equal(b, expected) {
		t.Errorf("Expected %v, got %v", expected, b)
	}
}

func TestIngestSameAudioTwice(t *testing.T) {
	idx := New()
	ctx := context.Background()

	a, _ := idx.Ingest(ctx, "song", fps(1, 0, 2, 5), nil)
	b, _ := idx.Ingest(ctx, "song", fps(1, 0, 2, 5), nil)

	if a == b {
		t.Fatalf("Expected independent IDs, got %d twice", a)
	}
	if len(idx.Lookup(1)) != 2 {
		t.Errorf("Expected both copies in the bucket, got %v", idx.Lookup(1))
	}
	if len(idx.Tracks()) != 2 {
		t.Errorf("Expected 2 tracks, got %v", idx.Tracks())
	}
}

func TestIngestEmptyName(t *testing.T) {
	idx := New()
	_, err := idx.Ingest(context.Background(), "", fps(1, 0), nil)
	if !errors.Is(err, fingerprint.ErrInvalidInput) {
		t.Errorf("Expected ErrInvalidInput, got %v", err)
	}
	if idx.Stats().NextID != 0 {
		t.Error("Rejected ingest consumed an ID")
	}
}

func TestIngestWithoutFingerprints(t *testing.T) {
	idx := New()
	id, err := idx.Ingest(context.Background(), "silence", nil, nil)
	if err != nil {
		t.Fatalf("Ingest failed: %v", err)
	}
	if name, ok := idx.Name(id); !ok || name != "silence" {
		t.Errorf("Expected name silence, got %q (%v)", name, ok)
	}
}

func TestIngestCommitFailure(t *testing.T) {
	idx := New()
	ctx := context.Background()
	boom := errors.New("disk full")

	_, err := idx.Ingest(ctx, "a", fps(1, 0), func(ctx context.Context, tr Track) error {
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("Expected commit error, got %v", err)
	}

	if len(idx.Lookup(1)) != 0 || idx.Len() != 0 {
		t.Error("Failed ingest left state behind")
	}

	id, err := idx.Ingest(ctx, "b", fps(1, 0), nil)
	if err != nil || id != 0 {
		t.Errorf("Expected ID 0 to be reused after a failed commit, got %d (%v)", id, err)
	}
}

func TestIngestCommitSeesTrackAndDoesNotBlockReaders(t *testing.T) {
	idx := New()
	ctx := context.Background()
	idx.Ingest(ctx, "a", fps(1, 0), nil)

	var committed Track
	_, err := idx.Ingest(ctx, "b", fps(1, 4, 2, 6), func(ctx context.Context, tr Track) error {
		committed = tr
		// readers still see the previous state while the commit runs
		if n := len(idx.Lookup(1)); n != 1 {
			return fmt.Errorf("expected 1 visible entry during commit, got %d", n)
		}
		return nil
	})
	if err != nil {
		t.Fatalf("Ingest failed: %v", err)
	}

	if committed.ID != 1 || committed.Name != "b" || len(committed.Fingerprints) != 2 {
		t.Errorf("Unexpected committed track: %+v", committed)
	}
}

func TestSnapshotRestoreRoundTrip(t *testing.T) {
	idx := New()
	ctx := context.Background()
	idx.Ingest(ctx, "a", fps(1, 0, 2, 5, 1, 9), nil)
	idx.Ingest(ctx, "b", fps(2, 3), nil)

	snap := idx.Snapshot()

	restored := New()
	if err := restored.Restore(snap); err != nil {
		t.Fatalf("Restore failed: %v", err)
	}
	if !restored.Snapshot().Equal(snap) {
		t.Error("Restored index differs from the snapshot")
	}
	if restored.Stats() != idx.Stats() {
		t.Errorf("Expected stats %+v, got %+v", idx.Stats(), restored.Stats())
	}

	id, _ := restored.Ingest(ctx, "c", nil, nil)
	if id != 2 {
		t.Errorf("Expected the counter to survive a restore, got id %d", id)
	}
}

func TestSnapshotIsACopy(t *testing.T) {
	idx := New()
	ctx := context.Background()
	idx.Ingest(ctx, "a", fps(1, 0), nil)

	snap := idx.Snapshot()
	idx.Ingest(ctx, "b", fps(1, 2), nil)

	if len(snap.Buckets[1]) != 1 || len(snap.Names) != 1 || snap.NextID != 1 {
		t.Errorf("Snapshot changed after a later ingest: %+v", snap)
	}
}

func TestRestoreRejectsCorruptSnapshots(t *testing.T) {
	tests := []struct {
		name string
		snap *Snapshot
	}{
		{"nil", nil},
		{"negative counter", &Snapshot{NextID: -1}},
		{"name beyond counter", &Snapshot{Names: map[int]string{3: "x"}, NextID: 2}},
		{"entry beyond counter", &Snapshot{
			Buckets: map[fingerprint.Hash][]Entry{1: {{TrackID: 5}}},
			Names:   map[int]string{0: "a"},
			NextID:  1,
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			idx := New()
			idx.Ingest(context.Background(), "keep", fps(1, 0), nil)

			err := idx.Restore(tt.snap)
			if !errors.Is(err, ErrCorruptIndex) {
				t.Fatalf("Expected ErrCorruptIndex, got %v", err)
			}
			if idx.Len() != 1 {
				t.Error("Rejected restore modified the index")
			}
		})
	}
}

func TestRestoreEmptySnapshot(t *testing.T) {
	idx := New()
	if err := idx.Restore(NewSnapshot()); err != nil {
		t.Fatalf("Restore failed: %v", err)
	}
	if idx.Len() != 0 || idx.Stats().NextID != 0 {
		t.Errorf("Expected empty index, got %+v", idx.Stats())
	}
}

func TestConcurrentIngestAndLookup(t *testing.T) {
	idx := New()
	ctx := context.Background()

	const tracks = 50
	const perTrack = 20

	var wg sync.WaitGroup
	for i := 0; i < tracks; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			list := make([]fingerprint.Fingerprint, perTrack)
			for j := range list {
				list[j] = fingerprint.Fingerprint{Hash: 42, Anchor: j}
			}
			if _, err := idx.Ingest(ctx, fmt.Sprintf("track-%d", i), list, nil); err != nil {
				t.Errorf("Ingest failed: %v", err)
			}
		}(i)
	}

	stop := make(chan struct{})
	var readers sync.WaitGroup
	for r := 0; r < 4; r++ {
		readers.Add(1)
		go func() {
			defer readers.Done()
			for {
				select {
				case <-stop:
					return
				default:
				}
				counts := make(map[int]int)
				for _, e := range idx.Lookup(42) {
					counts[e.TrackID]++
				}
				for id, n := range counts {
					if n != perTrack {
						t.Errorf("Track %d partially visible: %d of %d entries", id, n, perTrack)
						return
					}
				}
			}
		}()
	}

	wg.Wait()
	close(stop)
	readers.Wait()

	stats := idx.Stats()
	if stats.Tracks != tracks || stats.Entries != tracks*perTrack || stats.NextID != tracks {
		t.Errorf("Unexpected stats after concurrent ingest: %+v", stats)
	}
}

func TestPersistHoldsOffIngest(t *testing.T) {
	idx := New()
	ctx := context.Background()
	idx.Ingest(ctx, "a", fps(1, 0), nil)

	saving := make(chan struct{})
	release := make(chan struct{})
	persisted := make(chan *Snapshot, 1)
	go func() {
		snap, _ := idx.Persist(ctx, func(ctx context.Context, s *Snapshot) error {
			close(saving)
			<-release
			return nil
		})
		persisted <- snap
	}()
	<-saving

	ingested := make(chan int, 1)
	go func() {
		id, _ := idx.Ingest(ctx, "b", fps(2, 0), nil)
		ingested <- id
	}()

	// lookups stay available while the save runs
	if n := len(idx.Lookup(1)); n != 1 {
		t.Errorf("Expected 1 entry during save, got %d", n)
	}
	select {
	case id := <-ingested:
		t.Fatalf("Expected ingest to wait for the save, got ID %d", id)
	case <-time.After(50 * time.Millisecond):
	}

	close(release)
	if snap := <-persisted; snap.NextID != 1 || len(snap.Names) != 1 {
		t.Errorf("Expected snapshot of 1 track, got NextID=%d names=%v", snap.NextID, snap.Names)
	}
	if id := <-ingested; id != 1 {
		t.Errorf("Expected ID 1 after the save, got %d", id)
	}
}

func TestPersistSaveError(t *testing.T) {
	idx := New()
	wantErr := errors.New("disk full")
	_, err := idx.Persist(context.Background(), func(context.Context, *Snapshot) error { return wantErr })
	if !errors.Is(err, wantErr) {
		t.Errorf("Expected %v, got %v", wantErr, err)
	}
}
