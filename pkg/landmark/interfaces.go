package landmark

import (
	"context"

	"github.com/himanishpuri/landmark/pkg/landmark/catalog"
	"github.com/himanishpuri/landmark/pkg/landmark/fingerprint"
)

type Service interface {
	Ingest(ctx context.Context, spec *fingerprint.Spectrogram, name string) (int, error)
	IngestFile(ctx context.Context, path, name string) (int, error)
	IngestFingerprints(ctx context.Context, name string, fps []fingerprint.Fingerprint) (int, error)
	FingerprintFile(ctx context.Context, path string) ([]fingerprint.Fingerprint, error)

	Identify(ctx context.Context, spec *fingerprint.Spectrogram) (Result, error)
	IdentifyFile(ctx context.Context, path string) (Result, error)
	IdentifyFingerprints(ctx context.Context, fps []fingerprint.Fingerprint) (Result, error)
	Match(ctx context.Context, spec *fingerprint.Spectrogram) (*Report, error)
	MatchFile(ctx context.Context, path string) (*Report, error)
	MatchFingerprints(ctx context.Context, fps []fingerprint.Fingerprint) (*Report, error)

	Track(id int) (TrackInfo, bool)
	Tracks() []TrackInfo
	Stats() Stats
	Persist(ctx context.Context) error
	Restore(ctx context.Context) error
	Close() error
}

// Store persists whole catalog snapshots.
type Store interface {
	Save(ctx context.Context, s *catalog.Snapshot) error
	Load(ctx context.Context) (*catalog.Snapshot, error)
	Close() error
}

// TrackAppender is implemented by stores that can commit a single track
// atomically. The service uses it to make every ingest durable before the
// track becomes visible.
type TrackAppender interface {
	AppendTrack(ctx context.Context, t catalog.Track) error
}

type Logger interface {
	Infof(format string, args ...any)
	Warnf(format string, args ...any)
	Errorf(format string, args ...any)
	Debugf(format string, args ...any)
}
