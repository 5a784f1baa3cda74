package landmark

import (
	"context"
	"fmt"
	"sync"

	"github.com/himanishpuri/landmark/pkg/landmark/audio"
	"github.com/himanishpuri/landmark/pkg/landmark/catalog"
	"github.com/himanishpuri/landmark/pkg/landmark/fingerprint"
	"github.com/himanishpuri/landmark/pkg/landmark/matcher"
	"github.com/himanishpuri/landmark/pkg/logger"
)

// landmarkService is the default implementation of the Service interface.
type landmarkService struct {
	index     *catalog.Index
	store     Store
	log       Logger
	config    *Config
	closeOnce sync.Once
	closeErr  error
}

func NewService(opts ...Option) (Service, error) {
	cfg := defaultConfig()
	for _, opt := range opts {
		opt(cfg)
	}

	if cfg.Logger == nil {
		cfg.Logger = logger.GetLogger().With("landmark")
	}

	store := cfg.Store
	if store == nil {
		var err error
		store, err = OpenStore(cfg.StoreKind, cfg.DBPath, cfg.Logger)
		if err != nil {
			return nil, fmt.Errorf("failed to create storage: %w", err)
		}
	}

	s := &landmarkService{
		index:  catalog.New(),
		store:  store,
		log:    cfg.Logger,
		config: cfg,
	}

	if cfg.AutoRestore {
		if err := s.Restore(context.Background()); err != nil {
			store.Close()
			return nil, err
		}
	}
	return s, nil
}

// fingerprints runs peak extraction and pairing on spec. Query limits are
// applied when query is true.
func (s *landmarkService) fingerprints(ctx context.Context, spec *fingerprint.Spectrogram, query bool) ([]fingerprint.Fingerprint, int, error) {
	peakCfg := s.config.Peaks
	genCfg := s.config.Generator
	if query {
		peakCfg.MaxPeaks = tighter(peakCfg.MaxPeaks, s.config.Limits.MaxPeaks)
		genCfg.MaxFingerprints = tighter(genCfg.MaxFingerprints, s.config.Limits.MaxFingerprints)
	}

	peaks, err := fingerprint.ExtractPeaks(ctx, spec, peakCfg)
	if err != nil {
		return nil, 0, err
	}
	return fingerprint.Collect(peaks, genCfg), len(peaks), nil
}

// tighter returns the smaller positive limit, treating zero as unlimited.
func tighter(a, b int) int {
	switch {
	case a <= 0:
		return b
	case b <= 0:
		return a
	default:
		return min(a, b)
	}
}

func (s *landmarkService) spectrogramFromFile(path string) (*fingerprint.Spectrogram, error) {
	clip, err := audio.Load(path, s.config.SampleRate)
	if err != nil {
		return nil, fmt.Errorf("failed to load audio: %w", err)
	}
	s.log.Debugf("Loaded %s: %d samples at %d Hz", path, len(clip.Samples), clip.SampleRate)

	spec, err := fingerprint.ComputeSpectrogram(clip.Samples, clip.SampleRate, s.config.Spectrogram)
	if err != nil {
		return nil, fmt.Errorf("spectrogram generation failed: %w", err)
	}
	return spec, nil
}

// Ingest fingerprints spec and adds it to the catalog under name.
func (s *landmarkService) Ingest(ctx context.Context, spec *fingerprint.Spectrogram, name string) (int, error) {
	if name == "" {
		return -1, fmt.Errorf("track name cannot be empty: %w", ErrInvalidInput)
	}
	fps, peaks, err := s.fingerprints(ctx, spec, false)
	if err != nil {
		return -1, err
	}
	s.log.Infof("Extracted %d peaks for %q", peaks, name)
	return s.IngestFingerprints(ctx, name, fps)
}

func (s *landmarkService) IngestFile(ctx context.Context, path, name string) (int, error) {
	if name == "" {
		return -1, fmt.Errorf("track name cannot be empty: %w", ErrInvalidInput)
	}
	s.log.Infof("Processing track: %s", name)
	spec, err := s.spectrogramFromFile(path)
	if err != nil {
		return -1, err
	}
	return s.Ingest(ctx, spec, name)
}

// FingerprintFile computes the full (unlimited) fingerprint set of an audio
// file without touching the catalog.
func (s *landmarkService) FingerprintFile(ctx context.Context, path string) ([]fingerprint.Fingerprint, error) {
	spec, err := s.spectrogramFromFile(path)
	if err != nil {
		return nil, err
	}
	fps, _, err := s.fingerprints(ctx, spec, false)
	return fps, err
}

// IngestFingerprints adds precomputed fingerprints as a new track. With a
// TrackAppender store the track is committed durably first.
func (s *landmarkService) IngestFingerprints(ctx context.Context, name string, fps []fingerprint.Fingerprint) (int, error) {
	if err := ctx.Err(); err != nil {
		return -1, err
	}

	var commit catalog.CommitFunc
	if appender, ok := s.store.(TrackAppender); ok {
		commit = appender.AppendTrack
	}

	id, err := s.index.Ingest(ctx, name, fps, commit)
	if err != nil {
		return -1, fmt.Errorf("failed to ingest %q: %w", name, err)
	}
	s.log.Infof("Successfully added track ID=%d (%d fingerprints)", id, len(fps))
	return id, nil
}

func (s *landmarkService) Match(ctx context.Context, spec *fingerprint.Spectrogram) (*Report, error) {
	fps, peaks, err := s.fingerprints(ctx, spec, true)
	if err != nil {
		return nil, err
	}
	s.log.Infof("Query has %d peaks", peaks)
	report, err := s.MatchFingerprints(ctx, fps)
	if err != nil {
		return nil, err
	}
	report.Peaks = peaks
	if d := spec.FrameDuration(); d > 0 {
		report.FrameSeconds = d
	}
	return report, nil
}

func (s *landmarkService) MatchFile(ctx context.Context, path string) (*Report, error) {
	s.log.Infof("Matching audio: %s", path)
	spec, err := s.spectrogramFromFile(path)
	if err != nil {
		return nil, err
	}
	return s.Match(ctx, spec)
}

// MatchFingerprints ranks every catalog track against fps. Queries above
// the fingerprint limit keep their earliest entries.
func (s *landmarkService) MatchFingerprints(ctx context.Context, fps []fingerprint.Fingerprint) (*Report, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if limit := s.config.Limits.MaxFingerprints; limit > 0 && len(fps) > limit {
		s.log.Warnf("Query truncated from %d to %d fingerprints", len(fps), limit)
		fps = fps[:limit]
	}

	ranked := matcher.Rank(fps, s.index, s.config.Matcher)
	result := matcher.Best(ranked, s.config.Matcher)
	if result.Found {
		s.log.Infof("Matched track %d %q with confidence %d", result.TrackID, result.Name, result.Confidence)
	} else {
		s.log.Infof("No match among %d candidates", len(ranked))
	}

	return &Report{
		Result:       result,
		Candidates:   ranked,
		Fingerprints: len(fps),
		FrameSeconds: s.frameSeconds(),
	}, nil
}

// frameSeconds is the frame duration of spectrograms this service computes.
func (s *landmarkService) frameSeconds() float64 {
	hop := s.config.Spectrogram.HopSize
	if hop <= 0 {
		hop = fingerprint.HopSize
	}
	spec := fingerprint.Spectrogram{SampleRate: s.config.SampleRate, HopSize: hop}
	return spec.FrameDuration()
}

func (s *landmarkService) Identify(ctx context.Context, spec *fingerprint.Spectrogram) (Result, error) {
	report, err := s.Match(ctx, spec)
	if err != nil {
		return matcher.NoMatch(), err
	}
	return report.Result, nil
}

func (s *landmarkService) IdentifyFile(ctx context.Context, path string) (Result, error) {
	report, err := s.MatchFile(ctx, path)
	if err != nil {
		return matcher.NoMatch(), err
	}
	return report.Result, nil
}

func (s *landmarkService) IdentifyFingerprints(ctx context.Context, fps []fingerprint.Fingerprint) (Result, error) {
	report, err := s.MatchFingerprints(ctx, fps)
	if err != nil {
		return matcher.NoMatch(), err
	}
	return report.Result, nil
}

func (s *landmarkService) Track(id int) (TrackInfo, bool) {
	name, ok := s.index.Name(id)
	return TrackInfo{ID: id, Name: name}, ok
}

func (s *landmarkService) Tracks() []TrackInfo {
	return s.index.Tracks()
}

func (s *landmarkService) Stats() Stats {
	return s.index.Stats()
}

// Persist writes the whole catalog to the store. Ingests wait until the
// write finishes.
func (s *landmarkService) Persist(ctx context.Context) error {
	snap, err := s.index.Persist(ctx, s.store.Save)
	if err != nil {
		return fmt.Errorf("failed to persist catalog: %w", err)
	}
	s.log.Infof("Persisted %d tracks", len(snap.Names))
	return nil
}

// Restore replaces the in-memory catalog with the store content.
func (s *landmarkService) Restore(ctx context.Context) error {
	snap, err := s.store.Load(ctx)
	if err != nil {
		return fmt.Errorf("failed to load catalog: %w", err)
	}
	if err := s.index.Restore(snap); err != nil {
		return fmt.Errorf("failed to restore catalog: %w", err)
	}
	s.log.Infof("Restored catalog with %d tracks", len(snap.Names))
	return nil
}

// Close releases the store. Calling it more than once is harmless.
func (s *landmarkService) Close() error {
	s.closeOnce.Do(func() {
		s.closeErr = s.store.Close()
	})
	return s.closeErr
}
