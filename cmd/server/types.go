package main

import (
	"fmt"

	"github.com/himanishpuri/landmark/pkg/landmark"
	"github.com/himanishpuri/landmark/pkg/landmark/fingerprint"
)

const (
	// MaxFingerprintsHardLimit is the largest precomputed query accepted
	// (about two minutes of audio).
	MaxFingerprintsHardLimit = 50000

	// FingerprintWarningThreshold triggers logging for large queries
	FingerprintWarningThreshold = 10000

	// DefaultTopCandidates is how many ranked candidates identify returns
	DefaultTopCandidates = 5

	// MaxFingerprintBodyBytes caps a precomputed query body. Hashes sent as
	// decimal strings make a hard-limit query a little over 3 MiB.
	MaxFingerprintBodyBytes = 8 << 20
)

// IdentifyFingerprintsRequest is the request body for POST /api/identify/fingerprints
type IdentifyFingerprintsRequest struct {
	Fingerprints []fingerprint.Fingerprint `json:"fingerprints"`
	Top          int                       `json:"top,omitempty"`
}

// Validate checks if the request is valid
func (r *IdentifyFingerprintsRequest) Validate() error {
	if len(r.Fingerprints) == 0 {
		return fmt.Errorf("fingerprints cannot be empty")
	}
	if len(r.Fingerprints) > MaxFingerprintsHardLimit {
		return fmt.Errorf("too many fingerprints: %d (maximum: %d)", len(r.Fingerprints), MaxFingerprintsHardLimit)
	}
	for i, fp := range r.Fingerprints {
		if fp.Anchor < 0 {
			return fmt.Errorf("fingerprint %d has negative anchor %d", i, fp.Anchor)
		}
	}
	if r.Top < 0 {
		return fmt.Errorf("top cannot be negative")
	}
	return nil
}

// RecordingRequest carries a browser recording as a data URL, the format the
// recorder page posts.
type RecordingRequest struct {
	Audio string `json:"audio"`
	Name  string `json:"name,omitempty"`
}

// IdentifyResponse is the response of both identify endpoints
type IdentifyResponse struct {
	Match        MatchDTO             `json:"match"`
	Candidates   []landmark.Candidate `json:"candidates"`
	Peaks        int                  `json:"peaks,omitempty"`
	Fingerprints int                  `json:"fingerprints"`
}

// MatchDTO is the best match, with the offset also given in seconds
type MatchDTO struct {
	landmark.Result
	OffsetSeconds float64 `json:"offset_seconds"`
}

// AddTrackResponse is the response for successful track ingestion
type AddTrackResponse struct {
	Message string `json:"message"`
	ID      int    `json:"id"`
	Name    string `json:"name"`
}

// ListTracksResponse is the response for GET /api/tracks
type ListTracksResponse struct {
	Tracks []landmark.TrackInfo `json:"tracks"`
	Count  int                  `json:"count"`
}

// MetricsResponse provides server health and catalog metrics
type MetricsResponse struct {
	Status     string         `json:"status"`
	StoreKind  string         `json:"store_kind"`
	StorePath  string         `json:"store_path"`
	Catalog    landmark.Stats `json:"catalog"`
	Summary    string         `json:"summary"`
	SampleRate int            `json:"sample_rate"`
	Uptime     string         `json:"uptime"`
}

// ErrorResponse is the standard error response format
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
	Code    int    `json:"code,omitempty"`
}
