package landmark

import (
	"github.com/himanishpuri/landmark/pkg/landmark/catalog"
	"github.com/himanishpuri/landmark/pkg/landmark/matcher"
)

type (
	Result    = matcher.Result
	Candidate = matcher.Candidate
	TrackInfo = catalog.TrackInfo
	Stats     = catalog.Stats
)

// Report is an identification together with every ranked candidate and the
// size of the query that produced it. FrameSeconds converts frame offsets to
// seconds.
type Report struct {
	Result       Result      `json:"result"`
	Candidates   []Candidate `json:"candidates"`
	Peaks        int         `json:"peaks"`
	Fingerprints int         `json:"fingerprints"`
	FrameSeconds float64     `json:"frame_seconds"`
}

// OffsetSeconds returns the matched offset in seconds, 0 without a match.
func (r *Report) OffsetSeconds() float64 {
	if !r.Result.Found {
		return 0
	}
	return float64(r.Result.Offset) * r.FrameSeconds
}
