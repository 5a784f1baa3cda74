package fingerprint

import (
	"errors"
	"fmt"
	"strconv"
)

// ErrInvalidInput is returned for malformed spectrograms, audio or parameters.
var ErrInvalidInput = errors.New("invalid input")

// Peak is a spectrogram coordinate that survived the local-maximum test.
type Peak struct {
	Freq int // frequency bin index
	Time int // frame index
}

// Hash is the fixed-width key of a landmark pair.
type Hash uint64

// UnmarshalJSON accepts a JSON number or a decimal string. Browsers send
// the string form because a float64 cannot carry all 64 bits.
func (h *Hash) UnmarshalJSON(data []byte) error {
	s := string(data)
	if n := len(s); n >= 2 && s[0] == '"' && s[n-1] == '"' {
		s = s[1 : n-1]
	}
	v, err := strconv.ParseUint(s, 10, 64)
	if err != nil {
		return fmt.Errorf("hash %s: %w", data, ErrInvalidInput)
	}
	*h = Hash(v)
	return nil
}

// Fingerprint pairs a landmark hash with the frame of its anchor peak.
type Fingerprint struct {
	Hash   Hash `json:"hash"`
	Anchor int  `json:"anchor"`
}

func comparePeaks(a, b Peak) int {
	if a.Time != b.Time {
		return a.Time - b.Time
	}
	return a.Freq - b.Freq
}
