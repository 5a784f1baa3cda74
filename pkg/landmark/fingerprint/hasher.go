package fingerprint

import (
	"encoding/binary"
	"fmt"

	"github.com/OneOfOne/xxhash"
)

const (
	FreqBits  = 21
	DeltaBits = 22

	maxFreq  = 1<<FreqBits - 1
	maxDelta = 1<<DeltaBits - 1

	// DefaultSeed is the fixed xxhash seed; changing it invalidates every
	// persisted catalog built with XXHasher.
	DefaultSeed uint64 = 0x4c414e444d41524b
)

// Hasher combines an anchor bin, a target bin and their frame distance into a
// Hash. Implementations must be pure functions of their inputs.
type Hasher interface {
	Hash(anchorFreq, targetFreq, delta int) (Hash, bool)
	Name() string
}

// PackedHasher lays the triple out as anchor(21) | target(21) | delta(22).
// It is collision free for values in range and rejects anything else.
type PackedHasher struct{}

func (PackedHasher) Name() string { return "packed" }

func (PackedHasher) Hash(anchorFreq, targetFreq, delta int) (Hash, bool) {
	if anchorFreq < 0 || anchorFreq > maxFreq || targetFreq < 0 || targetFreq > maxFreq {
		return 0, false
	}
	if delta < 0 || delta > maxDelta {
		return 0, false
	}
	h := uint64(anchorFreq)<<(FreqBits+DeltaBits) |
		uint64(targetFreq)<<DeltaBits |
		uint64(delta)
	return Hash(h), true
}

// Unpack reverses PackedHasher.Hash.
func (PackedHasher) Unpack(h Hash) (anchorFreq, targetFreq, delta int) {
	v := uint64(h)
	delta = int(v & maxDelta)
	targetFreq = int((v >> DeltaBits) & maxFreq)
	anchorFreq = int(v >> (FreqBits + DeltaBits))
	return
}

// XXHasher hashes the big-endian encoding of the triple with xxhash64.
type XXHasher struct {
	Seed uint64
}

func (x XXHasher) Name() string { return "xxhash" }

func (x XXHasher) Hash(anchorFreq, targetFreq, delta int) (Hash, bool) {
	if anchorFreq < 0 || targetFreq < 0 || delta < 0 {
		return 0, false
	}
	var buf [12]byte
	binary.BigEndian.PutUint32(buf[0:4], uint32(anchorFreq))
	binary.BigEndian.PutUint32(buf[4:8], uint32(targetFreq))
	binary.BigEndian.PutUint32(buf[8:12], uint32(delta))
	return Hash(xxhash.Checksum64S(buf[:], x.Seed)), true
}

// HasherByName resolves the names accepted on the command line.
func HasherByName(name string) (Hasher, error) {
	switch name {
	case "", "packed":
		return PackedHasher{}, nil
	case "xxhash":
		return XXHasher{Seed: DefaultSeed}, nil
	default:
		return nil, fmt.Errorf("unknown hasher %q: %w", name, ErrInvalidInput)
	}
}
