package storage

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"

	"github.com/himanishpuri/landmark/pkg/landmark/catalog"
)

// ErrIOFailure marks persistence read or write failures.
var ErrIOFailure = errors.New("storage i/o failure")

func ioFailure(op string, err error) error {
	return fmt.Errorf("%s: %w: %w", op, ErrIOFailure, err)
}

func corrupt(format string, args ...any) error {
	return fmt.Errorf(format+": %w", append(args, catalog.ErrCorruptIndex)...)
}

// appendEntries encodes bucket entries as uvarint (trackID, anchor) pairs.
func appendEntries(dst []byte, entries []catalog.Entry) []byte {
	for _, e := range entries {
		dst = binary.AppendUvarint(dst, uint64(e.TrackID))
		dst = binary.AppendUvarint(dst, uint64(e.Anchor))
	}
	return dst
}

func decodeEntries(data []byte) ([]catalog.Entry, error) {
	out := make([]catalog.Entry, 0, len(data)/2)
	for len(data) > 0 {
		id, n := binary.Uvarint(data)
		if n <= 0 {
			return nil, corrupt("bad track id varint")
		}
		data = data[n:]
		anchor, n := binary.Uvarint(data)
		if n <= 0 {
			return nil, corrupt("bad anchor varint")
		}
		data = data[n:]
		out = append(out, catalog.Entry{TrackID: int(id), Anchor: int(anchor)})
	}
	return out, nil
}

// byteReader adapts an io.Reader for binary.ReadUvarint.
type byteReader struct {
	r   io.Reader
	buf [1]byte
}

func (b *byteReader) ReadByte() (byte, error) {
	if _, err := io.ReadFull(b.r, b.buf[:]); err != nil {
		return 0, err
	}
	return b.buf[0], nil
}

func (b *byteReader) uvarint(what string) (uint64, error) {
	v, err := binary.ReadUvarint(b)
	if err != nil {
		return 0, decodeErr(what, err)
	}
	return v, nil
}

func decodeErr(what string, err error) error {
	if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
		return corrupt("truncated %s", what)
	}
	return fmt.Errorf("reading %s: %v: %w", what, err, catalog.ErrCorruptIndex)
}
