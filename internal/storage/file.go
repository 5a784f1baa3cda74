package storage

import (
	"bufio"
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"io"
	"os"
	"path/filepath"
	"slices"

	"github.com/klauspost/compress/zstd"

	"github.com/himanishpuri/landmark/pkg/landmark/catalog"
	"github.com/himanishpuri/landmark/pkg/landmark/fingerprint"
	"github.com/himanishpuri/landmark/pkg/utils"
)

var fileMagic = []byte("LMKSNAP\x01")

// FileStore keeps the catalog as one zstd-compressed snapshot file. Saves go
// to a temporary file that is renamed over the old one.
type FileStore struct {
	path string
}

func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

func (f *FileStore) Path() string { return f.path }

func (f *FileStore) Save(ctx context.Context, s *catalog.Snapshot) error {
	if dir := filepath.Dir(f.path); dir != "." {
		if err := utils.MakeDir(dir); err != nil {
			return ioFailure("creating snapshot dir", err)
		}
	}

	tmp, err := os.CreateTemp(filepath.Dir(f.path), filepath.Base(f.path)+".*.tmp")
	if err != nil {
		return ioFailure("creating temp snapshot", err)
	}
	defer os.Remove(tmp.Name())

	if err := WriteSnapshot(ctx, tmp, s); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return ioFailure("syncing snapshot", err)
	}
	if err := tmp.Close(); err != nil {
		return ioFailure("closing snapshot", err)
	}
	if err := utils.MoveFile(tmp.Name(), f.path); err != nil {
		return ioFailure("replacing snapshot", err)
	}
	return nil
}

// Load reads the snapshot file. A missing file is an empty catalog.
func (f *FileStore) Load(ctx context.Context) (*catalog.Snapshot, error) {
	file, err := os.Open(f.path)
	if errors.Is(err, os.ErrNotExist) {
		return catalog.NewSnapshot(), nil
	}
	if err != nil {
		return nil, ioFailure("opening snapshot", err)
	}
	defer file.Close()
	return ReadSnapshot(ctx, file)
}

func (f *FileStore) Close() error { return nil }

// WriteSnapshot encodes s as magic, then a zstd stream of
//
//	nextID, nNames, {id, len, name}..., nBuckets, {hash(8 BE), nEntries, entries}...
//
// with every integer a uvarint unless noted.
func WriteSnapshot(ctx context.Context, w io.Writer, s *catalog.Snapshot) error {
	if _, err := w.Write(fileMagic); err != nil {
		return ioFailure("writing snapshot header", err)
	}
	zw, err := zstd.NewWriter(w)
	if err != nil {
		return ioFailure("creating zstd writer", err)
	}
	bw := bufio.NewWriter(zw)

	var scratch []byte
	put := func(v uint64) {
		scratch = binary.AppendUvarint(scratch[:0], v)
		bw.Write(scratch)
	}

	put(uint64(s.NextID))
	put(uint64(len(s.Names)))
	for _, id := range sortedIDs(s.Names) {
		put(uint64(id))
		put(uint64(len(s.Names[id])))
		bw.WriteString(s.Names[id])
	}

	hashes := s.Hashes()
	put(uint64(len(hashes)))
	var entries []byte
	for i, h := range hashes {
		if i%4096 == 0 {
			if err := ctx.Err(); err != nil {
				zw.Close()
				return err
			}
		}
		scratch = binary.BigEndian.AppendUint64(scratch[:0], uint64(h))
		bw.Write(scratch)
		entries = appendEntries(entries[:0], s.Buckets[h])
		put(uint64(len(s.Buckets[h])))
		put(uint64(len(entries)))
		bw.Write(entries)
	}

	if err := bw.Flush(); err != nil {
		zw.Close()
		return ioFailure("writing snapshot", err)
	}
	if err := zw.Close(); err != nil {
		return ioFailure("finishing zstd stream", err)
	}
	return nil
}

// ReadSnapshot decodes what WriteSnapshot produced.
func ReadSnapshot(ctx context.Context, r io.Reader) (*catalog.Snapshot, error) {
	head := make([]byte, len(fileMagic))
	if _, err := io.ReadFull(r, head); err != nil {
		return nil, decodeErr("snapshot header", err)
	}
	if !bytes.Equal(head, fileMagic) {
		return nil, corrupt("bad snapshot magic %q", head)
	}

	zr, err := zstd.NewReader(r)
	if err != nil {
		return nil, corrupt("opening zstd stream: %v", err)
	}
	defer zr.Close()

	br := &byteReader{r: bufio.NewReader(zr)}
	s := catalog.NewSnapshot()

	next, err := br.uvarint("next id")
	if err != nil {
		return nil, err
	}
	s.NextID = int(next)

	nNames, err := br.uvarint("name count")
	if err != nil {
		return nil, err
	}
	for i := uint64(0); i < nNames; i++ {
		id, err := br.uvarint("track id")
		if err != nil {
			return nil, err
		}
		size, err := br.uvarint("name length")
		if err != nil {
			return nil, err
		}
		if size > 1<<16 {
			return nil, corrupt("name length %d too large", size)
		}
		name := make([]byte, size)
		if _, err := io.ReadFull(br.r, name); err != nil {
			return nil, decodeErr("name", err)
		}
		s.Names[int(id)] = string(name)
	}

	nBuckets, err := br.uvarint("bucket count")
	if err != nil {
		return nil, err
	}
	var hashBuf [8]byte
	for i := uint64(0); i < nBuckets; i++ {
		if i%4096 == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}
		if _, err := io.ReadFull(br.r, hashBuf[:]); err != nil {
			return nil, decodeErr("bucket hash", err)
		}
		h := fingerprint.Hash(binary.BigEndian.Uint64(hashBuf[:]))
		count, err := br.uvarint("entry count")
		if err != nil {
			return nil, err
		}
		size, err := br.uvarint("bucket size")
		if err != nil {
			return nil, err
		}
		if size > 1<<30 {
			return nil, corrupt("bucket size %d too large", size)
		}
		data := make([]byte, size)
		if _, err := io.ReadFull(br.r, data); err != nil {
			return nil, decodeErr("bucket", err)
		}
		entries, err := decodeEntries(data)
		if err != nil {
			return nil, err
		}
		if uint64(len(entries)) != count {
			return nil, corrupt("bucket %d holds %d entries, header says %d", h, len(entries), count)
		}
		s.Buckets[h] = entries
	}

	if err := s.Validate(); err != nil {
		return nil, err
	}
	return s, nil
}

func sortedIDs(names map[int]string) []int {
	ids := make([]int, 0, len(names))
	for id := range names {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids
}
