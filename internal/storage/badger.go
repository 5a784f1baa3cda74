//go:build !js && !wasm
// +build !js,!wasm

package storage

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/dgraph-io/badger/v3"

	"github.com/himanishpuri/landmark/pkg/landmark/catalog"
	"github.com/himanishpuri/landmark/pkg/landmark/fingerprint"
)

// Key layout:
//
//	'h' + 8-byte generation + 8-byte hash -> uvarint (trackID, anchor) pairs in bucket order
//	'n' + 8-byte generation + 8-byte id   -> track name
//	'm' + "gen"                           -> 8-byte generation Load reads
//	'm' + "next_id"                       -> 8-byte counter, never lowered
//
// Save writes a complete new generation and switches to it in one
// transaction, so an interrupted save leaves the previous catalog readable.
var (
	prefixBucket = []byte{'h'}
	prefixName   = []byte{'n'}
	keyGen       = []byte("mgen")
	keyNextID    = []byte("mnext_id")
)

// Logger is the subset of the project logger storage backends report to.
type Logger interface {
	Infof(format string, args ...any)
	Warnf(format string, args ...any)
	Errorf(format string, args ...any)
	Debugf(format string, args ...any)
}

type badgerLogger struct {
	log Logger
}

func (b badgerLogger) Errorf(f string, args ...interface{})   { b.log.Errorf("badger: "+f, args...) }
func (b badgerLogger) Warningf(f string, args ...interface{}) { b.log.Warnf("badger: "+f, args...) }
func (b badgerLogger) Infof(f string, args ...interface{})    { b.log.Debugf("badger: "+f, args...) }
func (b badgerLogger) Debugf(f string, args ...interface{})   { b.log.Debugf("badger: "+f, args...) }

type BadgerStore struct {
	db *badger.DB
}

// OpenBadger opens (or creates) a Badger catalog in dir. An empty dir keeps
// everything in memory.
func OpenBadger(dir string, log Logger) (*BadgerStore, error) {
	opts := badger.DefaultOptions(dir)
	if dir == "" {
		opts = opts.WithInMemory(true)
	}
	if log != nil {
		opts = opts.WithLogger(badgerLogger{log: log})
	} else {
		opts = opts.WithLogger(nil)
	}

	db, err := badger.Open(opts)
	if err != nil {
		return nil, ioFailure("opening badger", err)
	}
	return &BadgerStore{db: db}, nil
}

func genPrefix(prefix []byte, gen uint64) []byte {
	return binary.BigEndian.AppendUint64(append([]byte(nil), prefix...), gen)
}

func bucketKey(gen uint64, h fingerprint.Hash) []byte {
	return binary.BigEndian.AppendUint64(genPrefix(prefixBucket, gen), uint64(h))
}

func nameKey(gen uint64, id int) []byte {
	return binary.BigEndian.AppendUint64(genPrefix(prefixName, gen), uint64(id))
}

func encodeCounter(n uint64) []byte {
	return binary.BigEndian.AppendUint64(nil, n)
}

// readCounter returns the 8-byte value under key, or 0 when it is absent.
func readCounter(txn *badger.Txn, key []byte) (uint64, error) {
	item, err := txn.Get(key)
	if errors.Is(err, badger.ErrKeyNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	v, err := item.ValueCopy(nil)
	if err != nil {
		return 0, err
	}
	if len(v) != 8 {
		return 0, corrupt("%s has %d bytes", key[1:], len(v))
	}
	return binary.BigEndian.Uint64(v), nil
}

// AppendTrack extends every touched bucket of the current generation,
// records the name and advances the counter inside a single transaction.
func (b *BadgerStore) AppendTrack(ctx context.Context, t catalog.Track) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	grouped := make(map[fingerprint.Hash][]catalog.Entry)
	order := make([]fingerprint.Hash, 0)
	for _, fp := range t.Fingerprints {
		if _, ok := grouped[fp.Hash]; !ok {
			order = append(order, fp.Hash)
		}
		grouped[fp.Hash] = append(grouped[fp.Hash], catalog.Entry{TrackID: t.ID, Anchor: fp.Anchor})
	}

	err := b.db.Update(func(txn *badger.Txn) error {
		gen, err := readCounter(txn, keyGen)
		if err != nil {
			return err
		}
		next, err := readCounter(txn, keyNextID)
		if err != nil {
			return err
		}

		for _, h := range order {
			key := bucketKey(gen, h)
			var existing []byte
			item, err := txn.Get(key)
			switch {
			case err == nil:
				if existing, err = item.ValueCopy(nil); err != nil {
					return err
				}
			case errors.Is(err, badger.ErrKeyNotFound):
			default:
				return err
			}
			if err := txn.Set(key, appendEntries(existing, grouped[h])); err != nil {
				return err
			}
		}
		if err := txn.Set(nameKey(gen, t.ID), []byte(t.Name)); err != nil {
			return err
		}
		return txn.Set(keyNextID, encodeCounter(max(next, uint64(t.ID)+1)))
	})
	if errors.Is(err, catalog.ErrCorruptIndex) {
		return err
	}
	if err != nil {
		return ioFailure(fmt.Sprintf("appending track %d", t.ID), err)
	}
	return nil
}

// Save replaces the store content with s. The new generation becomes
// visible only when the generation key flips; the counter never goes down.
func (b *BadgerStore) Save(ctx context.Context, s *catalog.Snapshot) error {
	var current uint64
	err := b.db.View(func(txn *badger.Txn) error {
		var err error
		current, err = readCounter(txn, keyGen)
		return err
	})
	if errors.Is(err, catalog.ErrCorruptIndex) {
		return err
	}
	if err != nil {
		return ioFailure("reading generation", err)
	}
	gen := current + 1

	// leftovers of an interrupted save
	if err := b.dropGenerations(ctx, current); err != nil {
		return err
	}

	wb := b.db.NewWriteBatch()
	defer wb.Cancel()

	for _, h := range s.Hashes() {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := wb.Set(bucketKey(gen, h), appendEntries(nil, s.Buckets[h])); err != nil {
			return ioFailure("writing bucket", err)
		}
	}
	for id, name := range s.Names {
		if err := wb.Set(nameKey(gen, id), []byte(name)); err != nil {
			return ioFailure("writing name", err)
		}
	}
	if err := wb.Flush(); err != nil {
		return ioFailure("flushing badger batch", err)
	}

	err = b.db.Update(func(txn *badger.Txn) error {
		next, err := readCounter(txn, keyNextID)
		if err != nil {
			return err
		}
		if err := txn.Set(keyGen, encodeCounter(gen)); err != nil {
			return err
		}
		return txn.Set(keyNextID, encodeCounter(max(next, uint64(s.NextID))))
	})
	if errors.Is(err, catalog.ErrCorruptIndex) {
		return err
	}
	if err != nil {
		return ioFailure("switching generation", err)
	}

	return b.dropGenerations(ctx, gen)
}

// dropGenerations deletes bucket and name keys of every generation except
// keep.
func (b *BadgerStore) dropGenerations(ctx context.Context, keep uint64) error {
	var stale [][]byte
	err := b.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		it := txn.NewIterator(opts)
		defer it.Close()

		for _, prefix := range [][]byte{prefixBucket, prefixName} {
			for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
				if err := ctx.Err(); err != nil {
					return err
				}
				k := it.Item().Key()
				if len(k) >= 9 && binary.BigEndian.Uint64(k[1:9]) == keep {
					continue
				}
				stale = append(stale, it.Item().KeyCopy(nil))
			}
		}
		return nil
	})
	if err != nil {
		if ctx.Err() != nil {
			return err
		}
		return ioFailure("scanning stale generations", err)
	}
	if len(stale) == 0 {
		return nil
	}

	wb := b.db.NewWriteBatch()
	defer wb.Cancel()
	for _, k := range stale {
		if err := wb.Delete(k); err != nil {
			return ioFailure("deleting stale key", err)
		}
	}
	if err := wb.Flush(); err != nil {
		return ioFailure("flushing stale deletes", err)
	}
	return nil
}

func (b *BadgerStore) Load(ctx context.Context) (*catalog.Snapshot, error) {
	s := catalog.NewSnapshot()

	err := b.db.View(func(txn *badger.Txn) error {
		gen, err := readCounter(txn, keyGen)
		if err != nil {
			return err
		}
		next, err := readCounter(txn, keyNextID)
		if err != nil {
			return err
		}
		s.NextID = int(next)

		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()

		names := genPrefix(prefixName, gen)
		for it.Seek(names); it.ValidForPrefix(names); it.Next() {
			k := it.Item().Key()
			if len(k) != 17 {
				return corrupt("name key has %d bytes", len(k))
			}
			v, err := it.Item().ValueCopy(nil)
			if err != nil {
				return err
			}
			s.Names[int(binary.BigEndian.Uint64(k[9:]))] = string(v)
		}

		buckets := genPrefix(prefixBucket, gen)
		for it.Seek(buckets); it.ValidForPrefix(buckets); it.Next() {
			if err := ctx.Err(); err != nil {
				return err
			}
			k := it.Item().Key()
			if len(k) != 17 {
				return corrupt("bucket key has %d bytes", len(k))
			}
			h := fingerprint.Hash(binary.BigEndian.Uint64(k[9:]))
			err := it.Item().Value(func(v []byte) error {
				entries, err := decodeEntries(v)
				if err != nil {
					return err
				}
				s.Buckets[h] = entries
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		if errors.Is(err, catalog.ErrCorruptIndex) || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return nil, err
		}
		return nil, ioFailure("reading badger", err)
	}
	if err := s.Validate(); err != nil {
		return nil, err
	}
	return s, nil
}

func (b *BadgerStore) Close() error {
	if err := b.db.Close(); err != nil {
		return ioFailure("closing badger", err)
	}
	return nil
}
