//go:build !js && !wasm
// +build !js,!wasm

package landmark

import (
	"fmt"
	"strings"

	"github.com/himanishpuri/landmark/internal/storage"
)

// NewSQLiteStore opens the gorm/SQLite backend. It supports durable
// per-track ingestion.
func NewSQLiteStore(dbPath string) (Store, error) {
	db, err := storage.NewDBClientWithPath(dbPath)
	if err != nil {
		return nil, err
	}
	return db, nil
}

// NewBadgerStore opens a Badger directory. An empty dir keeps the data in
// memory only.
func NewBadgerStore(dir string, log Logger) (Store, error) {
	db, err := storage.OpenBadger(dir, log)
	if err != nil {
		return nil, err
	}
	return db, nil
}

// NewFileStore keeps the catalog in a single compressed snapshot file. It has
// no per-track commit, so callers Persist after ingesting.
func NewFileStore(path string) Store {
	return storage.NewFileStore(path)
}

// OpenStore opens the backend named by kind at path.
func OpenStore(kind, path string, log Logger) (Store, error) {
	switch strings.ToLower(kind) {
	case "", StoreSQLite:
		return NewSQLiteStore(path)
	case StoreBadger:
		return NewBadgerStore(path, log)
	case StoreFile:
		return NewFileStore(path), nil
	default:
		return nil, fmt.Errorf("unknown store kind %q: %w", kind, ErrInvalidInput)
	}
}
