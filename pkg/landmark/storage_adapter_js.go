//go:build js || wasm
// +build js wasm

package landmark

import (
	"fmt"

	"github.com/himanishpuri/landmark/internal/storage"
)

func NewFileStore(path string) Store {
	return storage.NewFileStore(path)
}

// OpenStore only offers the snapshot file backend in the browser build.
func OpenStore(kind, path string, log Logger) (Store, error) {
	if kind != StoreFile {
		return nil, fmt.Errorf("store kind %q not available in this build: %w", kind, ErrInvalidInput)
	}
	return NewFileStore(path), nil
}
