package utils

import (
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

// GenerateUUID returns a random (version 4) UUID string.
func GenerateUUID() string {
	return uuid.NewString()
}

// TempName builds a collision-free file name inside dir that keeps the
// extension of original, so decoders can still dispatch on it.
func TempName(dir, prefix, original string) string {
	ext := strings.ToLower(filepath.Ext(original))
	return filepath.Join(dir, prefix+GenerateUUID()+ext)
}
