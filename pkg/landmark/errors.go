package landmark

import (
	"github.com/himanishpuri/landmark/internal/storage"
	"github.com/himanishpuri/landmark/pkg/landmark/catalog"
	"github.com/himanishpuri/landmark/pkg/landmark/fingerprint"
)

// Error kinds callers can test for with errors.Is.
var (
	ErrInvalidInput = fingerprint.ErrInvalidInput
	ErrCorruptIndex = catalog.ErrCorruptIndex
	ErrIOFailure    = storage.ErrIOFailure
)
