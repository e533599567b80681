// Package errors holds the sentinel errors of the runpack format.
//
// The typed errors in package format match these with errors.Is, so callers
// can branch on a kind without knowing which component produced it.
package errors

import "errors"

var (
	// Classification errors 🔍
	ErrUnrecognized = errors.New("unrecognized executable")

	// Pack errors 📦
	ErrAlreadyPacked       = errors.New("already packed")
	ErrUnsupportedClass    = errors.New("unsupported executable class")
	ErrEncodingFailure     = errors.New("descriptor encoding failed")
	ErrCorruptExistingPack = errors.New("existing pack is corrupted")
	ErrInvalidDescriptor   = errors.New("invalid descriptor")

	// Footer errors 🦶
	ErrFileTooSmall       = errors.New("file too small to contain a footer")
	ErrNotPacked          = errors.New("not packed")
	ErrChecksumMismatch   = errors.New("checksum mismatch")
	ErrUnsupportedVersion = errors.New("unsupported format version")
	ErrInvalidLength      = errors.New("invalid descriptor length")

	// Decode errors 📜
	ErrUnknownVariant = errors.New("unknown descriptor variant")
	ErrTruncated      = errors.New("truncated descriptor")
	ErrInvalidUTF8    = errors.New("invalid utf-8 in descriptor")
	ErrTrailingData   = errors.New("trailing data after descriptor")
	ErrInvalidField   = errors.New("invalid descriptor field")

	// Read errors 📖
	ErrCorrupted = errors.New("pack is corrupted")
	ErrMalformed = errors.New("pack descriptor is malformed")
)
