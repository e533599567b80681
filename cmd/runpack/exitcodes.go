package main

import (
	"errors"

	rperrors "github.com/provide-io/flavor/go/runpack/pkg/runpack/errors"
)

// Process exit codes.
const (
	ExitOK               = 0
	ExitFailure          = 1
	ExitNotPacked        = 2
	ExitCorrupted        = 3
	ExitUnrecognized     = 4
	ExitAlreadyPacked    = 5
	ExitUnsupportedClass = 6
)

// exitCode maps an error to the process exit status. Pack failures are
// matched first: an unsupported class wraps the classifier's error and a
// corrupt existing pack wraps the reader's.
func exitCode(err error) int {
	switch {
	case err == nil:
		return ExitOK
	case errors.Is(err, rperrors.ErrAlreadyPacked):
		return ExitAlreadyPacked
	case errors.Is(err, rperrors.ErrUnsupportedClass):
		return ExitUnsupportedClass
	case errors.Is(err, rperrors.ErrCorruptExistingPack):
		return ExitFailure
	case errors.Is(err, rperrors.ErrNotPacked), errors.Is(err, rperrors.ErrFileTooSmall):
		return ExitNotPacked
	case errors.Is(err, rperrors.ErrCorrupted), errors.Is(err, rperrors.ErrMalformed):
		return ExitCorrupted
	case errors.Is(err, rperrors.ErrUnrecognized):
		return ExitUnrecognized
	default:
		return ExitFailure
	}
}
