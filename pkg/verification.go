package pkg

import (
	"errors"
	"fmt"

	"github.com/hashicorp/go-hclog"

	"github.com/provide-io/flavor/go/runpack/pkg/runpack/format"
)

// VerifyResult summarizes the checks run by VerifyFileWithLogger.
type VerifyResult struct {
	Path      string
	Extracted *format.Extracted
	// Class of the unpacked content, ClassUnknown when it is not recognized.
	Class  format.ExecutableClass
	Errors []string
}

// VerifyFileWithLogger checks a packed file step by step, logging each check.
// expectedChecksum, when not empty, pins the descriptor digest
// ("sha256:<hex>" or bare hex).
func VerifyFileWithLogger(path, expectedChecksum string, logger hclog.Logger) (*VerifyResult, error) {
	logger = orNull(logger)
	result := &VerifyResult{Path: path, Class: format.ClassUnknown}

	fail := func(check string, err error) (*VerifyResult, error) {
		result.Errors = append(result.Errors, fmt.Sprintf("%s: %v", check, err))
		logger.Error("✗ "+check+" failed", "error", err)
		logger.Error("✗ Pack verification failed", "error_count", len(result.Errors))
		return result, fmt.Errorf("%w: %w", ErrVerificationFailed, err)
	}

	reader := format.NewReaderWithLogger(path, logger)
	defer func() {
		if err := reader.Close(); err != nil {
			logger.Debug("Failed to close reader", "error", err)
		}
	}()

	logger.Info("Verifying pack integrity", "path", path)

	footer, err := reader.ReadFooter()
	if err != nil {
		return fail("Footer verification", err)
	}
	logger.Info("✓ Footer valid",
		"version", footer.FormatVersion,
		"descriptor_length", footer.DescriptorLength,
	)

	if expectedChecksum != "" {
		want, err := format.ParseChecksum(expectedChecksum)
		if err != nil {
			return fail("Expected checksum", err)
		}
		if want != footer.Checksum {
			return fail("Checksum pin", fmt.Errorf("%w: footer has %s, expected %s",
				ErrUnexpectedChecksum, format.FormatChecksum(footer.Checksum), format.FormatChecksum(want)))
		}
		logger.Info("✓ Checksum matches pin", "checksum", format.FormatChecksum(want))
	}

	ex, err := reader.Extract()
	if err != nil {
		return fail(extractCheck(err), err)
	}
	result.Extracted = ex
	logger.Info("✓ Descriptor checksum valid", "checksum", format.FormatChecksum(footer.Checksum))
	logger.Info("✓ Descriptor decoded", "variant", ex.Descriptor.Variant())

	// Packs written by other tools or older versions may hold any content.
	head, err := ReadHead(path)
	if err == nil {
		head = head[:min(int64(len(head)), ex.UnpackedLen)]
		if class, cerr := format.Classify(head); cerr == nil {
			result.Class = class
			if want, ok := class.DefaultVariant(); ok && want != ex.Descriptor.Variant() {
				logger.Warn("⚠️ Descriptor variant does not match content",
					"variant", ex.Descriptor.Variant(), "class", class)
			} else {
				logger.Info("✓ Content classified", "class", class)
			}
		} else {
			logger.Warn("⚠️ Content not recognized", "error", cerr)
		}
	}

	logger.Info("✓ Pack verification passed")
	return result, nil
}

func extractCheck(err error) string {
	var fe *format.FooterError
	if errors.As(err, &fe) {
		switch fe.Kind {
		case format.FooterChecksumMismatch:
			return "Descriptor checksum"
		case format.FooterInvalidLength:
			return "Descriptor length"
		}
	}
	var de *format.DecodeError
	if errors.As(err, &de) {
		return "Descriptor decode"
	}
	return "Descriptor read"
}
