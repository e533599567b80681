package format

import (
	"fmt"
	"strings"

	rperrors "github.com/provide-io/flavor/go/runpack/pkg/runpack/errors"
)

// ClassifyError is returned when no known executable signature matches.
type ClassifyError struct {
	Detail string
}

func (e *ClassifyError) Error() string {
	if e.Detail == "" {
		return rperrors.ErrUnrecognized.Error()
	}
	return rperrors.ErrUnrecognized.Error() + ": " + e.Detail
}

func (e *ClassifyError) Unwrap() error {
	return rperrors.ErrUnrecognized
}

// PackErrorKind categorizes a PackError.
type PackErrorKind int

const (
	PackAlreadyPacked PackErrorKind = iota + 1
	PackUnsupportedClass
	PackEncodingFailure
	PackCorruptExistingPack
)

func (k PackErrorKind) String() string {
	switch k {
	case PackAlreadyPacked:
		return "already_packed"
	case PackUnsupportedClass:
		return "unsupported_class"
	case PackEncodingFailure:
		return "encoding_failure"
	case PackCorruptExistingPack:
		return "corrupt_existing_pack"
	default:
		return "unknown"
	}
}

func (k PackErrorKind) sentinel() error {
	switch k {
	case PackAlreadyPacked:
		return rperrors.ErrAlreadyPacked
	case PackUnsupportedClass:
		return rperrors.ErrUnsupportedClass
	case PackEncodingFailure:
		return rperrors.ErrEncodingFailure
	case PackCorruptExistingPack:
		return rperrors.ErrCorruptExistingPack
	default:
		return nil
	}
}

// PackError is returned by Pack and Encode.
type PackError struct {
	Kind   PackErrorKind
	Class  ExecutableClass
	Detail string
	Err    error
}

func (e *PackError) Error() string {
	var b strings.Builder
	b.WriteString("pack: ")
	if s := e.Kind.sentinel(); s != nil {
		b.WriteString(s.Error())
	} else {
		b.WriteString(e.Kind.String())
	}
	if e.Class != ClassUnknown {
		b.WriteString(" (")
		b.WriteString(e.Class.String())
		b.WriteString(")")
	}
	if e.Detail != "" {
		b.WriteString(": ")
		b.WriteString(e.Detail)
	}
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

func (e *PackError) Unwrap() []error {
	return collect(e.Kind.sentinel(), e.Err)
}

// FooterErrorKind categorizes a FooterError.
type FooterErrorKind int

const (
	FooterFileTooSmall FooterErrorKind = iota + 1
	FooterNotPacked
	FooterChecksumMismatch
	FooterUnsupportedVersion
	FooterInvalidLength
)

func (k FooterErrorKind) String() string {
	switch k {
	case FooterFileTooSmall:
		return "file_too_small"
	case FooterNotPacked:
		return "not_packed"
	case FooterChecksumMismatch:
		return "checksum_mismatch"
	case FooterUnsupportedVersion:
		return "unsupported_version"
	case FooterInvalidLength:
		return "invalid_length"
	default:
		return "unknown"
	}
}

func (k FooterErrorKind) sentinel() error {
	switch k {
	case FooterFileTooSmall:
		return rperrors.ErrFileTooSmall
	case FooterNotPacked:
		return rperrors.ErrNotPacked
	case FooterChecksumMismatch:
		return rperrors.ErrChecksumMismatch
	case FooterUnsupportedVersion:
		return rperrors.ErrUnsupportedVersion
	case FooterInvalidLength:
		return rperrors.ErrInvalidLength
	default:
		return nil
	}
}

// FooterError is returned when the trailer cannot be located or validated.
// Offset is relative to the start of the footer.
type FooterError struct {
	Kind     FooterErrorKind
	Offset   int
	Detail   string
	Expected []byte
	Actual   []byte
}

func (e *FooterError) Error() string {
	msg := "footer: " + e.Kind.String()
	if s := e.Kind.sentinel(); s != nil {
		msg = "footer: " + s.Error()
	}
	if e.Kind == FooterChecksumMismatch && e.Expected != nil {
		return fmt.Sprintf("%s: sha256 %x expected %x", msg, e.Actual, e.Expected)
	}
	if e.Detail != "" {
		msg += ": " + e.Detail
	}
	return fmt.Sprintf("%s (footer offset %d)", msg, e.Offset)
}

func (e *FooterError) Unwrap() error {
	return e.Kind.sentinel()
}

// DecodeErrorKind categorizes a DecodeError.
type DecodeErrorKind int

const (
	DecodeUnknownVariant DecodeErrorKind = iota + 1
	DecodeTruncated
	DecodeInvalidUTF8
	DecodeUnsupportedVersion
	DecodeTrailingData
	DecodeInvalidField
)

func (k DecodeErrorKind) String() string {
	switch k {
	case DecodeUnknownVariant:
		return "unknown_variant"
	case DecodeTruncated:
		return "truncated"
	case DecodeInvalidUTF8:
		return "invalid_utf8"
	case DecodeUnsupportedVersion:
		return "unsupported_version"
	case DecodeTrailingData:
		return "trailing_data"
	case DecodeInvalidField:
		return "invalid_field"
	default:
		return "unknown"
	}
}

func (k DecodeErrorKind) sentinel() error {
	switch k {
	case DecodeUnknownVariant:
		return rperrors.ErrUnknownVariant
	case DecodeTruncated:
		return rperrors.ErrTruncated
	case DecodeInvalidUTF8:
		return rperrors.ErrInvalidUTF8
	case DecodeUnsupportedVersion:
		return rperrors.ErrUnsupportedVersion
	case DecodeTrailingData:
		return rperrors.ErrTrailingData
	case DecodeInvalidField:
		return rperrors.ErrInvalidField
	default:
		return nil
	}
}

// DecodeError reports where in the encoded descriptor decoding stopped.
type DecodeError struct {
	Kind   DecodeErrorKind
	Field  string
	Offset int
	Detail string
}

func (e *DecodeError) Error() string {
	var b strings.Builder
	b.WriteString("decode: ")
	if s := e.Kind.sentinel(); s != nil {
		b.WriteString(s.Error())
	} else {
		b.WriteString(e.Kind.String())
	}
	if e.Field != "" {
		b.WriteString(" at ")
		b.WriteString(e.Field)
	}
	fmt.Fprintf(&b, " (offset %d)", e.Offset)
	if e.Detail != "" {
		b.WriteString(": ")
		b.WriteString(e.Detail)
	}
	return b.String()
}

func (e *DecodeError) Unwrap() error {
	return e.Kind.sentinel()
}

// ReadErrorKind separates "never packed" from "packed but broken".
type ReadErrorKind int

const (
	ReadNotPacked ReadErrorKind = iota + 1
	ReadCorrupted
	ReadMalformed
)

func (k ReadErrorKind) String() string {
	switch k {
	case ReadNotPacked:
		return "not_packed"
	case ReadCorrupted:
		return "corrupted"
	case ReadMalformed:
		return "malformed"
	default:
		return "unknown"
	}
}

func (k ReadErrorKind) sentinel() error {
	switch k {
	case ReadNotPacked:
		return rperrors.ErrNotPacked
	case ReadCorrupted:
		return rperrors.ErrCorrupted
	case ReadMalformed:
		return rperrors.ErrMalformed
	default:
		return nil
	}
}

// ReadError aggregates footer and decode failures seen by the reader.
type ReadError struct {
	Kind ReadErrorKind
	Err  error
}

func (e *ReadError) Error() string {
	msg := "read: " + e.Kind.String()
	if s := e.Kind.sentinel(); s != nil {
		msg = "read: " + s.Error()
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *ReadError) Unwrap() []error {
	return collect(e.Kind.sentinel(), e.Err)
}

func collect(errs ...error) []error {
	out := make([]error, 0, len(errs))
	for _, err := range errs {
		if err != nil {
			out = append(out, err)
		}
	}
	return out
}
