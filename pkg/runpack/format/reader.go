package format

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/hashicorp/go-hclog"

	rperrors "github.com/provide-io/flavor/go/runpack/pkg/runpack/errors"
)

// Extracted is everything recovered from a packed file.
type Extracted struct {
	Descriptor Descriptor
	Footer     *Footer
	// UnpackedLen is the length of the original content, i.e. the offset at
	// which the descriptor starts.
	UnpackedLen int64
}

// Read returns the descriptor embedded in data.
func Read(data []byte) (Descriptor, error) {
	ex, err := Extract(data)
	if err != nil {
		return nil, err
	}
	return ex.Descriptor, nil
}

// Extract locates, verifies and decodes the pack at the end of data. Every
// failure is a *ReadError; Extract never panics on arbitrary input.
func Extract(data []byte) (*Extracted, error) {
	footer, err := ReadFooter(data)
	if err != nil {
		return nil, classifyReadError(err)
	}

	start, end, err := footer.DescriptorRange(int64(len(data)))
	if err != nil {
		return nil, classifyReadError(err)
	}

	return decodeVerified(footer, data[start:end], start)
}

// Strip returns the original content of a packed file. Input without a pack
// is returned unchanged; a damaged pack is an error.
func Strip(data []byte) ([]byte, error) {
	ex, err := Extract(data)
	if IsNotPacked(err) {
		return data, nil
	}
	if err != nil {
		return nil, err
	}
	return data[:ex.UnpackedLen], nil
}

func decodeVerified(footer *Footer, descriptor []byte, start int64) (*Extracted, error) {
	if err := footer.Verify(descriptor); err != nil {
		return nil, classifyReadError(err)
	}

	desc, err := Decode(descriptor, footer.FormatVersion)
	if err != nil {
		return nil, classifyReadError(err)
	}

	return &Extracted{Descriptor: desc, Footer: footer, UnpackedLen: start}, nil
}

// classifyReadError folds footer and decode errors into the three outcomes
// callers act on.
func classifyReadError(err error) error {
	var fe *FooterError
	if errors.As(err, &fe) {
		switch fe.Kind {
		case FooterFileTooSmall, FooterNotPacked:
			return &ReadError{Kind: ReadNotPacked, Err: err}
		default:
			return &ReadError{Kind: ReadCorrupted, Err: err}
		}
	}

	var de *DecodeError
	if errors.As(err, &de) {
		return &ReadError{Kind: ReadMalformed, Err: err}
	}

	return &ReadError{Kind: ReadCorrupted, Err: err}
}

// Reader reads packs from a file on disk without loading the original
// content, which may be arbitrarily large.
type Reader struct {
	path   string
	file   *os.File
	size   int64
	footer *Footer
	logger hclog.Logger
}

// NewReader creates a reader for the file at path.
func NewReader(path string) *Reader {
	return NewReaderWithLogger(path, hclog.NewNullLogger())
}

// NewReaderWithLogger creates a reader with a custom logger
func NewReaderWithLogger(path string, logger hclog.Logger) *Reader {
	if logger == nil {
		logger = hclog.NewNullLogger()
	}
	return &Reader{path: path, logger: logger}
}

// Open opens the file. It is called implicitly by the read methods.
func (r *Reader) Open() error {
	if r.file != nil {
		return nil
	}

	file, err := os.Open(r.path)
	if err != nil {
		return err
	}
	info, err := file.Stat()
	if err != nil {
		_ = file.Close()
		return err
	}

	r.file = file
	r.size = info.Size()
	return nil
}

// Close closes the file
func (r *Reader) Close() error {
	if r.file != nil {
		err := r.file.Close()
		r.file = nil
		r.footer = nil
		return err
	}
	return nil
}

// Size is the file size seen at Open.
func (r *Reader) Size() int64 {
	return r.size
}

// ReadFooter reads and validates the trailing footer.
func (r *Reader) ReadFooter() (*Footer, error) {
	if r.footer != nil {
		return r.footer, nil
	}
	if err := r.Open(); err != nil {
		return nil, err
	}

	tail := make([]byte, min(r.size, FooterSize))
	if _, err := r.file.ReadAt(tail, r.size-int64(len(tail))); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("failed to read footer: %w", err)
	}

	footer, err := ReadFooter(tail)
	if err != nil {
		return nil, classifyReadError(err)
	}

	r.logger.Debug("🦶 Found footer",
		"version", footer.FormatVersion,
		"descriptor_length", footer.DescriptorLength,
		"file_size", r.size,
	)
	r.footer = footer
	return footer, nil
}

// Extract reads, verifies and decodes the descriptor.
func (r *Reader) Extract() (*Extracted, error) {
	footer, err := r.ReadFooter()
	if err != nil {
		return nil, err
	}

	start, end, err := footer.DescriptorRange(r.size)
	if err != nil {
		return nil, classifyReadError(err)
	}

	descriptor := make([]byte, end-start)
	if _, err := r.file.ReadAt(descriptor, start); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("failed to read descriptor: %w", err)
	}

	ex, err := decodeVerified(footer, descriptor, start)
	if err != nil {
		r.logger.Debug("❌ Descriptor rejected", "error", err)
		return nil, err
	}

	r.logger.Debug("✅ Descriptor verified",
		"variant", ex.Descriptor.Variant(),
		"unpacked_len", ex.UnpackedLen,
	)
	return ex, nil
}

// CopyContent writes the original, unpacked content to w and reports
// whether a pack was removed. Like Strip, a file without a pack is copied
// whole; a damaged pack is an error and nothing is written.
func (r *Reader) CopyContent(w io.Writer) (int64, bool, error) {
	var length int64
	ex, err := r.Extract()
	switch {
	case err == nil:
		length = ex.UnpackedLen
	case IsNotPacked(err):
		if err := r.Open(); err != nil {
			return 0, false, err
		}
		length = r.size
	default:
		return 0, false, err
	}

	n, err := io.Copy(w, io.NewSectionReader(r.file, 0, length))
	if err != nil {
		return n, false, fmt.Errorf("failed to copy content: %w", err)
	}
	return n, ex != nil, nil
}

// IsNotPacked reports whether err means the input simply carries no pack.
func IsNotPacked(err error) bool {
	return errors.Is(err, rperrors.ErrNotPacked)
}
