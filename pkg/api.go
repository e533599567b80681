// Package pkg is the file boundary of runpack: it reads inputs, hands byte
// buffers to the format package and writes outputs atomically.
package pkg

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/hashicorp/go-hclog"

	"github.com/provide-io/flavor/go/runpack/pkg/runpack/format"
	"github.com/provide-io/flavor/go/runpack/pkg/utils/permissions"
)

// PackFileOptions configures PackFile.
type PackFileOptions struct {
	Descriptor format.Descriptor
	// Class is the expected class; content of another class is refused.
	Class  format.ExecutableClass
	Repack bool
	Loader string
	// Mode of the written file. Zero means permissions.DefaultExecutablePerms.
	Mode   fs.FileMode
	Logger hclog.Logger
}

// PackFile packs inputPath into outputPath. The two may be the same file.
func PackFile(inputPath, outputPath string, opts PackFileOptions) error {
	logger := orNull(opts.Logger)

	info, err := os.Stat(inputPath)
	if err != nil {
		return fmt.Errorf("failed to stat input: %w", err)
	}
	source, err := os.ReadFile(inputPath)
	if err != nil {
		return fmt.Errorf("failed to read input: %w", err)
	}
	logger.Debug("📖 Read input", "path", inputPath, "size", len(source))

	packed, err := format.Pack(source, opts.Descriptor, format.PackOptions{
		Class:  opts.Class,
		Repack: opts.Repack,
		Loader: opts.Loader,
		Logger: logger,
	})
	if err != nil {
		return err
	}

	mode := opts.Mode
	if mode == 0 {
		mode = permissions.DefaultExecutablePerms
	}
	if !permissions.IsExecutable(info.Mode()) {
		logger.Warn("⚠️ Input is not executable", "path", inputPath, "mode", permissions.FormatOctal(info.Mode()))
	}
	if !permissions.IsExecutable(mode) {
		logger.Warn("⚠️ Output mode lacks the owner execute bit", "path", outputPath, "mode", permissions.FormatOctal(mode))
	}

	if err := writeFileAtomic(outputPath, mode, logger, writeBytes(packed)); err != nil {
		return err
	}

	logger.Info("✅ Packed",
		"input", inputPath,
		"output", outputPath,
		"variant", opts.Descriptor.Variant(),
		"size", len(packed),
		"mode", permissions.FormatOctal(mode),
	)
	return nil
}

// ReadFile extracts the pack of the file at path without loading the
// original content.
func ReadFile(path string, logger hclog.Logger) (*format.Extracted, error) {
	logger = orNull(logger)
	r := format.NewReaderWithLogger(path, logger)
	defer func() {
		if err := r.Close(); err != nil {
			logger.Debug("Failed to close reader", "error", err)
		}
	}()
	return r.Extract()
}

// StripFile writes the original content of inputPath to outputPath, keeping
// the input's permissions. The content is streamed, never loaded whole. A file
// without a pack is copied unchanged.
func StripFile(inputPath, outputPath string, logger hclog.Logger) (bool, error) {
	logger = orNull(logger)

	r := format.NewReaderWithLogger(inputPath, logger)
	defer func() {
		if err := r.Close(); err != nil {
			logger.Debug("Failed to close reader", "error", err)
		}
	}()
	if err := r.Open(); err != nil {
		return false, fmt.Errorf("failed to open input: %w", err)
	}
	info, err := os.Stat(inputPath)
	if err != nil {
		return false, fmt.Errorf("failed to stat input: %w", err)
	}

	var written int64
	var removed bool
	err = writeFileAtomic(outputPath, info.Mode().Perm(), logger, func(w io.Writer) error {
		var err error
		written, removed, err = r.CopyContent(w)
		// Release the input before it may be replaced in place.
		if cerr := r.Close(); err == nil {
			err = cerr
		}
		return err
	})
	if err != nil {
		return false, err
	}

	if !removed {
		logger.Warn("⚠️ Input carries no pack; copied unchanged", "path", inputPath)
	}
	logger.Info("✅ Stripped", "input", inputPath, "output", outputPath, "removed_bytes", r.Size()-written)
	return removed, nil
}

// ReadHead returns up to format.ClassifyPrefixSize leading bytes of a file.
func ReadHead(path string) ([]byte, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer func() { _ = f.Close() }()

	head := make([]byte, format.ClassifyPrefixSize)
	n, err := io.ReadFull(f, head)
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	return head[:n], nil
}

// writeFileAtomic writes to a temporary file next to path and moves it into
// place, so readers never observe a partial output.
func writeFileAtomic(path string, mode fs.FileMode, logger hclog.Logger, write func(io.Writer) error) (err error) {
	dir, base := filepath.Split(path)
	if base == "" {
		return fmt.Errorf("invalid output path %q", path)
	}
	if dir == "" {
		dir = "."
	}

	tmp, err := os.CreateTemp(dir, "."+base+".runpack-*")
	if err != nil {
		return fmt.Errorf("failed to create temporary file: %w", err)
	}
	tmpPath := tmp.Name()
	defer func() {
		if err != nil {
			_ = tmp.Close()
			_ = os.Remove(tmpPath)
		}
	}()

	if err = write(tmp); err != nil {
		return err
	}
	if err = tmp.Chmod(mode); err != nil {
		return fmt.Errorf("failed to set permissions: %w", err)
	}
	if err = tmp.Sync(); err != nil {
		return fmt.Errorf("failed to sync output: %w", err)
	}
	if err = tmp.Close(); err != nil {
		return fmt.Errorf("failed to close output: %w", err)
	}

	return atomicReplace(tmpPath, path, logger)
}

func writeBytes(data []byte) func(io.Writer) error {
	return func(w io.Writer) error {
		if _, err := w.Write(data); err != nil {
			return fmt.Errorf("failed to write output: %w", err)
		}
		return nil
	}
}

func orNull(logger hclog.Logger) hclog.Logger {
	if logger == nil {
		return hclog.NewNullLogger()
	}
	return logger
}
