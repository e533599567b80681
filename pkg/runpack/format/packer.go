package format

import (
	"errors"
	"fmt"

	"github.com/hashicorp/go-hclog"

	rperrors "github.com/provide-io/flavor/go/runpack/pkg/runpack/errors"
)

// PackOptions controls Pack.
type PackOptions struct {
	// Class, when set, is the class the caller expects. Content of any other
	// class is refused. ClassUnknown accepts whatever is detected.
	Class ExecutableClass

	// Repack strips an existing pack before embedding the new descriptor.
	// Without it, packing an already packed file fails.
	Repack bool

	// Loader, when set, replaces a script's interpreter line with
	// "#!<Loader>". The original interpreter is expected in the descriptor.
	Loader string

	Logger hclog.Logger
}

// Pack appends an encoded descriptor and footer to source and returns the
// packed bytes. source is not modified and nothing is written to disk.
func Pack(source []byte, d Descriptor, opts PackOptions) ([]byte, error) {
	logger := opts.Logger
	if logger == nil {
		logger = hclog.NewNullLogger()
	}

	// 🔍 Probe for an existing pack first
	content, err := stripForPack(source, opts.Repack, logger)
	if err != nil {
		return nil, err
	}

	// Content is always classified; a hint can only confirm the result.
	class, err := Classify(content[:min(len(content), ClassifyPrefixSize)])
	if err != nil {
		logger.Debug("❌ Classification failed", "error", err)
		return nil, &PackError{Kind: PackUnsupportedClass, Class: opts.Class, Err: err}
	}
	if opts.Class != ClassUnknown && opts.Class != class {
		logger.Debug("❌ Class hint conflicts with content", "hint", opts.Class, "detected", class)
		return nil, &PackError{
			Kind:   PackUnsupportedClass,
			Class:  opts.Class,
			Detail: fmt.Sprintf("content is %s", class),
		}
	}
	logger.Debug("📈 Source classified", "class", class, "size", len(content))

	if want, ok := class.DefaultVariant(); ok && d != nil && d.Variant() != want {
		logger.Warn("⚠️ Descriptor variant does not match executable class",
			"variant", d.Variant(), "class", class, "expected", want)
	}

	encoded, err := Encode(d)
	if err != nil {
		var pe *PackError
		if errors.As(err, &pe) {
			pe.Class = class
		}
		return nil, err
	}

	adjusted := adjustContent(content, class, opts.Loader, logger)

	footer := WriteFooter(encoded)
	out := make([]byte, 0, len(adjusted)+len(encoded)+len(footer))
	out = append(out, adjusted...)
	out = append(out, encoded...)
	out = append(out, footer...)

	logger.Debug("✅ Packed",
		"class", class,
		"variant", d.Variant(),
		"content_size", len(adjusted),
		"descriptor_size", len(encoded),
		"total_size", len(out),
	)
	return out, nil
}

// stripForPack returns the content to pack: source itself when it carries no
// footer, or the unpacked prefix when repacking.
func stripForPack(source []byte, repack bool, logger hclog.Logger) ([]byte, error) {
	extracted, err := Extract(source)
	if err == nil {
		if !repack {
			return nil, &PackError{
				Kind:   PackAlreadyPacked,
				Detail: fmt.Sprintf("%s descriptor found", extracted.Descriptor.Variant()),
			}
		}
		logger.Debug("♻️ Stripping previous pack",
			"variant", extracted.Descriptor.Variant(),
			"unpacked_len", extracted.UnpackedLen,
		)
		return source[:extracted.UnpackedLen], nil
	}

	if errors.Is(err, rperrors.ErrNotPacked) {
		return source, nil
	}

	// The magic matched but the pack behind it is damaged. Stacking a new
	// pack on top would hide the damage, so refuse either way.
	return nil, &PackError{Kind: PackCorruptExistingPack, Err: err}
}

func adjustContent(content []byte, class ExecutableClass, loader string, logger hclog.Logger) []byte {
	if class != ClassScript || loader == "" {
		return content
	}
	sb, ok := ParseShebang(content[:min(len(content), ClassifyPrefixSize)])
	if !ok {
		logger.Warn("⚠️ No interpreter line to rewrite; content left unchanged", "loader", loader)
		return content
	}
	logger.Debug("✍️ Rewriting interpreter line", "from", sb.Interpreter, "to", loader)
	return rewriteShebang(content, loader)
}
