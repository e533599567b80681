package format

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"

	rperrors "github.com/provide-io/flavor/go/runpack/pkg/runpack/errors"
)

// DescriptorSpec is the document form of a descriptor, as written in
// descriptor files and printed by `runpack read --json`.
type DescriptorSpec struct {
	Variant         string            `json:"variant" toml:"variant"`
	Interpreter     string            `json:"interpreter,omitempty" toml:"interpreter,omitempty"`
	InterpreterArgs []string          `json:"interpreter_args,omitempty" toml:"interpreter_args,omitempty"`
	LibraryPaths    []string          `json:"library_paths,omitempty" toml:"library_paths,omitempty"`
	Env             map[string]string `json:"env,omitempty" toml:"env,omitempty"`
	Resources       []string          `json:"resources,omitempty" toml:"resources,omitempty"`
}

// Build validates the document and constructs the descriptor.
func (s *DescriptorSpec) Build() (Descriptor, error) {
	variant, err := ParseVariant(s.Variant)
	if err != nil {
		return nil, err
	}

	fields := Fields{
		LibraryPaths: s.LibraryPaths,
		Env:          s.Env,
		Resources:    s.Resources,
	}

	switch variant {
	case VariantMetadata:
		if len(s.InterpreterArgs) > 0 {
			return nil, fmt.Errorf("%w: interpreter_args only apply to the script variant", rperrors.ErrInvalidDescriptor)
		}
		return NewMetadata(s.Interpreter, fields)
	case VariantStatic:
		if s.Interpreter != "" || len(s.InterpreterArgs) > 0 {
			return nil, fmt.Errorf("%w: the static variant has no interpreter", rperrors.ErrInvalidDescriptor)
		}
		return NewStatic(fields)
	default:
		return NewScript(s.Interpreter, s.InterpreterArgs, fields)
	}
}

// SpecOf converts a descriptor to its document form.
func SpecOf(d Descriptor) *DescriptorSpec {
	s := &DescriptorSpec{
		Variant:      d.Variant().String(),
		LibraryPaths: d.LibraryPaths(),
		Env:          d.Env(),
		Resources:    d.Resources(),
	}
	if interp, ok := d.Interpreter(); ok {
		s.Interpreter = interp
	}
	if sc, ok := d.(*Script); ok {
		s.InterpreterArgs = sc.InterpreterArgs()
	}
	if len(s.Env) == 0 {
		s.Env = nil
	}
	return s
}

// Merge overlays the non-empty fields of other onto s. Lists are appended
// and env entries from other win.
func (s *DescriptorSpec) Merge(other *DescriptorSpec) {
	if other == nil {
		return
	}
	if other.Variant != "" {
		s.Variant = other.Variant
	}
	if other.Interpreter != "" {
		s.Interpreter = other.Interpreter
	}
	s.InterpreterArgs = append(s.InterpreterArgs, other.InterpreterArgs...)
	s.LibraryPaths = append(s.LibraryPaths, other.LibraryPaths...)
	s.Resources = append(s.Resources, other.Resources...)
	if len(other.Env) > 0 && s.Env == nil {
		s.Env = make(map[string]string, len(other.Env))
	}
	for k, v := range other.Env {
		s.Env[k] = v
	}
}

// DescriptorFormat is the syntax of a descriptor document.
type DescriptorFormat string

const (
	DescriptorJSON DescriptorFormat = "json"
	DescriptorTOML DescriptorFormat = "toml"
)

// LoadDescriptorSpec reads a descriptor document, choosing the syntax from
// the file extension.
func LoadDescriptorSpec(path string) (*DescriptorSpec, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read descriptor file: %w", err)
	}

	var format DescriptorFormat
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".json":
		format = DescriptorJSON
	case ".toml":
		format = DescriptorTOML
	default:
		return nil, fmt.Errorf("unsupported descriptor file extension %q (want .json or .toml)", ext)
	}

	spec, err := ParseDescriptorSpec(data, format)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return spec, nil
}

// ParseDescriptorSpec parses a descriptor document. Unknown keys are
// rejected so that typos do not silently drop fields.
func ParseDescriptorSpec(data []byte, format DescriptorFormat) (*DescriptorSpec, error) {
	var spec DescriptorSpec

	switch format {
	case DescriptorJSON:
		dec := json.NewDecoder(bytes.NewReader(data))
		dec.DisallowUnknownFields()
		if err := dec.Decode(&spec); err != nil {
			return nil, fmt.Errorf("%w: %v", rperrors.ErrInvalidDescriptor, err)
		}
	case DescriptorTOML:
		dec := toml.NewDecoder(bytes.NewReader(data)).DisallowUnknownFields()
		if err := dec.Decode(&spec); err != nil {
			return nil, fmt.Errorf("%w: %v", rperrors.ErrInvalidDescriptor, err)
		}
	default:
		return nil, fmt.Errorf("unknown descriptor format %q", format)
	}

	return &spec, nil
}

// Marshal renders the document in the given syntax.
func (s *DescriptorSpec) Marshal(format DescriptorFormat) ([]byte, error) {
	switch format {
	case DescriptorJSON:
		return json.MarshalIndent(s, "", "  ")
	case DescriptorTOML:
		return toml.Marshal(s)
	default:
		return nil, fmt.Errorf("unknown descriptor format %q", format)
	}
}
