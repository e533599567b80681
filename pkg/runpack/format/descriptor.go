package format

import (
	"fmt"
	"maps"
	"slices"
	"strings"
	"unicode/utf8"

	rperrors "github.com/provide-io/flavor/go/runpack/pkg/runpack/errors"
)

// Variant is the wire tag of a descriptor.
type Variant uint16

const (
	VariantMetadata Variant = 1
	VariantStatic   Variant = 2
	VariantScript   Variant = 3
)

func (v Variant) String() string {
	switch v {
	case VariantMetadata:
		return "metadata"
	case VariantStatic:
		return "static"
	case VariantScript:
		return "script"
	default:
		return fmt.Sprintf("variant(%d)", uint16(v))
	}
}

// ParseVariant maps a variant name back to its tag.
func ParseVariant(s string) (Variant, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "metadata":
		return VariantMetadata, nil
	case "static":
		return VariantStatic, nil
	case "script":
		return VariantScript, nil
	default:
		return 0, fmt.Errorf("%w: unknown variant %q", rperrors.ErrInvalidDescriptor, s)
	}
}

// Descriptor is the metadata embedded in a packed file. The set of
// implementations is closed: *Metadata, *Static and *Script.
//
// Descriptors are immutable. Accessors return copies.
type Descriptor interface {
	Variant() Variant
	Interpreter() (string, bool)
	LibraryPaths() []string
	Env() map[string]string
	Resources() []string

	isDescriptor()
}

// Fields holds the values shared by every variant.
type Fields struct {
	LibraryPaths []string
	Env          map[string]string
	Resources    []string
}

type common struct {
	libraryPaths []string
	env          map[string]string
	resources    []string
}

func newCommon(f Fields) (common, error) {
	for i, p := range f.LibraryPaths {
		if err := checkString(fmt.Sprintf("library_paths[%d]", i), p); err != nil {
			return common{}, err
		}
	}
	for k, v := range f.Env {
		if err := checkEnvKey(k); err != nil {
			return common{}, fmt.Errorf("%w: %v", rperrors.ErrInvalidDescriptor, err)
		}
		if err := checkString("env["+k+"]", v); err != nil {
			return common{}, err
		}
	}
	for i, r := range f.Resources {
		if err := checkString(fmt.Sprintf("resources[%d]", i), r); err != nil {
			return common{}, err
		}
	}

	return common{
		libraryPaths: slices.Clone(f.LibraryPaths),
		env:          maps.Clone(f.Env),
		resources:    normalizeSet(f.Resources),
	}, nil
}

func (c *common) LibraryPaths() []string {
	return slices.Clone(c.libraryPaths)
}

func (c *common) Env() map[string]string {
	env := make(map[string]string, len(c.env))
	maps.Copy(env, c.env)
	return env
}

func (c *common) Resources() []string {
	return slices.Clone(c.resources)
}

// Metadata describes a dynamically linked executable. The interpreter is the
// dynamic loader to run it with, when one is known.
type Metadata struct {
	common
	interpreter    string
	hasInterpreter bool
}

// NewMetadata builds a Metadata descriptor. An empty interpreter means none.
func NewMetadata(interpreter string, f Fields) (*Metadata, error) {
	c, err := newCommon(f)
	if err != nil {
		return nil, err
	}
	if err := checkString("interpreter", interpreter); err != nil {
		return nil, err
	}
	return &Metadata{common: c, interpreter: interpreter, hasInterpreter: interpreter != ""}, nil
}

func (*Metadata) Variant() Variant { return VariantMetadata }

func (m *Metadata) Interpreter() (string, bool) { return m.interpreter, m.hasInterpreter }

func (*Metadata) isDescriptor() {}

// Static describes a statically linked executable or shared library.
type Static struct {
	common
}

// NewStatic builds a Static descriptor.
func NewStatic(f Fields) (*Static, error) {
	c, err := newCommon(f)
	if err != nil {
		return nil, err
	}
	return &Static{common: c}, nil
}

func (*Static) Variant() Variant { return VariantStatic }

func (*Static) Interpreter() (string, bool) { return "", false }

func (*Static) isDescriptor() {}

// Script describes an interpreted program. Interpreter and its arguments are
// what the original shebang line asked for.
type Script struct {
	common
	interpreter     string
	interpreterArgs []string
}

// NewScript builds a Script descriptor. The interpreter is required.
func NewScript(interpreter string, args []string, f Fields) (*Script, error) {
	if interpreter == "" {
		return nil, fmt.Errorf("%w: script interpreter is required", rperrors.ErrInvalidDescriptor)
	}
	if err := checkString("interpreter", interpreter); err != nil {
		return nil, err
	}
	for i, a := range args {
		if err := checkString(fmt.Sprintf("interpreter_args[%d]", i), a); err != nil {
			return nil, err
		}
	}
	c, err := newCommon(f)
	if err != nil {
		return nil, err
	}
	return &Script{common: c, interpreter: interpreter, interpreterArgs: slices.Clone(args)}, nil
}

func (*Script) Variant() Variant { return VariantScript }

func (s *Script) Interpreter() (string, bool) { return s.interpreter, true }

// InterpreterArgs returns the arguments passed to the interpreter before the
// script path.
func (s *Script) InterpreterArgs() []string { return slices.Clone(s.interpreterArgs) }

func (*Script) isDescriptor() {}

// Equal reports whether two descriptors hold the same values.
func Equal(a, b Descriptor) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	if a.Variant() != b.Variant() {
		return false
	}
	ai, aok := a.Interpreter()
	bi, bok := b.Interpreter()
	if ai != bi || aok != bok {
		return false
	}
	if as, ok := a.(*Script); ok {
		if !slices.Equal(as.interpreterArgs, b.(*Script).interpreterArgs) {
			return false
		}
	}
	return slices.Equal(a.LibraryPaths(), b.LibraryPaths()) &&
		maps.Equal(a.Env(), b.Env()) &&
		slices.Equal(a.Resources(), b.Resources())
}

func checkString(field, s string) error {
	if !utf8.ValidString(s) {
		return fmt.Errorf("%w: %s is not valid utf-8", rperrors.ErrInvalidDescriptor, field)
	}
	return nil
}

func checkEnvKey(k string) error {
	switch {
	case k == "":
		return fmt.Errorf("empty env var name")
	case strings.ContainsAny(k, "=\x00"):
		return fmt.Errorf("env var name %q contains '=' or NUL", k)
	case !utf8.ValidString(k):
		return fmt.Errorf("env var name %q is not valid utf-8", k)
	}
	return nil
}

func normalizeSet(in []string) []string {
	if len(in) == 0 {
		return nil
	}
	out := slices.Clone(in)
	slices.Sort(out)
	return slices.Compact(out)
}
