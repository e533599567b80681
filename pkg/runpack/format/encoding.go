package format

import (
	"encoding/binary"
	"fmt"
	"math"
	"slices"
	"unicode/utf8"
)

// Encode serializes a descriptor. The output depends only on the descriptor's
// values: env entries are written sorted by key and resources sorted, so equal
// descriptors always encode to identical bytes.
func Encode(d Descriptor) ([]byte, error) {
	if d == nil {
		return nil, &PackError{Kind: PackEncodingFailure, Detail: "nil descriptor"}
	}

	e := &encoder{}
	e.u16(uint16(d.Variant()))

	switch d := d.(type) {
	case *Metadata:
		if d == nil {
			return nil, nilDescriptor(d)
		}
		e.optString(d.interpreter, d.hasInterpreter)
		e.common(&d.common)
	case *Static:
		if d == nil {
			return nil, nilDescriptor(d)
		}
		e.common(&d.common)
	case *Script:
		if d == nil {
			return nil, nilDescriptor(d)
		}
		e.string(d.interpreter)
		e.list(d.interpreterArgs)
		e.common(&d.common)
	default:
		return nil, &PackError{Kind: PackEncodingFailure, Detail: fmt.Sprintf("unsupported descriptor type %T", d)}
	}

	if e.err != nil {
		return nil, &PackError{Kind: PackEncodingFailure, Err: e.err}
	}
	return e.buf, nil
}

func nilDescriptor(d Descriptor) error {
	return &PackError{Kind: PackEncodingFailure, Detail: fmt.Sprintf("nil %T descriptor", d)}
}

type encoder struct {
	buf []byte
	err error
}

func (e *encoder) u8(v uint8) {
	e.buf = append(e.buf, v)
}

func (e *encoder) u16(v uint16) {
	e.buf = binary.LittleEndian.AppendUint16(e.buf, v)
}

func (e *encoder) u32(v uint32) {
	e.buf = binary.LittleEndian.AppendUint32(e.buf, v)
}

func (e *encoder) length(n int) {
	if uint64(n) > math.MaxUint32 {
		if e.err == nil {
			e.err = fmt.Errorf("field length %d exceeds %d", n, uint32(math.MaxUint32))
		}
		return
	}
	e.u32(uint32(n))
}

func (e *encoder) string(s string) {
	e.length(len(s))
	e.buf = append(e.buf, s...)
}

func (e *encoder) optString(s string, ok bool) {
	if !ok {
		e.u8(0)
		return
	}
	e.u8(1)
	e.string(s)
}

func (e *encoder) list(items []string) {
	e.length(len(items))
	for _, s := range items {
		e.string(s)
	}
}

func (e *encoder) envMap(env map[string]string) {
	keys := make([]string, 0, len(env))
	for k := range env {
		keys = append(keys, k)
	}
	slices.Sort(keys)

	e.length(len(keys))
	for _, k := range keys {
		e.string(k)
		e.string(env[k])
	}
}

func (e *encoder) common(c *common) {
	e.list(c.libraryPaths)
	e.envMap(c.env)
	e.list(c.resources)
}

// Decode parses a descriptor written by Encode. version is the footer's
// format version; versions this reader does not know are refused rather than
// parsed on a best-effort basis.
func Decode(data []byte, version uint32) (Descriptor, error) {
	if version < MinFormatVersion || version > MaxFormatVersion {
		return nil, &DecodeError{
			Kind:   DecodeUnsupportedVersion,
			Detail: fmt.Sprintf("version %d, supported %d..%d", version, MinFormatVersion, MaxFormatVersion),
		}
	}

	d := &decoder{data: data}
	tag, err := d.u16("variant")
	if err != nil {
		return nil, err
	}

	var desc Descriptor
	switch Variant(tag) {
	case VariantMetadata:
		desc, err = d.metadata()
	case VariantStatic:
		desc, err = d.static()
	case VariantScript:
		desc, err = d.script()
	default:
		return nil, &DecodeError{Kind: DecodeUnknownVariant, Field: "variant", Offset: 0, Detail: fmt.Sprintf("tag %d", tag)}
	}
	if err != nil {
		return nil, err
	}

	if d.off != len(d.data) {
		return nil, &DecodeError{
			Kind:   DecodeTrailingData,
			Offset: d.off,
			Detail: fmt.Sprintf("%d unread bytes", len(d.data)-d.off),
		}
	}
	return desc, nil
}

type decoder struct {
	data []byte
	off  int
}

func (d *decoder) remaining() int {
	return len(d.data) - d.off
}

func (d *decoder) truncated(field string, want int) error {
	return &DecodeError{
		Kind:   DecodeTruncated,
		Field:  field,
		Offset: d.off,
		Detail: fmt.Sprintf("need %d bytes, have %d", want, d.remaining()),
	}
}

func (d *decoder) u8(field string) (uint8, error) {
	if d.remaining() < 1 {
		return 0, d.truncated(field, 1)
	}
	v := d.data[d.off]
	d.off++
	return v, nil
}

func (d *decoder) u16(field string) (uint16, error) {
	if d.remaining() < 2 {
		return 0, d.truncated(field, 2)
	}
	v := binary.LittleEndian.Uint16(d.data[d.off:])
	d.off += 2
	return v, nil
}

func (d *decoder) u32(field string) (uint32, error) {
	if d.remaining() < 4 {
		return 0, d.truncated(field, 4)
	}
	v := binary.LittleEndian.Uint32(d.data[d.off:])
	d.off += 4
	return v, nil
}

func (d *decoder) string(field string) (string, error) {
	start := d.off
	n, err := d.u32(field)
	if err != nil {
		return "", err
	}
	if uint64(n) > uint64(d.remaining()) {
		return "", d.truncated(field, int(min(uint64(n), math.MaxInt32)))
	}
	raw := d.data[d.off : d.off+int(n)]
	if !utf8.Valid(raw) {
		return "", &DecodeError{Kind: DecodeInvalidUTF8, Field: field, Offset: start}
	}
	d.off += int(n)
	return string(raw), nil
}

// count reads an element count and rejects it early when even minimal
// elements could not fit in what is left.
func (d *decoder) count(field string, minElem int) (int, error) {
	n, err := d.u32(field)
	if err != nil {
		return 0, err
	}
	if uint64(n)*uint64(minElem) > uint64(d.remaining()) {
		return 0, &DecodeError{
			Kind:   DecodeTruncated,
			Field:  field,
			Offset: d.off - 4,
			Detail: fmt.Sprintf("%d entries cannot fit in %d bytes", n, d.remaining()),
		}
	}
	return int(n), nil
}

func (d *decoder) list(field string) ([]string, error) {
	n, err := d.count(field, 4)
	if err != nil {
		return nil, err
	}
	if n == 0 {
		return nil, nil
	}
	out := make([]string, 0, n)
	for i := 0; i < n; i++ {
		s, err := d.string(fmt.Sprintf("%s[%d]", field, i))
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, nil
}

func (d *decoder) envMap() (map[string]string, error) {
	n, err := d.count("env", 8)
	if err != nil {
		return nil, err
	}
	if n == 0 {
		return nil, nil
	}
	env := make(map[string]string, n)
	for i := 0; i < n; i++ {
		keyOff := d.off
		k, err := d.string(fmt.Sprintf("env[%d].key", i))
		if err != nil {
			return nil, err
		}
		if err := checkEnvKey(k); err != nil {
			return nil, &DecodeError{Kind: DecodeInvalidField, Field: fmt.Sprintf("env[%d].key", i), Offset: keyOff, Detail: err.Error()}
		}
		if _, dup := env[k]; dup {
			return nil, &DecodeError{Kind: DecodeInvalidField, Field: fmt.Sprintf("env[%d].key", i), Offset: keyOff, Detail: fmt.Sprintf("duplicate key %q", k)}
		}
		v, err := d.string(fmt.Sprintf("env[%s]", k))
		if err != nil {
			return nil, err
		}
		env[k] = v
	}
	return env, nil
}

func (d *decoder) fields() (Fields, error) {
	var f Fields
	var err error
	if f.LibraryPaths, err = d.list("library_paths"); err != nil {
		return Fields{}, err
	}
	if f.Env, err = d.envMap(); err != nil {
		return Fields{}, err
	}
	if f.Resources, err = d.resources(); err != nil {
		return Fields{}, err
	}
	return f, nil
}

// resources reads the resource set, which is only accepted in its canonical
// form: strictly ascending, so sorted and free of duplicates.
func (d *decoder) resources() ([]string, error) {
	n, err := d.count("resources", 4)
	if err != nil {
		return nil, err
	}
	if n == 0 {
		return nil, nil
	}
	out := make([]string, 0, n)
	for i := 0; i < n; i++ {
		off := d.off
		field := fmt.Sprintf("resources[%d]", i)
		s, err := d.string(field)
		if err != nil {
			return nil, err
		}
		if i > 0 {
			switch prev := out[i-1]; {
			case s == prev:
				return nil, &DecodeError{Kind: DecodeInvalidField, Field: field, Offset: off, Detail: fmt.Sprintf("duplicate resource %q", s)}
			case s < prev:
				return nil, &DecodeError{Kind: DecodeInvalidField, Field: field, Offset: off, Detail: fmt.Sprintf("resource %q out of order", s)}
			}
		}
		out = append(out, s)
	}
	return out, nil
}

func (d *decoder) metadata() (Descriptor, error) {
	flagOff := d.off
	present, err := d.u8("interpreter")
	if err != nil {
		return nil, err
	}
	var interpreter string
	switch present {
	case 0:
	case 1:
		if interpreter, err = d.string("interpreter"); err != nil {
			return nil, err
		}
		if interpreter == "" {
			return nil, &DecodeError{Kind: DecodeInvalidField, Field: "interpreter", Offset: flagOff, Detail: "present but empty"}
		}
	default:
		return nil, &DecodeError{Kind: DecodeInvalidField, Field: "interpreter", Offset: flagOff, Detail: fmt.Sprintf("presence flag %d", present)}
	}

	f, err := d.fields()
	if err != nil {
		return nil, err
	}
	return &Metadata{common: fromFields(f), interpreter: interpreter, hasInterpreter: present == 1}, nil
}

func (d *decoder) static() (Descriptor, error) {
	f, err := d.fields()
	if err != nil {
		return nil, err
	}
	return &Static{common: fromFields(f)}, nil
}

func (d *decoder) script() (Descriptor, error) {
	off := d.off
	interpreter, err := d.string("interpreter")
	if err != nil {
		return nil, err
	}
	if interpreter == "" {
		return nil, &DecodeError{Kind: DecodeInvalidField, Field: "interpreter", Offset: off, Detail: "script interpreter is empty"}
	}
	args, err := d.list("interpreter_args")
	if err != nil {
		return nil, err
	}
	f, err := d.fields()
	if err != nil {
		return nil, err
	}
	return &Script{common: fromFields(f), interpreter: interpreter, interpreterArgs: args}, nil
}

// fromFields wraps decoded values without re-validating them; the decoder
// has already checked every string and the order of the resource set.
func fromFields(f Fields) common {
	return common{
		libraryPaths: f.LibraryPaths,
		env:          f.Env,
		resources:    f.Resources,
	}
}
