package format

import (
	"bytes"
	"debug/elf"
	"encoding/binary"
	"fmt"
	"strings"
)

// ExecutableClass selects the packing strategy for a source file.
type ExecutableClass int

const (
	ClassUnknown ExecutableClass = iota
	ClassElfDynamic
	ClassElfStatic
	ClassScript
)

func (c ExecutableClass) String() string {
	switch c {
	case ClassElfDynamic:
		return "elf-dynamic"
	case ClassElfStatic:
		return "elf-static"
	case ClassScript:
		return "script"
	default:
		return "unknown"
	}
}

// ParseClass maps a class name (as printed by String) back to its value.
func ParseClass(s string) (ExecutableClass, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "auto":
		return ClassUnknown, nil
	case "elf-dynamic", "dynamic":
		return ClassElfDynamic, nil
	case "elf-static", "static":
		return ClassElfStatic, nil
	case "script":
		return ClassScript, nil
	default:
		return ClassUnknown, fmt.Errorf("unknown executable class %q", s)
	}
}

// DefaultVariant is the descriptor variant normally paired with a class.
func (c ExecutableClass) DefaultVariant() (Variant, bool) {
	switch c {
	case ClassElfDynamic:
		return VariantMetadata, true
	case ClassElfStatic:
		return VariantStatic, true
	case ClassScript:
		return VariantScript, true
	default:
		return 0, false
	}
}

var (
	shebangMarker = []byte("#!")
	elfMagic      = []byte(elf.ELFMAG)
)

// Classify inspects the leading bytes of a file. Only the first
// ClassifyPrefixSize bytes are looked at, so callers never need to read a
// whole file to classify it.
func Classify(head []byte) (ExecutableClass, error) {
	if len(head) > ClassifyPrefixSize {
		head = head[:ClassifyPrefixSize]
	}

	switch {
	case bytes.HasPrefix(head, shebangMarker):
		return ClassScript, nil
	case bytes.HasPrefix(head, elfMagic):
		return classifyELF(head)
	case len(head) == 0:
		return ClassUnknown, &ClassifyError{Detail: "empty input"}
	default:
		return ClassUnknown, &ClassifyError{Detail: fmt.Sprintf("no known signature in leading bytes %x", head[:min(len(head), 4)])}
	}
}

// elfHeader holds the parts of the ELF file header classification needs.
type elfHeader struct {
	order     binary.ByteOrder
	is64      bool
	typ       elf.Type
	phoff     uint64
	phentsize uint16
	phnum     uint16
}

func classifyELF(head []byte) (ExecutableClass, error) {
	h, err := parseELFHeader(head)
	if err != nil {
		return ClassUnknown, err
	}

	switch h.typ {
	case elf.ET_EXEC, elf.ET_DYN:
	default:
		return ClassUnknown, &ClassifyError{Detail: fmt.Sprintf("ELF type %s is not executable", h.typ)}
	}

	interp, err := h.hasProgType(head, elf.PT_INTERP)
	if err != nil {
		return ClassUnknown, err
	}
	if interp {
		return ClassElfDynamic, nil
	}
	return ClassElfStatic, nil
}

func parseELFHeader(head []byte) (*elfHeader, error) {
	if len(head) < elf.EI_NIDENT {
		return nil, &ClassifyError{Detail: "truncated ELF ident"}
	}

	h := &elfHeader{}
	switch elf.Class(head[elf.EI_CLASS]) {
	case elf.ELFCLASS32:
	case elf.ELFCLASS64:
		h.is64 = true
	default:
		return nil, &ClassifyError{Detail: fmt.Sprintf("bad ELF class %d", head[elf.EI_CLASS])}
	}
	switch elf.Data(head[elf.EI_DATA]) {
	case elf.ELFDATA2LSB:
		h.order = binary.LittleEndian
	case elf.ELFDATA2MSB:
		h.order = binary.BigEndian
	default:
		return nil, &ClassifyError{Detail: fmt.Sprintf("bad ELF data encoding %d", head[elf.EI_DATA])}
	}

	// e_type is at 16 for both classes; the program header fields move.
	if h.is64 {
		if len(head) < 64 {
			return nil, &ClassifyError{Detail: "truncated ELF64 header"}
		}
		h.typ = elf.Type(h.order.Uint16(head[16:18]))
		h.phoff = h.order.Uint64(head[32:40])
		h.phentsize = h.order.Uint16(head[54:56])
		h.phnum = h.order.Uint16(head[56:58])
	} else {
		if len(head) < 52 {
			return nil, &ClassifyError{Detail: "truncated ELF32 header"}
		}
		h.typ = elf.Type(h.order.Uint16(head[16:18]))
		h.phoff = uint64(h.order.Uint32(head[28:32]))
		h.phentsize = h.order.Uint16(head[42:44])
		h.phnum = h.order.Uint16(head[44:46])
	}
	return h, nil
}

// hasProgType scans the program header table, which must lie inside head.
func (h *elfHeader) hasProgType(head []byte, want elf.ProgType) (bool, error) {
	if h.phnum == 0 {
		return false, nil
	}
	minEnt := uint16(32)
	if h.is64 {
		minEnt = 56
	}
	if h.phentsize < minEnt {
		return false, &ClassifyError{Detail: fmt.Sprintf("program header entry size %d too small", h.phentsize)}
	}

	end := h.phoff + uint64(h.phnum)*uint64(h.phentsize)
	if h.phoff >= uint64(len(head)) || end > uint64(len(head)) {
		return false, &ClassifyError{Detail: fmt.Sprintf("program headers [%d, %d) lie outside the %d byte prefix", h.phoff, end, len(head))}
	}

	for i := uint64(0); i < uint64(h.phnum); i++ {
		off := h.phoff + i*uint64(h.phentsize)
		// p_type is the first word in both classes.
		if elf.ProgType(h.order.Uint32(head[off:off+4])) == want {
			return true, nil
		}
	}
	return false, nil
}
