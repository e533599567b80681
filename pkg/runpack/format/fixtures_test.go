package format

import (
	"debug/elf"
	"encoding/binary"
	"testing"

	"github.com/hashicorp/go-hclog"
)

func testLogger(name string) hclog.Logger {
	return hclog.New(&hclog.LoggerOptions{
		Name:  name,
		Level: hclog.Trace,
	})
}

// elfSpec describes a minimal ELF image: a file header immediately followed
// by the program header table.
type elfSpec struct {
	is64  bool
	order binary.ByteOrder
	typ   elf.Type
	progs []elf.ProgType
	// phoff overrides the program header offset when non-zero.
	phoff uint64
	// phentsize overrides the entry size when non-zero.
	phentsize uint16
	// pad grows the image to at least this many bytes.
	pad int
}

func buildELF(s elfSpec) []byte {
	order := s.order
	if order == nil {
		order = binary.LittleEndian
	}

	ehsize, entsize := 52, uint16(32)
	if s.is64 {
		ehsize, entsize = 64, 56
	}
	if s.phentsize != 0 {
		entsize = s.phentsize
	}
	phoff := uint64(ehsize)
	if s.phoff != 0 {
		phoff = s.phoff
	}

	size := max(int(phoff)+len(s.progs)*int(entsize), ehsize, s.pad)
	buf := make([]byte, size)

	copy(buf, elf.ELFMAG)
	buf[elf.EI_CLASS] = byte(elf.ELFCLASS32)
	if s.is64 {
		buf[elf.EI_CLASS] = byte(elf.ELFCLASS64)
	}
	buf[elf.EI_DATA] = byte(elf.ELFDATA2LSB)
	if order == binary.BigEndian {
		buf[elf.EI_DATA] = byte(elf.ELFDATA2MSB)
	}
	buf[elf.EI_VERSION] = byte(elf.EV_CURRENT)

	order.PutUint16(buf[16:18], uint16(s.typ))
	if s.is64 {
		order.PutUint64(buf[32:40], phoff)
		order.PutUint16(buf[52:54], uint16(ehsize))
		order.PutUint16(buf[54:56], entsize)
		order.PutUint16(buf[56:58], uint16(len(s.progs)))
	} else {
		order.PutUint32(buf[28:32], uint32(phoff))
		order.PutUint16(buf[40:42], uint16(ehsize))
		order.PutUint16(buf[42:44], entsize)
		order.PutUint16(buf[44:46], uint16(len(s.progs)))
	}

	for i, pt := range s.progs {
		off := int(phoff) + i*int(entsize)
		if off+4 <= len(buf) {
			order.PutUint32(buf[off:off+4], uint32(pt))
		}
	}
	return buf
}

func dynamicELF() []byte {
	return buildELF(elfSpec{is64: true, typ: elf.ET_DYN, progs: []elf.ProgType{elf.PT_PHDR, elf.PT_INTERP, elf.PT_LOAD}})
}

func staticELF() []byte {
	return buildELF(elfSpec{is64: true, typ: elf.ET_EXEC, progs: []elf.ProgType{elf.PT_LOAD, elf.PT_NOTE}})
}

func mustMetadata(t *testing.T, interpreter string, f Fields) *Metadata {
	t.Helper()
	d, err := NewMetadata(interpreter, f)
	if err != nil {
		t.Fatalf("NewMetadata: %v", err)
	}
	return d
}

func mustStatic(t *testing.T, f Fields) *Static {
	t.Helper()
	d, err := NewStatic(f)
	if err != nil {
		t.Fatalf("NewStatic: %v", err)
	}
	return d
}

func mustScript(t *testing.T, interpreter string, args []string, f Fields) *Script {
	t.Helper()
	d, err := NewScript(interpreter, args, f)
	if err != nil {
		t.Fatalf("NewScript: %v", err)
	}
	return d
}

func mustEncode(t *testing.T, d Descriptor) []byte {
	t.Helper()
	data, err := Encode(d)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	return data
}

// sampleDescriptors covers every variant with and without optional data.
func sampleDescriptors(t *testing.T) map[string]Descriptor {
	full := Fields{
		LibraryPaths: []string{"/opt/app/lib", "/usr/lib/x86_64-linux-gnu", "/opt/app/lib"},
		Env:          map[string]string{"PATH": "/opt/app/bin", "LANG": "C.UTF-8", "EMPTY": ""},
		Resources:    []string{"sha256:beef", "sha256:abcd", "sha256:beef"},
	}
	return map[string]Descriptor{
		"metadata_empty":       mustMetadata(t, "", Fields{}),
		"metadata_interpreter": mustMetadata(t, "/lib64/ld-linux-x86-64.so.2", full),
		"static_empty":         mustStatic(t, Fields{}),
		"static_full":          mustStatic(t, full),
		"script_minimal":       mustScript(t, "/bin/sh", nil, Fields{}),
		"script_full":          mustScript(t, "/usr/bin/perl", []string{"-w", "-T"}, full),
		"script_unicode":       mustScript(t, "/opt/ünïcode/python", []string{"-c", "print('📦')"}, Fields{Env: map[string]string{"GREETING": "héllo"}}),
	}
}
