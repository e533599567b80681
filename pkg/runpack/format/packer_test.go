package format

import (
	"bytes"
	"errors"
	"math/rand"
	"os"
	"path/filepath"
	"testing"

	rperrors "github.com/provide-io/flavor/go/runpack/pkg/runpack/errors"
)

var testSources = map[string][]byte{
	"elf-dynamic": dynamicELF(),
	"elf-static":  staticELF(),
	"script":      []byte("#!/bin/sh\necho hello\n"),
}

func TestPackReadRoundTrip(t *testing.T) {
	logger := testLogger("packer_test")

	for srcName, source := range testSources {
		for descName, d := range sampleDescriptors(t) {
			t.Run(srcName+"/"+descName, func(t *testing.T) {
				packed, err := Pack(source, d, PackOptions{Logger: logger})
				if err != nil {
					t.Fatalf("Pack: %v", err)
				}

				ex, err := Extract(packed)
				if err != nil {
					t.Fatalf("Extract: %v", err)
				}
				if !Equal(ex.Descriptor, d) {
					t.Errorf("descriptor mismatch:\n got  %+v\n want %+v", SpecOf(ex.Descriptor), SpecOf(d))
				}
				if ex.UnpackedLen != int64(len(source)) {
					t.Errorf("UnpackedLen = %d, want %d", ex.UnpackedLen, len(source))
				}
				if !bytes.Equal(packed[:len(source)], source) {
					t.Error("original content was altered")
				}
				if got := int64(len(packed)) - ex.UnpackedLen - FooterSize; uint64(got) != ex.Footer.DescriptorLength {
					t.Errorf("layout mismatch: %d descriptor bytes, footer says %d", got, ex.Footer.DescriptorLength)
				}
			})
		}
	}
}

func TestPackDoesNotModifySource(t *testing.T) {
	source := []byte("#!/bin/sh\nexit 0\n")
	snapshot := bytes.Clone(source)

	if _, err := Pack(source, mustStatic(t, Fields{}), PackOptions{Loader: "/loader"}); err != nil {
		t.Fatalf("Pack: %v", err)
	}
	if !bytes.Equal(source, snapshot) {
		t.Errorf("source modified: %q", source)
	}
}

func TestPackDeterministic(t *testing.T) {
	build := func(order []string) Descriptor {
		env := map[string]string{}
		for _, k := range order {
			env[k] = k + "-value"
		}
		return mustMetadata(t, "/lib64/ld-linux-x86-64.so.2", Fields{
			LibraryPaths: []string{"/x", "/y"},
			Env:          env,
			Resources:    []string{"r2", "r1"},
		})
	}

	a, err := Pack(dynamicELF(), build([]string{"ONE", "TWO", "THREE"}), PackOptions{})
	if err != nil {
		t.Fatalf("Pack: %v", err)
	}
	b, err := Pack(dynamicELF(), build([]string{"THREE", "ONE", "TWO"}), PackOptions{})
	if err != nil {
		t.Fatalf("Pack: %v", err)
	}
	if !bytes.Equal(a, b) {
		t.Error("packing the same inputs produced different bytes")
	}
}

func TestPackScriptScenario(t *testing.T) {
	logger := testLogger("packer_test")

	source := []byte("#!/bin/sh\n")
	if len(source) != 10 {
		t.Fatalf("fixture is %d bytes", len(source))
	}
	d := mustScript(t, "/bin/sh", nil, Fields{
		LibraryPaths: []string{"/a", "/b"},
		Env:          map[string]string{"FOO": "bar"},
	})

	packed, err := Pack(source, d, PackOptions{Logger: logger})
	if err != nil {
		t.Fatalf("Pack: %v", err)
	}

	encoded := mustEncode(t, d)
	if want := 10 + len(encoded) + FooterSize; len(packed) != want {
		t.Errorf("packed size = %d, want %d", len(packed), want)
	}
	if !bytes.Equal(packed[:10], source) {
		t.Errorf("first 10 bytes = %q, want %q", packed[:10], source)
	}

	got, err := Read(packed)
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if !Equal(got, d) {
		t.Errorf("Read = %+v, want %+v", SpecOf(got), SpecOf(d))
	}
	if paths := got.LibraryPaths(); len(paths) != 2 || paths[0] != "/a" || paths[1] != "/b" {
		t.Errorf("LibraryPaths = %v, want [/a /b] in order", paths)
	}
	if env := got.Env(); len(env) != 1 || env["FOO"] != "bar" {
		t.Errorf("Env = %v, want FOO=bar", env)
	}
}

func TestPackAlreadyPacked(t *testing.T) {
	first := mustStatic(t, Fields{LibraryPaths: []string{"/old"}})
	second := mustStatic(t, Fields{LibraryPaths: []string{"/new"}})

	packed, err := Pack(staticELF(), first, PackOptions{})
	if err != nil {
		t.Fatalf("Pack: %v", err)
	}

	_, err = Pack(packed, second, PackOptions{})
	if !errors.Is(err, rperrors.ErrAlreadyPacked) {
		t.Fatalf("second Pack error = %v, want ErrAlreadyPacked", err)
	}
	var pe *PackError
	if !errors.As(err, &pe) || pe.Kind != PackAlreadyPacked {
		t.Errorf("error = %#v, want PackError{AlreadyPacked}", err)
	}

	repacked, err := Pack(packed, second, PackOptions{Repack: true, Logger: testLogger("packer_test")})
	if err != nil {
		t.Fatalf("Pack with Repack: %v", err)
	}
	ex, err := Extract(repacked)
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	if !Equal(ex.Descriptor, second) {
		t.Errorf("repacked descriptor = %+v, want %+v", SpecOf(ex.Descriptor), SpecOf(second))
	}
	if ex.UnpackedLen != int64(len(staticELF())) {
		t.Errorf("UnpackedLen = %d, want %d: packs were stacked", ex.UnpackedLen, len(staticELF()))
	}

	direct, err := Pack(staticELF(), second, PackOptions{})
	if err != nil {
		t.Fatalf("Pack: %v", err)
	}
	if !bytes.Equal(repacked, direct) {
		t.Error("repacking differs from packing the original content")
	}
}

func TestPackCorruptExistingPack(t *testing.T) {
	packed, err := Pack(staticELF(), mustStatic(t, Fields{LibraryPaths: []string{"/lib"}}), PackOptions{})
	if err != nil {
		t.Fatalf("Pack: %v", err)
	}
	// Damage the descriptor; the footer magic is still in place.
	packed[len(staticELF())+3] ^= 0xFF

	for _, repack := range []bool{false, true} {
		_, err := Pack(packed, mustStatic(t, Fields{}), PackOptions{Repack: repack})
		if !errors.Is(err, rperrors.ErrCorruptExistingPack) {
			t.Errorf("Repack=%v: error = %v, want ErrCorruptExistingPack", repack, err)
		}
		if !errors.Is(err, rperrors.ErrCorrupted) {
			t.Errorf("Repack=%v: error %v should carry the read failure", repack, err)
		}
	}
}

func TestPackUnsupportedClass(t *testing.T) {
	tests := []struct {
		name   string
		source []byte
	}{
		{name: "empty", source: nil},
		{name: "pe", source: []byte("MZ\x90\x00 this program cannot be run in DOS mode")},
		{name: "plain text", source: []byte("just some text\n")},
		{name: "object file", source: buildELF(elfSpec{is64: true, typ: 1})},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Pack(tt.source, mustStatic(t, Fields{}), PackOptions{})
			if !errors.Is(err, rperrors.ErrUnsupportedClass) {
				t.Fatalf("error = %v, want ErrUnsupportedClass", err)
			}
			if !errors.Is(err, rperrors.ErrUnrecognized) {
				t.Errorf("error %v should wrap the classification failure", err)
			}
		})
	}
}

func TestPackClassHint(t *testing.T) {
	logger := testLogger("packer_test")
	d := mustStatic(t, Fields{})

	tests := []struct {
		name   string
		source []byte
		hint   ExecutableClass
		ok     bool
	}{
		{name: "matching static", source: staticELF(), hint: ClassElfStatic, ok: true},
		{name: "matching dynamic", source: dynamicELF(), hint: ClassElfDynamic, ok: true},
		{name: "matching script", source: []byte("#!/bin/sh\n"), hint: ClassScript, ok: true},
		{name: "unrecognized content", source: []byte("plain text, no signature"), hint: ClassElfStatic},
		{name: "empty content", source: nil, hint: ClassScript},
		{name: "static hinted dynamic", source: staticELF(), hint: ClassElfDynamic},
		{name: "elf hinted script", source: staticELF(), hint: ClassScript},
		{name: "script hinted static", source: []byte("#!/bin/sh\n"), hint: ClassElfStatic},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			packed, err := Pack(tt.source, d, PackOptions{Class: tt.hint, Logger: logger})
			if !tt.ok {
				if !errors.Is(err, rperrors.ErrUnsupportedClass) {
					t.Fatalf("error = %v, want ErrUnsupportedClass", err)
				}
				if packed != nil {
					t.Error("packed output returned with an error")
				}
				return
			}
			if err != nil {
				t.Fatalf("Pack: %v", err)
			}
			if got, err := Read(packed); err != nil || !Equal(got, d) {
				t.Errorf("Read = %v, %v", got, err)
			}
		})
	}
}

func TestPackLoaderNeverTouchesELF(t *testing.T) {
	source := staticELF()
	original := bytes.Clone(source)
	d := mustStatic(t, Fields{})

	_, err := Pack(source, d, PackOptions{Class: ClassScript, Loader: "/l", Logger: testLogger("packer_test")})
	if !errors.Is(err, rperrors.ErrUnsupportedClass) {
		t.Fatalf("script hint on ELF error = %v, want ErrUnsupportedClass", err)
	}

	packed, err := Pack(source, d, PackOptions{Loader: "/l"})
	if err != nil {
		t.Fatalf("Pack: %v", err)
	}
	if !bytes.Equal(packed[:len(original)], original) {
		t.Error("ELF content changed by Loader option")
	}
	if !bytes.Equal(source, original) {
		t.Error("source modified")
	}
}

func TestAdjustContentWithoutShebang(t *testing.T) {
	// "#!" alone classifies as a script but names no interpreter.
	content := []byte("#!\nexit 0\n")
	got := adjustContent(content, ClassScript, "/opt/loader", testLogger("packer_test"))
	if !bytes.Equal(got, content) {
		t.Errorf("adjustContent = %q, want content unchanged", got)
	}
}

func TestPackVariantMismatchStillRoundTrips(t *testing.T) {
	d := mustStatic(t, Fields{Env: map[string]string{"A": "1"}})
	packed, err := Pack([]byte("#!/bin/sh\n"), d, PackOptions{Logger: testLogger("packer_test")})
	if err != nil {
		t.Fatalf("Pack: %v", err)
	}
	if got, err := Read(packed); err != nil || !Equal(got, d) {
		t.Errorf("Read = %v, %v", got, err)
	}
}

func TestPackScriptLoader(t *testing.T) {
	source := []byte("#!/usr/bin/env python3 -u\nprint('hi')\n")
	d := mustScript(t, "python3", []string{"-u"}, Fields{})

	packed, err := Pack(source, d, PackOptions{Loader: "/opt/runpack/loader"})
	if err != nil {
		t.Fatalf("Pack: %v", err)
	}
	ex, err := Extract(packed)
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}

	want := "#!/opt/runpack/loader\nprint('hi')\n"
	if got := string(packed[:ex.UnpackedLen]); got != want {
		t.Errorf("content = %q, want %q", got, want)
	}
}

func TestReadUnpacked(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	random := make([]byte, 4096)
	rng.Read(random)

	tests := []struct {
		name  string
		data  []byte
		small bool
	}{
		{name: "empty", data: nil, small: true},
		{name: "shorter than footer", data: []byte("#!/bin/sh\n"), small: true},
		{name: "random", data: random},
		{name: "plain elf", data: append(dynamicELF(), make([]byte, 64)...)},
		{name: "plain script", data: []byte("#!/bin/sh\n" + string(bytes.Repeat([]byte("echo padding\n"), 10)))},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Read(tt.data)
			if !errors.Is(err, rperrors.ErrNotPacked) {
				t.Fatalf("error = %v, want ErrNotPacked", err)
			}
			var re *ReadError
			if !errors.As(err, &re) || re.Kind != ReadNotPacked {
				t.Errorf("error = %#v, want ReadError{NotPacked}", err)
			}
			if tt.small && !errors.Is(err, rperrors.ErrFileTooSmall) {
				t.Errorf("error %v should carry ErrFileTooSmall", err)
			}

			stripped, err := Strip(tt.data)
			if err != nil || !bytes.Equal(stripped, tt.data) {
				t.Errorf("Strip = %d bytes, %v; want input unchanged", len(stripped), err)
			}
		})
	}
}

func TestReadDetectsSingleByteCorruption(t *testing.T) {
	source := staticELF()
	d := mustScript(t, "/bin/sh", []string{"-e"}, Fields{
		LibraryPaths: []string{"/a"},
		Env:          map[string]string{"K": "V"},
		Resources:    []string{"res"},
	})
	packed, err := Pack(source, d, PackOptions{})
	if err != nil {
		t.Fatalf("Pack: %v", err)
	}

	descStart := len(source)
	checksumStart := len(packed) - FooterSize + 20

	flip := func(i int) []byte {
		data := bytes.Clone(packed)
		data[i] ^= 0x01
		return data
	}

	for i := descStart; i < len(packed)-FooterSize; i++ {
		if _, err := Read(flip(i)); !errors.Is(err, rperrors.ErrCorrupted) {
			t.Fatalf("flip in descriptor at %d: error = %v, want ErrCorrupted", i, err)
		}
	}
	for i := checksumStart; i < len(packed); i++ {
		if _, err := Read(flip(i)); !errors.Is(err, rperrors.ErrCorrupted) {
			t.Fatalf("flip in checksum at %d: error = %v, want ErrCorrupted", i, err)
		}
	}
}

func TestReadNeverPanics(t *testing.T) {
	packed, err := Pack(dynamicELF(), sampleDescriptors(t)["metadata_interpreter"], PackOptions{})
	if err != nil {
		t.Fatalf("Pack: %v", err)
	}

	// Every truncation and every single-byte value in the footer.
	for n := 0; n <= len(packed); n++ {
		_, _ = Read(packed[:n])
	}
	for i := len(packed) - FooterSize; i < len(packed); i++ {
		for _, b := range []byte{0x00, 0x7f, 0xff} {
			data := bytes.Clone(packed)
			data[i] = b
			d, err := Read(data)
			if err == nil && d == nil {
				t.Fatalf("nil descriptor without error (byte %d = %#x)", i, b)
			}
			if err != nil {
				var re *ReadError
				if !errors.As(err, &re) {
					t.Fatalf("error %T is not a *ReadError", err)
				}
			}
		}
	}
}

func TestReadMalformed(t *testing.T) {
	// A valid footer around bytes that are not a descriptor.
	garbage := []byte{0x07, 0x00, 0x00}
	data := append(append(staticELF(), garbage...), WriteFooter(garbage)...)

	_, err := Read(data)
	if !errors.Is(err, rperrors.ErrMalformed) {
		t.Fatalf("error = %v, want ErrMalformed", err)
	}
	if !errors.Is(err, rperrors.ErrUnknownVariant) {
		t.Errorf("error %v should carry the decode failure", err)
	}
}

func TestStripPacked(t *testing.T) {
	source := []byte("#!/bin/sh\necho\n")
	packed, err := Pack(source, mustScript(t, "/bin/sh", nil, Fields{}), PackOptions{})
	if err != nil {
		t.Fatalf("Pack: %v", err)
	}
	stripped, err := Strip(packed)
	if err != nil {
		t.Fatalf("Strip: %v", err)
	}
	if !bytes.Equal(stripped, source) {
		t.Errorf("Strip = %q, want %q", stripped, source)
	}

	packed[len(packed)-1] ^= 0xFF
	if _, err := Strip(packed); !errors.Is(err, rperrors.ErrCorrupted) {
		t.Errorf("Strip(corrupt) error = %v, want ErrCorrupted", err)
	}
}

func TestFileReader(t *testing.T) {
	logger := testLogger("reader_test")
	dir := t.TempDir()

	source := append(dynamicELF(), bytes.Repeat([]byte{0x90}, 1<<16)...)
	d := sampleDescriptors(t)["metadata_interpreter"]
	packed, err := Pack(source, d, PackOptions{Logger: logger})
	if err != nil {
		t.Fatalf("Pack: %v", err)
	}

	path := filepath.Join(dir, "packed")
	if err := os.WriteFile(path, packed, 0o755); err != nil {
		t.Fatal(err)
	}

	r := NewReaderWithLogger(path, logger)
	defer func() { _ = r.Close() }()

	ex, err := r.Extract()
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	if !Equal(ex.Descriptor, d) {
		t.Errorf("Extract = %+v, want %+v", SpecOf(ex.Descriptor), SpecOf(d))
	}
	if r.Size() != int64(len(packed)) {
		t.Errorf("Size = %d, want %d", r.Size(), len(packed))
	}

	var content bytes.Buffer
	n, removed, err := r.CopyContent(&content)
	if err != nil {
		t.Fatalf("CopyContent: %v", err)
	}
	if !removed || n != int64(len(source)) {
		t.Errorf("CopyContent = %d, %v; want %d, true", n, removed, len(source))
	}
	if !bytes.Equal(content.Bytes(), source) {
		t.Error("CopyContent did not return the original content")
	}
}

func TestFileReaderCopyContent(t *testing.T) {
	dir := t.TempDir()
	source := staticELF()

	plain := filepath.Join(dir, "plain")
	if err := os.WriteFile(plain, source, 0o755); err != nil {
		t.Fatal(err)
	}

	packed, err := Pack(source, mustStatic(t, Fields{}), PackOptions{})
	if err != nil {
		t.Fatalf("Pack: %v", err)
	}
	packed[len(packed)-1] ^= 0xFF
	corrupt := filepath.Join(dir, "corrupt")
	if err := os.WriteFile(corrupt, packed, 0o755); err != nil {
		t.Fatal(err)
	}

	r := NewReader(plain)
	var content bytes.Buffer
	n, removed, err := r.CopyContent(&content)
	_ = r.Close()
	if err != nil || removed || n != int64(len(source)) {
		t.Errorf("CopyContent(plain) = %d, %v, %v; want whole file copied", n, removed, err)
	}
	if !bytes.Equal(content.Bytes(), source) {
		t.Error("CopyContent(plain) changed the content")
	}

	r = NewReader(corrupt)
	content.Reset()
	_, _, err = r.CopyContent(&content)
	_ = r.Close()
	if !errors.Is(err, rperrors.ErrCorrupted) {
		t.Errorf("CopyContent(corrupt) error = %v, want ErrCorrupted", err)
	}
	if content.Len() != 0 {
		t.Errorf("CopyContent(corrupt) wrote %d bytes", content.Len())
	}
}

func TestFileReader_Errors(t *testing.T) {
	dir := t.TempDir()

	tiny := filepath.Join(dir, "tiny")
	if err := os.WriteFile(tiny, []byte("#!"), 0o644); err != nil {
		t.Fatal(err)
	}
	empty := filepath.Join(dir, "empty")
	if err := os.WriteFile(empty, nil, 0o644); err != nil {
		t.Fatal(err)
	}
	plain := filepath.Join(dir, "plain")
	if err := os.WriteFile(plain, append(staticELF(), make([]byte, 100)...), 0o755); err != nil {
		t.Fatal(err)
	}

	for _, path := range []string{tiny, empty, plain} {
		r := NewReader(path)
		if _, err := r.Extract(); !IsNotPacked(err) {
			t.Errorf("%s: error = %v, want not packed", filepath.Base(path), err)
		}
		_ = r.Close()
	}

	missing := NewReader(filepath.Join(dir, "missing"))
	if _, err := missing.Extract(); !errors.Is(err, os.ErrNotExist) {
		t.Errorf("missing file error = %v, want ErrNotExist", err)
	}
}
