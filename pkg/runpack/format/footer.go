package format

import (
	"bytes"
	"crypto/subtle"
	"encoding/binary"
	"fmt"
)

// Footer is the fixed-size trailer written as the last FooterSize bytes of a
// packed file. It locates the descriptor, which immediately precedes it.
type Footer struct {
	Magic            [MagicSize]byte
	FormatVersion    uint32
	DescriptorLength uint64
	Checksum         [ChecksumSize]byte // SHA-256 of the descriptor bytes
}

// NewFooter builds the footer for an encoded descriptor.
func NewFooter(descriptor []byte) *Footer {
	return &Footer{
		Magic:            Magic,
		FormatVersion:    CurrentFormatVersion,
		DescriptorLength: uint64(len(descriptor)),
		Checksum:         CalculateChecksum(descriptor),
	}
}

// WriteFooter returns the footer bytes for an encoded descriptor.
func WriteFooter(descriptor []byte) []byte {
	return NewFooter(descriptor).Pack()
}

// Pack serializes the footer to exactly FooterSize bytes.
func (f *Footer) Pack() []byte {
	buf := make([]byte, FooterSize)

	copy(buf[0:MagicSize], f.Magic[:])
	binary.LittleEndian.PutUint32(buf[footerVersionOffset:footerLengthOffset], f.FormatVersion)
	binary.LittleEndian.PutUint64(buf[footerLengthOffset:footerChecksumOffset], f.DescriptorLength)
	copy(buf[footerChecksumOffset:FooterSize], f.Checksum[:])

	return buf
}

// Unpack deserializes a footer without validating it.
func (f *Footer) Unpack(data []byte) error {
	if len(data) != FooterSize {
		return fmt.Errorf("invalid footer size: %d", len(data))
	}

	copy(f.Magic[:], data[0:MagicSize])
	f.FormatVersion = binary.LittleEndian.Uint32(data[footerVersionOffset:footerLengthOffset])
	f.DescriptorLength = binary.LittleEndian.Uint64(data[footerLengthOffset:footerChecksumOffset])
	copy(f.Checksum[:], data[footerChecksumOffset:FooterSize])

	return nil
}

// ReadFooter parses and validates the footer found in the last FooterSize
// bytes of tail. tail may be the whole file.
//
// A magic mismatch yields a FooterNotPacked error, which callers treat as the
// ordinary "plain executable" case rather than corruption.
func ReadFooter(tail []byte) (*Footer, error) {
	if len(tail) < FooterSize {
		return nil, &FooterError{
			Kind:   FooterFileTooSmall,
			Detail: fmt.Sprintf("%d bytes, footer needs %d", len(tail), FooterSize),
		}
	}
	data := tail[len(tail)-FooterSize:]

	if !bytes.Equal(data[:MagicSize], Magic[:]) {
		return nil, &FooterError{Kind: FooterNotPacked, Detail: "magic not found"}
	}

	f := &Footer{}
	if err := f.Unpack(data); err != nil {
		return nil, err
	}

	if f.FormatVersion < MinFormatVersion || f.FormatVersion > MaxFormatVersion {
		return nil, &FooterError{
			Kind:   FooterUnsupportedVersion,
			Offset: footerVersionOffset,
			Detail: fmt.Sprintf("got %d, supported %d..%d", f.FormatVersion, MinFormatVersion, MaxFormatVersion),
		}
	}

	return f, nil
}

// DescriptorRange returns the [start, end) offsets of the descriptor in a file
// of fileSize bytes that ends with this footer.
func (f *Footer) DescriptorRange(fileSize int64) (int64, int64, error) {
	avail := fileSize - FooterSize
	if avail < 0 || f.DescriptorLength > uint64(avail) {
		return 0, 0, &FooterError{
			Kind:   FooterInvalidLength,
			Offset: footerLengthOffset,
			Detail: fmt.Sprintf("descriptor length %d exceeds %d available bytes", f.DescriptorLength, max(avail, 0)),
		}
	}
	end := avail
	return end - int64(f.DescriptorLength), end, nil
}

// Verify checks the descriptor bytes against the footer checksum.
func (f *Footer) Verify(descriptor []byte) error {
	if uint64(len(descriptor)) != f.DescriptorLength {
		return &FooterError{
			Kind:   FooterInvalidLength,
			Offset: footerLengthOffset,
			Detail: fmt.Sprintf("have %d descriptor bytes, footer declares %d", len(descriptor), f.DescriptorLength),
		}
	}
	actual := CalculateChecksum(descriptor)
	if subtle.ConstantTimeCompare(actual[:], f.Checksum[:]) != 1 {
		return &FooterError{
			Kind:     FooterChecksumMismatch,
			Offset:   footerChecksumOffset,
			Expected: bytes.Clone(f.Checksum[:]),
			Actual:   actual[:],
		}
	}
	return nil
}
