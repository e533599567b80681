package format

// Core format constants that never change.

var (
	// Magic opens the footer: 📦 followed by "RPK\x00".
	Magic = [MagicSize]byte{0xF0, 0x9F, 0x93, 0xA6, 'R', 'P', 'K', 0x00}
)

const (
	// Format versions understood by this reader. A writer always emits
	// CurrentFormatVersion.
	MinFormatVersion     = 1
	MaxFormatVersion     = 1
	CurrentFormatVersion = 1

	// Fixed sizes of the on-disk format
	MagicSize = 8

	// ChecksumSize is the width of the SHA-256 digest stored in the footer.
	ChecksumSize = 32

	// FooterSize is 52 bytes: magic, version, length, checksum.
	FooterSize = MagicSize + 4 + 8 + ChecksumSize

	// Footer field offsets
	footerVersionOffset  = MagicSize
	footerLengthOffset   = footerVersionOffset + 4
	footerChecksumOffset = footerLengthOffset + 8

	// ClassifyPrefixSize bounds how many leading bytes classification looks at.
	ClassifyPrefixSize = 4096
)
