// Package permissions parses the file modes given for packed outputs.
package permissions

import (
	"fmt"
	"io/fs"
	"strconv"
	"strings"
)

// Default permission constants
const (
	// DefaultExecutablePerms is applied to packed programs unless a mode is given.
	DefaultExecutablePerms fs.FileMode = 0o755

	maxPerms = 0o7777
)

// ParseOctalString parses an octal permission string.
// Handles formats like "755", "0755", "0o755". An empty string yields def.
func ParseOctalString(s string, def fs.FileMode) (fs.FileMode, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return def, nil
	}

	digits := strings.TrimPrefix(strings.TrimPrefix(s, "0o"), "0O")
	val, err := strconv.ParseUint(digits, 8, 32)
	if err != nil {
		return def, fmt.Errorf("invalid permission string %q: %w", s, err)
	}
	if val > maxPerms {
		return def, fmt.Errorf("invalid permission string %q: exceeds %o", s, maxPerms)
	}

	return toFileMode(uint32(val)), nil
}

// toFileMode maps Unix setuid/setgid/sticky bits onto their fs.FileMode flags.
func toFileMode(val uint32) fs.FileMode {
	mode := fs.FileMode(val & 0o777)
	if val&0o4000 != 0 {
		mode |= fs.ModeSetuid
	}
	if val&0o2000 != 0 {
		mode |= fs.ModeSetgid
	}
	if val&0o1000 != 0 {
		mode |= fs.ModeSticky
	}
	return mode
}

// FormatOctal formats a permission value as an octal string
func FormatOctal(mode fs.FileMode) string {
	val := uint32(mode.Perm())
	if mode&fs.ModeSetuid != 0 {
		val |= 0o4000
	}
	if mode&fs.ModeSetgid != 0 {
		val |= 0o2000
	}
	if mode&fs.ModeSticky != 0 {
		val |= 0o1000
	}
	return fmt.Sprintf("0%o", val)
}

// IsExecutable reports whether the owner execute bit is set.
func IsExecutable(mode fs.FileMode) bool {
	return mode&0o100 != 0
}
