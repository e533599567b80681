package format

import (
	"bytes"
	"path"
	"strings"

	"github.com/provide-io/flavor/go/runpack/pkg/utils/shellparse"
)

// maxShebangLine mirrors the kernel's BINPRM_BUF_SIZE; longer interpreter
// lines are truncated by the kernel anyway.
const maxShebangLine = 256

// Shebang is the interpreter directive of a script.
type Shebang struct {
	// Interpreter is the path or, for env indirection, the command name.
	Interpreter string
	Args        []string
	// ViaEnv is set when the line went through /usr/bin/env.
	ViaEnv bool
	// LineLength is the length of the first line including its newline.
	LineLength int
}

// ParseShebang reads the interpreter directive at the start of head.
//
//	#!/bin/sh                 -> "/bin/sh"
//	#!/usr/bin/perl -w        -> "/usr/bin/perl" ["-w"]
//	#!/usr/bin/env python3    -> "python3" (ViaEnv)
//	#!/usr/bin/env -S node -e -> "node" ["-e"] (ViaEnv)
func ParseShebang(head []byte) (Shebang, bool) {
	if !bytes.HasPrefix(head, shebangMarker) {
		return Shebang{}, false
	}

	lineLen := len(head)
	line := head
	if i := bytes.IndexByte(head, '\n'); i >= 0 {
		line = head[:i]
		lineLen = i + 1
	}
	if len(line) > maxShebangLine {
		line = line[:maxShebangLine]
	}

	text := strings.TrimSpace(strings.TrimSuffix(string(line[len(shebangMarker):]), "\r"))
	if text == "" {
		return Shebang{}, false
	}

	// The kernel passes everything after the interpreter as one argument;
	// splitting on whitespace matches what users write in practice.
	fields := strings.Fields(text)
	sb := Shebang{Interpreter: fields[0], Args: fields[1:], LineLength: lineLen}

	if path.Base(sb.Interpreter) == "env" {
		return parseEnvShebang(sb)
	}
	if len(sb.Args) == 0 {
		sb.Args = nil
	}
	return sb, true
}

func parseEnvShebang(sb Shebang) (Shebang, bool) {
	args := sb.Args
	if len(args) == 0 {
		return Shebang{}, false
	}

	// env -S "prog args": the remainder is re-split with quoting rules.
	if strings.HasPrefix(args[0], "-S") {
		rest := strings.TrimPrefix(strings.Join(args, " "), "-S")
		words, err := shellparse.Split(rest)
		if err != nil || len(words) == 0 {
			return Shebang{}, false
		}
		args = words
	} else {
		for len(args) > 0 && strings.HasPrefix(args[0], "-") {
			args = args[1:]
		}
		if len(args) == 0 {
			return Shebang{}, false
		}
	}

	out := Shebang{Interpreter: args[0], ViaEnv: true, LineLength: sb.LineLength}
	if len(args) > 1 {
		out.Args = args[1:]
	}
	return out, true
}

// rewriteShebang replaces the first line of a script with "#!loader".
func rewriteShebang(script []byte, loader string) []byte {
	lineLen := len(script)
	if i := bytes.IndexByte(script, '\n'); i >= 0 {
		lineLen = i + 1
	}

	out := make([]byte, 0, len(script)-lineLen+len(loader)+3)
	out = append(out, shebangMarker...)
	out = append(out, loader...)
	out = append(out, '\n')
	return append(out, script[lineLen:]...)
}
