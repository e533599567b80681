// Package shellparse splits and joins interpreter command lines.
//
// It follows POSIX word splitting closely enough for the strings found in
// shebang lines (`/usr/bin/env -S python3 -u`) and for rendering interpreter
// commands back for display. Variable expansion and globbing are not
// performed.
package shellparse

import (
	"errors"
	"fmt"
	"strings"
	"unicode"
)

var (
	// ErrUnclosedQuote is returned when a quoted string is not properly closed
	ErrUnclosedQuote = errors.New("unclosed quote in command string")

	// ErrTrailingEscape is returned when a backslash appears at the end of input
	ErrTrailingEscape = errors.New("trailing escape character at end of command")
)

type quoteState int

const (
	unquoted quoteState = iota
	singleQuoted
	doubleQuoted
)

// splitter accumulates words while walking the input once.
type splitter struct {
	words   []string
	word    strings.Builder
	pending bool // a word has started, possibly empty ("")
	state   quoteState
}

func (s *splitter) flush() {
	if s.pending {
		s.words = append(s.words, s.word.String())
		s.word.Reset()
		s.pending = false
	}
}

func (s *splitter) add(r rune) {
	s.word.WriteRune(r)
	s.pending = true
}

// Split breaks a command string into words.
//
//	Split(`env -S python3 -u`)   => ["env", "-S", "python3", "-u"]
//	Split(`perl "-w" 'x y'`)     => ["perl", "-w", "x y"]
//	Split(`a\ b ""`)             => ["a b", ""]
func Split(input string) ([]string, error) {
	s := &splitter{}
	runes := []rune(input)

	for i := 0; i < len(runes); i++ {
		ch := runes[i]

		switch s.state {
		case singleQuoted:
			if ch == '\'' {
				s.state = unquoted
				continue
			}
			s.add(ch)

		case doubleQuoted:
			switch ch {
			case '"':
				s.state = unquoted
			case '\\':
				if i+1 >= len(runes) {
					return nil, ErrTrailingEscape
				}
				i++
				switch next := runes[i]; next {
				case '"', '\\', '$', '`':
					s.add(next)
				default:
					s.add('\\')
					s.add(next)
				}
			default:
				s.add(ch)
			}

		default:
			switch {
			case ch == '\\':
				if i+1 >= len(runes) {
					return nil, ErrTrailingEscape
				}
				i++
				s.add(runes[i])
			case ch == '\'':
				s.state = singleQuoted
				s.pending = true
			case ch == '"':
				s.state = doubleQuoted
				s.pending = true
			case unicode.IsSpace(ch):
				s.flush()
			default:
				s.add(ch)
			}
		}
	}

	switch s.state {
	case singleQuoted:
		return nil, fmt.Errorf("%w: unclosed single quote", ErrUnclosedQuote)
	case doubleQuoted:
		return nil, fmt.Errorf("%w: unclosed double quote", ErrUnclosedQuote)
	}

	s.flush()
	if s.words == nil {
		return []string{}, nil
	}
	return s.words, nil
}

// Join renders words as a single command line, quoting where Split would
// otherwise break them apart.
func Join(args []string) string {
	parts := make([]string, len(args))
	for i, arg := range args {
		parts[i] = Quote(arg)
	}
	return strings.Join(parts, " ")
}

// Quote returns arg unchanged when it is a plain word, otherwise a quoted form
// that Split turns back into arg.
func Quote(arg string) string {
	if arg == "" {
		return "''"
	}
	if !strings.ContainsFunc(arg, needsQuoting) {
		return arg
	}
	if !strings.Contains(arg, "'") {
		return "'" + arg + "'"
	}

	var b strings.Builder
	b.WriteByte('"')
	for _, ch := range arg {
		if ch == '"' || ch == '\\' || ch == '$' || ch == '`' {
			b.WriteByte('\\')
		}
		b.WriteRune(ch)
	}
	b.WriteByte('"')
	return b.String()
}

func needsQuoting(ch rune) bool {
	return unicode.IsSpace(ch) || strings.ContainsRune(`'"\$`+"`", ch)
}
