// Package minify implements the line filter applied to Lua sources while bundling.
//
// The default filter is a heuristic: any line containing "--" is dropped, blank
// lines are dropped, "[[" and "]]" are deleted and the line terminator becomes a
// single space so consecutive lines join. It does not know about string literals,
// so a "--" inside a string drops the whole line. Use Lexer for a filter that does.
package minify

import (
	"errors"
	"fmt"
	"strings"
)

const (
	CommentIntroducer = "--"
	LongOpen          = "[["
	LongClose         = "]]"
)

// Mode selects pass-through or minification for a whole run.
type Mode int

const (
	Raw Mode = iota
	Minify
)

func (m Mode) String() string {
	switch m {
	case Raw:
		return "raw"
	case Minify:
		return "minify"
	default:
		return fmt.Sprintf("Mode(%d)", int(m))
	}
}

// ErrBadMode is returned by ParseMode for tokens that are neither truthy nor falsy.
var ErrBadMode = errors.New("invalid mode")

// ParseMode maps the command line mode token to a Mode.
func ParseMode(token string) (Mode, error) {
	switch strings.ToLower(strings.TrimSpace(token)) {
	case "1", "t", "true", "y", "yes", "on", "minify":
		return Minify, nil
	case "0", "f", "false", "n", "no", "off", "raw":
		return Raw, nil
	}
	return Raw, fmt.Errorf("%w %q (want true/false)", ErrBadMode, token)
}

// Line transforms one physical line, terminator included. The second result is
// false when the line is suppressed and nothing must be written.
func Line(line string, mode Mode) (string, bool) {
	if mode != Minify {
		return line, true
	}
	if strings.Contains(line, CommentIntroducer) {
		return "", false
	}
	if strings.TrimSpace(line) == "" {
		return "", false
	}
	// The end of a source counts as a terminator too, so the first line of the
	// next source never runs into this one.
	body, _ := SplitTerminator(line)
	body = strings.ReplaceAll(body, LongOpen, "")
	body = strings.ReplaceAll(body, LongClose, "")
	return body + " ", true
}

// SplitTerminator splits a trailing "\n" or "\r\n" off line.
func SplitTerminator(line string) (body, eol string) {
	if strings.HasSuffix(line, "\r\n") {
		return line[:len(line)-2], "\r\n"
	}
	if strings.HasSuffix(line, "\n") {
		return line[:len(line)-1], "\n"
	}
	return line, ""
}

// Filter is a per-source line filter, see Line and Lexer.Line.
type Filter func(line string) (string, bool)

// NewFilter returns the filter to use for one source. Strict only applies to
// Minify; a fresh Lexer is created on each call so no state crosses sources.
func NewFilter(mode Mode, strict bool) Filter {
	if mode == Minify && strict {
		return NewLexer().Line
	}
	return func(line string) (string, bool) {
		return Line(line, mode)
	}
}
