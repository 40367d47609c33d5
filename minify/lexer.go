package minify

import (
	"strings"
	"unicode"
)

// Lexer is the strict alternative to Line. It tracks Lua short strings, long
// brackets ([[ ]], [==[ ]==]) and comments so that "--" inside a literal is kept
// and long literals are preserved byte for byte, including their newlines.
// A Lexer carries state across the lines of one source; use one per source.
//
// Short strings are assumed to end on their line ("\z" and backslash-newline
// continuations are not followed).
type Lexer struct {
	level   int // level of the open long bracket, -1 when outside
	comment bool
	closer  string
}

func NewLexer() *Lexer {
	return &Lexer{level: -1}
}

// Reset drops any open long bracket state.
func (l *Lexer) Reset() {
	l.level = -1
	l.comment = false
	l.closer = ""
}

// InLong reports whether the lexer is inside a long string or long comment.
func (l *Lexer) InLong() bool {
	return l.level >= 0
}

// Line has the same contract as Line in Minify mode, with comment detection done
// lexically. Lines ending inside a long string keep their terminator; any other
// emitted line ends with a single space, terminator or not.
func (l *Lexer) Line(line string) (string, bool) {
	body, eol := SplitTerminator(line)
	var out strings.Builder
	out.Grow(len(body) + 1)
	for i := 0; i < len(body); {
		if l.level >= 0 {
			end := strings.Index(body[i:], l.closer)
			if end < 0 {
				if !l.comment {
					out.WriteString(body[i:])
				}
				break
			}
			n := end + len(l.closer)
			if l.comment {
				out.WriteByte(' ') // keep the tokens around the comment apart
			} else {
				out.WriteString(body[i : i+n])
			}
			i += n
			l.Reset()
			continue
		}
		c := body[i]
		switch {
		case c == '\'' || c == '"':
			j := i + 1
			for j < len(body) && body[j] != c {
				if body[j] == '\\' {
					j++
				}
				j++
			}
			if j < len(body) {
				j++
			} else {
				j = len(body)
			}
			out.WriteString(body[i:j])
			i = j
		case strings.HasPrefix(body[i:], CommentIntroducer):
			if lvl, n := openBracket(body[i+2:]); n > 0 {
				l.open(lvl, true)
				i += 2 + n
				continue
			}
			i = len(body)
		case c == '[':
			if lvl, n := openBracket(body[i:]); n > 0 {
				out.WriteString(body[i : i+n])
				l.open(lvl, false)
				i += n
				continue
			}
			out.WriteByte(c)
			i++
		default:
			out.WriteByte(c)
			i++
		}
	}
	code := out.String()
	if l.level >= 0 && !l.comment {
		if code+eol == "" {
			return "", false
		}
		return code + eol, true
	}
	code = strings.TrimRightFunc(code, unicode.IsSpace)
	if strings.TrimSpace(code) == "" {
		return "", false
	}
	return code + " ", true
}

func (l *Lexer) open(level int, comment bool) {
	l.level = level
	l.comment = comment
	l.closer = "]" + strings.Repeat("=", level) + "]"
}

// openBracket recognizes "[", zero or more "=", "[" at the start of s and returns
// the level and the bracket length (0 when s does not start with one).
func openBracket(s string) (level, n int) {
	if len(s) < 2 || s[0] != '[' {
		return 0, 0
	}
	i := 1
	for i < len(s) && s[i] == '=' {
		i++
	}
	if i < len(s) && s[i] == '[' {
		return i - 1, i + 1
	}
	return 0, 0
}
