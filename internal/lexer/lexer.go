// Package lexer splits one line of source text into word tokens.
//
// Words are maximal runs of non-whitespace. Some forms are recognized ahead
// of plain words:
//
//	." text"   string literal that prints when run
//	s" text"   string literal that is pushed
//	( text )   comment, discarded
//	\ text     comment to the end of the line
//
// Each marker must be followed by a space to count; "(foo" is an ordinary
// word.
package lexer

import (
	"errors"
	"strings"
	"unicode"
	"unicode/utf8"
)

// ErrUnterminatedString is reported when a string literal has no closing
// quote before the end of the line.
var ErrUnterminatedString = errors.New("unterminated string literal")

// Token is one lexed word or string literal.
type Token struct {
	Value    string
	IsString bool

	// Print is set for ." literals.
	Print bool
}

func (tok Token) String() string {
	if !tok.IsString {
		return tok.Value
	}
	if tok.Print {
		return `." ` + tok.Value + `"`
	}
	return `s" ` + tok.Value + `"`
}

// Lexer produces tokens lazily from a single line.
// Lookahead tokens are buffered, and consumed tokens are retained so that the
// last one may be pushed back.
type Lexer struct {
	src string
	pos int
	err error

	ahead    []Token
	consumed []Token
}

// New returns a Lexer over line.
func New(line string) *Lexer {
	return &Lexer{src: line}
}

// Err returns any error that stopped lexing.
func (lx *Lexer) Err() error { return lx.err }

// Consumed returns every token consumed so far, in source order.
func (lx *Lexer) Consumed() []Token { return lx.consumed }

// Next consumes and returns the next token; ok is false at end of line or
// after an error.
func (lx *Lexer) Next() (tok Token, ok bool) {
	if len(lx.ahead) > 0 {
		tok = lx.ahead[0]
		lx.ahead = lx.ahead[1:]
	} else if tok, ok = lx.scan(); !ok {
		return Token{}, false
	}
	lx.consumed = append(lx.consumed, tok)
	return tok, true
}

// Peek returns the n-th upcoming token (1 is the next one) without
// consuming anything.
func (lx *Lexer) Peek(n int) (Token, bool) {
	if n < 1 {
		n = 1
	}
	for len(lx.ahead) < n {
		tok, ok := lx.scan()
		if !ok {
			return Token{}, false
		}
		lx.ahead = append(lx.ahead, tok)
	}
	return lx.ahead[n-1], true
}

// Previous un-consumes the most recently consumed token, so that the next
// call to Next returns it again.
func (lx *Lexer) Previous() (Token, bool) {
	i := len(lx.consumed) - 1
	if i < 0 {
		return Token{}, false
	}
	tok := lx.consumed[i]
	lx.consumed = lx.consumed[:i]
	lx.ahead = append([]Token{tok}, lx.ahead...)
	return tok, true
}

// Tokens lexes an entire line.
func Tokens(line string) ([]Token, error) {
	lx := New(line)
	for {
		if _, ok := lx.Next(); !ok {
			return lx.Consumed(), lx.Err()
		}
	}
}

func (lx *Lexer) scan() (Token, bool) {
	for lx.err == nil {
		lx.skipSpace()
		if lx.pos >= len(lx.src) {
			return Token{}, false
		}
		rest := lx.src[lx.pos:]

		switch {
		case hasMarker(rest, `."`), hasMarker(rest, `s"`), hasMarker(rest, `S"`):
			body := rest[3:]
			end := strings.IndexByte(body, '"')
			if end < 0 {
				lx.pos = len(lx.src)
				lx.err = ErrUnterminatedString
				return Token{}, false
			}
			lx.pos += 3 + end + 1
			return Token{Value: body[:end], IsString: true, Print: rest[0] == '.'}, true

		case hasMarker(rest, "("):
			if end := strings.IndexByte(rest, ')'); end < 0 {
				lx.pos = len(lx.src)
			} else {
				lx.pos += end + 1
			}

		case hasMarker(rest, `\`), rest == `\`:
			lx.pos = len(lx.src)

		default:
			end := strings.IndexFunc(rest, unicode.IsSpace)
			if end < 0 {
				end = len(rest)
			}
			lx.pos += end
			return Token{Value: rest[:end]}, true
		}
	}
	return Token{}, false
}

func (lx *Lexer) skipSpace() {
	for lx.pos < len(lx.src) {
		r, n := utf8.DecodeRuneInString(lx.src[lx.pos:])
		if !unicode.IsSpace(r) {
			return
		}
		lx.pos += n
	}
}

// hasMarker reports whether s starts with marker followed by a space or tab.
func hasMarker(s, marker string) bool {
	if !strings.HasPrefix(s, marker) || len(s) <= len(marker) {
		return false
	}
	c := s[len(marker)]
	return c == ' ' || c == '\t'
}
