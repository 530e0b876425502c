// Package runeio parses character literals and writes runes to terminal
// bound output without emitting raw C1 control bytes.
package runeio

import (
	"errors"
	"io"
	"strconv"
	"strings"
	"sync"
)

// Mnemonics for the C0 (0x00-0x1f) and C1 (0x80-0x9f) control ranges,
// indexed by offset into the range.
var (
	c0Names = strings.Fields(`NUL SOH STX ETX EOT ENQ ACK BEL BS HT NL VT NP CR SO SI
		DLE DC1 DC2 DC3 DC4 NAK SYN ETB CAN EM SUB ESC FS GS RS US`)
	c1Names = strings.Fields(`PAD HOP BPH NBH IND NEL SSA ESA HTS HTJ VTS PLD PLU RI SS2 SS3
		DCS PU1 PU2 STS CCH MW SPA EPA SOS SGCI SCI CSI ST OSC PM APC`)
)

var (
	literalsOnce sync.Once
	literals     map[string]rune
)

// controlLiterals maps "<ESC>", "<esc>" and "^[" style tokens to runes.
func controlLiterals() map[string]rune {
	literalsOnce.Do(func() {
		literals = make(map[string]rune, 3*(len(c0Names)+len(c1Names)+2))
		add := func(name string, r rune) {
			literals["<"+strings.ToUpper(name)+">"] = r
			literals["<"+strings.ToLower(name)+">"] = r
			if caret := CaretForm(r); caret != "" {
				literals[caret] = r
			}
		}
		for i, name := range c0Names {
			add(name, rune(i))
		}
		for i, name := range c1Names {
			add(name, rune(0x80+i))
		}
		add("SP", ' ')
		add("DEL", 0x7f)
	})
	return literals
}

// CaretForm returns the ^-escaped printable form of a control rune, or ""
// for anything else.
func CaretForm(r rune) string {
	switch {
	case r < 0x20 || r == 0x7f:
		return "^" + string(r^0x40)
	case 0x80 <= r && r <= 0x9f:
		return "^[" + string(r^0xc0)
	}
	return ""
}

var errInvalidRune = errors.New(`rune literal must be "^X" "<NAME>" or 'X'`)

// UnquoteRune parses a character literal token: a quoted rune like 'a' or
// '\n', a mnemonic like <ESC>, or a caret-form like ^[.
func UnquoteRune(token string) (rune, error) {
	if r, defined := controlLiterals()[token]; defined {
		return r, nil
	}
	if len(token) < 3 || token[0] != '\'' || token[len(token)-1] != '\'' {
		return 0, errInvalidRune
	}
	value, _, tail, err := strconv.UnquoteChar(token[1:], '\'')
	if err != nil {
		return 0, err
	}
	if tail != "'" {
		return 0, errInvalidRune
	}
	return value, nil
}

// WriteANSIRune writes r to w. ASCII is written as is and NEL as "\r\n".
// Other C1 controls take their 7-bit escape form, so CSI (0x9b) becomes
// "\x1b[". Everything else is written as utf8.
func WriteANSIRune(w io.Writer, r rune) (int, error) {
	switch {
	case r < 0x80:
		if bw, ok := w.(io.ByteWriter); ok {
			return 1, bw.WriteByte(byte(r))
		}
		return w.Write([]byte{byte(r)})
	case r == 0x85:
		return io.WriteString(w, "\r\n")
	case r <= 0x9f:
		return w.Write([]byte{0x1b, byte(r ^ 0xc0)})
	}
	return io.WriteString(w, string(r))
}

// WriteANSIString writes each rune of s with WriteANSIRune.
func WriteANSIString(w io.Writer, s string) (n int, err error) {
	for _, r := range s {
		m, err := WriteANSIRune(w, r)
		n += m
		if err != nil {
			return n, err
		}
	}
	return n, nil
}
