package forthline

import "strings"

// Word is a dictionary entry's behavior: a *NativeProcedure, a ControlCode
// or a *CompiledDefinition.
type Word interface {
	WordName() string
	isWord()
}

// NativeProcedure is a word implemented in Go.
type NativeProcedure struct {
	Name string
	Fn   func(c *Context) error
}

// ControlCode is a word handled by the compiler or the line interpreter.
type ControlCode string

// CompiledDefinition is a word defined by ": name ... ;".
type CompiledDefinition struct {
	Name      string
	Body      *Main
	Permanent bool
}

// Control codes.
const (
	CodeDefine    ControlCode = ":"
	CodeEnd       ControlCode = ";"
	CodeIf        ControlCode = "if"
	CodeElse      ControlCode = "else"
	CodeThen      ControlCode = "then"
	CodeDo        ControlCode = "do"
	CodeLoop      ControlCode = "loop"
	CodePlusLoop  ControlCode = "+loop"
	CodeBegin     ControlCode = "begin"
	CodeUntil     ControlCode = "until"
	CodeVariable  ControlCode = "variable"
	CodeConstant  ControlCode = "constant"
	CodeIs        ControlCode = "is"
	CodeIsNow     ControlCode = "isnow"
	CodePermanent ControlCode = "~"
	CodeKey       ControlCode = "key"
)

// ControlCodes lists every control code.
var ControlCodes = []ControlCode{
	CodeDefine, CodeEnd,
	CodeIf, CodeElse, CodeThen,
	CodeDo, CodeLoop, CodePlusLoop,
	CodeBegin, CodeUntil,
	CodeVariable, CodeConstant,
	CodeIs, CodeIsNow, CodePermanent,
	CodeKey,
}

func (np *NativeProcedure) WordName() string    { return np.Name }
func (code ControlCode) WordName() string       { return string(code) }
func (cd *CompiledDefinition) WordName() string { return cd.Name }

func (*NativeProcedure) isWord()    {}
func (ControlCode) isWord()         {}
func (*CompiledDefinition) isWord() {}

func (np *NativeProcedure) String() string { return np.Name }

func (cd *CompiledDefinition) String() string {
	var sb strings.Builder
	sb.WriteString(": ")
	sb.WriteString(cd.Name)
	if cd.Body != nil {
		formatNodes(&sb, cd.Body.Body)
	}
	sb.WriteString(" ;")
	return sb.String()
}

// pushWord returns a word that pushes v; name is how it is shown when
// decompiled.
func pushWord(name string, v Value) *NativeProcedure {
	return &NativeProcedure{Name: name, Fn: func(c *Context) error {
		c.Push(v)
		return nil
	}}
}

// printWord returns a word that writes text to the line output.
func printWord(name, text string) *NativeProcedure {
	return &NativeProcedure{Name: name, Fn: func(c *Context) error {
		c.Write(text)
		return nil
	}}
}

// literalWord keeps the literal's source text as its name, so that 'a' and
// 0x61 decompile as written.
func literalWord(text string, n int) *NativeProcedure {
	return pushWord(text, Int(n))
}
