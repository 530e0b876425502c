package forthline

import (
	"strconv"
	"strings"
)

// Boolean cell values.
const (
	True  = -1
	False = 0
)

// Value is a stack value: either a number or a string.
type Value struct {
	num   int
	str   string
	isStr bool
}

// Int returns a numeric Value.
func Int(n int) Value { return Value{num: n} }

// Bool returns True or False as a numeric Value.
func Bool(b bool) Value {
	if b {
		return Int(True)
	}
	return Int(False)
}

// Str returns a string Value.
func Str(s string) Value { return Value{str: s, isStr: true} }

// IsString reports whether v holds a string.
func (v Value) IsString() bool { return v.isStr }

// Int returns the number held by v; strings have no numeric value and
// ok is false for them.
func (v Value) Int() (n int, ok bool) { return v.num, !v.isStr }

// Text returns the string held by v, or the decimal form of a number.
func (v Value) Text() string {
	if v.isStr {
		return v.str
	}
	return strconv.Itoa(v.num)
}

func (v Value) String() string {
	if v.isStr {
		return strconv.Quote(v.str)
	}
	return strconv.Itoa(v.num)
}

// Ints converts numbers into Values.
func Ints(ns ...int) []Value {
	vs := make([]Value, len(ns))
	for i, n := range ns {
		vs[i] = Int(n)
	}
	return vs
}

// Stack is a last-in-first-out store of Values.
type Stack struct {
	name   string
	values []Value
}

// NewStack returns an empty stack; name is used in error messages.
func NewStack(name string) *Stack {
	return &Stack{name: name}
}

// Name returns the stack's name.
func (s *Stack) Name() string { return s.name }

// Len returns the stack depth.
func (s *Stack) Len() int { return len(s.values) }

// Push pushes values in order, so the last one becomes the top.
func (s *Stack) Push(vs ...Value) {
	s.values = append(s.values, vs...)
}

// Pop removes and returns the top value.
func (s *Stack) Pop() (Value, error) {
	i := len(s.values) - 1
	if i < 0 {
		return Value{}, StackError{Stack: s.name, Err: ErrStackUnderflow}
	}
	v := s.values[i]
	s.values = s.values[:i]
	return v, nil
}

// Peek returns the value at offset from the top without removing it; offset 1
// is the top.
func (s *Stack) Peek(offset int) (Value, error) {
	if offset < 1 {
		offset = 1
	}
	i := len(s.values) - offset
	if i < 0 {
		return Value{}, StackError{Stack: s.name, Err: ErrStackUnderflow}
	}
	return s.values[i], nil
}

// Args pops up to count values, returning exactly count of them: result[0]
// is the former top. Positions that underflow are filled from the matching
// default, or zero when there is none. Values popped before an underflow
// are not restored.
func (s *Stack) Args(count int, defaults ...Value) []Value {
	if count < 0 {
		count = 0
	}
	args := make([]Value, count)
	for i := range args {
		v, err := s.Pop()
		if err != nil {
			for ; i < count; i++ {
				if i < len(defaults) {
					args[i] = defaults[i]
				} else {
					args[i] = Int(0)
				}
			}
			break
		}
		args[i] = v
	}
	return args
}

// Values returns a copy of the stack, bottom first.
func (s *Stack) Values() []Value {
	return append([]Value(nil), s.values...)
}

// Truncate drops values above depth n.
func (s *Stack) Truncate(n int) {
	if n < 0 {
		n = 0
	}
	if n < len(s.values) {
		s.values = s.values[:n]
	}
}

// Clear empties the stack.
func (s *Stack) Clear() { s.values = s.values[:0] }

func (s *Stack) String() string {
	var sb strings.Builder
	sb.WriteByte('[')
	for i, v := range s.values {
		if i > 0 {
			sb.WriteByte(' ')
		}
		sb.WriteString(v.String())
	}
	sb.WriteByte(']')
	return sb.String()
}
