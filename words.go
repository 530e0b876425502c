package forthline

import (
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/jcorbin/forthline/internal/runeio"
)

// parseLiteral parses a numeric or character literal: an integer in any Go
// base syntax, a finite float (truncated), or a character like 'a', <ESC>
// or ^[.
func parseLiteral(s string) (int, bool) {
	if n, err := strconv.ParseInt(s, 0, 0); err == nil {
		return int(n), true
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil && !math.IsInf(f, 0) && !math.IsNaN(f) {
		return int(f), true
	}
	if r, err := runeio.UnquoteRune(s); err == nil {
		return int(r), true
	}
	return 0, false
}

func native(name string, fn func(c *Context) error) *NativeProcedure {
	return &NativeProcedure{Name: name, Fn: fn}
}

func binop(name string, op func(a, b int) (int, error)) *NativeProcedure {
	return native(name, func(c *Context) error {
		var a, b int
		if err := c.PopInts(&a, &b); err != nil {
			return err
		}
		n, err := op(a, b)
		if err != nil {
			return err
		}
		c.PushInt(n)
		return nil
	})
}

func arith(name string, op func(a, b int) int) *NativeProcedure {
	return binop(name, func(a, b int) (int, error) { return op(a, b), nil })
}

func compare(name string, op func(a, b int) bool) *NativeProcedure {
	return binop(name, func(a, b int) (int, error) {
		if op(a, b) {
			return True, nil
		}
		return False, nil
	})
}

func shift(name string, op func(n int, by uint) int) *NativeProcedure {
	return binop(name, func(a, b int) (int, error) {
		if b < 0 {
			return 0, ErrInvalidArgument
		}
		return op(a, uint(b)), nil
	})
}

func divide(name string, op func(a, b int) int) *NativeProcedure {
	return binop(name, func(a, b int) (int, error) {
		if b == 0 {
			return 0, ErrDivisionByZero
		}
		return op(a, b), nil
	})
}

// stackWord rearranges the top n values of the data stack; perm lists the
// resulting values, bottom first, as indices into the popped values (also
// bottom first).
func stackWord(name string, n int, perm ...int) *NativeProcedure {
	return native(name, func(c *Context) error {
		vs := make([]Value, n)
		for i := n - 1; i >= 0; i-- {
			v, err := c.Pop()
			if err != nil {
				return err
			}
			vs[i] = v
		}
		for _, i := range perm {
			c.Push(vs[i])
		}
		return nil
	})
}

func builtinWords() []*NativeProcedure {
	return []*NativeProcedure{
		arith("+", func(a, b int) int { return a + b }),
		arith("-", func(a, b int) int { return a - b }),
		arith("*", func(a, b int) int { return a * b }),
		divide("/", func(a, b int) int { return a / b }),
		divide("mod", func(a, b int) int { return a % b }),
		native("/mod", func(c *Context) error {
			var a, b int
			if err := c.PopInts(&a, &b); err != nil {
				return err
			}
			if b == 0 {
				return ErrDivisionByZero
			}
			c.PushInt(a%b, a/b)
			return nil
		}),

		compare("=", func(a, b int) bool { return a == b }),
		compare("<>", func(a, b int) bool { return a != b }),
		compare("<", func(a, b int) bool { return a < b }),
		compare(">", func(a, b int) bool { return a > b }),

		arith("and", func(a, b int) int { return a & b }),
		arith("or", func(a, b int) int { return a | b }),
		arith("xor", func(a, b int) int { return a ^ b }),
		native("invert", func(c *Context) error {
			n, err := c.PopInt()
			if err != nil {
				return err
			}
			c.PushInt(^n)
			return nil
		}),
		shift("lshift", func(n int, by uint) int { return n << by }),
		shift("rshift", func(n int, by uint) int { return int(uint(n) >> by) }),

		stackWord("dup", 1, 0, 0),
		stackWord("drop", 1),
		stackWord("swap", 2, 1, 0),
		stackWord("over", 2, 0, 1, 0),
		stackWord("rot", 3, 1, 2, 0),
		stackWord("nip", 2, 1),
		stackWord("tuck", 2, 1, 0, 1),
		native("pick", func(c *Context) error {
			n, err := c.PopInt()
			if err != nil {
				return err
			}
			if n < 0 {
				return ErrInvalidArgument
			}
			v, err := c.Stack().Peek(n + 1)
			if err != nil {
				return err
			}
			c.Push(v)
			return nil
		}),
		native("depth", func(c *Context) error {
			c.PushInt(c.Stack().Len())
			return nil
		}),

		native(".", func(c *Context) error {
			v, err := c.Pop()
			if err != nil {
				return err
			}
			c.Write(v.Text())
			c.Write(" ")
			return nil
		}),
		native(".s", func(c *Context) error {
			vs := c.Stack().Values()
			c.Write("<" + strconv.Itoa(len(vs)) + "> ")
			for _, v := range vs {
				c.Write(v.String())
				c.Write(" ")
			}
			return nil
		}),
		native("emit", func(c *Context) error {
			n, err := c.PopInt()
			if err != nil {
				return err
			}
			c.Emit(rune(n))
			return nil
		}),
		native("type", func(c *Context) error {
			v, err := c.Pop()
			if err != nil {
				return err
			}
			c.Write(v.Text())
			return nil
		}),
		native("words", func(c *Context) error {
			c.Write(strings.Join(c.Dictionary().Names(), " "))
			c.Write(" ")
			return nil
		}),

		native("@", func(c *Context) error {
			addr, err := c.PopInt()
			if err != nil {
				return err
			}
			n, err := c.Memory().GetValue(addr, c.e.devices.cellSize(addr))
			if err != nil {
				return err
			}
			c.PushInt(n)
			return nil
		}),
		native("!", func(c *Context) error {
			var n, addr int
			if err := c.PopInts(&n, &addr); err != nil {
				return err
			}
			if err := c.e.devices.CheckWrite(addr); err != nil {
				return err
			}
			return c.Memory().SetValue(addr, n, c.e.devices.cellSize(addr))
		}),
		native("allot", func(c *Context) error {
			n, err := c.PopInt()
			if err != nil {
				return err
			}
			_, err = c.Memory().Allot(n)
			return err
		}),
		native("here", func(c *Context) error {
			c.PushInt(c.Memory().Here())
			return nil
		}),

		native("i", func(c *Context) error { return pushReturn(c, 1) }),
		native("j", func(c *Context) error { return pushReturn(c, 2) }),
		native(">r", func(c *Context) error {
			v, err := c.Pop()
			if err != nil {
				return err
			}
			c.ReturnStack().Push(v)
			return nil
		}),
		native("r>", func(c *Context) error {
			v, err := c.ReturnStack().Pop()
			if err != nil {
				return err
			}
			c.Push(v)
			return nil
		}),
		native("r@", func(c *Context) error { return pushReturn(c, 1) }),

		native("ms", func(c *Context) error {
			n, err := c.PopInt()
			if err != nil {
				return err
			}
			if n < 0 {
				return ErrInvalidArgument
			}
			d := time.Duration(n) * time.Millisecond
			sched := c.Scheduler()
			c.Suspend(func(resume func()) { sched.AfterFunc(d, resume) })
			return nil
		}),

		pushWord("true", Int(True)),
		pushWord("false", Int(False)),
	}
}

func pushReturn(c *Context, offset int) error {
	v, err := c.ReturnStack().Peek(offset)
	if err != nil {
		return err
	}
	c.Push(v)
	return nil
}

// stdlib is the standard library source, read line by line at startup.
var stdlib = []string{
	`: cells 1 * ;`,
	`: cr 10 emit ;`,
	`: space 32 emit ;`,
	`: spaces dup 0 > if 0 do space loop else drop then ;`,
	`: 0= 0 = ;`,
	`: 0< 0 < ;`,
	`: 0> 0 > ;`,
	`: ?dup dup if dup then ;`,
	`: 2dup over over ;`,
	`: 1+ 1 + ;`,
	`: 1- 1 - ;`,
	`: 2+ 2 + ;`,
	`: 2- 2 - ;`,
	`: 2* 2 * ;`,
	`: 2/ 2 / ;`,
	`: negate -1 * ;`,
	`: abs dup 0< if negate then ;`,
	`: min 2dup < if drop else swap drop then ;`,
	`: max 2dup < if swap drop else drop then ;`,
	`: ? @ . ;`,
	`: +! dup @ rot + swap ! ;`,
	`variable graphics 575 cells allot`,
	`variable last-key`,
}
