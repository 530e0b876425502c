package forthline

import (
	"context"
	"strings"

	"github.com/jcorbin/forthline/internal/panicerr"
	"github.com/jcorbin/forthline/internal/runeio"
)

// Context is what a NativeProcedure runs against: the engine's stacks,
// memory and dictionary, plus the output of the current line.
type Context struct {
	e   *Engine
	ctx context.Context
}

// Context returns the context of the running line.
func (c *Context) Context() context.Context {
	if c.ctx == nil {
		return context.Background()
	}
	return c.ctx
}

// Stack returns the operand stack.
func (c *Context) Stack() *Stack { return c.e.stack }

// ReturnStack returns the return stack.
func (c *Context) ReturnStack() *Stack { return c.e.rstack }

// Memory returns the engine memory.
func (c *Context) Memory() *Memory { return c.e.mem }

// Dictionary returns the engine dictionary.
func (c *Context) Dictionary() *Dictionary { return c.e.dict }

// Push pushes onto the operand stack.
func (c *Context) Push(vs ...Value) { c.e.stack.Push(vs...) }

// PushInt pushes numbers onto the operand stack.
func (c *Context) PushInt(ns ...int) { c.e.stack.Push(Ints(ns...)...) }

// Pop pops the operand stack.
func (c *Context) Pop() (Value, error) { return c.e.stack.Pop() }

// PopInt pops a number from the operand stack.
func (c *Context) PopInt() (int, error) {
	v, err := c.e.stack.Pop()
	if err != nil {
		return 0, err
	}
	n, ok := v.Int()
	if !ok {
		return 0, ErrNotANumber
	}
	return n, nil
}

// PopInts pops len(ns) numbers into ns, so that ns ends up in push order:
// the former top is last.
func (c *Context) PopInts(ns ...*int) error {
	for i := len(ns) - 1; i >= 0; i-- {
		n, err := c.PopInt()
		if err != nil {
			return err
		}
		*ns[i] = n
	}
	return nil
}

// Write appends text to the line output.
func (c *Context) Write(s string) { c.e.line.out.WriteString(s) }

// Emit appends a character to the line output.
func (c *Context) Emit(r rune) {
	runeio.WriteANSIRune(&c.e.line.out, r)
}

// Logf logs through the engine's log function.
func (c *Context) Logf(mess string, args ...interface{}) {
	c.e.logf("@", mess, args...)
}

// Scheduler returns the engine's scheduler, for arming timed resumes.
func (c *Context) Scheduler() Scheduler { return c.e.scheduler }

// Suspend stops the current line after the running word returns. Once the
// engine has stopped, arm is called (outside of the engine lock) with a
// resume function that continues the line from the next step; resume only
// has an effect the first time it is called. A nil arm leaves the line
// suspended until Engine.Resume.
func (c *Context) Suspend(arm func(resume func())) {
	c.e.line.suspending = true
	c.e.line.arm = arm
}

type frameKind uint8

const (
	seqFrame frameKind = iota
	countedFrame
	indefiniteFrame
)

// frame is an entry on the executor's explicit work stack.
type frame struct {
	kind frameKind
	name string
	body []Node
	pc   int

	index, limit int
	up           bool
	stepFromTOS  bool
}

func (f *frame) inRange() bool {
	if f.up {
		return f.index < f.limit
	}
	return f.index >= f.limit
}

// step advances the top frame of the work stack by one node.
func (e *Engine) step() error {
	f := &e.line.frames[len(e.line.frames)-1]
	if f.pc < len(f.body) {
		n := f.body[f.pc]
		f.pc++
		return e.runNode(n)
	}

	switch f.kind {
	case countedFrame:
		if _, err := e.rstack.Pop(); err != nil {
			return err
		}
		inc := 1
		if f.stepFromTOS {
			var err error
			if inc, err = e.native.PopInt(); err != nil {
				return RuntimeError{Word: string(CodePlusLoop), Err: err}
			}
		}
		f.index += inc
		if f.inRange() {
			e.rstack.Push(Int(f.index))
			f.pc = 0
			return nil
		}

	case indefiniteFrame:
		flag, err := e.native.PopInt()
		if err != nil {
			return RuntimeError{Word: string(CodeUntil), Err: err}
		}
		if flag != True {
			f.pc = 0
			return nil
		}
	}

	e.line.frames = e.line.frames[:len(e.line.frames)-1]
	return nil
}

func (e *Engine) runNode(n Node) error {
	switch n := n.(type) {
	case *Action:
		return e.runWord(n.Word)

	case *Conditional:
		flag, err := e.native.PopInt()
		if err != nil {
			return RuntimeError{Word: string(CodeIf), Err: err}
		}
		body := n.Alternative
		if flag != False {
			body = n.Consequent
		}
		if len(body) > 0 {
			e.line.frames = append(e.line.frames, frame{kind: seqFrame, body: body})
		}
		return nil

	case *CountedLoop:
		var limit, start int
		if err := e.native.PopInts(&limit, &start); err != nil {
			return RuntimeError{Word: string(CodeDo), Err: err}
		}
		f := frame{
			kind:        countedFrame,
			body:        n.Body,
			index:       start,
			limit:       limit,
			up:          limit > start,
			stepFromTOS: n.StepFromStack,
		}
		if f.inRange() {
			e.rstack.Push(Int(f.index))
			e.line.frames = append(e.line.frames, f)
		}
		return nil

	case *IndefiniteLoop:
		e.line.frames = append(e.line.frames, frame{kind: indefiniteFrame, body: n.Body})
		return nil

	case *Main:
		e.line.frames = append(e.line.frames, frame{kind: seqFrame, body: n.Body})
		return nil
	}
	return RuntimeError{Err: ErrInvalidAction}
}

// runWord runs a native procedure or calls a compiled definition by pushing
// its body onto the work stack.
func (e *Engine) runWord(w Word) error {
	switch w := w.(type) {
	case *NativeProcedure:
		if err := panicerr.Catch("", func() error { return w.Fn(&e.native) }); err != nil {
			return RuntimeError{Word: w.Name, Err: err}
		}
		return nil

	case *CompiledDefinition:
		e.logf("@", "call %v", w.Name)
		e.line.frames = append(e.line.frames, frame{kind: seqFrame, name: w.Name, body: w.Body.Body})
		return nil

	case ControlCode:
		if w == CodeKey {
			e.logf("@", "key: no input device, ignored")
			return nil
		}
		return RuntimeError{Word: string(w), Err: ErrUnknownControlCode}
	}
	return RuntimeError{Err: ErrInvalidAction}
}

// callers returns the names of the compiled definitions on the work stack,
// outermost first.
func (e *Engine) callers() string {
	var names []string
	for _, f := range e.line.frames {
		if f.name != "" {
			names = append(names, f.name)
		}
	}
	return strings.Join(names, " > ")
}
