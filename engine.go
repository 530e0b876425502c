package forthline

import (
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"
	"sync"

	"github.com/jcorbin/forthline/internal/lexer"
)

// Token is a lexed word or string literal.
type Token = lexer.Token

// State is the line interpreter state.
type State int

// Engine states.
const (
	Idle State = iota
	Compiling
	Executing
	Suspended
	LineDone
)

func (st State) String() string {
	switch st {
	case Idle:
		return "idle"
	case Compiling:
		return "compiling"
	case Executing:
		return "executing"
	case Suspended:
		return "suspended"
	case LineDone:
		return "done"
	}
	return "State(" + strconv.Itoa(int(st)) + ")"
}

// Result describes a line after it completed, failed or suspended.
type Result struct {
	Line       string
	Output     string
	Stack      []Value
	Tokens     []Token
	Memory     []Binding
	Dictionary []string
	Err        error
	Suspended  bool
	Compiling  bool
}

// Engine interprets source lines against one dictionary, memory and pair of
// stacks. It is safe for use from multiple goroutines; lines are processed
// one at a time.
type Engine struct {
	mu sync.Mutex
	logging

	scheduler   Scheduler
	memCapacity int
	stepLimit   int
	onResult    func(Result)

	dict    *Dictionary
	mem     *Memory
	stack   *Stack
	rstack  *Stack
	devices *DeviceManager
	native  Context

	state         State
	line          lineState
	def           *pendingDefinition
	permanentNext bool
	loading       bool
	last          Result
}

type pendingDefinition struct {
	name      string
	body      []Word
	permanent bool
}

type lineState struct {
	ctx    context.Context
	text   string
	lex    *lexer.Lexer
	out    strings.Builder
	frames []frame
	rdepth int
	steps  int

	suspending bool
	arm        func(resume func())
	gen        uint64
	done       chan struct{}
}

// New returns an Engine loaded with the control codes, native words and
// standard library.
func New(opts ...Option) *Engine {
	e := &Engine{}
	defaultOptions.apply(e)
	Options(opts...).apply(e)

	e.dict = NewDictionary()
	e.dict.logfn = func(mess string, args ...interface{}) { e.logf("~", mess, args...) }
	e.mem = NewMemory(e.memCapacity)
	e.stack = NewStack("data")
	e.rstack = NewStack("return")
	e.devices = NewDeviceManager(e.mem)
	e.native = Context{e: e}

	e.loadWords()
	return e
}

func (e *Engine) loadWords() {
	for _, code := range ControlCodes {
		e.dict.Add(string(code), code, true)
	}
	for _, np := range builtinWords() {
		e.dict.Add(np.Name, np, true)
	}

	e.loading = true
	defer func() { e.loading = false }()
	for _, line := range stdlib {
		if r := e.readLine(context.Background(), line); r.Err != nil || r.Suspended {
			panic(fmt.Sprintf("loading standard library line %q: %v", line, r.Err))
		}
	}
	e.state = Idle
	e.last = Result{}
}

// ReadLine processes one line until it completes, fails or suspends. While
// a line is suspended, ReadLine returns a Result with ErrSuspended. The
// given context also governs any later resumption of the line.
func (e *Engine) ReadLine(ctx context.Context, text string) Result {
	e.mu.Lock()
	if e.state == Suspended {
		e.mu.Unlock()
		return Result{Line: text, Err: ErrSuspended, Suspended: true}
	}
	r := e.readLine(ctx, text)
	arm, gen := e.takeArm()
	e.mu.Unlock()

	e.armResume(arm, gen)
	return r
}

// ReadLines processes lines in order, waiting out any suspension before
// moving to the next line.
func (e *Engine) ReadLines(ctx context.Context, lines []string) []Result {
	results := make([]Result, 0, len(lines))
	for _, line := range lines {
		r := e.ReadLine(ctx, line)
		if r.Suspended && r.Err == nil {
			var err error
			if r, err = e.Wait(ctx); err != nil {
				r.Line, r.Err, r.Suspended = line, err, true
				results = append(results, r)
				break
			}
		}
		results = append(results, r)
	}
	return results
}

// Resume continues a suspended line immediately, regardless of what it was
// waiting for.
func (e *Engine) Resume(ctx context.Context) (Result, error) {
	e.mu.Lock()
	if e.state != Suspended {
		e.mu.Unlock()
		return Result{}, ErrNotSuspended
	}
	if ctx != nil {
		e.line.ctx = ctx
	}
	r := e.continueLine()
	arm, gen := e.takeArm()
	e.mu.Unlock()

	e.armResume(arm, gen)
	return r, nil
}

// Wait blocks until no line is suspended, returning the last line Result.
func (e *Engine) Wait(ctx context.Context) (Result, error) {
	for {
		e.mu.Lock()
		if e.state != Suspended {
			r := e.last
			e.mu.Unlock()
			return r, nil
		}
		done := e.line.done
		e.mu.Unlock()

		select {
		case <-done:
		case <-ctx.Done():
			return Result{}, ctx.Err()
		}
	}
}

// Suspended reports whether a line is waiting to be resumed.
func (e *Engine) Suspended() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state == Suspended
}

// State returns the interpreter state.
func (e *Engine) State() State {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state
}

// Stack returns a copy of the operand stack, bottom first.
func (e *Engine) Stack() []Value {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.stack.Values()
}

// ReturnStack returns a copy of the return stack, bottom first.
func (e *Engine) ReturnStack() []Value {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.rstack.Values()
}

// Words returns every dictionary name, sorted.
func (e *Engine) Words() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.dict.Names()
}

// Resolved returns every dictionary name mapped to the word it resolves to.
func (e *Engine) Resolved() map[string]Word {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.dict.Resolved()
}

// Lookup resolves a dictionary name.
func (e *Engine) Lookup(name string) (Word, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.dict.Lookup(name)
}

// Bindings returns every memory binding with its current first cell value.
func (e *Engine) Bindings() []Binding {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.mem.Snapshot()
}

// Log returns the retained log lines, oldest first.
func (e *Engine) Log() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]string(nil), e.logs...)
}

// Dump writes a readable description of the engine state to w.
func (e *Engine) Dump(w io.Writer) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return engineDumper{e: e, out: w}.dump()
}

// Forget drops every non-permanent dictionary entry, returning how many were
// dropped. Memory stays allocated.
func (e *Engine) Forget() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	n := e.dict.Forget()
	e.logf("~", "forgot %v words", n)
	return n
}

func (e *Engine) readLine(ctx context.Context, text string) Result {
	if ctx == nil {
		ctx = context.Background()
	}
	e.line = lineState{
		ctx:    ctx,
		text:   text,
		lex:    lexer.New(text),
		rdepth: e.rstack.Len(),
		gen:    e.line.gen,
	}
	e.logf(">", "%v", text)
	return e.runLine()
}

func (e *Engine) runLine() Result {
	e.state = Executing
	e.native.ctx = e.line.ctx

	err := e.run()
	if err == nil && e.line.suspending {
		e.line.suspending = false
		e.line.gen++
		e.line.done = make(chan struct{})
		e.state = Suspended
		e.logf(">", "suspended")
		r := e.result(nil)
		r.Suspended = true
		e.last = r
		return r
	}
	return e.finishLine(err)
}

func (e *Engine) continueLine() Result {
	done := e.line.done
	e.line.done = nil
	e.logf(">", "resume %v", e.line.text)
	r := e.runLine()
	if done != nil {
		close(done)
	}
	return r
}

func (e *Engine) takeArm() (arm func(resume func()), gen uint64) {
	if e.state != Suspended {
		return nil, 0
	}
	arm, e.line.arm = e.line.arm, nil
	return arm, e.line.gen
}

// armResume hands arm a single-fire resume function for suspension gen.
func (e *Engine) armResume(arm func(resume func()), gen uint64) {
	if arm == nil {
		return
	}
	var once sync.Once
	arm(func() {
		once.Do(func() { e.resumeSuspension(gen) })
	})
}

func (e *Engine) resumeSuspension(gen uint64) {
	e.mu.Lock()
	if e.state != Suspended || e.line.gen != gen {
		e.mu.Unlock()
		return
	}
	r := e.continueLine()
	arm, next := e.takeArm()
	handler := e.onResult
	e.mu.Unlock()

	if handler != nil {
		handler(r)
	}
	e.armResume(arm, next)
}

func (e *Engine) run() error {
	ctx := e.line.ctx
	for !e.line.suspending {
		if err := ctx.Err(); err != nil {
			return err
		}

		if len(e.line.frames) > 0 {
			if e.stepLimit > 0 {
				if e.line.steps++; e.line.steps > e.stepLimit {
					return RuntimeError{Word: e.callers(), Err: ErrStepLimit}
				}
			}
			if err := e.step(); err != nil {
				return err
			}
			continue
		}

		tok, ok := e.line.lex.Next()
		if !ok {
			return e.line.lex.Err()
		}
		if err := e.token(tok); err != nil {
			return err
		}
	}
	return nil
}

func (e *Engine) finishLine(err error) Result {
	e.line.suspending, e.line.arm = false, nil
	if err != nil {
		if callers := e.callers(); callers != "" {
			e.logf("!", "in %v", callers)
		}
		e.logf("!", "%v", err)
		e.line.frames = nil
		if e.def != nil {
			e.logf("~", "discarding definition of %v", e.def.name)
			e.def = nil
		}
		e.rstack.Truncate(e.line.rdepth)
		e.separateOutput()
		e.line.out.WriteString(err.Error())
		e.state = LineDone
	} else if e.def != nil {
		e.state = Compiling
	} else {
		e.separateOutput()
		e.line.out.WriteString("ok")
		e.state = LineDone
	}
	e.permanentNext = false
	r := e.result(err)
	e.last = r
	return r
}

// separateOutput ends any pending line output with a space, so that a
// trailing marker does not run into it.
func (e *Engine) separateOutput() {
	if out := e.line.out.String(); out != "" && !strings.HasSuffix(out, " ") && !strings.HasSuffix(out, "\n") {
		e.line.out.WriteByte(' ')
	}
}

func (e *Engine) result(err error) Result {
	var toks []Token
	if e.line.lex != nil {
		toks = append(toks, e.line.lex.Consumed()...)
	}
	return Result{
		Line:       e.line.text,
		Output:     e.line.out.String(),
		Stack:      e.stack.Values(),
		Tokens:     toks,
		Memory:     e.mem.Snapshot(),
		Dictionary: e.dict.Names(),
		Err:        err,
		Compiling:  e.def != nil,
	}
}

func (e *Engine) token(tok Token) error {
	if tok.IsString {
		if tok.Print {
			return e.dispatch(printWord(tok.String(), tok.Value))
		}
		return e.dispatch(pushWord(tok.String(), Str(tok.Value)))
	}

	if e.def == nil {
		if next, ok := e.line.lex.Peek(1); ok && !next.IsString {
			switch code := ControlCode(strings.ToLower(next.Value)); code {
			case CodeIs, CodeIsNow:
				e.line.lex.Next()
				return e.redefine(tok.Value, code)
			}
		}
	}

	w, err := e.dict.Lookup(tok.Value)
	if err != nil {
		return err
	}
	if w == nil {
		n, ok := parseLiteral(tok.Value)
		if !ok {
			e.logf("!", "unknown word %q skipped", tok.Value)
			return nil
		}
		w = literalWord(tok.Value, n)
	}
	return e.dispatch(w)
}

func (e *Engine) dispatch(w Word) error {
	code, isCode := w.(ControlCode)
	if e.def != nil {
		if isCode && code == CodeEnd {
			return e.endDefinition()
		}
		e.def.body = append(e.def.body, w)
		return nil
	}
	if isCode {
		return e.control(code)
	}
	return e.runWord(w)
}

func (e *Engine) control(code ControlCode) error {
	switch code {
	case CodeDefine:
		name, err := e.nextName(code)
		if err != nil {
			return err
		}
		e.def = &pendingDefinition{name: name, permanent: e.loading || e.permanentNext}
		e.permanentNext = false
		return nil

	case CodeVariable:
		name, err := e.nextName(code)
		if err != nil {
			return err
		}
		addr, err := e.mem.AddVariable(name, 1)
		if err != nil {
			return RuntimeError{Word: string(code), Err: err}
		}
		return e.define(name, pushWord(name, Int(addr)))

	case CodeConstant:
		name, err := e.nextName(code)
		if err != nil {
			return err
		}
		v, err := e.stack.Pop()
		if err != nil {
			return RuntimeError{Word: string(code), Err: err}
		}
		return e.define(name, pushWord(name, v))

	case CodePermanent:
		e.permanentNext = true
		return nil

	case CodeKey:
		return e.runWord(code)
	}
	return RuntimeError{Word: string(code), Err: ErrUnknownControlCode}
}

func (e *Engine) nextName(code ControlCode) (string, error) {
	tok, ok := e.line.lex.Next()
	if !ok {
		if err := e.line.lex.Err(); err != nil {
			return "", err
		}
		return "", RuntimeError{Word: string(code), Err: DictionaryError{Err: ErrEmptyName}}
	}
	return strings.ToLower(tok.Value), nil
}

func (e *Engine) define(name string, w Word) error {
	permanent := e.loading || e.permanentNext
	e.permanentNext = false
	e.logf("~", "define %v", name)
	return e.dict.Add(name, w, permanent)
}

func (e *Engine) endDefinition() error {
	def := e.def
	e.def = nil
	body, err := Compile(def.body)
	if err != nil {
		if ce, ok := err.(CompileError); ok {
			ce.Name = def.name
			err = ce
		}
		return err
	}
	e.logf("~", "define %v", def.name)
	return e.dict.Add(def.name, &CompiledDefinition{
		Name:      def.name,
		Body:      body,
		Permanent: def.permanent,
	}, def.permanent)
}

func (e *Engine) redefine(name string, code ControlCode) error {
	tok, ok := e.line.lex.Next()
	if !ok {
		if err := e.line.lex.Err(); err != nil {
			return err
		}
		return DictionaryError{Name: name, Err: ErrWordNotFound}
	}
	permanent := e.loading || e.permanentNext
	e.permanentNext = false

	if code == CodeIs {
		e.logf("~", "%v is %v", name, tok.Value)
		return e.dict.Redefine(name, tok.Value, permanent)
	}

	w, err := e.dict.Lookup(tok.Value)
	if err != nil {
		return err
	}
	if w == nil {
		if n, ok := parseLiteral(tok.Value); ok {
			w = literalWord(tok.Value, n)
		} else {
			return DictionaryError{Name: tok.Value, Err: ErrWordNotFound}
		}
	}
	e.logf("~", "%v isnow %v", name, tok.Value)
	return e.dict.RedefineWord(name, w, permanent)
}

type logging struct {
	logfn    func(mess string, args ...interface{})
	logLimit int
	logs     []string
}

func (log *logging) logf(mark, mess string, args ...interface{}) {
	if log.logfn == nil && log.logLimit <= 0 {
		return
	}
	if len(args) > 0 {
		mess = fmt.Sprintf(mess, args...)
	}
	if log.logLimit > 0 {
		log.logs = append(log.logs, mark+" "+mess)
		if over := len(log.logs) - log.logLimit; over > 0 {
			log.logs = append(log.logs[:0], log.logs[over:]...)
		}
	}
	if log.logfn != nil {
		log.logfn("%v %v", mark, mess)
	}
}
