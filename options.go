package forthline

import "time"

// Option configures an Engine.
type Option interface{ apply(e *Engine) }

// Options combines options into one, applied in order.
func Options(opts ...Option) Option {
	var res options
	for _, opt := range opts {
		switch impl := opt.(type) {
		case nil:
		case options:
			res = append(res, impl...)
		default:
			res = append(res, impl)
		}
	}
	return res
}

type options []Option

func (opts options) apply(e *Engine) {
	for _, opt := range opts {
		opt.apply(e)
	}
}

// Scheduler arms delayed calls for suspended words such as ms.
type Scheduler interface {
	AfterFunc(d time.Duration, f func())
}

type timerScheduler struct{}

func (timerScheduler) AfterFunc(d time.Duration, f func()) { time.AfterFunc(d, f) }

// DefaultLogLimit is how many log lines Engine.Log retains by default.
const DefaultLogLimit = 256

var defaultOptions = Options(
	WithScheduler(timerScheduler{}),
	WithMemoryCapacity(DefaultMemoryCapacity),
	WithLogLimit(DefaultLogLimit),
)

// WithScheduler sets the scheduler used by timed suspensions.
func WithScheduler(s Scheduler) Option { return schedulerOption{s} }

// WithLogf sets a function that receives every engine log line.
func WithLogf(logfn func(mess string, args ...interface{})) Option { return logfnOption(logfn) }

// WithMemoryCapacity sets the number of memory cells.
func WithMemoryCapacity(cells int) Option { return memCapacityOption(cells) }

// WithResultHandler sets a function called with every Result produced by a
// resume that was not requested through Engine.Resume, such as a timer
// firing. It is called without holding the engine lock.
func WithResultHandler(fn func(Result)) Option { return resultHandlerOption(fn) }

// WithStepLimit bounds how many execution steps one line may take; 0 means
// unlimited.
func WithStepLimit(steps int) Option { return stepLimitOption(steps) }

// WithLogLimit sets how many recent log lines Engine.Log retains.
func WithLogLimit(lines int) Option { return logLimitOption(lines) }

type schedulerOption struct{ Scheduler }
type logfnOption func(mess string, args ...interface{})
type memCapacityOption int
type resultHandlerOption func(Result)
type stepLimitOption int
type logLimitOption int

func (o schedulerOption) apply(e *Engine) {
	if o.Scheduler != nil {
		e.scheduler = o.Scheduler
	}
}

func (logfn logfnOption) apply(e *Engine)      { e.logfn = logfn }
func (n memCapacityOption) apply(e *Engine)    { e.memCapacity = int(n) }
func (fn resultHandlerOption) apply(e *Engine) { e.onResult = fn }
func (lim stepLimitOption) apply(e *Engine)    { e.stepLimit = int(lim) }
func (lim logLimitOption) apply(e *Engine)     { e.logLimit = int(lim) }
