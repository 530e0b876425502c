// Package panicerr turns panics and runtime.Goexit into ordinary errors, so
// that a misbehaving native word or worker cannot take the process down.
package panicerr

import (
	"errors"
	"fmt"
	"runtime/debug"
)

// Error is a recovered panic or goroutine exit.
type Error struct {
	// Name identifies what was running; may be empty.
	Name string

	// Value is what was passed to panic; nil for a goroutine exit.
	Value interface{}

	// Stack is captured at recovery; nil for a goroutine exit.
	Stack []byte

	Exit bool
}

func (pe Error) Error() string { return fmt.Sprint(pe) }

// Format supports %+v to append the captured stack.
func (pe Error) Format(f fmt.State, c rune) {
	switch {
	case pe.Exit && pe.Name == "":
		fmt.Fprint(f, "runtime.Goexit called")
	case pe.Exit:
		fmt.Fprintf(f, "%v called runtime.Goexit", pe.Name)
	case pe.Name == "":
		fmt.Fprintf(f, "panicked: %v", pe.Value)
	default:
		fmt.Fprintf(f, "%v panicked: %v", pe.Name, pe.Value)
	}
	if c == 'v' && f.Flag('+') && len(pe.Stack) > 0 {
		fmt.Fprintf(f, "\nPanic stack: %s", pe.Stack)
	}
}

// Unwrap returns the panic value when it was an error.
func (pe Error) Unwrap() error {
	err, _ := pe.Value.(error)
	return err
}

// Recover runs f in a new goroutine, returning its error, or an Error if it
// panicked or called runtime.Goexit.
func Recover(name string, f func() error) error {
	errch := make(chan error, 1)
	go func() {
		defer close(errch)
		defer func() {
			// f neither returned nor panicked
			select {
			case errch <- Error{Name: name, Exit: true}:
			default:
			}
		}()
		defer func() {
			if e := recover(); e != nil {
				errch <- Error{Name: name, Value: e, Stack: debug.Stack()}
			}
		}()
		errch <- f()
	}()
	return <-errch
}

// Catch runs f on the calling goroutine, converting any panic into an Error.
// Unlike Recover it cannot intercept runtime.Goexit, but it needs no
// goroutine, so it suits per-call use inside an interpreter loop.
func Catch(name string, f func() error) (err error) {
	defer func() {
		if e := recover(); e != nil {
			err = Error{Name: name, Value: e, Stack: debug.Stack()}
		}
	}()
	return f()
}

// IsPanic reports whether err holds a recovered panic.
func IsPanic(err error) bool {
	var pe Error
	return errors.As(err, &pe) && !pe.Exit
}

// IsExit reports whether err holds a recovered goroutine exit.
func IsExit(err error) bool {
	var pe Error
	return errors.As(err, &pe) && pe.Exit
}

// PanicStack returns the stack captured with a recovered panic, if any.
func PanicStack(err error) string {
	var pe Error
	if errors.As(err, &pe) {
		return string(pe.Stack)
	}
	return ""
}
