package forthline

import (
	"errors"
	"fmt"
)

// Stack errors.
var ErrStackUnderflow = errors.New("stack underflow")

// Dictionary errors.
var (
	ErrEmptyName             = errors.New("empty name")
	ErrCircularDefinition    = errors.New("circular definition")
	ErrDuplicateRedefinition = errors.New("can't redefine word already in dictionary")
	ErrWordNotFound          = errors.New("word not found")
)

// Compile errors.
var (
	ErrUnbalancedControl  = errors.New("unbalanced control structure")
	ErrUnknownControlCode = errors.New("unknown control code")
)

// Device errors.
var (
	ErrInvalidPort       = errors.New("invalid port")
	ErrReadOnlyViolation = errors.New("read-only port")
	ErrInvalidDevice     = errors.New("invalid device")
	ErrDuplicateDevice   = errors.New("device already attached")
	ErrNoSuchDevice      = errors.New("no such device")
)

// Runtime errors.
var (
	ErrInvalidAction   = errors.New("invalid action")
	ErrInvalidArgument = errors.New("invalid argument")
	ErrNotANumber      = errors.New("not a number")
	ErrDivisionByZero  = errors.New("division by zero")
	ErrStepLimit       = errors.New("step limit exceeded")
)

// Memory errors.
var ErrAddressInUse = errors.New("address already in use")

// Engine errors.
var (
	ErrSuspended    = errors.New("engine is suspended")
	ErrNotSuspended = errors.New("engine is not suspended")
)

// StackError is returned by failed Stack operations.
type StackError struct {
	Stack string
	Err   error
}

func (err StackError) Error() string {
	if err.Stack == "" {
		return err.Err.Error()
	}
	return fmt.Sprintf("%v %v", err.Stack, err.Err)
}

func (err StackError) Unwrap() error { return err.Err }

// DictionaryError is returned by failed Dictionary operations.
type DictionaryError struct {
	Name string
	Err  error
}

func (err DictionaryError) Error() string {
	if err.Name == "" {
		return err.Err.Error()
	}
	return fmt.Sprintf("%v: %v", err.Err, err.Name)
}

func (err DictionaryError) Unwrap() error { return err.Err }

// CompileError is returned when a definition body cannot be compiled.
// Index is the position of the offending action within the body, or -1 when
// the error concerns the body as a whole.
type CompileError struct {
	Name  string
	Code  ControlCode
	Index int
	Err   error
}

func (err CompileError) Error() string {
	var what string
	if err.Code != "" {
		what = fmt.Sprintf(" at %q (#%v)", string(err.Code), err.Index)
	}
	if err.Name != "" {
		return fmt.Sprintf("compiling %v: %v%v", err.Name, err.Err, what)
	}
	return fmt.Sprintf("%v%v", err.Err, what)
}

func (err CompileError) Unwrap() error { return err.Err }

// DeviceError is returned by device registration and port access.
type DeviceError struct {
	Device string
	Port   string
	Err    error
}

func (err DeviceError) Error() string {
	switch {
	case err.Port != "":
		return fmt.Sprintf("device %v port %v: %v", err.Device, err.Port, err.Err)
	case err.Device != "":
		return fmt.Sprintf("device %v: %v", err.Device, err.Err)
	default:
		return fmt.Sprintf("device: %v", err.Err)
	}
}

func (err DeviceError) Unwrap() error { return err.Err }

// RuntimeError annotates an error raised while running a word.
type RuntimeError struct {
	Word string
	Err  error
}

func (err RuntimeError) Error() string {
	if err.Word == "" {
		return err.Err.Error()
	}
	return fmt.Sprintf("%v: %v", err.Word, err.Err)
}

func (err RuntimeError) Unwrap() error { return err.Err }

// AddressError is returned when a memory access falls outside capacity.
type AddressError struct {
	Addr int
	Size int
	Err  error
}

func (err AddressError) Error() string {
	if err.Err != nil {
		return fmt.Sprintf("invalid address %v: %v", err.Addr, err.Err)
	}
	if err.Size > 1 {
		return fmt.Sprintf("invalid address %v (%v cells)", err.Addr, err.Size)
	}
	return fmt.Sprintf("invalid address %v", err.Addr)
}

func (err AddressError) Unwrap() error { return err.Err }
