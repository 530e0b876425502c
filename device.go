package forthline

import (
	"fmt"
	"sync"
)

// Access is a port's permitted direction, from the language's point of view.
type Access int

// Port access modes.
const (
	ReadWrite Access = iota
	Read
	Write
)

func (a Access) String() string {
	switch a {
	case ReadWrite:
		return "readwrite"
	case Read:
		return "read"
	case Write:
		return "write"
	}
	return fmt.Sprintf("Access(%d)", int(a))
}

// Port is one named, memory mapped cell range exposed by a device.
type Port struct {
	Name        string
	Size        int
	Access      Access
	Description string
}

// PortBinding is a Port placed in memory.
type PortBinding struct {
	Port
	Device  string
	Address int
}

// Device is an extension that maps ports into engine memory.
type Device interface {
	Namespace() string
	Ports() []Port

	// Initialize is called once the ports have addresses.
	Initialize(dc *DeviceContext) error

	// Cleanup is called when the device is detached.
	Cleanup()
}

// AddWordFunc installs a word in the dictionary.
type AddWordFunc func(name string, w Word) error

// WordRegistrar is implemented by devices that install their own words
// besides the default port accessors.
type WordRegistrar interface {
	RegisterWords(add AddWordFunc) error
}

// DeviceContext is a device's handle on its ports. Its methods lock the
// owning engine, so they must not be called from inside a running word or a
// memory subscriber.
type DeviceContext struct {
	lock  sync.Locker
	mem   *Memory
	stack *Stack

	namespace string
	ports     map[string]PortBinding
	unsubs    []func()
}

// Namespace returns the device namespace.
func (dc *DeviceContext) Namespace() string { return dc.namespace }

// Port returns the placement of a named port.
func (dc *DeviceContext) Port(name string) (PortBinding, error) {
	pb, ok := dc.ports[name]
	if !ok {
		return PortBinding{}, DeviceError{Device: dc.namespace, Port: name, Err: ErrInvalidPort}
	}
	return pb, nil
}

// Address returns the base address of a named port.
func (dc *DeviceContext) Address(name string) (int, error) {
	pb, err := dc.Port(name)
	return pb.Address, err
}

// SetPortValue writes a port as the language would, so read ports are
// refused.
func (dc *DeviceContext) SetPortValue(name string, value int) error {
	pb, err := dc.Port(name)
	if err != nil {
		return err
	}
	if pb.Access == Read {
		return DeviceError{Device: dc.namespace, Port: name, Err: ErrReadOnlyViolation}
	}
	return dc.store(pb, value)
}

// Store writes a port from the device side, whatever its access.
func (dc *DeviceContext) Store(name string, value int) error {
	pb, err := dc.Port(name)
	if err != nil {
		return err
	}
	return dc.store(pb, value)
}

func (dc *DeviceContext) store(pb PortBinding, value int) error {
	dc.lock.Lock()
	defer dc.lock.Unlock()
	return dc.mem.SetValue(pb.Address, value, pb.Size)
}

// PortValue reads a port.
func (dc *DeviceContext) PortValue(name string) (int, error) {
	pb, err := dc.Port(name)
	if err != nil {
		return 0, err
	}
	dc.lock.Lock()
	defer dc.lock.Unlock()
	return dc.mem.GetValue(pb.Address, pb.Size)
}

// Push pushes onto the engine's data stack.
func (dc *DeviceContext) Push(vs ...Value) {
	dc.lock.Lock()
	defer dc.lock.Unlock()
	dc.stack.Push(vs...)
}

// Subscribe calls fn after every write to the named port's base address,
// until Release. fn runs with the engine locked.
func (dc *DeviceContext) Subscribe(name string, fn func(value int)) error {
	pb, err := dc.Port(name)
	if err != nil {
		return err
	}
	dc.lock.Lock()
	defer dc.lock.Unlock()
	dc.unsubs = append(dc.unsubs, dc.mem.Subscribe(pb.Address, func(_, value int) { fn(value) }))
	return nil
}

// Release drops every subscription made through Subscribe.
func (dc *DeviceContext) Release() {
	dc.lock.Lock()
	defer dc.lock.Unlock()
	for _, unsub := range dc.unsubs {
		unsub()
	}
	dc.unsubs = nil
}
