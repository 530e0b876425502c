package forthline

import (
	"strings"
	"sync"
)

// DeviceMemoryBase is the first address assigned to device ports.
const DeviceMemoryBase = 0x1000

// DeviceManager places device ports in memory and indexes them by address.
type DeviceManager struct {
	mem     *Memory
	next    int
	order   []string
	devices map[string]*attachedDevice
	byAddr  map[int]PortBinding
}

type attachedDevice struct {
	dev   Device
	dc    *DeviceContext
	ports []PortBinding
	words []string
}

// NewDeviceManager returns a manager placing ports in m.
func NewDeviceManager(m *Memory) *DeviceManager {
	return &DeviceManager{
		mem:     m,
		next:    DeviceMemoryBase,
		devices: make(map[string]*attachedDevice),
		byAddr:  make(map[int]PortBinding),
	}
}

// RegisterDevice validates d and assigns its ports contiguous addresses, at
// or after DeviceMemoryBase and clear of every existing memory binding.
// The returned context locks with lock, or with a private mutex if lock is
// nil.
func (dm *DeviceManager) RegisterDevice(d Device, lock sync.Locker, stack *Stack) (*DeviceContext, error) {
	if d == nil {
		return nil, DeviceError{Err: ErrInvalidDevice}
	}
	ns := strings.ToLower(d.Namespace())
	ports := d.Ports()
	if ns == "" || len(ports) == 0 {
		return nil, DeviceError{Device: ns, Err: ErrInvalidDevice}
	}
	if _, dup := dm.devices[ns]; dup {
		return nil, DeviceError{Device: ns, Err: ErrDuplicateDevice}
	}

	total := 0
	seen := make(map[string]struct{}, len(ports))
	for _, p := range ports {
		_, dupPort := seen[p.Name]
		if p.Name == "" || p.Size < 1 || dupPort || p.Access < ReadWrite || p.Access > Write {
			return nil, DeviceError{Device: ns, Port: p.Name, Err: ErrInvalidPort}
		}
		seen[p.Name] = struct{}{}
		total += p.Size
	}
	base := dm.mem.FreeAt(dm.next, total)
	if base+total > dm.mem.Capacity() {
		return nil, DeviceError{Device: ns, Err: AddressError{Addr: base, Size: total}}
	}
	dm.next = base

	if lock == nil {
		lock = &sync.Mutex{}
	}
	ad := &attachedDevice{
		dev: d,
		dc: &DeviceContext{
			lock:      lock,
			mem:       dm.mem,
			stack:     stack,
			namespace: ns,
			ports:     make(map[string]PortBinding, len(ports)),
		},
	}
	for _, p := range ports {
		pb := PortBinding{Port: p, Device: ns, Address: dm.next}
		if _, err := dm.mem.AllocateBlockAt(ns+"."+p.Name, p.Size, pb.Address); err != nil {
			return nil, DeviceError{Device: ns, Port: p.Name, Err: err}
		}
		for i := 0; i < p.Size; i++ {
			dm.byAddr[pb.Address+i] = pb
		}
		dm.next += p.Size
		ad.ports = append(ad.ports, pb)
		ad.dc.ports[p.Name] = pb
	}
	dm.devices[ns] = ad
	dm.order = append(dm.order, ns)
	return ad.dc, nil
}

// UnregisterDevice removes a device's address mappings. Its addresses are
// not reused.
func (dm *DeviceManager) UnregisterDevice(ns string) (Device, error) {
	ns = strings.ToLower(ns)
	ad, ok := dm.devices[ns]
	if !ok {
		return nil, DeviceError{Device: ns, Err: ErrNoSuchDevice}
	}
	for _, pb := range ad.ports {
		for i := 0; i < pb.Size; i++ {
			delete(dm.byAddr, pb.Address+i)
		}
		dm.mem.Unbind(ns + "." + pb.Name)
	}
	delete(dm.devices, ns)
	for i, name := range dm.order {
		if name == ns {
			dm.order = append(dm.order[:i], dm.order[i+1:]...)
			break
		}
	}
	return ad.dev, nil
}

// RegisterDeviceWords installs the words of every attached device.
func (dm *DeviceManager) RegisterDeviceWords(add AddWordFunc) error {
	for _, ns := range dm.order {
		if err := dm.registerWords(dm.devices[ns], add); err != nil {
			return err
		}
	}
	return nil
}

// registerWords installs "ns.port", which pushes the port value, and
// "ns.port&", which pushes its address, for every port, followed by any
// words the device registers itself.
func (dm *DeviceManager) registerWords(ad *attachedDevice, add AddWordFunc) error {
	track := func(name string, w Word) error {
		name = strings.ToLower(name)
		if err := add(name, w); err != nil {
			return err
		}
		ad.words = append(ad.words, name)
		return nil
	}
	for _, pb := range ad.ports {
		pb := pb
		name := pb.Device + "." + pb.Name
		if err := track(name, native(name, func(c *Context) error {
			n, err := c.Memory().GetValue(pb.Address, pb.Size)
			if err != nil {
				return err
			}
			c.PushInt(n)
			return nil
		})); err != nil {
			return err
		}
		if err := track(name+"&", pushWord(name+"&", Int(pb.Address))); err != nil {
			return err
		}
	}
	if reg, ok := ad.dev.(WordRegistrar); ok {
		return reg.RegisterWords(track)
	}
	return nil
}

// PortAt returns the port covering addr.
func (dm *DeviceManager) PortAt(addr int) (PortBinding, bool) {
	pb, ok := dm.byAddr[addr]
	return pb, ok
}

// CheckWrite refuses language writes into read ports.
func (dm *DeviceManager) CheckWrite(addr int) error {
	if pb, ok := dm.byAddr[addr]; ok && pb.Access == Read {
		return DeviceError{Device: pb.Device, Port: pb.Name, Err: ErrReadOnlyViolation}
	}
	return nil
}

// Devices returns attached namespaces in attach order.
func (dm *DeviceManager) Devices() []string {
	return append([]string(nil), dm.order...)
}

// cellSize is how many cells @ and ! move at addr: a whole port at a port's
// base address, otherwise one.
func (dm *DeviceManager) cellSize(addr int) int {
	if pb, ok := dm.byAddr[addr]; ok && pb.Address == addr {
		return pb.Size
	}
	return 1
}

// AttachDevice registers d, installs its words and then initializes it.
// A failed Initialize detaches the device again.
func (e *Engine) AttachDevice(d Device) (Device, error) {
	e.mu.Lock()
	dc, err := e.devices.RegisterDevice(d, &e.mu, e.stack)
	if err == nil {
		ns := dc.Namespace()
		err = e.devices.registerWords(e.devices.devices[ns], func(name string, w Word) error {
			if _, err := e.dict.IsPermanent(name); err == nil {
				return DictionaryError{Name: name, Err: ErrDuplicateRedefinition}
			}
			return e.dict.Add(name, w, true)
		})
		if err != nil {
			e.detach(ns)
		} else {
			e.logf("#", "attached %v", ns)
		}
	}
	e.mu.Unlock()
	if err != nil {
		return nil, err
	}

	if err := d.Initialize(dc); err != nil {
		e.DetachDevice(dc.Namespace())
		return nil, DeviceError{Device: dc.Namespace(), Err: err}
	}
	return d, nil
}

// DetachDevice removes a device's words and ports, then cleans it up.
func (e *Engine) DetachDevice(ns string) error {
	e.mu.Lock()
	ad, err := e.detach(ns)
	e.mu.Unlock()
	if err != nil {
		return err
	}
	ad.dev.Cleanup()
	ad.dc.Release()
	return nil
}

// Devices returns the attached device namespaces.
func (e *Engine) Devices() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.devices.Devices()
}

func (e *Engine) detach(ns string) (*attachedDevice, error) {
	ad := e.devices.devices[strings.ToLower(ns)]
	if _, err := e.devices.UnregisterDevice(ns); err != nil {
		return nil, err
	}
	for _, name := range ad.words {
		e.dict.Remove(name)
	}
	e.logf("#", "detached %v", ad.dc.Namespace())
	return ad, nil
}
