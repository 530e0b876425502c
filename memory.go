package forthline

import (
	"fmt"
	"slices"
	"sort"
	"strings"

	"github.com/jcorbin/forthline/internal/mem"
)

const (
	// DefaultMemoryCapacity is the number of cells in a new Memory.
	DefaultMemoryCapacity = 65536

	// FirstAutoAddress is where automatic allocation starts; lower cells are
	// left for explicitly placed blocks.
	FirstAutoAddress = 1000

	// CellBits is how many bits of a multi-cell value each non-final cell
	// carries.
	CellBits = 32

	cellMask = int64(1)<<CellBits - 1
)

// BindingKind distinguishes variables from allocated blocks.
type BindingKind int

// Binding kinds.
const (
	VariableBinding BindingKind = iota
	BlockBinding
)

func (k BindingKind) String() string {
	switch k {
	case VariableBinding:
		return "variable"
	case BlockBinding:
		return "block"
	}
	return fmt.Sprintf("BindingKind(%d)", int(k))
}

// Binding names a range of memory cells.
type Binding struct {
	Name    string
	Address int
	Size    int
	Kind    BindingKind

	// Value is the first cell's value, filled in by Memory.Snapshot.
	Value int
}

// End returns the address just past the binding.
func (b Binding) End() int { return b.Address + b.Size }

func (b Binding) overlaps(addr, size int) bool {
	return addr < b.End() && b.Address < addr+size
}

// Memory is a fixed capacity array of int cells with named bindings and
// per-address change subscribers.
type Memory struct {
	cells    mem.Cells
	bindings map[string]Binding
	placed   []Binding
	next     int
	newest   string
	subs     map[int][]*subscriber
}

type subscriber struct{ fn func(addr, value int) }

// NewMemory returns a Memory of the given capacity; capacity < 1 means
// DefaultMemoryCapacity.
func NewMemory(capacity int) *Memory {
	if capacity < 1 {
		capacity = DefaultMemoryCapacity
	}
	m := &Memory{
		bindings: make(map[string]Binding),
		next:     FirstAutoAddress,
	}
	m.cells.Capacity = uint(capacity)
	return m
}

// Capacity returns the number of addressable cells.
func (m *Memory) Capacity() int { return int(m.cells.Capacity) }

// Here returns the next automatically allocated address.
func (m *Memory) Here() int { return m.next }

// AddVariable allocates size cells (at least 1) and binds them to name.
func (m *Memory) AddVariable(name string, size int) (int, error) {
	return m.allocate(name, size, VariableBinding)
}

// AllocateBlock allocates size cells and registers them under name.
func (m *Memory) AllocateBlock(name string, size int) (int, error) {
	return m.allocate(name, size, BlockBinding)
}

// AllocateBlockAt registers size cells at addr under name. Later automatic
// allocations skip the block. The cells must not overlap any other binding,
// any cell ever placed, or the automatically allocated region.
func (m *Memory) AllocateBlockAt(name string, size, addr int) (int, error) {
	name = strings.ToLower(name)
	if name == "" {
		return 0, DictionaryError{Err: ErrEmptyName}
	}
	if size < 1 {
		size = 1
	}
	if err := m.checkRange(addr, size); err != nil {
		return 0, err
	}
	if m.inUse(addr, size) {
		return 0, AddressError{Addr: addr, Size: size, Err: ErrAddressInUse}
	}
	b := Binding{Name: name, Address: addr, Size: size, Kind: BlockBinding}
	m.bindings[name] = b
	m.placed = append(m.placed, b)
	return addr, nil
}

// FreeAt returns the first address at or after addr where size cells could
// be placed with AllocateBlockAt.
func (m *Memory) FreeAt(addr, size int) int {
	if size < 1 {
		size = 1
	}
	for moved := true; moved; {
		moved = false
		if addr < m.next && FirstAutoAddress < addr+size {
			addr, moved = m.next, true
		}
		for _, b := range m.placed {
			if b.overlaps(addr, size) {
				addr, moved = b.End(), true
			}
		}
		for _, b := range m.bindings {
			if b.overlaps(addr, size) {
				addr, moved = b.End(), true
			}
		}
	}
	return addr
}

func (m *Memory) inUse(addr, size int) bool {
	return m.FreeAt(addr, size) != addr
}

func (m *Memory) allocate(name string, size int, kind BindingKind) (int, error) {
	name = strings.ToLower(name)
	if name == "" {
		return 0, DictionaryError{Err: ErrEmptyName}
	}
	if size < 1 {
		size = 1
	}
	addr, err := m.reserve(size)
	if err != nil {
		return 0, err
	}
	m.bindings[name] = Binding{Name: name, Address: addr, Size: size, Kind: kind}
	if kind == VariableBinding {
		m.newest = name
	}
	return addr, nil
}

func (m *Memory) reserve(size int) (int, error) {
	addr := m.next
	for moved := true; moved; {
		moved = false
		for _, b := range m.placed {
			if b.overlaps(addr, size) {
				addr = b.End()
				moved = true
			}
		}
	}
	if err := m.checkRange(addr, size); err != nil {
		return 0, err
	}
	m.next = addr + size
	return addr, nil
}

// Allot advances the allocation cursor by n cells, returning the first
// allotted address. When the newest variable ends at the cursor it grows to
// cover the allotted cells.
func (m *Memory) Allot(n int) (int, error) {
	if n < 0 {
		return 0, fmt.Errorf("allot %v: %w", n, ErrInvalidArgument)
	}
	start := m.next
	if n == 0 {
		return start, nil
	}
	if err := m.checkRange(start, n); err != nil {
		return 0, err
	}
	for _, b := range m.placed {
		if b.overlaps(start, n) {
			return 0, AddressError{Addr: b.Address, Size: b.Size, Err: ErrAddressInUse}
		}
	}
	m.next += n
	if b, ok := m.bindings[m.newest]; ok && b.End() == start {
		b.Size += n
		m.bindings[b.Name] = b
	}
	return start, nil
}

// Variable returns the binding for name.
func (m *Memory) Variable(name string) (Binding, bool) {
	b, ok := m.bindings[strings.ToLower(name)]
	return b, ok
}

// Bindings returns all bindings ordered by address.
func (m *Memory) Bindings() []Binding {
	bs := make([]Binding, 0, len(m.bindings))
	for _, b := range m.bindings {
		bs = append(bs, b)
	}
	sort.Slice(bs, func(i, j int) bool {
		if bs[i].Address == bs[j].Address {
			return bs[i].Name < bs[j].Name
		}
		return bs[i].Address < bs[j].Address
	})
	return bs
}

// Snapshot returns Bindings with each Value filled in.
func (m *Memory) Snapshot() []Binding {
	bs := m.Bindings()
	for i := range bs {
		bs[i].Value, _ = m.GetValue(bs[i].Address, 1)
	}
	return bs
}

// Unbind removes a binding; its cells are not reused.
func (m *Memory) Unbind(name string) {
	name = strings.ToLower(name)
	delete(m.bindings, name)
	if m.newest == name {
		m.newest = ""
	}
}

// SetValue packs value into size cells at addr, then notifies the
// subscribers of addr.
func (m *Memory) SetValue(addr, value, size int) error {
	if size < 1 {
		size = 1
	}
	if err := m.checkRange(addr, size); err != nil {
		return err
	}
	if err := m.cells.Stor(uint(addr), packCells(value, size)...); err != nil {
		return AddressError{Addr: addr, Size: size, Err: err}
	}
	for _, sub := range slices.Clone(m.subs[addr]) {
		sub.fn(addr, value)
	}
	return nil
}

// GetValue unpacks the size cells at addr; cells never written read as 0.
func (m *Memory) GetValue(addr, size int) (int, error) {
	if size < 1 {
		size = 1
	}
	if err := m.checkRange(addr, size); err != nil {
		return 0, err
	}
	buf := make([]int, size)
	if err := m.cells.LoadInto(uint(addr), buf); err != nil {
		return 0, AddressError{Addr: addr, Size: size, Err: err}
	}
	return unpackCells(buf), nil
}

// Subscribe registers fn to be called after every SetValue at addr. The
// returned function removes the subscription.
func (m *Memory) Subscribe(addr int, fn func(addr, value int)) (unsubscribe func()) {
	sub := &subscriber{fn: fn}
	if m.subs == nil {
		m.subs = make(map[int][]*subscriber)
	}
	m.subs[addr] = append(m.subs[addr], sub)
	return func() {
		subs := m.subs[addr]
		subs = slices.DeleteFunc(slices.Clone(subs), func(other *subscriber) bool { return other == sub })
		if len(subs) == 0 {
			delete(m.subs, addr)
		} else {
			m.subs[addr] = subs
		}
	}
}

func (m *Memory) checkRange(addr, size int) error {
	if addr < 0 || size < 0 || addr+size > m.Capacity() {
		return AddressError{Addr: addr, Size: size}
	}
	return nil
}

// packCells splits value into size cells, low bits first. Every cell but the
// last holds CellBits masked bits; the last holds the remaining high bits
// with the sign, so a single cell holds the whole value.
func packCells(value, size int) []int {
	cells := make([]int, size)
	v := int64(value)
	for i := 0; i < size-1; i++ {
		cells[i] = int(v & cellMask)
		v >>= CellBits
	}
	cells[size-1] = int(v)
	return cells
}

func unpackCells(cells []int) int {
	last := len(cells) - 1
	v := int64(cells[last])
	for i := last - 1; i >= 0; i-- {
		v = v<<CellBits | int64(cells[i])&cellMask
	}
	return int(v)
}
