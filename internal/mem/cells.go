// Package mem provides a sparse, paged integer cell store.
package mem

import (
	"fmt"
	"slices"
	"sort"
)

// DefaultPageSize provides a default for Cells.PageSize.
const DefaultPageSize = 256

// Cells implements a sparse, integer-oriented paged memory.
// Pages are only allocated by stores, so a large Capacity costs nothing until
// it is used; unallocated cells read as 0.
type Cells struct {
	// PageSize is the length of every page; it must not change once a page
	// has been allocated. Zero means DefaultPageSize.
	PageSize uint

	// Capacity is the number of addressable cells; any access at or past it
	// is a RangeError. Zero means unbounded.
	Capacity uint

	pages []page // sorted by base
}

type page struct {
	base  uint
	cells []int
}

func (p page) end() uint { return p.base + uint(len(p.cells)) }

// RangeError indicates that a load or store touched cells outside Capacity.
type RangeError struct {
	Addr     uint
	Count    uint
	Capacity uint
	Op       string
}

func (re RangeError) Error() string {
	if re.Count > 1 {
		return fmt.Sprintf("%v of %v cells @%v exceeds capacity %v", re.Op, re.Count, re.Addr, re.Capacity)
	}
	return fmt.Sprintf("%v @%v exceeds capacity %v", re.Op, re.Addr, re.Capacity)
}

// Size returns an address one past the last allocated cell.
func (m *Cells) Size() uint {
	if len(m.pages) == 0 {
		return 0
	}
	return m.pages[len(m.pages)-1].end()
}

// Allocated returns the number of cells backed by allocated pages.
func (m *Cells) Allocated() (n uint) {
	for _, p := range m.pages {
		n += uint(len(p.cells))
	}
	return n
}

// Load returns a single value from the given address.
func (m *Cells) Load(addr uint) (int, error) {
	if err := m.checkRange(addr, 1, "load"); err != nil {
		return 0, err
	}
	if i, ok := m.find(addr); ok {
		p := m.pages[i]
		return p.cells[addr-p.base], nil
	}
	return 0, nil
}

// LoadInto reads len(buf) integers from memory starting at addr.
// Unallocated cells are zeroed in buf; no partial load is done when the range
// exceeds Capacity.
func (m *Cells) LoadInto(addr uint, buf []int) error {
	if len(buf) == 0 {
		return nil
	}
	if err := m.checkRange(addr, uint(len(buf)), "load"); err != nil {
		return err
	}
	for len(buf) > 0 {
		var n int
		if i, ok := m.find(addr); ok {
			p := m.pages[i]
			n = copy(buf, p.cells[addr-p.base:])
		} else {
			n = len(buf)
			if i < len(m.pages) {
				if gap := m.pages[i].base - addr; gap < uint(n) {
					n = int(gap)
				}
			}
			clear(buf[:n])
		}
		buf = buf[n:]
		addr += uint(n)
	}
	return nil
}

// Stor stores values at consecutive cells starting at addr, allocating pages
// as needed. No partial store is done when the range exceeds Capacity.
func (m *Cells) Stor(addr uint, values ...int) error {
	if len(values) == 0 {
		return nil
	}
	if err := m.checkRange(addr, uint(len(values)), "store"); err != nil {
		return err
	}
	for len(values) > 0 {
		p := m.alloc(addr)
		n := copy(p.cells[addr-p.base:], values)
		values = values[n:]
		addr += uint(n)
	}
	return nil
}

// find returns the index of the page holding addr; when there is none, it
// returns the index where such a page would be inserted.
func (m *Cells) find(addr uint) (int, bool) {
	i := sort.Search(len(m.pages), func(i int) bool { return m.pages[i].end() > addr })
	return i, i < len(m.pages) && m.pages[i].base <= addr
}

func (m *Cells) alloc(addr uint) *page {
	i, ok := m.find(addr)
	if !ok {
		if m.PageSize == 0 {
			m.PageSize = DefaultPageSize
		}
		base := addr / m.PageSize * m.PageSize
		m.pages = slices.Insert(m.pages, i, page{base: base, cells: make([]int, m.PageSize)})
	}
	return &m.pages[i]
}

func (m *Cells) checkRange(addr, count uint, op string) error {
	if lim := m.Capacity; lim != 0 && (addr >= lim || count > lim-addr) {
		return RangeError{Addr: addr, Count: count, Capacity: lim, Op: op}
	}
	return nil
}
