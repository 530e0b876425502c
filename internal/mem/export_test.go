package mem

// PageDump describes one allocated page for testing.
type PageDump struct {
	Base  uint
	Cells []int
}

// Dump page layout for testing.
func (m *Cells) Dump() []PageDump {
	d := make([]PageDump, len(m.pages))
	for i, p := range m.pages {
		d[i] = PageDump{Base: p.base, Cells: p.cells}
	}
	return d
}
