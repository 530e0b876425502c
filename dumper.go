package forthline

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
)

// engineDumper writes a readable description of an engine: its stacks, its
// user definitions decompiled, its redefinitions, device ports and memory
// bindings.
type engineDumper struct {
	e   *Engine
	out io.Writer

	addrWidth int
}

func (dump engineDumper) dump() error {
	bw := bufio.NewWriter(dump.out)
	dump.out = bw

	fmt.Fprintf(bw, "# Engine Dump\n")
	fmt.Fprintf(bw, "  state: %v\n", dump.e.state)
	fmt.Fprintf(bw, "  stack: %v\n", dump.e.stack)
	fmt.Fprintf(bw, "  return: %v\n", dump.e.rstack)
	if def := dump.e.def; def != nil {
		fmt.Fprintf(bw, "  compiling: %v (%v words)\n", def.name, len(def.body))
	}

	dump.dumpWords()
	dump.dumpDevices()
	dump.dumpMem()
	return bw.Flush()
}

func (dump *engineDumper) dumpWords() {
	d := dump.e.dict
	var defs, redefs []string
	for _, name := range d.Names() {
		if perm, _ := d.IsPermanent(name); perm {
			continue
		}
		if target, ok := d.Alias(name); ok {
			redefs = append(redefs, name+" is "+target)
			continue
		}
		if rd, ok := d.redefs[name]; ok {
			redefs = append(redefs, name+" isnow "+rd.word.WordName())
			continue
		}
		switch w := d.words[name].word.(type) {
		case *CompiledDefinition:
			defs = append(defs, w.String())
		case *NativeProcedure:
			defs = append(defs, name+" ( native )")
		case ControlCode:
			defs = append(defs, name+" ( control )")
		}
	}
	if len(defs)+len(redefs) == 0 {
		return
	}
	fmt.Fprintf(dump.out, "# Dictionary\n")
	for _, def := range defs {
		fmt.Fprintf(dump.out, "  %v\n", def)
	}
	for _, redef := range redefs {
		fmt.Fprintf(dump.out, "  %v\n", redef)
	}
}

func (dump *engineDumper) dumpDevices() {
	dm := dump.e.devices
	if len(dm.order) == 0 {
		return
	}
	fmt.Fprintf(dump.out, "# Devices\n")
	for _, ns := range dm.order {
		fmt.Fprintf(dump.out, "  %v\n", ns)
		for _, pb := range dm.devices[ns].ports {
			fmt.Fprintf(dump.out, "    @%v %v[%v] %v", pb.Address, pb.Name, pb.Size, pb.Access)
			if pb.Description != "" {
				fmt.Fprintf(dump.out, " ( %v )", pb.Description)
			}
			fmt.Fprintf(dump.out, "\n")
		}
	}
}

func (dump *engineDumper) dumpMem() {
	bs := dump.e.mem.Bindings()
	if len(bs) == 0 {
		return
	}
	if dump.addrWidth == 0 {
		dump.addrWidth = len(strconv.Itoa(dump.e.mem.Capacity()))
	}

	fmt.Fprintf(dump.out, "# Memory @%v\n", dump.e.mem.Here())
	for _, b := range bs {
		fmt.Fprintf(dump.out, "  @% *v %v %v", dump.addrWidth, b.Address, b.Kind, b.Name)
		if b.Size > 1 {
			fmt.Fprintf(dump.out, "[%v]", b.Size)
		}
		dump.formatCells(b)
		fmt.Fprintf(dump.out, "\n")
	}
}

// formatCells writes the nonzero cells of b, eliding long runs.
func (dump *engineDumper) formatCells(b Binding) {
	const maxCells = 8
	shown := 0
	for i := 0; i < b.Size; i++ {
		n, err := dump.e.mem.GetValue(b.Address+i, 1)
		if err != nil || (n == 0 && b.Size > 1) {
			continue
		}
		if shown == maxCells {
			fmt.Fprintf(dump.out, " ...")
			return
		}
		if b.Size > 1 {
			fmt.Fprintf(dump.out, " +%v:%v", i, n)
		} else {
			fmt.Fprintf(dump.out, " = %v", n)
		}
		shown++
	}
}
