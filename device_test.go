package forthline

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testDevice struct {
	ns      string
	ports   []Port
	initErr error

	dc      *DeviceContext
	cleaned bool
	writes  []int
}

func (td *testDevice) Namespace() string { return td.ns }
func (td *testDevice) Ports() []Port     { return td.ports }

func (td *testDevice) Initialize(dc *DeviceContext) error {
	if td.initErr != nil {
		return td.initErr
	}
	td.dc = dc
	return dc.Subscribe("count", func(value int) { td.writes = append(td.writes, value) })
}

func (td *testDevice) Cleanup() { td.cleaned = true }

// counterDevice adds a word of its own.
type counterDevice struct{ testDevice }

func (cd *counterDevice) RegisterWords(add AddWordFunc) error {
	return add("counter.bump", native("counter.bump", func(c *Context) error {
		n, err := c.Memory().GetValue(DeviceMemoryBase, 1)
		if err != nil {
			return err
		}
		return c.Memory().SetValue(DeviceMemoryBase, n+1, 1)
	}))
}

func newTestDevice(ns string) *testDevice {
	return &testDevice{ns: ns, ports: []Port{
		{Name: "count", Size: 1, Access: ReadWrite, Description: "a counter"},
		{Name: "status", Size: 1, Access: Read},
		{Name: "wide", Size: 2, Access: Write},
	}}
}

func TestDevice_roundTrip(t *testing.T) {
	ctx := context.Background()
	e := New(WithLogf(t.Logf))
	td := newTestDevice("test")
	_, err := e.AttachDevice(td)
	require.NoError(t, err)
	require.NotNil(t, td.dc)

	addr, err := td.dc.Address("count")
	require.NoError(t, err)
	assert.Equal(t, DeviceMemoryBase, addr)
	wide, err := td.dc.Address("wide")
	require.NoError(t, err)
	assert.Equal(t, DeviceMemoryBase+2, wide)

	require.NoError(t, td.dc.SetPortValue("count", 5))
	r := e.ReadLine(ctx, "test.count test.count&")
	require.NoError(t, r.Err)
	assert.Equal(t, Ints(5, DeviceMemoryBase), r.Stack)

	err = td.dc.SetPortValue("status", 1)
	assert.ErrorIs(t, err, ErrReadOnlyViolation)
	require.NoError(t, td.dc.Store("status", 3))
	r = e.ReadLine(ctx, "test.status")
	require.NoError(t, r.Err)
	assert.Equal(t, Ints(5, DeviceMemoryBase, 3), r.Stack)

	r = e.ReadLine(ctx, "1 test.status& !")
	assert.ErrorIs(t, r.Err, ErrReadOnlyViolation)
	var de DeviceError
	require.True(t, errors.As(r.Err, &de))
	assert.Equal(t, "status", de.Port)

	r = e.ReadLine(ctx, "9 test.count& !")
	require.NoError(t, r.Err)
	n, err := td.dc.PortValue("count")
	require.NoError(t, err)
	assert.Equal(t, 9, n)
	assert.Equal(t, []int{5, 9}, td.writes, "subscriber sees both writes")

	big := 1<<40 + 7
	r = e.ReadLine(ctx, "1099511627783 test.wide& ! test.wide& @")
	require.NoError(t, r.Err)
	assert.Equal(t, Int(big), r.Stack[len(r.Stack)-1], "whole port moves at its base address")

	_, err = td.dc.Address("nope")
	assert.ErrorIs(t, err, ErrInvalidPort)
}

func TestDevice_detach(t *testing.T) {
	ctx := context.Background()
	e := New()
	cd := &counterDevice{testDevice: *newTestDevice("counter")}
	_, err := e.AttachDevice(cd)
	require.NoError(t, err)
	assert.Equal(t, []string{"counter"}, e.Devices())

	r := e.ReadLine(ctx, "counter.bump counter.bump counter.count")
	require.NoError(t, r.Err)
	assert.Equal(t, Ints(2), r.Stack)
	assert.Equal(t, []int{1, 2}, cd.writes)

	var dump strings.Builder
	require.NoError(t, e.Dump(&dump))
	assert.Contains(t, dump.String(), "# Devices\n  counter\n    @4096 count[1] readwrite ( a counter )\n")

	require.NoError(t, e.DetachDevice("counter"))
	assert.True(t, cd.cleaned)
	assert.Empty(t, e.Devices())
	for _, name := range []string{"counter.bump", "counter.count", "counter.count&"} {
		w, err := e.Lookup(name)
		assert.NoError(t, err)
		assert.Nil(t, w, "%v should be gone", name)
	}
	_, bound := e.mem.Variable("counter.count")
	assert.False(t, bound)

	r = e.ReadLine(ctx, "1 4096 !")
	require.NoError(t, r.Err, "detached addresses are plain memory")
	assert.Equal(t, []int{1, 2}, cd.writes, "subscription released")

	assert.ErrorIs(t, e.DetachDevice("counter"), ErrNoSuchDevice)

	td := newTestDevice("again")
	_, err = e.AttachDevice(td)
	require.NoError(t, err)
	addr, err := td.dc.Address("count")
	require.NoError(t, err)
	assert.Equal(t, DeviceMemoryBase+4, addr, "addresses are not reused")
}

func TestDevice_validation(t *testing.T) {
	e := New()
	for _, tc := range []struct {
		name string
		dev  Device
		err  error
	}{
		{"no namespace", &testDevice{ports: []Port{{Name: "x", Size: 1}}}, ErrInvalidDevice},
		{"no ports", &testDevice{ns: "empty"}, ErrInvalidDevice},
		{"unnamed port", &testDevice{ns: "bad", ports: []Port{{Size: 1}}}, ErrInvalidPort},
		{"empty port", &testDevice{ns: "bad", ports: []Port{{Name: "x"}}}, ErrInvalidPort},
		{"duplicate port", &testDevice{ns: "bad", ports: []Port{{Name: "x", Size: 1}, {Name: "x", Size: 1}}}, ErrInvalidPort},
		{"bad access", &testDevice{ns: "bad", ports: []Port{{Name: "x", Size: 1, Access: 7}}}, ErrInvalidPort},
		{"init fails", &testDevice{ns: "broken", ports: []Port{{Name: "x", Size: 1}}, initErr: errors.New("no hardware")}, nil},
	} {
		t.Run(tc.name, func(t *testing.T) {
			_, err := e.AttachDevice(tc.dev)
			require.Error(t, err)
			if tc.err != nil {
				assert.ErrorIs(t, err, tc.err)
			}
		})
	}
	assert.Empty(t, e.Devices(), "failed attaches leave nothing behind")

	_, err := e.AttachDevice(newTestDevice("dup"))
	require.NoError(t, err)
	_, err = e.AttachDevice(newTestDevice("DUP"))
	assert.ErrorIs(t, err, ErrDuplicateDevice)
}

func TestDeviceManager(t *testing.T) {
	m := NewMemory(0)
	dm := NewDeviceManager(m)

	a, err := dm.RegisterDevice(newTestDevice("a"), nil, NewStack("data"))
	require.NoError(t, err)
	b, err := dm.RegisterDevice(newTestDevice("b"), nil, NewStack("data"))
	require.NoError(t, err)

	bCount, _ := b.Address("count")
	assert.Equal(t, DeviceMemoryBase+4, bCount, "ports are contiguous across devices")

	pb, ok := dm.PortAt(DeviceMemoryBase + 3)
	require.True(t, ok)
	assert.Equal(t, "a", pb.Device)
	assert.Equal(t, "wide", pb.Name)
	assert.NoError(t, dm.CheckWrite(DeviceMemoryBase+3))
	assert.ErrorIs(t, dm.CheckWrite(DeviceMemoryBase+1), ErrReadOnlyViolation)
	assert.NoError(t, dm.CheckWrite(42))

	words := make(map[string]Word)
	require.NoError(t, dm.RegisterDeviceWords(func(name string, w Word) error {
		words[name] = w
		return nil
	}))
	assert.Len(t, words, 12)
	assert.Contains(t, words, "a.count&")
	assert.Contains(t, words, "b.wide")

	require.NoError(t, a.Store("count", 3))
	n, err := m.GetValue(DeviceMemoryBase, 1)
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	b1, ok := m.Variable("b.count")
	require.True(t, ok)
	assert.Equal(t, BlockBinding, b1.Kind)

	_, err = dm.UnregisterDevice("a")
	require.NoError(t, err)
	_, ok = dm.PortAt(DeviceMemoryBase)
	assert.False(t, ok)
	assert.Equal(t, []string{"b"}, dm.Devices())

	_, err = dm.RegisterDevice(&testDevice{ns: "huge", ports: []Port{{Name: "x", Size: DefaultMemoryCapacity}}}, nil, nil)
	assert.ErrorAs(t, err, &AddressError{})
}

func TestDevice_portsAvoidVariables(t *testing.T) {
	ctx := context.Background()
	e := New()
	r := e.ReadLine(ctx, "variable big 4000 allot")
	require.NoError(t, r.Err)
	big, ok := e.mem.Variable("big")
	require.True(t, ok)
	require.Greater(t, big.End(), DeviceMemoryBase)

	td := newTestDevice("dev")
	_, err := e.AttachDevice(td)
	require.NoError(t, err)
	addr, err := td.dc.Address("count")
	require.NoError(t, err)
	assert.Equal(t, big.End(), addr, "ports placed past the variable")

	r = e.ReadLine(ctx, "7 big 2520 + ! big 2520 + @")
	require.NoError(t, r.Err)
	assert.Equal(t, Int(7), r.Stack[len(r.Stack)-1])
}

func TestDevice_allotAcrossPorts(t *testing.T) {
	e := New()
	_, err := e.AttachDevice(newTestDevice("dev"))
	require.NoError(t, err)

	r := e.ReadLine(context.Background(), "variable big 4000 allot")
	assert.ErrorIs(t, r.Err, ErrAddressInUse)
	_, err = e.mem.GetValue(DeviceMemoryBase, 1)
	require.NoError(t, err)
}
