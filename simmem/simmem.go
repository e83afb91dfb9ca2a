// Package simmem is an in-memory fake of the mem package's collaborator
// interfaces, playing the role the teacher's in-memory littlefs-backed
// vfs.Service fake plays for tests that need a working filesystem
// without real flash: a Manager and AddressSpace good enough to drive
// process creation, forking and signal-stack writes end to end, with no
// real page tables behind them.
package simmem

import (
	"fmt"
	"sync"

	"github.com/lemon-kernel/nucleus/arch"
	"github.com/lemon-kernel/nucleus/mem"
)

const pageSize = 4096

// Manager is a bump-allocating fake of mem.Manager. It never reclaims
// virtual or physical addresses; tests and the demo harness run for a
// bounded number of allocations, so this is not a concern.
type Manager struct {
	mu          sync.Mutex
	nextVirtual uintptr
	nextPhys    uintptr
	nextRoot    uintptr
}

// New returns a Manager with its virtual/physical/root counters seeded
// away from zero, so a zero address is never mistaken for "valid".
func New() *Manager {
	return &Manager{nextVirtual: pageSize, nextPhys: pageSize, nextRoot: pageSize}
}

func (m *Manager) CreateAddressSpace() (mem.AddressSpace, error) {
	m.mu.Lock()
	root := arch.PageMapRoot(m.nextRoot)
	m.nextRoot += pageSize
	m.mu.Unlock()
	return &AddressSpace{mgr: m, root: root}, nil
}

func (m *Manager) AllocateContiguousVirtualPages(n int) (uintptr, error) {
	if n <= 0 {
		return 0, fmt.Errorf("simmem: page count must be positive, got %d", n)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	base := m.nextVirtual
	m.nextVirtual += uintptr(n) * pageSize
	return base, nil
}

func (m *Manager) AllocatePhysicalBlock() (uintptr, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p := m.nextPhys
	m.nextPhys += pageSize
	return p, nil
}

func (m *Manager) MapVirtualMemory4K(phys, virt uintptr) error {
	return nil
}

var _ mem.Manager = (*Manager)(nil)

// pageMap is the fake mem.PageMap: it carries only the opaque root
// value AddressSpace was assigned at creation.
type pageMap struct {
	root arch.PageMapRoot
}

func (p *pageMap) Root() arch.PageMapRoot { return p.root }
func (p *pageMap) Destroy()               {}

// vmObject is a contiguous, backing-byte-slice region of an
// AddressSpace's fake virtual memory.
type vmObject struct {
	base     uintptr
	data     []byte
	writable bool
}

func (o *vmObject) Base() uintptr { return o.base }
func (o *vmObject) Size() uintptr { return uintptr(len(o.data)) }
func (o *vmObject) HitAll() error { return nil }

var _ mem.VMObject = (*vmObject)(nil)

// AddressSpace is the fake mem.AddressSpace: a set of vmObjects backed
// by real Go byte slices, addressable through WriteAt (mem.StackWriter)
// so scheduler tests can verify what actually landed on a fake user
// stack.
type AddressSpace struct {
	mgr  *Manager
	mu   sync.Mutex
	root arch.PageMapRoot

	objects   []*vmObject
	destroyed bool
}

func (a *AddressSpace) PageMap() mem.PageMap { return &pageMap{root: a.root} }

func (a *AddressSpace) Fork() (mem.AddressSpace, error) {
	child, err := a.mgr.CreateAddressSpace()
	if err != nil {
		return nil, err
	}
	ca := child.(*AddressSpace)

	a.mu.Lock()
	defer a.mu.Unlock()
	for _, o := range a.objects {
		cp := make([]byte, len(o.data))
		copy(cp, o.data)
		ca.objects = append(ca.objects, &vmObject{base: o.base, data: cp, writable: o.writable})
	}
	return ca, nil
}

func (a *AddressSpace) AllocateAnonymousVMObject(size, base uintptr, writable bool) (mem.VMObject, error) {
	if size == 0 {
		return nil, fmt.Errorf("simmem: zero-size VM object")
	}
	if base == 0 {
		pages := (size + pageSize - 1) / pageSize
		b, err := a.mgr.AllocateContiguousVirtualPages(int(pages))
		if err != nil {
			return nil, err
		}
		base = b
	}
	obj := &vmObject{base: base, data: make([]byte, size), writable: writable}

	a.mu.Lock()
	a.objects = append(a.objects, obj)
	a.mu.Unlock()
	return obj, nil
}

func (a *AddressSpace) MapPhysicalPage(phys, virt uintptr) error {
	return nil
}

func (a *AddressSpace) Destroy() {
	a.mu.Lock()
	a.destroyed = true
	a.objects = nil
	a.mu.Unlock()
}

// WriteAt implements mem.StackWriter.
func (a *AddressSpace) WriteAt(vaddr uintptr, data []byte) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	for _, o := range a.objects {
		if vaddr >= o.base && vaddr+uintptr(len(data)) <= o.base+uintptr(len(o.data)) {
			copy(o.data[vaddr-o.base:], data)
			return nil
		}
	}
	return fmt.Errorf("simmem: write at %#x falls outside any mapped object", vaddr)
}

// ReadAt reads len(out) bytes starting at vaddr, for tests that verify
// what CreateELFProcess actually wrote to a fake stack or code region.
func (a *AddressSpace) ReadAt(vaddr uintptr, out []byte) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	for _, o := range a.objects {
		if vaddr >= o.base && vaddr+uintptr(len(out)) <= o.base+uintptr(len(o.data)) {
			copy(out, o.data[vaddr-o.base:])
			return nil
		}
	}
	return fmt.Errorf("simmem: read at %#x falls outside any mapped object", vaddr)
}

// Destroyed reports whether Destroy has been called, for reaper tests.
func (a *AddressSpace) Destroyed() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.destroyed
}

var _ mem.AddressSpace = (*AddressSpace)(nil)
var _ mem.StackWriter = (*AddressSpace)(nil)
