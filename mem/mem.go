// Package mem defines the memory-subsystem collaborator interfaces the
// scheduler consumes (§6) without implementing them: page-map creation
// and teardown, virtual page allocation, and anonymous VM objects. The
// allocator and page-mapping primitives themselves are, per spec.md §1,
// assumed — out of scope for this module.
package mem

import "github.com/lemon-kernel/nucleus/arch"

// PageMap is an address space's page-table root. The scheduler only
// ever needs its physical root address when switching (§3 "Address
// space").
type PageMap interface {
	Root() arch.PageMapRoot
	Destroy()
}

// VMObject is an anonymous virtual memory object backing a region of an
// address space (the signal trampoline page, a user stack).
type VMObject interface {
	Base() uintptr
	Size() uintptr

	// HitAll force-materializes and maps every block of the object
	// (§6: "force-materialize and map all blocks of such an object").
	HitAll() error
}

// AddressSpace is the opaque, fork-able resource the memory subsystem
// creates for a process (§3 "Address space"). The scheduler treats it
// as opaque beyond PageMap and the operations below.
type AddressSpace interface {
	PageMap() PageMap

	// Fork produces a copy-on-write (or equivalent) duplicate, used by
	// CloneProcess (§4.7).
	Fork() (AddressSpace, error)

	// AllocateAnonymousVMObject reserves size bytes of anonymous memory
	// at base (base of 0 lets the allocator choose), used for user
	// stacks and the signal trampoline page.
	AllocateAnonymousVMObject(size, base uintptr, writable bool) (VMObject, error)

	// MapPhysicalPage maps a single physical page at a virtual address
	// within this address space.
	MapPhysicalPage(phys, virt uintptr) error

	// Destroy tears down the address space. Only ever called by the
	// reaper (§4.9), after the owning CPU is done with it.
	Destroy()
}

// StackWriter is an optional capability an AddressSpace may implement:
// direct byte-level writes into its own virtual address space. It is
// used only by signal delivery, to push the interrupted register
// snapshot and siginfo onto a thread's user stack before rewriting its
// program counter to the trampoline (§4.5). Address spaces that do not
// implement it simply skip the stack write; the register-level effects
// of delivery (PC rewrite, pending/mask update) still apply.
type StackWriter interface {
	WriteAt(vaddr uintptr, data []byte) error
}

// Manager is the memory subsystem's entry point: it creates and forks
// page maps and address spaces, and allocates the raw building blocks
// loader and process creation need (§6).
type Manager interface {
	CreateAddressSpace() (AddressSpace, error)

	// AllocateContiguousVirtualPages reserves n contiguous kernel
	// virtual pages (used for kernel stacks and extended-state
	// blocks) and returns their base address.
	AllocateContiguousVirtualPages(n int) (uintptr, error)

	// AllocatePhysicalBlock allocates one physical page frame.
	AllocatePhysicalBlock() (uintptr, error)

	// MapVirtualMemory4K maps one physical page at a kernel virtual
	// address.
	MapVirtualMemory4K(phys, virt uintptr) error
}
