// Package loader defines the executable-image loader collaborator
// consumed by process creation (§6). Parsing the executable format and
// populating an address space's segments is out of scope (spec.md §1);
// this package only states the contract CreateELFProcess relies on.
package loader

import "github.com/lemon-kernel/nucleus/mem"

// Info is what a successful load reports back to CreateELFProcess: the
// entry point and the auxiliary-vector inputs (§4.7 step 4).
type Info struct {
	Entry           uintptr
	PHdrSegment     uintptr
	PHEntrySize     int
	PHNum           int
	InterpreterPath string // empty if the image needs no interpreter
}

// Loader validates and loads an executable image into an address
// space.
type Loader interface {
	// Verify reports whether image is a well-formed, loadable
	// executable (§4.7 step 1).
	Verify(image []byte) bool

	// LoadSegments maps image's segments into space at loadBias and
	// returns the entry/auxv inputs. loadBias is non-zero when loading
	// a dynamic interpreter at a fixed high base address (§4.7 step
	// 5).
	LoadSegments(space mem.AddressSpace, image []byte, loadBias uintptr) (Info, error)
}
