// Package simloader is a fake loader.Loader for a trivial synthetic
// executable format, good enough to drive CreateELFProcess end to end
// in tests and in cmd/nucleusctl's demo harness without a real ELF
// parser (out of scope per spec.md §1 Non-goals).
//
// A synthetic image is: 4-byte magic "NLEX", an 8-byte little-endian
// entry offset (relative to wherever the code gets mapped), and the
// remaining bytes treated as opaque "code" copied verbatim into the new
// address space.
package simloader

import (
	"encoding/binary"
	"errors"

	"github.com/lemon-kernel/nucleus/loader"
	"github.com/lemon-kernel/nucleus/mem"
)

const magic = "NLEX"
const headerSize = len(magic) + 8

// Loader implements loader.Loader against the synthetic format above.
type Loader struct{}

// New returns a ready-to-use Loader.
func New() *Loader { return &Loader{} }

func (l *Loader) Verify(image []byte) bool {
	return len(image) >= headerSize && string(image[:len(magic)]) == magic
}

func (l *Loader) LoadSegments(space mem.AddressSpace, image []byte, loadBias uintptr) (loader.Info, error) {
	if !l.Verify(image) {
		return loader.Info{}, errors.New("simloader: bad magic")
	}
	entryOff := binary.LittleEndian.Uint64(image[len(magic) : len(magic)+8])
	code := image[headerSize:]
	if len(code) == 0 {
		code = []byte{0}
	}

	obj, err := space.AllocateAnonymousVMObject(uintptr(len(code)), loadBias, true)
	if err != nil {
		return loader.Info{}, err
	}
	if err := obj.HitAll(); err != nil {
		return loader.Info{}, err
	}
	if sw, ok := space.(mem.StackWriter); ok {
		if err := sw.WriteAt(obj.Base(), code); err != nil {
			return loader.Info{}, err
		}
	}

	return loader.Info{
		Entry:       obj.Base() + uintptr(entryOff),
		PHdrSegment: obj.Base(),
		PHEntrySize: 56,
		PHNum:       1,
	}, nil
}

var _ loader.Loader = (*Loader)(nil)
