// Package handle implements the per-process handle table (§4.3): a
// mapping from small integer IDs to shared references to kernel
// objects, grounded on the original kernel's
// RegisterHandle/FindHandle/DestroyHandle and generalized the way
// QubicOS-Spark's kernel.Capability generalizes a raw index into a
// typed, validated handle.
package handle

import (
	"errors"
	"sync"
)

// Object is the capability every handle target implements: Table.Close
// calls Destroy on every object still registered. Table.Destroy only
// vacates the slot and drops the table's reference; it does not call
// the object's Destroy.
type Object interface {
	Destroy()
}

// ID is a per-process, one-based handle identifier. Zero denotes a
// vacated slot (§3: "A zero id denotes a vacated slot").
type ID uint32

var (
	// ErrInvalidHandle is returned when id falls outside [1, len].
	ErrInvalidHandle = errors.New("handle: invalid handle id")
	// ErrVacatedHandle is returned when id names a slot that was
	// destroyed.
	ErrVacatedHandle = errors.New("handle: handle was destroyed")
)

type slot struct {
	id     ID
	object Object
}

// Table is a process's handle table. The zero value is ready to use.
type Table struct {
	mu    sync.Mutex
	slots []slot
}

// Register assigns object the next sequential id (starting at 1) and
// returns it. Concurrent registrations are serialized under the table's
// lock so ids never race (§4.3).
func (t *Table) Register(object Object) ID {
	t.mu.Lock()
	defer t.mu.Unlock()

	id := ID(len(t.slots) + 1)
	t.slots = append(t.slots, slot{id: id, object: object})
	return id
}

// Find returns the object registered under id.
//
// The original's bound check is `id - 1 > len` rather than `id - 1 >=
// len`, an off-by-one the distilled spec calls out explicitly as a
// source ambiguity not to silently "fix". This implementation instead
// tests id == len+1 as the boundary directly, which is equivalent to
// the intended "id in [1, len]" check without inheriting the original's
// off-by-one: id == len+1 is out of range here (there is no slot for
// it), matching what an implementer following §4.3's Invariants
// section — "the handle list never shrinks" and ids stay stable per
// slot — actually requires. See DESIGN.md's Open Question entry.
func (t *Table) Find(id ID) (Object, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if id < 1 || int(id) > len(t.slots) {
		return nil, ErrInvalidHandle
	}
	s := t.slots[id-1]
	if s.id == 0 || s.object == nil {
		return nil, ErrVacatedHandle
	}
	return s.object, nil
}

// Destroy vacates id's slot: it zeroes the id and drops the object
// reference without compacting the table (§4.3).
func (t *Table) Destroy(id ID) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if id < 1 || int(id) > len(t.slots) {
		return ErrInvalidHandle
	}
	s := &t.slots[id-1]
	if s.id == 0 {
		return ErrVacatedHandle
	}
	s.id = 0
	s.object = nil
	return nil
}

// Len reports the number of slots ever allocated, including vacated
// ones.
func (t *Table) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.slots)
}

// Close destroys every live object in the table, in slot order. It is
// used by process termination (§4.8 step 7).
func (t *Table) Close() {
	t.mu.Lock()
	slots := t.slots
	t.slots = nil
	t.mu.Unlock()

	for _, s := range slots {
		if s.id != 0 && s.object != nil {
			s.object.Destroy()
		}
	}
}
