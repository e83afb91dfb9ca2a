package process

import (
	"sync"

	"github.com/lemon-kernel/nucleus/fs"
)

// fdTable is a process's file-descriptor table: an ordered sparse
// sequence indexed by small integers (§3).
type fdTable struct {
	mu    sync.Mutex
	slots []*fs.FileDescriptor
}

// Open installs fd in the lowest free slot (reusing a closed slot
// before growing), and returns its descriptor number.
func (t *fdTable) Open(fd *fs.FileDescriptor) int {
	t.mu.Lock()
	defer t.mu.Unlock()

	for i, s := range t.slots {
		if s == nil {
			t.slots[i] = fd
			return i
		}
	}
	t.slots = append(t.slots, fd)
	return len(t.slots) - 1
}

// OpenAt installs fd at exactly descriptor number id, growing the
// table with nil slots as needed. Used to reserve 0/1/2 (§4.7 step 7).
func (t *fdTable) OpenAt(id int, fd *fs.FileDescriptor) {
	t.mu.Lock()
	defer t.mu.Unlock()

	for len(t.slots) <= id {
		t.slots = append(t.slots, nil)
	}
	t.slots[id] = fd
}

// Get returns the descriptor at id, if any.
func (t *fdTable) Get(id int) (*fs.FileDescriptor, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if id < 0 || id >= len(t.slots) || t.slots[id] == nil {
		return nil, false
	}
	return t.slots[id], true
}

// Close closes and vacates the slot at id.
func (t *fdTable) Close(id int) error {
	t.mu.Lock()
	if id < 0 || id >= len(t.slots) || t.slots[id] == nil {
		t.mu.Unlock()
		return nil
	}
	fd := t.slots[id]
	t.slots[id] = nil
	t.mu.Unlock()

	return fd.Close()
}

// CloseAll closes every open descriptor, used by process termination
// (§4.8 step 7).
func (t *fdTable) CloseAll() {
	t.mu.Lock()
	slots := t.slots
	t.slots = nil
	t.mu.Unlock()

	for _, fd := range slots {
		if fd != nil {
			fd.Close()
		}
	}
}
