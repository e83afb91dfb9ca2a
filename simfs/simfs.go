// Package simfs is a minimal in-memory fake of the fs package's
// collaborator interfaces: enough of a filesystem to let process
// creation resolve /dev/null and /dev/kernellog and to serve executable
// images to the loader, without any real storage behind it.
package simfs

import (
	"fmt"
	"io"
	"sync"

	"github.com/lemon-kernel/nucleus/fs"
)

// FS is a flat map of path to contents.
type FS struct {
	mu    sync.Mutex
	files map[string][]byte
}

// New returns an FS pre-populated with the two reserved device paths
// process creation opens fds 0/1/2 against (§4.7 step 7), both empty.
func New() *FS {
	f := &FS{files: make(map[string][]byte)}
	f.files[fs.PathDevNull] = nil
	f.files[fs.PathDevKernelLog] = nil
	return f
}

// AddFile registers path with the given contents, for tests that need
// CreateELFProcess to load a synthetic executable image or
// loadInterpreter to find a dynamic interpreter.
func (f *FS) AddFile(path string, data []byte) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.files[path] = data
}

func (f *FS) ResolvePath(path string) (fs.Node, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	data, ok := f.files[path]
	if !ok {
		return nil, fmt.Errorf("simfs: %s not found", path)
	}
	return &node{path: path, data: data}, nil
}

func (f *FS) Open(path string) (*fs.FileDescriptor, error) {
	n, err := f.ResolvePath(path)
	if err != nil {
		return nil, err
	}
	return &fs.FileDescriptor{Node: n}, nil
}

var _ fs.FS = (*FS)(nil)

type node struct {
	path string
	data []byte
}

func (n *node) Path() string { return n.path }

func (n *node) ReadAt(p []byte, off int64) (int, error) {
	if off < 0 || off > int64(len(n.data)) {
		return 0, io.EOF
	}
	c := copy(p, n.data[off:])
	if c == 0 && len(p) > 0 {
		return 0, io.EOF
	}
	return c, nil
}

func (n *node) Close() error { return nil }

var _ fs.Node = (*node)(nil)
