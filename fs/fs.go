// Package fs defines the narrow filesystem collaborator interface the
// scheduler consumes (§6): resolve a path, read bytes, open, close. The
// filesystem implementation itself is out of scope (spec.md §1
// Non-goals).
package fs

import "io"

// Node is an open-able filesystem entry.
type Node interface {
	Path() string
	ReadAt(p []byte, off int64) (int, error)
	Close() error
}

// FS resolves paths to nodes and opens file descriptors on them.
type FS interface {
	ResolvePath(path string) (Node, error)
	Open(path string) (*FileDescriptor, error)
}

// FileDescriptor is one entry of a process's file-descriptor table
// (§3: "ordered sparse sequence indexed by small integers").
type FileDescriptor struct {
	Node   Node
	Offset int64
}

// Read reads from the descriptor's current offset and advances it.
func (fd *FileDescriptor) Read(p []byte) (int, error) {
	if fd.Node == nil {
		return 0, io.EOF
	}
	n, err := fd.Node.ReadAt(p, fd.Offset)
	fd.Offset += int64(n)
	return n, err
}

// Close closes the underlying node, if any.
func (fd *FileDescriptor) Close() error {
	if fd.Node == nil {
		return nil
	}
	return fd.Node.Close()
}

// Reserved device paths process creation opens fds 0/1/2 against
// (§4.7 step 7).
const (
	PathDevNull      = "/dev/null"
	PathDevKernelLog = "/dev/kernellog"
)
