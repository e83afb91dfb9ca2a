package scheduler

import (
	"errors"
	"io"

	"github.com/lemon-kernel/nucleus/klog"
	"github.com/lemon-kernel/nucleus/mem"
)

// interpreterLoadBias is the fixed high virtual address a dynamic
// interpreter is loaded at, well clear of a typical executable's own
// segments (§4.7 step 5).
const interpreterLoadBias = 0x7f0000000000

// ErrInterpreterMissing is returned when an executable names a dynamic
// interpreter that cannot be resolved through the filesystem
// collaborator. The original treats this as fatal; a library boundary
// reports it as an error instead of panicking so an embedder can decide
// how to fail the exec.
var ErrInterpreterMissing = errors.New("scheduler: dynamic interpreter not resolvable")

// loadInterpreter resolves interpreterPath through the filesystem
// collaborator, reads it whole, and loads it into space at a fixed high
// bias, returning its entry point (§4.7 step 5).
func (s *Scheduler) loadInterpreter(space mem.AddressSpace, interpreterPath string) (uintptr, error) {
	node, err := s.fsys.ResolvePath(interpreterPath)
	if err != nil {
		s.log.Error("dynamic interpreter not found", klog.F("path", interpreterPath), klog.F("err", err))
		return 0, ErrInterpreterMissing
	}
	defer node.Close()

	image, err := io.ReadAll(&nodeReader{node: node})
	if err != nil {
		return 0, ErrInterpreterMissing
	}

	if !s.ldr.Verify(image) {
		return 0, ErrInvalidImage
	}
	info, err := s.ldr.LoadSegments(space, image, interpreterLoadBias)
	if err != nil {
		return 0, err
	}
	if info.Entry == 0 {
		return 0, ErrLoadFailure
	}
	return info.Entry, nil
}

// nodeReader adapts fs.Node's ReadAt to io.Reader for io.ReadAll.
type nodeReader struct {
	node interface {
		ReadAt(p []byte, off int64) (int, error)
	}
	off int64
}

func (r *nodeReader) Read(p []byte) (int, error) {
	n, err := r.node.ReadAt(p, r.off)
	r.off += int64(n)
	return n, err
}
