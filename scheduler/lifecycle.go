package scheduler

import (
	"github.com/lemon-kernel/nucleus/fs"
	"github.com/lemon-kernel/nucleus/internal/process"
	"github.com/lemon-kernel/nucleus/internal/thread"
	"github.com/lemon-kernel/nucleus/klog"
)

// pageSize is the hardware page size everything in this file allocates
// in units of.
const pageSize = 4096

// userStackSize is the fixed size given to a new process's main-thread
// user stack (§4.7 step 3).
const userStackSize = 4 * 1024 * 1024

// trampolineCode is the fixed blob copied into every user process's
// address space at creation to serve as the signal-return trampoline
// (§4.5). Its exact instruction sequence is beneath this module's scope
// (real machine code lives in the assembler, not here); this is a
// minimal placeholder standing in for it.
var trampolineCode = []byte{0xCC, 0xC3} // int3; ret

// CreateProcess creates a process whose main thread starts directly in
// kernel mode at entry, with no address-space image to load. It is
// placed on the shortest run queue immediately, unlike CreateELFProcess
// which defers that to StartProcess (§4.7).
func (s *Scheduler) CreateProcess(entry uintptr) *process.Process {
	pid := s.nextProcessID()
	proc := process.NewEmpty(pid)

	as, err := s.memMgr.CreateAddressSpace()
	if err != nil {
		s.log.Error("failed to create address space", klog.F("pid", pid), klog.F("err", err))
	}
	proc.AddressSpace = as

	main := proc.MainThread()
	main.Registers.CS = kernelCS
	main.Registers.SS = kernelSS
	main.Registers.RIP = uint64(entry)

	top := s.allocKernelStack()
	main.KernelStackTop = top
	main.Registers.RSP = top
	main.Registers.RBP = top

	s.appendProcess(proc)
	s.placeOnShortestQueue(main)
	return proc
}

// CreateELFProcess implements §4.7's main construction path: verify the
// image, build an address space, load its segments, set up the user
// stack (argv/envp/auxv) and the reserved 0/1/2 descriptors, and copy
// in the signal trampoline. The returned process's main thread is not
// yet runnable; call StartProcess to enqueue it.
func (s *Scheduler) CreateELFProcess(image []byte, argv, envp []string, execPath string) (*process.Process, error) {
	if !s.ldr.Verify(image) {
		return nil, ErrInvalidImage
	}

	pid := s.nextProcessID()
	proc := process.NewEmpty(pid)

	as, err := s.memMgr.CreateAddressSpace()
	if err != nil {
		return nil, err
	}
	proc.AddressSpace = as

	main := proc.MainThread()
	main.Registers.CS = userCS
	main.Registers.SS = userSS
	main.Priority = thread.DefaultUserPriority
	main.DefaultTimeSlice = s.cfg.DefaultUserTimeSlice
	main.TimeSlice = main.DefaultTimeSlice

	top := s.allocKernelStack()
	main.KernelStackTop = top

	stackObj, err := as.AllocateAnonymousVMObject(userStackSize, 0, true)
	if err != nil {
		as.Destroy()
		return nil, err
	}
	if err := stackObj.HitAll(); err != nil {
		s.log.Warn("failed to pre-fault user stack", klog.F("pid", pid), klog.F("err", err))
	}
	main.UserStackBase = stackObj.Base()
	main.UserStackLimit = stackObj.Base() + stackObj.Size()

	info, err := s.ldr.LoadSegments(as, image, 0)
	if err != nil {
		as.Destroy()
		return nil, err
	}
	if info.Entry == 0 {
		as.Destroy()
		return nil, ErrLoadFailure
	}

	entry := info.Entry
	if info.InterpreterPath != "" {
		interpEntry, err := s.loadInterpreter(as, info.InterpreterPath)
		if err != nil {
			as.Destroy()
			return nil, err
		}
		entry = interpEntry
	}
	main.Registers.RIP = uint64(entry)

	sp := s.populateUserStack(as, main.UserStackLimit, argv, envp, execPath, info)
	main.Registers.RSP = uint64(sp)
	main.Registers.RBP = uint64(sp)

	s.openStandardDescriptors(proc)
	s.installSignalTrampoline(proc)

	s.appendProcess(proc)
	return proc, nil
}

// StartProcess places proc's main thread on a run queue, decoupled from
// creation so a caller can finish configuring the process (parent link,
// working directory, uid) before it becomes schedulable (§4.7).
func (s *Scheduler) StartProcess(proc *process.Process) {
	s.placeOnShortestQueue(proc.MainThread())
}

// CloneProcess implements the fork-like half of §4.7: a new process
// sharing parent's name, working directory and credentials, with its
// own copy-on-write address space and no threads copied over (the
// caller is expected to follow up with CreateChildThread for the
// cloned execution context, matching the original's split between
// address-space duplication and thread duplication).
func (s *Scheduler) CloneProcess(parent *process.Process) *process.Process {
	pid := s.nextProcessID()
	child := process.NewEmpty(pid)

	forked, err := parent.AddressSpace.Fork()
	if err != nil {
		s.log.Error("failed to fork address space", klog.F("parent", parent.ID), klog.F("err", err))
	}
	child.AddressSpace = forked

	child.Name = parent.Name
	child.WorkingDir = parent.WorkingDir
	child.UID = parent.UID
	child.EUID = parent.EUID
	child.Parent = parent
	parent.AddChild(child)

	s.appendProcess(child)
	return child
}

// CreateChildThread adds a new thread to proc starting at entry with
// the given stack pointer and segment selectors, places it on the
// shortest run queue, and returns it (§4.7).
func (s *Scheduler) CreateChildThread(proc *process.Process, entry, stack uintptr, cs, ss uint64) *thread.Thread {
	var created *thread.Thread
	created = proc.AddThread(func(id uint64) *thread.Thread {
		t := thread.New(id, proc)
		t.Registers.CS = cs
		t.Registers.SS = ss
		t.Registers.RIP = uint64(entry)
		t.Registers.RSP = uint64(stack)
		t.Registers.RBP = uint64(stack)
		t.UserStackLimit = stack
		t.KernelStackTop = s.allocKernelStack()
		return t
	})
	s.placeOnShortestQueue(created)
	return created
}

// allocKernelStack reserves and maps a fresh KernelStackSize-byte
// kernel stack and returns its top address.
func (s *Scheduler) allocKernelStack() uint64 {
	pages := thread.KernelStackSize / pageSize
	base, err := s.memMgr.AllocateContiguousVirtualPages(pages)
	if err != nil {
		s.log.Error("failed to reserve kernel stack", klog.F("err", err))
		return 0
	}
	for i := 0; i < pages; i++ {
		phys, err := s.memMgr.AllocatePhysicalBlock()
		if err != nil {
			s.log.Error("failed to allocate kernel stack page", klog.F("err", err))
			break
		}
		if err := s.memMgr.MapVirtualMemory4K(phys, base+uintptr(i*pageSize)); err != nil {
			s.log.Error("failed to map kernel stack page", klog.F("err", err))
			break
		}
	}
	return uint64(base) + uint64(pages*pageSize)
}

// openStandardDescriptors reserves fds 0/1/2 against /dev/null and
// /dev/kernellog (§4.7 step 7). A resolution failure is logged and
// leaves the slot reserved but empty rather than failing creation.
func (s *Scheduler) openStandardDescriptors(proc *process.Process) {
	open := func(id int, path string) {
		fd, err := s.fsys.Open(path)
		if err != nil {
			s.log.Warn("failed to open standard descriptor",
				klog.F("pid", proc.ID), klog.F("fd", id), klog.F("path", path), klog.F("err", err))
			return
		}
		proc.OpenFDAt(id, fd)
	}
	open(0, fs.PathDevNull)
	open(1, fs.PathDevKernelLog)
	open(2, fs.PathDevKernelLog)
}

// installSignalTrampoline maps a fixed one-page region into proc's
// address space and copies trampolineCode into it, recording its
// address as proc.SignalTrampoline (§4.5).
func (s *Scheduler) installSignalTrampoline(proc *process.Process) {
	obj, err := proc.AddressSpace.AllocateAnonymousVMObject(pageSize, 0, true)
	if err != nil {
		s.log.Error("failed to install signal trampoline", klog.F("pid", proc.ID), klog.F("err", err))
		return
	}
	if err := obj.HitAll(); err != nil {
		s.log.Warn("failed to pre-fault signal trampoline", klog.F("pid", proc.ID), klog.F("err", err))
	}
	proc.SignalTrampoline = obj.Base()
	writeAt(proc.AddressSpace, obj.Base(), trampolineCode)
}
