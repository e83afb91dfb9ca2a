package scheduler

import (
	"encoding/binary"

	"github.com/lemon-kernel/nucleus/loader"
	"github.com/lemon-kernel/nucleus/mem"
)

// Auxiliary vector types written to the initial stack (§6's user-mode
// entry layout).
const (
	atNull     = 0
	atPHdr     = 3
	atPHEnt    = 4
	atPHNum    = 5
	atEntry    = 9
	atExecPath = 31
)

// populateUserStack lays out argv, envp, the auxiliary vector and argc
// on the user stack below top, following §6's "User-mode entry layout":
// from low to high, argc; argv[]; NULL; envp[]; NULL; auxv entries
// (PHDR, PHENT, PHNUM, ENTRY, optionally EXECPATH, then NULL); the
// string area occupies the decreasing addresses above all of that.
//
// It returns the resulting stack pointer (pointing at argc), 16-byte
// aligned.
func (s *Scheduler) populateUserStack(as mem.AddressSpace, top uintptr, argv, envp []string, execPath string, info loader.Info) uintptr {
	cursor := top

	writeString := func(str string) uintptr {
		b := append([]byte(str), 0)
		cursor -= uintptr(len(b))
		writeAt(as, cursor, b)
		return cursor
	}

	argvAddrs := make([]uintptr, len(argv))
	for i, a := range argv {
		argvAddrs[i] = writeString(a)
	}
	envpAddrs := make([]uintptr, len(envp))
	for i, e := range envp {
		envpAddrs[i] = writeString(e)
	}
	var execPathAddr uintptr
	hasExecPath := execPath != ""
	if hasExecPath {
		execPathAddr = writeString(execPath)
	}

	cursor &^= 0xF // align the string area boundary to 16 bytes

	// "adjusting for parity of the combined count" (§6): the qwords
	// still to come are argc, len(argv) pointers + NULL, len(envp)
	// pointers + NULL. If that count is odd, one padding qword keeps
	// the final argc address 16-byte aligned, since the auxv block
	// below is always a multiple of 16 bytes.
	combinedCount := 1 + (len(argv) + 1) + (len(envp) + 1)
	if combinedCount%2 != 0 {
		cursor -= 8
	}

	type auxEntry struct{ typ, value uint64 }
	aux := []auxEntry{
		{atPHdr, uint64(info.PHdrSegment)},
		{atPHEnt, uint64(info.PHEntrySize)},
		{atPHNum, uint64(info.PHNum)},
		{atEntry, uint64(info.Entry)},
	}
	if hasExecPath {
		aux = append(aux, auxEntry{atExecPath, uint64(execPathAddr)})
	}
	aux = append(aux, auxEntry{atNull, 0})

	auxSize := uintptr(len(aux) * 16)
	cursor -= auxSize
	auxBuf := make([]byte, auxSize)
	for i, e := range aux {
		binary.LittleEndian.PutUint64(auxBuf[i*16:], e.typ)
		binary.LittleEndian.PutUint64(auxBuf[i*16+8:], e.value)
	}
	writeAt(as, cursor, auxBuf)

	envpSize := uintptr((len(envp) + 1) * 8)
	cursor -= envpSize
	envpBuf := make([]byte, envpSize)
	for i, addr := range envpAddrs {
		binary.LittleEndian.PutUint64(envpBuf[i*8:], uint64(addr))
	}
	writeAt(as, cursor, envpBuf)

	argvSize := uintptr((len(argv) + 1) * 8)
	cursor -= argvSize
	argvBuf := make([]byte, argvSize)
	for i, addr := range argvAddrs {
		binary.LittleEndian.PutUint64(argvBuf[i*8:], uint64(addr))
	}
	writeAt(as, cursor, argvBuf)

	cursor -= 8
	argcBuf := make([]byte, 8)
	binary.LittleEndian.PutUint64(argcBuf, uint64(len(argv)))
	writeAt(as, cursor, argcBuf)

	return cursor
}

// writeAt writes through an AddressSpace's optional StackWriter
// capability, silently doing nothing if the address space does not
// implement it (§4.5's mem.StackWriter doc comment applies equally
// here: the register/pointer-level effects of stack construction still
// hold even when no byte-level write backs them).
func writeAt(as mem.AddressSpace, addr uintptr, data []byte) {
	if sw, ok := as.(mem.StackWriter); ok {
		_ = sw.WriteAt(addr, data)
	}
}
