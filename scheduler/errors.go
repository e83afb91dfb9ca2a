package scheduler

import (
	"errors"

	"github.com/lemon-kernel/nucleus/internal/handle"
)

// Error kinds returned by core operations (§7).
var (
	// ErrInvalidImage is returned when the loader collaborator rejects
	// an executable image.
	ErrInvalidImage = errors.New("scheduler: invalid executable image")

	// ErrLoadFailure is returned when the loader returns a zero entry
	// point; creation tears down any partially constructed state
	// before reporting this.
	ErrLoadFailure = errors.New("scheduler: loader returned no entry point")

	// ErrAlreadyTerminating is returned by EndProcess when called on a
	// process that is already dying or dead. The original C++ asserts
	// this precondition instead; a scheduler library returns an error
	// so a caller mistake here cannot bring the whole kernel down.
	ErrAlreadyTerminating = errors.New("scheduler: process is already dying or dead")

	// ErrUnknownProcess is returned by lookups that find nothing.
	ErrUnknownProcess = errors.New("scheduler: no such process")
)

// re-exported handle errors, so callers do not need to import
// internal/handle directly to use errors.Is against them.
var (
	ErrInvalidHandle = handle.ErrInvalidHandle
	ErrVacatedHandle = handle.ErrVacatedHandle
)
