package procutil

import "os"

// Direction distinguishes which way data flows through a pipe or /dev/null
// stdio action.
type Direction int

const (
	// DirIn means the child reads from this slot (stdin).
	DirIn Direction = iota
	// DirOut means the child writes to this slot (stdout/stderr).
	DirOut
)

type stdioKind int

const (
	stdioInherit stdioKind = iota
	stdioNull
	stdioFD
	stdioPipe
)

// StdioAction is a tagged sum over {inherit, null, fd, pipe}, per
// spec.md Design Note 2: a sum type instead of an option-bag of booleans.
// Construct with Inherit, Null, UseFD, or Pipe.
type StdioAction struct {
	kind stdioKind
	dir  Direction
	fd   int
}

// Inherit leaves the slot connected to the launcher's own descriptor. This
// is the default zero value of StdioAction.
func Inherit() StdioAction { return StdioAction{kind: stdioInherit} }

// Null opens /dev/null with the direction-appropriate access mode.
func Null(dir Direction) StdioAction { return StdioAction{kind: stdioNull, dir: dir} }

// UseFD dups an existing descriptor into the slot.
func UseFD(fd int) StdioAction { return StdioAction{kind: stdioFD, fd: fd} }

// Pipe creates a pipe and exposes the parent end on the resulting Process.
func Pipe(dir Direction) StdioAction { return StdioAction{kind: stdioPipe, dir: dir} }

// PreExecHook is run inside the (already self-reexec'd, fully initialized)
// child after stdio setup and before the final exec into the target
// program. A non-nil error from Run aborts the spawn with KindPreExecHook.
//
// Implementations must not assume a Go context with other goroutines still
// running: by the time Run is called, the child is single-threaded and
// about to either exec or die. The interface exists so internal/procutil
// never needs to import internal/mountns; callers wire a *mountns.Plan in.
type PreExecHook interface {
	Run() error
}

// Options configures Spawn. The zero value spawns with all stdio
// inherited, no namespaces, no hook, and no detach.
type Options struct {
	// CloneFlags is a subset of {CLONE_NEWUTS, CLONE_NEWPID, CLONE_NEWNS,
	// CLONE_NEWNET, CLONE_NEWIPC}. SIGCHLD is added unconditionally by
	// Spawn, matching spec.md's "the launcher adds the child-termination
	// signal bit unconditionally".
	CloneFlags uintptr

	// Stdio[i] configures file descriptor i in the child.
	Stdio [3]StdioAction

	// Detach, when true, makes Spawn perform a double self-reexec so the
	// target is reparented to init. Spawn does not reap the intermediate
	// child itself: the returned Process refers to it, and the caller still
	// owes that Process a Wait.
	Detach bool

	// PreExec, if non-nil, runs in the child before the final exec.
	PreExec PreExecHook

	// ExtraFiles are inherited by the child starting at fd 5 (fd 3 and 4
	// are always the error pipe and config pipe). A PreExecHook that needs
	// its own side channel across the self-reexec boundary - such as
	// internal/mountns's diagnostic pipe - is passed its write end here by
	// the caller, which also keeps the matching read end for itself.
	ExtraFiles []*os.File
}
