package procutil

import (
	"fmt"
	"log/slog"
	"os"
	"runtime"
	"sync/atomic"
	"syscall"
)

type procState int32

const (
	stateNotStarted procState = iota
	stateRunning
	stateExited
)

// ExitStatus is a tagged union over {exited(code), killed(signal)}, per
// spec.md section 3.
type ExitStatus struct {
	Exited bool
	Code   int
	Signal syscall.Signal
}

func (s ExitStatus) String() string {
	if s.Exited {
		return fmt.Sprintf("exited(%d)", s.Code)
	}
	return fmt.Sprintf("killed(%v)", s.Signal)
}

// exitStatusFromWaitStatus converts a syscall.WaitStatus. A status that is
// neither exited nor signaled is a fatal internal error per spec.md
// section 7 ("Exit-status interpretation failure"): the process aborts,
// since waitpid is documented to always produce one or the other for a
// status change we ourselves waited for.
func exitStatusFromWaitStatus(ws syscall.WaitStatus) ExitStatus {
	switch {
	case ws.Exited():
		return ExitStatus{Exited: true, Code: ws.ExitStatus()}
	case ws.Signaled():
		return ExitStatus{Exited: false, Signal: ws.Signal()}
	default:
		panic(fmt.Sprintf("procutil: wait status is neither exited nor signaled: %v", ws))
	}
}

// Process owns a child's PID and any parent-side pipe ends for its stdio.
// It is not safe for concurrent use from multiple goroutines without
// external synchronization; ownership is expected to be single-threaded,
// matching base::subprocess in the original implementation.
type Process struct {
	pid      int
	state    atomic.Int32
	proc     *os.Process
	stdio    [3]*os.File // parent-side pipe ends, nil when not piped
	waitOnce atomic.Bool
	logger   *slog.Logger

	// detachedPID is the grandchild's PID when this Process represents a
	// detached spawn's intermediate. Zero when Detach was not requested.
	detachedPID int
}

// DetachedPID returns the grandchild's PID and true when this Process was
// produced by a Detach spawn. The caller is responsible for persisting it
// (e.g. to a container's metadata) since this Process's own Wait only
// reaps the short-lived intermediate, not the detached grandchild.
func (p *Process) DetachedPID() (int, bool) {
	return p.detachedPID, p.detachedPID != 0
}

func newProcess(pid int, proc *os.Process, stdio [3]*os.File, logger *slog.Logger) *Process {
	p := &Process{
		pid:    pid,
		proc:   proc,
		stdio:  stdio,
		logger: logger,
	}
	p.state.Store(int32(stateRunning))

	// Dropping a running handle without Wait is a programmer error that
	// must abort the process, per spec.md section 3. A finalizer is the
	// closest Go analogue to a C++ destructor noticing child_state_ ==
	// running; it only fires if the *Process is truly unreachable, i.e.
	// the caller really did lose track of it.
	runtime.SetFinalizer(p, func(p *Process) {
		if procState(p.state.Load()) == stateRunning {
			if p.logger != nil {
				p.logger.Error("procutil: Process garbage collected while still running without Wait",
					"pid", p.pid)
			}
			panic(fmt.Sprintf("procutil: Process for pid %d dropped while running", p.pid))
		}
	})
	return p
}

// Pid returns the child's PID. Only meaningful while Wait has not yet been
// called.
func (p *Process) Pid() int {
	return p.pid
}

// StdinPipe, StdoutPipe, StderrPipe return the parent-side end of a Pipe
// stdio action, or nil if that slot was not configured as a pipe.
func (p *Process) StdinPipe() *os.File  { return p.stdio[0] }
func (p *Process) StdoutPipe() *os.File { return p.stdio[1] }
func (p *Process) StderrPipe() *os.File { return p.stdio[2] }

// Wait blocks until the child exits, restarting on EINTR (handled
// internally by os.Process.Wait), and transitions the handle to exited.
func (p *Process) Wait() (ExitStatus, error) {
	p.waitOnce.Store(true)

	state, err := p.proc.Wait()
	p.state.Store(int32(stateExited))
	if err != nil {
		return ExitStatus{}, fmt.Errorf("procutil: wait pid %d: %w", p.pid, err)
	}

	ws, ok := state.Sys().(syscall.WaitStatus)
	if !ok {
		panic("procutil: unsupported platform, need syscall.WaitStatus")
	}

	if got := state.Pid(); got != p.pid {
		if p.logger != nil {
			p.logger.Warn("procutil: waited pid mismatch", "expected", p.pid, "got", got)
		}
	}

	return exitStatusFromWaitStatus(ws), nil
}

// Release marks the handle as exited and removes the dropped-while-running
// check without waiting for the child, which is left unreaped. Spawn's
// detach path does not call it: a detached spawn's Process still needs
// Wait.
func (p *Process) Release() {
	p.state.Store(int32(stateExited))
	runtime.SetFinalizer(p, nil)
}
