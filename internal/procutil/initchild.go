package procutil

import (
	"errors"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"syscall"

	"golang.org/x/sys/unix"
)

// IsInitArgv reports whether args (typically os.Args) identifies this
// process as the self-reexec'd child side of a Spawn. cmd/lumper's main
// must check this before doing any flag parsing or subcommand dispatch,
// and call RunChild instead when it's true.
func IsInitArgv(args []string) bool {
	return len(args) >= 2 && args[1] == lumperInitArg
}

// RunChild is the entrypoint for the self-reexec'd side of Spawn. On
// success it never returns: the process image is replaced by unix.Exec.
// On failure it reports the failure over fd 3 (the error pipe, inherited
// via the parent's ExtraFiles) and returns an exit code for main to pass
// to os.Exit.
func RunChild(decodeHook DecodeHookFunc) int {
	errW := os.NewFile(3, "lumper-errpipe")
	defer errW.Close()

	cfgR := os.NewFile(4, "lumper-cfgpipe")
	data, err := io.ReadAll(cfgR)
	cfgR.Close()
	if err != nil {
		writeChildError(errW, KindPrepareStdio, errnoOf(err))
		return 1
	}

	req, err := unmarshalInitRequest(data)
	if err != nil {
		writeChildError(errW, KindPrepareStdio, errnoOf(err))
		return 1
	}

	if req.Detach {
		return runDetach(req, errW)
	}
	return runFinal(req, errW, decodeHook)
}

// runDetach spawns a grandchild carrying the same request with Detach
// cleared, reports its PID back through errW, and returns immediately.
// The grandchild keeps running after this process exits, orphaned into
// init's care, exactly reproducing the "double clone" reparenting idiom
// without a second set of namespace flags: namespaces persist across a
// plain fork+exec of the same process tree.
func runDetach(req *initRequest, errW *os.File) int {
	relayed := *req
	relayed.Detach = false
	payload, err := relayed.marshal()
	if err != nil {
		writeChildError(errW, KindDetachCloneFailure, errnoOf(err))
		return 1
	}

	errR2, errW2, err := os.Pipe()
	if err != nil {
		writeChildError(errW, KindDetachCloneFailure, errnoOf(err))
		return 1
	}
	cfgR2, cfgW2, err := os.Pipe()
	if err != nil {
		errR2.Close()
		errW2.Close()
		writeChildError(errW, KindDetachCloneFailure, errnoOf(err))
		return 1
	}

	extra := make([]*os.File, 0, req.ExtraFileCount)
	for i := 0; i < req.ExtraFileCount; i++ {
		extra = append(extra, os.NewFile(uintptr(5+i), "lumper-extrafile"))
	}

	cmd := exec.Command("/proc/self/exe", lumperInitArg)
	cmd.Stdin, cmd.Stdout, cmd.Stderr = os.Stdin, os.Stdout, os.Stderr
	cmd.ExtraFiles = append([]*os.File{errW2, cfgR2}, extra...)
	cmd.SysProcAttr = &syscall.SysProcAttr{}

	if err := cmd.Start(); err != nil {
		errR2.Close()
		errW2.Close()
		cfgR2.Close()
		cfgW2.Close()
		writeChildError(errW, KindDetachCloneFailure, errnoOf(err))
		return 1
	}

	if _, err := cfgW2.Write(payload); err != nil {
		slog.Default().Error("procutil: write relayed init request failed", "err", err)
	}
	cfgW2.Close()
	cfgR2.Close()
	errW2.Close()

	rec, ok := readChildError(errR2)
	errR2.Close()
	if ok {
		// The grandchild failed before it could exec; forward the failure
		// upward so the original launcher sees a real error instead of a
		// falsely successful detach.
		_, _ = cmd.Process.Wait()
		writeChildError(errW, SpawnErrorKind(rec.Kind), int(rec.Errno))
		return 1
	}

	writeChildError(errW, KindDetachedPID, cmd.Process.Pid)
	return 0
}

// runFinal runs the pre-exec hook, if any, then replaces this process
// image with the target command. It only returns on failure.
func runFinal(req *initRequest, errW *os.File, decodeHook DecodeHookFunc) int {
	if req.HookKind != "" {
		if decodeHook == nil {
			writeChildError(errW, KindPreExecHook, int(syscall.EINVAL))
			return 1
		}
		hook, err := decodeHook(req.HookKind, req.PreExecData)
		if err != nil {
			writeChildError(errW, KindPreExecHook, errnoOf(err))
			return 1
		}
		if err := hook.Run(); err != nil {
			writeChildError(errW, KindPreExecHook, errnoOf(err))
			return 1
		}
	}

	if len(req.Argv) == 0 {
		writeChildError(errW, KindExecFailure, int(syscall.EINVAL))
		return 1
	}

	env := req.Env
	if env == nil {
		env = os.Environ()
	}

	// cmd.Start's ExtraFiles handling clears FD_CLOEXEC on fd 3 so it
	// survives this process's own self-reexec; it must be re-armed before
	// the final exec into the target program, or the target inherits the
	// error-pipe write end and keeps it open for its entire lifetime,
	// which defeats the parent's "0-length read at exec time" success
	// signal (spec.md section 4.B step 7) and, for Detach, stalls
	// runDetach's readChildError until the detached target itself exits.
	syscall.CloseOnExec(int(errW.Fd()))

	err := unix.Exec(req.Argv[0], req.Argv, env)
	// unix.Exec returns only on failure; a successful exec replaces this
	// process image, closing errW via CLOEXEC and signaling success to the
	// parent as a zero-length read.
	writeChildError(errW, KindExecFailure, errnoOf(err))
	return 1
}

func errnoOf(err error) int {
	var errno syscall.Errno
	if errors.As(err, &errno) {
		return int(errno)
	}
	return int(syscall.EIO)
}
