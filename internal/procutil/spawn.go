package procutil

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"runtime"
	"syscall"

	"github.com/kingsamchen/lumper/internal/fdutil"
)

// ErrEmptyArgv is returned by Spawn without performing any clone, per
// spec.md's precondition that an empty argv is a caller error, not a
// runtime one.
var ErrEmptyArgv = errors.New("procutil: argv must not be empty")

// Spawn launches argv[0] with argv as its arguments, through a self-reexec
// of the running binary (/proc/self/exe). A bare clone(2) of a
// multithreaded Go process cannot safely run further Go code before exec;
// self-reexec produces a fresh, fully initialized Go runtime in the child
// that is safe to run PreExec hooks in, matching the pattern used by
// opencontainers/runc's "init" re-exec and the simpler tinydock/vme50
// container launchers.
//
// argv[0] is resolved against PATH if it is not already absolute, mirroring
// exec.LookPath semantics; the resolved path, not the original argv[0], is
// what the child ultimately execs.
func Spawn(argv []string, opts Options, logger *slog.Logger) (*Process, error) {
	if len(argv) == 0 {
		return nil, ErrEmptyArgv
	}
	if logger == nil {
		logger = slog.Default()
	}

	target, err := resolveTarget(argv[0])
	if err != nil {
		return nil, fmt.Errorf("procutil: resolve %q: %w", argv[0], err)
	}
	argv = append([]string{target}, argv[1:]...)

	// The error and config pipes are the two fixed-fd handoffs component B
	// relies on (spec.md section 2's "Scoped FD handle" is the leaf every
	// other component builds on); each end is owned by an fdutil.FD from
	// the moment it's created, so every exit path below releases through
	// one consistent mechanism instead of ad hoc os.File.Close calls.
	errR, errW, err := os.Pipe()
	if err != nil {
		return nil, fmt.Errorf("procutil: create error pipe: %w", err)
	}
	errRH, errWH := fdutil.FromFile(errR), fdutil.FromFile(errW)
	defer errWH.Release() // released again below after Start; Release is idempotent

	cfgR, cfgW, err := os.Pipe()
	if err != nil {
		errRH.Release()
		return nil, fmt.Errorf("procutil: create config pipe: %w", err)
	}
	cfgRH, cfgWH := fdutil.FromFile(cfgR), fdutil.FromFile(cfgW)

	stdioParent, stdioChild, cleanupStdio, err := resolveStdio(opts.Stdio)
	if err != nil {
		errRH.Release()
		cfgRH.Release()
		cfgWH.Release()
		return nil, err
	}

	req := &initRequest{
		Argv:           argv,
		Detach:         opts.Detach,
		ExtraFileCount: len(opts.ExtraFiles),
	}
	for i, a := range opts.Stdio {
		req.Stdio[i] = stdioSpec{Kind: a.kind, Dir: a.dir}
	}
	if hm, ok := opts.PreExec.(HookMarshaler); ok {
		data, err := hm.Marshal()
		if err != nil {
			cleanupStdio()
			errRH.Release()
			cfgRH.Release()
			cfgWH.Release()
			return nil, fmt.Errorf("procutil: marshal pre-exec hook: %w", err)
		}
		req.HookKind = hm.HookKind()
		req.PreExecData = data
	}

	payload, err := req.marshal()
	if err != nil {
		cleanupStdio()
		errRH.Release()
		cfgRH.Release()
		cfgWH.Release()
		return nil, fmt.Errorf("procutil: marshal init request: %w", err)
	}

	cmd := exec.Command("/proc/self/exe", lumperInitArg)
	cmd.Stdin, cmd.Stdout, cmd.Stderr = stdioChild[0], stdioChild[1], stdioChild[2]
	cmd.ExtraFiles = append([]*os.File{errW, cfgR}, opts.ExtraFiles...)
	cmd.SysProcAttr = &syscall.SysProcAttr{
		Cloneflags: opts.CloneFlags | uintptr(syscall.SIGCHLD),
	}

	if err := cmd.Start(); err != nil {
		cleanupStdio()
		errRH.Release()
		errWH.Release()
		cfgRH.Release()
		cfgWH.Release()
		return nil, fmt.Errorf("procutil: start self-reexec: %w", err)
	}

	// cmd.Start has duplicated the child-side stdio descriptors into the
	// new process; the parent's copies must be closed now, not just on an
	// error path, or a pipe's write end kept open in the parent forever
	// prevents the read end from ever seeing EOF once the child exits.
	cleanupStdio()

	// The config payload is written only after Start so a slow child never
	// blocks the parent inside Start itself; the child blocks reading fd 4
	// until this write lands.
	if _, err := cfgW.Write(payload); err != nil {
		logger.Error("procutil: write init request failed", "err", err)
	}
	cfgWH.Release()
	cfgRH.Release() // parent's copy of the child's fd; the child keeps its own via ExtraFiles

	// The write end of the error pipe must be closed in the parent before
	// the read, or the read will block forever: the child's own copy,
	// inherited via ExtraFiles, is what keeps the pipe open until exec (or
	// an explicit write) closes it.
	errWH.Release()

	var detachedPID int
	var spawnErr *SpawnError
	for {
		rec, ok := readChildError(errR)
		if !ok {
			break
		}
		if SpawnErrorKind(rec.Kind) == KindDetachedPID {
			detachedPID = int(rec.Errno)
			continue
		}
		spawnErr = &SpawnError{Kind: SpawnErrorKind(rec.Kind), Errno: syscall.Errno(rec.Errno)}
		break
	}
	errRH.Release()

	if spawnErr != nil {
		// Reap the intermediate so it doesn't linger as a zombie; its exit
		// status carries no information once we already have the error.
		_, _ = cmd.Process.Wait()
		return nil, spawnErr
	}

	p := newProcess(cmd.Process.Pid, cmd.Process, stdioParent, logger)
	p.detachedPID = detachedPID
	return p, nil
}

// resolveTarget mirrors execvp's own PATH-search rule: an already-absolute
// name is used as-is, a bare name is searched for on PATH. It does not stat
// the resolved absolute path first — a missing binary is discovered by the
// real exec(2) call in the child and reported back as a SpawnError with
// KindExecFailure, the same way the original's run_child_executable lets
// execvp itself fail instead of pre-checking.
func resolveTarget(name string) (string, error) {
	if len(name) > 0 && name[0] == '/' {
		return name, nil
	}
	return exec.LookPath(name)
}

// resolveStdio turns the three StdioAction values into the *os.File ends
// os/exec needs (stdioChild, wired into cmd.Stdin/Stdout/Stderr) and the
// parent-kept ends exposed on Process (stdioParent, nil for non-pipe
// slots). cleanup closes whichever ends remain the parent's responsibility
// if Spawn aborts before Start.
func resolveStdio(actions [3]StdioAction) (stdioParent, stdioChild [3]*os.File, cleanup func(), err error) {
	var toClose []*os.File
	cleanup = func() {
		for _, f := range toClose {
			if f != nil {
				f.Close()
			}
		}
	}

	stdDefaults := [3]*os.File{os.Stdin, os.Stdout, os.Stderr}

	for i, a := range actions {
		switch a.kind {
		case stdioInherit:
			stdioChild[i] = stdDefaults[i]
		case stdioNull:
			mode := os.O_RDONLY
			if a.dir == DirOut {
				mode = os.O_WRONLY
			}
			f, oerr := os.OpenFile(os.DevNull, mode, 0)
			if oerr != nil {
				cleanup()
				return stdioParent, stdioChild, cleanup, fmt.Errorf("procutil: open /dev/null: %w", oerr)
			}
			toClose = append(toClose, f)
			stdioChild[i] = f
		case stdioFD:
			// os.NewFile wraps a borrowed descriptor the caller still owns
			// (e.g. a pty slave or a log file); disarm its finalizer so a
			// GC of this *os.File, once cmd is no longer referenced, can't
			// close a descriptor this package doesn't own.
			f := os.NewFile(uintptr(a.fd), fmt.Sprintf("fd%d", a.fd))
			runtime.SetFinalizer(f, nil)
			stdioChild[i] = f
		case stdioPipe:
			r, w, perr := os.Pipe()
			if perr != nil {
				cleanup()
				return stdioParent, stdioChild, cleanup, fmt.Errorf("procutil: create stdio pipe: %w", perr)
			}
			if a.dir == DirIn {
				// Child reads: child gets r, parent keeps w.
				toClose = append(toClose, r)
				stdioChild[i] = r
				stdioParent[i] = w
			} else {
				toClose = append(toClose, w)
				stdioChild[i] = w
				stdioParent[i] = r
			}
		}
	}
	return stdioParent, stdioChild, cleanup, nil
}
