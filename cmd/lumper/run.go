package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/creack/pty"
	"github.com/google/uuid"
	"golang.org/x/sys/unix"
	"golang.org/x/term"
	"golang.org/x/time/rate"

	"github.com/kingsamchen/lumper/internal/cgroup"
	"github.com/kingsamchen/lumper/internal/containerstore"
	"github.com/kingsamchen/lumper/internal/lumperlog"
	"github.com/kingsamchen/lumper/internal/mountns"
	"github.com/kingsamchen/lumper/internal/procutil"
)

// idCollisionLimiter paces container-ID regeneration attempts so a run of
// unlucky UUID collisions (practically never, but the directory-exists
// check is cheap insurance) doesn't spin a tight retry loop.
var idCollisionLimiter = rate.NewLimiter(rate.Every(100*time.Millisecond), 5)

const maxIDAttempts = 20

func runCommand(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("run", flag.ContinueOnError)
	image := fs.String("i", "", "image name (required)")
	interactive := fs.Bool("it", false, "allocate a pseudo-TTY and attach stdio")
	detach := fs.Bool("d", false, "run the container detached, reparented to init")
	fs.BoolVar(detach, "detach", false, "run the container detached, reparented to init")
	memLimit := fs.String("m", "", "memory limit, kernel format (e.g. 100m)")
	cpus := fs.Int("cpus", 0, "number of CPUs")
	volume := fs.String("v", "", "HOST:CONTAINER bind mount")
	if err := fs.Parse(args); err != nil {
		return err
	}

	cmd := fs.Args()
	if len(cmd) == 0 {
		return errors.New("lumper run: CMD is mandatory")
	}
	if *image == "" {
		return errors.New("lumper run: -i IMAGE is mandatory")
	}
	if *interactive && *detach {
		return errors.New("lumper run: --it and -d are mutually exclusive")
	}

	var vol *mountns.VolumeMount
	if *volume != "" {
		parts := strings.SplitN(*volume, ":", 2)
		if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
			return fmt.Errorf("lumper run: -v value %q must be HOST:CONTAINER with two non-empty paths", *volume)
		}
		vol = &mountns.VolumeMount{HostPath: parts[0], ContainerPath: parts[1]}
	}

	imagePath := containerstore.ImagePath(*image)
	if info, err := os.Stat(imagePath); err != nil || !info.IsDir() {
		return fmt.Errorf("lumper run: image %q not found at %s", *image, imagePath)
	}

	id, err := allocateContainerID(ctx)
	if err != nil {
		return err
	}

	plan := mountns.NewPlan(shortHostname(id), containerstore.RootfsPath(id), imagePath,
		containerstore.CowRWPath(id), containerstore.CowWorkdirPath(id), vol, true)

	if err := os.MkdirAll(containerstore.RootfsPath(id), 0755); err != nil {
		return fmt.Errorf("lumper run: create rootfs dir: %w", err)
	}
	if err := os.MkdirAll(containerstore.CowRWPath(id), 0755); err != nil {
		return fmt.Errorf("lumper run: create cow_rw dir: %w", err)
	}
	if err := os.MkdirAll(containerstore.CowWorkdirPath(id), 0755); err != nil {
		return fmt.Errorf("lumper run: create cow_workdir dir: %w", err)
	}

	opts := procutil.Options{
		CloneFlags: unix.CLONE_NEWUTS | unix.CLONE_NEWPID | unix.CLONE_NEWNS | unix.CLONE_NEWNET | unix.CLONE_NEWIPC,
		Detach:     *detach,
		PreExec:    plan,
	}

	diagR, diagW, err := os.Pipe()
	if err != nil {
		return fmt.Errorf("lumper run: create diagnostic pipe: %w", err)
	}
	opts.ExtraFiles = []*os.File{diagW}

	var ptmx, pts *os.File
	var restoreTerm func()
	if *interactive {
		ptmx, pts, err = pty.Open()
		if err != nil {
			return fmt.Errorf("lumper run: open pty: %w", err)
		}
		opts.Stdio[0] = procutil.UseFD(int(pts.Fd()))
		opts.Stdio[1] = procutil.UseFD(int(pts.Fd()))
		opts.Stdio[2] = procutil.UseFD(int(pts.Fd()))

		if term.IsTerminal(int(os.Stdin.Fd())) {
			oldState, err := term.MakeRaw(int(os.Stdin.Fd()))
			if err == nil {
				restoreTerm = func() { _ = term.Restore(int(os.Stdin.Fd()), oldState) }
			}
			_ = pty.InheritSize(os.Stdin, ptmx)
		}
	} else if *detach {
		logFile, err := os.OpenFile(containerstore.LogPath(id), os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0644)
		if err != nil {
			return fmt.Errorf("lumper run: create log file: %w", err)
		}
		defer logFile.Close()
		opts.Stdio[0] = procutil.Null(procutil.DirIn)
		opts.Stdio[1] = procutil.UseFD(int(logFile.Fd()))
		opts.Stdio[2] = procutil.UseFD(int(logFile.Fd()))
	}

	cpuCfg, err := cgroup.CPUFromCount(*cpus)
	if err != nil {
		return fmt.Errorf("lumper run: %w", err)
	}
	resourceCfg := cgroup.ResourceConfig{MemoryLimit: *memLimit, CPU: cpuCfg}
	mgr, err := cgroup.NewManager(id, resourceCfg, lumperlog.FromContext(ctx))
	if err != nil {
		return fmt.Errorf("lumper run: set up cgroups: %w", err)
	}

	proc, err := procutil.Spawn(cmd, opts, lumperlog.FromContext(ctx))
	diagW.Close()
	if ptmx != nil {
		pts.Close()
	}
	if err != nil {
		mgr.Close()
		reportMountFailure(err, diagR)
		return fmt.Errorf("lumper run: spawn: %w", err)
	}
	diagR.Close()

	pid := proc.Pid()
	if detachedPID, ok := proc.DetachedPID(); ok {
		pid = detachedPID
	}

	if err := mgr.Apply(pid); err != nil {
		return fmt.Errorf("lumper run: apply cgroup limits: %w", err)
	}

	if err := containerstore.Save(containerstore.NewInfo(id, *image, strings.Join(cmd, " "), pid)); err != nil {
		return fmt.Errorf("lumper run: save container metadata: %w", err)
	}

	if *detach {
		fmt.Println(id)
		_, err := proc.Wait()
		return err
	}

	var status procutil.ExitStatus
	if *interactive {
		status, err = runInteractiveIO(proc, ptmx, restoreTerm)
	} else {
		status, err = proc.Wait()
	}
	mgr.Close()
	if markErr := containerstore.MarkStopped(id); markErr != nil {
		lumperlog.FromContext(ctx).Warn("lumper run: mark stopped failed", "error", markErr)
	}
	if err != nil {
		return err
	}
	if !status.Exited || status.Code != 0 {
		os.Exit(exitCodeFor(status))
	}
	return nil
}

func exitCodeFor(status procutil.ExitStatus) int {
	if status.Exited {
		return status.Code
	}
	return 128 + int(status.Signal)
}

func runInteractiveIO(proc *procutil.Process, ptmx *os.File, restoreTerm func()) (procutil.ExitStatus, error) {
	defer ptmx.Close()
	if restoreTerm != nil {
		defer restoreTerm()
	}

	winch := make(chan os.Signal, 1)
	signal.Notify(winch, syscall.SIGWINCH)
	defer signal.Stop(winch)
	go func() {
		for range winch {
			_ = pty.InheritSize(os.Stdin, ptmx)
		}
	}()

	go func() { _, _ = io.Copy(ptmx, os.Stdin) }()
	done := make(chan struct{})
	go func() {
		_, _ = io.Copy(os.Stdout, ptmx)
		close(done)
	}()

	status, err := proc.Wait()
	<-done
	return status, err
}

func allocateContainerID(ctx context.Context) (string, error) {
	for attempt := 0; attempt < maxIDAttempts; attempt++ {
		id := lastUUIDSegment(uuid.New().String())
		if _, err := os.Stat(containerstore.ContainerPath(id)); os.IsNotExist(err) {
			return id, nil
		}
		if err := idCollisionLimiter.Wait(ctx); err != nil {
			return "", fmt.Errorf("lumper run: rate limiter: %w", err)
		}
	}
	return "", errors.New("lumper run: could not allocate a unique container id")
}

func lastUUIDSegment(id string) string {
	idx := strings.LastIndex(id, "-")
	if idx < 0 {
		return id
	}
	return id[idx+1:]
}

func shortHostname(id string) string {
	if len(id) > 12 {
		return id[:12]
	}
	return id
}

// reportMountFailure reads the containment hook's diagnostic pipe, logging
// the specific step that failed when the spawn failure was a
// KindPreExecHook failure and a diagnostic record is available.
func reportMountFailure(spawnErr error, diagR *os.File) {
	defer diagR.Close()
	var se *procutil.SpawnError
	if !errors.As(spawnErr, &se) || se.Kind != procutil.KindPreExecHook {
		return
	}
	step, errno, ok := mountns.ReadDiagnostic(diagR)
	if !ok {
		return
	}
	slog.Default().Error("lumper run: containment step failed", "step", step.String(), "errno", errno)
}
