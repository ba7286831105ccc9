package cgroup

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"

	specs "github.com/opencontainers/runtime-spec/specs-go"
)

// subsystem is one managed cgroup v1 controller directory. Construction
// creates the directory and writes whatever limit files apply; apply
// attaches a PID; remove tears the directory down, tolerating ENOENT.
type subsystem interface {
	name() string
	path() string
	apply(pid int) error
	remove() error
}

// readCFSPeriodUs reads cpu.cfs_period_us from mnt, the cpu controller's
// top-level mountpoint; a freshly created per-container directory starts
// out inheriting this same value, so resource.CPUFromCount can compute
// quota against it before that directory even exists.
func readCFSPeriodUs(mnt string) (uint64, error) {
	b, err := os.ReadFile(filepath.Join(mnt, "cpu.cfs_period_us"))
	if err != nil {
		return 0, err
	}
	return strconv.ParseUint(strings.TrimSpace(string(b)), 10, 64)
}

type memorySubsystem struct {
	dir string
}

// newMemorySubsystem writes limit into memory.limit_in_bytes exactly as
// given — no unit parsing, no normalization. Whether the kernel accepts a
// suffixed value like "100m" on the target distribution is the caller's
// problem, not this package's, per spec.md's resolution of that Open
// Question.
func newMemorySubsystem(name, limit string) (*memorySubsystem, error) {
	mnt, err := FindMountpoint("memory")
	if err != nil {
		return nil, &Error{Subsystem: "memory", Op: "find mountpoint", Err: err}
	}
	dir := filepath.Join(mnt, name)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, &Error{Subsystem: "memory", Op: "mkdir", Err: err}
	}

	limitFile := filepath.Join(dir, "memory.limit_in_bytes")
	if err := os.WriteFile(limitFile, []byte(limit), 0644); err != nil {
		// RAII-style rollback: undo the mkdir since construction failed
		// partway through.
		_ = os.Remove(dir)
		return nil, &Error{Subsystem: "memory", Op: "write memory.limit_in_bytes", Err: err}
	}
	return &memorySubsystem{dir: dir}, nil
}

func (s *memorySubsystem) name() string { return "memory" }
func (s *memorySubsystem) path() string { return s.dir }

func (s *memorySubsystem) apply(pid int) error {
	tasksFile := filepath.Join(s.dir, "tasks")
	if err := os.WriteFile(tasksFile, []byte(strconv.Itoa(pid)), 0644); err != nil {
		return &Error{Subsystem: "memory", Op: "write tasks", Err: err}
	}
	return nil
}

func (s *memorySubsystem) remove() error {
	if err := os.Remove(s.dir); err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

type cpuSubsystem struct {
	dir string
}

func newCPUSubsystem(name string, cpu *specs.LinuxCPU) (*cpuSubsystem, error) {
	if cpu.Quota == nil {
		return nil, &Error{Subsystem: "cpu", Op: "validate", Err: errNilLimit}
	}

	mnt, err := FindMountpoint("cpu")
	if err != nil {
		return nil, &Error{Subsystem: "cpu", Op: "find mountpoint", Err: err}
	}
	dir := filepath.Join(mnt, name)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, &Error{Subsystem: "cpu", Op: "mkdir", Err: err}
	}

	if cpu.Period != nil {
		periodFile := filepath.Join(dir, "cpu.cfs_period_us")
		if err := os.WriteFile(periodFile, []byte(strconv.FormatUint(*cpu.Period, 10)), 0644); err != nil {
			_ = os.Remove(dir)
			return nil, &Error{Subsystem: "cpu", Op: "write cpu.cfs_period_us", Err: err}
		}
	}

	quotaFile := filepath.Join(dir, "cpu.cfs_quota_us")
	if err := os.WriteFile(quotaFile, []byte(strconv.FormatInt(*cpu.Quota, 10)), 0644); err != nil {
		_ = os.Remove(dir)
		return nil, &Error{Subsystem: "cpu", Op: "write cpu.cfs_quota_us", Err: err}
	}

	return &cpuSubsystem{dir: dir}, nil
}

func (s *cpuSubsystem) name() string { return "cpu" }
func (s *cpuSubsystem) path() string { return s.dir }

func (s *cpuSubsystem) apply(pid int) error {
	tasksFile := filepath.Join(s.dir, "tasks")
	if err := os.WriteFile(tasksFile, []byte(strconv.Itoa(pid)), 0644); err != nil {
		return &Error{Subsystem: "cpu", Op: "write tasks", Err: err}
	}
	return nil
}

func (s *cpuSubsystem) remove() error {
	if err := os.Remove(s.dir); err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}
