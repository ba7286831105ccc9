package cgroup

import (
	specs "github.com/opencontainers/runtime-spec/specs-go"
)

// ResourceConfig is the caller-facing limit configuration. MemoryLimit is
// written into memory.limit_in_bytes exactly as the caller supplied it —
// spec.md's Open Question on suffix acceptance resolves this to "left to
// the kernel", so this package performs no parsing or normalization of it
// at all. CPU has no such constraint, so it takes the OCI shape directly.
// An empty MemoryLimit or a nil CPU means "do not create that subsystem
// entry".
type ResourceConfig struct {
	MemoryLimit string
	CPU         *specs.LinuxCPU
}

// CPUFromCount converts a plain CPU count into the specs.LinuxCPU fragment
// NewManager expects, reading cpu.cfs_period_us from the cpu subsystem's
// real mountpoint and scaling quota = cpus * period, matching the
// original cpu_subsystem's construction logic. cpus <= 0 means "no cpu
// subsystem".
func CPUFromCount(cpus int) (*specs.LinuxCPU, error) {
	if cpus <= 0 {
		return nil, nil
	}
	mnt, err := FindMountpoint("cpu")
	if err != nil {
		return nil, &Error{Subsystem: "cpu", Op: "find mountpoint", Err: err}
	}
	period, err := readCFSPeriodUs(mnt)
	if err != nil {
		return nil, &Error{Subsystem: "cpu", Op: "read cpu.cfs_period_us", Err: err}
	}
	quota := int64(cpus) * int64(period)
	return &specs.LinuxCPU{Period: &period, Quota: &quota}, nil
}
