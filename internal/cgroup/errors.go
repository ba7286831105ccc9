package cgroup

import (
	"errors"
	"fmt"
)

// errNilLimit is returned when newCPUSubsystem is handed a specs.LinuxCPU
// with no Quota set.
var errNilLimit = errors.New("no limit set on resource fragment")

// Error reports a cgroup subsystem failure: which subsystem, what
// operation was being attempted, and the underlying cause. It implements
// Unwrap so callers can inspect the wrapped OS error.
type Error struct {
	Subsystem string
	Op        string
	Err       error
}

func (e *Error) Error() string {
	return fmt.Sprintf("cgroup: %s: %s: %v", e.Subsystem, e.Op, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }
