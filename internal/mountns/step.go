// Package mountns implements the containment hook that runs inside a
// freshly self-reexec'd, not-yet-exec'd child: it sets the hostname,
// detaches mount propagation, stacks an overlay root, mounts the standard
// pseudo-filesystems, populates /dev, optionally binds a host volume, and
// pivots into the new root.
package mountns

import "fmt"

// Step identifies which stage of the containment sequence failed. The set
// and names mirror the mount_errc enumeration this hook's behavior is
// grounded on, extended with the two devpts/device steps that enumeration
// implies but the original's header left out of its own listing.
type Step uint32

const (
	StepOK Step = iota
	StepSetHostname
	StepMountPrivate
	StepMountContainerRoot
	StepMountProc
	StepMountSys
	StepMountDev
	StepMkdirDevPts
	StepMountDevPts
	StepSymlinkCall
	StepMknodCall
	StepMountVolume
	StepMkdirContainerVolume
	StepMkdirOldRootForPivot
	StepSyscallPivotRoot
	StepChdirCall
	StepUnmountOldPivot
	StepRmdirOldPivot

	// StepBringUpLoopback is not part of the original fixed step sequence;
	// it fires only when a Plan requests loopback bring-up after the
	// pivot, per the network-namespace addition documented in
	// SPEC_FULL.md.
	StepBringUpLoopback
)

func (s Step) String() string {
	switch s {
	case StepOK:
		return "ok"
	case StepSetHostname:
		return "set_hostname"
	case StepMountPrivate:
		return "mount_private"
	case StepMountContainerRoot:
		return "mount_container_root"
	case StepMountProc:
		return "mount_proc"
	case StepMountSys:
		return "mount_sys"
	case StepMountDev:
		return "mount_dev"
	case StepMkdirDevPts:
		return "mkdir_dev_pts"
	case StepMountDevPts:
		return "mount_dev_pts"
	case StepSymlinkCall:
		return "symlink_call"
	case StepMknodCall:
		return "mknod_call"
	case StepMountVolume:
		return "mount_volume"
	case StepMkdirContainerVolume:
		return "mkdir_container_volume"
	case StepMkdirOldRootForPivot:
		return "mkdir_old_root_for_pivot"
	case StepSyscallPivotRoot:
		return "syscall_pivot_root"
	case StepChdirCall:
		return "chdir_call"
	case StepUnmountOldPivot:
		return "unmount_old_pivot"
	case StepRmdirOldPivot:
		return "rmdir_old_pivot"
	case StepBringUpLoopback:
		return "bring_up_loopback"
	default:
		return fmt.Sprintf("unknown_mount_errc(%d)", uint32(s))
	}
}

// StepError reports which step of the containment sequence failed and the
// errno the failing syscall returned. It implements Unwrap so a caller
// that only cares about the errno (such as procutil's generic failure
// path) can recover it with errors.As without importing this package.
type StepError struct {
	Step  Step
	Errno error
}

func (e *StepError) Error() string {
	return fmt.Sprintf("mountns: step %s failed: %v", e.Step, e.Errno)
}

func (e *StepError) Unwrap() error { return e.Errno }
