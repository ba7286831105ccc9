package mountns

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"golang.org/x/sys/unix"

	"github.com/kingsamchen/lumper/internal/fdutil"
	"github.com/kingsamchen/lumper/internal/netsetup"
)

func bringUpLoopback() error {
	return netsetup.BringUpLoopback()
}

// VolumeMount is an optional host-to-container bind mount, created after
// the standard pseudo-filesystems and before the pivot.
type VolumeMount struct {
	HostPath      string `json:"host_path"`
	ContainerPath string `json:"container_path"`
}

// Plan is the containment hook's immutable configuration, built once in
// the parent before the self-reexec and carried across it by Marshal.
// The hostname, the overlay mount data and the new-root, proc, sys, dev,
// dev/pts and old-root paths are precomputed here; Run builds the device
// node, device symlink and volume paths with filepath.Join as each of
// those steps runs.
type Plan struct {
	Hostname string `json:"hostname"`
	NewRoot  string `json:"new_root"`

	ProcDir    string `json:"proc_dir"`
	SysDir     string `json:"sys_dir"`
	DevDir     string `json:"dev_dir"`
	DevPtsDir  string `json:"dev_pts_dir"`
	OldRootDir string `json:"old_root_dir"`

	// MountData is the precomposed overlay mount_data string
	// "lowerdir=...,upperdir=...,workdir=...".
	MountData string `json:"mount_data"`

	Volume *VolumeMount `json:"volume,omitempty"`

	// Netns, when true, brings up the loopback interface after the pivot.
	// This runs after step 14 and is not part of the original fixed
	// 14-step sequence; it exists because a network namespace with no
	// loopback interface cannot even be reached via 127.0.0.1 from inside
	// the container, which would otherwise make CLONE_NEWNET painful to
	// exercise at all.
	Netns bool `json:"netns"`

	diagFD *fdutil.FD
}

// NewPlan builds a Plan from an image's extracted tree and a container's
// private copy-on-write directories. lowerdir is the read-only image root;
// upperdir and workdir are per-container scratch directories that must
// already exist on the same filesystem.
func NewPlan(hostname, newRoot, lowerdir, upperdir, workdir string, volume *VolumeMount, netns bool) *Plan {
	return &Plan{
		Hostname:   hostname,
		NewRoot:    newRoot,
		ProcDir:    filepath.Join(newRoot, "proc"),
		SysDir:     filepath.Join(newRoot, "sys"),
		DevDir:     filepath.Join(newRoot, "dev"),
		DevPtsDir:  filepath.Join(newRoot, "dev", "pts"),
		OldRootDir: filepath.Join(newRoot, ".old_root"),
		MountData:  fmt.Sprintf("lowerdir=%s,upperdir=%s,workdir=%s", lowerdir, upperdir, workdir),
		Volume:     volume,
		Netns:      netns,
		diagFD:     fdutil.New(DiagFD),
	}
}

// HookKind identifies this hook to procutil's DecodeHookFunc dispatch.
func (p *Plan) HookKind() string { return "mountns.v1" }

// Marshal encodes the plan's configuration. diagFD is not included: it is
// a fixed convention (DiagFD), not per-plan data, so DecodeHook sets it
// directly rather than trusting the wire payload.
func (p *Plan) Marshal() ([]byte, error) {
	return json.Marshal(p)
}

// DecodeHook reconstructs a Plan from the bytes a prior Marshal produced.
// cmd/lumper wraps it in the procutil.DecodeHookFunc it passes to
// procutil.RunChild.
func DecodeHook(kind string, data []byte) (Hook, error) {
	if kind != "mountns.v1" {
		return nil, fmt.Errorf("mountns: unknown hook kind %q", kind)
	}
	var p Plan
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("mountns: decode plan: %w", err)
	}
	p.diagFD = fdutil.New(DiagFD)
	return &p, nil
}

// Hook is the subset of procutil.PreExecHook that mountns.DecodeHook
// returns, kept narrow so callers outside procutil don't need to import
// it just to hold a *Plan.
type Hook interface {
	Run() error
}

// Run executes the fixed containment sequence. It returns after a
// successful pivot (plus, if requested, loopback bring-up); the caller is
// expected to exec the target program immediately afterward. Any failure
// returns a *StepError identifying which step failed and is additionally
// reported, with the same (step, errno) pair, on the diagnostic pipe at
// fd DiagFD if one was wired in by the caller.
func (p *Plan) Run() error {
	// The diagnostic fd must close exactly once no matter which path out
	// of this function is taken, including success: left open, it leaks
	// into the target program exec'd right after Run returns.
	defer p.diagFD.Release()

	steps := []struct {
		step Step
		fn   func() error
	}{
		{StepSetHostname, p.stepSetHostname},
		{StepMountPrivate, p.stepMountPrivate},
		{StepMountContainerRoot, p.stepMountContainerRoot},
		{StepMountProc, p.stepMountProc},
		{StepMountSys, p.stepMountSys},
		{StepMountDev, p.stepMountDev},
		{StepMkdirDevPts, p.stepMkdirDevPts},
		{StepMountDevPts, p.stepMountDevPts},
		{StepMknodCall, p.stepMknodDevices},
		{StepSymlinkCall, p.stepSymlinkDevices},
		{StepMkdirContainerVolume, p.stepMkdirVolume},
		{StepMountVolume, p.stepBindVolume},
		{StepMkdirOldRootForPivot, p.stepMkdirOldRoot},
		{StepSyscallPivotRoot, p.stepPivotRoot},
		{StepChdirCall, p.stepChdir},
		{StepUnmountOldPivot, p.stepUnmountOldRoot},
		{StepRmdirOldPivot, p.stepRmdirOldRoot},
	}

	for _, s := range steps {
		if err := s.fn(); err != nil {
			writeDiagnostic(p.diagFD, s.step, err)
			return &StepError{Step: s.step, Errno: err}
		}
	}

	if p.Netns {
		if err := bringUpLoopback(); err != nil {
			writeDiagnostic(p.diagFD, StepBringUpLoopback, err)
			return &StepError{Step: StepBringUpLoopback, Errno: err}
		}
	}
	return nil
}

func (p *Plan) stepSetHostname() error {
	return unix.Sethostname([]byte(p.Hostname))
}

func (p *Plan) stepMountPrivate() error {
	return unix.Mount("", "/", "", unix.MS_PRIVATE|unix.MS_REC, "")
}

func (p *Plan) stepMountContainerRoot() error {
	return unix.Mount("overlay", p.NewRoot, "overlay", unix.MS_NODEV, p.MountData)
}

func (p *Plan) stepMountProc() error {
	return unix.Mount("proc", p.ProcDir, "proc", 0, "")
}

func (p *Plan) stepMountSys() error {
	return unix.Mount("sysfs", p.SysDir, "sysfs", 0, "")
}

func (p *Plan) stepMountDev() error {
	return unix.Mount("tmpfs", p.DevDir, "tmpfs", unix.MS_NOSUID|unix.MS_STRICTATIME, "mode=755")
}

func (p *Plan) stepMkdirDevPts() error {
	if err := mkdirAll(p.DevPtsDir, 0755); err != nil {
		return err
	}
	return nil
}

func (p *Plan) stepMountDevPts() error {
	return unix.Mount("devpts", p.DevPtsDir, "devpts", 0, "")
}

func (p *Plan) stepMknodDevices() error {
	for _, d := range standardDevices {
		path := filepath.Join(p.DevDir, d.name)
		if err := unix.Mknod(path, deviceNodeMode, int(unix.Mkdev(d.major, d.minor))); err != nil && err != unix.EEXIST {
			return err
		}
	}
	return nil
}

func (p *Plan) stepSymlinkDevices() error {
	for _, s := range standardSymlinks {
		path := filepath.Join(p.DevDir, s.name)
		if err := os.Symlink(s.target, path); err != nil && !os.IsExist(err) {
			return err
		}
	}
	return nil
}

func (p *Plan) stepMkdirVolume() error {
	if p.Volume == nil {
		return nil
	}
	containerPath := filepath.Join(p.NewRoot, p.Volume.ContainerPath)
	return mkdirAll(containerPath, 0755)
}

func (p *Plan) stepBindVolume() error {
	if p.Volume == nil {
		return nil
	}
	containerPath := filepath.Join(p.NewRoot, p.Volume.ContainerPath)
	return unix.Mount(p.Volume.HostPath, containerPath, "bind", unix.MS_BIND|unix.MS_REC, "")
}

func (p *Plan) stepMkdirOldRoot() error {
	return unix.Mkdir(p.OldRootDir, 0777)
}

func (p *Plan) stepPivotRoot() error {
	return unix.PivotRoot(p.NewRoot, p.OldRootDir)
}

func (p *Plan) stepChdir() error {
	return unix.Chdir("/")
}

func (p *Plan) stepUnmountOldRoot() error {
	return unix.Unmount("/.old_root", unix.MNT_DETACH)
}

func (p *Plan) stepRmdirOldRoot() error {
	return unix.Rmdir("/.old_root")
}
