package mountns

import (
	"os"
	"strings"
	"testing"

	"github.com/kingsamchen/lumper/internal/fdutil"
)

func TestNewPlanComputesPaths(t *testing.T) {
	p := NewPlan("box", "/var/lib/lumper/containers/abcd/rootfs",
		"/var/lib/lumper/images/alpine",
		"/var/lib/lumper/containers/abcd/cow_rw",
		"/var/lib/lumper/containers/abcd/cow_workdir",
		nil, false)

	if p.ProcDir != "/var/lib/lumper/containers/abcd/rootfs/proc" {
		t.Fatalf("unexpected proc dir: %s", p.ProcDir)
	}
	if p.DevPtsDir != "/var/lib/lumper/containers/abcd/rootfs/dev/pts" {
		t.Fatalf("unexpected devpts dir: %s", p.DevPtsDir)
	}
	if !strings.Contains(p.MountData, "lowerdir=/var/lib/lumper/images/alpine") ||
		!strings.Contains(p.MountData, "upperdir=/var/lib/lumper/containers/abcd/cow_rw") ||
		!strings.Contains(p.MountData, "workdir=/var/lib/lumper/containers/abcd/cow_workdir") {
		t.Fatalf("unexpected mount data: %s", p.MountData)
	}
}

func TestPlanMarshalRoundTrip(t *testing.T) {
	p := NewPlan("box", "/new/root", "/lower", "/upper", "/work",
		&VolumeMount{HostPath: "/host", ContainerPath: "/container"}, true)

	data, err := p.Marshal()
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}

	hook, err := DecodeHook(p.HookKind(), data)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	got, ok := hook.(*Plan)
	if !ok {
		t.Fatalf("expected *Plan, got %T", hook)
	}
	if got.Hostname != p.Hostname || got.NewRoot != p.NewRoot || got.MountData != p.MountData {
		t.Fatalf("round trip mismatch: %+v", got)
	}
	if got.Volume == nil || got.Volume.HostPath != "/host" {
		t.Fatalf("expected volume to survive round trip, got %+v", got.Volume)
	}
	if got.diagFD.Fd() != DiagFD {
		t.Fatalf("expected DecodeHook to set diagFD to %d, got %d", DiagFD, got.diagFD.Fd())
	}
}

func TestDecodeHookRejectsUnknownKind(t *testing.T) {
	if _, err := DecodeHook("something-else", []byte("{}")); err == nil {
		t.Fatalf("expected an error for an unrecognized hook kind")
	}
}

func TestWriteDiagnosticRoundTrip(t *testing.T) {
	r, w, err := os.Pipe()
	if err != nil {
		t.Fatalf("pipe: %v", err)
	}
	defer r.Close()
	defer w.Close()

	go func() {
		writeDiagnostic(fdutil.New(int(w.Fd())), StepSyscallPivotRoot, stepErrno(2))
	}()

	step, errVal, ok := ReadDiagnostic(r)
	if !ok {
		t.Fatalf("expected a diagnostic record")
	}
	if step != StepSyscallPivotRoot {
		t.Fatalf("expected StepSyscallPivotRoot, got %v", step)
	}
	if errVal == nil {
		t.Fatalf("expected a non-nil errno")
	}
}

func TestStepStringCoversAllConstants(t *testing.T) {
	for s := StepOK; s <= StepBringUpLoopback; s++ {
		if strings.HasPrefix(s.String(), "unknown_mount_errc") {
			t.Fatalf("step %d has no name", s)
		}
	}
}

func TestStepErrorUnwrap(t *testing.T) {
	base := stepErrno(5)
	se := &StepError{Step: StepMountProc, Errno: base}
	if se.Unwrap() != base {
		t.Fatalf("expected Unwrap to return the wrapped errno")
	}
	if !strings.Contains(se.Error(), "mount_proc") {
		t.Fatalf("expected step name in error string, got %q", se.Error())
	}
}
