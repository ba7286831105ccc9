package procutil

import (
	"errors"
	"io"
	"os"
	"testing"
)

// TestMain makes this test binary double as the self-reexec target Spawn
// execs via /proc/self/exe: when invoked with the init argv, it dispatches
// into RunChild instead of running the test suite, exactly the helper-process
// pattern os/exec_test.go uses for the same problem (a test wanting to
// exercise a real child process without a second built binary).
func TestMain(m *testing.M) {
	if IsInitArgv(os.Args) {
		os.Exit(RunChild(nil))
	}
	os.Exit(m.Run())
}

func TestSpawnRejectsEmptyArgv(t *testing.T) {
	if _, err := Spawn(nil, Options{}, nil); err != ErrEmptyArgv {
		t.Fatalf("expected ErrEmptyArgv, got %v", err)
	}
}

func TestResolveTargetAbsolutePath(t *testing.T) {
	got, err := resolveTarget("/bin/sh")
	if err != nil {
		t.Skipf("no /bin/sh on this system: %v", err)
	}
	if got != "/bin/sh" {
		t.Fatalf("expected /bin/sh, got %q", got)
	}
}

func TestResolveTargetMissingAbsolutePathPassesThrough(t *testing.T) {
	// resolveTarget does not stat an absolute path; a missing binary is
	// discovered by the real exec(2) call in the child, not here.
	got, err := resolveTarget("/no/such/binary/at/all")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != "/no/such/binary/at/all" {
		t.Fatalf("expected the path unchanged, got %q", got)
	}
}

func TestResolveStdioInheritLeavesChildAtStdDescriptors(t *testing.T) {
	actions := [3]StdioAction{Inherit(), Inherit(), Inherit()}
	parent, child, cleanup, err := resolveStdio(actions)
	defer cleanup()
	if err != nil {
		t.Fatalf("resolveStdio: %v", err)
	}
	if child[0] != os.Stdin || child[1] != os.Stdout || child[2] != os.Stderr {
		t.Fatalf("expected inherited std descriptors, got %v", child)
	}
	if parent[0] != nil || parent[1] != nil || parent[2] != nil {
		t.Fatalf("expected no parent-side pipe ends for Inherit, got %v", parent)
	}
}

func TestResolveStdioPipeDirections(t *testing.T) {
	actions := [3]StdioAction{Pipe(DirIn), Pipe(DirOut), Inherit()}
	parent, child, cleanup, err := resolveStdio(actions)
	defer cleanup()
	if err != nil {
		t.Fatalf("resolveStdio: %v", err)
	}
	if parent[0] == nil || child[0] == nil {
		t.Fatalf("expected both ends of stdin pipe to be populated")
	}
	if parent[1] == nil || child[1] == nil {
		t.Fatalf("expected both ends of stdout pipe to be populated")
	}
	if _, err := parent[0].WriteString("hi"); err != nil {
		t.Fatalf("write to parent stdin end: %v", err)
	}
	buf := make([]byte, 2)
	if _, err := child[0].Read(buf); err != nil {
		t.Fatalf("read from child stdin end: %v", err)
	}
	if string(buf) != "hi" {
		t.Fatalf("expected 'hi', got %q", buf)
	}
}

func TestResolveStdioNull(t *testing.T) {
	actions := [3]StdioAction{Null(DirIn), Inherit(), Inherit()}
	_, child, cleanup, err := resolveStdio(actions)
	defer cleanup()
	if err != nil {
		t.Fatalf("resolveStdio: %v", err)
	}
	if child[0] == nil || child[0].Name() != os.DevNull {
		t.Fatalf("expected /dev/null for Null stdio, got %v", child[0])
	}
}

func TestInitRequestRoundTrip(t *testing.T) {
	req := &initRequest{
		Argv:        []string{"/bin/true", "a", "b"},
		Detach:      true,
		HookKind:    "mountns.v1",
		PreExecData: []byte(`{"root":"/tmp"}`),
	}
	payload, err := req.marshal()
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	got, err := unmarshalInitRequest(payload)
	if err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if got.Detach != req.Detach || got.HookKind != req.HookKind || len(got.Argv) != 3 {
		t.Fatalf("round trip mismatch: %+v", got)
	}
}

func requireBinary(t *testing.T, path string) {
	t.Helper()
	if _, err := os.Stat(path); err != nil {
		t.Skipf("%s not available in this environment: %v", path, err)
	}
}

// TestSpawnTrueExits matches spec.md section 8's first end-to-end scenario:
// a real /bin/true spawn reaches exited(0).
func TestSpawnTrueExits(t *testing.T) {
	requireBinary(t, "/bin/true")

	proc, err := Spawn([]string{"/bin/true"}, Options{}, nil)
	if err != nil {
		t.Fatalf("Spawn: %v", err)
	}
	status, err := proc.Wait()
	if err != nil {
		t.Fatalf("Wait: %v", err)
	}
	if !status.Exited || status.Code != 0 {
		t.Fatalf("expected exited(0), got %v", status)
	}
}

// TestSpawnFalseExits matches spec.md section 8's second scenario: a real
// /bin/false spawn reaches exited(1).
func TestSpawnFalseExits(t *testing.T) {
	requireBinary(t, "/bin/false")

	proc, err := Spawn([]string{"/bin/false"}, Options{}, nil)
	if err != nil {
		t.Fatalf("Spawn: %v", err)
	}
	status, err := proc.Wait()
	if err != nil {
		t.Fatalf("Wait: %v", err)
	}
	if !status.Exited || status.Code != 1 {
		t.Fatalf("expected exited(1), got %v", status)
	}
}

// TestSpawnMissingBinaryReportsExecFailure matches spec.md section 8's third
// scenario: exec(2) itself fails inside the child, not a pre-check in the
// launcher, so the parent sees a SpawnError with KindExecFailure.
func TestSpawnMissingBinaryReportsExecFailure(t *testing.T) {
	_, err := Spawn([]string{"/does/not/exist"}, Options{}, nil)
	if err == nil {
		t.Fatalf("expected an error spawning a nonexistent binary")
	}
	var spawnErr *SpawnError
	if !errors.As(err, &spawnErr) {
		t.Fatalf("expected a *SpawnError, got %T: %v", err, err)
	}
	if spawnErr.Kind != KindExecFailure {
		t.Fatalf("expected KindExecFailure, got %v", spawnErr.Kind)
	}
}

// TestSpawnStdoutPipeDeliversChildOutput matches spec.md section 8's fourth
// scenario: a stdout Pipe action actually carries the child's output back to
// the parent's stdio slot.
func TestSpawnStdoutPipeDeliversChildOutput(t *testing.T) {
	requireBinary(t, "/bin/echo")

	opts := Options{Stdio: [3]StdioAction{Inherit(), Pipe(DirOut), Inherit()}}
	proc, err := Spawn([]string{"/bin/echo", "hello"}, opts, nil)
	if err != nil {
		t.Fatalf("Spawn: %v", err)
	}

	out, err := io.ReadAll(proc.StdoutPipe())
	if err != nil {
		t.Fatalf("read stdout pipe: %v", err)
	}

	status, err := proc.Wait()
	if err != nil {
		t.Fatalf("Wait: %v", err)
	}
	if !status.Exited || status.Code != 0 {
		t.Fatalf("expected exited(0), got %v", status)
	}
	if string(out) != "hello\n" {
		t.Fatalf("expected %q, got %q", "hello\n", out)
	}
}

func TestIsInitArgv(t *testing.T) {
	if !IsInitArgv([]string{"lumper", lumperInitArg}) {
		t.Fatalf("expected true for the init token")
	}
	if IsInitArgv([]string{"lumper", "run"}) {
		t.Fatalf("expected false for a normal subcommand")
	}
	if IsInitArgv([]string{"lumper"}) {
		t.Fatalf("expected false for argv with no subcommand")
	}
}
