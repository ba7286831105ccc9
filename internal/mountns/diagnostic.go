package mountns

import (
	"encoding/binary"
	"io"
	"os"
	"runtime"

	"github.com/kingsamchen/lumper/internal/fdutil"
)

// DiagFD is the fixed descriptor number of the hook's own diagnostic pipe
// write end inside the child, analogous to the fixed fd 3/4 convention
// internal/procutil uses for its error and config pipes. A caller that
// wants step-level diagnostics on failure passes the write end via
// procutil.Options.ExtraFiles as the first (and typically only) entry, and
// keeps the read end to call ReadDiagnostic after Spawn reports a
// KindPreExecHook failure.
const DiagFD = 5

const diagRecordSize = 8

// ReadDiagnostic recovers the (Step, errno) pair a failing Plan.Run wrote
// to its diagnostic pipe. It is distinct from the launcher's own error
// pipe: that one only carries an 8-byte (kind, errno) pair with no room
// for which containment step failed, so this hook keeps its own channel
// for richer diagnosis, read only when the caller wants it.
func ReadDiagnostic(r io.Reader) (Step, error, bool) {
	var buf [diagRecordSize]byte
	n, err := io.ReadFull(r, buf[:])
	if n != diagRecordSize || err != nil {
		return StepOK, nil, false
	}
	step := Step(binary.LittleEndian.Uint32(buf[0:4]))
	errno := int32(binary.LittleEndian.Uint32(buf[4:8]))
	return step, stepErrno(errno), true
}

// writeDiagnostic writes a (step, errno) record through diag without
// closing it: diag's owner (Plan.Run) releases it exactly once, on every
// exit path, regardless of whether a diagnostic was ever written.
func writeDiagnostic(diag *fdutil.FD, step Step, err error) {
	fd := diag.Fd()
	if fd <= 0 {
		return
	}
	f := os.NewFile(uintptr(fd), "mountns-diagpipe")
	if f == nil {
		return
	}
	// diag remains the sole closer of this descriptor; f is just a
	// transient io.Writer view over it.
	runtime.SetFinalizer(f, nil)

	var buf [diagRecordSize]byte
	binary.LittleEndian.PutUint32(buf[0:4], uint32(step))
	binary.LittleEndian.PutUint32(buf[4:8], uint32(errnoValue(err)))
	_, _ = f.Write(buf[:])
}
