// Package fdutil provides a scoped owner for a single OS file descriptor.
package fdutil

import (
	"os"
	"runtime"
	"sync/atomic"

	"golang.org/x/sys/unix"
)

// FD owns exactly one OS file descriptor. At most one FD owns a given
// descriptor at a time; Release is idempotent and safe to call from a
// deferred cleanup even after a successful hand-off.
//
// FD is not copyable in spirit: always pass *FD, never FD by value, or two
// owners will race to close the same descriptor.
type FD struct {
	fd     int32
	closed atomic.Bool
}

// New wraps an already-open descriptor.
func New(fd int) *FD {
	h := &FD{fd: int32(fd)}
	if fd < 0 {
		h.closed.Store(true)
	}
	return h
}

// FromFile wraps an already-open *os.File's descriptor for scoped
// ownership and disarms f's own finalizer, so the returned FD becomes the
// descriptor's sole closer. f itself remains perfectly usable for
// Read/Write or for wiring into os/exec (its fd number doesn't change) —
// only f.Close must no longer be called, since that's now FD.Release's job.
func FromFile(f *os.File) *FD {
	h := New(int(f.Fd()))
	runtime.SetFinalizer(f, nil)
	return h
}

// Fd returns the underlying descriptor, or -1 if released.
func (h *FD) Fd() int {
	if h == nil || h.closed.Load() {
		return -1
	}
	return int(h.fd)
}

// Closed reports whether the handle has already released its descriptor.
func (h *FD) Closed() bool {
	return h == nil || h.closed.Load()
}

// Release closes the descriptor if still owned. Calling it on an already
// released handle is a no-op.
func (h *FD) Release() error {
	if h == nil || !h.closed.CompareAndSwap(false, true) {
		return nil
	}
	return unix.Close(int(h.fd))
}

// File converts the handle into an *os.File, transferring ownership. After
// this call the handle reports itself as released; closing the returned
// file is now the caller's responsibility.
func (h *FD) File(name string) *os.File {
	if h == nil || h.closed.Swap(true) {
		return nil
	}
	return os.NewFile(uintptr(h.fd), name)
}
