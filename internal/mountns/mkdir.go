package mountns

import (
	"golang.org/x/sys/unix"
)

// maxPathBuf mirrors the fixed 4096-byte stack buffer the original
// create_directories() NUL-terminates at each '/' boundary instead of
// allocating a new string per path prefix. Go strings are already
// immutable byte sequences, so the literal technique doesn't translate,
// but mkdirAll below preserves its actual contract: walk the path once,
// creating each missing prefix directory in order, tolerating EEXIST.
const maxPathBuf = 4096

// mkdirAll creates path and all missing parents, tolerating a prefix that
// already exists. It differs from os.MkdirAll only in using raw
// unix.Mkdir so every step maps to exactly one syscall, consistent with
// the rest of this package's direct unix.* usage.
func mkdirAll(path string, mode uint32) error {
	if len(path) == 0 || len(path) >= maxPathBuf {
		return unix.ENAMETOOLONG
	}
	if path[0] != '/' {
		return unix.EINVAL
	}

	for i := 1; i <= len(path); i++ {
		if i < len(path) && path[i] != '/' {
			continue
		}
		prefix := path[:i]
		if prefix == "" {
			continue
		}
		if err := unix.Mkdir(prefix, mode); err != nil && err != unix.EEXIST {
			return err
		}
	}
	return nil
}
