package mountns

import "golang.org/x/sys/unix"

// deviceNode is a character device to create under /dev, fixed at package
// init since the table never varies per-container.
type deviceNode struct {
	name         string
	major, minor uint32
}

// deviceSymlink is a symlink to create under /dev.
type deviceSymlink struct {
	name   string
	target string
}

var standardDevices = []deviceNode{
	{"null", 1, 3},
	{"zero", 1, 5},
	{"random", 1, 8},
	{"urandom", 1, 9},
	{"tty", 5, 0},
	{"console", 136, 1},
	{"full", 1, 7},
}

var standardSymlinks = []deviceSymlink{
	{"stdin", "/proc/self/fd/0"},
	{"stdout", "/proc/self/fd/1"},
	{"stderr", "/proc/self/fd/2"},
	{"fd", "/proc/self/fd"},
}

const deviceNodeMode = unix.S_IFCHR | 0o666
