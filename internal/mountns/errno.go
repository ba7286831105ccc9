package mountns

import "syscall"

func errnoValue(err error) int32 {
	if errno, ok := err.(syscall.Errno); ok {
		return int32(errno)
	}
	return int32(syscall.EIO)
}

func stepErrno(v int32) error {
	return syscall.Errno(v)
}
