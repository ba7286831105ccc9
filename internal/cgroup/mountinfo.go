package cgroup

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"
)

// findMountpoint scans a /proc/self/mountinfo-formatted reader for the
// line whose filesystem type is "cgroup" and whose comma-separated
// super-option field contains subsystem as one of its tokens, returning
// that line's mount point (field 5, 1-indexed per proc(5)).
//
// mountinfo line shape:
// 36 35 98:0 /mnt1 /mnt2 rw,noatime master:1 - ext3 /dev/root rw,errors=continue
// The separator "-" marks where the optional fields end and the
// filesystem type / source / super-options begin.
func findMountpoint(r io.Reader, subsystem string) (string, error) {
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		fields := strings.Fields(scanner.Text())
		dashIdx := -1
		for i, f := range fields {
			if f == "-" {
				dashIdx = i
				break
			}
		}
		if dashIdx < 0 || dashIdx+3 > len(fields)-1 {
			continue
		}
		fsType := fields[dashIdx+1]
		superOpts := fields[dashIdx+3]
		if fsType != "cgroup" {
			continue
		}
		for _, opt := range strings.Split(superOpts, ",") {
			if opt == subsystem {
				return fields[4], nil
			}
		}
	}
	if err := scanner.Err(); err != nil {
		return "", err
	}
	return "", fmt.Errorf("cannot find mountpoint of subsystem %s", subsystem)
}

// FindMountpoint opens /proc/self/mountinfo and delegates to findMountpoint.
// Kept separate from the scanning logic so tests can exercise parsing with
// a fixed fixture instead of the host's real mountinfo.
func FindMountpoint(subsystem string) (string, error) {
	f, err := os.Open("/proc/self/mountinfo")
	if err != nil {
		return "", fmt.Errorf("cgroup: open mountinfo: %w", err)
	}
	defer f.Close()
	return findMountpoint(f, subsystem)
}
