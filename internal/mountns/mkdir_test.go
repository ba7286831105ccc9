package mountns

import (
	"os"
	"path/filepath"
	"testing"

	"golang.org/x/sys/unix"
)

func TestMkdirAllCreatesNestedDirs(t *testing.T) {
	base := t.TempDir()
	target := filepath.Join(base, "a", "b", "c")

	if err := mkdirAll(target, 0755); err != nil {
		t.Fatalf("mkdirAll: %v", err)
	}
	info, err := os.Stat(target)
	if err != nil {
		t.Fatalf("stat after mkdirAll: %v", err)
	}
	if !info.IsDir() {
		t.Fatalf("expected %s to be a directory", target)
	}
}

func TestMkdirAllToleratesExistingPrefix(t *testing.T) {
	base := t.TempDir()
	target := filepath.Join(base, "x", "y")
	if err := mkdirAll(target, 0755); err != nil {
		t.Fatalf("first mkdirAll: %v", err)
	}
	if err := mkdirAll(target, 0755); err != nil {
		t.Fatalf("second mkdirAll on existing path should tolerate EEXIST: %v", err)
	}
}

func TestMkdirAllRejectsRelativePath(t *testing.T) {
	if err := mkdirAll("relative/path", 0755); err != unix.EINVAL {
		t.Fatalf("expected EINVAL for a relative path, got %v", err)
	}
}
