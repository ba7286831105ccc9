package main

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/kingsamchen/lumper/internal/containerstore"
)

func withTempContainerStore(t *testing.T) {
	t.Helper()
	dir := t.TempDir()
	origContainers, origImages := containerstore.ContainersDir, containerstore.ImagesDir
	containerstore.ContainersDir = filepath.Join(dir, "containers")
	containerstore.ImagesDir = filepath.Join(dir, "images")
	t.Cleanup(func() {
		containerstore.ContainersDir, containerstore.ImagesDir = origContainers, origImages
	})
}

func TestPsCommandRunsAgainstEmptyStore(t *testing.T) {
	withTempContainerStore(t)
	if err := psCommand(context.Background(), nil); err != nil {
		t.Fatalf("psCommand: %v", err)
	}
}

func TestPsCommandListsSavedContainers(t *testing.T) {
	withTempContainerStore(t)
	if err := containerstore.Save(containerstore.NewInfo("abc123", "alpine", "/bin/sh", 42)); err != nil {
		t.Fatalf("Save: %v", err)
	}
	if err := psCommand(context.Background(), []string{"-a"}); err != nil {
		t.Fatalf("psCommand -a: %v", err)
	}
}

func TestRmCommandRequiresAtLeastOneID(t *testing.T) {
	if err := rmCommand(context.Background(), nil); err == nil {
		t.Fatalf("expected an error for an empty argument list")
	}
}

func TestRmCommandRemovesExistingContainer(t *testing.T) {
	withTempContainerStore(t)
	info := containerstore.NewInfo("to-delete", "alpine", "/bin/sh", 1)
	if err := containerstore.Save(info); err != nil {
		t.Fatalf("Save: %v", err)
	}
	if err := rmCommand(context.Background(), []string{info.ID}); err != nil {
		t.Fatalf("rmCommand: %v", err)
	}
	if _, err := os.Stat(containerstore.ContainerPath(info.ID)); !os.IsNotExist(err) {
		t.Fatalf("expected the container directory to be gone, got err=%v", err)
	}
}

func TestRmCommandReportsMissingContainer(t *testing.T) {
	withTempContainerStore(t)
	if err := rmCommand(context.Background(), []string{"does-not-exist"}); err != nil {
		t.Fatalf("rmCommand should not error on a missing container, got %v", err)
	}
}
