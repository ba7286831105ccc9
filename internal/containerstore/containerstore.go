// Package containerstore persists container metadata as JSON records on
// disk, one directory per container, matching the layout the launcher's
// run/ps/rm collaborators agree on.
package containerstore

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"
)

var (
	// ImagesDir holds extracted image trees, one directory per image name.
	// A var, not a const, so tests can redirect it to a temp directory.
	ImagesDir = "/var/lib/lumper/images"
	// ContainersDir holds one directory per container, named by its id.
	ContainersDir = "/var/lib/lumper/containers"
)

const (
	infoFilename = "config.json"
	// LogFilename is the container's captured stdout/stderr when run in
	// detached mode.
	LogFilename = "container.log"

	// StatusRunning and StatusStopped are the only two values Info.Status
	// takes.
	StatusRunning = "running"
	StatusStopped = "stopped"

	createTimeLayout = "2006-01-02 15:04:05"
)

// Info is the persisted record for one container.
type Info struct {
	ID         string `json:"id"`
	Image      string `json:"image"`
	Command    string `json:"command"`
	CreateTime string `json:"create_time"`
	Status     string `json:"status"`
	PID        int    `json:"pid"`
}

// NewInfo builds an Info with CreateTime set to now, formatted in local
// time, matching the original time_point_to_str layout.
func NewInfo(id, image, command string, pid int) Info {
	return Info{
		ID:         id,
		Image:      image,
		Command:    command,
		CreateTime: time.Now().Local().Format(createTimeLayout),
		Status:     StatusRunning,
		PID:        pid,
	}
}

// ImagePath returns the extracted image tree for image.
func ImagePath(image string) string {
	return filepath.Join(ImagesDir, image)
}

// ContainerPath returns the per-container directory for id.
func ContainerPath(id string) string {
	return filepath.Join(ContainersDir, id)
}

// RootfsPath, CowRWPath, CowWorkdirPath return the three directories that
// together back a container's overlay mount.
func RootfsPath(id string) string     { return filepath.Join(ContainerPath(id), "rootfs") }
func CowRWPath(id string) string      { return filepath.Join(ContainerPath(id), "cow_rw") }
func CowWorkdirPath(id string) string { return filepath.Join(ContainerPath(id), "cow_workdir") }
func LogPath(id string) string        { return filepath.Join(ContainerPath(id), LogFilename) }

func infoPath(id string) string { return filepath.Join(ContainerPath(id), infoFilename) }

// Save writes info to its container directory, creating the directory's
// standard subtree (rootfs, cow_rw, cow_workdir) if it doesn't already
// exist.
func Save(info Info) error {
	dir := ContainerPath(info.ID)
	for _, sub := range []string{RootfsPath(info.ID), CowRWPath(info.ID), CowWorkdirPath(info.ID)} {
		if err := os.MkdirAll(sub, 0755); err != nil {
			return fmt.Errorf("containerstore: create %s: %w", sub, err)
		}
	}

	data, err := json.MarshalIndent(info, "", "  ")
	if err != nil {
		return fmt.Errorf("containerstore: marshal info for %s: %w", info.ID, err)
	}
	if err := os.WriteFile(infoPath(info.ID), data, 0644); err != nil {
		return fmt.Errorf("containerstore: write %s: %w", dir, err)
	}
	return nil
}

// Load reads the Info record for id.
func Load(id string) (Info, error) {
	data, err := os.ReadFile(infoPath(id))
	if err != nil {
		return Info{}, fmt.Errorf("containerstore: read info for %s: %w", id, err)
	}
	var info Info
	if err := json.Unmarshal(data, &info); err != nil {
		return Info{}, fmt.Errorf("containerstore: decode info for %s: %w", id, err)
	}
	return info, nil
}

// List returns every persisted container, sorted by id, regardless of
// status; callers that only want running containers filter the result
// themselves, matching the CLI's ps [-a] contract where filtering is the
// collaborator's job, not the store's.
func List() ([]Info, error) {
	entries, err := os.ReadDir(ContainersDir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("containerstore: read %s: %w", ContainersDir, err)
	}

	var infos []Info
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		info, err := Load(e.Name())
		if err != nil {
			continue
		}
		infos = append(infos, info)
	}
	sort.Slice(infos, func(i, j int) bool { return infos[i].ID < infos[j].ID })
	return infos, nil
}

// Remove deletes a container's entire directory tree unconditionally,
// without checking its persisted status first.
func Remove(id string) error {
	if err := os.RemoveAll(ContainerPath(id)); err != nil {
		return fmt.Errorf("containerstore: remove %s: %w", id, err)
	}
	return nil
}

// MarkStopped loads id's Info, sets its status to stopped, and saves it
// back. Used by the launcher once a non-detached run's target process
// exits.
func MarkStopped(id string) error {
	info, err := Load(id)
	if err != nil {
		return err
	}
	info.Status = StatusStopped
	return Save(info)
}
