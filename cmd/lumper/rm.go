package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/kingsamchen/lumper/internal/containerstore"
)

// rmCommand deletes each named container's directory unconditionally,
// without checking whether it's still marked running, matching the
// original command_rm's remove_all semantics.
func rmCommand(_ context.Context, args []string) error {
	if len(args) == 0 {
		return errors.New("lumper rm: at least one CONTAINER_ID is required")
	}

	for _, id := range args {
		if _, err := os.Stat(containerstore.ContainerPath(id)); os.IsNotExist(err) {
			fmt.Printf("Container %s not found\n", id)
			continue
		}
		if err := containerstore.Remove(id); err != nil {
			fmt.Printf("Container %s not found\n", id)
			continue
		}
		fmt.Printf("Container %s is deleted\n", id)
	}
	return nil
}
