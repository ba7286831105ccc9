package main

import (
	"context"
	"flag"
	"fmt"

	"github.com/kingsamchen/lumper/internal/containerstore"
)

func psCommand(_ context.Context, args []string) error {
	fs := flag.NewFlagSet("ps", flag.ContinueOnError)
	all := fs.Bool("a", false, "show all containers, not just running ones")
	fs.BoolVar(all, "all", false, "show all containers, not just running ones")
	if err := fs.Parse(args); err != nil {
		return err
	}

	infos, err := containerstore.List()
	if err != nil {
		return fmt.Errorf("lumper ps: %w", err)
	}

	fmt.Printf("%-14s %-16s %-10s %-20s %-10s %s\n",
		"CONTAINER ID", "IMAGE", "PID", "CREATED", "STATUS", "COMMAND")
	for _, info := range infos {
		if !*all && info.Status != containerstore.StatusRunning {
			continue
		}
		fmt.Printf("%-14s %-16s %-10d %-20s %-10s %s\n",
			info.ID, info.Image, info.PID, info.CreateTime, info.Status, info.Command)
	}
	return nil
}
