// Command lumper is a minimal container launcher: it creates namespaces,
// stacks an overlay rootfs, applies cgroup limits, and execs a target
// command inside the result.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/kingsamchen/lumper/internal/lumperlog"
	"github.com/kingsamchen/lumper/internal/mountns"
	"github.com/kingsamchen/lumper/internal/procutil"
)

func main() {
	if procutil.IsInitArgv(os.Args) {
		// The containment hook and exec failure path report structured
		// errors through the error pipe, not logging, but package-level
		// fallbacks (e.g. procutil's own slog.Default() calls on the
		// detach-relay path) still exist; stdio here may be the caller's
		// own terminal, so the default logger must drop everything rather
		// than risk corrupting it.
		slog.SetDefault(lumperlog.Discard())
		os.Exit(procutil.RunChild(decodeHook))
		return
	}

	logger := lumperlog.New(os.Getenv("DEBUG") != "")
	ctx := lumperlog.WithLogger(context.Background(), logger)

	if len(os.Args) < 2 {
		usage()
		os.Exit(1)
	}

	var err error
	switch os.Args[1] {
	case "run":
		err = runCommand(ctx, os.Args[2:])
	case "ps":
		err = psCommand(ctx, os.Args[2:])
	case "rm":
		err = rmCommand(ctx, os.Args[2:])
	case "-h", "--help", "help":
		usage()
		return
	default:
		usage()
		os.Exit(1)
	}

	if err != nil {
		logger.Error("lumper: command failed", "error", err)
		os.Exit(1)
	}
}

func decodeHook(kind string, data []byte) (procutil.PreExecHook, error) {
	return mountns.DecodeHook(kind, data)
}

func usage() {
	fmt.Fprintln(os.Stderr, `usage:
  lumper run -i IMAGE [--it | -d] [-m MEM] [--cpus N] [-v HOST:CONTAINER] CMD...
  lumper ps [-a|--all]
  lumper rm CONTAINER_ID...`)
}
