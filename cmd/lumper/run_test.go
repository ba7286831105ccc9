package main

import (
	"context"
	"strings"
	"testing"

	"github.com/kingsamchen/lumper/internal/procutil"
)

func TestRunCommandRequiresCmd(t *testing.T) {
	err := runCommand(context.Background(), []string{"-i", "alpine"})
	if err == nil || !strings.Contains(err.Error(), "CMD is mandatory") {
		t.Fatalf("expected a CMD-is-mandatory error, got %v", err)
	}
}

func TestRunCommandRequiresImage(t *testing.T) {
	err := runCommand(context.Background(), []string{"/bin/sh"})
	if err == nil || !strings.Contains(err.Error(), "-i IMAGE is mandatory") {
		t.Fatalf("expected an image-is-mandatory error, got %v", err)
	}
}

func TestRunCommandRejectsInteractiveAndDetachTogether(t *testing.T) {
	err := runCommand(context.Background(), []string{"-i", "alpine", "--it", "-d", "/bin/sh"})
	if err == nil || !strings.Contains(err.Error(), "mutually exclusive") {
		t.Fatalf("expected a mutual-exclusion error, got %v", err)
	}
}

func TestRunCommandRejectsMalformedVolume(t *testing.T) {
	err := runCommand(context.Background(), []string{"-i", "alpine", "-v", "no-colon-here", "/bin/sh"})
	if err == nil || !strings.Contains(err.Error(), "HOST:CONTAINER") {
		t.Fatalf("expected a malformed-volume error, got %v", err)
	}
}

func TestRunCommandRejectsMissingImage(t *testing.T) {
	err := runCommand(context.Background(), []string{"-i", "no-such-image-xyz", "/bin/sh"})
	if err == nil || !strings.Contains(err.Error(), "not found") {
		t.Fatalf("expected an image-not-found error, got %v", err)
	}
}

func TestExitCodeForExited(t *testing.T) {
	status := procutil.ExitStatus{Exited: true, Code: 3}
	if got := exitCodeFor(status); got != 3 {
		t.Fatalf("expected exit code 3, got %d", got)
	}
}

func TestLastUUIDSegment(t *testing.T) {
	if got := lastUUIDSegment("aaaa-bbbb-cccc-dddd"); got != "dddd" {
		t.Fatalf("expected dddd, got %q", got)
	}
	if got := lastUUIDSegment("nosegments"); got != "nosegments" {
		t.Fatalf("expected the input unchanged, got %q", got)
	}
}

func TestShortHostnameTruncatesTo12(t *testing.T) {
	if got := shortHostname("0123456789abcdef"); got != "0123456789ab" {
		t.Fatalf("expected truncation to 12 chars, got %q", got)
	}
	if got := shortHostname("short"); got != "short" {
		t.Fatalf("expected short ids unchanged, got %q", got)
	}
}
