// Package netsetup configures the minimal amount of networking a fresh
// network namespace needs to be usable at all: its loopback interface.
// Anything beyond that (bridges, veth pairs, routes) is out of scope per
// the non-goal on general networking setup; this package exists because a
// namespace with CLONE_NEWNET and no loopback bring-up can't even reach
// 127.0.0.1 from inside the container.
package netsetup

import (
	"fmt"

	"github.com/vishvananda/netlink"
)

// BringUpLoopback sets the "lo" interface to the up state in the calling
// process's current network namespace. It must be called after the
// containment hook has entered the new network namespace (i.e. after the
// clone with CLONE_NEWNET, before or after the pivot - loopback state is
// independent of the mount namespace).
func BringUpLoopback() error {
	lo, err := netlink.LinkByName("lo")
	if err != nil {
		return fmt.Errorf("netsetup: find loopback interface: %w", err)
	}
	if err := netlink.LinkSetUp(lo); err != nil {
		return fmt.Errorf("netsetup: bring up loopback interface: %w", err)
	}
	return nil
}
