//go:build !windows

package netutil

import "os"

// CanOpenRawSocket returns true when the process may open raw ICMP sockets.
// Unix implementation: require euid == 0.
func CanOpenRawSocket() (bool, error) {
	return os.Geteuid() == 0, nil
}
