package diag

import (
	"fmt"
	"net"
)

// SampleListeningPorts reports which TCP ports in [startPort, endPort]
// (inclusive) are currently in use on the host. It asks the OS directly
// via net.Listen rather than parsing netstat output — a bind attempt is
// authoritative and needs no elevated permissions.
//
// This backs the portable half of the `doctor` command: the Windows
// netstat diagnostic shows everything but only exists there, while this
// sample works on every platform for the range the test nodes bind.
func SampleListeningPorts(startPort, endPort int) []int {
	var used []int
	for port := startPort; port <= endPort; port++ {
		if !portAvailable(port) {
			used = append(used, port)
		}
	}
	return used
}

// portAvailable reports whether a TCP port can be bound on all
// interfaces. Binding ":port" rather than "127.0.0.1:port" matches the
// address space the test nodes publish on, avoiding false negatives.
func portAvailable(port int) bool {
	listener, err := net.Listen("tcp", fmt.Sprintf(":%d", port))
	if err != nil {
		return false
	}
	defer func() { _ = listener.Close() }()
	return true
}
