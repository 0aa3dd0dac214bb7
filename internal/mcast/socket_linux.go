//go:build linux

package mcast

import (
	"syscall"

	"golang.org/x/sys/unix"
)

// setSockOptReusePlatform enables SO_REUSEPORT, per the teacher's
// transport_socket_linux.go: Linux load-balances multiple listeners on
// the same port at the kernel level.
func setSockOptReusePlatform(fd int) error {
	return syscall.SetsockoptInt(fd, syscall.SOL_SOCKET, unix.SO_REUSEPORT, 1)
}
