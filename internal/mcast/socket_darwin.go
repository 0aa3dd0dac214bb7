//go:build darwin

package mcast

import (
	"syscall"

	"golang.org/x/sys/unix"
)

// setSockOptReusePlatform mirrors the teacher's transport_socket_darwin.go:
// SO_REUSEADDR is the stable option on macOS, with SO_REUSEPORT attempted
// best-effort on top of it.
func setSockOptReusePlatform(fd int) error {
	if err := syscall.SetsockoptInt(fd, syscall.SOL_SOCKET, syscall.SO_REUSEADDR, 1); err != nil {
		return err
	}
	_ = syscall.SetsockoptInt(fd, syscall.SOL_SOCKET, unix.SO_REUSEPORT, 1)
	return nil
}
