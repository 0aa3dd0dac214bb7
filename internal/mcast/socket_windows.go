//go:build windows

package mcast

import "syscall"

// setSockOptReusePlatform mirrors the teacher's transport_socket_windows.go:
// Windows has no SO_REUSEPORT, only SO_REUSEADDR.
func setSockOptReusePlatform(fd int) error {
	return syscall.SetsockoptInt(syscall.Handle(fd), syscall.SOL_SOCKET, syscall.SO_REUSEADDR, 1)
}
