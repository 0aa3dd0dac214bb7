package mcast

import (
	"fmt"
	"net"
	"syscall"
)

// setSockOptBuffers sets SO_RCVBUF via the raw syscall connection,
// grounded on the teacher's setSockOptForVoiceExtended/applySockOptForVoice
// SyscallConn().Control() pattern in transport_common.go.
func setSockOptBuffers(conn *net.UDPConn, bytes int) error {
	rawConn, err := conn.SyscallConn()
	if err != nil {
		return fmt.Errorf("get raw conn: %w", err)
	}
	var sockErr error
	ctrlErr := rawConn.Control(func(fd uintptr) {
		sockErr = syscall.SetsockoptInt(int(fd), syscall.SOL_SOCKET, syscall.SO_RCVBUF, bytes)
	})
	if ctrlErr != nil {
		return fmt.Errorf("control raw conn: %w", ctrlErr)
	}
	return sockErr
}

// setSockOptReuse applies the platform's reuse-address/reuse-port option
// (see socket_linux.go/socket_darwin.go/socket_windows.go) so the caller
// can bind the same multicast port from more than one socket.
func setSockOptReuse(conn *net.UDPConn) error {
	rawConn, err := conn.SyscallConn()
	if err != nil {
		return fmt.Errorf("get raw conn: %w", err)
	}
	var sockErr error
	ctrlErr := rawConn.Control(func(fd uintptr) {
		sockErr = setSockOptReusePlatform(int(fd))
	})
	if ctrlErr != nil {
		return fmt.Errorf("control raw conn: %w", ctrlErr)
	}
	return sockErr
}

// classifyReadError distinguishes a transient read failure (worth
// retrying the receive loop) from a fatal one (socket is gone), mirroring
// the teacher's classifyNetworkError net.Error.Temporary()/Timeout()
// check in transport_udp.go.
func classifyReadError(err error) (fatal bool) {
	if netErr, ok := err.(net.Error); ok {
		if netErr.Timeout() {
			return false
		}
	}
	return true
}
