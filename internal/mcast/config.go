// Package mcast opens and tunes the UDP sockets that receive multicast
// RTP streams, and enumerates the interfaces each group is joined on.
package mcast

// Config controls socket tuning for one receiver. Follows the teacher's
// ApplyDefaults()/Validate() config idiom (ExtendedTransportConfig).
type Config struct {
	// ReceiveBufferBytes sets SO_RCVBUF; 0 selects DefaultReceiveBuffer.
	ReceiveBufferBytes int

	// Interfaces restricts the multicast join to these interface names.
	// Empty means "every multicast-capable interface", per the design
	// notes' default join-on-all-interfaces behavior.
	Interfaces []string

	// ReusePort enables SO_REUSEPORT/SO_REUSEADDR so more than one
	// process, or more than one socket within this process, can bind the
	// same multicast port.
	ReusePort bool
}

// DefaultReceiveBuffer is 1 MiB: enough to absorb a multi-second burst of
// 20ms G.711 frames without the kernel dropping datagrams under load. The
// kernel may cap the value it actually applies.
const DefaultReceiveBuffer = 1 << 20

// ApplyDefaults fills zero-valued fields with their defaults.
func (c *Config) ApplyDefaults() {
	if c.ReceiveBufferBytes == 0 {
		c.ReceiveBufferBytes = DefaultReceiveBuffer
	}
}

// Validate checks the config is internally consistent.
func (c *Config) Validate() error {
	if c.ReceiveBufferBytes < 0 {
		return errNegativeBuffer
	}
	return nil
}

var errNegativeBuffer = configError("receive buffer size cannot be negative")

type configError string

func (e configError) Error() string { return string(e) }
