package mcast

import (
	"fmt"
	"net"
	"time"

	"golang.org/x/net/ipv4"

	"github.com/nettools/pagemon/internal/endpoint"
	"github.com/nettools/pagemon/internal/perr"
)

// Receiver owns one UDP socket joined to a single multicast group/port,
// across one or more interfaces. Safe for a single reader goroutine;
// ReadPacket is not safe to call concurrently from multiple goroutines.
type Receiver struct {
	ep   endpoint.Endpoint
	conn *net.UDPConn
	pc   *ipv4.PacketConn
}

// Open binds ep.Port, applies socket tuning, and joins ep.Addr's
// multicast group on the interfaces named in cfg.Interfaces (or every
// multicast-capable interface when empty).
func Open(ep endpoint.Endpoint, cfg Config) (*Receiver, error) {
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, perr.New(perr.KindSocketIOFatal, endpoint.Render(ep), "invalid receiver config", err)
	}

	conn, err := net.ListenUDP("udp4", &net.UDPAddr{Port: int(ep.Port)})
	if err != nil {
		return nil, perr.New(perr.KindSocketIOFatal, endpoint.Render(ep), "listen udp", err)
	}

	if cfg.ReusePort {
		if err := setSockOptReuse(conn); err != nil {
			conn.Close()
			return nil, perr.New(perr.KindSocketIOFatal, endpoint.Render(ep), "set reuse options", err)
		}
	}
	if err := setSockOptBuffers(conn, cfg.ReceiveBufferBytes); err != nil {
		conn.Close()
		return nil, perr.New(perr.KindSocketIOFatal, endpoint.Render(ep), "set receive buffer", err)
	}

	pc := ipv4.NewPacketConn(conn)
	ifaces, err := joinInterfaces(pc, ep, cfg.Interfaces)
	if err != nil {
		conn.Close()
		return nil, err
	}
	if len(ifaces) == 0 {
		conn.Close()
		return nil, perr.New(perr.KindSocketIOFatal, endpoint.Render(ep), "no multicast-capable interface joined group", nil)
	}

	_ = pc.SetMulticastLoopback(false)

	return &Receiver{ep: ep, conn: conn, pc: pc}, nil
}

func joinInterfaces(pc *ipv4.PacketConn, ep endpoint.Endpoint, names []string) ([]string, error) {
	group := &net.UDPAddr{IP: ep.Addr}

	if len(names) > 0 {
		joined := make([]string, 0, len(names))
		for _, name := range names {
			iface, err := net.InterfaceByName(name)
			if err != nil {
				return nil, perr.New(perr.KindSocketIOFatal, endpoint.Render(ep), fmt.Sprintf("interface %q not found", name), err)
			}
			if err := pc.JoinGroup(iface, group); err != nil {
				return nil, perr.New(perr.KindSocketIOFatal, endpoint.Render(ep), fmt.Sprintf("join group on %q", name), err)
			}
			joined = append(joined, name)
		}
		return joined, nil
	}

	all, err := net.Interfaces()
	if err != nil {
		return nil, perr.New(perr.KindSocketIOFatal, endpoint.Render(ep), "enumerate interfaces", err)
	}
	var joined []string
	for i := range all {
		iface := &all[i]
		if iface.Flags&net.FlagMulticast == 0 || iface.Flags&net.FlagUp == 0 {
			continue
		}
		if err := pc.JoinGroup(iface, group); err == nil {
			joined = append(joined, iface.Name)
		}
	}
	return joined, nil
}

// ReadPacket blocks until one datagram arrives, returning its payload
// length, the sender's address, and the arrival wall-clock time captured
// as close to the read as possible for jitter accounting.
func (r *Receiver) ReadPacket(buf []byte, deadline time.Duration) (int, *net.UDPAddr, time.Time, error) {
	if deadline > 0 {
		_ = r.conn.SetReadDeadline(time.Now().Add(deadline))
	}
	n, addr, err := r.conn.ReadFromUDP(buf)
	arrival := time.Now()
	if err != nil {
		if fatal := classifyReadError(err); fatal {
			return 0, nil, arrival, perr.New(perr.KindSocketIOFatal, endpoint.Render(r.ep), "read udp", err)
		}
		return 0, nil, arrival, perr.New(perr.KindSocketIOTransient, endpoint.Render(r.ep), "read udp timeout", err)
	}
	return n, addr, arrival, nil
}

// Close leaves the multicast group and closes the socket.
func (r *Receiver) Close() error {
	return r.conn.Close()
}

// Endpoint returns the endpoint this receiver was opened for.
func (r *Receiver) Endpoint() endpoint.Endpoint { return r.ep }

// LocalPort returns the UDP port actually bound, useful when Open was
// called with port 0 and the kernel chose one.
func (r *Receiver) LocalPort() uint16 {
	return uint16(r.conn.LocalAddr().(*net.UDPAddr).Port)
}
