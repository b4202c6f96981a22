// Package ping sends single ICMP echo requests and measures the round trip.
package ping

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"sync/atomic"
	"time"

	"golang.org/x/net/icmp"
	"golang.org/x/net/ipv4"

	"sitehealth/internal/clock"
)

// DefaultTimeout is how long a probe waits for the echo reply.
const DefaultTimeout = 4 * time.Second

const protocolICMP = 1

var (
	// ErrNoHost is returned when there is nothing to ping.
	ErrNoHost = errors.New("ping: empty host")
	// ErrTimeout is returned when no matching reply arrived in time.
	ErrTimeout = errors.New("ping: no reply")
)

var sequence atomic.Uint32

// Pinger sends ICMP echo requests over IPv4.
// Unprivileged mode uses datagram ICMP sockets ("udp4"), which Linux allows
// for groups listed in net.ipv4.ping_group_range; privileged mode uses raw sockets.
type Pinger struct {
	timeout    time.Duration
	privileged bool
	resolver   *net.Resolver
	clock      clock.Timer
}

// New creates a Pinger. A non-positive timeout falls back to DefaultTimeout.
func New(timeout time.Duration, privileged bool, timer clock.Timer) *Pinger {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	return &Pinger{
		timeout:    timeout,
		privileged: privileged,
		resolver:   net.DefaultResolver,
		clock:      clock.OrDefault(timer),
	}
}

// Ping sends one echo request to host and returns the round-trip time.
func (p *Pinger) Ping(ctx context.Context, host string) (time.Duration, error) {
	if host == "" {
		return 0, ErrNoHost
	}

	ip, err := p.resolve(ctx, host)
	if err != nil {
		return 0, err
	}

	conn, err := p.listen()
	if err != nil {
		return 0, err
	}
	defer func() {
		_ = conn.Close()
	}()

	deadline := time.Now().Add(p.timeout)
	if ctxDeadline, ok := ctx.Deadline(); ok && ctxDeadline.Before(deadline) {
		deadline = ctxDeadline
	}
	if err := conn.SetDeadline(deadline); err != nil {
		return 0, fmt.Errorf("ping: set deadline: %w", err)
	}

	id := os.Getpid() & 0xffff
	seq := int(sequence.Add(1) & 0xffff)

	request, err := newEchoRequest(id, seq)
	if err != nil {
		return 0, err
	}

	start := p.clock.Now()
	if _, err := conn.WriteTo(request, p.destination(ip)); err != nil {
		return 0, fmt.Errorf("ping: write: %w", err)
	}

	buffer := make([]byte, 1500)
	for {
		n, peer, err := conn.ReadFrom(buffer)
		if err != nil {
			var netErr net.Error
			if errors.As(err, &netErr) && netErr.Timeout() {
				return 0, ErrTimeout
			}

			return 0, fmt.Errorf("ping: read: %w", err)
		}

		if !samePeer(peer, ip) {
			continue
		}

		// Datagram sockets rewrite the identifier, so only the sequence is compared there.
		if isEchoReply(buffer[:n], id, seq, !p.privileged) {
			return clock.Since(p.clock, start), nil
		}
	}
}

func (p *Pinger) resolve(ctx context.Context, host string) (net.IP, error) {
	if ip := net.ParseIP(host); ip != nil {
		if v4 := ip.To4(); v4 != nil {
			return v4, nil
		}

		return nil, fmt.Errorf("ping: %s is not an IPv4 address", host)
	}

	ips, err := p.resolver.LookupIP(ctx, "ip4", host)
	if err != nil {
		return nil, fmt.Errorf("ping: resolve %s: %w", host, err)
	}
	if len(ips) == 0 {
		return nil, fmt.Errorf("ping: resolve %s: no IPv4 address", host)
	}

	return ips[0].To4(), nil
}

func (p *Pinger) listen() (*icmp.PacketConn, error) {
	network := "udp4"
	if p.privileged {
		network = "ip4:icmp"
	}

	conn, err := icmp.ListenPacket(network, "0.0.0.0")
	if err != nil {
		return nil, fmt.Errorf("ping: listen %s: %w", network, err)
	}

	return conn, nil
}

func (p *Pinger) destination(ip net.IP) net.Addr {
	if p.privileged {
		return &net.IPAddr{IP: ip}
	}

	return &net.UDPAddr{IP: ip}
}

func newEchoRequest(id, seq int) ([]byte, error) {
	message := icmp.Message{
		Type: ipv4.ICMPTypeEcho,
		Code: 0,
		Body: &icmp.Echo{
			ID:   id,
			Seq:  seq,
			Data: []byte("sitehealth"),
		},
	}

	data, err := message.Marshal(nil)
	if err != nil {
		return nil, fmt.Errorf("ping: marshal echo: %w", err)
	}

	return data, nil
}

func isEchoReply(data []byte, id, seq int, ignoreID bool) bool {
	message, err := icmp.ParseMessage(protocolICMP, data)
	if err != nil {
		return false
	}

	if message.Type != ipv4.ICMPTypeEchoReply {
		return false
	}

	echo, ok := message.Body.(*icmp.Echo)
	if !ok {
		return false
	}

	if echo.Seq != seq {
		return false
	}

	return ignoreID || echo.ID == id
}

func samePeer(peer net.Addr, ip net.IP) bool {
	switch addr := peer.(type) {
	case *net.UDPAddr:
		return addr.IP.Equal(ip)
	case *net.IPAddr:
		return addr.IP.Equal(ip)
	default:
		return false
	}
}
