// Package dnsprobe performs single A-record queries against recursive resolvers.
package dnsprobe

import (
	"context"
	"errors"
	"fmt"
	"net"
	"time"

	"github.com/miekg/dns"
)

// DefaultTimeout bounds one query exchange.
const DefaultTimeout = 5 * time.Second

const resolvConfPath = "/etc/resolv.conf"

var (
	// ErrNoHost is returned when there is nothing to resolve.
	ErrNoHost = errors.New("dns: empty host")
	// ErrNoAnswer is returned when the response carries no A record.
	ErrNoAnswer = errors.New("dns: no A record in answer")
	// ErrNoServers is returned when no nameserver is configured.
	ErrNoServers = errors.New("dns: no nameservers configured")
)

// RcodeError reports a response with a non-success rcode such as NXDOMAIN.
type RcodeError struct {
	Host  string
	Rcode int
}

func (e *RcodeError) Error() string {
	return fmt.Sprintf("dns: %s: %s", e.Host, dns.RcodeToString[e.Rcode])
}

// Resolver sends A queries to a list of nameservers, trying them in order.
type Resolver struct {
	client  *dns.Client
	servers []string
}

// New creates a Resolver for servers ("host" or "host:port").
// An empty list reads the nameservers from /etc/resolv.conf.
func New(servers []string, timeout time.Duration) (*Resolver, error) {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	if len(servers) == 0 {
		fromConf, err := systemServers(resolvConfPath)
		if err != nil {
			return nil, err
		}
		servers = fromConf
	}

	normalized := make([]string, 0, len(servers))
	for _, server := range servers {
		normalized = append(normalized, withDefaultPort(server))
	}

	if len(normalized) == 0 {
		return nil, ErrNoServers
	}

	return &Resolver{
		client:  &dns.Client{Net: "udp", Timeout: timeout},
		servers: normalized,
	}, nil
}

// Servers returns the nameserver addresses in query order.
func (r *Resolver) Servers() []string {
	return append([]string(nil), r.servers...)
}

// LookupA resolves the A records of host.
// The first server that produces a response decides the outcome.
func (r *Resolver) LookupA(ctx context.Context, host string) ([]net.IP, error) {
	if host == "" {
		return nil, ErrNoHost
	}

	query := new(dns.Msg)
	query.SetQuestion(dns.Fqdn(host), dns.TypeA)
	query.RecursionDesired = true

	var lastErr error
	for _, server := range r.servers {
		response, _, err := r.client.ExchangeContext(ctx, query, server)
		if err != nil {
			lastErr = fmt.Errorf("dns: query %s via %s: %w", host, server, err)
			if ctx.Err() != nil {
				return nil, lastErr
			}

			continue
		}

		return answerIPs(host, response)
	}

	return nil, lastErr
}

func answerIPs(host string, response *dns.Msg) ([]net.IP, error) {
	if response.Rcode != dns.RcodeSuccess {
		return nil, &RcodeError{Host: host, Rcode: response.Rcode}
	}

	ips := []net.IP{}
	for _, record := range response.Answer {
		if a, ok := record.(*dns.A); ok {
			ips = append(ips, a.A)
		}
	}

	if len(ips) == 0 {
		return nil, ErrNoAnswer
	}

	return ips, nil
}

func systemServers(path string) ([]string, error) {
	conf, err := dns.ClientConfigFromFile(path)
	if err != nil {
		return nil, fmt.Errorf("dns: read %s: %w", path, err)
	}

	servers := make([]string, 0, len(conf.Servers))
	for _, server := range conf.Servers {
		servers = append(servers, net.JoinHostPort(server, conf.Port))
	}

	return servers, nil
}

func withDefaultPort(server string) string {
	if _, _, err := net.SplitHostPort(server); err == nil {
		return server
	}

	return net.JoinHostPort(server, "53")
}
