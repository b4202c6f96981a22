package dnsprobe

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/miekg/dns"
	"github.com/stretchr/testify/require"
)

// startServer runs an in-process DNS server answering from records.
// Names missing from records get NXDOMAIN.
func startServer(t *testing.T, records map[string]string) string {
	t.Helper()

	conn, err := net.ListenPacket("udp", "127.0.0.1:0")
	require.NoError(t, err)

	handler := dns.HandlerFunc(func(w dns.ResponseWriter, req *dns.Msg) {
		response := new(dns.Msg)
		response.SetReply(req)

		question := req.Question[0]
		address, ok := records[question.Name]
		switch {
		case !ok:
			response.Rcode = dns.RcodeNameError
		case address != "":
			response.Answer = append(response.Answer, &dns.A{
				Hdr: dns.RR_Header{Name: question.Name, Rrtype: dns.TypeA, Class: dns.ClassINET, Ttl: 60},
				A:   net.ParseIP(address),
			})
		}

		_ = w.WriteMsg(response)
	})

	started := make(chan struct{})
	server := &dns.Server{
		PacketConn:        conn,
		Handler:           handler,
		NotifyStartedFunc: func() { close(started) },
	}

	go func() {
		_ = server.ActivateAndServe()
	}()
	<-started

	t.Cleanup(func() {
		_ = server.Shutdown()
	})

	return conn.LocalAddr().String()
}

func TestLookupA(t *testing.T) {
	t.Parallel()

	addr := startServer(t, map[string]string{
		"example.com.": "93.184.216.34",
		"empty.test.":  "",
	})

	resolver, err := New([]string{addr}, time.Second)
	require.NoError(t, err)

	tests := []struct {
		name    string
		host    string
		wantIP  string
		wantErr func(t *testing.T, err error)
	}{
		{
			name:   "resolves",
			host:   "example.com",
			wantIP: "93.184.216.34",
		},
		{
			name: "nxdomain",
			host: "missing.test",
			wantErr: func(t *testing.T, err error) {
				var rcodeErr *RcodeError
				require.ErrorAs(t, err, &rcodeErr)
				require.Equal(t, dns.RcodeNameError, rcodeErr.Rcode)
				require.Contains(t, err.Error(), "NXDOMAIN")
			},
		},
		{
			name: "no answer",
			host: "empty.test",
			wantErr: func(t *testing.T, err error) {
				require.ErrorIs(t, err, ErrNoAnswer)
			},
		},
		{
			name: "empty host",
			host: "",
			wantErr: func(t *testing.T, err error) {
				require.ErrorIs(t, err, ErrNoHost)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			ips, err := resolver.LookupA(context.Background(), tt.host)
			if tt.wantErr != nil {
				require.Error(t, err)
				tt.wantErr(t, err)

				return
			}

			require.NoError(t, err)
			require.Len(t, ips, 1)
			require.Equal(t, tt.wantIP, ips[0].String())
		})
	}
}

func TestLookupAFallsBackToNextServer(t *testing.T) {
	t.Parallel()

	// Nothing answers on this socket once it is closed.
	dead, err := net.ListenPacket("udp", "127.0.0.1:0")
	require.NoError(t, err)
	deadAddr := dead.LocalAddr().String()
	require.NoError(t, dead.Close())

	live := startServer(t, map[string]string{"example.com.": "10.0.0.1"})

	resolver, err := New([]string{deadAddr, live}, 200*time.Millisecond)
	require.NoError(t, err)

	ips, err := resolver.LookupA(context.Background(), "example.com")
	require.NoError(t, err)
	require.Equal(t, "10.0.0.1", ips[0].String())
}

func TestLookupAAllServersFail(t *testing.T) {
	t.Parallel()

	dead, err := net.ListenPacket("udp", "127.0.0.1:0")
	require.NoError(t, err)
	deadAddr := dead.LocalAddr().String()
	require.NoError(t, dead.Close())

	resolver, err := New([]string{deadAddr}, 100*time.Millisecond)
	require.NoError(t, err)

	_, err = resolver.LookupA(context.Background(), "example.com")
	require.Error(t, err)
	require.Contains(t, err.Error(), deadAddr)
}

func TestNewAddsDefaultPort(t *testing.T) {
	t.Parallel()

	resolver, err := New([]string{"8.8.8.8", "1.1.1.1:5353", "::1"}, 0)
	require.NoError(t, err)
	require.Equal(t, []string{"8.8.8.8:53", "1.1.1.1:5353", "[::1]:53"}, resolver.Servers())
	require.Equal(t, DefaultTimeout, resolver.client.Timeout)
}
