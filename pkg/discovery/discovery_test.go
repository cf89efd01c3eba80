package discovery

import (
	"context"
	"errors"
	"net"
	"testing"
	"time"

	"github.com/miekg/dns"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// startDNSServer serves TXT records from an in-process UDP nameserver.
// A key mapped to an empty slice exists but has no TXT records.
func startDNSServer(t *testing.T, records map[string][]string) string {
	t.Helper()

	pc, err := net.ListenPacket("udp", "127.0.0.1:0")
	require.NoError(t, err)

	mux := dns.NewServeMux()
	mux.HandleFunc(".", func(w dns.ResponseWriter, r *dns.Msg) {
		m := new(dns.Msg)
		m.SetReply(r)

		q := r.Question[0]
		txts, ok := records[q.Name]
		if !ok {
			m.SetRcode(r, dns.RcodeNameError)
		}
		for _, txt := range txts {
			m.Answer = append(m.Answer, &dns.TXT{
				Hdr: dns.RR_Header{
					Name:   q.Name,
					Rrtype: dns.TypeTXT,
					Class:  dns.ClassINET,
					Ttl:    60,
				},
				Txt: []string{txt},
			})
		}
		_ = w.WriteMsg(m)
	})

	started := make(chan struct{})
	server := &dns.Server{
		PacketConn:        pc,
		Handler:           mux,
		NotifyStartedFunc: func() { close(started) },
	}
	go func() { _ = server.ActivateAndServe() }()
	<-started

	t.Cleanup(func() { _ = server.Shutdown() })

	return pc.LocalAddr().String()
}

func TestDNSResolverLookupTXT(t *testing.T) {
	addr := startDNSServer(t, map[string][]string{
		"peers.example.org.": {"10.0.0.2:9000", "10.0.0.3:9001"},
		"empty.example.org.": {},
	})

	resolver, err := NewDNSResolver(addr, time.Second)
	require.NoError(t, err)
	assert.Equal(t, addr, resolver.Nameserver())

	ctx := context.Background()

	t.Run("records", func(t *testing.T) {
		records, err := resolver.LookupTXT(ctx, "peers.example.org")
		require.NoError(t, err)
		assert.Equal(t, []string{"10.0.0.2:9000", "10.0.0.3:9001"}, records)
	})

	t.Run("no TXT records", func(t *testing.T) {
		_, err := resolver.LookupTXT(ctx, "empty.example.org")
		assert.ErrorIs(t, err, ErrNoAnswer)

		var noAnswer *NoAnswerError
		require.True(t, errors.As(err, &noAnswer))
		assert.Equal(t, "empty.example.org", noAnswer.Domain)
	})

	t.Run("nxdomain", func(t *testing.T) {
		_, err := resolver.LookupTXT(ctx, "missing.example.org")
		assert.ErrorIs(t, err, ErrNoAnswer)
	})
}

func TestNewDNSResolverDefaultPort(t *testing.T) {
	resolver, err := NewDNSResolver("192.0.2.53", 0)
	require.NoError(t, err)
	assert.Equal(t, "192.0.2.53:53", resolver.Nameserver())
}

func TestStaticResolver(t *testing.T) {
	resolver := StaticResolver{"peers.test": {"127.0.0.1:9000"}}

	records, err := resolver.LookupTXT(context.Background(), "peers.test.")
	require.NoError(t, err)
	assert.Equal(t, []string{"127.0.0.1:9000"}, records)

	_, err = resolver.LookupTXT(context.Background(), "other.test")
	assert.ErrorIs(t, err, ErrNoAnswer)
}

func TestParseAddress(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		host    string
		port    int
		wantErr bool
	}{
		{name: "ipv4", input: "10.0.0.2:9000", host: "10.0.0.2", port: 9000},
		{name: "hostname", input: "node.example.org:7000", host: "node.example.org", port: 7000},
		{name: "bracketed ipv6", input: "[::1]:9000", host: "::1", port: 9000},
		{name: "bare ipv6", input: "::1:9000", host: "::1", port: 9000},
		{name: "multiaddr ip4", input: "/ip4/1.2.3.4/tcp/9000", host: "1.2.3.4", port: 9000},
		{name: "multiaddr ip6", input: "/ip6/::1/tcp/4001", host: "::1", port: 4001},
		{name: "multiaddr dns4", input: "/dns4/peer.example.org/tcp/443", host: "peer.example.org", port: 443},
		{name: "missing port", input: "10.0.0.2", wantErr: true},
		{name: "bad port", input: "10.0.0.2:http", wantErr: true},
		{name: "port out of range", input: "10.0.0.2:70000", wantErr: true},
		{name: "missing host", input: ":9000", wantErr: true},
		{name: "multiaddr without tcp", input: "/ip4/1.2.3.4/udp/9000", wantErr: true},
		{name: "empty", input: "", wantErr: true},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			host, port, err := ParseAddress(tt.input)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidAddress)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.host, host)
			assert.Equal(t, tt.port, port)
		})
	}
}

func TestParseTXTRecord(t *testing.T) {
	host, port, err := ParseTXTRecord("\"10.0.0.3:9001\"")
	require.NoError(t, err)
	assert.Equal(t, "10.0.0.3", host)
	assert.Equal(t, 9001, port)

	host, port, err = ParseTXTRecord("10.0.0.4:9002")
	require.NoError(t, err)
	assert.Equal(t, "10.0.0.4", host)
	assert.Equal(t, 9002, port)

	host, port, err = ParseTXTRecord("'10.0.0.6:9004'")
	require.NoError(t, err)
	assert.Equal(t, "10.0.0.6", host)
	assert.Equal(t, 9004, port)

	// Only one layer of quotes is removed
	_, _, err = ParseTXTRecord("\"\"10.0.0.5:9003\"\"")
	assert.Error(t, err)
	_, _, err = ParseTXTRecord("''10.0.0.5:9003''")
	assert.Error(t, err)

	// Quotes must match
	_, _, err = ParseTXTRecord("'10.0.0.5:9003\"")
	assert.Error(t, err)
}
