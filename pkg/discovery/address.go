package discovery

import (
	"errors"
	"fmt"
	"net"
	"strconv"
	"strings"

	ma "github.com/multiformats/go-multiaddr"
)

var ErrInvalidAddress = errors.New("invalid peer address")

// ParseAddress splits a peer location into host and port. It accepts
// "host:port", "[v6]:port" and multiaddrs such as "/ip4/1.2.3.4/tcp/9000".
func ParseAddress(s string) (string, int, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return "", 0, fmt.Errorf("%w: empty", ErrInvalidAddress)
	}

	if strings.HasPrefix(s, "/") {
		return parseMultiaddr(s)
	}

	host, portStr, err := net.SplitHostPort(s)
	if err != nil {
		// Bare IPv6 without brackets: split on the last colon
		idx := strings.LastIndex(s, ":")
		if idx <= 0 {
			return "", 0, fmt.Errorf("%w: %q", ErrInvalidAddress, s)
		}
		host, portStr = s[:idx], s[idx+1:]
	}

	port, err := parsePort(portStr)
	if err != nil {
		return "", 0, fmt.Errorf("%w: %q: %v", ErrInvalidAddress, s, err)
	}
	if host == "" {
		return "", 0, fmt.Errorf("%w: %q: missing host", ErrInvalidAddress, s)
	}

	return host, port, nil
}

func parseMultiaddr(s string) (string, int, error) {
	addr, err := ma.NewMultiaddr(s)
	if err != nil {
		return "", 0, fmt.Errorf("%w: %q: %v", ErrInvalidAddress, s, err)
	}

	var host string
	for _, code := range []int{ma.P_IP4, ma.P_IP6, ma.P_DNS4, ma.P_DNS6, ma.P_DNS} {
		if v, err := addr.ValueForProtocol(code); err == nil {
			host = v
			break
		}
	}
	if host == "" {
		return "", 0, fmt.Errorf("%w: %q: no host component", ErrInvalidAddress, s)
	}

	portStr, err := addr.ValueForProtocol(ma.P_TCP)
	if err != nil {
		return "", 0, fmt.Errorf("%w: %q: no tcp component", ErrInvalidAddress, s)
	}

	port, err := parsePort(portStr)
	if err != nil {
		return "", 0, fmt.Errorf("%w: %q: %v", ErrInvalidAddress, s, err)
	}

	return host, port, nil
}

func parsePort(s string) (int, error) {
	port, err := strconv.Atoi(s)
	if err != nil {
		return 0, fmt.Errorf("bad port %q", s)
	}
	if port < 1 || port > 65535 {
		return 0, fmt.Errorf("port %d out of range", port)
	}
	return port, nil
}

// ParseTXTRecord parses one discovery TXT record. One matching pair of
// surrounding double or single quotes is removed before the "address:port"
// split.
func ParseTXTRecord(record string) (string, int, error) {
	record = strings.TrimSpace(record)
	if len(record) >= 2 {
		first, last := record[0], record[len(record)-1]
		if first == last && (first == '"' || first == '\'') {
			record = record[1 : len(record)-1]
		}
	}
	return ParseAddress(record)
}
