package discovery

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"
	"time"

	"github.com/miekg/dns"
)

const (
	// DefaultTimeout bounds a single TXT query
	DefaultTimeout = 5 * time.Second

	resolvConfPath = "/etc/resolv.conf"
)

var ErrNoAnswer = errors.New("no TXT records")

// NoAnswerError reports a discovery domain without TXT records
type NoAnswerError struct {
	Domain string
}

func (e *NoAnswerError) Error() string {
	return fmt.Sprintf("discover peers via %s: %v", e.Domain, ErrNoAnswer)
}

func (e *NoAnswerError) Unwrap() error {
	return ErrNoAnswer
}

// Resolver returns the TXT record strings published for a domain
type Resolver interface {
	LookupTXT(ctx context.Context, domain string) ([]string, error)
}

// DNSResolver queries a nameserver directly for TXT records
type DNSResolver struct {
	nameserver string
	timeout    time.Duration
	client     *dns.Client
}

// NewDNSResolver creates a resolver for nameserver ("host:port").
// An empty nameserver uses the first server listed in /etc/resolv.conf.
func NewDNSResolver(nameserver string, timeout time.Duration) (*DNSResolver, error) {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	if nameserver == "" {
		conf, err := dns.ClientConfigFromFile(resolvConfPath)
		if err != nil {
			return nil, fmt.Errorf("failed to read %s: %w", resolvConfPath, err)
		}
		if len(conf.Servers) == 0 {
			return nil, fmt.Errorf("no nameservers in %s", resolvConfPath)
		}
		nameserver = net.JoinHostPort(conf.Servers[0], conf.Port)
	} else if _, _, err := net.SplitHostPort(nameserver); err != nil {
		nameserver = net.JoinHostPort(nameserver, "53")
	}

	return &DNSResolver{
		nameserver: nameserver,
		timeout:    timeout,
		client:     &dns.Client{Net: "udp", Timeout: timeout},
	}, nil
}

// Nameserver returns the server queried by this resolver
func (r *DNSResolver) Nameserver() string {
	return r.nameserver
}

// LookupTXT returns every TXT record for domain, each record's character
// strings joined. A domain without TXT records yields a *NoAnswerError.
func (r *DNSResolver) LookupTXT(ctx context.Context, domain string) ([]string, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	msg := new(dns.Msg)
	msg.SetQuestion(dns.Fqdn(domain), dns.TypeTXT)
	msg.RecursionDesired = true

	in, _, err := r.client.ExchangeContext(ctx, msg, r.nameserver)
	if err != nil {
		return nil, fmt.Errorf("query TXT %s: %w", domain, err)
	}

	// Large record sets do not fit a UDP answer
	if in.Truncated {
		tcp := &dns.Client{Net: "tcp", Timeout: r.timeout}
		in, _, err = tcp.ExchangeContext(ctx, msg, r.nameserver)
		if err != nil {
			return nil, fmt.Errorf("query TXT %s over tcp: %w", domain, err)
		}
	}

	switch in.Rcode {
	case dns.RcodeSuccess:
	case dns.RcodeNameError:
		return nil, &NoAnswerError{Domain: domain}
	default:
		return nil, fmt.Errorf("query TXT %s: %s", domain, dns.RcodeToString[in.Rcode])
	}

	var records []string
	for _, rr := range in.Answer {
		if txt, ok := rr.(*dns.TXT); ok {
			records = append(records, strings.Join(txt.Txt, ""))
		}
	}

	if len(records) == 0 {
		return nil, &NoAnswerError{Domain: domain}
	}

	return records, nil
}

// StaticResolver serves fixed TXT records, keyed by domain
type StaticResolver map[string][]string

// LookupTXT implements Resolver
func (s StaticResolver) LookupTXT(_ context.Context, domain string) ([]string, error) {
	records := s[strings.TrimSuffix(domain, ".")]
	if len(records) == 0 {
		return nil, &NoAnswerError{Domain: domain}
	}
	out := make([]string, len(records))
	copy(out, records)
	return out, nil
}
