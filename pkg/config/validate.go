package config

import (
	"fmt"
	"net"
	"strconv"
	"strings"

	"github.com/multiformats/go-multiaddr"
)

// ValidationError represents a single validation error with context
type ValidationError struct {
	Path    string // e.g., "discovery.bootstrap[0]"
	Message string // e.g., "invalid address"
	Hint    string // e.g., "expected host:port or /ip4/<addr>/tcp/<port>"
}

func (e ValidationError) Error() string {
	if e.Hint != "" {
		return fmt.Sprintf("%s: %s; %s", e.Path, e.Message, e.Hint)
	}
	return fmt.Sprintf("%s: %s", e.Path, e.Message)
}

// Validate checks the entire config and returns every problem found
func (c *Config) Validate() []error {
	var errs []error

	errs = append(errs, c.validateNode()...)
	errs = append(errs, c.validateNetwork()...)
	errs = append(errs, c.validateDiscovery()...)
	errs = append(errs, c.validateAPI()...)
	errs = append(errs, c.validateLogging()...)

	return errs
}

func (c *Config) validateNode() []error {
	var errs []error
	nc := c.Node

	if err := validateHostPort(nc.ListenAddress, true); err != nil {
		errs = append(errs, ValidationError{
			Path:    "node.listen_address",
			Message: err.Error(),
			Hint:    "expected host:port, port 0 picks a free port",
		})
	}

	if nc.AdvertiseAddress != "" && strings.ContainsAny(nc.AdvertiseAddress, " /") {
		errs = append(errs, ValidationError{
			Path:    "node.advertise_address",
			Message: fmt.Sprintf("invalid host %q", nc.AdvertiseAddress),
		})
	}

	if nc.Protocol == "" || len(nc.Protocol) > 12 {
		errs = append(errs, ValidationError{
			Path:    "node.protocol",
			Message: fmt.Sprintf("must be 1 to 12 bytes, got %d", len(nc.Protocol)),
		})
	}

	return errs
}

func (c *Config) validateNetwork() []error {
	var errs []error
	nc := c.Network

	positive := []struct {
		path  string
		value int64
	}{
		{"network.connect_timeout", int64(nc.ConnectTimeout)},
		{"network.request_timeout", int64(nc.RequestTimeout)},
		{"network.max_payload", int64(nc.MaxPayload)},
		{"network.broadcast_concurrency", int64(nc.BroadcastConcurrency)},
	}
	for _, f := range positive {
		if f.value <= 0 {
			errs = append(errs, ValidationError{Path: f.path, Message: "must be positive"})
		}
	}

	if nc.ReadTimeout < 0 {
		errs = append(errs, ValidationError{
			Path:    "network.read_timeout",
			Message: "must not be negative",
			Hint:    "0 disables the inbound read bound",
		})
	}

	return errs
}

func (c *Config) validateDiscovery() []error {
	var errs []error
	dc := c.Discovery

	for i, addr := range dc.Bootstrap {
		if err := validatePeerAddress(addr); err != nil {
			errs = append(errs, ValidationError{
				Path:    fmt.Sprintf("discovery.bootstrap[%d]", i),
				Message: err.Error(),
				Hint:    "expected host:port or /ip4/<addr>/tcp/<port>",
			})
		}
	}

	for i, domain := range dc.DNSDomains {
		if domain == "" || strings.ContainsAny(domain, " /:") {
			errs = append(errs, ValidationError{
				Path:    fmt.Sprintf("discovery.dns_domains[%d]", i),
				Message: fmt.Sprintf("invalid domain %q", domain),
			})
		}
	}

	if dc.DNSTimeout <= 0 {
		errs = append(errs, ValidationError{Path: "discovery.dns_timeout", Message: "must be positive"})
	}

	return errs
}

func (c *Config) validateAPI() []error {
	if !c.API.Enabled {
		return nil
	}
	var errs []error
	if err := validateHostPort(c.API.ListenAddress, true); err != nil {
		errs = append(errs, ValidationError{
			Path:    "api.listen_address",
			Message: err.Error(),
		})
	}
	if c.API.RateLimit < 0 {
		errs = append(errs, ValidationError{
			Path:    "api.rate_limit",
			Message: "must not be negative",
			Hint:    "use 0 to disable rate limiting",
		})
	}
	if c.API.RateLimit > 0 && c.API.RateWindow <= 0 {
		errs = append(errs, ValidationError{
			Path:    "api.rate_window",
			Message: "must be positive when rate_limit is set",
		})
	}
	return errs
}

func (c *Config) validateLogging() []error {
	var errs []error
	log := c.Logging

	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[log.Level] {
		errs = append(errs, ValidationError{
			Path:    "logging.level",
			Message: fmt.Sprintf("invalid value %q", log.Level),
			Hint:    "allowed values: debug, info, warn, error",
		})
	}

	validFormats := map[string]bool{"json": true, "console": true}
	if !validFormats[log.Format] {
		errs = append(errs, ValidationError{
			Path:    "logging.format",
			Message: fmt.Sprintf("invalid value %q", log.Format),
			Hint:    "allowed values: json, console",
		})
	}

	return errs
}

func validateHostPort(addr string, allowZero bool) error {
	_, portStr, err := net.SplitHostPort(addr)
	if err != nil {
		return fmt.Errorf("invalid address %q", addr)
	}
	port, err := strconv.Atoi(portStr)
	if err != nil || port < 0 || port > 65535 || (port == 0 && !allowZero) {
		return fmt.Errorf("invalid port %q", portStr)
	}
	return nil
}

func validatePeerAddress(addr string) error {
	if strings.HasPrefix(addr, "/") {
		ma, err := multiaddr.NewMultiaddr(addr)
		if err != nil {
			return fmt.Errorf("invalid multiaddr: %v", err)
		}
		if _, err := ma.ValueForProtocol(multiaddr.P_TCP); err != nil {
			return fmt.Errorf("multiaddr has no tcp component")
		}
		return nil
	}

	host, _, err := net.SplitHostPort(addr)
	if err != nil {
		return fmt.Errorf("invalid address %q", addr)
	}
	if host == "" {
		return fmt.Errorf("missing host in %q", addr)
	}
	return validateHostPort(addr, false)
}
