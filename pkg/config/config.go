package config

import (
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"go.uber.org/multierr"
)

// Config represents the main configuration for a peer daemon
type Config struct {
	Node      NodeConfig      `yaml:"node"`
	Network   NetworkConfig   `yaml:"network"`
	Discovery DiscoveryConfig `yaml:"discovery"`
	Storage   StorageConfig   `yaml:"storage"`
	API       APIConfig       `yaml:"api"`
	Logging   LoggingConfig   `yaml:"logging"`
}

// NodeConfig contains node identity and listener configuration
type NodeConfig struct {
	ID               string `yaml:"id"`                // Auto-generated if empty
	ListenAddress    string `yaml:"listen_address"`    // host:port for the peer listener
	AdvertiseAddress string `yaml:"advertise_address"` // Address announced to peers; derived from the listener if empty
	Protocol         string `yaml:"protocol"`          // Protocol name written into frames
}

// NetworkConfig contains timeouts and limits of the peer transport
type NetworkConfig struct {
	ConnectTimeout       time.Duration `yaml:"connect_timeout"`
	ReadTimeout          time.Duration `yaml:"read_timeout"`    // Inbound frame read bound
	RequestTimeout       time.Duration `yaml:"request_timeout"` // LIST and MESG requester bound
	MaxPayload           uint32        `yaml:"max_payload"`
	ParallelBroadcast    bool          `yaml:"parallel_broadcast"`
	BroadcastConcurrency int           `yaml:"broadcast_concurrency"`
}

// DiscoveryConfig contains bootstrap peers and DNS discovery settings
type DiscoveryConfig struct {
	Bootstrap  []string      `yaml:"bootstrap"`   // host:port or multiaddr
	DNSDomains []string      `yaml:"dns_domains"` // Domains whose TXT records list peers
	Nameserver string        `yaml:"nameserver"`  // Empty for /etc/resolv.conf
	DNSTimeout time.Duration `yaml:"dns_timeout"`
}

// StorageConfig contains persistence configuration
type StorageConfig struct {
	Path string `yaml:"path"` // sqlite file; empty disables persistence
}

// APIConfig contains the admin HTTP API configuration
type APIConfig struct {
	Enabled       bool          `yaml:"enabled"`
	ListenAddress string        `yaml:"listen_address"`
	RateLimit     int           `yaml:"rate_limit"` // Requests per window per client, 0 disables
	RateWindow    time.Duration `yaml:"rate_window"`
	CORSOrigins   []string      `yaml:"cors_origins"` // Enables CORS when set; "*" allows any origin
}

// LoggingConfig contains logging configuration
type LoggingConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // json, console
}

// Default returns a configuration with every field set
func Default() *Config {
	return &Config{
		Node: NodeConfig{
			ListenAddress: "0.0.0.0:9000",
			Protocol:      "ClassicV1",
		},
		Network: NetworkConfig{
			ConnectTimeout:       time.Second,
			ReadTimeout:          30 * time.Second,
			RequestTimeout:       5 * time.Second,
			MaxPayload:           16 << 20,
			BroadcastConcurrency: 8,
		},
		Discovery: DiscoveryConfig{
			DNSTimeout: 5 * time.Second,
		},
		Storage: StorageConfig{
			Path: "peerd.db",
		},
		API: APIConfig{
			Enabled:       true,
			ListenAddress: "127.0.0.1:8080",
			RateLimit:     600,
			RateWindow:    time.Minute,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "console",
		},
	}
}

// Load reads the YAML file at path over the defaults and validates the result
func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open config: %w", err)
	}
	defer f.Close()

	return Parse(f)
}

// Parse decodes YAML over the defaults and validates the result.
// An empty document yields the defaults.
func Parse(r io.Reader) (*Config, error) {
	cfg := Default()
	if err := DecodeStrict(r, cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, err
	}

	if errs := cfg.Validate(); len(errs) > 0 {
		return nil, multierr.Combine(errs...)
	}
	return cfg, nil
}
