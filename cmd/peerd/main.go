package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/ZentaChain/zentalk-p2p/pkg/api"
	"github.com/ZentaChain/zentalk-p2p/pkg/classic"
	"github.com/ZentaChain/zentalk-p2p/pkg/config"
	"github.com/ZentaChain/zentalk-p2p/pkg/discovery"
	"github.com/ZentaChain/zentalk-p2p/pkg/logging"
	"github.com/ZentaChain/zentalk-p2p/pkg/p2p"
	"github.com/ZentaChain/zentalk-p2p/pkg/storage"
)

const (
	heartbeatInterval = 5 * time.Minute
	joinTimeout       = 10 * time.Second
	shutdownTimeout   = 10 * time.Second
	selfQuitWait      = 2 * time.Second
)

var (
	configPath = flag.String("config", "", "Path to YAML config file")
	nodeID     = flag.String("id", "", "Node ID (generated if empty)")
	listenAddr = flag.String("listen", "", "Peer listen address, host:port")
	joinAddrs  = flag.String("join", "", "Comma-separated peers to join (host:port or multiaddr)")
	dnsDomains = flag.String("dns", "", "Comma-separated domains to discover peers from")
	apiAddr    = flag.String("api", "", "Admin API listen address (enables the API)")
)

func main() {
	flag.Parse()

	cfg, err := loadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	logger, err := logging.New(logging.Options{Level: cfg.Logging.Level, Format: cfg.Logging.Format})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	if err := run(cfg, logger); err != nil {
		logger.Error("Peer daemon failed", zap.Error(err))
		logger.Sync()
		os.Exit(1)
	}
}

func loadConfig() (*config.Config, error) {
	cfg := config.Default()
	if *configPath != "" {
		loaded, err := config.Load(*configPath)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	}

	if *nodeID != "" {
		cfg.Node.ID = *nodeID
	}
	if *listenAddr != "" {
		cfg.Node.ListenAddress = *listenAddr
	}
	cfg.Discovery.Bootstrap = append(cfg.Discovery.Bootstrap, splitList(*joinAddrs)...)
	cfg.Discovery.DNSDomains = append(cfg.Discovery.DNSDomains, splitList(*dnsDomains)...)
	if *apiAddr != "" {
		cfg.API.Enabled = true
		cfg.API.ListenAddress = *apiAddr
	}

	if errs := cfg.Validate(); len(errs) > 0 {
		var b strings.Builder
		b.WriteString("invalid configuration:")
		for _, err := range errs {
			b.WriteString("\n  - ")
			b.WriteString(err.Error())
		}
		return nil, fmt.Errorf("%s", b.String())
	}
	return cfg, nil
}

func splitList(s string) []string {
	var out []string
	for _, item := range strings.Split(s, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}

func run(cfg *config.Config, logger *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Persistence is optional
	var store *storage.Store
	if cfg.Storage.Path != "" {
		if dir := filepath.Dir(cfg.Storage.Path); dir != "." {
			if err := os.MkdirAll(dir, 0755); err != nil {
				return fmt.Errorf("failed to create data directory: %w", err)
			}
		}
		s, err := storage.Open(cfg.Storage.Path)
		if err != nil {
			return err
		}
		defer s.Close()
		store = s
		logger.Info("Storage opened", zap.String("path", cfg.Storage.Path))
	}

	opts := classic.Options{
		Config: p2p.Config{
			Name:           cfg.Node.Protocol,
			Self:           p2p.Peer{ID: cfg.Node.ID, Address: cfg.Node.AdvertiseAddress},
			ConnectTimeout: cfg.Network.ConnectTimeout,
			ReadTimeout:    cfg.Network.ReadTimeout,
			MaxPayload:     cfg.Network.MaxPayload,
			Logger:         logger,
		},
		RequestTimeout:       cfg.Network.RequestTimeout,
		ParallelBroadcast:    cfg.Network.ParallelBroadcast,
		BroadcastConcurrency: cfg.Network.BroadcastConcurrency,
		OnMessage: func(from p2p.Peer, msg classic.Message) {
			logger.Info("Message",
				zap.String("from", from.ID),
				zap.String("text", msg.Text))
		},
	}
	if store != nil {
		opts.Store = store
	}

	resolver, err := discovery.NewDNSResolver(cfg.Discovery.Nameserver, cfg.Discovery.DNSTimeout)
	if err != nil {
		logger.Warn("DNS discovery unavailable", zap.Error(err))
	} else {
		opts.Resolver = resolver
	}

	node, err := classic.New(opts)
	if err != nil {
		return err
	}
	defer node.Close()

	if err := node.Listen(ctx, cfg.Node.ListenAddress); err != nil {
		return err
	}

	if _, err := node.RestorePeers(); err != nil {
		logger.Warn("Failed to restore peers", zap.Error(err))
	}

	joinNetwork(ctx, node, cfg, logger)

	if cfg.API.Enabled {
		apiConfig := api.DefaultConfig()
		apiConfig.ListenAddress = cfg.API.ListenAddress
		apiConfig.RateLimit = cfg.API.RateLimit
		apiConfig.RateWindow = cfg.API.RateWindow
		apiConfig.EnableCORS = len(cfg.API.CORSOrigins) > 0
		apiConfig.CORSOrigins = cfg.API.CORSOrigins

		var inbox api.Inbox
		if store != nil {
			inbox = store
		}
		server := api.NewServer(node, inbox, apiConfig, logger)
		go func() {
			if err := server.Start(ctx); err != nil {
				logger.Error("API server error", zap.Error(err))
			}
		}()
	}

	go heartbeatLoop(ctx, node, logger)

	printStatus(node, cfg)

	<-ctx.Done()
	logger.Info("Shutting down gracefully")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	node.Shutdown(shutdownCtx)

	select {
	case <-node.Done():
	case <-time.After(selfQuitWait):
		logger.Warn("Own QUIT not observed before exit")
	}

	logger.Info("Peer daemon stopped")
	return nil
}

func joinNetwork(ctx context.Context, node *classic.Node, cfg *config.Config, logger *zap.Logger) {
	ctx, cancel := context.WithTimeout(ctx, joinTimeout)
	defer cancel()

	for _, addr := range cfg.Discovery.Bootstrap {
		if err := node.JoinFromAddress(ctx, addr); err != nil {
			logger.Warn("Bootstrap join failed", zap.String("address", addr), zap.Error(err))
		}
	}

	for _, domain := range cfg.Discovery.DNSDomains {
		sent, err := node.JoinFromDNS(ctx, domain)
		if err != nil {
			logger.Warn("DNS discovery failed",
				zap.String("domain", domain),
				zap.Int("sent", sent),
				zap.Error(err))
		}
	}
}

func heartbeatLoop(ctx context.Context, node *classic.Node, logger *zap.Logger) {
	ticker := time.NewTicker(heartbeatInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			logger.Info("Heartbeat",
				zap.String("state", node.State().String()),
				zap.Int("peers", node.PeerCount()))
		}
	}
}

func printStatus(node *classic.Node, cfg *config.Config) {
	self := node.Self()

	fmt.Println()
	fmt.Println("━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━")
	fmt.Println("Peer Node Status")
	fmt.Println("━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━")
	fmt.Printf("   Protocol: %s\n", node.Name())
	fmt.Printf("   ID: %s\n", self.ID)
	fmt.Printf("   Address: %s\n", self.Endpoint())
	fmt.Printf("   State: %s\n", node.State())
	fmt.Printf("   Known peers: %d\n", node.PeerCount())
	if cfg.API.Enabled {
		fmt.Printf("   Admin API: http://%s/api/v1\n", cfg.API.ListenAddress)
	}
	fmt.Println("━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━")
	fmt.Println()
	fmt.Println("Press Ctrl+C to stop")
	fmt.Println()
}
