// Package api provides the HTTP admin API of a peer node
package api

import (
	"context"
	"errors"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/ZentaChain/zentalk-p2p/pkg/classic"
	"github.com/ZentaChain/zentalk-p2p/pkg/metrics"
	"github.com/ZentaChain/zentalk-p2p/pkg/p2p"
	"github.com/ZentaChain/zentalk-p2p/pkg/storage"
)

// Node is the part of a ClassicV1 node the API drives
type Node interface {
	Self() p2p.Peer
	State() classic.State
	Peers() []p2p.Peer
	PeerCount() int
	FindPeer(query string) (p2p.Peer, bool)
	RemovePeer(id string) bool
	JoinFromAddress(ctx context.Context, addr string) error
	JoinFromDNS(ctx context.Context, domain string) (int, error)
	SyncListFromPeer(ctx context.Context, query string) (int, error)
	SendMessage(ctx context.Context, query, text string) (classic.Message, error)
	BroadcastMessage(ctx context.Context, text string) (classic.Message, []p2p.BroadcastResult, error)
}

// Inbox lists received messages
type Inbox interface {
	Messages(limit int) ([]storage.Message, error)
}

// Server represents the HTTP admin API server
type Server struct {
	node       Node
	inbox      Inbox
	router     *gin.Engine
	limiter    *RateLimiter
	logger     *zap.Logger
	config     *Config
	httpServer *http.Server
	mu         sync.Mutex
}

// Config holds server configuration
type Config struct {
	ListenAddress string
	EnableCORS    bool
	CORSOrigins   []string      // Empty allows any origin
	RateLimit     int           // Requests per RateWindow per client, 0 disables
	RateWindow    time.Duration
	ReadTimeout   time.Duration
	WriteTimeout  time.Duration
}

// DefaultConfig returns default server configuration
func DefaultConfig() *Config {
	return &Config{
		ListenAddress: "127.0.0.1:8080",
		EnableCORS:    false,
		RateLimit:     600,
		RateWindow:    time.Minute,
		ReadTimeout:   30 * time.Second,
		WriteTimeout:  30 * time.Second,
	}
}

// NewServer creates a new HTTP API server. inbox may be nil when
// persistence is disabled.
func NewServer(node Node, inbox Inbox, config *Config, logger *zap.Logger) *Server {
	if config == nil {
		config = DefaultConfig()
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	gin.SetMode(gin.ReleaseMode)

	s := &Server{
		node:   node,
		inbox:  inbox,
		router: gin.New(),
		logger: logger.Named("api"),
		config: config,
	}

	s.setupMiddleware()
	s.setupRoutes()

	return s
}

// setupMiddleware configures middleware
func (s *Server) setupMiddleware() {
	if s.config.EnableCORS {
		s.router.Use(CORSMiddleware(s.config.CORSOrigins))
	}

	if s.config.RateLimit > 0 {
		s.limiter = NewRateLimiter(s.config.RateLimit, s.config.RateWindow)
		s.router.Use(RateLimitMiddleware(s.limiter))
	}

	s.router.Use(LoggingMiddleware(s.logger))
	s.router.Use(gin.Recovery())
}

// setupRoutes configures API routes
func (s *Server) setupRoutes() {
	v1 := s.router.Group("/api/v1")
	{
		v1.GET("/status", s.handleStatus)

		peers := v1.Group("/peers")
		{
			peers.GET("", s.handlePeers)
			peers.GET("/:query", s.handlePeer)
			peers.DELETE("/:id", s.handleRemovePeer)
		}

		v1.POST("/join", s.handleJoin)
		v1.POST("/sync", s.handleSync)

		v1.GET("/messages", s.handleMessages)
		v1.POST("/messages", s.handleSendMessage)
	}

	s.router.GET("/metrics", gin.WrapH(metrics.Handler()))
	s.router.GET("/health", s.handleHealth)
}

// Handler returns the router, for embedding or tests
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start serves until ctx is cancelled, then shuts down gracefully
func (s *Server) Start(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.config.ListenAddress)
	if err != nil {
		return err
	}

	s.mu.Lock()
	s.httpServer = &http.Server{
		Handler:      s.router,
		ReadTimeout:  s.config.ReadTimeout,
		WriteTimeout: s.config.WriteTimeout,
		IdleTimeout:  60 * time.Second,
	}
	srv := s.httpServer
	s.mu.Unlock()

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("HTTP API server starting", zap.String("address", ln.Addr().String()))
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	s.logger.Info("Shutting down HTTP API server")
	return s.Stop()
}

// Stop stops the HTTP server
func (s *Server) Stop() error {
	if s.limiter != nil {
		s.limiter.Stop()
	}

	s.mu.Lock()
	srv := s.httpServer
	s.mu.Unlock()
	if srv == nil {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return srv.Shutdown(ctx)
}
