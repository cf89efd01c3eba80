package p2p

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strconv"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/ZentaChain/zentalk-p2p/pkg/metrics"
	"github.com/ZentaChain/zentalk-p2p/pkg/wire"
)

// Config holds engine configuration
type Config struct {
	Name           string        // Protocol name written into every frame
	Self           Peer          // This node's identity; Port 0 is filled in by Listen
	ConnectTimeout time.Duration // Bound on TCP connect
	ReadTimeout    time.Duration // Bound on reading an inbound frame (0 = none)
	MaxPayload     uint32        // Largest accepted inbound payload
	Logger         *zap.Logger
}

// DefaultConfig returns default engine configuration
func DefaultConfig() Config {
	return Config{
		ConnectTimeout: time.Second,
		ReadTimeout:    30 * time.Second,
		MaxPayload:     wire.DefaultMaxPayload,
	}
}

// Protocol is the engine shared by every connection of a node: it owns the
// peer registry and the table of message types keyed by type code.
type Protocol struct {
	name   string
	cfg    Config
	logger *zap.Logger

	registry *Registry

	types      map[wire.TypeCode]MessageType
	registered bool
	typesMu    sync.RWMutex

	self     Peer
	listener net.Listener
	active   map[*Conn]struct{}
	closed   bool
	mu       sync.Mutex
	wg       sync.WaitGroup
}

// New creates a protocol engine. Message types are added with RegisterMessageTypes.
func New(cfg Config) *Protocol {
	defaults := DefaultConfig()
	if cfg.ConnectTimeout <= 0 {
		cfg.ConnectTimeout = defaults.ConnectTimeout
	}
	if cfg.MaxPayload == 0 {
		cfg.MaxPayload = defaults.MaxPayload
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}

	return &Protocol{
		name:     cfg.Name,
		cfg:      cfg,
		logger:   cfg.Logger.Named("p2p"),
		registry: NewRegistry(),
		types:    make(map[wire.TypeCode]MessageType),
		self:     cfg.Self,
		active:   make(map[*Conn]struct{}),
	}
}

// Name returns the protocol name
func (p *Protocol) Name() string {
	return p.name
}

// Logger returns the engine logger
func (p *Protocol) Logger() *zap.Logger {
	return p.logger
}

// Self returns this node's identity as advertised to peers
func (p *Protocol) Self() Peer {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.self
}

// RegisterMessageTypes merges ext into the dispatch table and binds every
// handler to this engine. It may be called once, before Listen.
func (p *Protocol) RegisterMessageTypes(ext map[wire.TypeCode]Factory) error {
	p.mu.Lock()
	listening := p.listener != nil
	p.mu.Unlock()
	if listening {
		return ErrListening
	}

	p.typesMu.Lock()
	defer p.typesMu.Unlock()

	if p.registered {
		return ErrAlreadyRegistered
	}

	for code := range ext {
		if !code.Valid() {
			return fmt.Errorf("%w: %q", ErrInvalidTypeCode, code)
		}
	}

	for code, factory := range ext {
		p.types[code] = factory(p)
	}
	p.registered = true

	return nil
}

// MessageType returns the handler registered for code
func (p *Protocol) MessageType(code wire.TypeCode) (MessageType, bool) {
	p.typesMu.RLock()
	defer p.typesMu.RUnlock()
	mt, ok := p.types[code]
	return mt, ok
}

// Dispatch hands a payload to the handler registered for code.
// Unknown codes are dropped and reported as false with a nil error.
func (p *Protocol) Dispatch(c *Conn, code wire.TypeCode, payload []byte) (bool, error) {
	mt, ok := p.MessageType(code)
	if !ok {
		metrics.RecordDispatch(metrics.LabelUnknown, metrics.OutcomeUnknown)
		p.logger.Debug("Dropping unknown message type", zap.String("type", code.String()))
		return false, nil
	}

	if err := mt.Handle(c, payload); err != nil {
		metrics.RecordDispatch(code.String(), metrics.OutcomeFailed)
		return true, fmt.Errorf("handle %s: %w", code, err)
	}

	metrics.RecordDispatch(code.String(), metrics.OutcomeHandled)
	return true, nil
}

// AddPeer registers a peer. It returns false without changes if the ID is known.
func (p *Protocol) AddPeer(id, address string, port int) bool {
	added := p.registry.Add(Peer{ID: id, Address: address, Port: port})
	if added {
		p.logger.Info("Peer registered",
			zap.String("peer", id),
			zap.String("address", address),
			zap.Int("port", port))
		metrics.SetPeers(p.Self().ID, p.registry.Len())
	}
	return added
}

// RemovePeer unregisters a peer
func (p *Protocol) RemovePeer(id string) bool {
	removed := p.registry.Remove(id)
	if removed {
		p.logger.Info("Peer removed", zap.String("peer", id))
		metrics.SetPeers(p.Self().ID, p.registry.Len())
	}
	return removed
}

// FindPeer resolves an "address:port" or an ID substring to a registry entry
func (p *Protocol) FindPeer(query string) (Peer, bool) {
	return p.registry.Find(query)
}

// GetPeer returns the peer with exactly this ID
func (p *Protocol) GetPeer(id string) (Peer, bool) {
	return p.registry.Get(id)
}

// Peers returns a snapshot of the registry in insertion order
func (p *Protocol) Peers() []Peer {
	return p.registry.List()
}

// PeerCount returns the registry size
func (p *Protocol) PeerCount() int {
	return p.registry.Len()
}

// Listen starts accepting connections on address. Each accepted socket is
// served by its own goroutine running Conn.Run.
func (p *Protocol) Listen(ctx context.Context, address string) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return ErrClosed
	}
	if p.listener != nil {
		return ErrListening
	}

	var lc net.ListenConfig
	listener, err := lc.Listen(ctx, "tcp", address)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", address, err)
	}

	p.listener = listener
	p.updateSelf(listener.Addr())

	p.logger.Info("Listening",
		zap.String("protocol", p.name),
		zap.String("address", listener.Addr().String()),
		zap.String("id", p.self.ID))

	p.wg.Add(1)
	go p.acceptLoop(listener)

	return nil
}

// updateSelf fills in the advertised location from the bound address
func (p *Protocol) updateSelf(addr net.Addr) {
	tcpAddr, ok := addr.(*net.TCPAddr)
	if !ok {
		return
	}

	if p.self.Port == 0 {
		p.self.Port = tcpAddr.Port
	}
	if p.self.Address == "" {
		if tcpAddr.IP.IsUnspecified() {
			p.self.Address = "127.0.0.1"
			p.logger.Warn("Advertising loopback address for a wildcard listener",
				zap.String("listen", tcpAddr.String()))
		} else {
			p.self.Address = tcpAddr.IP.String()
		}
	}
}

// Addr returns the listening address, or nil before Listen
func (p *Protocol) Addr() net.Addr {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.listener == nil {
		return nil
	}
	return p.listener.Addr()
}

func (p *Protocol) acceptLoop(listener net.Listener) {
	defer p.wg.Done()

	for {
		nc, err := listener.Accept()
		if err != nil {
			if errors.Is(err, net.ErrClosed) || p.isClosed() {
				return
			}
			p.logger.Warn("Accept error", zap.Error(err))
			time.Sleep(50 * time.Millisecond)
			continue
		}

		c := NewConn(p, nc)
		if !p.track(c) {
			c.Close()
			return
		}

		go func() {
			defer p.untrack(c)
			c.Run()
		}()
	}
}

func (p *Protocol) isClosed() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.closed
}

func (p *Protocol) track(c *Conn) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return false
	}
	p.active[c] = struct{}{}
	p.wg.Add(1)
	return true
}

func (p *Protocol) untrack(c *Conn) {
	p.mu.Lock()
	delete(p.active, c)
	p.mu.Unlock()
	p.wg.Done()
}

// Close stops the listener, closes in-flight inbound connections and waits
// for their goroutines to finish
func (p *Protocol) Close() error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil
	}
	p.closed = true

	var err error
	if p.listener != nil {
		err = p.listener.Close()
	}
	for c := range p.active {
		c.Close()
	}
	p.mu.Unlock()

	p.wg.Wait()
	p.logger.Info("Protocol closed", zap.String("protocol", p.name))
	return err
}

// Dial opens a new connection to address:port. Only the connect is bounded
// by the configured timeout; the established connection has no deadline.
func (p *Protocol) Dial(ctx context.Context, address string, port int) (*Conn, error) {
	endpoint := net.JoinHostPort(address, strconv.Itoa(port))

	d := net.Dialer{Timeout: p.cfg.ConnectTimeout}
	nc, err := d.DialContext(ctx, "tcp", endpoint)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to %s: %w", endpoint, err)
	}

	return NewConn(p, nc), nil
}

// DialPeer opens a connection to a registry entry
func (p *Protocol) DialPeer(ctx context.Context, peer Peer) (*Conn, error) {
	c, err := p.Dial(ctx, peer.Address, peer.Port)
	if err != nil {
		return nil, err
	}
	c.PeerHint = peer.ID
	return c, nil
}
