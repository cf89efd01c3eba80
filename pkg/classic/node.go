package classic

import (
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/ZentaChain/zentalk-p2p/pkg/crypto"
	"github.com/ZentaChain/zentalk-p2p/pkg/discovery"
	"github.com/ZentaChain/zentalk-p2p/pkg/p2p"
	"github.com/ZentaChain/zentalk-p2p/pkg/storage"
	"github.com/ZentaChain/zentalk-p2p/pkg/wire"
)

// ProtocolName is written into every ClassicV1 frame
const ProtocolName = "ClassicV1"

// DefaultRequestTimeout bounds LIST and MESG exchanges on the requesting side
const DefaultRequestTimeout = 5 * time.Second

var (
	ErrUnknownPeer = errors.New("unknown peer")
	ErrNoResolver  = errors.New("no DNS resolver configured")
)

// State is the node's membership state
type State int

const (
	Unjoined State = iota
	Joining
	Joined
)

func (s State) String() string {
	switch s {
	case Unjoined:
		return "unjoined"
	case Joining:
		return "joining"
	case Joined:
		return "joined"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Store is the persistence a node uses when configured
type Store interface {
	SavePeers(peers []p2p.Peer) error
	LoadPeers() ([]p2p.Peer, error)
	SaveMessage(m storage.Message) error
}

// Options configures a ClassicV1 node
type Options struct {
	Config p2p.Config

	// Resolver answers DNS TXT discovery queries. When nil, the system
	// nameserver from /etc/resolv.conf is used if available.
	Resolver discovery.Resolver

	// Store persists the registry and received messages. Optional.
	Store Store

	RequestTimeout       time.Duration
	ParallelBroadcast    bool
	BroadcastConcurrency int

	// OnMessage is called for every MESG received
	OnMessage func(from p2p.Peer, msg Message)
}

// Node is a ClassicV1 peer: the protocol engine with JOIN, LIST, QUIT and
// MESG registered on top.
type Node struct {
	*p2p.Protocol

	logger         *zap.Logger
	resolver       discovery.Resolver
	store          Store
	onMessage      func(from p2p.Peer, msg Message)
	requestTimeout time.Duration
	parallel       bool
	concurrency    int

	join *joinType
	list *listType
	quit *quitType
	mesg *mesgType

	joinSent atomic.Bool
	done     chan struct{}
	doneOnce sync.Once
}

var _ p2p.Variant = (*Node)(nil)

// New creates a node. An empty Config.Self.ID is replaced by a random peer ID.
func New(opts Options) (*Node, error) {
	cfg := opts.Config
	if cfg.Name == "" {
		cfg.Name = ProtocolName
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	if cfg.Self.ID == "" {
		id, err := crypto.NewPeerID()
		if err != nil {
			return nil, fmt.Errorf("failed to generate peer ID: %w", err)
		}
		cfg.Self.ID = id
	}

	n := &Node{
		Protocol:       p2p.New(cfg),
		logger:         cfg.Logger.Named("classic").With(zap.String("node", crypto.ShortID(cfg.Self.ID))),
		resolver:       opts.Resolver,
		store:          opts.Store,
		onMessage:      opts.OnMessage,
		requestTimeout: opts.RequestTimeout,
		parallel:       opts.ParallelBroadcast,
		concurrency:    opts.BroadcastConcurrency,
		done:           make(chan struct{}),
	}
	if n.requestTimeout <= 0 {
		n.requestTimeout = DefaultRequestTimeout
	}
	if n.concurrency <= 0 {
		n.concurrency = 8
	}

	if n.resolver == nil {
		resolver, err := discovery.NewDNSResolver("", 0)
		if err != nil {
			n.logger.Debug("No system resolver available", zap.Error(err))
		} else {
			n.resolver = resolver
		}
	}

	err := n.RegisterMessageTypes(map[wire.TypeCode]p2p.Factory{
		TypeJoin: func(p *p2p.Protocol) p2p.MessageType {
			n.join = &joinType{baseType{node: n, proto: p, code: TypeJoin}}
			return n.join
		},
		TypeList: func(p *p2p.Protocol) p2p.MessageType {
			n.list = &listType{baseType{node: n, proto: p, code: TypeList}}
			return n.list
		},
		TypeQuit: func(p *p2p.Protocol) p2p.MessageType {
			n.quit = &quitType{baseType{node: n, proto: p, code: TypeQuit}}
			return n.quit
		},
		TypeMesg: func(p *p2p.Protocol) p2p.MessageType {
			n.mesg = &mesgType{baseType{node: n, proto: p, code: TypeMesg}}
			return n.mesg
		},
	})
	if err != nil {
		return nil, err
	}

	return n, nil
}

// State reports Joined while any peer is registered, Joining once a JOIN
// request went out without an answer yet, Unjoined otherwise
func (n *Node) State() State {
	if n.PeerCount() > 0 {
		return Joined
	}
	if n.joinSent.Load() {
		return Joining
	}
	return Unjoined
}

// IsJoinedTo reports whether id is in the registry
func (n *Node) IsJoinedTo(id string) bool {
	_, ok := n.GetPeer(id)
	return ok
}

// Done is closed once the node has received its own QUIT
func (n *Node) Done() <-chan struct{} {
	return n.done
}

func (n *Node) markDone() {
	n.doneOnce.Do(func() {
		n.logger.Info("Own QUIT received")
		close(n.done)
	})
}

// RestorePeers loads the persisted registry snapshot
func (n *Node) RestorePeers() (int, error) {
	if n.store == nil {
		return 0, nil
	}

	peers, err := n.store.LoadPeers()
	if err != nil {
		return 0, fmt.Errorf("failed to load peers: %w", err)
	}

	self := n.Self().ID
	restored := 0
	for _, peer := range peers {
		if peer.ID == self {
			continue
		}
		if n.AddPeer(peer.ID, peer.Address, peer.Port) {
			restored++
		}
	}

	n.logger.Info("Peers restored", zap.Int("count", restored))
	return restored, nil
}

// PersistPeers saves the current registry snapshot
func (n *Node) PersistPeers() error {
	if n.store == nil {
		return nil
	}
	if err := n.store.SavePeers(n.Peers()); err != nil {
		return fmt.Errorf("failed to save peers: %w", err)
	}
	return nil
}
