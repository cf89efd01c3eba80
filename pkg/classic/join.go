package classic

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/ZentaChain/zentalk-p2p/pkg/discovery"
	"github.com/ZentaChain/zentalk-p2p/pkg/p2p"
)

// JoinFromAddress sends one JOIN request to addr, given as host:port or as a
// multiaddr such as /ip4/1.2.3.4/tcp/9000. No reply is awaited.
func (n *Node) JoinFromAddress(ctx context.Context, addr string) error {
	host, port, err := discovery.ParseAddress(addr)
	if err != nil {
		return err
	}
	return n.sendJoin(ctx, host, port)
}

// JoinFromDNS sends one JOIN request per TXT record of domain and returns
// how many were sent. A domain without TXT records is an error. Records
// that fail to parse or to deliver are logged and reported in the combined
// error, while the remaining records are still tried.
func (n *Node) JoinFromDNS(ctx context.Context, domain string) (int, error) {
	if n.resolver == nil {
		return 0, ErrNoResolver
	}

	records, err := n.resolver.LookupTXT(ctx, domain)
	if err != nil {
		return 0, fmt.Errorf("failed to discover peers at %s: %w", domain, err)
	}
	if len(records) == 0 {
		return 0, &discovery.NoAnswerError{Domain: domain}
	}

	n.logger.Info("Discovered peers via DNS",
		zap.String("domain", domain),
		zap.Int("records", len(records)))

	var errs error
	sent := 0
	for _, record := range records {
		host, port, err := discovery.ParseTXTRecord(record)
		if err != nil {
			n.logger.Warn("Skipping TXT record", zap.String("record", record), zap.Error(err))
			errs = multierr.Append(errs, err)
			continue
		}
		if err := n.sendJoin(ctx, host, port); err != nil {
			n.logger.Warn("JOIN failed", zap.String("record", record), zap.Error(err))
			errs = multierr.Append(errs, err)
			continue
		}
		sent++
	}

	return sent, errs
}

func (n *Node) sendJoin(ctx context.Context, host string, port int) error {
	frame, err := n.join.Pack(p2p.Request, nil)
	if err != nil {
		return err
	}

	res := n.deliver(ctx, p2p.Peer{Address: host, Port: port}, frame, false)
	if res.Err != nil {
		return fmt.Errorf("JOIN: %w", res.Err)
	}

	n.joinSent.Store(true)
	n.logger.Info("JOIN sent", zap.String("address", host), zap.Int("port", port))
	return nil
}

// SyncListFromPeer asks the peer matching query for its registry and merges
// the answer. It returns how many peers were added.
func (n *Node) SyncListFromPeer(ctx context.Context, query string) (int, error) {
	peer, ok := n.FindPeer(query)
	if !ok {
		return 0, fmt.Errorf("%w: %s", ErrUnknownPeer, query)
	}

	frame, err := n.list.Pack(p2p.Request, nil)
	if err != nil {
		return 0, err
	}

	before := n.PeerCount()
	res := n.deliver(ctx, peer, frame, true)
	if res.Err != nil {
		return 0, fmt.Errorf("LIST from %s: %w", peer.ID, res.Err)
	}

	return n.PeerCount() - before, nil
}

// SendMessage delivers text to the peer matching query. No acknowledgment
// is expected.
func (n *Node) SendMessage(ctx context.Context, query, text string) (Message, error) {
	peer, ok := n.FindPeer(query)
	if !ok {
		return Message{}, fmt.Errorf("%w: %s", ErrUnknownPeer, query)
	}

	msg, frame, err := n.packMessage(text)
	if err != nil {
		return Message{}, err
	}

	res := n.deliver(ctx, peer, frame, false)
	if res.Err != nil {
		return msg, fmt.Errorf("MESG to %s: %w", peer.ID, res.Err)
	}
	return msg, nil
}

// BroadcastMessage delivers text to every registered peer
func (n *Node) BroadcastMessage(ctx context.Context, text string) (Message, []p2p.BroadcastResult, error) {
	msg, frame, err := n.packMessage(text)
	if err != nil {
		return Message{}, nil, err
	}
	return msg, n.Broadcast(ctx, frame, false), nil
}

func (n *Node) packMessage(text string) (Message, []byte, error) {
	msg := Message{
		ID:     uuid.NewString(),
		Text:   text,
		SentAt: time.Now().UnixMilli(),
	}

	data, err := json.Marshal(msg)
	if err != nil {
		return Message{}, nil, fmt.Errorf("failed to marshal message: %w", err)
	}

	frame, err := n.mesg.Pack(p2p.Request, data)
	if err != nil {
		return Message{}, nil, err
	}
	return msg, frame, nil
}
