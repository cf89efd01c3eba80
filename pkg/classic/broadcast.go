package classic

import (
	"context"
	"fmt"

	"go.uber.org/multierr"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/ZentaChain/zentalk-p2p/pkg/p2p"
)

// deliver sends frame to peer over a new connection. With waitReply the
// answer on the same connection is read and dispatched before returning.
func (n *Node) deliver(ctx context.Context, peer p2p.Peer, frame []byte, waitReply bool) p2p.BroadcastResult {
	res := p2p.BroadcastResult{PeerID: peer.ID}

	c, err := n.DialPeer(ctx, peer)
	if err != nil {
		res.Err = err
		return res
	}
	defer c.Close()

	stop := context.AfterFunc(ctx, func() { c.Close() })
	defer stop()

	if err := c.SetTimeout(n.requestTimeout); err != nil {
		res.Err = err
		return res
	}

	if !c.Send(frame) {
		res.Err = fmt.Errorf("%w: %s", p2p.ErrSendFailed, peer.Endpoint())
		return res
	}
	res.Sent = true

	if !waitReply {
		return res
	}

	env, ok := c.Receive()
	if !ok {
		res.Err = fmt.Errorf("%w from %s", p2p.ErrNoReply, peer.ID)
		return res
	}
	res.Reply = env

	if env.Protocol != n.Name() {
		res.Err = fmt.Errorf("%w from %s: protocol %q", p2p.ErrNoReply, peer.ID, env.Protocol)
		return res
	}
	if _, err := n.Dispatch(c, env.Type, env.Payload); err != nil {
		res.Err = err
	}
	return res
}

// Broadcast sends frame to every registered peer, one connection each.
// Results follow registry order and hold one entry per peer whatever the
// outcome. In parallel mode deliveries overlap and their order on the wire
// is unspecified.
func (n *Node) Broadcast(ctx context.Context, frame []byte, waitReply bool) []p2p.BroadcastResult {
	peers := n.Peers()
	results := make([]p2p.BroadcastResult, len(peers))

	if !n.parallel {
		for i, peer := range peers {
			results[i] = n.deliver(ctx, peer, frame, waitReply)
		}
	} else {
		var g errgroup.Group
		g.SetLimit(n.concurrency)
		for i, peer := range peers {
			i, peer := i, peer
			g.Go(func() error {
				results[i] = n.deliver(ctx, peer, frame, waitReply)
				return nil
			})
		}
		_ = g.Wait()
	}

	failed := 0
	for _, res := range results {
		if res.Err != nil {
			failed++
			n.logger.Debug("Broadcast delivery failed",
				zap.String("peer", res.PeerID),
				zap.Error(res.Err))
		}
	}
	n.logger.Debug("Broadcast finished",
		zap.Int("peers", len(results)),
		zap.Int("failed", failed),
		zap.Bool("parallel", n.parallel))

	return results
}

// Shutdown persists the registry, announces QUIT to every peer and then to
// this node's own listener. Failures are logged; every step always runs.
func (n *Node) Shutdown(ctx context.Context) {
	defer func() {
		if r := recover(); r != nil {
			n.logger.Error("Panic during shutdown",
				zap.Any("panic", r),
				zap.Stack("stack"))
		}
	}()

	var errs error
	errs = multierr.Append(errs, n.PersistPeers())

	frame, err := n.quit.Pack(p2p.Request, nil)
	if err != nil {
		n.logger.Error("Failed to pack QUIT", zap.Error(err))
		n.markDone()
		return
	}

	results := n.Broadcast(ctx, frame, false)
	for _, res := range results {
		if res.Err != nil {
			errs = multierr.Append(errs, fmt.Errorf("QUIT to %s: %w", res.PeerID, res.Err))
		}
	}

	if n.Addr() == nil {
		n.markDone()
	} else {
		res := n.deliver(ctx, n.Self(), frame, false)
		if res.Err != nil {
			errs = multierr.Append(errs, fmt.Errorf("QUIT to self: %w", res.Err))
			n.markDone()
		}
	}

	if errs != nil {
		n.logger.Warn("Shutdown completed with errors",
			zap.Int("peers", len(results)),
			zap.Error(errs))
		return
	}
	n.logger.Info("Shutdown completed", zap.Int("peers", len(results)))
}
