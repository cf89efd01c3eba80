package classic

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/ZentaChain/zentalk-p2p/pkg/p2p"
	"github.com/ZentaChain/zentalk-p2p/pkg/storage"
	"github.com/ZentaChain/zentalk-p2p/pkg/wire"
)

const (
	TypeJoin wire.TypeCode = "JOIN"
	TypeList wire.TypeCode = "LIST"
	TypeQuit wire.TypeCode = "QUIT"
	TypeMesg wire.TypeCode = "MESG"
)

var ErrInvalidBody = errors.New("invalid message body")

// Body is the JSON payload shared by every ClassicV1 message type
type Body struct {
	Dir  p2p.Direction   `json:"dir"`
	From p2p.Peer        `json:"from"`
	Data json.RawMessage `json:"data,omitempty"`
}

// Message is the data carried by MESG
type Message struct {
	ID     string `json:"id"`
	Text   string `json:"text"`
	SentAt int64  `json:"sent_at"` // Unix milliseconds
}

func decodeBody(payload []byte) (Body, error) {
	var body Body
	if err := json.Unmarshal(payload, &body); err != nil {
		return body, fmt.Errorf("%w: %v", ErrInvalidBody, err)
	}
	if body.Dir != p2p.Request && body.Dir != p2p.Response {
		return body, fmt.Errorf("%w: direction %q", ErrInvalidBody, body.Dir)
	}
	if body.From.ID == "" {
		return body, fmt.Errorf("%w: missing sender id", ErrInvalidBody)
	}
	return body, nil
}

func validLocation(peer p2p.Peer) bool {
	return peer.Address != "" && peer.Port > 0 && peer.Port <= 65535
}

func isLocalHost(host string) bool {
	if strings.EqualFold(host, "localhost") {
		return true
	}
	ip := net.ParseIP(host)
	return ip != nil && (ip.IsLoopback() || ip.IsUnspecified())
}

// observedLocation replaces a loopback or wildcard declared address with the
// host the connection came from. A sender that is itself on loopback keeps
// its declared address.
func observedLocation(peer p2p.Peer, remote net.Addr) p2p.Peer {
	if remote == nil || !isLocalHost(peer.Address) {
		return peer
	}
	host, _, err := net.SplitHostPort(remote.String())
	if err != nil || isLocalHost(host) {
		return peer
	}
	peer.Address = host
	return peer
}

// baseType packs frames stamped with the engine's own identity
type baseType struct {
	node  *Node
	proto *p2p.Protocol
	code  wire.TypeCode
}

func (b *baseType) Pack(dir p2p.Direction, data []byte) ([]byte, error) {
	payload, err := json.Marshal(Body{
		Dir:  dir,
		From: b.proto.Self(),
		Data: data,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal %s body: %w", b.code, err)
	}
	return wire.Encode(b.proto.Name(), b.code, payload)
}

func (b *baseType) isSelf(peer p2p.Peer) bool {
	return peer.ID == b.proto.Self().ID
}

// joinType registers the sender. Requests are answered with a JOIN response
// on a new connection to the sender's declared location.
type joinType struct {
	baseType
}

func (m *joinType) Handle(c *p2p.Conn, payload []byte) error {
	body, err := decodeBody(payload)
	if err != nil {
		return err
	}
	if m.isSelf(body.From) {
		return nil
	}
	if !validLocation(body.From) {
		return fmt.Errorf("%w: sender location %q", ErrInvalidBody, body.From.Endpoint())
	}
	if c != nil {
		body.From = observedLocation(body.From, c.RemoteAddr())
	}

	m.proto.AddPeer(body.From.ID, body.From.Address, body.From.Port)

	if body.Dir != p2p.Request {
		return nil
	}

	frame, err := m.Pack(p2p.Response, nil)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), m.node.requestTimeout)
	defer cancel()

	res := m.node.deliver(ctx, body.From, frame, false)
	if res.Err != nil {
		return fmt.Errorf("JOIN response to %s: %w", body.From.ID, res.Err)
	}
	return nil
}

// listType exchanges registry contents
type listType struct {
	baseType
}

func (m *listType) Handle(c *p2p.Conn, payload []byte) error {
	body, err := decodeBody(payload)
	if err != nil {
		return err
	}

	if body.Dir == p2p.Request {
		peers := append(m.proto.Peers(), m.proto.Self())
		data, err := json.Marshal(peers)
		if err != nil {
			return fmt.Errorf("failed to marshal peer list: %w", err)
		}
		frame, err := m.Pack(p2p.Response, data)
		if err != nil {
			return err
		}
		if !c.Send(frame) {
			return fmt.Errorf("LIST response to %s: %w", body.From.ID, p2p.ErrSendFailed)
		}
		return nil
	}

	var peers []p2p.Peer
	if len(body.Data) > 0 {
		if err := json.Unmarshal(body.Data, &peers); err != nil {
			return fmt.Errorf("%w: peer list: %v", ErrInvalidBody, err)
		}
	}

	added := 0
	for _, peer := range peers {
		if peer.ID == "" || m.isSelf(peer) {
			continue
		}
		if !validLocation(peer) {
			m.node.logger.Debug("Skipping listed peer without a location",
				zap.String("peer", peer.ID),
				zap.String("endpoint", peer.Endpoint()))
			continue
		}
		if m.proto.AddPeer(peer.ID, peer.Address, peer.Port) {
			added++
		}
	}

	m.node.logger.Debug("Merged peer list",
		zap.String("from", body.From.ID),
		zap.Int("received", len(peers)),
		zap.Int("added", added))
	return nil
}

// quitType removes the sender. A QUIT from this node itself marks it as done.
type quitType struct {
	baseType
}

func (m *quitType) Handle(c *p2p.Conn, payload []byte) error {
	body, err := decodeBody(payload)
	if err != nil {
		return err
	}

	if m.isSelf(body.From) {
		m.node.markDone()
		return nil
	}

	m.proto.RemovePeer(body.From.ID)
	return nil
}

// mesgType delivers user messages to the inbox and the OnMessage callback
type mesgType struct {
	baseType
}

func (m *mesgType) Handle(c *p2p.Conn, payload []byte) error {
	body, err := decodeBody(payload)
	if err != nil {
		return err
	}

	var msg Message
	if err := json.Unmarshal(body.Data, &msg); err != nil {
		return fmt.Errorf("%w: message: %v", ErrInvalidBody, err)
	}

	m.node.logger.Info("Message received",
		zap.String("from", body.From.ID),
		zap.String("id", msg.ID),
		zap.Int("length", len(msg.Text)))

	if m.node.store != nil {
		err := m.node.store.SaveMessage(storage.Message{
			MessageID:  msg.ID,
			FromID:     body.From.ID,
			Body:       msg.Text,
			SentAt:     msg.SentAt,
			ReceivedAt: time.Now().UnixMilli(),
		})
		if err != nil {
			return err
		}
	}

	if m.node.onMessage != nil {
		m.node.onMessage(body.From, msg)
	}
	return nil
}
