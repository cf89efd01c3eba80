package p2p

import (
	"bufio"
	"errors"
	"io"
	"net"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/ZentaChain/zentalk-p2p/pkg/metrics"
	"github.com/ZentaChain/zentalk-p2p/pkg/wire"
)

// Conn owns one socket for exactly one message exchange
type Conn struct {
	PeerHint string // Registry ID of the remote side when known

	proto  *Protocol
	nc     net.Conn
	r      *bufio.Reader
	w      *bufio.Writer
	logger *zap.Logger

	closeOnce sync.Once
	closeErr  error
}

// NewConn wraps an established socket
func NewConn(p *Protocol, nc net.Conn) *Conn {
	return &Conn{
		proto:  p,
		nc:     nc,
		r:      bufio.NewReader(nc),
		w:      bufio.NewWriter(nc),
		logger: p.logger.With(zap.String("remote", nc.RemoteAddr().String())),
	}
}

// Protocol returns the engine this connection belongs to
func (c *Conn) Protocol() *Protocol {
	return c.proto
}

// RemoteAddr returns the address of the other side
func (c *Conn) RemoteAddr() net.Addr {
	return c.nc.RemoteAddr()
}

// SetTimeout bounds all further reads and writes; d <= 0 clears the deadline
func (c *Conn) SetTimeout(d time.Duration) error {
	if d <= 0 {
		return c.nc.SetDeadline(time.Time{})
	}
	return c.nc.SetDeadline(time.Now().Add(d))
}

// Run reads one frame, dispatches it and closes the socket.
// Errors and panics are logged and never escape.
func (c *Conn) Run() {
	defer c.Close()
	defer func() {
		if r := recover(); r != nil {
			c.logger.Error("Panic while handling connection",
				zap.Any("panic", r),
				zap.Stack("stack"))
		}
	}()

	if timeout := c.proto.cfg.ReadTimeout; timeout > 0 {
		if err := c.SetTimeout(timeout); err != nil {
			c.logger.Warn("Failed to set read timeout", zap.Error(err))
		}
	}

	env, ok := c.Receive()
	if !ok {
		return
	}

	if env.Protocol != c.proto.Name() {
		metrics.RecordDispatch(metrics.LabelUnknown, metrics.OutcomeDropped)
		c.logger.Debug("Dropping frame for another protocol",
			zap.String("protocol", env.Protocol),
			zap.String("type", env.Type.String()))
		return
	}

	label := metrics.LabelUnknown
	if _, ok := c.proto.MessageType(env.Type); ok {
		label = env.Type.String()
	}
	metrics.RecordFrame(c.proto.Name(), label)

	handled, err := c.proto.Dispatch(c, env.Type, env.Payload)
	if err != nil {
		c.logger.Warn("Failed to handle message",
			zap.String("type", env.Type.String()),
			zap.Error(err))
		return
	}
	if !handled {
		c.logger.Debug("Unknown message type", zap.String("type", env.Type.String()))
	}
}

// Send writes a whole frame and flushes it. Delivery is best effort:
// failures are logged and reported as false.
func (c *Conn) Send(frame []byte) bool {
	if _, err := c.w.Write(frame); err != nil {
		c.logger.Debug("Send failed", zap.Error(err))
		metrics.RecordSend(false)
		return false
	}
	if err := c.w.Flush(); err != nil {
		c.logger.Debug("Send failed", zap.Error(err))
		metrics.RecordSend(false)
		return false
	}

	metrics.RecordSend(true)
	return true
}

// Receive reads one frame. Any failure, including a peer closing before a
// complete frame arrived, yields (nil, false).
func (c *Conn) Receive() (*wire.Envelope, bool) {
	env, err := wire.ReadEnvelope(c.r, c.proto.cfg.MaxPayload)
	if err != nil {
		metrics.RecordReadFailure()
		switch {
		case errors.Is(err, io.EOF):
			c.logger.Debug("Connection closed before a frame arrived")
		case errors.Is(err, wire.ErrTruncatedMessage):
			c.logger.Warn("Truncated frame", zap.Error(err))
		default:
			c.logger.Debug("Failed to read frame", zap.Error(err))
		}
		return nil, false
	}

	return env, true
}

// Close releases the socket. It is safe to call more than once.
func (c *Conn) Close() error {
	c.closeOnce.Do(func() {
		c.closeErr = c.nc.Close()
	})
	return c.closeErr
}
