package api

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/ZentaChain/zentalk-p2p/pkg/classic"
	"github.com/ZentaChain/zentalk-p2p/pkg/discovery"
	"github.com/ZentaChain/zentalk-p2p/pkg/p2p"
)

// StatusResponse describes the local node
type StatusResponse struct {
	ID        string `json:"id"`
	Address   string `json:"address"`
	Port      int    `json:"port"`
	State     string `json:"state"`
	PeerCount int    `json:"peerCount"`
}

// PeersResponse lists the registry
type PeersResponse struct {
	Peers []p2p.Peer `json:"peers"`
	Count int        `json:"count"`
}

// JoinRequest names a peer address or a discovery domain
type JoinRequest struct {
	Address string `json:"address"`
	Domain  string `json:"domain"`
}

// JoinResponse reports how many JOIN requests went out
type JoinResponse struct {
	Sent  int    `json:"sent"`
	Error string `json:"error,omitempty"`
}

// SyncRequest names the peer to pull a registry from
type SyncRequest struct {
	Peer string `json:"peer" binding:"required"`
}

// SyncResponse reports how many peers were learned
type SyncResponse struct {
	Added     int `json:"added"`
	PeerCount int `json:"peerCount"`
}

// handleStatus handles GET /api/v1/status
func (s *Server) handleStatus(c *gin.Context) {
	self := s.node.Self()
	c.JSON(http.StatusOK, StatusResponse{
		ID:        self.ID,
		Address:   self.Address,
		Port:      self.Port,
		State:     s.node.State().String(),
		PeerCount: s.node.PeerCount(),
	})
}

// handlePeers handles GET /api/v1/peers
func (s *Server) handlePeers(c *gin.Context) {
	peers := s.node.Peers()
	if peers == nil {
		peers = []p2p.Peer{}
	}
	c.JSON(http.StatusOK, PeersResponse{Peers: peers, Count: len(peers)})
}

// handlePeer handles GET /api/v1/peers/:query
func (s *Server) handlePeer(c *gin.Context) {
	peer, ok := s.node.FindPeer(c.Param("query"))
	if !ok {
		c.JSON(http.StatusNotFound, ErrorResponse{Error: "Peer not found"})
		return
	}
	c.JSON(http.StatusOK, peer)
}

// handleRemovePeer handles DELETE /api/v1/peers/:id
func (s *Server) handleRemovePeer(c *gin.Context) {
	if !s.node.RemovePeer(c.Param("id")) {
		c.JSON(http.StatusNotFound, ErrorResponse{Error: "Peer not found"})
		return
	}
	c.Status(http.StatusNoContent)
}

// handleJoin handles POST /api/v1/join
func (s *Server) handleJoin(c *gin.Context) {
	var req JoinRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "Invalid request", Message: err.Error()})
		return
	}

	switch {
	case req.Address != "" && req.Domain == "":
		if err := s.node.JoinFromAddress(c.Request.Context(), req.Address); err != nil {
			s.writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, JoinResponse{Sent: 1})

	case req.Domain != "" && req.Address == "":
		sent, err := s.node.JoinFromDNS(c.Request.Context(), req.Domain)
		if err != nil && sent == 0 {
			s.writeError(c, err)
			return
		}
		resp := JoinResponse{Sent: sent}
		if err != nil {
			resp.Error = err.Error()
		}
		c.JSON(http.StatusOK, resp)

	default:
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:   "Invalid request",
			Message: "exactly one of address or domain is required",
		})
	}
}

// handleSync handles POST /api/v1/sync
func (s *Server) handleSync(c *gin.Context) {
	var req SyncRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "Invalid request", Message: err.Error()})
		return
	}

	added, err := s.node.SyncListFromPeer(c.Request.Context(), req.Peer)
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, SyncResponse{Added: added, PeerCount: s.node.PeerCount()})
}

// writeError maps node errors to HTTP statuses
func (s *Server) writeError(c *gin.Context, err error) {
	status := http.StatusBadGateway
	switch {
	case errors.Is(err, discovery.ErrInvalidAddress):
		status = http.StatusBadRequest
	case errors.Is(err, classic.ErrUnknownPeer), errors.Is(err, discovery.ErrNoAnswer):
		status = http.StatusNotFound
	case errors.Is(err, classic.ErrNoResolver):
		status = http.StatusServiceUnavailable
	}
	c.JSON(status, ErrorResponse{Error: http.StatusText(status), Message: err.Error()})
}

// handleHealth handles GET /health
func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
