package api

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/ZentaChain/zentalk-p2p/pkg/classic"
	"github.com/ZentaChain/zentalk-p2p/pkg/storage"
)

// SendMessageRequest addresses one peer, or every peer when Peer is empty
type SendMessageRequest struct {
	Peer string `json:"peer"`
	Text string `json:"text" binding:"required"`
}

// DeliveryResult is the outcome for one peer of a broadcast
type DeliveryResult struct {
	Peer  string `json:"peer"`
	Sent  bool   `json:"sent"`
	Error string `json:"error,omitempty"`
}

// SendMessageResponse describes a sent message
type SendMessageResponse struct {
	Message    classic.Message  `json:"message"`
	Deliveries []DeliveryResult `json:"deliveries,omitempty"`
}

// MessagesResponse lists received messages, newest first
type MessagesResponse struct {
	Messages []storage.Message `json:"messages"`
	Count    int               `json:"count"`
}

// handleSendMessage handles POST /api/v1/messages
func (s *Server) handleSendMessage(c *gin.Context) {
	var req SendMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "Invalid request", Message: err.Error()})
		return
	}

	if req.Peer != "" {
		msg, err := s.node.SendMessage(c.Request.Context(), req.Peer, req.Text)
		if err != nil {
			s.writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, SendMessageResponse{Message: msg})
		return
	}

	msg, results, err := s.node.BroadcastMessage(c.Request.Context(), req.Text)
	if err != nil {
		s.writeError(c, err)
		return
	}

	resp := SendMessageResponse{
		Message:    msg,
		Deliveries: make([]DeliveryResult, 0, len(results)),
	}
	for _, r := range results {
		d := DeliveryResult{Peer: r.PeerID, Sent: r.Sent}
		if r.Err != nil {
			d.Error = r.Err.Error()
		}
		resp.Deliveries = append(resp.Deliveries, d)
	}
	c.JSON(http.StatusOK, resp)
}

// handleMessages handles GET /api/v1/messages?limit=N
func (s *Server) handleMessages(c *gin.Context) {
	if s.inbox == nil {
		c.JSON(http.StatusServiceUnavailable, ErrorResponse{
			Error:   "Inbox disabled",
			Message: "storage is not configured",
		})
		return
	}

	limit := 100
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			c.JSON(http.StatusBadRequest, ErrorResponse{
				Error:   "Invalid limit",
				Message: "limit must be a non-negative number",
			})
			return
		}
		limit = n
	}

	messages, err := s.inbox.Messages(limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "Failed to read inbox", Message: err.Error()})
		return
	}
	if messages == nil {
		messages = []storage.Message{}
	}
	c.JSON(http.StatusOK, MessagesResponse{Messages: messages, Count: len(messages)})
}
