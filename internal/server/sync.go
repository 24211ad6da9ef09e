package server

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/johnanishgitc/salesdashboard/internal/syncer"
)

func bearerToken(c *gin.Context) string {
	header := c.GetHeader("Authorization")
	return strings.TrimSpace(strings.TrimPrefix(header, "Bearer "))
}

func (s *Server) handleDownload(c *gin.Context) {
	var req syncer.Request
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"status": "error", "error": "invalid_request_body"})
		return
	}
	req.Token = bearerToken(c)

	if err := s.syncer.Download(req); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusAccepted, gin.H{"status": "accepted", "state": s.syncer.State()})
}

func (s *Server) handleUpdate(c *gin.Context) {
	var req syncer.Request
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"status": "error", "error": "invalid_request_body"})
		return
	}
	req.Token = bearerToken(c)

	if err := s.syncer.Update(req); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusAccepted, gin.H{"status": "accepted", "state": s.syncer.State()})
}

func (s *Server) handleSyncStatus(c *gin.Context) {
	c.JSON(http.StatusOK, s.syncer.State())
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// handleSyncEvents streams sync progress events for one guid over a
// websocket. Buffered events from an in-flight run are replayed first.
func (s *Server) handleSyncEvents(c *gin.Context) {
	guid, ok := requireGuid(c)
	if !ok {
		return
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		return
	}
	defer conn.Close()

	sub, buffered, err := s.hub.Subscribe(guid)
	if err != nil {
		s.log.Warn("event subscribe failed", zap.String("guid", guid), zap.Error(err))
		return
	}
	defer sub.Close()

	for _, ev := range buffered {
		if err := conn.WriteJSON(ev); err != nil {
			return
		}
	}

	// Drain client frames so close is noticed.
	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	for {
		select {
		case ev := <-sub.Events():
			if err := conn.WriteJSON(ev); err != nil {
				return
			}
		case <-done:
			return
		case <-c.Request.Context().Done():
			return
		}
	}
}
