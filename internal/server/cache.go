package server

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
)

func (s *Server) handleClear(c *gin.Context) {
	guid, ok := requireGuid(c)
	if !ok {
		return
	}
	if err := s.syncer.Clear(c.Request.Context(), guid); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "success"})
}

func (s *Server) handleStats(c *gin.Context) {
	guid, ok := requireGuid(c)
	if !ok {
		return
	}
	stats, err := s.syncer.Stats(c.Request.Context(), guid)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "success", "data": stats})
}

func (s *Server) handleRaw(c *gin.Context) {
	guid, ok := requireGuid(c)
	if !ok {
		return
	}
	limit, _ := strconv.Atoi(c.Query("limit"))
	offset, _ := strconv.Atoi(c.Query("offset"))

	page, err := s.syncer.RawData(c.Request.Context(), guid, limit, offset)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "success", "data": page})
}
