package server

import (
	"encoding/json"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/johnanishgitc/salesdashboard/internal/card"
	"github.com/johnanishgitc/salesdashboard/internal/cardconfig"
)

type computeCardsRequest struct {
	Guid          string      `json:"guid"`
	DashboardType string      `json:"dashboardType"`
	TallyLocID    string      `json:"tallylocId"`
	FromDate      string      `json:"fromDate"`
	ToDate        string      `json:"toDate"`
	Cards         []card.Spec `json:"cards"`
}

// handleComputeCards evaluates card definitions against the local cache.
// When the request carries no cards they are fetched from the card API
// using the caller's bearer token.
func (s *Server) handleComputeCards(c *gin.Context) {
	var req computeCardsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"status": "error", "error": "invalid_request_body"})
		return
	}
	if req.Guid == "" {
		respondError(c, errMissingGuid)
		return
	}

	specs := req.Cards
	var settings json.RawMessage
	if len(specs) == 0 {
		var err error
		specs, settings, err = s.cardConfig.ListCards(c.Request.Context(), cardconfig.ListRequest{
			Guid:          req.Guid,
			DashboardType: req.DashboardType,
			TallyLocID:    req.TallyLocID,
			Token:         bearerToken(c),
		})
		if err != nil {
			respondError(c, err)
			return
		}
	}

	results := s.cards.ComputeCards(c.Request.Context(), specs, req.Guid, req.FromDate, req.ToDate)

	resp := gin.H{"status": "success", "data": results}
	if len(settings) > 0 {
		resp["settings"] = settings
	}
	c.JSON(http.StatusOK, resp)
}
