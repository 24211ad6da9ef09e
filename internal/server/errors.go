package server

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/johnanishgitc/salesdashboard/internal/aggregate"
	"github.com/johnanishgitc/salesdashboard/internal/card"
	"github.com/johnanishgitc/salesdashboard/internal/cardconfig"
	"github.com/johnanishgitc/salesdashboard/internal/dashboard"
	"github.com/johnanishgitc/salesdashboard/internal/ingest"
	"github.com/johnanishgitc/salesdashboard/internal/syncer"
	"github.com/johnanishgitc/salesdashboard/internal/tally"
)

var errMissingGuid = errors.New("guid_required")

// respondError maps service error classes to HTTP statuses. Upstream faults
// surface as 502 so callers can tell them from local engine failures.
func respondError(c *gin.Context, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, errMissingGuid), errors.Is(err, syncer.ErrInvalidRequest):
		status = http.StatusBadRequest
	case errors.Is(err, syncer.ErrSyncInProgress):
		status = http.StatusConflict
	case errors.Is(err, tally.ErrTransport), errors.Is(err, cardconfig.ErrFetch):
		status = http.StatusBadGateway
	case errors.Is(err, ingest.ErrIngestion),
		errors.Is(err, aggregate.ErrRebuild),
		errors.Is(err, dashboard.ErrQuery),
		errors.Is(err, card.ErrQuery):
		status = http.StatusInternalServerError
	}
	c.JSON(status, gin.H{"status": "error", "error": err.Error()})
}

func requireGuid(c *gin.Context) (string, bool) {
	guid := c.Query("guid")
	if guid == "" {
		respondError(c, errMissingGuid)
		return "", false
	}
	return guid, true
}
