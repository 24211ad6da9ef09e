package server

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/johnanishgitc/salesdashboard/internal/dashboard"
)

func (s *Server) handleDashboard(c *gin.Context) {
	guid, ok := requireGuid(c)
	if !ok {
		return
	}
	filters := dashboard.Filters{
		StockGroup:  c.Query("stockGroup"),
		StockItem:   c.Query("stockItem"),
		LedgerGroup: c.Query("ledgerGroup"),
		State:       c.Query("state"),
		Country:     c.Query("country"),
		Customer:    c.Query("customer"),
		Salesperson: c.Query("salesperson"),
		Period:      c.Query("period"),
	}

	data, err := s.dashboards.GetDashboardData(c.Request.Context(), guid, c.Query("fromDate"), c.Query("toDate"), filters)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "success", "data": data})
}

func (s *Server) handleExtendedDashboard(c *gin.Context) {
	guid, ok := requireGuid(c)
	if !ok {
		return
	}
	data, err := s.dashboards.GetExtendedDashboardData(c.Request.Context(), guid, c.Query("fromDate"), c.Query("toDate"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "success", "data": data})
}
