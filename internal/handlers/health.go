package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jason-s-yu/whot/internal/registry"
)

// HealthResponse is served by GET /health.
type HealthResponse struct {
	Status string `json:"status"`
	registry.Stats
	Timestamp string `json:"timestamp"`
}

func (s *Server) Health(c *gin.Context) {
	c.JSON(http.StatusOK, HealthResponse{
		Status:    "ok",
		Stats:     s.reg.Stats(),
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	})
}
