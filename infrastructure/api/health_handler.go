package api

import (
	"net/http"

	"planning-poker/observability"

	"github.com/gin-gonic/gin"
)

type HealthHandler struct {
	monitor *observability.MonitoringManager
}

func NewHealthHandler(monitor *observability.MonitoringManager) *HealthHandler {
	return &HealthHandler{monitor: monitor}
}

func (h *HealthHandler) health(c *gin.Context) {
	standardResponse(c, http.StatusOK, statusOK, h.monitor.Refresh(), "")
}
