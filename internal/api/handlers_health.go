// handlers_health.go - Health check handlers
package api

import (
	"net/http"

	"github.com/labstack/echo/v4"
)

// HealthHandlerImpl implements the HealthHandler interface
type HealthHandlerImpl struct {
	version  string
	sessions SessionManager
}

// NewHealthHandler creates a new health handler. sessions may be nil.
func NewHealthHandler(version string, sessions SessionManager) HealthHandler {
	return &HealthHandlerImpl{
		version:  version,
		sessions: sessions,
	}
}

// HandleHealth returns server health status
func (h *HealthHandlerImpl) HandleHealth(c echo.Context) error {
	resp := map[string]interface{}{
		"status":  "ok",
		"version": h.version,
	}
	if h.sessions != nil {
		list := h.sessions.ListSessions()
		var dropped int64
		for _, s := range list {
			if f, ok := h.sessions.GetFloor(s.ID); ok {
				dropped += f.DroppedFrames()
			}
		}
		resp["sessions"] = len(list)
		resp["droppedFrames"] = dropped
	}
	return c.JSON(http.StatusOK, resp)
}
