// handlers_history.go - Simulation event journal handlers
package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/fas-floormap/backend/internal/history"
	"github.com/fas-floormap/backend/internal/models"
	"github.com/labstack/echo/v4"
)

// HistoryHandlerImpl implements the HistoryHandler interface
type HistoryHandlerImpl struct {
	journal EventJournal
}

// NewHistoryHandler creates a new history handler. journal may be nil when
// the journal is disabled.
func NewHistoryHandler(journal EventJournal) HistoryHandler {
	return &HistoryHandlerImpl{journal: journal}
}

// HandleQueryEvents returns journal events, newest first
func (h *HistoryHandlerImpl) HandleQueryEvents(c echo.Context) error {
	if h.journal == nil {
		return NewServiceUnavailableError("event history is disabled")
	}

	filter, err := parseFilter(c)
	if err != nil {
		return err
	}

	ctx := c.Request().Context()
	if c.QueryParam("flush") == "true" {
		if err := h.journal.Flush(ctx); err != nil {
			return NewInternalError("failed to flush journal", err)
		}
	}

	events, err := h.journal.Query(ctx, filter)
	if err != nil {
		return NewInternalError("failed to query events", err)
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"events": events,
		"count":  len(events),
	})
}

// HandleEventCounts returns the number of events per kind
func (h *HistoryHandlerImpl) HandleEventCounts(c echo.Context) error {
	if h.journal == nil {
		return NewServiceUnavailableError("event history is disabled")
	}
	counts, err := h.journal.Counts(c.Request().Context(), c.QueryParam("sessionId"))
	if err != nil {
		return NewInternalError("failed to count events", err)
	}
	return c.JSON(http.StatusOK, counts)
}

// HandleStats returns journal throughput counters
func (h *HistoryHandlerImpl) HandleStats(c echo.Context) error {
	if h.journal == nil {
		return NewServiceUnavailableError("event history is disabled")
	}
	return c.JSON(http.StatusOK, h.journal.Stats())
}

// parseFilter reads sessionId, kind, station, since and limit query parameters.
// since accepts RFC3339 or Unix milliseconds.
func parseFilter(c echo.Context) (history.Filter, error) {
	f := history.Filter{SessionID: c.QueryParam("sessionId")}

	if v := c.QueryParam("kind"); v != "" {
		switch k := models.EventKind(v); k {
		case models.EventTransition, models.EventStock, models.EventSpawn:
			f.Kind = k
		default:
			return f, NewValidationError("kind")
		}
	}

	if v := c.QueryParam("station"); v != "" {
		st, ok := models.ParseStationID(v)
		if !ok {
			return f, NewValidationError("station")
		}
		f.Station = st
	}

	if v := c.QueryParam("since"); v != "" {
		if ms, err := strconv.ParseInt(v, 10, 64); err == nil {
			f.Since = time.UnixMilli(ms)
		} else if t, err := time.Parse(time.RFC3339, v); err == nil {
			f.Since = t
		} else {
			return f, NewValidationError("since")
		}
	}

	if v := c.QueryParam("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			return f, NewValidationError("limit")
		}
		f.Limit = n
	}

	return f, nil
}
