// interfaces.go - Handler interface definitions for clean separation of concerns
package api

import (
	"context"

	"github.com/fas-floormap/backend/internal/floor"
	"github.com/fas-floormap/backend/internal/history"
	"github.com/fas-floormap/backend/internal/models"
	"github.com/labstack/echo/v4"
)

// HealthHandler handles health check operations
type HealthHandler interface {
	HandleHealth(c echo.Context) error
}

// FloorHandler handles floor session lifecycle and read-outs
type FloorHandler interface {
	HandleCreateSession(c echo.Context) error
	HandleListSessions(c echo.Context) error
	HandleGetSession(c echo.Context) error
	HandleDeleteSession(c echo.Context) error
	HandleKeepAlive(c echo.Context) error
	HandleSnapshot(c echo.Context) error
	HandleSnapshotMsgpack(c echo.Context) error
	HandleFrame(c echo.Context) error
	HandleSetMode(c echo.Context) error
	HandleSetGrid(c echo.Context) error
	HandleFitViewport(c echo.Context) error
	HandleResetViewport(c echo.Context) error
	HandleListEntities(c echo.Context) error
	HandleGetEntity(c echo.Context) error
	HandleUpdateEntity(c echo.Context) error
}

// InputHandler forwards pointer, wheel and keyboard input to a floor
type InputHandler interface {
	HandleWheel(c echo.Context) error
	HandlePointerDown(c echo.Context) error
	HandlePointerMove(c echo.Context) error
	HandlePointerUp(c echo.Context) error
	HandleLostCapture(c echo.Context) error
	HandleNudge(c echo.Context) error
	HandleResize(c echo.Context) error
}

// SimHandler controls a floor's cart simulation
type SimHandler interface {
	HandleState(c echo.Context) error
	HandleStart(c echo.Context) error
	HandleStop(c echo.Context) error
	HandleReset(c echo.Context) error
	HandleAddStock(c echo.Context) error
	HandleStep(c echo.Context) error
	HandleSetSpawn(c echo.Context) error
}

// LayoutHandler handles layout import, export and the stored layout library
type LayoutHandler interface {
	HandleExportLayout(c echo.Context) error
	HandleSaveLayout(c echo.Context) error
	HandleImportLayout(c echo.Context) error
	HandleRecentLayouts(c echo.Context) error
	HandleGetLayout(c echo.Context) error
	HandleDownloadLayout(c echo.Context) error
	HandleDeleteLayout(c echo.Context) error
	HandleRenameLayout(c echo.Context) error
	HandleGetRoutes(c echo.Context) error
}

// HistoryHandler serves the simulation event journal
type HistoryHandler interface {
	HandleQueryEvents(c echo.Context) error
	HandleEventCounts(c echo.Context) error
	HandleStats(c echo.Context) error
}

// SessionManager defines the interface for session management
// This allows mocking in tests
type SessionManager interface {
	CreateSession(entities []models.MapEntity, layoutID string) (*models.FloorSession, error)
	GetSession(id string) (*models.FloorSession, bool)
	GetFloor(id string) (*floor.Floor, bool)
	TouchSession(id string) bool
	UpdateSession(id string, fn func(s *models.FloorSession)) bool
	ListSessions() []models.FloorSession
	DeleteSession(id string) error
}

// EventJournal is the read side of the simulation event journal
type EventJournal interface {
	Query(ctx context.Context, f history.Filter) ([]models.SimEvent, error)
	Counts(ctx context.Context, sessionID string) (map[models.EventKind]int, error)
	Flush(ctx context.Context) error
	Stats() history.Stats
}
