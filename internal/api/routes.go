// routes.go - Route registration helpers
// This file provides a clean way to register all API routes
package api

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/fas-floormap/backend/internal/models"
	"github.com/fas-floormap/backend/internal/sim"
	"github.com/fas-floormap/backend/internal/storage"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
)

// Dependencies holds all handler dependencies
type Dependencies struct {
	Sessions            SessionManager
	Store               storage.Store
	Journal             EventJournal // nil when history is disabled
	Graph               *sim.Graph
	Seed                func() []models.MapEntity
	Version             string
	FrameBuffer         int
	WSMaxMessageKB      int
	AllowLayoutDeletion bool
}

// Handlers holds all handler instances
type Handlers struct {
	Health    HealthHandler
	Floor     FloorHandler
	Input     InputHandler
	Sim       SimHandler
	Layout    LayoutHandler
	History   HistoryHandler
	WebSocket *WebSocketHandler

	allowLayoutDeletion bool
}

// NewHandlers creates all handler instances
func NewHandlers(deps *Dependencies) *Handlers {
	return &Handlers{
		Health:              NewHealthHandler(deps.Version, deps.Sessions),
		Floor:               NewFloorHandler(deps.Sessions, deps.Store, deps.Seed),
		Input:               NewInputHandler(deps.Sessions),
		Sim:                 NewSimHandler(deps.Sessions),
		Layout:              NewLayoutHandler(deps.Sessions, deps.Store, deps.Graph),
		History:             NewHistoryHandler(deps.Journal),
		WebSocket:           NewWebSocketHandler(deps.Sessions, deps.FrameBuffer, deps.WSMaxMessageKB),
		allowLayoutDeletion: deps.AllowLayoutDeletion,
	}
}

// RegisterRoutes registers all API routes with the Echo instance
func RegisterRoutes(e *echo.Echo, handlers *Handlers) {
	api := e.Group("/api")

	// Health check
	api.GET("/health", handlers.Health.HandleHealth)

	// Floor sessions
	api.POST("/floor", handlers.Floor.HandleCreateSession)
	api.GET("/floor", handlers.Floor.HandleListSessions)

	fl := api.Group("/floor/:sessionId")
	fl.GET("", handlers.Floor.HandleGetSession)
	fl.DELETE("", handlers.Floor.HandleDeleteSession)
	fl.POST("/keepalive", handlers.Floor.HandleKeepAlive)
	fl.GET("/snapshot", handlers.Floor.HandleSnapshot)
	fl.GET("/snapshot/msgpack", handlers.Floor.HandleSnapshotMsgpack)
	fl.GET("/frame", handlers.Floor.HandleFrame)
	fl.POST("/mode", handlers.Floor.HandleSetMode)
	fl.POST("/grid", handlers.Floor.HandleSetGrid)
	fl.POST("/viewport/fit", handlers.Floor.HandleFitViewport)
	fl.POST("/viewport/reset", handlers.Floor.HandleResetViewport)
	fl.GET("/entities", handlers.Floor.HandleListEntities)
	fl.GET("/entities/:entityId", handlers.Floor.HandleGetEntity)
	fl.PATCH("/entities/:entityId", handlers.Floor.HandleUpdateEntity)

	// Input
	fl.POST("/input/wheel", handlers.Input.HandleWheel)
	fl.POST("/input/pointer-down", handlers.Input.HandlePointerDown)
	fl.POST("/input/pointer-move", handlers.Input.HandlePointerMove)
	fl.POST("/input/pointer-up", handlers.Input.HandlePointerUp)
	fl.POST("/input/lost-capture", handlers.Input.HandleLostCapture)
	fl.POST("/input/nudge", handlers.Input.HandleNudge)
	fl.POST("/input/resize", handlers.Input.HandleResize)

	// Simulation
	fl.GET("/sim", handlers.Sim.HandleState)
	fl.POST("/sim/start", handlers.Sim.HandleStart)
	fl.POST("/sim/stop", handlers.Sim.HandleStop)
	fl.POST("/sim/reset", handlers.Sim.HandleReset)
	fl.POST("/sim/stock", handlers.Sim.HandleAddStock)
	fl.POST("/sim/step", handlers.Sim.HandleStep)
	fl.PUT("/sim/spawn", handlers.Sim.HandleSetSpawn)

	// Layout import/export
	fl.GET("/layout/export", handlers.Layout.HandleExportLayout)
	fl.POST("/layout/save", handlers.Layout.HandleSaveLayout)
	fl.POST("/layout/import", handlers.Layout.HandleImportLayout)

	// WebSocket endpoint
	fl.GET("/ws", handlers.WebSocket.HandleWebSocket)

	// Stored layouts
	api.GET("/layouts/recent", handlers.Layout.HandleRecentLayouts)
	api.GET("/layouts/:id", handlers.Layout.HandleGetLayout)
	api.GET("/layouts/:id/content", handlers.Layout.HandleDownloadLayout)
	api.PUT("/layouts/:id", handlers.Layout.HandleRenameLayout)

	// Conditional delete based on config
	if handlers.allowLayoutDeletion {
		api.DELETE("/layouts/:id", handlers.Layout.HandleDeleteLayout)
	}

	api.GET("/routes", handlers.Layout.HandleGetRoutes)

	// Event history
	api.GET("/history", handlers.History.HandleQueryEvents)
	api.GET("/history/counts", handlers.History.HandleEventCounts)
	api.GET("/history/stats", handlers.History.HandleStats)
}

// MiddlewareConfig selects the common middleware
type MiddlewareConfig struct {
	RequestLogging   bool
	Compression      bool
	CompressionLevel int
	BodyLimit        string
	Timeout          time.Duration
	AllowOrigins     []string // empty disables CORS
}

// isStreamPath reports paths that hold the connection open.
func isStreamPath(c echo.Context) bool {
	return strings.HasSuffix(c.Request().URL.Path, "/ws")
}

// SetupMiddleware configures common middleware
func SetupMiddleware(e *echo.Echo, cfg MiddlewareConfig) {
	// Use custom error handler
	e.HTTPErrorHandler = ErrorHandler

	e.Use(middleware.LoggerWithConfig(middleware.LoggerConfig{
		Skipper: func(c echo.Context) bool {
			if !cfg.RequestLogging {
				return true
			}
			path := c.Request().URL.Path
			// Pointer and frame polling are too chatty to log
			return strings.HasSuffix(path, "/frame") ||
				strings.Contains(path, "/input/") ||
				path == "/api/health"
		},
	}))

	e.Use(middleware.RecoverWithConfig(middleware.RecoverConfig{
		StackSize: 1024 * 4,
	}))

	if cfg.Timeout > 0 {
		e.Use(middleware.ContextTimeoutWithConfig(middleware.ContextTimeoutConfig{
			Timeout: cfg.Timeout,
			Skipper: isStreamPath,
			ErrorHandler: func(err error, c echo.Context) error {
				if errors.Is(err, context.DeadlineExceeded) {
					return NewServiceUnavailableError("Request timeout - floor did not respond")
				}
				return err
			},
		}))
	}

	if cfg.Compression {
		e.Use(middleware.GzipWithConfig(middleware.GzipConfig{
			Level:   cfg.CompressionLevel,
			Skipper: isStreamPath,
		}))
	}

	if cfg.BodyLimit != "" {
		e.Use(middleware.BodyLimit(cfg.BodyLimit))
	}

	if len(cfg.AllowOrigins) > 0 {
		e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
			AllowOrigins: cfg.AllowOrigins,
			AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete, http.MethodOptions},
			AllowHeaders: []string{echo.HeaderOrigin, echo.HeaderContentType, echo.HeaderAccept},
		}))
	}
}
