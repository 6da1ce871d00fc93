// handlers_floor.go - Floor session and read-out handlers
package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/fas-floormap/backend/internal/floor"
	"github.com/fas-floormap/backend/internal/models"
	"github.com/fas-floormap/backend/internal/parser"
	"github.com/fas-floormap/backend/internal/session"
	"github.com/fas-floormap/backend/internal/storage"
	"github.com/labstack/echo/v4"
	"github.com/vmihailenco/msgpack/v5"
)

// FloorHandlerImpl implements the FloorHandler interface
type FloorHandlerImpl struct {
	sessions SessionManager
	store    storage.Store
	seed     func() []models.MapEntity
}

// NewFloorHandler creates a new floor handler. seed supplies the entities
// of a session created without a stored layout.
func NewFloorHandler(sessions SessionManager, store storage.Store, seed func() []models.MapEntity) FloorHandler {
	return &FloorHandlerImpl{
		sessions: sessions,
		store:    store,
		seed:     seed,
	}
}

// lookupFloor resolves the :sessionId path parameter to a running floor.
func lookupFloor(sessions SessionManager, c echo.Context) (*floor.Floor, string, error) {
	id := c.Param("sessionId")
	if id == "" {
		return nil, "", NewValidationError("sessionId")
	}
	f, ok := sessions.GetFloor(id)
	if !ok {
		return nil, id, NewNotFoundError("session", id)
	}
	return f, id, nil
}

// floorError maps a failed floor command to an API error.
func floorError(id string, err error) error {
	switch {
	case errors.Is(err, floor.ErrStopped):
		return NewSessionClosedError(id)
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return NewServiceUnavailableError("floor did not respond")
	}
	return NewInternalError("floor command failed", err)
}

// loadLayout reads and decodes a stored layout document.
func loadLayout(store storage.Store, layoutID string) (parser.SeedResult, error) {
	if store == nil {
		return parser.SeedResult{}, NewServiceUnavailableError("layout storage is not configured")
	}
	rc, err := store.Open(layoutID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return parser.SeedResult{}, NewNotFoundError("layout", layoutID)
		}
		return parser.SeedResult{}, NewInternalError("failed to open layout", err)
	}
	defer rc.Close()

	res, err := parser.ParseSeed(rc, time.Now())
	if err != nil {
		return parser.SeedResult{}, NewBadRequestError("invalid layout document", err)
	}
	if len(res.Entities) == 0 {
		return parser.SeedResult{}, NewBadRequestError("layout has no valid entities", nil)
	}
	return res, nil
}

// HandleCreateSession starts a floor over a stored layout or the default seed
func (h *FloorHandlerImpl) HandleCreateSession(c echo.Context) error {
	var req createSessionRequest
	if err := c.Bind(&req); err != nil {
		return NewBadRequestError("invalid JSON body", err)
	}

	var entities []models.MapEntity
	if req.LayoutID != "" {
		res, err := loadLayout(h.store, req.LayoutID)
		if err != nil {
			return err
		}
		entities = res.Entities
	} else if h.seed != nil {
		entities = h.seed()
	}

	sess, err := h.sessions.CreateSession(entities, req.LayoutID)
	if err != nil {
		return NewInternalError("failed to create session", err)
	}

	if req.EditMode != nil {
		f, ok := h.sessions.GetFloor(sess.ID)
		if !ok {
			return NewNotFoundError("session", sess.ID)
		}
		if err := f.SetEditMode(c.Request().Context(), *req.EditMode); err != nil {
			return floorError(sess.ID, err)
		}
		h.sessions.UpdateSession(sess.ID, func(s *models.FloorSession) { s.EditMode = *req.EditMode })
		sess.EditMode = *req.EditMode
	}

	return c.JSON(http.StatusCreated, sess)
}

// HandleListSessions returns every live session
func (h *FloorHandlerImpl) HandleListSessions(c echo.Context) error {
	return c.JSON(http.StatusOK, h.sessions.ListSessions())
}

// HandleGetSession returns session metadata
func (h *FloorHandlerImpl) HandleGetSession(c echo.Context) error {
	id := c.Param("sessionId")
	if id == "" {
		return NewValidationError("sessionId")
	}
	sess, ok := h.sessions.GetSession(id)
	if !ok {
		return NewNotFoundError("session", id)
	}
	return c.JSON(http.StatusOK, sess)
}

// HandleDeleteSession stops a floor and forgets the session
func (h *FloorHandlerImpl) HandleDeleteSession(c echo.Context) error {
	id := c.Param("sessionId")
	if id == "" {
		return NewValidationError("sessionId")
	}
	if err := h.sessions.DeleteSession(id); err != nil {
		if errors.Is(err, session.ErrNotFound) {
			return NewNotFoundError("session", id)
		}
		return NewInternalError("failed to delete session", err)
	}
	return c.NoContent(http.StatusNoContent)
}

// HandleKeepAlive marks a session as in use
func (h *FloorHandlerImpl) HandleKeepAlive(c echo.Context) error {
	id := c.Param("sessionId")
	if !h.sessions.TouchSession(id) {
		return NewNotFoundError("session", id)
	}
	return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
}

// HandleSnapshot returns everything a client needs to render the floor
func (h *FloorHandlerImpl) HandleSnapshot(c echo.Context) error {
	f, id, err := lookupFloor(h.sessions, c)
	if err != nil {
		return err
	}
	snap, err := f.Snapshot(c.Request().Context())
	if err != nil {
		return floorError(id, err)
	}
	return c.JSON(http.StatusOK, snap)
}

// HandleSnapshotMsgpack returns the snapshot msgpack-encoded
func (h *FloorHandlerImpl) HandleSnapshotMsgpack(c echo.Context) error {
	f, id, err := lookupFloor(h.sessions, c)
	if err != nil {
		return err
	}
	snap, err := f.Snapshot(c.Request().Context())
	if err != nil {
		return floorError(id, err)
	}

	data, err := msgpack.Marshal(snap)
	if err != nil {
		return NewInternalError("failed to encode msgpack", err)
	}
	return c.Blob(http.StatusOK, "application/msgpack", data)
}

// HandleFrame returns the latest view-sync frame
func (h *FloorHandlerImpl) HandleFrame(c echo.Context) error {
	f, id, err := lookupFloor(h.sessions, c)
	if err != nil {
		return err
	}
	frame, err := f.Frame(c.Request().Context())
	if err != nil {
		return floorError(id, err)
	}
	return c.JSON(http.StatusOK, frame)
}

// HandleSetMode switches between edit and view mode
func (h *FloorHandlerImpl) HandleSetMode(c echo.Context) error {
	f, id, err := lookupFloor(h.sessions, c)
	if err != nil {
		return err
	}

	var req modeRequest
	if err := c.Bind(&req); err != nil {
		return NewBadRequestError("invalid JSON body", err)
	}
	if req.EditMode == nil {
		return NewValidationError("editMode")
	}

	if err := f.SetEditMode(c.Request().Context(), *req.EditMode); err != nil {
		return floorError(id, err)
	}
	h.sessions.UpdateSession(id, func(s *models.FloorSession) { s.EditMode = *req.EditMode })

	return c.JSON(http.StatusOK, map[string]bool{"editMode": *req.EditMode})
}

// HandleSetGrid changes the snap grid
func (h *FloorHandlerImpl) HandleSetGrid(c echo.Context) error {
	f, id, err := lookupFloor(h.sessions, c)
	if err != nil {
		return err
	}

	var req gridRequest
	if err := c.Bind(&req); err != nil {
		return NewBadRequestError("invalid JSON body", err)
	}
	snap := true
	if req.SnapToGrid != nil {
		snap = *req.SnapToGrid
	}

	if err := f.SetGridSize(c.Request().Context(), req.GridSize, snap); err != nil {
		return floorError(id, err)
	}
	return h.HandleSnapshot(c)
}

// HandleFitViewport fits the map into the host
func (h *FloorHandlerImpl) HandleFitViewport(c echo.Context) error {
	f, id, err := lookupFloor(h.sessions, c)
	if err != nil {
		return err
	}
	if err := f.FitToContent(c.Request().Context()); err != nil {
		return floorError(id, err)
	}
	return h.HandleSnapshot(c)
}

// HandleResetViewport resets the zoom and pan
func (h *FloorHandlerImpl) HandleResetViewport(c echo.Context) error {
	f, id, err := lookupFloor(h.sessions, c)
	if err != nil {
		return err
	}
	if err := f.ResetViewport(c.Request().Context()); err != nil {
		return floorError(id, err)
	}
	return h.HandleSnapshot(c)
}

// HandleListEntities returns the entities in draw order
func (h *FloorHandlerImpl) HandleListEntities(c echo.Context) error {
	f, id, err := lookupFloor(h.sessions, c)
	if err != nil {
		return err
	}
	entities, err := f.Entities(c.Request().Context())
	if err != nil {
		return floorError(id, err)
	}
	return c.JSON(http.StatusOK, entities)
}

// HandleGetEntity returns a single entity
func (h *FloorHandlerImpl) HandleGetEntity(c echo.Context) error {
	f, id, err := lookupFloor(h.sessions, c)
	if err != nil {
		return err
	}
	entityID := c.Param("entityId")
	e, ok, err := f.Entity(c.Request().Context(), entityID)
	if err != nil {
		return floorError(id, err)
	}
	if !ok {
		return NewNotFoundError("entity", entityID)
	}
	return c.JSON(http.StatusOK, floor.EntityView{MapEntity: e, Tooltip: e.Describe()})
}

// HandleUpdateEntity changes the runtime status of an entity
func (h *FloorHandlerImpl) HandleUpdateEntity(c echo.Context) error {
	f, id, err := lookupFloor(h.sessions, c)
	if err != nil {
		return err
	}
	entityID := c.Param("entityId")

	var req entityUpdateRequest
	if err := c.Bind(&req); err != nil {
		return NewBadRequestError("invalid JSON body", err)
	}
	if req.Status == "" && req.HasItem == nil {
		return NewValidationError("status")
	}

	ctx := c.Request().Context()
	if req.Status != "" {
		status, ok := models.ParseEntityStatus(req.Status)
		if !ok {
			return NewBadRequestError(fmt.Sprintf("unknown status: %s", req.Status), nil)
		}
		found, err := f.SetStatus(ctx, entityID, status)
		if err != nil {
			return floorError(id, err)
		}
		if !found {
			return NewNotFoundError("entity", entityID)
		}
	}
	if req.HasItem != nil {
		found, err := f.SetHasItem(ctx, entityID, *req.HasItem)
		if err != nil {
			return floorError(id, err)
		}
		if !found {
			return NewNotFoundError("entity", entityID)
		}
	}

	return h.HandleGetEntity(c)
}

// Request types

type createSessionRequest struct {
	LayoutID string `json:"layoutId"`
	EditMode *bool  `json:"editMode"`
}

type modeRequest struct {
	EditMode *bool `json:"editMode"`
}

type gridRequest struct {
	GridSize   int   `json:"gridSize"`
	SnapToGrid *bool `json:"snapToGrid"`
}

type entityUpdateRequest struct {
	Status  string `json:"status"`
	HasItem *bool  `json:"hasItem"`
}
