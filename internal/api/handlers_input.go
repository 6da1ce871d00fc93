// handlers_input.go - Pointer, wheel and keyboard input handlers
package api

import (
	"net/http"

	"github.com/fas-floormap/backend/internal/geom"
	"github.com/fas-floormap/backend/internal/models"
	"github.com/labstack/echo/v4"
)

// InputHandlerImpl implements the InputHandler interface
type InputHandlerImpl struct {
	sessions SessionManager
}

// NewInputHandler creates a new input handler
func NewInputHandler(sessions SessionManager) InputHandler {
	return &InputHandlerImpl{sessions: sessions}
}

// HandleWheel zooms one step around the pointer
func (h *InputHandlerImpl) HandleWheel(c echo.Context) error {
	f, id, err := lookupFloor(h.sessions, c)
	if err != nil {
		return err
	}
	var req wheelRequest
	if err := c.Bind(&req); err != nil {
		return NewBadRequestError("invalid JSON body", err)
	}
	if err := f.Wheel(c.Request().Context(), req.Delta, geom.Pt(req.X, req.Y)); err != nil {
		return floorError(id, err)
	}
	return c.NoContent(http.StatusNoContent)
}

// HandlePointerDown starts a drag or a pan
func (h *InputHandlerImpl) HandlePointerDown(c echo.Context) error {
	f, id, err := lookupFloor(h.sessions, c)
	if err != nil {
		return err
	}
	var req pointerRequest
	if err := c.Bind(&req); err != nil {
		return NewBadRequestError("invalid JSON body", err)
	}
	res, err := f.PointerDown(c.Request().Context(), geom.Pt(req.X, req.Y), req.TargetID)
	if err != nil {
		return floorError(id, err)
	}
	return c.JSON(http.StatusOK, res)
}

// HandlePointerMove continues the active gesture or updates hover
func (h *InputHandlerImpl) HandlePointerMove(c echo.Context) error {
	f, id, err := lookupFloor(h.sessions, c)
	if err != nil {
		return err
	}
	var req pointerRequest
	if err := c.Bind(&req); err != nil {
		return NewBadRequestError("invalid JSON body", err)
	}
	res, err := f.PointerMove(c.Request().Context(), geom.Pt(req.X, req.Y))
	if err != nil {
		return floorError(id, err)
	}
	return c.JSON(http.StatusOK, res)
}

// HandlePointerUp ends the active gesture
func (h *InputHandlerImpl) HandlePointerUp(c echo.Context) error {
	f, id, err := lookupFloor(h.sessions, c)
	if err != nil {
		return err
	}
	var req pointerRequest
	if err := c.Bind(&req); err != nil {
		return NewBadRequestError("invalid JSON body", err)
	}
	res, err := f.PointerUp(c.Request().Context(), geom.Pt(req.X, req.Y))
	if err != nil {
		return floorError(id, err)
	}
	return c.JSON(http.StatusOK, res)
}

// HandleLostCapture abandons the active gesture
func (h *InputHandlerImpl) HandleLostCapture(c echo.Context) error {
	f, id, err := lookupFloor(h.sessions, c)
	if err != nil {
		return err
	}
	if err := f.LostCapture(c.Request().Context()); err != nil {
		return floorError(id, err)
	}
	return c.NoContent(http.StatusNoContent)
}

// HandleNudge moves an entity by one keyboard step
func (h *InputHandlerImpl) HandleNudge(c echo.Context) error {
	f, id, err := lookupFloor(h.sessions, c)
	if err != nil {
		return err
	}
	var req nudgeRequest
	if err := c.Bind(&req); err != nil {
		return NewBadRequestError("invalid JSON body", err)
	}
	if err := req.validate(); err != nil {
		return err
	}
	dir, ok := models.ParseDirection(req.Direction)
	if !ok {
		return NewValidationError("direction")
	}

	moved, err := f.Nudge(c.Request().Context(), req.EntityID, dir, req.Modifier)
	if err != nil {
		return floorError(id, err)
	}
	return c.JSON(http.StatusOK, map[string]bool{"moved": moved})
}

// HandleResize records the host size
func (h *InputHandlerImpl) HandleResize(c echo.Context) error {
	f, id, err := lookupFloor(h.sessions, c)
	if err != nil {
		return err
	}
	var req resizeRequest
	if err := c.Bind(&req); err != nil {
		return NewBadRequestError("invalid JSON body", err)
	}
	if err := f.Resize(c.Request().Context(), req.Width, req.Height); err != nil {
		return floorError(id, err)
	}
	return c.NoContent(http.StatusNoContent)
}

// Request types

type wheelRequest struct {
	Delta int     `json:"delta"`
	X     float64 `json:"x"`
	Y     float64 `json:"y"`
}

type pointerRequest struct {
	X        float64 `json:"x"`
	Y        float64 `json:"y"`
	TargetID string  `json:"targetId,omitempty"`
}

type nudgeRequest struct {
	EntityID  string `json:"entityId"`
	Direction string `json:"direction"`
	Modifier  bool   `json:"modifier"`
}

func (r *nudgeRequest) validate() error {
	if r.EntityID == "" {
		return NewValidationError("entityId")
	}
	if r.Direction == "" {
		return NewValidationError("direction")
	}
	return nil
}

type resizeRequest struct {
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}
