// handlers_sim.go - Cart simulation control handlers
package api

import (
	"math"
	"net/http"

	"github.com/fas-floormap/backend/internal/models"
	"github.com/labstack/echo/v4"
)

// SimHandlerImpl implements the SimHandler interface
type SimHandlerImpl struct {
	sessions SessionManager
}

// NewSimHandler creates a new simulation handler
func NewSimHandler(sessions SessionManager) SimHandler {
	return &SimHandlerImpl{sessions: sessions}
}

// HandleState returns the simulation state and its latest frame
func (h *SimHandlerImpl) HandleState(c echo.Context) error {
	f, id, err := lookupFloor(h.sessions, c)
	if err != nil {
		return err
	}
	snap, err := f.Snapshot(c.Request().Context())
	if err != nil {
		return floorError(id, err)
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"sim":   snap.Sim,
		"frame": snap.Frame,
	})
}

// HandleStart starts the tick source
func (h *SimHandlerImpl) HandleStart(c echo.Context) error {
	f, id, err := lookupFloor(h.sessions, c)
	if err != nil {
		return err
	}
	if err := f.StartSimulation(c.Request().Context()); err != nil {
		return floorError(id, err)
	}
	return h.HandleState(c)
}

// HandleStop stops the tick source
func (h *SimHandlerImpl) HandleStop(c echo.Context) error {
	f, id, err := lookupFloor(h.sessions, c)
	if err != nil {
		return err
	}
	if err := f.StopSimulation(c.Request().Context()); err != nil {
		return floorError(id, err)
	}
	return h.HandleState(c)
}

// HandleReset empties the stations and parks the carts
func (h *SimHandlerImpl) HandleReset(c echo.Context) error {
	f, id, err := lookupFloor(h.sessions, c)
	if err != nil {
		return err
	}
	if err := f.ResetSimulation(c.Request().Context()); err != nil {
		return floorError(id, err)
	}
	return h.HandleState(c)
}

// HandleAddStock changes a station's stock
func (h *SimHandlerImpl) HandleAddStock(c echo.Context) error {
	f, id, err := lookupFloor(h.sessions, c)
	if err != nil {
		return err
	}

	var req stockRequest
	if err := c.Bind(&req); err != nil {
		return NewBadRequestError("invalid JSON body", err)
	}
	if req.Station == "" {
		return NewValidationError("station")
	}
	station, ok := models.ParseStationID(req.Station)
	if !ok {
		return NewValidationError("station")
	}
	n := 1
	if req.Count != nil {
		n = *req.Count
	}

	stock, ok, err := f.AddStock(c.Request().Context(), station, n)
	if err != nil {
		return floorError(id, err)
	}
	if !ok {
		return NewNotFoundError("station", string(station))
	}

	return c.JSON(http.StatusOK, map[string]interface{}{
		"station": station,
		"stock":   stock,
	})
}

// HandleStep advances a stopped simulation by a fixed amount
func (h *SimHandlerImpl) HandleStep(c echo.Context) error {
	f, id, err := lookupFloor(h.sessions, c)
	if err != nil {
		return err
	}

	var req stepRequest
	if err := c.Bind(&req); err != nil {
		return NewBadRequestError("invalid JSON body", err)
	}
	if !(req.Seconds > 0) || math.IsInf(req.Seconds, 0) {
		return NewValidationError("dt")
	}

	steps := req.Steps
	if steps < 1 {
		steps = 1
	}
	if steps > maxSimSteps {
		steps = maxSimSteps
	}

	ctx := c.Request().Context()
	for i := 0; i < steps; i++ {
		if err := f.Step(ctx, req.Seconds); err != nil {
			return floorError(id, err)
		}
	}
	return h.HandleState(c)
}

// HandleSetSpawn changes the chance per tick that Output gains a product
func (h *SimHandlerImpl) HandleSetSpawn(c echo.Context) error {
	f, id, err := lookupFloor(h.sessions, c)
	if err != nil {
		return err
	}

	var req spawnRequest
	if err := c.Bind(&req); err != nil {
		return NewBadRequestError("invalid JSON body", err)
	}
	if err := req.validate(); err != nil {
		return err
	}

	p, err := f.SetSpawnProbability(c.Request().Context(), *req.Probability)
	if err != nil {
		return floorError(id, err)
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"spawnProbability": p,
	})
}

// maxSimSteps bounds the work a single step request can queue.
const maxSimSteps = 10000

// Request types

type stockRequest struct {
	Station string `json:"station"`
	Count   *int   `json:"count"`
}

type spawnRequest struct {
	Probability *float64 `json:"probability"`
}

func (r *spawnRequest) validate() error {
	if r.Probability == nil || !(*r.Probability >= 0 && *r.Probability <= 1) {
		return NewValidationError("probability")
	}
	return nil
}

type stepRequest struct {
	Seconds float64 `json:"dt"`
	Steps   int     `json:"steps"`
}
