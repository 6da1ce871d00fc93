// handlers_layout.go - Layout import/export and stored layout handlers
package api

import (
	"bytes"
	"encoding/base64"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/fas-floormap/backend/internal/models"
	"github.com/fas-floormap/backend/internal/parser"
	"github.com/fas-floormap/backend/internal/sim"
	"github.com/fas-floormap/backend/internal/storage"
	"github.com/labstack/echo/v4"
)

// LayoutHandlerImpl implements the LayoutHandler interface
type LayoutHandlerImpl struct {
	sessions SessionManager
	store    storage.Store
	graph    *sim.Graph
}

// NewLayoutHandler creates a new layout handler. graph may be nil, in which
// case the built-in routes are served.
func NewLayoutHandler(sessions SessionManager, store storage.Store, graph *sim.Graph) LayoutHandler {
	if graph == nil {
		graph = sim.DefaultGraph()
	}
	return &LayoutHandlerImpl{
		sessions: sessions,
		store:    store,
		graph:    graph,
	}
}

// HandleExportLayout downloads the session's entities in the seed format
func (h *LayoutHandlerImpl) HandleExportLayout(c echo.Context) error {
	f, id, err := lookupFloor(h.sessions, c)
	if err != nil {
		return err
	}
	entities, err := f.Entities(c.Request().Context())
	if err != nil {
		return floorError(id, err)
	}

	c.Response().Header().Set(echo.HeaderContentType, echo.MIMEApplicationJSONCharsetUTF8)
	c.Response().Header().Set(echo.HeaderContentDisposition, fmt.Sprintf("attachment; filename=%q", exportName(id)))
	c.Response().WriteHeader(http.StatusOK)
	return parser.WriteSeed(c.Response(), entities)
}

// HandleSaveLayout stores the session's entities in the layout library
func (h *LayoutHandlerImpl) HandleSaveLayout(c echo.Context) error {
	f, id, err := lookupFloor(h.sessions, c)
	if err != nil {
		return err
	}

	var req saveLayoutRequest
	if err := c.Bind(&req); err != nil {
		return NewBadRequestError("invalid JSON body", err)
	}
	name := strings.TrimSpace(req.Name)
	if name == "" {
		name = exportName(id)
	}

	entities, err := f.Entities(c.Request().Context())
	if err != nil {
		return floorError(id, err)
	}
	data, err := parser.MarshalSeed(entities)
	if err != nil {
		return NewInternalError("failed to encode layout", err)
	}

	info, err := h.store.Save(name, "export", len(entities), bytes.NewReader(data))
	if err != nil {
		return NewInternalError("failed to save layout", err)
	}
	h.sessions.UpdateSession(id, func(s *models.FloorSession) { s.LayoutID = info.ID })

	return c.JSON(http.StatusCreated, info)
}

// HandleImportLayout replaces the session's entities with an uploaded or stored layout
func (h *LayoutHandlerImpl) HandleImportLayout(c echo.Context) error {
	f, id, err := lookupFloor(h.sessions, c)
	if err != nil {
		return err
	}

	var req importLayoutRequest
	if err := c.Bind(&req); err != nil {
		return NewBadRequestError("invalid JSON body", err)
	}
	if err := req.validate(); err != nil {
		return err
	}

	var (
		res  parser.SeedResult
		info *models.LayoutFile
	)
	if req.LayoutID != "" {
		res, err = loadLayout(h.store, req.LayoutID)
		if err != nil {
			return err
		}
		info, err = h.store.Get(req.LayoutID)
		if err != nil {
			return NewNotFoundError("layout", req.LayoutID)
		}
	} else {
		decoded, err := base64.StdEncoding.DecodeString(req.Data)
		if err != nil {
			return NewBadRequestError("invalid base64 data", err)
		}
		res, err = parser.ParseSeed(bytes.NewReader(decoded), time.Now())
		if err != nil {
			return NewBadRequestError("invalid layout document", err)
		}
		if len(res.Entities) == 0 {
			return NewBadRequestError("layout has no valid entities", nil)
		}
		info, err = h.store.Save(req.Name, "upload", len(res.Entities), bytes.NewReader(decoded))
		if err != nil {
			return NewInternalError("failed to save layout", err)
		}
	}

	n, err := f.ReplaceEntities(c.Request().Context(), res.Entities)
	if err != nil {
		return floorError(id, err)
	}
	h.sessions.UpdateSession(id, func(s *models.FloorSession) {
		s.LayoutID = info.ID
		s.EntityCount = n
	})
	fmt.Printf("[Layout] Session %s loaded %s (%d entities, %d dropped)\n", shortID(id), info.ID, n, res.Dropped)

	return c.JSON(http.StatusOK, map[string]interface{}{
		"layout":  info,
		"loaded":  n,
		"dropped": res.Dropped,
	})
}

// HandleRecentLayouts returns the most recently saved layouts
func (h *LayoutHandlerImpl) HandleRecentLayouts(c echo.Context) error {
	limit := 20
	if v := c.QueryParam("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			return NewValidationError("limit")
		}
		limit = n
	}

	list, err := h.store.List(limit)
	if err != nil {
		return NewInternalError("failed to list layouts", err)
	}
	return c.JSON(http.StatusOK, list)
}

// HandleGetLayout returns stored layout metadata
func (h *LayoutHandlerImpl) HandleGetLayout(c echo.Context) error {
	id := c.Param("id")
	info, err := h.store.Get(id)
	if err != nil {
		return layoutError(id, err)
	}
	return c.JSON(http.StatusOK, info)
}

// HandleDownloadLayout streams a stored layout document
func (h *LayoutHandlerImpl) HandleDownloadLayout(c echo.Context) error {
	id := c.Param("id")
	rc, err := h.store.Open(id)
	if err != nil {
		return layoutError(id, err)
	}
	defer rc.Close()
	return c.Stream(http.StatusOK, echo.MIMEApplicationJSONCharsetUTF8, rc)
}

// HandleDeleteLayout removes a stored layout
func (h *LayoutHandlerImpl) HandleDeleteLayout(c echo.Context) error {
	id := c.Param("id")
	if err := h.store.Delete(id); err != nil {
		return layoutError(id, err)
	}
	return c.NoContent(http.StatusNoContent)
}

// HandleRenameLayout changes a stored layout's display name
func (h *LayoutHandlerImpl) HandleRenameLayout(c echo.Context) error {
	id := c.Param("id")

	var req renameLayoutRequest
	if err := c.Bind(&req); err != nil {
		return NewBadRequestError("invalid JSON body", err)
	}
	if strings.TrimSpace(req.Name) == "" {
		return NewValidationError("name")
	}

	info, err := h.store.Rename(id, strings.TrimSpace(req.Name))
	if err != nil {
		return layoutError(id, err)
	}
	return c.JSON(http.StatusOK, info)
}

// HandleGetRoutes returns the cart route graph as YAML
func (h *LayoutHandlerImpl) HandleGetRoutes(c echo.Context) error {
	data, err := parser.MarshalRoutes(h.graph)
	if err != nil {
		return NewInternalError("failed to encode routes", err)
	}
	return c.Blob(http.StatusOK, "application/yaml", data)
}

func layoutError(id string, err error) error {
	if errors.Is(err, storage.ErrNotFound) {
		return NewNotFoundError("layout", id)
	}
	return NewInternalError("layout storage failed", err)
}

func exportName(sessionID string) string {
	return fmt.Sprintf("floor-%s.json", shortID(sessionID))
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

// Request types

type saveLayoutRequest struct {
	Name string `json:"name"`
}

type importLayoutRequest struct {
	LayoutID string `json:"layoutId,omitempty"`
	Name     string `json:"name,omitempty"`
	Data     string `json:"data,omitempty"` // Base64-encoded seed JSON
}

func (r *importLayoutRequest) validate() error {
	if r.LayoutID != "" {
		return nil
	}
	if r.Name == "" {
		return NewValidationError("name")
	}
	if r.Data == "" {
		return NewValidationError("data")
	}
	return nil
}

type renameLayoutRequest struct {
	Name string `json:"name"`
}
