package api

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/fas-floormap/backend/internal/floor"
	"github.com/fas-floormap/backend/internal/models"
	"github.com/fas-floormap/backend/internal/parser"
	"github.com/fas-floormap/backend/internal/session"
	"github.com/fas-floormap/backend/internal/testutil"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vmihailenco/msgpack/v5"
)

type testEnv struct {
	e        *echo.Echo
	sessions *session.Manager
	store    *testutil.MockStorage
	journal  *fakeJournal
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	opts := floor.DefaultOptions()
	opts.AutoStart = false
	opts.EditMode = true
	opts.FitOnResize = false
	opts.Sim.SpawnProbability = 0
	opts.Sim.Seed = 1
	opts.Drag.SnapToGrid = false

	mgr := session.NewManager(opts, nil)
	t.Cleanup(mgr.Shutdown)

	env := &testEnv{
		e:        echo.New(),
		sessions: mgr,
		store:    testutil.NewMockStorage(),
		journal:  &fakeJournal{},
	}
	env.e.HTTPErrorHandler = ErrorHandler

	handlers := NewHandlers(&Dependencies{
		Sessions:            mgr,
		Store:               env.store,
		Journal:             env.journal,
		Seed:                func() []models.MapEntity { return parser.DefaultEntities(time.Time{}) },
		Version:             "test",
		FrameBuffer:         4,
		WSMaxMessageKB:      16,
		AllowLayoutDeletion: true,
	})
	RegisterRoutes(env.e, handlers)
	return env
}

func (env *testEnv) do(t *testing.T, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var r io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		r = bytes.NewReader(data)
	}
	req := httptest.NewRequest(method, path, r)
	if body != nil {
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	}
	rec := httptest.NewRecorder()
	env.e.ServeHTTP(rec, req)
	return rec
}

func (env *testEnv) createSession(t *testing.T) string {
	t.Helper()
	rec := env.do(t, http.MethodPost, "/api/floor", map[string]interface{}{})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var sess models.FloorSession
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &sess))
	require.NotEmpty(t, sess.ID)
	return sess.ID
}

func decode(t *testing.T, rec *httptest.ResponseRecorder, v interface{}) {
	t.Helper()
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), v), rec.Body.String())
}

func errorCode(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var apiErr APIError
	decode(t, rec, &apiErr)
	return apiErr.Code
}

func TestHealthHandler(t *testing.T) {
	env := newTestEnv(t)
	env.createSession(t)

	rec := env.do(t, http.MethodGet, "/api/health", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var body map[string]interface{}
	decode(t, rec, &body)
	assert.Equal(t, "ok", body["status"])
	assert.Equal(t, "test", body["version"])
	assert.Equal(t, float64(1), body["sessions"])
	assert.Equal(t, float64(0), body["droppedFrames"])
}

func TestFloorHandler_SessionLifecycle(t *testing.T) {
	env := newTestEnv(t)
	id := env.createSession(t)

	rec := env.do(t, http.MethodGet, "/api/floor/"+id, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var sess models.FloorSession
	decode(t, rec, &sess)
	assert.Equal(t, id, sess.ID)
	assert.Equal(t, 10, sess.EntityCount)

	rec = env.do(t, http.MethodGet, "/api/floor", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var list []models.FloorSession
	decode(t, rec, &list)
	assert.Len(t, list, 1)

	rec = env.do(t, http.MethodPost, "/api/floor/"+id+"/keepalive", nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = env.do(t, http.MethodDelete, "/api/floor/"+id, nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = env.do(t, http.MethodGet, "/api/floor/"+id, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "NOT_FOUND", errorCode(t, rec))

	rec = env.do(t, http.MethodDelete, "/api/floor/"+id, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestFloorHandler_CreateSession(t *testing.T) {
	env := newTestEnv(t)
	env.store.AddLayout("layout-1", "two.json", []byte(`[
		{"type":"device","id":"D1","x":10,"y":10},
		{"type":"sensor","id":"S1","x":50,"y":10}
	]`))
	env.store.AddLayout("layout-bad", "bad.json", []byte(`{"not":"an array"}`))

	tests := []struct {
		name       string
		body       map[string]interface{}
		wantStatus int
		wantCount  int
		errCode    string
	}{
		{"default seed", map[string]interface{}{}, http.StatusCreated, 10, ""},
		{"stored layout", map[string]interface{}{"layoutId": "layout-1"}, http.StatusCreated, 2, ""},
		{"view mode", map[string]interface{}{"editMode": false}, http.StatusCreated, 10, ""},
		{"unknown layout", map[string]interface{}{"layoutId": "missing"}, http.StatusNotFound, 0, "NOT_FOUND"},
		{"invalid layout", map[string]interface{}{"layoutId": "layout-bad"}, http.StatusBadRequest, 0, "BAD_REQUEST"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := env.do(t, http.MethodPost, "/api/floor", tt.body)
			require.Equal(t, tt.wantStatus, rec.Code, rec.Body.String())
			if tt.errCode != "" {
				assert.Equal(t, tt.errCode, errorCode(t, rec))
				return
			}
			var sess models.FloorSession
			decode(t, rec, &sess)
			assert.Equal(t, tt.wantCount, sess.EntityCount)
			if edit, ok := tt.body["editMode"].(bool); ok {
				assert.Equal(t, edit, sess.EditMode)
			}
		})
	}
}

func TestFloorHandler_Snapshot(t *testing.T) {
	env := newTestEnv(t)
	id := env.createSession(t)

	rec := env.do(t, http.MethodGet, "/api/floor/"+id+"/snapshot", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var snap floor.Snapshot
	decode(t, rec, &snap)
	assert.Equal(t, id, snap.SessionID)
	assert.True(t, snap.EditMode)
	require.Len(t, snap.Entities, 10)
	assert.NotEmpty(t, snap.Entities[0].Tooltip)
	require.Len(t, snap.Sim.Stations, 3)
	assert.NotNil(t, snap.Frame.Dots)

	rec = env.do(t, http.MethodGet, "/api/floor/"+id+"/snapshot/msgpack", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/msgpack", rec.Header().Get(echo.HeaderContentType))

	var packed map[string]interface{}
	require.NoError(t, msgpack.Unmarshal(rec.Body.Bytes(), &packed))
	assert.Equal(t, id, packed["sessionId"])
	entities, ok := packed["entities"].([]interface{})
	require.True(t, ok)
	assert.Len(t, entities, 10)

	rec = env.do(t, http.MethodGet, "/api/floor/"+id+"/frame", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var frame models.Frame
	decode(t, rec, &frame)
	require.Len(t, frame.Carts, 1)
	assert.Equal(t, 1010.0-35, frame.Carts[0].X)

	rec = env.do(t, http.MethodGet, "/api/floor/unknown/snapshot", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestFloorHandler_ModeAndGrid(t *testing.T) {
	env := newTestEnv(t)
	id := env.createSession(t)

	rec := env.do(t, http.MethodPost, "/api/floor/"+id+"/mode", map[string]interface{}{})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "VALIDATION_ERROR", errorCode(t, rec))

	rec = env.do(t, http.MethodPost, "/api/floor/"+id+"/mode", map[string]bool{"editMode": false})
	require.Equal(t, http.StatusOK, rec.Code)
	sess, ok := env.sessions.GetSession(id)
	require.True(t, ok)
	assert.False(t, sess.EditMode)

	rec = env.do(t, http.MethodPost, "/api/floor/"+id+"/grid", map[string]interface{}{"gridSize": 9999})
	require.Equal(t, http.StatusOK, rec.Code)
	var snap floor.Snapshot
	decode(t, rec, &snap)
	assert.Equal(t, 512, snap.GridSize)
	assert.False(t, snap.EditMode)
}

func TestFloorHandler_Viewport(t *testing.T) {
	env := newTestEnv(t)
	id := env.createSession(t)

	rec := env.do(t, http.MethodPost, "/api/floor/"+id+"/input/resize", map[string]float64{"width": 1600, "height": 900})
	require.Equal(t, http.StatusNoContent, rec.Code)

	rec = env.do(t, http.MethodPost, "/api/floor/"+id+"/viewport/fit", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var snap floor.Snapshot
	decode(t, rec, &snap)
	assert.InDelta(t, 1552.0/3100, snap.Viewport.Scale, 1e-9)

	rec = env.do(t, http.MethodPost, "/api/floor/"+id+"/input/wheel", map[string]interface{}{"delta": 120, "x": 800, "y": 450})
	require.Equal(t, http.StatusNoContent, rec.Code)

	rec = env.do(t, http.MethodPost, "/api/floor/"+id+"/viewport/reset", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	decode(t, rec, &snap)
	assert.InDelta(t, 1552.0/3100, snap.Viewport.Scale, 1e-9)
}

func TestFloorHandler_Entities(t *testing.T) {
	env := newTestEnv(t)
	id := env.createSession(t)
	base := "/api/floor/" + id + "/entities"

	rec := env.do(t, http.MethodGet, base, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var list []models.MapEntity
	decode(t, rec, &list)
	require.Len(t, list, 10)
	assert.Equal(t, models.KindLayoutZone, list[0].Kind, "lowest z first")

	tests := []struct {
		name            string
		entityID        string
		body            map[string]interface{}
		wantStatus      int
		wantStatusValue models.EntityStatus
	}{
		{"status by name", "CV_01", map[string]interface{}{"status": "fault"}, http.StatusOK, models.StatusFault},
		{"status by ordinal", "CV_01", map[string]interface{}{"status": "3"}, http.StatusOK, models.StatusRunning},
		{"has item only", "CV_01", map[string]interface{}{"hasItem": true}, http.StatusOK, models.StatusRunning},
		{"unknown status", "CV_01", map[string]interface{}{"status": "melting"}, http.StatusBadRequest, ""},
		{"empty update", "CV_01", map[string]interface{}{}, http.StatusBadRequest, ""},
		{"unknown entity", "NOPE", map[string]interface{}{"status": "Idle"}, http.StatusNotFound, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := env.do(t, http.MethodPatch, base+"/"+tt.entityID, tt.body)
			require.Equal(t, tt.wantStatus, rec.Code, rec.Body.String())
			if tt.wantStatus != http.StatusOK {
				return
			}
			var view floor.EntityView
			decode(t, rec, &view)
			assert.Equal(t, tt.wantStatusValue, view.Status)
			assert.Contains(t, view.Tooltip, "CV_01")
		})
	}

	rec = env.do(t, http.MethodGet, base+"/CV_01", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var view floor.EntityView
	decode(t, rec, &view)
	assert.True(t, view.HasItem)

	rec = env.do(t, http.MethodGet, base+"/NOPE", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
