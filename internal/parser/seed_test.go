package parser

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/fas-floormap/backend/internal/geom"
	"github.com/fas-floormap/backend/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var seedNow = time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)

func TestParseSeed_MissingSizeUsesKindDefault(t *testing.T) {
	content := `[
		{"type": "device", "id": "D1", "x": 10, "y": 20},
		{"type": "layoutzone", "id": "Z1"},
		{"type": "conveyorblock", "id": "B1", "width": 0, "height": "abc"}
	]`

	res, err := ParseSeed(strings.NewReader(content), seedNow)
	require.NoError(t, err)
	require.Len(t, res.Entities, 3)

	tests := []struct {
		idx         int
		w, h        float64
		z           int
		interactive bool
	}{
		{0, 20, 20, 0, true},
		{1, 300, 180, 5, false},
		{2, 140, 60, 55, false},
	}
	for _, tt := range tests {
		e := res.Entities[tt.idx]
		assert.Equal(t, tt.w, e.Width, e.ID)
		assert.Equal(t, tt.h, e.Height, e.ID)
		assert.Equal(t, tt.z, e.ZIndex, e.ID)
		assert.Equal(t, tt.interactive, e.IsInteractive, e.ID)
	}
	assert.Equal(t, 10.0, res.Entities[0].X)
	assert.Equal(t, seedNow, res.Entities[0].LastUpdated)
}

func TestParseSeed_DropsBadAndDuplicateRecords(t *testing.T) {
	content := `[
		{"type": "sensor", "id": "S1", "displayName": "first"},
		{"type": "sensor", "id": "S1", "displayName": "second"},
		{"type": "", "id": "X"},
		{"type": "teleporter", "id": "T1"},
		{"type": "camera", "id": "   "},
		42,
		{"type": "camera", "id": "C1", "isStreaming": true}
	]`

	res, err := ParseSeed(strings.NewReader(content), seedNow)
	require.NoError(t, err)
	assert.Equal(t, 5, res.Dropped)
	require.Len(t, res.Entities, 2)
	assert.Equal(t, "first", res.Entities[0].DisplayName)
	assert.True(t, res.Entities[1].IsStreaming)
}

func TestParseSeed_TypeSpecificFields(t *testing.T) {
	content := `[
		{"type": "Conveyor", "id": "CV", "direction": "left", "lane": 2, "status": 5, "speed": 1.5, "hasItem": true},
		{"type": "sensor", "id": "SN", "sensorType": "temperature", "isTriggered": true, "status": "warning"},
		{"type": "barcode", "id": "BC", "lastCode": "ABC-123"},
		{"type": "path", "id": "P", "points": "0,0  10,0 bad 10,20"}
	]`

	res, err := ParseSeed(strings.NewReader(content), seedNow)
	require.NoError(t, err)
	require.Len(t, res.Entities, 4)

	cv := res.Entities[0]
	assert.Equal(t, models.KindConveyor, cv.Kind)
	assert.Equal(t, models.DirectionLeft, cv.Direction)
	assert.Equal(t, 2, cv.Lane)
	assert.Equal(t, models.StatusFault, cv.Status)
	assert.Equal(t, 1.5, cv.Speed)
	assert.True(t, cv.HasItem)

	sn := res.Entities[1]
	assert.Equal(t, models.SensorTemperature, sn.SensorType)
	assert.True(t, sn.IsTriggered)
	assert.Equal(t, models.StatusWarning, sn.Status)

	assert.Equal(t, "ABC-123", res.Entities[2].LastCode)
	assert.Equal(t, []geom.Point{geom.Pt(0, 0), geom.Pt(10, 0), geom.Pt(10, 20)}, res.Entities[3].Points)
}

func TestParseSeed_NotAnArray(t *testing.T) {
	_, err := ParseSeed(strings.NewReader(`{"type": "device"}`), seedNow)
	assert.ErrorIs(t, err, ErrNotSeedArray)

	_, err = ParseSeed(strings.NewReader(`[{"type": `), seedNow)
	assert.Error(t, err)
}

func TestLoadSeed_FallsBackToDefaults(t *testing.T) {
	tests := []struct {
		name string
		data string
	}{
		{"malformed", `not json`},
		{"empty array", `[]`},
		{"only bad records", `[{"id": "x"}]`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := LoadSeed([]byte(tt.data), seedNow)
			assert.True(t, res.Fallback)
			assert.Equal(t, len(DefaultEntities(seedNow)), len(res.Entities))
		})
	}

	res := LoadSeedFile(filepath.Join(t.TempDir(), "missing.json"), seedNow)
	assert.True(t, res.Fallback)
	assert.NotEmpty(t, res.Entities)
}

func TestLoadSeedFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "seed.json")
	require.NoError(t, os.WriteFile(path, []byte(`[{"type":"device","id":"D1"},{"type":"device","id":"D1"}]`), 0644))

	res := LoadSeedFile(path, seedNow)
	assert.False(t, res.Fallback)
	assert.Equal(t, 1, res.Dropped)
	require.Len(t, res.Entities, 1)
}

func TestMarshalSeed_IsInverseOfParse(t *testing.T) {
	original := DefaultEntities(seedNow)
	original[5].Status = models.StatusRunning
	original[5].IsBlocked = true
	original[6].IsTriggered = true
	original[8].LastCode = "Z9"
	original[9].Rotation = 90
	original[9].HasItem = true

	var buf bytes.Buffer
	require.NoError(t, WriteSeed(&buf, original))

	res, err := ParseSeed(&buf, seedNow)
	require.NoError(t, err)
	assert.Zero(t, res.Dropped)
	assert.Equal(t, original, res.Entities)
}

func TestDefaultEntities_UniqueIDs(t *testing.T) {
	seen := map[string]bool{}
	for _, e := range DefaultEntities(seedNow) {
		assert.False(t, seen[e.ID], e.ID)
		seen[e.ID] = true
	}
}

func TestFormatPoints(t *testing.T) {
	pts := []geom.Point{geom.Pt(1.5, -2), geom.Pt(100, 0.25)}
	s := FormatPoints(pts)
	assert.Equal(t, "1.5,-2 100,0.25", s)
	assert.Equal(t, pts, ParsePoints(s))
	assert.Nil(t, ParsePoints("   "))
}
