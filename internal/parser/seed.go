package parser

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/fas-floormap/backend/internal/geom"
	"github.com/fas-floormap/backend/internal/models"
)

// ErrNotSeedArray is returned when a seed document is not a JSON array.
var ErrNotSeedArray = errors.New("seed document must be a JSON array")

// SeedResult reports what a seed load accepted and dropped.
type SeedResult struct {
	Entities []models.MapEntity
	Dropped  int
	Fallback bool
}

// LoadSeedFile reads a seed file. Missing, unreadable, malformed or empty
// seeds yield the built-in default set instead of an error.
func LoadSeedFile(filePath string, now time.Time) SeedResult {
	data, err := os.ReadFile(filePath)
	if err != nil {
		fmt.Printf("[Seed] Cannot read %s (%v), using default layout\n", filePath, err)
		return SeedResult{Entities: DefaultEntities(now), Fallback: true}
	}
	return LoadSeed(data, now)
}

// LoadSeed parses seed bytes, falling back to the default set on failure.
func LoadSeed(data []byte, now time.Time) SeedResult {
	res, err := ParseSeed(bytes.NewReader(data), now)
	if err != nil {
		fmt.Printf("[Seed] Invalid seed (%v), using default layout\n", err)
		return SeedResult{Entities: DefaultEntities(now), Dropped: res.Dropped, Fallback: true}
	}
	if len(res.Entities) == 0 {
		fmt.Printf("[Seed] Seed has no usable entities (%d dropped), using default layout\n", res.Dropped)
		return SeedResult{Entities: DefaultEntities(now), Dropped: res.Dropped, Fallback: true}
	}
	if res.Dropped > 0 {
		fmt.Printf("[Seed] Loaded %d entities, dropped %d records\n", len(res.Entities), res.Dropped)
	}
	return res
}

// ParseSeed decodes a JSON array of entity records. Records with a blank or
// unknown type, a blank id, or a duplicate id are dropped; the first record
// for an id wins. Numeric fields that are missing or not numbers fall back to
// the kind defaults.
func ParseSeed(r io.Reader, now time.Time) (SeedResult, error) {
	var raw []json.RawMessage
	dec := json.NewDecoder(r)
	if err := dec.Decode(&raw); err != nil {
		var typeErr *json.UnmarshalTypeError
		if errors.As(err, &typeErr) {
			return SeedResult{}, fmt.Errorf("%w: %v", ErrNotSeedArray, err)
		}
		return SeedResult{}, fmt.Errorf("decode seed: %w", err)
	}

	res := SeedResult{Entities: make([]models.MapEntity, 0, len(raw))}
	seen := make(map[string]struct{}, len(raw))
	for _, item := range raw {
		var rec record
		if err := json.Unmarshal(item, &rec); err != nil || rec == nil {
			res.Dropped++
			continue
		}
		e, ok := decodeRecord(rec, now)
		if !ok {
			res.Dropped++
			continue
		}
		if _, dup := seen[e.ID]; dup {
			res.Dropped++
			continue
		}
		seen[e.ID] = struct{}{}
		res.Entities = append(res.Entities, e)
	}
	return res, nil
}

type record map[string]json.RawMessage

func decodeRecord(rec record, now time.Time) (models.MapEntity, bool) {
	kind, ok := models.ParseEntityKind(rec.str("type"))
	if !ok {
		return models.MapEntity{}, false
	}
	id := strings.TrimSpace(rec.str("id"))
	if id == "" {
		return models.MapEntity{}, false
	}

	e := models.NewMapEntity(id, kind, now)
	if name, ok := rec.strOK("displayName"); ok {
		e.DisplayName = name
	}
	e.X = rec.num("x", 0)
	e.Y = rec.num("y", 0)
	e.Width = positive(rec.num("width", e.Width), e.Width)
	e.Height = positive(rec.num("height", e.Height), e.Height)
	e.Rotation = rec.num("rotation", 0)
	e.ZIndex = int(rec.num("zIndex", float64(e.ZIndex)))
	e.IsInteractive = rec.boolean("isInteractive", e.IsInteractive)
	e.HasItem = rec.boolean("hasItem", false)
	if st, ok := rec.status("status"); ok {
		e.Status = st
	}

	switch kind {
	case models.KindConveyor:
		if d, ok := models.ParseDirection(rec.str("direction")); ok {
			e.Direction = d
		}
		e.Lane = int(rec.num("lane", 0))
		e.Speed = rec.num("speed", 0)
		e.IsBlocked = rec.boolean("isBlocked", false)
	case models.KindSensor:
		if st, ok := models.ParseSensorType(rec.str("sensorType")); ok {
			e.SensorType = st
		}
		e.IsTriggered = rec.boolean("isTriggered", false)
	case models.KindCamera:
		e.IsStreaming = rec.boolean("isStreaming", false)
	case models.KindBarcode:
		e.LastCode = rec.str("lastCode")
	case models.KindPath:
		e.Points = ParsePoints(rec.str("points"))
	}
	return e, true
}

func (r record) strOK(key string) (string, bool) {
	raw, ok := r[key]
	if !ok || isNull(raw) {
		return "", false
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return "", false
	}
	return s, true
}

func (r record) str(key string) string {
	s, _ := r.strOK(key)
	return s
}

// num accepts JSON numbers and numeric strings.
func (r record) num(key string, def float64) float64 {
	raw, ok := r[key]
	if !ok || isNull(raw) {
		return def
	}
	var f float64
	if err := json.Unmarshal(raw, &f); err == nil {
		return f
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		if v, err := strconv.ParseFloat(strings.TrimSpace(s), 64); err == nil && !math.IsNaN(v) && !math.IsInf(v, 0) {
			return v
		}
	}
	return def
}

func (r record) boolean(key string, def bool) bool {
	raw, ok := r[key]
	if !ok || isNull(raw) {
		return def
	}
	var b bool
	if err := json.Unmarshal(raw, &b); err == nil {
		return b
	}
	if v, err := strconv.ParseBool(r.str(key)); err == nil {
		return v
	}
	return def
}

// status accepts a status name or its ordinal as a number or string.
func (r record) status(key string) (models.EntityStatus, bool) {
	raw, ok := r[key]
	if !ok || isNull(raw) {
		return "", false
	}
	var n int
	if err := json.Unmarshal(raw, &n); err == nil {
		return models.ParseEntityStatus(strconv.Itoa(n))
	}
	return models.ParseEntityStatus(r.str(key))
}

func isNull(raw json.RawMessage) bool {
	return string(bytes.TrimSpace(raw)) == "null"
}

func positive(v, def float64) float64 {
	if v > 0 {
		return v
	}
	return def
}

// ParsePoints parses a space separated "x,y x,y" list. Malformed pairs are skipped.
func ParsePoints(s string) []geom.Point {
	fields := strings.Fields(s)
	if len(fields) == 0 {
		return nil
	}
	pts := make([]geom.Point, 0, len(fields))
	for _, f := range fields {
		xs, ys, ok := strings.Cut(f, ",")
		if !ok {
			continue
		}
		x, errX := strconv.ParseFloat(xs, 64)
		y, errY := strconv.ParseFloat(ys, 64)
		if errX != nil || errY != nil {
			continue
		}
		p := geom.Pt(x, y)
		if !p.IsFinite() {
			continue
		}
		pts = append(pts, p)
	}
	return pts
}

// FormatPoints is the inverse of ParsePoints.
func FormatPoints(pts []geom.Point) string {
	parts := make([]string, len(pts))
	for i, p := range pts {
		parts[i] = strconv.FormatFloat(p.X, 'f', -1, 64) + "," + strconv.FormatFloat(p.Y, 'f', -1, 64)
	}
	return strings.Join(parts, " ")
}

// seedRecord is the export shape. Field order follows the import contract.
type seedRecord struct {
	Type          models.EntityKind   `json:"type"`
	ID            string              `json:"id"`
	DisplayName   string              `json:"displayName"`
	X             float64             `json:"x"`
	Y             float64             `json:"y"`
	Width         float64             `json:"width"`
	Height        float64             `json:"height"`
	Rotation      float64             `json:"rotation"`
	ZIndex        int                 `json:"zIndex"`
	IsInteractive bool                `json:"isInteractive"`
	Status        models.EntityStatus `json:"status"`
	HasItem       bool                `json:"hasItem"`

	Direction   models.Direction  `json:"direction,omitempty"`
	Lane        *int              `json:"lane,omitempty"`
	Speed       *float64          `json:"speed,omitempty"`
	IsBlocked   *bool             `json:"isBlocked,omitempty"`
	SensorType  models.SensorType `json:"sensorType,omitempty"`
	IsTriggered *bool             `json:"isTriggered,omitempty"`
	IsStreaming *bool             `json:"isStreaming,omitempty"`
	LastCode    *string           `json:"lastCode,omitempty"`
	Points      *string           `json:"points,omitempty"`
}

// MarshalSeed encodes entities in the seed format, so ParseSeed(MarshalSeed(x))
// reproduces every imported field.
func MarshalSeed(entities []models.MapEntity) ([]byte, error) {
	out := make([]seedRecord, 0, len(entities))
	for _, e := range entities {
		rec := seedRecord{
			Type:          e.Kind,
			ID:            e.ID,
			DisplayName:   e.DisplayName,
			X:             e.X,
			Y:             e.Y,
			Width:         e.Width,
			Height:        e.Height,
			Rotation:      e.Rotation,
			ZIndex:        e.ZIndex,
			IsInteractive: e.IsInteractive,
			Status:        e.Status,
			HasItem:       e.HasItem,
		}
		switch e.Kind {
		case models.KindConveyor:
			lane, speed, blocked := e.Lane, e.Speed, e.IsBlocked
			rec.Direction = e.Direction
			rec.Lane, rec.Speed, rec.IsBlocked = &lane, &speed, &blocked
		case models.KindSensor:
			triggered := e.IsTriggered
			rec.SensorType = e.SensorType
			rec.IsTriggered = &triggered
		case models.KindCamera:
			streaming := e.IsStreaming
			rec.IsStreaming = &streaming
		case models.KindBarcode:
			code := e.LastCode
			rec.LastCode = &code
		case models.KindPath:
			pts := FormatPoints(e.Points)
			rec.Points = &pts
		}
		out = append(out, rec)
	}
	data, err := json.MarshalIndent(out, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encode seed: %w", err)
	}
	return data, nil
}

// WriteSeed writes the seed encoding of entities to w.
func WriteSeed(w io.Writer, entities []models.MapEntity) error {
	data, err := MarshalSeed(entities)
	if err != nil {
		return err
	}
	_, err = w.Write(data)
	return err
}

// DefaultEntities is the built-in layout used when no seed can be loaded.
// The zones sit under the station stock areas.
func DefaultEntities(now time.Time) []models.MapEntity {
	zone := func(id, name string, x, y, w, h float64) models.MapEntity {
		e := models.NewMapEntity(id, models.KindLayoutZone, now)
		e.DisplayName = name
		e.X, e.Y, e.Width, e.Height = x, y, w, h
		return e
	}
	at := func(id string, kind models.EntityKind, x, y float64) models.MapEntity {
		e := models.NewMapEntity(id, kind, now)
		e.X, e.Y = x, y
		return e
	}

	rackA := zone("ZONE_RACK_A", "Rack A", 90, 90, 320, 130)
	rackB := zone("ZONE_RACK_B", "Rack B", 520, 90, 320, 130)
	output := zone("ZONE_OUTPUT", "Output", 820, 650, 380, 190)

	block := models.NewMapEntity("BLOCK_MAIN", models.KindConveyorBlock, now)
	block.DisplayName = "Main line"
	block.X, block.Y = 940, 520

	lane := models.NewMapEntity("PATH_MAIN", models.KindPath, now)
	lane.Points = []geom.Point{geom.Pt(1010, 760), geom.Pt(1010, 570), geom.Pt(470, 570), geom.Pt(470, 440)}

	conv := at("CV_01", models.KindConveyor, 960, 540)
	conv.Lane = 1
	conv.Speed = 0.5

	sensor := at("SN_01", models.KindSensor, 1040, 600)
	sensor.SensorType = models.SensorItemDetect

	return []models.MapEntity{
		rackA, rackB, output, block, lane, conv, sensor,
		at("CAM_01", models.KindCamera, 1160, 660),
		at("BC_01", models.KindBarcode, 1100, 600),
		at("DEV_01", models.KindDevice, 880, 700),
	}
}
