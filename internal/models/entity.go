// Package models contains domain types for the floor map backend.
package models

import (
	"fmt"
	"strings"
	"time"

	"github.com/fas-floormap/backend/internal/geom"
)

// EntityKind is the seed discriminator of a map entity.
type EntityKind string

const (
	KindLayoutZone    EntityKind = "layoutzone"
	KindConveyorBlock EntityKind = "conveyorblock"
	KindPath          EntityKind = "path"
	KindConveyor      EntityKind = "conveyor"
	KindSensor        EntityKind = "sensor"
	KindCamera        EntityKind = "camera"
	KindBarcode       EntityKind = "barcode"
	KindDevice        EntityKind = "device"
)

// ParseEntityKind resolves a seed type string. Matching is case-insensitive.
func ParseEntityKind(s string) (EntityKind, bool) {
	k := EntityKind(strings.ToLower(strings.TrimSpace(s)))
	switch k {
	case KindLayoutZone, KindConveyorBlock, KindPath, KindConveyor,
		KindSensor, KindCamera, KindBarcode, KindDevice:
		return k, true
	}
	return "", false
}

// EntityStatus is the runtime status shown on a map entity.
type EntityStatus string

const (
	StatusOffline EntityStatus = "Offline"
	StatusIdle    EntityStatus = "Idle"
	StatusNormal  EntityStatus = "Normal"
	StatusRunning EntityStatus = "Running"
	StatusWarning EntityStatus = "Warning"
	StatusFault   EntityStatus = "Fault"
)

var statusOrder = []EntityStatus{StatusOffline, StatusIdle, StatusNormal, StatusRunning, StatusWarning, StatusFault}

// ParseEntityStatus accepts a status name (any case) or its ordinal.
func ParseEntityStatus(s string) (EntityStatus, bool) {
	s = strings.TrimSpace(s)
	for i, st := range statusOrder {
		if strings.EqualFold(s, string(st)) || s == fmt.Sprint(i) {
			return st, true
		}
	}
	return "", false
}

// Direction is the flow direction of a conveyor.
type Direction string

const (
	DirectionNone  Direction = "None"
	DirectionLeft  Direction = "Left"
	DirectionRight Direction = "Right"
	DirectionUp    Direction = "Up"
	DirectionDown  Direction = "Down"
)

// ParseDirection accepts a direction name in any case.
func ParseDirection(s string) (Direction, bool) {
	for _, d := range []Direction{DirectionNone, DirectionLeft, DirectionRight, DirectionUp, DirectionDown} {
		if strings.EqualFold(strings.TrimSpace(s), string(d)) {
			return d, true
		}
	}
	return "", false
}

// SensorType classifies what a sensor measures.
type SensorType string

const (
	SensorUnknown     SensorType = "Unknown"
	SensorItemDetect  SensorType = "ItemDetect"
	SensorPosition    SensorType = "Position"
	SensorTemperature SensorType = "Temperature"
	SensorSpeed       SensorType = "Speed"
	SensorPressure    SensorType = "Pressure"
)

// ParseSensorType accepts a sensor type name in any case.
func ParseSensorType(s string) (SensorType, bool) {
	for _, st := range []SensorType{SensorUnknown, SensorItemDetect, SensorPosition, SensorTemperature, SensorSpeed, SensorPressure} {
		if strings.EqualFold(strings.TrimSpace(s), string(st)) {
			return st, true
		}
	}
	return "", false
}

// MapEntity is a placed object on the floor map. Coordinates are world space,
// X/Y is the top-left corner.
type MapEntity struct {
	ID            string       `json:"id" msgpack:"id"`
	Kind          EntityKind   `json:"type" msgpack:"type"`
	DisplayName   string       `json:"displayName" msgpack:"displayName"`
	X             float64      `json:"x" msgpack:"x"`
	Y             float64      `json:"y" msgpack:"y"`
	Width         float64      `json:"width" msgpack:"width"`
	Height        float64      `json:"height" msgpack:"height"`
	Rotation      float64      `json:"rotation" msgpack:"rotation"`
	ZIndex        int          `json:"zIndex" msgpack:"zIndex"`
	IsInteractive bool         `json:"isInteractive" msgpack:"isInteractive"`
	Status        EntityStatus `json:"status" msgpack:"status"`
	HasItem       bool         `json:"hasItem" msgpack:"hasItem"`
	LastUpdated   time.Time    `json:"lastUpdated" msgpack:"lastUpdated"`

	// Conveyor
	Direction Direction `json:"direction,omitempty" msgpack:"direction,omitempty"`
	Lane      int       `json:"lane,omitempty" msgpack:"lane,omitempty"`
	Speed     float64   `json:"speed,omitempty" msgpack:"speed,omitempty"`
	IsBlocked bool      `json:"isBlocked,omitempty" msgpack:"isBlocked,omitempty"`

	// Sensor
	SensorType  SensorType `json:"sensorType,omitempty" msgpack:"sensorType,omitempty"`
	IsTriggered bool       `json:"isTriggered,omitempty" msgpack:"isTriggered,omitempty"`

	// Camera
	IsStreaming bool `json:"isStreaming,omitempty" msgpack:"isStreaming,omitempty"`

	// Barcode scanner
	LastCode string `json:"lastCode,omitempty" msgpack:"lastCode,omitempty"`

	// Path
	Points []geom.Point `json:"points,omitempty" msgpack:"points,omitempty"`
}

// EntityDefaults describes the geometry a kind gets when the seed omits it.
type EntityDefaults struct {
	Width         float64
	Height        float64
	ZIndex        int
	IsInteractive bool
}

// DefaultsFor returns the documented defaults for an entity kind.
// Layout overlays are never interactive; equipment and devices are.
func DefaultsFor(kind EntityKind) EntityDefaults {
	switch kind {
	case KindLayoutZone:
		return EntityDefaults{Width: 300, Height: 180, ZIndex: 5}
	case KindConveyorBlock:
		return EntityDefaults{Width: 140, Height: 60, ZIndex: 55}
	case KindPath:
		return EntityDefaults{Width: 20, Height: 20, ZIndex: 25}
	default:
		return EntityDefaults{Width: 20, Height: 20, IsInteractive: true}
	}
}

// NewMapEntity builds an entity with the defaults of its kind applied.
func NewMapEntity(id string, kind EntityKind, now time.Time) MapEntity {
	d := DefaultsFor(kind)
	e := MapEntity{
		ID:            id,
		Kind:          kind,
		DisplayName:   id,
		Width:         d.Width,
		Height:        d.Height,
		ZIndex:        d.ZIndex,
		IsInteractive: d.IsInteractive,
		Status:        StatusNormal,
		LastUpdated:   now,
	}
	switch kind {
	case KindConveyor:
		e.Direction = DirectionRight
	case KindSensor:
		e.SensorType = SensorUnknown
	}
	return e
}

// Clone returns a deep copy of the entity.
func (e MapEntity) Clone() MapEntity {
	e.Points = geom.ClonePath(e.Points)
	return e
}

// Bounds returns the world-space top-left and bottom-right corners.
func (e MapEntity) Bounds() (geom.Point, geom.Point) {
	return geom.Pt(e.X, e.Y), geom.Pt(e.X+e.Width, e.Y+e.Height)
}

// Contains reports whether the world point lies inside the entity rectangle.
func (e MapEntity) Contains(p geom.Point) bool {
	return p.X >= e.X && p.X <= e.X+e.Width && p.Y >= e.Y && p.Y <= e.Y+e.Height
}

// Describe returns the hover text for the entity.
func (e MapEntity) Describe() string {
	updated := e.LastUpdated.Format("15:04:05")
	switch e.Kind {
	case KindConveyor:
		return fmt.Sprintf("%s\nConveyor\nStatus: %s\nLane: %d Dir: %s\nSpeed: %.2f\nHasItem: %t Blocked: %t",
			e.ID, e.Status, e.Lane, e.Direction, e.Speed, e.HasItem, e.IsBlocked)
	case KindSensor:
		return fmt.Sprintf("%s\nSensor (%s)\nStatus: %s\nTriggered: %t", e.ID, e.SensorType, e.Status, e.IsTriggered)
	case KindCamera:
		return fmt.Sprintf("%s\nCamera\nStatus: %s\nStreaming: %t", e.ID, e.Status, e.IsStreaming)
	case KindBarcode:
		code := e.LastCode
		if code == "" {
			code = "-"
		}
		return fmt.Sprintf("%s\nBarcode\nStatus: %s\nCode: %s", e.ID, e.Status, code)
	case KindLayoutZone:
		return fmt.Sprintf("%s\nZone\nStatus: %s", e.ID, e.Status)
	}
	return fmt.Sprintf("%s\nStatus: %s\nHasItem: %t\nUpdated: %s", e.ID, e.Status, e.HasItem, updated)
}
