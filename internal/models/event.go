package models

import "time"

// EventKind classifies a simulation journal event.
type EventKind string

const (
	EventTransition EventKind = "transition"
	EventStock      EventKind = "stock"
	EventSpawn      EventKind = "spawn"
)

// SimEvent is one observable change made by the simulation.
type SimEvent struct {
	Kind      EventKind `json:"kind" msgpack:"kind"`
	Timestamp time.Time `json:"timestamp" msgpack:"timestamp"`
	Tick      int64     `json:"tick" msgpack:"tick"`
	SessionID string    `json:"sessionId,omitempty" msgpack:"sessionId,omitempty"`
	Cart      int       `json:"cart" msgpack:"cart"`
	From      CartState `json:"from,omitempty" msgpack:"from,omitempty"`
	To        CartState `json:"to,omitempty" msgpack:"to,omitempty"`
	Station   StationID `json:"station,omitempty" msgpack:"station,omitempty"`
	Delta     int       `json:"delta,omitempty" msgpack:"delta,omitempty"`
	Stock     int       `json:"stock" msgpack:"stock"`
}
