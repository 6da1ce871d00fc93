package models

import "time"

// LayoutFile represents metadata about a stored layout document.
type LayoutFile struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Size        int64     `json:"size"`
	SavedAt     time.Time `json:"savedAt"`
	EntityCount int       `json:"entityCount"`
	Source      string    `json:"source"` // "upload", "export"
}

// FloorSession describes one client's floor map session.
type FloorSession struct {
	ID           string    `json:"id"`
	LayoutID     string    `json:"layoutId,omitempty"`
	CreatedAt    time.Time `json:"createdAt"`
	LastAccessed time.Time `json:"lastAccessed"`
	EntityCount  int       `json:"entityCount"`
	EditMode     bool      `json:"editMode"`
}
