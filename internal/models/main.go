// Package models defines the data structures shared by the mood store service
// and the map client: the persisted mood row, coordinates and location candidates.
package models

import (
	"fmt"
	"time"
	"unicode/utf8"
)

// MaxNoteLength is the longest note, in characters, a mood may carry.
const MaxNoteLength = 48

// Coordinates is a latitude/longitude pair in degrees.
type Coordinates struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// Valid reports whether both components are inside their geographic ranges.
func (c Coordinates) Valid() bool {
	return c.Lat >= -90 && c.Lat <= 90 && c.Lng >= -180 && c.Lng <= 180
}

func (c Coordinates) String() string {
	return fmt.Sprintf("%.6f,%.6f", c.Lat, c.Lng)
}

// Mood is one persisted mood pin. At most one row exists per OwnerID.
type Mood struct {
	// ID is assigned by the store on first persistence. Before that the client
	// uses a local placeholder.
	ID string `json:"id"`
	// OwnerID is the effective identity of the author. Positive ids are
	// platform-verified, negative ids are synthesized on the device.
	OwnerID int64 `json:"owner_id"`
	// DisplayName and Username come from the verified platform profile, if any.
	DisplayName string `json:"display_name"`
	Username    string `json:"username"`
	// LocationLabel is the human-readable place name.
	LocationLabel string    `json:"location_label"`
	Latitude      float64   `json:"latitude"`
	Longitude     float64   `json:"longitude"`
	Emoji         string    `json:"emoji"`
	Note          string    `json:"note"`
	CreatedAt     time.Time `json:"created_at"`
	// ShareRequested records whether the author asked to publish the mood externally.
	ShareRequested bool `json:"share_requested"`
	// IsRandomLocation is set when the location came from the landmark catalog.
	IsRandomLocation bool `json:"is_random_location"`
}

// Coordinates returns the mood position.
func (m Mood) Coordinates() Coordinates {
	return Coordinates{Lat: m.Latitude, Lng: m.Longitude}
}

// Validate checks the row invariants enforced by both the client and the store.
// It returns a validation *Failure or nil.
func (m Mood) Validate() error {
	switch {
	case m.OwnerID == 0:
		return Validation("mood has no owner")
	case m.Emoji == "":
		return Validation("pick an emoji")
	case utf8.RuneCountInString(m.Note) > MaxNoteLength:
		return Validation(fmt.Sprintf("note must be at most %d characters", MaxNoteLength))
	case !m.Coordinates().Valid():
		return Validation("coordinates out of range")
	}
	return nil
}

// SourceKind tells where a LocationCandidate came from.
type SourceKind string

const (
	// SourceDevice is the position reported by the user's device.
	SourceDevice SourceKind = "user-device-location"
	// SourceFreeText is a forward-geocoded text query.
	SourceFreeText SourceKind = "free-text-input"
	// SourcePreset is an entry of the landmark catalog.
	SourcePreset SourceKind = "preset-landmark"
)

// LocationCandidate is a location bound to a pending mood.
type LocationCandidate struct {
	Coords Coordinates `json:"coords"`
	// Label is empty until resolved.
	Label  string     `json:"label"`
	Zoom   int        `json:"zoom"`
	Source SourceKind `json:"source"`
	// Resolved is set once a forward geocode produced Coords. Only meaningful
	// for SourceFreeText.
	Resolved bool `json:"resolved"`
}

// Usable reports whether the candidate may be used for a submission.
func (c *LocationCandidate) Usable() bool {
	if c == nil {
		return false
	}
	if c.Source == SourceFreeText && !c.Resolved {
		return false
	}
	return c.Coords.Valid()
}
