package geo

import (
	"math/rand/v2"

	"github.com/atinyakov/moodmap/internal/models"
)

// Landmark is a catalog entry used by the random-location mode.
type Landmark struct {
	Label  string
	Coords models.Coordinates
	Zoom   int
}

// Landmarks is the fixed catalog of preset locations.
var Landmarks = []Landmark{
	{"Eiffel Tower, Paris, France", models.Coordinates{Lat: 48.8584, Lng: 2.2945}, 15},
	{"Statue of Liberty, New York, United States", models.Coordinates{Lat: 40.6892, Lng: -74.0445}, 15},
	{"Colosseum, Rome, Italy", models.Coordinates{Lat: 41.8902, Lng: 12.4922}, 16},
	{"Taj Mahal, Agra, India", models.Coordinates{Lat: 27.1751, Lng: 78.0421}, 15},
	{"Sydney Opera House, Sydney, Australia", models.Coordinates{Lat: -33.8568, Lng: 151.2153}, 15},
	{"Christ the Redeemer, Rio de Janeiro, Brazil", models.Coordinates{Lat: -22.9519, Lng: -43.2105}, 14},
	{"Great Pyramid of Giza, Giza, Egypt", models.Coordinates{Lat: 29.9792, Lng: 31.1342}, 14},
	{"Mount Fuji, Shizuoka, Japan", models.Coordinates{Lat: 35.3606, Lng: 138.7274}, 11},
	{"Golden Gate Bridge, San Francisco, United States", models.Coordinates{Lat: 37.8199, Lng: -122.4783}, 14},
	{"Machu Picchu, Cusco, Peru", models.Coordinates{Lat: -13.1631, Lng: -72.5450}, 14},
}

// RandomLandmark picks a catalog entry uniformly. intn defaults to rand.IntN.
func RandomLandmark(intn func(n int) int) Landmark {
	if intn == nil {
		intn = rand.IntN
	}
	return Landmarks[intn(len(Landmarks))]
}

// Candidate converts the landmark into a preset location candidate.
func (l Landmark) Candidate() *models.LocationCandidate {
	return &models.LocationCandidate{
		Coords:   l.Coords,
		Label:    l.Label,
		Zoom:     l.Zoom,
		Source:   models.SourcePreset,
		Resolved: true,
	}
}
