package app

import (
	"fmt"
	"math"
	"sort"

	"github.com/atinyakov/moodmap/internal/models"
)

// Cluster is a group of moods shown as one map marker.
type Cluster struct {
	Key    string
	Coords models.Coordinates
	Label  string
	// Moods are sorted newest first.
	Moods []models.Mood
}

// ClusterKey groups moods by coordinates rounded to six decimals and label,
// so floating point noise in the same place does not split a marker.
func ClusterKey(m models.Mood) string {
	return fmt.Sprintf("%.6f,%.6f|%s", round6(m.Latitude), round6(m.Longitude), m.LocationLabel)
}

// round6 rounds to six decimals and folds -0 into 0.
func round6(x float64) float64 {
	r := math.Round(x*1e6) / 1e6
	if r == 0 {
		return 0
	}
	return r
}

// Clusters groups moods. Clusters are ordered by their newest mood.
func Clusters(list []models.Mood) []Cluster {
	byKey := make(map[string]int)
	var out []Cluster
	for _, m := range list {
		key := ClusterKey(m)
		i, ok := byKey[key]
		if !ok {
			i = len(out)
			byKey[key] = i
			out = append(out, Cluster{Key: key, Coords: m.Coordinates(), Label: m.LocationLabel})
		}
		out[i].Moods = append(out[i].Moods, m)
	}
	for i := range out {
		moods := out[i].Moods
		sort.SliceStable(moods, func(a, b int) bool { return moods[a].CreatedAt.After(moods[b].CreatedAt) })
	}
	sort.SliceStable(out, func(a, b int) bool { return out[a].Moods[0].CreatedAt.After(out[b].Moods[0].CreatedAt) })
	return out
}
