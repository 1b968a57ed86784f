// Package geo infers a named Bali area from listing coordinates when the
// free-text city field is missing from a scraped place.
package geo

import (
	"math"

	"github.com/twpayne/go-geom"
	"github.com/twpayne/go-geom/xy"
)

// MaxInferenceKM bounds how far a listing may sit from an area centroid
// before we refuse to attach a name. Bali's populated areas are dense
// enough that anything further is usually a bad geocode.
const MaxInferenceKM = 20.0

// kmPerDegreeLat is the approximate ground distance of one degree of
// latitude. Longitude degrees shrink with cos(lat).
const kmPerDegreeLat = 111.32

// areaCentroid is a named Bali area with its approximate center point.
type areaCentroid struct {
	name string
	lat  float64
	lng  float64
}

// areaCentroids covers the areas buyers actually search for. Coordinates
// are town centers, not administrative polygon centroids.
var areaCentroids = []areaCentroid{
	{"Canggu", -8.6478, 115.1385},
	{"Seminyak", -8.6913, 115.1682},
	{"Kuta", -8.7205, 115.1693},
	{"Legian", -8.7056, 115.1690},
	{"Denpasar", -8.6705, 115.2126},
	{"Sanur", -8.6878, 115.2623},
	{"Jimbaran", -8.7908, 115.1605},
	{"Nusa Dua", -8.8034, 115.2319},
	{"Uluwatu", -8.8291, 115.0849},
	{"Ubud", -8.5069, 115.2625},
	{"Tabanan", -8.5446, 115.1259},
	{"Gianyar", -8.5371, 115.3270},
	{"Amed", -8.3364, 115.6486},
	{"Candidasa", -8.5102, 115.5684},
	{"Lovina", -8.1582, 115.0261},
	{"Singaraja", -8.1120, 115.0882},
}

// NearestArea returns the named area closest to the given coordinates,
// or "" when the point is further than MaxInferenceKM from every centroid.
func NearestArea(lat, lng float64) string {
	name, dist := nearest(lat, lng)
	if dist > MaxInferenceKM {
		return ""
	}
	return name
}

func nearest(lat, lng float64) (string, float64) {
	best := ""
	bestKM := math.Inf(1)

	// Project degrees to a local km plane so go-geom's planar distance
	// is a real ground distance at Bali's latitude.
	p := kmPoint(lat, lng)
	for _, area := range areaCentroids {
		d := xy.Distance(p, kmPoint(area.lat, area.lng))
		if d < bestKM {
			bestKM = d
			best = area.name
		}
	}
	return best, bestKM
}

func kmPoint(lat, lng float64) geom.Coord {
	x := lng * kmPerDegreeLat * math.Cos(lat*math.Pi/180)
	y := lat * kmPerDegreeLat
	return geom.Coord{x, y}
}
