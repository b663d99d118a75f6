package optimizer

import (
	"math"

	"github.com/goliatone/go-dispatch-cache/model"
)

// EarthRadiusKm is the mean earth radius used by Distance.
const EarthRadiusKm = 6371.0

// Distance returns the great-circle distance between a and b in kilometers
// using the haversine formula.
func Distance(a, b model.Point) float64 {
	lat1 := radians(a.Lat)
	lat2 := radians(b.Lat)
	dLat := radians(b.Lat - a.Lat)
	dLng := radians(b.Lng - a.Lng)

	h := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1)*math.Cos(lat2)*math.Sin(dLng/2)*math.Sin(dLng/2)

	return 2 * EarthRadiusKm * math.Atan2(math.Sqrt(h), math.Sqrt(1-h))
}

func radians(deg float64) float64 {
	return deg * math.Pi / 180
}

// withinRadius keeps trips whose origin or destination lies within radiusKm
// of center.
func withinRadius(trips []model.Trip, center model.Point, radiusKm float64) []model.Trip {
	out := make([]model.Trip, 0, len(trips))
	for _, t := range trips {
		if Distance(t.Origin(), center) <= radiusKm || Distance(t.Destination(), center) <= radiusKm {
			out = append(out, t)
		}
	}
	return out
}
