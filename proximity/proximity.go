// Package proximity orders vehicles by their distance from a reference position.
package proximity

import (
	"math"
	"slices"

	geo "github.com/kellydunn/golang-geo"

	"github.com/denysvitali/carshare-anon/anonapi"
)

// EarthRadius in meters.
const EarthRadius = 6371e3

func toRadians(deg float64) float64 {
	return deg * math.Pi / 180
}

func toDegrees(rad float64) float64 {
	return rad * 180 / math.Pi
}

// DistanceMeters returns the great-circle distance between two points using the
// spherical law of cosines, rounded to the nearest meter.
func DistanceMeters(lat1, lon1, lat2, lon2 float64) int {
	latRad1 := toRadians(lat1)
	latRad2 := toRadians(lat2)
	lonDiffRad := toRadians(lon2 - lon1)

	cosAngle := math.Sin(latRad1)*math.Sin(latRad2) + math.Cos(latRad1)*math.Cos(latRad2)*math.Cos(lonDiffRad)
	// Rounding can push identical or antipodal points just outside acos' domain
	cosAngle = math.Max(-1, math.Min(1, cosAngle))

	return int(math.Round(math.Acos(cosAngle) * EarthRadius))
}

// Annotate sets the vehicle's distance from ref and returns the same vehicle.
func Annotate(v *anonapi.AvailableVehicle, ref anonapi.Position) *anonapi.AvailableVehicle {
	pos := v.Location.Position
	d := DistanceMeters(pos.Lat, pos.Lon, ref.Lat, ref.Lon)
	v.Distance = &d
	return v
}

func AnnotateAll(vehicles []anonapi.AvailableVehicle, ref anonapi.Position) {
	for i := range vehicles {
		Annotate(&vehicles[i], ref)
	}
}

// SortByDistance sorts vehicles in place, nearest first. The sort is stable.
// A vehicle without a distance compares equal to every other vehicle.
func SortByDistance(vehicles []anonapi.AvailableVehicle) {
	slices.SortStableFunc(vehicles, func(a, b anonapi.AvailableVehicle) int {
		if a.Distance == nil || b.Distance == nil {
			return 0
		}
		return *a.Distance - *b.Distance
	})
}

// Nearest returns the first n vehicles of an already sorted slice.
func Nearest(vehicles []anonapi.AvailableVehicle, n int) []anonapi.AvailableVehicle {
	if n < 0 {
		n = 0
	}
	if n > len(vehicles) {
		n = len(vehicles)
	}
	return vehicles[:n]
}

// Bearing returns the initial bearing in degrees from one position to another.
func Bearing(from, to anonapi.Position) float64 {
	return geo.NewPoint(from.Lat, from.Lon).BearingTo(geo.NewPoint(to.Lat, to.Lon))
}

var compassPoints = []string{"N", "NE", "E", "SE", "S", "SW", "W", "NW"}

// Compass turns a bearing into one of eight compass points.
func Compass(bearing float64) string {
	normalized := math.Mod(bearing+360, 360)
	return compassPoints[int(math.Round(normalized/45))%len(compassPoints)]
}

// Box is a latitude/longitude bounding rectangle.
type Box struct {
	Min anonapi.Position
	Max anonapi.Position
}

// BoundingBox returns a box enclosing the circle of radiusMeters around center.
// A circle reaching a pole spans every longitude.
func BoundingBox(center anonapi.Position, radiusMeters float64) Box {
	p := geo.NewPoint(center.Lat, center.Lon)
	km := radiusMeters / 1000
	north := p.PointAtDistanceAndBearing(km, 0)
	south := p.PointAtDistanceAndBearing(km, 180)
	box := Box{
		Min: anonapi.Position{Lat: south.Lat(), Lon: -180},
		Max: anonapi.Position{Lat: north.Lat(), Lon: 180},
	}

	angular := radiusMeters / EarthRadius
	span := toDegrees(angular)
	switch {
	case center.Lat+span >= 90:
		box.Max.Lat = 90
		return box
	case center.Lat-span <= -90:
		box.Min.Lat = -90
		return box
	}

	// The widest longitude is reached north or south of the center
	// latitude, not due east and west.
	dLon := toDegrees(math.Asin(math.Sin(angular) / math.Cos(toRadians(center.Lat))))
	box.Min.Lon = center.Lon - dLon
	box.Max.Lon = center.Lon + dLon
	return box
}
