package proximity

import (
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/planar"

	"github.com/denysvitali/carshare-anon/anonapi"
)

// InHomezone reports whether pos lies inside any home zone polygon, i.e.
// whether a trip may end there.
func InHomezone(zones []anonapi.Homezone, pos anonapi.Position) bool {
	point := orb.Point{pos.Lon, pos.Lat}
	for _, z := range zones {
		if z.Zone == nil {
			continue
		}
		for _, f := range z.Zone.Features {
			switch g := f.Geometry.(type) {
			case orb.Polygon:
				if planar.PolygonContains(g, point) {
					return true
				}
			case orb.MultiPolygon:
				if planar.MultiPolygonContains(g, point) {
					return true
				}
			}
		}
	}
	return false
}
