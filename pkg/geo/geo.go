// Package geo converts between geographic and planar coordinates.
//
// Geographic positions use orb's [lng, lat] point order, matching GeoJSON.
// Planar positions are meters in the projection's coordinate system; only
// local distances within a snap tolerance are ever compared, so any
// conformal projection near the area of interest is adequate.
package geo

import (
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geo"
	"github.com/paulmach/orb/project"
)

// Projector maps geographic points to planar meters and back.
type Projector interface {
	// Project converts a [lng, lat] point to planar coordinates.
	Project(p orb.Point) orb.Point
	// Unproject converts planar coordinates back to a [lng, lat] point.
	Unproject(p orb.Point) orb.Point
}

// WebMercator is the spherical pseudo-Mercator projection (EPSG:3857) used
// by web maps.
type WebMercator struct{}

// Project implements Projector.
func (WebMercator) Project(p orb.Point) orb.Point { return project.WGS84.ToMercator(p) }

// Unproject implements Projector.
func (WebMercator) Unproject(p orb.Point) orb.Point { return project.Mercator.ToWGS84(p) }

// Identity treats coordinates as already projected. Useful for data that
// was prepared in a metric CRS and for tests.
type Identity struct{}

// Project implements Projector.
func (Identity) Project(p orb.Point) orb.Point { return p }

// Unproject implements Projector.
func (Identity) Unproject(p orb.Point) orb.Point { return p }

// Point builds an orb point from latitude and longitude.
func Point(lat, lng float64) orb.Point { return orb.Point{lng, lat} }

// Length returns the great-circle distance in meters between two
// geographic points.
func Length(a, b orb.Point) float64 {
	return geo.DistanceHaversine(a, b)
}

var (
	_ Projector = WebMercator{}
	_ Projector = Identity{}
)
