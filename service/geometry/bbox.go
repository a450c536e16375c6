package geometry

import (
	"fmt"

	"github.com/go-spatial/geom"
)

// BoundingBox is a latitude/longitude rectangle, in degrees.
// It does not handle boxes crossing the antimeridian.
type BoundingBox struct {
	extent geom.Extent
}

// NewBoundingBox creates a BoundingBox from its four bounds
func NewBoundingBox(north, south, east, west float64) BoundingBox {
	return BoundingBox{extent: geom.Extent{west, south, east, north}}
}

func (b BoundingBox) North() float64 { return b.extent.MaxY() }
func (b BoundingBox) South() float64 { return b.extent.MinY() }
func (b BoundingBox) East() float64  { return b.extent.MaxX() }
func (b BoundingBox) West() float64  { return b.extent.MinX() }

// Extent returns the box as a geom.Extent (minx=west, miny=south, maxx=east, maxy=north)
func (b BoundingBox) Extent() geom.Extent {
	return b.extent
}

// Validate checks that the bounds are ordered and within the lat/long ranges
func (b BoundingBox) Validate() error {
	switch {
	case b.South() > b.North():
		return fmt.Errorf("south (%g) is greater than north (%g)", b.South(), b.North())
	case b.West() > b.East():
		return fmt.Errorf("west (%g) is greater than east (%g)", b.West(), b.East())
	case b.South() < -90 || b.North() > 90:
		return fmt.Errorf("latitudes must be in [-90, 90]")
	case b.West() < -180 || b.East() > 180:
		return fmt.Errorf("longitudes must be in [-180, 180]")
	}
	return nil
}

// Overlaps returns true if the footprint bounded by north/south/east/west intersects the box.
// Touching edges count as an overlap. geom.Extent.Intersect is not used: it reports no
// intersection for touching edges or for a degenerate (zero-width) footprint.
func (b BoundingBox) Overlaps(north, south, east, west float64) bool {
	return south <= b.North() &&
		north >= b.South() &&
		west <= b.East() &&
		east >= b.West()
}

func (b BoundingBox) String() string {
	return fmt.Sprintf("N%g S%g E%g W%g", b.North(), b.South(), b.East(), b.West())
}
