package scene

import (
	"math"
	"sort"

	"github.com/paulmach/orb"
)

const (
	metersPerDegLat = 111320.0

	// minEffectiveViewport keeps the framing math sane when UI panels
	// occlude nearly the whole viewport.
	minEffectiveViewport = 0.05

	// minFramableSpan is the extent below which a region is treated as a
	// single point and framed with the close-up default range.
	minFramableSpan = 1.0 // meters

	// halfFOVDeg is the assumed half field-of-view of the camera used to
	// translate a ground span into a viewing range.
	halfFOVDeg = 30.0

	// minCameraRange is a hard floor so nearly-coincident points never
	// produce a degenerate zero-distance camera.
	minCameraRange = 30.0 // meters
)

// BoundingRegion is the smallest lat/lng rectangle containing a point set.
// West may be numerically greater than East, which means the region spans the
// antimeridian.
type BoundingRegion struct {
	MinLat float64
	MaxLat float64
	West   float64
	East   float64
}

// CrossesAntimeridian reports whether the region wraps across ±180°.
func (r BoundingRegion) CrossesAntimeridian() bool {
	return r.West > r.East
}

// WidthDeg returns the longitudinal extent in degrees, wrap-aware.
func (r BoundingRegion) WidthDeg() float64 {
	if r.CrossesAntimeridian() {
		return r.East - r.West + 360
	}
	return r.East - r.West
}

// HeightDeg returns the latitudinal extent in degrees.
func (r BoundingRegion) HeightDeg() float64 {
	return r.MaxLat - r.MinLat
}

// Center returns the midpoint of the region, wrap-aware in longitude.
func (r BoundingRegion) Center() GeoPoint {
	lng := r.West + r.WidthDeg()/2
	if lng > 180 {
		lng -= 360
	}
	return GeoPoint{Lat: (r.MinLat + r.MaxLat) / 2, Lng: lng}
}

// Contains reports whether the point lies inside the region.
func (r BoundingRegion) Contains(p GeoPoint) bool {
	if p.Lat < r.MinLat || p.Lat > r.MaxLat {
		return false
	}
	if r.CrossesAntimeridian() {
		return p.Lng >= r.West || p.Lng <= r.East
	}
	return p.Lng >= r.West && p.Lng <= r.East
}

// Bound converts the region to an orb.Bound. A wrapping region is expressed
// with an East beyond +180, which is how orb callers conventionally unwrap.
func (r BoundingRegion) Bound() orb.Bound {
	east := r.East
	if r.CrossesAntimeridian() {
		east += 360
	}
	return orb.Bound{
		Min: orb.Point{r.West, r.MinLat},
		Max: orb.Point{east, r.MaxLat},
	}
}

// ComputeBounds returns the smallest axis-aligned lat/lng rectangle
// containing all points, and false when the set is empty.
//
// Longitude is circular, so "smallest" needs care near ±180°: among all gaps
// between adjacent longitudes (sorted), the single largest gap is chosen as
// the outside of the box. For points at 170° and -170° that yields a 20°
// region spanning the antimeridian, not the 340° complement.
func ComputeBounds(points []GeoPoint) (BoundingRegion, bool) {
	if len(points) == 0 {
		return BoundingRegion{}, false
	}

	region := BoundingRegion{MinLat: 90, MaxLat: -90}
	lngs := make([]float64, 0, len(points))
	for _, p := range points {
		if p.Lat < region.MinLat {
			region.MinLat = p.Lat
		}
		if p.Lat > region.MaxLat {
			region.MaxLat = p.Lat
		}
		lngs = append(lngs, p.Lng)
	}
	sort.Float64s(lngs)

	if len(lngs) == 1 {
		region.West = lngs[0]
		region.East = lngs[0]
		return region, true
	}

	// Find the largest gap between adjacent longitudes. The seam gap (from
	// the largest longitude east across the antimeridian to the smallest)
	// competes on equal footing.
	gapStart := len(lngs) - 1 // index before the seam gap
	maxGap := lngs[0] + 360 - lngs[len(lngs)-1]
	for i := 0; i < len(lngs)-1; i++ {
		if gap := lngs[i+1] - lngs[i]; gap > maxGap {
			maxGap = gap
			gapStart = i
		}
	}

	if gapStart == len(lngs)-1 {
		// The seam gap is the outside: a plain -180..180 box is smallest.
		region.West = lngs[0]
		region.East = lngs[len(lngs)-1]
	} else {
		// An interior gap is the outside: the box wraps the antimeridian.
		region.West = lngs[gapStart+1]
		region.East = lngs[gapStart]
	}
	return region, true
}

// ComputeCameraPose derives a camera pose that fits the region inside the
// un-occluded portion of the viewport. Pure function: same inputs, same pose.
//
// The region's metric extent is inflated by the inverse of the effective
// viewport fraction (1-left-right, 1-top-bottom) so content lands in the
// visible strip rather than under UI panels. A degenerate region (single
// point) gets the tuned close-up range instead of a division by zero.
func ComputeCameraPose(region BoundingRegion, pad Padding, mode ViewMode, tuning FramingConfig) CameraPose {
	center := region.Center()

	effW := 1 - pad.Left - pad.Right
	effH := 1 - pad.Top - pad.Bottom
	if effW < minEffectiveViewport {
		effW = minEffectiveViewport
	}
	if effH < minEffectiveViewport {
		effH = minEffectiveViewport
	}

	widthM := region.WidthDeg() * metersPerDegLat * math.Cos(center.Lat*math.Pi/180)
	heightM := region.HeightDeg() * metersPerDegLat
	span := math.Max(widthM/effW, heightM/effH)

	pose := CameraPose{Center: center, Heading: 0, Roll: 0}
	if span < minFramableSpan {
		span = 0
		pose.Range = tuning.CloseUpRangeMeters
	} else {
		pose.Range = span / (2 * math.Tan(halfFOVDeg*math.Pi/180))
		if pose.Range < minCameraRange {
			pose.Range = minCameraRange
		}
	}

	if mode == ViewModePerspective {
		pose.Tilt = tiltForSpan(span, tuning)
	}
	return pose
}

// tiltForSpan picks a camera tilt from the ground span: steep for close
// single-entity framing, shallow for wide regions, linear in between.
func tiltForSpan(span float64, tuning FramingConfig) float64 {
	wide := tuning.WideSpanKm * 1000
	switch {
	case span <= tuning.CloseSpanMeters:
		return tuning.CloseTiltDeg
	case span >= wide:
		return tuning.WideTiltDeg
	default:
		f := (span - tuning.CloseSpanMeters) / (wide - tuning.CloseSpanMeters)
		return tuning.CloseTiltDeg + f*(tuning.WideTiltDeg-tuning.CloseTiltDeg)
	}
}
