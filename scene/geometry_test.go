package scene

import (
	"math"
	"testing"
)

func approxEqual(a, b, tol float64) bool {
	return math.Abs(a-b) <= tol
}

// ---------------------------------------------------------------------------
// ComputeBounds
// ---------------------------------------------------------------------------

func TestComputeBounds_Empty(t *testing.T) {
	_, ok := ComputeBounds(nil)
	if ok {
		t.Error("empty point set should report ok=false")
	}
}

func TestComputeBounds_SinglePoint(t *testing.T) {
	region, ok := ComputeBounds([]GeoPoint{{Lat: 52.52, Lng: 13.405}})
	if !ok {
		t.Fatal("single point should report ok=true")
	}
	if region.MinLat != 52.52 || region.MaxLat != 52.52 {
		t.Errorf("lat bounds = [%g,%g], want [52.52,52.52]", region.MinLat, region.MaxLat)
	}
	if region.West != 13.405 || region.East != 13.405 {
		t.Errorf("lng bounds = [%g,%g], want [13.405,13.405]", region.West, region.East)
	}
	if region.CrossesAntimeridian() {
		t.Error("degenerate region should not wrap")
	}
}

func TestComputeBounds_Simple(t *testing.T) {
	region, ok := ComputeBounds([]GeoPoint{
		{Lat: 10, Lng: -10},
		{Lat: 20, Lng: 10},
		{Lat: 15, Lng: 0},
	})
	if !ok {
		t.Fatal("ok=false")
	}
	if region.MinLat != 10 || region.MaxLat != 20 {
		t.Errorf("lat bounds = [%g,%g], want [10,20]", region.MinLat, region.MaxLat)
	}
	if region.West != -10 || region.East != 10 {
		t.Errorf("lng bounds = [%g,%g], want [-10,10]", region.West, region.East)
	}
	if region.CrossesAntimeridian() {
		t.Error("region should not wrap")
	}
	if region.WidthDeg() != 20 {
		t.Errorf("WidthDeg = %g, want 20", region.WidthDeg())
	}
}

func TestComputeBounds_Antimeridian(t *testing.T) {
	// Points at 170°E and 170°W: the smallest box is 20° wide across the
	// antimeridian, not the 340° complement.
	region, ok := ComputeBounds([]GeoPoint{
		{Lat: 10, Lng: 170},
		{Lat: 20, Lng: -170},
	})
	if !ok {
		t.Fatal("ok=false")
	}
	if !region.CrossesAntimeridian() {
		t.Fatal("region should wrap the antimeridian")
	}
	if region.West != 170 || region.East != -170 {
		t.Errorf("lng bounds = [%g,%g], want [170,-170]", region.West, region.East)
	}
	if region.WidthDeg() != 20 {
		t.Errorf("WidthDeg = %g, want 20", region.WidthDeg())
	}

	center := region.Center()
	if center.Lng != 180 && center.Lng != -180 {
		t.Errorf("center lng = %g, want ±180", center.Lng)
	}
	if !region.Contains(GeoPoint{Lat: 15, Lng: 175}) {
		t.Error("region should contain (15, 175)")
	}
	if !region.Contains(GeoPoint{Lat: 15, Lng: -175}) {
		t.Error("region should contain (15, -175)")
	}
	if region.Contains(GeoPoint{Lat: 15, Lng: 0}) {
		t.Error("region should not contain (15, 0)")
	}
}

func TestComputeBounds_SeamGapWins(t *testing.T) {
	// The gap across the seam (340°) is the largest, so the plain box wins.
	region, ok := ComputeBounds([]GeoPoint{
		{Lat: 0, Lng: -10},
		{Lat: 0, Lng: 10},
	})
	if !ok {
		t.Fatal("ok=false")
	}
	if region.CrossesAntimeridian() {
		t.Error("region should not wrap")
	}
	if region.West != -10 || region.East != 10 {
		t.Errorf("lng bounds = [%g,%g], want [-10,10]", region.West, region.East)
	}
}

func TestComputeBounds_ContainsAllInputs(t *testing.T) {
	points := []GeoPoint{
		{Lat: -33.86, Lng: 151.21}, // Sydney
		{Lat: 37.77, Lng: -122.42}, // San Francisco
		{Lat: 21.31, Lng: -157.86}, // Honolulu
		{Lat: 35.68, Lng: 139.69},  // Tokyo
	}
	region, ok := ComputeBounds(points)
	if !ok {
		t.Fatal("ok=false")
	}
	for _, p := range points {
		if !region.Contains(p) {
			t.Errorf("region does not contain input point (%g, %g)", p.Lat, p.Lng)
		}
	}
	// Pacific-centered cluster: wrapping box (width < 180°) beats the
	// plain box spanning nearly the whole globe.
	if !region.CrossesAntimeridian() {
		t.Error("Pacific cluster should produce a wrapping region")
	}
	if region.WidthDeg() >= 180 {
		t.Errorf("WidthDeg = %g, want < 180", region.WidthDeg())
	}
}

func TestBoundingRegion_Bound(t *testing.T) {
	region := BoundingRegion{MinLat: 10, MaxLat: 20, West: 170, East: -170}
	b := region.Bound()
	if b.Min[0] != 170 || b.Max[0] != 190 {
		t.Errorf("bound lng = [%g,%g], want [170,190]", b.Min[0], b.Max[0])
	}
	if b.Min[1] != 10 || b.Max[1] != 20 {
		t.Errorf("bound lat = [%g,%g], want [10,20]", b.Min[1], b.Max[1])
	}
}

// ---------------------------------------------------------------------------
// ComputeCameraPose
// ---------------------------------------------------------------------------

func TestComputeCameraPose_SinglePoint(t *testing.T) {
	region, _ := ComputeBounds([]GeoPoint{{Lat: 52.52, Lng: 13.405}})
	tuning := DefaultFraming()

	pose := ComputeCameraPose(region, Padding{}, ViewModeFlat, tuning)
	if pose.Range != tuning.CloseUpRangeMeters {
		t.Errorf("Range = %g, want close-up default %g", pose.Range, tuning.CloseUpRangeMeters)
	}
	if pose.Center.Lat != 52.52 || pose.Center.Lng != 13.405 {
		t.Errorf("Center = (%g,%g), want the point itself", pose.Center.Lat, pose.Center.Lng)
	}
	if pose.Tilt != 0 {
		t.Errorf("flat mode Tilt = %g, want 0", pose.Tilt)
	}
}

func TestComputeCameraPose_RangeFromSpan(t *testing.T) {
	// 0.1° of latitude at the equator, no padding.
	region := BoundingRegion{MinLat: 0, MaxLat: 0.1, West: 0, East: 0}
	tuning := DefaultFraming()

	pose := ComputeCameraPose(region, Padding{}, ViewModeFlat, tuning)
	want := (0.1 * metersPerDegLat) / (2 * math.Tan(halfFOVDeg*math.Pi/180))
	if !approxEqual(pose.Range, want, 0.5) {
		t.Errorf("Range = %g, want %g", pose.Range, want)
	}
}

func TestComputeCameraPose_PaddingInflatesRange(t *testing.T) {
	region := BoundingRegion{MinLat: 0, MaxLat: 0.1, West: 0, East: 0}
	tuning := DefaultFraming()

	base := ComputeCameraPose(region, Padding{}, ViewModeFlat, tuning)
	padded := ComputeCameraPose(region, Padding{Bottom: 0.5}, ViewModeFlat, tuning)

	// Half the viewport occluded vertically doubles the required range.
	if !approxEqual(padded.Range, 2*base.Range, 1.0) {
		t.Errorf("padded Range = %g, want %g", padded.Range, 2*base.Range)
	}
}

func TestComputeCameraPose_ExtremePaddingClamped(t *testing.T) {
	region := BoundingRegion{MinLat: 0, MaxLat: 0.1, West: 0, East: 0}
	tuning := DefaultFraming()

	pose := ComputeCameraPose(region, Padding{Top: 0.5, Bottom: 0.49}, ViewModeFlat, tuning)
	// Effective viewport clamps at minEffectiveViewport, not 0.01.
	max := ComputeCameraPose(region, Padding{Top: 0.9, Bottom: 0.05}, ViewModeFlat, tuning)
	if pose.Range > max.Range+0.5 {
		t.Errorf("Range = %g exceeds the clamp bound %g", pose.Range, max.Range)
	}
	if math.IsInf(pose.Range, 0) || math.IsNaN(pose.Range) {
		t.Errorf("Range = %g, want finite", pose.Range)
	}
}

func TestComputeCameraPose_MinimumRangeFloor(t *testing.T) {
	// ~2 meters of extent: above the framable threshold, but the derived
	// range would be below the hard floor.
	region := BoundingRegion{MinLat: 0, MaxLat: 2.0 / metersPerDegLat, West: 0, East: 0}
	tuning := DefaultFraming()

	pose := ComputeCameraPose(region, Padding{}, ViewModeFlat, tuning)
	if pose.Range != minCameraRange {
		t.Errorf("Range = %g, want floor %g", pose.Range, minCameraRange)
	}
}

func TestComputeCameraPose_Tilt(t *testing.T) {
	tuning := DefaultFraming()

	t.Run("close span uses steep tilt", func(t *testing.T) {
		region := BoundingRegion{MinLat: 0, MaxLat: 1000 / metersPerDegLat, West: 0, East: 0}
		pose := ComputeCameraPose(region, Padding{}, ViewModePerspective, tuning)
		if pose.Tilt != tuning.CloseTiltDeg {
			t.Errorf("Tilt = %g, want %g", pose.Tilt, tuning.CloseTiltDeg)
		}
	})

	t.Run("wide span uses shallow tilt", func(t *testing.T) {
		region := BoundingRegion{MinLat: 0, MaxLat: 1, West: 0, East: 0} // ~111km
		pose := ComputeCameraPose(region, Padding{}, ViewModePerspective, tuning)
		if pose.Tilt != tuning.WideTiltDeg {
			t.Errorf("Tilt = %g, want %g", pose.Tilt, tuning.WideTiltDeg)
		}
	})

	t.Run("midpoint interpolates", func(t *testing.T) {
		mid := (tuning.CloseSpanMeters + tuning.WideSpanKm*1000) / 2
		region := BoundingRegion{MinLat: 0, MaxLat: mid / metersPerDegLat, West: 0, East: 0}
		pose := ComputeCameraPose(region, Padding{}, ViewModePerspective, tuning)
		want := (tuning.CloseTiltDeg + tuning.WideTiltDeg) / 2
		if !approxEqual(pose.Tilt, want, 0.01) {
			t.Errorf("Tilt = %g, want %g", pose.Tilt, want)
		}
	})

	t.Run("flat mode has no tilt", func(t *testing.T) {
		region := BoundingRegion{MinLat: 0, MaxLat: 1, West: 0, East: 0}
		pose := ComputeCameraPose(region, Padding{}, ViewModeFlat, tuning)
		if pose.Tilt != 0 {
			t.Errorf("Tilt = %g, want 0", pose.Tilt)
		}
	})
}

func TestComputeCameraPose_Deterministic(t *testing.T) {
	region := BoundingRegion{MinLat: 10, MaxLat: 20, West: 170, East: -170}
	tuning := DefaultFraming()
	pad := Padding{Top: 0.1, Left: 0.2}

	a := ComputeCameraPose(region, pad, ViewModePerspective, tuning)
	b := ComputeCameraPose(region, pad, ViewModePerspective, tuning)
	if a != b {
		t.Errorf("same inputs produced different poses: %+v vs %+v", a, b)
	}
}
