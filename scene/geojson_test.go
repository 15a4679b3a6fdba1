package scene

import (
	"encoding/json"
	"testing"

	"github.com/paulmach/orb"
)

func TestToGeoJSON(t *testing.T) {
	s := SceneState{
		Markers: []Marker{
			{ID: "m1", Position: GeoPoint{Lat: 10, Lng: 20, Altitude: 35}, Label: "Home", Kind: KindPlace},
			{ID: "m2", Position: GeoPoint{Lat: 11, Lng: 21}, Kind: KindWaypoint},
		},
		Routes: []Route{
			{ID: "r1", Path: []GeoPoint{{Lat: 0, Lng: 0}, {Lat: 1, Lng: 1}, {Lat: 2, Lng: 2}}},
		},
	}

	fc := ToGeoJSON(s)
	if len(fc.Features) != 3 {
		t.Fatalf("features = %d, want 3", len(fc.Features))
	}

	pt, ok := fc.Features[0].Geometry.(orb.Point)
	if !ok {
		t.Fatalf("feature 0 geometry = %T, want orb.Point", fc.Features[0].Geometry)
	}
	if pt[0] != 20 || pt[1] != 10 {
		t.Errorf("point = %v, want [20 10] (lng,lat order)", pt)
	}
	if fc.Features[0].Properties["label"] != "Home" {
		t.Errorf("label property = %v", fc.Features[0].Properties["label"])
	}
	if fc.Features[0].Properties["kind"] != "place" {
		t.Errorf("kind property = %v", fc.Features[0].Properties["kind"])
	}
	if fc.Features[0].Properties["altitude"] != 35.0 {
		t.Errorf("altitude property = %v", fc.Features[0].Properties["altitude"])
	}

	if _, ok := fc.Features[1].Properties["label"]; ok {
		t.Error("unlabeled marker should have no label property")
	}

	ls, ok := fc.Features[2].Geometry.(orb.LineString)
	if !ok {
		t.Fatalf("feature 2 geometry = %T, want orb.LineString", fc.Features[2].Geometry)
	}
	if len(ls) != 3 {
		t.Errorf("line string points = %d, want 3", len(ls))
	}
	if fc.Features[2].Properties["kind"] != "route" {
		t.Errorf("route kind property = %v", fc.Features[2].Properties["kind"])
	}
}

func TestMarshalGeoJSON(t *testing.T) {
	s := SceneState{Markers: []Marker{{ID: "a", Position: GeoPoint{Lat: 1, Lng: 2}}}}
	data, err := MarshalGeoJSON(s)
	if err != nil {
		t.Fatalf("MarshalGeoJSON: %v", err)
	}

	var doc map[string]interface{}
	if err := json.Unmarshal(data, &doc); err != nil {
		t.Fatalf("output is not valid JSON: %v", err)
	}
	if doc["type"] != "FeatureCollection" {
		t.Errorf("type = %v, want FeatureCollection", doc["type"])
	}
}

func TestToGeoJSON_Empty(t *testing.T) {
	fc := ToGeoJSON(SceneState{})
	if len(fc.Features) != 0 {
		t.Errorf("features = %d, want 0", len(fc.Features))
	}
	if _, err := MarshalGeoJSON(SceneState{}); err != nil {
		t.Errorf("MarshalGeoJSON(empty): %v", err)
	}
}
