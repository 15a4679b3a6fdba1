package scene

import (
	"encoding/json"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
)

// ToGeoJSON converts the scene into a GeoJSON feature collection: one Point
// feature per marker, one LineString feature per route. Altitude rides along
// as a property rather than a third coordinate.
func ToGeoJSON(s SceneState) *geojson.FeatureCollection {
	fc := geojson.NewFeatureCollection()

	for _, m := range s.Markers {
		f := geojson.NewFeature(orb.Point{m.Position.Lng, m.Position.Lat})
		f.ID = m.ID
		f.Properties["id"] = m.ID
		f.Properties["kind"] = string(m.Kind)
		if m.Label != "" {
			f.Properties["label"] = m.Label
		}
		if m.Position.Altitude != 0 {
			f.Properties["altitude"] = m.Position.Altitude
		}
		fc.Append(f)
	}

	for _, r := range s.Routes {
		ls := make(orb.LineString, len(r.Path))
		for i, p := range r.Path {
			ls[i] = orb.Point{p.Lng, p.Lat}
		}
		f := geojson.NewFeature(ls)
		f.ID = r.ID
		f.Properties["id"] = r.ID
		f.Properties["kind"] = "route"
		fc.Append(f)
	}

	return fc
}

// MarshalGeoJSON renders the scene as a GeoJSON document.
func MarshalGeoJSON(s SceneState) ([]byte, error) {
	return json.Marshal(ToGeoJSON(s))
}
