package scene

import "math"

// GeoPoint is a WGS84 coordinate. Altitude is meters above the ellipsoid and
// is optional (zero when absent).
type GeoPoint struct {
	Lat      float64 `json:"lat" yaml:"lat"`
	Lng      float64 `json:"lng" yaml:"lng"`
	Altitude float64 `json:"altitude,omitempty" yaml:"altitude,omitempty"`
}

// Valid reports whether the point is inside the WGS84 coordinate domain.
func (p GeoPoint) Valid() bool {
	return p.Lat >= -90 && p.Lat <= 90 && p.Lng >= -180 && p.Lng <= 180 &&
		!math.IsNaN(p.Lat) && !math.IsNaN(p.Lng)
}

// MarkerKind classifies a marker for styling purposes.
type MarkerKind string

const (
	KindPlace         MarkerKind = "place"
	KindRouteEndpoint MarkerKind = "route-endpoint"
	KindWaypoint      MarkerKind = "waypoint"
)

// Valid reports whether the kind is one of the known values. The empty kind
// is accepted and treated as KindPlace.
func (k MarkerKind) Valid() bool {
	switch k {
	case "", KindPlace, KindRouteEndpoint, KindWaypoint:
		return true
	}
	return false
}

// Marker is one declarative place entity in the scene. Markers are owned by
// the Store; the Controller holds only surface-native shadows keyed by ID.
type Marker struct {
	ID       string     `json:"id"`
	Position GeoPoint   `json:"position"`
	Label    string     `json:"label,omitempty"`
	Kind     MarkerKind `json:"kind,omitempty"`
}

// Route is an opaque polyline overlay. The scene frames routes; it never
// computes them.
type Route struct {
	ID   string     `json:"id"`
	Path []GeoPoint `json:"path"`
}

// ViewMode selects which camera model the framing math targets.
type ViewMode string

const (
	ViewModeFlat        ViewMode = "flat"
	ViewModePerspective ViewMode = "perspective"
)

// Valid reports whether the mode is a known value.
func (v ViewMode) Valid() bool {
	return v == ViewModeFlat || v == ViewModePerspective
}

// CameraPose fully describes a camera: where it looks, how far away it is,
// and its orientation. Range is meters from the center point.
type CameraPose struct {
	Center  GeoPoint `json:"center"`
	Range   float64  `json:"range"`
	Heading float64  `json:"heading"`
	Tilt    float64  `json:"tilt"`
	Roll    float64  `json:"roll"`
}

// Validate checks the pose invariants: positive range, valid center, tilt in
// [0,90]. Heading is normalized rather than rejected.
func (p CameraPose) Validate() error {
	if !p.Center.Valid() {
		return &ValidationError{Field: "center", Reason: "lat/lng out of range"}
	}
	if p.Range <= 0 || math.IsNaN(p.Range) || math.IsInf(p.Range, 0) {
		return &ValidationError{Field: "range", Reason: "must be > 0"}
	}
	if p.Tilt < 0 || p.Tilt > 90 {
		return &ValidationError{Field: "tilt", Reason: "must be within [0,90]"}
	}
	return nil
}

// Normalized returns a copy with heading wrapped into [0,360).
func (p CameraPose) Normalized() CameraPose {
	p.Heading = NormalizeHeading(p.Heading)
	return p
}

// NormalizeHeading wraps a heading in degrees into [0,360).
func NormalizeHeading(deg float64) float64 {
	deg = math.Mod(deg, 360)
	if deg < 0 {
		deg += 360
	}
	return deg
}

// Padding is the fraction of each viewport edge occluded by non-map UI.
// Each component is in [0,1); the framing math treats the occluded strips as
// unusable space.
type Padding struct {
	Top    float64 `json:"top"`
	Right  float64 `json:"right"`
	Bottom float64 `json:"bottom"`
	Left   float64 `json:"left"`
}

// Validate checks each component is a fraction in [0,1).
func (p Padding) Validate() error {
	for _, v := range []float64{p.Top, p.Right, p.Bottom, p.Left} {
		if v < 0 || v >= 1 || math.IsNaN(v) {
			return &ValidationError{Field: "padding", Reason: "each edge must be within [0,1)"}
		}
	}
	return nil
}

// SceneState is the full declarative description of what should be visible.
// Markers keep insertion order (ties in z-order resolve by position in the
// slice). CameraTarget is a one-shot request: the camera-target bridge
// consumes it and clears it back to nil.
type SceneState struct {
	Markers          []Marker    `json:"markers"`
	Routes           []Route     `json:"routes,omitempty"`
	CameraTarget     *CameraPose `json:"cameraTarget,omitempty"`
	PreventAutoFrame bool        `json:"preventAutoFrame"`
	ViewMode         ViewMode    `json:"viewMode"`
}

// clone deep-copies the state so snapshots handed to subscribers cannot alias
// store internals.
func (s SceneState) clone() SceneState {
	out := s
	if s.Markers != nil {
		out.Markers = make([]Marker, len(s.Markers))
		copy(out.Markers, s.Markers)
	}
	if s.Routes != nil {
		out.Routes = make([]Route, len(s.Routes))
		for i, r := range s.Routes {
			rc := r
			rc.Path = make([]GeoPoint, len(r.Path))
			copy(rc.Path, r.Path)
			out.Routes[i] = rc
		}
	}
	if s.CameraTarget != nil {
		t := *s.CameraTarget
		out.CameraTarget = &t
	}
	return out
}

// Points returns every geographic point in the scene: marker positions plus
// all route vertices. This is the input set for auto-framing.
func (s SceneState) Points() []GeoPoint {
	pts := make([]GeoPoint, 0, len(s.Markers))
	for _, m := range s.Markers {
		pts = append(pts, m.Position)
	}
	for _, r := range s.Routes {
		pts = append(pts, r.Path...)
	}
	return pts
}

// Config is the full service configuration file.
type Config struct {
	MQTT    MQTTConfig    `yaml:"mqtt,omitempty" json:"mqtt,omitempty"`
	HTTP    HTTPConfig    `yaml:"http,omitempty" json:"http,omitempty"`
	Surface SurfaceConfig `yaml:"surface,omitempty" json:"surface,omitempty"`
	Framing FramingConfig `yaml:"framing,omitempty" json:"framing,omitempty"`
}

// MQTTConfig holds MQTT connection settings. An empty broker disables MQTT.
type MQTTConfig struct {
	Broker        string `yaml:"broker,omitempty" json:"broker,omitempty"`
	CommandPrefix string `yaml:"commandPrefix,omitempty" json:"commandPrefix,omitempty"`
	PublishPrefix string `yaml:"publishPrefix,omitempty" json:"publishPrefix,omitempty"`
	ClientID      string `yaml:"clientId,omitempty" json:"clientId,omitempty"`
	Username      string `yaml:"username,omitempty" json:"username,omitempty"`
	Password      string `yaml:"password,omitempty" json:"password,omitempty"`
}

// HTTPConfig holds HTTP server settings.
type HTTPConfig struct {
	Port int `yaml:"port,omitempty" json:"port,omitempty"`
}

// SurfaceConfig sizes the built-in flat rendering surface.
type SurfaceConfig struct {
	WidthPx  int      `yaml:"widthPx,omitempty" json:"widthPx,omitempty"`
	HeightPx int      `yaml:"heightPx,omitempty" json:"heightPx,omitempty"`
	Mode     ViewMode `yaml:"mode,omitempty" json:"mode,omitempty"`
}

// FramingConfig carries the tunable constants of the camera-framing math.
// The thresholds are conventions, not contracts; adjust per deployment.
type FramingConfig struct {
	CloseUpRangeMeters float64 `yaml:"closeUpRangeMeters,omitempty" json:"closeUpRangeMeters,omitempty"`
	CloseSpanMeters    float64 `yaml:"closeSpanMeters,omitempty" json:"closeSpanMeters,omitempty"`
	WideSpanKm         float64 `yaml:"wideSpanKm,omitempty" json:"wideSpanKm,omitempty"`
	CloseTiltDeg       float64 `yaml:"closeTiltDeg,omitempty" json:"closeTiltDeg,omitempty"`
	WideTiltDeg        float64 `yaml:"wideTiltDeg,omitempty" json:"wideTiltDeg,omitempty"`
}

// DefaultFraming returns the stock tuning constants.
func DefaultFraming() FramingConfig {
	return FramingConfig{
		CloseUpRangeMeters: 1200,
		CloseSpanMeters:    2000,
		WideSpanKm:         50,
		CloseTiltDeg:       60,
		WideTiltDeg:        30,
	}
}

// ApplyDefaults fills zero-valued fields with working defaults.
func (c *Config) ApplyDefaults() {
	if c.MQTT.CommandPrefix == "" {
		c.MQTT.CommandPrefix = "geoscene"
	}
	if c.MQTT.PublishPrefix == "" {
		c.MQTT.PublishPrefix = "geoscene"
	}
	if c.HTTP.Port == 0 {
		c.HTTP.Port = 8080
	}
	if c.Surface.WidthPx == 0 {
		c.Surface.WidthPx = 1280
	}
	if c.Surface.HeightPx == 0 {
		c.Surface.HeightPx = 800
	}
	if c.Surface.Mode == "" {
		c.Surface.Mode = ViewModeFlat
	}
	def := DefaultFraming()
	if c.Framing.CloseUpRangeMeters == 0 {
		c.Framing.CloseUpRangeMeters = def.CloseUpRangeMeters
	}
	if c.Framing.CloseSpanMeters == 0 {
		c.Framing.CloseSpanMeters = def.CloseSpanMeters
	}
	if c.Framing.WideSpanKm == 0 {
		c.Framing.WideSpanKm = def.WideSpanKm
	}
	if c.Framing.CloseTiltDeg == 0 {
		c.Framing.CloseTiltDeg = def.CloseTiltDeg
	}
	if c.Framing.WideTiltDeg == 0 {
		c.Framing.WideTiltDeg = def.WideTiltDeg
	}
}
