package scene

import (
	"log"
	"strconv"
	"strings"
	"sync"
)

// Controller binds the declarative scene to exactly one rendering surface.
// It owns the surface-native shadows (id → handle) and translates store
// changes into imperative surface calls. Swapping surfaces means disposing
// the old controller and constructing a new one against the same store; two
// controllers never drive a surface concurrently.
type Controller struct {
	mu      sync.Mutex
	surface Surface
	tuning  FramingConfig
	logger  *log.Logger

	shadows      map[string]MarkerHandle
	known        map[string]Marker
	routeShadows map[string]RouteHandle
	knownRoutes  map[string]string // route id -> path fingerprint

	gen      uint64
	disposed bool
	onPose   func(CameraPose)
}

// NewController constructs a controller bound to the given surface. The
// logger receives per-entity surface failures; nil uses the default logger.
func NewController(surface Surface, tuning FramingConfig, logger *log.Logger) *Controller {
	if logger == nil {
		logger = log.Default()
	}
	c := &Controller{
		surface:      surface,
		tuning:       tuning,
		logger:       logger,
		shadows:      make(map[string]MarkerHandle),
		known:        make(map[string]Marker),
		routeShadows: make(map[string]RouteHandle),
		knownRoutes:  make(map[string]string),
	}
	surface.OnCameraChange(c.cameraCommitted)
	return c
}

// SetPoseListener registers a callback for camera poses the surface actually
// committed (superseded transitions are filtered out).
func (c *Controller) SetPoseListener(fn func(CameraPose)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onPose = fn
}

// cameraCommitted filters surface completion events: only the most recent
// generation counts, everything older was superseded mid-flight.
func (c *Controller) cameraCommitted(pose CameraPose, gen uint64) {
	c.mu.Lock()
	if c.disposed || gen != c.gen {
		c.mu.Unlock()
		return
	}
	fn := c.onPose
	c.mu.Unlock()

	if fn != nil {
		fn(pose)
	}
}

// ClearScene destroys every marker shadow and route overlay. Idempotent.
func (c *Controller) ClearScene() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.disposed {
		return
	}
	c.clearLocked()
}

func (c *Controller) clearLocked() {
	for id, h := range c.shadows {
		if err := c.surface.RemoveMarker(h); err != nil {
			c.logger.Printf("[SCENE] Warning: %v", &SurfaceOperationError{Op: "RemoveMarker", EntityID: id, Err: err})
		}
	}
	for id, h := range c.routeShadows {
		if err := c.surface.RemoveRoute(h); err != nil {
			c.logger.Printf("[SCENE] Warning: %v", &SurfaceOperationError{Op: "RemoveRoute", EntityID: id, Err: err})
		}
	}
	c.shadows = make(map[string]MarkerHandle)
	c.known = make(map[string]Marker)
	c.routeShadows = make(map[string]RouteHandle)
	c.knownRoutes = make(map[string]string)
}

// SyncMarkers reconciles marker shadows against the given list by id:
// creates for new ids, updates in place where data changed, removes ids no
// longer present. Ordered create, then update, then remove, so a batch never
// flickers through an empty surface. A failed surface call skips that one
// marker and logs it; the rest of the batch proceeds.
func (c *Controller) SyncMarkers(markers []Marker) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.disposed {
		return
	}

	// Create shadows for ids the surface has not seen yet.
	for _, m := range markers {
		if _, ok := c.shadows[m.ID]; ok {
			continue
		}
		h, err := c.surface.CreateMarker(m)
		if err != nil {
			c.logger.Printf("[SCENE] Warning: %v", &SurfaceOperationError{Op: "CreateMarker", EntityID: m.ID, Err: err})
			continue
		}
		c.shadows[m.ID] = h
		c.known[m.ID] = m
	}

	// Update existing shadows whose geometry or label changed.
	for _, m := range markers {
		h, ok := c.shadows[m.ID]
		if !ok || c.known[m.ID] == m {
			continue
		}
		if err := c.surface.UpdateMarker(h, m); err != nil {
			c.logger.Printf("[SCENE] Warning: %v", &SurfaceOperationError{Op: "UpdateMarker", EntityID: m.ID, Err: err})
			continue
		}
		c.known[m.ID] = m
	}

	// Remove shadows for ids that disappeared.
	keep := make(map[string]struct{}, len(markers))
	for _, m := range markers {
		keep[m.ID] = struct{}{}
	}
	for id, h := range c.shadows {
		if _, ok := keep[id]; ok {
			continue
		}
		if err := c.surface.RemoveMarker(h); err != nil {
			c.logger.Printf("[SCENE] Warning: %v", &SurfaceOperationError{Op: "RemoveMarker", EntityID: id, Err: err})
		}
		delete(c.shadows, id)
		delete(c.known, id)
	}
}

// SyncRoutes reconciles route overlays by id. Routes have no in-place update
// on most surfaces, so a changed path is redrawn.
func (c *Controller) SyncRoutes(routes []Route) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.disposed {
		return
	}

	keep := make(map[string]struct{}, len(routes))
	for _, r := range routes {
		keep[r.ID] = struct{}{}
		fp := routeFingerprint(r)
		if old, ok := c.routeShadows[r.ID]; ok {
			if c.knownRoutes[r.ID] == fp {
				continue
			}
			if err := c.surface.RemoveRoute(old); err != nil {
				c.logger.Printf("[SCENE] Warning: %v", &SurfaceOperationError{Op: "RemoveRoute", EntityID: r.ID, Err: err})
			}
			delete(c.routeShadows, r.ID)
			delete(c.knownRoutes, r.ID)
		}
		h, err := c.surface.DrawRoute(r)
		if err != nil {
			c.logger.Printf("[SCENE] Warning: %v", &SurfaceOperationError{Op: "DrawRoute", EntityID: r.ID, Err: err})
			continue
		}
		c.routeShadows[r.ID] = h
		c.knownRoutes[r.ID] = fp
	}

	for id, h := range c.routeShadows {
		if _, ok := keep[id]; ok {
			continue
		}
		if err := c.surface.RemoveRoute(h); err != nil {
			c.logger.Printf("[SCENE] Warning: %v", &SurfaceOperationError{Op: "RemoveRoute", EntityID: id, Err: err})
		}
		delete(c.routeShadows, id)
		delete(c.knownRoutes, id)
	}
}

// FrameEntities computes a camera pose that fits all points inside the
// un-occluded viewport and commands an animated transition to it. No-op for
// an empty point set. Re-entrant: a call issued before the previous
// transition completes supersedes it (last writer wins).
func (c *Controller) FrameEntities(points []GeoPoint, pad Padding, mode ViewMode) {
	c.mu.Lock()
	if c.disposed || len(points) == 0 {
		c.mu.Unlock()
		return
	}
	region, ok := ComputeBounds(points)
	if !ok {
		c.mu.Unlock()
		return
	}
	pose := ComputeCameraPose(region, pad, mode, c.tuning)
	c.gen++
	gen := c.gen
	surface := c.surface
	c.mu.Unlock()

	surface.SetCamera(pose, true, gen)
}

// FlyTo commands an animated transition directly to a fully specified pose,
// bypassing the framing computation.
func (c *Controller) FlyTo(pose CameraPose) {
	c.mu.Lock()
	if c.disposed {
		c.mu.Unlock()
		return
	}
	c.gen++
	gen := c.gen
	surface := c.surface
	c.mu.Unlock()

	surface.SetCamera(pose.Normalized(), true, gen)
}

// Dispose releases all shadows and detaches from the surface. Every
// operation afterwards is a silent no-op, so late-arriving effects from a
// torn-down view cannot crash the process.
func (c *Controller) Dispose() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.disposed {
		return
	}
	c.clearLocked()
	c.disposed = true
	c.onPose = nil
}

// Disposed reports whether the controller has been torn down.
func (c *Controller) Disposed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.disposed
}

// ShadowCount returns the number of live marker shadows.
func (c *Controller) ShadowCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.shadows)
}

// RouteShadowCount returns the number of live route overlays.
func (c *Controller) RouteShadowCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.routeShadows)
}

// routeFingerprint summarizes a route path for change detection.
func routeFingerprint(r Route) string {
	var b strings.Builder
	for _, p := range r.Path {
		b.WriteString(strconv.FormatFloat(p.Lat, 'f', -1, 64))
		b.WriteByte(',')
		b.WriteString(strconv.FormatFloat(p.Lng, 'f', -1, 64))
		b.WriteByte(';')
	}
	return b.String()
}
