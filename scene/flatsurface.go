package scene

import (
	"image"
	"image/color"
	"image/png"
	"io"
	"math"
	"sort"
	"sync"

	"github.com/tdewolff/canvas"
	"github.com/tdewolff/canvas/renderers/svg"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
)

// markerStyle defines the colors for one marker kind.
type markerStyle struct {
	Fill   color.RGBA
	Stroke color.RGBA
}

// defaultStyles returns the stock per-kind marker palette.
func defaultStyles() map[MarkerKind]markerStyle {
	return map[MarkerKind]markerStyle{
		KindPlace:         {Fill: color.RGBA{100, 149, 237, 255}, Stroke: color.RGBA{0, 0, 139, 255}},   // cornflower / dark blue
		KindRouteEndpoint: {Fill: color.RGBA{255, 99, 71, 255}, Stroke: color.RGBA{139, 0, 0, 255}},     // tomato / dark red
		KindWaypoint:      {Fill: color.RGBA{144, 238, 144, 255}, Stroke: color.RGBA{0, 100, 0, 255}},   // light / dark green
	}
}

var routeColor = color.RGBA{70, 70, 200, 255}

// FlatSurface is the built-in 2D top-down rendering surface. It keeps
// surface-native marker and route objects, commits camera poses, and can
// rasterize the current view to PNG or emit it as SVG.
//
// SetCamera commits synchronously and then reports completion through the
// registered camera listeners; a real animated widget would defer that
// callback to the end of its transition.
type FlatSurface struct {
	mu        sync.Mutex
	widthPx   int
	heightPx  int
	styles    map[MarkerKind]markerStyle
	markers   map[int]Marker
	routes    map[int]Route
	next      int
	pose      CameraPose
	hasPose   bool
	listeners []CameraListener
	closed    bool
}

// NewFlatSurface creates a surface with the given viewport size in pixels.
func NewFlatSurface(widthPx, heightPx int) *FlatSurface {
	if widthPx <= 0 {
		widthPx = 1280
	}
	if heightPx <= 0 {
		heightPx = 800
	}
	return &FlatSurface{
		widthPx:  widthPx,
		heightPx: heightPx,
		styles:   defaultStyles(),
		markers:  make(map[int]Marker),
		routes:   make(map[int]Route),
		next:     1,
	}
}

// CreateMarker adds a surface-native marker and returns its handle.
func (f *FlatSurface) CreateMarker(m Marker) (MarkerHandle, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return nil, &PreconditionError{Op: "CreateMarker"}
	}
	h := f.next
	f.next++
	f.markers[h] = m
	return h, nil
}

// UpdateMarker replaces the marker behind an existing handle.
func (f *FlatSurface) UpdateMarker(h MarkerHandle, m Marker) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return &PreconditionError{Op: "UpdateMarker"}
	}
	id, ok := h.(int)
	if !ok {
		return &SurfaceOperationError{Op: "UpdateMarker", EntityID: m.ID, Err: errUnknownHandle}
	}
	if _, ok := f.markers[id]; !ok {
		return &SurfaceOperationError{Op: "UpdateMarker", EntityID: m.ID, Err: errUnknownHandle}
	}
	f.markers[id] = m
	return nil
}

// RemoveMarker destroys the marker behind a handle. Removing an already
// removed handle is not an error.
func (f *FlatSurface) RemoveMarker(h MarkerHandle) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return &PreconditionError{Op: "RemoveMarker"}
	}
	if id, ok := h.(int); ok {
		delete(f.markers, id)
	}
	return nil
}

// DrawRoute adds a polyline overlay and returns its handle.
func (f *FlatSurface) DrawRoute(r Route) (RouteHandle, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return nil, &PreconditionError{Op: "DrawRoute"}
	}
	h := f.next
	f.next++
	f.routes[h] = r
	return h, nil
}

// RemoveRoute destroys a route overlay.
func (f *FlatSurface) RemoveRoute(h RouteHandle) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return &PreconditionError{Op: "RemoveRoute"}
	}
	if id, ok := h.(int); ok {
		delete(f.routes, id)
	}
	return nil
}

// SetCamera commits the pose and notifies camera listeners with the caller's
// generation. The flat surface ignores tilt and heading beyond storing them.
func (f *FlatSurface) SetCamera(pose CameraPose, animated bool, gen uint64) {
	f.mu.Lock()
	if f.closed {
		f.mu.Unlock()
		return
	}
	f.pose = pose
	f.hasPose = true
	listeners := make([]CameraListener, len(f.listeners))
	copy(listeners, f.listeners)
	f.mu.Unlock()

	for _, fn := range listeners {
		fn(pose, gen)
	}
}

// OnCameraChange registers a listener for committed camera poses.
func (f *FlatSurface) OnCameraChange(fn CameraListener) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.listeners = append(f.listeners, fn)
}

// Pose returns the last committed camera pose, if any.
func (f *FlatSurface) Pose() (CameraPose, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.pose, f.hasPose
}

// MarkerCount returns the number of live surface markers.
func (f *FlatSurface) MarkerCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.markers)
}

// RouteCount returns the number of live route overlays.
func (f *FlatSurface) RouteCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.routes)
}

// Close detaches the surface; subsequent operations return
// *PreconditionError.
func (f *FlatSurface) Close() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	f.listeners = nil
}

// snapshot copies the drawable state under the lock.
func (f *FlatSurface) snapshot() (markers []Marker, routes []Route, pose CameraPose) {
	f.mu.Lock()
	defer f.mu.Unlock()

	ids := make([]int, 0, len(f.markers))
	for id := range f.markers {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	for _, id := range ids {
		markers = append(markers, f.markers[id])
	}

	rids := make([]int, 0, len(f.routes))
	for id := range f.routes {
		rids = append(rids, id)
	}
	sort.Ints(rids)
	for _, id := range rids {
		routes = append(routes, f.routes[id])
	}

	pose = f.pose
	if !f.hasPose {
		// No camera committed yet: a whole-world overview.
		pose = CameraPose{Center: GeoPoint{}, Range: 6_000_000}
	}
	return markers, routes, pose
}

// metersPerPixel derives the ground resolution of the current view from the
// camera range and the assumed field of view.
func (f *FlatSurface) metersPerPixel(pose CameraPose) float64 {
	visible := pose.Range * 2 * math.Tan(halfFOVDeg*math.Pi/180)
	return visible / float64(f.heightPx)
}

// project maps a geo point to pixel coordinates in the current view using a
// local tangent-plane projection around the camera center. Longitude deltas
// wrap so scenes near the antimeridian project contiguously.
func (f *FlatSurface) project(p GeoPoint, pose CameraPose, mpp float64) (x, y float64) {
	dLng := p.Lng - pose.Center.Lng
	for dLng > 180 {
		dLng -= 360
	}
	for dLng < -180 {
		dLng += 360
	}
	dx := dLng * metersPerDegLat * math.Cos(pose.Center.Lat*math.Pi/180)
	dy := (p.Lat - pose.Center.Lat) * metersPerDegLat

	x = float64(f.widthPx)/2 + dx/mpp
	y = float64(f.heightPx)/2 - dy/mpp
	return x, y
}

// RenderPNG rasterizes the current view and writes it as PNG.
func (f *FlatSurface) RenderPNG(w io.Writer) error {
	markers, routes, pose := f.snapshot()
	mpp := f.metersPerPixel(pose)

	img := image.NewRGBA(image.Rect(0, 0, f.widthPx, f.heightPx))
	bg := color.RGBA{245, 245, 240, 255}
	for i := range img.Pix {
		switch i % 4 {
		case 0:
			img.Pix[i] = bg.R
		case 1:
			img.Pix[i] = bg.G
		case 2:
			img.Pix[i] = bg.B
		case 3:
			img.Pix[i] = bg.A
		}
	}

	for _, r := range routes {
		for i := 0; i < len(r.Path)-1; i++ {
			x1, y1 := f.project(r.Path[i], pose, mpp)
			x2, y2 := f.project(r.Path[i+1], pose, mpp)
			drawLine(img, x1, y1, x2, y2, routeColor)
		}
	}

	for _, m := range markers {
		x, y := f.project(m.Position, pose, mpp)
		style := f.styleFor(m.Kind)
		drawDisc(img, x, y, 6, style.Fill, style.Stroke)
		if m.Label != "" {
			drawLabel(img, int(x)+9, int(y)+4, m.Label, style.Stroke)
		}
	}

	return png.Encode(w, img)
}

// RenderSVG writes the current view as an SVG document.
func (f *FlatSurface) RenderSVG(w io.Writer) error {
	markers, routes, pose := f.snapshot()
	mpp := f.metersPerPixel(pose)

	width := float64(f.widthPx)
	height := float64(f.heightPx)
	svgRenderer := svg.New(w, width, height, nil)

	// SVG canvas coordinates grow upward; flip the pixel y.
	toCanvas := func(p GeoPoint) (float64, float64) {
		x, y := f.project(p, pose, mpp)
		return x, height - y
	}

	bgStyle := canvas.DefaultStyle
	bgStyle.Fill = canvas.Paint{Color: canvas.White}
	svgRenderer.RenderPath(canvas.Rectangle(width, height), bgStyle, canvas.Identity)

	routeStyle := canvas.DefaultStyle
	routeStyle.Fill = canvas.Paint{Color: canvas.Transparent}
	routeStyle.Stroke = canvas.Paint{Color: routeColor}
	routeStyle.StrokeWidth = 2.0

	for _, r := range routes {
		cp := &canvas.Path{}
		for i, p := range r.Path {
			cx, cy := toCanvas(p)
			if i == 0 {
				cp.MoveTo(cx, cy)
			} else {
				cp.LineTo(cx, cy)
			}
		}
		svgRenderer.RenderPath(cp, routeStyle, canvas.Identity)
	}

	for _, m := range markers {
		cx, cy := toCanvas(m.Position)
		style := f.styleFor(m.Kind)

		markerFill := canvas.DefaultStyle
		markerFill.Fill = canvas.Paint{Color: style.Fill}
		markerFill.Stroke = canvas.Paint{Color: style.Stroke}
		markerFill.StrokeWidth = 1.5

		dot := canvas.Circle(6.0)
		dot = dot.Translate(cx, cy)
		svgRenderer.RenderPath(dot, markerFill, canvas.Identity)
	}

	return svgRenderer.Close()
}

func (f *FlatSurface) styleFor(kind MarkerKind) markerStyle {
	if s, ok := f.styles[kind]; ok {
		return s
	}
	return f.styles[KindPlace]
}

// drawDisc paints a filled circle with a 1px outline.
func drawDisc(img *image.RGBA, cx, cy, radius float64, fill, stroke color.RGBA) {
	bounds := img.Bounds()
	r2 := radius * radius
	outer2 := (radius + 1) * (radius + 1)
	for y := int(cy - radius - 1); y <= int(cy+radius+1); y++ {
		for x := int(cx - radius - 1); x <= int(cx+radius+1); x++ {
			if x < bounds.Min.X || x >= bounds.Max.X || y < bounds.Min.Y || y >= bounds.Max.Y {
				continue
			}
			dx := float64(x) - cx
			dy := float64(y) - cy
			d2 := dx*dx + dy*dy
			if d2 <= r2 {
				img.SetRGBA(x, y, fill)
			} else if d2 <= outer2 {
				img.SetRGBA(x, y, stroke)
			}
		}
	}
}

// drawLine paints a straight segment by stepping along its longer axis.
func drawLine(img *image.RGBA, x1, y1, x2, y2 float64, c color.RGBA) {
	bounds := img.Bounds()
	steps := math.Max(math.Abs(x2-x1), math.Abs(y2-y1))
	if steps < 1 {
		steps = 1
	}
	for i := 0.0; i <= steps; i++ {
		t := i / steps
		x := int(x1 + t*(x2-x1))
		y := int(y1 + t*(y2-y1))
		if x < bounds.Min.X || x >= bounds.Max.X || y < bounds.Min.Y || y >= bounds.Max.Y {
			continue
		}
		img.SetRGBA(x, y, c)
	}
}

// drawLabel renders text at the given pixel position using the built-in
// 7x13 bitmap face.
func drawLabel(img *image.RGBA, x, y int, text string, c color.RGBA) {
	face := basicfont.Face7x13
	d := &font.Drawer{
		Dst:  img,
		Src:  image.NewUniform(c),
		Face: face,
		Dot:  fixed.Point26_6{X: fixed.I(x), Y: fixed.I(y)},
	}
	d.DrawString(text)
}
