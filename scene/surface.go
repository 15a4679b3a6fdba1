package scene

// MarkerHandle is an opaque surface-native marker object. The Controller owns
// the id→handle map; the declarative Marker never embeds one.
type MarkerHandle interface{}

// RouteHandle is an opaque surface-native route overlay object.
type RouteHandle interface{}

// CameraListener is invoked when the surface commits a camera pose. The
// generation echoes the value passed to SetCamera so a superseded transition
// can be told apart from a completed one.
type CameraListener func(pose CameraPose, gen uint64)

// Surface is the capability set the Controller requires from a rendering
// surface. Implementations may be a flat top-down widget, a 3D perspective
// widget, or a test fake; the Controller is agnostic.
//
// SetCamera must return immediately: camera motion completes asynchronously
// and is reported through OnCameraChange listeners. Issuing a new SetCamera
// while a transition is in flight replaces it (last writer wins).
type Surface interface {
	CreateMarker(m Marker) (MarkerHandle, error)
	UpdateMarker(h MarkerHandle, m Marker) error
	RemoveMarker(h MarkerHandle) error

	DrawRoute(r Route) (RouteHandle, error)
	RemoveRoute(h RouteHandle) error

	SetCamera(pose CameraPose, animated bool, gen uint64)
	OnCameraChange(fn CameraListener)
}
