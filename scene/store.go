package scene

import (
	"sync"

	"github.com/google/uuid"
)

// Listener receives an immutable snapshot after every mutation.
type Listener func(SceneState)

type storeListener struct {
	id int
	fn Listener
}

// Store is the process-wide source of truth for the scene. All mutations go
// through its setters; there is no other mutation path. Listeners are invoked
// synchronously after each mutation, in registration order, exactly once per
// call. The store performs no I/O and holds no reference to any rendering
// surface.
type Store struct {
	mu        sync.RWMutex
	state     SceneState
	listeners []storeListener
	nextID    int
}

// NewStore creates an empty scene store in flat view mode.
func NewStore() *Store {
	return &Store{
		state: SceneState{ViewMode: ViewModeFlat},
	}
}

// GetState returns an immutable snapshot of the current scene.
func (s *Store) GetState() SceneState {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state.clone()
}

// Subscribe registers a listener and returns an unsubscribe handle.
// Listeners registered during a notification do not receive that
// notification.
func (s *Store) Subscribe(fn Listener) (unsubscribe func()) {
	s.mu.Lock()
	id := s.nextID
	s.nextID++
	s.listeners = append(s.listeners, storeListener{id: id, fn: fn})
	s.mu.Unlock()

	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		for i, l := range s.listeners {
			if l.id == id {
				s.listeners = append(s.listeners[:i], s.listeners[i+1:]...)
				return
			}
		}
	}
}

// SetMarkers replaces the marker set. Markers without an ID are assigned one;
// a duplicate ID or out-of-range coordinate is rejected with a
// *ValidationError and state is left unchanged.
func (s *Store) SetMarkers(markers []Marker) error {
	next := make([]Marker, len(markers))
	copy(next, markers)

	seen := make(map[string]struct{}, len(next))
	for i := range next {
		if next[i].ID == "" {
			next[i].ID = uuid.NewString()
		}
		if _, dup := seen[next[i].ID]; dup {
			return &ValidationError{Field: "markers", Reason: "duplicate id " + next[i].ID}
		}
		seen[next[i].ID] = struct{}{}
		if !next[i].Position.Valid() {
			return &ValidationError{Field: "markers", Reason: "position out of range for " + next[i].ID}
		}
		if !next[i].Kind.Valid() {
			return &ValidationError{Field: "markers", Reason: "unknown kind for " + next[i].ID}
		}
		if next[i].Kind == "" {
			next[i].Kind = KindPlace
		}
	}

	s.mu.Lock()
	s.state.Markers = next
	s.mu.Unlock()
	s.notify()
	return nil
}

// SetRoutes replaces the route overlays with the same validation contract as
// SetMarkers.
func (s *Store) SetRoutes(routes []Route) error {
	next := make([]Route, len(routes))
	seen := make(map[string]struct{}, len(routes))
	for i, r := range routes {
		if r.ID == "" {
			r.ID = uuid.NewString()
		}
		if _, dup := seen[r.ID]; dup {
			return &ValidationError{Field: "routes", Reason: "duplicate id " + r.ID}
		}
		seen[r.ID] = struct{}{}
		if len(r.Path) < 2 {
			return &ValidationError{Field: "routes", Reason: "route " + r.ID + " needs at least 2 points"}
		}
		for _, p := range r.Path {
			if !p.Valid() {
				return &ValidationError{Field: "routes", Reason: "position out of range in route " + r.ID}
			}
		}
		path := make([]GeoPoint, len(r.Path))
		copy(path, r.Path)
		r.Path = path
		next[i] = r
	}

	s.mu.Lock()
	s.state.Routes = next
	s.mu.Unlock()
	s.notify()
	return nil
}

// SetCameraTarget requests a one-shot camera move. Passing nil clears a
// pending request.
func (s *Store) SetCameraTarget(pose *CameraPose) error {
	var target *CameraPose
	if pose != nil {
		if err := pose.Validate(); err != nil {
			return err
		}
		p := pose.Normalized()
		target = &p
	}

	s.mu.Lock()
	s.state.CameraTarget = target
	s.mu.Unlock()
	s.notify()
	return nil
}

// SetPreventAutoFrame toggles auto-framing suppression for subsequent marker
// updates.
func (s *Store) SetPreventAutoFrame(prevent bool) {
	s.mu.Lock()
	s.state.PreventAutoFrame = prevent
	s.mu.Unlock()
	s.notify()
}

// SetViewMode switches between flat and perspective framing.
func (s *Store) SetViewMode(mode ViewMode) error {
	if !mode.Valid() {
		return &ValidationError{Field: "viewMode", Reason: "must be flat or perspective"}
	}
	s.mu.Lock()
	s.state.ViewMode = mode
	s.mu.Unlock()
	s.notify()
	return nil
}

// ConsumeCameraTarget atomically takes a pending camera target, clearing it
// and resetting PreventAutoFrame so the next marker update re-triggers
// auto-framing. It is the consumer side of the one-shot contract and does not
// notify listeners: the consumer is itself running inside a notification.
func (s *Store) ConsumeCameraTarget() (CameraPose, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state.CameraTarget == nil {
		return CameraPose{}, false
	}
	pose := *s.state.CameraTarget
	s.state.CameraTarget = nil
	s.state.PreventAutoFrame = false
	return pose, true
}

// Reset clears the scene back to its initial empty state and notifies.
func (s *Store) Reset() {
	s.mu.Lock()
	mode := s.state.ViewMode
	s.state = SceneState{ViewMode: mode}
	s.mu.Unlock()
	s.notify()
}

// notify snapshots state and listeners under the lock, then invokes the
// listeners outside it so a listener may call back into the store.
func (s *Store) notify() {
	s.mu.RLock()
	snapshot := s.state.clone()
	listeners := make([]storeListener, len(s.listeners))
	copy(listeners, s.listeners)
	s.mu.RUnlock()

	for _, l := range listeners {
		l.fn(snapshot)
	}
}
