package scene

import (
	"log"
	"sync"
)

// Binder is the reactive glue between one Store and one Controller. It is the
// only place where declarative state turns into imperative surface calls.
//
// Three rules, each re-evaluated when its inputs change:
//
//  1. marker/frame: markers, routes, view mode, or padding changed — clear
//     the scene, resync shadows, then auto-frame all scene points unless
//     framing is suppressed. A change to PreventAutoFrame alone does not
//     trigger this rule.
//  2. camera target: a non-nil one-shot target appeared — fly to it, then
//     consume it (cleared back to nil, suppression reset) atomically.
//  3. padding: the layout-measurement collaborator reported new occlusion —
//     feeds rule 1.
type Binder struct {
	mu      sync.Mutex
	store   *Store
	ctrl    *Controller
	logger  *log.Logger
	padding Padding
	last    SceneState
	unsub   func()
	closed  bool
}

// Bind subscribes the controller to the store and performs an initial sync so
// a freshly mounted surface reflects whatever scene already exists.
func Bind(store *Store, ctrl *Controller, logger *log.Logger) *Binder {
	if logger == nil {
		logger = log.Default()
	}
	b := &Binder{
		store:  store,
		ctrl:   ctrl,
		logger: logger,
		last:   store.GetState(),
	}
	b.unsub = store.Subscribe(b.onChange)
	b.resync(b.last, b.padding)
	return b
}

// onChange diffs the new snapshot against the previous one and runs whichever
// rules fired. Invoked synchronously by the store after every mutation.
func (b *Binder) onChange(s SceneState) {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return
	}
	prev := b.last
	b.last = s
	pad := b.padding
	b.mu.Unlock()

	if sceneContentChanged(prev, s) {
		b.resync(s, pad)
	}

	if s.CameraTarget != nil {
		b.ctrl.FlyTo(*s.CameraTarget)
		if _, ok := b.store.ConsumeCameraTarget(); ok {
			b.logger.Printf("[BRIDGE] camera target consumed")
		}
		// Track the consumption locally; ConsumeCameraTarget is silent.
		b.mu.Lock()
		b.last.CameraTarget = nil
		b.last.PreventAutoFrame = false
		b.mu.Unlock()
	}
}

// resync is rule 1: clear, sync, then frame unless suppressed.
func (b *Binder) resync(s SceneState, pad Padding) {
	b.ctrl.ClearScene()
	b.ctrl.SyncMarkers(s.Markers)
	b.ctrl.SyncRoutes(s.Routes)
	if !s.PreventAutoFrame {
		b.ctrl.FrameEntities(s.Points(), pad, s.ViewMode)
	}
}

// SetPadding is rule 3: the external layout collaborator reports the measured
// UI occlusion and the scene is re-framed against the new usable viewport.
func (b *Binder) SetPadding(pad Padding) error {
	if err := pad.Validate(); err != nil {
		return err
	}
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return nil
	}
	if b.padding == pad {
		b.mu.Unlock()
		return nil
	}
	b.padding = pad
	s := b.last
	b.mu.Unlock()

	b.resync(s, pad)
	return nil
}

// Padding returns the current occlusion padding.
func (b *Binder) Padding() Padding {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.padding
}

// Close unsubscribes from the store. Safe to call more than once; a closed
// binder ignores late notifications.
func (b *Binder) Close() {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return
	}
	b.closed = true
	unsub := b.unsub
	b.mu.Unlock()

	if unsub != nil {
		unsub()
	}
}

// sceneContentChanged reports whether rule 1's inputs differ between two
// snapshots. CameraTarget and PreventAutoFrame deliberately do not count.
func sceneContentChanged(a, c SceneState) bool {
	if a.ViewMode != c.ViewMode {
		return true
	}
	if len(a.Markers) != len(c.Markers) {
		return true
	}
	for i := range a.Markers {
		if a.Markers[i] != c.Markers[i] {
			return true
		}
	}
	if len(a.Routes) != len(c.Routes) {
		return true
	}
	for i := range a.Routes {
		if a.Routes[i].ID != c.Routes[i].ID || len(a.Routes[i].Path) != len(c.Routes[i].Path) {
			return true
		}
		for j := range a.Routes[i].Path {
			if a.Routes[i].Path[j] != c.Routes[i].Path[j] {
				return true
			}
		}
	}
	return false
}
