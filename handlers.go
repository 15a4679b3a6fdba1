package main

import (
	"encoding/json"
	"errors"
	"io"
	"log"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/kwv/geoscene/scene"
)

const maxCommandBody = 1 << 20

var wsUpgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// Scene state is not sensitive; dashboards connect cross-origin.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// newHTTPServer creates an HTTP server with all endpoints
func newHTTPServer(store *scene.Store, surface *scene.FlatSurface, binder *scene.Binder) http.Handler {
	mux := http.NewServeMux()

	// Health check endpoint
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		log.Printf("[HTTP] /health request from %s", r.RemoteAddr)
		w.Header().Set("Content-Type", "application/json")
		state := store.GetState()
		status := struct {
			Status    string    `json:"status"`
			Timestamp time.Time `json:"timestamp"`
			Markers   int       `json:"markers"`
			Routes    int       `json:"routes"`
		}{
			Status:    "ok",
			Timestamp: time.Now(),
			Markers:   len(state.Markers),
			Routes:    len(state.Routes),
		}
		if err := json.NewEncoder(w).Encode(status); err != nil {
			log.Printf("Error encoding health status: %v", err)
		}
	})

	// Scene state snapshot
	mux.HandleFunc("/scene.json", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Header().Set("Cache-Control", "no-cache")
		if err := json.NewEncoder(w).Encode(store.GetState()); err != nil {
			log.Printf("Error encoding scene JSON: %v", err)
		}
	})

	// Scene as GeoJSON feature collection
	mux.HandleFunc("/scene.geojson", func(w http.ResponseWriter, r *http.Request) {
		data, err := scene.MarshalGeoJSON(store.GetState())
		if err != nil {
			log.Printf("Error encoding scene GeoJSON: %v", err)
			http.Error(w, "Internal error", http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/geo+json")
		w.Header().Set("Cache-Control", "no-cache")
		if _, err := w.Write(data); err != nil {
			log.Printf("Error writing scene GeoJSON: %v", err)
		}
	})

	// Rendered current view (raster)
	mux.HandleFunc("/scene.png", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "image/png")
		w.Header().Set("Cache-Control", "no-cache")
		if err := surface.RenderPNG(w); err != nil {
			log.Printf("Error encoding scene PNG: %v", err)
		}
	})

	// Rendered current view (vector)
	mux.HandleFunc("/scene.svg", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "image/svg+xml")
		w.Header().Set("Cache-Control", "no-cache")
		if err := surface.RenderSVG(w); err != nil {
			log.Printf("Error encoding scene SVG: %v", err)
		}
	})

	// Scene update stream
	mux.HandleFunc("/ws", func(w http.ResponseWriter, r *http.Request) {
		serveSceneStream(store, w, r)
	})

	// Scene mutation commands, same verbs as the MQTT command topic
	mux.HandleFunc("/scene/", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}

		verb := strings.TrimPrefix(r.URL.Path, "/scene/")
		if verb == "" || strings.Contains(verb, "/") {
			http.Error(w, "Unknown command", http.StatusNotFound)
			return
		}

		body, err := io.ReadAll(io.LimitReader(r.Body, maxCommandBody))
		if err != nil {
			http.Error(w, "Error reading body", http.StatusBadRequest)
			return
		}

		if err := scene.ApplyCommand(store, binder.SetPadding, verb, body); err != nil {
			var verr *scene.ValidationError
			if errors.As(err, &verr) {
				http.Error(w, verr.Error(), http.StatusBadRequest)
				return
			}
			log.Printf("[HTTP] command %q failed: %v", verb, err)
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}

		w.WriteHeader(http.StatusNoContent)
	})

	return mux
}

// serveSceneStream upgrades to a websocket and pushes a scene snapshot on
// every store change. A slow client that falls behind is dropped rather than
// blocking the store's notification path.
func serveSceneStream(store *scene.Store, w http.ResponseWriter, r *http.Request) {
	conn, err := wsUpgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("[HTTP] websocket upgrade failed: %v", err)
		return
	}
	log.Printf("[HTTP] websocket client connected: %s", r.RemoteAddr)

	updates := make(chan scene.SceneState, 8)
	var mu sync.Mutex
	dropped := false
	unsubscribe := store.Subscribe(func(s scene.SceneState) {
		mu.Lock()
		defer mu.Unlock()
		if dropped {
			return
		}
		select {
		case updates <- s:
		default:
			log.Printf("[HTTP] websocket client %s too slow, dropping", r.RemoteAddr)
			dropped = true
			close(updates)
		}
	})

	// Initial snapshot so the client does not wait for the next mutation.
	if err := conn.WriteJSON(store.GetState()); err != nil {
		unsubscribe()
		_ = conn.Close()
		return
	}

	// Reader goroutine: detect client disconnect.
	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	defer func() {
		unsubscribe()
		_ = conn.Close()
		log.Printf("[HTTP] websocket client disconnected: %s", r.RemoteAddr)
	}()

	for {
		select {
		case s, ok := <-updates:
			if !ok {
				return
			}
			if err := conn.WriteJSON(s); err != nil {
				return
			}
		case <-done:
			return
		}
	}
}
