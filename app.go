package main

import (
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/kwv/geoscene/scene"
)

// App encapsulates the application state and dependencies
type App struct {
	Config     *scene.Config
	Store      *scene.Store
	Surface    *scene.FlatSurface
	Controller *scene.Controller
	Binder     *scene.Binder
	MQTTClient *scene.CommandClient
	Publisher  *scene.Publisher

	// CLI Flags (effectively dependencies)
	ConfigFile   string
	MqttMode     bool
	HttpMode     bool
	HttpPort     int
	SceneFile    string
	OutputFile   string
	RenderFormat string
}

// AppOptions carries the parsed CLI flags.
type AppOptions struct {
	ConfigFile   string
	MqttMode     bool
	HttpMode     bool
	HttpPort     int
	SceneFile    string
	OutputFile   string
	RenderFormat string
}

// NewApp creates a new App instance
func NewApp() *App {
	return &App{
		Store: scene.NewStore(),
	}
}

// ApplyOptions applies CLI options to the App instance
func (a *App) ApplyOptions(opts AppOptions) {
	a.ConfigFile = opts.ConfigFile
	a.MqttMode = opts.MqttMode
	a.HttpMode = opts.HttpMode
	a.HttpPort = opts.HttpPort
	a.SceneFile = opts.SceneFile
	a.OutputFile = opts.OutputFile
	a.RenderFormat = opts.RenderFormat
}

// loadConfig loads the config file, falling back to defaults when the file
// does not exist (MQTT disabled, port 8080, 1280x800 flat surface).
func (a *App) loadConfig() *scene.Config {
	if _, err := os.Stat(a.ConfigFile); err == nil {
		config, err := scene.LoadConfig(a.ConfigFile)
		if err != nil {
			log.Fatalf("Failed to load config: %v", err)
		}
		log.Printf("Loaded config from %s", a.ConfigFile)
		return config
	}

	log.Printf("No config file at %s, using defaults", a.ConfigFile)
	config := &scene.Config{}
	config.ApplyDefaults()
	return config
}

// RunValidateConfig loads the config file and reports the result.
func (a *App) RunValidateConfig() {
	config, err := scene.LoadConfig(a.ConfigFile)
	if err != nil {
		log.Fatalf("Config invalid: %v", err)
	}
	fmt.Printf("Config OK: %s\n", a.ConfigFile)
	if config.MQTT.Broker == "" {
		fmt.Println("  mqtt: disabled (no broker)")
	} else {
		fmt.Printf("  mqtt: %s (commands on %s/cmd/#)\n", config.MQTT.Broker, config.MQTT.CommandPrefix)
	}
	fmt.Printf("  http: port %d\n", config.HTTP.Port)
	fmt.Printf("  surface: %dx%d (%s)\n", config.Surface.WidthPx, config.Surface.HeightPx, config.Surface.Mode)
}

// RunRender loads a scene file, frames it, renders once, and exits.
func (a *App) RunRender() {
	if a.SceneFile == "" {
		log.Fatal("--render requires --scene=FILE")
	}

	config := a.loadConfig()
	a.Config = config

	s, err := scene.ParseSceneFile(a.SceneFile)
	if err != nil {
		log.Fatalf("Failed to load scene: %v", err)
	}
	fmt.Printf("Loaded scene: %d markers, %d routes\n", len(s.Markers), len(s.Routes))

	if err := a.Store.SetMarkers(s.Markers); err != nil {
		log.Fatalf("Invalid markers: %v", err)
	}
	if err := a.Store.SetRoutes(s.Routes); err != nil {
		log.Fatalf("Invalid routes: %v", err)
	}
	if err := a.Store.SetViewMode(s.ViewMode); err != nil {
		log.Fatalf("Invalid view mode: %v", err)
	}

	surface := scene.NewFlatSurface(config.Surface.WidthPx, config.Surface.HeightPx)
	ctrl := scene.NewController(surface, config.Framing, nil)
	binder := scene.Bind(a.Store, ctrl, nil)
	defer binder.Close()
	defer ctrl.Dispose()

	outputPath := a.OutputFile
	format := a.RenderFormat
	if format == "" {
		format = formatFromExt(outputPath)
	}

	outFile, err := os.Create(outputPath)
	if err != nil {
		log.Fatalf("Error creating output file %s: %v", outputPath, err)
	}
	defer func() {
		if err := outFile.Close(); err != nil {
			log.Printf("Warning: error closing output file %s: %v", outputPath, err)
		}
	}()

	switch format {
	case "png":
		if err := surface.RenderPNG(outFile); err != nil {
			log.Fatalf("Error rendering PNG: %v", err)
		}
	case "svg":
		if err := surface.RenderSVG(outFile); err != nil {
			log.Fatalf("Error rendering SVG: %v", err)
		}
	default:
		log.Fatalf("Invalid format: %s (must be png or svg)", format)
	}

	fmt.Printf("Created %s: %s\n", format, outputPath)
}

func formatFromExt(path string) string {
	if filepath.Ext(path) == ".svg" {
		return "svg"
	}
	return "png"
}

// RunService starts the combined MQTT and/or HTTP service
func (a *App) RunService() {
	fmt.Println("Starting geoscene service...")

	config := a.loadConfig()
	a.Config = config

	// Surface, controller, and binder form the rendering pipeline.
	a.Surface = scene.NewFlatSurface(config.Surface.WidthPx, config.Surface.HeightPx)
	a.Controller = scene.NewController(a.Surface, config.Framing, nil)

	if config.Surface.Mode == scene.ViewModePerspective {
		if err := a.Store.SetViewMode(scene.ViewModePerspective); err != nil {
			log.Fatalf("Invalid surface mode: %v", err)
		}
	}

	a.Binder = scene.Bind(a.Store, a.Controller, nil)

	// Mirror committed camera poses to MQTT (when connected).
	a.Controller.SetPoseListener(func(pose scene.CameraPose) {
		if a.Publisher != nil {
			if err := a.Publisher.PublishPose(pose); err != nil {
				log.Printf("Error publishing camera pose: %v", err)
			}
		}
	})

	// Connect MQTT if enabled
	if a.MqttMode {
		mqttClient, err := scene.InitCommandClient(config, a.Store, a.Binder.SetPadding)
		if err != nil {
			log.Fatalf("Failed to initialize MQTT: %v", err)
		}
		a.MQTTClient = mqttClient

		if mqttClient == nil {
			log.Fatal("MQTT broker not configured in config.yaml")
		}

		a.Publisher = scene.NewPublisher(mqttClient.GetClient(), config.MQTT.PublishPrefix)
		fmt.Println("MQTT scene publisher initialized")

		// Mirror every scene change to the scene topic.
		a.Store.Subscribe(func(s scene.SceneState) {
			if a.Publisher != nil {
				if err := a.Publisher.PublishScene(s); err != nil {
					log.Printf("Error publishing scene: %v", err)
				}
			}
		})
	}

	// Start HTTP server if enabled
	if a.HttpMode {
		port := a.HttpPort
		if port == 0 {
			port = config.HTTP.Port
		}
		httpServer := newHTTPServer(a.Store, a.Surface, a.Binder)
		go func() {
			addr := fmt.Sprintf("0.0.0.0:%d", port)
			log.Printf("[HTTP] Starting server on %s", addr)
			if err := http.ListenAndServe(addr, httpServer); err != nil {
				log.Fatalf("[HTTP] Server error: %v", err)
			}
			log.Printf("[HTTP] Server stopped unexpectedly")
		}()
	}

	// Print service info
	fmt.Println("\nService Running")
	fmt.Println("===============")

	if a.MqttMode {
		fmt.Println("\nMQTT:")
		fmt.Printf("  Commands on: %s/cmd/{markers,routes,camera,view,suppress,padding,scene,clear}\n", config.MQTT.CommandPrefix)
		fmt.Printf("  Camera poses published to: %s/camera\n", config.MQTT.PublishPrefix)
		fmt.Printf("  Scene snapshots published to: %s/scene\n", config.MQTT.PublishPrefix)
	}

	if a.HttpMode {
		fmt.Printf("\nHTTP endpoints (port %d):\n", a.HttpPort)
		fmt.Println("  GET  /health         - Health check")
		fmt.Println("  GET  /scene.json     - Scene state snapshot")
		fmt.Println("  GET  /scene.geojson  - Scene as GeoJSON")
		fmt.Println("  GET  /scene.png      - Rendered current view")
		fmt.Println("  GET  /scene.svg      - Rendered current view (vector)")
		fmt.Println("  GET  /ws             - Scene update stream (websocket)")
		fmt.Println("  POST /scene/{markers,routes,camera,view,suppress,padding,clear}")
	}

	fmt.Println("\nPress Ctrl+C to stop")

	// Wait for interrupt signal
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	<-sigChan

	fmt.Println("\nShutting down service...")
	if a.MQTTClient != nil {
		a.MQTTClient.Disconnect()
	}
	a.Binder.Close()
	a.Controller.Dispose()
	a.Surface.Close()
	fmt.Println("Service stopped")
}
