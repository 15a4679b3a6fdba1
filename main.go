package main

import (
	"flag"
	"fmt"
	"io"
	"log"
	"os"
)

// Version is set at build time via -ldflags
var Version = "dev"

// appRunner is the surface main needs from App; tests substitute a mock.
type appRunner interface {
	ApplyOptions(AppOptions)
	RunValidateConfig()
	RunRender()
	RunService()
}

// run parses args and dispatches to the selected mode. Split out from main so
// flag handling is testable without touching the process-global flag set.
func run(args []string, out io.Writer, app appRunner) error {
	fs := flag.NewFlagSet("geoscene", flag.ContinueOnError)
	fs.SetOutput(out)

	configFile := fs.String("config", "config.yaml", "Path to configuration file")
	mqttMode := fs.Bool("mqtt", false, "Connect to the MQTT broker for scene commands")
	httpMode := fs.Bool("http", false, "Enable HTTP server for scene state and renders")
	httpPort := fs.Int("http-port", 8080, "HTTP server port (default 8080)")
	renderOnly := fs.Bool("render", false, "Render a scene file and exit")
	sceneFile := fs.String("scene", "", "Path to a scene JSON file for --render mode")
	outputFile := fs.String("output", "scene.png", "Output file for --render mode")
	renderFormat := fs.String("format", "png", "Render format: png or svg")
	validateConfig := fs.Bool("validate-config", false, "Validate the configuration file and exit")

	if err := fs.Parse(args); err != nil {
		return err
	}

	fmt.Fprintf(out, "geoscene version: %s\n", Version)

	app.ApplyOptions(AppOptions{
		ConfigFile:   *configFile,
		MqttMode:     *mqttMode,
		HttpMode:     *httpMode,
		HttpPort:     *httpPort,
		SceneFile:    *sceneFile,
		OutputFile:   *outputFile,
		RenderFormat: *renderFormat,
	})

	if *validateConfig {
		app.RunValidateConfig()
		return nil
	}

	if *renderOnly {
		app.RunRender()
		return nil
	}

	if *mqttMode || *httpMode {
		app.RunService()
		return nil
	}

	fmt.Fprintln(out, "geoscene service starting...")
	fmt.Fprintln(out, "Use --render --scene=FILE to render a scene file")
	fmt.Fprintln(out, "Use --validate-config to check the configuration")
	fmt.Fprintln(out, "Use --mqtt to connect to the MQTT broker for scene commands")
	fmt.Fprintln(out, "Use --http to run the HTTP server")
	fmt.Fprintln(out, "Use --mqtt --http to run both together")
	fmt.Fprintln(out, "\nConfiguration:")
	fmt.Fprintln(out, "  config.yaml - MQTT, HTTP, surface, and framing settings")
	fmt.Fprintln(out, "\nNo mode selected")
	return nil
}

func main() {
	if err := run(os.Args[1:], os.Stdout, NewApp()); err != nil {
		if err == flag.ErrHelp {
			return
		}
		log.Fatal(err)
	}
}
