package main

import (
	"bytes"
	"strings"
	"testing"
)

type mockApp struct {
	opts   AppOptions
	called map[string]bool
}

func newMockApp() *mockApp {
	return &mockApp{
		called: make(map[string]bool),
	}
}

func (m *mockApp) ApplyOptions(opts AppOptions) { m.opts = opts }
func (m *mockApp) RunValidateConfig()           { m.called["RunValidateConfig"] = true }
func (m *mockApp) RunRender()                   { m.called["RunRender"] = true }
func (m *mockApp) RunService()                  { m.called["RunService"] = true }

func TestRun_Flags(t *testing.T) {
	tests := []struct {
		name           string
		args           []string
		expectedCalled string
		verifyOpts     func(*testing.T, AppOptions)
	}{
		{
			name:           "ValidateConfig",
			args:           []string{"--validate-config", "--config", "custom.yaml"},
			expectedCalled: "RunValidateConfig",
			verifyOpts: func(t *testing.T, opts AppOptions) {
				if opts.ConfigFile != "custom.yaml" {
					t.Errorf("expected ConfigFile custom.yaml, got %s", opts.ConfigFile)
				}
			},
		},
		{
			name:           "Render",
			args:           []string{"--render", "--scene", "demo.json", "--output", "out.svg", "--format", "svg"},
			expectedCalled: "RunRender",
			verifyOpts: func(t *testing.T, opts AppOptions) {
				if opts.SceneFile != "demo.json" {
					t.Errorf("expected SceneFile demo.json, got %s", opts.SceneFile)
				}
				if opts.OutputFile != "out.svg" {
					t.Errorf("expected OutputFile out.svg, got %s", opts.OutputFile)
				}
				if opts.RenderFormat != "svg" {
					t.Errorf("expected RenderFormat svg, got %s", opts.RenderFormat)
				}
			},
		},
		{
			name:           "MqttMode",
			args:           []string{"--mqtt", "--http-port", "9090"},
			expectedCalled: "RunService",
			verifyOpts: func(t *testing.T, opts AppOptions) {
				if !opts.MqttMode {
					t.Error("expected MqttMode true")
				}
				if opts.HttpPort != 9090 {
					t.Errorf("expected HttpPort 9090, got %d", opts.HttpPort)
				}
			},
		},
		{
			name:           "HttpMode",
			args:           []string{"--http"},
			expectedCalled: "RunService",
			verifyOpts: func(t *testing.T, opts AppOptions) {
				if !opts.HttpMode {
					t.Error("expected HttpMode true")
				}
				if opts.HttpPort != 8080 {
					t.Errorf("expected default HttpPort 8080, got %d", opts.HttpPort)
				}
			},
		},
		{
			name:           "BothServiceModes",
			args:           []string{"--mqtt", "--http"},
			expectedCalled: "RunService",
			verifyOpts: func(t *testing.T, opts AppOptions) {
				if !opts.MqttMode || !opts.HttpMode {
					t.Error("expected both MqttMode and HttpMode true")
				}
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			app := newMockApp()
			var out bytes.Buffer
			err := run(tt.args, &out, app)
			if err != nil {
				t.Fatalf("run failed: %v", err)
			}

			if !app.called[tt.expectedCalled] {
				t.Errorf("expected %s to be called", tt.expectedCalled)
			}

			if tt.verifyOpts != nil {
				tt.verifyOpts(t, app.opts)
			}
		})
	}
}

func TestRun_Help(t *testing.T) {
	app := newMockApp()
	var out bytes.Buffer
	err := run([]string{"--help"}, &out, app)
	if err == nil {
		t.Error("expected error from --help, got nil")
	}
	if !strings.Contains(out.String(), "Usage of geoscene") {
		t.Errorf("expected usage info in output, got: %s", out.String())
	}
}

func TestRun_Default(t *testing.T) {
	app := newMockApp()
	var out bytes.Buffer
	err := run([]string{}, &out, app)
	if err != nil {
		t.Fatalf("run failed: %v", err)
	}

	expectedPrefix := "geoscene version: " + Version
	if !strings.Contains(out.String(), expectedPrefix) {
		t.Errorf("expected output to contain version, got: %s", out.String())
	}

	if !strings.Contains(out.String(), "geoscene service starting...") {
		t.Errorf("expected output to contain service starting message, got: %s", out.String())
	}

	for _, name := range []string{"RunValidateConfig", "RunRender", "RunService"} {
		if app.called[name] {
			t.Errorf("expected %s not to be called in default mode", name)
		}
	}
}

func TestMain_Execute(t *testing.T) {
	// Smoke test to ensure version is set
	if Version == "" {
		t.Error("expected Version to be set")
	}
}
