package scene

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// LoadConfig loads the service configuration from a YAML file and fills in
// defaults. An empty mqtt.broker is allowed and disables MQTT.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("config file not found: %s", path)
		}
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	var config Config
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("parsing config YAML: %w", err)
	}

	config.ApplyDefaults()

	if config.HTTP.Port < 0 || config.HTTP.Port > 65535 {
		return nil, fmt.Errorf("http.port out of range: %d", config.HTTP.Port)
	}
	if config.Surface.WidthPx < 0 || config.Surface.HeightPx < 0 {
		return nil, fmt.Errorf("surface dimensions must be positive")
	}
	if !config.Surface.Mode.Valid() {
		return nil, fmt.Errorf("surface.mode must be flat or perspective, got %q", config.Surface.Mode)
	}
	if config.Framing.CloseSpanMeters >= config.Framing.WideSpanKm*1000 {
		return nil, fmt.Errorf("framing.closeSpanMeters must be below framing.wideSpanKm")
	}

	return &config, nil
}

// SaveConfig saves the configuration to a YAML file.
func SaveConfig(path string, config *Config) error {
	data, err := yaml.Marshal(config)
	if err != nil {
		return fmt.Errorf("marshaling config YAML: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("writing config file: %w", err)
	}

	return nil
}
