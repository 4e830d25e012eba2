package vagkoll

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// APIConfig points at the backend REST collaborator.
type APIConfig struct {
	BaseURL string        `yaml:"base_url"`
	Timeout time.Duration `yaml:"timeout"`
}

// StreamConfig selects and configures the live transport.
type StreamConfig struct {
	// Kind is "sse" or "mqtt".
	Kind string `yaml:"kind"`
	URL  string `yaml:"url"` // SSE endpoint

	MQTTHost  string `yaml:"mqtt_host"`
	MQTTUser  string `yaml:"mqtt_user"`
	MQTTPass  string `yaml:"mqtt_pass"`
	MQTTTopic string `yaml:"mqtt_topic"`
}

// Config is the daemon configuration file.
type Config struct {
	API    APIConfig    `yaml:"api"`
	Stream StreamConfig `yaml:"stream"`

	ListenAddress string `yaml:"listen_address"`
	PrefsPath     string `yaml:"prefs_path"`
	PageSize      int    `yaml:"page_size"`

	// Mode is the startup tab: "realtime", "planned" or "" for all.
	Mode Mode `yaml:"mode"`

	// MonitoredCounties seeds the baseline filter when the preference
	// store has none yet.
	MonitoredCounties []int `yaml:"monitored_counties"`

	ShowTable   bool `yaml:"show_table"`
	RefreshRate int  `yaml:"refresh_rate"`
}

// LoadConfig reads the YAML config at path and fills in defaults. A missing
// file yields pure defaults.
func LoadConfig(path string) (*Config, error) {
	var c Config
	if path != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			if !os.IsNotExist(err) {
				return nil, fmt.Errorf("read config: %w", err)
			}
		} else if err := yaml.Unmarshal(b, &c); err != nil {
			return nil, fmt.Errorf("parse yaml: %w", err)
		}
	}

	// Defaults
	if c.API.BaseURL == "" {
		c.API.BaseURL = "http://localhost:3000"
	}
	if c.API.Timeout == 0 {
		c.API.Timeout = 15 * time.Second
	}
	if c.Stream.Kind == "" {
		c.Stream.Kind = "sse"
	}
	if c.Stream.URL == "" {
		c.Stream.URL = c.API.BaseURL + "/stream"
	}
	if c.ListenAddress == "" {
		c.ListenAddress = ":8080"
	}
	if c.PrefsPath == "" {
		c.PrefsPath = "vagkoll.db"
	}
	if c.PageSize == 0 {
		c.PageSize = DefaultPageSize
	}
	if c.RefreshRate == 0 {
		c.RefreshRate = 30
	}
	return &c, nil
}

// BuildStream constructs the configured live transport.
func (c *Config) BuildStream(clientID string) (LiveStream, error) {
	switch c.Stream.Kind {
	case "sse":
		return NewSSEStream(c.Stream.URL), nil
	case "mqtt":
		return &MQTTStream{
			Host:     c.Stream.MQTTHost,
			User:     c.Stream.MQTTUser,
			Pass:     c.Stream.MQTTPass,
			ClientID: clientID,
			Topic:    c.Stream.MQTTTopic,
		}, nil
	default:
		return nil, fmt.Errorf("unknown stream kind %q", c.Stream.Kind)
	}
}
