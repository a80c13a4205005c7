package config

import (
	"os"
	"sync"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the top-level application configuration.
type Config struct {
	mu sync.Mutex `yaml:"-"`

	Namespace    string `yaml:"namespace"`
	LineID       string `yaml:"line_id"`
	DatabasePath string `yaml:"database_path"`

	Backend   BackendConfig   `yaml:"backend"`
	Scale     ScaleConfig     `yaml:"scale"`
	Dosing    DosingConfig    `yaml:"dosing"`
	Web       WebConfig       `yaml:"web"`
	Messaging MessagingConfig `yaml:"messaging"`
}

// BackendConfig defines the remote dosing backend connection.
type BackendConfig struct {
	URL       string        `yaml:"url"        json:"url"`
	EventsURL string        `yaml:"events_url" json:"events_url"`
	Token     string        `yaml:"token"      json:"-"`
	Timeout   time.Duration `yaml:"timeout"    json:"timeout"`
}

// ScaleConfig defines the live-weight stream settings.
type ScaleConfig struct {
	StreamURL string `yaml:"stream_url" json:"stream_url"`
	Enabled   bool   `yaml:"enabled"    json:"enabled"`
}

// DosingConfig defines the orchestrator timing parameters.
type DosingConfig struct {
	PollInterval       time.Duration `yaml:"poll_interval"`
	MismatchDelay      time.Duration `yaml:"mismatch_delay"`
	OverweightInterval time.Duration `yaml:"overweight_interval"`
	OverweightTimeout  time.Duration `yaml:"overweight_timeout"`
}

// WebConfig defines the web server settings.
type WebConfig struct {
	Host          string `yaml:"host"`
	Port          int    `yaml:"port"`
	SessionSecret string `yaml:"session_secret"`
}

// MessagingConfig defines the messaging backend.
type MessagingConfig struct {
	Backend             string        `yaml:"backend"` // "mqtt" or "kafka"
	MQTT                MQTTConfig    `yaml:"mqtt"`
	Kafka               KafkaConfig   `yaml:"kafka"`
	ReportsTopic        string        `yaml:"reports_topic"`
	OutboxDrainInterval time.Duration `yaml:"outbox_drain_interval"`
	NodeID              string        `yaml:"node_id"`
}

// MQTTConfig defines MQTT broker settings.
type MQTTConfig struct {
	Broker   string `yaml:"broker"`
	Port     int    `yaml:"port"`
	ClientID string `yaml:"client_id"`
}

// KafkaConfig defines Kafka broker settings.
type KafkaConfig struct {
	Brokers []string `yaml:"brokers"`
}

// Defaults returns a Config with sane defaults.
func Defaults() *Config {
	return &Config{
		Namespace:    "plant-a",
		LineID:       "dosing-1",
		DatabasePath: "doseedge.db",
		Backend: BackendConfig{
			URL:       "http://127.0.0.1:5000",
			EventsURL: "ws://127.0.0.1:5000/events",
			Timeout:   10 * time.Second,
		},
		Scale: ScaleConfig{
			StreamURL: "http://127.0.0.1:5000/api/scale/live-weight",
			Enabled:   true,
		},
		Dosing: DosingConfig{
			PollInterval:       time.Second,
			MismatchDelay:      2 * time.Second,
			OverweightInterval: 3 * time.Second,
			OverweightTimeout:  2 * time.Minute,
		},
		Web: WebConfig{
			Host: "0.0.0.0",
			Port: 8082,
		},
		Messaging: MessagingConfig{
			Backend:             "mqtt",
			ReportsTopic:        "doseedge/reports",
			OutboxDrainInterval: 5 * time.Second,
			MQTT: MQTTConfig{
				Broker: "localhost",
				Port:   1883,
			},
		},
	}
}

// Load reads a YAML config file. If the file doesn't exist, defaults are used.
func Load(path string) (*Config, error) {
	cfg := Defaults()
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, err
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Save writes the config to a YAML file.
func (c *Config) Save(path string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	data, err := yaml.Marshal(c)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

// NodeID returns the configured node ID, or derives one from namespace.line_id.
func (c *Config) NodeID() string {
	if c.Messaging.NodeID != "" {
		return c.Messaging.NodeID
	}
	return c.Namespace + "." + c.LineID
}

// StationID identifies this workstation in outbound messages.
func (c *Config) StationID() string {
	return c.NodeID()
}

// Lock acquires the config mutex for multi-step mutations.
func (c *Config) Lock() { c.mu.Lock() }

// Unlock releases the config mutex.
func (c *Config) Unlock() { c.mu.Unlock() }
