package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Web      WebConfig      `yaml:"web" json:"web"`
	Database DatabaseConfig `yaml:"database" json:"database"`
	Redis    RedisConfig    `yaml:"redis" json:"redis"`
	Node     NodeConfig     `yaml:"node" json:"node"`
	Audit    AuditConfig    `yaml:"audit" json:"audit"`
	Events   EventsConfig   `yaml:"events" json:"events"`
	Access   AccessConfig   `yaml:"access" json:"access"`
}

type WebConfig struct {
	Host string `yaml:"host" json:"host"`
	Port int    `yaml:"port" json:"port"`
}

type DatabaseConfig struct {
	Host     string `yaml:"host" json:"host"`
	Port     int    `yaml:"port" json:"port"`
	Database string `yaml:"database" json:"database"`
	User     string `yaml:"user" json:"user"`
	Password string `yaml:"password" json:"password"`
	SSLMode  string `yaml:"sslmode" json:"sslmode"`
	MaxConns int    `yaml:"max_conns" json:"max_conns"`
}

type RedisConfig struct {
	Address  string `yaml:"address" json:"address"`
	Password string `yaml:"password" json:"password"`
	DB       int    `yaml:"db" json:"db"`
}

// NodeConfig governs outbound calls to vision nodes and the liveness poller.
// PollInterval is the contract value: the poller re-arms this long after each
// completed cycle.
type NodeConfig struct {
	Port          int      `yaml:"port" json:"port"`
	PollInterval  Duration `yaml:"poll_interval" json:"poll_interval"`
	ProbeAttempts int      `yaml:"probe_attempts" json:"probe_attempts"`
	ProbeDelay    Duration `yaml:"probe_delay" json:"probe_delay"`
	Timeout       Duration `yaml:"timeout" json:"timeout"`
}

type AuditConfig struct {
	Dir string `yaml:"dir" json:"dir"`
}

type EventsConfig struct {
	Backend       string   `yaml:"backend" json:"backend"` // kafka, mqtt or none
	Brokers       []string `yaml:"brokers" json:"brokers"`
	BrokerURL     string   `yaml:"broker_url" json:"broker_url"`
	ClientID      string   `yaml:"client_id" json:"client_id"`
	Topic         string   `yaml:"topic" json:"topic"`
	OutboxPath    string   `yaml:"outbox_path" json:"outbox_path"`
	DrainInterval Duration `yaml:"drain_interval" json:"drain_interval"`
}

type AccessConfig struct {
	AllowedIPs  []string `yaml:"allowed_ips" json:"allowedIps"`
	CORSOrigins []string `yaml:"cors_origins" json:"corsIps"`
}

// Load reads a config file and applies defaults. The extension selects the
// format: .json for deployed config documents, .yaml/.yml otherwise.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	cfg := &Config{}
	switch filepath.Ext(path) {
	case ".json":
		if err := json.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	default:
		return nil, fmt.Errorf("unsupported config format: %s", path)
	}

	cfg.applyDefaults()
	return cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Web.Host == "" {
		c.Web.Host = "0.0.0.0"
	}
	if c.Web.Port == 0 {
		c.Web.Port = 3000
	}
	if c.Database.Host == "" {
		c.Database.Host = "localhost"
	}
	if c.Database.Port == 0 {
		c.Database.Port = 5432
	}
	if c.Database.SSLMode == "" {
		c.Database.SSLMode = "disable"
	}
	if c.Database.MaxConns == 0 {
		c.Database.MaxConns = 10
	}
	if c.Redis.Address == "" {
		c.Redis.Address = "localhost:6379"
	}
	if c.Node.Port == 0 {
		c.Node.Port = 2500
	}
	if c.Node.PollInterval == 0 {
		c.Node.PollInterval = Duration(30 * time.Second)
	}
	if c.Node.ProbeAttempts == 0 {
		c.Node.ProbeAttempts = 3
	}
	if c.Node.ProbeDelay == 0 {
		c.Node.ProbeDelay = Duration(5 * time.Second)
	}
	if c.Node.Timeout == 0 {
		c.Node.Timeout = Duration(10 * time.Second)
	}
	if c.Audit.Dir == "" {
		c.Audit.Dir = "logs"
	}
	if c.Events.Backend == "" {
		c.Events.Backend = "none"
	}
	if c.Events.ClientID == "" {
		c.Events.ClientID = "visionlink"
	}
	if c.Events.Topic == "" {
		c.Events.Topic = "visionlink.events"
	}
	if c.Events.OutboxPath == "" {
		c.Events.OutboxPath = "visionlink-outbox.db"
	}
	if c.Events.DrainInterval == 0 {
		c.Events.DrainInterval = Duration(5 * time.Second)
	}
}
