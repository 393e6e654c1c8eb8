package config

import (
	"errors"
	"io/fs"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// EnvConfigPath names an explicit config file, checked before the search paths.
const EnvConfigPath = "VISITOR_CONSOLE_CONFIG"

// Config represents the application configuration
type Config struct {
	Server  ServerConfig  `yaml:"server"`
	Backend BackendConfig `yaml:"backend"`
	Console ConsoleConfig `yaml:"console"`

	// ConfigPath is the path to the config file (not serialized)
	ConfigPath string `yaml:"-"`
}

// ServerConfig represents the local console server configuration
type ServerConfig struct {
	Port int    `yaml:"port"`
	Host string `yaml:"host"`
}

// BackendConfig represents the visitor backend connection configuration
type BackendConfig struct {
	Endpoint     string        `yaml:"endpoint"` // base URL including the /api prefix
	Timeout      time.Duration `yaml:"timeout"`
	PollInterval time.Duration `yaml:"poll_interval"`
}

// ConsoleConfig tunes the operator console
type ConsoleConfig struct {
	// ShareBaseURL is the public origin used in QR share links.
	ShareBaseURL         string        `yaml:"share_base_url"`
	NotificationTTL      time.Duration `yaml:"notification_ttl"`
	NotificationCapacity int           `yaml:"notification_capacity"`
	LogCapacity          int           `yaml:"log_capacity"`
}

// Default returns the default configuration
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Port: 8080,
			Host: "0.0.0.0",
		},
		Backend: BackendConfig{
			Endpoint:     "http://localhost:5000/api",
			Timeout:      15 * time.Second,
			PollInterval: 30 * time.Second,
		},
		Console: ConsoleConfig{
			ShareBaseURL:         "http://localhost:5000",
			NotificationTTL:      3 * time.Second,
			NotificationCapacity: 50,
			LogCapacity:          500,
		},
	}
}

// searchPaths lists config locations in lookup order.
func searchPaths() []string {
	paths := []string{}
	if p := os.Getenv(EnvConfigPath); p != "" {
		paths = append(paths, p)
	}
	return append(paths,
		"config.yaml",
		"configs/config.yaml",
		"/etc/visitorconsole/config.yaml",
	)
}

// Load loads configuration from the first config file found
func Load() (*Config, error) {
	var data []byte
	var err error
	var loadedPath string

	for _, path := range searchPaths() {
		data, err = os.ReadFile(path)
		if err == nil {
			loadedPath = path
			break
		}
	}

	if err != nil {
		return nil, err
	}

	cfg, err := Parse(data)
	if err != nil {
		return nil, err
	}

	cfg.ConfigPath = loadedPath
	return cfg, nil
}

// LoadOrInit loads configuration like Load. When no config file exists it
// writes the defaults to path and reports created.
func LoadOrInit(path string) (cfg *Config, created bool, err error) {
	cfg, err = Load()
	if err == nil {
		return cfg, false, nil
	}
	if !errors.Is(err, fs.ErrNotExist) {
		return nil, false, err
	}
	cfg = Default()
	cfg.ConfigPath = path
	if err := cfg.Save(path); err != nil {
		return cfg, false, err
	}
	return cfg, true, nil
}

// Parse decodes YAML over the defaults, so omitted keys keep their default values.
func Parse(data []byte) (*Config, error) {
	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, err
	}
	cfg.normalize()
	return cfg, nil
}

func (c *Config) normalize() {
	d := Default()
	if c.Backend.PollInterval <= 0 {
		c.Backend.PollInterval = d.Backend.PollInterval
	}
	if c.Backend.Timeout <= 0 {
		c.Backend.Timeout = d.Backend.Timeout
	}
	if c.Console.NotificationTTL <= 0 {
		c.Console.NotificationTTL = d.Console.NotificationTTL
	}
	if c.Console.NotificationCapacity <= 0 {
		c.Console.NotificationCapacity = d.Console.NotificationCapacity
	}
	if c.Console.LogCapacity <= 0 {
		c.Console.LogCapacity = d.Console.LogCapacity
	}
}

// Save saves the configuration to a file
func (c *Config) Save(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return err
	}

	return os.WriteFile(path, data, 0644)
}
