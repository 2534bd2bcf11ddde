package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
)

type Config struct {
	Version       int           `toml:"version"`
	Workspace     Workspace     `toml:"workspace"`
	Scheduler     Scheduler     `toml:"scheduler"`
	Storage       Storage       `toml:"storage"`
	Resolution    Resolution    `toml:"resolution"`
	Watch         Watch         `toml:"watch"`
	Observability Observability `toml:"observability"`
}

type Workspace struct {
	// Roots are the source directories scanned for Apex classes and
	// triggers on startup.
	Roots   []string `toml:"roots"`
	Exclude []string `toml:"exclude"` // glob patterns
}

type Scheduler struct {
	Workers        int           `toml:"workers"`
	TaskTimeout    time.Duration `toml:"task_timeout"`
	MaxRetries     int           `toml:"max_retries"`
	BackgroundRate float64       `toml:"background_rate"` // task starts per second, 0 = unlimited
}

type Storage struct {
	Driver string `toml:"driver"` // memory or sqlite
	Path   string `toml:"path"`
}

type Resolution struct {
	DefaultDetail string `toml:"default_detail"` // public_api, protected, private, full
}

type Watch struct {
	Enabled  bool          `toml:"enabled"`
	Debounce time.Duration `toml:"debounce"`
}

type Observability struct {
	Address      string `toml:"address"` // metrics/health listen address, empty disables
	OTLPEndpoint string `toml:"otlp_endpoint"`
}

func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var cfg Config
	if _, err := toml.Decode(string(data), &cfg); err != nil {
		return nil, err
	}

	applyDefaults(&cfg)
	if err := Validate(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	cfg := &Config{}
	applyDefaults(cfg)
	return cfg
}

func applyDefaults(cfg *Config) {
	if cfg.Version == 0 {
		cfg.Version = 1
	}
	if len(cfg.Workspace.Roots) == 0 {
		cfg.Workspace.Roots = []string{"."}
	}
	if len(cfg.Workspace.Exclude) == 0 {
		cfg.Workspace.Exclude = []string{"**/.sfdx/**", "**/node_modules/**"}
	}
	if cfg.Scheduler.Workers <= 0 {
		cfg.Scheduler.Workers = 4
	}
	if cfg.Scheduler.TaskTimeout <= 0 {
		cfg.Scheduler.TaskTimeout = 30 * time.Second
	}
	if cfg.Scheduler.MaxRetries < 0 {
		cfg.Scheduler.MaxRetries = 0
	}
	if cfg.Scheduler.MaxRetries == 0 {
		cfg.Scheduler.MaxRetries = 2
	}
	if strings.TrimSpace(cfg.Storage.Driver) == "" {
		cfg.Storage.Driver = "memory"
	}
	if strings.TrimSpace(cfg.Resolution.DefaultDetail) == "" {
		cfg.Resolution.DefaultDetail = "public_api"
	}
	if cfg.Watch.Debounce == 0 {
		cfg.Watch.Debounce = 500 * time.Millisecond
	}
}

func Validate(cfg *Config) error {
	if cfg.Version != 1 {
		return fmt.Errorf("unsupported config version %d; supported version is 1", cfg.Version)
	}

	for i, root := range cfg.Workspace.Roots {
		if strings.TrimSpace(root) == "" {
			return fmt.Errorf("workspace.roots[%d] must not be empty", i)
		}
	}

	if cfg.Scheduler.Workers < 1 || cfg.Scheduler.Workers > 64 {
		return fmt.Errorf("scheduler.workers must be between 1 and 64, got %d", cfg.Scheduler.Workers)
	}
	if cfg.Scheduler.BackgroundRate < 0 {
		return fmt.Errorf("scheduler.background_rate must not be negative")
	}

	driver := strings.ToLower(strings.TrimSpace(cfg.Storage.Driver))
	if driver != "memory" && driver != "sqlite" {
		return fmt.Errorf("storage.driver must be one of: memory, sqlite")
	}
	if driver == "sqlite" && strings.TrimSpace(cfg.Storage.Path) == "" {
		return fmt.Errorf("storage.path must be set when storage.driver is sqlite")
	}

	switch strings.ToLower(strings.TrimSpace(cfg.Resolution.DefaultDetail)) {
	case "public_api", "protected", "private", "full":
	default:
		return fmt.Errorf("resolution.default_detail must be one of: public_api, protected, private, full")
	}

	return nil
}
