package config

import (
	"errors"
	"fmt"
	"os"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// PlayMode selects where asset packages come from
type PlayMode string

const (
	PlayModeEditorSimulate PlayMode = "editor_simulate"
	PlayModeOffline        PlayMode = "offline"
	PlayModeHost           PlayMode = "host"
)

// Platform names accepted in host URL templates
var Platforms = []string{"Android", "IPhone", "WebGL", "PC", "Windows", "Linux", "Mac"}

var ErrInvalid = errors.New("invalid configuration")

// Config is the bootstrap configuration of a flowhost process
type Config struct {
	Engine  Engine  `yaml:"engine"`
	Log     Log     `yaml:"log"`
	Assets  Assets  `yaml:"assets"`
	Audio   Audio   `yaml:"audio"`
	Tracing Tracing `yaml:"tracing"`
}

type Engine struct {
	TickInterval time.Duration `yaml:"tick_interval"`
}

type Log struct {
	Level string `yaml:"level"`
	// File, when set, receives JSON logs instead of the console
	File string `yaml:"file"`
}

// Assets configures the package bootstrap
type Assets struct {
	DefaultPackage     string   `yaml:"default_package"`
	PlayMode           PlayMode `yaml:"play_mode"`
	HostServer         string   `yaml:"host_server"`
	FallbackHostServer string   `yaml:"fallback_host_server"`
	Version            string   `yaml:"version"`
	Platform           string   `yaml:"platform"`
	// Root is the local directory packages are read from in editor and offline modes
	Root string `yaml:"root"`
}

// Audio configures sound output; disabled means muted, not absent
type Audio struct {
	Enabled bool    `yaml:"enabled"`
	Volume  float64 `yaml:"volume"`
}

type Tracing struct {
	Enabled bool `yaml:"enabled"`
	// Output is "stdout", "stderr" or a file path
	Output string `yaml:"output"`
}

// Default returns the configuration used for missing fields
func Default() *Config {
	return &Config{
		Engine: Engine{
			TickInterval: 16 * time.Millisecond,
		},
		Log: Log{
			Level: "info",
		},
		Assets: Assets{
			DefaultPackage:     "DefaultPackage",
			PlayMode:           PlayModeEditorSimulate,
			HostServer:         "http://127.0.0.1",
			FallbackHostServer: "http://127.0.0.1",
			Version:            "v1.0",
			Platform:           "PC",
			Root:               "assets",
		},
		Audio: Audio{
			Enabled: false,
			Volume:  0.8,
		},
		Tracing: Tracing{
			Enabled: false,
			Output:  "stderr",
		},
	}
}

// Load reads a YAML file over the defaults, applies TICKFLOW_* environment
// overrides and validates. An empty path yields defaults plus environment
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("yaml unmarshal %s: %w", path, err)
		}
	}

	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadDotEnv loads KEY=VALUE pairs from an env file into the process
// environment; a missing file is not an error
func LoadDotEnv(file string) error {
	if file == "" {
		return nil
	}
	if err := godotenv.Load(file); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("load env file %s: %w", file, err)
	}
	return nil
}

// applyEnv overrides fields from TICKFLOW_* variables
func (c *Config) applyEnv() error {
	if v := os.Getenv("TICKFLOW_TICK_INTERVAL"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("TICKFLOW_TICK_INTERVAL: %w", err)
		}
		c.Engine.TickInterval = d
	}
	if v := os.Getenv("TICKFLOW_LOG_LEVEL"); v != "" {
		c.Log.Level = v
	}
	if v := os.Getenv("TICKFLOW_LOG_FILE"); v != "" {
		c.Log.File = v
	}
	if v := os.Getenv("TICKFLOW_PLAY_MODE"); v != "" {
		c.Assets.PlayMode = PlayMode(v)
	}
	if v := os.Getenv("TICKFLOW_HOST_SERVER"); v != "" {
		c.Assets.HostServer = v
	}
	if v := os.Getenv("TICKFLOW_ASSET_VERSION"); v != "" {
		c.Assets.Version = v
	}
	if v := os.Getenv("TICKFLOW_PLATFORM"); v != "" {
		c.Assets.Platform = v
	}
	if v := os.Getenv("TICKFLOW_AUDIO"); v != "" {
		on, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("TICKFLOW_AUDIO: %w", err)
		}
		c.Audio.Enabled = on
	}
	if v := os.Getenv("TICKFLOW_TRACING"); v != "" {
		on, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("TICKFLOW_TRACING: %w", err)
		}
		c.Tracing.Enabled = on
	}
	return nil
}

// Validate rejects values the runtime cannot start with
func (c *Config) Validate() error {
	var errs []error
	if c.Engine.TickInterval <= 0 {
		errs = append(errs, fmt.Errorf("engine.tick_interval must be positive, got %s", c.Engine.TickInterval))
	}
	switch strings.ToLower(c.Log.Level) {
	case "trace", "debug", "info", "warn", "error", "disabled":
	default:
		errs = append(errs, fmt.Errorf("log.level must be one of trace, debug, info, warn, error, disabled, got %q", c.Log.Level))
	}
	switch c.Assets.PlayMode {
	case PlayModeEditorSimulate, PlayModeOffline, PlayModeHost:
	default:
		errs = append(errs, fmt.Errorf("assets.play_mode must be one of editor_simulate, offline, host, got %q", c.Assets.PlayMode))
	}
	if c.Assets.DefaultPackage == "" {
		errs = append(errs, errors.New("assets.default_package is required"))
	}
	if c.Assets.PlayMode == PlayModeHost {
		if c.Assets.HostServer == "" {
			errs = append(errs, errors.New("assets.host_server is required in host mode"))
		}
		if !slices.Contains(Platforms, c.Assets.Platform) {
			errs = append(errs, fmt.Errorf("assets.platform must be one of %s, got %q", strings.Join(Platforms, ", "), c.Assets.Platform))
		}
	}
	if c.Audio.Volume < 0 || c.Audio.Volume > 1 {
		errs = append(errs, fmt.Errorf("audio.volume must be within [0, 1], got %g", c.Audio.Volume))
	}
	if len(errs) > 0 {
		return fmt.Errorf("%w: %w", ErrInvalid, errors.Join(errs...))
	}
	return nil
}
