package config

import (
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/vango-dev/pulse/internal/errors"
	"github.com/vango-dev/pulse/pkg/spring"
)

const (
	// DefaultFrameRate is the default frame cadence.
	DefaultFrameRate = 60

	// MaxFrameRate is the highest accepted frame cadence.
	MaxFrameRate = 1000

	// DefaultTransitionDuration is used by transitions that set none.
	DefaultTransitionDuration = "300ms"

	// DefaultInspectorAddr is the inspector's default listen address.
	DefaultInspectorAddr = ":7070"

	// DefaultHistorySize is the default number of events kept by the
	// inspector.
	DefaultHistorySize = 512

	// DefaultNamespace is the default Prometheus namespace.
	DefaultNamespace = "pulse"
)

// FileNames are the configuration files Load looks for, in order.
var FileNames = []string{"pulse.yaml", "pulse.yml", "pulse.json"}

// Config is the complete pulse configuration.
type Config struct {
	// FrameRate is the frame cadence in frames per second.
	FrameRate float64 `json:"frameRate" yaml:"frameRate"`

	// MaxFlushPasses bounds how often one component may update in a
	// single flush. Zero means unlimited.
	MaxFlushPasses int `json:"maxFlushPasses" yaml:"maxFlushPasses"`

	// Debug enables duplicate key checks in keyed lists.
	Debug bool `json:"debug" yaml:"debug"`

	// LogLevel is one of debug, info, warn or error.
	LogLevel string `json:"logLevel,omitempty" yaml:"logLevel,omitempty"`

	// Spring is the default spring configuration.
	Spring spring.Config `json:"spring" yaml:"spring"`

	// Transition contains transition defaults.
	Transition TransitionConfig `json:"transition" yaml:"transition"`

	// Inspector contains inspector server settings.
	Inspector InspectorConfig `json:"inspector" yaml:"inspector"`

	// Metrics contains Prometheus settings.
	Metrics MetricsConfig `json:"metrics" yaml:"metrics"`

	// Capture contains capture export settings.
	Capture CaptureConfig `json:"capture,omitempty" yaml:"capture,omitempty"`

	// configPath stores the path where the config was loaded from.
	configPath string
}

// TransitionConfig contains transition defaults.
type TransitionConfig struct {
	// Duration is the default transition duration (e.g., "300ms").
	Duration string `json:"duration" yaml:"duration"`
}

// InspectorConfig contains inspector server settings.
type InspectorConfig struct {
	// Enabled starts the inspector with the runtime.
	Enabled bool `json:"enabled" yaml:"enabled"`

	// Addr is the listen address.
	Addr string `json:"addr" yaml:"addr"`

	// HistorySize is the number of events kept for replay.
	HistorySize int `json:"historySize" yaml:"historySize"`

	// FrameEvents records an event for every frame.
	FrameEvents bool `json:"frameEvents,omitempty" yaml:"frameEvents,omitempty"`
}

// MetricsConfig contains Prometheus settings.
type MetricsConfig struct {
	// Namespace is the metrics namespace.
	Namespace string `json:"namespace" yaml:"namespace"`
}

// CaptureConfig contains capture export settings. S3Bucket takes
// precedence over Dir.
type CaptureConfig struct {
	Dir        string `json:"dir,omitempty" yaml:"dir,omitempty"`
	S3Bucket   string `json:"s3Bucket,omitempty" yaml:"s3Bucket,omitempty"`
	S3Prefix   string `json:"s3Prefix,omitempty" yaml:"s3Prefix,omitempty"`
	S3Region   string `json:"s3Region,omitempty" yaml:"s3Region,omitempty"`
	S3Endpoint string `json:"s3Endpoint,omitempty" yaml:"s3Endpoint,omitempty"`
}

// New creates a new Config with default values.
func New() *Config {
	return &Config{
		FrameRate: DefaultFrameRate,
		LogLevel:  "info",
		Spring:    spring.DefaultConfig(),
		Transition: TransitionConfig{
			Duration: DefaultTransitionDuration,
		},
		Inspector: InspectorConfig{
			Addr:        DefaultInspectorAddr,
			HistorySize: DefaultHistorySize,
		},
		Metrics: MetricsConfig{
			Namespace: DefaultNamespace,
		},
	}
}

// Load reads the first configuration file found in dir.
func Load(dir string) (*Config, error) {
	for _, name := range FileNames {
		p := filepath.Join(dir, name)
		if _, err := os.Stat(p); err == nil {
			return LoadFile(p)
		}
	}
	return nil, errors.New("E121").
		WithDetail("No pulse.yaml or pulse.json found in " + dir).
		WithSuggestion("Run 'pulse config init' to write a default configuration")
}

// LoadFile reads configuration from the specified file path. The format
// is chosen by extension.
func LoadFile(path string) (*Config, error) {
	format, err := formatOf(path)
	if err != nil {
		return nil, err
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.New("E121").
				WithDetail("No configuration at " + path)
		}
		return nil, errors.New("E120").Wrap(err)
	}

	cfg := New()
	switch format {
	case "yaml":
		err = yaml.Unmarshal(data, cfg)
	default:
		err = json.Unmarshal(data, cfg)
	}
	if err != nil {
		return nil, errors.New("E120").
			WithDetail("Failed to parse " + filepath.Base(path) + ": " + err.Error())
	}

	cfg.configPath = path
	cfg.applyDefaults()

	return cfg, nil
}

// Save writes the configuration to the file it was loaded from.
func (c *Config) Save() error {
	if c.configPath == "" {
		return errors.Newf(errors.CategoryConfig, "no config path set")
	}
	return c.SaveTo(c.configPath)
}

// SaveTo writes the configuration to the specified path, as YAML or JSON
// depending on its extension.
func (c *Config) SaveTo(path string) error {
	format, err := formatOf(path)
	if err != nil {
		return err
	}

	var data []byte
	switch format {
	case "yaml":
		data, err = yaml.Marshal(c)
	default:
		data, err = json.MarshalIndent(c, "", "  ")
		data = append(data, '\n')
	}
	if err != nil {
		return errors.New("E120").Wrap(err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return errors.New("E120").Wrap(err)
	}

	c.configPath = path
	return nil
}

// Path returns the path where the config was loaded from.
func (c *Config) Path() string {
	return c.configPath
}

// applyDefaults fills in default values for empty fields.
func (c *Config) applyDefaults() {
	if c.FrameRate == 0 {
		c.FrameRate = DefaultFrameRate
	}
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
	if c.Spring == (spring.Config{}) {
		c.Spring = spring.DefaultConfig()
	}
	if c.Transition.Duration == "" {
		c.Transition.Duration = DefaultTransitionDuration
	}
	if c.Inspector.Addr == "" {
		c.Inspector.Addr = DefaultInspectorAddr
	}
	if c.Inspector.HistorySize == 0 {
		c.Inspector.HistorySize = DefaultHistorySize
	}
	if c.Metrics.Namespace == "" {
		c.Metrics.Namespace = DefaultNamespace
	}
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	if c.FrameRate < 1 || c.FrameRate > MaxFrameRate {
		return errors.New("E122").
			WithDetailf("frameRate is %v", c.FrameRate)
	}
	if c.MaxFlushPasses < 0 {
		return errors.New("E123").
			WithDetail("maxFlushPasses must not be negative")
	}
	if err := c.Spring.Validate(); err != nil {
		return err
	}
	if _, err := c.TransitionDuration(); err != nil {
		return errors.New("E120").
			WithDetail("transition.duration: " + err.Error())
	}
	if c.Inspector.HistorySize < 0 {
		return errors.New("E120").
			WithDetail("inspector.historySize must not be negative")
	}
	if _, err := c.Level(); err != nil {
		return errors.New("E120").
			WithDetail("logLevel: " + err.Error())
	}
	return nil
}

// TransitionDuration parses Transition.Duration.
func (c *Config) TransitionDuration() (time.Duration, error) {
	d, err := time.ParseDuration(c.Transition.Duration)
	if err != nil {
		return 0, err
	}
	if d < 0 {
		return 0, errors.Newf(errors.CategoryConfig, "negative duration %s", c.Transition.Duration)
	}
	return d, nil
}

// Level parses LogLevel.
func (c *Config) Level() (slog.Level, error) {
	var level slog.Level
	err := level.UnmarshalText([]byte(c.LogLevel))
	return level, err
}

func formatOf(path string) (string, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return "yaml", nil
	case ".json":
		return "json", nil
	default:
		return "", errors.New("E124").
			WithDetail("Unsupported extension for " + filepath.Base(path)).
			WithSuggestion("Use a .yaml, .yml or .json file")
	}
}
