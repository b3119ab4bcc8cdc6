package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/pithecene-io/ferry/log"
	"github.com/pithecene-io/ferry/picker"
	"github.com/pithecene-io/ferry/storage"
)

// Config represents a ferry.yaml configuration file.
// All values are optional and act as defaults for ferry flags.
// CLI flags always override config values.
type Config struct {
	Namespace   string            `yaml:"namespace"`
	Log         LogConfig         `yaml:"log"`
	IPC         IPCConfig         `yaml:"ipc"`
	Picker      PickerConfig      `yaml:"picker"`
	Materialize MaterializeConfig `yaml:"materialize"`
	Storage     StorageConfig     `yaml:"storage"`
	Archive     ArchiveConfig     `yaml:"archive"`
	Notify      NotifyConfig      `yaml:"notify"`
	Metrics     MetricsConfig     `yaml:"metrics"`
}

// LogConfig holds logging defaults.
type LogConfig struct {
	Level string `yaml:"level"`
	// File receives log output instead of stderr.
	File string `yaml:"file"`
}

// IPCConfig holds transport defaults.
type IPCConfig struct {
	// Listen is a unix socket path; empty serves on stdin/stdout.
	Listen            string `yaml:"listen"`
	MaxInFlight       int    `yaml:"max_in_flight"`
	CompressThreshold int    `yaml:"compress_threshold"`
}

// PickerConfig configures the helper processes behind each picker mode.
type PickerConfig struct {
	Timeout       Duration       `yaml:"timeout"`
	MaxMediaCount int            `yaml:"max_media_count"`
	Media         *CommandConfig `yaml:"media"`
	Document      *CommandConfig `yaml:"document"`
	Directory     *CommandConfig `yaml:"directory"`
}

// CommandConfig is one helper process.
type CommandConfig struct {
	Path            string   `yaml:"path"`
	Args            []string `yaml:"args"`
	Env             []string `yaml:"env"`
	Output          string   `yaml:"output"`
	CancelExitCodes []int    `yaml:"cancel_exit_codes"`
}

// MaterializeConfig bounds file reads.
type MaterializeConfig struct {
	// MaxSize rejects files larger than this many bytes; 0 is unbounded.
	MaxSize int64 `yaml:"max_size"`
}

// StorageConfig holds the lode store used by the archive and store:// URIs.
type StorageConfig struct {
	Backend     string `yaml:"backend"`
	Path        string `yaml:"path"`
	Region      string `yaml:"region"`
	Endpoint    string `yaml:"endpoint"`
	S3PathStyle bool   `yaml:"s3_path_style"`
}

// ArchiveConfig enables persistence of completed calls.
type ArchiveConfig struct {
	Enabled bool `yaml:"enabled"`
	// History records every completion in the calls dataset.
	History bool `yaml:"history"`
}

// NotifyConfig holds completion notifier defaults.
type NotifyConfig struct {
	Type    string            `yaml:"type"`
	URL     string            `yaml:"url"`
	Channel string            `yaml:"channel,omitempty"`
	Headers map[string]string `yaml:"headers,omitempty"`
	Timeout Duration          `yaml:"timeout,omitempty"`
	Retries *int              `yaml:"retries,omitempty"`
}

// MetricsConfig holds the Prometheus listener address.
type MetricsConfig struct {
	Listen string `yaml:"listen"`
}

// Notifier types.
const (
	NotifyRedis   = "redis"
	NotifyWebhook = "webhook"
)

// Duration wraps time.Duration for YAML string parsing (e.g. "10s", "5m").
type Duration struct {
	time.Duration
}

// UnmarshalYAML parses a duration string like "10s" or "5m30s".
func (d *Duration) UnmarshalYAML(unmarshal func(any) error) error {
	var s string
	if err := unmarshal(&s); err != nil {
		return err
	}
	if s == "" {
		return nil
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", s, err)
	}
	d.Duration = parsed
	return nil
}

// Validate checks values that can be checked without touching the
// environment. Errors name the offending key.
func (c *Config) Validate() error {
	var errs []error
	if c.Log.Level != "" {
		if _, err := log.ParseLevel(c.Log.Level); err != nil {
			errs = append(errs, fmt.Errorf("log.level: %w", err))
		}
	}
	if c.IPC.MaxInFlight < 0 {
		errs = append(errs, fmt.Errorf("ipc.max_in_flight: must be >= 0, got %d", c.IPC.MaxInFlight))
	}
	if c.IPC.CompressThreshold < 0 {
		errs = append(errs, fmt.Errorf("ipc.compress_threshold: must be >= 0, got %d", c.IPC.CompressThreshold))
	}
	if c.Picker.Timeout.Duration < 0 {
		errs = append(errs, fmt.Errorf("picker.timeout: must be >= 0, got %s", c.Picker.Timeout))
	}
	if c.Picker.MaxMediaCount < 0 {
		errs = append(errs, fmt.Errorf("picker.max_media_count: must be >= 0, got %d", c.Picker.MaxMediaCount))
	}
	for name, cmd := range c.Picker.commands() {
		if cmd.Path == "" {
			errs = append(errs, fmt.Errorf("picker.%s.path: required", name))
		}
		switch picker.OutputFormat(cmd.Output) {
		case picker.OutputAuto, picker.OutputJSON, picker.OutputLines:
		default:
			errs = append(errs, fmt.Errorf("picker.%s.output: unknown format %q (want json or lines)", name, cmd.Output))
		}
	}
	if c.Materialize.MaxSize < 0 {
		errs = append(errs, fmt.Errorf("materialize.max_size: must be >= 0, got %d", c.Materialize.MaxSize))
	}
	if c.Storage.Backend != "" {
		sc := c.Storage.StorageConfig()
		if err := sc.Validate(); err != nil {
			errs = append(errs, fmt.Errorf("storage: %w", err))
		}
	}
	if c.Archive.Enabled && c.Storage.Backend == "" {
		errs = append(errs, errors.New("archive.enabled: requires storage.backend"))
	}
	switch c.Notify.Type {
	case "":
	case NotifyRedis, NotifyWebhook:
		if c.Notify.URL == "" {
			errs = append(errs, fmt.Errorf("notify.url: required for %s", c.Notify.Type))
		}
	default:
		errs = append(errs, fmt.Errorf("notify.type: unknown type %q (want redis or webhook)", c.Notify.Type))
	}
	if c.Notify.Retries != nil && *c.Notify.Retries < 0 {
		errs = append(errs, fmt.Errorf("notify.retries: must be >= 0, got %d", *c.Notify.Retries))
	}
	return errors.Join(errs...)
}

func (p *PickerConfig) commands() map[string]*CommandConfig {
	out := make(map[string]*CommandConfig, 3)
	if p.Media != nil {
		out[string(picker.ModeMedia)] = p.Media
	}
	if p.Document != nil {
		out[string(picker.ModeDocument)] = p.Document
	}
	if p.Directory != nil {
		out[string(picker.ModeDirectory)] = p.Directory
	}
	return out
}

// Commands converts the configured helpers into picker command configs.
func (p *PickerConfig) Commands() map[picker.Mode]picker.CommandConfig {
	out := make(map[picker.Mode]picker.CommandConfig, 3)
	for name, cmd := range p.commands() {
		out[picker.Mode(name)] = picker.CommandConfig{
			Path:            cmd.Path,
			Args:            cmd.Args,
			Env:             cmd.Env,
			Output:          picker.OutputFormat(cmd.Output),
			CancelExitCodes: cmd.CancelExitCodes,
		}
	}
	return out
}

// StorageConfig converts the section into a storage.Config. For s3 the
// path is "bucket/prefix".
func (s *StorageConfig) StorageConfig() storage.Config {
	cfg := storage.Config{Backend: storage.Backend(s.Backend), Path: s.Path}
	if cfg.Backend == storage.BackendS3 {
		bucket, prefix := storage.ParseS3Path(s.Path)
		cfg.S3 = storage.S3Config{
			Bucket:       bucket,
			Prefix:       prefix,
			Region:       s.Region,
			Endpoint:     s.Endpoint,
			UsePathStyle: s.S3PathStyle,
		}
	}
	return cfg
}
