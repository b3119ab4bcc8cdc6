package cmd

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/justapithecus/lode/lode"
	"github.com/urfave/cli/v2"

	"github.com/pithecene-io/ferry/cli/config"
	"github.com/pithecene-io/ferry/log"
	"github.com/pithecene-io/ferry/metrics"
	"github.com/pithecene-io/ferry/notify"
	"github.com/pithecene-io/ferry/notify/redis"
	"github.com/pithecene-io/ferry/notify/webhook"
	"github.com/pithecene-io/ferry/picker"
	"github.com/pithecene-io/ferry/runtime"
	"github.com/pithecene-io/ferry/storage"
)

// loadConfig reads --config when set, applies flag overrides and
// validates the result.
func loadConfig(c *cli.Context) (*config.Config, error) {
	cfg := &config.Config{}
	if path := c.String("config"); path != "" {
		loaded, err := config.Load(path)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	}
	applyFlags(c, cfg)
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// applyFlags overwrites config values with explicitly set flags.
func applyFlags(c *cli.Context, cfg *config.Config) {
	setString := func(name string, dst *string) {
		if c.IsSet(name) {
			*dst = c.String(name)
		}
	}
	setBool := func(name string, dst *bool) {
		if c.IsSet(name) {
			*dst = c.Bool(name)
		}
	}
	setInt := func(name string, dst *int) {
		if c.IsSet(name) {
			*dst = c.Int(name)
		}
	}

	setString("namespace", &cfg.Namespace)
	setString("log-level", &cfg.Log.Level)
	setString("log-file", &cfg.Log.File)
	setString("listen", &cfg.IPC.Listen)
	setInt("max-in-flight", &cfg.IPC.MaxInFlight)
	setInt("compress-threshold", &cfg.IPC.CompressThreshold)
	if c.IsSet("picker-timeout") {
		cfg.Picker.Timeout.Duration = c.Duration("picker-timeout")
	}
	setInt("max-media-count", &cfg.Picker.MaxMediaCount)
	if c.IsSet("max-file-size") {
		cfg.Materialize.MaxSize = c.Int64("max-file-size")
	}
	setString("storage-backend", &cfg.Storage.Backend)
	setString("storage-path", &cfg.Storage.Path)
	setString("storage-region", &cfg.Storage.Region)
	setString("storage-endpoint", &cfg.Storage.Endpoint)
	setBool("s3-path-style", &cfg.Storage.S3PathStyle)
	setBool("archive", &cfg.Archive.Enabled)
	setBool("history", &cfg.Archive.History)
	setString("notify", &cfg.Notify.Type)
	setString("notify-url", &cfg.Notify.URL)
	setString("notify-channel", &cfg.Notify.Channel)
	setString("metrics-listen", &cfg.Metrics.Listen)
}

// namespace returns the configured namespace or the default.
func namespace(cfg *config.Config) string {
	if cfg.Namespace != "" {
		return cfg.Namespace
	}
	return "dev.flutter.pigeon"
}

// buildLogger creates the session logger. Logs go to stderr unless a log
// file is configured; stdout may be the transport.
func buildLogger(cfg *config.Config, stderr io.Writer) (*log.Logger, func(), error) {
	level, err := log.ParseLevel(cfg.Log.Level)
	if err != nil {
		return nil, nil, err
	}
	out, closeOut := stderr, func() {}
	if cfg.Log.File != "" {
		f, err := os.OpenFile(cfg.Log.File, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
		if err != nil {
			return nil, nil, fmt.Errorf("open log file: %w", err)
		}
		out, closeOut = f, func() { _ = f.Close() }
	}
	logger := log.NewLogger(log.NewSessionMeta(namespace(cfg)), log.WithWriter(out), log.WithLevel(level))
	return logger, func() {
		_ = logger.Sync()
		closeOut()
	}, nil
}

// buildPicker wraps the configured helper processes in the picker timeout.
func buildPicker(cfg *config.Config) picker.Picker {
	return picker.WithTimeout(picker.NewCommand(cfg.Picker.Commands()), cfg.Picker.Timeout.Duration)
}

// buildStore opens the configured store, or returns nil when none is set.
func buildStore(ctx context.Context, cfg *config.Config) (lode.StoreFactory, error) {
	if cfg.Storage.Backend == "" {
		return nil, nil
	}
	return storage.Open(ctx, cfg.Storage.StorageConfig())
}

// buildNotifier creates the configured notifier, or returns nil.
func buildNotifier(cfg *config.Config) (notify.Notifier, error) {
	n := cfg.Notify
	switch n.Type {
	case "":
		return nil, nil
	case config.NotifyRedis:
		retries := redis.DefaultRetries
		if n.Retries != nil {
			retries = *n.Retries
		}
		return redis.New(redis.Config{URL: n.URL, Channel: n.Channel, Timeout: n.Timeout.Duration, Retries: retries})
	case config.NotifyWebhook:
		retries := webhook.DefaultRetries
		if n.Retries != nil {
			retries = *n.Retries
		}
		return webhook.New(webhook.Config{URL: n.URL, Headers: n.Headers, Timeout: n.Timeout.Duration, Retries: retries})
	default:
		return nil, fmt.Errorf("unknown notifier type %q", n.Type)
	}
}

// storageBackendName labels metrics with the store in use.
func storageBackendName(cfg *config.Config) string {
	if cfg.Storage.Backend == "" {
		return "none"
	}
	return cfg.Storage.Backend
}

// buildHost assembles the host described by cfg around p.
func buildHost(ctx context.Context, cfg *config.Config, p picker.Picker, logger *log.Logger, collector *metrics.Collector) (*runtime.Host, error) {
	store, err := buildStore(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("open storage: %w", err)
	}
	notifier, err := buildNotifier(cfg)
	if err != nil {
		return nil, fmt.Errorf("create notifier: %w", err)
	}
	host, err := runtime.NewHost(runtime.HostConfig{
		Namespace:         cfg.Namespace,
		Picker:            p,
		MaxMediaCount:     cfg.Picker.MaxMediaCount,
		MaxFileSize:       cfg.Materialize.MaxSize,
		Store:             store,
		Archive:           cfg.Archive.Enabled,
		History:           cfg.Archive.History,
		Notifier:          notifier,
		MaxInFlight:       cfg.IPC.MaxInFlight,
		CompressThreshold: cfg.IPC.CompressThreshold,
		Logger:            logger,
		Collector:         collector,
	})
	if err != nil {
		if notifier != nil {
			_ = notifier.Close()
		}
		return nil, err
	}
	return host, nil
}
