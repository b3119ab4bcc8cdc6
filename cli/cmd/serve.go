package cmd

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/urfave/cli/v2"

	"github.com/pithecene-io/ferry/metrics"
)

// ServeCommand returns the serve command. It runs the host on stdin and
// stdout, or on a unix socket when --listen is set, until the peer closes
// the stream or the process is interrupted.
func ServeCommand() *cli.Command {
	flags := hostFlags()
	flags = append(flags,
		&cli.StringFlag{Name: "listen", Usage: "Serve on this unix socket instead of stdin/stdout"},
		&cli.IntFlag{Name: "max-in-flight", Usage: "Concurrent calls per connection"},
		&cli.IntFlag{Name: "compress-threshold", Usage: "Compress replies of at least this many bytes"},
		&cli.StringFlag{Name: "metrics-listen", Usage: "Serve Prometheus metrics on this address"},
	)
	return &cli.Command{
		Name:   "serve",
		Usage:  "Serve FileSelectorApi calls",
		Flags:  flags,
		Action: serveAction,
	}
}

func serveAction(c *cli.Context) error {
	cfg, err := loadConfig(c)
	if err != nil {
		return cli.Exit(err.Error(), exitUsage)
	}
	logger, closeLog, err := buildLogger(cfg, c.App.ErrWriter)
	if err != nil {
		return cli.Exit(err.Error(), exitUsage)
	}
	defer closeLog()

	ctx, stop := signal.NotifyContext(c.Context, os.Interrupt, syscall.SIGTERM)
	defer stop()

	collector := metrics.NewCollector(namespace(cfg), "command", storageBackendName(cfg))
	host, err := buildHost(ctx, cfg, buildPicker(cfg), logger, collector)
	if err != nil {
		return cli.Exit(err.Error(), exitUsage)
	}
	defer func() { _ = host.Close() }()

	metricsDone := make(chan error, 1)
	if addr := cfg.Metrics.Listen; addr != "" {
		go func() { metricsDone <- metrics.Serve(ctx, addr, collector, nil) }()
		logger.Info("metrics listening", map[string]any{"addr": addr})
	} else {
		metricsDone <- nil
	}

	where := "stdio"
	if cfg.IPC.Listen != "" {
		where = cfg.IPC.Listen
	}
	logger.Sugar().Infof("session %s serving %s on %s", logger.Meta().SessionID, host.Namespace(), where)
	if cfg.IPC.Listen != "" {
		err = host.ServeUnix(ctx, cfg.IPC.Listen, nil)
	} else {
		err = host.ServeStream(ctx, c.App.Reader, c.App.Writer)
	}
	stop()
	if merr := <-metricsDone; merr != nil {
		logger.Warn("metrics server stopped", map[string]any{"error": merr.Error()})
	}

	if err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("host stopped", map[string]any{"error": err.Error()})
		return cli.Exit(err.Error(), exitFailure)
	}
	logger.Info("host stopped", nil)
	return nil
}
