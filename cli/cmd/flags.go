// Package cmd provides CLI commands for the ferry binary.
package cmd

import "github.com/urfave/cli/v2"

// Exit codes.
const (
	exitSuccess   = 0
	exitFailure   = 1 // the call failed or the host stopped with an error
	exitUsage     = 2 // invalid flags or configuration
	exitCancelled = 3 // the user cancelled the picker
)

// Shared flags for read-only commands.
var (
	// FormatFlag selects output format: json, table, yaml.
	FormatFlag = &cli.StringFlag{
		Name:    "format",
		Aliases: []string{"f"},
		Usage:   "Output format: json, table, yaml",
	}

	// NoColorFlag disables colored output.
	NoColorFlag = &cli.BoolFlag{
		Name:  "no-color",
		Usage: "Disable colored output",
	}

	// TUIFlag enables Bubble Tea interactive mode.
	// Only valid for decode and history.
	TUIFlag = &cli.BoolFlag{
		Name:  "tui",
		Usage: "Enable interactive TUI mode (decode, history only)",
	}

	// ConfigFlag points at a ferry.yaml file.
	ConfigFlag = &cli.StringFlag{
		Name:    "config",
		Aliases: []string{"c"},
		Usage:   "Path to ferry.yaml",
		EnvVars: []string{"FERRY_CONFIG"},
	}
)

// ReadOnlyFlags returns the shared flags for all read-only commands.
// Includes --tui so that unsupported commands can provide explicit error
// messages instead of generic "flag not defined" errors.
func ReadOnlyFlags() []cli.Flag {
	return []cli.Flag{
		FormatFlag,
		NoColorFlag,
		TUIFlag,
	}
}

// hostFlags configure the host built by serve and call. Each overrides the
// matching ferry.yaml key.
func hostFlags() []cli.Flag {
	return []cli.Flag{
		ConfigFlag,
		&cli.StringFlag{Name: "namespace", Usage: "Channel namespace (default dev.flutter.pigeon)"},
		&cli.StringFlag{Name: "log-level", Usage: "Log level: debug, info, warn, error"},
		&cli.StringFlag{Name: "log-file", Usage: "Write logs to this file instead of stderr"},
		&cli.DurationFlag{Name: "picker-timeout", Usage: "Fail picker invocations that take longer (0 waits forever)"},
		&cli.IntFlag{Name: "max-media-count", Usage: "Media picker limit for openFiles"},
		&cli.Int64Flag{Name: "max-file-size", Usage: "Reject files larger than this many bytes (0 is unbounded)"},
		&cli.StringFlag{Name: "storage-backend", Usage: "Store backend: fs, s3 or memory"},
		&cli.StringFlag{Name: "storage-path", Usage: "Store path (fs: directory, s3: bucket/prefix)"},
		&cli.StringFlag{Name: "storage-region", Usage: "AWS region for the s3 backend"},
		&cli.StringFlag{Name: "storage-endpoint", Usage: "Custom endpoint for S3-compatible providers"},
		&cli.BoolFlag{Name: "s3-path-style", Usage: "Force path-style S3 addressing"},
		&cli.BoolFlag{Name: "archive", Usage: "Archive the files of successful calls into the store"},
		&cli.BoolFlag{Name: "history", Usage: "Record every call in the store's history dataset"},
		&cli.StringFlag{Name: "notify", Usage: "Completion notifier: redis or webhook"},
		&cli.StringFlag{Name: "notify-url", Usage: "Notifier URL (redis:// or http(s)://)"},
		&cli.StringFlag{Name: "notify-channel", Usage: "Redis pub/sub channel"},
	}
}
