package cmd

import (
	"errors"
	"fmt"

	"github.com/urfave/cli/v2"

	"github.com/pithecene-io/ferry/archive"
	"github.com/pithecene-io/ferry/cli/render"
	"github.com/pithecene-io/ferry/cli/tui"
)

// HistoryCommand returns the history command. It lists recorded calls from
// the configured store, newest first.
func HistoryCommand() *cli.Command {
	flags := append(ReadOnlyFlags(),
		ConfigFlag,
		&cli.StringFlag{Name: "storage-backend", Usage: "Store backend: fs or s3"},
		&cli.StringFlag{Name: "storage-path", Usage: "Store path (fs: directory, s3: bucket/prefix)"},
		&cli.StringFlag{Name: "storage-region", Usage: "AWS region for the s3 backend"},
		&cli.StringFlag{Name: "storage-endpoint", Usage: "Custom endpoint for S3-compatible providers"},
		&cli.BoolFlag{Name: "s3-path-style", Usage: "Force path-style S3 addressing"},
		&cli.IntFlag{Name: "limit", Value: 20, Usage: "Maximum records to show (0 shows all)"},
		&cli.StringFlag{Name: "outcome", Usage: "Only show calls with this outcome: succeeded, cancelled, failed"},
	)
	return &cli.Command{
		Name:   "history",
		Usage:  "List recorded calls",
		Flags:  flags,
		Action: historyAction,
	}
}

func historyAction(c *cli.Context) error {
	switch c.String("outcome") {
	case "", "succeeded", "cancelled", "failed":
	default:
		return cli.Exit(fmt.Sprintf("unknown outcome %q", c.String("outcome")), exitUsage)
	}
	cfg, err := loadConfig(c)
	if err != nil {
		return cli.Exit(err.Error(), exitUsage)
	}
	if cfg.Storage.Backend == "" {
		return cli.Exit("history requires storage.backend", exitUsage)
	}
	store, err := buildStore(c.Context, cfg)
	if err != nil {
		return cli.Exit(fmt.Sprintf("open storage: %v", err), exitFailure)
	}
	h, err := archive.NewHistory(store)
	if err != nil {
		return cli.Exit(err.Error(), exitFailure)
	}

	records, err := h.Recent(c.Context, c.Int("limit"), c.String("outcome"))
	if err != nil && !errors.Is(err, archive.ErrNoHistory) {
		return cli.Exit(err.Error(), exitFailure)
	}
	if records == nil {
		records = []archive.Record{}
	}

	if c.Bool("tui") {
		return tui.Run(tui.ViewHistory, &tui.HistoryView{Namespace: namespace(cfg), Records: records})
	}
	r, err := render.NewRenderer(c)
	if err != nil {
		return cli.Exit(err.Error(), exitUsage)
	}
	return r.Render(records)
}
