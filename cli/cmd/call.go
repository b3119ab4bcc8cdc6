package cmd

import (
	"context"
	"errors"
	"fmt"
	"slices"

	"github.com/urfave/cli/v2"

	"github.com/pithecene-io/ferry/cli/config"
	"github.com/pithecene-io/ferry/cli/render"
	"github.com/pithecene-io/ferry/fileselector"
	"github.com/pithecene-io/ferry/metrics"
	"github.com/pithecene-io/ferry/picker"
)

// CallResult is the rendered outcome of one call.
type CallResult struct {
	Method  string `json:"method"`
	Outcome string `json:"outcome"`
	Result  any    `json:"result,omitempty"`
	Error   any    `json:"error,omitempty"`
}

// FileRow is one selected file in table output.
type FileRow struct {
	Path     string `json:"path"`
	Name     string `json:"name"`
	MimeType string `json:"mime_type"`
	Size     int64  `json:"size"`
}

// CallCommand returns the call command. It runs one FileSelectorApi call
// through an in-process host and prints the outcome.
func CallCommand() *cli.Command {
	flags := append(ReadOnlyFlags(), hostFlags()...)
	flags = append(flags,
		&cli.StringSliceFlag{Name: "mime", Usage: "Accepted MIME type or marker (repeatable)"},
		&cli.StringSliceFlag{Name: "ext", Usage: "Accepted file extension (repeatable)"},
		&cli.StringFlag{Name: "dir", Usage: "Initial directory"},
		&cli.StringSliceFlag{Name: "fake", Usage: "Skip the helpers and select these URIs"},
		&cli.BoolFlag{Name: "fake-cancel", Usage: "Skip the helpers and cancel every picker"},
	)
	return &cli.Command{
		Name:      "call",
		Usage:     "Run one FileSelectorApi call",
		ArgsUsage: "<openFile|openFiles|getDirectoryPath>",
		Flags:     flags,
		Action:    callAction,
	}
}

func callAction(c *cli.Context) error {
	if c.NArg() != 1 {
		return cli.Exit("call requires exactly one method", exitUsage)
	}
	method := c.Args().First()
	if !slices.Contains(fileselector.Methods, method) {
		return cli.Exit(fmt.Sprintf("unknown method %q (want one of %v)", method, fileselector.Methods), exitUsage)
	}
	if c.Bool("tui") {
		return cli.Exit("--tui is not supported for call command", exitUsage)
	}
	r, err := render.NewRenderer(c)
	if err != nil {
		return cli.Exit(err.Error(), exitUsage)
	}

	cfg, err := loadConfig(c)
	if err != nil {
		return cli.Exit(err.Error(), exitUsage)
	}
	p, backend, err := callPicker(c, cfg)
	if err != nil {
		return cli.Exit(err.Error(), exitUsage)
	}
	logger, closeLog, err := buildLogger(cfg, c.App.ErrWriter)
	if err != nil {
		return cli.Exit(err.Error(), exitUsage)
	}
	defer closeLog()

	host, err := buildHost(c.Context, cfg, p, logger, metrics.NewCollector(namespace(cfg), backend, storageBackendName(cfg)))
	if err != nil {
		return cli.Exit(err.Error(), exitUsage)
	}
	defer func() { _ = host.Close() }()

	outcome, err := host.Call(c.Context, method, callArgs(c, method))
	if err != nil {
		return cli.Exit(fmt.Sprintf("call failed: %v", err), exitFailure)
	}

	res := CallResult{Method: method, Outcome: string(fileselector.OutcomeSucceeded)}
	switch {
	case outcome.IsError():
		e := outcome.Err()
		res.Outcome = string(fileselector.OutcomeFailed)
		res.Error = map[string]any{"code": e.Code, "message": e.Message, "details": render.Plain(e.Details)}
	case outcome.Value() == nil:
		res.Outcome = string(fileselector.OutcomeCancelled)
	default:
		res.Result = render.Plain(outcome.Value())
	}

	if r.Format() == render.FormatTable && res.Outcome == string(fileselector.OutcomeSucceeded) && method != fileselector.MethodGetDirectoryPath {
		err = r.Render(fileRows(outcome.Value()))
	} else {
		err = r.Render(res)
	}
	if err != nil {
		return err
	}

	switch res.Outcome {
	case string(fileselector.OutcomeFailed):
		return cli.Exit("", exitFailure)
	case string(fileselector.OutcomeCancelled):
		return cli.Exit("", exitCancelled)
	}
	return nil
}

// callPicker returns the fake picker requested by --fake or --fake-cancel,
// or the configured helper processes, with the label used for metrics.
func callPicker(c *cli.Context, cfg *config.Config) (picker.Picker, string, error) {
	fake := c.StringSlice("fake")
	switch {
	case len(fake) > 0 && c.Bool("fake-cancel"):
		return nil, "", errors.New("--fake and --fake-cancel are mutually exclusive")
	case len(fake) > 0:
		return picker.Fixed(fake...), "fake", nil
	case c.Bool("fake-cancel"):
		return picker.Func(func(context.Context, *picker.Request) (*picker.Result, error) {
			return &picker.Result{Code: picker.ResultCancelled}, nil
		}), "fake", nil
	}
	return buildPicker(cfg), "command", nil
}

// callArgs builds the call arguments: [initialDirectory] for
// getDirectoryPath, [initialDirectory, allowedTypes] otherwise.
func callArgs(c *cli.Context, method string) []any {
	var dir any
	if d := c.String("dir"); d != "" {
		dir = d
	}
	if method == fileselector.MethodGetDirectoryPath {
		return []any{dir}
	}
	types := &fileselector.FileTypes{
		MimeTypes:  c.StringSlice("mime"),
		Extensions: c.StringSlice("ext"),
	}
	if types.MimeTypes == nil {
		types.MimeTypes = []string{}
	}
	if types.Extensions == nil {
		types.Extensions = []string{}
	}
	return []any{dir, types}
}

// fileRows flattens an openFile or openFiles result for table output.
func fileRows(v any) []FileRow {
	var files []any
	switch x := v.(type) {
	case []any:
		files = x
	default:
		files = []any{x}
	}
	rows := make([]FileRow, 0, len(files))
	for _, f := range files {
		if resp, ok := f.(*fileselector.FileResponse); ok && resp != nil {
			rows = append(rows, FileRow{Path: resp.Path, Name: resp.Name, MimeType: resp.MimeType, Size: resp.Size})
		}
	}
	return rows
}
