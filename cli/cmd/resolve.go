package cmd

import (
	"github.com/urfave/cli/v2"

	"github.com/pithecene-io/ferry/cli/render"
	"github.com/pithecene-io/ferry/fileselector"
)

// ResolveResult maps extensions to picker markers.
type ResolveResult struct {
	Extensions []string `json:"extensions"`
	Markers    []string `json:"markers"`
}

// ResolveCommand returns the resolve command.
func ResolveCommand() *cli.Command {
	return &cli.Command{
		Name:      "resolve",
		Usage:     "Show the picker markers for file extensions",
		ArgsUsage: "<ext>...",
		Flags:     ReadOnlyFlags(),
		Action: func(c *cli.Context) error {
			if c.Bool("tui") {
				return cli.Exit("--tui is not supported for resolve command", exitUsage)
			}
			r, err := render.NewRenderer(c)
			if err != nil {
				return cli.Exit(err.Error(), exitUsage)
			}
			exts := c.Args().Slice()
			markers := fileselector.ResolveMimeTypes(exts)
			if markers == nil {
				markers = []string{}
			}
			return r.Render(ResolveResult{Extensions: exts, Markers: markers})
		},
	}
}
