// Package main provides the ferry CLI entrypoint.
//
// Usage:
//
//	ferry <command> [options]
//
// Exit codes:
//   - 0: success
//   - 1: the call failed or the host stopped with an error
//   - 2: invalid flags or configuration
//   - 3: the user cancelled the picker
package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/urfave/cli/v2"

	"github.com/pithecene-io/ferry/cli/cmd"
	"github.com/pithecene-io/ferry/types"
)

// Commit is set via ldflags at build time.
var commit = "unknown"

func main() {
	if err := newApp().Run(os.Args); err != nil {
		// ExitErrHandler already handled the exit for cli.ExitCoder errors.
		// This branch handles unexpected errors that weren't wrapped.
		os.Exit(1)
	}
}

func newApp() *cli.App {
	return &cli.App{
		Name:           "ferry",
		Usage:          "Host side of the FileSelectorApi platform channel",
		Version:        fmt.Sprintf("%s (commit: %s)", types.Version, commit),
		ExitErrHandler: exitErrHandler,
		Commands: []*cli.Command{
			cmd.ServeCommand(),
			cmd.CallCommand(),
			cmd.DecodeCommand(),
			cmd.ResolveCommand(),
			cmd.HistoryCommand(),
			cmd.VersionCommand(commit),
		},
	}
}

// exitErrHandler handles errors from the CLI, preserving exit codes from cli.Exit().
func exitErrHandler(_ *cli.Context, err error) {
	if err == nil {
		return
	}
	code, msg := exitStatus(err)
	if msg != "" {
		fmt.Fprintln(os.Stderr, msg)
	}
	os.Exit(code)
}

// exitStatus returns the process exit code for err and the message to
// print, if any.
func exitStatus(err error) (int, string) {
	// Check for ExitCoder (from cli.Exit), handles wrapped errors
	var exitCoder cli.ExitCoder
	if errors.As(err, &exitCoder) {
		code := exitCoder.ExitCode()
		msg := exitCoder.Error()

		// cli.Exit("", N).Error() returns "exit status N", so skip those
		if msg == fmt.Sprintf("exit status %d", code) {
			msg = ""
		}
		return code, msg
	}
	return 1, fmt.Sprintf("Error: %v", err)
}
