package picker

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"slices"
	"strconv"
	"strings"
	"syscall"
	"time"
)

// waitDelay bounds how long output pipes are drained after the helper is
// killed.
const waitDelay = 2 * time.Second

// OutputFormat is how a helper process reports its selection on stdout.
type OutputFormat string

const (
	// OutputAuto parses JSON when stdout starts with '{', lines otherwise.
	OutputAuto OutputFormat = ""
	// OutputJSON expects {"result_code": 0, "uris": [...], "message": "..."}.
	OutputJSON OutputFormat = "json"
	// OutputLines expects one URI per line.
	OutputLines OutputFormat = "lines"
)

// CommandConfig configures the helper process for one mode.
type CommandConfig struct {
	// Path is the helper executable.
	Path string
	// Args are passed to the helper after placeholder expansion:
	// {mode}, {selection}, {filter}, {max_count}, {initial_directory}.
	Args []string
	// Env entries are appended to the inherited environment.
	Env []string
	// Output selects the stdout format.
	Output OutputFormat
	// CancelExitCodes are exit codes that mean the user cancelled.
	CancelExitCodes []int
}

// Command runs a helper process per picker invocation.
// The request is written to the helper's stdin as JSON.
type Command struct {
	modes map[Mode]CommandConfig
}

var _ Picker = (*Command)(nil)

// NewCommand creates a Command picker. Modes without an entry are
// unavailable.
func NewCommand(modes map[Mode]CommandConfig) *Command {
	return &Command{modes: modes}
}

// Select runs the helper for req.Mode and waits for it to exit.
//
// Exit 0 parses stdout. A configured cancel exit code is a cancel. Any
// other exit code is reported as that result code with stderr as message.
func (c *Command) Select(ctx context.Context, req *Request) (*Result, error) {
	cfg, ok := c.modes[req.Mode]
	if !ok || cfg.Path == "" {
		return nil, &Error{Mode: req.Mode, Op: "lookup", Err: ErrUnavailable}
	}

	input, err := json.Marshal(req)
	if err != nil {
		return nil, &Error{Mode: req.Mode, Op: "encode request", Err: err}
	}

	cmd := exec.CommandContext(ctx, cfg.Path, expandArgs(cfg.Args, req)...)
	if len(cfg.Env) > 0 {
		cmd.Env = deduplicateEnv(append(os.Environ(), cfg.Env...))
	}
	cmd.Stdin = bytes.NewReader(input)
	cmd.WaitDelay = waitDelay
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	runErr := cmd.Run()
	if ctxErr := ctx.Err(); ctxErr != nil {
		return nil, &Error{Mode: req.Mode, Op: "wait", Err: ctxErr}
	}

	exitCode := 0
	if runErr != nil {
		var exitErr *exec.ExitError
		if !errors.As(runErr, &exitErr) {
			return nil, &Error{Mode: req.Mode, Op: "start", Err: runErr}
		}
		if status, ok := exitErr.Sys().(syscall.WaitStatus); ok && status.Signaled() {
			return nil, &Error{Mode: req.Mode, Op: "wait", Err: fmt.Errorf("terminated by %v", status.Signal())}
		}
		exitCode = exitErr.ExitCode()
	}

	if exitCode != 0 {
		if slices.Contains(cfg.CancelExitCodes, exitCode) {
			return &Result{Code: ResultCancelled}, nil
		}
		msg := strings.TrimSpace(stderr.String())
		if msg == "" {
			msg = fmt.Sprintf("picker exited with code %d", exitCode)
		}
		return &Result{Code: exitCode, Message: msg}, nil
	}

	res, err := parseOutput(stdout.Bytes(), cfg.Output)
	if err != nil {
		return nil, &Error{Mode: req.Mode, Op: "parse output", Err: err}
	}
	return res, nil
}

func parseOutput(out []byte, format OutputFormat) (*Result, error) {
	trimmed := bytes.TrimSpace(out)
	if format == OutputAuto {
		format = OutputLines
		if bytes.HasPrefix(trimmed, []byte("{")) {
			format = OutputJSON
		}
	}

	switch format {
	case OutputJSON:
		var res Result
		if err := json.Unmarshal(trimmed, &res); err != nil {
			return nil, fmt.Errorf("invalid JSON result: %w", err)
		}
		return &res, nil
	case OutputLines:
		res := &Result{Code: ResultOK}
		scanner := bufio.NewScanner(bytes.NewReader(trimmed))
		for scanner.Scan() {
			if line := strings.TrimSpace(scanner.Text()); line != "" {
				res.URIs = append(res.URIs, line)
			}
		}
		if err := scanner.Err(); err != nil {
			return nil, err
		}
		return res, nil
	default:
		return nil, fmt.Errorf("unknown output format %q", format)
	}
}

func expandArgs(args []string, req *Request) []string {
	r := strings.NewReplacer(
		"{mode}", string(req.Mode),
		"{selection}", string(req.Selection),
		"{filter}", string(req.Filter),
		"{max_count}", strconv.Itoa(req.MaxCount),
		"{initial_directory}", req.InitialDirectory,
	)
	out := make([]string, len(args))
	for i, a := range args {
		out[i] = r.Replace(a)
	}
	return out
}

// deduplicateEnv keeps the last occurrence of each env var key, so
// configured entries win over inherited ones.
func deduplicateEnv(env []string) []string {
	seen := make(map[string]int, len(env))
	for i, entry := range env {
		key, _, _ := strings.Cut(entry, "=")
		seen[key] = i
	}
	result := make([]string, 0, len(seen))
	for i, entry := range env {
		key, _, _ := strings.Cut(entry, "=")
		if seen[key] == i {
			result = append(result, entry)
		}
	}
	return result
}
