package cmd

import (
	"bytes"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/urfave/cli/v2"

	"github.com/pithecene-io/ferry/cli/render"
	"github.com/pithecene-io/ferry/cli/tui"
	"github.com/pithecene-io/ferry/fileselector"
	"github.com/pithecene-io/ferry/ipc"
)

// DecodeResult is a decoded codec message.
type DecodeResult struct {
	Source string `json:"source"`
	Size   int    `json:"size"`
	Value  any    `json:"value"`
}

// FrameResult is one decoded envelope of a framed stream.
type FrameResult struct {
	Type     string `json:"type"`
	ID       string `json:"id"`
	Channel  string `json:"channel,omitempty"`
	Encoding string `json:"encoding,omitempty"`
	Size     int    `json:"size"`
	Value    any    `json:"value"`
}

// DecodeCommand returns the decode command. It prints a codec message, or
// every envelope of a captured stream with --frames.
func DecodeCommand() *cli.Command {
	flags := append(ReadOnlyFlags(),
		&cli.BoolFlag{Name: "hex", Usage: "Input is hex text"},
		&cli.BoolFlag{Name: "frames", Usage: "Input is a length-prefixed envelope stream"},
	)
	return &cli.Command{
		Name:      "decode",
		Usage:     "Decode a codec message or an envelope stream",
		ArgsUsage: "<file|->",
		Flags:     flags,
		Action:    decodeAction,
	}
}

func decodeAction(c *cli.Context) error {
	if c.NArg() != 1 {
		return cli.Exit("decode requires a file path or -", exitUsage)
	}
	source := c.Args().First()
	data, err := readInput(c, source)
	if err != nil {
		return cli.Exit(err.Error(), exitFailure)
	}

	var result any
	var value any
	if c.Bool("frames") {
		frames, err := decodeFrames(data)
		if err != nil {
			return cli.Exit(err.Error(), exitFailure)
		}
		result = frames
		plain := make([]any, len(frames))
		for i, f := range frames {
			plain[i] = map[string]any{"type": f.Type, "id": f.ID, "channel": f.Channel, "value": f.Value}
		}
		value = plain
	} else {
		decoded, err := fileselector.NewCodec().DecodeMessage(data)
		if err != nil {
			return cli.Exit(fmt.Sprintf("decode failed: %v", err), exitFailure)
		}
		value = render.Plain(decoded)
		result = DecodeResult{Source: source, Size: len(data), Value: value}
	}

	if c.Bool("tui") {
		return tui.Run(tui.ViewDecode, &tui.DecodeView{Source: source, Size: len(data), Value: value})
	}
	r, err := render.NewRenderer(c)
	if err != nil {
		return cli.Exit(err.Error(), exitUsage)
	}
	return r.Render(result)
}

// readInput reads path, or stdin for "-". With --hex the text is decoded;
// whitespace is ignored.
func readInput(c *cli.Context, path string) ([]byte, error) {
	var data []byte
	var err error
	if path == "-" {
		data, err = io.ReadAll(c.App.Reader)
	} else {
		data, err = os.ReadFile(path)
	}
	if err != nil {
		return nil, fmt.Errorf("read input: %w", err)
	}
	if !c.Bool("hex") {
		return data, nil
	}
	text := strings.Join(strings.Fields(string(data)), "")
	out, err := hex.DecodeString(text)
	if err != nil {
		return nil, fmt.Errorf("invalid hex input: %w", err)
	}
	return out, nil
}

// decodeFrames reads every envelope in data. Payloads that are not valid
// codec messages are reported as an error string in Value.
func decodeFrames(data []byte) ([]FrameResult, error) {
	dec := ipc.NewFrameDecoder(bytes.NewReader(data))
	c := fileselector.NewCodec()
	var out []FrameResult
	for {
		env, err := dec.ReadEnvelope()
		if errors.Is(err, io.EOF) {
			return out, nil
		}
		if err != nil {
			if ipc.IsFatalFrameError(err) {
				return out, fmt.Errorf("frame %d: %w", len(out), err)
			}
			out = append(out, FrameResult{Value: "error: " + err.Error()})
			continue
		}

		res := FrameResult{
			Type:     string(env.Type),
			ID:       env.ID,
			Channel:  env.Channel,
			Encoding: env.Encoding,
			Size:     len(env.Payload),
		}
		if len(env.Payload) > 0 {
			v, err := c.DecodeMessage(env.Payload)
			if err != nil {
				res.Value = "error: " + err.Error()
			} else {
				res.Value = render.Plain(v)
			}
		}
		out = append(out, res)
	}
}
