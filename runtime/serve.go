package runtime

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"sync"
	"time"

	"github.com/pithecene-io/ferry/bridge"
	"github.com/pithecene-io/ferry/fileselector"
	"github.com/pithecene-io/ferry/messenger"
)

// ServeStream serves one peer on r and w until the stream ends or ctx is
// cancelled.
func (h *Host) ServeStream(ctx context.Context, r io.Reader, w io.Writer) error {
	m := h.NewMessenger(r, w)
	h.Attach(m)
	return m.Serve(ctx)
}

// ServeUnix listens on socketPath and serves each connection as its own
// peer. A stale socket file is replaced. ServeUnix returns after ctx is
// cancelled and every connection has finished.
func (h *Host) ServeUnix(ctx context.Context, socketPath string, bound chan<- string) error {
	if err := os.Remove(socketPath); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("removing stale socket %s: %w", socketPath, err)
	}

	listener, err := net.Listen("unix", socketPath)
	if err != nil {
		return fmt.Errorf("listening on %s: %w", socketPath, err)
	}
	defer func() {
		_ = listener.Close()
		_ = os.Remove(socketPath)
	}()

	// Unblock Accept when the context is cancelled.
	stop := context.AfterFunc(ctx, func() { _ = listener.Close() })
	defer stop()

	h.logger.Info("listening", map[string]any{"socket": socketPath})
	if bound != nil {
		bound <- listener.Addr().String()
	}

	var active sync.WaitGroup
	for {
		conn, err := listener.Accept()
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, net.ErrClosed) {
				break
			}
			h.logger.Error("accept failed", map[string]any{"error": err.Error()})
			continue
		}

		active.Add(1)
		go func() {
			defer active.Done()
			h.serveConn(ctx, conn)
		}()
	}

	active.Wait()
	return nil
}

func (h *Host) serveConn(ctx context.Context, conn net.Conn) {
	defer func() { _ = conn.Close() }()
	// Serve blocks in Read; closing the connection ends it on cancel.
	stop := context.AfterFunc(ctx, func() { _ = conn.Close() })
	defer stop()

	start := time.Now()
	if err := h.ServeStream(ctx, conn, conn); err != nil && ctx.Err() == nil {
		h.logger.Warn("connection ended with error", map[string]any{"error": err.Error()})
	}
	h.logger.Debug("connection closed", map[string]any{"duration_ms": time.Since(start).Milliseconds()})
}

// Call sends one call on method through an in-process pipe to the host
// and returns the outcome carried by the reply.
func (h *Host) Call(ctx context.Context, method string, args []any) (bridge.Outcome, error) {
	c2sR, c2sW := io.Pipe()
	s2cR, s2cW := io.Pipe()
	server := h.NewMessenger(c2sR, s2cW)
	client := messenger.New(s2cR, c2sW)
	h.Attach(server)

	serveCtx, cancel := context.WithCancel(ctx)
	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		_ = server.Serve(serveCtx)
		_ = s2cW.Close()
	}()
	go func() {
		defer wg.Done()
		_ = client.Serve(serveCtx)
	}()
	defer func() {
		cancel()
		_ = c2sW.Close()
		_ = s2cW.Close()
		wg.Wait()
	}()

	ch := messenger.NewBasicChannel(client, bridge.ChannelName(h.config.Namespace, fileselector.APIName, method), h.codec)
	reply, err := ch.Send(ctx, args)
	if err != nil {
		return bridge.Outcome{}, err
	}
	return bridge.ParseReply(reply)
}
