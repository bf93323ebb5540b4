package relay

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"os/exec"
	"syscall"
	"time"

	"github.com/benbjohnson/clock"
)

// DefaultConnectRetry is the interval between attempts to reach the
// transcoder's output endpoint.
const DefaultConnectRetry = 500 * time.Millisecond

// ErrConnectCancelled is returned by Connect when shutdown is requested
// before the transcoder's output endpoint became reachable.
var ErrConnectCancelled = errors.New("transcoder connect cancelled")

// Transcoder supervises the external transcoding subprocess and establishes
// the TCP connection to its output endpoint. The subprocess writes directly
// to that endpoint; none of its standard streams are redirected here.
type Transcoder struct {
	cmd        *exec.Cmd
	retryEvery time.Duration
	clk        clock.Clock
	log        *slog.Logger
}

// NewTranscoder returns a supervisor with the default retry interval.
// clk may be nil, in which case the wall clock is used.
func NewTranscoder(log *slog.Logger, clk clock.Clock) *Transcoder {
	if clk == nil {
		clk = clock.New()
	}
	return &Transcoder{retryEvery: DefaultConnectRetry, clk: clk, log: log}
}

// Start spawns the transcoder wrapper with its four positional arguments:
// source file path, destination endpoint as transport://host:port, video
// size, and bit rate. A failed spawn is fatal to startup.
func (t *Transcoder) Start(script, sourceFile, endpoint, videoSize, bitRate string) error {
	cmd := exec.Command(script, sourceFile, endpoint, videoSize, bitRate)
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("starting transcoder %q: %w", script, err)
	}
	t.cmd = cmd
	t.log.Info("transcoder started",
		slog.Int("pid", cmd.Process.Pid),
		slog.String("endpoint", endpoint))
	return nil
}

// Connect dials the transcoder's output endpoint, retrying every retry
// interval until the dial succeeds or ctx is cancelled. There is no retry
// cap: transcoder startup latency is unbounded, and the loop is bounded
// instead by operator-initiated shutdown, reported as ErrConnectCancelled.
func (t *Transcoder) Connect(ctx context.Context, addr string) (net.Conn, error) {
	dialer := net.Dialer{Timeout: t.retryEvery}
	for {
		if ctx.Err() != nil {
			return nil, ErrConnectCancelled
		}
		conn, err := dialer.DialContext(ctx, "tcp", addr)
		if err == nil {
			t.log.Info("connected to transcoder", slog.String("addr", addr))
			return conn, nil
		}
		t.log.Debug("transcoder not reachable yet",
			slog.String("addr", addr),
			slog.String("error", err.Error()))
		select {
		case <-ctx.Done():
			return nil, ErrConnectCancelled
		case <-t.clk.After(t.retryEvery):
		}
	}
}

// Terminate signals the subprocess to exit and reaps it. Safe to call when
// the subprocess was never started or has already been terminated; repeated
// calls are no-ops.
func (t *Transcoder) Terminate() {
	if t.cmd == nil || t.cmd.Process == nil {
		return
	}
	t.log.Info("terminating transcoder", slog.Int("pid", t.cmd.Process.Pid))
	if err := t.cmd.Process.Signal(syscall.SIGTERM); err != nil {
		t.log.Warn("signalling transcoder failed", slog.String("error", err.Error()))
	}
	if err := t.cmd.Wait(); err != nil {
		// Expected when the subprocess exits on SIGTERM.
		t.log.Debug("transcoder exited", slog.String("status", err.Error()))
	}
	t.cmd = nil
}
