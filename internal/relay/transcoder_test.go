package relay

import (
	"context"
	"errors"
	"net"
	"testing"
	"time"

	"video-streamer/internal/platform/logger"
)

// freeAddr reserves a loopback port and releases it, returning an address
// that currently has no listener.
func freeAddr(t *testing.T) string {
	t.Helper()
	l, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	addr := l.Addr().String()
	l.Close()
	return addr
}

func TestTranscoder_Connect_cancelled(t *testing.T) {
	tr := NewTranscoder(logger.Discard(), nil)
	tr.retryEvery = 10 * time.Millisecond

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(30 * time.Millisecond)
		cancel()
	}()

	start := time.Now()
	conn, err := tr.Connect(ctx, freeAddr(t))
	elapsed := time.Since(start)

	if conn != nil {
		t.Fatal("Connect returned a connection after cancellation")
	}
	if !errors.Is(err, ErrConnectCancelled) {
		t.Fatalf("Connect error = %v, want ErrConnectCancelled", err)
	}
	// Cancellation must be observed within roughly one retry interval.
	if elapsed > 200*time.Millisecond {
		t.Errorf("Connect took %v to observe cancellation", elapsed)
	}
}

func TestTranscoder_Connect_succeeds_immediately(t *testing.T) {
	l, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	defer l.Close()
	go func() {
		conn, err := l.Accept()
		if err == nil {
			conn.Close()
		}
	}()

	tr := NewTranscoder(logger.Discard(), nil)
	conn, err := tr.Connect(context.Background(), l.Addr().String())
	if err != nil {
		t.Fatalf("Connect: %v", err)
	}
	conn.Close()
}

func TestTranscoder_Connect_retries_until_listener_appears(t *testing.T) {
	addr := freeAddr(t)

	tr := NewTranscoder(logger.Discard(), nil)
	tr.retryEvery = 10 * time.Millisecond

	// The endpoint becomes reachable only after a few retry intervals,
	// mimicking slow transcoder startup.
	ready := make(chan net.Listener, 1)
	go func() {
		time.Sleep(40 * time.Millisecond)
		l, err := net.Listen("tcp", addr)
		if err != nil {
			return
		}
		ready <- l
		conn, err := l.Accept()
		if err == nil {
			conn.Close()
		}
	}()

	conn, err := tr.Connect(context.Background(), addr)
	if err != nil {
		t.Fatalf("Connect: %v", err)
	}
	conn.Close()
	if l := <-ready; l != nil {
		l.Close()
	}
}

func TestTranscoder_Terminate_never_started(t *testing.T) {
	tr := NewTranscoder(logger.Discard(), nil)

	// Must be a no-op, twice.
	tr.Terminate()
	tr.Terminate()
}

func TestTranscoder_Start_spawn_failure(t *testing.T) {
	tr := NewTranscoder(logger.Discard(), nil)
	err := tr.Start("/nonexistent/transcoder.sh", "video.mp4", "tcp://127.0.0.1:9601", "480x270", "400k")
	if err == nil {
		t.Fatal("Start with a nonexistent script should fail")
	}
	// A failed spawn leaves nothing to reap.
	tr.Terminate()
}

func TestTranscoder_Start_and_Terminate(t *testing.T) {
	tr := NewTranscoder(logger.Discard(), nil)
	// "true" ignores its arguments and exits cleanly; the supervisor must
	// still reap it without error or hang.
	if err := tr.Start("true", "video.mp4", "tcp://127.0.0.1:9601", "480x270", "400k"); err != nil {
		t.Fatalf("Start: %v", err)
	}
	tr.Terminate()
	tr.Terminate()
}
