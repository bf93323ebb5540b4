package relay

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"time"

	"github.com/benbjohnson/clock"

	"video-streamer/internal/platform/metrics"
)

// Relay timing defaults. The pacing delay gives the transcoder time to
// produce data between accept polls; the tick budget bounds how long the
// drain loop may broadcast before new clients get another chance to be
// accepted. Both trade client-acceptance latency against throughput.
const (
	DefaultPacingDelay = 20 * time.Millisecond
	DefaultTickBudget  = 30 * time.Millisecond
	DefaultChunkSize   = 256

	// readPoll bounds a single upstream read attempt so cancellation is
	// observed within roughly one chunk's read time.
	readPoll = 20 * time.Millisecond

	// deregisterTimeout bounds the directory withdrawal call during teardown,
	// which runs after the shutdown context is already cancelled.
	deregisterTimeout = 5 * time.Second
)

// errNoData reports that a chunk read made no progress within one poll
// window. It lets the drain loop fall back to accepting clients while the
// transcoder is quiet instead of starving the accept path.
var errNoData = errors.New("no upstream data within poll window")

// Publisher announces and withdraws a stream's availability in the directory
// service.
type Publisher interface {
	Register(ctx context.Context, d Descriptor) error
	Deregister(ctx context.Context, d Descriptor) error
}

// Config carries everything a Relay needs at construction time.
type Config struct {
	Descriptor Descriptor

	// ListenEndpoint is the public endpoint downstream clients connect to.
	ListenEndpoint Endpoint

	// UpstreamEndpoint is where the transcoder writes its output. The
	// transcoder always runs co-located, so only its port is honored; the
	// host is forced to loopback regardless of the public host setting.
	UpstreamEndpoint Endpoint

	SourceFile       string
	TranscoderScript string

	Portal  Publisher
	Logger  *slog.Logger
	Metrics *metrics.Metrics

	// Optional overrides; zero values fall back to the defaults above.
	PacingDelay time.Duration
	TickBudget  time.Duration
	ChunkSize   int
	Clock       clock.Clock
}

// Relay owns the whole data path for one stream: the transcoder subprocess
// and its connection, the listening socket, the client registry, and the
// timed read-then-broadcast cycle. One process runs exactly one Relay.
type Relay struct {
	desc       Descriptor
	listenEP   Endpoint
	upstreamEP Endpoint
	sourceFile string
	script     string

	listener   net.Listener
	upstream   net.Conn
	registry   *Registry
	transcoder *Transcoder
	portal     Publisher
	registered bool

	pacingDelay time.Duration
	tickBudget  time.Duration
	chunkSize   int

	log *slog.Logger
	met *metrics.Metrics
	clk clock.Clock
}

// New builds a Relay from cfg, applying defaults for unset tunables.
func New(cfg Config) *Relay {
	clk := cfg.Clock
	if clk == nil {
		clk = clock.New()
	}
	pacing := cfg.PacingDelay
	if pacing <= 0 {
		pacing = DefaultPacingDelay
	}
	tick := cfg.TickBudget
	if tick <= 0 {
		tick = DefaultTickBudget
	}
	chunk := cfg.ChunkSize
	if chunk <= 0 {
		chunk = DefaultChunkSize
	}
	return &Relay{
		desc:        cfg.Descriptor,
		listenEP:    cfg.ListenEndpoint,
		upstreamEP:  Endpoint{Transport: cfg.UpstreamEndpoint.Transport, Host: "127.0.0.1", Port: cfg.UpstreamEndpoint.Port},
		sourceFile:  cfg.SourceFile,
		script:      cfg.TranscoderScript,
		registry:    NewRegistry(cfg.Logger, cfg.Metrics),
		transcoder:  NewTranscoder(cfg.Logger, clk),
		portal:      cfg.Portal,
		pacingDelay: pacing,
		tickBudget:  tick,
		chunkSize:   chunk,
		log:         cfg.Logger,
		met:         cfg.Metrics,
		clk:         clk,
	}
}

// Initialize opens the listening socket, starts the transcoder and connects
// to its output, then registers the stream with the directory service. The
// descriptor is only published once both sockets are verified live. On any
// error the caller is expected to run Close for best-effort cleanup.
func (s *Relay) Initialize(ctx context.Context) error {
	s.log.Info("setting up listen socket", slog.Int("port", s.listenEP.Port))
	var lc net.ListenConfig
	l, err := lc.Listen(ctx, "tcp", fmt.Sprintf(":%d", s.listenEP.Port))
	if err != nil {
		return fmt.Errorf("opening listen socket: %w", err)
	}
	s.listener = l

	s.log.Info("starting and connecting to transcoder")
	if err := s.transcoder.Start(s.script, s.sourceFile, s.upstreamEP.String(), s.desc.VideoSize, s.desc.BitRate); err != nil {
		return err
	}
	conn, err := s.transcoder.Connect(ctx, s.upstreamEP.Addr())
	if err != nil {
		return err
	}
	s.upstream = conn

	if err := s.portal.Register(ctx, s.desc); err != nil {
		return fmt.Errorf("registering stream %q: %w", s.desc.Name, err)
	}
	s.registered = true
	s.log.Info("stream registered", slog.String("stream", string(s.desc.Name)), slog.String("endpoint", s.desc.Endpoint))
	return nil
}

// Run drives the relay cycle until ctx is cancelled or the upstream feed is
// lost. Each outer cycle accepts at most one new client, sleeps the pacing
// delay, then drains chunks from the transcoder to all clients until the
// tick budget elapses. Run returns nil on cancellation and a non-nil error
// when the upstream connection failed; either way the caller proceeds to
// Close.
func (s *Relay) Run(ctx context.Context) error {
	s.log.Info("streamer ready", slog.String("addr", s.listenEP.Addr()))
	chunk := make([]byte, s.chunkSize)

	for {
		if ctx.Err() != nil {
			return nil
		}

		conn, err := s.registry.AcceptOne(s.listener)
		if err != nil {
			return fmt.Errorf("listen socket failed: %w", err)
		}
		if conn != nil {
			s.registry.Add(conn)
		}

		// Give the transcoder a moment to produce data before draining.
		select {
		case <-ctx.Done():
			return nil
		case <-s.clk.After(s.pacingDelay):
		}

		tickStart := s.clk.Now()
		for {
			if err := s.readChunk(ctx, chunk); err != nil {
				if ctx.Err() != nil {
					return nil
				}
				if errors.Is(err, errNoData) {
					if s.clk.Since(tickStart) > s.tickBudget {
						break
					}
					continue
				}
				s.log.Error("transcoder read failed", slog.String("error", err.Error()))
				if s.met != nil {
					s.met.IncUpstreamFailures()
				}
				return fmt.Errorf("reading from transcoder: %w", err)
			}
			s.registry.BroadcastAndPrune(chunk)
			if s.met != nil {
				s.met.AddChunkRelayed(len(chunk))
			}
			if s.clk.Since(tickStart) > s.tickBudget {
				break
			}
		}
	}
}

// readChunk fills buf from the upstream connection, accumulating short reads
// until the chunk is complete. A short read is not a chunk boundary: clients
// only ever see fully assembled chunks. Each read attempt carries a short
// deadline so cancellation is never blocked behind a silent upstream; a poll
// that yields nothing before any byte of the chunk arrived reports errNoData.
func (s *Relay) readChunk(ctx context.Context, buf []byte) error {
	filled := 0
	for filled < len(buf) {
		if err := ctx.Err(); err != nil {
			return err
		}
		_ = s.upstream.SetReadDeadline(time.Now().Add(readPoll))
		n, err := s.upstream.Read(buf[filled:])
		filled += n
		if err != nil {
			var ne net.Error
			if errors.As(err, &ne) && ne.Timeout() {
				if filled == 0 {
					return errNoData
				}
				continue
			}
			// EOF included: the transcoder is gone for good.
			return err
		}
	}
	return nil
}

// Close tears the relay down. Every step runs regardless of earlier
// failures: close clients, close the listening socket, close the upstream
// connection, withdraw the stream from the directory, then terminate and
// reap the subprocess. Safe to call after a failed Initialize or more than
// once.
func (s *Relay) Close() {
	s.registry.CloseAll()

	if s.listener != nil {
		_ = s.listener.Close()
		s.listener = nil
	}
	if s.upstream != nil {
		_ = s.upstream.Close()
		s.upstream = nil
	}

	if s.registered {
		// The run context is already cancelled at this point; the withdrawal
		// gets its own bounded context so a dead stream is never left advertised.
		ctx, cancel := context.WithTimeout(context.Background(), deregisterTimeout)
		if err := s.portal.Deregister(ctx, s.desc); err != nil {
			s.log.Warn("deregistering stream failed", slog.String("error", err.Error()))
		} else {
			s.log.Info("stream deregistered", slog.String("stream", string(s.desc.Name)))
		}
		cancel()
		s.registered = false
	}

	s.transcoder.Terminate()
}
