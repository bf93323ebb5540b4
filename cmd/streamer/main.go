package main

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"video-streamer/internal/admin"
	"video-streamer/internal/platform/config"
	"video-streamer/internal/platform/logger"
	"video-streamer/internal/platform/metrics"
	"video-streamer/internal/portal"
	"video-streamer/internal/relay"
)

const shutdownTimeout = 10 * time.Second

func main() {
	os.Exit(run())
}

func run() int {
	_ = config.Load()

	logLevel := config.GetEnv("LOG_LEVEL", "info")
	logFormat := config.GetEnv("LOG_FORMAT", "json")
	log := logger.New(logLevel, logFormat)

	opts, err := parseArgs(os.Args[1:], log)
	if err != nil {
		log.Error("invalid arguments", slog.String("error", err.Error()))
		printUsage(os.Stderr)
		return 1
	}

	portalURL := config.GetEnv("PORTAL_URL", "http://localhost:9500")
	script := config.GetEnv("FFMPEG_SCRIPT", "./streamer_ffmpeg.sh")
	adminPort := config.GetEnv("ADMIN_PORT", "9700")

	listenEP := relay.Endpoint{Transport: opts.Transport, Host: opts.Host, Port: opts.Port}
	desc := relay.Descriptor{
		Name:      relay.StreamName(opts.StreamName),
		Endpoint:  listenEP.String(),
		VideoSize: opts.VideoSize,
		BitRate:   opts.BitRate,
		Keywords:  relay.ParseKeywords(opts.Keywords),
	}

	met := metrics.New()
	adminSrv := admin.New(adminPort, log, met)
	adminSrv.Start()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	rl := relay.New(relay.Config{
		Descriptor:       desc,
		ListenEndpoint:   listenEP,
		UpstreamEndpoint: relay.Endpoint{Transport: opts.Transport, Port: opts.FFmpegPort},
		SourceFile:       opts.SourceFile,
		TranscoderScript: script,
		Portal:           portal.NewClient(portalURL, log),
		Logger:           log,
		Metrics:          met,
		PacingDelay:      config.GetEnvMillis("PACING_DELAY_MS", relay.DefaultPacingDelay),
		TickBudget:       config.GetEnvMillis("TICK_BUDGET_MS", relay.DefaultTickBudget),
		ChunkSize:        config.GetEnvInt("CHUNK_SIZE", relay.DefaultChunkSize),
	})
	defer rl.Close()

	exitCode := 0
	if err := rl.Initialize(ctx); err != nil {
		if errors.Is(err, relay.ErrConnectCancelled) {
			log.Info("exiting early", slog.String("reason", err.Error()))
		} else {
			log.Error("streamer initialization failed", slog.String("error", err.Error()))
		}
		exitCode = 1
	} else if err := rl.Run(ctx); err != nil {
		// Upstream feed lost: the run did not complete its mission.
		log.Error("relay stopped", slog.String("error", err.Error()))
		exitCode = 1
	} else {
		log.Info("shutdown requested, stopping relay")
	}

	sdCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := adminSrv.Shutdown(sdCtx); err != nil {
		log.Error("admin shutdown error", slog.String("error", err.Error()))
	}

	return exitCode
}
