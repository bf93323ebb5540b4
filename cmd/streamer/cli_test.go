package main

import (
	"reflect"
	"testing"

	"video-streamer/internal/platform/logger"
)

func TestParseArgs_defaults(t *testing.T) {
	opts, err := parseArgs([]string{"video.mp4", "mystream"}, logger.Discard())
	if err != nil {
		t.Fatalf("parseArgs: %v", err)
	}

	want := defaultOptions()
	want.SourceFile = "video.mp4"
	want.StreamName = "mystream"
	if !reflect.DeepEqual(opts, want) {
		t.Errorf("opts = %+v, want %+v", opts, want)
	}
}

func TestParseArgs_all_options(t *testing.T) {
	opts, err := parseArgs([]string{
		"video.mp4", "mystream",
		"--transport", "udp",
		"--host", "0.0.0.0",
		"--port", "7000",
		"--ffmpeg_port", "7001",
		"--video_size", "1280x720",
		"--bit_rate", "2000k",
		"--keywords", "news,sports",
	}, logger.Discard())
	if err != nil {
		t.Fatalf("parseArgs: %v", err)
	}

	want := options{
		SourceFile: "video.mp4",
		StreamName: "mystream",
		Transport:  "udp",
		Host:       "0.0.0.0",
		Port:       7000,
		FFmpegPort: 7001,
		VideoSize:  "1280x720",
		BitRate:    "2000k",
		Keywords:   "news,sports",
	}
	if !reflect.DeepEqual(opts, want) {
		t.Errorf("opts = %+v, want %+v", opts, want)
	}
}

func TestParseArgs_missing_positional(t *testing.T) {
	if _, err := parseArgs([]string{"video.mp4"}, logger.Discard()); err == nil {
		t.Error("parseArgs with one argument should fail")
	}
	if _, err := parseArgs(nil, logger.Discard()); err == nil {
		t.Error("parseArgs with no arguments should fail")
	}
}

func TestParseArgs_missing_option_value(t *testing.T) {
	if _, err := parseArgs([]string{"video.mp4", "mystream", "--port"}, logger.Discard()); err == nil {
		t.Error("parseArgs with a dangling option should fail")
	}
}

func TestParseArgs_invalid_port(t *testing.T) {
	if _, err := parseArgs([]string{"video.mp4", "mystream", "--port", "nine"}, logger.Discard()); err == nil {
		t.Error("parseArgs with a non-numeric port should fail")
	}
}

func TestParseArgs_unknown_option_skipped(t *testing.T) {
	opts, err := parseArgs([]string{"video.mp4", "mystream", "--color", "blue", "--port", "7000"}, logger.Discard())
	if err != nil {
		t.Fatalf("parseArgs: %v", err)
	}
	if opts.Port != 7000 {
		t.Errorf("Port = %d, want 7000 (parsing should continue past unknown options)", opts.Port)
	}
}
