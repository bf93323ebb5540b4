package main

import (
	"fmt"
	"io"
	"log/slog"
	"strconv"
)

// options holds everything parsed from the command line.
type options struct {
	SourceFile string
	StreamName string
	Transport  string
	Host       string
	Port       int
	FFmpegPort int
	VideoSize  string
	BitRate    string
	Keywords   string
}

func defaultOptions() options {
	return options{
		Transport:  "tcp",
		Host:       "localhost",
		Port:       9600,
		FFmpegPort: 9601,
		VideoSize:  "480x270",
		BitRate:    "400k",
	}
}

// parseArgs parses args (excluding the program name): two required positional
// arguments followed by option/value pairs. Unrecognized options are skipped
// with a log line; a missing value after an option is an error.
func parseArgs(args []string, log *slog.Logger) (options, error) {
	opts := defaultOptions()

	if len(args) < 2 {
		return opts, fmt.Errorf("expected <video_source> and <stream_name>, got %d arguments", len(args))
	}
	opts.SourceFile = args[0]
	opts.StreamName = args[1]

	for i := 2; i < len(args); i += 2 {
		option := args[i]

		// All options take a following value.
		if i+1 >= len(args) {
			return opts, fmt.Errorf("missing argument after option %s", option)
		}
		arg := args[i+1]

		switch option {
		case "--transport":
			opts.Transport = arg
		case "--host":
			opts.Host = arg
		case "--port":
			p, err := strconv.Atoi(arg)
			if err != nil {
				return opts, fmt.Errorf("invalid port %q: %w", arg, err)
			}
			opts.Port = p
		case "--ffmpeg_port":
			p, err := strconv.Atoi(arg)
			if err != nil {
				return opts, fmt.Errorf("invalid ffmpeg port %q: %w", arg, err)
			}
			opts.FFmpegPort = p
		case "--video_size":
			opts.VideoSize = arg
		case "--bit_rate":
			opts.BitRate = arg
		case "--keywords":
			opts.Keywords = arg
		default:
			log.Info("unrecognized option, skipping", slog.String("option", option))
		}
	}

	return opts, nil
}

func printUsage(w io.Writer) {
	fmt.Fprintln(w, "Usage: streamer <video_source> <stream_name> [options]")
	fmt.Fprintln(w, "Options:")
	fmt.Fprintln(w, "  --transport <trans>          endpoint transport protocol, tcp by default")
	fmt.Fprintln(w, "  --host <host>                endpoint host, localhost by default")
	fmt.Fprintln(w, "  --port <port>                listen port, 9600 by default")
	fmt.Fprintln(w, "  --ffmpeg_port <port>         port for the ffmpeg instance, 9601 by default")
	fmt.Fprintln(w, "  --video_size <WxH>           video size, 480x270 by default")
	fmt.Fprintln(w, "  --bit_rate <rate>            video bit rate, 400k by default")
	fmt.Fprintln(w, "  --keywords <k1,k2,...,kn>    search keywords for the stream")
}
