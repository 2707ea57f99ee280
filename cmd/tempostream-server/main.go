// ABOUTME: Entry point for the tempostream reference server
// ABOUTME: Parses CLI flags and streams a metronome tone to connecting players
package main

import (
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/urfave/cli/v2"

	"github.com/harperreed/tempostream/internal/logging"
	"github.com/harperreed/tempostream/internal/server"
	"github.com/harperreed/tempostream/internal/version"
	"github.com/harperreed/tempostream/pkg/audio"
)

func main() {
	defaults := server.DefaultConfig()

	cliApp := &cli.App{
		Name:    "tempostream-server",
		Usage:   "Serve a tempostream metronome stream",
		Version: version.Version,
		Flags: []cli.Flag{
			&cli.IntFlag{Name: "port", Value: defaults.Port, Usage: "WebSocket server port"},
			&cli.StringFlag{Name: "name", Usage: "Server friendly name (default: hostname-tempostream)"},
			&cli.BoolFlag{Name: "no-mdns", Usage: "Disable mDNS advertisement"},
			&cli.IntFlag{Name: "channels", Value: defaults.Format.Channels, Usage: "Channel count"},
			&cli.IntFlag{Name: "rate", Value: defaults.Format.SampleRate, Usage: "Sample rate in Hz"},
			&cli.BoolFlag{Name: "float", Usage: "Send 32-bit float samples (f32le) instead of s16le"},
			&cli.Float64Flag{Name: "tempo", Value: defaults.Tempo, Usage: "Tempo in BPM"},
			&cli.Float64Flag{Name: "frequency", Value: defaults.Frequency, Usage: "Tone frequency in Hz"},
			&cli.DurationFlag{Name: "chunk", Value: defaults.ChunkDuration, Usage: "Audio per frame"},
			&cli.IntFlag{Name: "delay-threshold", Value: 0, Usage: "Frames sent unpaced before real-time pacing (0 disables the pre-roll)", EnvVars: []string{"DELAY_THRESHOLD"}},
			&cli.StringFlag{Name: "log-file", Value: "tempostream-server.log", Usage: "Log file path"},
			&cli.BoolFlag{Name: "debug", Usage: "Enable debug logging"},
		},
		Action: run,
	}

	if err := cliApp.Run(os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run(c *cli.Context) error {
	f, err := os.OpenFile(c.String("log-file"), os.O_RDWR|os.O_CREATE|os.O_APPEND, 0666)
	if err != nil {
		return fmt.Errorf("error opening log file: %w", err)
	}
	defer f.Close()

	level := "info"
	if c.Bool("debug") {
		level = "debug"
	}
	logger, err := logging.New(logging.Options{Level: level}, io.MultiWriter(os.Stdout, f))
	if err != nil {
		return err
	}
	defer logger.Sync()
	log := logger.Sugar()

	serverName := c.String("name")
	if serverName == "" {
		hostname, err := os.Hostname()
		if err != nil {
			hostname = "unknown"
		}
		serverName = fmt.Sprintf("%s-tempostream", hostname)
	}

	format := audio.Format{
		Channels:   c.Int("channels"),
		SampleRate: c.Int("rate"),
		BitDepth:   16,
		Encoding:   audio.EncodingS16LE,
	}
	if c.Bool("float") {
		format.BitDepth = 32
		format.Encoding = audio.EncodingF32LE
	}

	config := server.Config{
		Port:           c.Int("port"),
		Name:           serverName,
		EnableMDNS:     !c.Bool("no-mdns"),
		Format:         format,
		Tempo:          c.Float64("tempo"),
		Frequency:      c.Float64("frequency"),
		ChunkDuration:  c.Duration("chunk"),
		DelayThreshold: c.Int("delay-threshold"),
		Logger:         logger,
	}

	srv, err := server.New(config)
	if err != nil {
		return err
	}

	log.Infof("Starting %s: %s on port %d", version.String(), serverName, config.Port)
	log.Infof("Logging to: %s", c.String("log-file"))
	log.Infof("Press Ctrl-C to stop")

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigChan
		log.Infof("Received %v signal, shutting down gracefully...", sig)
		srv.Stop()
	}()

	if err := srv.Start(); err != nil {
		return fmt.Errorf("server error: %w", err)
	}
	return nil
}
