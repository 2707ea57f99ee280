// ABOUTME: Entry point for the tempostream player
// ABOUTME: Parses CLI flags, loads config, and runs the player application
package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/urfave/cli/v2"
	"go.uber.org/zap"

	"github.com/harperreed/tempostream/internal/app"
	"github.com/harperreed/tempostream/internal/config"
	"github.com/harperreed/tempostream/internal/logging"
	"github.com/harperreed/tempostream/internal/version"
)

func main() {
	cliApp := &cli.App{
		Name:    version.Product,
		Usage:   "Play a tempostream audio stream",
		Version: version.Version,
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "config", Aliases: []string{"c"}, Usage: "YAML config file"},
			&cli.StringFlag{Name: "url", Aliases: []string{"u"}, Usage: "Server URL (skips mDNS discovery)", EnvVars: []string{"TEMPOSTREAM_URL"}},
			&cli.StringFlag{Name: "latency", Usage: "Output latency hint: interactive, balanced or playback"},
			&cli.IntFlag{Name: "volume", Usage: "Initial volume (0-100)"},
			&cli.BoolFlag{Name: "no-audio", Usage: "Decode without an audio device"},
			&cli.StringFlag{Name: "log-file", Usage: "Log file path"},
			&cli.StringFlag{Name: "log-level", Usage: "debug, info, warn or error"},
			&cli.BoolFlag{Name: "no-tui", Aliases: []string{"stream-logs"}, Usage: "Disable TUI, use streaming logs instead"},
		},
		Action: run,
	}

	if err := cliApp.Run(os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run(c *cli.Context) error {
	cfg := config.Default()
	if path := c.String("config"); path != "" {
		loaded, err := config.Load(path)
		if err != nil {
			return err
		}
		cfg = loaded
	}
	applyFlags(c, cfg)

	logger, closeLog, err := openLogger(cfg)
	if err != nil {
		return err
	}
	defer closeLog()

	if !cfg.UI.Enabled {
		logger.Sugar().Infof("Starting %s", version.String())
		logger.Sugar().Infof("TUI disabled, logging to %s", cfg.Log.File)
	}

	player, err := app.New(cfg, nil, logger)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := player.Run(ctx); err != nil {
		logger.Sugar().Errorf("Player error: %v", err)
		return err
	}

	logger.Sugar().Infof("Player stopped")
	return nil
}

// applyFlags lets explicit flags override config file values
func applyFlags(c *cli.Context, cfg *config.Config) {
	if c.IsSet("url") {
		cfg.URL = c.String("url")
	}
	if c.IsSet("latency") {
		cfg.Audio.Latency = c.String("latency")
	}
	if c.IsSet("volume") {
		cfg.Audio.Volume = c.Int("volume")
	}
	if c.IsSet("no-audio") {
		cfg.Audio.Disabled = c.Bool("no-audio")
	}
	if c.IsSet("log-file") {
		cfg.Log.File = c.String("log-file")
	}
	if c.IsSet("log-level") {
		cfg.Log.Level = c.String("log-level")
	}
	if c.Bool("no-tui") {
		cfg.UI.Enabled = false
	}
}

// openLogger logs only to file in TUI mode, to stdout and file otherwise
func openLogger(cfg *config.Config) (*zap.Logger, func(), error) {
	var writers []io.Writer
	closeFn := func() {}

	if cfg.Log.File != "" {
		f, err := os.OpenFile(cfg.Log.File, os.O_RDWR|os.O_CREATE|os.O_APPEND, 0666)
		if err != nil {
			return nil, nil, fmt.Errorf("error opening log file: %w", err)
		}
		writers = append(writers, f)
		closeFn = func() { _ = f.Close() }
	}
	if !cfg.UI.Enabled {
		writers = append(writers, os.Stdout)
	}

	logger, err := logging.New(logging.Options{Level: cfg.Log.Level, Format: cfg.Log.Format}, io.MultiWriter(writers...))
	if err != nil {
		closeFn()
		return nil, nil, err
	}
	return logger, func() {
		_ = logger.Sync()
		closeFn()
	}, nil
}
