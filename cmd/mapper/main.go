package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/cellsignal/mapper/cmd/mapper/app"
)

func main() {
	var logLevel slog.LevelVar
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: &logLevel}))

	var (
		configPath string
		mode       string
		interval   time.Duration
		duration   time.Duration
		mockGPS    bool
	)
	flag.StringVar(&configPath, "c", "", "Path to the configuration file")
	flag.StringVar(&mode, "mode", "", "Acquisition mode: single or continuous (overrides configuration)")
	flag.DurationVar(&interval, "interval", 0, "Inter-cycle sleep, e.g. 5s (overrides configuration)")
	flag.DurationVar(&duration, "duration", 0, "Session duration, e.g. 30m; 0 runs until interrupted (overrides configuration)")
	flag.BoolVar(&mockGPS, "mock-gps", false, "Use simulated GPS positions")
	flag.Parse()

	if configPath == "" {
		logger.Error("no configuration file provided")
		os.Exit(1)
	}

	config, err := app.LoadConfig(configPath)
	if err != nil {
		logger.Error(fmt.Sprintf("failed to load configuration file: %s", err.Error()), slog.String("path", configPath))
		os.Exit(1)
	}

	if mode != "" {
		config.Settings.Mode = mode
	}
	if interval > 0 {
		config.Session.Interval = app.TimeDuration(interval)
	}
	if duration > 0 {
		config.Session.Duration = app.TimeDuration(duration)
	}
	if mockGPS {
		config.GPS.Enabled = true
		config.GPS.Mock = true
	}
	if err = config.Validate(); err != nil {
		logger.Error(err.Error())
		os.Exit(1)
	}

	logLevel.Set(config.Settings.SlogLevel())

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err = app.Run(ctx, config, logger); err != nil {
		logger.Error(err.Error())

		cancel()
		os.Exit(1)
	}
}
