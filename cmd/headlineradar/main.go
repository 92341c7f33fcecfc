package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"HeadlineRadar/internal/app"
	"HeadlineRadar/internal/config"
	"HeadlineRadar/internal/logging"
)

func main() {
	configPath := flag.String("config", "", "path to the YAML config (defaults to $HEADLINE_RADAR_CONFIG)")
	once := flag.Bool("once", false, "run a single cycle and exit")
	flag.Parse()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	bootLogger := logging.New("info")
	cfg, err := config.Load(*configPath)
	if err != nil {
		bootLogger.Error("load config", "error", err)
		os.Exit(1)
	}
	logger := logging.NewWriter(os.Stdout, cfg.Logging.Level, cfg.Logging.Format)

	application, err := app.New(ctx, cfg, logger)
	if err != nil {
		logger.Error("build application", "error", err)
		os.Exit(1)
	}

	if *once {
		err = application.RunOnce(ctx)
	} else {
		err = application.Run(ctx)
	}
	if cerr := application.Close(); cerr != nil {
		logger.Warn("close resources", "error", cerr)
	}
	if err != nil {
		logger.Error("application stopped", "error", err)
		os.Exit(1)
	}
}
