package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/chrissnell/sensorcal/internal/app"
	"github.com/chrissnell/sensorcal/internal/constants"
	"github.com/chrissnell/sensorcal/internal/log"
	"github.com/chrissnell/sensorcal/pkg/config"
)

func main() {
	cfgFile := flag.String("config", "sensorcal.yaml", "Path to the YAML configuration file (SENSORCAL_* environment variables override it)")
	debug := flag.Bool("debug", false, "Turn on debugging output")
	showVersion := flag.Bool("version", false, "Show version and exit")
	flag.Parse()

	if *showVersion {
		fmt.Printf("sensorcal %s\n", constants.Version)
		os.Exit(0)
	}

	if err := log.Init(*debug); err != nil {
		fmt.Printf("Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	filename, _ := filepath.Abs(*cfgFile)
	cfg, err := config.Load(config.NewYAMLProvider(filename))
	if err != nil {
		log.Errorf("Error reading config file. Did you pass the -config flag? Run with -h for help: %v", err)
		os.Exit(1)
	}
	if cfg.Log.Debug && !*debug {
		if err := log.Init(true); err != nil {
			log.Warnf("could not switch to debug logging: %v", err)
		}
	}
	log.Infof("sensorcal %s starting with config %s", constants.Version, filename)
	log.Debugw("configuration",
		"quantities", len(cfg.Quantities),
		"weather_source", cfg.Weather.Source,
		"background", cfg.Background.Enabled,
		"output", filepath.Join(cfg.Output.Dir, cfg.Output.Name),
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg); err != nil {
		log.Errorw("calibration run failed", "error", err)
		log.Sync()
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config) error {
	application := app.New(cfg, log.Named("app"))
	if err := application.Open(ctx); err != nil {
		return err
	}
	defer application.Close()
	if err := application.Run(ctx); err != nil {
		return err
	}
	log.Infow("calibration run complete", "output", filepath.Join(cfg.Output.Dir, cfg.Output.Name))
	return nil
}
