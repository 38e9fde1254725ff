package main

import (
	"context"
	"flag"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"spiclk-go/bus"
	"spiclk-go/services/hal"
	"spiclk-go/services/hal/config"
	"spiclk-go/x/assert"
)

func initLogger(app, level string) zerolog.Logger {
	output := zerolog.ConsoleWriter{
		Out:        os.Stdout,
		TimeFormat: time.RFC3339,
	}
	lvl, err := zerolog.ParseLevel(level)
	if err != nil {
		lvl = zerolog.InfoLevel
	}
	logger := zerolog.New(output).Level(lvl).With().Timestamp().Str("app", app).Logger()
	log.Logger = logger
	return logger
}

func main() {
	cfgPath := flag.String("config", "", "TOML file overriding the built-in demo parameters")
	console := flag.Bool("console", false, "read commands from stdin instead of running the demo")
	level := flag.String("log-level", "info", "trace|debug|info|warn|error")
	flag.Parse()

	logger := initLogger("spiclk", *level)
	defer func() {
		if f := assert.Recover(recover()); f != nil {
			logger.Fatal().Str("file", f.File).Int("line", f.Line).Str("expr", f.Expr).Msg("assertion failed")
		}
	}()

	cfg := config.Default()
	if *cfgPath != "" {
		var err error
		if cfg, err = config.Load(*cfgPath); err != nil {
			logger.Fatal().Err(err).Str("path", *cfgPath).Msg("config")
		}
	}

	b := bus.NewBus(16)
	conn := b.NewConnection("hal")
	sys, err := hal.New(cfg, conn, &logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("bring-up")
	}
	logger.Info().Str("platform", sys.Platform()).Strs("spi", sys.Instances()).Msg("ready")

	ctx := context.Background()
	if *console || cfg.Console.Interactive {
		go sys.Run(ctx, conn)
		if err := sys.Serve(ctx, os.Stdin, os.Stdout); err != nil {
			logger.Error().Err(err).Msg("console")
		}
		return
	}

	if err := sys.Demo(ctx); err != nil {
		logger.Error().Err(err).Msg("demo aborted")
		os.Exit(1)
	}
	logger.Info().Msg("demo complete")
}
