// rugchekr - risk assessment API for token contracts
package main

import (
	"context"
	"os"

	"github.com/gin-gonic/gin"

	"github.com/rcollins22/rugchekr/internal/config"
	"github.com/rcollins22/rugchekr/internal/logging"
	"github.com/rcollins22/rugchekr/internal/server"
	"github.com/rcollins22/rugchekr/internal/traces"
)

// Build info - set by ldflags
var (
	Version   = "dev"
	Commit    = "unknown"
	BuildTime = "unknown"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logging.New("info", "text").Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := logging.New(cfg.LogLevel, cfg.LogFormat)
	logger.Info("starting rugchekr",
		"version", Version,
		"commit", Commit,
		"build_time", BuildTime,
	)
	logger.Info("configuration loaded",
		"env", cfg.Env,
		"chain_id", cfg.ChainID,
		"explorer_key", cfg.HasExplorerKey(),
		"database", cfg.DatabaseURL != "",
		"redis", cfg.RedisURL != "",
	)

	if !cfg.IsDevelopment() {
		gin.SetMode(gin.ReleaseMode)
	}

	ctx := context.Background()
	shutdownTraces, err := traces.Init(ctx, cfg.OTLPEndpoint, Version, logger)
	if err != nil {
		logger.Warn("tracing disabled", "error", err)
	}

	srv, err := server.New(cfg, server.WithLogger(logger), server.WithVersion(Version))
	if err != nil {
		logger.Error("failed to create server", "error", err)
		os.Exit(1)
	}

	runErr := srv.Run(ctx)
	if shutdownTraces != nil {
		if err := shutdownTraces(context.Background()); err != nil {
			logger.Warn("trace shutdown", "error", err)
		}
	}
	if runErr != nil {
		logger.Error("server error", "error", runErr)
		os.Exit(1)
	}
}
