package main

import (
	"context"
	"errors"
	"net/http"
	"os"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"

	"reportscheduler/src/api"
	"reportscheduler/src/config"
	"reportscheduler/src/utils"
	"reportscheduler/src/worker"
)

func main() {
	_ = godotenv.Load()

	cfg, err := config.LoadConfig("./settings", os.Getenv("ENV"))
	if err != nil {
		println("Error while loading config:", err.Error())
		os.Exit(1)
	}

	logger := utils.NewLogger(utils.ParseLogLevel(cfg.Service.LogLevel))

	if err := cfg.ResolveSecrets(); err != nil {
		logger.WithError(err).Fatal("Couldn't resolve config secrets")
	}

	errC, err := run(cfg, logger)
	if err != nil {
		logger.WithError(err).Fatal("Couldn't run")
	}

	if err := <-errC; err != nil {
		logger.WithError(err).Error("Error while running")
	}
}

func run(cfg *config.Config, logger *logrus.Logger) (<-chan error, error) {
	errC := make(chan error, 1)
	ctx := utils.WithLogger(context.Background(), logger)

	var httpServer *http.Server
	if cfg.Service.Type == config.WORKER {
		server, err := worker.NewServer(ctx, cfg, logger)
		if err != nil {
			return nil, err
		}
		httpServer = worker.NewHTTPServer(server, cfg.Service.Port)
	} else {
		server, err := api.NewServer(ctx, cfg, logger)
		if err != nil {
			return nil, err
		}
		httpServer = api.NewHTTPServer(server, cfg.Service.Port)
	}

	go func() {
		logger.WithField("port", cfg.Service.Port).Info("Starting server")

		// "ListenAndServe always returns a non-nil error. After Shutdown or
		// Close, the returned error is ErrServerClosed."
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errC <- err
		}
	}()
	return errC, nil
}
