package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/Sternrassler/epoxy/pkg/aggregate"
	"github.com/Sternrassler/epoxy/pkg/client"
	"github.com/Sternrassler/epoxy/pkg/config"
	"github.com/Sternrassler/epoxy/pkg/logging"
	"github.com/Sternrassler/epoxy/pkg/telemetry"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}

	logging.Setup(logging.Config{
		Level:   logging.LogLevel(cfg.LogLevel),
		Pretty:  cfg.LogPretty,
		Output:  os.Stderr,
		Service: cfg.ServiceName,
		Version: cfg.Version,
	})

	ctx := context.Background()
	shutdownTracing, err := telemetry.Init(ctx, telemetry.Config{
		Enabled:     cfg.TracingEnabled,
		ServiceName: cfg.ServiceName,
		Environment: cfg.Environment,
		Version:     cfg.Version,
		Endpoint:    cfg.OTLPEndpoint,
		Insecure:    cfg.OTLPInsecure,
		SampleRatio: cfg.TraceSampleRatio,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize tracing")
	}

	endpointClient, err := client.New(client.DefaultConfig(cfg.UserAgent))
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create endpoint client")
	}

	aggregator := aggregate.New(endpointClient, aggregate.Config{
		DefaultTimeout: cfg.DefaultTimeout,
		MaxConcurrency: cfg.MaxConcurrency,
		UserAgent:      cfg.UserAgent,
		MaxBodyBytes:   cfg.MaxBodyBytes,
	})

	if cfg.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	var shuttingDown atomic.Bool
	srv := &http.Server{
		Addr:              cfg.Addr(),
		Handler:           newRouter(cfg.ServiceName, aggregator, cfg.DefaultTimeout, &shuttingDown),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Info().
			Str("addr", srv.Addr).
			Str("user_agent", cfg.UserAgent).
			Dur("default_timeout", cfg.DefaultTimeout).
			Msg("Starting epoxy server")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("Server failed")
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	sig := <-stop

	log.Info().Str("signal", sig.String()).Msg("Shutting down")
	shuttingDown.Store(true)

	shutdownCtx, cancel := context.WithTimeout(ctx, cfg.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Graceful shutdown failed")
	}
	if err := shutdownTracing(shutdownCtx); err != nil {
		log.Warn().Err(err).Msg("Tracing shutdown failed")
	}

	log.Info().Msg("Server stopped")
}
