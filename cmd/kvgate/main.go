package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/adeilh/kvgate/binding"
	"github.com/adeilh/kvgate/config"
	"github.com/adeilh/kvgate/gateway"
	"github.com/adeilh/kvgate/httpx"
	"github.com/adeilh/kvgate/logging"
	"github.com/adeilh/kvgate/metrics"
)

func main() {
	envFile := flag.String("env-file", ".env", "optional dotenv file loaded before the environment")
	addr := flag.String("addr", "", "listen address (overrides KVGATE_ADDR)")
	flag.Parse()

	if err := run(*envFile, *addr); err != nil {
		fmt.Fprintln(os.Stderr, "kvgate:", err)
		os.Exit(1)
	}
}

func run(envFile, addr string) error {
	cfg, err := config.Load(envFile)
	if err != nil {
		return err
	}
	if addr != "" {
		cfg.Addr = addr
		if err := cfg.Validate(); err != nil {
			return err
		}
	}

	logger, err := logging.New(cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	recorder := metrics.NewRecorder()
	env := binding.NewEnv(cfg.Bindings, binding.Options{
		WorkersKVToken:  cfg.WorkersKVToken,
		WorkersKVAPIURL: cfg.WorkersKVAPIURL,
	}, logger.Named("binding"))
	defer func() {
		if err := env.Close(); err != nil {
			logger.Warn("closing bindings", zap.Error(err))
		}
	}()

	handler := gateway.NewHandler(env,
		gateway.WithFailureMode(cfg.FailureMode),
		gateway.WithLogger(logger.Named("gateway")),
		gateway.WithMetrics(recorder),
	)

	server := httpx.NewServer(
		httpx.WithAddress(cfg.Addr),
		httpx.WithTimeouts(cfg.ReadTimeout, cfg.WriteTimeout),
		httpx.WithLogger(logger),
		httpx.WithRateLimit(cfg.RateLimit, cfg.RateBurst),
		httpx.WithCORSOrigins(cfg.CORSOrigins...),
		httpx.AppendMiddlewares(recorder.Middleware(gateway.RoutePatterns...)),
		httpx.WithErrorHandler(gateway.ErrorHandler(httpx.DefaultHTTPErrorHandler)),
	)
	server.RegisterRoutes(handler.Register)

	errCh := make(chan error, 2)
	running := 1
	go func() { errCh <- server.Start(ctx, httpx.WithShutdownTimeout(cfg.ShutdownTimeout)) }()

	if cfg.MetricsAddr != "" {
		metricsServer := httpx.NewServer(
			httpx.WithAddress(cfg.MetricsAddr),
			httpx.WithLogger(logger.Named("metrics")),
		)
		metricsServer.RegisterRoutes(func(a *httpx.App) {
			a.GET("/metrics", httpx.WrapHandler(recorder.Handler()))
		})
		running++
		go func() { errCh <- metricsServer.Start(ctx, httpx.WithShutdownTimeout(cfg.ShutdownTimeout)) }()
	}

	logger.Info("kvgate starting",
		zap.String("addr", server.Address()),
		zap.String("metrics_addr", cfg.MetricsAddr),
		zap.String("binding", config.BindingName),
		zap.String("binding_url", binding.Redact(cfg.Bindings[config.BindingName])),
		zap.String("failure_mode", string(cfg.FailureMode)),
	)

	var firstErr error
	for i := 0; i < running; i++ {
		err := <-errCh
		if err != nil && !errors.Is(err, context.Canceled) && firstErr == nil {
			firstErr = err
			stop()
		}
	}
	if firstErr != nil {
		return firstErr
	}
	logger.Info("kvgate stopped")
	return nil
}
