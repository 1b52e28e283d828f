// Command intervox-stub serves the in-memory reference implementation of
// the interview service. It exists for local development: point the
// intervox client at it and run full sessions without the real backend.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	"github.com/intervox/intervox/internal/config"
	"github.com/intervox/intervox/internal/observe"
	"github.com/intervox/intervox/internal/stub"
)

func main() {
	os.Exit(run())
}

func run() int {
	listenAddr := flag.String("listen", ":8085", "address to serve the interview API on")
	metricsAddr := flag.String("metrics", ":9091", "address to serve /metrics on (empty disables)")
	variant := flag.String("variant", "behavioral", "question bank: behavioral or technical")
	maxQuestions := flag.Int("max-questions", stub.DefaultMaxQuestions, "question ceiling per session")
	logLevel := flag.String("log-level", "info", "log level: debug, info, warn, error")
	flag.Parse()

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: config.LevelFromConfig(config.LogLevel(*logLevel)),
	}))
	slog.SetDefault(logger)

	v := config.Variant(*variant)
	if !v.IsValid() {
		fmt.Fprintf(os.Stderr, "intervox-stub: unknown variant %q\n", *variant)
		return 1
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	otelShutdown, err := observe.InitProvider(ctx, observe.ProviderConfig{ServiceName: "intervox-stub"})
	if err != nil {
		slog.Error("failed to initialise telemetry", "err", err)
		return 1
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := otelShutdown(shutdownCtx); err != nil {
			slog.Warn("telemetry shutdown error", "err", err)
		}
	}()

	server := stub.New(stub.WithVariant(v), stub.WithMaxQuestions(*maxQuestions))

	api := &http.Server{
		Addr:              *listenAddr,
		Handler:           server.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		slog.Info("interview stub listening", "addr", *listenAddr, "variant", v, "max_questions", *maxQuestions)
		if err := api.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("api server: %w", err)
		}
		return nil
	})

	var metrics *http.Server
	if *metricsAddr != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.Handler())
		metrics = &http.Server{
			Addr:              *metricsAddr,
			Handler:           mux,
			ReadHeaderTimeout: 10 * time.Second,
		}
		g.Go(func() error {
			slog.Info("metrics listening", "addr", *metricsAddr)
			if err := metrics.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("metrics server: %w", err)
			}
			return nil
		})
	}

	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		slog.Info("shutting down")
		var errs []error
		if err := api.Shutdown(shutdownCtx); err != nil {
			errs = append(errs, err)
		}
		if metrics != nil {
			if err := metrics.Shutdown(shutdownCtx); err != nil {
				errs = append(errs, err)
			}
		}
		return errors.Join(errs...)
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		slog.Error("server error", "err", err)
		return 1
	}
	slog.Info("goodbye")
	return 0
}
