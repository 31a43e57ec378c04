// ABOUTME: Minimal fake playground backend for E2E testing: streams NDJSON runs and stores sessions in memory
// ABOUTME: Usage: fake-playground [-addr localhost:7777] [-delay 50ms]
package main

import (
	"context"
	"errors"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"time"
)

func main() {
	addr := flag.String("addr", "localhost:7777", "HTTP listen address")
	delay := flag.Duration("delay", 50*time.Millisecond, "Delay between streamed records")
	flag.Parse()

	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))
	if err := run(*addr, *delay, logger); err != nil {
		logger.Error("fake-playground failed", "error", err)
		os.Exit(1)
	}
}

func run(addr string, delay time.Duration, logger *slog.Logger) error {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	srv := &http.Server{
		Addr:              addr,
		Handler:           newServer(delay, logger).routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	logger.Info("fake playground listening", "addr", addr)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
