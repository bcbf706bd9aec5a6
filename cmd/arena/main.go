package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"btcarena/internal/app"
	"btcarena/internal/gateway"
	"btcarena/internal/infra"
)

func main() {
	bootstrap := app.NewBootstrap()
	if err := bootstrap.Initialize(); err != nil {
		slog.Error("bootstrapping failed", slog.Any("error", err))
		os.Exit(1)
	}
	defer bootstrap.Close()

	cfg := bootstrap.Config
	infra.PrintBanner(cfg)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Live price stream feeds the oracle cache; REST stays as fallback.
	if cfg.Oracle.WSURL != "" {
		stream := infra.NewTickerStream(cfg.Oracle.WSURL, cfg.Oracle.Symbol, bootstrap.Oracle)
		stream.Start(ctx)
		defer stream.Stop()
		slog.Info("ticker stream started", slog.String("symbol", cfg.Oracle.Symbol))
	}

	// Matching scan loop.
	go bootstrap.Engine.RunScanLoop(ctx, cfg.ScanInterval(), cfg.ScanFirstDelay())

	// HTTP command gateway.
	news := infra.NewNewsAggregator(cfg.News.Feeds, cfg.News.MaxItems)
	cooldown := infra.NewCooldown(cfg.Cooldown())
	handler := gateway.NewHandler(bootstrap.Engine, bootstrap.Oracle, news, cooldown)

	srv := &http.Server{
		Addr:              cfg.HTTP.ListenAddr,
		Handler:           handler.Router(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		slog.Info("gateway listening", slog.String("addr", cfg.HTTP.ListenAddr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("gateway failed", slog.Any("error", err))
			stop()
		}
	}()

	// Cooldown housekeeping so the per-caller map stays bounded.
	go func() {
		ticker := time.NewTicker(time.Minute)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				cooldown.Purge()
			}
		}
	}()

	<-ctx.Done()
	slog.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Warn("gateway shutdown incomplete", slog.Any("error", err))
	}
}
