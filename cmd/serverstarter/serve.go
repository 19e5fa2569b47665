package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	serverstarter "github.com/smoothcloud/serverstarter"
	"github.com/smoothcloud/serverstarter/internal/logger"
)

func createServeCommand(flags *ServeFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the supervision daemon",
		Long: `Serve loads the TOML configuration, starts every configured server and
exposes the HTTP control API plus a Prometheus /metrics endpoint.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(flags)
		},
	}
	cmd.Flags().StringVar(&flags.ConfigPath, "config", "servers.toml", "path to TOML config file")
	cmd.Flags().StringVar(&flags.MetricsAddr, "metrics-addr", "", "listen address for /metrics (disabled when empty)")
	cmd.Flags().BoolVar(&flags.Debug, "debug", false, "enable debug logging")
	return cmd
}

func runServe(flags *ServeFlags) error {
	level := slog.LevelInfo
	if flags.Debug {
		level = slog.LevelDebug
	}
	log := logger.NewLogger(os.Stderr, level, true)
	slog.SetDefault(log)

	cfg, err := serverstarter.LoadConfig(flags.ConfigPath)
	if err != nil {
		return fmt.Errorf("load config %s: %w", flags.ConfigPath, err)
	}

	if err := serverstarter.RegisterMetricsDefault(); err != nil {
		return fmt.Errorf("register metrics: %w", err)
	}

	sup := serverstarter.New()
	sup.SetLogger(log)
	if cfg.Log != nil {
		sup.SetConsoleLog(*cfg.Log)
	}

	if cfg.HistoryDSN != "" {
		sink, err := serverstarter.NewHistorySink(cfg.HistoryDSN)
		if err != nil {
			return fmt.Errorf("history sink: %w", err)
		}
		defer func() { _ = sink.Close() }()
		sup.SetHistorySinks(sink)
	}

	httpSrv, err := serverstarter.NewHTTPServer(cfg.HTTP.Listen, cfg.HTTP.BasePath, sup)
	if err != nil {
		return fmt.Errorf("http server: %w", err)
	}
	log.Info("api listening", "addr", cfg.HTTP.Listen, "base", cfg.HTTP.BasePath)

	if flags.MetricsAddr != "" {
		go func() {
			if err := serverstarter.ServeMetrics(flags.MetricsAddr); err != nil {
				log.Error("metrics server stopped", "error", err)
			}
		}()
	}

	for i := range cfg.Servers {
		sc := &cfg.Servers[i]
		sup.Start(sc.ID, sc.Server())
	}

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig
	log.Info("shutting down")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = httpSrv.Shutdown(ctx)
	sup.Shutdown()
	return nil
}
