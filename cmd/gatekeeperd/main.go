// ABOUTME: Entry point for the gatekeeperd query-gatekeeper daemon
// ABOUTME: Serves the HTTP boundary and offers one-shot check/stats commands

package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/osintkit/gatekeeper/internal/config"
	"github.com/osintkit/gatekeeper/internal/cooldown"
	"github.com/osintkit/gatekeeper/internal/gatekeeper"
	"github.com/osintkit/gatekeeper/internal/metrics"
	"github.com/osintkit/gatekeeper/internal/server"
	"github.com/osintkit/gatekeeper/internal/store"
)

// Version is set by goreleaser at build time.
var version = "dev"

func usage() {
	fmt.Println("Usage: gatekeeperd <command>")
	fmt.Println()
	fmt.Println("Commands:")
	fmt.Println("  serve                    Start the HTTP boundary server")
	fmt.Println("  check <user_id> <text>   Run one query through the pipeline")
	fmt.Println("  stats                    Print verdict totals and hottest entities")
	fmt.Println("  version                  Print the version")
}

// getConfigPath returns the path to the config file.
// Priority: GATEKEEPER_CONFIG env var > ./gatekeeper.yaml
func getConfigPath() string {
	if envPath := os.Getenv("GATEKEEPER_CONFIG"); envPath != "" {
		return envPath
	}
	return "gatekeeper.yaml"
}

// loadConfig reads the config file if present, otherwise falls back to
// defaults plus environment overrides. A .env file next to the binary is
// folded into the environment first.
func loadConfig() (*config.Config, error) {
	// Ignore a missing .env; it is optional.
	_ = godotenv.Load()

	path := getConfigPath()
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return config.Default()
	}
	return config.Load(path)
}

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	var err error
	switch os.Args[1] {
	case "serve":
		err = runServe(ctx)
	case "check":
		err = runCheck(ctx, os.Args[2:])
	case "stats":
		err = runStats(ctx)
	case "version":
		fmt.Println(version)
	default:
		usage()
		os.Exit(1)
	}

	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// buildGatekeeper wires the store, cooldown gate, and gatekeeper from
// config. The returned cleanup closes everything in order.
func buildGatekeeper(cfg *config.Config, logger *slog.Logger, m *metrics.Metrics) (*gatekeeper.Gatekeeper, *store.SQLiteStore, func(), error) {
	st, err := store.NewSQLiteStore(cfg.Database.Path)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("opening store: %w", err)
	}

	gate := cooldown.New(cfg.Limits.CooldownWindow)

	gk := gatekeeper.New(st, gate, gatekeeper.Options{
		DailyLimit:     cfg.Limits.DailyLimit,
		OwnerUserID:    cfg.Owner.UserID,
		StorageTimeout: cfg.Limits.StorageTimeout,
	}, logger, m)

	cleanup := func() {
		gate.Close()
		if err := st.Close(); err != nil {
			logger.Error("closing store", "error", err)
		}
	}
	return gk, st, cleanup, nil
}

func runServe(ctx context.Context) error {
	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	logger := setupLogger(cfg.Logging)
	slog.SetDefault(logger)

	var m *metrics.Metrics
	if cfg.Metrics.Enabled {
		m = metrics.New()
	}

	gk, st, cleanup, err := buildGatekeeper(cfg, logger, m)
	if err != nil {
		return err
	}
	defer cleanup()

	srv := server.New(gk, st, m, cfg.Metrics.Path, logger)

	httpServer := &http.Server{
		Addr:              cfg.Server.HTTPAddr,
		Handler:           srv,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("gatekeeperd listening",
			"addr", cfg.Server.HTTPAddr,
			"daily_limit", cfg.Limits.DailyLimit,
			"cooldown_window", cfg.Limits.CooldownWindow,
			"version", version,
		)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("http server: %w", err)
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutting down http server: %w", err)
	}
	return nil
}

func runCheck(ctx context.Context, args []string) error {
	if len(args) < 2 {
		return fmt.Errorf("usage: gatekeeperd check <user_id> <text>")
	}
	userID, err := strconv.ParseInt(args[0], 10, 64)
	if err != nil {
		return fmt.Errorf("parsing user id %q: %w", args[0], err)
	}
	text := args[1]

	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	logger := setupLogger(cfg.Logging)
	slog.SetDefault(logger)

	gk, _, cleanup, err := buildGatekeeper(cfg, logger, nil)
	if err != nil {
		return err
	}
	defer cleanup()

	verdict, err := gk.Handle(ctx, userID, store.RoleUser, text, time.Now())
	if err != nil {
		return err
	}

	out, err := json.MarshalIndent(verdict, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding verdict: %w", err)
	}
	fmt.Println(string(out))
	return nil
}

func runStats(ctx context.Context) error {
	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	logger := setupLogger(cfg.Logging)
	slog.SetDefault(logger)

	st, err := store.NewSQLiteStore(cfg.Database.Path)
	if err != nil {
		return fmt.Errorf("opening store: %w", err)
	}
	defer st.Close()

	stats, err := st.GetQueryStats(ctx)
	if err != nil {
		return err
	}
	fmt.Printf("requests: %d (results %d, cooldown %d, quota %d)\n",
		stats.Total, stats.Results, stats.Cooldown, stats.Quota)

	top, err := st.TopEntities(ctx, 10)
	if err != nil {
		return err
	}
	for _, e := range top {
		fmt.Printf("  %-8s %-40s hits=%d last_seen=%s\n",
			e.Kind, e.Value, e.Hits, e.LastSeen.Format(time.RFC3339))
	}
	return nil
}
