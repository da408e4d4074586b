// ABOUTME: Entry point for the mycastle-gateway server
// ABOUTME: Wires store, registry, providers, dispatcher, and transport together

package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jojopeligroso/MyCastle-sub007/internal/aggregate"
	"github.com/jojopeligroso/MyCastle-sub007/internal/auth"
	"github.com/jojopeligroso/MyCastle-sub007/internal/completion"
	"github.com/jojopeligroso/MyCastle-sub007/internal/config"
	"github.com/jojopeligroso/MyCastle-sub007/internal/protocol"
	"github.com/jojopeligroso/MyCastle-sub007/internal/providers"
	"github.com/jojopeligroso/MyCastle-sub007/internal/registry"
	"github.com/jojopeligroso/MyCastle-sub007/internal/store"
	"github.com/jojopeligroso/MyCastle-sub007/internal/transport"
)

const version = "0.3.0"

func main() {
	if len(os.Args) < 2 {
		fmt.Println("Usage: mycastle-gateway <command>")
		fmt.Println()
		fmt.Println("Commands:")
		fmt.Println("  serve     Start the gateway server")
		fmt.Println("  init      Create the database and seed demo data")
		fmt.Println("  health    Check a running gateway's health endpoint")
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	var err error
	switch os.Args[1] {
	case "serve":
		err = runServe(ctx)
	case "init":
		err = runInit(ctx)
	case "health":
		err = runHealth(ctx)
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", os.Args[1])
		os.Exit(1)
	}

	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// configPath resolves the config file location from the environment with a
// local-directory fallback.
func configPath() string {
	if p := os.Getenv("MYCASTLE_CONFIG"); p != "" {
		return p
	}
	return "config.yaml"
}

// setupLogging installs the process-wide slog handler per config.
func setupLogging(cfg config.LoggingConfig) {
	level := slog.LevelInfo
	switch cfg.Level {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	}

	var handler slog.Handler
	if cfg.Format == "json" {
		handler = slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: level})
	} else {
		handler = slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})
	}
	slog.SetDefault(slog.New(handler))
}

func runServe(ctx context.Context) error {
	cfg, err := config.Load(configPath())
	if err != nil {
		return err
	}
	setupLogging(cfg.Logging)
	logger := slog.Default()

	st, err := store.NewSQLiteStore(cfg.Database.Path)
	if err != nil {
		return fmt.Errorf("opening store: %w", err)
	}
	defer st.Close()

	reg := registry.New(logger.With("component", "registry"))
	agg := aggregate.New(reg, logger.With("component", "aggregate"))

	upstream, err := buildUpstream(cfg.Completion)
	if err != nil {
		return err
	}
	completer, err := completion.NewClient(completion.ClientConfig{
		Upstream:  upstream,
		Policy:    buildRetryPolicy(cfg.Completion),
		CacheTTL:  cfg.Completion.CacheTTL,
		CacheSize: cfg.Completion.CacheSize,
		Logger:    logger.With("component", "completion"),
	})
	if err != nil {
		return fmt.Errorf("building completion client: %w", err)
	}

	if err := registerProviders(reg, st, agg, completer); err != nil {
		return fmt.Errorf("registering providers: %w", err)
	}
	tools, resources := reg.Counts()
	logger.Info("capabilities registered", "tools", tools, "resources", resources)

	dispatcher, err := protocol.NewDispatcher(protocol.Config{
		Registry:          reg,
		Verifier:          auth.NewJWTVerifier([]byte(cfg.Auth.JWTSecret)),
		Audit:             st,
		DefaultCredential: cfg.Auth.DefaultCredential,
		Logger:            logger.With("component", "dispatch"),
	})
	if err != nil {
		return fmt.Errorf("building dispatcher: %w", err)
	}

	if cfg.Server.Stdio {
		logger.Info("starting stdio transport", "version", version)
		srv := transport.NewStdioServer(dispatcher, os.Stdin, os.Stdout, logger.With("component", "stdio"))
		err := srv.Run(ctx)
		if errors.Is(err, context.Canceled) {
			return nil
		}
		return err
	}

	handler := transport.NewHTTPHandler(transport.HTTPConfig{
		Dispatcher: dispatcher,
		Ready: func() error {
			_, err := st.ListProgrammes(context.Background())
			return err
		},
		Logger: logger.With("component", "http"),
	})

	server := &http.Server{
		Addr:              cfg.Server.HTTPAddr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("starting HTTP transport", "addr", cfg.Server.HTTPAddr, "version", version)
		errCh <- server.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		logger.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}

// registerProviders contributes every capability family to the registry.
func registerProviders(reg *registry.Registry, st store.Store, agg *aggregate.Aggregator, completer *completion.Client) error {
	if err := providers.RegisterSystem(reg, version); err != nil {
		return err
	}
	if err := providers.RegisterFinance(reg, st); err != nil {
		return err
	}
	if err := providers.RegisterAcademic(reg, st); err != nil {
		return err
	}
	if err := providers.RegisterAttendance(reg, st); err != nil {
		return err
	}
	return providers.RegisterStudent(reg, st, agg, completer)
}

func buildRetryPolicy(cfg config.CompletionConfig) completion.RetryPolicy {
	policy := completion.DefaultRetryPolicy()
	if cfg.MaxAttempts > 0 {
		policy.MaxAttempts = cfg.MaxAttempts
	}
	if cfg.InitialDelay > 0 {
		policy.InitialDelay = cfg.InitialDelay
	}
	if cfg.MaxDelay > 0 {
		policy.MaxDelay = cfg.MaxDelay
	}
	return policy
}

// buildUpstream returns the configured completion upstream. Without a
// base URL the gateway runs with a stub that reports the assistant as
// unconfigured instead of refusing to start.
func buildUpstream(cfg config.CompletionConfig) (completion.Upstream, error) {
	if cfg.BaseURL == "" {
		slog.Warn("completion.base_url not set, assistant capabilities disabled")
		return unconfiguredUpstream{}, nil
	}
	return completion.NewHTTPUpstream(completion.HTTPUpstreamConfig{
		BaseURL: cfg.BaseURL,
		APIKey:  cfg.APIKey,
		Model:   cfg.Model,
	})
}

type unconfiguredUpstream struct{}

func (unconfiguredUpstream) Complete(context.Context, []completion.Message, completion.Options) (string, error) {
	return "", fmt.Errorf("%w: no completion upstream configured", completion.ErrInvalidRequest)
}

func runInit(ctx context.Context) error {
	cfg, err := config.Load(configPath())
	if err != nil {
		return err
	}
	setupLogging(cfg.Logging)

	st, err := store.NewSQLiteStore(cfg.Database.Path)
	if err != nil {
		return fmt.Errorf("opening store: %w", err)
	}
	defer st.Close()

	if err := st.Seed(ctx); err != nil {
		return fmt.Errorf("seeding demo data: %w", err)
	}
	fmt.Printf("Initialized database at %s\n", cfg.Database.Path)
	return nil
}

func runHealth(ctx context.Context) error {
	cfg, err := config.Load(configPath())
	if err != nil {
		return err
	}
	if cfg.Server.HTTPAddr == "" {
		return fmt.Errorf("health check requires an HTTP transport")
	}

	url := fmt.Sprintf("http://%s/health/ready", cfg.Server.HTTPAddr)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}

	client := &http.Client{Timeout: 5 * time.Second}
	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("gateway unreachable: %w", err)
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("gateway not ready (%d): %s", resp.StatusCode, body)
	}
	fmt.Printf("Gateway healthy: %s", body)
	return nil
}
