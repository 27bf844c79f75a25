package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/user/deskdev/internal/config"
	"github.com/user/deskdev/internal/gateway"
	"github.com/user/deskdev/internal/query"
	"github.com/user/deskdev/internal/render"
	"github.com/user/deskdev/internal/service"
	"github.com/user/deskdev/internal/state"
	"github.com/user/deskdev/pkg/api"
)

var cfgPath string

var rootCmd = &cobra.Command{
	Use:           "deskdev",
	Short:         "Follow and talk to coding agent conversations",
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgPath, "config",
		filepath.Join(os.Getenv("HOME"), ".deskdev", "config.json"), "config file path (.json, .yaml or .yml)")
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// loadConfig loads the config file or exits.
func loadConfig() *config.Config {
	cfg, err := config.Load(cfgPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "Invalid config %s: %v\n", cfgPath, err)
		os.Exit(1)
	}
	setupLogging(cfg)
	return cfg
}

func setupLogging(cfg *config.Config) {
	var level slog.Level
	switch strings.ToLower(cfg.LogLevel) {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))
}

func newClient(cfg *config.Config) *api.Client {
	return api.New(api.Config{
		BaseURL: cfg.API.BaseURL,
		APIKey:  cfg.API.APIKey,
		Timeout: cfg.Timeout(),
	})
}

// retryNotice tells the user a request failed and is being retried.
func retryNotice(attempt int, err error) {
	fmt.Fprintf(os.Stderr, "request failed (attempt %d), retrying: %v\n", attempt, err)
}

func newService(cfg *config.Config) *service.Service {
	return service.New(newClient(cfg), query.New(), service.Options{
		StaleTime: cfg.StaleTime(),
		GCTime:    cfg.GCTime(),
		OnRetry:   retryNotice,
	})
}

func newRenderer(cfg *config.Config) *render.Renderer {
	return render.New(cfg.Render.Model, cfg.Render.MaxContentTokens)
}

func retryPolicy() *gateway.RetryPolicy {
	p := gateway.DefaultRetryPolicy()
	p.OnRetry = retryNotice
	return p
}

// newGateway wires a gateway over the local stores. delivery may be nil.
func newGateway(cfg *config.Config, client *api.Client, delivery gateway.Deliverer) (*gateway.Gateway, *state.ConversationStore, *state.EventStore, error) {
	if err := os.MkdirAll(cfg.DataDir, 0755); err != nil {
		return nil, nil, nil, fmt.Errorf("create data dir: %w", err)
	}
	conversations := state.NewConversationStore(cfg.DataDir)
	events := state.NewEventStore(cfg.DataDir)

	opts := gateway.Options{
		MaxConcurrent: int64(cfg.MaxConcurrent),
		Transport:     gateway.Transport(cfg.Follow.Transport),
		PollInterval:  cfg.PollInterval(),
		PageSize:      cfg.Follow.PageSize,
		RecentWindow:  cfg.Render.RecentActions,
		Dialer:        gateway.APIDialer(client),
		Retry:         retryPolicy(),
	}
	gw := gateway.New(client, conversations, events, newRenderer(cfg), delivery, opts)
	return gw, conversations, events, nil
}
