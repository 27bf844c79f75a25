package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/user/deskdev/internal/config"
	"github.com/user/deskdev/internal/delivery"
	"github.com/user/deskdev/internal/gateway"
	"github.com/user/deskdev/internal/httpapi"
	"github.com/user/deskdev/internal/scheduler"
	"github.com/user/deskdev/internal/service"
	"github.com/user/deskdev/internal/state"
	"github.com/user/deskdev/internal/telegram"
)

func init() {
	rootCmd.AddCommand(serveCmd)
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the deskdev daemon",
	Args:  cobra.NoArgs,
	RunE:  runServe,
}

// serveJobs builds the periodic jobs of the daemon from cfg.
func serveJobs(cfg *config.Config, gw *gateway.Gateway, svc *service.Service) []scheduler.Job {
	return []scheduler.Job{
		{
			Name:     "sync",
			Schedule: cfg.Sync.Schedule,
			Timeout:  cfg.Timeout(),
			Run: func(ctx context.Context) error {
				n, err := gw.Sync(ctx)
				if err != nil {
					return err
				}
				slog.Debug("conversations synced", "count", n)
				return nil
			},
		},
		{
			Name:     "cache-sweep",
			Schedule: "@every 1m",
			Run: func(ctx context.Context) error {
				if n := svc.Cache().Sweep(); n > 0 {
					slog.Debug("query cache swept", "removed", n)
				}
				return nil
			},
		},
	}
}

// refollow resumes every conversation that was bound to a chat channel
// before the daemon last stopped.
func refollow(ctx context.Context, gw *gateway.Gateway, conversations *state.ConversationStore) {
	list, err := conversations.List(ctx)
	if err != nil {
		slog.Error("list conversations", "error", err)
		return
	}
	for _, c := range list {
		if c.DeliveryKey == "" {
			continue
		}
		if err := gw.Follow(ctx, c.ConversationID, c.DeliveryKey); err != nil {
			slog.Error("resume follow", "conversation_id", string(c.ConversationID), "error", err)
			continue
		}
		slog.Info("following", "conversation_id", string(c.ConversationID), "delivery_key", string(c.DeliveryKey))
	}
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg := loadConfig()

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	if err := os.MkdirAll(cfg.DataDir, 0755); err != nil {
		return fmt.Errorf("create data dir: %w", err)
	}
	pidPath, err := writePIDFile(cfg.DataDir)
	if err != nil {
		return err
	}
	defer os.Remove(pidPath)

	client := newClient(cfg)
	svc := newService(cfg)

	// Delivery registry
	deliveryReg := delivery.NewRegistry()
	deliveryReg.Register("stdout", delivery.Writer(os.Stdout))

	gw, conversations, events, err := newGateway(cfg, client, deliveryReg)
	if err != nil {
		return err
	}
	gw.Start(ctx)
	defer gw.Stop()

	if server, err := svc.Config(ctx); err != nil {
		slog.Warn("platform unreachable", "base_url", cfg.API.BaseURL, "error", err)
	} else {
		slog.Info("platform connected", "base_url", cfg.API.BaseURL, "app_mode", server.AppMode)
	}

	slog.Info("deskdev started",
		"data_dir", cfg.DataDir,
		"log_level", cfg.LogLevel,
		"max_concurrent", cfg.MaxConcurrent,
		"transport", cfg.Follow.Transport,
		"pid_file", pidPath,
	)

	// Telegram adapter
	if cfg.Telegram.Token != "" {
		adapter, err := telegram.New(cfg.Telegram.Token, gw, conversations)
		if err != nil {
			return fmt.Errorf("create telegram adapter: %w", err)
		}
		deliveryReg.Register("telegram:", adapter.Handler())
		go adapter.Start(ctx)
		slog.Info("telegram adapter started")
	} else {
		slog.Warn("telegram adapter disabled (no token)")
	}

	refollow(ctx, gw, conversations)

	// Scheduler
	sched := scheduler.New(ctx, serveJobs(cfg, gw, svc)...)
	if err := sched.Start(); err != nil {
		return fmt.Errorf("start scheduler: %w", err)
	}
	defer sched.Stop()
	slog.Info("scheduler started")

	// HTTP API
	if cfg.HTTP.Enabled {
		httpServer := &http.Server{
			Addr:              cfg.HTTP.Listen,
			Handler:           httpapi.NewServer(gw, conversations, events, newRenderer(cfg)),
			ReadHeaderTimeout: 10 * time.Second,
		}
		go func() {
			slog.Info("http api started", "listen", cfg.HTTP.Listen)
			if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				slog.Error("http api error", "error", err)
			}
		}()
		go func() {
			<-ctx.Done()
			httpServer.Close()
		}()
	}

	// Config reloads only touch settings that are safe to swap live.
	go func() {
		err := config.Watch(ctx, cfgPath, func(next *config.Config) {
			if err := next.Validate(); err != nil {
				slog.Warn("ignoring invalid config", "path", cfgPath, "error", err)
				return
			}
			setupLogging(next)
			if err := sched.Reload(serveJobs(next, gw, svc)...); err != nil {
				slog.Error("reload scheduler", "error", err)
			}
		})
		if err != nil {
			slog.Error("config watcher stopped", "error", err)
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM, syscall.SIGHUP)
	defer signal.Stop(sigChan)

	for {
		var sig os.Signal
		select {
		case sig = <-sigChan:
		case <-ctx.Done():
			slog.Info("shutting down")
			return nil
		}
		if sig == syscall.SIGHUP {
			slog.Info("received SIGHUP, restarting")
			execPath, err := os.Executable()
			if err != nil {
				slog.Error("failed to get executable path", "error", err)
				continue
			}
			os.Remove(pidPath)
			if err := syscall.Exec(execPath, os.Args, os.Environ()); err != nil {
				slog.Error("failed to re-exec", "error", err)
				if _, writeErr := writePIDFile(cfg.DataDir); writeErr != nil {
					slog.Error("failed to re-write PID file", "error", writeErr)
				}
				continue
			}
		}
		slog.Info("shutting down", "signal", sig)
		return nil
	}
}
